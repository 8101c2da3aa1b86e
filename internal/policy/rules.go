package policy

import (
	"context"
	"time"

	"clinicore/pkg/requestcontext"
)

// RoleBackend is the built-in rule evaluator: a static role-permission table
// per resource, an admin override, and default deny for anything the table
// does not name. Pure domain logic, no I/O.
type RoleBackend struct {
	rules map[string]map[string][]string // resource -> action -> roles
}

// NewRoleBackend builds the default clinical permission table.
func NewRoleBackend() *RoleBackend {
	return &RoleBackend{
		rules: map[string]map[string][]string{
			"patient": {
				"read":  {"practitioner", "nurse", "receptionist"},
				"write": {"practitioner", "nurse"},
			},
			"practitioner": {
				"read":  {"practitioner", "nurse", "receptionist"},
				"write": {"practitioner"},
			},
			"encounter": {
				"read":       {"practitioner", "nurse", "receptionist"},
				"write":      {"practitioner", "nurse"},
				"transition": {"practitioner"},
			},
			"clinical_note": {
				"read":     {"practitioner", "nurse"},
				"write":    {"practitioner"},
				"finalize": {"practitioner"},
			},
		},
	}
}

// Evaluate answers from the rule table. Admins bypass the table; an unknown
// resource, action, or role falls through to DENY.
func (b *RoleBackend) Evaluate(ctx context.Context, req Request) (Decision, error) {
	now := requestcontext.Now(ctx)

	if req.Subject == "admin" {
		return permit(now, ReasonAdminOverride), nil
	}

	actions, ok := b.rules[req.Resource]
	if !ok {
		return deny(now, ReasonNoMatchingRule), nil
	}
	roles, ok := actions[req.Action]
	if !ok {
		return deny(now, ReasonNoMatchingRule), nil
	}
	for _, role := range roles {
		if role == req.Subject {
			return permit(now, ReasonRolePermitted), nil
		}
	}
	return deny(now, ReasonRoleDenied), nil
}

func permit(now time.Time, reason string) Decision {
	return Decision{Effect: EffectPermit, ReasonCode: reason, Timestamp: now}
}

func deny(now time.Time, reason string) Decision {
	return Decision{Effect: EffectDeny, ReasonCode: reason, Timestamp: now}
}
