// Package policy evaluates organization-wide authorization decisions with
// deny-on-error semantics. The adapter wraps a pluggable backend; any backend
// failure, panic included, becomes a DENY paired with a CRITICAL audit event.
package policy

import (
	"time"

	"clinicore/pkg/domain"
)

// Effect is the outcome of a policy decision.
type Effect string

const (
	EffectPermit Effect = "PERMIT"
	EffectDeny   Effect = "DENY"
)

// Reason codes attached to decisions.
const (
	ReasonEvaluationError = "EVALUATION_ERROR"
	ReasonNoMatchingRule  = "NO_MATCHING_RULE"
	ReasonRoleDenied      = "ROLE_DENIED"
	ReasonAdminOverride   = "ADMIN_OVERRIDE"
	ReasonRolePermitted   = "ROLE_PERMITTED"
)

// RequestContext identifies who is asking, mirroring the audit event context.
type RequestContext struct {
	TenantID domain.TenantID
	ActorID  domain.ClinicianID
	TraceID  string
}

// Request describes a single authorization question.
type Request struct {
	Context    RequestContext
	Subject    string // role of the actor, e.g. "practitioner"
	Action     string // e.g. "read", "write", "finalize"
	Resource   string // e.g. "patient", "clinical_note"
	Attributes map[string]string
}

// Decision is the policy answer. Absence of an explicit PERMIT is a DENY.
type Decision struct {
	Effect     Effect
	ReasonCode string
	Timestamp  time.Time
	Metadata   map[string]string
}
