package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleBackend(t *testing.T) {
	backend := NewRoleBackend()
	ctx := context.Background()

	tests := []struct {
		name     string
		subject  string
		action   string
		resource string
		effect   Effect
		reason   string
	}{
		{"practitioner writes patient", "practitioner", "write", "patient", EffectPermit, ReasonRolePermitted},
		{"nurse reads note", "nurse", "read", "clinical_note", EffectPermit, ReasonRolePermitted},
		{"nurse cannot finalize note", "nurse", "finalize", "clinical_note", EffectDeny, ReasonRoleDenied},
		{"receptionist cannot write patient", "receptionist", "write", "patient", EffectDeny, ReasonRoleDenied},
		{"receptionist cannot read note", "receptionist", "read", "clinical_note", EffectDeny, ReasonRoleDenied},
		{"admin bypasses the table", "admin", "finalize", "clinical_note", EffectPermit, ReasonAdminOverride},
		{"unknown resource", "practitioner", "read", "billing", EffectDeny, ReasonNoMatchingRule},
		{"unknown action", "practitioner", "export", "patient", EffectDeny, ReasonNoMatchingRule},
		{"unknown role", "intruder", "read", "patient", EffectDeny, ReasonRoleDenied},
		{"empty subject", "", "read", "patient", EffectDeny, ReasonRoleDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := backend.Evaluate(ctx, Request{
				Subject:  tt.subject,
				Action:   tt.action,
				Resource: tt.resource,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.effect, decision.Effect)
			assert.Equal(t, tt.reason, decision.ReasonCode)
			assert.False(t, decision.Timestamp.IsZero())
		})
	}
}
