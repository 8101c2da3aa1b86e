package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"clinicore/internal/audit"
	"clinicore/pkg/domain"
)

type stubBackend struct {
	decision Decision
	err      error
	panicMsg string
	calls    int
}

func (b *stubBackend) Evaluate(_ context.Context, _ Request) (Decision, error) {
	b.calls++
	if b.panicMsg != "" {
		panic(b.panicMsg)
	}
	return b.decision, b.err
}

type capturingAuditor struct {
	events []audit.Event
}

func (a *capturingAuditor) Emit(_ context.Context, event audit.Event) {
	a.events = append(a.events, event)
}

type stubSource struct {
	name       string
	attributes map[string]string
	err        error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(_ context.Context, _ Request) (map[string]string, error) {
	return s.attributes, s.err
}

type PolicyAdapterSuite struct {
	suite.Suite
	auditor *capturingAuditor
	ctx     context.Context
	request Request
}

func TestPolicyAdapterSuite(t *testing.T) {
	suite.Run(t, new(PolicyAdapterSuite))
}

func (s *PolicyAdapterSuite) SetupTest() {
	s.auditor = &capturingAuditor{}
	s.ctx = context.Background()
	s.request = Request{
		Context: RequestContext{
			TenantID: domain.NewTenantID(),
			ActorID:  domain.NewClinicianID(),
			TraceID:  "trace-1",
		},
		Subject:  "practitioner",
		Action:   "write",
		Resource: "patient",
	}
}

func (s *PolicyAdapterSuite) adapter(backend Backend, opts ...Option) *Adapter {
	adapter, err := NewAdapter(backend, append([]Option{WithAuditEmitter(s.auditor)}, opts...)...)
	s.Require().NoError(err)
	return adapter
}

func (s *PolicyAdapterSuite) TestPermitPassesThrough() {
	adapter := s.adapter(NewRoleBackend())

	decision := adapter.Evaluate(s.ctx, s.request)
	s.Equal(EffectPermit, decision.Effect)

	s.Require().Len(s.auditor.events, 1)
	s.Equal(audit.EventPolicyDecision, s.auditor.events[0].Type)
	s.Equal(audit.ResultSuccess, s.auditor.events[0].Result)
}

func (s *PolicyAdapterSuite) TestDenyIsAudited() {
	s.request.Subject = "receptionist"
	adapter := s.adapter(NewRoleBackend())

	decision := adapter.Evaluate(s.ctx, s.request)
	s.Equal(EffectDeny, decision.Effect)

	s.Require().Len(s.auditor.events, 1)
	s.Equal(audit.ResultDenied, s.auditor.events[0].Result)
}

func (s *PolicyAdapterSuite) TestBackendErrorFailsClosed() {
	adapter := s.adapter(&stubBackend{err: errors.New("timeout")})

	decision := adapter.Evaluate(s.ctx, s.request)
	s.Equal(EffectDeny, decision.Effect)
	s.Equal(ReasonEvaluationError, decision.ReasonCode)
	s.Equal("timeout", decision.Metadata["error"])

	s.Require().Len(s.auditor.events, 1, "exactly one audit event for the failure")
	event := s.auditor.events[0]
	s.Equal(audit.EventPolicyEvaluationFailure, event.Type)
	s.Equal(audit.SeverityCritical, event.Severity)
	s.Equal("practitioner", event.Payload["subject"])
	s.Equal("write", event.Payload["action"])
	s.Equal("patient", event.Payload["resource"])
	s.Equal("timeout", event.Payload["error"])
}

func (s *PolicyAdapterSuite) TestBackendPanicFailsClosed() {
	adapter := s.adapter(&stubBackend{panicMsg: "nil map write"})

	var decision Decision
	s.NotPanics(func() {
		decision = adapter.Evaluate(s.ctx, s.request)
	})
	s.Equal(EffectDeny, decision.Effect)
	s.Equal(ReasonEvaluationError, decision.ReasonCode)

	s.Require().Len(s.auditor.events, 1)
	s.Equal(audit.SeverityCritical, s.auditor.events[0].Severity)
}

func (s *PolicyAdapterSuite) TestAmbiguousEffectNormalizedToDeny() {
	adapter := s.adapter(&stubBackend{decision: Decision{Effect: "MAYBE"}})

	decision := adapter.Evaluate(s.ctx, s.request)
	s.Equal(EffectDeny, decision.Effect)
}

func (s *PolicyAdapterSuite) TestDecisionSurvivesWithoutAuditor() {
	adapter, err := NewAdapter(&stubBackend{err: errors.New("down")})
	s.Require().NoError(err)

	decision := adapter.Evaluate(s.ctx, s.request)
	s.Equal(EffectDeny, decision.Effect)
}

func (s *PolicyAdapterSuite) TestAttributeSources() {
	s.Run("merged into the backend request", func() {
		backend := &recordingBackend{}
		adapter := s.adapter(backend, WithAttributeSources(
			&stubSource{name: "schedule", attributes: map[string]string{"on_shift": "true"}},
			&stubSource{name: "licensing", attributes: map[string]string{"license_active": "true"}},
		))

		adapter.Evaluate(s.ctx, s.request)
		s.Equal("true", backend.seen.Attributes["on_shift"])
		s.Equal("true", backend.seen.Attributes["license_active"])
	})

	s.Run("source failure denies", func() {
		backend := &stubBackend{decision: Decision{Effect: EffectPermit}}
		adapter := s.adapter(backend, WithAttributeSources(
			&stubSource{name: "schedule", err: errors.New("registry down")},
		))

		decision := adapter.Evaluate(s.ctx, s.request)
		s.Equal(EffectDeny, decision.Effect)
		s.Equal(ReasonEvaluationError, decision.ReasonCode)
		s.Zero(backend.calls, "backend never consulted on missing evidence")
	})
}

type recordingBackend struct {
	seen Request
}

func (b *recordingBackend) Evaluate(_ context.Context, req Request) (Decision, error) {
	b.seen = req
	return Decision{Effect: EffectPermit}, nil
}
