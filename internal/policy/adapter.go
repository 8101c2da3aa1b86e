package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clinicore/internal/audit"
	"clinicore/internal/policy/metrics"
	"clinicore/pkg/requestcontext"
)

// Backend is the pluggable policy evaluator the adapter wraps.
type Backend interface {
	Evaluate(ctx context.Context, req Request) (Decision, error)
}

// AuditEmitter is satisfied by audit.Emitter.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event)
}

// Adapter wraps a Backend with fail-closed semantics. Evaluate never returns
// an error and never panics: every backend error or panic is synthesized
// into DENY with reason EVALUATION_ERROR, and exactly one CRITICAL
// policy_evaluation_failure audit event is attempted for it. Audit emission
// is fire and forget; emitter failures land in its own fallback sink and
// never change the decision.
type Adapter struct {
	backend Backend
	auditor AuditEmitter
	sources []AttributeSource
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Adapter)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

func WithAuditEmitter(auditor AuditEmitter) Option {
	return func(a *Adapter) { a.auditor = auditor }
}

func WithAttributeSources(sources ...AttributeSource) Option {
	return func(a *Adapter) { a.sources = append(a.sources, sources...) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

func NewAdapter(backend Backend, opts ...Option) (*Adapter, error) {
	if backend == nil {
		return nil, fmt.Errorf("policy backend is required")
	}
	a := &Adapter{backend: backend}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Evaluate answers the authorization question. Absence of an explicit
// PERMIT, for any reason at all, is a DENY.
func (a *Adapter) Evaluate(ctx context.Context, req Request) Decision {
	start := time.Now()
	defer func() {
		a.metrics.ObserveEvaluateLatency(time.Since(start))
	}()

	attributes, err := a.gatherAttributes(ctx, req)
	if err != nil {
		return a.failClosed(ctx, req, fmt.Errorf("attribute gathering: %w", err))
	}
	req.Attributes = attributes

	decision, err := a.evaluateBackend(ctx, req)
	if err != nil {
		return a.failClosed(ctx, req, err)
	}
	if decision.Effect != EffectPermit {
		decision.Effect = EffectDeny
	}
	if decision.Timestamp.IsZero() {
		decision.Timestamp = requestcontext.Now(ctx)
	}

	a.metrics.IncrementOutcome(string(decision.Effect), req.Resource)
	a.emitDecision(ctx, req, decision)
	return decision
}

// evaluateBackend isolates the backend call so a panic inside it is caught
// here and nowhere else.
func (a *Adapter) evaluateBackend(ctx context.Context, req Request) (decision Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return a.backend.Evaluate(ctx, req)
}

// failClosed synthesizes the DENY and attempts the CRITICAL audit event. The
// error reaches the audit payload as a message string only.
func (a *Adapter) failClosed(ctx context.Context, req Request, cause error) Decision {
	a.metrics.IncrementEvaluationFailure()
	a.metrics.IncrementOutcome(string(EffectDeny), req.Resource)
	if a.logger != nil {
		a.logger.ErrorContext(ctx, "policy evaluation failed, denying",
			"resource", req.Resource,
			"action", req.Action,
			"error", cause,
		)
	}

	decision := Decision{
		Effect:     EffectDeny,
		ReasonCode: ReasonEvaluationError,
		Timestamp:  requestcontext.Now(ctx),
		Metadata:   map[string]string{"error": cause.Error()},
	}

	if a.auditor != nil {
		a.auditor.Emit(ctx, audit.Event{
			Context: audit.EventContext{
				TenantID:  req.Context.TenantID,
				ActorID:   req.Context.ActorID,
				TraceID:   req.Context.TraceID,
				Timestamp: requestcontext.Now(ctx),
			},
			Type:     audit.EventPolicyEvaluationFailure,
			Severity: audit.SeverityCritical,
			Result:   audit.ResultFailure,
			Payload: map[string]any{
				"subject":  req.Subject,
				"action":   req.Action,
				"resource": req.Resource,
				"error":    cause.Error(),
			},
		})
	}
	return decision
}

func (a *Adapter) emitDecision(ctx context.Context, req Request, decision Decision) {
	if a.auditor == nil {
		return
	}
	result := audit.ResultSuccess
	if decision.Effect == EffectDeny {
		result = audit.ResultDenied
	}
	a.auditor.Emit(ctx, audit.Event{
		Context: audit.EventContext{
			TenantID:  req.Context.TenantID,
			ActorID:   req.Context.ActorID,
			TraceID:   req.Context.TraceID,
			Timestamp: requestcontext.Now(ctx),
		},
		Type:     audit.EventPolicyDecision,
		Severity: audit.SeverityInfo,
		Result:   result,
		Payload: map[string]any{
			"subject":  req.Subject,
			"action":   req.Action,
			"resource": req.Resource,
			"effect":   string(decision.Effect),
			"reason":   decision.ReasonCode,
		},
	})
}
