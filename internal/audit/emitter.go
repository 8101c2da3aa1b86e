package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"clinicore/internal/platform/metrics"
	"clinicore/pkg/requestcontext"
)

// Store is an optional append-only destination kept alongside the sink for
// compliance queries.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emitter ships audit events best-effort. A failing sink never propagates to
// the caller: the event and the emission failure are written synchronously to
// the fallback writer instead, so audit loss is always at least observable.
type Emitter struct {
	sink    Sink
	store   Store
	metrics *metrics.Metrics

	fallbackMu sync.Mutex
	fallback   io.Writer
}

type Option func(*Emitter)

// WithStore adds an append-only store as a second destination.
func WithStore(store Store) Option {
	return func(e *Emitter) { e.store = store }
}

// WithFallback overrides the last-resort sink, process standard error by
// default.
func WithFallback(w io.Writer) Option {
	return func(e *Emitter) { e.fallback = w }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Emitter) { e.metrics = m }
}

func NewEmitter(sink Sink, opts ...Option) *Emitter {
	e := &Emitter{sink: sink, fallback: os.Stderr}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit maps the event severity to a sink level and ships it. Best-effort:
// every failure path ends in the fallback writer, never in the caller.
func (e *Emitter) Emit(ctx context.Context, event Event) {
	if event.Context.Timestamp.IsZero() {
		event.Context.Timestamp = requestcontext.Now(ctx)
	}

	meta := make(map[string]any, len(event.Payload)+5)
	for k, v := range event.Payload {
		meta[k] = v
	}
	meta["tenant_id"] = event.Context.TenantID.String()
	meta["actor_id"] = event.Context.ActorID.String()
	meta["trace_id"] = event.Context.TraceID
	meta["severity"] = string(event.Severity)
	meta["result"] = string(event.Result)

	var err error
	switch event.Severity {
	case SeverityInfo:
		err = e.sink.Info(ctx, string(event.Type), string(event.Type), meta)
	case SeverityWarning:
		err = e.sink.Warn(ctx, string(event.Type), string(event.Type), meta)
	default:
		// ERROR and CRITICAL both land on the error level; the severity
		// attribute keeps them distinguishable downstream.
		err = e.sink.Error(ctx, string(event.Type), string(event.Type), meta)
	}
	e.metrics.IncrementAuditEmitted(string(event.Severity))

	if err != nil {
		e.writeFallback(event, fmt.Errorf("sink: %w", err))
	}

	if e.store != nil {
		if storeErr := e.store.Append(ctx, event); storeErr != nil {
			e.writeFallback(event, fmt.Errorf("store: %w", storeErr))
		}
	}
}

// writeFallback records both the original event and the emission failure on
// the last-resort writer. Synchronous on purpose; if this line is lost too,
// nothing softer would have survived either.
func (e *Emitter) writeFallback(event Event, cause error) {
	e.metrics.IncrementAuditFallback()

	e.fallbackMu.Lock()
	defer e.fallbackMu.Unlock()
	fmt.Fprintf(e.fallback,
		"audit fallback: type=%s severity=%s result=%s tenant=%s actor=%s trace=%s emit_error=%v\n",
		event.Type, event.Severity, event.Result,
		event.Context.TenantID, event.Context.ActorID, event.Context.TraceID,
		cause,
	)
}
