package audit

import (
	"context"
	"log/slog"
)

// Sink is the generic structured-logging collaborator the emitter ships to.
// Implementations must be safe for concurrent use; the emitter holds no
// per-call state.
type Sink interface {
	Info(ctx context.Context, event, msg string, meta map[string]any) error
	Warn(ctx context.Context, event, msg string, meta map[string]any) error
	Error(ctx context.Context, event, msg string, meta map[string]any) error
}

// SlogSink adapts a *slog.Logger to the Sink interface. Records carry the
// log_type=audit attribute so audit lines are separable from operational logs
// downstream.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) log(ctx context.Context, level slog.Level, event, msg string, meta map[string]any) error {
	args := make([]any, 0, 2*len(meta)+4)
	args = append(args, "event", event, "log_type", "audit")
	for k, v := range meta {
		args = append(args, k, v)
	}
	s.logger.Log(ctx, level, msg, args...)
	return nil
}

func (s *SlogSink) Info(ctx context.Context, event, msg string, meta map[string]any) error {
	return s.log(ctx, slog.LevelInfo, event, msg, meta)
}

func (s *SlogSink) Warn(ctx context.Context, event, msg string, meta map[string]any) error {
	return s.log(ctx, slog.LevelWarn, event, msg, meta)
}

func (s *SlogSink) Error(ctx context.Context, event, msg string, meta map[string]any) error {
	return s.log(ctx, slog.LevelError, event, msg, meta)
}
