// Package metrics holds the kernel-wide Prometheus metrics. Module-specific
// metrics (policy evaluation) live next to their module.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for write models and the audit emitter.
// All methods are nil-safe so services can treat metrics as optional wiring.
type Metrics struct {
	// Write outcomes by entity and outcome ("success" or the error code).
	WriteOutcomes *prometheus.CounterVec

	// Authority rejections by code, before any store access.
	AuthorityRejections *prometheus.CounterVec

	// Audit events emitted by severity.
	AuditEmitted *prometheus.CounterVec

	// Last-resort fallback writes; every increment is a lost-or-degraded
	// audit delivery worth alerting on.
	AuditFallbackWrites prometheus.Counter
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return &Metrics{
		WriteOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clinicore_write_outcomes_total",
			Help: "Write model outcomes by entity and outcome code",
		}, []string{"entity", "outcome"}),

		AuthorityRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clinicore_authority_rejections_total",
			Help: "Writes rejected before store access by authority code",
		}, []string{"code"}),

		AuditEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clinicore_audit_events_total",
			Help: "Audit events emitted by severity",
		}, []string{"severity"}),

		AuditFallbackWrites: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clinicore_audit_fallback_writes_total",
			Help: "Audit events that fell back to the last-resort sink",
		}),
	}
}

// IncrementWriteOutcome records a write model result.
func (m *Metrics) IncrementWriteOutcome(entity, outcome string) {
	if m != nil {
		m.WriteOutcomes.WithLabelValues(entity, outcome).Inc()
	}
}

// IncrementAuthorityRejection records a fail-closed authority rejection.
func (m *Metrics) IncrementAuthorityRejection(code string) {
	if m != nil {
		m.AuthorityRejections.WithLabelValues(code).Inc()
	}
}

// IncrementAuditEmitted records an emitted audit event.
func (m *Metrics) IncrementAuditEmitted(severity string) {
	if m != nil {
		m.AuditEmitted.WithLabelValues(severity).Inc()
	}
}

// IncrementAuditFallback records a fallback write.
func (m *Metrics) IncrementAuditFallback() {
	if m != nil {
		m.AuditFallbackWrites.Inc()
	}
}
