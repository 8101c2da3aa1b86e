package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the policy module.
type Metrics struct {
	// Decision outcomes by effect and resource
	DecisionOutcome *prometheus.CounterVec

	// Attribute gathering latencies by source
	EvidenceLatency *prometheus.HistogramVec

	// Overall evaluation latency including attribute gathering
	EvaluateLatency prometheus.Histogram

	// Backend failures converted into DENY
	EvaluationFailures prometheus.Counter
}

// New creates a Metrics instance with all policy module metrics registered.
func New() *Metrics {
	return &Metrics{
		DecisionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clinicore_policy_decisions_total",
			Help: "Total policy decisions by effect and resource",
		}, []string{"effect", "resource"}),

		EvidenceLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clinicore_policy_evidence_duration_seconds",
			Help:    "Duration of attribute gathering by source",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}),

		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "clinicore_policy_evaluate_duration_seconds",
			Help:    "Duration of full policy evaluation including attribute gathering",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		EvaluationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clinicore_policy_evaluation_failures_total",
			Help: "Total backend evaluation failures synthesized into DENY",
		}),
	}
}

// IncrementOutcome records a decision outcome.
func (m *Metrics) IncrementOutcome(effect, resource string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(effect, resource).Inc()
	}
}

// ObserveEvidenceLatency records the duration of one attribute source fetch.
func (m *Metrics) ObserveEvidenceLatency(source string, d time.Duration) {
	if m != nil {
		m.EvidenceLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// IncrementEvaluationFailure records a backend failure turned into DENY.
func (m *Metrics) IncrementEvaluationFailure() {
	if m != nil {
		m.EvaluationFailures.Inc()
	}
}
