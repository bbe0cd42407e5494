package txretry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels the terminal state of a retry scope.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeFatal     Outcome = "fatal"
	OutcomeExhausted Outcome = "exhausted"
)

// MetricsRecorder observes retry-loop activity. Implementations must be
// safe for concurrent use.
type MetricsRecorder interface {
	// ObserveAttempt records that a transaction attempt began.
	ObserveAttempt(ctx context.Context)
	// ObserveRetry records that a previous attempt was abandoned and the
	// loop is going around again.
	ObserveRetry(ctx context.Context)
	// ObserveOutcome records the terminal state of the retry scope.
	ObserveOutcome(ctx context.Context, outcome Outcome)
}

// PrometheusRecorder publishes retry-loop counters to a Prometheus
// registry.
type PrometheusRecorder struct {
	attempts prometheus.Counter
	retries  prometheus.Counter
	outcomes *prometheus.CounterVec
}

var _ MetricsRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder constructs a recorder and registers its collectors
// with reg. A nil reg falls back to the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	rec := &PrometheusRecorder{
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "txretry_attempts_total",
			Help: "Transaction attempts started by the retry controller.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "txretry_retries_total",
			Help: "Attempts abandoned after a retryable conflict.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txretry_outcomes_total",
			Help: "Terminal outcomes of retry scopes.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(rec.attempts, rec.retries, rec.outcomes)
	return rec
}

// ObserveAttempt implements MetricsRecorder.
func (r *PrometheusRecorder) ObserveAttempt(context.Context) {
	r.attempts.Inc()
}

// ObserveRetry implements MetricsRecorder.
func (r *PrometheusRecorder) ObserveRetry(context.Context) {
	r.retries.Inc()
}

// ObserveOutcome implements MetricsRecorder.
func (r *PrometheusRecorder) ObserveOutcome(_ context.Context, outcome Outcome) {
	r.outcomes.WithLabelValues(string(outcome)).Inc()
}
