package opendata

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the Open Data client.
type Metrics struct {
	// Fetch metrics
	FetchTotal    *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	FetchRetries  *prometheus.CounterVec

	// Circuit breaker metrics
	BreakerTransitions *prometheus.CounterVec

	// Rate limiter metrics
	RateWaits prometheus.Counter
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// newMetrics registers the collectors. Registration happens once per process;
// every Client shares the same set.
func newMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			FetchTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "opendata_fetch_total",
					Help: "Total fetches against NYC Open Data endpoints",
				},
				[]string{"dataset", "outcome"}, // outcome: ok, network, rate, bad_query, remote, decode, deadline
			),

			FetchDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "opendata_fetch_duration_seconds",
					Help:    "Duration of individual fetch attempts",
					Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
				},
				[]string{"dataset"},
			),

			FetchRetries: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "opendata_fetch_retries_total",
					Help: "Retry attempts, by reason",
				},
				[]string{"dataset", "reason"}, // reason: rate, timeout, simplified_select
			),

			BreakerTransitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "opendata_breaker_transitions_total",
					Help: "Circuit breaker state transitions",
				},
				[]string{"dataset", "to"},
			),

			RateWaits: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "opendata_rate_limiter_waits_total",
					Help: "Times a fetch parked waiting for a rate limiter token",
				},
			),
		}
	})
	return sharedMetrics
}

// RecordFetch records one completed fetch attempt.
func (m *Metrics) RecordFetch(dataset, outcome string, seconds float64) {
	m.FetchTotal.WithLabelValues(dataset, outcome).Inc()
	m.FetchDuration.WithLabelValues(dataset).Observe(seconds)
}

// RecordRetry records a retry and why it happened.
func (m *Metrics) RecordRetry(dataset, reason string) {
	m.FetchRetries.WithLabelValues(dataset, reason).Inc()
}

// RecordBreakerTransition records a circuit state change.
func (m *Metrics) RecordBreakerTransition(dataset, to string) {
	m.BreakerTransitions.WithLabelValues(dataset, to).Inc()
}
