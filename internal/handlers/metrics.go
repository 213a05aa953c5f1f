package handlers

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/propply/backend/internal/compliance"
)

// Metrics holds Prometheus metrics for the API surface.
type Metrics struct {
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram
	SyncsTotal  *prometheus.CounterVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// apiMetrics registers the collectors. Registration happens once per
// process; every handler shares the same set.
func apiMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			RunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "compliance_runs_total",
					Help: "Compliance runs served, by outcome",
				},
				[]string{"outcome"}, // full, partial, failed
			),

			RunDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "compliance_run_duration_seconds",
					Help:    "End-to-end duration of compliance runs",
					Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
				},
			),

			SyncsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "compliance_syncs_total",
					Help: "Persistence passes, by result",
				},
				[]string{"result"}, // ok, error
			),
		}
	})
	return sharedMetrics
}

// RecordRun records one completed run.
func (m *Metrics) RecordRun(dataSources string, seconds float64) {
	outcome := "full"
	switch dataSources {
	case compliance.DataSourcesPartial:
		outcome = "partial"
	case compliance.DataSourcesFailed:
		outcome = "failed"
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(seconds)
}

// RecordSync records one persistence pass.
func (m *Metrics) RecordSync(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.SyncsTotal.WithLabelValues(result).Inc()
}
