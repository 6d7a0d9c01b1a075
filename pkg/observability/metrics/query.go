package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QueryMetrics counts and times query engine operations by outcome
// (ok, sentinel, error). It satisfies query.Observer.
type QueryMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewQueryMetrics creates the query collectors and registers them on reg.
func NewQueryMetrics(reg *Registry) *QueryMetrics {
	m := &QueryMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docquery_query_operations_total",
				Help: "Query engine operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docquery_query_duration_seconds",
				Help:    "Query engine operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	reg.MustRegister(m.operations, m.duration)
	return m
}

// ObserveQuery records one finished operation.
func (m *QueryMetrics) ObserveQuery(operation, outcome string, duration time.Duration) {
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}
