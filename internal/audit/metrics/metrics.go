package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for audit operations.
type Metrics struct {
	EventsAppended *prometheus.CounterVec
	AppendFailures prometheus.Counter
	AppendLatency  prometheus.Histogram
}

// New registers and returns audit metrics collectors.
func New() *Metrics {
	return &Metrics{
		EventsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_audit_events_total",
			Help: "Total number of audit events appended, labeled by action",
		}, []string{"action"}),
		AppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_audit_append_failures_total",
			Help: "Total number of audit append failures (each fails its triggering operation)",
		}),
		AppendLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodia_audit_append_latency_seconds",
			Help:    "Latency of audit append operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementEventsAppended(action string) {
	m.EventsAppended.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementAppendFailures() {
	m.AppendFailures.Inc()
}

func (m *Metrics) ObserveAppendLatency(seconds float64) {
	m.AppendLatency.Observe(seconds)
}
