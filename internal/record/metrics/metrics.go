// Package metrics exposes Prometheus instrumentation for the record
// lifecycle service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the record lifecycle collectors.
type Metrics struct {
	operationsTotal    *prometheus.CounterVec
	accessDecisions    *prometheus.CounterVec
	integrityFailures  prometheus.Counter
	decryptionFailures prometheus.Counter
	fieldsEncrypted    prometheus.Counter
	operationLatency   *prometheus.HistogramVec
	purgedRecords      prometheus.Counter
}

// New creates and registers record lifecycle metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		operationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_record_operations_total",
			Help: "Record lifecycle operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		accessDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_record_access_decisions_total",
			Help: "Access evaluation decisions by outcome reason",
		}, []string{"reason"}),
		integrityFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_record_integrity_failures_total",
			Help: "Reads denied because the stored integrity hash did not match",
		}),
		decryptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_record_decryption_failures_total",
			Help: "Field decryptions that failed authentication",
		}),
		fieldsEncrypted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_record_fields_encrypted_total",
			Help: "Protected fields sealed during create and update",
		}),
		operationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "custodia_record_operation_duration_seconds",
			Help:    "Record lifecycle operation latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}, []string{"operation"}),
		purgedRecords: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_record_purges_total",
			Help: "Records whose protected content was purged after retention expiry",
		}),
	}
}

func (m *Metrics) IncrementOperation(operation, outcome string) {
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) IncrementAccessDecision(reason string) {
	m.accessDecisions.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementIntegrityFailures() {
	m.integrityFailures.Inc()
}

func (m *Metrics) IncrementDecryptionFailures() {
	m.decryptionFailures.Inc()
}

func (m *Metrics) AddFieldsEncrypted(n int) {
	m.fieldsEncrypted.Add(float64(n))
}

func (m *Metrics) ObserveOperationDuration(operation string, seconds float64) {
	m.operationLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *Metrics) IncrementPurged() {
	m.purgedRecords.Inc()
}
