package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent ledger operations.
type Metrics struct {
	ConsentsRecorded   *prometheus.CounterVec
	ConsentChecks      *prometheus.CounterVec
	HistoryLengthHisto prometheus.Histogram
}

// New registers and returns consent metrics collectors.
func New() *Metrics {
	return &Metrics{
		ConsentsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_consents_recorded_total",
			Help: "Total number of consent records appended, labeled by type and decision",
		}, []string{"type", "decision"}),
		ConsentChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_consent_checks_total",
			Help: "Total number of consent freshness checks, labeled by type and outcome",
		}, []string{"type", "outcome"}),
		HistoryLengthHisto: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodia_consent_history_length",
			Help:    "Distribution of consent history lengths per (subject, type)",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
	}
}

func (m *Metrics) IncrementRecorded(ctype string, granted bool) {
	decision := "revoked"
	if granted {
		decision = "granted"
	}
	m.ConsentsRecorded.WithLabelValues(ctype, decision).Inc()
}

func (m *Metrics) IncrementCheck(ctype string, fresh bool) {
	outcome := "stale"
	if fresh {
		outcome = "fresh"
	}
	m.ConsentChecks.WithLabelValues(ctype, outcome).Inc()
}

func (m *Metrics) ObserveHistoryLength(n int) {
	m.HistoryLengthHisto.Observe(float64(n))
}
