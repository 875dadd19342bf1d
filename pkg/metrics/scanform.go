package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded for scan form creation.
const (
	OutcomeCreated  = "created"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Per-order persistence results.
const (
	PersistOK      = "ok"
	PersistFailed  = "failed"
	PersistSkipped = "skipped"
)

// ScanFormMetrics records scan form creation and fan-out persistence.
type ScanFormMetrics struct {
	duration *prometheus.HistogramVec
	creates  *prometheus.CounterVec
	persists *prometheus.CounterVec
	labels   prometheus.Counter
}

// NewScanFormMetrics registers the scan form metrics on the provided registerer.
func NewScanFormMetrics(reg prometheus.Registerer) *ScanFormMetrics {
	if reg == nil {
		return &ScanFormMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scanform_create_duration_seconds",
		Help:    "Duration of scan form create requests including the remote call.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	creates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scanform_create_total",
		Help: "Scan form create attempts by outcome.",
	}, []string{"outcome"})
	persists := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scanform_order_persist_total",
		Help: "Per-order scan form writes by result.",
	}, []string{"result"})
	labels := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scanform_labels_manifested_total",
		Help: "Labels included in successfully created scan forms.",
	})
	reg.MustRegister(duration, creates, persists, labels)
	return &ScanFormMetrics{
		duration: duration,
		creates:  creates,
		persists: persists,
		labels:   labels,
	}
}

// ObserveCreate records one create attempt and its duration.
func (m *ScanFormMetrics) ObserveCreate(outcome string, duration time.Duration) {
	if m == nil || m.creates == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.creates.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// IncPersist counts one per-order write.
func (m *ScanFormMetrics) IncPersist(result string) {
	if m == nil || m.persists == nil {
		return
	}
	m.persists.WithLabelValues(normalizeLabel(result)).Inc()
}

// AddLabels counts labels placed on a created scan form.
func (m *ScanFormMetrics) AddLabels(n int) {
	if m == nil || m.labels == nil || n <= 0 {
		return
	}
	m.labels.Add(float64(n))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
