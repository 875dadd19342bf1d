package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestScanFormMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewScanFormMetrics(reg)
	metrics.ObserveCreate(OutcomeCreated, 250*time.Millisecond)
	metrics.ObserveCreate(OutcomeRejected, 10*time.Millisecond)
	metrics.IncPersist(PersistOK)
	metrics.IncPersist(PersistOK)
	metrics.IncPersist(PersistFailed)
	metrics.AddLabels(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "scanform_create_total", "outcome", OutcomeCreated); err != nil {
		t.Fatalf("fetch created: %v", err)
	} else if got != 1 {
		t.Fatalf("expected created=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "scanform_order_persist_total", "result", PersistOK); err != nil {
		t.Fatalf("fetch persist ok: %v", err)
	} else if got != 2 {
		t.Fatalf("expected persist ok=2, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "scanform_create_duration_seconds", "outcome", OutcomeCreated); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	labels := findMetricFamily(mfs, "scanform_labels_manifested_total")
	if labels == nil || labels.GetMetric()[0].GetCounter().GetValue() != 3 {
		t.Fatalf("expected 3 manifested labels")
	}
}

func TestScanFormMetricsNilSafe(t *testing.T) {
	var metrics *ScanFormMetrics
	metrics.ObserveCreate(OutcomeError, time.Second)
	metrics.IncPersist(PersistFailed)
	metrics.AddLabels(1)

	unregistered := NewScanFormMetrics(nil)
	unregistered.ObserveCreate(OutcomeError, time.Second)
	unregistered.IncPersist("")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
