package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newTestRecorder(t *testing.T) (*MetricsRecorder, *prometheus.Registry) {
	t.Helper()

	registry := prometheus.NewRegistry()
	recorder := NewMetricsRecorder(&MetricsConfig{
		Namespace: "test",
		Subsystem: "metrics",
		Registry:  registry,
	})
	return recorder, registry
}

func TestRecordAvailabilityGauge(t *testing.T) {
	recorder, _ := newTestRecorder(t)

	recorder.RecordAvailability("usb-daemon", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.availability.WithLabelValues("usb-daemon")))

	recorder.RecordAvailability("usb-daemon", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(recorder.availability.WithLabelValues("usb-daemon")))
}

func TestRecordErrorIncrements(t *testing.T) {
	recorder, _ := newTestRecorder(t)

	recorder.RecordError("plugin-loader", "load_failure", SeverityHigh)
	recorder.RecordError("plugin-loader", "load_failure", SeverityHigh)

	counter := recorder.errorCounts.WithLabelValues("plugin-loader", "load_failure", "high")
	assert.Equal(t, 2.0, testutil.ToFloat64(counter))
}

func TestRecordSLOMetrics(t *testing.T) {
	recorder, _ := newTestRecorder(t)

	recorder.RecordSLOViolation("usb-daemon", "usb-availability", SeverityCritical)
	recorder.RecordSLIValue("usb-event-latency", "usb-daemon", 42.5)
	recorder.RecordSLOCompliance("usb-event-latency-slo", 0.97)
	recorder.RecordErrorBudgetBurn("usb-event-latency-slo", 0.3)

	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.sloViolations.WithLabelValues("usb-daemon", "usb-availability", "critical")))
	assert.Equal(t, 42.5, testutil.ToFloat64(recorder.sliValues.WithLabelValues("usb-event-latency", "usb-daemon")))
	assert.Equal(t, 0.97, testutil.ToFloat64(recorder.sloCompliance.WithLabelValues("usb-event-latency-slo")))
	assert.Equal(t, 0.3, testutil.ToFloat64(recorder.errorBudgetBurn.WithLabelValues("usb-event-latency-slo")))
}

func TestHistogramsObserve(t *testing.T) {
	recorder, registry := newTestRecorder(t)

	recorder.RecordOperationDuration("trace", "device-attach", "success", 50*time.Millisecond)
	recorder.RecordComponentLatency("usb-daemon", "detect", 5*time.Millisecond)

	families, err := registry.Gather()
	assert.NoError(t, err)

	names := make(map[string]bool)
	for _, family := range families {
		names[family.GetName()] = true
	}
	assert.True(t, names["test_metrics_operation_duration_seconds"])
	assert.True(t, names["test_metrics_component_latency_seconds"])
}

func TestNilConfigUsesDefaults(t *testing.T) {
	// The default registerer is process-global; registering twice with the
	// same names would panic, so give the recorder its own registry but
	// leave namespace and subsystem unset.
	recorder := NewMetricsRecorder(&MetricsConfig{Registry: prometheus.NewRegistry()})
	assert.NotNil(t, recorder.GetRegistry())
}
