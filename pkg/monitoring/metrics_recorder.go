package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRecorder provides a unified interface for recording metrics. All four
// observability components report through it; it is the engine's metrics sink.
type MetricsRecorder struct {
	registry prometheus.Registerer

	// Business operation metrics.
	businessOperations *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec

	// Error and availability metrics.
	errorCounts  *prometheus.CounterVec
	availability *prometheus.GaugeVec

	// SLI/SLO metrics.
	sloViolations   *prometheus.CounterVec
	sliValues       *prometheus.GaugeVec
	sloCompliance   *prometheus.GaugeVec
	errorBudgetBurn *prometheus.GaugeVec

	// Component latency and throughput metrics.
	componentLatency *prometheus.HistogramVec
	throughput       *prometheus.GaugeVec

	// Alert metrics.
	alertCounts *prometheus.CounterVec
}

// MetricsConfig holds configuration for metrics recording.
type MetricsConfig struct {
	Namespace string
	Subsystem string
	Registry  prometheus.Registerer
}

// NewMetricsRecorder creates a new metrics recorder.
func NewMetricsRecorder(config *MetricsConfig) *MetricsRecorder {
	if config == nil {
		config = &MetricsConfig{
			Namespace: "autoweave",
			Subsystem: "observability",
			Registry:  prometheus.DefaultRegisterer,
		}
	}

	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}

	mr := &MetricsRecorder{registry: config.Registry}
	mr.initPrometheusMetrics(config.Namespace, config.Subsystem)

	return mr
}

// initPrometheusMetrics initializes all Prometheus metrics.
func (mr *MetricsRecorder) initPrometheusMetrics(namespace, subsystem string) {
	mr.businessOperations = promauto.With(mr.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "business_operations_total",
			Help:      "Total number of business operations recorded",
		},
		[]string{"operation", "tenant_id"},
	)

	mr.operationDuration = promauto.With(mr.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operation_duration_seconds",
			Help:      "Duration of traced operations",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"component", "operation", "status"},
	)

	mr.errorCounts = promauto.With(mr.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors by component and type",
		},
		[]string{"component", "error_type", "severity"},
	)

	mr.availability = promauto.With(mr.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "component_availability",
			Help:      "Component availability (1 = available, 0 = unavailable)",
		},
		[]string{"component"},
	)

	mr.sloViolations = promauto.With(mr.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "slo_violations_total",
			Help:      "Total number of SLO violations",
		},
		[]string{"component", "slo", "severity"},
	)

	mr.sliValues = promauto.With(mr.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sli_value",
			Help:      "Latest evaluated SLI value",
		},
		[]string{"sli", "component"},
	)

	mr.sloCompliance = promauto.With(mr.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "slo_compliance_ratio",
			Help:      "Current SLO compliance as a fraction of target",
		},
		[]string{"slo"},
	)

	mr.errorBudgetBurn = promauto.With(mr.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "error_budget_burn_rate",
			Help:      "Rate at which the SLO error budget is being consumed",
		},
		[]string{"slo"},
	)

	mr.componentLatency = promauto.With(mr.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "component_latency_seconds",
			Help:      "Latency of component trace segments",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"component", "operation"},
	)

	mr.throughput = promauto.With(mr.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "throughput_ops_per_second",
			Help:      "Observed operation throughput",
		},
		[]string{"component", "operation"},
	)

	mr.alertCounts = promauto.With(mr.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "alerts_total",
			Help:      "Total number of alerts fired",
		},
		[]string{"severity", "component"},
	)
}

// RecordBusinessOperation records a completed business operation.
func (mr *MetricsRecorder) RecordBusinessOperation(name, tenantID string, attrs map[string]string) {
	mr.businessOperations.WithLabelValues(name, tenantID).Inc()
}

// RecordOperationDuration records the duration of a traced operation.
func (mr *MetricsRecorder) RecordOperationDuration(component, operation, status string, duration time.Duration) {
	mr.operationDuration.WithLabelValues(component, operation, status).Observe(duration.Seconds())
}

// RecordError records an error occurrence for a component.
func (mr *MetricsRecorder) RecordError(component, errorType string, severity AlertSeverity) {
	mr.errorCounts.WithLabelValues(component, errorType, string(severity)).Inc()
}

// RecordAvailability records whether a component is currently available.
func (mr *MetricsRecorder) RecordAvailability(component string, available bool) {
	value := 0.0
	if available {
		value = 1.0
	}
	mr.availability.WithLabelValues(component).Set(value)
}

// RecordSLOViolation records a violation of a service level objective.
func (mr *MetricsRecorder) RecordSLOViolation(component, sloName string, severity AlertSeverity) {
	mr.sloViolations.WithLabelValues(component, sloName, string(severity)).Inc()
}

// RecordSLIValue records the latest evaluated value of an SLI.
func (mr *MetricsRecorder) RecordSLIValue(sliName, component string, value float64) {
	mr.sliValues.WithLabelValues(sliName, component).Set(value)
}

// RecordSLOCompliance records the current compliance level of an SLO.
func (mr *MetricsRecorder) RecordSLOCompliance(sloName string, compliance float64) {
	mr.sloCompliance.WithLabelValues(sloName).Set(compliance)
}

// RecordErrorBudgetBurn records the current burn rate of an SLO error budget.
func (mr *MetricsRecorder) RecordErrorBudgetBurn(sloName string, burnRate float64) {
	mr.errorBudgetBurn.WithLabelValues(sloName).Set(burnRate)
}

// RecordComponentLatency records the latency of a component trace segment.
func (mr *MetricsRecorder) RecordComponentLatency(component, operation string, latency time.Duration) {
	mr.componentLatency.WithLabelValues(component, operation).Observe(latency.Seconds())
}

// RecordThroughput records observed throughput for a component operation.
func (mr *MetricsRecorder) RecordThroughput(component, operation string, opsPerSecond float64) {
	mr.throughput.WithLabelValues(component, operation).Set(opsPerSecond)
}

// RecordAlert records an alert being fired.
func (mr *MetricsRecorder) RecordAlert(severity AlertSeverity, component string) {
	mr.alertCounts.WithLabelValues(string(severity), component).Inc()
}

// GetRegistry returns the underlying Prometheus registerer.
func (mr *MetricsRecorder) GetRegistry() prometheus.Registerer {
	return mr.registry
}
