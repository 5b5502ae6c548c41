package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/GontrandL/autoweave-observability/pkg/logging"
)

// TraceEvent is a timestamped annotation attached to a component segment.
type TraceEvent struct {
	Name       string            `json:"name"`
	Timestamp  time.Time         `json:"timestamp"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ComponentTrace is one component's contribution to a cross-component trace.
// SpanID is synthesized on append; ParentSpanID is the root span of the
// parent trace when one exists.
type ComponentTrace struct {
	SpanID       string            `json:"span_id"`
	ParentSpanID string            `json:"parent_span_id,omitempty"`
	Component    string            `json:"component"`
	Operation    string            `json:"operation"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	Duration     time.Duration     `json:"duration"`
	Status       TraceStatus       `json:"status"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Events       []TraceEvent      `json:"events,omitempty"`
}

// CrossComponentTrace is one logical operation's record, assembled from
// independently reported component segments.
type CrossComponentTrace struct {
	TraceID      string            `json:"trace_id"`
	Operation    string            `json:"operation"`
	TenantID     string            `json:"tenant_id,omitempty"`
	RequestID    string            `json:"request_id,omitempty"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	Duration     time.Duration     `json:"duration"`
	Status       TraceStatus       `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Components   []ComponentTrace  `json:"components"`
	Metadata     map[string]string `json:"metadata,omitempty"`

	span trace.Span
}

// OperationMetrics is a rolling performance summary for one
// (component, operation) pair. Percentiles are EWMA approximations, not exact
// quantiles; the bucket is re-keyed on a fixed cadence.
type OperationMetrics struct {
	Component   string    `json:"component"`
	Operation   string    `json:"operation"`
	P50         float64   `json:"p50_ms"`
	P95         float64   `json:"p95_ms"`
	P99         float64   `json:"p99_ms"`
	ErrorRate   float64   `json:"error_rate"`
	Throughput  float64   `json:"throughput_ops_per_sec"`
	SampleCount int       `json:"sample_count"`
	BucketStart time.Time `json:"bucket_start"`

	errorCount int
}

// PerformanceOptimizationHint flags an operation whose rolling metrics cross
// an analysis threshold.
type PerformanceOptimizationHint struct {
	Component   string        `json:"component"`
	Operation   string        `json:"operation"`
	Kind        string        `json:"kind"`
	Description string        `json:"description"`
	Severity    AlertSeverity `json:"severity"`
	Value       float64       `json:"value"`
	Threshold   float64       `json:"threshold"`
	Timestamp   time.Time     `json:"timestamp"`
}

// TraceCorrelationConfig holds configuration for the trace correlation manager.
type TraceCorrelationConfig struct {
	AnalysisInterval       time.Duration `yaml:"analysis_interval"`
	CleanupInterval        time.Duration `yaml:"cleanup_interval"`
	TraceRetention         time.Duration `yaml:"trace_retention"`
	MetricsBucketDuration  time.Duration `yaml:"metrics_bucket_duration"`
	SlowOperationThreshold time.Duration `yaml:"slow_operation_threshold"`
	ErrorRateThreshold     float64       `yaml:"error_rate_threshold"`
	LowThroughputThreshold float64       `yaml:"low_throughput_threshold"`
}

// DefaultTraceCorrelationConfig returns the default trace correlation
// configuration.
func DefaultTraceCorrelationConfig() *TraceCorrelationConfig {
	return &TraceCorrelationConfig{
		AnalysisInterval:       5 * time.Minute,
		CleanupInterval:        10 * time.Minute,
		TraceRetention:         1 * time.Hour,
		MetricsBucketDuration:  60 * time.Second,
		SlowOperationThreshold: 1000 * time.Millisecond,
		ErrorRateThreshold:     0.05,
		LowThroughputThreshold: 10,
	}
}

// TraceCorrelationManager assembles operation traces from independently
// reported component segments and derives rolling per-operation performance
// metrics and optimization hints.
type TraceCorrelationManager struct {
	config  *TraceCorrelationConfig
	logger  *logging.StructuredLogger
	metrics *MetricsRecorder
	tracer  trace.Tracer

	mu           sync.RWMutex
	activeTraces map[string]*CrossComponentTrace
	opMetrics    map[string]*OperationMetrics
	hints        []PerformanceOptimizationHint

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewTraceCorrelationManager creates a new trace correlation manager. A nil
// tracer falls back to the global otel tracer provider.
func NewTraceCorrelationManager(config *TraceCorrelationConfig, tracer trace.Tracer, logger *logging.StructuredLogger, metrics *MetricsRecorder) *TraceCorrelationManager {
	if config == nil {
		config = DefaultTraceCorrelationConfig()
	}
	if tracer == nil {
		tracer = otel.Tracer("autoweave-observability")
	}

	return &TraceCorrelationManager{
		config:       config,
		logger:       logger.WithComponent("trace-correlation"),
		metrics:      metrics,
		tracer:       tracer,
		activeTraces: make(map[string]*CrossComponentTrace),
		opMetrics:    make(map[string]*OperationMetrics),
	}
}

// Start launches the periodic analysis and cleanup loops. Calling Start while
// running is a no-op.
func (tcm *TraceCorrelationManager) Start(ctx context.Context) {
	tcm.mu.Lock()
	if tcm.running {
		tcm.mu.Unlock()
		tcm.logger.WarnWithContext("Trace correlation manager already running")
		return
	}
	tcm.running = true
	tcm.stopCh = make(chan struct{})
	tcm.mu.Unlock()

	tcm.logger.InfoWithContext("Starting trace correlation manager",
		"analysis_interval", tcm.config.AnalysisInterval,
		"trace_retention", tcm.config.TraceRetention,
	)

	tcm.wg.Add(2)
	go tcm.analysisLoop(ctx)
	go tcm.cleanupLoop(ctx)
}

// Stop tears down the periodic loops. Calling Stop while stopped is a no-op.
func (tcm *TraceCorrelationManager) Stop() {
	tcm.mu.Lock()
	if !tcm.running {
		tcm.mu.Unlock()
		return
	}
	tcm.running = false
	close(tcm.stopCh)
	tcm.mu.Unlock()

	tcm.wg.Wait()
	tcm.logger.InfoWithContext("Trace correlation manager stopped")
}

// StartTrace opens a new cross-component trace. The trace id comes from the
// underlying otel span when it carries one, so cross-process propagation and
// in-memory correlation agree on the identifier.
func (tcm *TraceCorrelationManager) StartTrace(ctx context.Context, operation, tenantID, requestID string, metadata map[string]string) string {
	_, span := tcm.tracer.Start(ctx, operation)

	traceID := uuid.NewString()
	if sc := span.SpanContext(); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}

	tcm.registerTrace(traceID, operation, tenantID, requestID, metadata, span)
	return traceID
}

func (tcm *TraceCorrelationManager) registerTrace(traceID, operation, tenantID, requestID string, metadata map[string]string, span trace.Span) {
	newTrace := &CrossComponentTrace{
		TraceID:   traceID,
		Operation: operation,
		TenantID:  tenantID,
		RequestID: requestID,
		StartTime: time.Now(),
		Status:    TraceStatusSuccess,
		Metadata:  metadata,
		span:      span,
	}

	tcm.mu.Lock()
	tcm.activeTraces[traceID] = newTrace
	tcm.mu.Unlock()

	tcm.logger.DebugWithContext("Trace started",
		"trace_id", traceID,
		"operation", operation,
		"tenant_id", tenantID,
	)
}

// AddComponentTrace appends a component segment to an active trace. A missing
// trace id is tolerated silently; the segment still feeds the rolling
// per-operation metrics, since traces may legitimately have been finished or
// cleaned up before a late segment arrives.
func (tcm *TraceCorrelationManager) AddComponentTrace(traceID, component, operation string, start, end time.Time, status TraceStatus, attributes map[string]string, errorMessage string) {
	duration := end.Sub(start)
	if duration < 0 {
		duration = 0
	}

	tcm.updateOperationMetrics(component, operation, duration, status != TraceStatusSuccess)
	tcm.metrics.RecordComponentLatency(component, operation, duration)

	tcm.mu.Lock()
	defer tcm.mu.Unlock()

	activeTrace, ok := tcm.activeTraces[traceID]
	if !ok {
		tcm.logger.DebugWithContext("Component trace for unknown trace id",
			"trace_id", traceID,
			"component", component,
			"operation", operation,
		)
		return
	}

	parentSpanID := ""
	if activeTrace.span != nil {
		if sc := activeTrace.span.SpanContext(); sc.HasSpanID() {
			parentSpanID = sc.SpanID().String()
		}
	}

	activeTrace.Components = append(activeTrace.Components, ComponentTrace{
		SpanID:       uuid.NewString(),
		ParentSpanID: parentSpanID,
		Component:    component,
		Operation:    operation,
		StartTime:    start,
		EndTime:      end,
		Duration:     duration,
		Status:       status,
		Attributes:   attributes,
		ErrorMessage: errorMessage,
	})

	// First error wins; later successful segments never revert it.
	if status != TraceStatusSuccess && activeTrace.Status == TraceStatusSuccess {
		activeTrace.Status = status
		activeTrace.ErrorMessage = errorMessage
	}
}

// AddTraceEvent attaches an event to the most recently appended segment for
// the given component. Unknown trace ids and components are silent no-ops.
func (tcm *TraceCorrelationManager) AddTraceEvent(traceID, component, name string, attributes map[string]string) {
	tcm.mu.Lock()
	defer tcm.mu.Unlock()

	activeTrace, ok := tcm.activeTraces[traceID]
	if !ok {
		return
	}

	for i := len(activeTrace.Components) - 1; i >= 0; i-- {
		if activeTrace.Components[i].Component == component {
			activeTrace.Components[i].Events = append(activeTrace.Components[i].Events, TraceEvent{
				Name:       name,
				Timestamp:  time.Now(),
				Attributes: attributes,
			})
			return
		}
	}
}

// FinishTrace seals the trace, records completion metrics, and removes it
// from the active set. A second call with the same id returns nil.
func (tcm *TraceCorrelationManager) FinishTrace(traceID string) *CrossComponentTrace {
	tcm.mu.Lock()
	finished, ok := tcm.activeTraces[traceID]
	if ok {
		delete(tcm.activeTraces, traceID)
	}
	tcm.mu.Unlock()

	if !ok {
		return nil
	}

	finished.EndTime = time.Now()
	finished.Duration = finished.EndTime.Sub(finished.StartTime)
	if finished.span != nil {
		finished.span.End()
	}

	tcm.metrics.RecordOperationDuration("trace", finished.Operation, string(finished.Status), finished.Duration)
	tcm.metrics.RecordBusinessOperation(finished.Operation, finished.TenantID, finished.Metadata)
	if finished.Status != TraceStatusSuccess {
		tcm.metrics.RecordError("trace", "trace_"+string(finished.Status), SeverityWarning)
	}

	tcm.logger.DebugWithContext("Trace finished",
		"trace_id", traceID,
		"operation", finished.Operation,
		"status", string(finished.Status),
		"duration_ms", finished.Duration.Milliseconds(),
		"components", len(finished.Components),
	)

	return finished
}

// WithTracing records a success or error segment around fn and returns fn's
// error unchanged. No timeout is imposed on fn.
func (tcm *TraceCorrelationManager) WithTracing(ctx context.Context, traceID, component, operation string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	end := time.Now()

	status := TraceStatusSuccess
	errorMessage := ""
	if err != nil {
		status = TraceStatusError
		errorMessage = err.Error()
	}

	tcm.AddComponentTrace(traceID, component, operation, start, end, status, nil, errorMessage)
	return err
}

// GetActiveTraceCount returns the number of traces not yet finished.
func (tcm *TraceCorrelationManager) GetActiveTraceCount() int {
	tcm.mu.RLock()
	defer tcm.mu.RUnlock()
	return len(tcm.activeTraces)
}

// GetOperationMetrics returns a copy of the current rolling metrics.
func (tcm *TraceCorrelationManager) GetOperationMetrics() []OperationMetrics {
	tcm.mu.RLock()
	defer tcm.mu.RUnlock()

	result := make([]OperationMetrics, 0, len(tcm.opMetrics))
	for _, metrics := range tcm.opMetrics {
		result = append(result, *metrics)
	}
	return result
}

// GetOptimizationHints returns the hints produced by the latest analysis pass.
func (tcm *TraceCorrelationManager) GetOptimizationHints() []PerformanceOptimizationHint {
	tcm.mu.RLock()
	defer tcm.mu.RUnlock()

	result := make([]PerformanceOptimizationHint, len(tcm.hints))
	copy(result, tcm.hints)
	return result
}

func (tcm *TraceCorrelationManager) updateOperationMetrics(component, operation string, duration time.Duration, isError bool) {
	key := component + "/" + operation
	now := time.Now()
	durationMs := float64(duration.Milliseconds())

	tcm.mu.Lock()
	defer tcm.mu.Unlock()

	metrics, ok := tcm.opMetrics[key]
	if !ok || now.Sub(metrics.BucketStart) > tcm.config.MetricsBucketDuration {
		metrics = &OperationMetrics{
			Component:   component,
			Operation:   operation,
			P50:         durationMs,
			P95:         durationMs,
			P99:         durationMs,
			BucketStart: now,
		}
		tcm.opMetrics[key] = metrics
	}

	metrics.SampleCount++
	if isError {
		metrics.errorCount++
	}

	// EWMA approximations: the median tracks every sample, the tail
	// percentiles chase spikes quickly and decay slowly.
	metrics.P50 += (durationMs - metrics.P50) * 0.2
	metrics.P95 = ewmaTail(metrics.P95, durationMs, 0.2, 0.02)
	metrics.P99 = ewmaTail(metrics.P99, durationMs, 0.1, 0.01)

	metrics.ErrorRate = float64(metrics.errorCount) / float64(metrics.SampleCount)
	if elapsed := now.Sub(metrics.BucketStart).Seconds(); elapsed > 0 {
		metrics.Throughput = float64(metrics.SampleCount) / elapsed
		tcm.metrics.RecordThroughput(component, operation, metrics.Throughput)
	}
}

func ewmaTail(current, sample, upAlpha, downAlpha float64) float64 {
	if sample > current {
		return current + (sample-current)*upAlpha
	}
	return current + (sample-current)*downAlpha
}

func (tcm *TraceCorrelationManager) analysisLoop(ctx context.Context) {
	defer tcm.wg.Done()

	ticker := time.NewTicker(tcm.config.AnalysisInterval)
	defer ticker.Stop()

	for {
		select {
		case <-tcm.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			tcm.analyzePerformance()
		}
	}
}

// analyzePerformance scans the rolling metrics and replaces the hint set.
func (tcm *TraceCorrelationManager) analyzePerformance() {
	now := time.Now()
	slowMs := float64(tcm.config.SlowOperationThreshold.Milliseconds())

	tcm.mu.Lock()
	defer tcm.mu.Unlock()

	var hints []PerformanceOptimizationHint
	for _, metrics := range tcm.opMetrics {
		if metrics.P95 > slowMs {
			hints = append(hints, PerformanceOptimizationHint{
				Component: metrics.Component,
				Operation: metrics.Operation,
				Kind:      "slow_operation",
				Description: fmt.Sprintf("p95 latency %.0fms exceeds %.0fms for %s/%s",
					metrics.P95, slowMs, metrics.Component, metrics.Operation),
				Severity:  SeverityHigh,
				Value:     metrics.P95,
				Threshold: slowMs,
				Timestamp: now,
			})
		}
		if metrics.ErrorRate > tcm.config.ErrorRateThreshold {
			hints = append(hints, PerformanceOptimizationHint{
				Component: metrics.Component,
				Operation: metrics.Operation,
				Kind:      "high_error_rate",
				Description: fmt.Sprintf("error rate %.1f%% exceeds %.1f%% for %s/%s",
					metrics.ErrorRate*100, tcm.config.ErrorRateThreshold*100, metrics.Component, metrics.Operation),
				Severity:  SeverityCritical,
				Value:     metrics.ErrorRate,
				Threshold: tcm.config.ErrorRateThreshold,
				Timestamp: now,
			})
		}
		if metrics.Throughput > 0 && metrics.Throughput < tcm.config.LowThroughputThreshold {
			hints = append(hints, PerformanceOptimizationHint{
				Component: metrics.Component,
				Operation: metrics.Operation,
				Kind:      "low_throughput",
				Description: fmt.Sprintf("throughput %.1f ops/s below %.1f ops/s for %s/%s",
					metrics.Throughput, tcm.config.LowThroughputThreshold, metrics.Component, metrics.Operation),
				Severity:  SeverityMedium,
				Value:     metrics.Throughput,
				Threshold: tcm.config.LowThroughputThreshold,
				Timestamp: now,
			})
		}
	}

	tcm.hints = hints

	if len(hints) > 0 {
		tcm.logger.InfoWithContext("Performance analysis produced hints",
			"hint_count", len(hints),
		)
	}
}

func (tcm *TraceCorrelationManager) cleanupLoop(ctx context.Context) {
	defer tcm.wg.Done()

	ticker := time.NewTicker(tcm.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-tcm.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			tcm.cleanupStaleTraces()
		}
	}
}

// cleanupStaleTraces force-drops active traces past the retention window
// without recording completion metrics. Leak prevention, not a normal
// completion path.
func (tcm *TraceCorrelationManager) cleanupStaleTraces() {
	cutoff := time.Now().Add(-tcm.config.TraceRetention)

	tcm.mu.Lock()
	defer tcm.mu.Unlock()

	for traceID, staleTrace := range tcm.activeTraces {
		if staleTrace.StartTime.Before(cutoff) {
			if staleTrace.span != nil {
				staleTrace.span.End()
			}
			delete(tcm.activeTraces, traceID)
			tcm.logger.WarnWithContext("Dropped stale trace",
				"trace_id", traceID,
				"operation", staleTrace.Operation,
				"age", time.Since(staleTrace.StartTime),
			)
		}
	}
}

type correlatedResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *correlatedResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware returns an http middleware that derives correlation identifiers
// from inbound headers, opens a trace for the request, and records an http
// segment when the response completes.
func (tcm *TraceCorrelationManager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get("x-trace-id")
			if traceID == "" {
				traceID = r.Header.Get("trace-id")
			}
			requestID := r.Header.Get("x-request-id")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			tenantID := r.Header.Get("x-tenant-id")
			if tenantID == "" {
				tenantID = "default"
			}

			operation := r.Method + " " + r.URL.Path
			metadata := map[string]string{
				"http_method": r.Method,
				"http_path":   r.URL.Path,
			}

			if traceID == "" {
				traceID = tcm.StartTrace(r.Context(), operation, tenantID, requestID, metadata)
			} else {
				_, span := tcm.tracer.Start(r.Context(), operation)
				tcm.registerTrace(traceID, operation, tenantID, requestID, metadata, span)
			}

			w.Header().Set("x-trace-id", traceID)
			w.Header().Set("x-request-id", requestID)

			wrapped := &correlatedResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(wrapped, r)

			end := time.Now()
			status := TraceStatusSuccess
			errorMessage := ""
			if wrapped.statusCode >= 500 {
				status = TraceStatusError
				errorMessage = fmt.Sprintf("http %d", wrapped.statusCode)
			}

			tcm.AddComponentTrace(traceID, "http", operation, start, end, status, map[string]string{
				"status_code": fmt.Sprintf("%d", wrapped.statusCode),
			}, errorMessage)
			tcm.FinishTrace(traceID)
		})
	}
}
