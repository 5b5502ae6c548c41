package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GontrandL/autoweave-observability/pkg/logging"
)

func newTestTraceManager(t *testing.T) *TraceCorrelationManager {
	t.Helper()

	logger := logging.NewStructuredLogger(logging.Config{
		ServiceName: "trace-test",
		Level:       "error",
		Format:      "json",
	})
	metrics := NewMetricsRecorder(&MetricsConfig{
		Namespace: "test",
		Subsystem: "trace",
		Registry:  prometheus.NewRegistry(),
	})

	return NewTraceCorrelationManager(nil, nil, logger, metrics)
}

func TestStartTraceReturnsUsableID(t *testing.T) {
	tcm := newTestTraceManager(t)

	traceID := tcm.StartTrace(context.Background(), "device-attach", "tenant-a", "req-1", nil)
	require.NotEmpty(t, traceID)
	assert.Equal(t, 1, tcm.GetActiveTraceCount())

	finished := tcm.FinishTrace(traceID)
	require.NotNil(t, finished)
	assert.Equal(t, "device-attach", finished.Operation)
	assert.Equal(t, "tenant-a", finished.TenantID)
	assert.Equal(t, TraceStatusSuccess, finished.Status)
	assert.Equal(t, 0, tcm.GetActiveTraceCount())
}

func TestFirstErrorWins(t *testing.T) {
	tcm := newTestTraceManager(t)
	traceID := tcm.StartTrace(context.Background(), "plugin-load", "", "", nil)

	now := time.Now()
	tcm.AddComponentTrace(traceID, "usb-daemon", "detect", now, now.Add(5*time.Millisecond), TraceStatusSuccess, nil, "")
	tcm.AddComponentTrace(traceID, "plugin-loader", "load", now, now.Add(8*time.Millisecond), TraceStatusError, nil, "manifest invalid")
	tcm.AddComponentTrace(traceID, "queue-manager", "enqueue", now, now.Add(2*time.Millisecond), TraceStatusTimeout, nil, "queue full")
	tcm.AddComponentTrace(traceID, "memory-system", "store", now, now.Add(3*time.Millisecond), TraceStatusSuccess, nil, "")

	finished := tcm.FinishTrace(traceID)
	require.NotNil(t, finished)

	// The first non-success segment sets the trace status and message;
	// later segments, failing or not, never change it.
	assert.Equal(t, TraceStatusError, finished.Status)
	assert.Equal(t, "manifest invalid", finished.ErrorMessage)

	// Segments stay in append order.
	require.Len(t, finished.Components, 4)
	assert.Equal(t, "usb-daemon", finished.Components[0].Component)
	assert.Equal(t, "plugin-loader", finished.Components[1].Component)
	assert.Equal(t, "queue-manager", finished.Components[2].Component)
	assert.Equal(t, "memory-system", finished.Components[3].Component)
}

func TestComponentSegmentsCarrySpanIDs(t *testing.T) {
	tcm := newTestTraceManager(t)
	traceID := tcm.StartTrace(context.Background(), "device-attach", "", "", nil)

	now := time.Now()
	tcm.AddComponentTrace(traceID, "usb-daemon", "detect", now, now.Add(time.Millisecond), TraceStatusSuccess, nil, "")
	tcm.AddComponentTrace(traceID, "plugin-loader", "load", now, now.Add(time.Millisecond), TraceStatusSuccess, nil, "")

	finished := tcm.FinishTrace(traceID)
	require.NotNil(t, finished)
	require.Len(t, finished.Components, 2)

	assert.NotEmpty(t, finished.Components[0].SpanID)
	assert.NotEmpty(t, finished.Components[1].SpanID)
	assert.NotEqual(t, finished.Components[0].SpanID, finished.Components[1].SpanID)

	// Both segments share the same parent span when one exists.
	assert.Equal(t, finished.Components[0].ParentSpanID, finished.Components[1].ParentSpanID)
}

func TestThroughputGaugeFedByRollingMetrics(t *testing.T) {
	tcm := newTestTraceManager(t)

	now := time.Now()
	tcm.AddComponentTrace("x", "usb-daemon", "detect", now, now.Add(time.Millisecond), TraceStatusSuccess, nil, "")
	time.Sleep(5 * time.Millisecond)
	tcm.AddComponentTrace("x", "usb-daemon", "detect", now, now.Add(time.Millisecond), TraceStatusSuccess, nil, "")

	value := testutil.ToFloat64(tcm.metrics.throughput.WithLabelValues("usb-daemon", "detect"))
	assert.Greater(t, value, 0.0)
}

func TestFinishTraceIdempotent(t *testing.T) {
	tcm := newTestTraceManager(t)
	traceID := tcm.StartTrace(context.Background(), "device-attach", "", "", nil)

	first := tcm.FinishTrace(traceID)
	require.NotNil(t, first)

	second := tcm.FinishTrace(traceID)
	assert.Nil(t, second)
}

func TestAddComponentTraceUnknownIDIsNoOp(t *testing.T) {
	tcm := newTestTraceManager(t)

	now := time.Now()
	tcm.AddComponentTrace("no-such-trace", "usb-daemon", "detect", now, now.Add(time.Millisecond), TraceStatusSuccess, nil, "")

	assert.Equal(t, 0, tcm.GetActiveTraceCount())

	// The segment still feeds the rolling metrics.
	opMetrics := tcm.GetOperationMetrics()
	require.Len(t, opMetrics, 1)
	assert.Equal(t, "usb-daemon", opMetrics[0].Component)
	assert.Equal(t, 1, opMetrics[0].SampleCount)
}

func TestNegativeDurationClamped(t *testing.T) {
	tcm := newTestTraceManager(t)
	traceID := tcm.StartTrace(context.Background(), "device-attach", "", "", nil)

	now := time.Now()
	tcm.AddComponentTrace(traceID, "usb-daemon", "detect", now, now.Add(-time.Second), TraceStatusSuccess, nil, "")

	finished := tcm.FinishTrace(traceID)
	require.NotNil(t, finished)
	require.Len(t, finished.Components, 1)
	assert.Equal(t, time.Duration(0), finished.Components[0].Duration)
}

func TestAddTraceEventAttachesToLatestSegment(t *testing.T) {
	tcm := newTestTraceManager(t)
	traceID := tcm.StartTrace(context.Background(), "plugin-load", "", "", nil)

	now := time.Now()
	tcm.AddComponentTrace(traceID, "plugin-loader", "validate", now, now.Add(time.Millisecond), TraceStatusSuccess, nil, "")
	tcm.AddComponentTrace(traceID, "plugin-loader", "load", now, now.Add(time.Millisecond), TraceStatusSuccess, nil, "")

	tcm.AddTraceEvent(traceID, "plugin-loader", "sandbox-ready", map[string]string{"runtime": "wasm"})

	// Events for an unknown component or trace are silent no-ops.
	tcm.AddTraceEvent(traceID, "memory-system", "ignored", nil)
	tcm.AddTraceEvent("no-such-trace", "plugin-loader", "ignored", nil)

	finished := tcm.FinishTrace(traceID)
	require.NotNil(t, finished)
	require.Len(t, finished.Components, 2)
	assert.Empty(t, finished.Components[0].Events)
	require.Len(t, finished.Components[1].Events, 1)
	assert.Equal(t, "sandbox-ready", finished.Components[1].Events[0].Name)
	assert.Equal(t, "wasm", finished.Components[1].Events[0].Attributes["runtime"])
}

func TestWithTracingRecordsOutcome(t *testing.T) {
	tcm := newTestTraceManager(t)
	traceID := tcm.StartTrace(context.Background(), "queue-drain", "", "", nil)

	err := tcm.WithTracing(context.Background(), traceID, "queue-manager", "drain", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	wantErr := errors.New("redis connection refused")
	err = tcm.WithTracing(context.Background(), traceID, "queue-manager", "drain", func(ctx context.Context) error {
		return wantErr
	})
	assert.Equal(t, wantErr, err)

	finished := tcm.FinishTrace(traceID)
	require.NotNil(t, finished)
	require.Len(t, finished.Components, 2)
	assert.Equal(t, TraceStatusSuccess, finished.Components[0].Status)
	assert.Equal(t, TraceStatusError, finished.Components[1].Status)
	assert.Equal(t, "redis connection refused", finished.Components[1].ErrorMessage)
	assert.Equal(t, TraceStatusError, finished.Status)
}

func TestAnalysisReplacesHints(t *testing.T) {
	tcm := newTestTraceManager(t)

	now := time.Now()
	// A slow segment: p95 EWMA seeds at the first sample's duration.
	tcm.AddComponentTrace("x", "memory-system", "query", now.Add(-2*time.Second), now, TraceStatusSuccess, nil, "")

	tcm.analyzePerformance()
	hints := tcm.GetOptimizationHints()
	require.NotEmpty(t, hints)

	found := false
	for _, hint := range hints {
		if hint.Kind == "slow_operation" {
			found = true
			assert.Equal(t, "memory-system", hint.Component)
			assert.Greater(t, hint.Value, 1000.0)
		}
	}
	assert.True(t, found)

	// Hints are replaced, not accumulated.
	tcm.mu.Lock()
	tcm.opMetrics = make(map[string]*OperationMetrics)
	tcm.mu.Unlock()

	tcm.analyzePerformance()
	assert.Empty(t, tcm.GetOptimizationHints())
}

func TestCleanupDropsStaleTraces(t *testing.T) {
	tcm := newTestTraceManager(t)
	traceID := tcm.StartTrace(context.Background(), "device-attach", "", "", nil)

	tcm.mu.Lock()
	tcm.activeTraces[traceID].StartTime = time.Now().Add(-2 * time.Hour)
	tcm.mu.Unlock()

	tcm.cleanupStaleTraces()

	assert.Equal(t, 0, tcm.GetActiveTraceCount())
	assert.Nil(t, tcm.FinishTrace(traceID))
}

func TestMiddlewareCorrelatesRequest(t *testing.T) {
	tcm := newTestTraceManager(t)

	handler := tcm.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/plugins", nil)
	req.Header.Set("x-trace-id", "inbound-trace-1")
	req.Header.Set("x-tenant-id", "tenant-b")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "inbound-trace-1", rec.Header().Get("x-trace-id"))
	assert.NotEmpty(t, rec.Header().Get("x-request-id"))

	// The trace is finished by the middleware; the http segment fed metrics.
	assert.Equal(t, 0, tcm.GetActiveTraceCount())
	opMetrics := tcm.GetOperationMetrics()
	require.Len(t, opMetrics, 1)
	assert.Equal(t, "http", opMetrics[0].Component)
	assert.Equal(t, "GET /plugins", opMetrics[0].Operation)
}

func TestMiddlewareGeneratesIdentifiers(t *testing.T) {
	tcm := newTestTraceManager(t)

	handler := tcm.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodPost, "/queue", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("x-trace-id"))
	assert.NotEmpty(t, rec.Header().Get("x-request-id"))

	// A 5xx response marks the http segment as an error.
	opMetrics := tcm.GetOperationMetrics()
	require.Len(t, opMetrics, 1)
	assert.Equal(t, 1.0, opMetrics[0].ErrorRate)
}
