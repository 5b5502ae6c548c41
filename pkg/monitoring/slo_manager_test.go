package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GontrandL/autoweave-observability/pkg/logging"
)

func newTestSLOManager(t *testing.T, executor QueryExecutor) *SLOManager {
	t.Helper()

	logger := logging.NewStructuredLogger(logging.Config{
		ServiceName: "slo-manager-test",
		Level:       "error",
		Format:      "json",
	})
	metrics := NewMetricsRecorder(&MetricsConfig{
		Namespace: "test",
		Subsystem: "slo",
		Registry:  prometheus.NewRegistry(),
	})

	return NewSLOManager(nil, executor, logger, metrics)
}

func staticExecutor(value float64) QueryExecutor {
	return QueryExecutorFunc(func(ctx context.Context, query Query) (float64, error) {
		return value, nil
	})
}

func TestRegisterSLORequiresSLI(t *testing.T) {
	sm := newTestSLOManager(t, staticExecutor(0))

	err := sm.RegisterSLO(SLO{Name: "orphan-slo", SLI: "missing-sli", Target: 0.95})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing-sli")

	// Failed registration must leave no partial state behind.
	sm.mu.RLock()
	_, exists := sm.slos["orphan-slo"]
	sm.mu.RUnlock()
	assert.False(t, exists)

	sm.RegisterSLI(SLI{Name: "missing-sli", Component: "system"})
	require.NoError(t, sm.RegisterSLO(SLO{Name: "orphan-slo", SLI: "missing-sli", Target: 0.95}))
}

func TestSLIStatusThresholds(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		expected EvalStatus
	}{
		{"below warning", 50, EvalStatusOK},
		{"at warning", 80, EvalStatusWarning},
		{"between thresholds", 90, EvalStatusWarning},
		{"at critical", 100, EvalStatusCritical},
		{"above critical", 150, EvalStatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := newTestSLOManager(t, staticExecutor(tt.value))
			sm.RegisterSLI(SLI{
				Name:              "latency",
				Component:         "usb-daemon",
				WarningThreshold:  80,
				CriticalThreshold: 100,
				Window:            time.Hour,
			})

			sm.EvaluateAll(context.Background())

			history := sm.GetSLIHistory("latency")
			require.Len(t, history, 1)
			assert.Equal(t, tt.expected, history[0].Status)
			assert.Equal(t, tt.value, history[0].Value)
		})
	}
}

func TestSLIQueryFailureSkipsHistory(t *testing.T) {
	executor := QueryExecutorFunc(func(ctx context.Context, query Query) (float64, error) {
		return 0, context.DeadlineExceeded
	})
	sm := newTestSLOManager(t, executor)
	sm.RegisterSLI(SLI{Name: "latency", Component: "usb-daemon", Window: time.Hour})

	sm.EvaluateAll(context.Background())

	assert.Empty(t, sm.GetSLIHistory("latency"))
}

func TestBurnRateIsNonOKFractionOfLastTen(t *testing.T) {
	// 3 of the most recent 10 evaluations exceed the critical threshold.
	values := []float64{50, 50, 50, 50, 150, 50, 150, 50, 150, 50}
	idx := 0
	executor := QueryExecutorFunc(func(ctx context.Context, query Query) (float64, error) {
		value := values[idx]
		idx++
		return value, nil
	})

	sm := newTestSLOManager(t, executor)
	sm.RegisterSLI(SLI{
		Name:              "latency",
		Component:         "usb-daemon",
		CriticalThreshold: 100,
		Window:            time.Hour,
	})
	require.NoError(t, sm.RegisterSLO(SLO{
		Name:        "latency-slo",
		SLI:         "latency",
		Target:      0.5,
		Window:      time.Hour,
		ErrorBudget: 0.5,
	}))

	for range values {
		sm.EvaluateAll(context.Background())
	}

	history := sm.GetSLOHistory("latency-slo")
	require.NotEmpty(t, history)
	latest := history[len(history)-1]
	assert.InDelta(t, 0.3, latest.BurnRate, 1e-9)
	assert.InDelta(t, 0.7, latest.CurrentValue, 1e-9)
}

func TestErrorBudgetExhaustion(t *testing.T) {
	// 18 ok + 2 critical over the window gives currentValue 0.90 against a
	// 0.95 target with a 0.05 budget: the shortfall consumes the entire
	// budget and the SLO is critical.
	var values []float64
	for i := 0; i < 18; i++ {
		values = append(values, 50)
	}
	values = append(values, 150, 150)

	idx := 0
	executor := QueryExecutorFunc(func(ctx context.Context, query Query) (float64, error) {
		value := values[idx]
		idx++
		return value, nil
	})

	sm := newTestSLOManager(t, executor)
	sm.RegisterSLI(SLI{
		Name:              "availability",
		Component:         "system",
		CriticalThreshold: 100,
		Window:            time.Hour,
	})
	require.NoError(t, sm.RegisterSLO(SLO{
		Name:        "availability-slo",
		SLI:         "availability",
		Target:      0.95,
		Window:      time.Hour,
		ErrorBudget: 0.05,
	}))

	for range values {
		sm.EvaluateAll(context.Background())
	}

	history := sm.GetSLOHistory("availability-slo")
	require.NotEmpty(t, history)
	latest := history[len(history)-1]

	assert.InDelta(t, 0.90, latest.CurrentValue, 1e-9)
	assert.Equal(t, 0.0, latest.ErrorBudgetRemaining)
	assert.Equal(t, EvalStatusCritical, latest.Status)
	assert.Nil(t, latest.ProjectedExhaustion)
}

func TestProjectedExhaustionSetWhileBurning(t *testing.T) {
	// 1 critical out of 10 keeps the SLO above a 0.85 target but burning.
	var values []float64
	for i := 0; i < 9; i++ {
		values = append(values, 50)
	}
	values = append(values, 150)

	idx := 0
	executor := QueryExecutorFunc(func(ctx context.Context, query Query) (float64, error) {
		value := values[idx]
		idx++
		return value, nil
	})

	sm := newTestSLOManager(t, executor)
	sm.RegisterSLI(SLI{
		Name:              "latency",
		Component:         "usb-daemon",
		CriticalThreshold: 100,
		Window:            time.Hour,
	})
	require.NoError(t, sm.RegisterSLO(SLO{
		Name:        "latency-slo",
		SLI:         "latency",
		Target:      0.85,
		Window:      time.Hour,
		ErrorBudget: 0.15,
	}))

	for range values {
		sm.EvaluateAll(context.Background())
	}

	history := sm.GetSLOHistory("latency-slo")
	require.NotEmpty(t, history)
	latest := history[len(history)-1]

	assert.Equal(t, EvalStatusOK, latest.Status)
	assert.Greater(t, latest.BurnRate, 0.0)
	assert.Greater(t, latest.ErrorBudgetRemaining, 0.0)
	require.NotNil(t, latest.ProjectedExhaustion)
	assert.True(t, latest.ProjectedExhaustion.After(latest.Timestamp))
}

func TestAlertCallbackOnCriticalSLO(t *testing.T) {
	sm := newTestSLOManager(t, staticExecutor(150))
	sm.RegisterSLI(SLI{
		Name:              "latency",
		Component:         "usb-daemon",
		CriticalThreshold: 100,
		Window:            time.Hour,
	})
	require.NoError(t, sm.RegisterSLO(SLO{
		Name:        "latency-slo",
		SLI:         "latency",
		Target:      0.95,
		Window:      time.Hour,
		ErrorBudget: 0.05,
		Alerting: SLOAlertingConfig{
			Enabled:    true,
			RunbookURL: "https://runbooks.example.com/latency",
		},
	}))

	var alerts []SLOAlert
	sm.SetAlertCallback(func(alert SLOAlert) {
		alerts = append(alerts, alert)
	})

	sm.EvaluateAll(context.Background())

	// Every value is critical: the below-target condition and the budget
	// exhaustion condition both fire, neither deduplicated.
	require.Len(t, alerts, 2)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "latency-slo", alerts[0].SLO)
	assert.Equal(t, "https://runbooks.example.com/latency", alerts[0].RunbookURL)
	assert.Equal(t, SeverityWarning, alerts[1].Severity)
}

func TestAlertingDisabledSuppressesCallback(t *testing.T) {
	sm := newTestSLOManager(t, staticExecutor(150))
	sm.RegisterSLI(SLI{
		Name:              "latency",
		Component:         "usb-daemon",
		CriticalThreshold: 100,
		Window:            time.Hour,
	})
	require.NoError(t, sm.RegisterSLO(SLO{
		Name:        "latency-slo",
		SLI:         "latency",
		Target:      0.95,
		Window:      time.Hour,
		ErrorBudget: 0.05,
	}))

	called := false
	sm.SetAlertCallback(func(alert SLOAlert) { called = true })

	sm.EvaluateAll(context.Background())
	assert.False(t, called)
}

func TestHistoryPruning(t *testing.T) {
	sm := newTestSLOManager(t, staticExecutor(50))
	sm.config.HistoryRetention = time.Hour
	sm.RegisterSLI(SLI{Name: "latency", Component: "usb-daemon", Window: time.Hour})

	stale := SLIValue{Name: "latency", Value: 42, Status: EvalStatusOK, Timestamp: time.Now().Add(-2 * time.Hour)}
	sm.mu.Lock()
	sm.sliHistory["latency"] = append(sm.sliHistory["latency"], stale)
	sm.mu.Unlock()

	sm.EvaluateAll(context.Background())

	history := sm.GetSLIHistory("latency")
	require.Len(t, history, 1)
	assert.Equal(t, 50.0, history[0].Value)
}

func TestDefaultSLOsRoundTrip(t *testing.T) {
	sm := newTestSLOManager(t, staticExecutor(10))

	for _, sli := range DefaultSLIs() {
		sm.RegisterSLI(sli)
	}
	for _, slo := range DefaultSLOs() {
		require.NoError(t, sm.RegisterSLO(slo))
	}

	sm.EvaluateAll(context.Background())

	for _, sli := range DefaultSLIs() {
		assert.NotEmpty(t, sm.GetSLIHistory(sli.Name), "SLI %s has no history", sli.Name)
	}
	for _, slo := range DefaultSLOs() {
		assert.NotEmpty(t, sm.GetSLOHistory(slo.Name), "SLO %s has no history", slo.Name)
	}

	data := sm.GetSLODashboardData()
	assert.Len(t, data.SLIs, len(DefaultSLIs()))
	assert.Len(t, data.SLOs, len(DefaultSLOs()))
}

func TestSLOManagerStartStopIdempotent(t *testing.T) {
	sm := newTestSLOManager(t, staticExecutor(10))
	sm.config.EvaluationInterval = 50 * time.Millisecond
	sm.RegisterSLI(SLI{Name: "latency", Component: "usb-daemon", Window: time.Hour})

	ctx := context.Background()
	sm.Start(ctx)
	sm.Start(ctx)

	time.Sleep(20 * time.Millisecond)

	sm.Stop()
	sm.Stop()

	assert.NotEmpty(t, sm.GetSLIHistory("latency"))
}
