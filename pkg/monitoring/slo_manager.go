package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GontrandL/autoweave-observability/pkg/logging"
)

// SLI is a named measurable quantity bound to a component. Registered once;
// immutable afterwards.
type SLI struct {
	Name              string        `yaml:"name" json:"name"`
	Component         string        `yaml:"component" json:"component"`
	Query             Query         `yaml:"query" json:"query"`
	Unit              string        `yaml:"unit" json:"unit"`
	Target            float64       `yaml:"target" json:"target"`
	WarningThreshold  float64       `yaml:"warning_threshold" json:"warning_threshold"`
	CriticalThreshold float64       `yaml:"critical_threshold" json:"critical_threshold"`
	Window            time.Duration `yaml:"window" json:"window"`
	Interval          time.Duration `yaml:"interval" json:"interval"`
}

// SLIValue is one evaluation result of an SLI.
type SLIValue struct {
	Name      string        `json:"name"`
	Value     float64       `json:"value"`
	Target    float64       `json:"target"`
	Status    EvalStatus    `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Window    time.Duration `json:"window"`
}

// SLOAlertingConfig controls alert emission for an SLO.
type SLOAlertingConfig struct {
	Enabled      bool     `yaml:"enabled" json:"enabled"`
	Channels     []string `yaml:"channels" json:"channels"`
	RunbookURL   string   `yaml:"runbook_url,omitempty" json:"runbook_url,omitempty"`
	DashboardURL string   `yaml:"dashboard_url,omitempty" json:"dashboard_url,omitempty"`
}

// SLO is a compliance target over one registered SLI.
type SLO struct {
	Name              string            `yaml:"name" json:"name"`
	SLI               string            `yaml:"sli" json:"sli"`
	Target            float64           `yaml:"target" json:"target"`
	Window            time.Duration     `yaml:"window" json:"window"`
	ErrorBudget       float64           `yaml:"error_budget" json:"error_budget"`
	BurnRateWindow    time.Duration     `yaml:"burn_rate_window" json:"burn_rate_window"`
	BurnRateThreshold float64           `yaml:"burn_rate_threshold" json:"burn_rate_threshold"`
	Alerting          SLOAlertingConfig `yaml:"alerting" json:"alerting"`
}

// SLOStatus is one evaluation result of an SLO.
type SLOStatus struct {
	Name                 string        `json:"name"`
	CurrentValue         float64       `json:"current_value"`
	Target               float64       `json:"target"`
	ErrorBudget          float64       `json:"error_budget"`
	ErrorBudgetRemaining float64       `json:"error_budget_remaining"`
	BurnRate             float64       `json:"burn_rate"`
	Status               EvalStatus    `json:"status"`
	Timestamp            time.Time     `json:"timestamp"`
	Window               time.Duration `json:"window"`
	ProjectedExhaustion  *time.Time    `json:"projected_exhaustion,omitempty"`
}

// SLOAlert is emitted when an SLO crosses an alert condition. Alerts are not
// persisted by the engine; they are handed to the logger, the metrics sink,
// and an optional callback.
type SLOAlert struct {
	SLO          string        `json:"slo"`
	Severity     AlertSeverity `json:"severity"`
	Message      string        `json:"message"`
	Status       SLOStatus     `json:"status"`
	RunbookURL   string        `json:"runbook_url,omitempty"`
	DashboardURL string        `json:"dashboard_url,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// SLOAlertCallback receives alerts in addition to the logger and metrics sink.
type SLOAlertCallback func(alert SLOAlert)

// SLOManagerConfig holds configuration for the SLO manager.
type SLOManagerConfig struct {
	EvaluationInterval time.Duration `yaml:"evaluation_interval"`
	HistoryRetention   time.Duration `yaml:"history_retention"`
	QueryTimeout       time.Duration `yaml:"query_timeout"`
}

// DefaultSLOManagerConfig returns the default SLO manager configuration.
func DefaultSLOManagerConfig() *SLOManagerConfig {
	return &SLOManagerConfig{
		EvaluationInterval: 60 * time.Second,
		HistoryRetention:   24 * time.Hour,
		QueryTimeout:       10 * time.Second,
	}
}

// SLOManager samples SLI queries on an interval and derives SLO compliance,
// error-budget burn, and projected budget exhaustion.
type SLOManager struct {
	config   *SLOManagerConfig
	logger   *logging.StructuredLogger
	metrics  *MetricsRecorder
	executor QueryExecutor

	mu         sync.RWMutex
	slis       map[string]SLI
	slos       map[string]SLO
	sliHistory map[string][]SLIValue
	sloHistory map[string][]SLOStatus

	alertCallback SLOAlertCallback

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewSLOManager creates a new SLO manager bound to the given query executor.
func NewSLOManager(config *SLOManagerConfig, executor QueryExecutor, logger *logging.StructuredLogger, metrics *MetricsRecorder) *SLOManager {
	if config == nil {
		config = DefaultSLOManagerConfig()
	}

	return &SLOManager{
		config:     config,
		logger:     logger.WithComponent("slo-manager"),
		metrics:    metrics,
		executor:   executor,
		slis:       make(map[string]SLI),
		slos:       make(map[string]SLO),
		sliHistory: make(map[string][]SLIValue),
		sloHistory: make(map[string][]SLOStatus),
	}
}

// SetAlertCallback installs an external alert receiver. The callback is
// invoked synchronously; a panic or error inside it is the caller's problem.
func (sm *SLOManager) SetAlertCallback(callback SLOAlertCallback) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.alertCallback = callback
}

// RegisterSLI stores an SLI by name and initializes its history.
func (sm *SLOManager) RegisterSLI(sli SLI) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.slis[sli.Name] = sli
	if _, ok := sm.sliHistory[sli.Name]; !ok {
		sm.sliHistory[sli.Name] = nil
	}
}

// RegisterSLO stores an SLO by name. The referenced SLI must already be
// registered; otherwise an error is returned and no state is mutated.
func (sm *SLOManager) RegisterSLO(slo SLO) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.slis[slo.SLI]; !ok {
		return fmt.Errorf("SLO %q references unregistered SLI %q", slo.Name, slo.SLI)
	}

	sm.slos[slo.Name] = slo
	return nil
}

// Start begins periodic evaluation. Calling Start while running is a no-op.
func (sm *SLOManager) Start(ctx context.Context) {
	sm.mu.Lock()
	if sm.running {
		sm.mu.Unlock()
		sm.logger.WarnWithContext("SLO manager already running")
		return
	}
	sm.running = true
	sm.stopCh = make(chan struct{})
	sm.mu.Unlock()

	sm.logger.InfoWithContext("Starting SLO manager",
		"evaluation_interval", sm.config.EvaluationInterval,
	)

	sm.wg.Add(1)
	go sm.runLoop(ctx)
}

// Stop cancels the evaluation timer. In-flight queries resolve and their
// results are discarded. Calling Stop while stopped is a no-op.
func (sm *SLOManager) Stop() {
	sm.mu.Lock()
	if !sm.running {
		sm.mu.Unlock()
		return
	}
	sm.running = false
	close(sm.stopCh)
	sm.mu.Unlock()

	sm.wg.Wait()
	sm.logger.InfoWithContext("SLO manager stopped")
}

func (sm *SLOManager) runLoop(ctx context.Context) {
	defer sm.wg.Done()

	ticker := time.NewTicker(sm.config.EvaluationInterval)
	defer ticker.Stop()

	sm.EvaluateAll(ctx)

	for {
		select {
		case <-sm.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.EvaluateAll(ctx)
		}
	}
}

// EvaluateAll runs one evaluation pass: every SLI query is resolved and its
// value appended to history, then every SLO is re-derived from its SLI's
// in-window values. A failing SLI never stops the pass for its siblings.
func (sm *SLOManager) EvaluateAll(ctx context.Context) {
	sm.mu.RLock()
	slis := make([]SLI, 0, len(sm.slis))
	for _, sli := range sm.slis {
		slis = append(slis, sli)
	}
	slos := make([]SLO, 0, len(sm.slos))
	for _, slo := range sm.slos {
		slos = append(slos, slo)
	}
	sm.mu.RUnlock()

	for _, sli := range slis {
		sm.evaluateSLI(ctx, sli)
	}

	for _, slo := range slos {
		sm.evaluateSLO(slo)
	}

	sm.pruneHistory()
}

func (sm *SLOManager) evaluateSLI(ctx context.Context, sli SLI) {
	queryCtx, cancel := context.WithTimeout(ctx, sm.config.QueryTimeout)
	defer cancel()

	value, err := sm.executor.Execute(queryCtx, sli.Query)
	if err != nil {
		sm.logger.WarnWithContext("SLI query failed",
			"sli", sli.Name,
			"component", sli.Component,
			"error", err.Error(),
		)
		sm.metrics.RecordError(sli.Component, "sli_query_failure", SeverityWarning)
		return
	}

	status := EvalStatusOK
	switch {
	case sli.CriticalThreshold > 0 && value >= sli.CriticalThreshold:
		status = EvalStatusCritical
	case sli.WarningThreshold > 0 && value >= sli.WarningThreshold:
		status = EvalStatusWarning
	}

	result := SLIValue{
		Name:      sli.Name,
		Value:     value,
		Target:    sli.Target,
		Status:    status,
		Timestamp: time.Now(),
		Window:    sli.Window,
	}

	sm.mu.Lock()
	sm.sliHistory[sli.Name] = append(sm.sliHistory[sli.Name], result)
	sm.mu.Unlock()

	sm.metrics.RecordSLIValue(sli.Name, sli.Component, value)

	sm.logger.DebugWithContext("SLI evaluated",
		"sli", sli.Name,
		"value", value,
		"status", string(status),
	)
}

func (sm *SLOManager) evaluateSLO(slo SLO) {
	now := time.Now()
	cutoff := now.Add(-slo.Window)

	sm.mu.RLock()
	var windowed []SLIValue
	for _, value := range sm.sliHistory[slo.SLI] {
		if value.Timestamp.After(cutoff) {
			windowed = append(windowed, value)
		}
	}
	sm.mu.RUnlock()

	if len(windowed) == 0 {
		return
	}

	okCount := 0
	for _, value := range windowed {
		if value.Status == EvalStatusOK {
			okCount++
		}
	}
	currentValue := float64(okCount) / float64(len(windowed))

	shortfall := slo.Target - currentValue
	if shortfall < 0 {
		shortfall = 0
	}
	budgetRemaining := slo.ErrorBudget
	if slo.Target < 1 {
		budgetRemaining = slo.ErrorBudget - shortfall/(1-slo.Target)
	}
	if budgetRemaining < 0 {
		budgetRemaining = 0
	}

	burnRate := sm.computeBurnRate(windowed)

	status := EvalStatusOK
	switch {
	case currentValue < slo.Target:
		status = EvalStatusCritical
	case budgetRemaining < 0.1:
		status = EvalStatusWarning
	}

	result := SLOStatus{
		Name:                 slo.Name,
		CurrentValue:         currentValue,
		Target:               slo.Target,
		ErrorBudget:          slo.ErrorBudget,
		ErrorBudgetRemaining: budgetRemaining,
		BurnRate:             burnRate,
		Status:               status,
		Timestamp:            now,
		Window:               slo.Window,
	}

	// Project budget exhaustion only while actively burning. The remaining
	// budget fraction divided by the burn rate is expressed in units of the
	// SLO window.
	if burnRate > 0 && budgetRemaining > 0 {
		exhaustion := now.Add(time.Duration(budgetRemaining / burnRate * float64(slo.Window)))
		result.ProjectedExhaustion = &exhaustion
	}

	sm.mu.Lock()
	sm.sloHistory[slo.Name] = append(sm.sloHistory[slo.Name], result)
	sm.mu.Unlock()

	sm.metrics.RecordSLOCompliance(slo.Name, currentValue)
	sm.metrics.RecordErrorBudgetBurn(slo.Name, burnRate)

	if slo.Alerting.Enabled {
		sm.checkAlertConditions(slo, result)
	}
}

// computeBurnRate is the fraction of the last 10 in-window SLI values that
// are non-ok.
func (sm *SLOManager) computeBurnRate(windowed []SLIValue) float64 {
	recent := windowed
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	if len(recent) == 0 {
		return 0
	}

	violations := 0
	for _, value := range recent {
		if value.Status != EvalStatusOK {
			violations++
		}
	}
	return float64(violations) / float64(len(recent))
}

// checkAlertConditions evaluates the two independent alert conditions. Both
// may fire in the same pass; nothing is deduplicated or rate-limited here.
func (sm *SLOManager) checkAlertConditions(slo SLO, status SLOStatus) {
	if status.Status == EvalStatusCritical {
		sm.emitAlert(slo, SLOAlert{
			SLO:      slo.Name,
			Severity: SeverityCritical,
			Message: fmt.Sprintf("SLO %q is below target: %.4f < %.4f",
				slo.Name, status.CurrentValue, status.Target),
			Status:    status,
			Timestamp: status.Timestamp,
		})
	}

	if status.ErrorBudgetRemaining < 0.1 && status.BurnRate > 0 {
		sm.emitAlert(slo, SLOAlert{
			SLO:      slo.Name,
			Severity: SeverityWarning,
			Message: fmt.Sprintf("SLO %q error budget is being exhausted: %.4f remaining, burn rate %.2f",
				slo.Name, status.ErrorBudgetRemaining, status.BurnRate),
			Status:    status,
			Timestamp: status.Timestamp,
		})
	}
}

func (sm *SLOManager) emitAlert(slo SLO, alert SLOAlert) {
	alert.RunbookURL = slo.Alerting.RunbookURL
	alert.DashboardURL = slo.Alerting.DashboardURL

	sm.logger.WarnWithContext("SLO alert",
		"slo", alert.SLO,
		"severity", string(alert.Severity),
		"message", alert.Message,
		"current_value", alert.Status.CurrentValue,
		"budget_remaining", alert.Status.ErrorBudgetRemaining,
		"burn_rate", alert.Status.BurnRate,
	)
	sm.metrics.RecordAlert(alert.Severity, "slo-manager")

	sm.mu.RLock()
	callback := sm.alertCallback
	sm.mu.RUnlock()

	if callback != nil {
		callback(alert)
	}
}

// pruneHistory drops SLI and SLO history entries older than the retention
// window.
func (sm *SLOManager) pruneHistory() {
	cutoff := time.Now().Add(-sm.config.HistoryRetention)

	sm.mu.Lock()
	defer sm.mu.Unlock()

	for name, history := range sm.sliHistory {
		sm.sliHistory[name] = pruneSLIValues(history, cutoff)
	}
	for name, history := range sm.sloHistory {
		sm.sloHistory[name] = pruneSLOStatuses(history, cutoff)
	}
}

func pruneSLIValues(history []SLIValue, cutoff time.Time) []SLIValue {
	idx := 0
	for idx < len(history) && !history[idx].Timestamp.After(cutoff) {
		idx++
	}
	return history[idx:]
}

func pruneSLOStatuses(history []SLOStatus, cutoff time.Time) []SLOStatus {
	idx := 0
	for idx < len(history) && !history[idx].Timestamp.After(cutoff) {
		idx++
	}
	return history[idx:]
}

// GetSLIHistory returns a copy of the recorded values for an SLI.
func (sm *SLOManager) GetSLIHistory(name string) []SLIValue {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	history := sm.sliHistory[name]
	result := make([]SLIValue, len(history))
	copy(result, history)
	return result
}

// GetSLOHistory returns a copy of the recorded statuses for an SLO.
func (sm *SLOManager) GetSLOHistory(name string) []SLOStatus {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	history := sm.sloHistory[name]
	result := make([]SLOStatus, len(history))
	copy(result, history)
	return result
}

// SLODashboardData is a point-in-time snapshot of all SLIs and SLOs.
type SLODashboardData struct {
	SLIs           map[string]SLIValue  `json:"slis"`
	SLOs           map[string]SLOStatus `json:"slos"`
	CountsByStatus map[EvalStatus]int   `json:"counts_by_status"`
	Timestamp      time.Time            `json:"timestamp"`
}

// GetSLODashboardData returns the latest value per SLI and SLO plus counts of
// SLOs by status.
func (sm *SLOManager) GetSLODashboardData() *SLODashboardData {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	data := &SLODashboardData{
		SLIs:           make(map[string]SLIValue),
		SLOs:           make(map[string]SLOStatus),
		CountsByStatus: make(map[EvalStatus]int),
		Timestamp:      time.Now(),
	}

	for name, history := range sm.sliHistory {
		if len(history) > 0 {
			data.SLIs[name] = history[len(history)-1]
		}
	}
	for name, history := range sm.sloHistory {
		if len(history) > 0 {
			latest := history[len(history)-1]
			data.SLOs[name] = latest
			data.CountsByStatus[latest.Status]++
		}
	}

	return data
}

// DefaultSLIs returns illustrative SLIs for the platform's named components.
func DefaultSLIs() []SLI {
	return []SLI{
		{
			Name:              "usb-event-latency",
			Component:         "usb-daemon",
			Query:             Query{Kind: QueryKindLatencyP95, Component: "usb-daemon", Window: 5 * time.Minute},
			Unit:              "ms",
			Target:            80,
			WarningThreshold:  80,
			CriticalThreshold: 100,
			Window:            5 * time.Minute,
			Interval:          60 * time.Second,
		},
		{
			Name:              "plugin-load-latency",
			Component:         "plugin-loader",
			Query:             Query{Kind: QueryKindLatencyP95, Component: "plugin-loader", Window: 5 * time.Minute},
			Unit:              "ms",
			Target:            200,
			WarningThreshold:  200,
			CriticalThreshold: 250,
			Window:            5 * time.Minute,
			Interval:          60 * time.Second,
		},
		{
			Name:              "system-error-rate",
			Component:         "system",
			Query:             Query{Kind: QueryKindErrorRate, Component: "system", Window: 5 * time.Minute},
			Unit:              "%",
			Target:            1,
			WarningThreshold:  1,
			CriticalThreshold: 5,
			Window:            5 * time.Minute,
			Interval:          60 * time.Second,
		},
		{
			Name:      "system-availability",
			Component: "system",
			Query:     Query{Kind: QueryKindAvailability, Component: "system", Window: 5 * time.Minute},
			Unit:      "%",
			Target:    99.9,
			// Availability is a higher-is-better metric; threshold crossing is
			// expressed through the paired SLO rather than SLI thresholds.
			Window:   5 * time.Minute,
			Interval: 60 * time.Second,
		},
	}
}

// DefaultSLOs returns illustrative SLOs matching DefaultSLIs.
func DefaultSLOs() []SLO {
	return []SLO{
		{
			Name:              "usb-event-latency-slo",
			SLI:               "usb-event-latency",
			Target:            0.95,
			Window:            1 * time.Hour,
			ErrorBudget:       0.05,
			BurnRateWindow:    10 * time.Minute,
			BurnRateThreshold: 0.2,
			Alerting:          SLOAlertingConfig{Enabled: true, Channels: []string{"log"}},
		},
		{
			Name:              "plugin-load-latency-slo",
			SLI:               "plugin-load-latency",
			Target:            0.95,
			Window:            1 * time.Hour,
			ErrorBudget:       0.05,
			BurnRateWindow:    10 * time.Minute,
			BurnRateThreshold: 0.2,
			Alerting:          SLOAlertingConfig{Enabled: true, Channels: []string{"log"}},
		},
		{
			Name:              "system-availability-slo",
			SLI:               "system-availability",
			Target:            0.999,
			Window:            24 * time.Hour,
			ErrorBudget:       0.001,
			BurnRateWindow:    1 * time.Hour,
			BurnRateThreshold: 0.1,
			Alerting:          SLOAlertingConfig{Enabled: true, Channels: []string{"log"}},
		},
		{
			Name:              "system-error-rate-slo",
			SLI:               "system-error-rate",
			Target:            0.99,
			Window:            6 * time.Hour,
			ErrorBudget:       0.01,
			BurnRateWindow:    30 * time.Minute,
			BurnRateThreshold: 0.2,
			Alerting:          SLOAlertingConfig{Enabled: true, Channels: []string{"log"}},
		},
	}
}
