package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GontrandL/autoweave-observability/pkg/logging"
)

// HealthCheck represents a registered health probe for a component. Checks are
// registered once at startup and never mutated afterwards.
type HealthCheck struct {
	Name      string
	Component string
	CheckFunc func(ctx context.Context) (*HealthStatus, error)
	Timeout   time.Duration
	Critical  bool
}

// HealthStatus is the result of one probe invocation.
type HealthStatus struct {
	Status       string                 `json:"status"`
	Message      string                 `json:"message,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	ResponseTime time.Duration          `json:"response_time"`
}

// HealthSLO is the Health Monitor's self-contained SLO model: a per-component
// target on a single metric. Richer budget-aware SLOs live in the SLOManager.
type HealthSLO struct {
	Name      string  `json:"name"`
	Component string  `json:"component"`
	Metric    string  `json:"metric"` // "availability" or "response_time"
	Target    float64 `json:"target"`
	// Thresholds are in milliseconds for response_time SLOs.
	WarningThreshold  float64 `json:"warning_threshold"`
	CriticalThreshold float64 `json:"critical_threshold"`
}

// HealthSLI is a simplified SLI-shaped view derived from a registered HealthSLO.
type HealthSLI struct {
	Name         string  `json:"name"`
	Component    string  `json:"component"`
	Metric       string  `json:"metric"`
	Target       float64 `json:"target"`
	CurrentValue float64 `json:"current_value"`
}

// HealthReport is an aggregate snapshot of all registered checks.
type HealthReport struct {
	Overall   string                   `json:"overall"`
	Checks    map[string]*HealthStatus `json:"checks"`
	Timestamp time.Time                `json:"timestamp"`
}

// HealthMonitorConfig holds configuration for the health monitor.
type HealthMonitorConfig struct {
	CheckInterval  time.Duration `yaml:"check_interval"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

// DefaultHealthMonitorConfig returns the default health monitor configuration.
func DefaultHealthMonitorConfig() *HealthMonitorConfig {
	return &HealthMonitorConfig{
		CheckInterval:  30 * time.Second,
		DefaultTimeout: 5 * time.Second,
	}
}

// HealthMonitor periodically runs registered health checks, caches their
// results, and detects SLO violations against per-component targets.
type HealthMonitor struct {
	config  *HealthMonitorConfig
	logger  *logging.StructuredLogger
	metrics *MetricsRecorder

	mu          sync.RWMutex
	checks      map[string]HealthCheck
	slos        map[string]HealthSLO
	lastResults map[string]*HealthStatus

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewHealthMonitor creates a new health monitor.
func NewHealthMonitor(config *HealthMonitorConfig, logger *logging.StructuredLogger, metrics *MetricsRecorder) *HealthMonitor {
	if config == nil {
		config = DefaultHealthMonitorConfig()
	}

	return &HealthMonitor{
		config:      config,
		logger:      logger.WithComponent("health-monitor"),
		metrics:     metrics,
		checks:      make(map[string]HealthCheck),
		slos:        make(map[string]HealthSLO),
		lastResults: make(map[string]*HealthStatus),
	}
}

// RegisterCheck stores a health check by name. Re-registering a name replaces
// the previous check.
func (hm *HealthMonitor) RegisterCheck(check HealthCheck) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	if check.Timeout == 0 {
		check.Timeout = hm.config.DefaultTimeout
	}

	hm.checks[check.Name] = check

	hm.logger.DebugWithContext("Registered health check",
		"check", check.Name,
		"component", check.Component,
		"critical", check.Critical,
	)
}

// RegisterSLO stores a health SLO by name. No corresponding SLI is required;
// this component's SLO model is self-contained.
func (hm *HealthMonitor) RegisterSLO(slo HealthSLO) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.slos[slo.Name] = slo
}

// Start begins periodic health checking. An immediate evaluation pass runs
// before the first interval. Calling Start while running is a no-op.
func (hm *HealthMonitor) Start(ctx context.Context) {
	hm.mu.Lock()
	if hm.running {
		hm.mu.Unlock()
		hm.logger.WarnWithContext("Health monitor already running")
		return
	}
	hm.running = true
	hm.stopCh = make(chan struct{})
	hm.mu.Unlock()

	hm.logger.InfoWithContext("Starting health monitor",
		"check_interval", hm.config.CheckInterval,
	)

	hm.wg.Add(1)
	go hm.runLoop(ctx)
}

// Stop cancels the periodic timer. In-flight checks are allowed to finish;
// their results are discarded. Calling Stop while stopped is a no-op.
func (hm *HealthMonitor) Stop() {
	hm.mu.Lock()
	if !hm.running {
		hm.mu.Unlock()
		return
	}
	hm.running = false
	close(hm.stopCh)
	hm.mu.Unlock()

	hm.wg.Wait()
	hm.logger.InfoWithContext("Health monitor stopped")
}

func (hm *HealthMonitor) runLoop(ctx context.Context) {
	defer hm.wg.Done()

	ticker := time.NewTicker(hm.config.CheckInterval)
	defer ticker.Stop()

	hm.runAllChecks(ctx)

	for {
		select {
		case <-hm.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			hm.runAllChecks(ctx)
		}
	}
}

// runAllChecks executes all registered checks concurrently and caches results.
func (hm *HealthMonitor) runAllChecks(ctx context.Context) {
	hm.mu.RLock()
	checks := make([]HealthCheck, 0, len(hm.checks))
	for _, check := range hm.checks {
		checks = append(checks, check)
	}
	hm.mu.RUnlock()

	var wg sync.WaitGroup
	for _, check := range checks {
		wg.Add(1)
		go func(c HealthCheck) {
			defer wg.Done()
			status := hm.runSingleCheck(ctx, c)

			hm.mu.Lock()
			hm.lastResults[c.Name] = status
			hm.mu.Unlock()
		}(check)
	}

	wg.Wait()
}

// runSingleCheck races a check against its timeout. A timeout is treated
// identically to a failed check.
func (hm *HealthMonitor) runSingleCheck(ctx context.Context, check HealthCheck) *HealthStatus {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	type checkResult struct {
		status *HealthStatus
		err    error
	}

	resultCh := make(chan checkResult, 1)
	go func() {
		status, err := check.CheckFunc(checkCtx)
		resultCh <- checkResult{status: status, err: err}
	}()

	var status *HealthStatus
	var err error

	select {
	case result := <-resultCh:
		status, err = result.status, result.err
	case <-checkCtx.Done():
		err = fmt.Errorf("health check %q timed out after %v", check.Name, check.Timeout)
	}

	responseTime := time.Since(start)

	if err != nil {
		status = &HealthStatus{
			Status:  HealthStatusUnhealthy,
			Message: err.Error(),
		}

		if check.Critical {
			hm.logger.ErrorWithContext("Critical health check failed", err,
				"check", check.Name,
				"component", check.Component,
				"duration", responseTime,
			)
			hm.metrics.RecordSLOViolation(check.Component, check.Name, SeverityCritical)
		} else {
			hm.logger.WarnWithContext("Health check failed",
				"check", check.Name,
				"component", check.Component,
				"duration", responseTime,
				"error", err.Error(),
			)
		}

		hm.metrics.RecordError(check.Component, "health_check_failure", SeverityWarning)
		hm.metrics.RecordAvailability(check.Component, false)
	} else {
		if status == nil {
			status = &HealthStatus{Status: HealthStatusHealthy}
		}
		hm.metrics.RecordAvailability(check.Component, status.Status == HealthStatusHealthy)
	}

	status.Timestamp = start
	status.ResponseTime = responseTime

	hm.checkSLOViolations(check, status)

	return status
}

// checkSLOViolations evaluates every SLO bound to the check's component
// against the just-produced status.
func (hm *HealthMonitor) checkSLOViolations(check HealthCheck, status *HealthStatus) {
	hm.mu.RLock()
	slos := make([]HealthSLO, 0, len(hm.slos))
	for _, slo := range hm.slos {
		if slo.Component == check.Component {
			slos = append(slos, slo)
		}
	}
	hm.mu.RUnlock()

	for _, slo := range slos {
		severity, violated := hm.evaluateSLO(slo, status)
		if !violated {
			continue
		}

		hm.metrics.RecordSLOViolation(slo.Component, slo.Name, severity)
		hm.logger.WarnWithContext("SLO violation detected",
			"slo", slo.Name,
			"component", slo.Component,
			"metric", slo.Metric,
			"severity", string(severity),
			"status", status.Status,
			"response_time_ms", float64(status.ResponseTime.Milliseconds()),
		)
	}
}

func (hm *HealthMonitor) evaluateSLO(slo HealthSLO, status *HealthStatus) (AlertSeverity, bool) {
	switch slo.Metric {
	case "availability":
		switch status.Status {
		case HealthStatusUnhealthy:
			return SeverityCritical, true
		case HealthStatusDegraded:
			return SeverityWarning, true
		}
	case "response_time":
		responseMs := float64(status.ResponseTime.Milliseconds())
		if slo.CriticalThreshold > 0 && responseMs > slo.CriticalThreshold {
			return SeverityCritical, true
		}
		if slo.WarningThreshold > 0 && responseMs > slo.WarningThreshold {
			return SeverityWarning, true
		}
	}
	return "", false
}

// GetHealthStatus runs an on-demand synchronous sweep of all registered
// checks, independent of the periodic timer.
func (hm *HealthMonitor) GetHealthStatus(ctx context.Context) *HealthReport {
	hm.mu.RLock()
	checks := make([]HealthCheck, 0, len(hm.checks))
	for _, check := range hm.checks {
		checks = append(checks, check)
	}
	hm.mu.RUnlock()

	report := &HealthReport{
		Checks:    make(map[string]*HealthStatus, len(checks)),
		Timestamp: time.Now(),
	}

	var wg sync.WaitGroup
	var resultsMu sync.Mutex
	for _, check := range checks {
		wg.Add(1)
		go func(c HealthCheck) {
			defer wg.Done()
			status := hm.runSingleCheck(ctx, c)

			resultsMu.Lock()
			report.Checks[c.Name] = status
			resultsMu.Unlock()
		}(check)
	}
	wg.Wait()

	report.Overall = aggregateStatus(report.Checks)
	return report
}

// aggregateStatus is healthy iff all checks are healthy, unhealthy iff at
// least one is unhealthy, and degraded otherwise.
func aggregateStatus(checks map[string]*HealthStatus) string {
	if len(checks) == 0 {
		return HealthStatusHealthy
	}

	overall := HealthStatusHealthy
	for _, status := range checks {
		switch status.Status {
		case HealthStatusUnhealthy:
			return HealthStatusUnhealthy
		case HealthStatusHealthy:
		default:
			overall = HealthStatusDegraded
		}
	}
	return overall
}

// GetSLIs returns one SLI-shaped record per registered SLO, with the current
// value derived from the most recent cached check result for the component.
func (hm *HealthMonitor) GetSLIs() []HealthSLI {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	slis := make([]HealthSLI, 0, len(hm.slos))
	for _, slo := range hm.slos {
		sli := HealthSLI{
			Name:      slo.Name,
			Component: slo.Component,
			Metric:    slo.Metric,
			Target:    slo.Target,
		}

		if status := hm.latestComponentStatus(slo.Component); status != nil {
			switch slo.Metric {
			case "availability":
				if status.Status == HealthStatusHealthy {
					sli.CurrentValue = 1.0
				}
			case "response_time":
				sli.CurrentValue = float64(status.ResponseTime.Milliseconds())
			}
		}

		slis = append(slis, sli)
	}
	return slis
}

// latestComponentStatus returns the most recent cached result for any check
// belonging to the given component. Caller must hold hm.mu.
func (hm *HealthMonitor) latestComponentStatus(component string) *HealthStatus {
	var latest *HealthStatus
	for name, check := range hm.checks {
		if check.Component != component {
			continue
		}
		status, ok := hm.lastResults[name]
		if !ok {
			continue
		}
		if latest == nil || status.Timestamp.After(latest.Timestamp) {
			latest = status
		}
	}
	return latest
}
