package monitoring

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/GontrandL/autoweave-observability/pkg/logging"
)

// PerformanceSample is one measured unit of work reported by instrumentation.
// An empty Status counts as success.
type PerformanceSample struct {
	Timestamp     time.Time         `json:"timestamp"`
	Duration      time.Duration     `json:"duration"`
	MemoryUsageMB float64           `json:"memory_usage_mb"`
	CPUPercent    float64           `json:"cpu_percent"`
	Status        TraceStatus       `json:"status,omitempty"`
	TenantID      string            `json:"tenant_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func (s PerformanceSample) failed() bool {
	return s.Status == TraceStatusError || s.Status == TraceStatusTimeout
}

// PerformanceStatistics summarizes the retained samples of one profile.
// Percentiles are exact over the current buffer, recomputed on every accepted
// sample.
type PerformanceStatistics struct {
	SampleCount   int           `json:"sample_count"`
	MinDuration   time.Duration `json:"min_duration"`
	MaxDuration   time.Duration `json:"max_duration"`
	MeanDuration  time.Duration `json:"mean_duration"`
	P50           float64       `json:"p50_ms"`
	P95           float64       `json:"p95_ms"`
	P99           float64       `json:"p99_ms"`
	ErrorRate     float64       `json:"error_rate"`
	Throughput    float64       `json:"throughput_ops_per_sec"`
	AvgMemoryMB   float64       `json:"avg_memory_mb"`
	AvgCPUPercent float64       `json:"avg_cpu_percent"`
	Trend         Trend         `json:"trend"`
}

// PerformanceProfile accumulates samples for one (component, operation) pair.
type PerformanceProfile struct {
	Component   string                `json:"component"`
	Operation   string                `json:"operation"`
	Samples     []PerformanceSample   `json:"-"`
	Statistics  PerformanceStatistics `json:"statistics"`
	CreatedAt   time.Time             `json:"created_at"`
	LastUpdated time.Time             `json:"last_updated"`
}

// ResourceUsageThreshold defines warning and critical levels for one metric
// of one component. Latency thresholds are milliseconds; memory is MB; cpu is
// percent; throughput is ops/sec and breaches downward.
type ResourceUsageThreshold struct {
	Component string  `yaml:"component" json:"component"`
	Metric    string  `yaml:"metric" json:"metric"`
	Warning   float64 `yaml:"warning" json:"warning"`
	Critical  float64 `yaml:"critical" json:"critical"`
}

// PerformanceAlert is emitted synchronously when a sample breaches a
// threshold. No deduplication: a sustained breach produces one alert per
// accepted sample.
type PerformanceAlert struct {
	Component string        `json:"component"`
	Operation string        `json:"operation"`
	Metric    string        `json:"metric"`
	Severity  AlertSeverity `json:"severity"`
	Value     float64       `json:"value"`
	Threshold float64       `json:"threshold"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

// OptimizationRecommendation is produced by the periodic rule pass.
type OptimizationRecommendation struct {
	Component      string        `json:"component"`
	Operation      string        `json:"operation"`
	Kind           string        `json:"kind"`
	Priority       AlertSeverity `json:"priority"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Impact         string        `json:"impact"`
	Implementation string        `json:"implementation"`
	Effort         string        `json:"effort"`
	EstimatedGain  string        `json:"estimated_gain"`
	Dependencies   []string      `json:"dependencies,omitempty"`
	Value          float64       `json:"value"`
	Timestamp      time.Time     `json:"timestamp"`
}

// PerformanceOptimizerConfig holds configuration for the performance
// optimizer.
type PerformanceOptimizerConfig struct {
	SamplingRate           float64       `yaml:"sampling_rate"`
	MaxSamplesPerProfile   int           `yaml:"max_samples_per_profile"`
	RecommendationInterval time.Duration `yaml:"recommendation_interval"`
	RetentionSweepInterval time.Duration `yaml:"retention_sweep_interval"`
	ProfileRetention       time.Duration `yaml:"profile_retention"`
}

// DefaultPerformanceOptimizerConfig returns the default performance optimizer
// configuration.
func DefaultPerformanceOptimizerConfig() *PerformanceOptimizerConfig {
	return &PerformanceOptimizerConfig{
		SamplingRate:           0.1,
		MaxSamplesPerProfile:   1000,
		RecommendationInterval: 5 * time.Minute,
		RetentionSweepInterval: 1 * time.Minute,
		ProfileRetention:       24 * time.Hour,
	}
}

// PerformanceOptimizer collects sampled performance data, alerts on threshold
// breaches synchronously, and generates rule-based optimization
// recommendations on an interval. Probabilistic sampling is its only
// backpressure mechanism; an unsampled call returns immediately.
type PerformanceOptimizer struct {
	config  *PerformanceOptimizerConfig
	logger  *logging.StructuredLogger
	metrics *MetricsRecorder

	mu              sync.RWMutex
	profiles        map[string]*PerformanceProfile
	thresholds      map[string][]ResourceUsageThreshold
	alerts          []PerformanceAlert
	recommendations []OptimizationRecommendation

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPerformanceOptimizer creates a new performance optimizer seeded with the
// default per-component thresholds.
func NewPerformanceOptimizer(config *PerformanceOptimizerConfig, logger *logging.StructuredLogger, metrics *MetricsRecorder) *PerformanceOptimizer {
	if config == nil {
		config = DefaultPerformanceOptimizerConfig()
	}

	po := &PerformanceOptimizer{
		config:     config,
		logger:     logger.WithComponent("performance-optimizer"),
		metrics:    metrics,
		profiles:   make(map[string]*PerformanceProfile),
		thresholds: make(map[string][]ResourceUsageThreshold),
	}

	for _, threshold := range DefaultResourceThresholds() {
		po.SetThreshold(threshold)
	}

	return po
}

// SetThreshold installs or replaces the threshold for one
// (component, metric) pair. The component's slice is replaced, never mutated
// in place, so readers holding a previously fetched slice stay safe.
func (po *PerformanceOptimizer) SetThreshold(threshold ResourceUsageThreshold) {
	po.mu.Lock()
	defer po.mu.Unlock()

	existing := po.thresholds[threshold.Component]
	updated := make([]ResourceUsageThreshold, 0, len(existing)+1)
	replaced := false
	for _, current := range existing {
		if current.Metric == threshold.Metric {
			updated = append(updated, threshold)
			replaced = true
			continue
		}
		updated = append(updated, current)
	}
	if !replaced {
		updated = append(updated, threshold)
	}
	po.thresholds[threshold.Component] = updated
}

// Start launches the recommendation and retention loops. Calling Start while
// running is a no-op.
func (po *PerformanceOptimizer) Start(ctx context.Context) {
	po.mu.Lock()
	if po.running {
		po.mu.Unlock()
		po.logger.WarnWithContext("Performance optimizer already running")
		return
	}
	po.running = true
	po.stopCh = make(chan struct{})
	po.mu.Unlock()

	po.logger.InfoWithContext("Starting performance optimizer",
		"sampling_rate", po.config.SamplingRate,
		"recommendation_interval", po.config.RecommendationInterval,
	)

	po.wg.Add(2)
	go po.recommendationLoop(ctx)
	go po.retentionLoop(ctx)
}

// Stop tears down the periodic loops. Calling Stop while stopped is a no-op.
func (po *PerformanceOptimizer) Stop() {
	po.mu.Lock()
	if !po.running {
		po.mu.Unlock()
		return
	}
	po.running = false
	close(po.stopCh)
	po.mu.Unlock()

	po.wg.Wait()
	po.logger.InfoWithContext("Performance optimizer stopped")
}

// RecordSample applies probabilistic sampling, then folds the sample into its
// profile, recomputes statistics, and checks thresholds. A dropped sample
// does no work at all.
func (po *PerformanceOptimizer) RecordSample(component, operation string, sample PerformanceSample) {
	if po.config.SamplingRate <= 0 {
		return
	}
	if po.config.SamplingRate < 1 && rand.Float64() > po.config.SamplingRate {
		return
	}

	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	key := component + "/" + operation

	po.mu.Lock()
	profile, ok := po.profiles[key]
	if !ok {
		profile = &PerformanceProfile{
			Component: component,
			Operation: operation,
			CreatedAt: time.Now(),
		}
		po.profiles[key] = profile
	}

	profile.Samples = append(profile.Samples, sample)
	if len(profile.Samples) > po.config.MaxSamplesPerProfile {
		profile.Samples = profile.Samples[len(profile.Samples)-po.config.MaxSamplesPerProfile:]
	}
	profile.Statistics = computeStatistics(profile.Samples)
	profile.LastUpdated = time.Now()

	// Copy the stats value and take the threshold slice while still holding
	// the lock; a concurrent RecordSample for the same key rewrites
	// profile.Statistics, and SetThreshold swaps the slice.
	stats := profile.Statistics
	thresholds := po.thresholds[component]
	po.mu.Unlock()

	po.metrics.RecordComponentLatency(component, operation, sample.Duration)
	po.checkThresholds(component, operation, sample, stats, thresholds)
}

// checkThresholds emits at most one alert per metric for this sample; when
// both levels are breached only the critical alert fires.
func (po *PerformanceOptimizer) checkThresholds(component, operation string, sample PerformanceSample, stats PerformanceStatistics, thresholds []ResourceUsageThreshold) {
	for _, threshold := range thresholds {
		var value float64
		breachBelow := false

		switch threshold.Metric {
		case "latency":
			value = float64(sample.Duration.Milliseconds())
		case "memory":
			value = sample.MemoryUsageMB
		case "cpu":
			value = sample.CPUPercent
		case "throughput":
			value = stats.Throughput
			breachBelow = true
		default:
			continue
		}

		severity, limit := classifyBreach(value, threshold, breachBelow)
		if severity == "" {
			continue
		}

		alert := PerformanceAlert{
			Component: component,
			Operation: operation,
			Metric:    threshold.Metric,
			Severity:  severity,
			Value:     value,
			Threshold: limit,
			Message: fmt.Sprintf("%s %s breached %s threshold: %.1f (limit %.1f)",
				component, threshold.Metric, severity, value, limit),
			Timestamp: time.Now(),
		}

		po.mu.Lock()
		po.alerts = append(po.alerts, alert)
		po.mu.Unlock()

		po.logger.WarnWithContext("Performance threshold breached",
			"component", component,
			"operation", operation,
			"metric", threshold.Metric,
			"severity", string(severity),
			"value", value,
			"threshold", limit,
		)
		po.metrics.RecordAlert(severity, component)
	}
}

func classifyBreach(value float64, threshold ResourceUsageThreshold, breachBelow bool) (AlertSeverity, float64) {
	if breachBelow {
		if value <= 0 {
			return "", 0
		}
		if threshold.Critical > 0 && value < threshold.Critical {
			return SeverityCritical, threshold.Critical
		}
		if threshold.Warning > 0 && value < threshold.Warning {
			return SeverityWarning, threshold.Warning
		}
		return "", 0
	}

	if threshold.Critical > 0 && value >= threshold.Critical {
		return SeverityCritical, threshold.Critical
	}
	if threshold.Warning > 0 && value >= threshold.Warning {
		return SeverityWarning, threshold.Warning
	}
	return "", 0
}

// computeStatistics fully recomputes statistics over the retained buffer.
// A full sort per sample is acceptable at the bounded buffer size.
func computeStatistics(samples []PerformanceSample) PerformanceStatistics {
	stats := PerformanceStatistics{SampleCount: len(samples), Trend: TrendStable}
	if len(samples) == 0 {
		return stats
	}

	durations := make([]float64, len(samples))
	var totalDuration time.Duration
	var totalMemory, totalCPU float64
	errorCount := 0

	for i, sample := range samples {
		durations[i] = float64(sample.Duration.Milliseconds())
		totalDuration += sample.Duration
		totalMemory += sample.MemoryUsageMB
		totalCPU += sample.CPUPercent
		if sample.failed() {
			errorCount++
		}
	}
	sort.Float64s(durations)

	stats.MinDuration = time.Duration(durations[0]) * time.Millisecond
	stats.MaxDuration = time.Duration(durations[len(durations)-1]) * time.Millisecond
	stats.MeanDuration = totalDuration / time.Duration(len(samples))
	stats.P50 = percentile(durations, 0.50)
	stats.P95 = percentile(durations, 0.95)
	stats.P99 = percentile(durations, 0.99)
	stats.ErrorRate = float64(errorCount) / float64(len(samples))
	stats.AvgMemoryMB = totalMemory / float64(len(samples))
	stats.AvgCPUPercent = totalCPU / float64(len(samples))
	stats.Trend = computeTrend(samples)

	if span := samples[len(samples)-1].Timestamp.Sub(samples[0].Timestamp).Seconds(); span > 0 {
		stats.Throughput = float64(len(samples)) / span
	}

	return stats
}

func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// computeTrend compares the mean duration of the most recent 10 samples
// against the preceding 10. Fewer than 20 samples is always stable.
func computeTrend(samples []PerformanceSample) Trend {
	if len(samples) < 20 {
		return TrendStable
	}

	recent := samples[len(samples)-10:]
	prior := samples[len(samples)-20 : len(samples)-10]

	recentAvg := meanDurationMs(recent)
	priorAvg := meanDurationMs(prior)
	if priorAvg == 0 {
		return TrendStable
	}

	change := (recentAvg - priorAvg) / priorAvg
	switch {
	case change > 0.10:
		return TrendDegrading
	case change < -0.10:
		return TrendImproving
	default:
		return TrendStable
	}
}

func meanDurationMs(samples []PerformanceSample) float64 {
	var total float64
	for _, sample := range samples {
		total += float64(sample.Duration.Milliseconds())
	}
	return total / float64(len(samples))
}

func (po *PerformanceOptimizer) recommendationLoop(ctx context.Context) {
	defer po.wg.Done()

	ticker := time.NewTicker(po.config.RecommendationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-po.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			po.generateRecommendations()
		}
	}
}

// generateRecommendations evaluates each rule independently per profile and
// replaces the recommendation list.
func (po *PerformanceOptimizer) generateRecommendations() {
	now := time.Now()

	po.mu.Lock()
	defer po.mu.Unlock()

	var recommendations []OptimizationRecommendation
	for _, profile := range po.profiles {
		stats := profile.Statistics

		if stats.P95 > 200 {
			priority := SeverityHigh
			if stats.P95 > 500 {
				priority = SeverityCritical
			}
			recommendations = append(recommendations, OptimizationRecommendation{
				Component: profile.Component,
				Operation: profile.Operation,
				Kind:      "high_latency",
				Priority:  priority,
				Title:     "Reduce operation latency",
				Description: fmt.Sprintf("p95 latency %.0fms for %s/%s",
					stats.P95, profile.Component, profile.Operation),
				Impact:         "Slow responses delay every downstream consumer of this operation",
				Implementation: "Add result caching or batch repeated calls; profile the hot path for blocking I/O",
				Effort:         "medium",
				EstimatedGain:  "30-50% p95 latency reduction",
				Value:          stats.P95,
				Timestamp:      now,
			})
		}

		if stats.AvgMemoryMB > 512 {
			priority := SeverityHigh
			if stats.AvgMemoryMB > 1024 {
				priority = SeverityCritical
			}
			recommendations = append(recommendations, OptimizationRecommendation{
				Component: profile.Component,
				Operation: profile.Operation,
				Kind:      "high_memory",
				Priority:  priority,
				Title:     "Reduce memory footprint",
				Description: fmt.Sprintf("average memory %.0fMB for %s/%s",
					stats.AvgMemoryMB, profile.Component, profile.Operation),
				Impact:         "High memory pressure risks OOM kills and degrades co-located components",
				Implementation: "Check for retained buffers and unbounded caches; stream instead of loading whole payloads",
				Effort:         "medium",
				EstimatedGain:  "memory usage back under the component threshold",
				Value:          stats.AvgMemoryMB,
				Timestamp:      now,
			})
		}

		if stats.AvgCPUPercent > 70 {
			priority := SeverityHigh
			if stats.AvgCPUPercent > 90 {
				priority = SeverityCritical
			}
			recommendations = append(recommendations, OptimizationRecommendation{
				Component: profile.Component,
				Operation: profile.Operation,
				Kind:      "high_cpu",
				Priority:  priority,
				Title:     "Reduce CPU usage",
				Description: fmt.Sprintf("average cpu %.0f%% for %s/%s",
					stats.AvgCPUPercent, profile.Component, profile.Operation),
				Impact:         "CPU saturation starves sibling goroutines and inflates tail latency",
				Implementation: "Profile hot paths; precompute or memoize repeated work; move heavy parsing off the request path",
				Effort:         "high",
				EstimatedGain:  "cpu headroom restored below the warning threshold",
				Value:          stats.AvgCPUPercent,
				Timestamp:      now,
			})
		}

		if stats.ErrorRate > 0.05 {
			priority := SeverityHigh
			if stats.ErrorRate > 0.10 {
				priority = SeverityCritical
			}
			recommendations = append(recommendations, OptimizationRecommendation{
				Component: profile.Component,
				Operation: profile.Operation,
				Kind:      "high_error_rate",
				Priority:  priority,
				Title:     "Investigate elevated error rate",
				Description: fmt.Sprintf("error rate %.1f%% for %s/%s",
					stats.ErrorRate*100, profile.Component, profile.Operation),
				Impact:         "Failures burn SLO error budget and may cascade to dependent operations",
				Implementation: "Inspect recent failure samples; add retries with backoff for transient causes",
				Effort:         "low",
				EstimatedGain:  "error rate back under 5%",
				Dependencies:   []string{"trace correlation error segments"},
				Value:          stats.ErrorRate,
				Timestamp:      now,
			})
		}

		if stats.Throughput > 0 && stats.Throughput < 10 {
			priority := SeverityMedium
			if stats.Throughput < 5 {
				priority = SeverityCritical
			}
			recommendations = append(recommendations, OptimizationRecommendation{
				Component: profile.Component,
				Operation: profile.Operation,
				Kind:      "low_throughput",
				Priority:  priority,
				Title:     "Raise operation throughput",
				Description: fmt.Sprintf("throughput %.1f ops/s for %s/%s",
					stats.Throughput, profile.Component, profile.Operation),
				Impact:         "Work queues behind this operation will back up under load",
				Implementation: "Check upstream backpressure; increase worker concurrency or batch size",
				Effort:         "medium",
				EstimatedGain:  "throughput above the component floor",
				Value:          stats.Throughput,
				Timestamp:      now,
			})
		}

		if stats.Trend == TrendDegrading {
			recommendations = append(recommendations, OptimizationRecommendation{
				Component: profile.Component,
				Operation: profile.Operation,
				Kind:      "degrading_trend",
				Priority:  SeverityMedium,
				Title:     "Arrest degrading latency trend",
				Description: fmt.Sprintf("latency trend degrading for %s/%s",
					profile.Component, profile.Operation),
				Impact:         "Sustained degradation becomes a threshold breach if left unattended",
				Implementation: "Compare recent deployments and load against the prior window; look for growing state",
				Effort:         "low",
				EstimatedGain:  "trend returned to stable before alerts fire",
				Value:          stats.P50,
				Timestamp:      now,
			})
		}
	}

	po.recommendations = recommendations

	if len(recommendations) > 0 {
		po.logger.InfoWithContext("Generated optimization recommendations",
			"count", len(recommendations),
		)
	}
}

func (po *PerformanceOptimizer) retentionLoop(ctx context.Context) {
	defer po.wg.Done()

	ticker := time.NewTicker(po.config.RetentionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-po.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			po.sweepRetention()
		}
	}
}

// sweepRetention drops idle profiles and prunes the alert log.
func (po *PerformanceOptimizer) sweepRetention() {
	cutoff := time.Now().Add(-po.config.ProfileRetention)

	po.mu.Lock()
	defer po.mu.Unlock()

	for key, profile := range po.profiles {
		if profile.LastUpdated.Before(cutoff) {
			delete(po.profiles, key)
			po.logger.DebugWithContext("Dropped idle performance profile",
				"component", profile.Component,
				"operation", profile.Operation,
			)
		}
	}

	idx := 0
	for idx < len(po.alerts) && po.alerts[idx].Timestamp.Before(cutoff) {
		idx++
	}
	po.alerts = po.alerts[idx:]
}

// GetProfile returns the profile for a (component, operation) pair, or nil.
func (po *PerformanceOptimizer) GetProfile(component, operation string) *PerformanceProfile {
	po.mu.RLock()
	defer po.mu.RUnlock()

	profile, ok := po.profiles[component+"/"+operation]
	if !ok {
		return nil
	}

	clone := *profile
	clone.Samples = make([]PerformanceSample, len(profile.Samples))
	copy(clone.Samples, profile.Samples)
	return &clone
}

// GetAlerts returns a copy of the retained alert log.
func (po *PerformanceOptimizer) GetAlerts() []PerformanceAlert {
	po.mu.RLock()
	defer po.mu.RUnlock()

	result := make([]PerformanceAlert, len(po.alerts))
	copy(result, po.alerts)
	return result
}

// GetRecommendations returns the recommendations from the latest rule pass.
func (po *PerformanceOptimizer) GetRecommendations() []OptimizationRecommendation {
	po.mu.RLock()
	defer po.mu.RUnlock()

	result := make([]OptimizationRecommendation, len(po.recommendations))
	copy(result, po.recommendations)
	return result
}

// PerformanceDashboardData is an aggregate snapshot for dashboard rendering.
type PerformanceDashboardData struct {
	ProfileCount        int                          `json:"profile_count"`
	TotalSamples        int                          `json:"total_samples"`
	AvgLatencyMs        float64                      `json:"avg_latency_ms"`
	AvgErrorRate        float64                      `json:"avg_error_rate"`
	AvgThroughput       float64                      `json:"avg_throughput"`
	RecentAlertCount    int                          `json:"recent_alert_count"`
	CriticalRecommCount int                          `json:"critical_recommendation_count"`
	HighRecommCount     int                          `json:"high_recommendation_count"`
	TopProfiles         []PerformanceProfile         `json:"top_profiles"`
	TopRecommendations  []OptimizationRecommendation `json:"top_recommendations"`
	Timestamp           time.Time                    `json:"timestamp"`
}

// GetDashboardData aggregates across all profiles: averages, alert and
// recommendation counts, the top 20 profiles by p95 latency, and the top 10
// recommendations by priority.
func (po *PerformanceOptimizer) GetDashboardData() *PerformanceDashboardData {
	po.mu.RLock()
	defer po.mu.RUnlock()

	data := &PerformanceDashboardData{
		ProfileCount: len(po.profiles),
		Timestamp:    time.Now(),
	}

	var totalLatency, totalErrorRate, totalThroughput float64
	profiles := make([]PerformanceProfile, 0, len(po.profiles))
	for _, profile := range po.profiles {
		clone := *profile
		clone.Samples = nil
		profiles = append(profiles, clone)

		data.TotalSamples += profile.Statistics.SampleCount
		totalLatency += profile.Statistics.P50
		totalErrorRate += profile.Statistics.ErrorRate
		totalThroughput += profile.Statistics.Throughput
	}
	if len(profiles) > 0 {
		data.AvgLatencyMs = totalLatency / float64(len(profiles))
		data.AvgErrorRate = totalErrorRate / float64(len(profiles))
		data.AvgThroughput = totalThroughput / float64(len(profiles))
	}

	recentCutoff := time.Now().Add(-time.Hour)
	for _, alert := range po.alerts {
		if alert.Timestamp.After(recentCutoff) {
			data.RecentAlertCount++
		}
	}

	for _, recommendation := range po.recommendations {
		switch recommendation.Priority {
		case SeverityCritical:
			data.CriticalRecommCount++
		case SeverityHigh:
			data.HighRecommCount++
		}
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Statistics.P95 > profiles[j].Statistics.P95
	})
	if len(profiles) > 20 {
		profiles = profiles[:20]
	}
	data.TopProfiles = profiles

	recommendations := make([]OptimizationRecommendation, len(po.recommendations))
	copy(recommendations, po.recommendations)
	sort.Slice(recommendations, func(i, j int) bool {
		return severityRank(recommendations[i].Priority) > severityRank(recommendations[j].Priority)
	})
	if len(recommendations) > 10 {
		recommendations = recommendations[:10]
	}
	data.TopRecommendations = recommendations

	return data
}

func severityRank(severity AlertSeverity) int {
	switch severity {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityWarning:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// DefaultResourceThresholds seeds per-component thresholds for the platform's
// named components. Components without thresholds never alert.
func DefaultResourceThresholds() []ResourceUsageThreshold {
	return []ResourceUsageThreshold{
		{Component: "usb-daemon", Metric: "latency", Warning: 80, Critical: 100},
		{Component: "usb-daemon", Metric: "cpu", Warning: 70, Critical: 90},
		{Component: "usb-daemon", Metric: "memory", Warning: 128, Critical: 256},
		{Component: "usb-daemon", Metric: "throughput", Warning: 50, Critical: 10},

		{Component: "plugin-loader", Metric: "latency", Warning: 200, Critical: 250},
		{Component: "plugin-loader", Metric: "cpu", Warning: 70, Critical: 90},
		{Component: "plugin-loader", Metric: "memory", Warning: 512, Critical: 1024},
		{Component: "plugin-loader", Metric: "throughput", Warning: 20, Critical: 5},

		{Component: "queue-manager", Metric: "latency", Warning: 50, Critical: 100},
		{Component: "queue-manager", Metric: "cpu", Warning: 60, Critical: 85},
		{Component: "queue-manager", Metric: "memory", Warning: 256, Critical: 512},
		{Component: "queue-manager", Metric: "throughput", Warning: 100, Critical: 20},

		{Component: "memory-system", Metric: "latency", Warning: 150, Critical: 400},
		{Component: "memory-system", Metric: "cpu", Warning: 70, Critical: 90},
		{Component: "memory-system", Metric: "memory", Warning: 1024, Critical: 2048},
		{Component: "memory-system", Metric: "throughput", Warning: 30, Critical: 10},
	}
}
