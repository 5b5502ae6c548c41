// Package monitoring provides in-process observability primitives: periodic
// health probing, SLI/SLO evaluation with error-budget tracking, cross-component
// trace correlation, and sampled performance analysis.
package monitoring

// AlertSeverity represents the severity of an alert
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityWarning  AlertSeverity = "warning"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Health check status constants
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"
	HealthStatusUnknown   = "unknown"
)

// EvalStatus classifies an SLI or SLO evaluation result
type EvalStatus string

const (
	EvalStatusOK       EvalStatus = "ok"
	EvalStatusWarning  EvalStatus = "warning"
	EvalStatusCritical EvalStatus = "critical"
)

// TraceStatus classifies the outcome of a trace or trace segment
type TraceStatus string

const (
	TraceStatusSuccess TraceStatus = "success"
	TraceStatusError   TraceStatus = "error"
	TraceStatusTimeout TraceStatus = "timeout"
)

// Trend classifies the direction of a rolling performance metric
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDegrading Trend = "degrading"
)
