package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// StructuredLogger provides enhanced structured logging capabilities
type StructuredLogger struct {
	*slog.Logger
	serviceName    string
	serviceVersion string
	environment    string
	component      string
}

// Config holds configuration for the structured logger
type Config struct {
	Level       LogLevel `json:"level"`
	Format      string   `json:"format"` // "json" or "text"
	ServiceName string   `json:"service_name"`
	Version     string   `json:"version"`
	Environment string   `json:"environment"`
	Component   string   `json:"component"`
	AddSource   bool     `json:"add_source"`
	TimeFormat  string   `json:"time_format"`
}

// NewStructuredLogger creates a new structured logger instance
func NewStructuredLogger(config Config) *StructuredLogger {
	level := parseLevel(config.Level)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
	}

	if config.TimeFormat != "" {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   slog.TimeKey,
					Value: slog.StringValue(a.Value.Time().Format(config.TimeFormat)),
				}
			}
			return a
		}
	}

	var handler slog.Handler
	switch strings.ToLower(config.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return &StructuredLogger{
		Logger:         slog.New(handler),
		serviceName:    config.ServiceName,
		serviceVersion: config.Version,
		environment:    config.Environment,
		component:      config.Component,
	}
}

// WithComponent creates a logger with a specific component context
func (sl *StructuredLogger) WithComponent(component string) *StructuredLogger {
	return &StructuredLogger{
		Logger:         sl.Logger,
		serviceName:    sl.serviceName,
		serviceVersion: sl.serviceVersion,
		environment:    sl.environment,
		component:      component,
	}
}

// InfoWithContext logs an info message with full service context
func (sl *StructuredLogger) InfoWithContext(msg string, args ...any) {
	sl.Logger.Info(msg, sl.withServiceContext(args...)...)
}

// ErrorWithContext logs an error message with full service context
func (sl *StructuredLogger) ErrorWithContext(msg string, err error, args ...any) {
	attrs := sl.withServiceContext(args...)
	if err != nil {
		attrs = append(attrs, "error", err.Error(), "error_type", fmt.Sprintf("%T", err))
	}
	sl.Logger.Error(msg, attrs...)
}

// WarnWithContext logs a warning message with full service context
func (sl *StructuredLogger) WarnWithContext(msg string, args ...any) {
	sl.Logger.Warn(msg, sl.withServiceContext(args...)...)
}

// DebugWithContext logs a debug message with full service context
func (sl *StructuredLogger) DebugWithContext(msg string, args ...any) {
	sl.Logger.Debug(msg, sl.withServiceContext(args...)...)
}

// LogOperation logs the start and completion of an operation
func (sl *StructuredLogger) LogOperation(operationName string, fn func() error) error {
	start := time.Now()

	sl.InfoWithContext("Operation started",
		"operation", operationName,
		"start_time", start,
	)

	err := fn()
	duration := time.Since(start)

	if err != nil {
		sl.ErrorWithContext("Operation failed",
			err,
			"operation", operationName,
			"duration", duration,
			"duration_ms", duration.Milliseconds(),
		)
	} else {
		sl.InfoWithContext("Operation completed",
			"operation", operationName,
			"duration", duration,
			"duration_ms", duration.Milliseconds(),
		)
	}

	return err
}

// LogPerformance logs performance metrics for an operation
func (sl *StructuredLogger) LogPerformance(operationName string, duration time.Duration, metadata map[string]interface{}) {
	attrs := []any{
		"operation", operationName,
		"duration", duration,
		"duration_ms", duration.Milliseconds(),
		"performance_log", true,
	}

	for key, value := range metadata {
		attrs = append(attrs, key, value)
	}

	sl.InfoWithContext("Performance metrics", attrs...)
}

// withServiceContext adds service-level context to log attributes
func (sl *StructuredLogger) withServiceContext(args ...any) []any {
	baseAttrs := []any{
		"service", sl.serviceName,
		"version", sl.serviceVersion,
		"environment", sl.environment,
	}

	if sl.component != "" {
		baseAttrs = append(baseAttrs, "component", sl.component)
	}

	return append(baseAttrs, args...)
}

// parseLevel converts string level to slog.Level
func parseLevel(level LogLevel) slog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultConfig returns a default logging configuration
func DefaultConfig(serviceName, version, environment string) Config {
	return Config{
		Level:       LevelInfo,
		Format:      "json",
		ServiceName: serviceName,
		Version:     version,
		Environment: environment,
		AddSource:   false,
		TimeFormat:  time.RFC3339,
	}
}

// NewLogger creates a simple logger with the given service name and level
func NewLogger(serviceName string, level string) *StructuredLogger {
	logLevel := LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	}

	return NewStructuredLogger(Config{
		Level:       logLevel,
		Format:      "text",
		ServiceName: serviceName,
		Version:     "1.0.0",
		Environment: "development",
	})
}
