package logging

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseLevel(tt.input), "level %q", tt.input)
	}
}

func TestWithComponentPreservesServiceContext(t *testing.T) {
	logger := NewStructuredLogger(Config{
		ServiceName: "obsengine",
		Version:     "1.2.3",
		Environment: "test",
	})

	scoped := logger.WithComponent("slo-manager")
	assert.Equal(t, "slo-manager", scoped.component)
	assert.Equal(t, "obsengine", scoped.serviceName)
	assert.Equal(t, "1.2.3", scoped.serviceVersion)

	// The original logger is untouched.
	assert.Empty(t, logger.component)
}

func TestWithServiceContextIncludesComponent(t *testing.T) {
	logger := NewStructuredLogger(Config{ServiceName: "obsengine"}).WithComponent("health-monitor")

	attrs := logger.withServiceContext("key", "value")

	var found bool
	for i := 0; i < len(attrs)-1; i += 2 {
		if attrs[i] == "component" {
			found = true
			assert.Equal(t, "health-monitor", attrs[i+1])
		}
	}
	assert.True(t, found)
	assert.Equal(t, "value", attrs[len(attrs)-1])
}

func TestLogOperationReturnsWrappedError(t *testing.T) {
	logger := NewStructuredLogger(Config{ServiceName: "obsengine", Level: LevelError})

	wantErr := errors.New("probe failed")
	err := logger.LogOperation("probe", func() error { return wantErr })
	assert.Equal(t, wantErr, err)

	require.NoError(t, logger.LogOperation("probe", func() error { return nil }))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("obsengine", "1.0.0", "production")

	assert.Equal(t, LevelInfo, cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, time.RFC3339, cfg.TimeFormat)
	assert.Equal(t, "production", cfg.Environment)
}
