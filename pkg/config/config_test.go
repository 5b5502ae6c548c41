package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.Server.ListenAddr)
	assert.Equal(t, 60*time.Second, cfg.SLOManager.EvaluationInterval)
	assert.Equal(t, 0.1, cfg.Optimizer.SamplingRate)
	assert.True(t, cfg.SeedDefaults)
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  listen_addr: ":9999"
slo_manager:
  evaluation_interval: 30s
performance_optimizer:
  sampling_rate: 0.5
  max_samples_per_profile: 200
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.SLOManager.EvaluationInterval)
	assert.Equal(t, 0.5, cfg.Optimizer.SamplingRate)
	assert.Equal(t, 200, cfg.Optimizer.MaxSamplesPerProfile)

	// Untouched sections keep their defaults.
	assert.Equal(t, "http://localhost:9090", cfg.Prometheus.Address)
	assert.Equal(t, 30*time.Second, cfg.HealthMonitor.CheckInterval)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a mapping"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.Server.ListenAddr = "" }},
		{"empty prometheus addr", func(c *Config) { c.Prometheus.Address = "" }},
		{"sampling rate above one", func(c *Config) { c.Optimizer.SamplingRate = 1.5 }},
		{"negative sampling rate", func(c *Config) { c.Optimizer.SamplingRate = -0.1 }},
		{"zero sample cap", func(c *Config) { c.Optimizer.MaxSamplesPerProfile = 0 }},
		{"zero evaluation interval", func(c *Config) { c.SLOManager.EvaluationInterval = 0 }},
		{"zero check interval", func(c *Config) { c.HealthMonitor.CheckInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OBSENGINE_LISTEN_ADDR", ":7777")
	t.Setenv("OBSENGINE_PROMETHEUS_ADDR", "http://prom:9090")
	t.Setenv("OBSENGINE_REDIS_ADDR", "redis:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Server.ListenAddr)
	assert.Equal(t, "http://prom:9090", cfg.Prometheus.Address)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.Enabled)
}
