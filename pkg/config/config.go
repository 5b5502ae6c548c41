// Package config loads the engine configuration from YAML with environment
// overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GontrandL/autoweave-observability/pkg/logging"
	"github.com/GontrandL/autoweave-observability/pkg/monitoring"
	"github.com/GontrandL/autoweave-observability/pkg/tracing"
)

// ServerConfig holds the HTTP surface configuration.
type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PrometheusConfig binds the SLI query executor to a Prometheus server.
type PrometheusConfig struct {
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
}

// RedisConfig configures the optional Redis health probe.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
}

// Config is the root configuration for the observability engine.
type Config struct {
	Logging       logging.Config                        `yaml:"logging"`
	Server        ServerConfig                          `yaml:"server"`
	Prometheus    PrometheusConfig                      `yaml:"prometheus"`
	Redis         RedisConfig                           `yaml:"redis"`
	Tracing       tracing.Config                        `yaml:"tracing"`
	HealthMonitor monitoring.HealthMonitorConfig        `yaml:"health_monitor"`
	SLOManager    monitoring.SLOManagerConfig           `yaml:"slo_manager"`
	Correlation   monitoring.TraceCorrelationConfig     `yaml:"trace_correlation"`
	Optimizer     monitoring.PerformanceOptimizerConfig `yaml:"performance_optimizer"`
	ProbeBaseURL  string                                `yaml:"probe_base_url"`
	SeedDefaults  bool                                  `yaml:"seed_defaults"`
}

// Default returns a configuration suitable for local development.
func Default() *Config {
	return &Config{
		Logging: logging.DefaultConfig("autoweave-observability", "dev", "development"),
		Server: ServerConfig{
			ListenAddr:   ":8090",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Prometheus: PrometheusConfig{
			Address:   "http://localhost:9090",
			Namespace: "autoweave_observability",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Tracing:       tracing.DefaultConfig(),
		HealthMonitor: *monitoring.DefaultHealthMonitorConfig(),
		SLOManager:    *monitoring.DefaultSLOManagerConfig(),
		Correlation:   *monitoring.DefaultTraceCorrelationConfig(),
		Optimizer:     *monitoring.DefaultPerformanceOptimizerConfig(),
		ProbeBaseURL:  "http://localhost:8080",
		SeedDefaults:  true,
	}
}

// Load reads a YAML configuration file over the defaults. A missing path
// returns the defaults unchanged; a present but unreadable or invalid file
// is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that YAML decoding cannot express.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr must not be empty")
	}
	if c.Prometheus.Address == "" {
		return fmt.Errorf("prometheus.address must not be empty")
	}
	if c.Optimizer.SamplingRate < 0 || c.Optimizer.SamplingRate > 1 {
		return fmt.Errorf("performance_optimizer.sampling_rate must be within [0, 1], got %v", c.Optimizer.SamplingRate)
	}
	if c.Optimizer.MaxSamplesPerProfile <= 0 {
		return fmt.Errorf("performance_optimizer.max_samples_per_profile must be positive")
	}
	if c.SLOManager.EvaluationInterval <= 0 {
		return fmt.Errorf("slo_manager.evaluation_interval must be positive")
	}
	if c.HealthMonitor.CheckInterval <= 0 {
		return fmt.Errorf("health_monitor.check_interval must be positive")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if addr := os.Getenv("OBSENGINE_LISTEN_ADDR"); addr != "" {
		cfg.Server.ListenAddr = addr
	}
	if addr := os.Getenv("OBSENGINE_PROMETHEUS_ADDR"); addr != "" {
		cfg.Prometheus.Address = addr
	}
	if addr := os.Getenv("OBSENGINE_REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if endpoint := os.Getenv("OBSENGINE_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Tracing.Endpoint = endpoint
		cfg.Tracing.Enabled = true
	}
	if level := os.Getenv("OBSENGINE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = logging.LogLevel(level)
	}
}
