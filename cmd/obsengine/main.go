// Command obsengine runs the AutoWeave observability engine: periodic health
// probing, SLI/SLO evaluation, trace correlation, and sampled performance
// analysis, exposed over a small HTTP surface.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/GontrandL/autoweave-observability/pkg/config"
	"github.com/GontrandL/autoweave-observability/pkg/logging"
	"github.com/GontrandL/autoweave-observability/pkg/monitoring"
	"github.com/GontrandL/autoweave-observability/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "obsengine: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewStructuredLogger(cfg.Logging)
	logger.InfoWithContext("Starting observability engine",
		"listen_addr", cfg.Server.ListenAddr,
		"prometheus", cfg.Prometheus.Address,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, shutdownTracing, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WarnWithContext("Tracing shutdown failed", "error", err.Error())
		}
	}()

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetricsRecorder(&monitoring.MetricsConfig{
		Namespace: "autoweave",
		Subsystem: "observability",
		Registry:  registry,
	})

	executor, err := monitoring.NewPrometheusQueryExecutor(cfg.Prometheus.Address, cfg.Prometheus.Namespace)
	if err != nil {
		return err
	}

	healthMonitor := monitoring.NewHealthMonitor(&cfg.HealthMonitor, logger, metrics)
	sloManager := monitoring.NewSLOManager(&cfg.SLOManager, executor, logger, metrics)
	optimizer := monitoring.NewPerformanceOptimizer(&cfg.Optimizer, logger, metrics)

	var spanTracer trace.Tracer
	if provider != nil {
		spanTracer = provider.Tracer("obsengine")
	}
	tracer := monitoring.NewTraceCorrelationManager(&cfg.Correlation, spanTracer, logger, metrics)

	if cfg.SeedDefaults {
		seedDefaults(cfg, logger, healthMonitor, sloManager)
	}

	healthMonitor.Start(ctx)
	sloManager.Start(ctx)
	tracer.Start(ctx)
	optimizer.Start(ctx)
	defer func() {
		optimizer.Stop()
		tracer.Stop()
		sloManager.Stop()
		healthMonitor.Stop()
	}()

	router := mux.NewRouter()
	router.Use(tracer.Middleware())
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", handleHealthz(healthMonitor)).Methods(http.MethodGet)
	router.HandleFunc("/dashboard/slo", handleSLODashboard(sloManager)).Methods(http.MethodGet)
	router.HandleFunc("/dashboard/performance", handlePerformanceDashboard(optimizer)).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoWithContext("HTTP server listening", "addr", cfg.Server.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.InfoWithContext("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedDefaults registers the illustrative checks, SLIs, SLOs, and the
// optional Redis probe.
func seedDefaults(cfg *config.Config, logger *logging.StructuredLogger, healthMonitor *monitoring.HealthMonitor, sloManager *monitoring.SLOManager) {
	for _, check := range monitoring.DefaultHealthChecks(cfg.ProbeBaseURL) {
		healthMonitor.RegisterCheck(check)
	}
	for _, slo := range monitoring.DefaultHealthSLOs() {
		healthMonitor.RegisterSLO(slo)
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		healthMonitor.RegisterCheck(monitoring.RedisHealthCheck("redis", "queue-manager", client, false))
	}

	for _, sli := range monitoring.DefaultSLIs() {
		sloManager.RegisterSLI(sli)
	}
	for _, slo := range monitoring.DefaultSLOs() {
		if err := sloManager.RegisterSLO(slo); err != nil {
			logger.ErrorWithContext("Failed to register default SLO", err, "slo", slo.Name)
		}
	}
}

func handleHealthz(healthMonitor *monitoring.HealthMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := healthMonitor.GetHealthStatus(r.Context())

		code := http.StatusOK
		if report.Overall == monitoring.HealthStatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

func handleSLODashboard(sloManager *monitoring.SLOManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sloManager.GetSLODashboardData())
	}
}

func handlePerformanceDashboard(optimizer *monitoring.PerformanceOptimizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, optimizer.GetDashboardData())
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
