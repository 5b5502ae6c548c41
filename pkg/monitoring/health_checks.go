package monitoring

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// HTTPHealthCheck creates a health check that probes an HTTP endpoint. Any
// 2xx response is healthy; 5xx is unhealthy; everything else is degraded.
func HTTPHealthCheck(name, component, url string, critical bool) HealthCheck {
	client := &http.Client{}

	return HealthCheck{
		Name:      name,
		Component: component,
		Critical:  critical,
		Timeout:   5 * time.Second,
		CheckFunc: func(ctx context.Context) (*HealthStatus, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}

			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return &HealthStatus{
					Status:  HealthStatusHealthy,
					Message: fmt.Sprintf("endpoint returned %d", resp.StatusCode),
				}, nil
			case resp.StatusCode >= 500:
				return &HealthStatus{
					Status:  HealthStatusUnhealthy,
					Message: fmt.Sprintf("endpoint returned %d", resp.StatusCode),
				}, nil
			default:
				return &HealthStatus{
					Status:  HealthStatusDegraded,
					Message: fmt.Sprintf("endpoint returned %d", resp.StatusCode),
				}, nil
			}
		},
	}
}

// RedisHealthCheck creates a health check that pings a Redis instance.
func RedisHealthCheck(name, component string, client *redis.Client, critical bool) HealthCheck {
	return HealthCheck{
		Name:      name,
		Component: component,
		Critical:  critical,
		Timeout:   3 * time.Second,
		CheckFunc: func(ctx context.Context) (*HealthStatus, error) {
			if err := client.Ping(ctx).Err(); err != nil {
				return nil, fmt.Errorf("redis ping failed: %w", err)
			}
			return &HealthStatus{
				Status:  HealthStatusHealthy,
				Message: "redis ping ok",
			}, nil
		},
	}
}

// TCPHealthCheck creates a health check that dials a TCP address.
func TCPHealthCheck(name, component, address string, critical bool) HealthCheck {
	return HealthCheck{
		Name:      name,
		Component: component,
		Critical:  critical,
		Timeout:   3 * time.Second,
		CheckFunc: func(ctx context.Context) (*HealthStatus, error) {
			var dialer net.Dialer
			conn, err := dialer.DialContext(ctx, "tcp", address)
			if err != nil {
				return nil, fmt.Errorf("tcp dial %s failed: %w", address, err)
			}
			conn.Close()
			return &HealthStatus{
				Status:  HealthStatusHealthy,
				Message: fmt.Sprintf("tcp %s reachable", address),
			}, nil
		},
	}
}

// CustomHealthCheck creates a health check from an arbitrary probe function.
func CustomHealthCheck(name, component string, checkFunc func(ctx context.Context) (*HealthStatus, error), timeout time.Duration, critical bool) HealthCheck {
	return HealthCheck{
		Name:      name,
		Component: component,
		CheckFunc: checkFunc,
		Timeout:   timeout,
		Critical:  critical,
	}
}

// DefaultHealthChecks returns illustrative probes for the platform's named
// components, each probing the component's health endpoint under baseURL.
func DefaultHealthChecks(baseURL string) []HealthCheck {
	return []HealthCheck{
		HTTPHealthCheck("usb-daemon-health", "usb-daemon", baseURL+"/usb/health", true),
		HTTPHealthCheck("plugin-loader-health", "plugin-loader", baseURL+"/plugins/health", true),
		HTTPHealthCheck("queue-manager-health", "queue-manager", baseURL+"/queue/health", false),
		HTTPHealthCheck("memory-system-health", "memory-system", baseURL+"/memory/health", false),
	}
}

// DefaultHealthSLOs returns illustrative per-component SLOs matching the
// default checks.
func DefaultHealthSLOs() []HealthSLO {
	return []HealthSLO{
		{
			Name:      "usb-daemon-availability",
			Component: "usb-daemon",
			Metric:    "availability",
			Target:    0.999,
		},
		{
			Name:              "usb-daemon-response-time",
			Component:         "usb-daemon",
			Metric:            "response_time",
			Target:            0.95,
			WarningThreshold:  80,
			CriticalThreshold: 100,
		},
		{
			Name:      "plugin-loader-availability",
			Component: "plugin-loader",
			Metric:    "availability",
			Target:    0.995,
		},
		{
			Name:              "plugin-loader-response-time",
			Component:         "plugin-loader",
			Metric:            "response_time",
			Target:            0.95,
			WarningThreshold:  200,
			CriticalThreshold: 500,
		},
		{
			Name:      "queue-manager-availability",
			Component: "queue-manager",
			Metric:    "availability",
			Target:    0.99,
		},
		{
			Name:              "memory-system-response-time",
			Component:         "memory-system",
			Metric:            "response_time",
			Target:            0.95,
			WarningThreshold:  150,
			CriticalThreshold: 400,
		},
	}
}
