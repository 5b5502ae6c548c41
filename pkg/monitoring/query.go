package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// QueryKind identifies the kind of measurement an SLI query resolves to.
type QueryKind string

const (
	QueryKindLatencyP95   QueryKind = "latency_p95"
	QueryKindAvailability QueryKind = "availability"
	QueryKindErrorRate    QueryKind = "error_rate"
	QueryKindThroughput   QueryKind = "throughput"
	QueryKindRaw          QueryKind = "raw"
)

// Query is a typed SLI query descriptor. The engine never interprets metric
// semantics itself; the bound QueryExecutor resolves the descriptor against a
// metrics backend.
type Query struct {
	Kind      QueryKind     `yaml:"kind" json:"kind"`
	Component string        `yaml:"component" json:"component"`
	Window    time.Duration `yaml:"window" json:"window"`
	// Expr carries a raw backend expression when Kind is QueryKindRaw.
	Expr string `yaml:"expr,omitempty" json:"expr,omitempty"`
}

// QueryExecutor resolves a Query to a single numeric value.
type QueryExecutor interface {
	Execute(ctx context.Context, query Query) (float64, error)
}

// QueryExecutorFunc adapts a function to the QueryExecutor interface.
type QueryExecutorFunc func(ctx context.Context, query Query) (float64, error)

// Execute implements QueryExecutor.
func (f QueryExecutorFunc) Execute(ctx context.Context, query Query) (float64, error) {
	return f(ctx, query)
}

// PrometheusQueryExecutor resolves queries against a Prometheus HTTP API.
type PrometheusQueryExecutor struct {
	api       promv1.API
	namespace string
}

// NewPrometheusQueryExecutor creates a query executor bound to the Prometheus
// server at the given address.
func NewPrometheusQueryExecutor(address, namespace string) (*PrometheusQueryExecutor, error) {
	client, err := api.NewClient(api.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}

	if namespace == "" {
		namespace = "autoweave_observability"
	}

	return &PrometheusQueryExecutor{
		api:       promv1.NewAPI(client),
		namespace: namespace,
	}, nil
}

// Execute resolves the query descriptor to PromQL and evaluates it.
func (e *PrometheusQueryExecutor) Execute(ctx context.Context, query Query) (float64, error) {
	expr, err := e.buildExpr(query)
	if err != nil {
		return 0, err
	}

	result, _, err := e.api.Query(ctx, expr, time.Now())
	if err != nil {
		return 0, fmt.Errorf("prometheus query failed: %w", err)
	}

	switch value := result.(type) {
	case model.Vector:
		if len(value) == 0 {
			return 0, fmt.Errorf("prometheus query %q returned no samples", expr)
		}
		return float64(value[0].Value), nil
	case *model.Scalar:
		return float64(value.Value), nil
	default:
		return 0, fmt.Errorf("unexpected prometheus result type %q", result.Type())
	}
}

func (e *PrometheusQueryExecutor) buildExpr(query Query) (string, error) {
	window := model.Duration(query.Window).String()
	if query.Window <= 0 {
		window = "5m"
	}

	switch query.Kind {
	case QueryKindLatencyP95:
		return fmt.Sprintf(
			`histogram_quantile(0.95, sum(rate(%s_component_latency_seconds_bucket{component=%q}[%s])) by (le)) * 1000`,
			e.namespace, query.Component, window,
		), nil
	case QueryKindAvailability:
		return fmt.Sprintf(
			`avg_over_time(%s_component_availability{component=%q}[%s]) * 100`,
			e.namespace, query.Component, window,
		), nil
	case QueryKindErrorRate:
		return fmt.Sprintf(
			`sum(rate(%s_errors_total{component=%q}[%s])) * 100`,
			e.namespace, query.Component, window,
		), nil
	case QueryKindThroughput:
		return fmt.Sprintf(
			`sum(rate(%s_business_operations_total[%s]))`,
			e.namespace, window,
		), nil
	case QueryKindRaw:
		if query.Expr == "" {
			return "", fmt.Errorf("raw query requires an expression")
		}
		return query.Expr, nil
	default:
		return "", fmt.Errorf("unknown query kind %q", query.Kind)
	}
}
