package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// Built on Prometheus, the metrics track route-call outcomes, per-phase
// latencies inside the orchestrator, classification cache effectiveness, LLM
// request performance, and tool execution patterns. All metrics register with
// the default registry and are served by the /metrics endpoint.
type Metrics struct {
	// RouteCounter counts route calls.
	// Labels: agent_kind, mode (text|voice), status (success|error)
	RouteCounter *prometheus.CounterVec

	// RoutePhaseDuration measures per-phase route latency in seconds.
	// Labels: phase (load|classify|construct|handle)
	RoutePhaseDuration *prometheus.HistogramVec

	// ClassificationCounter counts how each route call's kind was decided.
	// Labels: source (explicit|model|cache|forced)
	ClassificationCounter *prometheus.CounterVec

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider (anthropic|openai), model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations by handlers.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ErrorCounter tracks errors by component and kind.
	// Labels: component (orchestrator|loader|classifier|provider|server), error_kind
	ErrorCounter *prometheus.CounterVec

	// HTTPRequestDuration measures HTTP API request latency.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
// Call once at application startup; duplicate registration panics,
// so tests should share a single instance or use a fresh registry.
func NewMetrics() *Metrics {
	return &Metrics{
		RouteCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coach_route_calls_total",
				Help: "Total route calls by agent kind, mode, and status",
			},
			[]string{"agent_kind", "mode", "status"},
		),

		RoutePhaseDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coach_route_phase_duration_seconds",
				Help:    "Duration of each route phase in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"phase"},
		),

		ClassificationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coach_classification_total",
				Help: "How the agent kind was decided per route call",
			},
			[]string{"source"},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coach_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coach_llm_requests_total",
				Help: "Total LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coach_tool_executions_total",
				Help: "Total tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coach_errors_total",
				Help: "Total errors by component and error kind",
			},
			[]string{"component", "error_kind"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coach_http_request_duration_seconds",
				Help:    "Duration of HTTP API requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),
	}
}
