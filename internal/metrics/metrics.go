package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kartikay/folio/pkg/scheduler"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Agent metrics
	AgentRunsTotal   *prometheus.CounterVec
	AgentRunDuration  *prometheus.HistogramVec

	// Tool metrics
	ToolExecutionsTotal   *prometheus.CounterVec
	ToolExecutionDuration *prometheus.HistogramVec

	// Scheduler metrics
	TasksScheduledTotal prometheus.Counter
	TasksCanceledTotal  prometheus.Counter
	TaskRunsTotal       *prometheus.CounterVec
	TaskRunDuration     prometheus.Histogram
	TasksPending        prometheus.Gauge

	// Gateway metrics
	GatewayConnections   prometheus.Gauge
	GatewayRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// Agent metrics
		AgentRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_agent_runs_total",
				Help: "Total number of model runs",
			},
			[]string{"provider", "status"},
		),
		AgentRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_agent_run_duration_seconds",
				Help:    "Duration of model runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),

		// Tool metrics
		ToolExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_tool_executions_total",
				Help: "Total number of tool executions by outcome",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool_name"},
		),

		// Scheduler metrics
		TasksScheduledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "folio_tasks_scheduled_total",
				Help: "Total number of tasks scheduled",
			},
		),
		TasksCanceledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "folio_tasks_removed_total",
				Help: "Total number of tasks removed after running or by cancellation",
			},
		),
		TaskRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_task_runs_total",
				Help: "Total number of scheduled task runs",
			},
			[]string{"callback", "status"},
		),
		TaskRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "folio_task_run_duration_seconds",
				Help:    "Duration of scheduled task runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		TasksPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "folio_tasks_pending",
				Help: "Number of tasks currently scheduled",
			},
		),

		// Gateway metrics
		GatewayConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "folio_gateway_connections",
				Help: "Number of connected gateway clients",
			},
		),
		GatewayRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_gateway_requests_total",
				Help: "Total number of gateway RPC requests",
			},
			[]string{"method", "status"},
		),
	}

	// Register all metrics
	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(
		m.AgentRunsTotal,
		m.AgentRunDuration,
		m.ToolExecutionsTotal,
		m.ToolExecutionDuration,
		m.TasksScheduledTotal,
		m.TasksCanceledTotal,
		m.TaskRunsTotal,
		m.TaskRunDuration,
		m.TasksPending,
		m.GatewayConnections,
		m.GatewayRequestsTotal,
	)
}

// ObserveToolExecution implements toolexecutor.ExecutionObserver
func (m *Metrics) ObserveToolExecution(tool string, status string, duration time.Duration) {
	m.ToolExecutionsTotal.WithLabelValues(tool, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// ObserveAgentRun implements agent.RunObserver
func (m *Metrics) ObserveAgentRun(provider string, duration time.Duration, success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	m.AgentRunsTotal.WithLabelValues(provider, status).Inc()
	m.AgentRunDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveSchedulerEvent records a scheduler event
func (m *Metrics) ObserveSchedulerEvent(evt scheduler.Event) {
	switch evt.Action {
	case scheduler.EventActionAdded:
		m.TasksScheduledTotal.Inc()
		m.TasksPending.Inc()
	case scheduler.EventActionDeleted:
		m.TasksCanceledTotal.Inc()
		m.TasksPending.Dec()
	case scheduler.EventActionFinished:
		m.TaskRunsTotal.WithLabelValues(evt.Callback, evt.Status).Inc()
		if evt.DurationMs != nil {
			m.TaskRunDuration.Observe((time.Duration(*evt.DurationMs) * time.Millisecond).Seconds())
		}
	}
}

// SetTasksPending sets the pending gauge, used after tasks are loaded
func (m *Metrics) SetTasksPending(n int) {
	m.TasksPending.Set(float64(n))
}

// SetGatewayConnections sets the number of connected WebSocket clients
func (m *Metrics) SetGatewayConnections(n int) {
	m.GatewayConnections.Set(float64(n))
}

// ObserveGatewayRequest records one RPC request
func (m *Metrics) ObserveGatewayRequest(method string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.GatewayRequestsTotal.WithLabelValues(method, status).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
