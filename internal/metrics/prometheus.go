package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"report_type", "status"}, // status: complete|failed|skipped_existing
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_pipeline_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"report_type"},
	)

	// Agent metrics
	AgentExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_agent_executions_total",
			Help: "Total number of agent executions",
		},
		[]string{"agent", "outcome"}, // outcome: success|degraded|failed
	)

	AgentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_agent_duration_seconds",
			Help:    "Agent execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"agent"},
	)

	AgentRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_agent_retries_total",
			Help: "Total number of agent retry attempts",
		},
		[]string{"agent"},
	)

	// Synthesis metrics
	SynthesisCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_synthesis_calls_total",
			Help: "Total number of synthesis invocations",
		},
		[]string{"report_type", "status"}, // status: success|timeout|schema_invalid|error
	)

	SynthesisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_synthesis_duration_seconds",
			Help:    "Synthesis call duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 240},
		},
		[]string{"report_type"},
	)

	// Scheduler metrics
	SchedulerTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_scheduler_triggers_total",
			Help: "Total number of schedule trigger evaluations that fired",
		},
		[]string{"report_type", "action"}, // action: run|skip_locked
	)

	SchedulerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oracle_scheduler_state",
			Help: "Scheduler state (0=stopped, 1=idle, 2=running)",
		},
	)

	// Report store metrics
	StoreWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_store_writes_total",
			Help: "Total number of report store writes",
		},
		[]string{"report_type", "result"}, // result: created|idempotent_noop|superseded|failed_recorded
	)

	// Delivery metrics
	DeliveryNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_delivery_notifications_total",
			Help: "Total number of delivery notifications",
		},
		[]string{"channel", "status"}, // status: sent|error
	)
)

func init() {
	prometheus.MustRegister(
		PipelineRuns,
		PipelineDuration,
		AgentExecutions,
		AgentDuration,
		AgentRetries,
		SynthesisCalls,
		SynthesisDuration,
		SchedulerTriggers,
		SchedulerState,
		StoreWrites,
		DeliveryNotifications,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
