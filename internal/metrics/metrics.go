package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Workflow metrics
	WorkflowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiagent_workflows_total",
			Help: "Total number of coordinator workflows by terminal status",
		},
		[]string{"task_type", "status"},
	)

	WorkflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multiagent_workflow_duration_seconds",
			Help:    "Workflow execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"task_type"},
	)

	// Agent metrics
	AgentExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiagent_agent_executions_total",
			Help: "Total number of agent executions by result status",
		},
		[]string{"agent", "status"},
	)

	AgentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multiagent_agent_duration_seconds",
			Help:    "Agent execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"agent"},
	)

	FallbackContent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiagent_fallback_content_total",
			Help: "Number of times an agent produced deterministic fallback content",
		},
		[]string{"agent", "kind"},
	)

	// LLM metrics
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiagent_llm_requests_total",
			Help: "Total LLM backend requests by outcome",
		},
		[]string{"backend", "outcome"},
	)

	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multiagent_llm_latency_seconds",
			Help:    "LLM backend request latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"backend"},
	)

	LLMFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiagent_llm_fallbacks_total",
			Help: "Number of times an LLM call fell through to the next backend or model",
		},
		[]string{"from", "to"},
	)

	// Collector metrics
	CollectorSourceResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiagent_collector_source_results_total",
			Help: "Data collector results per source",
		},
		[]string{"source", "outcome"},
	)

	// Persistence metrics
	PersistenceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiagent_persistence_errors_total",
			Help: "Best-effort persistence failures that were swallowed",
		},
		[]string{"operation"},
	)

	TasksCached = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "multiagent_tasks_cached",
			Help: "Number of task records currently held by the in-memory task store",
		},
	)

	// Notification metrics
	NotificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiagent_notifications_published_total",
			Help: "Terminal task notifications by outcome",
		},
		[]string{"outcome"},
	)
)
