// Package metrics defines the router's Prometheus instrumentation,
// mirroring the teacher's metrics.NewMetrics shape: one struct of
// promauto-constructed collectors threaded through every component.
// Unlike the teacher, each Metrics owns its own prometheus.Registry
// rather than registering against the global DefaultRegisterer, so that
// constructing more than one Metrics in the same process (as router
// unit tests routinely do) never panics on duplicate registration.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the router emits, plus the registry
// they are registered against.
type Metrics struct {
	Registry *prometheus.Registry

	DecisionsTotal          *prometheus.CounterVec
	AttentionLoad           prometheus.Gauge
	HandleTaskDuration      prometheus.Histogram
	ProviderFailures        *prometheus.CounterVec
	SinkFailures            *prometheus.CounterVec
	QueueDepth              *prometheus.GaugeVec
	EventBusMessages        *prometheus.CounterVec
	StreamMessagesProcessed *prometheus.CounterVec
	RedisOperationDuration  *prometheus.HistogramVec
}

// NewMetrics constructs a fresh registry and every collector the router
// emits, each registered against that registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,
		DecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "router_decisions_total",
			Help: "Total number of routing decisions by strategy",
		}, []string{"strategy"}),
		AttentionLoad: factory.NewGauge(prometheus.GaugeOpts{
			Name: "router_attention_load",
			Help: "Most recently computed operator attention load in [0,1]",
		}),
		HandleTaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "router_handle_task_duration_seconds",
			Help:    "Time taken to score and dispatch one task",
			Buckets: prometheus.DefBuckets,
		}),
		ProviderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "router_context_provider_failures_total",
			Help: "Total number of context provider failures absorbed by the router",
		}, []string{"provider"}),
		SinkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "router_sink_failures_total",
			Help: "Total number of sink failures absorbed by the router",
		}, []string{"strategy"}),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "router_queue_depth",
			Help: "Current workflow queue depth by strategy",
		}, []string{"strategy"}),
		EventBusMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "router_event_bus_messages_total",
			Help: "Total number of event bus messages by topic and outcome",
		}, []string{"topic", "outcome"}),
		StreamMessagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "router_stream_messages_processed_total",
			Help: "Total number of broker-backed event bus messages processed",
		}, []string{"status"}),
		RedisOperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "router_redis_operation_duration_seconds",
			Help:    "Time taken for Redis-backed workflow/event-bus operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}
