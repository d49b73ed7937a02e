package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ApplicationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hiring_applications_created_total",
			Help: "Total applications created",
		},
	)

	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hiring_interview_sessions_started_total",
			Help: "Interview session start attempts by result",
		},
		[]string{"result"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hiring_provider_request_duration_seconds",
			Help:    "Voice provider call latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hiring_webhook_events_total",
			Help: "Provider webhook events by type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hiring_application_transitions_total",
			Help: "Committed application status transitions",
		},
		[]string{"from", "to"},
	)

	VersionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hiring_version_conflicts_total",
			Help: "Optimistic concurrency conflicts by operation",
		},
		[]string{"operation"},
	)

	Aggregations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hiring_score_aggregations_total",
			Help: "Final score aggregation attempts by outcome",
		},
		[]string{"outcome"},
	)

	WorkerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hiring_worker_messages_total",
			Help: "Queue messages handled by the worker by kind and result",
		},
		[]string{"kind", "result"},
	)
)

// ObserveProvider records the duration of a provider call started at start.
func ObserveProvider(operation string, start time.Time) {
	ProviderLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Handler exposes the default registry in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
