// Package metrics holds the Prometheus collectors shared by the API and scheduler processes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Evaluator metrics
	EvaluationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadflow_evaluation_runs_total",
			Help: "Total number of stale evaluation sweeps",
		},
		[]string{"status"},
	)

	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadflow_evaluation_duration_seconds",
			Help:    "Duration of a full stale evaluation sweep in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	LeadsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadflow_leads_evaluated_total",
			Help: "Total number of per-lead evaluations by outcome",
		},
		[]string{"outcome"},
	)

	LeadTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadflow_lead_transitions_total",
			Help: "Total number of lead state transitions",
		},
		[]string{"from", "to"},
	)

	RescueTasksCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadflow_rescue_tasks_created_total",
			Help: "Total number of rescue tasks materialized",
		},
	)

	// Ingestion metrics
	TouchEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadflow_touch_events_total",
			Help: "Total number of touch events received",
		},
		[]string{"channel", "result"},
	)

	WebhookRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadflow_webhook_rejections_total",
			Help: "Total number of webhook deliveries rejected before processing",
		},
		[]string{"reason"},
	)

	DedupHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadflow_webhook_dedup_cache_hits_total",
			Help: "Total number of redeliveries answered from the dedup cache",
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
