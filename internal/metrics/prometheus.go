// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RawAlertsReceived tracks raw alerts accepted for processing.
	RawAlertsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raw_alerts_received_total",
			Help: "Total raw alerts received by connector type",
		},
		[]string{"connector_type"},
	)

	// AlertsCreated tracks brand-new alerts produced by the deduplicator.
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_created_total",
			Help: "Total new alerts created by connector type and severity",
		},
		[]string{"connector_type", "severity"},
	)

	// AlertsDeduplicated tracks occurrences folded into existing alerts.
	AlertsDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_deduplicated_total",
			Help: "Total raw alerts folded into an existing alert",
		},
		[]string{"connector_type"},
	)

	// NormalizationFallbacks tracks evaluations where no mapping matched.
	NormalizationFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "normalization_fallbacks_total",
			Help: "Total normalizations that fell back to the default severity or category",
		},
		[]string{"connector_type", "kind"},
	)

	// StatusTransitions tracks lifecycle transitions by old and new status.
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_status_transitions_total",
			Help: "Total alert status transitions",
		},
		[]string{"from", "to"},
	)

	// IngestDuration tracks end-to-end ingest pipeline latency.
	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_duration_seconds",
			Help:    "Raw alert ingest pipeline duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"connector_type"},
	)
)

// Handler returns a gin handler serving the Prometheus metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
