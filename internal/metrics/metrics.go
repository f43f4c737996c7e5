// Package metrics holds the Prometheus collectors of the scheduler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meetsync"

// Outcome labels
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeInvalid = "invalid"
	OutcomeCached  = "cached"
)

// Metrics bundles every collector the service updates
type Metrics struct {
	ReconcilePasses prometheus.Counter
	Toggles         prometheus.Counter
	Submissions     *prometheus.CounterVec
	Deletions       *prometheus.CounterVec
	StoreFailures   *prometheus.CounterVec
	FeedFetches     *prometheus.CounterVec
	RenderDuration  prometheus.Histogram
	Sessions        prometheus.Gauge
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		ReconcilePasses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_passes_total",
			Help:      "Visibility reconciliation passes run.",
		}),
		Toggles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visibility_toggles_total",
			Help:      "Participant visibility toggles applied.",
		}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Availability submissions by outcome.",
		}, []string{"outcome"}),
		Deletions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participant_deletions_total",
			Help:      "Participant deletions by outcome.",
		}, []string{"outcome"}),
		StoreFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_failures_total",
			Help:      "Viewer-local state writes that failed, by store.",
		}, []string{"store"}),
		FeedFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "busy_feed_fetches_total",
			Help:      "External calendar feed lookups by outcome.",
		}, []string{"outcome"}),
		RenderDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time to build one calendar snapshot.",
			Buckets:   prometheus.DefBuckets,
		}),
		Sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_sessions",
			Help:      "Open websocket sessions.",
		}),
	}
}

// Handler serves the collectors of g in the Prometheus text format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
