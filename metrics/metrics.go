// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service collectors. Each server builds its own so tests
// never collide on the default registry.
type Registry struct {
	reg *prometheus.Registry

	Predictions       *prometheus.CounterVec
	PredictionLatency prometheus.Histogram
	ModelLoaded       prometheus.Gauge
	ModelReloads      *prometheus.CounterVec
	AnalyticsCache    *prometheus.CounterVec
}

// New creates and registers every collector.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "luminastay_predictions_total",
			Help: "Price predictions by outcome.",
		}, []string{"outcome"}),
		PredictionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "luminastay_prediction_seconds",
			Help:    "Time spent encoding and evaluating one prediction.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		ModelLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "luminastay_model_loaded",
			Help: "1 when a model artifact is loaded, 0 otherwise.",
		}),
		ModelReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "luminastay_model_reloads_total",
			Help: "Model load attempts by result.",
		}, []string{"result"}),
		AnalyticsCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "luminastay_analytics_cache_total",
			Help: "Analytics report lookups by cache result.",
		}, []string{"result"}),
	}
	r.reg.MustRegister(
		r.Predictions, r.PredictionLatency, r.ModelLoaded, r.ModelReloads, r.AnalyticsCache,
		collectors.NewGoCollector(),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// CacheHit and CacheMiss let the registry observe the analytics cache.
func (r *Registry) CacheHit()  { r.AnalyticsCache.WithLabelValues("hit").Inc() }
func (r *Registry) CacheMiss() { r.AnalyticsCache.WithLabelValues("miss").Inc() }
