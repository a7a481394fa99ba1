// Package metrics provides Prometheus metrics collection for the crop recommender.
// It defines the recommendation, ensemble, cache and live-feed metrics that are
// exposed via the Prometheus metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the recommender.
type Metrics struct {
	// Recommendation pipeline
	RecommendationsTotal prometheus.Counter   // Completed recommendations
	RegionNotFound       prometheus.Counter   // Requests for regions absent from the table
	RecommendErrors      prometheus.Counter   // Recommendations failed by a scaler or classifier error
	RecommendLatency     prometheus.Histogram // End-to-end recommendation latency
	UnknownLabels        prometheus.Counter   // Votes whose label has no crop name
	ImagesMissing        prometheus.Counter   // Recommendations rendered without an image
	HistoryWriteErrors   prometheus.Counter   // Failed history writes

	// Vote cache
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Ensemble
	ModelPredictions *prometheus.CounterVec // Per-model predictions
	ModelFailures    *prometheus.CounterVec // Per-model prediction errors
	VoteLatency      prometheus.Histogram   // Time to run all classifiers and vote
	VoteAgreement    prometheus.Histogram   // Share of models agreeing with the consensus

	// Loaded state
	ModelsLoaded  prometheus.Gauge
	RegionsLoaded prometheus.Gauge

	// Live feed
	WSClients prometheus.Gauge
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		RecommendationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Total number of crop recommendations served",
		}),
		RegionNotFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "region_not_found_total",
			Help: "Total number of requests for regions with no data",
		}),
		RecommendErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "recommendation_errors_total",
			Help: "Total number of recommendations failed by a scaling or classifier error",
		}),
		RecommendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "recommendation_latency_seconds",
			Help:    "Recommendation latency in seconds (end-to-end)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		UnknownLabels: factory.NewCounter(prometheus.CounterOpts{
			Name: "unknown_labels_total",
			Help: "Total number of labels without a crop name",
		}),
		ImagesMissing: factory.NewCounter(prometheus.CounterOpts{
			Name: "images_missing_total",
			Help: "Total number of recommendations without a crop image",
		}),
		HistoryWriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "history_write_errors_total",
			Help: "Total number of failed recommendation history writes",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "vote_cache_hits_total",
			Help: "Total number of vote cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "vote_cache_misses_total",
			Help: "Total number of vote cache misses",
		}),
		ModelPredictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "model_predictions_total",
			Help: "Total number of predictions per model",
		}, []string{"model"}),
		ModelFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "model_failures_total",
			Help: "Total number of prediction failures per model",
		}, []string{"model"}),
		VoteLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vote_latency_seconds",
			Help:    "Ensemble prediction and vote latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		}),
		VoteAgreement: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vote_agreement_ratio",
			Help:    "Share of ensemble models agreeing with the consensus label",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ModelsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "models_loaded",
			Help: "Number of classifiers in the ensemble",
		}),
		RegionsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "regions_loaded",
			Help: "Number of distinct regions in the region table",
		}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ws_clients",
			Help: "Number of connected live-feed clients",
		}),
	}
}
