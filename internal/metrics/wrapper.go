package metrics

import "github.com/prometheus/client_golang/prometheus"

// MetricsGauge is the gauge surface handed to components that should not import prometheus.
type MetricsGauge interface {
	Set(float64)
	Add(float64)
}

// MetricsWrapper adapts Metrics to the method sets the ensemble and recommender expect.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

// Metrics returns the wrapped collectors.
func (w *MetricsWrapper) Metrics() *Metrics { return w.m }

// Ensemble

func (w *MetricsWrapper) ModelPredictionsInc(model string) {
	w.m.ModelPredictions.WithLabelValues(model).Inc()
}

func (w *MetricsWrapper) ModelFailuresInc(model string) {
	w.m.ModelFailures.WithLabelValues(model).Inc()
}

func (w *MetricsWrapper) VoteLatencyObserve(v float64) {
	w.m.VoteLatency.Observe(v)
}

func (w *MetricsWrapper) VoteAgreementObserve(v float64) {
	w.m.VoteAgreement.Observe(v)
}

// Recommender

func (w *MetricsWrapper) RecommendationsInc() { w.m.RecommendationsTotal.Inc() }
func (w *MetricsWrapper) RegionNotFoundInc() { w.m.RegionNotFound.Inc() }
func (w *MetricsWrapper) RecommendErrorsInc() { w.m.RecommendErrors.Inc() }
func (w *MetricsWrapper) UnknownLabelInc() { w.m.UnknownLabels.Inc() }
func (w *MetricsWrapper) ImageMissingInc() { w.m.ImagesMissing.Inc() }
func (w *MetricsWrapper) HistoryWriteErrorInc() { w.m.HistoryWriteErrors.Inc() }
func (w *MetricsWrapper) CacheHitInc() { w.m.CacheHits.Inc() }
func (w *MetricsWrapper) CacheMissInc() { w.m.CacheMisses.Inc() }

func (w *MetricsWrapper) RecommendLatencyObserve(v float64) {
	w.m.RecommendLatency.Observe(v)
}

// Loaded state

func (w *MetricsWrapper) SetLoaded(models, regions int) {
	w.m.ModelsLoaded.Set(float64(models))
	w.m.RegionsLoaded.Set(float64(regions))
}

// WSClients returns the live-feed client gauge.
func (w *MetricsWrapper) WSClients() MetricsGauge {
	return &GaugeWrapper{w.m.WSClients}
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}
