// Package app builds the recommender and its supporting resources from Settings. The server, the
// batch sweep and the local CLI mode all start through Build.
package app

import (
	"fmt"

	"crop-recommender/internal/catalog"
	"crop-recommender/internal/cfg"
	"crop-recommender/internal/common"
	"crop-recommender/internal/features"
	"crop-recommender/internal/metrics"
	"crop-recommender/internal/ml"
	"crop-recommender/internal/recommend"
	"crop-recommender/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// App holds everything loaded at startup.
type App struct {
	Recommender *recommend.Recommender
	Metrics     *metrics.MetricsWrapper
	Store       *storage.Store // nil when history is disabled
	Models      []ml.ModelInfo
}

// Options adjust Build.
type Options struct {
	Registerer prometheus.Registerer // nil registers with the default registry
	NoHistory  bool                  // skip opening the history store even if configured
}

// Build loads every resource named by c and wires the recommender. Resource failures are returned
// as ConfigErrors; nothing is served from a partial load.
func Build(c cfg.Settings, opts Options) (*App, error) {
	regions, err := features.LoadRegionTable(c.RegionsPath, features.DuplicatePolicy(c.DuplicatePolicy))
	if err != nil {
		return nil, err
	}

	scaler, err := ml.LoadScaler(c.ScalerPath)
	if err != nil {
		return nil, err
	}
	if err := ml.CheckFeatureNames(scaler, features.Names[:]); err != nil {
		return nil, common.NewConfigError("scaler", c.ScalerPath, err)
	}

	ensemble, models, err := ml.LoadEnsemble(c.ModelsDir, c.ModelExt, scaler.NumFeatures())
	if err != nil {
		return nil, err
	}

	labels, err := catalog.LoadLabelMapping(c.LabelsPath)
	if err != nil {
		return nil, err
	}

	images := catalog.NewImageStore(c.ImagesDir)

	var m *metrics.Metrics
	if opts.Registerer != nil {
		m = metrics.NewWithRegistry(opts.Registerer)
	} else {
		m = metrics.New()
	}
	mw := metrics.NewWrapper(m)
	ensemble.SetMetrics(mw)

	rec, err := recommend.New(recommend.Deps{
		Regions:   regions,
		Scaler:    scaler,
		Ensemble:  ensemble,
		Labels:    labels,
		Images:    images,
		Models:    models,
		CacheSize: c.CacheSize,
	}, mw)
	if err != nil {
		return nil, err
	}
	mw.SetLoaded(ensemble.Len(), regions.Len())

	a := &App{Recommender: rec, Metrics: mw, Models: models}

	if c.HistoryPath != "" && !opts.NoHistory {
		store, err := storage.New(c.HistoryPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		rec.SetHistory(store)
		a.Store = store
	}

	log.Info().
		Int("models", ensemble.Len()).
		Strs("names", ensemble.Names()).
		Int("regions", regions.Len()).
		Int("labels", labels.Len()).
		Bool("history", a.Store != nil).
		Msg("Recommender ready")

	return a, nil
}

// Close releases the history store, if any.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
