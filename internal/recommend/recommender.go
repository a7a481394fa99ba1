// Package recommend runs the crop recommendation pipeline: region lookup, scaling, the ensemble
// vote, label resolution and image lookup. Results can be cached, persisted and broadcast.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"crop-recommender/internal/catalog"
	"crop-recommender/internal/common"
	"crop-recommender/internal/features"
	"crop-recommender/internal/ml"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// ErrHistoryDisabled is returned by History when no history store is configured.
var ErrHistoryDisabled = errors.New("recommendation history is disabled")

// RegionSource supplies features per region.
type RegionSource interface {
	Lookup(state, district string) (features.FeatureVector, error)
	States() []string
	Districts(state string) []string
	Regions() []features.RegionKey
}

// Voter runs the classifier ensemble on a scaled vector.
type Voter interface {
	Predict(ctx context.Context, scaled []float64) (ml.Vote, error)
	Names() []string
}

// HistoryStore persists recommendations.
type HistoryStore interface {
	SaveRecommendation(rec Recommendation) error
	GetRecommendations(limit int) ([]Recommendation, error)
}

// Publisher receives every new recommendation.
type Publisher interface {
	Publish(rec Recommendation)
}

// MetricsInterface defines metrics methods needed by the recommender
type MetricsInterface interface {
	RecommendationsInc()
	RegionNotFoundInc()
	RecommendErrorsInc()
	UnknownLabelInc()
	ImageMissingInc()
	HistoryWriteErrorInc()
	CacheHitInc()
	CacheMissInc()
	RecommendLatencyObserve(float64)
}

// Deps are the loaded, read-only resources a Recommender works from.
type Deps struct {
	Regions   RegionSource
	Scaler    ml.Scaler
	Ensemble  Voter
	Labels    *catalog.LabelMapping
	Images    *catalog.ImageStore
	Models    []ml.ModelInfo
	CacheSize int // 0 disables the vote cache
}

type cachedVote struct {
	scaled []float64
	vote   ml.Vote
}

type Recommender struct {
	deps    Deps
	cache   *lru.Cache[string, cachedVote]
	metrics MetricsInterface

	mu        sync.RWMutex
	history   HistoryStore
	publisher Publisher
}

func New(d Deps, m MetricsInterface) (*Recommender, error) {
	if d.Regions == nil || d.Scaler == nil || d.Ensemble == nil || d.Labels == nil || d.Images == nil {
		return nil, errors.New("recommender requires regions, scaler, ensemble, labels and images")
	}
	if d.Scaler.NumFeatures() != features.Width {
		return nil, common.NewConfigError("scaler", "",
			fmt.Errorf("scaler expects %d features, region table provides %d", d.Scaler.NumFeatures(), features.Width))
	}
	if err := ml.CheckFeatureNames(d.Scaler, features.Names[:]); err != nil {
		return nil, common.NewConfigError("scaler", "", err)
	}

	r := &Recommender{deps: d, metrics: m}
	if d.CacheSize > 0 {
		cache, err := lru.New[string, cachedVote](d.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create vote cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// SetHistory sets the store recommendations are persisted to
func (r *Recommender) SetHistory(h HistoryStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = h
}

// SetPublisher sets the sink new recommendations are broadcast to
func (r *Recommender) SetPublisher(p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publisher = p
}

// Recommend returns the crop recommendation for a region. An unknown region yields an error
// wrapping features.ErrRegionNotFound and no classifier is run.
func (r *Recommender) Recommend(ctx context.Context, state, district string) (Recommendation, error) {
	start := time.Now()

	fv, err := r.deps.Regions.Lookup(state, district)
	if err != nil {
		if errors.Is(err, features.ErrRegionNotFound) && r.metrics != nil {
			r.metrics.RegionNotFoundInc()
		}
		return Recommendation{}, err
	}

	scaled, vote, cached, err := r.vote(ctx, state, district, fv)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecommendErrorsInc()
		}
		log.Error().Err(err).Str("state", state).Str("district", district).Msg("Recommendation failed")
		return Recommendation{}, err
	}

	rec := Recommendation{
		ID:          uuid.NewString(),
		State:       state,
		District:    district,
		Features:    fv,
		Scaled:      scaled,
		Label:       vote.Consensus,
		Predictions: make([]ModelPrediction, len(vote.Votes)),
		Tally:       vote.Tally,
		Agreement:   vote.Agreement,
		Cached:      cached,
		CreatedAt:   time.Now().UTC(),
	}

	rec.Crop = r.deps.Labels.Resolve(vote.Consensus)
	rec.CropKnown = r.deps.Labels.Known(vote.Consensus)
	for i, mv := range vote.Votes {
		// The consensus is one of these labels, so each unmapped vote is counted once here.
		if !r.deps.Labels.Known(mv.Label) {
			r.unknownLabel(mv.Model, mv.Label)
		}
		rec.Predictions[i] = ModelPrediction{
			Model: mv.Model,
			Label: mv.Label,
			Crop:  r.deps.Labels.ResolveOr(mv.Label, common.UnknownLabel),
		}
	}

	rec.ImageMissing = true
	if rec.CropKnown {
		if path, ok := r.deps.Images.Find(rec.Crop); ok {
			rec.Image = filepath.Base(path)
			rec.ImageMissing = false
		}
	}
	if rec.ImageMissing && r.metrics != nil {
		r.metrics.ImageMissingInc()
	}

	r.mu.RLock()
	history, publisher := r.history, r.publisher
	r.mu.RUnlock()

	if history != nil {
		if err := history.SaveRecommendation(rec); err != nil {
			log.Warn().Err(err).Str("id", rec.ID).Msg("failed to store recommendation")
			if r.metrics != nil {
				r.metrics.HistoryWriteErrorInc()
			}
		}
	}
	if publisher != nil {
		publisher.Publish(rec)
	}

	if r.metrics != nil {
		r.metrics.RecommendationsInc()
		r.metrics.RecommendLatencyObserve(time.Since(start).Seconds())
	}

	log.Debug().
		Str("state", state).
		Str("district", district).
		Str("crop", rec.Crop).
		Int("label", rec.Label).
		Float64("agreement", rec.Agreement).
		Bool("cached", cached).
		Msg("Recommendation served")

	return rec, nil
}

func (r *Recommender) vote(ctx context.Context, state, district string, fv features.FeatureVector) ([]float64, ml.Vote, bool, error) {
	key := features.RegionKey{State: state, District: district}.Normalized()
	if r.cache != nil {
		if cv, ok := r.cache.Get(key); ok {
			if r.metrics != nil {
				r.metrics.CacheHitInc()
			}
			return cv.scaled, cv.vote, true, nil
		}
		if r.metrics != nil {
			r.metrics.CacheMissInc()
		}
	}

	scaled, err := r.deps.Scaler.Transform(fv.Slice())
	if err != nil {
		return nil, ml.Vote{}, false, fmt.Errorf("failed to scale features: %w", err)
	}
	vote, err := r.deps.Ensemble.Predict(ctx, scaled)
	if err != nil {
		return nil, ml.Vote{}, false, err
	}

	if r.cache != nil {
		r.cache.Add(key, cachedVote{scaled: scaled, vote: vote})
	}
	return scaled, vote, false, nil
}

func (r *Recommender) unknownLabel(model string, label int) {
	log.Warn().Str("model", model).Int("label", label).Msg("Label has no crop name")
	if r.metrics != nil {
		r.metrics.UnknownLabelInc()
	}
}

// States returns the sorted state names.
func (r *Recommender) States() []string {
	return r.deps.Regions.States()
}

// Districts returns the sorted districts of state.
func (r *Recommender) Districts(state string) []string {
	return r.deps.Regions.Districts(state)
}

// Regions returns every distinct region in table order.
func (r *Recommender) Regions() []features.RegionKey {
	return r.deps.Regions.Regions()
}

// Models describes the loaded classifiers.
func (r *Recommender) Models() []ml.ModelInfo {
	return append([]ml.ModelInfo(nil), r.deps.Models...)
}

// ModelNames returns the ensemble's classifier names in vote order.
func (r *Recommender) ModelNames() []string {
	return r.deps.Ensemble.Names()
}

// ImagePath returns the image file for crop, if any.
func (r *Recommender) ImagePath(crop string) (string, bool) {
	return r.deps.Images.Find(crop)
}

// History returns up to limit recent recommendations, newest first. limit <= 0 selects the
// default; larger values are capped.
func (r *Recommender) History(limit int) ([]Recommendation, error) {
	r.mu.RLock()
	history := r.history
	r.mu.RUnlock()
	if history == nil {
		return nil, ErrHistoryDisabled
	}
	if limit <= 0 {
		limit = common.DefaultHistoryLimit
	}
	if limit > common.MaxHistoryLimit {
		limit = common.MaxHistoryLimit
	}
	return history.GetRecommendations(limit)
}
