// Package batch sweeps the recommender over every region in the table and reports the results.
package batch

import (
	"context"
	"sort"
	"sync"
	"time"

	"crop-recommender/internal/features"
	"crop-recommender/internal/recommend"

	"github.com/rs/zerolog/log"
)

// Source is the part of the recommender a sweep needs.
type Source interface {
	Regions() []features.RegionKey
	Recommend(ctx context.Context, state, district string) (recommend.Recommendation, error)
}

// Entry is the outcome for one region.
type Entry struct {
	State        string  `json:"state"`
	District     string  `json:"district"`
	Crop         string  `json:"crop,omitempty"`
	Label        int     `json:"label"`
	Agreement    float64 `json:"agreement"`
	Unanimous    bool    `json:"unanimous"`
	ImageMissing bool    `json:"image_missing"`
	Error        string  `json:"error,omitempty"`
}

// CropCount is how many regions a crop was recommended for.
type CropCount struct {
	Crop    string `json:"crop"`
	Regions int    `json:"regions"`
}

// Results holds a finished sweep
type Results struct {
	Entries       []Entry       `json:"entries"` // in region table order
	TotalRegions  int           `json:"total_regions"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	Unanimous     int           `json:"unanimous"`
	ImagesMissing int           `json:"images_missing"`
	MeanAgreement float64       `json:"mean_agreement"`
	Crops         []CropCount   `json:"crops"` // most recommended first
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Duration      time.Duration `json:"duration"`
}

// Engine runs a sweep.
type Engine struct {
	source  Source
	workers int
}

// NewEngine creates an engine. workers < 1 runs sequentially.
func NewEngine(source Source, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{source: source, workers: workers}
}

// Run recommends for every region. Per-region failures are recorded in the entry; Run only fails
// when ctx is cancelled.
func (e *Engine) Run(ctx context.Context) (*Results, error) {
	regions := e.source.Regions()
	results := &Results{
		Entries:      make([]Entry, len(regions)),
		TotalRegions: len(regions),
		StartTime:    time.Now(),
	}

	log.Info().Int("regions", len(regions)).Int("workers", e.workers).Msg("Starting sweep")

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results.Entries[i] = e.recommendOne(ctx, regions[i])
			}
		}()
	}

feed:
	for i := range regions {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results.EndTime = time.Now()
	results.Duration = results.EndTime.Sub(results.StartTime)
	results.calculate()

	log.Info().
		Int("succeeded", results.Succeeded).
		Int("failed", results.Failed).
		Dur("duration", results.Duration).
		Msg("Sweep completed")

	return results, nil
}

func (e *Engine) recommendOne(ctx context.Context, key features.RegionKey) Entry {
	entry := Entry{State: key.State, District: key.District}
	rec, err := e.source.Recommend(ctx, key.State, key.District)
	if err != nil {
		log.Warn().Err(err).Str("region", key.String()).Msg("Sweep recommendation failed")
		entry.Error = err.Error()
		return entry
	}
	entry.Crop = rec.Crop
	entry.Label = rec.Label
	entry.Agreement = rec.Agreement
	entry.Unanimous = rec.Agreement == 1
	entry.ImageMissing = rec.ImageMissing
	return entry
}

// calculate fills the aggregate fields from Entries.
func (r *Results) calculate() {
	counts := make(map[string]int)
	agreement := 0.0
	for _, e := range r.Entries {
		if e.Error != "" {
			r.Failed++
			continue
		}
		r.Succeeded++
		agreement += e.Agreement
		counts[e.Crop]++
		if e.Unanimous {
			r.Unanimous++
		}
		if e.ImageMissing {
			r.ImagesMissing++
		}
	}
	if r.Succeeded > 0 {
		r.MeanAgreement = agreement / float64(r.Succeeded)
	}

	r.Crops = make([]CropCount, 0, len(counts))
	for crop, n := range counts {
		r.Crops = append(r.Crops, CropCount{Crop: crop, Regions: n})
	}
	sort.Slice(r.Crops, func(i, j int) bool {
		if r.Crops[i].Regions != r.Crops[j].Regions {
			return r.Crops[i].Regions > r.Crops[j].Regions
		}
		return r.Crops[i].Crop < r.Crops[j].Crop
	})
}
