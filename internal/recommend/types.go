package recommend

import (
	"time"

	"crop-recommender/internal/features"
)

// ModelPrediction is one classifier's vote, resolved to a crop name.
type ModelPrediction struct {
	Model string `json:"model"`
	Label int    `json:"label"`
	Crop  string `json:"crop"` // "Unknown" when unmapped
}

// Recommendation is the full result of one recommendation request.
type Recommendation struct {
	ID           string                 `json:"id"`
	State        string                 `json:"state"`
	District     string                 `json:"district"`
	Features     features.FeatureVector `json:"features"`
	Scaled       []float64              `json:"scaled"`
	Label        int                    `json:"label"`
	Crop         string                 `json:"crop"` // "Unknown Crop" when unmapped
	CropKnown    bool                   `json:"crop_known"`
	Predictions  []ModelPrediction      `json:"predictions"` // in ensemble order
	Tally        map[int]int            `json:"tally"`
	Agreement    float64                `json:"agreement"`
	Image        string                 `json:"image,omitempty"` // image file name
	ImageMissing bool                   `json:"image_missing"`
	Cached       bool                   `json:"cached"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Region returns the requested region key.
func (r Recommendation) Region() features.RegionKey {
	return features.RegionKey{State: r.State, District: r.District}
}
