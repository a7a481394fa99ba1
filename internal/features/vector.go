// Package features provides the soil/climate feature vector used for crop recommendation and the
// per-region lookup table that supplies it.
//
// The feature order is fixed and must match the order the scaler and classifiers were fit with:
// N, P, K, temperature, humidity, ph, rainfall.
package features

import (
	"fmt"
	"math"
)

// Width is the number of features in a FeatureVector.
const Width = 7

// Names lists the feature columns in model order.
var Names = [Width]string{"N", "P", "K", "temperature", "humidity", "ph", "rainfall"}

// FeatureVector holds the seven measurements for one region.
type FeatureVector struct {
	N           float64 `json:"N"`
	P           float64 `json:"P"`
	K           float64 `json:"K"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	PH          float64 `json:"ph"`
	Rainfall    float64 `json:"rainfall"`
}

// Slice returns the features in model order.
func (v FeatureVector) Slice() []float64 {
	return []float64{v.N, v.P, v.K, v.Temperature, v.Humidity, v.PH, v.Rainfall}
}

// FromSlice builds a FeatureVector from values in model order.
func FromSlice(x []float64) (FeatureVector, error) {
	if len(x) != Width {
		return FeatureVector{}, fmt.Errorf("expected %d features, got %d", Width, len(x))
	}
	return FeatureVector{
		N:           x[0],
		P:           x[1],
		K:           x[2],
		Temperature: x[3],
		Humidity:    x[4],
		PH:          x[5],
		Rainfall:    x[6],
	}, nil
}

// Validate rejects NaN and infinite values.
func (v FeatureVector) Validate() error {
	for i, f := range v.Slice() {
		if math.IsNaN(f) {
			return fmt.Errorf("feature %s is NaN", Names[i])
		}
		if math.IsInf(f, 0) {
			return fmt.Errorf("feature %s is infinite", Names[i])
		}
	}
	return nil
}
