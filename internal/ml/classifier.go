// Package ml holds the inference side of crop recommendation: the persisted feature scaler, the
// classifier kinds that can be loaded from a model directory, and the ensemble that runs every
// classifier on a scaled feature vector and takes a plurality vote.
//
// Nothing here trains models. Parameters are produced elsewhere and persisted as JSON.
package ml

import (
	"fmt"
)

// Classifier maps a scaled feature vector to a class label.
// Implementations must be safe for concurrent use once loaded.
type Classifier interface {
	// Predict returns the class label for x. x has NumFeatures elements.
	Predict(x []float64) (int, error)

	// NumFeatures is the input width the classifier was fit with.
	NumFeatures() int
}

// Handle is a named classifier as it takes part in an ensemble.
type Handle struct {
	Name  string
	Model Classifier
}

// MetricsInterface defines metrics methods needed by the ensemble
type MetricsInterface interface {
	ModelPredictionsInc(model string)
	ModelFailuresInc(model string)
	VoteLatencyObserve(float64)
	VoteAgreementObserve(float64)
}

func checkWidth(want int, x []float64) error {
	if len(x) != want {
		return fmt.Errorf("expected %d features, got %d", want, len(x))
	}
	return nil
}
