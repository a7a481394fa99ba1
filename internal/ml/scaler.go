package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"crop-recommender/internal/common"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

// Scaler is a pre-fit feature transform applied before classification.
type Scaler interface {
	// Transform returns a new, scaled copy of x. Feature order is preserved.
	Transform(x []float64) ([]float64, error)
	NumFeatures() int
	// FeatureNames returns the column order the scaler was fit on, or nil if it was not recorded.
	FeatureNames() []string
}

// Persisted scaler types
const (
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
)

// StandardScaler computes (x - mean) / scale per feature.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
	Names []string
}

func (s *StandardScaler) NumFeatures() int { return len(s.Mean) }

func (s *StandardScaler) FeatureNames() []string { return s.Names }

func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if err := checkWidth(len(s.Mean), x); err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	floats.SubTo(out, x, s.Mean)
	floats.Div(out, s.Scale)
	return out, nil
}

// MinMaxScaler computes x * scale + min per feature.
type MinMaxScaler struct {
	Min   []float64
	Scale []float64
	Names []string
}

func (s *MinMaxScaler) NumFeatures() int { return len(s.Min) }

func (s *MinMaxScaler) FeatureNames() []string { return s.Names }

func (s *MinMaxScaler) Transform(x []float64) ([]float64, error) {
	if err := checkWidth(len(s.Min), x); err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	floats.MulTo(out, x, s.Scale)
	floats.Add(out, s.Min)
	return out, nil
}

type scalerFile struct {
	Type         string    `json:"type"`
	Mean         []float64 `json:"mean,omitempty"`
	Min          []float64 `json:"min,omitempty"`
	Scale        []float64 `json:"scale"`
	FeatureNames []string  `json:"feature_names,omitempty"`
}

// CheckFeatureNames fails when s recorded its feature names and they differ from want in length
// or order. A scaler without names is accepted.
func CheckFeatureNames(s Scaler, want []string) error {
	names := s.FeatureNames()
	if len(names) == 0 {
		return nil
	}
	if len(names) != len(want) {
		return fmt.Errorf("scaler was fit on %d features, expected %d", len(names), len(want))
	}
	for i := range names {
		if names[i] != want[i] {
			return fmt.Errorf("scaler feature %d is %q, expected %q (fit order %v)", i, names[i], want[i], names)
		}
	}
	return nil
}

// LoadScaler reads a persisted scaler. Any failure is a ConfigError.
func LoadScaler(path string) (Scaler, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, common.NewConfigError("scaler", path, err)
	}
	defer file.Close()

	s, err := DecodeScaler(file)
	if err != nil {
		return nil, common.NewConfigError("scaler", path, err)
	}

	log.Info().Str("file", path).Int("features", s.NumFeatures()).Msg("Scaler loaded")
	return s, nil
}

// DecodeScaler parses and validates a scaler document.
func DecodeScaler(r io.Reader) (Scaler, error) {
	var f scalerFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode scaler: %w", err)
	}
	if len(f.Scale) == 0 {
		return nil, errors.New("scaler has no features")
	}
	if len(f.FeatureNames) > 0 && len(f.FeatureNames) != len(f.Scale) {
		return nil, fmt.Errorf("scaler has %d feature names for %d features", len(f.FeatureNames), len(f.Scale))
	}
	if !allFinite(f.Scale) {
		return nil, errors.New("scaler scale contains non-finite values")
	}

	switch f.Type {
	case ScalerStandard, "":
		if len(f.Mean) != len(f.Scale) {
			return nil, fmt.Errorf("scaler mean has %d values, scale has %d", len(f.Mean), len(f.Scale))
		}
		if !allFinite(f.Mean) {
			return nil, errors.New("scaler mean contains non-finite values")
		}
		for i, v := range f.Scale {
			if v == 0 {
				return nil, fmt.Errorf("scaler scale[%d] is zero", i)
			}
		}
		return &StandardScaler{Mean: f.Mean, Scale: f.Scale, Names: f.FeatureNames}, nil
	case ScalerMinMax:
		if len(f.Min) != len(f.Scale) {
			return nil, fmt.Errorf("scaler min has %d values, scale has %d", len(f.Min), len(f.Scale))
		}
		if !allFinite(f.Min) {
			return nil, errors.New("scaler min contains non-finite values")
		}
		return &MinMaxScaler{Min: f.Min, Scale: f.Scale, Names: f.FeatureNames}, nil
	default:
		return nil, fmt.Errorf("unknown scaler type %q", f.Type)
	}
}
