package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"crop-recommender/internal/common"

	"github.com/rs/zerolog/log"
)

// Persisted classifier types
const (
	TypeDecisionTree       = "decision_tree"
	TypeRandomForest       = "random_forest"
	TypeLogisticRegression = "logistic_regression"
	TypeLinear             = "linear"
	TypeKNN                = "knn"
	TypeGaussianNB         = "gaussian_nb"
)

// ModelInfo describes a classifier loaded from disk.
type ModelInfo struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
	LoadedAt time.Time `json:"loaded_at"`
}

type modelHeader struct {
	Type      string `json:"type"`
	NFeatures int    `json:"n_features"`
}

type decoder func(width int, data []byte) (Classifier, error)

var decoders = map[string]decoder{
	TypeDecisionTree: func(width int, data []byte) (Classifier, error) {
		var m struct {
			Nodes []TreeNode `json:"nodes"`
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return NewDecisionTree(width, m.Nodes)
	},
	TypeRandomForest: func(width int, data []byte) (Classifier, error) {
		var m struct {
			Trees [][]TreeNode `json:"trees"`
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return NewRandomForest(width, m.Trees)
	},
	TypeLogisticRegression: decodeLinear,
	TypeLinear:             decodeLinear,
	TypeKNN: func(width int, data []byte) (Classifier, error) {
		var m struct {
			K      int         `json:"k"`
			Points [][]float64 `json:"points"`
			Labels []int       `json:"labels"`
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return NewKNN(width, m.K, m.Points, m.Labels)
	},
	TypeGaussianNB: func(width int, data []byte) (Classifier, error) {
		var m struct {
			Classes []int       `json:"classes"`
			Priors  []float64   `json:"priors"`
			Means   [][]float64 `json:"means"`
			Vars    [][]float64 `json:"vars"`
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return NewGaussianNB(width, m.Classes, m.Priors, m.Means, m.Vars)
	},
}

func decodeLinear(width int, data []byte) (Classifier, error) {
	var m struct {
		Coef      [][]float64 `json:"coef"`
		Intercept []float64   `json:"intercept"`
		Classes   []int       `json:"classes"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return NewLinearModel(width, m.Coef, m.Intercept, m.Classes)
}

// DecodeClassifier parses a persisted classifier and returns it with its type.
// The document's n_features must equal width.
func DecodeClassifier(data []byte, width int) (Classifier, string, error) {
	var h modelHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, "", fmt.Errorf("failed to decode model: %w", err)
	}
	dec, ok := decoders[h.Type]
	if !ok {
		return nil, h.Type, fmt.Errorf("unknown model type %q", h.Type)
	}
	if h.NFeatures != width {
		return nil, h.Type, fmt.Errorf("model expects %d features, scaler produces %d", h.NFeatures, width)
	}
	c, err := dec(width, data)
	if err != nil {
		return nil, h.Type, fmt.Errorf("invalid %s model: %w", h.Type, err)
	}
	return c, h.Type, nil
}

// LoadEnsemble loads every file in dir whose extension is ext as a classifier named after the
// file. All models must accept width features. Any bad file, or an empty directory, is a
// ConfigError.
func LoadEnsemble(dir, ext string, width int) (*Ensemble, []ModelInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, common.NewConfigError("model directory", dir, err)
	}

	var (
		handles []Handle
		infos   []ModelInfo
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, common.NewConfigError("model", path, err)
		}
		c, typ, err := DecodeClassifier(data, width)
		if err != nil {
			return nil, nil, common.NewConfigError("model", path, err)
		}

		info := ModelInfo{Name: name, Type: typ, Path: path, LoadedAt: time.Now()}
		if fi, err := entry.Info(); err == nil {
			info.Size = fi.Size()
			info.ModTime = fi.ModTime()
		}

		handles = append(handles, Handle{Name: name, Model: c})
		infos = append(infos, info)
		log.Debug().Str("model", name).Str("type", typ).Str("file", path).Msg("Model loaded")
	}

	ens, err := NewEnsemble(handles...)
	if err != nil {
		if errors.Is(err, ErrEmptyEnsemble) {
			err = fmt.Errorf("no %s models found: %w", ext, err)
		}
		return nil, nil, common.NewConfigError("model directory", dir, err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	log.Info().Str("dir", dir).Strs("models", ens.Names()).Msg("Ensemble loaded")
	return ens, infos, nil
}
