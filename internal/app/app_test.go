package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crop-recommender/internal/cfg"
	"crop-recommender/internal/common"
	"crop-recommender/internal/features"
	"crop-recommender/internal/sample"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSettings(t *testing.T) cfg.Settings {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, sample.Write(dir))
	return cfg.Settings{
		DataDir:         dir,
		ScalerPath:      filepath.Join(dir, common.ScalerFile),
		ModelsDir:       filepath.Join(dir, common.ModelsDir),
		ModelExt:        common.DefaultModelExt,
		LabelsPath:      filepath.Join(dir, common.LabelsFile),
		RegionsPath:     filepath.Join(dir, common.RegionsFile),
		ImagesDir:       filepath.Join(dir, common.ImagesDir),
		DuplicatePolicy: cfg.DuplicateFirst,
		CacheSize:       16,
		Port:            common.DefaultPort,
		RequestTimeout:  5 * time.Second,
	}
}

func TestBuildSampleData(t *testing.T) {
	c := sampleSettings(t)
	c.HistoryPath = t.TempDir()

	a, err := Build(c, Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Store)
	assert.Equal(t, []string{"decision_tree", "knn", "linear", "naive_bayes", "random_forest"}, a.Recommender.ModelNames())
	assert.Len(t, a.Models, 5)
	assert.Equal(t, 5.0, testutil.ToFloat64(a.Metrics.Metrics().ModelsLoaded))
	assert.Equal(t, float64(len(sample.Rows)), testutil.ToFloat64(a.Metrics.Metrics().RegionsLoaded))

	ctx := context.Background()
	for _, row := range sample.Rows {
		rec, err := a.Recommender.Recommend(ctx, row.State, row.District)
		require.NoError(t, err, row.District)
		assert.Equal(t, row.Crop, rec.Crop, row.District)
		assert.True(t, rec.CropKnown)

		crop, ok := sample.CropByName(row.Crop)
		require.True(t, ok)
		assert.Equal(t, !crop.Image, rec.ImageMissing, row.District)
	}

	_, err = a.Recommender.Recommend(ctx, sample.MissingRow.State, sample.MissingRow.District)
	assert.True(t, errors.Is(err, features.ErrRegionNotFound))

	history, err := a.Recommender.History(100)
	require.NoError(t, err)
	assert.Len(t, history, len(sample.Rows))
}

func TestBuildWithoutHistory(t *testing.T) {
	c := sampleSettings(t)
	c.HistoryPath = t.TempDir()

	a, err := Build(c, Options{Registerer: prometheus.NewRegistry(), NoHistory: true})
	require.NoError(t, err)
	assert.Nil(t, a.Store)
	assert.NoError(t, a.Close())
}

func TestBuildConfigErrors(t *testing.T) {
	testCases := []struct {
		name     string
		mutate   func(t *testing.T, c *cfg.Settings)
		resource string
	}{
		{"missing regions", func(t *testing.T, c *cfg.Settings) { c.RegionsPath = filepath.Join(c.DataDir, "nope.csv") }, "region table"},
		{"missing scaler", func(t *testing.T, c *cfg.Settings) { c.ScalerPath = filepath.Join(c.DataDir, "nope.json") }, "scaler"},
		{"missing labels", func(t *testing.T, c *cfg.Settings) { c.LabelsPath = filepath.Join(c.DataDir, "nope.csv") }, "label mapping"},
		{"no models with extension", func(t *testing.T, c *cfg.Settings) { c.ModelExt = ".onnx" }, "model directory"},
		{"reordered scaler feature names", func(t *testing.T, c *cfg.Settings) {
			doc := `{"type":"standard","mean":[0,0,0,0,0,0,0],"scale":[1,1,1,1,1,1,1],
				"feature_names":["rainfall","ph","humidity","temperature","K","P","N"]}`
			c.ScalerPath = filepath.Join(c.DataDir, "reordered.json")
			require.NoError(t, os.WriteFile(c.ScalerPath, []byte(doc), 0o600))
		}, "scaler"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := sampleSettings(t)
			tc.mutate(t, &c)

			_, err := Build(c, Options{Registerer: prometheus.NewRegistry()})
			require.Error(t, err)
			var cerr *common.ConfigError
			require.True(t, errors.As(err, &cerr), err.Error())
			assert.Equal(t, tc.resource, cerr.Resource)
		})
	}
}
