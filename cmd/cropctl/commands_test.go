package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"crop-recommender/internal/app"
	"crop-recommender/internal/cfg"
	"crop-recommender/internal/common"
	"crop-recommender/internal/recommend"
	"crop-recommender/internal/sample"
	"crop-recommender/internal/web"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, sample.Write(dir))
	return dir
}

func startServer(t *testing.T) string {
	t.Helper()
	dir := writeSample(t)
	c := cfg.Settings{
		DataDir:         dir,
		ScalerPath:      filepath.Join(dir, common.ScalerFile),
		ModelsDir:       filepath.Join(dir, common.ModelsDir),
		ModelExt:        common.DefaultModelExt,
		LabelsPath:      filepath.Join(dir, common.LabelsFile),
		RegionsPath:     filepath.Join(dir, common.RegionsFile),
		ImagesDir:       filepath.Join(dir, common.ImagesDir),
		DuplicatePolicy: cfg.DuplicateFirst,
		HistoryPath:     t.TempDir(),
		RequestTimeout:  5 * time.Second,
	}
	reg := prometheus.NewRegistry()
	a, err := app.Build(c, app.Options{Registerer: reg})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	ts := httptest.NewServer(web.NewServer(a.Recommender, nil, web.Options{Gatherer: reg}).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRemoteCommands(t *testing.T) {
	url := startServer(t)

	out, err := run(t, "states", "--server", url)
	require.NoError(t, err)
	assert.Equal(t, "Bihar\nKarnataka\nKerala\nMadhya Pradesh\nMaharashtra\n", out)

	out, err = run(t, "districts", "Karnataka", "-s", url, "--json")
	require.NoError(t, err)
	var districts map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &districts))
	assert.Equal(t, []string{"Bengaluru", "Mysuru"}, districts["districts"])

	out, err = run(t, "predict", "Karnataka", "Bengaluru", "-s", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Recommended crop for Bengaluru, Karnataka: coffee")
	assert.Contains(t, out, "Model-wise Predictions")
	assert.Regexp(t, `knn:\s+coffee\s+\(Label: 4\)`, out)
	assert.Contains(t, out, "Image: coffee.png")

	out, err = run(t, "predict", "Maharashtra", "Pune", "-s", url)
	require.NoError(t, err)
	assert.Contains(t, out, common.MsgImageMissing)

	_, err = run(t, "predict", "Goa", "Panaji", "-s", url)
	require.Error(t, err)
	assert.Equal(t, common.MsgRegionNotFound, err.Error())

	out, err = run(t, "history", "-s", url, "--json", "-n", "1")
	require.NoError(t, err)
	var recs []recommend.Recommendation
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "Pune", recs[0].District)

	out, err = run(t, "models", "-s", url)
	require.NoError(t, err)
	assert.Contains(t, out, "random_forest")
	assert.Contains(t, out, "gaussian_nb")
}

func TestPredictLocal(t *testing.T) {
	dir := writeSample(t)
	t.Setenv(common.EnvConfigFile, "")
	t.Setenv(common.EnvDataDir, dir)

	out, err := run(t, "predict", "kerala", "thiruvananthapuram", "--local", "--json")
	require.NoError(t, err)
	var rec recommend.Recommendation
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "rice", rec.Crop)
	assert.Equal(t, 1.0, rec.Agreement)
}

func TestArgumentValidation(t *testing.T) {
	_, err := run(t, "districts")
	assert.Error(t, err)

	_, err = run(t, "predict", "Kerala")
	assert.Error(t, err)
}

func TestTallyString(t *testing.T) {
	rec := recommend.Recommendation{
		Predictions: []recommend.ModelPrediction{
			{Model: "a", Label: 2, Crop: "rice"},
			{Model: "b", Label: 5, Crop: "maize"},
			{Model: "c", Label: 2, Crop: "rice"},
		},
		Tally: map[int]int{2: 2, 5: 1},
	}
	assert.Equal(t, "rice=2, maize=1", tallyString(rec))
}
