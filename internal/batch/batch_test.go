package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"crop-recommender/internal/features"
	"crop-recommender/internal/recommend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	regions []features.RegionKey
	crops   map[string]recommend.Recommendation
	mu      sync.Mutex
	calls   int
}

func (f *fakeSource) Regions() []features.RegionKey { return f.regions }

func (f *fakeSource) Recommend(ctx context.Context, state, district string) (recommend.Recommendation, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	rec, ok := f.crops[district]
	if !ok {
		return recommend.Recommendation{}, fmt.Errorf("model tree: boom")
	}
	rec.State, rec.District = state, district
	return rec, nil
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		regions: []features.RegionKey{
			{State: "Maharashtra", District: "Mumbai"},
			{State: "Maharashtra", District: "Pune"},
			{State: "Karnataka", District: "Bengaluru"},
			{State: "Kerala", District: "Kochi"},
		},
		crops: map[string]recommend.Recommendation{
			"Mumbai":    {Crop: "rice", Label: 0, Agreement: 1},
			"Pune":      {Crop: "cotton", Label: 3, Agreement: 0.6, ImageMissing: true},
			"Bengaluru": {Crop: "rice", Label: 0, Agreement: 0.8},
		},
	}
}

func TestEngineRun(t *testing.T) {
	for _, workers := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			src := newFakeSource()
			res, err := NewEngine(src, workers).Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 4, src.calls)
			assert.Equal(t, 4, res.TotalRegions)
			assert.Equal(t, 3, res.Succeeded)
			assert.Equal(t, 1, res.Failed)
			assert.Equal(t, 1, res.Unanimous)
			assert.Equal(t, 1, res.ImagesMissing)
			assert.InDelta(t, 0.8, res.MeanAgreement, 1e-9)
			assert.Equal(t, []CropCount{{Crop: "rice", Regions: 2}, {Crop: "cotton", Regions: 1}}, res.Crops)

			require.Len(t, res.Entries, 4)
			assert.Equal(t, "Mumbai", res.Entries[0].District)
			assert.Equal(t, "cotton", res.Entries[1].Crop)
			assert.Equal(t, "Kochi", res.Entries[3].District)
			assert.Contains(t, res.Entries[3].Error, "boom")
		})
	}
}

func TestEngineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(newFakeSource(), 2).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineEmptyTable(t *testing.T) {
	res, err := NewEngine(&fakeSource{}, 2).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.TotalRegions)
	assert.Zero(t, res.MeanAgreement)
	assert.Empty(t, res.Crops)
}

func TestReporterGenerateReport(t *testing.T) {
	res, err := NewEngine(newFakeSource(), 1).Run(context.Background())
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "reports")
	r := NewReporter(res, out)
	require.NoError(t, r.GenerateReport())

	summary, err := os.ReadFile(filepath.Join(out, SummaryFile))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Succeeded: 3")
	assert.Contains(t, string(summary), "rice: 2 regions")
	assert.Contains(t, string(summary), "Kerala / Kochi: model tree: boom")

	f, err := os.Open(filepath.Join(out, RecommendationsFile))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, []string{"Maharashtra", "Pune", "cotton", "3", "0.6000", "false", "true", ""}, records[2])
	assert.Equal(t, "", records[4][3])

	data, err := os.ReadFile(filepath.Join(out, ResultsFile))
	require.NoError(t, err)
	var report struct {
		Results Results `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 3, report.Results.Succeeded)
	assert.Len(t, report.Results.Entries, 4)

	crops, err := os.ReadFile(filepath.Join(out, CropsFile))
	require.NoError(t, err)
	assert.Contains(t, string(crops), "rice,2,0.6667")

	var buf bytes.Buffer
	r.PrintSummary(&buf)
	assert.Contains(t, buf.String(), "Failed: 1")
}
