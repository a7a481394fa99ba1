package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"crop-recommender/internal/features"
	"crop-recommender/internal/recommend"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecommendation(id, state, district, crop string, ts time.Time) recommend.Recommendation {
	return recommend.Recommendation{
		ID:        id,
		State:     state,
		District:  district,
		Features:  features.FeatureVector{N: 90, P: 42, K: 43, Temperature: 20.9, Humidity: 82, PH: 6.5, Rainfall: 202.9},
		Label:     2,
		Crop:      crop,
		CropKnown: true,
		Predictions: []recommend.ModelPrediction{
			{Model: "forest", Label: 2, Crop: crop},
		},
		Tally:     map[int]int{2: 1},
		Agreement: 1,
		CreatedAt: ts,
	}
}

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	store, err := New(tempDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Store database is nil")
	}

	dbPath := filepath.Join(tempDir, dbFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "history")
	store, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to create store in nested directory: %v", err)
	}
	defer store.Close()
}

func TestNew_InvalidPath(t *testing.T) {
	// A regular file where the directory should be
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	_, err := New(filepath.Join(file, "history"))
	if err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestStore_Close(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Error closing store: %v", err)
	}
	// Test closing already closed store
	if err := store.Close(); err != nil {
		t.Errorf("Error closing already closed store: %v", err)
	}

	if err := store.SaveRecommendation(sampleRecommendation("x", "A", "B", "rice", time.Now())); err == nil {
		t.Error("Expected error saving to closed store")
	}
}

func TestStore_CloseNilDB(t *testing.T) {
	store := &Store{db: nil}
	if err := store.Close(); err != nil {
		t.Errorf("Expected no error for nil db, got: %v", err)
	}
}

func TestSaveRecommendation_RequiresID(t *testing.T) {
	store := newTestStore(t)
	if err := store.SaveRecommendation(sampleRecommendation("", "A", "B", "rice", time.Now())); err == nil {
		t.Error("Expected error for recommendation without ID")
	}
}

func TestGetRecommendations(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	recs := []recommend.Recommendation{
		sampleRecommendation("a", "Maharashtra", "Mumbai", "rice", now),
		sampleRecommendation("b", "Maharashtra", "Pune", "cotton", now.Add(time.Second)),
		sampleRecommendation("c", "Kerala", "Kochi", "coconut", now.Add(2*time.Second)),
	}
	for _, rec := range recs {
		if err := store.SaveRecommendation(rec); err != nil {
			t.Fatalf("Failed to save recommendation: %v", err)
		}
	}

	got, err := store.GetRecommendations(2)
	if err != nil {
		t.Fatalf("Failed to get recommendations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 recommendations, got %d", len(got))
	}
	if got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("Expected newest first [c b], got [%s %s]", got[0].ID, got[1].ID)
	}
	if got[0].Crop != "coconut" || got[0].Features.Rainfall != 202.9 {
		t.Errorf("Round trip lost data: %+v", got[0])
	}
	if got[0].Tally[2] != 1 {
		t.Errorf("Expected tally to round trip, got %v", got[0].Tally)
	}

	all, err := store.GetRecommendations(100)
	if err != nil {
		t.Fatalf("Failed to get recommendations: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 recommendations, got %d", len(all))
	}

	none, err := store.GetRecommendations(0)
	if err != nil || len(none) != 0 {
		t.Errorf("Expected empty result for limit 0, got %d (%v)", len(none), err)
	}

	n, err := store.Count()
	if err != nil || n != 3 {
		t.Errorf("Expected count 3, got %d (%v)", n, err)
	}
}

func TestGetRecommendations_SameTimestamp(t *testing.T) {
	store := newTestStore(t)
	ts := time.Now()

	for _, id := range []string{"first", "second"} {
		if err := store.SaveRecommendation(sampleRecommendation(id, "A", "B", "rice", ts)); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
	}

	got, err := store.GetRecommendations(10)
	if err != nil {
		t.Fatalf("Failed to get recommendations: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected both records to be kept, got %d", len(got))
	}
}

func TestGetRecommendationsInRange(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	for i, offset := range []time.Duration{0, time.Second, 2 * time.Second, 10 * time.Second} {
		rec := sampleRecommendation(string(rune('a'+i)), "A", "B", "rice", now.Add(offset))
		if err := store.SaveRecommendation(rec); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
	}

	got, err := store.GetRecommendationsInRange(now.Add(-time.Second), now.Add(5*time.Second))
	if err != nil {
		t.Fatalf("Failed to get range: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 recommendations in range, got %d", len(got))
	}
	if got[0].ID != "a" || got[2].ID != "c" {
		t.Errorf("Expected oldest first, got %s..%s", got[0].ID, got[2].ID)
	}

	empty, err := store.GetRecommendationsInRange(now.Add(-time.Hour), now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("Failed to get range: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected empty result, got %d", len(empty))
	}
}

func TestGetRegionStats(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	recs := []recommend.Recommendation{
		sampleRecommendation("1", "Maharashtra", "Mumbai", "rice", now),
		sampleRecommendation("2", "maharashtra", "MUMBAI", "rice", now.Add(time.Second)),
		sampleRecommendation("3", "Maharashtra", "Mumbai", "jute", now.Add(2*time.Second)),
		sampleRecommendation("4", "Kerala", "Kochi", "coconut", now.Add(3*time.Second)),
	}
	for _, rec := range recs {
		if err := store.SaveRecommendation(rec); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
	}

	stats, err := store.GetRegionStats()
	if err != nil {
		t.Fatalf("Failed to get region stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("Expected 2 regions, got %d", len(stats))
	}

	mumbai := stats[0]
	if mumbai.State != "Maharashtra" || mumbai.District != "Mumbai" {
		t.Errorf("Expected first spelling to be kept, got %s/%s", mumbai.State, mumbai.District)
	}
	if mumbai.Requests != 3 {
		t.Errorf("Expected 3 requests, got %d", mumbai.Requests)
	}
	if mumbai.Crops["rice"] != 2 || mumbai.Crops["jute"] != 1 {
		t.Errorf("Unexpected crop counts %v", mumbai.Crops)
	}
	if mumbai.LastCrop != "jute" {
		t.Errorf("Expected last crop jute, got %s", mumbai.LastCrop)
	}
	if !mumbai.FirstSeen.Equal(now) {
		t.Errorf("Expected first seen %v, got %v", now, mumbai.FirstSeen)
	}

	if stats[1].District != "Kochi" || stats[1].Requests != 1 {
		t.Errorf("Unexpected second region %+v", stats[1])
	}
}
