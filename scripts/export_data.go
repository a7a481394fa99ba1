//go:build ignore

package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"crop-recommender/internal/storage"
)

// ExportRecord is one recommendation flattened for analysis.
type ExportRecord struct {
	Timestamp   int64          `json:"timestamp"`
	State       string         `json:"state"`
	District    string         `json:"district"`
	Features    []float64      `json:"features"`
	Crop        string         `json:"crop"`
	Label       int            `json:"label"`
	Agreement   float64        `json:"agreement"`
	ModelLabels map[string]int `json:"model_labels"`
}

func main() {
	var (
		dataPath   = flag.String("data", "history", "History directory path")
		outputPath = flag.String("output", "recommendations.jsonl", "Output JSON lines file path")
		days       = flag.Int("days", 30, "Number of days to export (0 for all)")
	)
	flag.Parse()

	log.Printf("Exporting history from %s to %s", *dataPath, *outputPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	end := time.Now()
	start := time.Unix(0, 0)
	if *days > 0 {
		start = end.AddDate(0, 0, -*days)
	}

	recs, err := store.GetRecommendationsInRange(start, end)
	if err != nil {
		log.Fatalf("Failed to read from database: %v", err)
	}
	if len(recs) == 0 {
		log.Println("Warning: No records found matching criteria")
	}

	outputFile, err := os.Create(*outputPath)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer outputFile.Close()

	encoder := json.NewEncoder(outputFile)
	cropCounts := make(map[string]int)
	for _, r := range recs {
		modelLabels := make(map[string]int, len(r.Predictions))
		for _, p := range r.Predictions {
			modelLabels[p.Model] = p.Label
		}
		record := ExportRecord{
			Timestamp:   r.CreatedAt.Unix(),
			State:       r.State,
			District:    r.District,
			Features:    r.Features.Slice(),
			Crop:        r.Crop,
			Label:       r.Label,
			Agreement:   r.Agreement,
			ModelLabels: modelLabels,
		}
		if err := encoder.Encode(record); err != nil {
			log.Fatalf("Failed to write JSON record: %v", err)
		}
		cropCounts[r.Crop]++
	}

	log.Printf("Successfully exported %d records to %s", len(recs), *outputPath)
	if len(recs) > 0 {
		log.Println("Records by crop:")
		for crop, count := range cropCounts {
			log.Printf("  %s: %d", crop, count)
		}
	}
}
