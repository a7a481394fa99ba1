//go:build ignore

package main

import (
	"flag"
	"fmt"
	"log"

	"crop-recommender/internal/storage"
)

func main() {
	var (
		dataPath = flag.String("data", "./history", "History directory path")
		limit    = flag.Int("n", 20, "Number of recent recommendations to show")
	)
	flag.Parse()

	fmt.Printf("Inspecting history in: %s\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	count, err := store.Count()
	if err != nil {
		log.Fatalf("Failed to count recommendations: %v", err)
	}
	fmt.Printf("\nStored recommendations: %d\n", count)

	recs, err := store.GetRecommendations(*limit)
	if err != nil {
		log.Fatalf("Failed to fetch recommendations: %v", err)
	}
	fmt.Println("\nMost recent:")
	for _, r := range recs {
		fmt.Printf("%s  %-20s %-20s %-15s agreement %.0f%%\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.State, r.District, r.Crop, r.Agreement*100)
	}

	stats, err := store.GetRegionStats()
	if err != nil {
		log.Fatalf("Failed to fetch region stats: %v", err)
	}
	fmt.Println("\nRequests by region:")
	for _, s := range stats {
		fmt.Printf("%-20s %-20s %5d  last: %s\n", s.State, s.District, s.Requests, s.LastCrop)
	}
}
