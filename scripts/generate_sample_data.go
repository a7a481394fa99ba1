//go:build ignore

package main

import (
	"flag"
	"fmt"
	"log"

	"crop-recommender/internal/sample"
)

func main() {
	dataPath := flag.String("data", "data", "Data directory to populate")
	flag.Parse()

	fmt.Printf("Generating sample data in %s...\n", *dataPath)
	if err := sample.Write(*dataPath); err != nil {
		log.Fatalf("Failed to generate data: %v", err)
	}

	fmt.Printf("Generated %d regions, %d crops and one model of each type\n", len(sample.Rows), len(sample.Crops))
	fmt.Printf("Run: DATA_DIR=%s go run ./cmd/croprec\n", *dataPath)
}
