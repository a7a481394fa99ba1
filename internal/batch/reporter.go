package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Report file names inside the output directory
const (
	SummaryFile         = "sweep_summary.txt"
	RecommendationsFile = "recommendations.csv"
	ResultsFile         = "sweep_results.json"
	CropsFile           = "crop_distribution.csv"
)

// Reporter writes sweep reports
type Reporter struct {
	results    *Results
	outputPath string
}

func NewReporter(results *Results, outputPath string) *Reporter {
	return &Reporter{
		results:    results,
		outputPath: outputPath,
	}
}

// GenerateReport writes every report format into the output directory.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, gen := range []func() error{
		r.generateSummary,
		r.generateRecommendations,
		r.generateJSONReport,
		r.generateCropDistribution,
	} {
		if err := gen(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, SummaryFile)
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	r.writeSummary(file)

	if len(r.results.Crops) > 0 {
		fmt.Fprintf(file, "\nRECOMMENDATIONS BY CROP\n")
		fmt.Fprintf(file, "-----------------------\n")
		for _, c := range r.results.Crops {
			fmt.Fprintf(file, "%s: %d regions\n", c.Crop, c.Regions)
		}
	}

	var failed []Entry
	for _, e := range r.results.Entries {
		if e.Error != "" {
			failed = append(failed, e)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(file, "\nFAILED REGIONS\n")
		fmt.Fprintf(file, "--------------\n")
		for _, e := range failed {
			fmt.Fprintf(file, "%s / %s: %s\n", e.State, e.District, e.Error)
		}
	}

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

func (r *Reporter) writeSummary(w io.Writer) {
	res := r.results
	fmt.Fprintf(w, "SWEEP RESULTS SUMMARY\n")
	fmt.Fprintf(w, "=====================\n\n")
	fmt.Fprintf(w, "Started: %s\n", res.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Duration: %s\n\n", res.Duration)

	fmt.Fprintf(w, "Regions: %d\n", res.TotalRegions)
	fmt.Fprintf(w, "Succeeded: %d\n", res.Succeeded)
	fmt.Fprintf(w, "Failed: %d\n", res.Failed)
	fmt.Fprintf(w, "Unanimous Votes: %d\n", res.Unanimous)
	fmt.Fprintf(w, "Mean Agreement: %.2f%%\n", res.MeanAgreement*100)
	fmt.Fprintf(w, "Images Missing: %d\n", res.ImagesMissing)
}

func (r *Reporter) generateRecommendations() error {
	csvPath := filepath.Join(r.outputPath, RecommendationsFile)
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create recommendations file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"State", "District", "Crop", "Label", "Agreement", "Unanimous", "Image Missing", "Error"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, e := range r.results.Entries {
		record := []string{
			e.State,
			e.District,
			e.Crop,
			strconv.Itoa(e.Label),
			fmt.Sprintf("%.4f", e.Agreement),
			strconv.FormatBool(e.Unanimous),
			strconv.FormatBool(e.ImageMissing),
			e.Error,
		}
		if e.Error != "" {
			record[3] = ""
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	log.Info().Str("file", csvPath).Msg("Recommendations report generated")
	return nil
}

func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, ResultsFile)

	report := map[string]interface{}{
		"results":      r.results,
		"generated_at": time.Now().UTC(),
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

func (r *Reporter) generateCropDistribution() error {
	csvPath := filepath.Join(r.outputPath, CropsFile)
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create crop distribution: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Crop", "Regions", "Share"}); err != nil {
		return err
	}
	for _, c := range r.results.Crops {
		share := 0.0
		if r.results.Succeeded > 0 {
			share = float64(c.Regions) / float64(r.results.Succeeded)
		}
		if err := writer.Write([]string{c.Crop, strconv.Itoa(c.Regions), fmt.Sprintf("%.4f", share)}); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	log.Info().Str("file", csvPath).Msg("Crop distribution generated")
	return nil
}

// PrintSummary writes the summary to w.
func (r *Reporter) PrintSummary(w io.Writer) {
	fmt.Fprintln(w)
	r.writeSummary(w)
	for _, c := range r.results.Crops {
		fmt.Fprintf(w, "  %-20s %d\n", c.Crop, c.Regions)
	}
}
