package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"crop-recommender/internal/app"
	"crop-recommender/internal/batch"
	"crop-recommender/internal/cfg"
	"crop-recommender/internal/common"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file (overrides CONFIG_FILE)")
		dataDir     = flag.String("data", "", "Data directory (overrides DATA_DIR)")
		outputPath  = flag.String("output", "sweep-results", "Output directory for reports")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		workers     = flag.Int("workers", 4, "Concurrent recommendations")
		withHistory = flag.Bool("history", false, "Record sweep recommendations in the history store")
	)
	flag.Parse()

	if *configPath != "" {
		os.Setenv(common.EnvConfigFile, *configPath)
	}
	if *dataDir != "" {
		os.Setenv(common.EnvDataDir, *dataDir)
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logCloser := cfg.SetupLogging(*logLevel, c.LogFile)
	defer logCloser.Close()

	fmt.Println("=== Sweep Configuration ===")
	fmt.Printf("Data Directory: %s\n", c.DataDir)
	fmt.Printf("Models: %s/*%s\n", c.ModelsDir, c.ModelExt)
	fmt.Printf("Regions: %s\n", c.RegionsPath)
	fmt.Printf("Output Directory: %s\n", *outputPath)
	fmt.Printf("Workers: %d\n", *workers)
	fmt.Println("===========================")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, c, sweepOptions{
		output:      *outputPath,
		workers:     *workers,
		withHistory: *withHistory,
		registerer:  prometheus.DefaultRegisterer,
	}, os.Stdout)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("Sweep failed")
		logCloser.Close()
		os.Exit(1)
	}
	log.Info().Str("output", *outputPath).Msg("Sweep completed successfully")
}

type sweepOptions struct {
	output      string
	workers     int
	withHistory bool
	registerer  prometheus.Registerer
}

// run sweeps every region and writes the reports. An aborted sweep or a report that cannot be
// written is an error; the summary is still printed when only the reports failed.
func run(ctx context.Context, c cfg.Settings, opts sweepOptions, stdout io.Writer) error {
	a, err := app.Build(c, app.Options{Registerer: opts.registerer, NoHistory: !opts.withHistory})
	if err != nil {
		return fmt.Errorf("failed to load resources: %w", err)
	}
	defer a.Close()

	results, err := batch.NewEngine(a.Recommender, opts.workers).Run(ctx)
	if err != nil {
		return fmt.Errorf("sweep aborted: %w", err)
	}

	reporter := batch.NewReporter(results, opts.output)
	reportErr := reporter.GenerateReport()
	reporter.PrintSummary(stdout)
	if reportErr != nil {
		return fmt.Errorf("failed to generate reports: %w", reportErr)
	}
	return nil
}
