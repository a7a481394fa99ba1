package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crop-recommender/internal/app"
	"crop-recommender/internal/cfg"
	"crop-recommender/internal/common"
	"crop-recommender/internal/web"

	"github.com/rs/zerolog/log"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file (overrides CONFIG_FILE)")
		dataDir    = flag.String("data", "", "Data directory (overrides DATA_DIR)")
		logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error")
		port       = flag.Int("port", 0, "HTTP port (overrides config)")
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
		log.Fatal().Err(err).Msg("config load failed")
	}
	if *logLevel != "" {
		c.LogLevel = *logLevel
	}
	if *port != 0 {
		c.Port = *port
	}

	logCloser := cfg.SetupLogging(c.LogLevel, c.LogFile)
	defer logCloser.Close()

	log.Info().
		Str("data_dir", c.DataDir).
		Str("models_dir", c.ModelsDir).
		Int("port", c.Port).
		Msg("Starting crop recommender")

	a, err := app.Build(c, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load resources")
	}
	defer a.Close()

	hub := web.NewHub(a.Metrics.WSClients())
	a.Recommender.SetPublisher(hub)

	opts := web.Options{Port: c.Port, RequestTimeout: c.RequestTimeout}
	if a.Store != nil {
		opts.Stats = a.Store
	}
	server := web.NewServer(a.Recommender, hub, opts)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	waitForShutdown(server, errCh)
}

// waitForShutdown blocks until a signal arrives or the server fails, then shuts down gracefully.
func waitForShutdown(server *web.Server, errCh <-chan error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
		}
		return
	}

	log.Info().Msg("shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
		return
	}
	log.Info().Msg("server stopped")
}
