package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crop-recommender/internal/cfg"
	"crop-recommender/internal/common"
	"crop-recommender/internal/sample"

	"github.com/prometheus/client_golang/prometheus"
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
		RequestTimeout:  5 * time.Second,
	}
}

func options(output string) sweepOptions {
	return sweepOptions{output: output, workers: 2, registerer: prometheus.NewRegistry()}
}

func TestRunWritesReports(t *testing.T) {
	c := sampleSettings(t)
	output := filepath.Join(t.TempDir(), "out")
	var stdout bytes.Buffer

	require.NoError(t, run(context.Background(), c, options(output), &stdout))

	entries, err := os.ReadDir(output)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
	assert.NotEmpty(t, stdout.String())
}

func TestRunFailsWhenReportsCannotBeWritten(t *testing.T) {
	c := sampleSettings(t)
	// A regular file where the output directory should go.
	output := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(output, []byte("x"), 0o600))
	var stdout bytes.Buffer

	err := run(context.Background(), c, options(output), &stdout)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate reports")
	assert.NotEmpty(t, stdout.String(), "the summary is printed even when reports fail")
}

func TestRunFailsWhenSweepAborted(t *testing.T) {
	c := sampleSettings(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := run(ctx, c, options(filepath.Join(t.TempDir(), "out")), &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunFailsOnBadResources(t *testing.T) {
	c := sampleSettings(t)
	c.ScalerPath = filepath.Join(c.DataDir, "missing.json")

	err := run(context.Background(), c, options(filepath.Join(t.TempDir(), "out")), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load resources")
}
