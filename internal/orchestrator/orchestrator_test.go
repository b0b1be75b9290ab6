package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperpolymath/docudactyl/internal/checkpoint"
	"github.com/hyperpolymath/docudactyl/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempPDF(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := "%PDF-1.4\n/Title (Test Doc)\n/Author (Suite)\n%%EOF"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func baseConfig(t *testing.T, docs []string) config.Config {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.txt")
	var content string
	for _, d := range docs {
		content += d + "\n"
	}
	require.NoError(t, os.WriteFile(manifestPath, []byte(content), 0o644))

	cfg := config.Defaults()
	cfg.ManifestPath = manifestPath
	cfg.OutputDir = filepath.Join(dir, "output")
	cfg.WorkerCount = 2
	cfg.ChunkSize = 1
	cfg.CacheDir = ""
	cfg.CacheMode = config.CacheOff
	return cfg
}

func TestRunProcessesEveryManifestEntry(t *testing.T) {
	dir := t.TempDir()
	a := writeTempPDF(t, dir, "a.pdf")
	b := writeTempPDF(t, dir, "b.pdf")

	cfg := baseConfig(t, []string{a, b})
	o, err := New(cfg)
	require.NoError(t, err)

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), report.TotalDocs)
	assert.Equal(t, int64(2), report.TotalSuccesses)
}

func TestRunRecordsFailureForMissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, []string{filepath.Join(dir, "does-not-exist.pdf")})
	o, err := New(cfg)
	require.NoError(t, err)

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.TotalDocs)
	assert.Equal(t, int64(1), report.TotalFailures)
}

func TestRunWritesReportFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeTempPDF(t, dir, "a.pdf")
	cfg := baseConfig(t, []string{a})

	o, err := New(cfg)
	require.NoError(t, err)
	_, err = o.Run(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(cfg.OutputDir, "run-report.scm"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "run-report.json"))
}

func TestRunWithResumeSkipsCheckpointedIndex(t *testing.T) {
	dir := t.TempDir()
	a := writeTempPDF(t, dir, "a.pdf")
	cfg := baseConfig(t, []string{a})

	o, err := New(cfg)
	require.NoError(t, err)
	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.TotalSuccesses)

	// A clean run removes its checkpoints, so record index 0 as done the
	// way an interrupted run would have left it.
	require.NoError(t, checkpoint.New(cfg.OutputDir, 0, 1).MarkDone(0))

	cfg.Resume = true
	o2, err := New(cfg)
	require.NoError(t, err)
	report2, err := o2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report2.TotalDocs)
	assert.Equal(t, int64(1), report2.TotalSkippedResumed)
	assert.Zero(t, report2.TotalSuccesses)
}

func TestRunFlushesCheckpointsWhenFailuresRemain(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, []string{filepath.Join(dir, "missing.pdf")})
	cfg.CheckpointIntervalDocs = 1000 // well above doc count, so only a final flush writes it

	o, err := New(cfg)
	require.NoError(t, err)
	report, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), report.TotalFailures)

	data, err := os.ReadFile(checkpoint.Path(cfg.OutputDir, 0))
	require.NoError(t, err)
	assert.Contains(t, string(data), "0")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.ManifestPath = ""
	_, err := New(cfg)
	assert.Error(t, err)
}
