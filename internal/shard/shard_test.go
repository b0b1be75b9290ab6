package shard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "shard-2"), d.Path())
	info, err := os.Stat(d.Path())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOutputPathUsesStem(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir, 0)
	require.NoError(t, err)
	out := d.OutputPath("/data/docs/report.pdf", "scm")
	assert.Equal(t, filepath.Join(dir, "shard-0", "report.scm"), out)
}

func TestStagesPathAppendsSuffix(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir, 0)
	require.NoError(t, err)
	out := d.OutputPath("report.pdf", "scm")
	assert.Equal(t, out+".stages.bin", d.StagesPath(out, "bin"))
}

func TestMergeMovesFilesAndRenamesCollisions(t *testing.T) {
	dir := t.TempDir()
	d0, err := Open(dir, 0)
	require.NoError(t, err)
	d1, err := Open(dir, 1)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(d0.Path(), "a.scm"), []byte("from-0"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(d1.Path(), "a.scm"), []byte("from-1"), 0o644))

	require.NoError(t, Merge(dir, 2))

	mergedDir := filepath.Join(dir, "merged")
	_, err = os.Stat(filepath.Join(mergedDir, "a.scm"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(mergedDir, "shard1-a.scm"))
	assert.NoError(t, err)
}

func TestMergeSkipsMissingShardDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Merge(dir, 3))
	_, err := os.Stat(filepath.Join(dir, "merged"))
	assert.NoError(t, err)
}
