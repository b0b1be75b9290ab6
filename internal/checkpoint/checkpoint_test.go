package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkDoneFlushesOnInterval(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, 0, 2)

	require.NoError(t, s.MarkDone(1))
	_, err := os.Stat(filepath.Join(dir, "checkpoint-0.txt"))
	assert.Error(t, err) // not flushed yet, only one completion

	require.NoError(t, s.MarkDone(2))
	_, err = os.Stat(filepath.Join(dir, "checkpoint-0.txt"))
	assert.NoError(t, err) // flushed at interval 2
}

func TestIsDone(t *testing.T) {
	s := New(t.TempDir(), 0, 1000)
	assert.False(t, s.IsDone(5))
	require.NoError(t, s.MarkDone(5))
	assert.True(t, s.IsDone(5))
}

func TestRemoveDeletesFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, 0, 1)
	require.NoError(t, s.MarkDone(1))
	require.NoError(t, s.Remove())
	_, err := os.Stat(filepath.Join(dir, "checkpoint-0.txt"))
	assert.Error(t, err)
}

func TestLoadResumeSetUnionsAcrossWorkers(t *testing.T) {
	dir := t.TempDir()
	s0 := New(dir, 0, 1)
	require.NoError(t, s0.MarkDone(1))
	require.NoError(t, s0.MarkDone(2))

	s1 := New(dir, 1, 1)
	require.NoError(t, s1.MarkDone(3))

	done, err := LoadResumeSet(dir, 2)
	require.NoError(t, err)
	assert.Contains(t, done, 1)
	assert.Contains(t, done, 2)
	assert.Contains(t, done, 3)
}

func TestLoadResumeSetMissingFilesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	done, err := LoadResumeSet(dir, 3)
	require.NoError(t, err)
	assert.Empty(t, done)
}
