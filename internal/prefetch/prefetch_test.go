package prefetch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempFiles(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, n)
	for i := 0; i < n; i++ {
		p := filepath.Join(dir, string(rune('a'+i)))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		paths[i] = p
	}
	return paths
}

func TestHintAndInflight(t *testing.T) {
	paths := tempFiles(t, 3)
	p := New(2)
	defer p.Close()

	require.NoError(t, p.Hint(paths[0]))
	assert.Equal(t, 1, p.Inflight())

	require.NoError(t, p.Hint(paths[1]))
	assert.Equal(t, 2, p.Inflight())
}

func TestHintRotatesAndClosesOldest(t *testing.T) {
	paths := tempFiles(t, 3)
	p := New(2)
	defer p.Close()

	require.NoError(t, p.Hint(paths[0]))
	require.NoError(t, p.Hint(paths[1]))
	require.NoError(t, p.Hint(paths[2])) // rotates back to slot 0, closing paths[0]

	assert.Equal(t, 2, p.Inflight())
}

func TestDoneDrainsSlot(t *testing.T) {
	paths := tempFiles(t, 1)
	p := New(4)
	defer p.Close()

	require.NoError(t, p.Hint(paths[0]))
	assert.Equal(t, 1, p.Inflight())

	p.Done(paths[0])
	assert.Equal(t, 0, p.Inflight())
}

func TestWindowClampedToMax(t *testing.T) {
	p := New(999)
	assert.Len(t, p.slots, MaxWindow)
}

func TestHintErrorOnMissingFile(t *testing.T) {
	p := New(2)
	defer p.Close()
	err := p.Hint("/path/does/not/exist")
	assert.Error(t, err)
}
