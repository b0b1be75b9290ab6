package l1

import (
	"path/filepath"
	"testing"

	"github.com/hyperpolymath/docudactyl/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "l1.db")
	s, err := Open(path, 0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreAndLookupHit(t *testing.T) {
	s := openTemp(t)
	result := model.ParseResult{Status: model.StatusOk, Kind: model.KindPDF, PageCount: 3, SHA256Hex: "abc"}

	require.NoError(t, s.Store("/doc/a.pdf", 1000, 2048, result))

	got, ok := s.Lookup("/doc/a.pdf", 1000, 2048)
	require.True(t, ok)
	assert.Equal(t, result, got)
}

func TestLookupMissOnMetadataMismatch(t *testing.T) {
	s := openTemp(t)
	result := model.ParseResult{Status: model.StatusOk}
	require.NoError(t, s.Store("/doc/a.pdf", 1000, 2048, result))

	_, ok := s.Lookup("/doc/a.pdf", 1000, 4096) // size differs
	assert.False(t, ok)

	_, ok = s.Lookup("/doc/a.pdf", 9999, 2048) // mtime differs
	assert.False(t, ok)
}

func TestLookupMissOnUnknownPath(t *testing.T) {
	s := openTemp(t)
	_, ok := s.Lookup("/nowhere", 1, 1)
	assert.False(t, ok)
}

func TestCount(t *testing.T) {
	s := openTemp(t)
	assert.Equal(t, 0, s.Count())
	require.NoError(t, s.Store("/a", 1, 1, model.ParseResult{}))
	require.NoError(t, s.Store("/b", 1, 1, model.ParseResult{}))
	assert.Equal(t, 2, s.Count())
}

func TestDegradesToReadOnlyPastCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l1.db")
	s, err := Open(path, 1) // absurdly small bound, forces degradation on first write
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Store("/a", 1, 1, model.ParseResult{SHA256Hex: "x"}))
	assert.True(t, s.ReadOnly())

	// Further writes are silently skipped once read-only.
	require.NoError(t, s.Store("/b", 1, 1, model.ParseResult{}))
}

func TestSyncAndClose(t *testing.T) {
	s := openTemp(t)
	assert.NoError(t, s.Sync())
}
