package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperpolymath/docudactyl/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadPlainManifest(t *testing.T) {
	path := writeTemp(t, "# comment\n/a/one.pdf\n\n/a/two.pdf\n#/a/skipped.pdf\n/a/three.pdf\n")

	m, err := Load(path, Options{WorkerCount: 2})
	require.NoError(t, err)
	require.Len(t, m.Entries, 3)
	assert.Equal(t, "/a/one.pdf", m.Entries[0].Path)
	assert.Equal(t, "/a/two.pdf", m.Entries[1].Path)
	assert.Equal(t, "/a/three.pdf", m.Entries[2].Path)
	assert.False(t, m.Entries[0].MetadataRich())
}

func TestLoadNDJSONManifest(t *testing.T) {
	path := writeTemp(t, `{"path":"/a/one.pdf","size":1024,"mtime":1700000000,"kind":"pdf"}`+"\n"+
		`{"path":"/a/two.jpg","kind":"image"}`+"\n"+
		`{"nosuchfield":true}`+"\n")

	m, err := Load(path, Options{WorkerCount: 1})
	require.NoError(t, err)
	require.Len(t, m.Entries, 2)

	e0 := m.Entries[0]
	assert.Equal(t, "/a/one.pdf", e0.Path)
	assert.Equal(t, int64(1024), e0.Size)
	assert.Equal(t, int64(1700000000), e0.MTime)
	assert.Equal(t, model.KindPDF, e0.Kind)
	assert.True(t, e0.MetadataRich())

	e1 := m.Entries[1]
	assert.Equal(t, "/a/two.jpg", e1.Path)
	assert.Equal(t, int64(-1), e1.Size)
	assert.False(t, e1.MetadataRich())
	assert.Equal(t, model.KindImage, e1.Kind)
}

func TestOwnerDistributesByIndex(t *testing.T) {
	m := &Manifest{Entries: make([]Entry, 7), WorkerCount: 3}
	assert.Equal(t, 0, m.Owner(0))
	assert.Equal(t, 1, m.Owner(1))
	assert.Equal(t, 2, m.Owner(2))
	assert.Equal(t, 0, m.Owner(3))

	assert.Equal(t, []int{0, 3, 6}, m.Indices(0))
	assert.Equal(t, []int{1, 4}, m.Indices(1))
	assert.Equal(t, []int{2, 5}, m.Indices(2))
}

func TestEmptyManifest(t *testing.T) {
	path := writeTemp(t, "# nothing but comments\n\n")
	m, err := Load(path, Options{WorkerCount: 4})
	require.NoError(t, err)
	assert.Empty(t, m.Entries)
}
