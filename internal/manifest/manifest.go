// Package manifest loads the document list that drives a run (spec.md
// §4.2): either a plain path-per-line file or an NDJSON file, into a
// cyclically distributed sequence of entries where index i is owned by worker
// i % workerCount, so every worker can compute ownership without
// coordination.
package manifest

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/hyperpolymath/docudactyl/internal/logger"
	"github.com/hyperpolymath/docudactyl/internal/model"
)

// DistributionMode controls how the manifest file is read across workers.
// Both modes produce an identical in-memory layout; they differ only in
// which worker touches the filesystem.
type DistributionMode int

const (
	// Shared assumes every worker can open the manifest file directly.
	Shared DistributionMode = iota
	// Broadcast reads the manifest on worker 0 only; callers running in a
	// true multi-process topology are responsible for scattering the
	// result. In this single-process goroutine-worker design the two
	// modes behave identically, so Broadcast is accepted but not treated
	// specially.
	Broadcast
)

// Entry is one manifest row. Size and MTime are -1 when not pre-supplied by
// the manifest (the engine falls back to stat()); HasKind is false when the
// manifest did not supply a content-kind hint.
type Entry struct {
	Path    string
	Size    int64
	MTime   int64
	Kind    model.ContentKind
	HasKind bool
}

// MetadataRich reports whether every optional field is populated, enabling
// the fast cache-lookup path that skips a filesystem stat call.
func (e Entry) MetadataRich() bool {
	return e.Size >= 0 && e.MTime >= 0 && e.HasKind
}

// Manifest is the loaded document list, distributed cyclically over workers.
type Manifest struct {
	Entries      []Entry
	WorkerCount  int
	Distribution DistributionMode
}

// Owner returns the worker index responsible for manifest index i.
func (m *Manifest) Owner(i int) int {
	if m.WorkerCount <= 0 {
		return 0
	}
	return i % m.WorkerCount
}

// Indices returns the manifest indices owned by worker.
func (m *Manifest) Indices(worker int) []int {
	var out []int
	for i := range m.Entries {
		if m.Owner(i) == worker {
			out = append(out, i)
		}
	}
	return out
}

// Options configures Load.
type Options struct {
	WorkerCount  int
	Distribution DistributionMode
	// SampleSeed pins the RNG used for the existence-sampling warning, so
	// tests can make it deterministic. Zero means use the default source.
	SampleSeed int64
}

// Load reads path in two passes: the first counts valid lines, the second
// fills a pre-sized slice. If pass two sees fewer valid lines than pass one
// saw (the file was edited between passes), the result is shrunk to what
// pass two actually found rather than left with zero-value trailing
// entries.
func Load(path string, opts Options) (*Manifest, error) {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}

	ndjson, err := detectMode(path)
	if err != nil {
		return nil, err
	}

	n, err := countValidLines(path, ndjson)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, n)
	entries, err = fillEntries(path, ndjson, entries)
	if err != nil {
		return nil, err
	}

	m := &Manifest{
		Entries:      entries,
		WorkerCount:  opts.WorkerCount,
		Distribution: opts.Distribution,
	}

	sampleExistence(m, opts.SampleSeed)

	return m, nil
}

// detectMode reads the first non-comment, non-blank line and reports
// whether it looks like NDJSON (starts with '{').
func detectMode(path string) (ndjson bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return strings.HasPrefix(line, "{"), nil
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("manifest: scan %s: %w", path, err)
	}
	return false, nil
}

func countValidLines(path string, ndjson bool) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if ndjson {
			if !strings.HasPrefix(line, "{") {
				continue
			}
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("manifest: scan %s: %w", path, err)
	}
	return count, nil
}

func fillEntries(path string, ndjson bool, entries []Entry) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if ndjson {
			if !strings.HasPrefix(line, "{") {
				continue
			}
			entry, ok := parseNDJSONLine(line)
			if !ok {
				continue
			}
			entries = append(entries, entry)
		} else {
			entries = append(entries, Entry{Path: line, Size: -1, MTime: -1})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("manifest: scan %s: %w", path, err)
	}
	return entries, nil
}

// parseNDJSONLine is a minimal field extractor, not a general JSON parser:
// it locates "path":"...", "size":N, "mtime":N and "kind":"..." textually.
// Unrecognised fields are ignored, matching spec.md §4.2's "no external
// parser" requirement for this hot loop.
func parseNDJSONLine(line string) (Entry, bool) {
	e := Entry{Size: -1, MTime: -1}

	path, ok := extractStringField(line, "path")
	if !ok || path == "" {
		return Entry{}, false
	}
	e.Path = path

	if size, ok := extractIntField(line, "size"); ok {
		e.Size = size
	}
	if mtime, ok := extractIntField(line, "mtime"); ok {
		e.MTime = mtime
	}
	if kindName, ok := extractStringField(line, "kind"); ok {
		if kind, ok := model.ParseKindFromName(kindName); ok {
			e.Kind = kind
			e.HasKind = true
		}
	}

	return e, true
}

// extractStringField finds `"key":"value"` and returns value, unescaping
// nothing beyond what the manifest writer is expected to produce (plain
// paths and kind names never need JSON escaping in practice).
func extractStringField(line, key string) (string, bool) {
	needle := `"` + key + `":"`
	idx := strings.Index(line, needle)
	if idx < 0 {
		return "", false
	}
	start := idx + len(needle)
	end := strings.IndexByte(line[start:], '"')
	if end < 0 {
		return "", false
	}
	return line[start : start+end], true
}

// extractIntField finds `"key":N` (no surrounding quotes) and parses N.
func extractIntField(line, key string) (int64, bool) {
	needle := `"` + key + `":`
	idx := strings.Index(line, needle)
	if idx < 0 {
		return 0, false
	}
	start := idx + len(needle)
	end := start
	for end < len(line) && (line[end] == '-' || (line[end] >= '0' && line[end] <= '9')) {
		end++
	}
	if end == start {
		return 0, false
	}
	v, err := strconv.ParseInt(line[start:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// sampleExistence stat-probes a 0.1% random sample of entries and logs a
// warning if fewer than half of the sampled paths exist. This never fails
// the load; it is advisory, matching spec.md §4.2's "locale 0" check (here,
// the single process that loads the manifest).
func sampleExistence(m *Manifest, seed int64) {
	n := len(m.Entries)
	if n == 0 {
		return
	}
	sampleSize := n / 1000
	if sampleSize < 1 {
		sampleSize = 1
	}
	if sampleSize > n {
		sampleSize = n
	}

	rng := rand.New(rand.NewSource(seed))
	if seed == 0 {
		rng = rand.New(rand.NewSource(1))
	}

	found := 0
	for i := 0; i < sampleSize; i++ {
		idx := rng.Intn(n)
		if _, err := os.Stat(m.Entries[idx].Path); err == nil {
			found++
		}
	}

	rate := float64(found) / float64(sampleSize)
	if rate < 0.5 {
		logger.Warn("manifest: sampled existence rate %.1f%% over %d paths is below 50%%, run may fail heavily", rate*100, sampleSize)
	}
}
