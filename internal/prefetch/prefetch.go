// Package prefetch implements the I/O Prefetcher of spec.md §4.6: a
// sliding window of open file descriptors that overlaps the cost of
// reading the next several documents with parsing the current one.
package prefetch

import (
	"fmt"
	"os"
	"sync"
)

// MaxWindow is the largest sliding window spec.md §4.6 allows.
const MaxWindow = 16

type slot struct {
	path string
	file *os.File
}

// Prefetcher holds up to MaxWindow open file descriptors in a ring. Hinting
// a new path closes whatever previously occupied that slot.
type Prefetcher struct {
	mu    sync.Mutex
	slots []slot
	next  int
}

// New creates a Prefetcher with the given window size, clamped to
// [1, MaxWindow].
func New(window int) *Prefetcher {
	if window <= 0 {
		window = 1
	}
	if window > MaxWindow {
		window = MaxWindow
	}
	return &Prefetcher{slots: make([]slot, window)}
}

// Hint opens path at the next rotating slot, closing whatever file
// previously occupied it, and issues a readahead advisory. A failure to
// open is non-fatal: the caller proceeds without the prefetch and the
// engine will open the file itself when it actually parses.
func (p *Prefetcher) Hint(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.next % len(p.slots)
	p.next++

	if p.slots[idx].file != nil {
		p.slots[idx].file.Close()
		p.slots[idx] = slot{}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("prefetch: open %s: %w", path, err)
	}
	adviseWillNeed(f)
	p.slots[idx] = slot{path: path, file: f}
	return nil
}

// Done drains the slot holding path, if any, signalling that its pages may
// be evicted.
func (p *Prefetcher) Done(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		if p.slots[i].path == path && p.slots[i].file != nil {
			p.slots[i].file.Close()
			p.slots[i] = slot{}
		}
	}
}

// Inflight reports how many slots currently hold an open hint.
func (p *Prefetcher) Inflight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.slots {
		if s.file != nil {
			n++
		}
	}
	return n
}

// Close releases every held descriptor.
func (p *Prefetcher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		if p.slots[i].file != nil {
			p.slots[i].file.Close()
			p.slots[i] = slot{}
		}
	}
}
