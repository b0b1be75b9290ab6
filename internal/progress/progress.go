// Package progress implements the Progress Reporter half of spec.md §4.15:
// a background task on worker 0 that periodically prints a one-line status
// summary. It reads only the shared counters; it does not evaluate the
// abort threshold or check the abort flag, which the fault handler owns.
package progress

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#CC6600"))
)

// Counters is the minimal read-only view the Reporter needs; Orchestrator
// satisfies this with its shared atomics (spec.md §5's completedDocs and
// friends).
type Counters struct {
	Completed *atomic.Int64
	Total     int64
	Failures  *atomic.Int64
	StartedAt time.Time
}

// Reporter prints "[elapsed] done/total (pct%) | rate docs/s | ETA |
// failures" every interval, grounded on the teacher's lipgloss-styled TUI
// (cmd/arx/tui/utils/styles.go) adapted from a full bubbletea screen to one
// status line suited to a batch-mode HPC run.
type Reporter struct {
	counters Counters
	interval time.Duration
	out      io.Writer

	stop chan struct{}
	done chan struct{}
}

// New creates a Reporter. Call Start to begin printing on its own
// goroutine.
func New(counters Counters, interval time.Duration, out io.Writer) *Reporter {
	return &Reporter{
		counters: counters,
		interval: interval,
		out:      out,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background ticker. Call Stop to end it cleanly.
func (r *Reporter) Start() {
	go r.run()
}

func (r *Reporter) run() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.printOnce()
		case <-r.stop:
			r.printOnce()
			return
		}
	}
}

// Stop ends the background ticker and blocks until its final line is
// printed.
func (r *Reporter) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reporter) printOnce() {
	done := r.counters.Completed.Load()
	failures := r.counters.Failures.Load()
	elapsed := time.Since(r.counters.StartedAt)

	pct := 0.0
	if r.counters.Total > 0 {
		pct = 100 * float64(done) / float64(r.counters.Total)
	}
	rate := 0.0
	if elapsed.Seconds() > 0 {
		rate = float64(done) / elapsed.Seconds()
	}
	eta := "unknown"
	if rate > 0 && r.counters.Total > done {
		remaining := time.Duration(float64(r.counters.Total-done)/rate) * time.Second
		eta = remaining.Truncate(time.Second).String()
	}

	failStyle := okStyle
	if failures > 0 {
		failStyle = warnStyle
	}

	fmt.Fprintf(r.out, "%s %s | %s | %s | %s\n",
		labelStyle.Render(fmt.Sprintf("[%s]", elapsed.Truncate(time.Second))),
		fmt.Sprintf("%d/%d (%.1f%%)", done, r.counters.Total, pct),
		fmt.Sprintf("%.1f docs/s", rate),
		fmt.Sprintf("ETA %s", eta),
		failStyle.Render(fmt.Sprintf("failures %d", failures)),
	)
}
