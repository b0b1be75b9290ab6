// Package fault wraps the Parser Bridge with retry and accounting
// (spec.md §4.12): attempt/retry bookkeeping, a per-kind failure tally,
// straggler logging, and the run-wide abort latch.
package fault

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyperpolymath/docudactyl/internal/logger"
	"github.com/hyperpolymath/docudactyl/internal/model"
)

// Handler accounts every parse attempt and decides whether to retry,
// mirroring the teacher's PipelineMetrics/StageMetrics accounting shape in
// orchestrator.go, generalized from per-stage counters to per-document-kind
// counters plus a global abort latch.
type Handler struct {
	maxRetries          int
	timeoutPerDoc       time.Duration
	failureThresholdPct float64

	mu          sync.Mutex
	attempts    int64
	failures    int64
	stragglers  int64
	perKindFail map[model.ContentKind]int64
	totalMs     float64
	maxMs       float64

	abort atomic.Bool
}

// New builds a Handler. timeoutPerDoc triggers straggler accounting, not
// cancellation (spec.md §5: "a slow parse is logged as a straggler but not
// killed mid-flight").
func New(maxRetries int, timeoutPerDoc time.Duration, failureThresholdPct float64) *Handler {
	return &Handler{
		maxRetries:          maxRetries,
		timeoutPerDoc:       timeoutPerDoc,
		failureThresholdPct: failureThresholdPct,
		perKindFail:         make(map[model.ContentKind]int64),
	}
}

// ParseFunc performs one parse attempt.
type ParseFunc func() (model.ParseResult, error)

// Attempt runs fn, retrying while the returned status is retryable and the
// retry budget remains, per spec.md §4.12's retry loop and §7's terminal
// vs. transient taxonomy.
func (h *Handler) Attempt(kind model.ContentKind, fn ParseFunc) (model.ParseResult, error) {
	var result model.ParseResult
	var err error
	start := time.Now()

	for attempt := 0; ; attempt++ {
		attemptStart := time.Now()
		result, err = fn()
		elapsed := time.Since(attemptStart)

		h.recordAttempt(elapsed)

		if err == nil && (result.Status == model.StatusOk || !result.Status.Retryable()) {
			break
		}
		if attempt >= h.maxRetries {
			break
		}
		logger.Warn("fault: retrying document (kind=%s attempt=%d status=%s)", kind, attempt+1, result.Status)
	}

	total := time.Since(start)
	if h.timeoutPerDoc > 0 && total > h.timeoutPerDoc {
		h.mu.Lock()
		h.stragglers++
		h.mu.Unlock()
		logger.Warn("fault: straggler detected (kind=%s elapsed=%s)", kind, total)
	}

	if err != nil || (result.Status != model.StatusOk) {
		h.recordFailure(kind)
	}

	return result, err
}

func (h *Handler) recordAttempt(elapsed time.Duration) {
	ms := float64(elapsed.Microseconds()) / 1000.0
	h.mu.Lock()
	h.attempts++
	h.totalMs += ms
	if ms > h.maxMs {
		h.maxMs = ms
	}
	h.mu.Unlock()
}

func (h *Handler) recordFailure(kind model.ContentKind) {
	h.mu.Lock()
	h.failures++
	h.perKindFail[kind]++
	attempts := h.attempts
	failures := h.failures
	h.mu.Unlock()

	if attempts >= 1000 && h.failureThresholdPct > 0 {
		pct := 100 * float64(failures) / float64(attempts)
		if pct > h.failureThresholdPct {
			if h.abort.CompareAndSwap(false, true) {
				logger.Error("fault: abort threshold exceeded (%.2f%% > %.2f%%), draining run", pct, h.failureThresholdPct)
			}
		}
	}
}

// Aborted reports the one-way abort latch (spec.md §5: "a one-way latch").
func (h *Handler) Aborted() bool { return h.abort.Load() }

// Stats is a point-in-time snapshot of attempt/failure/straggler counters.
type Stats struct {
	Attempts      int64
	Failures      int64
	Stragglers    int64
	AverageMs     float64
	MaxMs         float64
	PerKindFailed map[model.ContentKind]int64
}

// Snapshot returns the current counters, safe to call concurrently with
// Attempt.
func (h *Handler) Snapshot() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	perKind := make(map[model.ContentKind]int64, len(h.perKindFail))
	for k, v := range h.perKindFail {
		perKind[k] = v
	}

	avg := 0.0
	if h.attempts > 0 {
		avg = h.totalMs / float64(h.attempts)
	}

	return Stats{
		Attempts:      h.attempts,
		Failures:      h.failures,
		Stragglers:    h.stragglers,
		AverageMs:     avg,
		MaxMs:         h.maxMs,
		PerKindFailed: perKind,
	}
}
