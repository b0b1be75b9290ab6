// Package stats implements the Result Aggregator of spec.md §4.15:
// per-worker atomic counters, a global reduction across workers, and
// Scheme/JSON run-report writers plus a parallel set of Prometheus gauges.
package stats

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hyperpolymath/docudactyl/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Worker holds one worker's atomically-updated counters, mirroring the
// teacher's PipelineMetrics (orchestrator.go) generalized from one shared
// struct under a mutex to lock-free per-worker atomics, since spec.md §5
// names these as the process-wide atomics each worker owns independently.
type Worker struct {
	ID int

	Docs           atomic.Int64
	Successes      atomic.Int64
	Failures       atomic.Int64
	SkippedResumed atomic.Int64
	SkippedAborted atomic.Int64
	Bytes          atomic.Int64
	Pages          atomic.Int64
	Words          atomic.Int64
	Chars          atomic.Int64
	CumulativeMs   atomic.Int64

	kindCounts [7]atomic.Int64 // indexed by model.ContentKind
}

// NewWorker creates a zeroed counter set for one worker.
func NewWorker(id int) *Worker { return &Worker{ID: id} }

// RecordSuccess tallies one successfully processed document.
func (w *Worker) RecordSuccess(kind model.ContentKind, bytes int64, pages int32, words, chars int64, elapsed time.Duration) {
	w.Docs.Add(1)
	w.Successes.Add(1)
	w.Bytes.Add(bytes)
	w.Pages.Add(int64(pages))
	w.Words.Add(words)
	w.Chars.Add(chars)
	w.CumulativeMs.Add(elapsed.Milliseconds())
	if int(kind) >= 0 && int(kind) < len(w.kindCounts) {
		w.kindCounts[kind].Add(1)
	}
}

// RecordFailure tallies one failed document.
func (w *Worker) RecordFailure(kind model.ContentKind) {
	w.Docs.Add(1)
	w.Failures.Add(1)
	if int(kind) >= 0 && int(kind) < len(w.kindCounts) {
		w.kindCounts[kind].Add(1)
	}
}

// RecordSkippedResumed tallies a document already marked done in a prior
// run's checkpoint (spec.md §4.1 step 1, §8 invariant P1/P2).
func (w *Worker) RecordSkippedResumed() {
	w.Docs.Add(1)
	w.SkippedResumed.Add(1)
}

// RecordSkippedAborted tallies a document never attempted because the
// fault handler's abort latch had already tripped (spec.md §4.1 step 2,
// §8 invariant P1/P2).
func (w *Worker) RecordSkippedAborted() {
	w.Docs.Add(1)
	w.SkippedAborted.Add(1)
}

// Snapshot is a point-in-time read of one worker's counters.
type Snapshot struct {
	WorkerID       int
	Docs           int64
	Successes      int64
	Failures       int64
	SkippedResumed int64
	SkippedAborted int64
	Bytes          int64
	Pages          int64
	Words          int64
	Chars          int64
	DurationSec    float64
	CumulativeMs   int64
	KindCounts     map[string]int64
}

// Snapshot reads the current counters without resetting them.
func (w *Worker) Snapshot(runDuration time.Duration) Snapshot {
	kinds := make(map[string]int64, len(w.kindCounts))
	for k := range w.kindCounts {
		kinds[model.ContentKind(k).String()] = w.kindCounts[k].Load()
	}
	return Snapshot{
		WorkerID:       w.ID,
		Docs:           w.Docs.Load(),
		Successes:      w.Successes.Load(),
		Failures:       w.Failures.Load(),
		SkippedResumed: w.SkippedResumed.Load(),
		SkippedAborted: w.SkippedAborted.Load(),
		Bytes:          w.Bytes.Load(),
		Pages:          w.Pages.Load(),
		Words:          w.Words.Load(),
		Chars:          w.Chars.Load(),
		DurationSec:    runDuration.Seconds(),
		CumulativeMs:   w.CumulativeMs.Load(),
		KindCounts:     kinds,
	}
}

// Report is the global reduction across every worker's snapshot, the
// document spec.md §4.15 calls the "run report".
type Report struct {
	TotalDocs            int64
	TotalSuccesses       int64
	TotalFailures        int64
	TotalSkippedResumed  int64
	TotalSkippedAborted  int64
	TotalBytes           int64
	TotalPages           int64
	TotalWords           int64
	TotalChars           int64
	RunDurationSec       float64
	ThroughputDocsPerSec float64
	FailurePct           float64
	PerWorker            []Snapshot
	KindCounts           map[string]int64
}

// Reduce combines every worker's snapshot into one global Report.
func Reduce(snapshots []Snapshot, runDuration time.Duration) Report {
	r := Report{PerWorker: snapshots, RunDurationSec: runDuration.Seconds(), KindCounts: make(map[string]int64)}
	for _, s := range snapshots {
		r.TotalDocs += s.Docs
		r.TotalSuccesses += s.Successes
		r.TotalFailures += s.Failures
		r.TotalSkippedResumed += s.SkippedResumed
		r.TotalSkippedAborted += s.SkippedAborted
		r.TotalBytes += s.Bytes
		r.TotalPages += s.Pages
		r.TotalWords += s.Words
		r.TotalChars += s.Chars
		for kind, n := range s.KindCounts {
			r.KindCounts[kind] += n
		}
	}
	if r.RunDurationSec > 0 {
		r.ThroughputDocsPerSec = float64(r.TotalDocs) / r.RunDurationSec
	}
	if r.TotalDocs > 0 {
		r.FailurePct = 100 * float64(r.TotalFailures) / float64(r.TotalDocs)
	}
	return r
}

// Gauges mirrors a Report's totals as Prometheus collectors, grounded on
// the teacher's gateway/metrics.go promauto.NewCounterVec/NewGaugeVec
// registration style.
type Gauges struct {
	docsTotal    *prometheus.CounterVec
	bytesTotal   prometheus.Counter
	failurePct   prometheus.Gauge
	throughput   prometheus.Gauge
	cacheLookups *prometheus.CounterVec
}

// NewGauges registers the run's Prometheus collectors against reg.
func NewGauges(reg prometheus.Registerer) *Gauges {
	factory := promauto.With(reg)
	return &Gauges{
		docsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docudactyl_documents_total",
				Help: "Total documents processed, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		bytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "docudactyl_bytes_processed_total",
			Help: "Total bytes of input processed.",
		}),
		failurePct: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docudactyl_failure_percent",
			Help: "Current run failure percentage.",
		}),
		throughput: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docudactyl_throughput_docs_per_sec",
			Help: "Current run throughput in documents per second.",
		}),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docudactyl_cache_lookups_total",
				Help: "Cache lookups, labeled by tier (l1/l2) and outcome (hit/miss).",
			},
			[]string{"tier", "outcome"},
		),
	}
}

// RecordCacheLookup tallies one L1 or L2 cache lookup outcome.
func (g *Gauges) RecordCacheLookup(tier string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	g.cacheLookups.WithLabelValues(tier, outcome).Inc()
}

// Update refreshes the gauges from a freshly reduced Report.
func (g *Gauges) Update(r Report) {
	g.docsTotal.WithLabelValues("success").Add(float64(r.TotalSuccesses))
	g.docsTotal.WithLabelValues("failure").Add(float64(r.TotalFailures))
	g.docsTotal.WithLabelValues("skipped_resumed").Add(float64(r.TotalSkippedResumed))
	g.docsTotal.WithLabelValues("skipped_aborted").Add(float64(r.TotalSkippedAborted))
	g.bytesTotal.Add(float64(r.TotalBytes))
	g.failurePct.Set(r.FailurePct)
	g.throughput.Set(r.ThroughputDocsPerSec)
}

// WriteScheme renders a Report as a Scheme S-expression, matching spec.md
// §4.15/§6's "{outputDir}/run-report.scm" artifact.
func WriteScheme(r Report) string {
	return fmt.Sprintf(`(run-report
  (total-docs %d)
  (total-successes %d)
  (total-failures %d)
  (total-skipped-resumed %d)
  (total-skipped-aborted %d)
  (total-bytes %d)
  (total-pages %d)
  (total-words %d)
  (total-chars %d)
  (run-duration-sec %.3f)
  (throughput-docs-per-sec %.3f)
  (failure-pct %.3f))
`, r.TotalDocs, r.TotalSuccesses, r.TotalFailures, r.TotalSkippedResumed, r.TotalSkippedAborted,
		r.TotalBytes, r.TotalPages, r.TotalWords, r.TotalChars,
		r.RunDurationSec, r.ThroughputDocsPerSec, r.FailurePct)
}
