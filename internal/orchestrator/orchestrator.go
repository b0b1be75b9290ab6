// Package orchestrator drives one run to completion (spec.md §4.1): it
// wires every subsystem together, distributes the manifest across workers,
// and runs the per-document pipeline under dynamic work-stealing.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hyperpolymath/docudactyl/internal/bridge"
	"github.com/hyperpolymath/docudactyl/internal/cache/l1"
	"github.com/hyperpolymath/docudactyl/internal/cache/l2"
	"github.com/hyperpolymath/docudactyl/internal/checkpoint"
	"github.com/hyperpolymath/docudactyl/internal/config"
	"github.com/hyperpolymath/docudactyl/internal/fault"
	"github.com/hyperpolymath/docudactyl/internal/gpuocr"
	"github.com/hyperpolymath/docudactyl/internal/logger"
	"github.com/hyperpolymath/docudactyl/internal/manifest"
	"github.com/hyperpolymath/docudactyl/internal/prefetch"
	"github.com/hyperpolymath/docudactyl/internal/progress"
	"github.com/hyperpolymath/docudactyl/internal/shard"
	"github.com/hyperpolymath/docudactyl/internal/stages"
	"github.com/hyperpolymath/docudactyl/internal/stats"
	"github.com/hyperpolymath/docudactyl/internal/statusserver"
	"github.com/prometheus/client_golang/prometheus"
)

// workerSlot bundles the concurrency-bound resources spec.md §5 names as
// "per-worker, not thread-safe across workers": a prefetcher and a GPU OCR
// coprocessor, owned by whichever goroutine currently holds this slot.
type workerSlot struct {
	id        int
	prefetch  *prefetch.Prefetcher
	gpu       *gpuocr.Coprocessor
	statsRec  *stats.Worker
}

// owned bundles the resources spec.md §4.1 ties to an index's static owner
// (manifest.Owner(i)): its shard directory, checkpoint set, and L1 cache —
// kept stable across a resume even though the goroutine that processes the
// index is chosen dynamically by work-stealing.
type owned struct {
	shard      *shard.Dir
	checkpoint *checkpoint.Set
	l1         *l1.Store
}

// Orchestrator holds every subsystem wired up for one run.
type Orchestrator struct {
	cfg      config.Config
	runID    string
	man      *manifest.Manifest
	bridge   *bridge.Bridge
	l2       *l2.Store
	fault    *fault.Handler
	owners   []owned
	slots    []*workerSlot
	registry *prometheus.Registry
	gauges   *stats.Gauges

	cursor       atomic.Int64
	completed    atomic.Int64
	failuresAtom atomic.Int64

	ndjsonMu   sync.Mutex
	ndjsonFile *os.File
}

// New validates cfg, loads the manifest, and opens every optional subsystem,
// degrading gracefully per spec.md §7 when an optional one fails to init.
func New(cfg config.Config) (*Orchestrator, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, config.ValidationError(errs)
	}

	man, err := manifest.Load(cfg.ManifestPath, manifest.Options{
		WorkerCount:  cfg.WorkerCount,
		Distribution: distributionMode(cfg.ManifestMode),
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: loading manifest: %w", err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("orchestrator: creating output dir: %w", err)
	}

	o := &Orchestrator{
		cfg:      cfg,
		runID:    uuid.New().String(),
		man:      man,
		bridge:   bridge.New(bridge.DefaultBackends()),
		fault:    fault.New(cfg.MaxRetriesPerDoc, time.Duration(cfg.TimeoutPerDocMs)*time.Millisecond, cfg.FailureThresholdPct),
		registry: prometheus.NewRegistry(),
	}
	o.gauges = stats.NewGauges(o.registry)

	if cfg.L2Addr != "" {
		o.l2 = l2.Open(l2.Options{Addr: cfg.L2Addr, TTL: time.Duration(cfg.L2TTLSec) * time.Second})
	}

	o.owners = make([]owned, cfg.WorkerCount)
	for id := 0; id < cfg.WorkerCount; id++ {
		dir, err := shard.Open(cfg.OutputDir, id)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: opening shard %d: %w", id, err)
		}
		cp := checkpoint.New(cfg.OutputDir, id, cfg.CheckpointIntervalDocs)

		var store *l1.Store
		if cfg.CacheDir != "" && cfg.CacheMode != config.CacheOff {
			path := filepath.Join(cfg.CacheDir, fmt.Sprintf("l1-worker-%d.bolt", id))
			if s, err := l1.Open(path, cfg.CacheSizeMB<<20); err != nil {
				logger.Warn("orchestrator: l1 cache unavailable for worker %d: %v", id, err)
			} else {
				store = s
			}
		}

		o.owners[id] = owned{shard: dir, checkpoint: cp, l1: store}
	}

	if cfg.Resume {
		done, err := checkpoint.LoadResumeSet(cfg.OutputDir, cfg.WorkerCount)
		if err != nil {
			logger.Warn("orchestrator: loading checkpoint resume set: %v", err)
		} else {
			for idx := range done {
				o.owners[o.man.Owner(idx)].checkpoint.MarkDone(idx)
			}
		}
	}

	o.slots = make([]*workerSlot, cfg.WorkerCount)
	gpuBackend := gpuocr.DetectBackend()
	for id := 0; id < cfg.WorkerCount; id++ {
		o.slots[id] = &workerSlot{
			id:       id,
			prefetch: prefetch.New(cfg.PrefetchWindow),
			gpu:      gpuocr.New(gpuBackend),
			statsRec: stats.NewWorker(id),
		}
	}

	if cfg.StreamNDJSON {
		path := filepath.Join(cfg.OutputDir, "results.ndjson")
		f, err := os.Create(path)
		if err != nil {
			logger.Warn("orchestrator: streaming NDJSON disabled, could not create %s: %v", path, err)
		} else {
			o.ndjsonFile = f
		}
	}

	return o, nil
}

func distributionMode(m config.ManifestMode) manifest.DistributionMode {
	if m == config.ManifestBroadcast {
		return manifest.Broadcast
	}
	return manifest.Shared
}

// Run executes the full run: background reporter and status server, the
// work-stealing loop, then the closing sequence (sync, report, optional
// merge, checkpoint clear) from spec.md §4.1 step 8.
func (o *Orchestrator) Run(ctx context.Context) (stats.Report, error) {
	startedAt := time.Now()
	total := int64(len(o.man.Entries))

	reporter := progress.New(progress.Counters{
		Completed: &o.completed,
		Total:     total,
		Failures:  &o.failuresAtom,
		StartedAt: startedAt,
	}, time.Duration(o.cfg.ProgressIntervalSec)*time.Second, os.Stdout)
	reporter.Start()
	defer reporter.Stop()

	var debugServer *http.Server
	if o.cfg.DebugAddr != "" {
		handler := statusserver.New(o.registry, func() any {
			return map[string]any{
				"runId":     o.runID,
				"completed": o.completed.Load(),
				"total":     total,
				"failures":  o.failuresAtom.Load(),
			}
		})
		debugServer = &http.Server{Addr: o.cfg.DebugAddr, Handler: handler}
		go func() {
			if err := debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("orchestrator: debug server stopped: %v", err)
			}
		}()
		defer debugServer.Close()
	}

	stagesBitmask, err := stages.ParseBitmask(o.cfg.StagesConfig)
	if err != nil {
		return stats.Report{}, fmt.Errorf("orchestrator: stagesConfig: %w", err)
	}

	var wg sync.WaitGroup
	for _, slot := range o.slots {
		wg.Add(1)
		go func(s *workerSlot) {
			defer wg.Done()
			o.workerLoop(ctx, s, stagesBitmask)
		}(slot)
	}
	wg.Wait()

	for _, s := range o.slots {
		s.prefetch.Close()
		s.gpu.Close()
	}
	for _, own := range o.owners {
		if own.l1 != nil {
			own.l1.Sync()
			own.l1.Close()
		}
	}
	if o.l2 != nil {
		o.l2.Close()
	}
	if o.ndjsonFile != nil {
		o.ndjsonFile.Close()
	}

	snapshots := make([]stats.Snapshot, len(o.slots))
	runDuration := time.Since(startedAt)
	for i, s := range o.slots {
		snapshots[i] = s.statsRec.Snapshot(runDuration)
	}
	report := stats.Reduce(snapshots, runDuration)
	o.gauges.Update(report)

	if err := o.writeReports(report); err != nil {
		logger.Warn("orchestrator: writing run reports: %v", err)
	}

	if o.cfg.MergeShards {
		if err := shard.Merge(o.cfg.OutputDir, o.cfg.WorkerCount); err != nil {
			logger.Warn("orchestrator: merging shards: %v", err)
		}
	}

	if report.TotalFailures == 0 {
		for _, own := range o.owners {
			own.checkpoint.Remove()
		}
	} else {
		// Kept checkpoints must reflect every completion, not just the ones
		// that happened to land on a flushEvery boundary, or a --resume would
		// needlessly reprocess documents this run already finished.
		for _, own := range o.owners {
			if err := own.checkpoint.Flush(); err != nil {
				logger.Warn("orchestrator: flushing checkpoint: %v", err)
			}
		}
	}

	return report, nil
}

// workerLoop repeatedly claims a chunk of manifest indices from the shared
// cursor (spec.md §4.1/§5's "dynamic work-stealing with a tunable chunk
// size") and drives the per-document pipeline for each claimed index.
func (o *Orchestrator) workerLoop(ctx context.Context, s *workerSlot, bitmask uint64) {
	total := int64(len(o.man.Entries))
	for {
		start := o.cursor.Add(int64(o.cfg.ChunkSize)) - int64(o.cfg.ChunkSize)
		if start >= total {
			return
		}
		end := start + int64(o.cfg.ChunkSize)
		if end > total {
			end = total
		}
		for idx := int(start); idx < int(end); idx++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			o.processDocument(idx, s, bitmask)
		}
	}
}
