package orchestrator

import (
	"context"
	"os"
	"time"

	"github.com/hyperpolymath/docudactyl/internal/conduit"
	"github.com/hyperpolymath/docudactyl/internal/config"
	"github.com/hyperpolymath/docudactyl/internal/manifest"
	"github.com/hyperpolymath/docudactyl/internal/model"
	"github.com/hyperpolymath/docudactyl/internal/stages"
)

// processDocument runs the nine-step per-document pipeline of spec.md §4.1
// for manifest index idx, using s's goroutine-local prefetcher/GPU OCR and
// idx's statically-owned shard/checkpoint/L1 cache.
func (o *Orchestrator) processDocument(idx int, s *workerSlot, bitmask uint64) {
	entry := o.man.Entries[idx]
	own := o.owners[o.man.Owner(idx)]

	// Step 1: checkpoint.
	if own.checkpoint.IsDone(idx) {
		s.statsRec.RecordSkippedResumed()
		o.recordCompletion()
		return
	}

	// Step 2: abort latch.
	if o.fault.Aborted() {
		s.statsRec.RecordSkippedAborted()
		own.checkpoint.MarkDone(idx)
		o.recordCompletion()
		return
	}

	// Step 3: prefetch hint.
	if err := s.prefetch.Hint(entry.Path); err != nil {
		// Non-fatal: the parser itself will open the file directly.
		_ = err
	}

	// Step 4: Conduit.
	cres, err := conduit.Run(entry.Path)
	if err != nil {
		s.prefetch.Done(entry.Path)
		s.statsRec.RecordFailure(entry.Kind)
		o.recordFailure()
		own.checkpoint.MarkDone(idx)
		o.recordCompletion()
		return
	}
	if cres.Validation != model.ValidationOk {
		s.prefetch.Done(entry.Path)
		s.statsRec.RecordFailure(entry.Kind)
		o.recordFailure()
		own.checkpoint.MarkDone(idx)
		o.recordCompletion()
		return
	}

	kind := cres.Kind
	if entry.HasKind {
		kind = entry.Kind
	}

	mtime, size := resolveMetadata(entry, cres)

	var result model.ParseResult
	var extractedText string
	cacheHit := false

	if own.l1 != nil && cacheReadAllowed(o.cfg.CacheMode) {
		cached, ok := own.l1.Lookup(entry.Path, mtime, size)
		o.gauges.RecordCacheLookup("l1", ok)
		if ok {
			result = cached
			cacheHit = true
		}
	}

	if !cacheHit && o.l2 != nil && cres.SHA256Hex != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		cached, ok := o.l2.Lookup(ctx, cres.SHA256Hex)
		o.gauges.RecordCacheLookup("l2", ok)
		if ok {
			result = cached
			cacheHit = true
		}
		cancel()
	}

	if !cacheHit {
		result, _ = o.fault.Attempt(kind, func() (model.ParseResult, error) {
			return o.bridge.Parse(entry.Path, kind), nil
		})

		if result.Status == model.StatusOk {
			extractedText = o.bridge.ExtractedText(entry.Path, kind)
			outputPath := own.shard.OutputPath(entry.Path, string(o.cfg.OutputFormat))
			if err := writeExtractedContent(outputPath, o.cfg.OutputFormat, result, extractedText); err != nil {
				_ = err // best-effort; the stage record and cache still carry the data
			}

			if bitmask != stages.PresetNone {
				stagesPath := own.shard.StagesPath(outputPath, "bin")
				record, err := stages.Run(stages.Input{
					Bitmask:       bitmask,
					ParseResult:   result,
					Kind:          kind,
					InputPath:     entry.Path,
					OutputPath:    outputPath,
					ExtractedText: extractedText,
				})
				if err == nil {
					os.WriteFile(stagesPath, record, 0o644)
				}
			}
		}
	}

	s.prefetch.Done(entry.Path)

	if result.Status == model.StatusOk {
		if own.l1 != nil && cacheWriteAllowed(o.cfg.CacheMode) && !cacheHit {
			own.l1.Store(entry.Path, mtime, size, result)
		}
		if o.l2 != nil && cres.SHA256Hex != "" && !cacheHit {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			o.l2.Store(ctx, cres.SHA256Hex, result)
			cancel()
		}
		s.statsRec.RecordSuccess(kind, cres.FileSize, result.PageCount, result.WordCount, result.CharCount, time.Duration(result.ParseTimeMs*float64(time.Millisecond)))
	} else {
		s.statsRec.RecordFailure(kind)
		o.recordFailure()
	}

	o.writeNDJSONRow(entry.Path, result)

	own.checkpoint.MarkDone(idx)
	o.recordCompletion()
}

// resolveMetadata prefers manifest-supplied (mtime, size), falls back to the
// Conduit's file size with a zero mtime, and finally stats the file, per
// spec.md §4.1 step 5.
func resolveMetadata(entry manifest.Entry, cres conduit.Result) (mtime, size int64) {
	if entry.MetadataRich() {
		return entry.MTime, entry.Size
	}
	if cres.FileSize > 0 {
		if info, err := os.Stat(entry.Path); err == nil {
			return info.ModTime().Unix(), cres.FileSize
		}
		return 0, cres.FileSize
	}
	if info, err := os.Stat(entry.Path); err == nil {
		return info.ModTime().Unix(), info.Size()
	}
	return 0, 0
}

func cacheReadAllowed(mode config.CacheMode) bool {
	return mode == config.CacheRead || mode == config.CacheReadWrite
}

func cacheWriteAllowed(mode config.CacheMode) bool {
	return mode == config.CacheWrite || mode == config.CacheReadWrite
}

func (o *Orchestrator) recordCompletion() { o.completed.Add(1) }
func (o *Orchestrator) recordFailure()    { o.failuresAtom.Add(1) }

func (o *Orchestrator) writeNDJSONRow(path string, result model.ParseResult) {
	if o.ndjsonFile == nil {
		return
	}
	row := ndjsonRow(path, result)
	o.ndjsonMu.Lock()
	o.ndjsonFile.WriteString(row)
	o.ndjsonMu.Unlock()
}
