package stats

import (
	"testing"
	"time"

	"github.com/hyperpolymath/docudactyl/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerRecordsSuccessAndFailure(t *testing.T) {
	w := NewWorker(0)
	w.RecordSuccess(model.KindPDF, 1024, 10, 500, 2500, 50*time.Millisecond)
	w.RecordFailure(model.KindImage)

	snap := w.Snapshot(time.Second)
	assert.Equal(t, int64(2), snap.Docs)
	assert.Equal(t, int64(1), snap.Successes)
	assert.Equal(t, int64(1), snap.Failures)
	assert.Equal(t, int64(1024), snap.Bytes)
	assert.Equal(t, int64(1), snap.KindCounts["pdf"])
	assert.Equal(t, int64(1), snap.KindCounts["image"])
}

func TestReduceAcrossWorkers(t *testing.T) {
	w0 := NewWorker(0)
	w0.RecordSuccess(model.KindPDF, 100, 1, 10, 50, time.Millisecond)
	w1 := NewWorker(1)
	w1.RecordFailure(model.KindPDF)

	r := Reduce([]Snapshot{w0.Snapshot(time.Second), w1.Snapshot(time.Second)}, 2*time.Second)
	assert.Equal(t, int64(2), r.TotalDocs)
	assert.Equal(t, int64(1), r.TotalSuccesses)
	assert.Equal(t, int64(1), r.TotalFailures)
	assert.InDelta(t, 50.0, r.FailurePct, 0.01)
	assert.InDelta(t, 1.0, r.ThroughputDocsPerSec, 0.01)
}

func TestWorkerRecordsSkippedResumedAndAborted(t *testing.T) {
	w := NewWorker(0)
	w.RecordSkippedResumed()
	w.RecordSkippedAborted()

	snap := w.Snapshot(time.Second)
	assert.Equal(t, int64(2), snap.Docs)
	assert.Equal(t, int64(1), snap.SkippedResumed)
	assert.Equal(t, int64(1), snap.SkippedAborted)
	assert.Zero(t, snap.Successes)
	assert.Zero(t, snap.Failures)
}

func TestReduceAccountsForEveryOutcome(t *testing.T) {
	w0 := NewWorker(0)
	w0.RecordSuccess(model.KindPDF, 100, 1, 10, 50, time.Millisecond)
	w0.RecordSkippedResumed()
	w1 := NewWorker(1)
	w1.RecordFailure(model.KindPDF)
	w1.RecordSkippedAborted()

	r := Reduce([]Snapshot{w0.Snapshot(time.Second), w1.Snapshot(time.Second)}, 2*time.Second)
	assert.Equal(t, int64(4), r.TotalDocs)
	assert.Equal(t, r.TotalDocs, r.TotalSuccesses+r.TotalFailures+r.TotalSkippedResumed+r.TotalSkippedAborted)
	assert.Equal(t, int64(1), r.TotalSkippedResumed)
	assert.Equal(t, int64(1), r.TotalSkippedAborted)
}

func TestWriteSchemeIncludesTotals(t *testing.T) {
	r := Report{TotalDocs: 5, TotalSuccesses: 4, TotalFailures: 1}
	out := WriteScheme(r)
	assert.Contains(t, out, "(total-docs 5)")
	assert.Contains(t, out, "(total-failures 1)")
}

func TestWriteSchemeIncludesSkippedCounts(t *testing.T) {
	r := Report{TotalDocs: 3, TotalSkippedResumed: 2, TotalSkippedAborted: 1}
	out := WriteScheme(r)
	assert.Contains(t, out, "(total-skipped-resumed 2)")
	assert.Contains(t, out, "(total-skipped-aborted 1)")
}

func TestWriteJSONRoundTrips(t *testing.T) {
	r := Report{TotalDocs: 3, TotalSuccesses: 3}
	data, err := WriteJSON(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"TotalDocs": 3`)
}

func TestGaugesUpdateWithoutPanicking(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := NewGauges(reg)
	g.Update(Report{TotalSuccesses: 2, TotalFailures: 1, FailurePct: 33.3, ThroughputDocsPerSec: 5})
}

func TestGaugesRecordCacheLookupWithoutPanicking(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := NewGauges(reg)
	g.RecordCacheLookup("l1", true)
	g.RecordCacheLookup("l2", false)
}
