package gpuocr

import (
	"testing"

	"github.com/hyperpolymath/docudactyl/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPUOnlySubmitImmediatelyFallsBack(t *testing.T) {
	c := New(BackendCPUOnly)
	defer c.Close()

	slot := c.Submit("/img/a.png", "/out/a.txt")
	require.GreaterOrEqual(t, slot, 0)

	result, ok := c.Collect(slot)
	require.True(t, ok)
	assert.Equal(t, model.OCRGPUErrorFallback, result.Status)
}

func TestGPUBackendQueuesUntilBatchSize(t *testing.T) {
	c := New(BackendGPUAccelerator)
	defer c.Close()

	for i := 0; i < BatchSize-1; i++ {
		slot := c.Submit("/img/x.png", "/out/x.txt")
		assert.GreaterOrEqual(t, slot, 0)
	}
	assert.Equal(t, BatchSize-1, c.Pending())
	assert.Equal(t, 0, c.ResultsReady())

	lastSlot := c.Submit("/img/last.png", "/out/last.txt")
	assert.GreaterOrEqual(t, lastSlot, 0)

	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, BatchSize, c.ResultsReady())

	result, ok := c.Collect(lastSlot)
	require.True(t, ok)
	assert.Equal(t, model.OCROk, result.Status)
}

func TestFlushDispatchesPartialBatch(t *testing.T) {
	c := New(BackendGPUTesseract)
	defer c.Close()

	slot := c.Submit("/img/one.png", "/out/one.txt")
	assert.Equal(t, 1, c.Pending())

	c.Flush()
	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, 1, c.ResultsReady())

	_, ok := c.Collect(slot)
	assert.True(t, ok)

	// Collecting again after removal reports not-ready.
	_, ok = c.Collect(slot)
	assert.False(t, ok)
}

func TestSubmitFullQueueReturnsNegativeOne(t *testing.T) {
	c := New(BackendGPUAccelerator)
	defer c.Close()
	c.mu.Lock()
	c.queue = make([]pendingImage, BatchSize)
	c.mu.Unlock()

	slot := c.Submit("/img/overflow.png", "/out/overflow.txt")
	assert.Equal(t, -1, slot)
}

func TestBackendString(t *testing.T) {
	assert.Equal(t, "cpu-only", BackendCPUOnly.String())
	assert.Equal(t, "gpu-tesseract", BackendGPUTesseract.String())
	assert.Equal(t, "gpu-accelerator", BackendGPUAccelerator.String())
}
