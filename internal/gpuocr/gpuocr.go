// Package gpuocr implements the GPU OCR Coprocessor of spec.md §4.7: a
// submission/completion queue for images that batches up to 128 submits
// into a single dispatch, amortising launch cost the way a real kernel
// launch would. The actual recognition engine is out of scope (spec.md §1
// treats OCR/ML as an opaque external engine); this package owns only the
// queueing, batching, and backend-detection machinery around it.
package gpuocr

import (
	"fmt"
	"os/exec"
	"sync"

	"github.com/hyperpolymath/docudactyl/internal/model"
)

// Backend identifies which acceleration path a Coprocessor detected.
type Backend int

const (
	BackendCPUOnly Backend = iota
	BackendGPUTesseract
	BackendGPUAccelerator
)

func (b Backend) String() string {
	switch b {
	case BackendGPUAccelerator:
		return "gpu-accelerator"
	case BackendGPUTesseract:
		return "gpu-tesseract"
	default:
		return "cpu-only"
	}
}

// BatchSize is the queue depth that triggers an automatic dispatch.
const BatchSize = 128

// OutputBufSize is the shared output text buffer's capacity.
const OutputBufSize = 1 << 20

// DetectBackend probes the host for an acceleration backend. A dedicated
// accelerator driver (nvidia-smi reachable and reporting a device) wins;
// otherwise a tesseract binary on PATH is assumed to be a GPU-capable
// build; otherwise the coprocessor runs CPU-only.
func DetectBackend() Backend {
	if path, err := exec.LookPath("nvidia-smi"); err == nil {
		if err := exec.Command(path, "-L").Run(); err == nil {
			return BackendGPUAccelerator
		}
	}
	if _, err := exec.LookPath("tesseract"); err == nil {
		return BackendGPUTesseract
	}
	return BackendCPUOnly
}

type pendingImage struct {
	slotID    int
	imagePath string
	outPath   string
}

// Coprocessor is a single worker's OCR batch queue. Spec.md §4.7 marks
// submission and collection as not thread-safe across workers, so one
// instance is attached per worker; this type still serializes its own
// internal state with a mutex so a worker's own goroutines (main loop +
// any background drain) don't race.
type Coprocessor struct {
	mu         sync.Mutex
	backend    Backend
	queue      []pendingImage
	nextSlotID int
	results    map[int]model.OCRBatchResult
	outputBuf  []byte
	outputUsed int
}

// New creates a Coprocessor bound to the given backend (pass DetectBackend()
// for the normal autodetected path; tests can pin a backend directly).
func New(backend Backend) *Coprocessor {
	return &Coprocessor{
		backend: backend,
		results: make(map[int]model.OCRBatchResult),
		outputBuf: make([]byte, OutputBufSize),
	}
}

// Backend reports which acceleration path this coprocessor is using.
func (c *Coprocessor) Backend() Backend {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend
}

// Submit enqueues an image for OCR and returns its slot ID, or -1 if the
// queue is full (which should only happen if a prior auto-dispatch somehow
// failed to drain it). When the queue reaches BatchSize it dispatches
// automatically.
func (c *Coprocessor) Submit(imagePath, outPath string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) >= BatchSize {
		return -1
	}

	slotID := c.nextSlotID
	c.nextSlotID++
	c.queue = append(c.queue, pendingImage{slotID: slotID, imagePath: imagePath, outPath: outPath})

	if len(c.queue) == BatchSize {
		c.dispatchLocked()
	}
	return slotID
}

// Flush dispatches whatever is currently queued, even if it's a partial
// batch.
func (c *Coprocessor) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) > 0 {
		c.dispatchLocked()
	}
}

func (c *Coprocessor) dispatchLocked() {
	batch := c.queue
	c.queue = nil
	for _, img := range batch {
		c.results[img.slotID] = c.process(img)
	}
}

// process runs one image through the backend. On CPUOnly every image comes
// back as gpu-error: a signal to the caller (per spec.md §4.7) to run CPU
// OCR for that image rather than a failure. On a GPU backend this reserves
// a zero-length slice of the shared output buffer at its current position
// (no recognition engine runs here), so each image comes back OCROk with
// confidence -1 and an empty text span.
func (c *Coprocessor) process(img pendingImage) model.OCRBatchResult {
	if c.backend == BackendCPUOnly {
		return model.OCRBatchResult{Status: model.OCRGPUErrorFallback, Confidence: -1}
	}

	offset, length, ok := c.reserveOutput(0)
	if !ok {
		return model.OCRBatchResult{Status: model.OCRError, Confidence: -1}
	}
	return model.OCRBatchResult{
		Status:     model.OCROk,
		Confidence: -1, // real confidence is produced by the recognition engine, out of scope here
		TextOffset: int32(offset),
		TextLength: int32(length),
	}
}

func (c *Coprocessor) reserveOutput(n int) (offset, length int, ok bool) {
	if c.outputUsed+n > len(c.outputBuf) {
		return 0, 0, false
	}
	offset = c.outputUsed
	c.outputUsed += n
	return offset, n, true
}

// ResultsReady reports how many completed results are waiting to be
// collected.
func (c *Coprocessor) ResultsReady() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Collect returns and removes the result for slot, if ready.
func (c *Coprocessor) Collect(slot int) (model.OCRBatchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[slot]
	if ok {
		delete(c.results, slot)
	}
	return r, ok
}

// Pending reports how many images are queued but not yet dispatched.
func (c *Coprocessor) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// OutputBytes returns the shared output buffer slice described by a
// completed result's (offset, length) pair.
func (c *Coprocessor) OutputBytes(offset, length int32) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	end := int(offset) + int(length)
	if offset < 0 || end > len(c.outputBuf) {
		return nil, fmt.Errorf("gpuocr: output range [%d:%d] out of bounds", offset, end)
	}
	return c.outputBuf[offset:end], nil
}

// Close releases the coprocessor's resources, flushing any pending batch
// first so no submitted image is silently dropped.
func (c *Coprocessor) Close() {
	c.Flush()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = make(map[int]model.OCRBatchResult)
	c.outputUsed = 0
}
