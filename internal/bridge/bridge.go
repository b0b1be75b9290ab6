// Package bridge implements the Parser Bridge of spec.md §4.11: the C-ABI
// style dispatch table (Parse/Version/SetMLHandle/SetGPUOCRHandle, built
// by New, with no separate Init/Free) that the Orchestrator drives through
// the Fault Handler.
// Status codes are returned in the flat ParseResult, never as a Go error
// crossing this boundary, per spec.md §7's propagation policy.
package bridge

import (
	"fmt"
	"os"
	"time"

	"github.com/hyperpolymath/docudactyl/internal/gpuocr"
	"github.com/hyperpolymath/docudactyl/internal/model"
)

// Backend parses one content kind into a model.ParseResult. Every method
// returns a result with a populated Status rather than a Go error — the
// same FFI discipline spec.md §4.11 asks of a real external parser.
type Backend interface {
	Parse(path string) model.ParseResult
	ExtractedText(path string) (string, error)
	Kind() model.ContentKind
}

// Bridge dispatches to one Backend per content kind through a
// Parse/Version/SetMLHandle/SetGPUOCRHandle surface; New takes the place of
// Init, and there is no Free.
type Bridge struct {
	backends map[model.ContentKind]Backend
	gpuocr   *gpuocr.Coprocessor
	mlHandle any
	version  string
}

// New constructs a Bridge with the given backends keyed by the content kind
// each handles. Kinds with no registered backend fall through to
// unsupportedBackend.
func New(backends map[model.ContentKind]Backend) *Bridge {
	return &Bridge{backends: backends, version: "1.0.0"}
}

// Version reports the Bridge's own semantic version, per spec.md §4.11/§6's
// "unsupported runtime version" configuration-error check.
func (b *Bridge) Version() string { return b.version }

// SetGPUOCRHandle attaches the GPU OCR Coprocessor a Backend may consult
// for image parses.
func (b *Bridge) SetGPUOCRHandle(h *gpuocr.Coprocessor) { b.gpuocr = h }

// SetMLHandle attaches an opaque ML runtime handle; no bundled backend uses
// it today (see internal/stages' "not_available" ML stubs), but the slot is
// part of the FFI contract shape.
func (b *Bridge) SetMLHandle(h any) { b.mlHandle = h }

// Parse dispatches path to the backend registered for kind, or returns
// StatusUnsupportedFormat if none is registered.
func (b *Bridge) Parse(path string, kind model.ContentKind) model.ParseResult {
	if path == "" {
		return model.ParseResult{Status: model.StatusNullArgument, Kind: kind}
	}

	backend, ok := b.backends[kind]
	if !ok {
		return unsupportedBackend{kind: kind}.Parse(path)
	}

	start := time.Now()
	result := backend.Parse(path)
	result.ParseTimeMs = float64(time.Since(start).Microseconds()) / 1000.0
	return result
}

// ExtractedText returns the backend's extracted text for stage analysis, or
// an empty string if the kind has no registered backend or extraction
// failed — the Stages Engine treats absent text as "nothing to analyze"
// rather than an error.
func (b *Bridge) ExtractedText(path string, kind model.ContentKind) string {
	backend, ok := b.backends[kind]
	if !ok {
		return ""
	}
	text, err := backend.ExtractedText(path)
	if err != nil {
		return ""
	}
	return text
}

// unsupportedBackend is the default dispatch target for any content kind
// with no registered backend.
type unsupportedBackend struct{ kind model.ContentKind }

func (u unsupportedBackend) Parse(path string) model.ParseResult {
	return model.ParseResult{
		Status:       model.StatusUnsupportedFormat,
		Kind:         u.kind,
		ErrorMessage: fmt.Sprintf("no parser backend registered for content kind %q", u.kind),
	}
}

func (u unsupportedBackend) ExtractedText(path string) (string, error) { return "", nil }
func (u unsupportedBackend) Kind() model.ContentKind                   { return u.kind }

// statFileNotFound checks existence up front so every backend returns the
// same terminal status for a missing file instead of duplicating the
// os.Stat call in each Parse implementation.
func statFileNotFound(path string) (os.FileInfo, *model.ParseResult) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &model.ParseResult{Status: model.StatusFileNotFound, ErrorMessage: err.Error()}
	}
	return info, nil
}
