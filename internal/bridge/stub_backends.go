package bridge

import (
	"fmt"

	"github.com/hyperpolymath/docudactyl/internal/model"
)

// StubBackend returns StatusUnsupportedFormat for its content kind on every
// Parse, per §1's scoping of OCR/image/audio/video/geospatial parsing
// engines as external collaborators. It exists so the Bridge has an
// explicit, named registration for every content kind rather than relying
// on the default unsupportedBackend fallback, leaving a single seam where a
// real external bridge can be swapped in later.
type StubBackend struct {
	kind   model.ContentKind
	reason string
}

// NewStubBackend builds a backend that always reports unsupported, with a
// reason describing what a real implementation would need.
func NewStubBackend(kind model.ContentKind, reason string) StubBackend {
	return StubBackend{kind: kind, reason: reason}
}

func (s StubBackend) Kind() model.ContentKind { return s.kind }

func (s StubBackend) Parse(path string) model.ParseResult {
	if _, errResult := statFileNotFound(path); errResult != nil {
		errResult.Kind = s.kind
		return *errResult
	}
	return model.ParseResult{
		Status:       model.StatusUnsupportedFormat,
		Kind:         s.kind,
		ErrorMessage: fmt.Sprintf("%s: %s", s.kind, s.reason),
	}
}

func (s StubBackend) ExtractedText(path string) (string, error) { return "", nil }

// DefaultBackends returns one backend per content kind: the real PDFBackend
// for PDF, and a StubBackend for everything else, matching spec.md §1's
// "external collaborators" scoping for image/audio/video/geospatial
// recognition engines and EPUB's lack of a pack dependency.
func DefaultBackends() map[model.ContentKind]Backend {
	return map[model.ContentKind]Backend{
		model.KindPDF:        PDFBackend{},
		model.KindImage:      NewStubBackend(model.KindImage, "requires an external OCR/vision engine, see internal/gpuocr"),
		model.KindAudio:      NewStubBackend(model.KindAudio, "requires an external audio transcription engine"),
		model.KindVideo:      NewStubBackend(model.KindVideo, "requires an external video container/codec library"),
		model.KindEPUB:       NewStubBackend(model.KindEPUB, "requires an external EPUB/ZIP content parser"),
		model.KindGeoSpatial: NewStubBackend(model.KindGeoSpatial, "requires an external geospatial format library"),
	}
}
