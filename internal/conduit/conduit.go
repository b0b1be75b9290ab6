// Package conduit implements the preprocessing pass of spec.md §4.3: one
// sequential scan per document that validates the file, classifies its
// content kind by magic bytes, and streams a SHA-256 digest, all before the
// Parser Bridge is ever invoked.
package conduit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/hyperpolymath/docudactyl/internal/model"
)

// sniffLen is how many leading bytes are inspected for the magic-byte
// dispatch table.
const sniffLen = 16

// chunkSize bounds the single streaming pass used to compute SHA-256; the
// Conduit never buffers the whole file.
const chunkSize = 8 * 1024

// Result mirrors the 88-byte Conduit Result flat record (model.ConduitResult
// is the wire form; Result is the in-process convenience form with the
// string already decoded).
type Result struct {
	Kind       model.ContentKind
	Validation model.ConduitValidation
	FileSize   int64
	SHA256Hex  string
}

// ToModel converts to the flat-record shape used across the cache and FFI
// boundary.
func (r Result) ToModel() model.ConduitResult {
	return model.ConduitResult{
		Kind:       r.Kind,
		Validation: r.Validation,
		FileSize:   r.FileSize,
		SHA256Hex:  r.SHA256Hex,
	}
}

// Run opens path, validates it, classifies its content kind, and streams a
// SHA-256 digest in one pass. It never returns an error for a bad document:
// validation failures come back as a Result with a non-ok Validation code,
// matching spec.md §7's rule that per-document problems never escape as Go
// errors from this layer. Only an unexpected I/O failure after the initial
// open/stat (a read error mid-scan) is surfaced as an error.
func Run(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{Validation: model.ValidationNotFound}, nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Result{Validation: model.ValidationUnreadable}, nil
	}
	if info.Size() == 0 {
		return Result{Validation: model.ValidationEmpty, FileSize: 0}, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return Result{Validation: model.ValidationUnreadable}, nil
	}
	kind := classify(head[:n])

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("conduit: rewind %s: %w", path, err)
	}

	h := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return Result{}, fmt.Errorf("conduit: read %s: %w", path, rerr)
		}
	}

	return Result{
		Kind:       kind,
		Validation: model.ValidationOk,
		FileSize:   info.Size(),
		SHA256Hex:  hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// classify dispatches on the leading bytes per spec.md §4.3's magic-byte
// table. An EPUB is a ZIP archive in disguise; spec.md calls this out as a
// known heuristic rather than a precise signature, so a PK\x03\x04 file
// that happens not to be an EPUB will still be classified as one here.
func classify(head []byte) model.ContentKind {
	has := func(prefix []byte) bool { return bytes.HasPrefix(head, prefix) }
	hasAt := func(offset int, prefix []byte) bool {
		return offset+len(prefix) <= len(head) && bytes.Equal(head[offset:offset+len(prefix)], prefix)
	}
	containsAt := func(offset int, s string) bool {
		return offset+len(s) <= len(head) && string(head[offset:offset+len(s)]) == s
	}

	switch {
	case has([]byte("%PDF")):
		return model.KindPDF

	case has([]byte{0x89, 0x50, 0x4E, 0x47}), // PNG
		has([]byte{0xFF, 0xD8, 0xFF}), // JPEG
		has([]byte("II*\x00")), has([]byte("MM\x00*")), // TIFF byte-order marks
		has([]byte{0x42, 0x4D}), // BMP
		(has([]byte("RIFF")) && containsAt(8, "WEBP")):
		return model.KindImage

	case has([]byte("ID3")),
		hasAt(0, []byte{0xFF, 0xE0}), hasAt(0, []byte{0xFF, 0xE2}), hasAt(0, []byte{0xFF, 0xE3}), // MPEG sync variants
		has([]byte("fLaC")),
		(has([]byte("RIFF")) && containsAt(8, "WAVE")),
		has([]byte("OggS")):
		return model.KindAudio

	case containsAt(4, "ftyp"),
		has([]byte{0x1A, 0x45, 0xDF, 0xA3}), // Matroska/WebM EBML header
		(has([]byte("RIFF")) && containsAt(8, "AVI ")):
		return model.KindVideo

	case has([]byte{0x50, 0x4B, 0x03, 0x04}):
		return model.KindEPUB

	case has([]byte{0x00, 0x00, 0x27, 0x0A}):
		return model.KindGeoSpatial

	default:
		return model.KindUnknown
	}
}
