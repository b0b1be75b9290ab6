// Package model holds the data types that cross the Parser Bridge's FFI-like
// boundary: Content Kind, Parse Status, Parse Result, Conduit Result and OCR
// Batch Result (spec.md §3). These are deliberately flat and
// binary-marshaled by hand rather than relying on Go struct layout, so the
// wire size is a property of MarshalBinary's explicit byte offsets, not of
// the compiler's padding choices. TestParseResultSize in model_test.go is
// the runtime "size_of_assertion == 952" check spec.md §9 requires.
package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// ContentKind is the seven-variant tag used across the FFI boundary.
type ContentKind int32

const (
	KindUnknown ContentKind = iota
	KindPDF
	KindImage
	KindAudio
	KindVideo
	KindEPUB
	KindGeoSpatial
)

func (k ContentKind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindImage:
		return "image"
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	case KindEPUB:
		return "epub"
	case KindGeoSpatial:
		return "geospatial"
	default:
		return "unknown"
	}
}

// ParseKindFromName maps an NDJSON manifest "kind" field to a ContentKind.
func ParseKindFromName(name string) (ContentKind, bool) {
	switch name {
	case "pdf":
		return KindPDF, true
	case "image":
		return KindImage, true
	case "audio":
		return KindAudio, true
	case "video":
		return KindVideo, true
	case "epub":
		return KindEPUB, true
	case "geospatial":
		return KindGeoSpatial, true
	case "unknown":
		return KindUnknown, true
	default:
		return KindUnknown, false
	}
}

// ParseStatus is the seven-variant outcome tag for a single document parse.
type ParseStatus int32

const (
	StatusOk ParseStatus = iota
	StatusError
	StatusFileNotFound
	StatusParseError
	StatusNullArgument
	StatusUnsupportedFormat
	StatusOutOfMemory
)

func (s ParseStatus) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusError:
		return "error"
	case StatusFileNotFound:
		return "file_not_found"
	case StatusParseError:
		return "parse_error"
	case StatusNullArgument:
		return "null_argument"
	case StatusUnsupportedFormat:
		return "unsupported_format"
	case StatusOutOfMemory:
		return "out_of_memory"
	default:
		return "unknown"
	}
}

// Retryable reports whether the Fault Handler should retry this status.
func (s ParseStatus) Retryable() bool {
	return s == StatusError || s == StatusOutOfMemory
}

// field widths for the flat records, named so the offsets below are legible.
const (
	shaHexLen    = 65  // 64 hex chars + null terminator
	errMsgLen    = 255
	titleLen     = 255
	authorLen    = 255
	mimeLen      = 63
	conduitShaLen = 64 // no terminator in the conduit record

	// ParseResultSize is the binding FFI contract of spec.md §3: 952 bytes,
	// 8-byte aligned. Any change here is a breaking change that must be
	// versioned across the cache serialisation, the wire FFI, and the bridge.
	ParseResultSize = 952
	// ConduitResultSize is the Conduit's flat record size.
	ConduitResultSize = 88
	// OCRBatchResultSize is the per-image OCR result record size.
	OCRBatchResultSize = 48
)

// ParseResult is the fixed-size flat record returned by the Parser Bridge.
type ParseResult struct {
	Status       ParseStatus
	Kind         ContentKind
	PageCount    int32
	WordCount    int64
	CharCount    int64
	DurationSec  float64
	ParseTimeMs  float64
	SHA256Hex    string // up to 64 hex chars
	ErrorMessage string // up to 254 bytes
	Title        string // up to 254 bytes
	Author       string // up to 254 bytes
	MIME         string // up to 62 bytes
}

func putFixedString(buf []byte, s string, width int) {
	n := copy(buf[:width], s)
	for i := n; i < width; i++ {
		buf[i] = 0
	}
}

func getFixedString(buf []byte) string {
	idx := bytes.IndexByte(buf, 0)
	if idx < 0 {
		return string(buf)
	}
	return string(buf[:idx])
}

// MarshalBinary writes the 952-byte flat record.
func (r ParseResult) MarshalBinary() []byte {
	buf := make([]byte, ParseResultSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Status))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.Kind))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(r.PageCount))
	// buf[12:16] reserved padding.
	binary.LittleEndian.PutUint64(buf[16:24], uint64(r.WordCount))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(r.CharCount))
	binary.LittleEndian.PutUint64(buf[32:40], f64bits(r.DurationSec))
	binary.LittleEndian.PutUint64(buf[40:48], f64bits(r.ParseTimeMs))
	putFixedString(buf[48:48+shaHexLen], r.SHA256Hex, shaHexLen)
	off := 48 + shaHexLen
	putFixedString(buf[off:off+errMsgLen], r.ErrorMessage, errMsgLen)
	off += errMsgLen
	putFixedString(buf[off:off+titleLen], r.Title, titleLen)
	off += titleLen
	putFixedString(buf[off:off+authorLen], r.Author, authorLen)
	off += authorLen
	putFixedString(buf[off:off+mimeLen], r.MIME, mimeLen)
	// remaining bytes are trailing zero padding to reach ParseResultSize.
	return buf
}

// UnmarshalParseResult reads a 952-byte flat record.
func UnmarshalParseResult(buf []byte) (ParseResult, error) {
	if len(buf) != ParseResultSize {
		return ParseResult{}, fmt.Errorf("model: parse result must be %d bytes, got %d", ParseResultSize, len(buf))
	}
	var r ParseResult
	r.Status = ParseStatus(binary.LittleEndian.Uint32(buf[0:4]))
	r.Kind = ContentKind(binary.LittleEndian.Uint32(buf[4:8]))
	r.PageCount = int32(binary.LittleEndian.Uint32(buf[8:12]))
	r.WordCount = int64(binary.LittleEndian.Uint64(buf[16:24]))
	r.CharCount = int64(binary.LittleEndian.Uint64(buf[24:32]))
	r.DurationSec = f64frombits(binary.LittleEndian.Uint64(buf[32:40]))
	r.ParseTimeMs = f64frombits(binary.LittleEndian.Uint64(buf[40:48]))
	off := 48
	r.SHA256Hex = getFixedString(buf[off : off+shaHexLen])
	off += shaHexLen
	r.ErrorMessage = getFixedString(buf[off : off+errMsgLen])
	off += errMsgLen
	r.Title = getFixedString(buf[off : off+titleLen])
	off += titleLen
	r.Author = getFixedString(buf[off : off+authorLen])
	off += authorLen
	r.MIME = getFixedString(buf[off : off+mimeLen])
	return r, nil
}

// ConduitValidation is the Conduit's validation byte.
type ConduitValidation byte

const (
	ValidationOk ConduitValidation = iota
	ValidationNotFound
	ValidationEmpty
	ValidationUnreadable
)

// ConduitResult is the Conduit's 88-byte flat record.
type ConduitResult struct {
	Kind       ContentKind
	Validation ConduitValidation
	FileSize   int64
	SHA256Hex  string // 64 hex chars, no terminator
}

func (r ConduitResult) MarshalBinary() []byte {
	buf := make([]byte, ConduitResultSize)
	buf[0] = byte(r.Kind)
	buf[1] = byte(r.Validation)
	// buf[2:8] reserved padding.
	binary.LittleEndian.PutUint64(buf[8:16], uint64(r.FileSize))
	copy(buf[16:16+conduitShaLen], r.SHA256Hex)
	// buf[80:88] reserved trailing padding.
	return buf
}

func UnmarshalConduitResult(buf []byte) (ConduitResult, error) {
	if len(buf) != ConduitResultSize {
		return ConduitResult{}, fmt.Errorf("model: conduit result must be %d bytes, got %d", ConduitResultSize, len(buf))
	}
	var r ConduitResult
	r.Kind = ContentKind(buf[0])
	r.Validation = ConduitValidation(buf[1])
	r.FileSize = int64(binary.LittleEndian.Uint64(buf[8:16]))
	r.SHA256Hex = string(bytes.TrimRight(buf[16:16+conduitShaLen], "\x00"))
	return r, nil
}

// OCRStatus is the per-image OCR batch result status.
type OCRStatus byte

const (
	OCROk OCRStatus = iota
	OCRError
	OCRSkipped
	OCRGPUErrorFallback
)

// OCRBatchResult is the 48-byte flat record per image.
type OCRBatchResult struct {
	Status     OCRStatus
	Confidence int8 // 0-100, or -1 if not applicable
	CharCount  int32
	WordCount  int32
	GPUTimeUs  int64
	TextOffset int32
	TextLength int32
}

func (r OCRBatchResult) MarshalBinary() []byte {
	buf := make([]byte, OCRBatchResultSize)
	buf[0] = byte(r.Status)
	buf[1] = byte(r.Confidence)
	// buf[2:8] reserved padding.
	binary.LittleEndian.PutUint32(buf[8:12], uint32(r.CharCount))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(r.WordCount))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(r.GPUTimeUs))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(r.TextOffset))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(r.TextLength))
	// remaining bytes are trailing zero padding to reach OCRBatchResultSize.
	return buf
}

func UnmarshalOCRBatchResult(buf []byte) (OCRBatchResult, error) {
	if len(buf) != OCRBatchResultSize {
		return OCRBatchResult{}, fmt.Errorf("model: ocr batch result must be %d bytes, got %d", OCRBatchResultSize, len(buf))
	}
	var r OCRBatchResult
	r.Status = OCRStatus(buf[0])
	r.Confidence = int8(buf[1])
	r.CharCount = int32(binary.LittleEndian.Uint32(buf[8:12]))
	r.WordCount = int32(binary.LittleEndian.Uint32(buf[12:16]))
	r.GPUTimeUs = int64(binary.LittleEndian.Uint64(buf[16:24]))
	r.TextOffset = int32(binary.LittleEndian.Uint32(buf[24:28]))
	r.TextLength = int32(binary.LittleEndian.Uint32(buf[28:32]))
	return r, nil
}

func f64bits(f float64) uint64      { return math.Float64bits(f) }
func f64frombits(b uint64) float64 { return math.Float64frombits(b) }
