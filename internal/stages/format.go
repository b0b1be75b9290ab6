package stages

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"regexp"

	"github.com/hyperpolymath/docudactyl/internal/wire"
)

// runPerceptualHash computes an 8x8 grayscale average hash of the input
// image (spec.md §4.8 stage 6) and writes it as 16 hex characters.
func runPerceptualHash(b *wire.Builder, in Input) string {
	hashHex := computePerceptualHash(in.InputPath)
	b.SetText(ptrPerceptualHash, hashHex)
	return hashHex
}

// computePerceptualHash returns "" if the file can't be decoded as an
// image; the caller treats that as "hash unavailable" rather than failing
// the whole stages record, since no pack dependency provides decoders for
// every possible image codec.
func computePerceptualHash(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return ""
	}

	const side = 8
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return ""
	}

	var grays [side * side]float64
	var sum float64
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			sx := bounds.Min.X + x*w/side
			sy := bounds.Min.Y + y*h/side
			r, g, bl, _ := img.At(sx, sy).RGBA()
			gray := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 65535
			grays[y*side+x] = gray
			sum += gray
		}
	}
	avg := sum / float64(side*side)

	var bits uint64
	for i, v := range grays {
		if v >= avg {
			bits |= 1 << uint(i)
		}
	}
	return fmt.Sprintf("%016x", bits)
}

var pdfTitleRe = regexp.MustCompile(`/Title\s*\(([^)]*)\)`)

// runTOC walks the PDF's outline by scanning for "/Title (...)" entries,
// the way a lightweight text-mode PDF scanner would rather than a full
// object-graph walk. This is a simplified stand-in for spec.md §4.8's
// "walk the index tree depth-first" description: PDF outlines are a tree
// of indirect objects, and without decompressing object streams a raw
// byte scan can't recover true depth, so every match is reported at
// depth 0. Capped at 100 entries.
func runTOC(b *wire.Builder, in Input) error {
	data, err := os.ReadFile(in.InputPath)
	if err != nil {
		return nil // missing input after parse succeeded would be unusual; skip the stage quietly
	}

	matches := pdfTitleRe.FindAllStringSubmatch(string(data), 100)
	b.SetUint32(offTOCEntryCount, uint32(len(matches)))
	if len(matches) == 0 {
		return nil
	}

	list, err := b.AllocCompositeList(ptrTOCEntries, len(matches), tocEntryDataWords, tocEntryPtrWords)
	if err != nil {
		return err
	}
	for i, m := range matches {
		list.SetUint32(i, 0, 0) // depth unknown from a flat scan
		if err := list.SetText(i, 0, m[1]); err != nil {
			return err
		}
	}
	return nil
}

// subtitleMarkers are byte sequences that commonly identify a subtitle
// track inside common container formats, used for a best-effort scan
// since no container-parsing dependency is available in the pack.
var subtitleMarkers = []struct {
	marker []byte
	codec  string
}{
	{[]byte("S_TEXT/UTF8"), "srt"},
	{[]byte("S_TEXT/ASS"), "ass"},
	{[]byte("tx3g"), "tx3g"},
	{[]byte("subp"), "vobsub"},
}

// runSubtitles scans a video file for known subtitle track markers
// (spec.md §4.8 stage 9).
func runSubtitles(b *wire.Builder, in Input) error {
	data, err := os.ReadFile(in.InputPath)
	if err != nil {
		return nil
	}

	type found struct {
		codec string
	}
	var hits []found
	for _, m := range subtitleMarkers {
		if bytesContains(data, m.marker) {
			hits = append(hits, found{codec: m.codec})
		}
	}

	b.SetUint32(offSubtitleCount, uint32(len(hits)))
	if len(hits) == 0 {
		return nil
	}

	list, err := b.AllocCompositeList(ptrSubtitleStreams, len(hits), subtitleEntryDataWords, subtitleEntryPtrWords)
	if err != nil {
		return err
	}
	for i, h := range hits {
		list.SetUint32(i, 0, uint32(i))
		if err := list.SetText(i, 0, h.codec); err != nil {
			return err
		}
		if err := list.SetText(i, 1, "und"); err != nil {
			return err
		}
	}
	return nil
}

func bytesContains(haystack, needle []byte) bool {
	return len(needle) > 0 && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle []byte) int {
	if len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// runCoordinates extracts a bounding box and pixel size from a geospatial
// dataset (spec.md §4.8 stage 14). Since the spec doesn't pin a concrete
// container format, this reads a minimal fixed header convention: four
// little-endian float64 values (minX, minY, maxX, maxY) immediately
// following the magic bytes Conduit already matched on, then two
// little-endian uint32 pixel dimensions. Any read failure leaves the
// fields at zero rather than failing the stage.
func runCoordinates(b *wire.Builder, in Input) error {
	f, err := os.Open(in.InputPath)
	if err != nil {
		return nil
	}
	defer f.Close()

	r := bufio.NewReader(f)
	header := make([]byte, 4+32+8)
	n, _ := readFull(r, header)
	if n < len(header) {
		return nil
	}

	minX := float64frombitsLE(header[4:12])
	minY := float64frombitsLE(header[12:20])
	maxX := float64frombitsLE(header[20:28])
	maxY := float64frombitsLE(header[28:36])
	pixelW := binary.LittleEndian.Uint32(header[36:40])
	pixelH := binary.LittleEndian.Uint32(header[40:44])

	b.SetFloat64(offCoordMinX, minX)
	b.SetFloat64(offCoordMinY, minY)
	b.SetFloat64(offCoordMaxX, maxX)
	b.SetFloat64(offCoordMaxY, maxY)
	b.SetUint32(offCoordPixelW, pixelW)
	b.SetUint32(offCoordPixelH, pixelH)
	return nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func float64frombitsLE(b []byte) float64 {
	bits := binary.LittleEndian.Uint64(b)
	return math.Float64frombits(bits)
}

// runMultiLangOCR re-runs language detection over OCR'd text and reports
// it as a language list (spec.md §4.8 stage 8). The actual multi-language
// OCR re-recognition pass is the GPU OCR Coprocessor's concern, which is
// out of scope here (spec.md §1 treats the recognition engine itself as
// opaque); this stage reports what it can from the text already produced.
func runMultiLangOCR(b *wire.Builder, in Input) error {
	label, _, confidence := detectLanguage(in.ExtractedText)
	b.SetFloat64(offMultiLangConf, confidence)
	return b.SetTextList(ptrMultiLangLangs, []string{label})
}
