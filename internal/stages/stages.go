// Package stages implements the Stages Engine of spec.md §4.8: twenty
// optional analysis stages selected by a 64-bit bitmask, emitting a single
// binary record via internal/wire to "{output}.stages.{ext}".
package stages

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperpolymath/docudactyl/internal/model"
	"github.com/hyperpolymath/docudactyl/internal/wire"
)

// Bit is one stage's position in the 64-bit selection mask.
type Bit uint64

const (
	Language Bit = 1 << iota
	Readability
	Keywords
	Citations
	OCRConfidence
	PerceptualHash
	TOC
	MultiLangOCR
	Subtitles
	PREMIS
	MerkleProof
	ExactDedup
	NearDedup
	CoordinateNormalization
	MLNamedEntity
	MLAudioTranscription
	MLImageClassification
	MLLayoutAnalysis
	MLHandwritingOCR
	MLFormatConversion
)

var nameToBit = map[string]Bit{
	"language":        Language,
	"readability":     Readability,
	"keywords":        Keywords,
	"citations":       Citations,
	"ocr_confidence":  OCRConfidence,
	"perceptual_hash": PerceptualHash,
	"toc":             TOC,
	"multilang_ocr":   MultiLangOCR,
	"subtitles":       Subtitles,
	"premis":          PREMIS,
	"merkle":          MerkleProof,
	"exact_dedup":     ExactDedup,
	"near_dedup":      NearDedup,
	"coordinates":     CoordinateNormalization,
	"ml_ner":          MLNamedEntity,
	"ml_audio":        MLAudioTranscription,
	"ml_image_class":  MLImageClassification,
	"ml_layout":       MLLayoutAnalysis,
	"ml_handwriting":  MLHandwritingOCR,
	"ml_format_conv":  MLFormatConversion,
}

// Preset bitmasks from spec.md §4.8.
const (
	PresetNone     uint64 = 0
	PresetFast            = uint64(Language | Readability | Keywords | ExactDedup | PREMIS | MerkleProof | Citations)
	PresetAnalysis        = PresetFast | uint64(OCRConfidence|PerceptualHash|TOC|NearDedup|CoordinateNormalization|Subtitles)
	PresetAll             = uint64(1<<20 - 1)
)

// ParseBitmask accepts a preset name ("none"/"fast"/"analysis"/"all"), a
// comma-separated list of stage names, or a "0xHEX" literal, matching
// spec.md §6's stagesConfig option.
func ParseBitmask(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "none":
		return PresetNone, nil
	case "fast":
		return PresetFast, nil
	case "analysis":
		return PresetAnalysis, nil
	case "all":
		return PresetAll, nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("stages: invalid hex bitmask %q: %w", s, err)
		}
		return v, nil
	}

	var mask uint64
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		bit, ok := nameToBit[name]
		if !ok {
			return 0, fmt.Errorf("stages: unknown stage name %q", name)
		}
		mask |= uint64(bit)
	}
	return mask, nil
}

// The wire record's shape per spec.md §4.8: 23 data words, 30 pointer
// fields. Slot 0 of the data section carries the bitmask itself so
// readers know which fields were populated.
const (
	dataWords = 23
	ptrWords  = 30

	offBitmask          = 0
	offLanguageConf     = 8
	offReadabilityGrade = 16
	offReadabilityEase  = 24
	offOCRConfidence    = 32
	offMLNERConfidence  = 40
	offKeywordCount     = 48
	offCitationCount    = 56
	offTOCEntryCount    = 64
	offSubtitleCount    = 72
	offPREMISFileSize   = 80
	offCoordMinX        = 88
	offCoordMinY        = 96
	offCoordMaxX        = 104
	offCoordMaxY        = 112
	offCoordPixelW      = 120
	offCoordPixelH      = 124
	offMLAvailableMask  = 136
	offMultiLangConf    = 144

	ptrLanguageLabel     = 0
	ptrLanguageISO       = 1
	ptrKeywords          = 3
	ptrCitationDOIs      = 4
	ptrCitationISBNs     = 5
	ptrCitationURLs      = 6
	ptrCitationYears     = 7
	ptrCitationNumeric   = 8
	ptrPerceptualHash    = 9
	ptrTOCEntries        = 10
	ptrMultiLangLangs    = 11
	ptrSubtitleStreams   = 12
	ptrPREMISMIME        = 13
	ptrPREMISFixityAlg   = 14
	ptrPREMISFixityValue = 15
	ptrPREMISFormatName  = 16
	ptrMerkleRoot        = 17
	ptrExactDedup        = 18
	ptrNearDedup         = 19
	ptrMLNERStub         = 20
	ptrMLAudioStub       = 21
	ptrMLImageClassStub  = 22
	ptrMLLayoutStub      = 23
	ptrMLHandwritingStub = 24
	ptrMLFormatConvStub  = 25
)

// Composite-list element shapes.
const (
	tocEntryDataWords      = 1 // depth, packed into the low 32 bits
	tocEntryPtrWords       = 1 // title text
	subtitleEntryDataWords = 1 // stream index, packed into the low 32 bits
	subtitleEntryPtrWords  = 2 // codec text, language text
)

// Input bundles everything a stage might need. Not every field is read by
// every stage; which fields matter depends on which bits are set.
type Input struct {
	Bitmask       uint64
	ParseResult   model.ParseResult
	OCRResult     *model.OCRBatchResult // non-nil when the document went through OCR
	Kind          model.ContentKind
	InputPath     string
	OutputPath    string
	ExtractedText string
}

func bitSet(mask uint64, bit Bit) bool { return mask&uint64(bit) != 0 }

// Run executes every stage selected by in.Bitmask, grouped the way
// spec.md §4.8 groups them by shared I/O cost, and returns the finished
// wire message bytes ready to be written to "{output}.stages.{ext}".
func Run(in Input) ([]byte, error) {
	buf := make([]byte, (dataWords+ptrWords)*8+64*1024)
	b := wire.Init(buf, dataWords, ptrWords)
	b.SetUint64(offBitmask, in.Bitmask)

	has := func(bit Bit) bool { return bitSet(in.Bitmask, bit) }

	// Group (b): text-dependent stages, single read of extracted text.
	if has(Language) || has(Readability) || has(Keywords) || has(Citations) {
		runTextStages(b, in, has)
	}

	// Group (a): result-only stages.
	if has(OCRConfidence) && in.OCRResult != nil {
		b.SetFloat64(offOCRConfidence, float64(in.OCRResult.Confidence))
	}
	if has(PREMIS) {
		runPREMIS(b, in)
	}
	if has(ExactDedup) {
		if err := b.SetText(ptrExactDedup, in.ParseResult.SHA256Hex); err != nil {
			return nil, fmt.Errorf("stages: exact dedup: %w", err)
		}
	}

	// Group (c): integrity stages over the output file.
	if has(MerkleProof) {
		if err := runMerkle(b, in); err != nil {
			return nil, err
		}
	}

	// Group (d): format-specific stages gated by content kind.
	var perceptualHashHex string
	if has(PerceptualHash) && in.Kind == model.KindImage {
		perceptualHashHex = runPerceptualHash(b, in)
	}
	if has(NearDedup) {
		if in.Kind == model.KindImage {
			if perceptualHashHex == "" {
				perceptualHashHex = computePerceptualHash(in.InputPath)
			}
			if err := b.SetText(ptrNearDedup, perceptualHashHex); err != nil {
				return nil, fmt.Errorf("stages: near dedup: %w", err)
			}
		} else if err := b.SetText(ptrNearDedup, "not_applicable"); err != nil {
			return nil, fmt.Errorf("stages: near dedup: %w", err)
		}
	}
	if has(TOC) && in.Kind == model.KindPDF {
		if err := runTOC(b, in); err != nil {
			return nil, fmt.Errorf("stages: toc: %w", err)
		}
	}
	if has(Subtitles) && in.Kind == model.KindVideo {
		if err := runSubtitles(b, in); err != nil {
			return nil, fmt.Errorf("stages: subtitles: %w", err)
		}
	}
	if has(CoordinateNormalization) && in.Kind == model.KindGeoSpatial {
		if err := runCoordinates(b, in); err != nil {
			return nil, fmt.Errorf("stages: coordinates: %w", err)
		}
	}
	if has(MultiLangOCR) && in.Kind == model.KindImage {
		if err := runMultiLangOCR(b, in); err != nil {
			return nil, fmt.Errorf("stages: multilang ocr: %w", err)
		}
	}

	// Group (e): ML stubs.
	if err := runMLStubs(b, in, has); err != nil {
		return nil, fmt.Errorf("stages: ml stubs: %w", err)
	}

	var sink bytes.Buffer
	if err := b.WriteMessage(&sink); err != nil {
		return nil, fmt.Errorf("stages: write message: %w", err)
	}
	return sink.Bytes(), nil
}
