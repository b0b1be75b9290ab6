package stages

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperpolymath/docudactyl/internal/model"
	"github.com/hyperpolymath/docudactyl/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBitmaskPresets(t *testing.T) {
	none, err := ParseBitmask("none")
	require.NoError(t, err)
	assert.Equal(t, PresetNone, none)

	fast, err := ParseBitmask("fast")
	require.NoError(t, err)
	assert.Equal(t, PresetFast, fast)
	assert.True(t, bitSet(fast, Language))
	assert.False(t, bitSet(fast, PerceptualHash))

	analysis, err := ParseBitmask("analysis")
	require.NoError(t, err)
	assert.True(t, bitSet(analysis, PerceptualHash))
	assert.True(t, bitSet(analysis, Language))

	all, err := ParseBitmask("all")
	require.NoError(t, err)
	assert.Equal(t, PresetAll, all)
}

func TestParseBitmaskHex(t *testing.T) {
	mask, err := ParseBitmask("0x3")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), mask)
}

func TestParseBitmaskNameList(t *testing.T) {
	mask, err := ParseBitmask("language,keywords")
	require.NoError(t, err)
	assert.True(t, bitSet(mask, Language))
	assert.True(t, bitSet(mask, Keywords))
	assert.False(t, bitSet(mask, Citations))
}

func TestParseBitmaskUnknownName(t *testing.T) {
	_, err := ParseBitmask("not_a_stage")
	assert.Error(t, err)
}

func TestRunFastPresetOnText(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.pdf")
	output := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(input, []byte("%PDF-1.4 sample"), 0o644))
	require.NoError(t, os.WriteFile(output, []byte("The quick brown fox jumps over the lazy dog. It was a bright day (2020)."), 0o644))

	in := Input{
		Bitmask: PresetFast,
		ParseResult: model.ParseResult{
			SHA256Hex: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b85",
			MIME:      "application/pdf",
		},
		Kind:          model.KindPDF,
		InputPath:     input,
		OutputPath:    output,
		ExtractedText: "The quick brown fox jumps over the lazy dog. It was a bright day (2020).",
	}

	out, err := Run(in)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	b, err := wire.ReadMessage(bytes.NewReader(out), dataWords, ptrWords)
	require.NoError(t, err)

	assert.Equal(t, PresetFast, b.GetUint64(offBitmask))
	label, ok := b.GetText(ptrLanguageLabel)
	require.True(t, ok)
	assert.Equal(t, "Latin", label)

	sha, ok := b.GetText(ptrExactDedup)
	require.True(t, ok)
	assert.Equal(t, in.ParseResult.SHA256Hex, sha)

	root, ok := b.GetText(ptrMerkleRoot)
	require.True(t, ok)
	assert.NotEmpty(t, root)

	years, ok := b.GetTextList(ptrCitationYears)
	require.True(t, ok)
	assert.Contains(t, years, "(2020)")
}

func TestRunMLStubsAlwaysUnavailable(t *testing.T) {
	in := Input{
		Bitmask:       uint64(MLNamedEntity | MLAudioTranscription),
		Kind:          model.KindUnknown,
		InputPath:     filepath.Join(t.TempDir(), "missing"),
		OutputPath:    filepath.Join(t.TempDir(), "missing-out"),
		ExtractedText: "",
	}

	out, err := Run(in)
	require.NoError(t, err)

	b, err := wire.ReadMessage(bytes.NewReader(out), dataWords, ptrWords)
	require.NoError(t, err)

	ner, ok := b.GetText(ptrMLNERStub)
	require.True(t, ok)
	assert.Equal(t, "not_available", ner)

	audio, ok := b.GetText(ptrMLAudioStub)
	require.True(t, ok)
	assert.Equal(t, "not_available", audio)

	mask := b.GetUint64(offMLAvailableMask)
	assert.Equal(t, uint64(0b11), mask)
}

func TestRunNearDedupNotApplicableForNonImage(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(output, []byte("text"), 0o644))

	in := Input{
		Bitmask:    uint64(NearDedup),
		Kind:       model.KindPDF,
		InputPath:  filepath.Join(dir, "in.pdf"),
		OutputPath: output,
	}
	out, err := Run(in)
	require.NoError(t, err)

	b, err := wire.ReadMessage(bytes.NewReader(out), dataWords, ptrWords)
	require.NoError(t, err)

	v, ok := b.GetText(ptrNearDedup)
	require.True(t, ok)
	assert.Equal(t, "not_applicable", v)
}

func TestDetectLanguageEmptyText(t *testing.T) {
	label, iso, confidence := detectLanguage("")
	assert.Equal(t, "unknown", label)
	assert.Equal(t, "und", iso)
	assert.Zero(t, confidence)
}

func TestTopKeywordsFiltersStopWords(t *testing.T) {
	kws := topKeywords("the quick brown fox jumps over the lazy dog the dog barked", 3)
	assert.Contains(t, kws, "dog")
	assert.NotContains(t, kws, "the")
}

func TestExtractCitations(t *testing.T) {
	c := extractCitations("See https://example.com/doc and 10.1000/xyz123 plus [1] from (1999).")
	assert.Contains(t, c.urls, "https://example.com/doc")
	assert.Contains(t, c.dois, "10.1000/xyz123")
	assert.Contains(t, c.numeric, "[1]")
	assert.Contains(t, c.years, "(1999)")
}
