package stages

import "github.com/hyperpolymath/docudactyl/internal/wire"

// mlStub pairs a bit with the pointer slot its "not_available" marker goes
// into, for the six ML-dependent stages spec.md §4.8 group (e) describes as
// "present in the bitmask, absent in the runtime": named-entity recognition,
// audio transcription, image classification, layout analysis, handwriting
// OCR, and format conversion. None of these has a model runtime wired into
// this repo, so every one of them always reports unavailable; the mask at
// offMLAvailableMask records which were even requested.
var mlStubs = []struct {
	bit  Bit
	ptr  int
	name string
}{
	{MLNamedEntity, ptrMLNERStub, "ner"},
	{MLAudioTranscription, ptrMLAudioStub, "audio_transcription"},
	{MLImageClassification, ptrMLImageClassStub, "image_classification"},
	{MLLayoutAnalysis, ptrMLLayoutStub, "layout_analysis"},
	{MLHandwritingOCR, ptrMLHandwritingStub, "handwriting_ocr"},
	{MLFormatConversion, ptrMLFormatConvStub, "format_conversion"},
}

// runMLStubs sets a "not_available" text for every requested ML stage and
// records which stages were requested in offMLAvailableMask (low 6 bits,
// one per stage in mlStubs order).
func runMLStubs(b *wire.Builder, in Input, has func(Bit) bool) error {
	var requested uint64
	for i, s := range mlStubs {
		if !has(s.bit) {
			continue
		}
		requested |= 1 << uint(i)
		if err := b.SetText(s.ptr, "not_available"); err != nil {
			return err
		}
	}
	b.SetUint64(offMLAvailableMask, requested)
	return nil
}
