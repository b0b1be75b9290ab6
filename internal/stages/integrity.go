package stages

import (
	"fmt"
	"os"

	"github.com/hyperpolymath/docudactyl/internal/merkle"
	"github.com/hyperpolymath/docudactyl/internal/model"
	"github.com/hyperpolymath/docudactyl/internal/wire"
)

// runPREMIS emits the preservation-metadata stage: file size, MIME, fixity
// algorithm + value, and a format registry name (spec.md §4.8 stage 10).
// The file size is 0 when the input cannot be stat'ed.
func runPREMIS(b *wire.Builder, in Input) {
	var size int64
	if info, err := os.Stat(in.InputPath); err == nil {
		size = info.Size()
	}
	b.SetUint64(offPREMISFileSize, uint64(size))

	mime := in.ParseResult.MIME
	if mime == "" {
		mime = mimeForKind(in.Kind)
	}
	b.SetText(ptrPREMISMIME, mime)
	b.SetText(ptrPREMISFixityAlg, "SHA-256")
	b.SetText(ptrPREMISFixityValue, in.ParseResult.SHA256Hex)
	b.SetText(ptrPREMISFormatName, formatRegistryName(in.Kind))
}

func mimeForKind(k model.ContentKind) string {
	switch k.String() {
	case "pdf":
		return "application/pdf"
	case "image":
		return "image/unknown"
	case "audio":
		return "audio/unknown"
	case "video":
		return "video/unknown"
	case "epub":
		return "application/epub+zip"
	case "geospatial":
		return "application/octet-stream"
	default:
		return "application/octet-stream"
	}
}

func formatRegistryName(k model.ContentKind) string {
	switch k.String() {
	case "pdf":
		return "fmt/276" // PDF 1.7, PRONOM registry identifier
	case "image":
		return "fmt/unknown-image"
	case "audio":
		return "fmt/unknown-audio"
	case "video":
		return "fmt/unknown-video"
	case "epub":
		return "fmt/483" // EPUB 3.0
	default:
		return "fmt/unknown"
	}
}

// runMerkle streams the output file through the Merkle Streamer and emits
// its root hash (spec.md §4.8 stage 11, §4.9).
func runMerkle(b *wire.Builder, in Input) error {
	f, err := os.Open(in.OutputPath)
	if err != nil {
		// The output file may legitimately not exist yet for some content
		// kinds with no extracted text; emit the empty-stream root rather
		// than failing the whole stages record.
		return b.SetText(ptrMerkleRoot, merkle.New().Finish().RootHex)
	}
	defer f.Close()

	streamer := merkle.New()
	result, err := streamer.HashReader(f)
	if err != nil {
		return fmt.Errorf("merkle stage: %w", err)
	}
	return b.SetText(ptrMerkleRoot, result.RootHex)
}
