package orchestrator

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/hyperpolymath/docudactyl/internal/config"
	"github.com/hyperpolymath/docudactyl/internal/model"
)

// writeExtractedContent serializes a successful parse's result and text into
// the chosen output format at path, per spec.md §6's "{stem}.{scm|json|csv}"
// artifact.
func writeExtractedContent(path string, format config.OutputFormat, result model.ParseResult, text string) error {
	switch format {
	case config.FormatJSON:
		return writeJSONContent(path, result, text)
	case config.FormatCSV:
		return writeCSVContent(path, result, text)
	default:
		return writeSchemeContent(path, result, text)
	}
}

type extractedContent struct {
	Kind        string `json:"kind"`
	PageCount   int32  `json:"pageCount"`
	WordCount   int64  `json:"wordCount"`
	CharCount   int64  `json:"charCount"`
	SHA256Hex   string `json:"sha256"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	MIME        string `json:"mime"`
	Text        string `json:"text"`
}

func toExtractedContent(result model.ParseResult, text string) extractedContent {
	return extractedContent{
		Kind:      result.Kind.String(),
		PageCount: result.PageCount,
		WordCount: result.WordCount,
		CharCount: result.CharCount,
		SHA256Hex: result.SHA256Hex,
		Title:     result.Title,
		Author:    result.Author,
		MIME:      result.MIME,
		Text:      text,
	}
}

func writeJSONContent(path string, result model.ParseResult, text string) error {
	data, err := json.MarshalIndent(toExtractedContent(result, text), "", "  ")
	if err != nil {
		return fmt.Errorf("orchestrator: marshaling extracted content: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func writeSchemeContent(path string, result model.ParseResult, text string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "(document\n")
	fmt.Fprintf(&b, "  (kind %q)\n", result.Kind.String())
	fmt.Fprintf(&b, "  (page-count %d)\n", result.PageCount)
	fmt.Fprintf(&b, "  (word-count %d)\n", result.WordCount)
	fmt.Fprintf(&b, "  (char-count %d)\n", result.CharCount)
	fmt.Fprintf(&b, "  (sha256 %q)\n", result.SHA256Hex)
	fmt.Fprintf(&b, "  (title %q)\n", result.Title)
	fmt.Fprintf(&b, "  (author %q)\n", result.Author)
	fmt.Fprintf(&b, "  (mime %q)\n", result.MIME)
	fmt.Fprintf(&b, "  (text %q))\n", text)
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func writeCSVContent(path string, result model.ParseResult, text string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("orchestrator: creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"kind", "pageCount", "wordCount", "charCount", "sha256", "title", "author", "mime", "text"})
	w.Write([]string{
		result.Kind.String(),
		fmt.Sprintf("%d", result.PageCount),
		fmt.Sprintf("%d", result.WordCount),
		fmt.Sprintf("%d", result.CharCount),
		result.SHA256Hex,
		result.Title,
		result.Author,
		result.MIME,
		text,
	})
	w.Flush()
	return w.Error()
}

// ndjsonRow renders one streaming result row, per spec.md §6's optional
// results.ndjson artifact.
func ndjsonRow(path string, result model.ParseResult) string {
	row := struct {
		Path      string `json:"path"`
		Status    string `json:"status"`
		Kind      string `json:"kind"`
		WordCount int64  `json:"wordCount"`
		SHA256Hex string `json:"sha256"`
	}{
		Path:      path,
		Status:    result.Status.String(),
		Kind:      result.Kind.String(),
		WordCount: result.WordCount,
		SHA256Hex: result.SHA256Hex,
	}
	data, err := json.Marshal(row)
	if err != nil {
		return ""
	}
	return string(data) + "\n"
}
