package search

import (
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/scratchpad/internal/notebook"
	"github.com/hpungsan/scratchpad/internal/storage"
)

// SnippetLimit is the maximum snippet length in characters.
const SnippetLimit = 240

// Document is one text to embed with the attributes stored beside its vector.
type Document struct {
	Text   string
	Record storage.EmbeddingRecord
}

// BuildDocuments returns the pad-level document (title, description, summary
// and every cell's content; cell index -1) followed by one document per cell.
// Pad documents carry the pad tags; cell documents carry pad tags merged
// with the cell's own.
func BuildDocuments(pad *notebook.Scratchpad) []Document {
	namespace := pad.Namespace()
	padTags := pad.PadTags()
	title := pad.Field("title")
	description := pad.Field("description")
	summary := pad.Field("summary")
	meta := []string{title, description, summary}

	parts := nonEmpty(meta...)
	for i := range pad.Cells {
		if c := strings.TrimSpace(pad.Cells[i].Content); c != "" {
			parts = append(parts, c)
		}
	}
	padText := strings.Join(parts, "\n")

	record := func(cellID string, index int, tags []string, snippet string) storage.EmbeddingRecord {
		return storage.EmbeddingRecord{
			CellID:      cellID,
			CellIndex:   index,
			Namespace:   namespace,
			Tags:        tags,
			Title:       title,
			Description: description,
			Summary:     summary,
			Snippet:     snippet,
		}
	}

	docs := make([]Document, 0, len(pad.Cells)+1)
	docs = append(docs, Document{
		Text:   padText,
		Record: record("", -1, padTags, Snippet(padText, meta...)),
	})
	for i := range pad.Cells {
		c := &pad.Cells[i]
		text := strings.TrimSpace(c.Content)
		docs = append(docs, Document{
			Text:   text,
			Record: record(c.CellID, c.Index, notebook.MergeTags(padTags, c.Tags()), Snippet(text, meta...)),
		})
	}
	return docs
}

// Snippet joins the non-empty metadata parts and text with spaces, truncated
// to SnippetLimit characters with a "..." suffix.
func Snippet(text string, metadata ...string) string {
	combined := strings.Join(nonEmpty(append(metadata, text)...), " ")
	if utf8.RuneCountInString(combined) <= SnippetLimit {
		return combined
	}
	runes := []rune(combined)
	return string(runes[:SnippetLimit-3]) + "..."
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
