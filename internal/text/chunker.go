// Package text splits extracted sections into bounded, overlapping chunks
// suitable for embedding, preserving each section's provenance.
package text

import (
	"strings"

	"docrag/internal/extract"
)

// Chunk is the unit stored and retrieved for similarity search.
type Chunk struct {
	Text      string
	DocName   string
	Page      int
	Paragraph int
}

// Splitter produces chunks of at most MaxSize characters. Consecutive chunks
// from one section share Overlap characters so sentence fragments at chunk
// boundaries remain retrievable. Overlap must be smaller than MaxSize.
type Splitter struct {
	MaxSize int
	Overlap int
}

func DefaultSplitter() Splitter {
	return Splitter{MaxSize: 500, Overlap: 100}
}

// Split breaks text into bounded pieces, preferring paragraph, then
// sentence, then word boundaries before a hard cut. Progress is guaranteed
// even for a single token longer than MaxSize.
func (s Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= s.MaxSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		if len(text)-start <= s.MaxSize {
			chunks = append(chunks, text[start:])
			break
		}

		cut := s.boundary(text, start, start+s.MaxSize)
		chunks = append(chunks, text[start:cut])

		next := cut - s.Overlap
		if next <= start {
			// Overlap would revisit consumed text; advance anyway.
			next = cut
		}
		start = next
	}
	return chunks
}

// boundary picks the cut position in (start, limit], scanning backwards for
// the most natural break.
func (s Splitter) boundary(text string, start, limit int) int {
	window := text[start:limit]

	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return start + i + 2
	}
	best := -1
	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if i := strings.LastIndex(window, sep); i > 0 && i+len(sep) > best {
			best = i + len(sep)
		}
	}
	if best > 0 {
		return start + best
	}
	if i := strings.LastIndex(window, " "); i > 0 {
		return start + i + 1
	}
	// No boundary at all: hard cut.
	return limit
}

// ChunkSections applies the splitter to every section, tagging each chunk
// with the document name and the section's provenance.
func ChunkSections(docName string, sections []extract.Section, s Splitter) []Chunk {
	var chunks []Chunk
	for _, sec := range sections {
		for _, piece := range s.Split(sec.Text) {
			chunks = append(chunks, Chunk{
				Text:      piece,
				DocName:   docName,
				Page:      sec.Page,
				Paragraph: sec.Paragraph,
			})
		}
	}
	return chunks
}
