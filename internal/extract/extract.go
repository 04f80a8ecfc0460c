// Package extract converts raw document bytes into ordered text sections
// with page/paragraph provenance. Page numbers are only meaningful for
// paginated formats; everything else reports page 1.
package extract

import (
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
)

// Section is one provenance-tagged block of extracted text.
type Section struct {
	Page      int
	Paragraph int
	Text      string
}

var blankLine = regexp.MustCompile(`\n\s*\n`)

// Extract dispatches on the filename extension. A decode or parse failure
// degrades to zero sections; it is logged and never surfaced as an error so
// one broken document cannot fail a caller processing many.
func Extract(ctx context.Context, filename string, content []byte) []Section {
	var (
		sections []Section
		err      error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		sections, err = extractPDF(content)
	case ".md":
		sections, err = extractMarkdown(content)
	case ".xml", ".akn":
		sections, err = extractMarkup(content)
	default:
		text := strings.TrimSpace(string(content))
		if text != "" {
			sections = []Section{{Page: 1, Paragraph: 1, Text: text}}
		}
	}

	if err != nil {
		slog.ErrorContext(ctx, "extraction failed", "filename", filename, "error", err)
		return nil
	}
	slog.InfoContext(ctx, "extracted sections", "filename", filename, "count", len(sections))
	return sections
}

// splitParagraphs breaks a page's text on blank-line boundaries.
func splitParagraphs(text string) []string {
	var out []string
	for _, p := range blankLine.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
