package extract

import (
	"bytes"

	"github.com/ledongthuc/pdf"
)

// extractPDF walks pages in order and splits each page's text into
// paragraphs. Paragraph numbering restarts on every page.
func extractPDF(content []byte) ([]Section, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	var sections []Section
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// One unreadable page does not spoil the rest.
			continue
		}

		for i, para := range splitParagraphs(text) {
			sections = append(sections, Section{Page: pageNum, Paragraph: i + 1, Text: para})
		}
	}
	return sections, nil
}
