package extract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// extractMarkdown parses the document into a block tree and emits one
// section per non-empty paragraph block. Markdown has no pages; everything
// reports page 1.
func extractMarkdown(content []byte) ([]Section, error) {
	doc := goldmark.New().Parser().Parse(gmtext.NewReader(content))

	var sections []Section
	paragraph := 0
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindParagraph {
			return ast.WalkContinue, nil
		}

		text := strings.TrimSpace(string(n.Text(content)))
		if text != "" {
			paragraph++
			sections = append(sections, Section{Page: 1, Paragraph: paragraph, Text: text})
		}
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}
	return sections, nil
}
