package extract

import (
	"errors"
	"strings"

	"github.com/beevik/etree"
)

// Structural elements tried first, then coarse containers when a document
// uses none of them (e.g. a bare AKN body).
var (
	structuralTags = map[string]bool{"article": true, "section": true, "clause": true, "paragraph": true}
	containerTags  = map[string]bool{"body": true, "main": true, "text": true}
)

// extractMarkup selects structural elements from an XML-like document in
// document order, one section per element. Elements nested inside an already
// selected element are skipped so their text is not emitted twice.
func extractMarkup(content []byte) ([]Section, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("markup document has no root element")
	}

	matched := collectElements(root, structuralTags)
	if len(matched) == 0 {
		matched = collectElements(root, containerTags)
	}

	var sections []Section
	for _, el := range matched {
		if text := strings.TrimSpace(elementText(el)); text != "" {
			sections = append(sections, Section{Page: 1, Paragraph: len(sections) + 1, Text: text})
		}
	}
	return sections, nil
}

// collectElements returns document-order elements whose local tag name is in
// tags, without descending into matches.
func collectElements(el *etree.Element, tags map[string]bool) []*etree.Element {
	if tags[strings.ToLower(el.Tag)] {
		return []*etree.Element{el}
	}
	var out []*etree.Element
	for _, child := range el.ChildElements() {
		out = append(out, collectElements(child, tags)...)
	}
	return out
}

// elementText concatenates all character data under el, newline-separated
// per nested element, mirroring how a reader would see the text.
func elementText(el *etree.Element) string {
	var parts []string
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			if s := strings.TrimSpace(t.Data); s != "" {
				parts = append(parts, s)
			}
		case *etree.Element:
			if s := strings.TrimSpace(elementText(t)); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, "\n")
}
