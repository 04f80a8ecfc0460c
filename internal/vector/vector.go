// Package vector defines the backend-agnostic similarity index contract.
// Callers never branch on which backend is behind the Store interface.
package vector

import "context"

// Payload is the metadata stored alongside every vector. A record with
// IsSummary set is the one synthetic whole-document summary per document
// (page 0, paragraph 0); Generation tags which ingestion run wrote it.
type Payload struct {
	Text       string `json:"text"`
	DocName    string `json:"doc_name"`
	Page       int    `json:"page"`
	Paragraph  int    `json:"paragraph"`
	IsSummary  bool   `json:"is_summary"`
	Generation string `json:"generation"`
}

// Metadata returns the payload's provenance fields as a generic map,
// the shape surfaced in query responses.
func (p Payload) Metadata() map[string]any {
	return map[string]any{
		"doc_name":   p.DocName,
		"page":       p.Page,
		"paragraph":  p.Paragraph,
		"is_summary": p.IsSummary,
	}
}

type Record struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Match is a query hit. Score is cosine similarity regardless of the
// backend's native distance metric; adapters convert.
type Match struct {
	Payload
	Score float64
}

// Filter is an equality filter over payload fields
// (e.g. {"doc_name": "x.pdf", "is_summary": true}).
type Filter map[string]any

type Store interface {
	AddRecords(ctx context.Context, records []Record) error
	DeleteWhere(ctx context.Context, filter Filter) error
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	GetWhere(ctx context.Context, filter Filter) ([]Record, error)
	// ListDistinct returns the distinct values of a payload string field
	// across all records.
	ListDistinct(ctx context.Context, field string) ([]string, error)
}

// fieldValue resolves a payload field by its filter key.
func fieldValue(p Payload, field string) any {
	switch field {
	case "text":
		return p.Text
	case "doc_name":
		return p.DocName
	case "page":
		return p.Page
	case "paragraph":
		return p.Paragraph
	case "is_summary":
		return p.IsSummary
	case "generation":
		return p.Generation
	default:
		return nil
	}
}

// Matches reports whether every filter entry equals the corresponding
// payload field. Shared by the in-memory store and tests.
func (f Filter) Matches(p Payload) bool {
	for k, want := range f {
		if fieldValue(p, k) != want {
			return false
		}
	}
	return true
}
