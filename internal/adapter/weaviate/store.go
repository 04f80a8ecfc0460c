// Package weaviate backs the vector store contract with a Weaviate
// instance. Vectors are supplied by the caller, so the class is created
// with vectorizer "none".
package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"docrag/internal/vector"
)

// listPageSize bounds unfiltered GraphQL Get reads. Collections large
// enough to exceed it would need cursor pagination.
const listPageSize = 10000

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

type clientAdapter struct {
	client *weaviate.Client
}

// Schema exposes the client's schema operations behind SchemaClient so
// EnsureSchema stays testable without a live instance.
func (s *Store) Schema() SchemaClient {
	return &clientAdapter{client: s.client}
}

func (a *clientAdapter) ClassExists(ctx context.Context, className string) (bool, error) {
	return a.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (a *clientAdapter) CreateClass(ctx context.Context, class *models.Class) error {
	return a.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (a *clientAdapter) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return a.client.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (a *clientAdapter) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return a.client.Schema().PropertyCreator().WithClassName(className).WithProperty(property).Do(ctx)
}

func (s *Store) AddRecords(ctx context.Context, records []vector.Record) error {
	for _, r := range records {
		_, err := s.client.Data().Creator().
			WithClassName(className).
			WithID(r.ID).
			WithProperties(map[string]interface{}{
				"text":       r.Payload.Text,
				"doc_name":   r.Payload.DocName,
				"page":       r.Payload.Page,
				"paragraph":  r.Payload.Paragraph,
				"is_summary": r.Payload.IsSummary,
				"generation": r.Payload.Generation,
			}).
			WithVector(r.Vector).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("storing record %s: %w", r.ID, err)
		}
	}
	return nil
}

func (s *Store) DeleteWhere(ctx context.Context, filter vector.Filter) error {
	where, err := buildWhere(filter)
	if err != nil {
		return err
	}
	_, err = s.client.Batch().ObjectsBatchDeleter().
		WithClassName(className).
		WithOutput("minimal").
		WithWhere(where).
		Do(ctx)
	return err
}

func (s *Store) Query(ctx context.Context, vec []float32, topK int) ([]vector.Match, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vec)

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "doc_name"},
		{Name: "page"},
		{Name: "paragraph"},
		{Name: "is_summary"},
		{Name: "generation"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithNearVector(nearVector).
		WithLimit(topK).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var matches []vector.Match
	for _, props := range objectProps(res.Data) {
		m := vector.Match{Payload: payloadFromProps(props)}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if distance, ok := additional["distance"].(float64); ok {
				// Weaviate reports cosine distance; similarity is its
				// complement.
				m.Score = 1 - distance
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (s *Store) GetWhere(ctx context.Context, filter vector.Filter) ([]vector.Record, error) {
	where, err := buildWhere(filter)
	if err != nil {
		return nil, err
	}

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "doc_name"},
		{Name: "page"},
		{Name: "paragraph"},
		{Name: "is_summary"},
		{Name: "generation"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithWhere(where).
		WithLimit(listPageSize).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var records []vector.Record
	for _, props := range objectProps(res.Data) {
		r := vector.Record{Payload: payloadFromProps(props)}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if id, ok := additional["id"].(string); ok {
				r.ID = id
			}
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *Store) ListDistinct(ctx context.Context, field string) ([]string, error) {
	res, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithLimit(listPageSize).
		WithFields(graphql.Field{Name: field}).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	seen := make(map[string]bool)
	var values []string
	for _, props := range objectProps(res.Data) {
		v, ok := props[field].(string)
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return values, nil
}

func buildWhere(filter vector.Filter) (*filters.WhereBuilder, error) {
	var operands []*filters.WhereBuilder
	for key, value := range filter {
		clause := filters.Where().
			WithPath([]string{key}).
			WithOperator(filters.Equal)
		switch v := value.(type) {
		case string:
			clause = clause.WithValueString(v)
		case bool:
			clause = clause.WithValueBoolean(v)
		case int:
			clause = clause.WithValueInt(int64(v))
		default:
			return nil, fmt.Errorf("unsupported filter value type %T for %q", value, key)
		}
		operands = append(operands, clause)
	}
	if len(operands) == 1 {
		return operands[0], nil
	}
	return filters.Where().
		WithOperator(filters.And).
		WithOperands(operands), nil
}

func objectProps(data map[string]models.JSONObject) []map[string]interface{} {
	var out []map[string]interface{}
	if get, ok := data["Get"].(map[string]interface{}); ok {
		if objects, ok := get[className].([]interface{}); ok {
			for _, o := range objects {
				if props, ok := o.(map[string]interface{}); ok {
					out = append(out, props)
				}
			}
		}
	}
	return out
}

func payloadFromProps(props map[string]interface{}) vector.Payload {
	var p vector.Payload
	if text, ok := props["text"].(string); ok {
		p.Text = text
	}
	if docName, ok := props["doc_name"].(string); ok {
		p.DocName = docName
	}
	if page, ok := props["page"].(float64); ok {
		p.Page = int(page)
	}
	if paragraph, ok := props["paragraph"].(float64); ok {
		p.Paragraph = int(paragraph)
	}
	if isSummary, ok := props["is_summary"].(bool); ok {
		p.IsSummary = isSummary
	}
	if generation, ok := props["generation"].(string); ok {
		p.Generation = generation
	}
	return p
}
