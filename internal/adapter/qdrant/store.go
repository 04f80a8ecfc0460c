// Package qdrant is a minimal REST client to Qdrant implementing the
// vector store contract. It assumes cosine distance and creates the
// collection if missing, so reported scores are cosine similarity as-is.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"docrag/internal/vector"
)

const scrollPageSize = 1000

type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "document_chunks"
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init creates the collection if it does not exist. Qdrant returns 200 for
// an existing collection with the same schema.
func (s *Store) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body)
}

func (s *Store) AddRecords(ctx context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		points[i] = map[string]any{
			"id":      r.ID,
			"vector":  r.Vector,
			"payload": payloadMap(r.Payload),
		}
	}
	body := map[string]any{"points": points}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body)
}

func (s *Store) DeleteWhere(ctx context.Context, filter vector.Filter) error {
	body := map[string]any{"filter": qdrantFilter(filter)}
	return s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection), body, nil)
}

func (s *Store) Query(ctx context.Context, vec []float32, topK int) ([]vector.Match, error) {
	if topK <= 0 {
		topK = 10
	}
	req := map[string]any{
		"vector":       vec,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}
	matches := make([]vector.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, vector.Match{
			Payload: payloadFromMap(r.Payload),
			Score:   r.Score,
		})
	}
	return matches, nil
}

func (s *Store) GetWhere(ctx context.Context, filter vector.Filter) ([]vector.Record, error) {
	var records []vector.Record
	err := s.scroll(ctx, qdrantFilter(filter), func(id string, payload map[string]any) {
		records = append(records, vector.Record{
			ID:      id,
			Payload: payloadFromMap(payload),
		})
	})
	return records, err
}

func (s *Store) ListDistinct(ctx context.Context, field string) ([]string, error) {
	seen := make(map[string]bool)
	var values []string
	err := s.scroll(ctx, nil, func(_ string, payload map[string]any) {
		v, ok := payload[field].(string)
		if !ok || seen[v] {
			return
		}
		seen[v] = true
		values = append(values, v)
	})
	return values, err
}

func (s *Store) scroll(ctx context.Context, filter map[string]any, visit func(id string, payload map[string]any)) error {
	var offset any
	for {
		req := map[string]any{
			"limit":        scrollPageSize,
			"with_payload": true,
		}
		if filter != nil {
			req["filter"] = filter
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []struct {
					ID      any            `json:"id"`
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/scroll", s.url, s.collection), req, &resp); err != nil {
			return err
		}
		for _, p := range resp.Result.Points {
			id, _ := p.ID.(string)
			visit(id, p.Payload)
		}
		if resp.Result.NextPageOffset == nil {
			return nil
		}
		offset = resp.Result.NextPageOffset
	}
}

func qdrantFilter(filter vector.Filter) map[string]any {
	must := make([]map[string]any, 0, len(filter))
	for key, value := range filter {
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}
	return map[string]any{"must": must}
}

func payloadMap(p vector.Payload) map[string]any {
	return map[string]any{
		"text":       p.Text,
		"doc_name":   p.DocName,
		"page":       p.Page,
		"paragraph":  p.Paragraph,
		"is_summary": p.IsSummary,
		"generation": p.Generation,
	}
}

func payloadFromMap(m map[string]any) vector.Payload {
	var p vector.Payload
	if v, ok := m["text"].(string); ok {
		p.Text = v
	}
	if v, ok := m["doc_name"].(string); ok {
		p.DocName = v
	}
	if v, ok := m["page"].(float64); ok {
		p.Page = int(v)
	}
	if v, ok := m["paragraph"].(float64); ok {
		p.Paragraph = int(v)
	}
	if v, ok := m["is_summary"].(bool); ok {
		p.IsSummary = v
	}
	if v, ok := m["generation"].(string); ok {
		p.Generation = v
	}
	return p
}

func (s *Store) putJSON(ctx context.Context, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *Store) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
