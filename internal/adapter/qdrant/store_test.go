package qdrant_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"docrag/internal/adapter/qdrant"
	"docrag/internal/vector"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) (*qdrant.Store, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return qdrant.NewStore(qdrant.Config{URL: ts.URL, Collection: "document_chunks"}), ts
}

func TestStore_Init(t *testing.T) {
	var gotBody map[string]any
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/document_chunks", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})

	err := store.Init(context.Background(), 768)

	assert.NoError(t, err)
	vectors := gotBody["vectors"].(map[string]any)
	assert.Equal(t, float64(768), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
}

func TestStore_AddRecords(t *testing.T) {
	var gotBody map[string]any
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/document_chunks/points", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})

	err := store.AddRecords(context.Background(), []vector.Record{
		{
			ID:     "id-1",
			Vector: []float32{0.1, 0.2},
			Payload: vector.Payload{
				Text:    "hello",
				DocName: "a.pdf",
				Page:    1,
			},
		},
	})

	assert.NoError(t, err)
	points := gotBody["points"].([]any)
	assert.Len(t, points, 1)
	point := points[0].(map[string]any)
	assert.Equal(t, "id-1", point["id"])
	payload := point["payload"].(map[string]any)
	assert.Equal(t, "a.pdf", payload["doc_name"])
}

func TestStore_Query(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/document_chunks/points/search", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{
					"score": 0.91,
					"payload": map[string]any{
						"text":       "chunk text",
						"doc_name":   "a.pdf",
						"page":       float64(2),
						"paragraph":  float64(3),
						"is_summary": false,
					},
				},
			},
		})
	})

	matches, err := store.Query(context.Background(), []float32{0.1}, 10)

	assert.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Equal(t, 0.91, matches[0].Score)
	assert.Equal(t, "a.pdf", matches[0].DocName)
	assert.Equal(t, 2, matches[0].Page)
}

func TestStore_DeleteWhere(t *testing.T) {
	var gotBody map[string]any
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/document_chunks/points/delete", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})

	err := store.DeleteWhere(context.Background(), vector.Filter{"doc_name": "a.pdf"})

	assert.NoError(t, err)
	filter := gotBody["filter"].(map[string]any)
	must := filter["must"].([]any)
	assert.Len(t, must, 1)
	cond := must[0].(map[string]any)
	assert.Equal(t, "doc_name", cond["key"])
}

func TestStore_GetWhere_Paginates(t *testing.T) {
	pages := 0
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/document_chunks/points/scroll", r.URL.Path)
		pages++
		resp := map[string]any{
			"result": map[string]any{
				"points": []map[string]any{
					{"id": "p1", "payload": map[string]any{"doc_name": "a.pdf"}},
				},
			},
		}
		if pages == 1 {
			resp["result"].(map[string]any)["next_page_offset"] = "p1"
		}
		json.NewEncoder(w).Encode(resp)
	})

	records, err := store.GetWhere(context.Background(), vector.Filter{"doc_name": "a.pdf"})

	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, pages)
}

func TestStore_ListDistinct(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"points": []map[string]any{
					{"id": "p1", "payload": map[string]any{"doc_name": "a.pdf"}},
					{"id": "p2", "payload": map[string]any{"doc_name": "b.md"}},
					{"id": "p3", "payload": map[string]any{"doc_name": "a.pdf"}},
				},
			},
		})
	})

	docs, err := store.ListDistinct(context.Background(), "doc_name")

	assert.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.md"}, docs)
}

func TestStore_ServerError(t *testing.T) {
	store, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := store.Query(context.Background(), []float32{0.1}, 10)
	assert.Error(t, err)
}
