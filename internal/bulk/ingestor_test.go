package bulk_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"docrag/internal/bulk"
)

func TestHTTPIngestor_PostsDocument(t *testing.T) {
	var got map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ingest", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	ingestor := bulk.NewHTTPIngestor(ts.URL + "/")

	err := ingestor.Ingest(context.Background(), "a.txt", []byte("hello"))

	assert.NoError(t, err)
	assert.Equal(t, "a.txt", got["filename"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello")), got["content"])
}

func TestHTTPIngestor_NonSuccessStatusIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"code":"QUEUE_FULL"}}`))
	}))
	defer ts.Close()

	ingestor := bulk.NewHTTPIngestor(ts.URL)

	err := ingestor.Ingest(context.Background(), "a.txt", []byte("hello"))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
