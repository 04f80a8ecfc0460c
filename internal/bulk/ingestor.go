package bulk

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ingestor submits one document for ingestion.
type Ingestor interface {
	Ingest(ctx context.Context, filename string, content []byte) error
}

// HTTPIngestor posts documents to a running service instance.
type HTTPIngestor struct {
	endpoint string
	client   *http.Client
}

func NewHTTPIngestor(endpoint string) *HTTPIngestor {
	return &HTTPIngestor{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (i *HTTPIngestor) Ingest(ctx context.Context, filename string, content []byte) error {
	body, err := json.Marshal(map[string]string{
		"filename": filename,
		"content":  base64.StdEncoding.EncodeToString(content),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint+"/ingest", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ingest %s: status %d: %s", filename, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
