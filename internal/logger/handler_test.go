package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"docrag/internal/middleware"
)

func TestContextHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	h := NewContextHandler(slog.NewJSONHandler(&buf, nil))
	log := slog.New(h)

	ctx := middleware.WithCorrelationID(context.Background(), "corr-123")
	log.InfoContext(ctx, "hello")

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("failed to unmarshal log: %v", err)
	}
	if rec["correlation_id"] != "corr-123" {
		t.Errorf("expected correlation_id corr-123, got %v", rec["correlation_id"])
	}
}

func TestContextHandler_NoID(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil)))

	log.InfoContext(context.Background(), "hello")

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("failed to unmarshal log: %v", err)
	}
	if _, ok := rec["correlation_id"]; ok {
		t.Error("correlation_id should be absent without a request context")
	}
}
