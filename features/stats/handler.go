// Package stats exposes corpus-level counters for dashboards.
package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"docrag/internal/middleware"
	"docrag/internal/vector"
)

type CorpusStore interface {
	GetWhere(ctx context.Context, filter vector.Filter) ([]vector.Record, error)
	ListDistinct(ctx context.Context, field string) ([]string, error)
}

type Handler struct {
	store CorpusStore
}

func NewHandler(store CorpusStore) *Handler {
	return &Handler{store: store}
}

type StatsResponse struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Summaries int `json:"summaries"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	docs, err := h.store.ListDistinct(ctx, "doc_name")
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	chunks, err := h.store.GetWhere(ctx, vector.Filter{"is_summary": false})
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	summaries, err := h.store.GetWhere(ctx, vector.Filter{"is_summary": true})
	if err != nil {
		slog.ErrorContext(ctx, "failed to count summaries", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count summaries", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Documents: len(docs),
		Chunks:    len(chunks),
		Summaries: len(summaries),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
