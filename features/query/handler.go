package query

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"docrag/internal/middleware"
)

type Handler struct {
	service *Service
	minLen  int
}

func NewHandler(service *Service, minQuestionLength int) *Handler {
	if minQuestionLength <= 0 {
		minQuestionLength = 3
	}
	return &Handler{service: service, minLen: minQuestionLength}
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	question := strings.TrimSpace(req.Question)
	if len(question) < h.minLen {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "question is too short", http.StatusBadRequest)
		return
	}

	result, err := h.service.Answer(r.Context(), question)
	if err != nil {
		slog.Error("query failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("failed to encode response", "error", err)
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
