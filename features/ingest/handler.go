package ingest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"docrag/internal/middleware"
)

type Handler struct {
	service     *Service
	allowedExts map[string]bool
	maxBytes    int
}

func NewHandler(service *Service, allowedExts []string, maxBytes int) *Handler {
	exts := make(map[string]bool, len(allowedExts))
	for _, e := range allowedExts {
		exts[strings.ToLower(e)] = true
	}
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	return &Handler{service: service, allowedExts: exts, maxBytes: maxBytes}
}

// Create accepts a base64-encoded document and hands it to the background
// pipeline. The response acknowledges receipt, not completion; progress is
// observable via Status.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	if req.Filename == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "filename is required", http.StatusBadRequest)
		return
	}
	if filepath.Base(req.Filename) != req.Filename || strings.Contains(req.Filename, "..") {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "filename must not contain path separators", http.StatusBadRequest)
		return
	}

	ext := strings.ToLower(filepath.Ext(req.Filename))
	if !h.allowedExts[ext] {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "unsupported file type", http.StatusBadRequest)
		return
	}

	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "content is not valid base64", http.StatusBadRequest)
		return
	}
	if len(content) == 0 {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "content is empty", http.StatusBadRequest)
		return
	}
	if len(content) > h.maxBytes {
		h.writeError(r.Context(), w, "PAYLOAD_TOO_LARGE", "document exceeds size limit", http.StatusRequestEntityTooLarge)
		return
	}

	if !contentMatchesExt(content, ext) {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "content does not match file type", http.StatusBadRequest)
		return
	}

	if err := h.service.Enqueue(r.Context(), req.Filename, content); err != nil {
		if errors.Is(err, ErrQueueFull) {
			h.writeError(r.Context(), w, "QUEUE_FULL", "too many pending ingestions, retry later", http.StatusServiceUnavailable)
			return
		}
		slog.Error("enqueueing ingestion failed", "error", err, "filename", req.Filename)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":  "accepted",
		"message": "document ingestion started in background",
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Status reports the persisted pipeline state of one document.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if filename == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "filename is required", http.StatusBadRequest)
		return
	}

	status, err := h.service.Status(r.Context(), filename)
	if err != nil {
		if errors.Is(err, ErrStatusNotFound) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"status": "not_found"})
			return
		}
		slog.Error("reading ingestion status failed", "error", err, "filename", filename)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"message": status,
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// List returns the distinct document names in the vector store.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.Documents(r.Context())
	if err != nil {
		slog.Error("listing documents failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"documents": docs,
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// contentMatchesExt sniffs the payload and rejects mislabeled uploads,
// e.g. a PDF body posted under a .md name.
func contentMatchesExt(content []byte, ext string) bool {
	detected := mimetype.Detect(content)
	if ext == ".pdf" {
		return detected.Is("application/pdf")
	}
	if detected.Is("application/pdf") {
		return false
	}
	// The remaining accepted types are all textual.
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
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
