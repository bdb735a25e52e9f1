package ogmeta

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Fetcher resolves metadata for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Metadata, error)
}

type errorBody struct {
	ErrorMessage string `json:"errorMessage"`
}

// Handler serves POST /api/metadata-url with body {"url": "..."}.
type Handler struct {
	fetcher Fetcher
	logger  *zap.Logger
}

// NewHandler wraps f.
func NewHandler(f Fetcher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{fetcher: f, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{ErrorMessage: "method not allowed"})
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req)
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{ErrorMessage: "URL is required"})
		return
	}
	md, err := h.fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		h.logger.Warn("metadata fetch failed", zap.String("url", req.URL), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{ErrorMessage: "Failed to fetch URL metadata"})
		return
	}
	writeJSON(w, http.StatusOK, md)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
