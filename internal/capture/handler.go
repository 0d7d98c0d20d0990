package capture

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
	"github.com/tjfontaine/record-review-gateway/internal/server"
)

// Ingest headers set by the intercepting proxy.
const (
	HeaderDirection = "X-Frame-Direction"
	HeaderOpcode    = "X-Frame-Opcode"
)

// maxFrameBytes bounds an ingested frame body.
const maxFrameBytes = 16 << 20

// Handler exposes the pipeline over HTTP.
type Handler struct {
	pipeline *Pipeline
}

func NewHandler(p *Pipeline) *Handler {
	return &Handler{pipeline: p}
}

// Register mounts the ingest routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/frames", h.ingest)
	r.Get("/v1/stats", h.stats)
	r.Get("/v1/stream", h.stream)
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	dir, err := domain.ParseDirection(r.Header.Get(HeaderDirection))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	op := domain.OpcodeBinary
	if v := r.Header.Get(HeaderOpcode); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 15 {
			http.Error(w, "invalid "+HeaderOpcode, http.StatusBadRequest)
			return
		}
		op = domain.Opcode(n)
	}

	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBytes))
	if err != nil {
		http.Error(w, "unreadable frame body", http.StatusBadRequest)
		return
	}

	if err := h.pipeline.Handle(r.Context(), domain.Frame{Direction: dir, Opcode: op, Content: content}); err != nil {
		server.AddError(r.Context(), err)
		http.Error(w, "coordination store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.pipeline.Stats())
}
