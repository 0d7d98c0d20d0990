package lookup

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/record-review-gateway/internal/server"
)

// Handler serves lookups over HTTP.
type Handler struct {
	bridge *Bridge
}

func NewHandler(b *Bridge) *Handler {
	return &Handler{bridge: b}
}

// Register mounts the lookup routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.index)
	r.Get("/{record_id}", h.lookup)
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "record_id")
	server.AddLogField(r.Context(), "record_id", id)

	res := h.bridge.Lookup(r.Context(), id, h.bridge.Timeout())
	server.AddLogField(r.Context(), "outcome", res.Outcome.String())

	switch res.Outcome {
	case OutcomeReviewed:
		body := []byte(res.Review.Review)
		if len(body) == 0 {
			body = []byte("null")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	case OutcomeNotFound:
		http.Error(w, "record not found", http.StatusNotFound)
	case OutcomeInvalidID:
		http.Error(w, "invalid record id", http.StatusBadRequest)
	case OutcomeClientError:
		http.Error(w, "record could not be fetched", http.StatusBadRequest)
	default:
		http.Error(w, "timed out waiting for review", http.StatusRequestTimeout)
	}
}
