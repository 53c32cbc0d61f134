package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/solstice-os/relay/internal/relay"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	registry *relay.Registry
	stats    *relay.Stats
}

// NewHandler creates a new Handler over the relay's registry and
// counters.
func NewHandler(registry *relay.Registry, stats *relay.Stats) *Handler {
	return &Handler{registry: registry, stats: stats}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
