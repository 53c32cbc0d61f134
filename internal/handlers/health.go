package handlers

import (
	"net/http"
	"time"

	"github.com/solstice-os/relay/protocol"
)

const version = "0.1.0"

// HealthResponse represents the health check response: process status
// plus a per-client roster for out-of-band monitoring.
type HealthResponse struct {
	Status      string              `json:"status"`
	Version     string              `json:"version"`
	Uptime      string              `json:"uptime"`
	Connections int                 `json:"connections"`
	Clients     []protocol.UserInfo `json:"clients"`
	Timestamp   string              `json:"timestamp"`
}

// Health handles the health check endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "ok",
		Version:     version,
		Uptime:      h.stats.Uptime().Round(time.Second).String(),
		Connections: h.registry.Len(),
		Clients:     h.registry.Roster(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	h.JSON(w, http.StatusOK, resp)
}
