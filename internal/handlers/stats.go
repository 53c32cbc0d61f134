package handlers

import (
	"net/http"
	"time"
)

// StatsResponse represents the response from the stats endpoint. All
// totals are monotonic and reset on process restart.
type StatsResponse struct {
	TotalConnections   int64  `json:"totalConnections"`
	TotalMessages      int64  `json:"totalMessages"`
	TotalDiceRolls     int64  `json:"totalDiceRolls"`
	CurrentConnections int    `json:"currentConnections"`
	Uptime             string `json:"uptime"`
}

// Stats returns the relay's aggregate counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	view := h.stats.View()
	h.JSON(w, http.StatusOK, StatsResponse{
		TotalConnections:   view.TotalConnections,
		TotalMessages:      view.TotalMessages,
		TotalDiceRolls:     view.TotalDiceRolls,
		CurrentConnections: h.registry.Len(),
		Uptime:             view.Uptime.Round(time.Second).String(),
	})
}
