// Package api wires the HTTP surface: the websocket endpoint and the
// read-only monitoring side channel.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/solstice-os/relay/internal/api/middleware"
	"github.com/solstice-os/relay/internal/handlers"
	"github.com/solstice-os/relay/internal/relay"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, srv *relay.Server) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)
	r.Use(middleware.SecurityHeaders)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS - companion UIs poll health/stats from any origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(srv.Registry(), srv.Stats())

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Monitoring side channel
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)

	// Session transport
	r.Get("/ws", srv.HandleWS)

	// JSON errors for everything off the map, same shape as the rest
	// of the side channel.
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		h.Error(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		h.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
