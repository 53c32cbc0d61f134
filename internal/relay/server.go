// Package relay implements the session synchronization relay: the
// connection registry, liveness monitor, message router, broadcast
// engine, and the in-memory shared session state.
package relay

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/solstice-os/relay/internal/metrics"
	"github.com/solstice-os/relay/protocol"
)

// Server brokers envelopes between connected clients. It holds no
// authoritative game rules, only session and shared-state bookkeeping.
type Server struct {
	log      zerolog.Logger
	registry *Registry
	state    *State
	stats    *Stats
	auth     Authorizer
	upgrader websocket.Upgrader
}

// NewServer wires the relay from its injected parts.
func NewServer(log zerolog.Logger, registry *Registry, state *State, stats *Stats, auth Authorizer) *Server {
	return &Server{
		log:      log.With().Str("component", "relay").Logger(),
		registry: registry,
		state:    state,
		stats:    stats,
		auth:     auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Companion UIs connect from app shells and local dev
			// origins; the side channel is equally open.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Registry exposes the connection registry for the HTTP side channel.
func (s *Server) Registry() *Registry { return s.registry }

// Stats exposes the process counters for the HTTP side channel.
func (s *Server) Stats() *Stats { return s.stats }

// HandleWS upgrades the HTTP request and runs the connection until it
// closes or is evicted.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("upgrade failed")
		return
	}

	c := newClient(conn, r.RemoteAddr)
	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		c.SetAlive(true)
		return nil
	})

	s.registry.Register(c)
	s.stats.ConnectionAccepted()
	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Inc()
	s.log.Info().
		Str("client_id", c.ID).
		Str("remote_addr", c.RemoteAddr).
		Int("connections", s.registry.Len()).
		Msg("client connected")

	go c.writePump(s.drop)

	s.sendTo(c, protocol.NewEnvelope(protocol.KindConnected, protocol.ConnectedPayload{
		ID:              c.ID,
		Users:           s.registry.Roster(),
		EncounterActive: s.state.EncounterActive(),
	}))

	joined := protocol.NewEnvelope(protocol.KindUserJoined, protocol.UserRefPayload{ID: c.ID})
	joined.ClientID = c.ID
	s.broadcast(joined, AllExcept(c.ID))

	s.readPump(c, conn)
}

// readPump processes inbound frames in arrival order until the
// connection fails or closes.
func (s *Server) readPump(c *Client, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.drop(c, "connection closed")
			return
		}
		s.route(c, data)
	}
}

// drop is the single teardown path for graceful closes, transport
// failures, and liveness evictions. Idempotent: exactly one user_left
// is broadcast per session.
func (s *Server) drop(c *Client, reason string) {
	if !s.registry.Unregister(c.ID) {
		return
	}
	c.close()
	metrics.ConnectionsActive.Dec()
	s.log.Info().
		Str("client_id", c.ID).
		Str("reason", reason).
		Int("connections", s.registry.Len()).
		Msg("client disconnected")

	left := protocol.NewEnvelope(protocol.KindUserLeft, protocol.UserRefPayload{ID: c.ID})
	left.ClientID = c.ID
	s.broadcast(left, All())
}
