package relay

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/solstice-os/relay/internal/metrics"
)

// DefaultProbeInterval is how often the liveness monitor sweeps the
// registry. A session that misses one probe is evicted on the
// following sweep.
const DefaultProbeInterval = 30 * time.Second

// Monitor periodically probes every registered client and evicts the
// ones that failed to reply since the previous sweep.
type Monitor struct {
	log      zerolog.Logger
	registry *Registry
	interval time.Duration
	drop     func(c *Client, reason string)
}

// NewMonitor builds a liveness monitor over the server's registry.
// Eviction goes through the server's teardown path, shared with
// graceful closes, so it produces the same user_left broadcast.
func NewMonitor(log zerolog.Logger, s *Server, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Monitor{
		log:      log.With().Str("component", "liveness").Logger(),
		registry: s.registry,
		interval: interval,
		drop:     s.drop,
	}
}

// Run sweeps on a fixed period until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep evicts clients that never replied to the previous probe, then
// clears the flag and probes the rest. Pong receipt sets the flag back
// through the connection's pong handler.
func (m *Monitor) Sweep() {
	for _, c := range m.registry.Snapshot() {
		if !c.Alive() {
			metrics.EvictionsTotal.Inc()
			m.log.Warn().Str("client_id", c.ID).Msg("liveness timeout")
			m.drop(c, "liveness timeout")
			continue
		}
		c.SetAlive(false)
		if err := c.ping(); err != nil {
			m.drop(c, "probe failed: "+err.Error())
		}
	}
}
