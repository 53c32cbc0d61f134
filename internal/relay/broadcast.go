package relay

import (
	"encoding/json"

	"github.com/solstice-os/relay/internal/metrics"
	"github.com/solstice-os/relay/protocol"
)

type audienceMode int

const (
	audienceAll audienceMode = iota
	audienceAllExcept
	audienceDMOnly
	audienceSingle
)

// Audience selects the subset of live clients that receives a
// broadcast.
type Audience struct {
	mode    audienceMode
	exclude string
	target  string
}

// All addresses every live client, the sender included.
func All() Audience { return Audience{mode: audienceAll} }

// AllExcept addresses every live client but the origin.
func AllExcept(originID string) Audience {
	return Audience{mode: audienceAllExcept, exclude: originID}
}

// DMOnly addresses clients with the DM flag set.
func DMOnly() Audience { return Audience{mode: audienceDMOnly} }

// Single addresses one client by id. A missing target is silently
// dropped: it may simply have disconnected in the meantime.
func Single(targetID string) Audience {
	return Audience{mode: audienceSingle, target: targetID}
}

func (a Audience) includes(c *Client) bool {
	switch a.mode {
	case audienceAllExcept:
		return c.ID != a.exclude
	case audienceDMOnly:
		return c.IsDM()
	case audienceSingle:
		return c.ID == a.target
	default:
		return true
	}
}

// broadcast serializes the envelope once and enqueues it to every
// client the audience selects. A recipient whose queue is full is
// dropped through the same path as a liveness eviction; other
// recipients are unaffected.
func (s *Server) broadcast(env protocol.Envelope, aud Audience) {
	data, err := json.Marshal(env)
	if err != nil {
		s.log.Error().Err(err).Str("kind", string(env.Kind)).Msg("marshal broadcast")
		return
	}
	for _, c := range s.registry.Snapshot() {
		if !aud.includes(c) {
			continue
		}
		if !c.enqueue(data) {
			metrics.BroadcastDropsTotal.Inc()
			s.drop(c, "send queue full")
		}
	}
}

// sendTo delivers an envelope to one client directly (replies and
// error envelopes).
func (s *Server) sendTo(c *Client, env protocol.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		s.log.Error().Err(err).Str("kind", string(env.Kind)).Msg("marshal reply")
		return
	}
	if !c.enqueue(data) {
		metrics.BroadcastDropsTotal.Inc()
		s.drop(c, "send queue full")
	}
}

// sendError reports a business-logic error to the originating client
// only. It never affects other sessions.
func (s *Server) sendError(c *Client, code, message string) {
	metrics.ErrorsSentTotal.WithLabelValues(code).Inc()
	s.sendTo(c, protocol.NewErrorEnvelope(code, message))
}
