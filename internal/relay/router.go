package relay

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/solstice-os/relay/internal/metrics"
	"github.com/solstice-os/relay/protocol"
)

// route parses one inbound frame and dispatches it by kind. Business
// errors are reported to the sender only; nothing here can take down
// another session.
func (s *Server) route(c *Client, raw []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.sendError(c, protocol.CodeParseError, "malformed message")
		return
	}

	s.stats.MessageRouted()
	metrics.MessagesRoutedTotal.WithLabelValues(string(env.Kind)).Inc()

	// Unrecognized kinds are harmless: the sender gets a single error
	// envelope and the connection stays open.
	if !env.Kind.KnownInbound() {
		s.sendError(c, protocol.CodeUnknownType, "unknown message type: "+string(env.Kind))
		return
	}

	if env.Kind.DMOnly() && !s.auth.Allowed(c, env.Kind) {
		s.sendError(c, protocol.CodePermissionDenied, string(env.Kind)+" requires the DM role")
		return
	}

	switch env.Kind {
	case protocol.KindSetCharacter:
		s.handleSetCharacter(c, env)
	case protocol.KindSetDMMode:
		s.handleSetDMMode(c, env)
	case protocol.KindGetUsers:
		s.sendTo(c, protocol.NewEnvelope(protocol.KindUsers, s.registry.Roster()))
	case protocol.KindDiceRoll:
		s.handleDiceRoll(c, env)
	case protocol.KindCodexSync, protocol.KindCodexUpdate:
		s.rebroadcast(c, env, protocol.KindCodexSync, AllExcept(c.ID))
	case protocol.KindBestiarySync, protocol.KindBestiaryUpd:
		s.rebroadcast(c, env, protocol.KindBestiarySync, AllExcept(c.ID))
	case protocol.KindQuestSync, protocol.KindQuestUpdate:
		s.rebroadcast(c, env, protocol.KindQuestSync, All())
	case protocol.KindMapSync:
		s.rebroadcast(c, env, protocol.KindMapSync, AllExcept(c.ID))
	case protocol.KindMapUpdate, protocol.KindMapPinAdd, protocol.KindMapPinRemove:
		s.rebroadcast(c, env, protocol.KindMapUpdate, All())
	case protocol.KindMessage:
		s.handleMessage(c, env)
	case protocol.KindContactSync, protocol.KindMessageSync, protocol.KindNoteSync:
		s.rebroadcast(c, env, env.Kind, AllExcept(c.ID))
	case protocol.KindCombatUpdate:
		s.rebroadcast(c, env, protocol.KindCombatUpdate, All())
	case protocol.KindEncounter:
		s.handleEncounterSync(c, env)
	case protocol.KindInitiative:
		s.handleInitiativeUpdate(c, env)
	case protocol.KindXPAward:
		s.handleXPAward(c, env)
	case protocol.KindSharedNote:
		s.handleSharedNote(c, env)
	case protocol.KindPing:
		s.sendTo(c, protocol.NewEnvelope(protocol.KindPong, protocol.PongPayload{
			Time: time.Now().UTC().Format(time.RFC3339),
		}))
	case protocol.KindGetGameState:
		s.sendTo(c, protocol.NewEnvelope(protocol.KindGameState, s.state.Snapshot()))
	}
}

// rebroadcast restamps an inbound envelope under the outbound kind and
// origin id, and fans it out.
func (s *Server) rebroadcast(c *Client, env protocol.Envelope, kind protocol.Kind, aud Audience) {
	out := protocol.Envelope{
		Kind:      kind,
		Payload:   env.Payload,
		ClientID:  c.ID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	s.broadcast(out, aud)
}

func (s *Server) handleSetCharacter(c *Client, env protocol.Envelope) {
	var cs protocol.CharacterSummary
	if err := json.Unmarshal(env.Payload, &cs); err != nil {
		s.sendError(c, protocol.CodeParseError, "malformed character payload")
		return
	}
	c.SetCharacter(&cs)
	s.broadcastUserUpdated(c)
}

func (s *Server) handleSetDMMode(c *Client, env protocol.Envelope) {
	var dm protocol.DMModePayload
	if err := json.Unmarshal(env.Payload, &dm); err != nil {
		s.sendError(c, protocol.CodeParseError, "malformed dm mode payload")
		return
	}
	c.SetDM(dm.Enabled)
	s.log.Info().Str("client_id", c.ID).Bool("is_dm", dm.Enabled).Msg("dm mode changed")
	s.broadcastUserUpdated(c)
}

func (s *Server) broadcastUserUpdated(c *Client) {
	env := protocol.NewEnvelope(protocol.KindUserUpdated, c.Info())
	env.ClientID = c.ID
	s.broadcast(env, AllExcept(c.ID))
}

// handleDiceRoll echoes the roll to everyone, the sender included, so
// the roller sees the same confirmed result as the table.
func (s *Server) handleDiceRoll(c *Client, env protocol.Envelope) {
	s.stats.DiceRollRouted()
	metrics.DiceRollsTotal.Inc()
	s.rebroadcast(c, env, protocol.KindDiceRoll, All())
}

func (s *Server) handleMessage(c *Client, env protocol.Envelope) {
	switch {
	case env.ToDM:
		s.rebroadcast(c, env, protocol.KindMessage, DMOnly())
	case env.Target != "":
		out := protocol.Envelope{
			Kind:      protocol.KindMessage,
			Payload:   env.Payload,
			Target:    env.Target,
			ClientID:  c.ID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		s.broadcast(out, Single(env.Target))
		// The sender gets a copy for its own transcript, unless it
		// addressed itself and already received one above.
		if env.Target != c.ID {
			s.sendTo(c, out)
		}
	default:
		s.rebroadcast(c, env, protocol.KindMessage, All())
	}
}

// handleEncounterSync replaces the active encounter, or clears it when
// the DM sends an empty payload (the "end encounter" action).
func (s *Server) handleEncounterSync(c *Client, env protocol.Envelope) {
	if emptyPayload(env.Payload) {
		s.state.ClearEncounter()
	} else {
		s.state.SetEncounter(env.Payload)
	}
	s.rebroadcast(c, env, protocol.KindEncounter, All())
}

func (s *Server) handleInitiativeUpdate(c *Client, env protocol.Envelope) {
	s.state.SetInitiative(env.Payload)
	s.rebroadcast(c, env, protocol.KindInitiative, All())
}

func (s *Server) handleXPAward(c *Client, env protocol.Envelope) {
	if env.Target == "" {
		s.sendError(c, protocol.CodeParseError, "xp_award requires a target")
		return
	}
	var award protocol.XPAwardPayload
	if err := json.Unmarshal(env.Payload, &award); err != nil {
		s.sendError(c, protocol.CodeParseError, "malformed xp payload")
		return
	}

	out := protocol.Envelope{
		Kind:      protocol.KindXPAward,
		Payload:   env.Payload,
		Target:    env.Target,
		ClientID:  c.ID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	s.broadcast(out, Single(env.Target))

	if award.Announce {
		s.rebroadcast(c, env, protocol.KindXPAnnouncement, All())
	}
}

func (s *Server) handleSharedNote(c *Client, env protocol.Envelope) {
	var payload protocol.SharedNotePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		s.sendError(c, protocol.CodeParseError, "malformed note payload")
		return
	}
	note := s.state.AppendNote(c.DisplayName(), payload.Text)
	out := protocol.NewEnvelope(protocol.KindSharedNote, note)
	out.ClientID = c.ID
	s.broadcast(out, All())
}

// emptyPayload treats absent, empty, and JSON null payloads alike,
// tolerating whatever whitespace the sender's encoder emits.
func emptyPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null":
		return true
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return false
	}
	return buf.String() == "{}"
}
