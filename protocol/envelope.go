// Package protocol defines the wire format shared by the relay and its
// clients: the envelope, the message kind enumeration, and the handful
// of payloads the relay itself needs to read.
package protocol

import (
	"encoding/json"
	"time"
)

// Kind discriminates envelope payloads.
type Kind string

// Inbound kinds (client -> relay).
const (
	KindSetCharacter Kind = "set_character"
	KindSetDMMode    Kind = "set_dm_mode"
	KindGetUsers     Kind = "get_users"
	KindDiceRoll     Kind = "dice_roll"
	KindCodexSync    Kind = "codex_sync"
	KindCodexUpdate  Kind = "codex_update"
	KindBestiarySync Kind = "bestiary_sync"
	KindBestiaryUpd  Kind = "bestiary_update"
	KindQuestSync    Kind = "quest_sync"
	KindQuestUpdate  Kind = "quest_update"
	KindMapSync      Kind = "map_sync"
	KindMapUpdate    Kind = "map_update"
	KindMapPinAdd    Kind = "map_pin_add"
	KindMapPinRemove Kind = "map_pin_remove"
	KindMessage      Kind = "message"
	KindContactSync  Kind = "contact_sync"
	KindMessageSync  Kind = "message_sync"
	KindCombatUpdate Kind = "combat_update"
	KindEncounter    Kind = "encounter_sync"
	KindInitiative   Kind = "initiative_update"
	KindXPAward      Kind = "xp_award"
	KindSharedNote   Kind = "shared_note"
	KindNoteSync     Kind = "note_sync"
	KindPing         Kind = "ping"
	KindGetGameState Kind = "get_game_state"
)

// Outbound-only kinds (relay -> client).
const (
	KindConnected      Kind = "connected"
	KindUserJoined     Kind = "user_joined"
	KindUserLeft       Kind = "user_left"
	KindUserUpdated    Kind = "user_updated"
	KindUsers          Kind = "users"
	KindGameState      Kind = "game_state"
	KindPong           Kind = "pong"
	KindXPAnnouncement Kind = "xp_announcement"
	KindError          Kind = "error"
)

// Error codes carried in error envelopes.
const (
	CodeParseError       = "PARSE_ERROR"
	CodeUnknownType      = "UNKNOWN_TYPE"
	CodePermissionDenied = "PERMISSION_DENIED"
)

// Envelope is the unit of wire communication in both directions.
// Payload stays opaque to the relay except for the kinds it must
// inspect (character summaries, notes, addressing flags).
type Envelope struct {
	Kind    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Addressing, used by "message" and "xp_award".
	Target string `json:"target,omitempty"`
	ToDM   bool   `json:"toDM,omitempty"`

	// Stamped by the relay on outbound envelopes; ignored inbound.
	ClientID  string `json:"clientId,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// NewEnvelope builds an outbound envelope with a marshaled payload and
// a server timestamp. Marshal failures are programming errors on our
// own payload types, so the payload is dropped rather than propagated.
func NewEnvelope(kind Kind, payload any) Envelope {
	env := Envelope{
		Kind:      kind,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			env.Payload = raw
		}
	}
	return env
}

// NewErrorEnvelope builds an outbound error envelope with a stable code.
func NewErrorEnvelope(code, message string) Envelope {
	return NewEnvelope(KindError, ErrorInfo{Code: code, Message: message})
}

// CharacterSummary is the self-reported character snapshot attached to
// a session via set_character.
type CharacterSummary struct {
	Name  string `json:"name"`
	Level int    `json:"level,omitempty"`
	Class string `json:"class,omitempty"`
}

// UserInfo is one roster entry, as exposed on connected/users replies
// and the health endpoint.
type UserInfo struct {
	ID          string            `json:"id"`
	Character   *CharacterSummary `json:"character,omitempty"`
	IsDM        bool              `json:"isDM"`
	ConnectedAt time.Time         `json:"connectedAt"`
}

// Note is one entry in the DM's shared notes log.
type Note struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorInfo is the payload of an error envelope.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DMModePayload is the payload of set_dm_mode.
type DMModePayload struct {
	Enabled bool `json:"enabled"`
}

// SharedNotePayload is the payload of shared_note.
type SharedNotePayload struct {
	Text string `json:"text"`
}

// XPAwardPayload is the payload of xp_award. Announce additionally
// broadcasts a public xp_announcement alongside the targeted delivery.
type XPAwardPayload struct {
	Amount   int    `json:"amount"`
	Reason   string `json:"reason,omitempty"`
	Announce bool   `json:"announce,omitempty"`
}

// ConnectedPayload greets a freshly accepted client.
type ConnectedPayload struct {
	ID              string     `json:"id"`
	Users           []UserInfo `json:"users"`
	EncounterActive bool       `json:"encounterActive"`
}

// GameStatePayload is the shared session state snapshot returned to
// get_game_state.
type GameStatePayload struct {
	ActiveEncounter json.RawMessage `json:"activeEncounter,omitempty"`
	InitiativeOrder json.RawMessage `json:"initiativeOrder,omitempty"`
	SharedNotes     []Note          `json:"sharedNotes"`
}

// UserRefPayload carries just a session id (user_joined, user_left).
type UserRefPayload struct {
	ID string `json:"id"`
}

// PongPayload carries the server time back to a ping.
type PongPayload struct {
	Time string `json:"time"`
}

// inboundKinds is the set of kinds the router dispatches on.
var inboundKinds = map[Kind]struct{}{
	KindSetCharacter: {},
	KindSetDMMode:    {},
	KindGetUsers:     {},
	KindDiceRoll:     {},
	KindCodexSync:    {},
	KindCodexUpdate:  {},
	KindBestiarySync: {},
	KindBestiaryUpd:  {},
	KindQuestSync:    {},
	KindQuestUpdate:  {},
	KindMapSync:      {},
	KindMapUpdate:    {},
	KindMapPinAdd:    {},
	KindMapPinRemove: {},
	KindMessage:      {},
	KindContactSync:  {},
	KindMessageSync:  {},
	KindCombatUpdate: {},
	KindEncounter:    {},
	KindInitiative:   {},
	KindXPAward:      {},
	KindSharedNote:   {},
	KindNoteSync:     {},
	KindPing:         {},
	KindGetGameState: {},
}

// KnownInbound reports whether k is a kind the relay routes.
func (k Kind) KnownInbound() bool {
	_, ok := inboundKinds[k]
	return ok
}

// DMOnly reports whether k requires the sender to hold the DM role.
func (k Kind) DMOnly() bool {
	switch k {
	case KindEncounter, KindInitiative, KindXPAward, KindSharedNote:
		return true
	}
	return false
}
