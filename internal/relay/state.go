package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/solstice-os/relay/protocol"
)

// State is the shared session state: the active encounter, the
// initiative order, and the append-only shared notes log. One instance
// lives for the process lifetime; all writers are DM-gated router
// handlers. Nothing here is persisted — state is best-effort and lost
// on restart.
type State struct {
	mu         sync.Mutex
	encounter  json.RawMessage
	initiative json.RawMessage
	notes      []protocol.Note
}

// NewState returns an empty shared session state.
func NewState() *State {
	return &State{}
}

// Snapshot returns a read-only copy of the shared state.
func (s *State) Snapshot() protocol.GameStatePayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := protocol.GameStatePayload{
		SharedNotes: make([]protocol.Note, len(s.notes)),
	}
	copy(snap.SharedNotes, s.notes)
	if s.encounter != nil {
		snap.ActiveEncounter = append(json.RawMessage(nil), s.encounter...)
	}
	if s.initiative != nil {
		snap.InitiativeOrder = append(json.RawMessage(nil), s.initiative...)
	}
	return snap
}

// SetEncounter replaces the active encounter payload wholesale.
func (s *State) SetEncounter(payload json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encounter = append(json.RawMessage(nil), payload...)
}

// ClearEncounter ends the active encounter.
func (s *State) ClearEncounter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encounter = nil
}

// EncounterActive reports whether an encounter is in progress.
func (s *State) EncounterActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.encounter) > 0
}

// SetInitiative replaces the initiative order wholesale.
func (s *State) SetInitiative(order json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initiative = append(json.RawMessage(nil), order...)
}

// AppendNote adds a timestamped note to the shared log and returns it.
func (s *State) AppendNote(author, text string) protocol.Note {
	note := protocol.Note{
		ID:        ulid.Make().String(),
		Author:    author,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, note)
	return note
}
