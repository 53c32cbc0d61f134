// Package relayclient provides a Go client for the session relay: one
// logical connection that re-establishes itself with bounded retries,
// plus a typed local event stream decoupled from the transport.
package relayclient

import (
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/solstice-os/relay/protocol"
)

const (
	// maxReconnectAttempts bounds automatic reconnects after an
	// unexpected close. Past the ceiling the client stays disconnected
	// until Connect is called again.
	maxReconnectAttempts = 5

	reconnectDelay = 3 * time.Second
)

// EventDisconnected is the local-only kind emitted when the connection
// drops and no further automatic reconnect will run.
const EventDisconnected protocol.Kind = "disconnected"

// ConnState is the connection lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Handler receives envelopes republished on the local event stream.
type Handler func(protocol.Envelope)

// Client wraps one logical relay connection.
type Client struct {
	url        string
	dialer     *websocket.Dialer
	retryDelay time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	state     ConnState
	attempts  int
	sessionID string
	character *protocol.CharacterSummary
	dmMode    bool
	dmSet     bool

	wmu sync.Mutex // serializes websocket writes

	hmu      sync.Mutex
	handlers map[protocol.Kind][]Handler
}

// New creates a client for the given websocket URL
// (e.g. ws://localhost:8765/ws).
func New(url string) *Client {
	return &Client{
		url:        url,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		retryDelay: reconnectDelay,
		handlers:   make(map[protocol.Kind][]Handler),
	}
}

// Connect dials the relay. On success the retry counter resets and any
// previously set identity is re-announced: the relay does not remember
// a client across reconnects.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	conn, _, err := c.dialer.Dial(c.url, nil)
	if err != nil {
		c.scheduleReconnect()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	character := c.character
	dmSet, dmMode := c.dmSet, c.dmMode
	c.mu.Unlock()

	go c.readLoop(conn)

	if character != nil {
		if err := c.SetCharacter(*character); err != nil {
			return err
		}
	}
	if dmSet {
		if err := c.SetDMMode(dmMode); err != nil {
			return err
		}
	}
	return nil
}

// Disconnect closes the connection deliberately. The retry counter is
// set to the ceiling first so the automatic-reconnect path never fires
// for an intentional disconnect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.attempts = maxReconnectAttempts
	c.state = StateDisconnected
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

// State returns the current lifecycle state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the id the relay assigned on the last connect, or
// empty before the first connected envelope arrives.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// On subscribes a handler to a message kind.
func (c *Client) On(kind protocol.Kind, h Handler) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.handlers[kind] = append(c.handlers[kind], h)
}

// Off unsubscribes the same handler reference passed to On.
func (c *Client) Off(kind protocol.Kind, h Handler) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	ptr := reflect.ValueOf(h).Pointer()
	hs := c.handlers[kind]
	for i, existing := range hs {
		if reflect.ValueOf(existing).Pointer() == ptr {
			c.handlers[kind] = append(hs[:i], hs[i+1:]...)
			return
		}
	}
}

// Send marshals and writes an envelope to the relay.
func (c *Client) Send(env protocol.Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(env)
}

// SetCharacter announces the character summary and remembers it for
// re-announcement after reconnects.
func (c *Client) SetCharacter(cs protocol.CharacterSummary) error {
	c.mu.Lock()
	c.character = &cs
	c.mu.Unlock()
	return c.Send(newEnvelope(protocol.KindSetCharacter, cs))
}

// SetDMMode declares or renounces the DM role.
func (c *Client) SetDMMode(enabled bool) error {
	c.mu.Lock()
	c.dmMode = enabled
	c.dmSet = true
	c.mu.Unlock()
	return c.Send(newEnvelope(protocol.KindSetDMMode, protocol.DMModePayload{Enabled: enabled}))
}

// Roll broadcasts a dice roll to the whole table, sender included.
func (c *Client) Roll(payload any) error {
	return c.Send(newEnvelope(protocol.KindDiceRoll, payload))
}

// Chat broadcasts a chat message to everyone.
func (c *Client) Chat(payload any) error {
	return c.Send(newEnvelope(protocol.KindMessage, payload))
}

// ChatTo sends a chat message to one client; the relay echoes it back.
func (c *Client) ChatTo(targetID string, payload any) error {
	env := newEnvelope(protocol.KindMessage, payload)
	env.Target = targetID
	return c.Send(env)
}

// ChatDM sends a chat message to DM sessions only.
func (c *Client) ChatDM(payload any) error {
	env := newEnvelope(protocol.KindMessage, payload)
	env.ToDM = true
	return c.Send(env)
}

// Ping requests a pong with the server timestamp.
func (c *Client) Ping() error {
	return c.Send(protocol.Envelope{Kind: protocol.KindPing})
}

// RequestUsers asks for the current roster (reply goes to this client
// only).
func (c *Client) RequestUsers() error {
	return c.Send(protocol.Envelope{Kind: protocol.KindGetUsers})
}

// RequestGameState asks for the shared session state snapshot.
func (c *Client) RequestGameState() error {
	return c.Send(protocol.Envelope{Kind: protocol.KindGetGameState})
}

func newEnvelope(kind protocol.Kind, payload any) protocol.Envelope {
	env := protocol.Envelope{Kind: kind}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			env.Payload = raw
		}
	}
	return env
}

// readLoop demultiplexes inbound envelopes onto the local event stream
// until the connection drops.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn)
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		if env.Kind == protocol.KindConnected {
			var payload protocol.ConnectedPayload
			if err := json.Unmarshal(env.Payload, &payload); err == nil {
				c.mu.Lock()
				c.sessionID = payload.ID
				c.mu.Unlock()
			}
		}

		c.dispatch(env)
	}
}

func (c *Client) dispatch(env protocol.Envelope) {
	c.hmu.Lock()
	hs := append([]Handler(nil), c.handlers[env.Kind]...)
	c.hmu.Unlock()
	for _, h := range hs {
		h(env)
	}
}

// handleClose runs the unexpected-close path: schedule a reconnect
// while attempts remain, otherwise settle in the terminal disconnected
// state.
func (c *Client) handleClose(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		// A deliberate Disconnect or a newer connection already took
		// over; nothing to do for this stale reader.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()
	conn.Close()

	c.scheduleReconnect()
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.attempts >= maxReconnectAttempts {
		c.state = StateDisconnected
		c.mu.Unlock()
		c.dispatch(protocol.Envelope{Kind: EventDisconnected})
		return
	}
	c.attempts++
	c.state = StateReconnecting
	delay := c.retryDelay
	c.mu.Unlock()

	time.AfterFunc(delay, func() {
		// Connect reschedules on failure until attempts run out.
		c.Connect()
	})
}
