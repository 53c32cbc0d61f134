package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/solstice-os/relay/protocol"
)

const (
	// writeWait bounds every outbound write; a connection that cannot
	// accept a frame within this window is treated as dead.
	writeWait = 10 * time.Second

	// sendQueueSize bounds the per-client outbound queue. A client that
	// falls this far behind is dropped rather than allowed to stall
	// broadcasts for everyone else.
	sendQueueSize = 64

	maxMessageSize = 64 * 1024
)

// wire is the subset of *websocket.Conn the relay writes through.
// Tests substitute an in-memory implementation.
type wire interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is the server-side record of one live connection: its
// identity, self-reported role, liveness flag, and outbound queue.
// Exactly one connection owns a Client; the Registry owns its
// lifecycle.
type Client struct {
	ID          string
	RemoteAddr  string
	ConnectedAt time.Time

	conn      wire
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	character *protocol.CharacterSummary
	isDM      bool
	alive     bool
}

func newClient(conn wire, remoteAddr string) *Client {
	return &Client{
		ID:          uuid.NewString(),
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now().UTC(),
		conn:        conn,
		send:        make(chan []byte, sendQueueSize),
		done:        make(chan struct{}),
		alive:       true,
	}
}

// enqueue hands a serialized frame to the write pump. It reports false
// when the client is closing or its queue is full; the caller routes
// that through the same drop path as a liveness timeout.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// writePump drains the outbound queue onto the connection. onFail is
// invoked at most once, when a write errors or times out.
func (c *Client) writePump(onFail func(*Client, string)) {
	for {
		select {
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				onFail(c, "write failed: "+err.Error())
				return
			}
		}
	}
}

// ping sends a liveness probe control frame. Control frames may be
// written concurrently with the write pump.
func (c *Client) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// close tears down the connection. Idempotent.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// SetCharacter records the self-reported character summary.
func (c *Client) SetCharacter(cs *protocol.CharacterSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.character = cs
}

// Character returns the last self-reported character summary, or nil.
func (c *Client) Character() *protocol.CharacterSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.character
}

// SetDM records the self-declared DM flag.
func (c *Client) SetDM(isDM bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isDM = isDM
}

// IsDM reports the self-declared DM flag.
func (c *Client) IsDM() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isDM
}

// SetAlive updates the liveness flag. The monitor clears it before
// each probe; the pong handler sets it.
func (c *Client) SetAlive(alive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = alive
}

// Alive reports whether the client replied to the last probe.
func (c *Client) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

// DisplayName is the character name when set, otherwise the session id.
func (c *Client) DisplayName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.character != nil && c.character.Name != "" {
		return c.character.Name
	}
	return c.ID
}

// Info returns the roster entry for this client.
func (c *Client) Info() protocol.UserInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.UserInfo{
		ID:          c.ID,
		Character:   c.character,
		IsDM:        c.isDM,
		ConnectedAt: c.ConnectedAt,
	}
}
