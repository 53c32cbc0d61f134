package relay

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/solstice-os/relay/protocol"
)

// fakeConn is an in-memory wire for unit tests. Frames delivered
// through the write pump are not exercised here; tests read envelopes
// straight from the client's send queue.
type fakeConn struct {
	mu         sync.Mutex
	pings      int
	closed     bool
	controlErr error
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error { return nil }

func (f *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.controlErr != nil {
		return f.controlErr
	}
	f.pings++
	return nil
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func newTestServer() *Server {
	return NewServer(zerolog.Nop(), NewRegistry(), NewState(), NewStats(), SelfDeclaredAuthorizer{})
}

// join registers a fresh fake-backed client without running pumps.
func join(s *Server) *Client {
	c := newClient(&fakeConn{}, "test")
	s.registry.Register(c)
	return c
}

// recv pops the next queued envelope for a client, if any.
func recv(t *testing.T, c *Client) (protocol.Envelope, bool) {
	t.Helper()
	select {
	case data := <-c.send:
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("queued frame is not an envelope: %v", err)
		}
		return env, true
	default:
		return protocol.Envelope{}, false
	}
}

// recvAll drains every queued envelope for a client.
func recvAll(t *testing.T, c *Client) []protocol.Envelope {
	t.Helper()
	var out []protocol.Envelope
	for {
		env, ok := recv(t, c)
		if !ok {
			return out
		}
		out = append(out, env)
	}
}

// routeJSON routes a raw JSON frame built from a literal.
func routeJSON(s *Server, c *Client, raw string) {
	s.route(c, []byte(raw))
}

// expectError asserts the client's next envelope is an error with the
// given code.
func expectError(t *testing.T, c *Client, code string) {
	t.Helper()
	env, ok := recv(t, c)
	if !ok {
		t.Fatal("expected an error envelope, queue empty")
	}
	if env.Kind != protocol.KindError {
		t.Fatalf("kind = %q, want error", env.Kind)
	}
	var info protocol.ErrorInfo
	if err := json.Unmarshal(env.Payload, &info); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	if info.Code != code {
		t.Fatalf("error code = %q, want %q", info.Code, code)
	}
}
