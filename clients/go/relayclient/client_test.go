package relayclient

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/solstice-os/relay/protocol"
)

func TestOnOff_SameReferenceUnsubscribes(t *testing.T) {
	c := New("ws://example.invalid/ws")

	var firstCalls, secondCalls int
	first := func(protocol.Envelope) { firstCalls++ }
	second := func(protocol.Envelope) { secondCalls++ }

	c.On(protocol.KindDiceRoll, first)
	c.On(protocol.KindDiceRoll, second)

	c.dispatch(protocol.Envelope{Kind: protocol.KindDiceRoll})
	if firstCalls != 1 || secondCalls != 1 {
		t.Fatalf("calls = %d,%d after one dispatch, want 1,1", firstCalls, secondCalls)
	}

	c.Off(protocol.KindDiceRoll, first)
	c.dispatch(protocol.Envelope{Kind: protocol.KindDiceRoll})
	if firstCalls != 1 {
		t.Errorf("unsubscribed handler still called (%d calls)", firstCalls)
	}
	if secondCalls != 2 {
		t.Errorf("remaining handler calls = %d, want 2", secondCalls)
	}
}

func TestDispatch_OnlyMatchingKind(t *testing.T) {
	c := New("ws://example.invalid/ws")

	var rolls, chats int
	c.On(protocol.KindDiceRoll, func(protocol.Envelope) { rolls++ })
	c.On(protocol.KindMessage, func(protocol.Envelope) { chats++ })

	c.dispatch(protocol.Envelope{Kind: protocol.KindDiceRoll})

	if rolls != 1 || chats != 0 {
		t.Errorf("rolls=%d chats=%d, want 1,0", rolls, chats)
	}
}

func TestDisconnect_DisablesAutoReconnect(t *testing.T) {
	c := New("ws://example.invalid/ws")

	c.Disconnect()

	if c.attempts != maxReconnectAttempts {
		t.Fatalf("attempts = %d, want the ceiling %d", c.attempts, maxReconnectAttempts)
	}
	if c.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", c.State())
	}
}

func TestScheduleReconnect_TerminalAfterCeiling(t *testing.T) {
	c := New("ws://example.invalid/ws")
	c.attempts = maxReconnectAttempts

	var disconnected int
	c.On(EventDisconnected, func(protocol.Envelope) { disconnected++ })

	c.scheduleReconnect()

	if c.State() != StateDisconnected {
		t.Errorf("state = %v, want terminal disconnected", c.State())
	}
	if disconnected != 1 {
		t.Errorf("disconnected events = %d, want 1", disconnected)
	}
}

// TestReconnect_ReannouncesIdentity drops the first connection from the
// server side and verifies the client dials again on its own, repeats
// its identity announcements on the new connection, and resets the
// retry counter.
func TestReconnect_ReannouncesIdentity(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	type inbound struct {
		conn int
		env  protocol.Envelope
	}
	msgs := make(chan inbound, 16)
	conns := make(chan *websocket.Conn, 2)
	var accepted int32

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := int(atomic.AddInt32(&accepted, 1))
		conns <- conn
		for {
			var env protocol.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			msgs <- inbound{conn: n, env: env}
		}
	}))
	defer ts.Close()

	recvMsg := func() inbound {
		t.Helper()
		select {
		case m := <-msgs:
			return m
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for a relay-bound message")
			return inbound{}
		}
	}
	acceptConn := func() *websocket.Conn {
		t.Helper()
		select {
		case conn := <-conns:
			return conn
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for a connection")
			return nil
		}
	}

	c := New("ws" + strings.TrimPrefix(ts.URL, "http") + "/ws")
	c.retryDelay = 20 * time.Millisecond
	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Disconnect()

	first := acceptConn()
	if err := c.SetCharacter(protocol.CharacterSummary{Name: "Vex"}); err != nil {
		t.Fatalf("set character: %v", err)
	}
	if err := c.SetDMMode(true); err != nil {
		t.Fatalf("set dm mode: %v", err)
	}
	for _, want := range []protocol.Kind{protocol.KindSetCharacter, protocol.KindSetDMMode} {
		if m := recvMsg(); m.conn != 1 || m.env.Kind != want {
			t.Fatalf("first connection got conn=%d kind=%q, want 1/%q", m.conn, m.env.Kind, want)
		}
	}

	// Unexpected close from the relay side; the client must come back
	// on its own and repeat both announcements.
	first.Close()
	acceptConn()

	for _, want := range []protocol.Kind{protocol.KindSetCharacter, protocol.KindSetDMMode} {
		m := recvMsg()
		if m.conn != 2 {
			t.Fatalf("announcement arrived on connection %d, want the new one", m.conn)
		}
		if m.env.Kind != want {
			t.Fatalf("re-announced kind = %q, want %q", m.env.Kind, want)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.State() != StateConnected {
		if time.Now().After(deadline) {
			t.Fatalf("state = %v after reconnect, want connected", c.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.mu.Lock()
	attempts := c.attempts
	c.mu.Unlock()
	if attempts != 0 {
		t.Errorf("attempts = %d after successful reconnect, want 0", attempts)
	}
}

func TestSend_FailsWhenNotConnected(t *testing.T) {
	c := New("ws://example.invalid/ws")

	if err := c.Ping(); err == nil {
		t.Error("Send on a disconnected client returned nil error")
	}
}
