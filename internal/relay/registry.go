package relay

import (
	"sync"

	"github.com/solstice-os/relay/protocol"
)

// Registry owns the set of live clients. It is the single component
// with the right to add or remove sessions; everything else works from
// snapshots.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Register stores a client under its id.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
}

// Lookup returns the client for an id. Unknown ids return absence,
// never an error.
func (r *Registry) Lookup(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// Unregister removes an id and reports whether it was present.
// Idempotent: a double unregister is a no-op returning false.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return false
	}
	delete(r.clients, id)
	return true
}

// Snapshot returns a copy of the current client set, safe to iterate
// while the registry mutates concurrently.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Len returns the number of live clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Roster returns the user info of every live client.
func (r *Registry) Roster() []protocol.UserInfo {
	snapshot := r.Snapshot()
	users := make([]protocol.UserInfo, 0, len(snapshot))
	for _, c := range snapshot {
		users = append(users, c.Info())
	}
	return users
}
