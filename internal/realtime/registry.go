package realtime

import (
	"fmt"
	"sync"
)

var (
	ErrClientDisconnected = fmt.Errorf("client disconnected")
)

// Registry maps each user to their single live connection. All mutations are
// single-step check-then-set operations under one lock, so there is never a
// window where two connections are both "the" live connection for a user.
// Presence side effects (broadcasts, store writes) belong to the caller; the
// registry is only the map.
type Registry struct {
	mu    sync.Mutex
	conns map[uint]*Client
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[uint]*Client),
	}
}

// Register installs client as the user's live connection and returns the
// connection it displaced, if any. The caller must force-close the prior
// connection (signal, don't wait). Atomic: concurrent Registers for the same
// user serialize, and exactly one ends up installed.
func (r *Registry) Register(userID uint, client *Client) (prior *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior = r.conns[userID]
	if prior == client {
		return nil
	}
	r.conns[userID] = client
	return prior
}

// Resolve returns the user's live connection, if one exists.
func (r *Registry) Resolve(userID uint) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[userID]
	return c, ok
}

// Remove drops the mapping only while it still points at connectionID. A
// stale disconnect racing a takeover finds a different id and no-ops; the
// caller uses the return value to run offline side effects exactly once.
func (r *Registry) Remove(userID uint, connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[userID]
	if !ok || c.id != connectionID {
		return false
	}
	delete(r.conns, userID)
	return true
}

// OnlineUsers snapshots the currently registered user IDs.
func (r *Registry) OnlineUsers() []uint {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]uint, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// Clients snapshots all live connections, one per user.
func (r *Registry) Clients() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients := make([]*Client, 0, len(r.conns))
	for _, c := range r.conns {
		clients = append(clients, c)
	}
	return clients
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
