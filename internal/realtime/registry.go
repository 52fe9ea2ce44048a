// Package realtime tracks live websocket connections and pushes new
// notifications to them. Connection state is process-local by design; a user
// connected to another instance reads the notification on next poll.
package realtime

import "sync"

// Registry is the bidirectional connection index: user → connections for
// push fan-out, connection → user for cleanup on disconnect. One mutex guards
// both maps so they can never disagree.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[*Conn]struct{}
	byConn map[*Conn]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: map[string]map[*Conn]struct{}{},
		byConn: map[*Conn]string{},
	}
}

// Add registers a connection for a user.
func (r *Registry) Add(userID string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.byUser[userID]
	if !ok {
		conns = map[*Conn]struct{}{}
		r.byUser[userID] = conns
	}
	conns[c] = struct{}{}
	r.byConn[c] = userID
}

// Remove unregisters a connection, dropping the user's entry entirely when it
// was their last one. Removing an unknown connection is a no-op.
func (r *Registry) Remove(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.byConn[c]
	if !ok {
		return
	}
	delete(r.byConn, c)
	conns := r.byUser[userID]
	delete(conns, c)
	if len(conns) == 0 {
		delete(r.byUser, userID)
	}
}

// Connections returns a snapshot of the user's live connections.
func (r *Registry) Connections(userID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Conn, 0, len(r.byUser[userID]))
	for c := range r.byUser[userID] {
		conns = append(conns, c)
	}
	return conns
}

// Count returns the total number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// UserCount returns how many distinct users are connected.
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
