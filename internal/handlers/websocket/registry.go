package websocket

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/redis-developer/beats-by-redis/internal/metrics"
)

// Registry holds the set of live viewer connections. It is an explicit
// object passed to whoever needs to publish, rather than ambient state, so
// tests can substitute their own.
type Registry struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[*websocket.Conn]struct{})}
}

func (r *Registry) Add(conn *websocket.Conn) {
	r.mu.Lock()
	r.conns[conn] = struct{}{}
	r.mu.Unlock()
	metrics.ConnectedViewers.Inc()
}

// Remove drops a connection; removing an absent connection is a no-op.
func (r *Registry) Remove(conn *websocket.Conn) {
	r.mu.Lock()
	_, present := r.conns[conn]
	delete(r.conns, conn)
	r.mu.Unlock()
	if present {
		metrics.ConnectedViewers.Dec()
	}
}

// Snapshot returns the current members; safe to iterate while connections
// come and go.
func (r *Registry) Snapshot() []*websocket.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]*websocket.Conn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
