package server

import (
	"sync"

	"github.com/google/uuid"

	"github.com/rybkr/rewind/internal/timeline"
)

// registry hands out opaque ids for nodes. A node keeps its id for the life
// of the server. Nodes replaced by an invalidation keep resolving until the
// server stops.
type registry struct {
	mu    sync.RWMutex
	ids   map[timeline.Node]string
	nodes map[string]timeline.Node
}

func newRegistry() *registry {
	return &registry{
		ids:   make(map[timeline.Node]string),
		nodes: make(map[string]timeline.Node),
	}
}

func (r *registry) handle(n timeline.Node) string {
	r.mu.RLock()
	id, ok := r.ids[n]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[n]; ok {
		return id
	}
	id = uuid.NewString()
	r.ids[n] = id
	r.nodes[id] = n
	return id
}

func (r *registry) lookup(id string) (timeline.Node, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	return n, ok
}
