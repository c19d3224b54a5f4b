package timeline

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rybkr/rewind/internal/metrics"
)

// LoadState is the expansion state of a single node.
type LoadState int

const (
	Unexpanded LoadState = iota
	Expanding
	Expanded
	Leaf
)

func (s LoadState) String() string {
	switch s {
	case Unexpanded:
		return "unexpanded"
	case Expanding:
		return "expanding"
	case Expanded:
		return "expanded"
	case Leaf:
		return "leaf"
	default:
		return "unknown"
	}
}

type fetchFunc func(ctx context.Context) ([]Node, error)

// expansion caches a node's children and collapses concurrent fetches into
// one. Failed fetches are not cached. Each invalidation starts a new
// generation; a fetch finishing for an older generation is handed to its
// waiters but never stored.
type expansion struct {
	kind Kind

	mu       sync.Mutex
	children []Node
	loaded   bool
	gen      uint64
	inflight int

	group singleflight.Group
}

func (e *expansion) load(ctx context.Context, fetch fetchFunc) ([]Node, error) {
	e.mu.Lock()
	if e.loaded {
		children := cloneNodes(e.children)
		e.mu.Unlock()
		metrics.RecordSharedLoad(e.kind.String())
		return children, nil
	}
	gen := e.gen
	e.mu.Unlock()

	// The shared fetch must outlive any single waiter.
	fetchCtx := context.WithoutCancel(ctx)

	ch := e.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		e.mu.Lock()
		if e.loaded && e.gen == gen {
			children := e.children
			e.mu.Unlock()
			return children, nil
		}
		e.inflight++
		e.mu.Unlock()

		start := time.Now()
		children, err := fetch(fetchCtx)
		metrics.RecordNodeLoad(e.kind.String(), time.Since(start), err)

		e.mu.Lock()
		defer e.mu.Unlock()
		e.inflight--
		if err != nil {
			return nil, err
		}
		if e.gen == gen {
			e.children = children
			e.loaded = true
		}
		return children, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneNodes(res.Val.([]Node)), nil
	}
}

func (e *expansion) invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.loaded = false
	e.children = nil
}

func (e *expansion) state() LoadState {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.loaded:
		return Expanded
	case e.inflight > 0:
		return Expanding
	default:
		return Unexpanded
	}
}

func cloneNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	copy(out, nodes)
	return out
}
