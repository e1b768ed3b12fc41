package node

import (
	"sync"

	"github.com/nugget/pipelined/internal/resource"
)

// Registry maps a node kind name (a plugin's user-visible identifier)
// to the Constructor that builds it. A systems-language port of the
// original manifest-driven "resolve module#Class from a directory"
// mechanism, per the engine's design note: this only needs to answer
// "given a kind name, return a constructor", which compile-time
// registration does without any dynamic loading surface.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register maps name to ctor. A later Register for the same name
// replaces the earlier one.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = ctor
}

// Build constructs a Node of kind cfg.Name. Returns a NotFoundError
// wrapped with the kind name if it is unregistered.
func (r *Registry) Build(ctx *Context, cfg Config) (Node, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, &resource.NotFoundError{Kind: "node kind", What: cfg.Name}
	}
	return ctor(ctx, cfg)
}

// Kinds returns every registered kind name, for diagnostics.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ctors))
	for k := range r.ctors {
		out = append(out, k)
	}
	return out
}
