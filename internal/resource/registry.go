package resource

import (
	"fmt"
	"sync"

	"github.com/nugget/pipelined/internal/dispatch"
)

// Constructor builds a Resource of one schema from a Config. creator is
// passed through so kinds that rehydrate peers (e.g. a collection
// recreating siblings from FromSerialized) can call creator.Create
// without a package import cycle.
type Constructor func(creator *Creator, cfg Config) (Resource, error)

// FromSerializedFunc rebuilds a resource of one schema from its
// serialized Record, using the creator's current context. Kinds whose
// Data is a reference rather than the payload itself (image.v1's
// download URL) dereference it here to rehydrate the real bytes.
type FromSerializedFunc func(creator *Creator, rec Record) (Resource, error)

// Creator maps schema identifiers to constructors and hands out
// context-bound instances. Its context carries the event dispatcher
// every resource needs for update notifications, and itself, so a
// resource can rehydrate peers via Create.
type Creator struct {
	mu            sync.RWMutex
	constructors  map[string]Constructor
	fromSerialized map[string]FromSerializedFunc
	Dispatcher    *dispatch.Dispatcher
}

// NewCreator builds a Creator bound to the given dispatcher. Schemas
// are registered separately via Register so the set of known kinds is
// explicit at each pipeline start rather than accumulated globally.
func NewCreator(d *dispatch.Dispatcher) *Creator {
	return &Creator{
		constructors:   make(map[string]Constructor),
		fromSerialized: make(map[string]FromSerializedFunc),
		Dispatcher:     d,
	}
}

// Register maps schema to constructor. A later Register for the same
// schema replaces the earlier one.
func (c *Creator) Register(schema string, ctor Constructor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.constructors[schema] = ctor
}

// RegisterFromSerialized maps schema to a rehydration function used by
// FromSerialized. Optional: a schema with no registered function falls
// back to a plain Create(schema, Config{Name, Scopes, Data: rec.Data}).
func (c *Creator) RegisterFromSerialized(schema string, fn FromSerializedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fromSerialized[schema] = fn
}

// FromSerialized rebuilds a fresh resource of rec's schema from rec,
// using a registered FromSerializedFunc if one exists, else a plain
// Create call seeded with rec's name/scopes/data.
func (c *Creator) FromSerialized(rec Record) (Resource, error) {
	c.mu.RLock()
	fn, ok := c.fromSerialized[rec.Schema]
	c.mu.RUnlock()
	if ok {
		return fn(c, rec)
	}
	return c.Create(rec.Schema, Config{Name: rec.Name, Scopes: rec.Scopes, Data: rec.Data})
}

// Create looks up the constructor for schema and builds a resource
// from cfg. Returns a NotFoundError if schema is unregistered.
func (c *Creator) Create(schema string, cfg Config) (Resource, error) {
	c.mu.RLock()
	ctor, ok := c.constructors[schema]
	c.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Kind: "schema", What: schema}
	}
	return ctor(c, cfg)
}

// Registered reports whether schema has a constructor registered.
func (c *Creator) Registered(schema string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.constructors[schema]
	return ok
}

// Schemas returns every registered schema id, for diagnostics.
func (c *Creator) Schemas() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.constructors))
	for s := range c.constructors {
		out = append(out, s)
	}
	return out
}

// MustRegisterAll registers every (schema, constructor) pair in kinds,
// panicking on a duplicate. Intended for the one place at startup that
// wires the full known-kind set (see kinds.RegisterAll) so a typo is
// caught immediately rather than surfacing later as a confusing
// not-found error.
func (c *Creator) MustRegisterAll(kinds map[string]Constructor) {
	for schema, ctor := range kinds {
		if c.Registered(schema) {
			panic(fmt.Sprintf("resource: schema %q registered twice", schema))
		}
		c.Register(schema, ctor)
	}
}
