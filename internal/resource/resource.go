// Package resource implements the engine's versioned, pool-bounded
// resource abstraction: typed artifacts produced by one node and
// consumed by others via a stable string key, never a direct reference.
package resource

import (
	"fmt"
	"time"
)

// DataItem is one historical value of a resource, created only by
// SetData and immutable once appended.
type DataItem struct {
	Data      any       `json:"data"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// DataToken is a lightweight change notification: enough to know a
// resource changed and which version it is now at, without carrying
// the payload itself.
type DataToken struct {
	Key       string    `json:"key"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// EventResourceUpdated is the dispatch event name emitted by every
// SetData call.
const EventResourceUpdated = "resource_updated"

// Record is the authoritative wire shape produced by Serialize.
type Record struct {
	Key       string    `json:"key"`
	Schema    string    `json:"schema"`
	Name      string    `json:"name"`
	Scopes    []string  `json:"scopes"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Resource is the contract every resource kind implements. A resource
// is mutated only by the node that owns it (sole writer); other nodes
// read it by Key only.
type Resource interface {
	// Key returns join(Scopes, ".") + "." + Name. Immutable after
	// construction.
	Key() string
	Schema() string
	Name() string
	Scopes() []string

	// SetData increments Version, evicts the oldest pool entry if the
	// pool is full, appends a new DataItem, emits resource_updated on
	// the dispatcher carrying the latest DataToken, and returns the
	// appended item. data == nil is valid.
	SetData(data any) (DataItem, error)

	// GetData returns the data at the given version, or the latest if
	// version is nil. Returns (nil, false) if not found.
	GetData(version *int64) (any, bool)

	// GetItem is like GetData but returns the whole DataItem.
	GetItem(version *int64) (DataItem, bool)

	// CreateToken returns the DataToken of the latest item, or
	// (DataToken{}, false) if the resource has never had data set.
	CreateToken() (DataToken, bool)

	// Siblings returns the current sibling list; may be empty.
	Siblings() []Resource

	// Serialize returns this resource's record followed by each
	// sibling's serialized records, in order. A kind that cannot
	// produce a record (e.g. unknown.v1 with no serialize function
	// registered) returns a SerializeError instead of a success record.
	Serialize() ([]Record, error)

	// Dispose releases kind-specific external state and disposes all
	// siblings. Idempotent.
	Dispose()
}

// Config is the constructor argument shared by every kind. PoolSize
// nil means unbounded; PoolSize == 0 is rejected (see InvalidConfigError).
type Config struct {
	Name     string
	Scopes   []string
	PoolSize *int
	Data     any

	// GenerateSiblings requests eager sibling construction for
	// collection kinds on construction.
	GenerateSiblings bool
}

// Key computes the derived, immutable resource key from scopes+name.
func Key(scopes []string, name string) string {
	out := ""
	for _, s := range scopes {
		out += s + "."
	}
	return out + name
}

// InvalidConfigError reports a missing or mis-typed required
// construction field. It aborts the operation it was raised from.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid-config: %s: %s", e.Field, e.Reason)
}

// SerializeError reports that a resource's Serialize could not
// produce a record for Key, with Reason describing why.
type SerializeError struct {
	Key    string
	Reason string
}

func (e *SerializeError) Error() string {
	return fmt.Sprintf("serialize: %s: %s", e.Key, e.Reason)
}

// NotFoundError reports a schema, key or node kind lookup failure.
type NotFoundError struct {
	Kind string // "schema", "key" or "node kind"
	What string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not-found: %s %q", e.Kind, e.What)
}

// ValidateConfig checks the fields every kind requires regardless of
// schema: Name must be non-empty, Scopes must be non-nil, and PoolSize
// (if provided) must not be zero — a zero-size pool can never hold a
// "latest" item, which would make GetData/CreateToken permanently
// unusable, so it is rejected at construction rather than silently
// producing a resource that looks alive but can never report data.
func ValidateConfig(cfg Config) error {
	if cfg.Name == "" {
		return &InvalidConfigError{Field: "name", Reason: "must be non-empty"}
	}
	if cfg.Scopes == nil {
		return &InvalidConfigError{Field: "scopes", Reason: "must be provided (may be empty slice)"}
	}
	if cfg.PoolSize != nil && *cfg.PoolSize == 0 {
		return &InvalidConfigError{Field: "pool_size", Reason: "0 is invalid; omit for unbounded or use >= 1"}
	}
	return nil
}
