package resource

import (
	"sync"
	"time"

	"github.com/nugget/pipelined/internal/dispatch"
)

// Base implements the pool/version/serialize bookkeeping shared by
// every kind. Kind implementations embed Base and supply their own
// Serialize/Dispose (calling Record/DisposeSiblings as needed) plus
// whatever kind-specific encoding Serialize requires.
type Base struct {
	mu sync.Mutex

	schema string
	name   string
	scopes []string
	key    string

	poolSize *int
	pool     []DataItem
	version  int64

	siblings []Resource

	dispatcher *dispatch.Dispatcher
}

// NewBase constructs the shared bookkeeping for a resource of the
// given schema. It does not set any initial data; callers that want
// the constructor's seed value to produce a resource_updated
// notification (per the engine's chosen behavior for the "fire on
// initial setData" open question) call SetData explicitly after
// NewBase returns.
func NewBase(schema string, cfg Config, d *dispatch.Dispatcher) *Base {
	b := &Base{
		schema:     schema,
		name:       cfg.Name,
		scopes:     append([]string(nil), cfg.Scopes...),
		poolSize:   cfg.PoolSize,
		dispatcher: d,
	}
	b.key = Key(b.scopes, b.name)
	return b
}

func (b *Base) Key() string      { return b.key }
func (b *Base) Schema() string   { return b.schema }
func (b *Base) Name() string     { return b.name }
func (b *Base) Scopes() []string { return append([]string(nil), b.scopes...) }

// SetData appends data as a new DataItem, evicting the oldest entry
// first if the pool is at capacity, and emits resource_updated.
func (b *Base) SetData(data any) (DataItem, error) {
	b.mu.Lock()
	b.version++
	item := DataItem{Data: data, Version: b.version, Timestamp: time.Now()}

	if b.poolSize != nil && len(b.pool) >= *b.poolSize {
		// FIFO eviction: drop the oldest entry to make room.
		b.pool = append(b.pool[1:], item)
	} else {
		b.pool = append(b.pool, item)
	}
	key := b.key
	b.mu.Unlock()

	if b.dispatcher != nil {
		b.dispatcher.Emit(EventResourceUpdated, DataToken{
			Key:       key,
			Version:   item.Version,
			Timestamp: item.Timestamp,
		})
	}
	return item, nil
}

func (b *Base) GetItem(version *int64) (DataItem, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pool) == 0 {
		return DataItem{}, false
	}
	if version == nil {
		return b.pool[len(b.pool)-1], true
	}
	for _, it := range b.pool {
		if it.Version == *version {
			return it, true
		}
	}
	return DataItem{}, false
}

func (b *Base) GetData(version *int64) (any, bool) {
	item, ok := b.GetItem(version)
	if !ok {
		return nil, false
	}
	return item.Data, true
}

func (b *Base) CreateToken() (DataToken, bool) {
	item, ok := b.GetItem(nil)
	if !ok {
		return DataToken{}, false
	}
	return DataToken{Key: b.key, Version: item.Version, Timestamp: item.Timestamp}, true
}

func (b *Base) Siblings() []Resource {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Resource(nil), b.siblings...)
}

// Version returns the current version counter without requiring a
// pool entry to exist (version starts at 0, pre-increment).
func (b *Base) Version() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// PoolLen returns the current number of entries held in the pool.
func (b *Base) PoolLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pool)
}

// Record builds this resource's Record with the given kind-specific
// data encoding, filling in the common key/schema/name/scopes/version
// fields from the latest pool item.
func (b *Base) Record(data any) Record {
	item, _ := b.GetItem(nil)
	return Record{
		Key:       b.key,
		Schema:    b.schema,
		Name:      b.name,
		Scopes:    b.Scopes(),
		Version:   item.Version,
		Timestamp: item.Timestamp,
		Data:      data,
	}
}

// DisposeSiblings calls Dispose on every current sibling and clears
// the list. Safe to call more than once.
func (b *Base) DisposeSiblings() {
	b.mu.Lock()
	siblings := b.siblings
	b.siblings = nil
	b.mu.Unlock()
	for _, s := range siblings {
		s.Dispose()
	}
}

// SetSiblings replaces the sibling list. Collection kinds call this
// from their reconciliation logic.
func (b *Base) SetSiblings(s []Resource) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.siblings = s
}
