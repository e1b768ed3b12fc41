package resource

import (
	"errors"
	"fmt"
	"sync"
)

// InstanceManager maps stable keys to live resources. It is read and
// written from the pipeline worker goroutine only; external callers
// (the control API) never touch it directly.
type InstanceManager struct {
	mu    sync.RWMutex
	byKey map[string]Resource
	order []string // insertion order, for stable Serialize output
}

// NewInstanceManager returns an empty manager.
func NewInstanceManager() *InstanceManager {
	return &InstanceManager{byKey: make(map[string]Resource)}
}

// Set registers resource under key, last-write-wins. Intentionally
// permissive: a node may overwrite its own resource every tick. It is
// a bug (and rejected) for resource.Key() to disagree with key.
func (m *InstanceManager) Set(key string, r Resource) error {
	if r.Key() != key {
		return fmt.Errorf("resource instance manager: key mismatch: set under %q but resource.Key() = %q", key, r.Key())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byKey[key]; !exists {
		m.order = append(m.order, key)
	}
	m.byKey[key] = r
	return nil
}

// Get returns the resource registered under key, or (nil, false).
func (m *InstanceManager) Get(key string) (Resource, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byKey[key]
	return r, ok
}

// ClearAll disposes every registered resource and empties the map.
// Used when a pipeline restarts so stale state from a previous run
// never leaks into the new one.
func (m *InstanceManager) ClearAll() {
	m.mu.Lock()
	resources := make([]Resource, 0, len(m.byKey))
	for _, r := range m.byKey {
		resources = append(resources, r)
	}
	m.byKey = make(map[string]Resource)
	m.order = nil
	m.mu.Unlock()

	for _, r := range resources {
		r.Dispose()
	}
}

// Serialize concatenates Serialize() of every registered resource in
// insertion order, suitable for snapshotting the full pipeline state.
// A resource that fails to serialize is skipped and its error is
// returned alongside whatever records the others produced, so one
// misconfigured resource (e.g. an unknown.v1 with no serialize
// function) never blanks out the rest of the snapshot.
func (m *InstanceManager) Serialize() ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	var errs []error
	for _, key := range m.order {
		r, ok := m.byKey[key]
		if !ok {
			continue
		}
		recs, err := r.Serialize()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, recs...)
	}
	if len(errs) > 0 {
		return out, errors.Join(errs...)
	}
	return out, nil
}

// Len returns the number of top-level registered resources (siblings
// are not counted separately; they belong to their parent's entry).
func (m *InstanceManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byKey)
}
