// Package manifest is the plugin catalog: the set of node kinds this
// deployment ships with, each carrying a human-readable description
// and an optional upstream release reference. Node *resolution* is
// compile-time (internal/node.Registry) per the engine's design note
// against manifest-driven class loading; this package only adds
// metadata on top of kinds that are already registered, and optionally
// enriches that metadata from a GitHub releases listing.
package manifest

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/yuin/goldmark"
)

// Entry describes one node kind available to pipeline configs.
type Entry struct {
	Kind        string // registry key, e.g. "source"
	Summary     string
	Description string // markdown
	SourceRepo  string // "owner/repo", empty if not release-tracked
	SourceTag   string // latest known release tag, filled by Sync
}

// Catalog holds the static, compile-time set of entries plus whatever
// a Sync call has layered on top.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCatalog returns a Catalog seeded with entries, keyed by Kind. A
// duplicate Kind in entries overwrites the earlier one.
func NewCatalog(entries ...Entry) *Catalog {
	c := &Catalog{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		c.entries[e.Kind] = e
	}
	return c
}

// Get returns the entry for kind, or (Entry{}, false).
func (c *Catalog) Get(kind string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[kind]
	return e, ok
}

// List returns every entry, sorted by Kind for stable API output.
func (c *Catalog) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// setSourceTag updates an existing entry's SourceTag, used by Sync.
func (c *Catalog) setSourceTag(kind, tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[kind]
	if !ok {
		return
	}
	e.SourceTag = tag
	c.entries[kind] = e
}

// RenderDocsHTML renders an entry's markdown Description to HTML, for
// the control API's GET /v1/nodes/{kind}/docs endpoint.
func RenderDocsHTML(e Entry) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(e.Description), &buf); err != nil {
		return "", fmt.Errorf("manifest: render docs for %s: %w", e.Kind, err)
	}
	return buf.String(), nil
}
