// Package node implements the engine's node abstraction: the lifecycle
// contract (construct -> prepare -> execute -> next -> dispose) every
// pipeline stage follows, and the kind-name -> constructor registry the
// Pipeline Manager resolves plugin kinds through.
package node

import (
	"strconv"

	"github.com/nugget/pipelined/internal/dispatch"
	"github.com/nugget/pipelined/internal/resource"
	"github.com/nugget/pipelined/internal/store"
)

// Context is everything a node needs at construction: the Resource
// Creator, the Resource Instance Manager, the File Store, and the
// Event Dispatcher. It is shared by every node in one pipeline run and
// is rebuilt fresh on every start (§4.6 "discard stale state").
type Context struct {
	Creator    *resource.Creator
	Instances  *resource.InstanceManager
	FileStore  store.Store
	Dispatcher *dispatch.Dispatcher
}

// Config is a single node descriptor. NextIndex is injected by the
// Pipeline Manager (nil for the tail node, which wraps back to index 0).
type Config struct {
	ID        string
	Name      string // plugin kind name, resolved via Registry
	Config    map[string]any
	NextIndex *int
}

// Node is the contract every plugin kind implements.
type Node interface {
	// Prepare performs one-shot setup: opening devices, publishing
	// long-lived resources, enumerating the environment. Called
	// exactly once per pipeline start. A Prepare failure is fatal and
	// aborts the pipeline start (§7 "fatal").
	Prepare() error

	// Execute performs one tick of work. It must tolerate transient
	// input absence by returning without error; the Pipeline Manager's
	// handler wrapper publishes a returned error as a node_error
	// notification and still calls Next, so the loop continues (§7
	// "transient-io"); it is never fatal.
	Execute() error

	// Next decides the next hop, emitting node_start_{i} on the
	// dispatcher carried in the node's Context. The default
	// implementation most plugins embed (DefaultNext) follows
	// NextIndex; conditional nodes override Next entirely.
	Next()

	// Dispose releases device handles and disposes owned resources.
	// Must be safe to call more than once.
	Dispose()
}

// Constructor builds a Node from a shared Context and its own
// descriptor. Kind implementations register one of these under a
// stable kind name via Registry.Register.
type Constructor func(ctx *Context, cfg Config) (Node, error)

// EventNodeStart returns the dispatch event name for node index i —
// "node_start_{i}" — the hand-off signal §4.1/§4.5 describe.
func EventNodeStart(i int) string {
	return "node_start_" + strconv.Itoa(i)
}

// DefaultNext emits node_start_{NextIndex}, or node_start_0 if
// NextIndex is nil (the tail node closing the loop). Most plugins call
// this directly from their Next method; conditional nodes override
// Next to pick a different hop instead.
func DefaultNext(ctx *Context, cfg Config) {
	if cfg.NextIndex != nil {
		ctx.Dispatcher.Emit(EventNodeStart(*cfg.NextIndex), nil)
		return
	}
	ctx.Dispatcher.Emit(EventNodeStart(0), nil)
}
