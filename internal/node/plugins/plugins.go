// Package plugins wires every node kind this engine ships with into a
// node.Registry in one call, the compile-time registration the
// engine's design notes call for in place of the reference's
// manifest-driven dynamic class resolution.
package plugins

import (
	"github.com/nugget/pipelined/internal/node"
	"github.com/nugget/pipelined/internal/node/plugins/branch"
	"github.com/nugget/pipelined/internal/node/plugins/cast"
	"github.com/nugget/pipelined/internal/node/plugins/sink"
	"github.com/nugget/pipelined/internal/node/plugins/source"
	"github.com/nugget/pipelined/internal/node/plugins/transform"
)

// RegisterAll registers every built-in node kind into r.
func RegisterAll(r *node.Registry) {
	r.Register(source.Kind, source.New)
	r.Register(transform.Kind, transform.New)
	r.Register(sink.Kind, sink.New)
	r.Register(branch.Kind, branch.New)
	r.Register(cast.Kind, cast.New)
}
