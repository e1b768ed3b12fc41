// Package sink implements a counter sink node: a minimal exemplar of
// the "sink" contract (§2 overview's reference vertical plus the
// engine's loop-closure test scenario), incrementing a number
// resource on every tick regardless of what upstream produced.
package sink

import (
	"github.com/nugget/pipelined/internal/node"
	"github.com/nugget/pipelined/internal/resource"
	"github.com/nugget/pipelined/internal/resource/kinds"
)

// Kind is the registry name this package's constructor is registered
// under.
const Kind = "counter"

// Node publishes a number.v1 resource that increments once per tick.
type Node struct {
	ctx      *node.Context
	cfg      node.Config
	key      string
	output   resource.Resource
	count    int
}

// New constructs a counter node. Config keys: "output_key" (string,
// optional, default "count").
func New(ctx *node.Context, cfg node.Config) (node.Node, error) {
	key, _ := cfg.Config["output_key"].(string)
	if key == "" {
		key = "count"
	}
	return &Node{ctx: ctx, cfg: cfg, key: key}, nil
}

func (n *Node) Prepare() error {
	out, err := n.ctx.Creator.Create(kinds.SchemaNumber, resource.Config{
		Name:   n.key,
		Scopes: []string{n.cfg.ID},
		Data:   0,
	})
	if err != nil {
		return err
	}
	if err := n.ctx.Instances.Set(out.Key(), out); err != nil {
		return err
	}
	n.output = out
	return nil
}

func (n *Node) Execute() error {
	n.count++
	_, err := n.output.SetData(n.count)
	return err
}

func (n *Node) Next() {
	node.DefaultNext(n.ctx, n.cfg)
}

func (n *Node) Dispose() {
	if n.output != nil {
		n.output.Dispose()
	}
}
