// Package branch implements conditional routing, grounded on the
// reference implementation's random-condition node: a node may
// override Next to choose a non-default hop. The engine's core
// provides no declarative router (§9 Design Notes); this plugin is one
// concrete way to exercise that override.
package branch

import (
	"math/rand"

	"github.com/nugget/pipelined/internal/node"
)

// Kind is the registry name this package's constructor is registered
// under.
const Kind = "branch"

// Node picks between TrueIndex and FalseIndex with probability
// Probability of taking TrueIndex, overriding the default
// "next configured hop or wrap to 0" routing.
type Node struct {
	ctx         *node.Context
	cfg         node.Config
	trueIndex   int
	falseIndex  int
	probability float64
	rng         *rand.Rand
}

// New constructs a branch node. Config keys: "true_index" (int,
// default 0), "false_index" (int, default 0), "probability" (float64,
// default 0.5). An absent or non-int index routes to node 0.
func New(ctx *node.Context, cfg node.Config) (node.Node, error) {
	trueIdx, _ := cfg.Config["true_index"].(int)
	falseIdx, _ := cfg.Config["false_index"].(int)
	probability := 0.5
	if p, ok := cfg.Config["probability"].(float64); ok {
		probability = p
	}
	return &Node{
		ctx:         ctx,
		cfg:         cfg,
		trueIndex:   trueIdx,
		falseIndex:  falseIdx,
		probability: probability,
		rng:         rand.New(rand.NewSource(1)),
	}, nil
}

func (n *Node) Prepare() error { return nil }
func (n *Node) Execute() error { return nil }

func (n *Node) Next() {
	idx := n.falseIndex
	if n.rng.Float64() < n.probability {
		idx = n.trueIndex
	}
	n.ctx.Dispatcher.Emit(node.EventNodeStart(idx), nil)
}

func (n *Node) Dispose() {}
