// Package cast implements a declarative value-transform node. The
// reference implementation this engine is modeled on includes a node
// that compiles a user-supplied Python expression and executes it
// against each tick's value — an arbitrary-code-from-config surface
// the engine's design notes explicitly call out to replace. This
// package is that replacement: a fixed table of named, typed
// transforms, selected by config, with no expression evaluation at
// all.
package cast

import (
	"fmt"
	"strings"

	"github.com/nugget/pipelined/internal/node"
	"github.com/nugget/pipelined/internal/resource"
	"github.com/nugget/pipelined/internal/resource/kinds"
)

// Kind is the registry name this package's constructor is registered
// under.
const Kind = "cast"

// Transform names one of the fixed, declarative transforms this node
// can apply. There is no mechanism to add a transform from pipeline
// config; new transforms are added by editing this package.
type Transform string

const (
	TransformUppercase Transform = "uppercase"
	TransformLowercase Transform = "lowercase"
	TransformToString  Transform = "to_string"
	TransformLength    Transform = "length"
	TransformThreshold Transform = "threshold"
)

// apply runs the named transform against v, returning an error for an
// unrecognized transform name rather than evaluating it as code.
func apply(t Transform, v any, params map[string]any) (any, error) {
	switch t {
	case TransformUppercase:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("cast: uppercase requires string input, got %T", v)
		}
		return strings.ToUpper(s), nil
	case TransformLowercase:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("cast: lowercase requires string input, got %T", v)
		}
		return strings.ToLower(s), nil
	case TransformToString:
		return fmt.Sprintf("%v", v), nil
	case TransformLength:
		switch val := v.(type) {
		case string:
			return len(val), nil
		case []any:
			return len(val), nil
		default:
			return nil, fmt.Errorf("cast: length requires string or list input, got %T", v)
		}
	case TransformThreshold:
		num, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("cast: threshold requires numeric input, got %T", v)
		}
		cutoff, _ := asFloat(params["cutoff"])
		return num >= cutoff, nil
	default:
		return nil, fmt.Errorf("cast: unrecognized transform %q", t)
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// Node reads InputKey, applies Transform, and publishes the result
// under its own output resource.
type Node struct {
	ctx       *node.Context
	cfg       node.Config
	inputKey  string
	outputKey string
	transform Transform
	params    map[string]any
	output    resource.Resource
}

// New constructs a cast node. Config keys: "input_key" (string,
// required), "output_key" (string, optional, default "cast_result"),
// "transform" (string, required, one of the Transform constants; only
// emptiness is checked here, and an unrecognized name makes every
// Execute skip without error),
// "params" (map, optional, transform-specific — e.g. "cutoff" for
// threshold).
func New(ctx *node.Context, cfg node.Config) (node.Node, error) {
	inputKey, _ := cfg.Config["input_key"].(string)
	if inputKey == "" {
		return nil, &resource.InvalidConfigError{Field: "input_key", Reason: "required"}
	}
	transformName, _ := cfg.Config["transform"].(string)
	if transformName == "" {
		return nil, &resource.InvalidConfigError{Field: "transform", Reason: "required"}
	}
	outputKey, _ := cfg.Config["output_key"].(string)
	if outputKey == "" {
		outputKey = "cast_result"
	}
	params, _ := cfg.Config["params"].(map[string]any)

	return &Node{
		ctx:       ctx,
		cfg:       cfg,
		inputKey:  inputKey,
		outputKey: outputKey,
		transform: Transform(transformName),
		params:    params,
	}, nil
}

func (n *Node) Prepare() error {
	out, err := n.ctx.Creator.Create(kinds.SchemaUnknown, resource.Config{
		Name:   n.outputKey,
		Scopes: []string{n.cfg.ID},
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
	input, ok := n.ctx.Instances.Get(n.inputKey)
	if !ok {
		return nil // transient-io: upstream resource not published yet
	}
	data, ok := input.GetData(nil)
	if !ok {
		return nil
	}
	result, err := apply(n.transform, data, n.params)
	if err != nil {
		return nil // invalid input this tick: skipped without error, loop continues
	}
	_, err = n.output.SetData(result)
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
