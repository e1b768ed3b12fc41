// Package transform implements an image-thresholding transform node,
// grounded on the reference implementation's binarization node: it
// reads an upstream image resource by key, thresholds it to black and
// white, and publishes the result as a new image resource.
package transform

import (
	"image"
	"image/color"

	"github.com/nugget/pipelined/internal/node"
	"github.com/nugget/pipelined/internal/resource"
	"github.com/nugget/pipelined/internal/resource/kinds"
)

// Kind is the registry name this package's constructor is registered
// under.
const Kind = "binarize"

// Node reads InputKey's latest frame, thresholds it, and republishes
// the result under its own OutputKey.
type Node struct {
	ctx       *node.Context
	cfg       node.Config
	inputKey  string
	outputKey string
	threshold uint8
	output    resource.Resource
}

// New constructs a binarize node. Config keys: "input_key" (string,
// required — the upstream image resource's key), "output_key"
// (string, optional, default "binarized"), "threshold" (int 0-255,
// default 128).
func New(ctx *node.Context, cfg node.Config) (node.Node, error) {
	inputKey, _ := cfg.Config["input_key"].(string)
	if inputKey == "" {
		return nil, &resource.InvalidConfigError{Field: "input_key", Reason: "required"}
	}
	outputKey, _ := cfg.Config["output_key"].(string)
	if outputKey == "" {
		outputKey = "binarized"
	}
	threshold := 128
	if v, ok := cfg.Config["threshold"].(int); ok {
		threshold = v
	}

	return &Node{
		ctx:       ctx,
		cfg:       cfg,
		inputKey:  inputKey,
		outputKey: outputKey,
		threshold: uint8(threshold),
	}, nil
}

func (n *Node) Prepare() error {
	out, err := n.ctx.Creator.Create(kinds.SchemaImage, resource.Config{
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
	if !ok || data == nil {
		return nil // transient-io: no frame to read this tick
	}
	frame, ok := data.(kinds.Frame)
	if !ok {
		return nil
	}

	bounds := frame.Img.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray := color.GrayModel.Convert(frame.Img.At(x, y)).(color.Gray)
			if gray.Y >= n.threshold {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}

	_, err := n.output.SetData(kinds.Frame{Img: out})
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
