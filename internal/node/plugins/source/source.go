// Package source implements a frame-producing source node, grounded on
// the reference implementation's webcam node: prepare opens the
// device (here, a synthetic or pluggable Capturer) and publishes an
// empty placeholder image resource; execute is interval-gated and
// republishes the resource with the next captured frame.
package source

import (
	"image/color"
	"time"

	"github.com/nugget/pipelined/internal/node"
	"github.com/nugget/pipelined/internal/resource"
	"github.com/nugget/pipelined/internal/resource/kinds"
)

// Kind is the registry name this package's constructor is registered
// under.
const Kind = "source"

// Capturer returns the next frame to publish. The default used when
// no Capturer is configured is a synthetic flashing-frame generator,
// standing in for a real camera/sensor driver the engine's scope
// explicitly treats as an external collaborator.
type Capturer interface {
	Capture() (kinds.Frame, error)
}

// SolidCapturer cycles through a small palette, useful for demos and
// tests that need deterministic, hardware-free frames.
type SolidCapturer struct {
	Width, Height int
	palette       []color.Color
	i             int
}

// NewSolidCapturer returns a Capturer cycling black/white/gray frames
// of the given size.
func NewSolidCapturer(w, h int) *SolidCapturer {
	return &SolidCapturer{
		Width: w, Height: h,
		palette: []color.Color{color.Black, color.White, color.Gray{Y: 128}},
	}
}

func (s *SolidCapturer) Capture() (kinds.Frame, error) {
	c := s.palette[s.i%len(s.palette)]
	s.i++
	return kinds.SolidFrame(s.Width, s.Height, c), nil
}

// Node is a frame-producing source. OutputKey names the image resource
// it owns; MinInterval (carried over from the reference's per-node
// "interval" config) gates how often Execute actually captures, so a
// fast-polling loop doesn't starve a slow capturer or a slow consumer.
type Node struct {
	ctx       *node.Context
	cfg       node.Config
	capturer  Capturer
	outputKey string
	minInterval time.Duration
	lastTick  time.Time
	output    resource.Resource
}

// New constructs a source node. Config keys: "output_key" (string,
// optional, default "frame"), "interval_ms" (int, optional, default 0
// = every tick).
func New(ctx *node.Context, cfg node.Config) (node.Node, error) {
	outputKey, _ := cfg.Config["output_key"].(string)
	if outputKey == "" {
		outputKey = "frame"
	}
	intervalMS, _ := cfg.Config["interval_ms"].(int)

	return &Node{
		ctx:         ctx,
		cfg:         cfg,
		capturer:    NewSolidCapturer(8, 8),
		outputKey:   outputKey,
		minInterval: time.Duration(intervalMS) * time.Millisecond,
	}, nil
}

// WithCapturer overrides the default synthetic capturer, e.g. to wire
// in a real device driver.
func (n *Node) WithCapturer(c Capturer) *Node {
	n.capturer = c
	return n
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
	if !n.lastTick.IsZero() && time.Since(n.lastTick) < n.minInterval {
		return nil // transient-io: too soon, skip this tick without error
	}
	frame, err := n.capturer.Capture()
	if err != nil {
		return nil // transient-io: capture failed, skip this tick without error
	}
	n.lastTick = time.Now()
	_, err = n.output.SetData(frame)
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
