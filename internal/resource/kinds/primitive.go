// Package kinds supplies the concrete resource schemas the engine
// ships with, plus RegisterAll which wires every one of them into a
// Creator in a single call.
package kinds

import (
	"github.com/nugget/pipelined/internal/resource"
)

// SchemaString, SchemaNumber, SchemaUnknown, SchemaUSBDevice are the
// primitive (non-collection) schema identifiers.
const (
	SchemaString    = "string.v1"
	SchemaNumber    = "number.v1"
	SchemaUnknown   = "unknown.v1"
	SchemaUSBDevice = "vision.input.usb_device.v1"
)

// Primitive stores data as-is: string, number, and usb_device resources
// are all the same shape at this layer, differing only by schema id.
type Primitive struct {
	*resource.Base
}

func newPrimitive(schema string, c *resource.Creator, cfg resource.Config) (resource.Resource, error) {
	if err := resource.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	p := &Primitive{Base: resource.NewBase(schema, cfg, c.Dispatcher)}
	if cfg.Data != nil {
		// Open question (a): the initial constructor value fires
		// resource_updated, matching the reference implementation.
		if _, err := p.SetData(cfg.Data); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// NewString constructs a string.v1 resource.
func NewString(c *resource.Creator, cfg resource.Config) (resource.Resource, error) {
	return newPrimitive(SchemaString, c, cfg)
}

// NewNumber constructs a number.v1 resource.
func NewNumber(c *resource.Creator, cfg resource.Config) (resource.Resource, error) {
	return newPrimitive(SchemaNumber, c, cfg)
}

// NewUSBDevice constructs a vision.input.usb_device.v1 resource, one
// per enumerated device id, owned as a sibling of a usb_devices
// collection.
func NewUSBDevice(c *resource.Creator, cfg resource.Config) (resource.Resource, error) {
	return newPrimitive(SchemaUSBDevice, c, cfg)
}

func (p *Primitive) Serialize() ([]resource.Record, error) {
	data, _ := p.GetData(nil)
	return []resource.Record{p.Record(data)}, nil
}

func (p *Primitive) Dispose() {
	p.DisposeSiblings()
}
