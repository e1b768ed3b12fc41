package kinds

import (
	"fmt"

	"github.com/nugget/pipelined/internal/resource"
)

// SchemaNumbers and SchemaUSBDevices are the collection schema
// identifiers; their siblings are number.v1 and usb_device.v1
// respectively.
const (
	SchemaNumbers    = "numbers.v1"
	SchemaUSBDevices = "vision.input.usb_devices.v1"
)

// Collection is a resource whose data is a slice of elements. When
// constructed with GenerateSiblings, each element also exists as an
// independently addressable sibling primitive resource (e.g. numbers.v1
// owns one number.v1 per element), and every SetData reconciles the
// siblings to the new element count: existing
// siblings are updated in place, extras are disposed, and new elements
// get freshly created siblings.
type Collection struct {
	*resource.Base
	creator          *resource.Creator
	itemKind         string // e.g. "number", "usb_device"
	itemSchema       string
	generateSiblings bool
}

func newCollection(schema, itemSchema, itemKind string, c *resource.Creator, cfg resource.Config) (*Collection, error) {
	if err := resource.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	col := &Collection{
		Base:             resource.NewBase(schema, cfg, c.Dispatcher),
		creator:          c,
		itemKind:         itemKind,
		itemSchema:       itemSchema,
		generateSiblings: cfg.GenerateSiblings,
	}
	if cfg.Data != nil {
		if _, err := col.SetData(cfg.Data); err != nil {
			return nil, err
		}
	}
	return col, nil
}

// NewNumbers constructs a numbers.v1 resource.
func NewNumbers(c *resource.Creator, cfg resource.Config) (resource.Resource, error) {
	return newCollection(SchemaNumbers, SchemaNumber, "number", c, cfg)
}

// NewUSBDevices constructs a vision.input.usb_devices.v1 resource.
func NewUSBDevices(c *resource.Creator, cfg resource.Config) (resource.Resource, error) {
	return newCollection(SchemaUSBDevices, SchemaUSBDevice, "usb_device", c, cfg)
}

func elements(data any) []any {
	switch v := data.(type) {
	case []any:
		return v
	case []int:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out
	default:
		return nil
	}
}

// reconcile rebuilds the sibling list to match data's element count:
// existing siblings at an index are updated in place via SetData,
// extras beyond the new length are disposed, and new elements past the
// old length get fresh siblings. Sibling scopes extend the parent's
// scopes with the parent's own name, and sibling names are
// "{itemKind}_{index}", per the engine's resource key contract.
func (c *Collection) reconcile(data any) error {
	elems := elements(data)
	existing := c.Siblings()

	next := make([]resource.Resource, 0, len(elems))
	for i, el := range elems {
		if i < len(existing) {
			if _, err := existing[i].SetData(el); err != nil {
				return err
			}
			next = append(next, existing[i])
			continue
		}
		childScopes := append(append([]string(nil), c.Scopes()...), c.Name())
		child, err := c.creator.Create(c.itemSchema, resource.Config{
			Name:   fmt.Sprintf("%s_%d", c.itemKind, i),
			Scopes: childScopes,
			Data:   el,
		})
		if err != nil {
			return err
		}
		next = append(next, child)
	}
	// Dispose any siblings beyond the new, shorter length.
	for i := len(elems); i < len(existing); i++ {
		existing[i].Dispose()
	}
	c.SetSiblings(next)
	return nil
}

// SetData stores the new element slice and reconciles siblings to
// match it, in addition to the ordinary version/pool bookkeeping every
// resource performs.
func (c *Collection) SetData(data any) (resource.DataItem, error) {
	item, err := c.Base.SetData(data)
	if err != nil {
		return item, err
	}
	if c.generateSiblings {
		if err := c.reconcile(data); err != nil {
			return item, err
		}
	}
	return item, nil
}

func (c *Collection) Serialize() ([]resource.Record, error) {
	data, _ := c.GetData(nil)
	recs := []resource.Record{c.Record(data)}
	for _, sib := range c.Siblings() {
		sibRecs, err := sib.Serialize()
		if err != nil {
			return nil, err
		}
		recs = append(recs, sibRecs...)
	}
	return recs, nil
}

func (c *Collection) Dispose() {
	c.DisposeSiblings()
}
