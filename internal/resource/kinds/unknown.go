package kinds

import (
	"fmt"

	"github.com/nugget/pipelined/internal/resource"
)

// SerializeFunc renders an unknown.v1 resource's data to a
// JSON-shaped value. Required because "unknown" data has no kind the
// engine itself knows how to encode.
type SerializeFunc func(data any) (any, error)

// UnknownSerializers is consulted by an unknown.v1 resource's Serialize
// to find the SerializeFunc for its resource key; a node registers its
// function here before the resource is serialized. This mirrors the
// reference implementation's "inject a serialize_fn in context"
// contract without adding a serialize callback to the shared Config
// struct every other kind would have to ignore.
type UnknownSerializers struct {
	byKey map[string]SerializeFunc
}

// NewUnknownSerializers returns an empty registry.
func NewUnknownSerializers() *UnknownSerializers {
	return &UnknownSerializers{byKey: make(map[string]SerializeFunc)}
}

// Set registers fn for the resource that will be constructed under key.
func (u *UnknownSerializers) Set(key string, fn SerializeFunc) {
	u.byKey[key] = fn
}

// Unknown stores arbitrary data; Serialize fails unless a SerializeFunc
// has been registered for its key.
type Unknown struct {
	*resource.Base
	serializers *UnknownSerializers
}

// NewUnknownConstructor binds an UnknownSerializers registry and
// returns a Constructor suitable for Creator.Register(SchemaUnknown, ...).
func NewUnknownConstructor(serializers *UnknownSerializers) resource.Constructor {
	return func(c *resource.Creator, cfg resource.Config) (resource.Resource, error) {
		if err := resource.ValidateConfig(cfg); err != nil {
			return nil, err
		}
		u := &Unknown{Base: resource.NewBase(SchemaUnknown, cfg, c.Dispatcher), serializers: serializers}
		if cfg.Data != nil {
			if _, err := u.SetData(cfg.Data); err != nil {
				return nil, err
			}
		}
		return u, nil
	}
}

func (u *Unknown) Serialize() ([]resource.Record, error) {
	data, _ := u.GetData(nil)
	fn, ok := u.serializers.byKey[u.Key()]
	if !ok {
		// Matches the reference implementation's serialize_fn is not
		// set ValueError: unknown.v1 cannot serialize without one.
		return nil, &resource.SerializeError{Key: u.Key(), Reason: "serialize function is not set"}
	}
	encoded, err := fn(data)
	if err != nil {
		return nil, &resource.SerializeError{Key: u.Key(), Reason: fmt.Sprintf("serialize fn: %v", err)}
	}
	return []resource.Record{u.Record(encoded)}, nil
}

func (u *Unknown) Dispose() {
	u.DisposeSiblings()
}
