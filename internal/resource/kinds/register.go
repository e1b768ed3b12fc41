package kinds

import (
	"github.com/nugget/pipelined/internal/resource"
	"github.com/nugget/pipelined/internal/store"
)

// RegisterAll wires every schema this package ships with into creator,
// including the FromSerialized rehydration functions collections and
// image resources need. This is the one place a pipeline start calls
// to get a fully known Creator, so a typo in a schema id is caught at
// registration time via Creator.MustRegisterAll rather than surfacing
// later as a confusing not-found error mid-run.
func RegisterAll(creator *resource.Creator, fileStore store.Store, unknownSerializers *UnknownSerializers) {
	creator.MustRegisterAll(map[string]resource.Constructor{
		SchemaString:     NewString,
		SchemaNumber:     NewNumber,
		SchemaUnknown:    NewUnknownConstructor(unknownSerializers),
		SchemaUSBDevice:  NewUSBDevice,
		SchemaNumbers:    NewNumbers,
		SchemaUSBDevices: NewUSBDevices,
		SchemaImage:      NewImageConstructor(fileStore),
	})

	registerCollectionFromSerialized(creator, SchemaNumbers)
	registerCollectionFromSerialized(creator, SchemaUSBDevices)
	RegisterImageFromSerialized(creator, fileStore)
}

// registerCollectionFromSerialized wires FromSerialized for a
// collection schema to eagerly recreate siblings in the same call
// (the engine's chosen answer to the "eager vs lazy" open question),
// by forcing GenerateSiblings on regardless of what the serialized
// record itself carries (a Record has no such field; only Config does).
func registerCollectionFromSerialized(creator *resource.Creator, schema string) {
	creator.RegisterFromSerialized(schema, func(c *resource.Creator, rec resource.Record) (resource.Resource, error) {
		return c.Create(schema, resource.Config{
			Name:             rec.Name,
			Scopes:           rec.Scopes,
			Data:             rec.Data,
			GenerateSiblings: true,
		})
	})
}
