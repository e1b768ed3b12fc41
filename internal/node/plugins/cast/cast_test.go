package cast

import (
	"testing"

	"github.com/nugget/pipelined/internal/dispatch"
	"github.com/nugget/pipelined/internal/node"
	"github.com/nugget/pipelined/internal/resource"
	"github.com/nugget/pipelined/internal/resource/kinds"
)

type fakeStore struct{}

func (fakeStore) Upload(name string, data []byte) (string, error) { return name, nil }
func (fakeStore) Download(name string) ([]byte, error)              { return nil, nil }
func (fakeStore) Delete(name string) error                          { return nil }
func (fakeStore) URL(name string) string                            { return "http://fake/file/" + name }

func newTestContext(t *testing.T) (*node.Context, *resource.Creator) {
	t.Helper()
	d := dispatch.New(nil)
	creator := resource.NewCreator(d)
	kinds.RegisterAll(creator, fakeStore{}, kinds.NewUnknownSerializers())
	return &node.Context{Creator: creator, Instances: resource.NewInstanceManager(), Dispatcher: d}, creator
}

func TestCast_Uppercase(t *testing.T) {
	ctx, creator := newTestContext(t)
	input, _ := creator.Create(kinds.SchemaString, resource.Config{Name: "s", Scopes: []string{"src"}, Data: "hello"})
	ctx.Instances.Set(input.Key(), input)

	n, err := New(ctx, node.Config{ID: "c", Config: map[string]any{
		"input_key": input.Key(), "transform": "uppercase",
	}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := n.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := n.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	out, _ := ctx.Instances.Get(resource.Key([]string{"c"}, "cast_result"))
	data, _ := out.GetData(nil)
	if data != "HELLO" {
		t.Errorf("data = %v, want HELLO", data)
	}
}

func TestCast_ThresholdAboveCutoff(t *testing.T) {
	ctx, creator := newTestContext(t)
	input, _ := creator.Create(kinds.SchemaNumber, resource.Config{Name: "n", Scopes: []string{"src"}, Data: 42.0})
	ctx.Instances.Set(input.Key(), input)

	n, err := New(ctx, node.Config{ID: "c", Config: map[string]any{
		"input_key": input.Key(), "transform": "threshold",
		"params": map[string]any{"cutoff": 10.0},
	}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n.Prepare()
	if err := n.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	out, _ := ctx.Instances.Get(resource.Key([]string{"c"}, "cast_result"))
	data, _ := out.GetData(nil)
	if data != true {
		t.Errorf("data = %v, want true", data)
	}
}

func TestCast_MissingTransformRejectedAtConstruction(t *testing.T) {
	ctx, _ := newTestContext(t)
	_, err := New(ctx, node.Config{ID: "c", Config: map[string]any{
		"input_key": "x.y", "transform": "",
	}})
	if err == nil {
		t.Fatal("expected error for missing transform")
	}
}

func TestCast_BadInputTypeIsTransientNotFatal(t *testing.T) {
	ctx, creator := newTestContext(t)
	input, _ := creator.Create(kinds.SchemaNumber, resource.Config{Name: "n", Scopes: []string{"src"}, Data: 42})
	ctx.Instances.Set(input.Key(), input)

	n, _ := New(ctx, node.Config{ID: "c", Config: map[string]any{
		"input_key": input.Key(), "transform": "uppercase",
	}})
	n.Prepare()
	if err := n.Execute(); err != nil {
		t.Fatalf("Execute should swallow a transform type mismatch, got: %v", err)
	}
}
