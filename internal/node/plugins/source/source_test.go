package source

import (
	"testing"

	"github.com/nugget/pipelined/internal/dispatch"
	"github.com/nugget/pipelined/internal/node"
	"github.com/nugget/pipelined/internal/resource"
	"github.com/nugget/pipelined/internal/resource/kinds"
)

func newTestContext(t *testing.T) *node.Context {
	t.Helper()
	d := dispatch.New(nil)
	creator := resource.NewCreator(d)
	kinds.RegisterAll(creator, fakeImageStore{files: map[string][]byte{}}, kinds.NewUnknownSerializers())
	return &node.Context{
		Creator:    creator,
		Instances:  resource.NewInstanceManager(),
		Dispatcher: d,
	}
}

type fakeImageStore struct{ files map[string][]byte }

func (f fakeImageStore) Upload(name string, data []byte) (string, error) {
	f.files[name] = data
	return name, nil
}
func (f fakeImageStore) Download(name string) ([]byte, error) { return f.files[name], nil }
func (f fakeImageStore) Delete(name string) error              { delete(f.files, name); return nil }
func (f fakeImageStore) URL(name string) string                { return "http://fake/file/" + name }

func TestSource_PrepareThenExecutePublishesFrame(t *testing.T) {
	ctx := newTestContext(t)
	n, err := New(ctx, node.Config{ID: "src", Config: map[string]any{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := n.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := n.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	out, ok := ctx.Instances.Get(resource.Key([]string{"src"}, "frame"))
	if !ok {
		t.Fatal("expected output resource registered after Prepare")
	}
	if _, ok := out.GetData(nil); !ok {
		t.Fatal("expected frame data set after Execute")
	}
}

func TestSource_DisposeDisposesOutput(t *testing.T) {
	ctx := newTestContext(t)
	n, _ := New(ctx, node.Config{ID: "src", Config: map[string]any{}})
	n.Prepare()
	n.Dispose() // must not panic
}
