package kinds

import (
	"image/color"
	"strings"
	"testing"

	"github.com/nugget/pipelined/internal/resource"
)

func TestImage_SerializeProducesCacheBustedURL(t *testing.T) {
	fs := newFakeStore()
	c := resource.NewCreator(nil)
	RegisterAll(c, fs, NewUnknownSerializers())

	r, err := c.Create(SchemaImage, resource.Config{Name: "frame", Scopes: []string{"cam"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.SetData(SolidFrame(4, 4, color.White)); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	recs, err := r.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	urlStr, ok := recs[0].Data.(string)
	if !ok {
		t.Fatalf("Data = %v (%T), want string URL", recs[0].Data, recs[0].Data)
	}
	if !strings.Contains(urlStr, "?v=1") {
		t.Errorf("URL %q missing cache-busting ?v=1 suffix", urlStr)
	}
	if !strings.Contains(urlStr, "/file/") {
		t.Errorf("URL %q missing /file/ path segment", urlStr)
	}
}

func TestImage_SerializeBumpsCacheBustOnEachVersion(t *testing.T) {
	fs := newFakeStore()
	c := resource.NewCreator(nil)
	RegisterAll(c, fs, NewUnknownSerializers())

	r, _ := c.Create(SchemaImage, resource.Config{Name: "frame", Scopes: []string{"cam"}})
	r.SetData(SolidFrame(2, 2, color.Black))
	firstRecs, err := r.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	first := firstRecs[0].Data.(string)

	r.SetData(SolidFrame(2, 2, color.White))
	secondRecs, err := r.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	second := secondRecs[0].Data.(string)

	if !strings.HasSuffix(first, "?v=1") || !strings.HasSuffix(second, "?v=2") {
		t.Fatalf("version suffixes wrong: first=%q second=%q", first, second)
	}
}

func TestImage_DisposeDeletesFromStore(t *testing.T) {
	fs := newFakeStore()
	c := resource.NewCreator(nil)
	RegisterAll(c, fs, NewUnknownSerializers())

	r, _ := c.Create(SchemaImage, resource.Config{Name: "frame", Scopes: []string{"cam"}})
	r.SetData(SolidFrame(2, 2, color.White))
	if _, err := r.Serialize(); err != nil { // uploads to the store
		t.Fatalf("Serialize: %v", err)
	}

	r.Dispose()

	filename := resource.Key([]string{"cam"}, "frame") + ".jpg"
	if _, err := fs.Download(filename); err == nil {
		t.Fatal("expected file removed from store after Dispose")
	}
}

func TestImage_FromSerializedDereferencesURL(t *testing.T) {
	fs := newFakeStore()
	c := resource.NewCreator(nil)
	RegisterAll(c, fs, NewUnknownSerializers())

	r, _ := c.Create(SchemaImage, resource.Config{Name: "frame", Scopes: []string{"cam"}})
	r.SetData(SolidFrame(3, 3, color.White))
	recs, err := r.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	rehydrated, err := c.FromSerialized(recs[0])
	if err != nil {
		t.Fatalf("FromSerialized: %v", err)
	}
	data, ok := rehydrated.GetData(nil)
	if !ok {
		t.Fatal("expected rehydrated image to have decoded frame data")
	}
	if _, ok := data.(Frame); !ok {
		t.Fatalf("rehydrated data type = %T, want Frame", data)
	}
}
