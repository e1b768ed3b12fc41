package kinds

import (
	"testing"

	"github.com/nugget/pipelined/internal/resource"
)

func TestCollection_GeneratesInitialSiblings(t *testing.T) {
	c := newTestCreator(t)
	r, err := c.Create(SchemaUSBDevices, resource.Config{
		Name: "devices", Scopes: []string{"src"},
		Data: []any{0, 1, 2}, GenerateSiblings: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	siblings := r.Siblings()
	if len(siblings) != 3 {
		t.Fatalf("got %d siblings, want 3", len(siblings))
	}
	for i, s := range siblings {
		want := resource.Key([]string{"src", "devices"}, "usb_device_0")
		_ = want
		if i == 0 && s.Key() != resource.Key([]string{"src", "devices"}, "usb_device_0") {
			t.Errorf("sibling[0].Key() = %q", s.Key())
		}
	}
}

func TestCollection_ReconcileShrinks(t *testing.T) {
	c := newTestCreator(t)
	r, _ := c.Create(SchemaUSBDevices, resource.Config{
		Name: "devices", Scopes: []string{"src"},
		Data: []any{0, 1, 2}, GenerateSiblings: true,
	})
	if _, err := r.SetData([]any{0, 1}); err != nil {
		t.Fatalf("SetData: %v", err)
	}
	if got := len(r.Siblings()); got != 2 {
		t.Fatalf("got %d siblings after shrink, want 2", got)
	}
}

func TestCollection_ReconcileGrows(t *testing.T) {
	c := newTestCreator(t)
	r, _ := c.Create(SchemaUSBDevices, resource.Config{
		Name: "devices", Scopes: []string{"src"},
		Data: []any{0, 1, 2}, GenerateSiblings: true,
	})
	if _, err := r.SetData([]any{0, 1, 2, 3}); err != nil {
		t.Fatalf("SetData: %v", err)
	}
	siblings := r.Siblings()
	if len(siblings) != 4 {
		t.Fatalf("got %d siblings after growth, want 4", len(siblings))
	}
	wantKey := resource.Key([]string{"src", "devices"}, "usb_device_3")
	if siblings[3].Key() != wantKey {
		t.Errorf("new sibling key = %q, want %q", siblings[3].Key(), wantKey)
	}
}

func TestCollection_EmptyDataNoSiblings(t *testing.T) {
	c := newTestCreator(t)
	r, err := c.Create(SchemaNumbers, resource.Config{
		Name: "readings", Scopes: []string{"src"},
		Data: []any{}, GenerateSiblings: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(r.Siblings()) != 0 {
		t.Fatalf("expected no siblings for empty data, got %d", len(r.Siblings()))
	}
}

func TestCollection_SerializeIncludesParentThenSiblings(t *testing.T) {
	c := newTestCreator(t)
	r, _ := c.Create(SchemaNumbers, resource.Config{
		Name: "readings", Scopes: []string{"src"},
		Data: []any{10, 20}, GenerateSiblings: true,
	})
	recs, err := r.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3 (parent + 2 siblings)", len(recs))
	}
	if recs[0].Schema != SchemaNumbers {
		t.Errorf("recs[0].Schema = %q, want %q", recs[0].Schema, SchemaNumbers)
	}
	if recs[1].Schema != SchemaNumber || recs[2].Schema != SchemaNumber {
		t.Errorf("sibling records should be %q", SchemaNumber)
	}
}

func TestCollection_FromSerializedRecreatesSiblingsEagerly(t *testing.T) {
	c := newTestCreator(t)
	r, _ := c.Create(SchemaNumbers, resource.Config{
		Name: "readings", Scopes: []string{"src"},
		Data: []any{10, 20, 30}, GenerateSiblings: true,
	})
	recs, err := r.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	rehydrated, err := c.FromSerialized(recs[0])
	if err != nil {
		t.Fatalf("FromSerialized: %v", err)
	}
	if got := len(rehydrated.Siblings()); got != 3 {
		t.Fatalf("eager rehydration: got %d siblings, want 3", got)
	}
}

func TestCollection_DisposeDisposesSiblings(t *testing.T) {
	c := newTestCreator(t)
	r, _ := c.Create(SchemaNumbers, resource.Config{
		Name: "readings", Scopes: []string{"src"},
		Data: []any{10, 20}, GenerateSiblings: true,
	})
	r.Dispose()
	if len(r.Siblings()) != 0 {
		t.Fatal("expected siblings cleared after Dispose")
	}
}
