package zarr

import (
	"context"
	"errors"
	"testing"
)

const tinyFlatDoc = `{
	"zarr_consolidated_format": 1,
	"metadata": {
		".zgroup": {"zarr_format": 2},
		"points/.zgroup": {"zarr_format": 2}
	}
}`

const tinyV3Doc = `{
	"zarr_format": 3,
	"node_type": "group",
	"consolidated_metadata": {
		"kind": "inline",
		"metadata": {
			"points": {"zarr_format": 3, "node_type": "group"}
		}
	}
}`

func TestOpenConsolidatedVariants(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{".zmetadata", "zmetadata"} {
		s := NewMemoryStore()
		s.Set(name, []byte(tinyFlatDoc))
		cs, err := OpenConsolidated(ctx, s)
		if err != nil {
			t.Fatalf("open via %s: %s", name, err)
		}
		if cs.Meta().Format != 1 {
			t.Errorf("open via %s: format = %d", name, cs.Meta().Format)
		}
		if _, err := cs.Root().Child("points"); err != nil {
			t.Errorf("open via %s: %s", name, err)
		}
	}

	s := NewMemoryStore()
	s.Set("zarr.json", []byte(tinyV3Doc))
	cs, err := OpenConsolidated(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if cs.Meta().Format != 3 {
		t.Errorf("format = %d", cs.Meta().Format)
	}
}

func TestOpenConsolidatedPrefersV3(t *testing.T) {
	s := NewMemoryStore()
	s.Set("zarr.json", []byte(tinyV3Doc))
	s.Set(".zmetadata", []byte(tinyFlatDoc))

	cs, err := OpenConsolidated(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if cs.Meta().Format != 3 {
		t.Errorf("expected the zarr.json document to win, format = %d", cs.Meta().Format)
	}
}

func TestOpenConsolidatedFallsThrough(t *testing.T) {
	s := NewMemoryStore()
	// an envelope with no consolidated metadata is "variant absent", not fatal
	s.Set("zarr.json", []byte(`{"zarr_format": 3, "node_type": "group"}`))
	s.Set(".zmetadata", []byte(tinyFlatDoc))

	cs, err := OpenConsolidated(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if cs.Meta().Format != 1 {
		t.Errorf("expected fallback to .zmetadata, format = %d", cs.Meta().Format)
	}
}

func TestOpenConsolidatedMiss(t *testing.T) {
	_, err := OpenConsolidated(context.Background(), NewMemoryStore())
	var miss *NoConsolidatedMetadataError
	if !errors.As(err, &miss) {
		t.Fatalf("expected NoConsolidatedMetadataError, got %v", err)
	}
	if miss.Location != "memory" {
		t.Errorf("location = %q", miss.Location)
	}
	expect := []string{"zarr.json", ".zmetadata", "zmetadata"}
	if len(miss.Tried) != len(expect) {
		t.Fatalf("tried = %v", miss.Tried)
	}
	for i, name := range expect {
		if miss.Tried[i] != name {
			t.Errorf("tried[%d] = %q, expected %q", i, miss.Tried[i], name)
		}
	}
}

func TestOpenConsolidatedStructuralFailure(t *testing.T) {
	s := NewMemoryStore()
	s.Set(".zmetadata", []byte(`{
		"zarr_consolidated_format": 1,
		"metadata": {
			"a/.zarray": {
				"zarr_format": 2, "shape": [2], "chunks": [2], "dtype": "|u1",
				"compressor": null, "fill_value": 0, "order": "C", "filters": null
			},
			"a/b/.zattrs": {"x": 1}
		}
	}`))

	_, err := OpenConsolidated(context.Background(), s)
	var structural *StructuralError
	if !errors.As(err, &structural) {
		t.Fatalf("expected StructuralError, got %v", err)
	}
	if structural.Path != "a" {
		t.Errorf("path = %q", structural.Path)
	}
}

func TestOpenConsolidatedCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := OpenConsolidated(ctx, NewMemoryStore())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
