package zarr

import (
	"errors"
	"testing"

	json "github.com/goccy/go-json"
)

const nestedDoc = `{
	"zarr_consolidated_format": 1,
	"metadata": {
		"": {".zattrs": {"root": true}},
		"images": {".zgroup": {"zarr_format": 2}},
		"images/blob": {
			".zarray": {
				"zarr_format": 2,
				"shape": [4, 4],
				"chunks": [2, 2],
				"dtype": "|u1",
				"compressor": null,
				"fill_value": 0,
				"order": "C",
				"filters": null
			},
			".zattrs": {"kind": "image"},
			"unrelated": {"ignored": true}
		}
	}
}`

func TestNormalizeNested(t *testing.T) {
	meta, err := NormalizeConsolidated([]byte(nestedDoc), FormatAuto)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Format != 1 {
		t.Errorf("format = %d", meta.Format)
	}
	if len(meta.Metadata) != 3 {
		t.Fatalf("paths = %v", meta.Paths())
	}
	if !meta.Metadata["images/blob"].IsArray() {
		t.Error("expected images/blob to carry an array descriptor")
	}
	if _, ok := meta.Metadata["images/blob"]["unrelated"]; ok {
		t.Error("unknown record keys should be dropped")
	}
	attrs, err := meta.Metadata[""].Attrs()
	if err != nil {
		t.Fatal(err)
	}
	if attrs["root"] != true {
		t.Errorf("root attrs = %v", attrs)
	}
}

const flatDoc = `{
	"zarr_consolidated_format": 1,
	"metadata": {
		".zgroup": {"zarr_format": 2},
		".zattrs": {"root": true},
		"images/.zgroup": {"zarr_format": 2},
		"images/blob/.zarray": {
			"zarr_format": 2,
			"shape": [4, 4],
			"chunks": [2, 2],
			"dtype": "|u1",
			"compressor": null,
			"fill_value": 0,
			"order": "C",
			"filters": null
		},
		"images/blob/.zattrs": {"kind": "image"},
		"stray-key": {"dropped": true},
		"images/blob/0.0": [1, 2]
	}
}`

func TestNormalizeFlat(t *testing.T) {
	meta, err := NormalizeConsolidated([]byte(flatDoc), FormatV2)
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.Metadata) != 3 {
		t.Fatalf("paths = %v", meta.Paths())
	}

	root := meta.Metadata[""]
	if _, ok := root[MTGroup]; !ok {
		t.Error("expected root group marker")
	}
	attrs, err := root.Attrs()
	if err != nil {
		t.Fatal(err)
	}
	if attrs["root"] != true {
		t.Errorf("root attrs = %v", attrs)
	}

	blob := meta.Metadata["images/blob"]
	if !blob.IsArray() {
		t.Fatal("expected images/blob to carry an array descriptor")
	}
	am := &ArrayMeta{}
	if err := json.Unmarshal(blob[MTArray], am); err != nil {
		t.Fatal(err)
	}
	if am.Dtype.String() != "|u1" || am.Chunks[0] != 2 {
		t.Errorf("descriptor = %#v", am)
	}
}

func TestNormalizeInvalid(t *testing.T) {
	var invErr *InvalidDocumentError

	_, err := NormalizeConsolidated([]byte(`[1, 2, 3]`), FormatAuto)
	if !errors.As(err, &invErr) {
		t.Errorf("expected InvalidDocumentError, got %v", err)
	}

	_, err = NormalizeConsolidated([]byte(`{"zarr_consolidated_format": 1}`), FormatAuto)
	if !errors.As(err, &invErr) {
		t.Errorf("expected InvalidDocumentError, got %v", err)
	}

	_, err = NormalizeConsolidated([]byte(`{"metadata": "not an object"}`), FormatAuto)
	if !errors.As(err, &invErr) {
		t.Errorf("expected InvalidDocumentError, got %v", err)
	}
}

const v3Doc = `{
	"zarr_format": 3,
	"node_type": "group",
	"attributes": {"root": true},
	"consolidated_metadata": {
		"kind": "inline",
		"must_understand": false,
		"metadata": {
			"images": {"zarr_format": 3, "node_type": "group", "attributes": {"kind": "group"}},
			"images/blob": {
				"zarr_format": 3,
				"node_type": "array",
				"shape": [4, 32],
				"data_type": "uint8",
				"chunk_grid": {"name": "regular", "configuration": {"chunk_shape": [2, 16]}},
				"chunk_key_encoding": {"name": "default", "configuration": {"separator": "/"}},
				"fill_value": 0,
				"codecs": [
					{"name": "bytes", "configuration": {"endian": "little"}},
					{"name": "gzip", "configuration": {"level": 5}}
				],
				"attributes": {"kind": "image"}
			},
			"labels/mask": {
				"zarr_format": 3,
				"node_type": "array",
				"shape": [8],
				"data_type": "int32",
				"chunk_grid": {"name": "regular", "configuration": {"chunk_shape": [4]}},
				"chunk_key_encoding": {"name": "v2", "configuration": {"separator": "."}},
				"fill_value": -1,
				"codecs": [
					{"name": "bytes", "configuration": {"endian": "big"}},
					{"name": "zstd", "configuration": {"level": 3}}
				]
			}
		}
	}
}`

func TestNormalizeV3(t *testing.T) {
	meta, err := NormalizeConsolidated([]byte(v3Doc), FormatAuto)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Format != 3 {
		t.Errorf("format = %d", meta.Format)
	}

	attrs, err := meta.Metadata[""].Attrs()
	if err != nil {
		t.Fatal(err)
	}
	if attrs["root"] != true {
		t.Errorf("envelope attributes should describe the root, got %v", attrs)
	}

	am := &ArrayMeta{}
	if err := json.Unmarshal(meta.Metadata["images/blob"][MTArray], am); err != nil {
		t.Fatal(err)
	}
	if am.ZarrFormat != 3 {
		t.Errorf("zarr_format = %d", am.ZarrFormat)
	}
	if am.Dtype.String() != "|u1" {
		t.Errorf("dtype = %q", am.Dtype)
	}
	if len(am.Chunks) != 2 || am.Chunks[0] != 2 || am.Chunks[1] != 16 {
		t.Errorf("chunks = %v", am.Chunks)
	}
	if am.Compressor == nil || am.Compressor.ID != "gzip" || am.Compressor.Clevel != 5 {
		t.Errorf("compressor = %v", am.Compressor)
	}
	if am.DimensionSeparator != "/" {
		t.Errorf("separator = %q", am.DimensionSeparator)
	}

	mask := &ArrayMeta{}
	if err := json.Unmarshal(meta.Metadata["labels/mask"][MTArray], mask); err != nil {
		t.Fatal(err)
	}
	if mask.ZarrFormat != 2 || mask.DimensionSeparator != "." {
		t.Errorf("v2 chunk key encoding should carry over: %#v", mask)
	}
	if mask.Dtype.String() != ">i4" {
		t.Errorf("dtype = %q", mask.Dtype)
	}
	if mask.Compressor == nil || mask.Compressor.ID != "zstd" || mask.Compressor.Clevel != 3 {
		t.Errorf("compressor = %v", mask.Compressor)
	}

	if meta.Metadata["images"].IsArray() {
		t.Error("images is a group")
	}
}

func TestNormalizeV3NoConsolidated(t *testing.T) {
	var invErr *InvalidDocumentError

	_, err := NormalizeConsolidated([]byte(`{"zarr_format": 3, "node_type": "group"}`), FormatAuto)
	if !errors.As(err, &invErr) {
		t.Errorf("expected InvalidDocumentError, got %v", err)
	}

	_, err = NormalizeConsolidated([]byte(`{"zarr_format": 3, "consolidated_metadata": null}`), FormatV3)
	if !errors.As(err, &invErr) {
		t.Errorf("expected InvalidDocumentError, got %v", err)
	}
}
