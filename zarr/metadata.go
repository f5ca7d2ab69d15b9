package zarr

import (
	"fmt"
	"sort"

	json "github.com/goccy/go-json"
)

// MetaType enumerates the types of metadata documents in a zarr v2 store
type MetaType string

const (
	// MTAttributes is the key suffix for user attribute documents
	MTAttributes MetaType = ".zattrs"
	// MTArray is the key suffix for array descriptor documents
	MTArray MetaType = ".zarray"
	// MTGroup is the key suffix for group marker documents
	MTGroup MetaType = ".zgroup"
	// MTMetadata is the key the consolidated document itself lives under
	MTMetadata MetaType = ".zmetadata"
)

// metaTypes enumerates the per-node metadata kinds a consolidated record
// can carry. MTMetadata never appears inside a record.
var metaTypes = map[MetaType]struct{}{
	MTAttributes: {},
	MTArray:      {},
	MTGroup:      {},
}

// KeyMetaType checks if the given key is a a metadata key, returning the
// type of metadata if the key is in fact a metadata key. Relies on the
// fact that all metadata keynames are 7 characters long
func KeyMetaType(s string) (mt MetaType, ok bool) {
	if len(s) < 7 {
		return mt, false
	}
	mt = MetaType(s[len(s)-7:])
	_, ok = metaTypes[mt]
	return mt, ok
}

// asMetaType matches an exact record key against the known metadata kinds
func asMetaType(s string) (MetaType, bool) {
	mt := MetaType(s)
	_, ok := metaTypes[mt]
	return mt, ok
}

// Attributes is the user metadata document attached to a node
type Attributes map[string]interface{}

// NodeMeta is the canonical per-node record: raw metadata documents keyed
// by kind. Values stay encoded until a consumer decodes them, so nothing
// unrecognized is lost in transit.
type NodeMeta map[MetaType]json.RawMessage

// IsArray reports whether the record carries an array descriptor
func (m NodeMeta) IsArray() bool {
	_, ok := m[MTArray]
	return ok
}

// Attrs decodes the record's attribute document, nil when absent
func (m NodeMeta) Attrs() (Attributes, error) {
	raw, ok := m[MTAttributes]
	if !ok {
		return nil, nil
	}
	attrs := Attributes{}
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("decoding attributes: %w", err)
	}
	return attrs, nil
}

// ConsolidatedMeta is the canonical consolidated metadata document. Every
// on-disk generation is normalized into this shape before anything reads
// it; see NormalizeConsolidated.
type ConsolidatedMeta struct {
	// Format records the declared document generation: the
	// zarr_consolidated_format of v2 documents, 3 for zarr.json envelopes
	Format int
	// Metadata maps slash-delimited node paths, root-relative with no
	// leading or trailing slash, to per-node records. The root is ""
	Metadata map[string]NodeMeta
}

// Paths returns every node path in the document, sorted
func (m *ConsolidatedMeta) Paths() []string {
	out := make([]string, 0, len(m.Metadata))
	for p := range m.Metadata {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ArrayMeta is a zarr v2 array descriptor (a .zarray document)
type ArrayMeta struct {
	// An integer defining the version of the storage specification to which
	// the array store adheres. Descriptors synthesized from zarr v3 node
	// records keep 3 here, which also selects v3 chunk key encoding.
	ZarrFormat int `json:"zarr_format"`
	// A list of integers defining the length of each dimension of the array.
	Shape []int `json:"shape"`
	// A list of integers defining the length of each dimension of a chunk
	// of the array. All chunks of an array share the same shape; chunks at
	// the edges are stored at full shape, padded with fill values.
	Chunks []int `json:"chunks"`
	// A string or list defining a valid data type for the array.
	Dtype Dtype `json:"dtype"`
	// A JSON object identifying the primary compression codec and providing
	// configuration parameters, or null if no compressor is to be used.
	Compressor *CompressionMeta `json:"compressor"`
	// A scalar value providing the default value to use for uninitialized
	// portions of the array, or null if no fill_value is to be used.
	FillValue interface{} `json:"fill_value"`
	// Either "C" or "F", defining the layout of bytes within each chunk of
	// the array. "C" means row-major order; "F" means column-major order.
	Order string `json:"order"`
	// A list of JSON objects providing codec configurations, or null if no
	// filters are to be applied.
	Filters []Filter `json:"filters"`
	// The delimiter chunk keys join their grid indices with, "." if unset.
	DimensionSeparator string `json:"dimension_separator,omitempty"`
}

// Filter is a codec applied to chunk bytes before the primary compressor
type Filter struct {
	ID     string `json:"id"`
	Dtype  string `json:"dtype,omitempty"`
	AsType string `json:"astype,omitempty"`
}

// filterVlenUTF8 encodes variable-length strings; see Array.ReadStringChunk
const filterVlenUTF8 = "vlen-utf8"

// GroupMeta is a zarr v2 group marker (a .zgroup document)
type GroupMeta struct {
	ZarrFormat int `json:"zarr_format"`
}

// fill value constants for special float encodings
const (
	// FillValueNaN is not-a-number
	FillValueNaN = "NaN"
	// FillValueInfinity is positive infinity
	FillValueInfinity = "Infinity"
	// FillValueNegInfinity is negative infinity
	FillValueNegInfinity = "-Infinity"
)
