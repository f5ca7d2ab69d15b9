package zarr

import (
	"strings"

	json "github.com/goccy/go-json"
)

// SourceFormat hints which on-disk generation produced the bytes handed to
// NormalizeConsolidated. The normalizer still inspects the document; the
// hint settles ambiguous cases.
type SourceFormat int

const (
	// FormatAuto sniffs the document shape
	FormatAuto SourceFormat = iota
	// FormatV2 is a .zmetadata document: a metadata map with either flat
	// suffix-carrying keys or nested per-node records
	FormatV2
	// FormatV3 is a zarr.json envelope carrying consolidated_metadata
	FormatV3
)

// NormalizeConsolidated converts any supported consolidated-metadata
// generation into the canonical nested shape. It is a pure transformation:
// no I/O, and the input bytes are never mutated.
//
// Three input shapes are recognized:
//   - nested: {"metadata": {"path": {".zattrs": {...}}}} passes through;
//   - flat: {"metadata": {"path/.zattrs": {...}}} is re-keyed by stripping
//     the kind suffix and grouping records per node path; keys carrying no
//     kind suffix are dropped;
//   - v3: {"zarr_format": 3, "consolidated_metadata": {"metadata": ...}}
//     node records are translated into v2-shaped sub-documents, arrays
//     included.
func NormalizeConsolidated(doc []byte, src SourceFormat) (*ConsolidatedMeta, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil {
		return nil, &InvalidDocumentError{Reason: "top-level value is not a JSON object"}
	}

	if src == FormatV3 || (src == FormatAuto && looksV3(top)) {
		return normalizeV3(top)
	}

	rawMeta, ok := top["metadata"]
	if !ok {
		return nil, &InvalidDocumentError{Reason: `no "metadata" object present`}
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(rawMeta, &entries); err != nil {
		return nil, &InvalidDocumentError{Reason: `"metadata" is not a JSON object`}
	}

	out := &ConsolidatedMeta{
		Format:   intField(top, "zarr_consolidated_format"),
		Metadata: map[string]NodeMeta{},
	}
	if flatKeyed(entries) {
		normalizeFlat(entries, out)
	} else {
		normalizeNested(entries, out)
	}
	return out, nil
}

// looksV3 detects a zarr.json envelope
func looksV3(top map[string]json.RawMessage) bool {
	if _, ok := top["consolidated_metadata"]; ok {
		return true
	}
	if raw, ok := top["zarr_format"]; ok {
		var v int
		if err := json.Unmarshal(raw, &v); err == nil && v == 3 {
			return true
		}
	}
	return false
}

// A flat document embeds the metadata kind in every key. One matching key
// marks the whole document: nested node paths never end in a kind suffix.
func flatKeyed(entries map[string]json.RawMessage) bool {
	for k := range entries {
		if _, ok := KeyMetaType(k); ok {
			return true
		}
	}
	return false
}

func normalizeFlat(entries map[string]json.RawMessage, out *ConsolidatedMeta) {
	for key, raw := range entries {
		mt, ok := KeyMetaType(key)
		if !ok || !isObject(raw) {
			continue
		}
		path := trimPath(strings.TrimSuffix(key, string(mt)))
		nm, ok := out.Metadata[path]
		if !ok {
			nm = NodeMeta{}
			out.Metadata[path] = nm
		}
		nm[mt] = raw
	}
}

func normalizeNested(entries map[string]json.RawMessage, out *ConsolidatedMeta) {
	for key, raw := range entries {
		var rec map[string]json.RawMessage
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		nm := NodeMeta{}
		for k, v := range rec {
			if mt, ok := asMetaType(k); ok {
				nm[mt] = v
			}
		}
		out.Metadata[trimPath(key)] = nm
	}
}

// zarr v3 node record shapes

type v3ChunkGrid struct {
	Name          string `json:"name"`
	Configuration struct {
		ChunkShape []int `json:"chunk_shape"`
	} `json:"configuration"`
}

type v3ChunkKeyEncoding struct {
	Name          string `json:"name"`
	Configuration struct {
		Separator string `json:"separator"`
	} `json:"configuration"`
}

type v3Codec struct {
	Name          string          `json:"name"`
	Configuration json.RawMessage `json:"configuration"`
}

type v3Node struct {
	ZarrFormat       int                 `json:"zarr_format"`
	NodeType         string              `json:"node_type"`
	Attributes       json.RawMessage     `json:"attributes"`
	Shape            []int               `json:"shape"`
	DataType         string              `json:"data_type"`
	ChunkGrid        *v3ChunkGrid        `json:"chunk_grid"`
	ChunkKeyEncoding *v3ChunkKeyEncoding `json:"chunk_key_encoding"`
	FillValue        interface{}         `json:"fill_value"`
	Codecs           []v3Codec           `json:"codecs"`
}

func normalizeV3(top map[string]json.RawMessage) (*ConsolidatedMeta, error) {
	rawCons, ok := top["consolidated_metadata"]
	if !ok || string(rawCons) == "null" {
		return nil, &InvalidDocumentError{Reason: "zarr.json envelope carries no consolidated metadata"}
	}
	var cons struct {
		Kind     string                     `json:"kind"`
		Metadata map[string]json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(rawCons, &cons); err != nil || cons.Metadata == nil {
		return nil, &InvalidDocumentError{Reason: "consolidated_metadata is not an inline metadata map"}
	}

	out := &ConsolidatedMeta{Format: 3, Metadata: map[string]NodeMeta{}}

	// the envelope itself describes the root node
	if attrs, ok := top["attributes"]; ok && isObject(attrs) {
		out.Metadata[""] = NodeMeta{MTAttributes: attrs}
	}

	for key, raw := range cons.Metadata {
		var node v3Node
		if err := json.Unmarshal(raw, &node); err != nil {
			continue
		}
		path := trimPath(key)
		nm, ok := out.Metadata[path]
		if !ok {
			nm = NodeMeta{}
			out.Metadata[path] = nm
		}
		if isObject(node.Attributes) {
			nm[MTAttributes] = node.Attributes
		}
		switch node.NodeType {
		case "array":
			nm[MTArray] = synthesizeArrayMeta(&node)
		default:
			nm[MTGroup], _ = json.Marshal(GroupMeta{ZarrFormat: 3})
		}
	}
	return out, nil
}

// synthesizeArrayMeta renders a v3 array node record as a v2-shaped
// .zarray document. Unmappable data types are carried through verbatim so
// the failure surfaces when the leaf materializes, not while opening the
// store.
func synthesizeArrayMeta(node *v3Node) json.RawMessage {
	order := BOLittleEndian
	var comp map[string]interface{}
	for _, c := range node.Codecs {
		switch c.Name {
		case "bytes":
			var cfg struct {
				Endian string `json:"endian"`
			}
			if c.Configuration != nil {
				_ = json.Unmarshal(c.Configuration, &cfg)
			}
			if cfg.Endian == "big" {
				order = BOBigEndian
			}
		case "transpose":
			// layout hint only, no bytes to undo
		default:
			if comp != nil {
				continue
			}
			comp = map[string]interface{}{"id": c.Name}
			if c.Configuration != nil {
				var cfg struct {
					Level  *int   `json:"level"`
					Clevel *int   `json:"clevel"`
					Cname  string `json:"cname"`
				}
				_ = json.Unmarshal(c.Configuration, &cfg)
				if cfg.Level != nil {
					comp["clevel"] = *cfg.Level
				}
				if cfg.Clevel != nil {
					comp["clevel"] = *cfg.Clevel
				}
				if cfg.Cname != "" {
					comp["cname"] = cfg.Cname
				}
			}
		}
	}

	dtype := node.DataType
	if dt, err := ParseV3DataType(node.DataType, order); err == nil {
		dtype = dt.String()
	}

	// the v3 default chunk key encoding roots chunks under "c" joined by
	// "/"; the compatibility "v2" encoding behaves exactly like v2 keys
	format := 3
	sep := "/"
	if node.ChunkKeyEncoding != nil {
		if node.ChunkKeyEncoding.Name == "v2" {
			format = 2
			sep = "."
		}
		if s := node.ChunkKeyEncoding.Configuration.Separator; s != "" {
			sep = s
		}
	}

	chunks := node.Shape
	if node.ChunkGrid != nil && node.ChunkGrid.Name == "regular" && len(node.ChunkGrid.Configuration.ChunkShape) > 0 {
		chunks = node.ChunkGrid.Configuration.ChunkShape
	}

	m := map[string]interface{}{
		"zarr_format":         format,
		"shape":               node.Shape,
		"chunks":              chunks,
		"dtype":               dtype,
		"compressor":          comp,
		"fill_value":          node.FillValue,
		"order":               "C",
		"filters":             nil,
		"dimension_separator": sep,
	}
	b, _ := json.Marshal(m)
	return b
}

// isObject reports whether raw encodes a JSON object
func isObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b == '{'
		}
	}
	return false
}

// trimPath normalizes a metadata key to the canonical node path form:
// slash-delimited with no leading or trailing slash, "" for the root
func trimPath(p string) string {
	return strings.Trim(p, "/")
}

func intField(m map[string]json.RawMessage, key string) int {
	var v int
	if raw, ok := m[key]; ok {
		_ = json.Unmarshal(raw, &v)
	}
	return v
}
