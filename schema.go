package spatialdata

import (
	"fmt"
	"strings"

	"github.com/blang/semver"
	json "github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tessera-io/spatialdata-go/zarr"
)

const (
	// envelopeKey wraps raster descriptors in the newest on-disk generation
	envelopeKey = "ome"
	// familyKey is the dataset-family metadata block present on elements
	// written by the spatialdata family of tools
	familyKey = "spatialdata_attrs"
)

// ElementAttrs is the schema-normalized view of an element's attributes.
// Raster kinds populate Multiscales and Omero; shapes and points populate
// EncodingType, Axes and Transforms. Raw always holds the attributes as
// stored, unrecognized fields included.
type ElementAttrs struct {
	Multiscales  []Multiscale `json:"multiscales,omitempty"`
	Omero        *Omero       `json:"omero,omitempty"`
	EncodingType string       `json:"encoding-type,omitempty"`
	Axes         []string     `json:"axes,omitempty"`
	Transforms   []Transform  `json:"coordinateTransformations,omitempty"`
	Family       *FamilyAttrs `json:"spatialdata_attrs,omitempty"`

	Raw zarr.Attributes `json:"-"`
}

// Multiscale describes one resolution pyramid of a raster element
type Multiscale struct {
	Name       string              `json:"name,omitempty"`
	Version    string              `json:"version,omitempty"`
	Axes       []Axis              `json:"axes"`
	Datasets   []MultiscaleDataset `json:"datasets"`
	Transforms []Transform         `json:"coordinateTransformations,omitempty"`
}

// MultiscaleDataset is one pyramid level: its array path below the element
// node and the transformations specific to that level
type MultiscaleDataset struct {
	Path       string      `json:"path"`
	Transforms []Transform `json:"coordinateTransformations,omitempty"`
}

// Axis names one array dimension. Written both as a bare string and as a
// {name, type, unit} object depending on format generation; both decode.
type Axis struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Unit string `json:"unit,omitempty"`
}

func (a *Axis) UnmarshalJSON(d []byte) error {
	var name string
	if err := json.Unmarshal(d, &name); err == nil {
		*a = Axis{Name: name}
		return nil
	}
	type plain Axis
	var p plain
	if err := json.Unmarshal(d, &p); err != nil {
		return fmt.Errorf("decoding axis: %w", err)
	}
	*a = Axis(p)
	return nil
}

// Omero carries channel display metadata alongside a multiscale descriptor
type Omero struct {
	Channels []OmeroChannel `json:"channels"`
}

// OmeroChannel describes one raster channel
type OmeroChannel struct {
	Label string `json:"label,omitempty"`
	Color string `json:"color,omitempty"`
}

// FamilyAttrs is the dataset-family metadata block: the on-disk format
// version, the encoding tag, and — when written explicitly — transformations
// keyed by target coordinate system.
type FamilyAttrs struct {
	Version      string               `json:"version,omitempty"`
	EncodingType string               `json:"encoding-type,omitempty"`
	Transforms   map[string]Transform `json:"coordinateTransformations,omitempty"`
	FeatureKey   string               `json:"feature_key,omitempty"`
	InstanceKey  string               `json:"instance_key,omitempty"`
}

// rasterSchema validates the multiscale descriptor shape: at least one
// pyramid with axes (2–5, string or object form) and at least one dataset
// naming a level path.
var rasterSchema = jsonschema.MustCompileString("raster.json", `{
	"type": "object",
	"required": ["multiscales"],
	"properties": {
		"multiscales": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["axes", "datasets"],
				"properties": {
					"axes": {
						"type": "array",
						"minItems": 2,
						"maxItems": 5,
						"items": {"anyOf": [{"type": "string"}, {"type": "object"}]}
					},
					"datasets": {
						"type": "array",
						"minItems": 1,
						"items": {"type": "object", "required": ["path"]}
					}
				}
			}
		}
	}
}`)

// vectorSchema validates shapes and points attributes: an encoding tag and
// a 2-D-or-more axis-name list.
var vectorSchema = jsonschema.MustCompileString("vector.json", `{
	"type": "object",
	"required": ["encoding-type", "axes"],
	"properties": {
		"encoding-type": {"type": "string"},
		"axes": {
			"type": "array",
			"minItems": 2,
			"items": {"type": "string"}
		}
	}
}`)

// family encoding tags by kind
var familyEncodings = map[ElementKind]string{
	KindImages: "ngff:image",
	KindLabels: "ngff:labels",
	KindShapes: "ngff:shapes",
	KindPoints: "ngff:points",
}

// family format-version ranges this package decodes, by kind
var familyVersions = map[ElementKind][2]semver.Version{
	KindImages: {semver.MustParse("0.1.0"), semver.MustParse("0.2.0")},
	KindLabels: {semver.MustParse("0.1.0"), semver.MustParse("0.2.0")},
	KindShapes: {semver.MustParse("0.1.0"), semver.MustParse("0.3.0")},
	KindPoints: {semver.MustParse("0.1.0"), semver.MustParse("0.2.0")},
}

// multiscale descriptor versions known to read cleanly
var (
	multiscaleVersionMin = semver.MustParse("0.1.0")
	multiscaleVersionMax = semver.MustParse("0.7.0")
)

// normalizeElementAttrs validates and decodes a tree node's attributes for
// its element kind. Validation failures never fail the element: the raw
// attributes are used as-is and the diagnostic lands in the returned
// warnings. The only hard failure is a dataset-family block declaring a
// version/encoding-type combination unknown for the kind.
func normalizeElementAttrs(kind ElementKind, key string, raw zarr.Attributes) (*ElementAttrs, []string, error) {
	if raw == nil {
		return &ElementAttrs{}, nil, nil
	}
	if kind == KindTables {
		// annotated-data payloads vary too widely for a strict schema
		return &ElementAttrs{Raw: raw}, nil, nil
	}

	attrs := raw
	var warnings []string

	if kind == KindImages || kind == KindLabels {
		promoted, warn := promoteEnvelope(attrs)
		attrs = promoted
		if warn != "" {
			warnings = append(warnings, warn)
		}
	}

	if err := checkFamily(kind, key, attrs); err != nil {
		return nil, warnings, err
	}

	sch := vectorSchema
	if kind == KindImages || kind == KindLabels {
		sch = rasterSchema
	}
	if err := sch.Validate(map[string]interface{}(attrs)); err != nil {
		warn := fmt.Sprintf("attributes failed %s schema validation: %v", kind, trimSchemaError(err))
		warnings = append(warnings, warn)
	}

	out := decodeElementAttrs(attrs, raw, &warnings)

	if kind == KindImages || kind == KindLabels {
		for _, ms := range out.Multiscales {
			if ms.Version == "" {
				continue
			}
			v, err := semver.ParseTolerant(ms.Version)
			if err != nil || v.LT(multiscaleVersionMin) || v.GTE(multiscaleVersionMax) {
				warnings = append(warnings, fmt.Sprintf("multiscale version %q untested, reading anyway", ms.Version))
			}
		}
	}

	return out, warnings, nil
}

// promoteEnvelope lifts a raster descriptor found under the envelope key to
// the top level, dropping the envelope itself and keeping both the
// envelope's siblings and its other members (channel metadata travels
// either way). The input map is never mutated. Envelopes lacking a
// multiscale descriptor are left alone and reported.
func promoteEnvelope(attrs zarr.Attributes) (zarr.Attributes, string) {
	rawEnv, ok := attrs[envelopeKey]
	if !ok {
		return attrs, ""
	}
	env, ok := rawEnv.(map[string]interface{})
	if !ok {
		return attrs, fmt.Sprintf("%q attribute is not an object, ignoring it", envelopeKey)
	}
	if _, ok := env["multiscales"]; !ok {
		return attrs, fmt.Sprintf("%q envelope carries no multiscale descriptor, ignoring it", envelopeKey)
	}

	out := make(zarr.Attributes, len(attrs)+len(env))
	for k, v := range attrs {
		if k != envelopeKey {
			out[k] = v
		}
	}
	// envelope members win over same-named siblings
	for k, v := range env {
		out[k] = v
	}
	return out, ""
}

// checkFamily gates on the dataset-family block. Missing blocks and fields
// pass; a declared encoding-type or version outside the kind's supported
// set is fatal to the element.
func checkFamily(kind ElementKind, key string, attrs zarr.Attributes) error {
	rawFam, ok := attrs[familyKey]
	if !ok {
		return nil
	}
	fam, ok := rawFam.(map[string]interface{})
	if !ok {
		return nil
	}

	encoding := stringField(attrs, "encoding-type")
	if encoding == "" {
		encoding = stringField(fam, "encoding-type")
	}
	version := stringField(fam, "version")
	if version == "" {
		version = stringField(attrs, "version")
	}

	fail := func() error {
		return &UnsupportedEncodingError{Kind: kind, Element: key, Version: version, EncodingType: encoding}
	}

	if encoding != "" {
		if expect := familyEncodings[kind]; encoding != expect {
			return fail()
		}
	}
	if version != "" {
		v, err := semver.ParseTolerant(version)
		if err != nil {
			return fail()
		}
		bounds := familyVersions[kind]
		if v.LT(bounds[0]) || v.GTE(bounds[1]) {
			return fail()
		}
	}
	return nil
}

// decodeElementAttrs re-encodes the attribute map into the typed view. On
// decode failure the typed view falls back to raw-only.
func decodeElementAttrs(attrs, raw zarr.Attributes, warnings *[]string) *ElementAttrs {
	out := &ElementAttrs{Raw: raw}
	d, err := json.Marshal(map[string]interface{}(attrs))
	if err == nil {
		err = json.Unmarshal(d, out)
	}
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("attributes do not decode: %v", err))
		return &ElementAttrs{Raw: raw}
	}
	return out
}

func stringField(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// trimSchemaError keeps the one-line summary of a validation error; the
// full cause tree is noise in a warning.
func trimSchemaError(err error) string {
	s := err.Error()
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
