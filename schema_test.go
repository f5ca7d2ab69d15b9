package spatialdata

import (
	"errors"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/tessera-io/spatialdata-go/zarr"
)

func attrsFromJSON(t *testing.T, doc string) zarr.Attributes {
	t.Helper()
	var attrs zarr.Attributes
	if err := json.Unmarshal([]byte(doc), &attrs); err != nil {
		t.Fatalf("bad fixture: %s", err.Error())
	}
	return attrs
}

const imageAttrsDoc = `{
	"multiscales": [{
		"version": "0.4",
		"axes": [
			{"name": "c", "type": "channel"},
			{"name": "y", "type": "space", "unit": "micrometer"},
			{"name": "x", "type": "space", "unit": "micrometer"}
		],
		"datasets": [
			{"path": "0", "coordinateTransformations": [{"type": "scale", "scale": [1.0, 0.5, 0.5]}]},
			{"path": "1", "coordinateTransformations": [{"type": "scale", "scale": [1.0, 1.0, 1.0]}]}
		],
		"coordinateTransformations": [{"type": "identity"}]
	}],
	"omero": {"channels": [{"label": "DAPI", "color": "0000FF"}]}
}`

func TestNormalizeRaster(t *testing.T) {
	raw := attrsFromJSON(t, imageAttrsDoc)
	attrs, warnings, err := normalizeElementAttrs(KindImages, "img", raw)
	if err != nil {
		t.Fatalf("normalizing: %s", err.Error())
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(attrs.Multiscales) != 1 {
		t.Fatalf("expected 1 multiscale, got %d", len(attrs.Multiscales))
	}
	ms := attrs.Multiscales[0]
	if len(ms.Axes) != 3 || ms.Axes[0].Name != "c" || ms.Axes[1].Unit != "micrometer" {
		t.Errorf("axes not decoded: %+v", ms.Axes)
	}
	if len(ms.Datasets) != 2 || ms.Datasets[0].Path != "0" || ms.Datasets[1].Path != "1" {
		t.Errorf("datasets not decoded: %+v", ms.Datasets)
	}
	if len(ms.Datasets[0].Transforms) != 1 || ms.Datasets[0].Transforms[0].Type != TransformScale {
		t.Errorf("level transformations not decoded: %+v", ms.Datasets[0].Transforms)
	}
	if len(ms.Transforms) != 1 || ms.Transforms[0].Type != TransformIdentity {
		t.Errorf("multiscale transformations not decoded: %+v", ms.Transforms)
	}
	if attrs.Omero == nil || len(attrs.Omero.Channels) != 1 || attrs.Omero.Channels[0].Label != "DAPI" {
		t.Errorf("omero channels not decoded: %+v", attrs.Omero)
	}
}

const envelopedAttrsDoc = `{
	"ome": {
		"version": "0.5",
		"multiscales": [{
			"axes": [{"name": "y"}, {"name": "x"}],
			"datasets": [{"path": "0"}]
		}],
		"omero": {"channels": [{"label": "membrane"}]}
	},
	"channels_meta": {"note": "sibling survives"}
}`

func TestEnvelopePromotion(t *testing.T) {
	raw := attrsFromJSON(t, envelopedAttrsDoc)
	attrs, warnings, err := normalizeElementAttrs(KindImages, "img", raw)
	if err != nil {
		t.Fatalf("normalizing: %s", err.Error())
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(attrs.Multiscales) != 1 || attrs.Multiscales[0].Datasets[0].Path != "0" {
		t.Fatalf("multiscale not promoted: %+v", attrs.Multiscales)
	}
	if attrs.Omero == nil || attrs.Omero.Channels[0].Label != "membrane" {
		t.Errorf("envelope members not promoted: %+v", attrs.Omero)
	}
	if _, ok := raw["ome"]; !ok {
		t.Error("input attributes were mutated")
	}
	if _, ok := attrs.Raw["ome"]; !ok {
		t.Error("raw view must keep the envelope as stored")
	}
}

func TestNormalizeRasterInvalid(t *testing.T) {
	raw := attrsFromJSON(t, `{"multiscales": []}`)
	attrs, warnings, err := normalizeElementAttrs(KindImages, "img", raw)
	if err != nil {
		t.Fatalf("schema failures must not be fatal: %s", err.Error())
	}
	if len(warnings) == 0 || !strings.Contains(warnings[0], "schema validation") {
		t.Fatalf("expected a schema warning, got %v", warnings)
	}
	if len(attrs.Multiscales) != 0 {
		t.Errorf("nothing should decode from an empty list, got %+v", attrs.Multiscales)
	}
	if attrs.Raw == nil {
		t.Error("raw attributes must survive")
	}
}

func TestMultiscaleVersionWarning(t *testing.T) {
	raw := attrsFromJSON(t, `{
		"multiscales": [{
			"version": "9.9",
			"axes": [{"name": "y"}, {"name": "x"}],
			"datasets": [{"path": "0"}]
		}]
	}`)
	_, warnings, err := normalizeElementAttrs(KindLabels, "mask", raw)
	if err != nil {
		t.Fatalf("normalizing: %s", err.Error())
	}
	found := false
	for _, w := range warnings {
		if strings.Contains(w, `version "9.9" untested`) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a version warning, got %v", warnings)
	}
}

func TestFamilyVersionGate(t *testing.T) {
	raw := attrsFromJSON(t, `{
		"encoding-type": "ngff:shapes",
		"axes": ["x", "y"],
		"spatialdata_attrs": {"version": "9.9"}
	}`)
	_, _, err := normalizeElementAttrs(KindShapes, "circles", raw)
	var ue *UnsupportedEncodingError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnsupportedEncodingError, got %v", err)
	}
	if ue.Version != "9.9" || ue.Kind != KindShapes || ue.Element != "circles" {
		t.Errorf("error fields wrong: %+v", ue)
	}
}

func TestFamilyEncodingGate(t *testing.T) {
	raw := attrsFromJSON(t, `{
		"encoding-type": "ngff:image",
		"axes": ["x", "y"],
		"spatialdata_attrs": {"version": "0.1"}
	}`)
	_, _, err := normalizeElementAttrs(KindPoints, "pts", raw)
	var ue *UnsupportedEncodingError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnsupportedEncodingError, got %v", err)
	}
	if ue.EncodingType != "ngff:image" {
		t.Errorf("encoding type is %q", ue.EncodingType)
	}
}

func TestFamilyUnparseableVersion(t *testing.T) {
	raw := attrsFromJSON(t, `{
		"encoding-type": "ngff:shapes",
		"axes": ["x", "y"],
		"spatialdata_attrs": {"version": "latest"}
	}`)
	var ue *UnsupportedEncodingError
	if _, _, err := normalizeElementAttrs(KindShapes, "s", raw); !errors.As(err, &ue) {
		t.Fatalf("expected UnsupportedEncodingError, got %v", err)
	}
}

func TestFamilyAccepted(t *testing.T) {
	raw := attrsFromJSON(t, `{
		"encoding-type": "ngff:points",
		"axes": ["x", "y", "z"],
		"spatialdata_attrs": {
			"version": "0.1",
			"coordinateTransformations": {"aligned": {"type": "scale", "scale": [2.0, 2.0, 1.0]}}
		}
	}`)
	attrs, warnings, err := normalizeElementAttrs(KindPoints, "pts", raw)
	if err != nil {
		t.Fatalf("normalizing: %s", err.Error())
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if attrs.EncodingType != "ngff:points" || len(attrs.Axes) != 3 {
		t.Errorf("typed view wrong: %+v", attrs)
	}
	if attrs.Family == nil || attrs.Family.Version != "0.1" {
		t.Fatalf("family block not decoded: %+v", attrs.Family)
	}
	tr, ok := attrs.Family.Transforms["aligned"]
	if !ok || tr.Type != TransformScale {
		t.Errorf("family transformations not decoded: %+v", attrs.Family.Transforms)
	}
}

func TestVectorSchemaWarning(t *testing.T) {
	raw := attrsFromJSON(t, `{"encoding-type": "ngff:points"}`)
	attrs, warnings, err := normalizeElementAttrs(KindPoints, "pts", raw)
	if err != nil {
		t.Fatalf("normalizing: %s", err.Error())
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "schema validation") {
		t.Fatalf("expected one schema warning, got %v", warnings)
	}
	if attrs.EncodingType != "ngff:points" {
		t.Error("typed view should still decode best-effort")
	}
}

func TestTablesPassThrough(t *testing.T) {
	raw := attrsFromJSON(t, `{
		"spatialdata_attrs": {
			"version": "0.1",
			"region": ["circles", "squares"],
			"region_key": "region",
			"instance_key": "instance_id"
		}
	}`)
	attrs, warnings, err := normalizeElementAttrs(KindTables, "table", raw)
	if err != nil {
		t.Fatalf("tables must pass through untouched: %s", err.Error())
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if attrs.Family != nil || attrs.Multiscales != nil {
		t.Error("tables should not decode a typed view")
	}
	if attrs.Raw == nil {
		t.Error("raw attributes missing")
	}
}

func TestNormalizeNilAttrs(t *testing.T) {
	attrs, warnings, err := normalizeElementAttrs(KindImages, "bare", nil)
	if err != nil || len(warnings) != 0 {
		t.Fatalf("attr-less elements must normalize quietly, got %v / %v", warnings, err)
	}
	if attrs == nil {
		t.Fatal("expected an empty typed view")
	}
}
