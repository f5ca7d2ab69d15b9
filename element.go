package spatialdata

import (
	"fmt"

	"github.com/tessera-io/spatialdata-go/internal/logging"
	"github.com/tessera-io/spatialdata-go/zarr"
)

// ElementKind enumerates the five fixed element categories of a SpatialData
// store. The set is closed; switches over it are exhaustive.
type ElementKind int

const (
	KindImages ElementKind = iota
	KindLabels
	KindPoints
	KindShapes
	KindTables
)

// Kinds returns every element kind, in category-group order
func Kinds() []ElementKind {
	return []ElementKind{KindImages, KindLabels, KindPoints, KindShapes, KindTables}
}

// String is the kind's category group name at the store root
func (k ElementKind) String() string {
	switch k {
	case KindImages:
		return "images"
	case KindLabels:
		return "labels"
	case KindPoints:
		return "points"
	case KindShapes:
		return "shapes"
	case KindTables:
		return "tables"
	}
	return fmt.Sprintf("ElementKind(%d)", int(k))
}

// Spatial reports whether elements of this kind are geometrically placed.
// Tables annotate other elements and carry no geometry of their own.
func (k ElementKind) Spatial() bool {
	return k != KindTables
}

// ParseElementKind resolves a category group name
func ParseElementKind(s string) (ElementKind, error) {
	for _, k := range Kinds() {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown element kind %q", s)
}

// Element is one named entry under a category group: its tree node, the
// attributes as stored, the schema-normalized view of them, and any
// validation warnings recorded while normalizing.
type Element struct {
	kind     ElementKind
	name     string
	node     *zarr.Node
	raw      zarr.Attributes
	attrs    *ElementAttrs
	warnings []string

	sd   *SpatialData
	cols *columnCache
}

func newElement(sd *SpatialData, kind ElementKind, node *zarr.Node) (*Element, error) {
	raw := node.Attrs()
	attrs, warnings, err := normalizeElementAttrs(kind, node.Name(), raw)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logging.Warningf("%s %q: %s", kind, node.Name(), w)
	}
	el := &Element{
		kind:     kind,
		name:     node.Name(),
		node:     node,
		raw:      raw,
		attrs:    attrs,
		warnings: warnings,
		sd:       sd,
	}
	if kind == KindTables {
		el.cols = newColumnCache()
	}
	return el, nil
}

// Kind is the element's category
func (e *Element) Kind() ElementKind { return e.kind }

// Name is the element's entry name within its category group
func (e *Element) Name() string { return e.name }

// Node is the element's tree node
func (e *Element) Node() *zarr.Node { return e.node }

// RawAttrs returns the attributes exactly as stored
func (e *Element) RawAttrs() zarr.Attributes { return e.raw }

// Attrs returns the schema-normalized attributes. When validation failed
// the struct is decoded best-effort from the raw attributes and Warnings
// records what did not hold.
func (e *Element) Attrs() *ElementAttrs { return e.attrs }

// Warnings lists schema diagnostics recorded while normalizing
func (e *Element) Warnings() []string { return e.warnings }
