package spatialdata

import (
	"context"
	"fmt"

	"github.com/tessera-io/spatialdata-go/zarr"
)

// Array names inside a shapes element. Which subset is present depends on
// the geometry: circles carry coords/Index/radius, polygons carry
// coords/Index/offsets.
const (
	shapesCoordsArray  = "coords"
	shapesIndexArray   = "Index"
	shapesRadiusArray  = "radius"
	shapesOffsetsArray = "offsets"
)

// Shapes views a shapes element: circle or polygon geometry stored as a
// small set of flat arrays
type Shapes struct {
	el *Element
}

// Shapes returns the element's geometry view
func (e *Element) Shapes() (*Shapes, error) {
	if e.kind != KindShapes {
		return nil, fmt.Errorf("%s %q is not a shapes element", e.kind, e.name)
	}
	return &Shapes{el: e}, nil
}

// Element returns the underlying element
func (s *Shapes) Element() *Element { return s.el }

// Axes returns the coordinate axis names declared by the element
func (s *Shapes) Axes() []string {
	if s.el.attrs == nil {
		return nil
	}
	return s.el.attrs.Axes
}

// Coords opens the N×dim geometry coordinate array
func (s *Shapes) Coords(ctx context.Context) (*zarr.Array, error) {
	return s.open(ctx, shapesCoordsArray)
}

// Index opens the per-geometry identifier array
func (s *Shapes) Index(ctx context.Context) (*zarr.Array, error) {
	return s.open(ctx, shapesIndexArray)
}

// Radius opens the per-circle radius array. Only circle collections
// store one.
func (s *Shapes) Radius(ctx context.Context) (*zarr.Array, error) {
	return s.open(ctx, shapesRadiusArray)
}

// Offsets opens the polygon ring offset array. Only polygon collections
// store one.
func (s *Shapes) Offsets(ctx context.Context) (*zarr.Array, error) {
	return s.open(ctx, shapesOffsetsArray)
}

func (s *Shapes) open(ctx context.Context, name string) (*zarr.Array, error) {
	node, err := s.el.node.Child(name)
	if err != nil {
		return nil, fmt.Errorf("shapes %q array %q: %w", s.el.name, name, err)
	}
	return node.OpenArray(ctx)
}

// GeometryArrays returns the element's array children, name-sorted.
// Useful when walking a collection without assuming its geometry type.
func (s *Shapes) GeometryArrays() []*zarr.Node {
	var out []*zarr.Node
	for _, child := range s.el.node.Children() {
		if child.IsArray() {
			out = append(out, child)
		}
	}
	return out
}
