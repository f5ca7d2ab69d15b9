package spatialdata

import (
	"context"
	"fmt"

	"github.com/tessera-io/spatialdata-go/zarr"
)

// pointsFrameFile is the columnar payload stored inside a points element
const pointsFrameFile = "points.parquet"

// Frame is a columnar table of point records
type Frame interface {
	NumRows() int64
	Columns() []string
}

// FrameReader decodes a columnar file stored at path into a Frame. Points
// geometry ships as Parquet next to the element metadata rather than as
// chunked arrays, so reading it needs a decoder wired in by the caller.
type FrameReader interface {
	ReadFrame(ctx context.Context, store zarr.Store, path string) (Frame, error)
}

// Points views a points element: per-point coordinates and feature columns
// stored as a single columnar file
type Points struct {
	el *Element
}

// Points returns the element's point-cloud view
func (e *Element) Points() (*Points, error) {
	if e.kind != KindPoints {
		return nil, fmt.Errorf("%s %q is not a points element", e.kind, e.name)
	}
	return &Points{el: e}, nil
}

// Element returns the underlying element
func (p *Points) Element() *Element { return p.el }

// Axes returns the coordinate axis names declared by the element
func (p *Points) Axes() []string {
	if p.el.attrs == nil {
		return nil
	}
	return p.el.attrs.Axes
}

// FramePath returns the store key of the element's columnar payload
func (p *Points) FramePath() string {
	return p.el.node.Path() + "/" + pointsFrameFile
}

// ReadFrame loads the columnar payload through the reader the store was
// opened with. Stores opened without one yield ErrNoFrameReader.
func (p *Points) ReadFrame(ctx context.Context) (Frame, error) {
	if p.el.sd == nil || p.el.sd.frames == nil {
		return nil, fmt.Errorf("points %q: %w", p.el.name, ErrNoFrameReader)
	}
	f, err := p.el.sd.frames.ReadFrame(ctx, p.el.sd.cs.Store(), p.FramePath())
	if err != nil {
		return nil, fmt.Errorf("points %q: %w", p.el.name, err)
	}
	return f, nil
}
