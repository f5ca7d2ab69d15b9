package spatialdata

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/tessera-io/spatialdata-go/zarr"
)

// Raster views an images or labels element as a resolution pyramid
type Raster struct {
	el *Element
}

// Raster returns the element's pyramid view. Only images and labels
// elements have one.
func (e *Element) Raster() (*Raster, error) {
	if e.kind != KindImages && e.kind != KindLabels {
		return nil, fmt.Errorf("%s %q is not a raster element", e.kind, e.name)
	}
	return &Raster{el: e}, nil
}

// Element returns the underlying element
func (r *Raster) Element() *Element { return r.el }

// Multiscale returns the primary pyramid descriptor, nil when the
// attributes declare none
func (r *Raster) Multiscale() *Multiscale {
	if r.el.attrs == nil || len(r.el.attrs.Multiscales) == 0 {
		return nil
	}
	return &r.el.attrs.Multiscales[0]
}

// Axes returns the pyramid's axis names in dimension order
func (r *Raster) Axes() []string {
	ms := r.Multiscale()
	if ms == nil {
		return nil
	}
	names := make([]string, len(ms.Axes))
	for i, ax := range ms.Axes {
		names[i] = ax.Name
	}
	return names
}

// Levels returns the pyramid level paths, finest first. Descriptor-declared
// paths win; when the descriptor did not decode the element's array
// children stand in, numerically ordered.
func (r *Raster) Levels() []string {
	if ms := r.Multiscale(); ms != nil && len(ms.Datasets) > 0 {
		paths := make([]string, len(ms.Datasets))
		for i, ds := range ms.Datasets {
			paths[i] = ds.Path
		}
		return paths
	}

	var paths []string
	for _, child := range r.el.node.Children() {
		if child.IsArray() {
			paths = append(paths, child.Name())
		}
	}
	sort.Slice(paths, func(i, j int) bool {
		a, aerr := strconv.Atoi(paths[i])
		b, berr := strconv.Atoi(paths[j])
		if aerr == nil && berr == nil {
			return a < b
		}
		return paths[i] < paths[j]
	})
	return paths
}

// NumLevels is the pyramid depth
func (r *Raster) NumLevels() int { return len(r.Levels()) }

// Level opens the i-th pyramid level, 0 the finest
func (r *Raster) Level(ctx context.Context, i int) (*zarr.Array, error) {
	levels := r.Levels()
	if i < 0 || i >= len(levels) {
		return nil, fmt.Errorf("%s %q has %d pyramid levels, no level %d",
			r.el.kind, r.el.name, len(levels), i)
	}
	return r.LevelByPath(ctx, levels[i])
}

// LevelByPath opens the pyramid level stored at path below the element node
func (r *Raster) LevelByPath(ctx context.Context, path string) (*zarr.Array, error) {
	node, err := r.el.node.Lookup(path)
	if err != nil {
		return nil, fmt.Errorf("%s %q level %q: %w", r.el.kind, r.el.name, path, err)
	}
	return node.OpenArray(ctx)
}

// Channels returns per-channel display metadata, nil when none is recorded
func (r *Raster) Channels() []OmeroChannel {
	if r.el.attrs == nil || r.el.attrs.Omero == nil {
		return nil
	}
	return r.el.attrs.Omero.Channels
}
