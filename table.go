package spatialdata

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tessera-io/spatialdata-go/zarr"
)

// columnCache memoizes decoded table columns by path. Only successful
// loads are stored, so a column whose chunks failed to fetch is retried on
// the next call instead of pinning the error.
type columnCache struct {
	mu     sync.Mutex
	cols   map[string]interface{}
	flight singleflight.Group
}

func newColumnCache() *columnCache {
	return &columnCache{cols: make(map[string]interface{})}
}

func (c *columnCache) getOrLoad(path string, load func() (interface{}, error)) (interface{}, error) {
	c.mu.Lock()
	if v, ok := c.cols[path]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err, _ := c.flight.Do(path, func() (interface{}, error) {
		v, err := load()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cols[path] = v
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Table views a tables element: an annotation matrix whose columns
// describe the instances of other elements
type Table struct {
	el *Element
}

// Table returns the element's annotation view
func (e *Element) Table() (*Table, error) {
	if e.kind != KindTables {
		return nil, fmt.Errorf("%s %q is not a table element", e.kind, e.name)
	}
	return &Table{el: e}, nil
}

// Element returns the underlying element
func (t *Table) Element() *Element { return t.el }

// Column reads the column stored at path below the element node. Plain
// arrays decode to their natural slice type; categorical groups (codes
// indexing into categories) materialize to []string with unassigned codes
// as "". Decoded columns are cached per element.
func (t *Table) Column(ctx context.Context, path string) (interface{}, error) {
	return t.el.cols.getOrLoad(path, func() (interface{}, error) {
		v, err := t.loadColumn(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("tables %q column %q: %w", t.el.name, path, err)
		}
		return v, nil
	})
}

func (t *Table) loadColumn(ctx context.Context, path string) (interface{}, error) {
	node, err := t.el.node.Lookup(path)
	if err != nil {
		return nil, err
	}
	if !node.IsArray() {
		return t.loadCategorical(ctx, node)
	}
	arr, err := node.OpenArray(ctx)
	if err != nil {
		return nil, err
	}
	return arr.ReadAll(ctx)
}

// loadCategorical materializes a codes-plus-categories group. Codes below
// zero or past the category list decode to the empty string.
func (t *Table) loadCategorical(ctx context.Context, node *zarr.Node) (interface{}, error) {
	codes, err := t.readCodes(ctx, node)
	if err != nil {
		return nil, err
	}
	cats, err := t.readCategories(ctx, node)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(codes))
	for i, c := range codes {
		if c >= 0 && c < int64(len(cats)) {
			out[i] = cats[c]
		}
	}
	return out, nil
}

func (t *Table) readCodes(ctx context.Context, node *zarr.Node) ([]int64, error) {
	child, err := node.Child("codes")
	if err != nil {
		return nil, err
	}
	arr, err := child.OpenArray(ctx)
	if err != nil {
		return nil, err
	}
	v, err := arr.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	codes, ok := toIntSlice(v)
	if !ok {
		return nil, fmt.Errorf("categorical codes have dtype %s, want an integer type", arr.DType().String())
	}
	return codes, nil
}

func (t *Table) readCategories(ctx context.Context, node *zarr.Node) ([]string, error) {
	child, err := node.Child("categories")
	if err != nil {
		return nil, err
	}
	arr, err := child.OpenArray(ctx)
	if err != nil {
		return nil, err
	}
	return arr.ReadAllStrings(ctx)
}

// ObsNames returns the observation index of the annotation matrix: the obs
// column named by the obs group's "_index" attribute, "_index" by default.
func (t *Table) ObsNames(ctx context.Context) ([]string, error) {
	return t.axisNames(ctx, "obs")
}

// VarNames returns the variable index of the annotation matrix
func (t *Table) VarNames(ctx context.Context) ([]string, error) {
	return t.axisNames(ctx, "var")
}

func (t *Table) axisNames(ctx context.Context, axis string) ([]string, error) {
	group, err := t.el.node.Child(axis)
	if err != nil {
		return nil, fmt.Errorf("tables %q: %w", t.el.name, err)
	}
	idx := "_index"
	if v, ok := group.Attrs()["_index"].(string); ok && v != "" {
		idx = v
	}
	col, err := t.Column(ctx, axis+"/"+idx)
	if err != nil {
		return nil, err
	}
	names, ok := col.([]string)
	if !ok {
		return nil, fmt.Errorf("tables %q: %s index %q is not a string column", t.el.name, axis, idx)
	}
	return names, nil
}

func toIntSlice(v interface{}) ([]int64, bool) {
	switch s := v.(type) {
	case []int64:
		return s, true
	case []int8:
		out := make([]int64, len(s))
		for i, n := range s {
			out[i] = int64(n)
		}
		return out, true
	case []int16:
		out := make([]int64, len(s))
		for i, n := range s {
			out[i] = int64(n)
		}
		return out, true
	case []int32:
		out := make([]int64, len(s))
		for i, n := range s {
			out[i] = int64(n)
		}
		return out, true
	case []uint8:
		out := make([]int64, len(s))
		for i, n := range s {
			out[i] = int64(n)
		}
		return out, true
	case []uint16:
		out := make([]int64, len(s))
		for i, n := range s {
			out[i] = int64(n)
		}
		return out, true
	case []uint32:
		out := make([]int64, len(s))
		for i, n := range s {
			out[i] = int64(n)
		}
		return out, true
	case []uint64:
		out := make([]int64, len(s))
		for i, n := range s {
			out[i] = int64(n)
		}
		return out, true
	}
	return nil, false
}
