package zarr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/tessera-io/spatialdata-go/internal/logging"
)

// Node is one entry in the indexed hierarchy: a group with children or an
// array leaf. Nodes are built once from consolidated metadata and never
// mutated afterwards; navigation touches no storage. Only OpenArray
// carries store-derived state, and that state is memoized.
type Node struct {
	name     string
	path     string
	store    Store
	attrs    Attributes
	arrayRaw json.RawMessage
	children map[string]*Node

	mu     sync.Mutex
	flight singleflight.Group
	opened bool
	arr    *Array
	arrErr error
}

// BuildTree indexes a canonical metadata document into a node tree rooted
// at a group. Paths attach parents-first (sorted by segment depth), so
// intermediate groups missing their own record exist by the time children
// arrive; they carry empty attributes. The root path contributes root
// attributes only. A path that is an array and also a parent of deeper
// paths is corrupt input and fails the build.
func BuildTree(store Store, meta *ConsolidatedMeta) (*Node, error) {
	root := &Node{store: store, children: map[string]*Node{}}

	paths := meta.Paths()
	sort.SliceStable(paths, func(i, j int) bool {
		return pathDepth(paths[i]) < pathDepth(paths[j])
	})

	for _, p := range paths {
		rec := meta.Metadata[p]
		if p == "" {
			root.attrs = decodeAttrs(rec, p)
			continue
		}
		segs := strings.Split(p, "/")
		cur := root
		for i, seg := range segs {
			child, ok := cur.children[seg]
			if !ok {
				child = &Node{
					name:     seg,
					path:     joinPath(cur.path, seg),
					store:    store,
					children: map[string]*Node{},
				}
				cur.children[seg] = child
			}
			if i < len(segs)-1 {
				if child.IsArray() {
					return nil, &StructuralError{Path: child.path}
				}
				cur = child
				continue
			}
			child.attrs = decodeAttrs(rec, p)
			if raw, ok := rec[MTArray]; ok {
				if len(child.children) > 0 {
					return nil, &StructuralError{Path: child.path}
				}
				child.arrayRaw = raw
			}
		}
	}
	return root, nil
}

// decodeAttrs keeps unreadable attribute documents from failing the whole
// build; the node just ends up without attributes.
func decodeAttrs(rec NodeMeta, path string) Attributes {
	attrs, err := rec.Attrs()
	if err != nil {
		logging.Warningf("attributes at %q unreadable: %v", path, err)
		return nil
	}
	return attrs
}

func pathDepth(p string) int {
	if p == "" {
		return 0
	}
	return strings.Count(p, "/") + 1
}

func joinPath(base, seg string) string {
	if base == "" {
		return seg
	}
	return base + "/" + seg
}

// Name is the final path segment, "" for the root
func (n *Node) Name() string { return n.name }

// Path is the full slash-delimited path from the store root, "" for the root
func (n *Node) Path() string { return n.path }

// Attrs returns the node's attributes as stored, possibly nil. The map is
// shared, not copied.
func (n *Node) Attrs() Attributes { return n.attrs }

// IsArray reports whether the node is an array leaf
func (n *Node) IsArray() bool { return n.arrayRaw != nil }

// Child returns the named child of a group node
func (n *Node) Child(name string) (*Node, error) {
	if n.IsArray() {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, n.path)
	}
	c, ok := n.children[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, joinPath(n.path, name))
	}
	return c, nil
}

// Children returns the node's children sorted by name
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Lookup resolves a slash-delimited path relative to n
func (n *Node) Lookup(path string) (*Node, error) {
	p, err := NewPath(path)
	if err != nil {
		return nil, err
	}
	cur := n
	for head, rest := p.Shift(); head != ""; head, rest = rest.Shift() {
		c, err := cur.Child(head)
		if err != nil {
			return nil, err
		}
		cur = c
	}
	return cur, nil
}

// WalkFunc visits nodes during a Walk. Returning ErrStopWalk ends the walk
// early without error; any other error aborts it.
type WalkFunc func(path string, n *Node) error

// Walk visits n and every node beneath it, parents before children,
// siblings in name order.
func (n *Node) Walk(fn WalkFunc) error {
	if err := n.walk(fn); err != nil && !errors.Is(err, ErrStopWalk) {
		return err
	}
	return nil
}

func (n *Node) walk(fn WalkFunc) error {
	if err := fn(n.path, n); err != nil {
		return err
	}
	for _, c := range n.Children() {
		if err := c.walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// OpenArray materializes the array behind a leaf. The first completion is
// memoized for the node's lifetime, success or failure, and concurrent
// first calls share one materialization.
func (n *Node) OpenArray(ctx context.Context) (*Array, error) {
	if !n.IsArray() {
		return nil, fmt.Errorf("%w: %s", ErrNotArray, n.path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	if n.opened {
		arr, err := n.arr, n.arrErr
		n.mu.Unlock()
		return arr, err
	}
	n.mu.Unlock()

	v, err, _ := n.flight.Do(n.path, func() (interface{}, error) {
		arr, err := newArray(n.store, n.path, n.arrayRaw)
		n.mu.Lock()
		n.arr, n.arrErr, n.opened = arr, err, true
		n.mu.Unlock()
		return arr, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*Array), nil
}
