// Package spatialdata reads SpatialData Zarr stores: spatial omics datasets
// laid out as images, labels, points, shapes and annotation tables under a
// consolidated-metadata root. Opening a store fetches one metadata document,
// builds the element tree from it, and validates each element's attributes;
// array chunks and table columns are fetched lazily afterwards.
package spatialdata

import (
	"context"
	"net/http"
	"sort"

	"github.com/tessera-io/spatialdata-go/internal/logging"
	"github.com/tessera-io/spatialdata-go/zarr"
)

// SpatialData is an opened store: the metadata tree plus the elements
// recognized under it
type SpatialData struct {
	location string
	cs       *zarr.ConsolidatedStore
	elements map[ElementKind]map[string]*Element
	failures []ElementFailure
	frames   FrameReader
}

// ElementFailure records an element whose attributes were rejected while
// opening the store. The rest of the store stays readable.
type ElementFailure struct {
	Kind ElementKind
	Name string
	Err  error
}

// Option configures ReadZarr
type Option func(*options)

type options struct {
	client     *http.Client
	cacheBytes int
	frames     FrameReader
	kinds      []ElementKind
	store      zarr.Store
}

// WithHTTPClient sets the client used for http and https locations
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithByteCache caches fetched chunks and metadata in memory, up to
// cacheBytes total
func WithByteCache(cacheBytes int) Option {
	return func(o *options) { o.cacheBytes = cacheBytes }
}

// WithFrameReader wires in a decoder for columnar point payloads
func WithFrameReader(r FrameReader) Option {
	return func(o *options) { o.frames = r }
}

// WithKinds restricts which element kinds are loaded
func WithKinds(kinds ...ElementKind) Option {
	return func(o *options) { o.kinds = kinds }
}

// WithStore opens the dataset on an existing store instead of dialing the
// location
func WithStore(s zarr.Store) Option {
	return func(o *options) { o.store = s }
}

// ReadZarr opens the SpatialData object at location. Elements with broken
// attributes are recorded in Failures and skipped; only an unreadable or
// structurally invalid metadata document fails the open.
func ReadZarr(ctx context.Context, location string, opts ...Option) (*SpatialData, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		var sopts []zarr.StoreOption
		if o.client != nil {
			sopts = append(sopts, zarr.WithHTTPClient(o.client))
		}
		var err error
		store, err = zarr.OpenStore(ctx, location, sopts...)
		if err != nil {
			return nil, err
		}
	}
	if o.cacheBytes > 0 {
		store = zarr.NewCachedStore(store, o.cacheBytes)
	}

	cs, err := zarr.OpenConsolidated(ctx, store)
	if err != nil {
		return nil, err
	}

	if location == "" {
		location = store.Location()
	}
	sd := &SpatialData{
		location: location,
		cs:       cs,
		elements: make(map[ElementKind]map[string]*Element),
		frames:   o.frames,
	}

	kinds := o.kinds
	if len(kinds) == 0 {
		kinds = Kinds()
	}
	loaded := 0
	for _, kind := range kinds {
		group, err := cs.Root().Child(kind.String())
		if err != nil {
			logging.Debugf("no %s group in %s", kind, location)
			continue
		}
		for _, child := range group.Children() {
			el, err := newElement(sd, kind, child)
			if err != nil {
				logging.Errorf("%s %q unreadable: %v", kind, child.Name(), err)
				sd.failures = append(sd.failures, ElementFailure{Kind: kind, Name: child.Name(), Err: err})
				continue
			}
			if sd.elements[kind] == nil {
				sd.elements[kind] = make(map[string]*Element)
			}
			sd.elements[kind][child.Name()] = el
			loaded++
		}
	}
	logging.Infof("%s: %d elements loaded, %d rejected", location, loaded, len(sd.failures))
	return sd, nil
}

// Location returns the location the object was opened from
func (sd *SpatialData) Location() string { return sd.location }

// Store returns the underlying byte store
func (sd *SpatialData) Store() zarr.Store { return sd.cs.Store() }

// Root returns the root of the metadata tree
func (sd *SpatialData) Root() *zarr.Node { return sd.cs.Root() }

// Attrs returns the store's root attributes
func (sd *SpatialData) Attrs() zarr.Attributes { return sd.cs.Root().Attrs() }

// Element returns the named element, nil when absent
func (sd *SpatialData) Element(kind ElementKind, name string) *Element {
	return sd.elements[kind][name]
}

// Elements returns all elements of one kind, name-sorted
func (sd *SpatialData) Elements(kind ElementKind) []*Element {
	names := sd.ElementNames(kind)
	out := make([]*Element, len(names))
	for i, name := range names {
		out[i] = sd.elements[kind][name]
	}
	return out
}

// ElementNames returns the element names of one kind, sorted
func (sd *SpatialData) ElementNames(kind ElementKind) []string {
	m := sd.elements[kind]
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Failures lists elements rejected while opening the store
func (sd *SpatialData) Failures() []ElementFailure { return sd.failures }

// CoordinateSystems returns the union of coordinate systems the spatial
// elements map into, sorted. Annotation tables contribute nothing.
func (sd *SpatialData) CoordinateSystems() []string {
	set := make(map[string]bool)
	for _, kind := range Kinds() {
		if !kind.Spatial() {
			continue
		}
		for _, el := range sd.elements[kind] {
			for _, name := range el.CoordinateSystems() {
				set[name] = true
			}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases the underlying store
func (sd *SpatialData) Close() error { return sd.cs.Close() }
