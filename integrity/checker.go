// Package integrity verifies that a SpatialData store's payload is
// readable: it samples array chunks from every element, decompresses them,
// and reports per-element results the way the command-line checker prints
// them.
package integrity

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	spatialdata "github.com/tessera-io/spatialdata-go"
	"github.com/tessera-io/spatialdata-go/zarr"
)

// Options tunes a check run
type Options struct {
	// SampleChunks reads a sample of each array instead of every chunk.
	// Arrays of ten chunks or fewer are always read whole.
	SampleChunks bool
	// MaxChunks caps the chunks read per array, 0 for no cap
	MaxChunks int
	// Concurrency is the per-array fetch parallelism
	Concurrency int
}

// DefaultOptions checks a sample of each array with four fetchers
func DefaultOptions() Options {
	return Options{SampleChunks: true, Concurrency: 4}
}

// ChunkError records one unreadable chunk
type ChunkError struct {
	ChunkIndex   int    `json:"chunk_index"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
	ArrayPath    string `json:"array_path"`
}

// ElementResult is the outcome for one element
type ElementResult struct {
	ElementType   string       `json:"element_type"`
	ElementName   string       `json:"element_name"`
	Valid         bool         `json:"is_valid"`
	ChunksChecked int          `json:"chunks_checked"`
	Errors        []ChunkError `json:"errors,omitempty"`
	Warning       string       `json:"warning,omitempty"`
}

// Result is the outcome for one store: per-element results plus failures
// that prevented an element from being checked at all
type Result struct {
	Location string          `json:"path"`
	Valid    bool            `json:"is_valid"`
	Elements []ElementResult `json:"elements"`
	Errors   []string        `json:"errors,omitempty"`
}

// Checker runs integrity checks with one fixed set of options
type Checker struct {
	opts Options
}

// New returns a Checker. Zero or negative concurrency falls back to the
// default.
func New(opts Options) *Checker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultOptions().Concurrency
	}
	return &Checker{opts: opts}
}

// CheckLocation opens the object at location and checks it. Open failures
// land in the report rather than an error return, so batch callers always
// get a row per store.
func (c *Checker) CheckLocation(ctx context.Context, location string, opts ...spatialdata.Option) *Result {
	sd, err := spatialdata.ReadZarr(ctx, location, opts...)
	if err != nil {
		return &Result{
			Location: location,
			Errors:   []string{fmt.Sprintf("Failed to load SpatialData object: %s: %v", ErrorType(err), err)},
		}
	}
	defer sd.Close()
	res := c.Check(ctx, sd)
	res.Location = location
	return res
}

// Check verifies every loaded element of an open object
func (c *Checker) Check(ctx context.Context, sd *spatialdata.SpatialData) *Result {
	res := &Result{Location: sd.Location()}

	for _, f := range sd.Failures() {
		res.Errors = append(res.Errors,
			fmt.Sprintf("Error checking %s '%s': %s: %v", f.Kind, f.Name, ErrorType(f.Err), f.Err))
	}
	for _, kind := range spatialdata.Kinds() {
		for _, el := range sd.Elements(kind) {
			er, err := c.CheckElement(ctx, el)
			if err != nil {
				res.Errors = append(res.Errors,
					fmt.Sprintf("Error checking %s '%s': %s: %v", kind, el.Name(), ErrorType(err), err))
				continue
			}
			res.Elements = append(res.Elements, er)
		}
	}

	res.Valid = len(res.Errors) == 0
	for _, er := range res.Elements {
		if !er.Valid {
			res.Valid = false
		}
	}
	return res
}

// CheckElement verifies one element's stored payload. The returned error
// means the element could not be checked at all; chunk-level failures are
// recorded in the result instead.
func (c *Checker) CheckElement(ctx context.Context, el *spatialdata.Element) (ElementResult, error) {
	res := ElementResult{
		ElementType: el.Kind().String(),
		ElementName: el.Name(),
	}
	if ws := el.Warnings(); len(ws) > 0 {
		res.Warning = ws[0]
	}

	var err error
	switch el.Kind() {
	case spatialdata.KindImages, spatialdata.KindLabels:
		err = c.checkRaster(ctx, el, &res)
	case spatialdata.KindShapes:
		err = c.checkShapes(ctx, el, &res)
	case spatialdata.KindPoints:
		err = c.checkPoints(ctx, el, &res)
	case spatialdata.KindTables:
		err = c.checkTable(ctx, el)
	}
	if err != nil {
		return ElementResult{}, err
	}

	res.Valid = len(res.Errors) == 0
	return res, nil
}

// CheckArray reads a sample of the array's chunks and records each failure.
// An absent chunk is a fill-value chunk, not a failure. Returns how many
// chunks were attempted.
func (c *Checker) CheckArray(ctx context.Context, arr *zarr.Array) (int, []ChunkError) {
	picks := c.sampleOrdinals(arr.NumChunks())

	var (
		mu   sync.Mutex
		errs []ChunkError
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for _, ordinal := range picks {
		ordinal := ordinal
		g.Go(func() error {
			_, err := arr.ReadChunk(gctx, arr.ChunkCoord(ordinal))
			if err == nil || errors.Is(err, zarr.ErrNotFound) {
				return nil
			}
			mu.Lock()
			errs = append(errs, ChunkError{
				ChunkIndex:   ordinal,
				ErrorType:    ErrorType(err),
				ErrorMessage: err.Error(),
				ArrayPath:    arr.Path(),
			})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers record failures instead of returning them

	sort.Slice(errs, func(i, j int) bool { return errs[i].ChunkIndex < errs[j].ChunkIndex })
	return len(picks), errs
}

// sampleOrdinals picks which chunk ordinals to read: everything for small
// arrays, otherwise the first, the last and up to eight random interior
// chunks.
func (c *Checker) sampleOrdinals(n int) []int {
	if n <= 0 {
		return nil
	}
	var picks []int
	if !c.opts.SampleChunks || n <= 10 {
		picks = make([]int, n)
		for i := range picks {
			picks[i] = i
		}
	} else {
		seen := map[int]bool{0: true, n - 1: true}
		picks = []int{0, n - 1}
		for i := 0; i < 8; i++ {
			k := 1 + rand.Intn(n-2)
			if !seen[k] {
				seen[k] = true
				picks = append(picks, k)
			}
		}
		sort.Ints(picks)
	}
	if c.opts.MaxChunks > 0 && len(picks) > c.opts.MaxChunks {
		picks = picks[:c.opts.MaxChunks]
	}
	return picks
}

func (c *Checker) checkRaster(ctx context.Context, el *spatialdata.Element, res *ElementResult) error {
	r, err := el.Raster()
	if err != nil {
		return err
	}
	levels := r.Levels()
	if len(levels) == 0 {
		return fmt.Errorf("no pyramid levels found")
	}
	for _, path := range levels {
		arr, err := r.LevelByPath(ctx, path)
		if err != nil {
			return err
		}
		n, errs := c.CheckArray(ctx, arr)
		res.ChunksChecked += n
		res.Errors = append(res.Errors, errs...)
	}
	return nil
}

func (c *Checker) checkShapes(ctx context.Context, el *spatialdata.Element, res *ElementResult) error {
	s, err := el.Shapes()
	if err != nil {
		return err
	}
	nodes := s.GeometryArrays()
	if len(nodes) == 0 {
		return fmt.Errorf("no geometry arrays found")
	}
	for _, node := range nodes {
		arr, err := node.OpenArray(ctx)
		if err != nil {
			return err
		}
		n, errs := c.CheckArray(ctx, arr)
		res.ChunksChecked += n
		res.Errors = append(res.Errors, errs...)
	}
	return nil
}

// checkPoints reads the columnar payload when a frame reader is wired in;
// without one the element passes with a warning rather than failing.
func (c *Checker) checkPoints(ctx context.Context, el *spatialdata.Element, res *ElementResult) error {
	p, err := el.Points()
	if err != nil {
		return err
	}
	if _, err := p.ReadFrame(ctx); err != nil {
		if errors.Is(err, spatialdata.ErrNoFrameReader) {
			if res.Warning == "" {
				res.Warning = "columnar payload not checked (no frame reader configured)"
			}
			return nil
		}
		return err
	}
	return nil
}

// checkTable probes the annotation matrix by reading its observation index
func (c *Checker) checkTable(ctx context.Context, el *spatialdata.Element) error {
	t, err := el.Table()
	if err != nil {
		return err
	}
	names, err := t.ObsNames(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("empty observation index")
	}
	return nil
}

// ErrorType maps an error to the short type tag used in reports
func ErrorType(err error) string {
	var (
		invalid    *zarr.InvalidDocumentError
		structural *zarr.StructuralError
		noMeta     *zarr.NoConsolidatedMetadataError
		encoding   *spatialdata.UnsupportedEncodingError
	)
	switch {
	case errors.Is(err, zarr.ErrUnsupportedCodec):
		return "UnsupportedCodec"
	case errors.Is(err, zarr.ErrNotFound):
		return "NotFound"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.As(err, &invalid):
		return "InvalidDocument"
	case errors.As(err, &structural):
		return "StructuralError"
	case errors.As(err, &noMeta):
		return "NoConsolidatedMetadata"
	case errors.As(err, &encoding):
		return "UnsupportedEncoding"
	}
	return "ReadError"
}
