package zarr

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Array is read access to one zarr array: the decoded descriptor plus the
// chunk grid math to address, fetch and decode stored chunks.
type Array struct {
	path  Path
	store Store
	meta  *ArrayMeta
}

// newArray decodes the raw descriptor captured by the tree index and
// validates its grid geometry.
func newArray(store Store, path string, raw json.RawMessage) (*Array, error) {
	meta := &ArrayMeta{}
	if err := json.Unmarshal(raw, meta); err != nil {
		return nil, fmt.Errorf("array %q: decoding descriptor: %w", path, err)
	}
	if len(meta.Shape) != len(meta.Chunks) {
		return nil, fmt.Errorf("array %q: shape rank %d != chunk rank %d", path, len(meta.Shape), len(meta.Chunks))
	}
	for i, c := range meta.Chunks {
		if c <= 0 {
			return nil, fmt.Errorf("array %q: chunk length %d on dimension %d", path, c, i)
		}
	}
	p, err := NewPath(path)
	if err != nil {
		return nil, err
	}
	return &Array{path: p, store: store, meta: meta}, nil
}

// Info summarizes the array for logs
func (a *Array) Info() string {
	return fmt.Sprintf("<zarr.Array %q shape=%v dtype=%s>", a.Path(), a.meta.Shape, a.meta.Dtype)
}

// Path is the array's slash-delimited path within the store
func (a *Array) Path() string { return a.path.String() }

// Meta returns the decoded array descriptor
func (a *Array) Meta() *ArrayMeta { return a.meta }

// Shape returns the array dimensions
func (a *Array) Shape() []int { return a.meta.Shape }

// Chunks returns the per-dimension chunk lengths
func (a *Array) Chunks() []int { return a.meta.Chunks }

// DType returns the element encoding
func (a *Array) DType() Dtype { return a.meta.Dtype }

// GridShape returns the chunk count along each dimension
func (a *Array) GridShape() []int {
	g := make([]int, len(a.meta.Shape))
	for i, s := range a.meta.Shape {
		g[i] = (s + a.meta.Chunks[i] - 1) / a.meta.Chunks[i]
	}
	return g
}

// NumChunks is the total chunk count of the grid
func (a *Array) NumChunks() int {
	n := 1
	for _, g := range a.GridShape() {
		n *= g
	}
	return n
}

// ChunkCoord returns the i-th chunk coordinate in row-major grid order
func (a *Array) ChunkCoord(i int) []int {
	grid := a.GridShape()
	coord := make([]int, len(grid))
	for d := len(grid) - 1; d >= 0; d-- {
		if grid[d] > 0 {
			coord[d] = i % grid[d]
			i /= grid[d]
		}
	}
	return coord
}

// ChunkKey builds the store key of one chunk, relative to the array node.
// v2 arrays join grid indices with the dimension separator, "." unless
// declared; descriptors carried over from v3 use the v3 default encoding,
// which roots chunk keys under "c".
func (a *Array) ChunkKey(coord []int) string {
	v3 := a.meta.ZarrFormat == 3
	sep := a.meta.DimensionSeparator
	if sep == "" {
		sep = "."
		if v3 {
			sep = "/"
		}
	}
	if v3 {
		parts := make([]string, 0, len(coord)+1)
		parts = append(parts, "c")
		for _, c := range coord {
			parts = append(parts, strconv.Itoa(c))
		}
		return strings.Join(parts, sep)
	}
	if len(coord) == 0 {
		// zero-dimensional arrays store their single chunk under "0"
		return "0"
	}
	var sb strings.Builder
	for i, c := range coord {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(strconv.Itoa(c))
	}
	return sb.String()
}

// chunkLen is the element count of one stored chunk. Edge chunks are
// stored at full chunk shape, padded with fill values.
func (a *Array) chunkLen() int {
	n := 1
	for _, c := range a.meta.Chunks {
		n *= c
	}
	return n
}

// ReadChunkRaw fetches one chunk and undoes its compression. Chunks absent
// from the store return ErrNotFound: zarr omits chunks holding only fill
// values.
func (a *Array) ReadChunkRaw(ctx context.Context, coord []int) ([]byte, error) {
	if len(coord) != len(a.meta.Shape) {
		return nil, fmt.Errorf("array %q: chunk coordinate rank %d != array rank %d",
			a.Path(), len(coord), len(a.meta.Shape))
	}
	grid := a.GridShape()
	for d, c := range coord {
		if c < 0 || c >= grid[d] {
			return nil, fmt.Errorf("array %q: chunk coordinate %v outside grid %v", a.Path(), coord, grid)
		}
	}
	data, err := a.store.Get(ctx, a.path.Join(a.ChunkKey(coord)).String())
	if err != nil {
		return nil, err
	}
	out, err := a.meta.Compressor.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("array %q chunk %v: %w", a.Path(), coord, err)
	}
	return out, nil
}

// isVlenString reports whether chunks decode through vlen-utf8 framing,
// declared by the object dtype or by an explicit filter.
func (a *Array) isVlenString() bool {
	if a.meta.Dtype.BasicType == BTObject {
		return true
	}
	for _, f := range a.meta.Filters {
		if f.ID == filterVlenUTF8 {
			return true
		}
	}
	return false
}

// ReadChunk fetches one chunk and decodes it into a typed slice ([]uint16,
// []float64, ...) holding the chunk's full element count. Variable-length
// string arrays decode through ReadStringChunk.
func (a *Array) ReadChunk(ctx context.Context, coord []int) (interface{}, error) {
	if a.isVlenString() {
		strs, err := a.ReadStringChunk(ctx, coord)
		if err != nil {
			return nil, err
		}
		return strs, nil
	}
	if len(a.meta.Filters) > 0 {
		return nil, fmt.Errorf("%w: filter %q", ErrUnsupportedCodec, a.meta.Filters[0].ID)
	}
	raw, err := a.ReadChunkRaw(ctx, coord)
	if err != nil {
		return nil, err
	}
	order, factory, err := a.meta.Dtype.sliceFactory(a.chunkLen())
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", a.Path(), err)
	}
	if want := a.chunkLen() * a.meta.Dtype.ItemSize(); len(raw) < want {
		return nil, fmt.Errorf("array %q chunk %v: %d bytes, want %d", a.Path(), coord, len(raw), want)
	}
	v := factory()
	if err := binary.Read(bytes.NewReader(raw), order, v); err != nil {
		return nil, fmt.Errorf("array %q chunk %v: %w", a.Path(), coord, err)
	}
	return v, nil
}

// ReadStringChunk fetches one chunk of a variable-length string array and
// decodes its vlen-utf8 framing: a little-endian item count, then each
// string as a little-endian byte length plus UTF-8 bytes.
func (a *Array) ReadStringChunk(ctx context.Context, coord []int) ([]string, error) {
	raw, err := a.ReadChunkRaw(ctx, coord)
	if err != nil {
		return nil, err
	}
	return decodeVlenUTF8(raw)
}

func decodeVlenUTF8(raw []byte) ([]string, error) {
	if len(raw) < 4 {
		return nil, fmt.Errorf("vlen-utf8: %d bytes is not a header", len(raw))
	}
	n := int(binary.LittleEndian.Uint32(raw))
	off := 4
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if off+4 > len(raw) {
			return nil, fmt.Errorf("vlen-utf8: item %d header past end of chunk", i)
		}
		l := int(binary.LittleEndian.Uint32(raw[off:]))
		off += 4
		if l < 0 || off+l > len(raw) {
			return nil, fmt.Errorf("vlen-utf8: item %d (%d bytes) past end of chunk", i, l)
		}
		out = append(out, string(raw[off:off+l]))
		off += l
	}
	return out, nil
}

// ReadAll reads a whole one-dimensional array, concatenating its chunks
// and trimming edge-chunk padding. Annotated-table columns are 1-D; larger
// arrays are meant to be read chunk by chunk.
func (a *Array) ReadAll(ctx context.Context) (interface{}, error) {
	if a.isVlenString() {
		strs, err := a.ReadAllStrings(ctx)
		if err != nil {
			return nil, err
		}
		return strs, nil
	}
	if len(a.meta.Shape) != 1 {
		return nil, fmt.Errorf("array %q: ReadAll reads 1-D arrays, rank is %d", a.Path(), len(a.meta.Shape))
	}
	if len(a.meta.Filters) > 0 {
		return nil, fmt.Errorf("%w: filter %q", ErrUnsupportedCodec, a.meta.Filters[0].ID)
	}

	total := a.meta.Shape[0]
	chunk := a.meta.Chunks[0]
	itemSize := a.meta.Dtype.ItemSize()
	order, factory, err := a.meta.Dtype.sliceFactory(total)
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", a.Path(), err)
	}

	buf := make([]byte, 0, total*itemSize)
	for i := 0; i*chunk < total; i++ {
		n := chunk
		if rem := total - i*chunk; rem < n {
			n = rem
		}
		raw, err := a.ReadChunkRaw(ctx, []int{i})
		if errors.Is(err, ErrNotFound) {
			// absent chunk: all fill values; zero bytes stand in
			raw = make([]byte, n*itemSize)
		} else if err != nil {
			return nil, err
		}
		if len(raw) < n*itemSize {
			return nil, fmt.Errorf("array %q chunk %d: %d bytes, want %d", a.Path(), i, len(raw), n*itemSize)
		}
		buf = append(buf, raw[:n*itemSize]...)
	}

	v := factory()
	if err := binary.Read(bytes.NewReader(buf), order, v); err != nil {
		return nil, fmt.Errorf("array %q: %w", a.Path(), err)
	}
	return v, nil
}

// ReadAllStrings reads a whole 1-D variable-length string array.
func (a *Array) ReadAllStrings(ctx context.Context) ([]string, error) {
	if len(a.meta.Shape) != 1 {
		return nil, fmt.Errorf("array %q: ReadAllStrings reads 1-D arrays, rank is %d", a.Path(), len(a.meta.Shape))
	}
	total := a.meta.Shape[0]
	chunk := a.meta.Chunks[0]
	out := make([]string, 0, total)
	for i := 0; i*chunk < total; i++ {
		n := chunk
		if rem := total - i*chunk; rem < n {
			n = rem
		}
		strs, err := a.ReadStringChunk(ctx, []int{i})
		if errors.Is(err, ErrNotFound) {
			strs = make([]string, n)
		} else if err != nil {
			return nil, err
		}
		if len(strs) < n {
			return nil, fmt.Errorf("array %q chunk %d: %d items, want %d", a.Path(), i, len(strs), n)
		}
		out = append(out, strs[:n]...)
	}
	return out, nil
}
