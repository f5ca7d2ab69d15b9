package zarr

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/qri-io/dataset/compression"
)

// CompressionMeta defines the compressor configuration of an array
type CompressionMeta struct {
	ID      string `json:"id"`
	Cname   string `json:"cname,omitempty"`
	Clevel  int    `json:"clevel,omitempty"`
	Shuffle int    `json:"shuffle,omitempty"`
}

// codec ids decoded in-process; anything else falls through to the
// compression registry
const (
	codecGzip  = "gzip"
	codecZlib  = "zlib"
	codecZstd  = "zstd"
	codecBlosc = "blosc"
)

// Decompress undoes the codec on one chunk's bytes. A nil meta is a
// passthrough: arrays written with "compressor": null store raw chunks.
// Blosc framing needs the blosc runtime and is reported as unsupported
// rather than misread.
func (m *CompressionMeta) Decompress(data []byte) ([]byte, error) {
	if m == nil || m.ID == "" {
		return data, nil
	}
	switch m.ID {
	case codecGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case codecZlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case codecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	case codecBlosc:
		return nil, fmt.Errorf("%w: blosc", ErrUnsupportedCodec)
	default:
		rc, err := m.Decompressor(io.NopCloser(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, m.ID)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
}

// Decompressor wraps r with the registry decoder for this codec
func (m *CompressionMeta) Decompressor(r io.ReadCloser) (io.ReadCloser, error) {
	return compression.Decompressor(m.ID, r)
}
