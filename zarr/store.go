// Package zarr reads zarr v2 and v3 hierarchies through their consolidated
// metadata. A Store gives raw byte access to one store location;
// OpenConsolidated probes the known consolidated-metadata documents,
// normalizes whichever generation it finds into a canonical shape and
// indexes the hierarchy into a node tree whose array leaves materialize
// lazily.
package zarr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/coocood/freecache"
	"github.com/dustin/go-humanize"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"

	"github.com/tessera-io/spatialdata-go/internal/logging"
)

// Store is read access to a single zarr store. Implementations return
// ErrNotFound (wrapped) for keys that do not exist, so callers can tell
// absent chunks and metadata documents apart from transport failures.
type Store interface {
	// Get returns the value stored under key, relative to the store root.
	Get(ctx context.Context, key string) ([]byte, error)
	// Location identifies the store root in errors and logs.
	Location() string
}

type storeOptions struct {
	client *http.Client
}

// StoreOption configures OpenStore.
type StoreOption func(*storeOptions)

// WithHTTPClient replaces the default client used by HTTP-backed stores.
func WithHTTPClient(c *http.Client) StoreOption {
	return func(o *storeOptions) {
		if c != nil {
			o.client = c
		}
	}
}

// OpenStore resolves a store location to a backend by URL scheme: http(s)
// locations read over HTTP, s3/gs/file/mem locations through their blob
// drivers, anything else is treated as a local directory.
func OpenStore(ctx context.Context, location string, opts ...StoreOption) (Store, error) {
	o := storeOptions{client: http.DefaultClient}
	for _, opt := range opts {
		opt(&o)
	}
	u, err := url.Parse(location)
	if err != nil {
		return NewLocalStore(location)
	}
	switch u.Scheme {
	case "http", "https":
		return NewHTTPStore(location, o.client), nil
	case "s3", "gs", "file", "mem":
		return NewBucketStore(ctx, location)
	default:
		return NewLocalStore(location)
	}
}

// MemoryStore holds a store in memory. The read path never writes to a
// store; Set exists for fixtures and tests.
type MemoryStore struct {
	lk   sync.Mutex
	data map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore allocates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

// Location identifies the store in errors and logs
func (s *MemoryStore) Location() string { return "memory" }

// Get returns the value stored under key
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	d, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return d, nil
}

// Set stores a copy of val under key
func (s *MemoryStore) Set(key string, val []byte) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.data[key] = append([]byte(nil), val...)
}

// Delete removes key, if present
func (s *MemoryStore) Delete(key string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	delete(s.data, key)
}

// LocalStore reads a store rooted at a local directory.
type LocalStore struct {
	base string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates a store handle for the directory at base. The
// directory does not have to exist; reads against a missing root surface
// as ErrNotFound the same way missing keys do.
func NewLocalStore(base string) (*LocalStore, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	return &LocalStore{base: abs}, nil
}

// Location is the absolute store root directory
func (s *LocalStore) Location() string { return s.base }

// Get reads the file stored under key
func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	d, err := os.ReadFile(filepath.Join(s.base, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return d, err
}

// HTTPStore reads store keys as URLs beneath a base http(s) location.
type HTTPStore struct {
	base   string
	client *http.Client
}

var _ Store = (*HTTPStore)(nil)

// NewHTTPStore creates a store handle for the given base URL. A nil client
// falls back to http.DefaultClient.
func NewHTTPStore(base string, client *http.Client) *HTTPStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPStore{base: strings.TrimRight(base, "/"), client: client}
}

// Location is the base URL
func (s *HTTPStore) Location() string { return s.base }

// Get fetches the value stored under key. 404 and 410 responses map to
// ErrNotFound; any other non-2xx status is a transport failure.
func (s *HTTPStore) Get(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/"+key, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("get %s/%s: unexpected status %s", s.base, key, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// BucketStore reads store keys from a cloud blob bucket (s3://, gs://,
// file://, mem://). Path segments below an object-store bucket become a
// key prefix.
type BucketStore struct {
	location string
	bucket   *blob.Bucket
}

var _ Store = (*BucketStore)(nil)

// NewBucketStore opens the bucket behind location through its blob driver.
func NewBucketStore(ctx context.Context, location string) (*BucketStore, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	ref := location
	var prefix string
	switch u.Scheme {
	case "s3", "gs":
		if trimmed := strings.Trim(u.Path, "/"); trimmed != "" {
			prefix = trimmed + "/"
			ref = u.Scheme + "://" + u.Host
		}
	}
	bucket, err := blob.OpenBucket(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("open bucket %q: %w", location, err)
	}
	if prefix != "" {
		bucket = blob.PrefixedBucket(bucket, prefix)
	}
	return &BucketStore{location: location, bucket: bucket}, nil
}

// Location is the bucket URL as given
func (s *BucketStore) Location() string { return s.location }

// Get reads the blob stored under key
func (s *BucketStore) Get(ctx context.Context, key string) ([]byte, error) {
	d, err := s.bucket.ReadAll(ctx, key)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return d, err
}

// Close releases the bucket connection.
func (s *BucketStore) Close() error { return s.bucket.Close() }

// CachedStore caches successful reads from an inner store in memory.
// Failures are never cached, so a retry always reaches the inner store.
type CachedStore struct {
	inner Store
	cache *freecache.Cache
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore wraps inner with an in-memory byte cache of roughly
// cacheBytes capacity.
func NewCachedStore(inner Store, cacheBytes int) *CachedStore {
	return &CachedStore{inner: inner, cache: freecache.NewCache(cacheBytes)}
}

// Location reports the inner store's location
func (s *CachedStore) Location() string { return s.inner.Location() }

// Get serves key from cache when possible, reading (and caching) through
// the inner store otherwise.
func (s *CachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	k := []byte(key)
	if d, err := s.cache.Get(k); err == nil {
		return d, nil
	} else if err != freecache.ErrNotFound {
		logging.Warningf("byte cache get %q: %v", key, err)
	}
	d, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(k, d, 0); err != nil {
		// values past the per-entry limit just stay uncached
		logging.Debugf("byte cache set %q (%s): %v", key, humanize.Bytes(uint64(len(d))), err)
	}
	return d, nil
}

// Close releases the inner store when it holds a connection.
func (s *CachedStore) Close() error {
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
