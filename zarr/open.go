package zarr

import (
	"context"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/tessera-io/spatialdata-go/internal/logging"
)

// Consolidated metadata documents, probed in order: zarr.json is the
// current generation, .zmetadata the v2 document, zmetadata a misnaming
// some writers produced that stays readable everywhere else.
var consolidatedVariants = []string{"zarr.json", ".zmetadata", "zmetadata"}

// ConsolidatedStore is an opened store: the raw byte store, its canonical
// metadata document, and the node tree indexed from it.
type ConsolidatedStore struct {
	store Store
	meta  *ConsolidatedMeta
	root  *Node
}

// OpenConsolidated probes the known consolidated-metadata documents at the
// store root sequentially, normalizes the first one that parses and indexes
// its hierarchy. A fetch or parse failure means "this variant is absent";
// only the combined miss surfaces, as a NoConsolidatedMetadataError naming
// every probed document. A recognized document describing a corrupt
// hierarchy fails the open instead of falling through.
func OpenConsolidated(ctx context.Context, store Store) (*ConsolidatedStore, error) {
	tried := make([]string, 0, len(consolidatedVariants))
	for _, name := range consolidatedVariants {
		tried = append(tried, name)
		doc, err := store.Get(ctx, name)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logging.Debugf("probe %s at %s: %v", name, store.Location(), err)
			continue
		}
		src := FormatV2
		if name == "zarr.json" {
			src = FormatV3
		}
		meta, err := NormalizeConsolidated(doc, src)
		if err != nil {
			logging.Debugf("probe %s at %s: %v", name, store.Location(), err)
			continue
		}
		root, err := BuildTree(store, meta)
		if err != nil {
			return nil, err
		}
		logging.Infof("opened %s via %s: %s, %d nodes",
			store.Location(), name, humanize.Bytes(uint64(len(doc))), len(meta.Metadata))
		return &ConsolidatedStore{store: store, meta: meta, root: root}, nil
	}
	return nil, &NoConsolidatedMetadataError{Location: store.Location(), Tried: tried}
}

// Store returns the raw byte store
func (cs *ConsolidatedStore) Store() Store { return cs.store }

// Meta returns the canonical consolidated metadata document
func (cs *ConsolidatedStore) Meta() *ConsolidatedMeta { return cs.meta }

// Root returns the root group of the indexed hierarchy
func (cs *ConsolidatedStore) Root() *Node { return cs.root }

// Close releases the store when its backend holds a connection.
func (cs *ConsolidatedStore) Close() error {
	if c, ok := cs.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
