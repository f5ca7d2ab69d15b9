package zarr

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	// ErrNotFound marks keys absent from a store. Chunk reads treat it as
	// "fill-value chunk"; metadata probes treat it as "variant absent".
	ErrNotFound = errors.New("not found")

	// ErrNotGroup marks child access through an array leaf.
	ErrNotGroup = errors.New("node is not a group")

	// ErrNotArray marks array access on a group node.
	ErrNotArray = errors.New("node is not an array")

	// ErrUnsupportedCodec marks compression codecs this package cannot
	// decode in-process (blosc, unknown filter ids).
	ErrUnsupportedCodec = errors.New("unsupported compression codec")

	// ErrStopWalk can be returned from a WalkFunc to stop walking without
	// an error.
	ErrStopWalk = errors.New("walk stopped")
)

// NoConsolidatedMetadataError reports that none of the known consolidated
// metadata documents resolved at a store location. Tried names every
// document probed, in probe order.
type NoConsolidatedMetadataError struct {
	Location string
	Tried    []string
}

func (e *NoConsolidatedMetadataError) Error() string {
	return fmt.Sprintf("no consolidated metadata at %q (tried %s)",
		e.Location, strings.Join(e.Tried, ", "))
}

// InvalidDocumentError reports a consolidated metadata document whose shape
// matches none of the known generations.
type InvalidDocumentError struct {
	Reason string
}

func (e *InvalidDocumentError) Error() string {
	return "invalid consolidated metadata document: " + e.Reason
}

// StructuralError reports a corrupt hierarchy: a path that is an array and
// at the same time the parent of deeper paths.
type StructuralError struct {
	Path string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("array node %q used as a group", e.Path)
}
