package spatialdata

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoFrameReader marks point-frame access on a dataset opened without a
// FrameReader. Reading columnar frames needs a reader implementation; see
// WithFrameReader.
var ErrNoFrameReader = errors.New("no frame reader configured")

// CoordinateSystemNotFoundError reports a coordinate-system lookup miss,
// carrying the systems the element does support so callers can present a
// corrective choice.
type CoordinateSystemNotFoundError struct {
	Requested string
	Available []string
}

func (e *CoordinateSystemNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("coordinate system %q not found (element declares none)", e.Requested)
	}
	return fmt.Sprintf("coordinate system %q not found (available: %s)",
		e.Requested, strings.Join(e.Available, ", "))
}

// UnsupportedEncodingError reports a dataset-family block declaring a
// format-version/encoding-type combination this package cannot decode.
// Fatal to the element it names; other elements keep loading.
type UnsupportedEncodingError struct {
	Kind         ElementKind
	Element      string
	Version      string
	EncodingType string
}

func (e *UnsupportedEncodingError) Error() string {
	return fmt.Sprintf("%s %q: unsupported encoding (version %q, encoding-type %q)",
		e.Kind, e.Element, e.Version, e.EncodingType)
}
