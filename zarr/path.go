package zarr

import (
	"fmt"
	"strings"
)

// Path is a slice of strings that references a node within a store.
// Stores use "/"-delimited keys internally regardless of platform.
type Path []string

// NewPath normalizes a posix-style path string: backslashes become forward
// slashes, leading, trailing and duplicate separators are dropped. Paths
// that climb above the store root are rejected.
func NewPath(posix string) (Path, error) {
	s := strings.ReplaceAll(posix, "\\", "/")
	s = strings.Trim(s, "/")
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, "/")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return nil, fmt.Errorf("path %q escapes the store root", posix)
		}
		p = append(p, part)
	}
	return p, nil
}

// String implements the stringer interface
func (p Path) String() string {
	return strings.Join(p, "/")
}

// Shift removes the first element of the path, returning both the removed
// element and the remaining path
func (p Path) Shift() (string, Path) {
	if len(p) == 0 {
		return "", p
	}
	return p[0], p[1:]
}

// Join returns a copy of p with elems appended. The receiver is never
// mutated.
func (p Path) Join(elems ...string) Path {
	joined := make(Path, 0, len(p)+len(elems))
	joined = append(joined, p...)
	return append(joined, elems...)
}
