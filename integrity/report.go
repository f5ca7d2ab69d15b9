package integrity

import (
	"fmt"
	"strings"
)

// Render formats the element line of a text report
func (e *ElementResult) Render() string {
	mark := "✓"
	if !e.Valid {
		mark = "✗"
	}
	s := fmt.Sprintf("%s %s: '%s'", mark, capitalize(e.ElementType), e.ElementName)
	if e.ChunksChecked > 0 {
		s += fmt.Sprintf(" (%d chunks checked)", e.ChunksChecked)
	}
	if e.Warning != "" {
		s += fmt.Sprintf(" - Warning: %s", e.Warning)
	}
	for _, ce := range e.Errors {
		s += fmt.Sprintf("\n  - Error at chunk %d: %s", ce.ChunkIndex, ce.ErrorType)
	}
	return s
}

// Render formats the full text report
func (r *Result) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Checking SpatialData object: %s\n", r.Location)
	for i := range r.Elements {
		fmt.Fprintf(&b, "  %s\n", r.Elements[i].Render())
	}
	if len(r.Errors) > 0 {
		b.WriteString("\nErrors encountered:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	invalid := 0
	for i := range r.Elements {
		if !r.Elements[i].Valid {
			invalid++
		}
	}
	fmt.Fprintf(&b, "\nSummary: %d error(s) found in %d element(s)\n", invalid, len(r.Elements))
	return b.String()
}

// capitalize upper-cases the first byte; element type names are ASCII
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
