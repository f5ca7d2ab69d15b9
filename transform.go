package spatialdata

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// TransformType enumerates the coordinate transformation kinds. The set is
// closed; anything else fails decoding.
type TransformType string

const (
	TransformIdentity    TransformType = "identity"
	TransformScale       TransformType = "scale"
	TransformTranslation TransformType = "translation"
	TransformAffine      TransformType = "affine"
	TransformSequence    TransformType = "sequence"
)

// CoordinateSystem references a named reference frame. On disk it appears
// both as a bare name string and as a {name, axes} object; both decode.
type CoordinateSystem struct {
	Name string `json:"name"`
	Axes []Axis `json:"axes,omitempty"`
}

func (cs *CoordinateSystem) UnmarshalJSON(d []byte) error {
	var name string
	if err := json.Unmarshal(d, &name); err == nil {
		*cs = CoordinateSystem{Name: name}
		return nil
	}
	type plain CoordinateSystem
	var p plain
	if err := json.Unmarshal(d, &p); err != nil {
		return fmt.Errorf("decoding coordinate system: %w", err)
	}
	*cs = CoordinateSystem(p)
	return nil
}

// Transform is one coordinate transformation: identity, scale, translation,
// affine, or an ordered sequence of further transformations, optionally
// annotated with input/output coordinate systems.
type Transform struct {
	Type        TransformType     `json:"type"`
	Scale       []float64         `json:"scale,omitempty"`
	Translation []float64         `json:"translation,omitempty"`
	Affine      [][]float64       `json:"affine,omitempty"`
	Transforms  []Transform       `json:"transformations,omitempty"`
	Input       *CoordinateSystem `json:"input,omitempty"`
	Output      *CoordinateSystem `json:"output,omitempty"`
}

func (t *Transform) UnmarshalJSON(d []byte) error {
	type plain Transform
	var p plain
	if err := json.Unmarshal(d, &p); err != nil {
		return err
	}
	*t = Transform(p)
	return t.validate()
}

// validate enforces the structural invariants: scale and translation carry
// at least two components, affine at least two rows of equal width three or
// more, a sequence at least one child.
func (t *Transform) validate() error {
	switch t.Type {
	case TransformIdentity:
	case TransformScale:
		if len(t.Scale) < 2 {
			return fmt.Errorf("scale transformation needs at least 2 factors, has %d", len(t.Scale))
		}
	case TransformTranslation:
		if len(t.Translation) < 2 {
			return fmt.Errorf("translation transformation needs at least 2 offsets, has %d", len(t.Translation))
		}
	case TransformAffine:
		if len(t.Affine) < 2 {
			return fmt.Errorf("affine transformation needs at least 2 rows, has %d", len(t.Affine))
		}
		width := len(t.Affine[0])
		for i, row := range t.Affine {
			if len(row) != width {
				return fmt.Errorf("affine row %d has %d columns, row 0 has %d", i, len(row), width)
			}
		}
		if width < 3 {
			return fmt.Errorf("affine rows need at least 3 columns, have %d", width)
		}
	case TransformSequence:
		if len(t.Transforms) == 0 {
			return fmt.Errorf("sequence transformation carries no transformations")
		}
	default:
		return fmt.Errorf("unknown transformation type %q", t.Type)
	}
	return nil
}

// OutputName is the declared target coordinate system, "" when untargeted
func (t Transform) OutputName() string {
	if t.Output != nil {
		return t.Output.Name
	}
	return ""
}

// AffineMatrix renders the transformation as a homogeneous
// (dim+1)×(dim+1) matrix. Sequences compose left to right: the first child
// applies first. Fails when a component's dimensionality does not match.
func (t Transform) AffineMatrix(dim int) ([][]float64, error) {
	m := identityMatrix(dim + 1)
	switch t.Type {
	case TransformIdentity:
	case TransformScale:
		if len(t.Scale) != dim {
			return nil, fmt.Errorf("scale has %d factors, want %d", len(t.Scale), dim)
		}
		for i, f := range t.Scale {
			m[i][i] = f
		}
	case TransformTranslation:
		if len(t.Translation) != dim {
			return nil, fmt.Errorf("translation has %d offsets, want %d", len(t.Translation), dim)
		}
		for i, off := range t.Translation {
			m[i][dim] = off
		}
	case TransformAffine:
		if len(t.Affine) != dim && len(t.Affine) != dim+1 {
			return nil, fmt.Errorf("affine has %d rows, want %d or %d", len(t.Affine), dim, dim+1)
		}
		for i, row := range t.Affine {
			if len(row) != dim+1 {
				return nil, fmt.Errorf("affine row %d has %d columns, want %d", i, len(row), dim+1)
			}
			copy(m[i], row)
		}
	case TransformSequence:
		for _, child := range t.Transforms {
			c, err := child.AffineMatrix(dim)
			if err != nil {
				return nil, err
			}
			m = matMul(c, m)
		}
	default:
		return nil, fmt.Errorf("unknown transformation type %q", t.Type)
	}
	return m, nil
}

func identityMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	return m
}

func matMul(a, b [][]float64) [][]float64 {
	n := len(a)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			var sum float64
			for k := 0; k < n; k++ {
				sum += a[i][k] * b[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}
