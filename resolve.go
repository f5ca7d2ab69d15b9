package spatialdata

import (
	"sort"
)

// DefaultCoordinateSystem is the system elements land in when their
// transformations declare no explicit target.
const DefaultCoordinateSystem = "global"

// transformBands collects an element's transformations by origin, weakest
// first: the finest pyramid level's own band, the element-wide band, and
// the family block's explicitly keyed entries.
type transformBands struct {
	level   []Transform
	element []Transform
	family  map[string]Transform
}

func (e *Element) transformBands() transformBands {
	var b transformBands
	a := e.attrs
	if a == nil {
		return b
	}
	switch e.kind {
	case KindImages, KindLabels:
		if len(a.Multiscales) > 0 {
			ms := a.Multiscales[0]
			if len(ms.Datasets) > 0 {
				b.level = ms.Datasets[0].Transforms
			}
			b.element = ms.Transforms
		}
	case KindPoints, KindShapes:
		b.element = a.Transforms
	}
	if a.Family != nil && len(a.Family.Transforms) > 0 {
		b.family = a.Family.Transforms
	}
	return b
}

// splitBand separates one band into its untargeted run and its entries
// declaring an output system
func splitBand(ts []Transform) ([]Transform, map[string]Transform) {
	var untargeted []Transform
	var targeted map[string]Transform
	for _, t := range ts {
		if name := t.OutputName(); name != "" {
			if targeted == nil {
				targeted = make(map[string]Transform)
			}
			targeted[name] = t
		} else {
			untargeted = append(untargeted, t)
		}
	}
	return untargeted, targeted
}

// chain folds transformations applied in order into one
func chain(ts []Transform) Transform {
	if len(ts) == 1 {
		return ts[0]
	}
	return Transform{Type: TransformSequence, Transforms: ts}
}

// ResolveAll returns every coordinate system the element maps into, keyed
// by system name. When bands target the same system the most specific one
// wins: family-block entries over element-wide entries over pyramid-level
// entries, and within a band targeted entries over untargeted ones.
// Untargeted runs apply to every declared system, or to the default system
// when nothing declares one. Annotation tables carry no transformations
// and resolve to nothing.
func (e *Element) ResolveAll() map[string]Transform {
	b := e.transformBands()
	levelPlain, levelNamed := splitBand(b.level)
	elementPlain, elementNamed := splitBand(b.element)

	declared := make(map[string]bool)
	for name := range levelNamed {
		declared[name] = true
	}
	for name := range elementNamed {
		declared[name] = true
	}
	for name := range b.family {
		declared[name] = true
	}
	if len(declared) == 0 && (len(levelPlain) > 0 || len(elementPlain) > 0) {
		declared[DefaultCoordinateSystem] = true
	}

	out := make(map[string]Transform, len(declared))
	if len(levelPlain) > 0 {
		t := chain(levelPlain)
		for name := range declared {
			out[name] = t
		}
	}
	for name, t := range levelNamed {
		out[name] = t
	}
	if len(elementPlain) > 0 {
		t := chain(elementPlain)
		for name := range declared {
			out[name] = t
		}
	}
	for name, t := range elementNamed {
		out[name] = t
	}
	for name, t := range b.family {
		out[name] = t
	}
	return out
}

// Resolve returns the transformation mapping the element into the named
// coordinate system. An empty target means the element's sole system when
// exactly one is declared, the default system otherwise.
func (e *Element) Resolve(target string) (Transform, error) {
	all := e.ResolveAll()
	if target == "" {
		if len(all) == 1 {
			for _, t := range all {
				return t, nil
			}
		}
		target = DefaultCoordinateSystem
	}
	if t, ok := all[target]; ok {
		return t, nil
	}
	return Transform{}, &CoordinateSystemNotFoundError{
		Requested: target,
		Available: sortedKeys(all),
	}
}

// CoordinateSystems lists the systems the element maps into, sorted
func (e *Element) CoordinateSystems() []string {
	return sortedKeys(e.ResolveAll())
}

func sortedKeys(m map[string]Transform) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
