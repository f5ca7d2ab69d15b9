package spatialdata

import (
	"errors"
	"reflect"
	"testing"
)

func TestResolveUntargetedDefault(t *testing.T) {
	el := &Element{kind: KindImages, name: "img", attrs: &ElementAttrs{
		Multiscales: []Multiscale{{
			Datasets: []MultiscaleDataset{{
				Path:       "0",
				Transforms: []Transform{{Type: TransformIdentity}},
			}},
		}},
	}}
	all := el.ResolveAll()
	if len(all) != 1 {
		t.Fatalf("expected one system, got %v", all)
	}
	tr, ok := all[DefaultCoordinateSystem]
	if !ok || tr.Type != TransformIdentity {
		t.Fatalf("expected identity under %q, got %v", DefaultCoordinateSystem, all)
	}
}

func TestResolvePriority(t *testing.T) {
	// the same system is written by all three bands; the family entry wins
	el := &Element{kind: KindImages, name: "img", attrs: &ElementAttrs{
		Multiscales: []Multiscale{{
			Datasets: []MultiscaleDataset{{
				Path:       "0",
				Transforms: []Transform{{Type: TransformIdentity}},
			}},
			Transforms: []Transform{{
				Type:   TransformScale,
				Scale:  []float64{2, 2},
				Output: &CoordinateSystem{Name: "stage"},
			}},
		}},
		Family: &FamilyAttrs{Transforms: map[string]Transform{
			"stage": {Type: TransformTranslation, Translation: []float64{5, 5}},
		}},
	}}
	all := el.ResolveAll()
	if len(all) != 1 {
		t.Fatalf("expected only the declared system, got %v", all)
	}
	if all["stage"].Type != TransformTranslation {
		t.Fatalf("family entry should win, got %q", all["stage"].Type)
	}
}

func TestResolveExplicit(t *testing.T) {
	el := &Element{kind: KindShapes, name: "circles", attrs: &ElementAttrs{
		Transforms: []Transform{
			{Type: TransformIdentity, Output: &CoordinateSystem{Name: "global"}},
			{Type: TransformScale, Scale: []float64{2, 2}, Output: &CoordinateSystem{Name: "aligned"}},
		},
	}}
	tr, err := el.Resolve("aligned")
	if err != nil {
		t.Fatalf("resolving aligned: %s", err.Error())
	}
	if tr.Type != TransformScale {
		t.Errorf("expected the aligned entry, got %q", tr.Type)
	}
	// empty target prefers the default system when several are declared
	tr, err = el.Resolve("")
	if err != nil {
		t.Fatalf("resolving default: %s", err.Error())
	}
	if tr.Type != TransformIdentity {
		t.Errorf("expected the global entry, got %q", tr.Type)
	}
	if got := el.CoordinateSystems(); !reflect.DeepEqual(got, []string{"aligned", "global"}) {
		t.Errorf("systems are %v", got)
	}
}

func TestResolveSoleSystem(t *testing.T) {
	el := &Element{kind: KindShapes, name: "circles", attrs: &ElementAttrs{
		Transforms: []Transform{
			{Type: TransformScale, Scale: []float64{2, 2}, Output: &CoordinateSystem{Name: "aligned"}},
		},
	}}
	tr, err := el.Resolve("")
	if err != nil {
		t.Fatalf("resolving: %s", err.Error())
	}
	if tr.Type != TransformScale {
		t.Errorf("expected the sole declared system, got %q", tr.Type)
	}
}

func TestResolveMiss(t *testing.T) {
	el := &Element{kind: KindShapes, name: "circles", attrs: &ElementAttrs{
		Transforms: []Transform{
			{Type: TransformIdentity, Output: &CoordinateSystem{Name: "b"}},
			{Type: TransformIdentity, Output: &CoordinateSystem{Name: "a"}},
		},
	}}
	_, err := el.Resolve("missing")
	var nf *CoordinateSystemNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected CoordinateSystemNotFoundError, got %v", err)
	}
	if nf.Requested != "missing" || !reflect.DeepEqual(nf.Available, []string{"a", "b"}) {
		t.Errorf("error carries %q / %v", nf.Requested, nf.Available)
	}
}

func TestResolveChain(t *testing.T) {
	el := &Element{kind: KindPoints, name: "pts", attrs: &ElementAttrs{
		Transforms: []Transform{
			{Type: TransformScale, Scale: []float64{2, 2}},
			{Type: TransformTranslation, Translation: []float64{1, 1}},
		},
	}}
	all := el.ResolveAll()
	tr, ok := all[DefaultCoordinateSystem]
	if !ok {
		t.Fatalf("expected the default system, got %v", all)
	}
	if tr.Type != TransformSequence || len(tr.Transforms) != 2 {
		t.Fatalf("expected a 2-step sequence, got %+v", tr)
	}
	m, err := tr.AffineMatrix(2)
	if err != nil {
		t.Fatalf("composing: %s", err.Error())
	}
	if m[0][0] != 2 || m[0][2] != 1 {
		t.Errorf("composition wrong: %v", m)
	}
}

func TestResolveTableEmpty(t *testing.T) {
	el := &Element{kind: KindTables, name: "table", attrs: &ElementAttrs{}}
	if all := el.ResolveAll(); len(all) != 0 {
		t.Fatalf("tables must resolve to nothing, got %v", all)
	}
	_, err := el.Resolve("")
	var nf *CoordinateSystemNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected CoordinateSystemNotFoundError, got %v", err)
	}
	if len(nf.Available) != 0 {
		t.Errorf("available should be empty, got %v", nf.Available)
	}
}
