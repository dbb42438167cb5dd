/*
Copyright © 2019 the GridChunk authors.
This file is part of GridChunk.

GridChunk is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GridChunk is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GridChunk.  If not, see <http://www.gnu.org/licenses/>.
*/

package gridchunk

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/ctessum/geom"
	"github.com/spatialmodel/gridchunk/vm"
)

func TestSubsetContainment(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	srcRes := []float64{1, 1.5, 2, 2.5, 3, 4, 5, 6}
	dstRes := []float64{0.5, 1, 2, 3, 4, 5}
	for iter := 0; iter < 12; iter++ {
		sr := srcRes[r.Intn(len(srcRes))]
		dr := dstRes[r.Intn(len(dstRes))]
		srcState, dstState := Wrapped, Wrapped
		if r.Intn(2) == 0 {
			dstState = Unwrapped
		}
		src := NewGlobal(sr, srcState)
		dst := NewGlobal(dr, dstState)
		counts := []int{1 + r.Intn(4), 1 + r.Intn(5)}
		sels, err := Decompose(vm.Serial{}, dst, counts)
		if err != nil {
			t.Fatal(err)
		}
		s := &Subsetter{Source: src, CheckContains: true}
		for k, sel := range sels {
			chunk, err := dst.Select(sel)
			if err != nil {
				t.Fatal(err)
			}
			srcSel, covered, err := s.Subset(k+1, ChunkExtent(chunk, 0))
			if err != nil {
				t.Fatalf("src %g dst %g (%v) counts %v chunk %d: %v", sr, dr, dstState, counts, k+1, err)
			}
			if !covered {
				t.Errorf("src %g dst %g chunk %d not covered", sr, dr, k+1)
			}
			if srcSel.Len() == 0 {
				t.Errorf("src %g dst %g chunk %d: empty source subset", sr, dr, k+1)
			}
		}
	}
}

func TestSpatialIndex(t *testing.T) {
	s := &Subsetter{Source: NewRegular(0, 0, 1, 1, 2, 3)}
	s.index()
	b := &geom.Bounds{Min: geom.Point{X: 1.25, Y: 0.25}, Max: geom.Point{X: 1.75, Y: 0.75}}
	hits := s.tree.SearchIntersect(b)
	if len(hits) != 1 {
		t.Fatalf("have %d hits, want 1", len(hits))
	}
	c := hits[0].(*cellRef)
	if !reflect.DeepEqual(c.Bounds(), s.Source.CellBounds(c.i)) {
		t.Errorf("element %d: bounds %v", c.i, c.Bounds())
	}
	want := &geom.Bounds{Min: geom.Point{X: 1, Y: 0}, Max: geom.Point{X: 2, Y: 1}}
	if !reflect.DeepEqual(c.Bounds(), want) {
		t.Errorf("have %v, want %v", c.Bounds(), want)
	}
}

func TestSubsetBuffer(t *testing.T) {
	src := NewGlobal(2, Wrapped)
	s := &Subsetter{Source: src}
	if b := s.Buffer(); b != 4 {
		t.Errorf("default buffer %v != 4", b)
	}
	s = &Subsetter{Source: src, BufferModifier: 3, Resolution: 0.5}
	if b := s.Buffer(); b != 1.5 {
		t.Errorf("modified buffer %v != 1.5", b)
	}
	s = &Subsetter{Source: src, BufferDistance: 7}
	if b := s.Buffer(); b != 7 {
		t.Errorf("explicit buffer %v != 7", b)
	}
}

func TestSubsetWindow(t *testing.T) {
	src := NewRegular(0, 0, 1, 1, 10, 10)
	s := &Subsetter{Source: src, BufferDistance: 0.5}
	ext := &geom.Bounds{Min: geom.Point{X: 3, Y: 4}, Max: geom.Point{X: 5, Y: 6}}
	sel, covered, err := s.Subset(1, ext)
	if err != nil {
		t.Fatal(err)
	}
	want := Selection{Y: Range{3, 7}, X: Range{2, 6}}
	if !reflect.DeepEqual(sel, want) {
		t.Errorf("got %v, want %v", sel, want)
	}
	if !covered {
		t.Error("should be covered")
	}
}

func TestSubsetCoverage(t *testing.T) {
	src := NewRegular(0, 0, 1, 1, 10, 10)
	ext := &geom.Bounds{Min: geom.Point{X: 8, Y: 8}, Max: geom.Point{X: 12, Y: 12}}

	s := &Subsetter{Source: src}
	sel, covered, err := s.Subset(3, ext)
	if err != nil {
		t.Fatal(err)
	}
	if covered {
		t.Error("partial source should not cover")
	}
	if sel.Len() == 0 {
		t.Error("partial coverage should still select elements")
	}

	s = &Subsetter{Source: src, CheckContains: true}
	_, _, err = s.Subset(3, ext)
	var cerr *CoverageError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want CoverageError", err)
	}
	if cerr.Chunk != 3 {
		t.Errorf("chunk %d != 3", cerr.Chunk)
	}

	far := &geom.Bounds{Min: geom.Point{X: 50, Y: 50}, Max: geom.Point{X: 60, Y: 60}}
	s = &Subsetter{Source: src}
	sel, covered, err = s.Subset(4, far)
	if err != nil || covered || sel.Len() != 0 {
		t.Errorf("disjoint extent: %v, %v, %v", sel, covered, err)
	}
}

func TestSubsetAntimeridian(t *testing.T) {
	src := NewGlobal(10, Wrapped)
	s := &Subsetter{Source: src, BufferDistance: 5}
	ext := &geom.Bounds{Min: geom.Point{X: -180, Y: -10}, Max: geom.Point{X: -170, Y: 10}}
	sel, covered, err := s.Subset(1, ext)
	if err != nil {
		t.Fatal(err)
	}
	if !covered {
		t.Error("should be covered")
	}
	if sel.X != (Range{0, 36}) {
		t.Errorf("window should span the periodic boundary, got x %v", sel.X)
	}
	if sel.Y != (Range{7, 11}) {
		t.Errorf("y window %v", sel.Y)
	}
}

func TestSplitPeriodic(t *testing.T) {
	b := func(x0, y0, x1, y1 float64) *geom.Bounds {
		return &geom.Bounds{Min: geom.Point{X: x0, Y: y0}, Max: geom.Point{X: x1, Y: y1}}
	}
	tests := []struct {
		in    *geom.Bounds
		state WrappedState
		want  []*geom.Bounds
	}{
		{in: b(-10, -95, 10, 95), state: Wrapped, want: []*geom.Bounds{b(-10, -90, 10, 90)}},
		{in: b(-185, 0, -170, 10), state: Wrapped, want: []*geom.Bounds{b(175, 0, 180, 10), b(-180, 0, -170, 10)}},
		{in: b(170, 0, 185, 10), state: Wrapped, want: []*geom.Bounds{b(170, 0, 180, 10), b(-180, 0, -175, 10)}},
		{in: b(200, 0, 210, 10), state: Wrapped, want: []*geom.Bounds{b(-160, 0, -150, 10)}},
		{in: b(-10, 0, 10, 10), state: Unwrapped, want: []*geom.Bounds{b(350, 0, 360, 10), b(0, 0, 10, 10)}},
		{in: b(-200, 0, 200, 10), state: Unwrapped, want: []*geom.Bounds{b(0, 0, 360, 10)}},
		{in: b(-200, 0, 10, 10), state: WrappedUnknown, want: []*geom.Bounds{b(-200, 0, 10, 10)}},
	}
	for i, test := range tests {
		got := splitPeriodic(test.in, test.state)
		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("%d: got %v, want %v", i, got, test.want)
		}
	}
}

func TestSubsetUnstructured(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5}
	src, err := NewUnstructuredGrid(&Elements{X: x, Y: []float64{0, 0, 0, 0, 0, 0}, Proj: "+proj=lcc +lat_1=33 +lat_2=45 +lat_0=40 +lon_0=-97 +x_0=0 +y_0=0 +a=6370997 +b=6370997 +units=m +no_defs"})
	if err != nil {
		t.Fatal(err)
	}
	if src.Geographic() {
		t.Fatal("projected grid reported as geographic")
	}
	s := &Subsetter{Source: src, BufferDistance: 1}
	ext := &geom.Bounds{Min: geom.Point{X: 2, Y: 0}, Max: geom.Point{X: 3, Y: 0}}
	sel, covered, err := s.Subset(1, ext)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sel, Selection{Elements: []int{1, 2, 3, 4}}) {
		t.Errorf("got %v", sel)
	}
	if !covered {
		t.Error("should be covered")
	}
}
