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

package gridio

import (
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/kr/pretty"
	"github.com/spatialmodel/gridchunk"
)

func different(a, b, tolerance float64) bool {
	if a == b {
		return false
	}
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

// testGrid returns a 3x4 grid with custom global ids, a mask and one data
// variable.
func testGrid(t *testing.T) *gridchunk.StructuredGrid {
	g := gridchunk.NewRegular(-10, 20, 2, 1, 3, 4)
	g.IDs = make([]uint64, g.Len())
	g.IMask = make([]int32, g.Len())
	temp := make([]float64, g.Len())
	for i := range g.IDs {
		g.IDs[i] = uint64(100 + 3*i)
		g.IMask[i] = int32(i % 2)
		temp[i] = float64(i) * 1.5
	}
	g.Vars = map[string][]float64{"temp": temp}
	return g
}

func TestParseFormat(t *testing.T) {
	for have, want := range map[string]string{
		"scrip":    SCRIP,
		"GRIDSPEC": GRIDSPEC,
		"cf":       GRIDSPEC,
		"CFGRID":   GRIDSPEC,
		"ugrid":    UGRID,
	} {
		f, err := ParseFormat(have)
		if err != nil {
			t.Fatal(err)
		}
		if f != want {
			t.Errorf("%s: have %s, want %s", have, f, want)
		}
	}
	if _, err := ParseFormat("shapefile"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestSCRIP(t *testing.T) {
	g := testGrid(t)
	path := filepath.Join(t.TempDir(), "grid.nc")
	if err := WriteSCRIP(path, g); err != nil {
		t.Fatal(err)
	}
	r, err := ReadSCRIP(path)
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != g.Len() {
		t.Fatalf("length: have %d, want %d", r.Len(), g.Len())
	}
	if !reflect.DeepEqual(r.GlobalIDs(), g.GlobalIDs()) {
		t.Errorf("ids: %v", pretty.Diff(r.GlobalIDs(), g.GlobalIDs()))
	}
	if !reflect.DeepEqual(r.Mask(), g.Mask()) {
		t.Errorf("mask: %v", pretty.Diff(r.Mask(), g.Mask()))
	}
	if !reflect.DeepEqual(r.Variable("temp"), g.Variable("temp")) {
		t.Errorf("temp: %v", pretty.Diff(r.Variable("temp"), g.Variable("temp")))
	}
	if !reflect.DeepEqual(r.XCorners, g.XCorners) || !reflect.DeepEqual(r.YCorners, g.YCorners) {
		t.Error("corners do not match")
	}
	for i := 0; i < g.Len(); i++ {
		if r.Center(i) != g.Center(i) {
			t.Errorf("center %d: have %v, want %v", i, r.Center(i), g.Center(i))
		}
	}
	if r.CRS() != g.CRS() {
		t.Errorf("crs: have %q, want %q", r.CRS(), g.CRS())
	}
	if !r.Geographic() {
		t.Error("grid should be geographic")
	}
}

func TestSCRIPSelection(t *testing.T) {
	g := testGrid(t)
	sub, err := g.Select(gridchunk.Selection{Elements: []int{1, 6, 11}})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "sub.nc")
	if err := WriteSCRIP(path, sub); err != nil {
		t.Fatal(err)
	}
	r, err := Open(path, "SCRIP")
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{103, 118, 133}
	if !reflect.DeepEqual(r.GlobalIDs(), want) {
		t.Errorf("have %v, want %v", r.GlobalIDs(), want)
	}
}

func TestSCRIPEmpty(t *testing.T) {
	g, err := gridchunk.NewUnstructuredGrid(&gridchunk.Elements{X: []float64{}, Y: []float64{}})
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteSCRIP(filepath.Join(t.TempDir(), "empty.nc"), g); err == nil {
		t.Error("expected an error writing an empty grid")
	}
}

func TestGRIDSPEC(t *testing.T) {
	g := testGrid(t)
	path := filepath.Join(t.TempDir(), "grid.nc")
	if err := WriteGRIDSPEC(path, g); err != nil {
		t.Fatal(err)
	}
	r, err := Open(path, "CF")
	if err != nil {
		t.Fatal(err)
	}
	s, ok := r.(*gridchunk.StructuredGrid)
	if !ok {
		t.Fatalf("have %T, want *gridchunk.StructuredGrid", r)
	}
	if s.NY != 3 || s.NX != 4 {
		t.Errorf("shape: have (%d, %d)", s.NY, s.NX)
	}
	if !reflect.DeepEqual(s.GlobalIDs(), g.GlobalIDs()) {
		t.Errorf("ids: %v", pretty.Diff(s.GlobalIDs(), g.GlobalIDs()))
	}
	if !reflect.DeepEqual(s.Mask(), g.Mask()) {
		t.Errorf("mask: %v", pretty.Diff(s.Mask(), g.Mask()))
	}
	if !reflect.DeepEqual(s.Variable("temp"), g.Variable("temp")) {
		t.Errorf("temp: %v", pretty.Diff(s.Variable("temp"), g.Variable("temp")))
	}
	if !reflect.DeepEqual(s.XCorners, g.XCorners) || !reflect.DeepEqual(s.YCorners, g.YCorners) {
		t.Errorf("corners: %v", pretty.Diff(s.XCorners, g.XCorners))
	}
	if different(s.Resolution(), g.Resolution(), 1e-12) {
		t.Errorf("resolution: have %g, want %g", s.Resolution(), g.Resolution())
	}
}

func TestGRIDSPECNotRectilinear(t *testing.T) {
	g := gridchunk.NewRegular(0, 0, 1, 1, 2, 2)
	g.X[3] += 0.25
	path := filepath.Join(t.TempDir(), "grid.nc")
	if err := WriteGRIDSPEC(path, g); err == nil {
		t.Error("expected an error for a curvilinear grid")
	}
}

func TestWeights(t *testing.T) {
	dir := t.TempDir()
	w := &gridchunk.Weights{}
	w.Add(1, 2, 0.25)
	w.Add(1, 3, 0.75)
	w.Add(4, 1, 1)
	path := filepath.Join(dir, "w.nc")
	if err := WriteWeights(path, w); err != nil {
		t.Fatal(err)
	}
	r, err := ReadWeights(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(r, w) {
		t.Errorf("weights: %v", pretty.Diff(r, w))
	}

	empty := filepath.Join(dir, "empty.nc")
	if err := WriteWeights(empty, &gridchunk.Weights{}); err != nil {
		t.Fatal(err)
	}
	r, err = ReadWeights(empty)
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != 0 {
		t.Errorf("empty weights have %d links", r.Len())
	}

	big := &gridchunk.Weights{}
	big.Add(math.MaxInt32+1, 1, 1)
	if err := WriteWeights(filepath.Join(dir, "big.nc"), big); err == nil {
		t.Error("expected an error for an index that does not fit")
	}
	bad := &gridchunk.Weights{Row: []uint64{1}, S: []float64{1}}
	if err := WriteWeights(filepath.Join(dir, "bad.nc"), bad); err == nil {
		t.Error("expected an error for mismatched arrays")
	}
}

func TestMaster(t *testing.T) {
	for _, tc := range []struct {
		name string
		grid gridchunk.Grid
	}{
		{name: "structured", grid: testGrid(t)},
		{name: "curvilinear", grid: func() gridchunk.Grid {
			g := testGrid(t)
			g.X[5] += 0.1
			return g
		}()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "master.nc")
			if err := CreateMaster(path, tc.grid, []string{"out"}, -1); err != nil {
				t.Fatal(err)
			}
			m, err := OpenMaster(path)
			if err != nil {
				t.Fatal(err)
			}
			ids := tc.grid.GlobalIDs()
			pos, ok := m.Position(ids[4])
			if !ok || pos != 4 {
				t.Fatalf("position of %d: have %d, %v", ids[4], pos, ok)
			}
			if _, ok := m.Position(1); ok {
				t.Error("id 1 should not be in the master file")
			}
			if err := m.WriteRun("out", 4, []float64{7, 8, 9}); err != nil {
				t.Fatal(err)
			}
			if err := m.WriteRun("out", 10, []float64{5, 6}); err != nil {
				t.Fatal(err)
			}
			if err := m.WriteRun("out", 11, []float64{1, 2}); err == nil {
				t.Error("expected an out of range error")
			}
			if err := m.WriteRun("missing", 0, []float64{1}); err == nil {
				t.Error("expected an error for a missing variable")
			}
			if err := m.Close(); err != nil {
				t.Fatal(err)
			}
			have, err := ReadVariable(path, "out")
			if err != nil {
				t.Fatal(err)
			}
			want := []float64{-1, -1, -1, -1, 7, 8, 9, -1, -1, -1, 5, 6}
			if !reflect.DeepEqual(have, want) {
				t.Errorf("have %v, want %v", have, want)
			}
		})
	}
}
