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

package rwg

import (
	"context"
	"math"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spatialmodel/gridchunk"
	"github.com/spatialmodel/gridchunk/gridio"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("neareSt_stod")
	if err != nil {
		t.Fatal(err)
	}
	if m != NearestSTOD {
		t.Errorf("have %s, want %s", m, NearestSTOD)
	}
	if _, err := ParseMethod("spline"); err == nil {
		t.Error("expected an error")
	}
}

func TestConserve(t *testing.T) {
	src := gridchunk.NewRegular(0, 0, 1, 1, 6, 8)
	dst := gridchunk.NewRegular(0.25, 0.5, 1.5, 1.25, 3, 4)
	w, err := Weights(context.Background(), src, dst, Conserve)
	if err != nil {
		t.Fatal(err)
	}
	sums := w.RowSums()
	for i := 1; i <= dst.Len(); i++ {
		if s := sums.Get(i); different(s, 1, 1e-14) {
			t.Errorf("row %d sums to %g", i, s)
		}
	}
	// Cell 1 of dst spans x in [0.25, 1.75], y in [0.5, 1.75].
	want := map[uint64]float64{
		1:  0.75 * 0.5 / 1.875,
		2:  0.75 * 0.5 / 1.875,
		9:  0.75 * 0.75 / 1.875,
		10: 0.75 * 0.75 / 1.875,
	}
	have := make(map[uint64]float64)
	for k := range w.S {
		if w.Row[k] == 1 {
			have[w.Col[k]] = w.S[k]
		}
	}
	if len(have) != len(want) {
		t.Fatalf("have %v, want %v", have, want)
	}
	for c, v := range want {
		if different(have[c], v, 1e-14) {
			t.Errorf("column %d: have %g, want %g", c, have[c], v)
		}
	}
}

func TestConservePolygon(t *testing.T) {
	src := gridchunk.NewRegular(0, 0, 1, 1, 4, 4)
	e := &gridchunk.Elements{
		X:        []float64{2},
		Y:        []float64{2},
		XCorners: [][]float64{{2, 3, 2, 1}},
		YCorners: [][]float64{{1, 2, 3, 2}},
	}
	dst, err := gridchunk.NewUnstructuredGrid(e)
	if err != nil {
		t.Fatal(err)
	}
	w, err := Weights(context.Background(), src, dst, Conserve)
	if err != nil {
		t.Fatal(err)
	}
	if different(w.Total(), 1, 1e-12) {
		t.Errorf("total weight %g", w.Total())
	}
}

func TestConserveMask(t *testing.T) {
	src := gridchunk.NewRegular(0, 0, 1, 1, 2, 2)
	src.IMask = []int32{1, 0, 1, 1}
	dst := gridchunk.NewRegular(0, 0, 2, 2, 1, 1)
	w, err := Weights(context.Background(), src, dst, Conserve)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(w.Col, []uint64{1, 3, 4}) {
		t.Errorf("columns: %v", w.Col)
	}
}

func TestNearest(t *testing.T) {
	src := gridchunk.NewRegular(0, 0, 1, 1, 3, 3)
	e := &gridchunk.Elements{
		X: []float64{0.4, 2.6, 10, -5},
		Y: []float64{0.6, 1.4, 10, 1.5},
	}
	dst, err := gridchunk.NewUnstructuredGrid(e)
	if err != nil {
		t.Fatal(err)
	}
	w, err := Weights(context.Background(), src, dst, NearestSTOD)
	if err != nil {
		t.Fatal(err)
	}
	want := &gridchunk.Weights{
		Row: []uint64{1, 2, 3, 4},
		Col: []uint64{1, 6, 9, 4},
		S:   []float64{1, 1, 1, 1},
	}
	if !reflect.DeepEqual(w, want) {
		t.Errorf("have %+v, want %+v", w, want)
	}
}

func TestIndex(t *testing.T) {
	g := gridchunk.NewRegular(0, 0, 1, 1, 2, 3)
	g.IMask = []int32{1, 0, 1, 1, 1, 1}
	tr := index(g, g.CellBounds)
	if have := hits(tr, g.CellBounds(1)); !reflect.DeepEqual(have, []int{0, 2, 3, 4, 5}) {
		t.Errorf("have %v", have)
	}
}

func TestUnsupported(t *testing.T) {
	g := gridchunk.NewRegular(0, 0, 1, 1, 1, 1)
	if _, err := Weights(context.Background(), g, g, Patch); err == nil {
		t.Error("expected an error")
	}
}

func TestBuiltinGenerate(t *testing.T) {
	dir := t.TempDir()
	src := gridchunk.NewRegular(0, 0, 1, 1, 4, 4)
	dst := gridchunk.NewRegular(0, 0, 2, 2, 2, 2)
	sp, dp := filepath.Join(dir, "src.nc"), filepath.Join(dir, "dst.nc")
	if err := gridio.WriteSCRIP(sp, src); err != nil {
		t.Fatal(err)
	}
	if err := gridio.WriteGRIDSPEC(dp, dst); err != nil {
		t.Fatal(err)
	}
	wp := filepath.Join(dir, "w.nc")
	var e Builtin
	err := e.Generate(context.Background(), File{Path: sp, Format: "SCRIP"}, File{Path: dp, Format: "GRIDSPEC"}, wp, Conserve)
	if err != nil {
		t.Fatal(err)
	}
	w, err := gridio.ReadWeights(wp)
	if err != nil {
		t.Fatal(err)
	}
	if w.Len() != 16 {
		t.Errorf("have %d links, want 16", w.Len())
	}
	if different(w.Total(), 4, 1e-14) {
		t.Errorf("total weight %g", w.Total())
	}
}

func TestESMFArgs(t *testing.T) {
	e := &ESMF{ExtraArgs: []string{"--netcdf4"}}
	args, err := e.args(File{Path: "s.nc", Format: "GRIDSPEC"}, File{Path: "d.nc", Format: "SCRIP", Regional: true}, "w.nc", NearestSTOD)
	if err != nil {
		t.Fatal(err)
	}
	want := "-s s.nc -d d.nc -w w.nc -m neareststod --src_type CFGRID --dst_type SCRIP --ignore_unmapped --no_log --dst_regional --netcdf4"
	if have := strings.Join(args, " "); have != want {
		t.Errorf("have %q, want %q", have, want)
	}
}

func TestESMFFailure(t *testing.T) {
	e := &ESMF{Exe: "false"}
	err := e.Generate(context.Background(), File{Path: "s.nc", Format: "SCRIP"}, File{Path: "d.nc", Format: "SCRIP"}, "w.nc", Conserve)
	if err == nil {
		t.Fatal("expected an error")
	}
}
