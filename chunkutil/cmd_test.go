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

package chunkutil

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/kr/pretty"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/gridchunk"
	"github.com/spatialmodel/gridchunk/chunker"
	"github.com/spatialmodel/gridchunk/gridio"
	"github.com/spatialmodel/gridchunk/rwg"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

// setOptions resets every option to its default and then applies opts.
func setOptions(opts map[string]interface{}) {
	for _, o := range options {
		Cfg.Set(o.name, o.defaultVal)
	}
	Cfg.Set("log_level", "warn")
	for k, v := range opts {
		Cfg.Set(k, v)
	}
}

// writeGrids writes a source and destination grid pair in SCRIP format
// to dir. The destination grid holds a data variable.
func writeGrids(t *testing.T, dir string) (src, dst string, dstGrid gridchunk.Grid) {
	s := gridchunk.NewRegular(0, 0, 1, 1, 6, 8)
	d := gridchunk.NewRegular(0.25, 0.5, 1.5, 1.25, 3, 4)
	v := make([]float64, d.Len())
	for i := range v {
		v[i] = float64(i*i) + 0.25
	}
	d.Vars = map[string][]float64{"data": v}
	src = filepath.Join(dir, "src.nc")
	dst = filepath.Join(dir, "dst.nc")
	if err := gridio.WriteSCRIP(src, s); err != nil {
		t.Fatal(err)
	}
	if err := gridio.WriteSCRIP(dst, d); err != nil {
		t.Fatal(err)
	}
	return src, dst, d
}

func links(w *gridchunk.Weights) map[[2]uint64]float64 {
	o := make(map[[2]uint64]float64)
	for i := range w.S {
		o[[2]uint64{w.Row[i], w.Col[i]}] += w.S[i]
	}
	return o
}

func execute(args ...string) error {
	Root.SetArgs(args)
	return Root.Execute()
}

func TestVersion(t *testing.T) {
	setOptions(nil)
	buf := new(bytes.Buffer)
	Root.SetOutput(buf)
	defer Root.SetOutput(nil)
	if err := execute("version"); err != nil {
		t.Fatal(err)
	}
	if want := "GridChunk v" + gridchunk.Version; !strings.Contains(buf.String(), want) {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestParseCounts(t *testing.T) {
	tests := []struct {
		in   interface{}
		want []int
		err  bool
	}{
		{in: "", want: nil},
		{in: nil, want: nil},
		{in: "2,3", want: []int{2, 3}},
		{in: " 4 ", want: []int{4}},
		{in: "[2, 3]", want: []int{2, 3}},
		{in: []interface{}{int64(5), int64(6)}, want: []int{5, 6}},
		{in: []int{1, 2}, want: []int{1, 2}},
		{in: "2,x", err: true},
	}
	for _, test := range tests {
		have, err := parseCounts(test.in)
		if test.err {
			if err == nil {
				t.Errorf("%v: expected an error", test.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%v: %v", test.in, err)
			continue
		}
		if !reflect.DeepEqual(have, test.want) {
			t.Errorf("%v: got %v, want %v", test.in, have, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := RegridConfig{Merge: true, GenWeights: true, Weight: "w.nc", NProcs: 1}
	tests := []struct {
		name string
		mod  func(c *RegridConfig)
		ok   bool
	}{
		{name: "valid", mod: func(c *RegridConfig) {}, ok: true},
		{name: "no weight", mod: func(c *RegridConfig) { c.Weight = "" }},
		{name: "merge without weights", mod: func(c *RegridConfig) { c.GenWeights = false }},
		{name: "nothing kept", mod: func(c *RegridConfig) { c.Merge = false }},
		{name: "persist", mod: func(c *RegridConfig) { c.Merge, c.Persist, c.Weight = false, true, "" }, ok: true},
		{name: "nprocs", mod: func(c *RegridConfig) { c.NProcs = 0 }},
		{name: "counts", mod: func(c *RegridConfig) { c.Counts = []int{2, 0} }},
		{name: "subset weights", mod: func(c *RegridConfig) { c.SpatialSubset = true }, ok: true},
		{name: "subset no weight", mod: func(c *RegridConfig) { c.SpatialSubset, c.Weight = true, "" }},
		{name: "subset only", mod: func(c *RegridConfig) { c.SpatialSubset, c.GenWeights, c.Persist = true, false, true }, ok: true},
		{name: "subset removed", mod: func(c *RegridConfig) { c.SpatialSubset, c.GenWeights = true, false }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := valid
			test.mod(&c)
			err := c.Validate()
			if test.ok {
				if err != nil {
					t.Error(err)
				}
				return
			}
			var ce *gridchunk.ConfigurationError
			if !errors.As(err, &ce) {
				t.Errorf("got %v, want a ConfigurationError", err)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := ioutil.WriteFile(path, []byte(`
source = "$GRIDCHUNK_TEST_DIR/src.nc"
destination = "dst.nc"
esmf_src_type = "SCRIP"
esmf_dst_type = "CF"
nchunks_dst = [2, 3]
merge = true
genweights = true
weight = "w.nc"
engine = "builtin"
esmf_regrid_method = "nearest_stod"
nprocs = 2
workers = 3
buffer_distance = 0.5
`), 0644)
	if err != nil {
		t.Fatal(err)
	}
	os.Setenv("GRIDCHUNK_TEST_DIR", "/data")
	defer os.Unsetenv("GRIDCHUNK_TEST_DIR")

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatal(err)
	}
	c, err := regridConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	if c.Source != "/data/src.nc" {
		t.Errorf("source: %s", c.Source)
	}
	if c.SrcFormat != gridio.SCRIP || c.DstFormat != gridio.GRIDSPEC {
		t.Errorf("formats: %s, %s", c.SrcFormat, c.DstFormat)
	}
	if !reflect.DeepEqual(c.Counts, []int{2, 3}) {
		t.Errorf("counts: %v", c.Counts)
	}
	if c.Method != rwg.NearestSTOD {
		t.Errorf("method: %s", c.Method)
	}
	if _, ok := c.Engine.(*rwg.Builtin); !ok {
		t.Errorf("engine: %T", c.Engine)
	}
	if c.NProcs != 2 || c.Workers != 3 || c.BufferDistance != 0.5 {
		t.Errorf("%# v", pretty.Formatter(c))
	}
}

func TestChunkedRegrid(t *testing.T) {
	dir := t.TempDir()
	src, dst, dstGrid := writeGrids(t, dir)
	wd := filepath.Join(dir, "wd")
	weight := filepath.Join(dir, "weights.nc")

	for _, nprocs := range []int{1, 3} {
		os.RemoveAll(wd)
		setOptions(map[string]interface{}{
			"source":        src,
			"destination":   dst,
			"esmf_src_type": "SCRIP",
			"esmf_dst_type": "SCRIP",
			"nchunks_dst":   "2,2",
			"weight":        weight,
			"engine":        "builtin",
			"wd":            wd,
			"persist":       true,
			"nprocs":        nprocs,
			"workers":       2,
		})
		if err := execute("chunked-regrid"); err != nil {
			t.Fatalf("nprocs=%d: %v", nprocs, err)
		}
		if _, err := os.Stat(filepath.Join(wd, chunker.DefaultIndexFile)); err != nil {
			t.Errorf("nprocs=%d: %v", nprocs, err)
		}
	}

	have, err := gridio.ReadWeights(weight)
	if err != nil {
		t.Fatal(err)
	}
	sg, err := gridio.Open(src, gridio.SCRIP)
	if err != nil {
		t.Fatal(err)
	}
	want, err := rwg.Weights(context.Background(), sg, dstGrid, rwg.Conserve)
	if err != nil {
		t.Fatal(err)
	}
	hl, wl := links(have), links(want)
	if len(hl) != len(wl) {
		t.Errorf("%d links, want %d", len(hl), len(wl))
	}
	for k, w := range wl {
		if different(hl[k], w, 1e-12) {
			t.Errorf("link %v: %g != %g", k, hl[k], w)
		}
	}

	t.Run("merge", func(t *testing.T) {
		out := filepath.Join(dir, "out")
		if err := os.Mkdir(out, 0755); err != nil {
			t.Fatal(err)
		}
		setOptions(map[string]interface{}{
			"index":  filepath.Join(wd, chunker.DefaultIndexFile),
			"weight": "file://" + filepath.ToSlash(out) + "/merged.nc",
		})
		if err := execute("merge"); err != nil {
			t.Fatal(err)
		}
		merged, err := gridio.ReadWeights(filepath.Join(out, "merged.nc"))
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(merged, have) {
			t.Errorf("%v", pretty.Diff(merged, have))
		}
	})

	t.Run("insert", func(t *testing.T) {
		master := filepath.Join(dir, "master.nc")
		setOptions(map[string]interface{}{
			"index":         filepath.Join(wd, chunker.DefaultIndexFile),
			"master":        master,
			"destination":   dst,
			"esmf_dst_type": "SCRIP",
			"variables":     []string{"data"},
			"workers":       2,
		})
		if err := execute("insert"); err != nil {
			t.Fatal(err)
		}
		vals, err := gridio.ReadVariable(master, "data")
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(vals, dstGrid.Variable("data")) {
			t.Errorf("%v", pretty.Diff(vals, dstGrid.Variable("data")))
		}
	})
}

func TestChunkedRegridTempDir(t *testing.T) {
	dir := t.TempDir()
	src, dst, _ := writeGrids(t, dir)
	os.Setenv("TMPDIR", t.TempDir())
	defer os.Unsetenv("TMPDIR")
	cfg := &RegridConfig{
		Source:      src,
		Destination: dst,
		SrcFormat:   gridio.SCRIP,
		DstFormat:   gridio.SCRIP,
		Merge:       true,
		GenWeights:  true,
		Weight:      filepath.Join(dir, "w.nc"),
		Method:      rwg.Conserve,
		Engine:      &rwg.Builtin{},
		NProcs:      2,
		Workers:     1,
	}
	if err := ChunkedRegrid(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfg.Weight); err != nil {
		t.Error(err)
	}
	left, err := ioutil.ReadDir(os.Getenv("TMPDIR"))
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("temporary working directory was not removed: %v", left[0].Name())
	}
}

func TestSpatialSubsetCommand(t *testing.T) {
	dir := t.TempDir()
	src, dst, _ := writeGrids(t, dir)
	wd := filepath.Join(dir, "wd")
	weight := filepath.Join(dir, "subset_weights.nc")
	setOptions(map[string]interface{}{
		"source":         src,
		"destination":    dst,
		"esmf_src_type":  "SCRIP",
		"esmf_dst_type":  "SCRIP",
		"spatial_subset": true,
		"weight":         weight,
		"engine":         "builtin",
		"wd":             wd,
		"persist":        true,
		"nprocs":         2,
	})
	if err := execute("chunked-regrid"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(wd, chunker.SpatialSubsetFile)); err != nil {
		t.Error(err)
	}
	w, err := gridio.ReadWeights(weight)
	if err != nil {
		t.Fatal(err)
	}
	sums := make(map[uint64]float64)
	for i := range w.S {
		sums[w.Row[i]] += w.S[i]
	}
	if len(sums) != 12 {
		t.Errorf("%d rows have weights", len(sums))
	}
	for r, s := range sums {
		if different(s, 1, 1e-14) {
			t.Errorf("row %d: sum %g", r, s)
		}
	}
}

func TestChunkedRegridConfigErrors(t *testing.T) {
	dir := t.TempDir()
	src, dst, _ := writeGrids(t, dir)
	base := RegridConfig{
		Source:      src,
		Destination: dst,
		SrcFormat:   gridio.SCRIP,
		DstFormat:   gridio.SCRIP,
		Merge:       true,
		GenWeights:  true,
		Method:      rwg.Conserve,
		Engine:      &rwg.Builtin{},
		NProcs:      1,
	}

	t.Run("existing wd", func(t *testing.T) {
		c := base
		c.WD = t.TempDir()
		c.Weight = filepath.Join(dir, "w.nc")
		var ce *gridchunk.ConfigurationError
		if err := ChunkedRegrid(context.Background(), &c); !errors.As(err, &ce) {
			t.Errorf("got %v, want a ConfigurationError", err)
		}
	})
	t.Run("weight in wd", func(t *testing.T) {
		c := base
		c.WD = filepath.Join(dir, "wd")
		c.Weight = filepath.Join(c.WD, "w.nc")
		var ce *gridchunk.ConfigurationError
		if err := ChunkedRegrid(context.Background(), &c); !errors.As(err, &ce) {
			t.Errorf("got %v, want a ConfigurationError", err)
		}
		if _, err := os.Stat(c.WD); !os.IsNotExist(err) {
			t.Error("working directory should not have been created")
		}
	})
	t.Run("command", func(t *testing.T) {
		setOptions(map[string]interface{}{"destination": dst})
		var ce *gridchunk.ConfigurationError
		if err := execute("chunked-regrid"); !errors.As(err, &ce) {
			t.Errorf("got %v, want a ConfigurationError", err)
		}
	})
}

func TestInsertNoMaster(t *testing.T) {
	cfg := &InsertConfig{
		Index:  filepath.Join(t.TempDir(), "index.nc"),
		Master: filepath.Join(t.TempDir(), "master.nc"),
	}
	var ce *gridchunk.ConfigurationError
	if err := Insert(context.Background(), cfg); !errors.As(err, &ce) {
		t.Errorf("got %v, want a ConfigurationError", err)
	}
}
