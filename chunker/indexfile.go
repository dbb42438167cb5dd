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

package chunker

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/gridchunk/gridio"
)

// Index is the content of an index file: the artifact templates of a
// chunked run and, for every chunk, its coverage flag and the global
// identifiers of its source and destination elements. Merge and insert
// read chunk identifiers only from the index file.
type Index struct {
	Paths  Paths
	Chunks []*Descriptor
}

var indexCountVars = []string{"chunk_index", "covered", "has_weights", "src_offset", "src_count", "dst_offset", "dst_count"}

// WriteIndex writes the index file for descs, which must be sorted by
// chunk index, to p.IndexPath().
func WriteIndex(p Paths, descs []*Descriptor) error {
	if len(descs) == 0 {
		return fmt.Errorf("chunker: no chunks to index")
	}
	n := len(descs)
	cols := make(map[string][]int32, len(indexCountVars))
	for _, v := range indexCountVars {
		cols[v] = make([]int32, n)
	}
	var srcIDs, dstIDs []float64
	for k, d := range descs {
		cols["chunk_index"][k] = int32(d.Index)
		if d.Covered {
			cols["covered"][k] = 1
		}
		if d.WeightFile != "" {
			cols["has_weights"][k] = 1
		}
		cols["src_offset"][k] = int32(len(srcIDs))
		cols["src_count"][k] = int32(len(d.SrcIDs))
		cols["dst_offset"][k] = int32(len(dstIDs))
		cols["dst_count"][k] = int32(len(d.DstIDs))
		s, err := gridio.IDsToFloat(d.SrcIDs)
		if err != nil {
			return fmt.Errorf("chunker: chunk %d: %v", d.Index, err)
		}
		dd, err := gridio.IDsToFloat(d.DstIDs)
		if err != nil {
			return fmt.Errorf("chunker: chunk %d: %v", d.Index, err)
		}
		srcIDs = append(srcIDs, s...)
		dstIDs = append(dstIDs, dd...)
	}
	if len(srcIDs) > math.MaxInt32 || len(dstIDs) > math.MaxInt32 {
		return fmt.Errorf("chunker: too many elements for index file")
	}
	// Zero-length dimensions are record dimensions in NetCDF, so empty id
	// lists are padded to one value.
	pad := func(v []float64) []float64 {
		if len(v) == 0 {
			return []float64{0}
		}
		return v
	}
	srcIDs, dstIDs = pad(srcIDs), pad(dstIDs)

	h := cdf.NewHeader([]string{"chunk", "src_n", "dst_n"}, []int{n, len(srcIDs), len(dstIDs)})
	h.AddAttribute("", "title", "gridchunk chunk index")
	h.AddAttribute("", "src_template", p.SrcTemplate)
	h.AddAttribute("", "dst_template", p.DstTemplate)
	h.AddAttribute("", "weight_template", p.WeightTemplate)
	for _, v := range indexCountVars {
		h.AddVariable(v, []string{"chunk"}, []int32{0})
	}
	h.AddVariable("src_global_id", []string{"src_n"}, []float64{0})
	h.AddVariable("dst_global_id", []string{"dst_n"}, []float64{0})
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return fmt.Errorf("chunker: invalid index file header: %v", errs)
	}
	f, err := os.Create(p.IndexPath())
	if err != nil {
		return err
	}
	defer f.Close()
	cf, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("chunker: creating index file: %v", err)
	}
	for _, v := range indexCountVars {
		if err := gridio.WriteVar(cf, v, cols[v]); err != nil {
			return err
		}
	}
	if err := gridio.WriteVar(cf, "src_global_id", srcIDs); err != nil {
		return err
	}
	if err := gridio.WriteVar(cf, "dst_global_id", dstIDs); err != nil {
		return err
	}
	return f.Sync()
}

// ReadIndex reads an index file. The working directory of the returned
// paths is the directory holding the index file.
func ReadIndex(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cf, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("chunker: reading index file %s: %v", path, err)
	}
	read := func(v string) (interface{}, error) {
		r := cf.Reader(v, nil, nil)
		if r == nil {
			return nil, fmt.Errorf("chunker: index file %s has no variable %s", path, v)
		}
		buf := r.Zero(-1)
		if _, err := r.Read(buf); err != nil {
			return nil, fmt.Errorf("chunker: reading index variable %s: %v", v, err)
		}
		return buf, nil
	}
	cols := make(map[string][]int32, len(indexCountVars))
	for _, v := range indexCountVars {
		buf, err := read(v)
		if err != nil {
			return nil, err
		}
		c, ok := buf.([]int32)
		if !ok {
			return nil, fmt.Errorf("chunker: index variable %s has type %T", v, buf)
		}
		cols[v] = c
	}
	ids := make(map[string][]float64, 2)
	for _, v := range []string{"src_global_id", "dst_global_id"} {
		buf, err := read(v)
		if err != nil {
			return nil, err
		}
		c, ok := buf.([]float64)
		if !ok {
			return nil, fmt.Errorf("chunker: index variable %s has type %T", v, buf)
		}
		ids[v] = c
	}
	attr := func(a string) string {
		s, _ := cf.Header.GetAttribute("", a).(string)
		return s
	}
	idx := &Index{Paths: NewPaths(filepath.Dir(path))}
	idx.Paths.IndexFile = filepath.Base(path)
	if s := attr("src_template"); s != "" {
		idx.Paths.SrcTemplate = s
	}
	if s := attr("dst_template"); s != "" {
		idx.Paths.DstTemplate = s
	}
	if s := attr("weight_template"); s != "" {
		idx.Paths.WeightTemplate = s
	}
	slice := func(v []float64, off, n int32) ([]uint64, error) {
		if off < 0 || n < 0 || int(off)+int(n) > len(v) {
			return nil, fmt.Errorf("chunker: index file %s: id range [%d, %d) out of bounds", path, off, off+n)
		}
		o := make([]uint64, n)
		for i, x := range v[off : off+n] {
			o[i] = uint64(x)
		}
		return o, nil
	}
	for k, ci := range cols["chunk_index"] {
		d := &Descriptor{
			Index:   int(ci),
			Covered: cols["covered"][k] == 1,
			DstFile: idx.Paths.DstName(int(ci)),
		}
		if d.SrcIDs, err = slice(ids["src_global_id"], cols["src_offset"][k], cols["src_count"][k]); err != nil {
			return nil, err
		}
		if d.DstIDs, err = slice(ids["dst_global_id"], cols["dst_offset"][k], cols["dst_count"][k]); err != nil {
			return nil, err
		}
		if len(d.SrcIDs) > 0 {
			d.SrcFile = idx.Paths.SrcName(d.Index)
		}
		if cols["has_weights"][k] == 1 {
			d.WeightFile = idx.Paths.WeightName(d.Index)
		}
		idx.Chunks = append(idx.Chunks, d)
	}
	return idx, nil
}
