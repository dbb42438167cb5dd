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
	"fmt"
	"math"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/gridchunk"
)

// ReadWeights reads an ESMF-format weight file with variables row, col
// and S along dimension n_s.
func ReadWeights(path string) (*gridchunk.Weights, error) {
	f, cf, err := openCDF(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := readFloat64(cf, "S")
	if err != nil {
		return nil, fmt.Errorf("gridio: weight file %s: %v", path, err)
	}
	row, err := readFloat64(cf, "row")
	if err != nil {
		return nil, fmt.Errorf("gridio: weight file %s: %v", path, err)
	}
	col, err := readFloat64(cf, "col")
	if err != nil {
		return nil, fmt.Errorf("gridio: weight file %s: %v", path, err)
	}
	n := len(s)
	if nl, ok := cf.Header.GetAttribute("", "num_links").([]int32); ok && len(nl) == 1 && int(nl[0]) <= n {
		n = int(nl[0])
	}
	if len(row) < n || len(col) < n {
		return nil, fmt.Errorf("gridio: weight file %s has inconsistent array lengths", path)
	}
	w := &gridchunk.Weights{
		Row: make([]uint64, n),
		Col: make([]uint64, n),
		S:   s[:n],
	}
	for k := 0; k < n; k++ {
		if row[k] < 1 || col[k] < 1 {
			return nil, fmt.Errorf("gridio: weight file %s: invalid index at link %d", path, k)
		}
		w.Row[k], w.Col[k] = uint64(row[k]), uint64(col[k])
	}
	return w, nil
}

// WriteWeights writes w to path in ESMF weight file format. Indices must
// fit in a 32-bit integer. Empty matrices are stored as a single padding
// link and a num_links attribute of 0.
func WriteWeights(path string, w *gridchunk.Weights) error {
	if err := w.Check(); err != nil {
		return err
	}
	n := w.Len()
	h := cdf.NewHeader([]string{"n_s"}, []int{maxInt(n, 1)})
	h.AddAttribute("", "title", "gridchunk regridding weights")
	h.AddAttribute("", "num_links", []int32{int32(n)})
	h.AddVariable("row", []string{"n_s"}, []int32{0})
	h.AddVariable("col", []string{"n_s"}, []int32{0})
	h.AddVariable("S", []string{"n_s"}, []float64{0})
	f, cf, err := createCDF(path, h)
	if err != nil {
		return err
	}
	defer f.Close()

	row, col, s := make([]int32, maxInt(n, 1)), make([]int32, maxInt(n, 1)), make([]float64, maxInt(n, 1))
	if n == 0 {
		row[0], col[0] = 1, 1
	}
	for k := 0; k < n; k++ {
		if w.Row[k] > math.MaxInt32 || w.Col[k] > math.MaxInt32 {
			return fmt.Errorf("gridio: weight index (%d, %d) does not fit in the ESMF weight format", w.Row[k], w.Col[k])
		}
		row[k], col[k], s[k] = int32(w.Row[k]), int32(w.Col[k]), w.S[k]
	}
	if err := WriteVar(cf, "row", row); err != nil {
		return err
	}
	if err := WriteVar(cf, "col", col); err != nil {
		return err
	}
	if err := WriteVar(cf, "S", s); err != nil {
		return err
	}
	return f.Sync()
}
