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
	"fmt"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Weights is a sparse weight matrix in triplet form. Row indexes
// destination elements and Col indexes source elements. Chunk-local
// matrices use one-based element positions; merged matrices use global
// identifiers.
type Weights struct {
	Row, Col []uint64
	S        []float64
}

// Len returns the number of entries.
func (w *Weights) Len() int { return len(w.S) }

// Add appends one entry.
func (w *Weights) Add(row, col uint64, s float64) {
	w.Row = append(w.Row, row)
	w.Col = append(w.Col, col)
	w.S = append(w.S, s)
}

// Append appends all entries of o.
func (w *Weights) Append(o *Weights) {
	w.Row = append(w.Row, o.Row...)
	w.Col = append(w.Col, o.Col...)
	w.S = append(w.S, o.S...)
}

// Check returns an error if the triplet arrays differ in length.
func (w *Weights) Check() error {
	if len(w.Row) != len(w.S) || len(w.Col) != len(w.S) {
		return fmt.Errorf("gridchunk: weights have %d rows, %d cols and %d values", len(w.Row), len(w.Col), len(w.S))
	}
	return nil
}

// Remap converts one-based local rows and columns to the global
// identifiers registered in rows and cols.
func (w *Weights) Remap(rows, cols *Registry) (*Weights, error) {
	if err := w.Check(); err != nil {
		return nil, err
	}
	o := &Weights{
		Row: make([]uint64, len(w.Row)),
		Col: make([]uint64, len(w.Col)),
		S:   append([]float64(nil), w.S...),
	}
	for k := range w.S {
		r, ok := rows.Global(int(w.Row[k]) - 1)
		if !ok || w.Row[k] == 0 {
			return nil, fmt.Errorf("gridchunk: weight row %d out of range [1, %d]", w.Row[k], rows.Len())
		}
		c, ok := cols.Global(int(w.Col[k]) - 1)
		if !ok || w.Col[k] == 0 {
			return nil, fmt.Errorf("gridchunk: weight column %d out of range [1, %d]", w.Col[k], cols.Len())
		}
		o.Row[k], o.Col[k] = r, c
	}
	return o, nil
}

// RowSums returns the sum of the weights of every row, indexed by row.
func (w *Weights) RowSums() *sparse.SparseArray {
	var n uint64
	for _, r := range w.Row {
		if r > n {
			n = r
		}
	}
	sums := sparse.ZerosSparse(int(n) + 1)
	for k, r := range w.Row {
		sums.AddVal(w.S[k], int(r))
	}
	return sums
}

// Total returns the sum of all weights.
func (w *Weights) Total() float64 { return floats.Sum(w.S) }
