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
	"math"
	"sort"

	"github.com/spatialmodel/gridchunk/vm"
)

// MaxDefaultChunks is the ceiling on the number of chunks chosen when no
// chunk counts are given.
const MaxDefaultChunks = 100

var inf = math.Inf(1)

// SplitRange splits [0, n) into c contiguous ranges of length n/c, the last
// of which absorbs the remainder.
func SplitRange(n, c int) ([]Range, error) {
	if c < 1 {
		return nil, configErrorf("chunk count must be at least 1, got %d", c)
	}
	if c > n {
		return nil, configErrorf("requested %d chunks along an axis with %d elements", c, n)
	}
	size := n / c
	r := make([]Range, c)
	for k := range r {
		r[k] = Range{Start: k * size, End: (k + 1) * size}
	}
	r[c-1].End = n
	return r, nil
}

// DecomposeStructured partitions a grid of shape (ny, nx) into
// counts[0] x counts[1] windows ordered row-major. Chunk k of the result
// is reported externally as chunk k+1.
func DecomposeStructured(ny, nx int, counts []int) ([]Selection, error) {
	if len(counts) != 2 {
		return nil, configErrorf("structured grids need 2 chunk counts, got %v", counts)
	}
	ys, err := SplitRange(ny, counts[0])
	if err != nil {
		return nil, err
	}
	xs, err := SplitRange(nx, counts[1])
	if err != nil {
		return nil, err
	}
	out := make([]Selection, 0, len(ys)*len(xs))
	for _, y := range ys {
		for _, x := range xs {
			out = append(out, Selection{Y: y, X: x})
		}
	}
	return out, nil
}

// Decompose partitions the destination grid g into non-overlapping
// selections that together cover every element exactly once. Unstructured
// grids are decomposed collectively: every rank of comm must call
// Decompose, and every rank receives the full result.
func Decompose(comm vm.Comm, g Grid, counts []int) ([]Selection, error) {
	switch gg := g.(type) {
	case *StructuredGrid:
		return DecomposeStructured(gg.NY, gg.NX, counts)
	case *UnstructuredGrid:
		if len(counts) != 1 {
			return nil, configErrorf("unstructured grids need 1 chunk count, got %v", counts)
		}
		return decomposeUnstructured(comm, gg, counts[0])
	default:
		return nil, fmt.Errorf("gridchunk: unsupported grid type %T", g)
	}
}

// DefaultCounts chooses chunk counts for g that produce at most
// MaxDefaultChunks chunks without creating empty ones. It is collective
// for unstructured grids.
func DefaultCounts(comm vm.Comm, g Grid) ([]int, error) {
	switch gg := g.(type) {
	case *StructuredGrid:
		side := 10
		return []int{minInt(side, gg.NY), minInt(side, gg.NX)}, nil
	case *UnstructuredGrid:
		_, vals, err := splitAxis(comm, gg)
		if err != nil {
			return nil, err
		}
		uniq, err := globalUnique(comm, vals)
		if err != nil {
			return nil, err
		}
		n, err := comm.Broadcast(len(uniq), 0)
		if err != nil {
			return nil, err
		}
		return []int{minInt(MaxDefaultChunks, n.(int))}, nil
	default:
		return nil, fmt.Errorf("gridchunk: unsupported grid type %T", g)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// splitAxis chooses the coordinate axis with the larger global spread and
// returns the calling rank's shard start and its values along that axis.
func splitAxis(comm vm.Comm, g *UnstructuredGrid) (int, []float64, error) {
	start, end := vm.Shard(g.Len(), comm.Rank(), comm.Size())
	var spread [2]float64
	for a, coords := range [2][]float64{g.X, g.Y} {
		lo, hi := inf, -inf
		for _, v := range coords[start:end] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		var err error
		if lo, err = vm.AllReduce(comm, lo, vm.Min); err != nil {
			return 0, nil, err
		}
		if hi, err = vm.AllReduce(comm, hi, vm.Max); err != nil {
			return 0, nil, err
		}
		spread[a] = hi - lo
	}
	if spread[1] > spread[0] {
		return start, g.Y[start:end], nil
	}
	return start, g.X[start:end], nil
}

// uniqueSorted returns the sorted distinct values of v.
func uniqueSorted(v []float64) []float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	out := s[:0]
	for i, x := range s {
		if i == 0 || x != s[i-1] {
			out = append(out, x)
		}
	}
	return out
}

// globalUnique gathers each rank's distinct values to rank 0 and returns
// the sorted distinct values of the whole group there. Other ranks get nil.
func globalUnique(comm vm.Comm, local []float64) ([]float64, error) {
	parts, err := comm.Gather(uniqueSorted(local), 0)
	if err != nil {
		return nil, err
	}
	if comm.Rank() != 0 {
		return nil, nil
	}
	var all []float64
	for _, p := range parts {
		all = append(all, p.([]float64)...)
	}
	return uniqueSorted(all), nil
}

// groupBounds is broadcast from rank 0 during unstructured decomposition.
type groupBounds struct {
	Lo  []float64
	Err string
}

func decomposeUnstructured(comm vm.Comm, g *UnstructuredGrid, c int) ([]Selection, error) {
	start, vals, err := splitAxis(comm, g)
	if err != nil {
		return nil, err
	}
	uniq, err := globalUnique(comm, vals)
	if err != nil {
		return nil, err
	}
	var gb groupBounds
	if comm.Rank() == 0 {
		ranges, err := SplitRange(len(uniq), c)
		if err != nil {
			gb.Err = err.(*ConfigurationError).Msg
		}
		for _, r := range ranges {
			gb.Lo = append(gb.Lo, uniq[r.Start])
		}
	}
	b, err := comm.Broadcast(gb, 0)
	if err != nil {
		return nil, err
	}
	gb = b.(groupBounds)
	if gb.Err != "" {
		return nil, &ConfigurationError{Msg: gb.Err}
	}

	// Each value belongs to the last group whose lower bound does not
	// exceed it, so equal values always share a group.
	local := make([][]int, c)
	for i, v := range vals {
		k := sort.Search(len(gb.Lo), func(k int) bool { return gb.Lo[k] > v }) - 1
		local[k] = append(local[k], start+i)
	}
	parts, err := comm.Gather(local, 0)
	if err != nil {
		return nil, err
	}
	var out []Selection
	if comm.Rank() == 0 {
		out = make([]Selection, c)
		for k := range out {
			out[k].Elements = []int{}
			for _, p := range parts {
				out[k].Elements = append(out[k].Elements, p.([][]int)[k]...)
			}
		}
	}
	all, err := comm.Broadcast(out, 0)
	if err != nil {
		return nil, err
	}
	return all.([]Selection), nil
}
