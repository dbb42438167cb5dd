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

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// UnstructuredGrid is a collection of elements with no logical neighbor
// structure.
type UnstructuredGrid struct {
	*Elements
}

// NewUnstructuredGrid validates e and returns the grid. Global identifiers
// 1..N are assigned if e has none.
func NewUnstructuredGrid(e *Elements) (*UnstructuredGrid, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	return &UnstructuredGrid{Elements: e}, nil
}

// Rank returns 1.
func (g *UnstructuredGrid) Rank() int { return 1 }

// Shape returns (N).
func (g *UnstructuredGrid) Shape() []int { return []int{g.Len()} }

// Positions implements Grid. A selection without Elements is interpreted as
// the index range X.
func (g *UnstructuredGrid) Positions(s Selection) ([]int, error) {
	if s.Elements != nil {
		return sortedPositions(s.Elements, g.Len())
	}
	if s.X.Start < 0 || s.X.End > g.Len() || s.X.Start > s.X.End {
		return nil, fmt.Errorf("gridchunk: range %v out of bounds for %d elements", s.X, g.Len())
	}
	pos := make([]int, 0, s.X.Len())
	for i := s.X.Start; i < s.X.End; i++ {
		pos = append(pos, i)
	}
	return pos, nil
}

// Select implements Grid.
func (g *UnstructuredGrid) Select(s Selection) (Grid, error) {
	pos, err := g.Positions(s)
	if err != nil {
		return nil, err
	}
	return &UnstructuredGrid{Elements: g.take(pos)}, nil
}

// Window implements Grid. The returned selection lists the positions.
func (g *UnstructuredGrid) Window(positions []int) Selection {
	p, err := sortedPositions(positions, g.Len())
	if err != nil {
		panic(err)
	}
	if p == nil {
		p = []int{}
	}
	return Selection{Elements: p}
}

// Resolution returns the larger of the mean cell width and height when
// corners are available. Otherwise it is the side of a square with the
// average area per element within the grid extent.
func (g *UnstructuredGrid) Resolution() float64 {
	n := g.Len()
	if n == 0 {
		return 0
	}
	if g.HasCorners() {
		w := make([]float64, n)
		h := make([]float64, n)
		for i := 0; i < n; i++ {
			b := g.CellBounds(i)
			w[i] = b.Max.X - b.Min.X
			h[i] = b.Max.Y - b.Min.Y
		}
		return floats.Max([]float64{stat.Mean(w, nil), stat.Mean(h, nil)})
	}
	if n < 2 {
		return 0
	}
	b := g.Extent(Point)
	dx, dy := b.Max.X-b.Min.X, b.Max.Y-b.Min.Y
	switch {
	case dx == 0:
		return dy / float64(n-1)
	case dy == 0:
		return dx / float64(n-1)
	}
	return math.Sqrt(dx * dy / float64(n))
}
