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

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// StructuredGrid is a logically rectangular grid of NY rows and NX columns.
// Element (j, i) is at position j*NX+i.
type StructuredGrid struct {
	NY, NX int
	*Elements
}

// NewStructuredGrid validates e against the shape (ny, nx) and returns the
// grid. Global identifiers 1..ny*nx are assigned if e has none.
func NewStructuredGrid(ny, nx int, e *Elements) (*StructuredGrid, error) {
	if ny < 0 || nx < 0 {
		return nil, fmt.Errorf("gridchunk: invalid structured shape (%d, %d)", ny, nx)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	if e.Len() != ny*nx {
		return nil, fmt.Errorf("gridchunk: %d elements do not match shape (%d, %d)", e.Len(), ny, nx)
	}
	return &StructuredGrid{NY: ny, NX: nx, Elements: e}, nil
}

// Rank returns 2.
func (g *StructuredGrid) Rank() int { return 2 }

// Shape returns (NY, NX).
func (g *StructuredGrid) Shape() []int { return []int{g.NY, g.NX} }

// Positions implements Grid.
func (g *StructuredGrid) Positions(s Selection) ([]int, error) {
	if s.Elements != nil {
		return sortedPositions(s.Elements, g.Len())
	}
	if s.Y.Start < 0 || s.Y.End > g.NY || s.Y.Start > s.Y.End ||
		s.X.Start < 0 || s.X.End > g.NX || s.X.Start > s.X.End {
		return nil, fmt.Errorf("gridchunk: window y%v x%v out of bounds for shape (%d, %d)", s.Y, s.X, g.NY, g.NX)
	}
	pos := make([]int, 0, s.Len())
	for j := s.Y.Start; j < s.Y.End; j++ {
		for i := s.X.Start; i < s.X.End; i++ {
			pos = append(pos, j*g.NX+i)
		}
	}
	return pos, nil
}

// Select implements Grid. Window selections return a *StructuredGrid and
// element selections return an *UnstructuredGrid.
func (g *StructuredGrid) Select(s Selection) (Grid, error) {
	pos, err := g.Positions(s)
	if err != nil {
		return nil, err
	}
	e := g.take(pos)
	if s.Elements != nil {
		return &UnstructuredGrid{Elements: e}, nil
	}
	return &StructuredGrid{NY: s.Y.Len(), NX: s.X.Len(), Elements: e}, nil
}

// Window implements Grid.
func (g *StructuredGrid) Window(positions []int) Selection {
	if len(positions) == 0 {
		return Selection{}
	}
	y0, y1, x0, x1 := g.NY, -1, g.NX, -1
	for _, p := range positions {
		j, i := p/g.NX, p%g.NX
		if j < y0 {
			y0 = j
		}
		if j > y1 {
			y1 = j
		}
		if i < x0 {
			x0 = i
		}
		if i > x1 {
			x1 = i
		}
	}
	return Selection{Y: Range{y0, y1 + 1}, X: Range{x0, x1 + 1}}
}

// Resolution returns the larger of the mean column spacing along the middle
// row and the mean row spacing along the middle column.
func (g *StructuredGrid) Resolution() float64 {
	if g.Len() == 0 {
		return 0
	}
	var dx, dy []float64
	row := g.NY / 2
	for i := 1; i < g.NX; i++ {
		dx = append(dx, math.Abs(g.X[row*g.NX+i]-g.X[row*g.NX+i-1]))
	}
	col := g.NX / 2
	for j := 1; j < g.NY; j++ {
		dy = append(dy, math.Abs(g.Y[j*g.NX+col]-g.Y[(j-1)*g.NX+col]))
	}
	var rx, ry float64
	if len(dx) > 0 {
		rx = stat.Mean(dx, nil)
	}
	if len(dy) > 0 {
		ry = stat.Mean(dy, nil)
	}
	if (rx == 0 || ry == 0) && g.HasCorners() {
		b := g.CellBounds(row*g.NX + col)
		if rx == 0 {
			rx = b.Max.X - b.Min.X
		}
		if ry == 0 {
			ry = b.Max.Y - b.Min.Y
		}
	}
	return floats.Max([]float64{rx, ry})
}

func sortedPositions(p []int, n int) ([]int, error) {
	out := append([]int(nil), p...)
	sort.Ints(out)
	for i, v := range out {
		if v < 0 || v >= n {
			return nil, fmt.Errorf("gridchunk: element position %d out of range [0, %d)", v, n)
		}
		if i > 0 && out[i-1] == v {
			return nil, fmt.Errorf("gridchunk: repeated element position %d", v)
		}
	}
	return out, nil
}
