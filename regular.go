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

import "math"

// NewRegular returns a structured grid of ny rows and nx columns of
// rectangular cells of size (dx, dy) whose lower-left corner is (x0, y0),
// in the default geographic coordinate reference system.
func NewRegular(x0, y0, dx, dy float64, ny, nx int) *StructuredGrid {
	n := ny * nx
	e := &Elements{
		X:        make([]float64, n),
		Y:        make([]float64, n),
		XCorners: make([][]float64, n),
		YCorners: make([][]float64, n),
		Proj:     DefaultCRS,
	}
	for j := 0; j < ny; j++ {
		ylo, yhi := y0+float64(j)*dy, y0+float64(j+1)*dy
		for i := 0; i < nx; i++ {
			k := j*nx + i
			xlo, xhi := x0+float64(i)*dx, x0+float64(i+1)*dx
			e.X[k], e.Y[k] = (xlo+xhi)/2, (ylo+yhi)/2
			e.XCorners[k] = []float64{xlo, xhi, xhi, xlo}
			e.YCorners[k] = []float64{ylo, ylo, yhi, yhi}
		}
	}
	g, err := NewStructuredGrid(ny, nx, e)
	if err != nil {
		panic(err)
	}
	return g
}

// NewGlobal returns a global geographic grid of square cells of res
// degrees. Wrapped grids start at longitude -180 and all others at 0.
func NewGlobal(res float64, state WrappedState) *StructuredGrid {
	ny := int(math.Round(180 / res))
	nx := int(math.Round(360 / res))
	x0 := 0.0
	if state == Wrapped {
		x0 = -180
	}
	return NewRegular(x0, -90, res, res, ny, nx)
}
