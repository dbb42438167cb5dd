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

// Package gridchunk splits a pair of large geospatial grids into spatially
// corresponding chunks so that interpolation weights can be computed chunk by
// chunk, and reassembles the chunk results using the global element
// identifiers carried by every chunk.
package gridchunk

import (
	"github.com/ctessum/geom"
)

// Topology selects whether extents are computed from cell centers or from
// cell corners.
type Topology int

// Topologies.
const (
	Point Topology = iota
	Polygon
)

// WrappedState describes the longitude convention of a geographic grid.
type WrappedState int

// Wrapped states. Wrapped grids use longitudes in [-180, 180], unwrapped
// grids use [0, 360].
const (
	WrappedUnknown WrappedState = iota
	Wrapped
	Unwrapped
)

func (w WrappedState) String() string {
	switch w {
	case Wrapped:
		return "wrapped"
	case Unwrapped:
		return "unwrapped"
	default:
		return "unknown"
	}
}

// Range is a half-open index range [Start, End).
type Range struct {
	Start, End int
}

// Len returns the number of indices in r.
func (r Range) Len() int { return r.End - r.Start }

// Selection identifies a subset of a grid's elements. Structured grids are
// selected by a window of row (Y) and column (X) indices; unstructured grids
// by a list of element positions.
type Selection struct {
	Y, X     Range
	Elements []int
}

// Len returns the number of elements in s.
func (s Selection) Len() int {
	if s.Elements != nil {
		return len(s.Elements)
	}
	return s.Y.Len() * s.X.Len()
}

// Grid is the capability interface shared by StructuredGrid and
// UnstructuredGrid. Elements are addressed by their position, which is
// row-major for structured grids.
type Grid interface {
	// Rank is 2 for structured grids and 1 for unstructured grids.
	Rank() int
	Shape() []int
	Len() int

	// GlobalIDs returns the global identifier of every element.
	GlobalIDs() []uint64

	// CRS returns the proj4 string of the coordinate reference system.
	CRS() string
	Geographic() bool
	Wrapped() WrappedState

	HasCorners() bool
	Center(i int) geom.Point
	Corners(i int) geom.Polygon

	// CellBounds is the bounding box of element i's corners, or of its
	// center if the grid has no corners.
	CellBounds(i int) *geom.Bounds

	// Extent is the bounding box of all elements in the given topology.
	// Polygon topology falls back to Point for grids without corners.
	Extent(t Topology) *geom.Bounds

	// Positions returns the element positions in s in ascending order.
	Positions(s Selection) ([]int, error)

	// Select returns a new grid holding the selected elements, which keep
	// their global identifiers.
	Select(s Selection) (Grid, error)

	// Window returns the smallest selection containing all positions.
	Window(positions []int) Selection

	Variables() []string
	Variable(name string) []float64
	Mask() []int32

	// Resolution is the characteristic cell spacing of the grid.
	Resolution() float64
}
