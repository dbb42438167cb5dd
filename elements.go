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
	"sort"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// DefaultCRS is the coordinate reference system assumed for grids that do
// not declare one.
const DefaultCRS = "+proj=longlat +datum=WGS84 +no_defs"

// Elements holds the per-element arrays shared by both grid variants.
// All slices are indexed by element position.
type Elements struct {
	// X and Y are the cell center coordinates.
	X, Y []float64

	// XCorners and YCorners hold the corner coordinates of each cell in
	// counter-clockwise order. They are nil for grids without corners.
	XCorners, YCorners [][]float64

	// IDs are the global identifiers. If nil when the grid is validated,
	// identifiers 1..N are assigned.
	IDs []uint64

	// IMask is 1 for active and 0 for masked elements. A nil mask means
	// all elements are active.
	IMask []int32

	// Vars holds named data variables with one value per element.
	Vars map[string][]float64

	// Proj is the proj4 string of the coordinate reference system.
	Proj string

	geoOnce sync.Once
	geo     bool
}

func (e *Elements) validate() error {
	n := len(e.X)
	if len(e.Y) != n {
		return fmt.Errorf("gridchunk: %d x coordinates but %d y coordinates", n, len(e.Y))
	}
	if e.IDs == nil {
		e.IDs = AssignIDs(n)
	} else if len(e.IDs) != n {
		return fmt.Errorf("gridchunk: %d global ids for %d elements", len(e.IDs), n)
	}
	if (e.XCorners == nil) != (e.YCorners == nil) {
		return fmt.Errorf("gridchunk: x and y corners must both be present or absent")
	}
	if e.XCorners != nil {
		if len(e.XCorners) != n || len(e.YCorners) != n {
			return fmt.Errorf("gridchunk: corner arrays do not match %d elements", n)
		}
		for i := range e.XCorners {
			if len(e.XCorners[i]) != len(e.YCorners[i]) {
				return fmt.Errorf("gridchunk: element %d has mismatched corner arrays", i)
			}
		}
	}
	if e.IMask != nil && len(e.IMask) != n {
		return fmt.Errorf("gridchunk: mask length %d does not match %d elements", len(e.IMask), n)
	}
	for name, v := range e.Vars {
		if len(v) != n {
			return fmt.Errorf("gridchunk: variable %s has %d values for %d elements", name, len(v), n)
		}
	}
	if e.Proj == "" {
		e.Proj = DefaultCRS
	}
	return nil
}

// Len returns the number of elements.
func (e *Elements) Len() int { return len(e.X) }

// GlobalIDs returns the global identifiers.
func (e *Elements) GlobalIDs() []uint64 { return e.IDs }

// CRS returns the proj4 string of the coordinate reference system.
func (e *Elements) CRS() string {
	if e.Proj == "" {
		return DefaultCRS
	}
	return e.Proj
}

// Geographic returns whether the coordinate reference system is longitude
// and latitude.
func (e *Elements) Geographic() bool {
	e.geoOnce.Do(func() {
		sr, err := proj.Parse(e.CRS())
		e.geo = err == nil && sr.Name == "longlat"
	})
	return e.geo
}

// Wrapped returns the longitude convention of a geographic grid.
func (e *Elements) Wrapped() WrappedState {
	if !e.Geographic() {
		return WrappedUnknown
	}
	state := WrappedUnknown
	for _, x := range e.X {
		if x < 0 {
			return Wrapped
		}
		if x > 180 {
			state = Unwrapped
		}
	}
	return state
}

// HasCorners returns whether cell corners are available.
func (e *Elements) HasCorners() bool { return e.XCorners != nil }

// Center returns the center of element i.
func (e *Elements) Center(i int) geom.Point {
	return geom.Point{X: e.X[i], Y: e.Y[i]}
}

// Corners returns the cell polygon of element i, or nil if the grid has no
// corners.
func (e *Elements) Corners(i int) geom.Polygon {
	if e.XCorners == nil {
		return nil
	}
	xc, yc := e.XCorners[i], e.YCorners[i]
	ring := make([]geom.Point, len(xc))
	for j := range xc {
		ring[j] = geom.Point{X: xc[j], Y: yc[j]}
	}
	return geom.Polygon{ring}
}

// CellBounds returns the bounding box of element i.
func (e *Elements) CellBounds(i int) *geom.Bounds {
	if e.XCorners == nil {
		return geom.NewBoundsPoint(e.Center(i))
	}
	b := geom.NewBounds()
	for j := range e.XCorners[i] {
		b.Extend(geom.NewBoundsPoint(geom.Point{X: e.XCorners[i][j], Y: e.YCorners[i][j]}))
	}
	return b
}

// Extent returns the bounding box of all elements.
func (e *Elements) Extent(t Topology) *geom.Bounds {
	b := geom.NewBounds()
	if t == Polygon && e.HasCorners() {
		for i := range e.X {
			b.Extend(e.CellBounds(i))
		}
		return b
	}
	for i := range e.X {
		b.Extend(geom.NewBoundsPoint(e.Center(i)))
	}
	return b
}

// Variables returns the sorted names of the data variables.
func (e *Elements) Variables() []string {
	names := make([]string, 0, len(e.Vars))
	for n := range e.Vars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Variable returns the values of the named data variable, or nil.
func (e *Elements) Variable(name string) []float64 { return e.Vars[name] }

// Mask returns the element mask, or nil if all elements are active.
func (e *Elements) Mask() []int32 { return e.IMask }

// take returns a copy of the elements at the given positions.
func (e *Elements) take(pos []int) *Elements {
	o := &Elements{
		X:    make([]float64, len(pos)),
		Y:    make([]float64, len(pos)),
		IDs:  make([]uint64, len(pos)),
		Proj: e.Proj,
	}
	for k, p := range pos {
		o.X[k], o.Y[k], o.IDs[k] = e.X[p], e.Y[p], e.IDs[p]
	}
	if e.XCorners != nil {
		o.XCorners = make([][]float64, len(pos))
		o.YCorners = make([][]float64, len(pos))
		for k, p := range pos {
			o.XCorners[k] = append([]float64(nil), e.XCorners[p]...)
			o.YCorners[k] = append([]float64(nil), e.YCorners[p]...)
		}
	}
	if e.IMask != nil {
		o.IMask = make([]int32, len(pos))
		for k, p := range pos {
			o.IMask[k] = e.IMask[p]
		}
	}
	if e.Vars != nil {
		o.Vars = make(map[string][]float64, len(e.Vars))
		for name, v := range e.Vars {
			vv := make([]float64, len(pos))
			for k, p := range pos {
				vv[k] = v[p]
			}
			o.Vars[name] = vv
		}
	}
	return o
}
