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
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

const (
	// DefaultBufferModifier multiplies the source resolution to give the
	// default buffer distance.
	DefaultBufferModifier = 2.0

	// ContainsTolerance is the slack allowed when checking that a source
	// subset contains a destination extent.
	ContainsTolerance = 1e-6
)

// Subsetter selects the part of a source grid needed to compute weights
// for a destination extent.
type Subsetter struct {
	Source Grid

	// BufferDistance, if > 0, overrides the buffer derived from the
	// source resolution.
	BufferDistance float64

	// BufferModifier multiplies the source resolution to give the buffer.
	// DefaultBufferModifier is used if it is zero.
	BufferModifier float64

	// Resolution, if > 0, overrides Source.Resolution().
	Resolution float64

	// CheckContains turns a failed containment check into a CoverageError.
	CheckContains bool

	once sync.Once
	tree *rtree.Rtree
}

// cellRef is a source element stored in the spatial index.
type cellRef struct {
	geom.Geom
	i int
}

// Buffer returns the distance by which destination extents are expanded.
func (s *Subsetter) Buffer() float64 {
	if s.BufferDistance > 0 {
		return s.BufferDistance
	}
	mod := s.BufferModifier
	if mod <= 0 {
		mod = DefaultBufferModifier
	}
	res := s.Resolution
	if res <= 0 {
		res = s.Source.Resolution()
	}
	return mod * res
}

func (s *Subsetter) index() {
	s.once.Do(func() {
		s.tree = rtree.NewTree(25, 50)
		for i := 0; i < s.Source.Len(); i++ {
			s.tree.Insert(&cellRef{Geom: s.Source.CellBounds(i), i: i})
		}
	})
}

// Subset returns the selection of source elements whose cells intersect
// ext expanded by the buffer distance, and whether those elements contain
// ext. chunk is only used for error reporting.
func (s *Subsetter) Subset(chunk int, ext *geom.Bounds) (Selection, bool, error) {
	if ext == nil || ext.Empty() {
		return Selection{}, false, fmt.Errorf("gridchunk: chunk %d: empty destination extent", chunk)
	}
	s.index()
	d := s.Buffer()
	buffered := &geom.Bounds{
		Min: geom.Point{X: ext.Min.X - d, Y: ext.Min.Y - d},
		Max: geom.Point{X: ext.Max.X + d, Y: ext.Max.Y + d},
	}
	boxes := []*geom.Bounds{buffered}
	required := []*geom.Bounds{ext}
	if s.Source.Geographic() {
		state := s.Source.Wrapped()
		boxes = splitPeriodic(buffered, state)
		required = splitPeriodic(ext, state)
	}

	var hits []int
	for _, b := range boxes {
		for _, h := range s.tree.SearchIntersect(b) {
			hits = append(hits, h.(*cellRef).i)
		}
	}
	hits = uniqueInts(hits)
	sel := s.Source.Window(hits)
	if len(hits) == 0 {
		if s.CheckContains {
			return sel, false, &CoverageError{Chunk: chunk, Msg: fmt.Sprintf("no source elements within %g of %v", d, *ext)}
		}
		return sel, false, nil
	}

	pos, err := s.Source.Positions(sel)
	if err != nil {
		return Selection{}, false, err
	}
	have := geom.NewBounds()
	for _, p := range pos {
		have.Extend(s.Source.CellBounds(p))
	}
	for _, r := range required {
		if !containsBounds(have, r, ContainsTolerance) {
			if s.CheckContains {
				return sel, false, &CoverageError{Chunk: chunk, Msg: fmt.Sprintf("source extent %v does not contain %v", *have, *r)}
			}
			return sel, false, nil
		}
	}
	return sel, true, nil
}

func containsBounds(outer, inner *geom.Bounds, tol float64) bool {
	return inner.Min.X >= outer.Min.X-tol && inner.Min.Y >= outer.Min.Y-tol &&
		inner.Max.X <= outer.Max.X+tol && inner.Max.Y <= outer.Max.Y+tol
}

// splitPeriodic clamps b to valid latitudes and expresses it in the
// longitude convention of state, splitting it in two where it crosses the
// periodic boundary. Boxes of unknown convention are only clamped.
func splitPeriodic(b *geom.Bounds, state WrappedState) []*geom.Bounds {
	b = b.Copy()
	b.Min.Y = math.Max(b.Min.Y, -90)
	b.Max.Y = math.Min(b.Max.Y, 90)
	var lo, hi float64
	switch state {
	case Wrapped:
		lo, hi = -180, 180
	case Unwrapped:
		lo, hi = 0, 360
	default:
		return []*geom.Bounds{b}
	}
	if b.Max.X-b.Min.X >= 360 {
		b.Min.X, b.Max.X = lo, hi
		return []*geom.Bounds{b}
	}
	for b.Min.X >= hi {
		b.Min.X -= 360
		b.Max.X -= 360
	}
	for b.Max.X <= lo {
		b.Min.X += 360
		b.Max.X += 360
	}
	switch {
	case b.Min.X < lo:
		west := b.Copy()
		west.Min.X, west.Max.X = b.Min.X+360, hi
		b.Min.X = lo
		return []*geom.Bounds{west, b}
	case b.Max.X > hi:
		east := b.Copy()
		east.Min.X, east.Max.X = lo, b.Max.X-360
		b.Max.X = hi
		return []*geom.Bounds{b, east}
	}
	return []*geom.Bounds{b}
}

func uniqueInts(v []int) []int {
	sort.Ints(v)
	out := v[:0]
	for i, x := range v {
		if i == 0 || x != v[i-1] {
			out = append(out, x)
		}
	}
	return out
}

// ChunkExtent returns the extent used to select source elements for a
// destination chunk: the polygon extent when corners are available, else
// the point extent padded by half of pointPad on every side.
func ChunkExtent(dst Grid, pointPad float64) *geom.Bounds {
	if dst.HasCorners() {
		return dst.Extent(Polygon)
	}
	b := dst.Extent(Point)
	if pointPad > 0 && !b.Empty() {
		h := pointPad / 2
		b.Min.X -= h
		b.Min.Y -= h
		b.Max.X += h
		b.Max.Y += h
	}
	return b
}
