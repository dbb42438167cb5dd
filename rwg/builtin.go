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

package rwg

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridchunk"
	"github.com/spatialmodel/gridchunk/gridio"
)

// Builtin generates weights in process, treating coordinates as planar.
// It supports Conserve, which requires cell corners on both grids, and
// NearestSTOD.
type Builtin struct {
	Log logrus.FieldLogger
}

// Generate implements Engine.
func (b *Builtin) Generate(ctx context.Context, src, dst File, weight string, method Method) error {
	sg, err := gridio.Open(src.Path, src.Format)
	if err != nil {
		return err
	}
	dg, err := gridio.Open(dst.Path, dst.Format)
	if err != nil {
		return err
	}
	w, err := Weights(ctx, sg, dg, method)
	if err != nil {
		return err
	}
	if b.Log != nil {
		b.Log.WithFields(logrus.Fields{
			"src":   src.Path,
			"dst":   dst.Path,
			"links": w.Len(),
		}).Debug("generated weights")
	}
	return gridio.WriteWeights(weight, w)
}

// Weights returns the weights that regrid src to dst. Masked elements of
// either grid receive no weights.
func Weights(ctx context.Context, src, dst gridchunk.Grid, method Method) (*gridchunk.Weights, error) {
	switch method {
	case Conserve:
		return conserve(ctx, src, dst)
	case NearestSTOD:
		return nearest(ctx, src, dst)
	default:
		return nil, fmt.Errorf("rwg: the built-in engine does not support method %s", method)
	}
}

type cell struct {
	geom.Geom
	i int
}

func index(g gridchunk.Grid, bounds func(int) *geom.Bounds) *rtree.Rtree {
	t := rtree.NewTree(25, 50)
	m := g.Mask()
	for i := 0; i < g.Len(); i++ {
		if m != nil && m[i] == 0 {
			continue
		}
		t.Insert(&cell{Geom: bounds(i), i: i})
	}
	return t
}

func hits(t *rtree.Rtree, b *geom.Bounds) []int {
	var o []int
	for _, h := range t.SearchIntersect(b) {
		o = append(o, h.(*cell).i)
	}
	sort.Ints(o)
	return o
}

// isBox returns whether p is an axis-aligned rectangle with bounds b.
func isBox(p geom.Polygon, b *geom.Bounds) bool {
	if len(p) != 1 || len(p[0]) != 4 {
		return false
	}
	for _, pt := range p[0] {
		if (pt.X != b.Min.X && pt.X != b.Max.X) || (pt.Y != b.Min.Y && pt.Y != b.Max.Y) {
			return false
		}
	}
	return true
}

func checkCanceled(ctx context.Context, i int) error {
	if i%1024 == 0 {
		return ctx.Err()
	}
	return nil
}

// conserve computes first-order conservative weights: the area of overlap
// between each destination and source cell divided by the destination cell
// area.
func conserve(ctx context.Context, src, dst gridchunk.Grid) (*gridchunk.Weights, error) {
	if !src.HasCorners() || !dst.HasCorners() {
		return nil, fmt.Errorf("rwg: conservative regridding requires cell corners on both grids")
	}
	t := index(src, src.CellBounds)
	w := new(gridchunk.Weights)
	dm := dst.Mask()
	for i := 0; i < dst.Len(); i++ {
		if err := checkCanceled(ctx, i); err != nil {
			return nil, err
		}
		if dm != nil && dm[i] == 0 {
			continue
		}
		dp, db := dst.Corners(i), dst.CellBounds(i)
		dBox := isBox(dp, db)
		area := dp.Area()
		if area <= 0 {
			continue
		}
		for _, j := range hits(t, db) {
			sp, sb := src.Corners(j), src.CellBounds(j)
			var a float64
			if dBox && isBox(sp, sb) {
				ox := math.Min(db.Max.X, sb.Max.X) - math.Max(db.Min.X, sb.Min.X)
				oy := math.Min(db.Max.Y, sb.Max.Y) - math.Max(db.Min.Y, sb.Min.Y)
				if ox <= 0 || oy <= 0 {
					continue
				}
				a = ox * oy
			} else {
				isect := dp.Intersection(sp)
				if isect == nil {
					continue
				}
				a = isect.Area()
			}
			if a <= 0 {
				continue
			}
			w.Add(uint64(i+1), uint64(j+1), a/area)
		}
	}
	return w, nil
}

// nearest maps every destination element to the closest source element
// center. Ties go to the lowest source position.
func nearest(ctx context.Context, src, dst gridchunk.Grid) (*gridchunk.Weights, error) {
	w := new(gridchunk.Weights)
	if src.Len() == 0 {
		return w, nil
	}
	t := index(src, func(i int) *geom.Bounds { return geom.NewBoundsPoint(src.Center(i)) })
	ext := src.Extent(gridchunk.Point)
	span := math.Max(ext.Max.X-ext.Min.X, ext.Max.Y-ext.Min.Y)
	r0 := src.Resolution()
	if r0 <= 0 || math.IsNaN(r0) {
		r0 = math.Max(span, 1)
	}
	dm := dst.Mask()
	for i := 0; i < dst.Len(); i++ {
		if err := checkCanceled(ctx, i); err != nil {
			return nil, err
		}
		if dm != nil && dm[i] == 0 {
			continue
		}
		c := dst.Center(i)
		var cand []int
		for r := r0; ; r *= 2 {
			cand = hits(t, box(c, r))
			if len(cand) > 0 || r > 2*(span+distance(c, ext)) {
				break
			}
		}
		if len(cand) == 0 {
			continue
		}
		// The closest candidate in the square is not necessarily the closest
		// overall; search again within the best distance found.
		best, d := closest(src, c, cand)
		cand = hits(t, box(c, d))
		best, _ = closest(src, c, cand)
		w.Add(uint64(i+1), uint64(best+1), 1)
	}
	return w, nil
}

func box(c geom.Point, r float64) *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: c.X - r, Y: c.Y - r},
		Max: geom.Point{X: c.X + r, Y: c.Y + r},
	}
}

func closest(g gridchunk.Grid, c geom.Point, cand []int) (int, float64) {
	best, bd := -1, math.Inf(1)
	for _, j := range cand {
		p := g.Center(j)
		d := math.Hypot(p.X-c.X, p.Y-c.Y)
		if d < bd {
			best, bd = j, d
		}
	}
	return best, bd
}

// distance returns the distance from c to the nearest point of b.
func distance(c geom.Point, b *geom.Bounds) float64 {
	dx := math.Max(0, math.Max(b.Min.X-c.X, c.X-b.Max.X))
	dy := math.Max(0, math.Max(b.Min.Y-c.Y, c.Y-b.Max.Y))
	return math.Hypot(dx, dy)
}
