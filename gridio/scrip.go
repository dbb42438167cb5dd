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

var scripVars = map[string]bool{
	"grid_dims":       true,
	"grid_center_lat": true,
	"grid_center_lon": true,
	"grid_corner_lat": true,
	"grid_corner_lon": true,
	"grid_imask":      true,
	"grid_area":       true,
	globalIDVar:       true,
}

// ReadSCRIP reads a SCRIP grid file. SCRIP grids are always read as
// unstructured. Coordinates in radians are converted to degrees.
func ReadSCRIP(path string) (*gridchunk.UnstructuredGrid, error) {
	f, cf, err := openCDF(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	e := &gridchunk.Elements{Proj: stringAttr(cf, "", "crs")}
	if e.Y, err = readFloat64(cf, "grid_center_lat"); err != nil {
		return nil, fmt.Errorf("gridio: SCRIP file %s: %v", path, err)
	}
	if e.X, err = readFloat64(cf, "grid_center_lon"); err != nil {
		return nil, fmt.Errorf("gridio: SCRIP file %s: %v", path, err)
	}
	scale := 1.0
	if stringAttr(cf, "grid_center_lat", "units") == "radians" {
		scale = 180 / math.Pi
	}
	n := len(e.X)
	if hasVar(cf, "grid_corner_lat") && hasVar(cf, "grid_corner_lon") {
		nc := cf.Header.Lengths("grid_corner_lat")[1]
		yc, err := readFloat64(cf, "grid_corner_lat")
		if err != nil {
			return nil, err
		}
		xc, err := readFloat64(cf, "grid_corner_lon")
		if err != nil {
			return nil, err
		}
		e.XCorners = make([][]float64, n)
		e.YCorners = make([][]float64, n)
		for i := 0; i < n; i++ {
			e.XCorners[i] = scaled(xc[i*nc:(i+1)*nc], scale)
			e.YCorners[i] = scaled(yc[i*nc:(i+1)*nc], scale)
		}
	}
	if scale != 1 {
		e.X = scaled(e.X, scale)
		e.Y = scaled(e.Y, scale)
	}
	if hasVar(cf, "grid_imask") {
		if e.IMask, err = readInt32(cf, "grid_imask"); err != nil {
			return nil, err
		}
	}
	if hasVar(cf, globalIDVar) {
		if e.IDs, err = readIDs(cf, globalIDVar); err != nil {
			return nil, err
		}
	}
	e.Vars = make(map[string][]float64)
	for _, v := range cf.Header.Variables() {
		dims := cf.Header.Dimensions(v)
		if scripVars[v] || len(dims) != 1 || dims[0] != "grid_size" {
			continue
		}
		if e.Vars[v], err = readFloat64(cf, v); err != nil {
			return nil, err
		}
	}
	return gridchunk.NewUnstructuredGrid(e)
}

func scaled(v []float64, s float64) []float64 {
	o := make([]float64, len(v))
	for i, x := range v {
		o[i] = x * s
	}
	return o
}

// WriteSCRIP writes g to path as a SCRIP grid file, including its global
// identifiers and data variables. Cells with fewer corners than the
// largest cell repeat their last corner.
func WriteSCRIP(path string, g gridchunk.Grid) error {
	n := g.Len()
	if n == 0 {
		return fmt.Errorf("gridio: cannot write empty grid to %s", path)
	}
	nc := 0
	if g.HasCorners() {
		for i := 0; i < n; i++ {
			nc = maxInt(nc, len(g.Corners(i)[0]))
		}
	}
	shape := g.Shape()
	dims := []string{"grid_size", "grid_rank"}
	lengths := []int{n, len(shape)}
	if nc > 0 {
		dims = append(dims, "grid_corners")
		lengths = append(lengths, nc)
	}
	h := cdf.NewHeader(dims, lengths)
	h.AddAttribute("", "title", "gridchunk SCRIP grid")
	h.AddAttribute("", "crs", g.CRS())
	h.AddVariable("grid_dims", []string{"grid_rank"}, []int32{0})
	for _, v := range []string{"grid_center_lat", "grid_center_lon"} {
		h.AddVariable(v, []string{"grid_size"}, []float64{0})
		h.AddAttribute(v, "units", "degrees")
	}
	if nc > 0 {
		for _, v := range []string{"grid_corner_lat", "grid_corner_lon"} {
			h.AddVariable(v, []string{"grid_size", "grid_corners"}, []float64{0})
			h.AddAttribute(v, "units", "degrees")
		}
	}
	h.AddVariable("grid_imask", []string{"grid_size"}, []int32{0})
	h.AddAttribute("grid_imask", "units", "unitless")
	h.AddVariable(globalIDVar, []string{"grid_size"}, []float64{0})
	vars := g.Variables()
	for _, v := range vars {
		h.AddVariable(v, []string{"grid_size"}, []float64{0})
	}
	f, cf, err := createCDF(path, h)
	if err != nil {
		return err
	}
	defer f.Close()

	// SCRIP lists dimensions fastest-varying first.
	gd := make([]int32, len(shape))
	for i, s := range shape {
		gd[len(shape)-1-i] = int32(s)
	}
	if err := WriteVar(cf, "grid_dims", gd); err != nil {
		return err
	}
	lat, lon := make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		c := g.Center(i)
		lon[i], lat[i] = c.X, c.Y
	}
	if err := WriteVar(cf, "grid_center_lat", lat); err != nil {
		return err
	}
	if err := WriteVar(cf, "grid_center_lon", lon); err != nil {
		return err
	}
	if nc > 0 {
		clat, clon := make([]float64, n*nc), make([]float64, n*nc)
		for i := 0; i < n; i++ {
			ring := g.Corners(i)[0]
			for j := 0; j < nc; j++ {
				p := ring[minInt(j, len(ring)-1)]
				clon[i*nc+j], clat[i*nc+j] = p.X, p.Y
			}
		}
		if err := WriteVar(cf, "grid_corner_lat", clat); err != nil {
			return err
		}
		if err := WriteVar(cf, "grid_corner_lon", clon); err != nil {
			return err
		}
	}
	mask := g.Mask()
	if mask == nil {
		mask = make([]int32, n)
		for i := range mask {
			mask[i] = 1
		}
	}
	if err := WriteVar(cf, "grid_imask", mask); err != nil {
		return err
	}
	ids, err := IDsToFloat(g.GlobalIDs())
	if err != nil {
		return err
	}
	if err := WriteVar(cf, globalIDVar, ids); err != nil {
		return err
	}
	for _, v := range vars {
		if err := WriteVar(cf, v, g.Variable(v)); err != nil {
			return err
		}
	}
	return f.Sync()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
