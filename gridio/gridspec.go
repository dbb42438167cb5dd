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
	"strings"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/gridchunk"
)

// coordVar finds the one-dimensional coordinate variable for an axis,
// identified by its standard_name, units or a conventional name.
func coordVar(cf *cdf.File, standard, units string, names ...string) string {
	for _, v := range cf.Header.Variables() {
		if len(cf.Header.Dimensions(v)) != 1 {
			continue
		}
		if stringAttr(cf, v, "standard_name") == standard || stringAttr(cf, v, "units") == units {
			return v
		}
	}
	for _, v := range cf.Header.Variables() {
		if len(cf.Header.Dimensions(v)) != 1 {
			continue
		}
		for _, n := range names {
			if strings.EqualFold(v, n) {
				return v
			}
		}
	}
	return ""
}

// ReadGRIDSPEC reads a CF-convention rectilinear grid with one-dimensional
// latitude and longitude coordinates. Cell corners are taken from the
// coordinate bounds variables when present. Variables dimensioned
// (lat, lon) become data variables.
func ReadGRIDSPEC(path string) (*gridchunk.StructuredGrid, error) {
	f, cf, err := openCDF(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	latName := coordVar(cf, "latitude", "degrees_north", "lat", "latitude", "y")
	lonName := coordVar(cf, "longitude", "degrees_east", "lon", "longitude", "x")
	if latName == "" || lonName == "" {
		return nil, fmt.Errorf("gridio: %s: could not find latitude and longitude coordinates", path)
	}
	lat, err := readFloat64(cf, latName)
	if err != nil {
		return nil, err
	}
	lon, err := readFloat64(cf, lonName)
	if err != nil {
		return nil, err
	}
	latBnds, err := readBounds(cf, latName, len(lat))
	if err != nil {
		return nil, err
	}
	lonBnds, err := readBounds(cf, lonName, len(lon))
	if err != nil {
		return nil, err
	}
	ny, nx := len(lat), len(lon)
	n := ny * nx
	e := &gridchunk.Elements{
		X:    make([]float64, n),
		Y:    make([]float64, n),
		Proj: stringAttr(cf, "", "crs"),
	}
	if latBnds != nil && lonBnds != nil {
		e.XCorners = make([][]float64, n)
		e.YCorners = make([][]float64, n)
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			k := j*nx + i
			e.X[k], e.Y[k] = lon[i], lat[j]
			if e.XCorners != nil {
				x0, x1 := lonBnds[2*i], lonBnds[2*i+1]
				y0, y1 := latBnds[2*j], latBnds[2*j+1]
				e.XCorners[k] = []float64{x0, x1, x1, x0}
				e.YCorners[k] = []float64{y0, y0, y1, y1}
			}
		}
	}
	latDim := cf.Header.Dimensions(latName)[0]
	lonDim := cf.Header.Dimensions(lonName)[0]
	e.Vars = make(map[string][]float64)
	for _, v := range cf.Header.Variables() {
		dims := cf.Header.Dimensions(v)
		if len(dims) != 2 || dims[0] != latDim || dims[1] != lonDim {
			continue
		}
		vals, err := readFloat64(cf, v)
		if err != nil {
			return nil, err
		}
		switch v {
		case globalIDVar:
			if e.IDs, err = readIDs(cf, v); err != nil {
				return nil, err
			}
		case "mask":
			e.IMask = make([]int32, n)
			for k, x := range vals {
				e.IMask[k] = int32(x)
			}
		default:
			e.Vars[v] = vals
		}
	}
	return gridchunk.NewStructuredGrid(ny, nx, e)
}

// readBounds reads the (n, 2) bounds variable named by the bounds attribute
// of coordinate v, or returns nil if there is none.
func readBounds(cf *cdf.File, v string, n int) ([]float64, error) {
	b := stringAttr(cf, v, "bounds")
	if b == "" || !hasVar(cf, b) {
		return nil, nil
	}
	vals, err := readFloat64(cf, b)
	if err != nil {
		return nil, err
	}
	if len(vals) != 2*n {
		return nil, fmt.Errorf("gridio: bounds variable %s has %d values for %d cells", b, len(vals), n)
	}
	return vals, nil
}

// WriteGRIDSPEC writes a rectilinear structured grid to path in CF format.
// It returns an error if the grid is not rectilinear.
func WriteGRIDSPEC(path string, g *gridchunk.StructuredGrid) error {
	ny, nx := g.NY, g.NX
	if ny*nx == 0 {
		return fmt.Errorf("gridio: cannot write empty grid to %s", path)
	}
	lat, lon := make([]float64, ny), make([]float64, nx)
	for j := 0; j < ny; j++ {
		lat[j] = g.Y[j*nx]
	}
	for i := 0; i < nx; i++ {
		lon[i] = g.X[i]
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			k := j*nx + i
			if g.X[k] != lon[i] || g.Y[k] != lat[j] {
				return fmt.Errorf("gridio: grid written to %s is not rectilinear", path)
			}
		}
	}
	h := cdf.NewHeader([]string{"lat", "lon", "nv"}, []int{ny, nx, 2})
	h.AddAttribute("", "Conventions", "CF-1.6")
	h.AddAttribute("", "crs", g.CRS())
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "standard_name", "latitude")
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "standard_name", "longitude")
	h.AddAttribute("lon", "units", "degrees_east")
	if g.HasCorners() {
		h.AddAttribute("lat", "bounds", "lat_bnds")
		h.AddAttribute("lon", "bounds", "lon_bnds")
		h.AddVariable("lat_bnds", []string{"lat", "nv"}, []float64{0})
		h.AddVariable("lon_bnds", []string{"lon", "nv"}, []float64{0})
	}
	h.AddVariable(globalIDVar, []string{"lat", "lon"}, []float64{0})
	if g.Mask() != nil {
		h.AddVariable("mask", []string{"lat", "lon"}, []int32{0})
	}
	vars := g.Variables()
	for _, v := range vars {
		h.AddVariable(v, []string{"lat", "lon"}, []float64{0})
	}
	f, cf, err := createCDF(path, h)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := WriteVar(cf, "lat", lat); err != nil {
		return err
	}
	if err := WriteVar(cf, "lon", lon); err != nil {
		return err
	}
	if g.HasCorners() {
		latB, lonB := make([]float64, 2*ny), make([]float64, 2*nx)
		for j := 0; j < ny; j++ {
			b := g.CellBounds(j * nx)
			latB[2*j], latB[2*j+1] = b.Min.Y, b.Max.Y
		}
		for i := 0; i < nx; i++ {
			b := g.CellBounds(i)
			lonB[2*i], lonB[2*i+1] = b.Min.X, b.Max.X
		}
		if err := WriteVar(cf, "lat_bnds", latB); err != nil {
			return err
		}
		if err := WriteVar(cf, "lon_bnds", lonB); err != nil {
			return err
		}
	}
	ids, err := IDsToFloat(g.GlobalIDs())
	if err != nil {
		return err
	}
	if err := WriteVar(cf, globalIDVar, ids); err != nil {
		return err
	}
	if m := g.Mask(); m != nil {
		if err := WriteVar(cf, "mask", m); err != nil {
			return err
		}
	}
	for _, v := range vars {
		if err := WriteVar(cf, v, g.Variable(v)); err != nil {
			return err
		}
	}
	return f.Sync()
}
