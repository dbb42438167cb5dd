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

// Package gridio reads and writes grids, weight matrices and master output
// files in NetCDF format.
package gridio

import (
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/gridchunk"
)

// Grid file formats.
const (
	SCRIP    = "SCRIP"
	GRIDSPEC = "GRIDSPEC"
	UGRID    = "UGRID"
)

// globalIDVar is the variable holding element global identifiers.
const globalIDVar = "global_id"

// MaxExactID is the largest identifier that can be stored exactly in a
// float64 variable.
const MaxExactID = 1 << 53

// ParseFormat returns the canonical name of a grid file format.
func ParseFormat(s string) (string, error) {
	switch strings.ToUpper(s) {
	case SCRIP:
		return SCRIP, nil
	case GRIDSPEC, "CF", "CFGRID":
		return GRIDSPEC, nil
	case UGRID:
		return UGRID, nil
	default:
		return "", fmt.Errorf("gridio: unknown grid format %q", s)
	}
}

// Open reads the grid in path, which is in the given format.
func Open(path, format string) (gridchunk.Grid, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	switch f {
	case SCRIP:
		return ReadSCRIP(path)
	case GRIDSPEC:
		return ReadGRIDSPEC(path)
	default:
		return nil, fmt.Errorf("gridio: reading %s grids is not supported", f)
	}
}

// openCDF opens a NetCDF file for reading.
func openCDF(path string) (*os.File, *cdf.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	cf, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("gridio: reading %s: %v", path, err)
	}
	return f, cf, nil
}

// createCDF defines h and creates a new NetCDF file with it.
func createCDF(path string, h *cdf.Header) (*os.File, *cdf.File, error) {
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return nil, nil, fmt.Errorf("gridio: invalid header for %s: %v", path, errs)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	cf, err := cdf.Create(f, h)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("gridio: creating %s: %v", path, err)
	}
	return f, cf, nil
}

func hasVar(cf *cdf.File, name string) bool {
	for _, v := range cf.Header.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

// readFloat64 reads the full contents of a numeric variable.
func readFloat64(cf *cdf.File, name string) ([]float64, error) {
	if !hasVar(cf, name) {
		return nil, fmt.Errorf("gridio: missing variable %s", name)
	}
	n := 1
	for _, l := range cf.Header.Lengths(name) {
		n *= l
	}
	if n == 0 {
		return []float64{}, nil
	}
	r := cf.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("gridio: reading variable %s: %v", name, err)
	}
	switch v := buf.(type) {
	case []float64:
		return v, nil
	case []float32:
		o := make([]float64, len(v))
		for i, x := range v {
			o[i] = float64(x)
		}
		return o, nil
	case []int32:
		o := make([]float64, len(v))
		for i, x := range v {
			o[i] = float64(x)
		}
		return o, nil
	case []int16:
		o := make([]float64, len(v))
		for i, x := range v {
			o[i] = float64(x)
		}
		return o, nil
	case []uint8:
		o := make([]float64, len(v))
		for i, x := range v {
			o[i] = float64(x)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("gridio: variable %s has unsupported type %T", name, buf)
	}
}

func readInt32(cf *cdf.File, name string) ([]int32, error) {
	v, err := readFloat64(cf, name)
	if err != nil {
		return nil, err
	}
	o := make([]int32, len(v))
	for i, x := range v {
		o[i] = int32(x)
	}
	return o, nil
}

func readIDs(cf *cdf.File, name string) ([]uint64, error) {
	v, err := readFloat64(cf, name)
	if err != nil {
		return nil, err
	}
	o := make([]uint64, len(v))
	for i, x := range v {
		if x < 0 || x != math.Trunc(x) {
			return nil, fmt.Errorf("gridio: invalid global id %v in %s", x, name)
		}
		o[i] = uint64(x)
	}
	return o, nil
}

// IDsToFloat converts global identifiers to float64 values, returning an
// error for any identifier above MaxExactID.
func IDsToFloat(ids []uint64) ([]float64, error) {
	o := make([]float64, len(ids))
	for i, id := range ids {
		if id > MaxExactID {
			return nil, fmt.Errorf("gridio: global id %d cannot be stored exactly", id)
		}
		o[i] = float64(id)
	}
	return o, nil
}

func stringAttr(cf *cdf.File, v, a string) string {
	s, _ := cf.Header.GetAttribute(v, a).(string)
	return s
}

// WriteVar writes data to the whole of the named variable.
func WriteVar(cf *cdf.File, name string, data interface{}) error {
	if err := writeValues(cf.Writer(name, nil, nil), data); err != nil {
		return fmt.Errorf("gridio: writing variable %s: %v", name, err)
	}
	return nil
}

// writeValues writes data with w. A cdf writer returns io.EOF when a
// write reaches its end bound, which is not an error when every value
// was written.
func writeValues(w cdf.Writer, data interface{}) error {
	n, err := w.Write(data)
	if err == io.EOF && n == reflect.ValueOf(data).Len() {
		return nil
	}
	return err
}

// maxInt returns the larger of a and b.
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ReadVariable reads the full contents of a numeric variable in path.
func ReadVariable(path, name string) ([]float64, error) {
	f, cf, err := openCDF(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readFloat64(cf, name)
}
