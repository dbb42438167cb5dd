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
	"os"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/gridchunk"
)

// Master is a NetCDF file sized for a full destination grid into which
// chunk results are written by global identifier.
type Master struct {
	f   *os.File
	cf  *cdf.File
	reg *gridchunk.Registry
}

// OpenMaster opens an existing master file for writing. Element positions
// are looked up in its global_id variable if present; otherwise global id
// k is at position k-1.
func OpenMaster(path string) (*Master, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	cf, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("gridio: opening master file %s: %v", path, err)
	}
	m := &Master{f: f, cf: cf}
	if hasVar(cf, globalIDVar) {
		ids, err := readIDs(cf, globalIDVar)
		if err != nil {
			f.Close()
			return nil, err
		}
		m.reg = gridchunk.NewRegistry(ids)
		if err := m.reg.Validate(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return m, nil
}

// CreateMaster creates a master file for dst holding the named variables,
// all set to fill. Rectilinear structured grids are written in GRIDSPEC
// format and all others in SCRIP format.
func CreateMaster(path string, dst gridchunk.Grid, variables []string, fill float64) error {
	e := &gridchunk.Elements{
		X:    make([]float64, dst.Len()),
		Y:    make([]float64, dst.Len()),
		IDs:  dst.GlobalIDs(),
		Vars: make(map[string][]float64),
		Proj: dst.CRS(),
	}
	if dst.HasCorners() {
		e.XCorners = make([][]float64, dst.Len())
		e.YCorners = make([][]float64, dst.Len())
	}
	for i := 0; i < dst.Len(); i++ {
		c := dst.Center(i)
		e.X[i], e.Y[i] = c.X, c.Y
		if e.XCorners != nil {
			for _, p := range dst.Corners(i)[0] {
				e.XCorners[i] = append(e.XCorners[i], p.X)
				e.YCorners[i] = append(e.YCorners[i], p.Y)
			}
		}
	}
	for _, v := range variables {
		vals := make([]float64, dst.Len())
		for i := range vals {
			vals[i] = fill
		}
		e.Vars[v] = vals
	}
	if s, ok := dst.(*gridchunk.StructuredGrid); ok {
		g, err := gridchunk.NewStructuredGrid(s.NY, s.NX, e)
		if err != nil {
			return err
		}
		if err := WriteGRIDSPEC(path, g); err == nil {
			return nil
		}
	}
	g, err := gridchunk.NewUnstructuredGrid(e)
	if err != nil {
		return err
	}
	return WriteSCRIP(path, g)
}

func varLen(cf *cdf.File, v string) int {
	n := 1
	for _, l := range cf.Header.Lengths(v) {
		n *= l
	}
	return n
}

// Position returns the position of the element with the given global id.
func (m *Master) Position(id uint64) (int, bool) {
	if m.reg != nil {
		return m.reg.Local(id)
	}
	if id < 1 {
		return 0, false
	}
	return int(id - 1), true
}

// WriteRun writes vals to the named variable at consecutive positions
// starting at pos. Positions are row-major over the variable's dimensions.
// Concurrent calls must write disjoint positions.
func (m *Master) WriteRun(variable string, pos int, vals []float64) error {
	if len(vals) == 0 {
		return nil
	}
	if !hasVar(m.cf, variable) {
		return fmt.Errorf("gridio: master file has no variable %s", variable)
	}
	shape := m.cf.Header.Lengths(variable)
	if pos < 0 || pos+len(vals) > varLen(m.cf, variable) {
		return fmt.Errorf("gridio: positions [%d, %d) out of range for master variable %s", pos, pos+len(vals), variable)
	}
	var data interface{}
	switch m.cf.Header.ZeroValue(variable, 0).(type) {
	case []float64:
		data = vals
	case []float32:
		d := make([]float32, len(vals))
		for i, v := range vals {
			d[i] = float32(v)
		}
		data = d
	default:
		return fmt.Errorf("gridio: master variable %s must be a floating point variable", variable)
	}
	w := m.cf.Writer(variable, unravel(pos, shape), unravel(pos+len(vals)-1, shape))
	if err := writeValues(w, data); err != nil {
		return fmt.Errorf("gridio: writing master variable %s: %v", variable, err)
	}
	return nil
}

// Close flushes and closes the master file.
func (m *Master) Close() error {
	if err := m.f.Sync(); err != nil {
		m.f.Close()
		return err
	}
	return m.f.Close()
}

// unravel converts a row-major linear position to an index vector.
func unravel(pos int, shape []int) []int {
	idx := make([]int, len(shape))
	for d := len(shape) - 1; d >= 0; d-- {
		idx[d] = pos % shape[d]
		pos /= shape[d]
	}
	return idx
}
