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

// Package rwg generates regridding weights between pairs of grid files,
// either by running ESMF_RegridWeightGen or with a built-in planar engine.
package rwg

import (
	"context"
	"fmt"
	"strings"
)

// Method is a regridding method.
type Method string

// Regridding methods.
const (
	Conserve    Method = "CONSERVE"
	Bilinear    Method = "BILINEAR"
	Patch       Method = "PATCH"
	NearestSTOD Method = "NEAREST_STOD"
	NearestDTOS Method = "NEAREST_DTOS"
)

// ParseMethod returns the method named by s, ignoring case.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(s))
	switch m {
	case Conserve, Bilinear, Patch, NearestSTOD, NearestDTOS:
		return m, nil
	default:
		return "", fmt.Errorf("rwg: unknown regrid method %q", s)
	}
}

// File is a grid file and its format.
type File struct {
	Path   string
	Format string

	// Regional marks a grid that does not cover the globe.
	Regional bool
}

// An Engine writes the weights that regrid src to dst to the file weight.
// Rows of the weight matrix are one-based destination element positions
// and columns are one-based source element positions.
type Engine interface {
	Generate(ctx context.Context, src, dst File, weight string, method Method) error
}
