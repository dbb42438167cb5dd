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

package chunker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Default artifact names. Templates take the one-based chunk index.
const (
	DefaultSrcTemplate    = "split_src_%d.nc"
	DefaultDstTemplate    = "split_dst_%d.nc"
	DefaultWeightTemplate = "esmf_weights_%d.nc"
	DefaultIndexFile      = "01-split_index.nc"
	DefaultReportFile     = "chunks.toml"
	SpatialSubsetFile     = "spatial_subset.nc"
)

// Paths locates the artifacts of a chunked run inside a working directory.
type Paths struct {
	WD string

	SrcTemplate, DstTemplate, WeightTemplate string
	IndexFile, ReportFile                    string
}

// NewPaths returns the default artifact paths inside wd.
func NewPaths(wd string) Paths {
	return Paths{
		WD:             wd,
		SrcTemplate:    DefaultSrcTemplate,
		DstTemplate:    DefaultDstTemplate,
		WeightTemplate: DefaultWeightTemplate,
		IndexFile:      DefaultIndexFile,
		ReportFile:     DefaultReportFile,
	}
}

// SrcName returns the file name of the source artifact of chunk i.
func (p Paths) SrcName(i int) string { return fmt.Sprintf(p.SrcTemplate, i) }

// DstName returns the file name of the destination artifact of chunk i.
func (p Paths) DstName(i int) string { return fmt.Sprintf(p.DstTemplate, i) }

// WeightName returns the file name of the weight artifact of chunk i.
func (p Paths) WeightName(i int) string { return fmt.Sprintf(p.WeightTemplate, i) }

// Path returns the path of name inside the working directory.
func (p Paths) Path(name string) string { return filepath.Join(p.WD, name) }

// IndexPath returns the path of the index file.
func (p Paths) IndexPath() string { return p.Path(p.IndexFile) }

// ReportPath returns the path of the chunk report.
func (p Paths) ReportPath() string { return p.Path(p.ReportFile) }

// IsSubpath returns whether path is dir or lies inside it, after
// resolving both to absolute paths.
func IsSubpath(dir, path string) (bool, error) {
	d, err := filepath.Abs(dir)
	if err != nil {
		return false, err
	}
	p, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	if r, err := filepath.EvalSymlinks(d); err == nil {
		d = r
	}
	if r, err := filepath.EvalSymlinks(filepath.Dir(p)); err == nil {
		p = filepath.Join(r, filepath.Base(p))
	}
	rel, err := filepath.Rel(d, p)
	if err != nil {
		return false, nil
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))), nil
}

// removeIfExists removes path, ignoring a missing file.
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
