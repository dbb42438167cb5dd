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

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/gridchunk/internal/hash"
)

// Report summarizes a chunked run. Runs with identical inputs produce
// identical reports.
type Report struct {
	// Config is a fingerprint of the run settings.
	Config string `toml:"config"`

	Chunks []ReportChunk `toml:"chunk"`
}

// ReportChunk summarizes one chunk.
type ReportChunk struct {
	Index      int    `toml:"index"`
	Covered    bool   `toml:"covered"`
	NSrc       int    `toml:"n_src"`
	NDst       int    `toml:"n_dst"`
	SrcFile    string `toml:"src_file"`
	DstFile    string `toml:"dst_file"`
	WeightFile string `toml:"weight_file"`
	SrcIDs     string `toml:"src_ids"`
	DstIDs     string `toml:"dst_ids"`
}

// NewReport summarizes descs, which must be sorted by chunk index.
// config is fingerprinted.
func NewReport(config interface{}, descs []*Descriptor) *Report {
	r := &Report{Config: hash.Hash(config)}
	for _, d := range descs {
		r.Chunks = append(r.Chunks, ReportChunk{
			Index:      d.Index,
			Covered:    d.Covered,
			NSrc:       len(d.SrcIDs),
			NDst:       len(d.DstIDs),
			SrcFile:    d.SrcFile,
			DstFile:    d.DstFile,
			WeightFile: d.WeightFile,
			SrcIDs:     hash.IDs(d.SrcIDs),
			DstIDs:     hash.IDs(d.DstIDs),
		})
	}
	return r
}

// WriteReport writes r to path in TOML format.
func WriteReport(path string, r *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(r); err != nil {
		f.Close()
		return fmt.Errorf("chunker: writing report: %v", err)
	}
	return f.Close()
}

// ReadReport reads a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	r := new(Report)
	if _, err := toml.DecodeFile(path, r); err != nil {
		return nil, fmt.Errorf("chunker: reading report: %v", err)
	}
	return r, nil
}
