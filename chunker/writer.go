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
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridchunk"
	"github.com/spatialmodel/gridchunk/gridio"
	"github.com/spatialmodel/gridchunk/rwg"
)

// PairWriter persists the source and destination subsets of a chunk and
// optionally generates the chunk's weights.
type PairWriter struct {
	Src, Dst gridchunk.Grid
	Paths    Paths

	// GenWeights runs Engine on every chunk with a non-empty source subset.
	GenWeights bool
	Engine     rwg.Engine
	Method     rwg.Method

	Log logrus.FieldLogger
}

// Write writes the artifacts of chunk index, replacing any previous ones,
// and returns the chunk's descriptor.
func (w *PairWriter) Write(ctx context.Context, index int, srcSel, dstSel gridchunk.Selection, covered bool) (*Descriptor, error) {
	log := w.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	dst, err := w.Dst.Select(dstSel)
	if err != nil {
		return nil, err
	}
	d := &Descriptor{
		Index:   index,
		DstSel:  dstSel,
		SrcSel:  srcSel,
		DstIDs:  dst.GlobalIDs(),
		SrcIDs:  []uint64{},
		Covered: covered,
		DstFile: w.Paths.DstName(index),
	}
	if err := gridio.WriteSCRIP(w.Paths.Path(d.DstFile), dst); err != nil {
		return nil, err
	}

	srcPath, weightPath := w.Paths.Path(w.Paths.SrcName(index)), w.Paths.Path(w.Paths.WeightName(index))
	if srcSel.Len() == 0 {
		log.WithFields(logrus.Fields{"chunk": index}).Warn("empty source subset")
		if err := removeIfExists(srcPath); err != nil {
			return nil, err
		}
		return d, removeIfExists(weightPath)
	}
	src, err := w.Src.Select(srcSel)
	if err != nil {
		return nil, err
	}
	d.SrcIDs = src.GlobalIDs()
	d.SrcFile = w.Paths.SrcName(index)
	if err := gridio.WriteSCRIP(srcPath, src); err != nil {
		return nil, err
	}

	if !w.GenWeights {
		return d, removeIfExists(weightPath)
	}
	err = w.Engine.Generate(ctx,
		rwg.File{Path: srcPath, Format: gridio.SCRIP, Regional: true},
		rwg.File{Path: w.Paths.Path(d.DstFile), Format: gridio.SCRIP, Regional: true},
		weightPath, w.Method)
	if err != nil {
		return nil, &gridchunk.ExternalEngineError{Chunk: index, Err: err}
	}
	if err := checkWeights(weightPath, len(d.DstIDs), len(d.SrcIDs)); err != nil {
		return nil, &gridchunk.ExternalEngineError{Chunk: index, Err: err}
	}
	d.WeightFile = w.Paths.WeightName(index)
	log.WithFields(logrus.Fields{
		"chunk": index,
		"src":   len(d.SrcIDs),
		"dst":   len(d.DstIDs),
	}).Debug("wrote chunk")
	return d, nil
}

// checkWeights checks that the weight file at path exists and addresses
// only the nDst destination and nSrc source elements of its chunk.
func checkWeights(path string, nDst, nSrc int) error {
	w, err := gridio.ReadWeights(path)
	if err != nil {
		return err
	}
	for k := range w.S {
		if w.Row[k] < 1 || w.Row[k] > uint64(nDst) {
			return fmt.Errorf("chunker: weight row %d out of range [1, %d]", w.Row[k], nDst)
		}
		if w.Col[k] < 1 || w.Col[k] > uint64(nSrc) {
			return fmt.Errorf("chunker: weight column %d out of range [1, %d]", w.Col[k], nSrc)
		}
	}
	return nil
}
