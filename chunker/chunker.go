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

// Package chunker splits a source and destination grid pair into
// spatially matching chunks, writes each chunk pair with its global
// identifiers, and reassembles chunk results: weights through Merger and
// destination values through Inserter.
package chunker

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridchunk"
	"github.com/spatialmodel/gridchunk/gridio"
	"github.com/spatialmodel/gridchunk/rwg"
	"github.com/spatialmodel/gridchunk/vm"
	"golang.org/x/sync/errgroup"
)

// Chunker holds the settings of a chunked run.
type Chunker struct {
	Src, Dst gridchunk.Grid

	// Counts is the number of destination chunks along each axis: two
	// values (y, x) for structured grids and one for unstructured grids.
	// Default counts are chosen when it is empty.
	Counts []int

	Paths Paths

	GenWeights bool
	Engine     rwg.Engine
	Method     rwg.Method

	// SrcResolution and DstResolution, if > 0, override the resolutions
	// computed from the grids.
	SrcResolution, DstResolution float64

	// BufferDistance, if > 0, overrides the source buffer distance.
	BufferDistance float64

	// CheckContains makes an uncovered destination chunk an error.
	CheckContains bool

	// Workers is the number of chunks each rank writes concurrently.
	Workers int

	Log logrus.FieldLogger
}

func (c *Chunker) log() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

// config is fingerprinted in the chunk report.
type config struct {
	Counts                       []int
	NSrc, NDst                   int
	GenWeights                   bool
	Method                       string
	SrcResolution, DstResolution float64
	BufferDistance               float64
}

// rankResult is gathered from every rank after its chunks are written.
type rankResult struct {
	Descs []*Descriptor
	Err   error
}

// finalResult is broadcast from rank 0 at the end of a run.
type finalResult struct {
	Descs []*Descriptor
	Err   error
}

// Run decomposes the destination grid and writes every chunk pair, then
// writes the index file and chunk report from rank 0. It is collective:
// every rank of comm must call it. Chunks are assigned to ranks
// round-robin. Every rank returns the descriptors of all chunks, sorted by
// index.
func (c *Chunker) Run(ctx context.Context, comm vm.Comm) ([]*Descriptor, error) {
	counts := c.Counts
	if len(counts) == 0 {
		var err error
		if counts, err = gridchunk.DefaultCounts(comm, c.Dst); err != nil {
			return nil, err
		}
	}
	sels, err := gridchunk.Decompose(comm, c.Dst, counts)
	if err != nil {
		return nil, err
	}
	if comm.Rank() == 0 {
		c.log().WithFields(logrus.Fields{
			"chunks": len(sels),
			"counts": counts,
			"ranks":  comm.Size(),
		}).Info("decomposed destination grid")
	}

	local, lerr := c.writeChunks(ctx, comm, sels)
	nDst := 0
	for _, d := range local {
		nDst += len(d.DstIDs)
	}
	total, err := comm.Reduce(float64(nDst), vm.Sum, 0)
	if err != nil {
		return nil, err
	}
	parts, err := comm.Gather(rankResult{Descs: local, Err: lerr}, 0)
	if err != nil {
		return nil, err
	}

	var fr finalResult
	if comm.Rank() == 0 {
		fr = c.finish(parts, int(total), counts)
	}
	if err := comm.Barrier(); err != nil {
		return nil, err
	}
	b, err := comm.Broadcast(fr, 0)
	if err != nil {
		return nil, err
	}
	fr = b.(finalResult)
	return fr.Descs, fr.Err
}

// writeChunks writes the chunks assigned to the calling rank.
func (c *Chunker) writeChunks(ctx context.Context, comm vm.Comm, sels []gridchunk.Selection) ([]*Descriptor, error) {
	sub := &gridchunk.Subsetter{
		Source:         c.Src,
		BufferDistance: c.BufferDistance,
		Resolution:     c.SrcResolution,
		CheckContains:  c.CheckContains,
	}
	pw := &PairWriter{
		Src:        c.Src,
		Dst:        c.Dst,
		Paths:      c.Paths,
		GenWeights: c.GenWeights,
		Engine:     c.Engine,
		Method:     c.Method,
		Log:        c.log(),
	}
	pad := c.DstResolution
	if pad <= 0 {
		pad = c.Dst.Resolution()
	}

	var mine []int
	for k := comm.Rank(); k < len(sels); k += comm.Size() {
		mine = append(mine, k)
	}
	descs := make([]*Descriptor, len(mine))
	g, ctx := errgroup.WithContext(ctx)
	workers := c.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for j, k := range mine {
		j, k := j, k
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			index := k + 1
			dst, err := c.Dst.Select(sels[k])
			if err != nil {
				return err
			}
			srcSel, covered, err := sub.Subset(index, gridchunk.ChunkExtent(dst, pad))
			if err != nil {
				return err
			}
			if !covered {
				c.log().WithFields(logrus.Fields{"chunk": index}).Warn("source subset does not contain destination chunk")
			}
			descs[j], err = pw.Write(ctx, index, srcSel, sels[k], covered)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return descs, nil
}

// finish runs on rank 0 after all chunks are written.
func (c *Chunker) finish(parts []interface{}, total int, counts []int) finalResult {
	var all []*Descriptor
	for _, p := range parts {
		r := p.(rankResult)
		if r.Err != nil {
			return finalResult{Err: r.Err}
		}
		all = append(all, r.Descs...)
	}
	if total != c.Dst.Len() {
		return finalResult{Err: &gridchunk.PartitionInvariantError{
			Msg: fmt.Sprintf("chunks hold %d destination elements, grid has %d", total, c.Dst.Len()),
		}}
	}
	sortDescriptors(all)
	if err := WriteIndex(c.Paths, all); err != nil {
		return finalResult{Err: err}
	}
	cfg := config{
		Counts:         counts,
		NSrc:           c.Src.Len(),
		NDst:           c.Dst.Len(),
		GenWeights:     c.GenWeights,
		Method:         string(c.Method),
		SrcResolution:  c.SrcResolution,
		DstResolution:  c.DstResolution,
		BufferDistance: c.BufferDistance,
	}
	if err := WriteReport(c.Paths.ReportPath(), NewReport(cfg, all)); err != nil {
		return finalResult{Err: err}
	}
	c.log().WithFields(logrus.Fields{
		"chunks": len(all),
		"index":  c.Paths.IndexPath(),
	}).Info("wrote chunk index")
	return finalResult{Descs: all}
}

// SpatialSubset writes the part of the source grid that covers the extent
// of the whole destination grid to SpatialSubsetFile in the working
// directory and, if weight is not empty, generates weights from it to dst,
// the destination grid file. The weights are addressed by global
// identifiers. It runs on rank 0 only; other ranks wait at a barrier.
func (c *Chunker) SpatialSubset(ctx context.Context, comm vm.Comm, dst rwg.File, weight string) error {
	return vm.OnRoot(comm, "spatial subset", func() error {
		return c.spatialSubset(ctx, dst, weight)
	})
}

func (c *Chunker) spatialSubset(ctx context.Context, dst rwg.File, weight string) error {
	sub := &gridchunk.Subsetter{
		Source:         c.Src,
		BufferDistance: c.BufferDistance,
		Resolution:     c.SrcResolution,
		CheckContains:  c.CheckContains,
	}
	pad := c.DstResolution
	if pad <= 0 {
		pad = c.Dst.Resolution()
	}
	sel, covered, err := sub.Subset(0, gridchunk.ChunkExtent(c.Dst, pad))
	if err != nil {
		return err
	}
	if sel.Len() == 0 {
		return &gridchunk.CoverageError{Chunk: 0, Msg: "source grid does not intersect the destination grid"}
	}
	if !covered {
		c.log().Warn("spatial subset does not contain the destination grid")
	}
	src, err := c.Src.Select(sel)
	if err != nil {
		return err
	}
	path := c.Paths.Path(SpatialSubsetFile)
	if err := gridio.WriteSCRIP(path, src); err != nil {
		return err
	}
	c.log().WithFields(logrus.Fields{
		"path":     path,
		"elements": src.Len(),
	}).Info("wrote spatial subset")
	if weight == "" {
		return nil
	}
	local := c.Paths.Path("spatial_subset_weights.nc")
	err = c.Engine.Generate(ctx, rwg.File{Path: path, Format: gridio.SCRIP, Regional: true}, dst, local, c.Method)
	if err != nil {
		return &gridchunk.ExternalEngineError{Chunk: 0, Err: err}
	}
	w, err := gridio.ReadWeights(local)
	if err != nil {
		return err
	}
	global, err := w.Remap(gridchunk.NewRegistry(c.Dst.GlobalIDs()), gridchunk.NewRegistry(src.GlobalIDs()))
	if err != nil {
		return err
	}
	return gridio.WriteWeights(weight, global)
}
