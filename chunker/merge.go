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
	"os"
	"runtime"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridchunk"
	"github.com/spatialmodel/gridchunk/gridio"
)

// newArtifactCache returns a cache that loads chunk artifacts by path
// with load, running at most workers loads at once.
func newArtifactCache(workers int, load func(path string) (interface{}, error)) *requestcache.Cache {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(-1)
	}
	return requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
		return load(request.(string))
	}, workers, requestcache.Deduplicate(), requestcache.Memory(workers))
}

// artifact returns the path of a chunk artifact, or an ArtifactMissingError
// if it does not exist.
func artifact(p Paths, chunk int, name string) (string, error) {
	path := p.Path(name)
	if _, err := os.Stat(path); err != nil {
		return "", &gridchunk.ArtifactMissingError{Chunk: chunk, Path: path, Err: err}
	}
	return path, nil
}

// Merger combines the weight files of every chunk in an index into one
// weight matrix addressed by global identifiers.
type Merger struct {
	Index *Index

	// Workers is the number of weight files read concurrently.
	// It defaults to GOMAXPROCS.
	Workers int

	Log logrus.FieldLogger
}

// Merge returns the merged weights. Entries keep their chunk order and are
// neither deduplicated nor renumbered. It returns a
// PartitionInvariantError if a destination identifier has weights in more
// than one chunk.
func (m *Merger) Merge(ctx context.Context) (*gridchunk.Weights, error) {
	log := m.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	cache := newArtifactCache(m.Workers, func(path string) (interface{}, error) {
		return gridio.ReadWeights(path)
	})

	reqs := make([]*requestcache.Request, len(m.Index.Chunks))
	for k, d := range m.Index.Chunks {
		if len(d.SrcIDs) == 0 {
			continue
		}
		name := d.WeightFile
		if name == "" {
			name = m.Index.Paths.WeightName(d.Index)
		}
		path, err := artifact(m.Index.Paths, d.Index, name)
		if err != nil {
			return nil, err
		}
		reqs[k] = cache.NewRequest(ctx, path, path)
	}

	merged := new(gridchunk.Weights)
	seen := roaring64.New()
	rows := make(map[int]*roaring64.Bitmap)
	for k, d := range m.Index.Chunks {
		if reqs[k] == nil {
			continue
		}
		r, err := reqs[k].Result()
		if err != nil {
			return nil, fmt.Errorf("chunker: chunk %d: %v", d.Index, err)
		}
		local := r.(*gridchunk.Weights)
		global, err := local.Remap(gridchunk.NewRegistry(d.DstIDs), gridchunk.NewRegistry(d.SrcIDs))
		if err != nil {
			return nil, fmt.Errorf("chunker: chunk %d: %v", d.Index, err)
		}
		chunkRows := roaring64.New()
		chunkRows.AddMany(global.Row)
		if seen.Intersects(chunkRows) {
			id := roaring64.And(seen, chunkRows).Minimum()
			for _, prev := range m.Index.Chunks[:k] {
				if b, ok := rows[prev.Index]; ok && b.Contains(id) {
					return nil, &gridchunk.PartitionInvariantError{ID: id, Chunks: [2]int{prev.Index, d.Index}}
				}
			}
		}
		seen.Or(chunkRows)
		rows[d.Index] = chunkRows
		merged.Append(global)
		log.WithFields(logrus.Fields{
			"chunk": d.Index,
			"links": global.Len(),
		}).Debug("merged chunk weights")
	}
	return merged, nil
}

// MergeFile merges the chunk weights listed in the index file at
// indexPath and writes them to weightPath.
func MergeFile(ctx context.Context, indexPath, weightPath string, workers int, log logrus.FieldLogger) error {
	idx, err := ReadIndex(indexPath)
	if err != nil {
		return err
	}
	m := &Merger{Index: idx, Workers: workers, Log: log}
	w, err := m.Merge(ctx)
	if err != nil {
		return err
	}
	return gridio.WriteWeights(weightPath, w)
}
