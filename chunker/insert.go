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
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridchunk"
	"github.com/spatialmodel/gridchunk/gridio"
	"golang.org/x/sync/errgroup"
)

// A Master receives destination values by global identifier.
type Master interface {
	// Position returns the zero-based position of the element with the
	// given global identifier.
	Position(id uint64) (int, bool)

	// WriteRun writes vals to consecutive positions starting at pos.
	// It must be safe to call concurrently for disjoint positions.
	WriteRun(variable string, pos int, vals []float64) error
}

// Inserter writes the destination values of every chunk in an index into
// a master.
type Inserter struct {
	Index *Index

	// Variables lists the variables to insert. All data variables of each
	// chunk's destination artifact are inserted if it is empty.
	Variables []string

	// Workers is the number of chunks inserted concurrently.
	// It defaults to GOMAXPROCS.
	Workers int

	Log logrus.FieldLogger

	mu    sync.Mutex
	seen  *roaring64.Bitmap
	owner map[int]*roaring64.Bitmap
}

// Insert inserts every chunk. It returns a PartitionInvariantError if an
// identifier belongs to more than one chunk.
func (ins *Inserter) Insert(ctx context.Context, m Master) error {
	ins.seen = roaring64.New()
	ins.owner = make(map[int]*roaring64.Bitmap)
	cache := newArtifactCache(ins.Workers, func(path string) (interface{}, error) {
		return gridio.Open(path, gridio.SCRIP)
	})
	g, ctx := errgroup.WithContext(ctx)
	if ins.Workers > 0 {
		g.SetLimit(ins.Workers)
	}
	for _, d := range ins.Index.Chunks {
		d := d
		g.Go(func() error {
			path, err := artifact(ins.Index.Paths, d.Index, d.DstFile)
			if err != nil {
				return err
			}
			r, err := cache.NewRequest(ctx, path, path).Result()
			if err != nil {
				return fmt.Errorf("chunker: chunk %d: %v", d.Index, err)
			}
			return ins.insertChunk(ctx, d, r.(gridchunk.Grid), m)
		})
	}
	return g.Wait()
}

// claim records that chunk owns ids.
func (ins *Inserter) claim(chunk int, ids []uint64) error {
	b := roaring64.New()
	b.AddMany(ids)
	if int(b.GetCardinality()) != len(ids) {
		seen := make(map[uint64]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				return &gridchunk.PartitionInvariantError{ID: id, Chunks: [2]int{chunk, chunk}}
			}
			seen[id] = true
		}
	}
	ins.mu.Lock()
	defer ins.mu.Unlock()
	if ins.seen.Intersects(b) {
		id := roaring64.And(ins.seen, b).Minimum()
		for c, o := range ins.owner {
			if o.Contains(id) {
				return &gridchunk.PartitionInvariantError{ID: id, Chunks: [2]int{c, chunk}}
			}
		}
	}
	ins.seen.Or(b)
	ins.owner[chunk] = b
	return nil
}

type run struct {
	pos   int
	elems []int
}

// insertChunk writes the destination values of chunk d to m. It stops
// between runs once ctx is done.
func (ins *Inserter) insertChunk(ctx context.Context, d *Descriptor, g gridchunk.Grid, m Master) error {
	if g.Len() != len(d.DstIDs) {
		return fmt.Errorf("chunker: chunk %d: destination artifact has %d elements, index has %d", d.Index, g.Len(), len(d.DstIDs))
	}
	if err := ins.claim(d.Index, d.DstIDs); err != nil {
		return err
	}
	order := make([]int, len(d.DstIDs))
	pos := make([]int, len(d.DstIDs))
	for k, id := range d.DstIDs {
		p, ok := m.Position(id)
		if !ok {
			return fmt.Errorf("chunker: chunk %d: destination id %d is not in the master", d.Index, id)
		}
		order[k], pos[k] = k, p
	}
	sort.Slice(order, func(i, j int) bool { return pos[order[i]] < pos[order[j]] })
	var runs []run
	for _, k := range order {
		if n := len(runs); n > 0 && runs[n-1].pos+len(runs[n-1].elems) == pos[k] {
			runs[n-1].elems = append(runs[n-1].elems, k)
			continue
		}
		runs = append(runs, run{pos: pos[k], elems: []int{k}})
	}

	vars := ins.Variables
	if len(vars) == 0 {
		vars = g.Variables()
	}
	for _, v := range vars {
		vals := g.Variable(v)
		if vals == nil {
			return fmt.Errorf("chunker: chunk %d: destination artifact has no variable %s", d.Index, v)
		}
		for _, r := range runs {
			if err := ctx.Err(); err != nil {
				return err
			}
			buf := make([]float64, len(r.elems))
			for i, k := range r.elems {
				buf[i] = vals[k]
			}
			if err := m.WriteRun(v, r.pos, buf); err != nil {
				return fmt.Errorf("chunker: chunk %d: %v", d.Index, err)
			}
		}
	}
	if ins.Log != nil {
		ins.Log.WithFields(logrus.Fields{
			"chunk": d.Index,
			"runs":  len(runs),
		}).Debug("inserted chunk")
	}
	return nil
}

// MemoryMaster is a Master held in memory.
type MemoryMaster struct {
	reg  *gridchunk.Registry
	mu   sync.Mutex
	vars map[string]*sparse.DenseArray
}

// NewMemoryMaster returns a master for the elements with the given
// identifiers, with every variable set to fill.
func NewMemoryMaster(ids []uint64, variables []string, fill float64) (*MemoryMaster, error) {
	reg := gridchunk.NewRegistry(ids)
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	m := &MemoryMaster{reg: reg, vars: make(map[string]*sparse.DenseArray)}
	for _, v := range variables {
		a := sparse.ZerosDense(len(ids))
		for i := range a.Elements {
			a.Elements[i] = fill
		}
		m.vars[v] = a
	}
	return m, nil
}

// Position implements Master.
func (m *MemoryMaster) Position(id uint64) (int, bool) { return m.reg.Local(id) }

// WriteRun implements Master.
func (m *MemoryMaster) WriteRun(variable string, pos int, vals []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.vars[variable]
	if !ok {
		return fmt.Errorf("chunker: master has no variable %s", variable)
	}
	if pos < 0 || pos+len(vals) > len(a.Elements) {
		return fmt.Errorf("chunker: positions [%d, %d) out of range for master variable %s", pos, pos+len(vals), variable)
	}
	copy(a.Elements[pos:], vals)
	return nil
}

// Variable returns the values of the named variable.
func (m *MemoryMaster) Variable(name string) *sparse.DenseArray { return m.vars[name] }
