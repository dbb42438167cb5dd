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

package gridchunk

import (
	"fmt"
	"sync"
)

// AssignIDs returns the global identifiers 1..n.
func AssignIDs(n int) []uint64 {
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = uint64(i + 1)
	}
	return ids
}

// Registry maps between the position of an element in a grid or chunk and
// its global identifier.
type Registry struct {
	ids []uint64

	once sync.Once
	pos  map[uint64]int
	err  error
}

// NewRegistry returns a registry for the given identifiers, which are not
// copied.
func NewRegistry(ids []uint64) *Registry {
	return &Registry{ids: ids}
}

// Len returns the number of registered elements.
func (r *Registry) Len() int { return len(r.ids) }

// IDs returns the registered identifiers in position order.
func (r *Registry) IDs() []uint64 { return r.ids }

// Global returns the identifier of the element at the zero-based position.
func (r *Registry) Global(position int) (uint64, bool) {
	if position < 0 || position >= len(r.ids) {
		return 0, false
	}
	return r.ids[position], true
}

func (r *Registry) index() {
	r.once.Do(func() {
		r.pos = make(map[uint64]int, len(r.ids))
		for i, id := range r.ids {
			if j, ok := r.pos[id]; ok && r.err == nil {
				r.err = fmt.Errorf("gridchunk: global id %d registered at positions %d and %d", id, j, i)
			}
			r.pos[id] = i
		}
	})
}

// Local returns the zero-based position of the element with the given
// identifier.
func (r *Registry) Local(id uint64) (int, bool) {
	r.index()
	p, ok := r.pos[id]
	return p, ok
}

// Validate returns an error if an identifier is registered more than once.
func (r *Registry) Validate() error {
	r.index()
	return r.err
}
