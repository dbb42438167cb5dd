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

package vm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// hub is the rendezvous point shared by the ranks of one group.
type hub struct {
	mu   sync.Mutex
	cond *sync.Cond
	size int

	gen     uint64
	arrived int
	slots   []interface{}
	result  []interface{}
	err     error

	subs map[string]*hub
}

func newHub(size int) *hub {
	h := &hub{
		size:  size,
		slots: make([]interface{}, size),
		subs:  make(map[string]*hub),
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// exchange deposits v for rank and blocks until every rank has deposited
// a value, returning all of them indexed by rank.
func (h *hub) exchange(rank int, v interface{}) ([]interface{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	gen := h.gen
	h.slots[rank] = v
	h.arrived++
	if h.arrived == h.size {
		h.result = h.slots
		h.slots = make([]interface{}, h.size)
		h.arrived = 0
		h.gen++
		h.cond.Broadcast()
		return h.result, nil
	}
	for gen == h.gen && h.err == nil {
		h.cond.Wait()
	}
	if gen == h.gen {
		return nil, h.err
	}
	return h.result, nil
}

// abort wakes every waiting rank of h and its sub-groups with err.
func (h *hub) abort(err error) {
	h.mu.Lock()
	if h.err == nil {
		h.err = err
	}
	subs := make([]*hub, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.cond.Broadcast()
	h.mu.Unlock()
	for _, s := range subs {
		s.abort(err)
	}
}

func (h *hub) sub(key string, size int) *hub {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.subs[key]
	if !ok {
		s = newHub(size)
		if h.err != nil {
			s.err = h.err
		}
		h.subs[key] = s
	}
	return s
}

// member is one rank's view of a hub.
type member struct {
	h    *hub
	rank int

	mu     sync.Mutex
	scopes map[string]int
}

func (m *member) Rank() int { return m.rank }
func (m *member) Size() int { return m.h.size }

func (m *member) Broadcast(v interface{}, root int) (interface{}, error) {
	if err := checkRoot(root, m.h.size); err != nil {
		return nil, err
	}
	if m.rank != root {
		v = nil
	}
	all, err := m.h.exchange(m.rank, v)
	if err != nil {
		return nil, err
	}
	return all[root], nil
}

func (m *member) Gather(v interface{}, root int) ([]interface{}, error) {
	if err := checkRoot(root, m.h.size); err != nil {
		return nil, err
	}
	all, err := m.h.exchange(m.rank, v)
	if err != nil {
		return nil, err
	}
	if m.rank != root {
		return nil, nil
	}
	out := make([]interface{}, len(all))
	copy(out, all)
	return out, nil
}

func (m *member) Reduce(v float64, op Op, root int) (float64, error) {
	if err := checkRoot(root, m.h.size); err != nil {
		return 0, err
	}
	all, err := m.h.exchange(m.rank, v)
	if err != nil {
		return 0, err
	}
	if m.rank != root {
		return 0, nil
	}
	vals := make([]float64, len(all))
	for i, a := range all {
		vals[i] = a.(float64)
	}
	return op.apply(vals), nil
}

func (m *member) Barrier() error {
	_, err := m.h.exchange(m.rank, nil)
	return err
}

func (m *member) Scoped(name string, ranks []int) (Comm, bool) {
	pos := -1
	for i, r := range ranks {
		if r == m.rank {
			pos = i
			break
		}
	}
	base := fmt.Sprintf("%s%v", name, ranks)
	m.mu.Lock()
	n := m.scopes[base]
	m.scopes[base] = n + 1
	m.mu.Unlock()
	if pos < 0 {
		return nil, false
	}
	s := m.h.sub(fmt.Sprintf("%s#%d", base, n), len(ranks))
	return &member{h: s, rank: pos, scopes: make(map[string]int)}, true
}

// Run executes fn concurrently on size in-process ranks that share one
// communicator. If any rank returns an error, or ctx is cancelled, pending
// and future collective calls on every rank fail with that error.
// Run returns the first error encountered.
func Run(ctx context.Context, size int, fn func(ctx context.Context, c Comm) error) error {
	if size < 1 {
		return fmt.Errorf("vm: group size must be at least 1, got %d", size)
	}
	h := newHub(size)
	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	go func() {
		select {
		case <-gctx.Done():
			h.abort(gctx.Err())
		case <-done:
		}
	}()
	for r := 0; r < size; r++ {
		c := &member{h: h, rank: r, scopes: make(map[string]int)}
		g.Go(func() error {
			if err := fn(gctx, c); err != nil {
				h.abort(err)
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	close(done)
	return err
}
