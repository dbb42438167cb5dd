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

// Package vm provides the collective operations used to coordinate a group
// of cooperating ranks: broadcast, gather, reduce, barrier and scoped
// sub-groups. A Comm is always passed explicitly; there is no global
// communicator.
package vm

import (
	"fmt"
	"math"
)

// Op is a reduction operator.
type Op int

// Reduction operators.
const (
	Sum Op = iota
	Min
	Max
)

func (o Op) String() string {
	switch o {
	case Sum:
		return "sum"
	case Min:
		return "min"
	case Max:
		return "max"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

func (o Op) apply(vals []float64) float64 {
	var r float64
	switch o {
	case Sum:
		for _, v := range vals {
			r += v
		}
	case Min:
		r = math.Inf(1)
		for _, v := range vals {
			r = math.Min(r, v)
		}
	case Max:
		r = math.Inf(-1)
		for _, v := range vals {
			r = math.Max(r, v)
		}
	default:
		panic(fmt.Errorf("vm: invalid reduction operator %v", o))
	}
	return r
}

// Comm is a handle to a group of ranks. Every collective call must be made
// by all ranks of the group in the same order.
type Comm interface {
	// Rank is the index of the calling rank within the group.
	Rank() int

	// Size is the number of ranks in the group.
	Size() int

	// Broadcast returns the value supplied by root on every rank.
	Broadcast(v interface{}, root int) (interface{}, error)

	// Gather returns the values supplied by every rank, indexed by rank,
	// on root. Other ranks receive nil.
	Gather(v interface{}, root int) ([]interface{}, error)

	// Reduce combines the values supplied by every rank with op.
	// The result is only meaningful on root.
	Reduce(v float64, op Op, root int) (float64, error)

	// Barrier blocks until every rank has reached it.
	Barrier() error

	// Scoped returns a communicator restricted to the listed ranks of the
	// group and whether the calling rank is one of them. Ranks in the
	// returned communicator are numbered by their position in ranks.
	// All ranks of the group must call Scoped with the same arguments.
	Scoped(name string, ranks []int) (Comm, bool)
}

// AllReduce is Reduce followed by a Broadcast of the result from rank 0.
func AllReduce(c Comm, v float64, op Op) (float64, error) {
	r, err := c.Reduce(v, op, 0)
	if err != nil {
		return 0, err
	}
	b, err := c.Broadcast(r, 0)
	if err != nil {
		return 0, err
	}
	return b.(float64), nil
}

// Shard returns the half-open index range [start, end) of n elements owned
// by rank in a group of size ranks. Remainders go to the lowest ranks.
func Shard(n, rank, size int) (start, end int) {
	if size < 1 {
		panic("vm: group size must be at least 1")
	}
	q, r := n/size, n%size
	start = rank*q + minInt(rank, r)
	end = start + q
	if rank < r {
		end++
	}
	return start, end
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func checkRoot(root, size int) error {
	if root < 0 || root >= size {
		return fmt.Errorf("vm: root %d out of range for group of size %d", root, size)
	}
	return nil
}

// Serial is the communicator of a group with one rank.
type Serial struct{}

// Rank is always 0.
func (Serial) Rank() int { return 0 }

// Size is always 1.
func (Serial) Size() int { return 1 }

// Broadcast returns v.
func (Serial) Broadcast(v interface{}, root int) (interface{}, error) {
	if err := checkRoot(root, 1); err != nil {
		return nil, err
	}
	return v, nil
}

// Gather returns a one-element slice holding v.
func (Serial) Gather(v interface{}, root int) ([]interface{}, error) {
	if err := checkRoot(root, 1); err != nil {
		return nil, err
	}
	return []interface{}{v}, nil
}

// Reduce returns v.
func (Serial) Reduce(v float64, op Op, root int) (float64, error) {
	if err := checkRoot(root, 1); err != nil {
		return 0, err
	}
	return op.apply([]float64{v}), nil
}

// Barrier returns immediately.
func (Serial) Barrier() error { return nil }

// Scoped returns the serial communicator if rank 0 is in ranks.
func (s Serial) Scoped(name string, ranks []int) (Comm, bool) {
	for _, r := range ranks {
		if r == 0 {
			return s, true
		}
	}
	return nil, false
}

// OnRoot runs fn on rank 0 only, inside a sub-group named name, and
// returns its error on every rank once all ranks have reached a barrier.
func OnRoot(c Comm, name string, fn func() error) error {
	var ferr error
	if _, ok := c.Scoped(name, []int{0}); ok {
		ferr = fn()
	}
	b, err := c.Broadcast(ferr, 0)
	if err != nil {
		return err
	}
	if err := c.Barrier(); err != nil {
		return err
	}
	if e, ok := b.(error); ok {
		return e
	}
	return nil
}
