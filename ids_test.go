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
	"reflect"
	"testing"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry([]uint64{10, 4, 7})
	if r.Len() != 3 {
		t.Errorf("len %d", r.Len())
	}
	if id, ok := r.Global(1); !ok || id != 4 {
		t.Errorf("Global(1) = %d, %v", id, ok)
	}
	if _, ok := r.Global(3); ok {
		t.Error("Global(3) should be out of range")
	}
	if p, ok := r.Local(7); !ok || p != 2 {
		t.Errorf("Local(7) = %d, %v", p, ok)
	}
	if _, ok := r.Local(5); ok {
		t.Error("Local(5) should not exist")
	}
	if err := r.Validate(); err != nil {
		t.Error(err)
	}
	if err := NewRegistry([]uint64{1, 2, 1}).Validate(); err == nil {
		t.Error("expected an error for a repeated id")
	}
}

func TestSelectKeepsIDs(t *testing.T) {
	g := NewRegular(0, 0, 1, 1, 4, 5)
	sub, err := g.Select(Selection{Y: Range{1, 3}, X: Range{2, 4}})
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{8, 9, 13, 14}
	if !reflect.DeepEqual(sub.GlobalIDs(), want) {
		t.Errorf("ids %v != %v", sub.GlobalIDs(), want)
	}
	if !reflect.DeepEqual(sub.Shape(), []int{2, 2}) {
		t.Errorf("shape %v", sub.Shape())
	}
	// A second subset still carries the original identifiers.
	sub2, err := sub.Select(Selection{Y: Range{1, 2}, X: Range{0, 2}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sub2.GlobalIDs(), []uint64{13, 14}) {
		t.Errorf("ids %v", sub2.GlobalIDs())
	}
	if _, err := g.Select(Selection{Y: Range{0, 5}, X: Range{0, 1}}); err == nil {
		t.Error("expected an out of bounds error")
	}
	u, err := g.Select(Selection{Elements: []int{19, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if u.Rank() != 1 || !reflect.DeepEqual(u.GlobalIDs(), []uint64{1, 20}) {
		t.Errorf("element selection: rank %d ids %v", u.Rank(), u.GlobalIDs())
	}
}

func TestResolution(t *testing.T) {
	if r := NewGlobal(2.5, Wrapped).Resolution(); different(r, 2.5, 1e-12) {
		t.Errorf("structured resolution %v", r)
	}
	g := NewRegular(0, 0, 1, 3, 4, 4)
	if r := g.Resolution(); different(r, 3, 1e-12) {
		t.Errorf("anisotropic resolution %v", r)
	}
	u, err := g.Select(Selection{Elements: []int{0, 1, 2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	if r := u.Resolution(); different(r, 3, 1e-12) {
		t.Errorf("unstructured resolution %v", r)
	}
}

func TestWrapped(t *testing.T) {
	if w := NewGlobal(10, Wrapped).Wrapped(); w != Wrapped {
		t.Errorf("got %v", w)
	}
	if w := NewGlobal(10, Unwrapped).Wrapped(); w != Unwrapped {
		t.Errorf("got %v", w)
	}
	if w := NewRegular(0, 0, 1, 1, 2, 2).Wrapped(); w != WrappedUnknown {
		t.Errorf("got %v", w)
	}
}
