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
	"sort"

	"github.com/spatialmodel/gridchunk"
)

// A Descriptor records what was written for one destination chunk.
type Descriptor struct {
	// Index is the one-based chunk number.
	Index int

	DstSel, SrcSel gridchunk.Selection

	// SrcIDs and DstIDs are the global identifiers of the chunk's source
	// and destination elements, in artifact order.
	SrcIDs, DstIDs []uint64

	// Covered reports whether the source subset contains the destination
	// chunk extent.
	Covered bool

	// SrcFile, DstFile and WeightFile are artifact file names relative to
	// the working directory. SrcFile is empty when the source subset is
	// empty and WeightFile is empty when no weights were generated.
	SrcFile, DstFile, WeightFile string
}

func sortDescriptors(d []*Descriptor) {
	sort.Slice(d, func(i, j int) bool { return d[i].Index < d[j].Index })
}
