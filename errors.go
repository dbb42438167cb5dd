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

import "fmt"

// ConfigurationError is returned for invalid chunk counts, missing required
// paths and conflicting run options.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "gridchunk: configuration: " + e.Msg
}

func configErrorf(format string, a ...interface{}) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, a...)}
}

// CoverageError is returned when a buffered source subset does not contain
// the extent of the destination chunk it was selected for.
type CoverageError struct {
	Chunk int
	Msg   string
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("gridchunk: chunk %d: source subset does not contain destination extent: %s", e.Chunk, e.Msg)
}

// PartitionInvariantError is returned when a destination global identifier
// is contributed by more than one chunk, or when the chunks do not cover
// the destination grid.
type PartitionInvariantError struct {
	ID     uint64
	Chunks [2]int
	Msg    string
}

func (e *PartitionInvariantError) Error() string {
	if e.Msg != "" {
		return "gridchunk: partition invariant violated: " + e.Msg
	}
	return fmt.Sprintf("gridchunk: partition invariant violated: destination id %d appears in chunks %d and %d",
		e.ID, e.Chunks[0], e.Chunks[1])
}

// ExternalEngineError is returned when weight generation fails for a chunk.
type ExternalEngineError struct {
	Chunk int
	Err   error
}

func (e *ExternalEngineError) Error() string {
	return fmt.Sprintf("gridchunk: weight generation failed for chunk %d: %v", e.Chunk, e.Err)
}

func (e *ExternalEngineError) Unwrap() error { return e.Err }

// ArtifactMissingError is returned when a per-chunk artifact cannot be
// found by merge or insert.
type ArtifactMissingError struct {
	Chunk int
	Path  string
	Err   error
}

func (e *ArtifactMissingError) Error() string {
	return fmt.Sprintf("gridchunk: chunk %d: missing artifact %s: %v", e.Chunk, e.Path, e.Err)
}

func (e *ArtifactMissingError) Unwrap() error { return e.Err }
