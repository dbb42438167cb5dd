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

package chunkutil

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridchunk/chunker"
	"github.com/spatialmodel/gridchunk/cloud"
	"github.com/spatialmodel/gridchunk/gridio"
	"github.com/spatialmodel/gridchunk/rwg"
	"github.com/spatialmodel/gridchunk/vm"
)

type uploader struct {
	// files is a set of file path pairs. The first of each pair
	// is a local file path and the second is a blob storage
	// path where it should be uploaded to.
	files [][2]string
	err   error
	dir   string
}

// maybeUpload checks whether the given output file path refers to
// a blob storage location. If it does, then a temporary file location
// is returned. The file will then be uploaded to blob storage when
// the upload method is run.
func (u *uploader) maybeUpload(path string) string {
	if u.err != nil {
		return ""
	}
	if !cloud.IsBlob(path) {
		return path
	}
	if u.dir == "" {
		u.dir, u.err = ioutil.TempDir("", "gridchunk")
		if u.err != nil {
			return ""
		}
	}
	local := filepath.Join(u.dir, filepath.Base(path))
	u.files = append(u.files, [2]string{local, path})
	return local
}

func (u *uploader) upload(ctx context.Context, log logrus.FieldLogger) error {
	if u.err != nil {
		return u.err
	}
	for _, f := range u.files {
		if err := cloud.Upload(ctx, f[0], f[1], log); err != nil {
			return fmt.Errorf("gridchunk: uploading '%s' to '%s': %v", f[0], f[1], err)
		}
		log.WithFields(logrus.Fields{"dst": f[1]}).Info("uploaded output")
	}
	return nil
}

// cleanup removes the temporary upload directory.
func (u *uploader) cleanup() {
	if u.dir != "" {
		os.RemoveAll(u.dir)
	}
}

// setupResult is broadcast from rank 0 after the working directory is
// created.
type setupResult struct {
	WD  string
	Err error
}

// makeWD creates the working directory dir, or a temporary directory if
// dir is empty.
func makeWD(dir string) (string, error) {
	if dir == "" {
		return ioutil.TempDir("", "gridchunk")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// ChunkedRegrid runs a chunked-regrid on cfg.NProcs ranks.
func ChunkedRegrid(ctx context.Context, cfg *RegridConfig) error {
	log := logrus.StandardLogger()
	up := new(uploader)
	defer up.cleanup()
	weight := up.maybeUpload(cfg.Weight)
	if up.err != nil {
		return up.err
	}

	if cfg.WD != "" {
		if _, err := os.Stat(cfg.WD); err == nil {
			return configErr("working directory %s already exists", cfg.WD)
		}
		if weight != "" && !cfg.Persist {
			inside, err := chunker.IsSubpath(cfg.WD, weight)
			if err != nil {
				return err
			}
			if inside {
				return configErr("weight file %s is inside working directory %s, which will be removed", weight, cfg.WD)
			}
		}
	}

	src, err := gridio.Open(cfg.Source, cfg.SrcFormat)
	if err != nil {
		return fmt.Errorf("gridchunk: reading source grid: %v", err)
	}
	dst, err := gridio.Open(cfg.Destination, cfg.DstFormat)
	if err != nil {
		return fmt.Errorf("gridchunk: reading destination grid: %v", err)
	}
	log.WithFields(logrus.Fields{
		"source":      src.Len(),
		"destination": dst.Len(),
	}).Info("read grids")

	var wd string
	err = vm.Run(ctx, cfg.NProcs, func(ctx context.Context, comm vm.Comm) error {
		var setup setupResult
		if comm.Rank() == 0 {
			setup.WD, setup.Err = makeWD(cfg.WD)
			wd = setup.WD
		}
		b, err := comm.Broadcast(setup, 0)
		if err != nil {
			return err
		}
		if setup = b.(setupResult); setup.Err != nil {
			return setup.Err
		}
		c := &chunker.Chunker{
			Src:            src,
			Dst:            dst,
			Counts:         cfg.Counts,
			Paths:          chunker.NewPaths(setup.WD),
			GenWeights:     cfg.GenWeights,
			Engine:         cfg.Engine,
			Method:         cfg.Method,
			SrcResolution:  cfg.SrcResolution,
			DstResolution:  cfg.DstResolution,
			BufferDistance: cfg.BufferDistance,
			CheckContains:  cfg.CheckContains,
			Workers:        cfg.Workers,
			Log:            log.WithFields(logrus.Fields{"rank": comm.Rank()}),
		}
		if cfg.SpatialSubset {
			w := ""
			if cfg.GenWeights {
				w = weight
			}
			return c.SpatialSubset(ctx, comm, rwg.File{Path: cfg.Destination, Format: cfg.DstFormat}, w)
		}
		if _, err := c.Run(ctx, comm); err != nil {
			return err
		}
		if !cfg.Merge {
			return nil
		}
		return vm.OnRoot(comm, "weight file merge", func() error {
			return chunker.MergeFile(ctx, c.Paths.IndexPath(), weight, cfg.Workers, c.Log)
		})
	})
	if wd != "" {
		if cfg.Persist {
			log.WithFields(logrus.Fields{"wd": wd}).Info("kept working directory")
		} else if rerr := os.RemoveAll(wd); rerr != nil && err == nil {
			err = rerr
		}
	}
	if err != nil {
		return err
	}
	return up.upload(ctx, log)
}

// Merge merges the chunk weights listed in the index file at index into
// the weight file at weight, which may be a blob storage location.
func Merge(ctx context.Context, index, weight string, workers int) error {
	log := logrus.StandardLogger()
	up := new(uploader)
	defer up.cleanup()
	local := up.maybeUpload(weight)
	if up.err != nil {
		return up.err
	}
	if err := chunker.MergeFile(ctx, index, local, workers, log); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"weight": weight}).Info("merged chunk weights")
	return up.upload(ctx, log)
}

// Insert inserts the destination values of every chunk in the index file
// into the master file, creating the master file if it does not exist.
func Insert(ctx context.Context, cfg *InsertConfig) error {
	log := logrus.StandardLogger()
	if _, err := os.Stat(cfg.Master); os.IsNotExist(err) {
		if cfg.Destination == "" {
			return configErr("destination must be specified to create master file %s", cfg.Master)
		}
		if len(cfg.Variables) == 0 {
			return configErr("variables must be specified to create master file %s", cfg.Master)
		}
		dst, err := gridio.Open(cfg.Destination, cfg.DstFormat)
		if err != nil {
			return fmt.Errorf("gridchunk: reading destination grid: %v", err)
		}
		if err := gridio.CreateMaster(cfg.Master, dst, cfg.Variables, cfg.Fill); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"master": cfg.Master}).Info("created master file")
	}

	idx, err := chunker.ReadIndex(cfg.Index)
	if err != nil {
		return err
	}
	m, err := gridio.OpenMaster(cfg.Master)
	if err != nil {
		return err
	}
	ins := &chunker.Inserter{
		Index:     idx,
		Variables: cfg.Variables,
		Workers:   cfg.Workers,
		Log:       log,
	}
	if err := ins.Insert(ctx, m); err != nil {
		m.Close()
		return err
	}
	if err := m.Close(); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"chunks": len(idx.Chunks),
		"master": cfg.Master,
	}).Info("inserted destination values")
	return nil
}
