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
	"fmt"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridchunk"
	"github.com/spatialmodel/gridchunk/gridio"
	"github.com/spatialmodel/gridchunk/rwg"
	"github.com/spf13/cast"
)

// RegridConfig holds the settings of a chunked-regrid run.
type RegridConfig struct {
	Source, Destination  string
	SrcFormat, DstFormat string
	Counts               []int
	Merge                bool
	Weight               string
	GenWeights           bool
	Method               rwg.Method
	Engine               rwg.Engine
	SrcResolution        float64
	DstResolution        float64
	BufferDistance       float64
	CheckContains        bool
	WD                   string
	Persist              bool
	SpatialSubset        bool
	NProcs, Workers      int
}

// InsertConfig holds the settings of an insert run.
type InsertConfig struct {
	Index, Master string

	// Destination and DstFormat describe the grid used to create the
	// master file if it does not exist.
	Destination, DstFormat string

	Variables []string
	Fill      float64
	Workers   int
}

func configErr(format string, a ...interface{}) error {
	return &gridchunk.ConfigurationError{Msg: fmt.Sprintf(format, a...)}
}

// requiredPath returns the environment-expanded path held by option name,
// or an error if it is empty.
func requiredPath(cfg *viper.Viper, name string) (string, error) {
	p := os.ExpandEnv(cfg.GetString(name))
	if p == "" {
		return "", configErr("%s must be specified", name)
	}
	return p, nil
}

// parseCounts parses chunk counts given either as a comma separated
// string or as a list.
func parseCounts(v interface{}) ([]int, error) {
	if s, ok := v.(string); ok {
		s = strings.Trim(strings.TrimSpace(s), "[]")
		if s == "" {
			return nil, nil
		}
		var counts []int
		for _, f := range strings.Split(s, ",") {
			c, err := cast.ToIntE(strings.TrimSpace(f))
			if err != nil {
				return nil, configErr("invalid nchunks_dst %q: %v", v, err)
			}
			counts = append(counts, c)
		}
		return counts, nil
	}
	if v == nil {
		return nil, nil
	}
	counts, err := cast.ToIntSliceE(v)
	if err != nil {
		return nil, configErr("invalid nchunks_dst %v: %v", v, err)
	}
	return counts, nil
}

// setLogLevel sets the level of the standard logger.
func setLogLevel(level string) error {
	if level == "" {
		return nil
	}
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return configErr("invalid log_level: %v", err)
	}
	logrus.SetLevel(l)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// newEngine returns the weight generator named by name.
func newEngine(name, exe string) (rwg.Engine, error) {
	switch strings.ToLower(name) {
	case "esmf":
		return &rwg.ESMF{Exe: os.ExpandEnv(exe), Log: logrus.StandardLogger()}, nil
	case "builtin":
		return &rwg.Builtin{Log: logrus.StandardLogger()}, nil
	default:
		return nil, configErr("invalid engine %q", name)
	}
}

// regridConfig reads and validates the chunked-regrid settings.
func regridConfig(cfg *viper.Viper) (*RegridConfig, error) {
	c := &RegridConfig{
		Merge:          cfg.GetBool("merge"),
		Weight:         os.ExpandEnv(cfg.GetString("weight")),
		GenWeights:     cfg.GetBool("genweights"),
		SrcResolution:  cfg.GetFloat64("src_resolution"),
		DstResolution:  cfg.GetFloat64("dst_resolution"),
		BufferDistance: cfg.GetFloat64("buffer_distance"),
		CheckContains:  cfg.GetBool("check_contains"),
		WD:             os.ExpandEnv(cfg.GetString("wd")),
		Persist:        cfg.GetBool("persist"),
		SpatialSubset:  cfg.GetBool("spatial_subset"),
		NProcs:         cfg.GetInt("nprocs"),
		Workers:        cfg.GetInt("workers"),
	}
	var err error
	if c.Source, err = requiredPath(cfg, "source"); err != nil {
		return nil, err
	}
	if c.Destination, err = requiredPath(cfg, "destination"); err != nil {
		return nil, err
	}
	if c.SrcFormat, err = gridio.ParseFormat(cfg.GetString("esmf_src_type")); err != nil {
		return nil, configErr("esmf_src_type: %v", err)
	}
	if c.DstFormat, err = gridio.ParseFormat(cfg.GetString("esmf_dst_type")); err != nil {
		return nil, configErr("esmf_dst_type: %v", err)
	}
	if c.Counts, err = parseCounts(cfg.Get("nchunks_dst")); err != nil {
		return nil, err
	}
	if c.Method, err = rwg.ParseMethod(cfg.GetString("esmf_regrid_method")); err != nil {
		return nil, configErr("esmf_regrid_method: %v", err)
	}
	if c.Engine, err = newEngine(cfg.GetString("engine"), cfg.GetString("esmf_exe")); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that the settings are consistent.
func (c *RegridConfig) Validate() error {
	if c.NProcs < 1 {
		return configErr("nprocs must be at least 1, got %d", c.NProcs)
	}
	if c.SpatialSubset {
		if c.GenWeights && c.Weight == "" {
			return configErr("weight must be specified to generate spatial subset weights")
		}
		if !c.GenWeights && !c.Persist {
			return configErr("the spatial subset would be removed with the working directory; set persist")
		}
		return nil
	}
	if c.Merge {
		if !c.GenWeights {
			return configErr("merge requires genweights")
		}
		if c.Weight == "" {
			return configErr("weight must be specified when merging")
		}
	}
	if !c.Merge && !c.Persist {
		return configErr("chunk files would be removed with the working directory without merging; set merge or persist")
	}
	for _, n := range c.Counts {
		if n < 1 {
			return configErr("nchunks_dst values must be at least 1, got %v", c.Counts)
		}
	}
	return nil
}

// insertConfig reads and validates the insert settings.
func insertConfig(cfg *viper.Viper) (*InsertConfig, error) {
	c := &InsertConfig{
		Destination: os.ExpandEnv(cfg.GetString("destination")),
		Variables:   cfg.GetStringSlice("variables"),
		Fill:        cfg.GetFloat64("fill"),
		Workers:     cfg.GetInt("workers"),
	}
	var err error
	if c.Index, err = requiredPath(cfg, "index"); err != nil {
		return nil, err
	}
	if c.Master, err = requiredPath(cfg, "master"); err != nil {
		return nil, err
	}
	if c.DstFormat, err = gridio.ParseFormat(cfg.GetString("esmf_dst_type")); err != nil {
		return nil, configErr("esmf_dst_type: %v", err)
	}
	return c, nil
}
