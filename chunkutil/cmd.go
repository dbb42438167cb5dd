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

// Package chunkutil contains the command-line interface for GridChunk.
package chunkutil

import (
	"context"
	"fmt"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/gridchunk"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to GridChunk.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "log_level",
			usage: `
              log_level specifies the logging level: one of debug, info,
              warn, or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "source",
			usage: `
              source specifies the path to the source grid file.`,
			shorthand:  "s",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "destination",
			usage: `
              destination specifies the path to the destination grid file.
              When inserting, it is the grid used to create the master file
              if the master file does not exist.`,
			shorthand:  "d",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags(), insertCmd.Flags()},
		},
		{
			name: "esmf_src_type",
			usage: `
              esmf_src_type specifies the format of the source grid file:
              SCRIP or GRIDSPEC.`,
			defaultVal: "GRIDSPEC",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "esmf_dst_type",
			usage: `
              esmf_dst_type specifies the format of the destination grid file:
              SCRIP or GRIDSPEC.`,
			defaultVal: "GRIDSPEC",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags(), insertCmd.Flags()},
		},
		{
			name: "nchunks_dst",
			usage: `
              nchunks_dst specifies the number of chunks to split the
              destination grid into along each axis, as a comma separated
              list: "y,x" for structured grids or "n" for unstructured grids.
              If empty, a default decomposition is chosen.`,
			shorthand:  "n",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "merge",
			usage: `
              merge specifies whether to merge the chunk weight files into
              a single weight file after they have been generated.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "weight",
			usage: `
              weight specifies the path of the merged weight file. It can be
              a local path or a blob storage location in the format
              provider://bucket/key, where provider is file, gs, or s3.`,
			shorthand:  "w",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags(), mergeCmd.Flags()},
		},
		{
			name: "genweights",
			usage: `
              genweights specifies whether to generate weights for each
              chunk. If false, only the chunk grid files are written.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "esmf_regrid_method",
			usage: `
              esmf_regrid_method specifies the regridding method: CONSERVE,
              BILINEAR, PATCH, NEAREST_STOD, or NEAREST_DTOS.`,
			defaultVal: "CONSERVE",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "engine",
			usage: `
              engine specifies the weight generator: "esmf" runs
              ESMF_RegridWeightGen, and "builtin" generates CONSERVE and
              NEAREST_STOD weights in process.`,
			defaultVal: "esmf",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "esmf_exe",
			usage: `
              esmf_exe specifies the path to the ESMF_RegridWeightGen
              executable.`,
			defaultVal: "ESMF_RegridWeightGen",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "src_resolution",
			usage: `
              src_resolution overrides the spatial resolution of the source
              grid, in the units of its coordinates. It is ignored if it is
              not greater than zero.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "dst_resolution",
			usage: `
              dst_resolution overrides the spatial resolution of the
              destination grid. It is ignored if it is not greater than zero.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "buffer_distance",
			usage: `
              buffer_distance specifies the distance by which each
              destination chunk's extent is expanded when selecting source
              elements. If not greater than zero, twice the source
              resolution is used.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "check_contains",
			usage: `
              check_contains specifies whether it is an error for a source
              chunk not to contain its destination chunk.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "wd",
			usage: `
              wd specifies the working directory for chunk files. It must
              not exist. If empty, a temporary directory is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "persist",
			usage: `
              persist specifies whether to keep the working directory after
              the run finishes.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "spatial_subset",
			usage: `
              spatial_subset specifies that, instead of chunking, the source
              grid is subset to the extent of the whole destination grid.
              Weights are generated from the subset to the destination grid
              if genweights is true.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "nprocs",
			usage: `
              nprocs specifies the number of ranks that process chunks.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "workers",
			usage: `
              workers specifies the number of chunks processed concurrently
              within each rank, or the number of chunk files read
              concurrently when merging or inserting.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{regridCmd.Flags(), mergeCmd.Flags(), insertCmd.Flags()},
		},
		{
			name: "index",
			usage: `
              index specifies the path to the chunk index file in a
              persisted working directory.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{mergeCmd.Flags(), insertCmd.Flags()},
		},
		{
			name: "master",
			usage: `
              master specifies the path to the file destination values are
              inserted into. It is created from the destination grid if it
              does not exist.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{insertCmd.Flags()},
		},
		{
			name: "variables",
			usage: `
              variables specifies the variables to insert. If empty, all
              variables in the chunk files are inserted.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{insertCmd.Flags()},
		},
		{
			name: "fill",
			usage: `
              fill specifies the value of master file elements that are not
              written by any chunk.`,
			defaultVal: -1.0,
			flagsets:   []*pflag.FlagSet{insertCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GRIDCHUNK")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(regridCmd)
	Root.AddCommand(mergeCmd)
	Root.AddCommand(insertCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the logging level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("gridchunk: problem reading configuration file: %v", err)
		}
	}
	return setLogLevel(Cfg.GetString("log_level"))
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "gridchunk",
	Short: "Chunked regridding weight generation for large grids.",
	Long: `GridChunk splits a source and destination grid pair into spatially
matching chunks, generates regridding weights for each chunk, and merges the
chunk weights into a single weight file.
Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'GRIDCHUNK_var' where 'var' is the
name of the variable to be set. Paths are allowed to contain environment variables.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of GridChunk.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("GridChunk v%s\n", gridchunk.Version)
	},
	DisableAutoGenTag: true,
}

// regridCmd splits a grid pair into chunks and generates weights.
var regridCmd = &cobra.Command{
	Use:   "chunked-regrid",
	Short: "Generate regridding weights chunk by chunk.",
	Long: `chunked-regrid splits the destination grid into chunks, selects the
part of the source grid that covers each destination chunk, writes each chunk
pair to the working directory, optionally generates weights for each chunk,
and optionally merges the chunk weights into a single weight file addressed
by global element identifiers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := regridConfig(Cfg)
		if err != nil {
			return err
		}
		return ChunkedRegrid(context.Background(), cfg)
	},
	DisableAutoGenTag: true,
}

// mergeCmd merges the chunk weights of a persisted working directory.
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge chunk weight files.",
	Long: `merge combines the chunk weight files listed in a chunk index file
into a single weight file addressed by global element identifiers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := requiredPath(Cfg, "index")
		if err != nil {
			return err
		}
		weight, err := requiredPath(Cfg, "weight")
		if err != nil {
			return err
		}
		return Merge(context.Background(), index, weight, Cfg.GetInt("workers"))
	},
	DisableAutoGenTag: true,
}

// insertCmd inserts chunk destination values into a master file.
var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Insert chunk destination values into a master file.",
	Long: `insert writes the destination values of every chunk listed in a chunk
index file into a master file at the positions of their global identifiers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := insertConfig(Cfg)
		if err != nil {
			return err
		}
		return Insert(context.Background(), cfg)
	},
	DisableAutoGenTag: true,
}
