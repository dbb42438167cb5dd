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

package rwg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridchunk/gridio"
)

// DefaultESMFExecutable is the name of the ESMF weight generation program.
const DefaultESMFExecutable = "ESMF_RegridWeightGen"

// ESMF generates weights by running ESMF_RegridWeightGen.
type ESMF struct {
	// Exe is the program to run. DefaultESMFExecutable is used if empty.
	Exe string

	// ExtraArgs are appended to every invocation.
	ExtraArgs []string

	Log logrus.FieldLogger
}

func esmfType(format string) (string, error) {
	f, err := gridio.ParseFormat(format)
	if err != nil {
		return "", err
	}
	if f == gridio.GRIDSPEC {
		return "CFGRID", nil
	}
	return f, nil
}

func esmfMethod(m Method) string {
	return strings.Replace(strings.ToLower(string(m)), "_", "", -1)
}

// args returns the command line arguments for one invocation.
func (e *ESMF) args(src, dst File, weight string, method Method) ([]string, error) {
	st, err := esmfType(src.Format)
	if err != nil {
		return nil, err
	}
	dt, err := esmfType(dst.Format)
	if err != nil {
		return nil, err
	}
	a := []string{
		"-s", src.Path,
		"-d", dst.Path,
		"-w", weight,
		"-m", esmfMethod(method),
		"--src_type", st,
		"--dst_type", dt,
		"--ignore_unmapped",
		"--no_log",
	}
	if src.Regional {
		a = append(a, "--src_regional")
	}
	if dst.Regional {
		a = append(a, "--dst_regional")
	}
	return append(a, e.ExtraArgs...), nil
}

// Generate implements Engine.
func (e *ESMF) Generate(ctx context.Context, src, dst File, weight string, method Method) error {
	args, err := e.args(src, dst, weight, method)
	if err != nil {
		return err
	}
	exe := e.Exe
	if exe == "" {
		exe = DefaultESMFExecutable
	}
	log := e.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"exe":  exe,
		"args": strings.Join(args, " "),
	}).Debug("running weight generation")

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("rwg: %s: %v: %s", exe, err, strings.TrimSpace(out.String()))
	}
	return nil
}
