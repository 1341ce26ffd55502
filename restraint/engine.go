/*
 * engine.go, part of goqr.
 *
 *
 * Copyright 2026 Raul Mera <rmera{at}usachDOTcl>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 *
 */

package restraint

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	qr "github.com/rmera/goqr"
	v3 "github.com/rmera/goqr/v3"
)

//Engine delegates the restraints target and gradients to an external
//quantum chemistry program. Each evaluation writes the current geometry
//to an XYZ file, runs the program and parses the energy and gradient
//back from an ORCA-style .engrad file, which several codes (xtb among
//them) produce. The evaluations go through the filesystem, so two
//Engines must not share a working directory.
type Engine struct {
	command    string
	options    string
	workdir    string
	inputname  string
	unitFactor float64
	symbols    []string
}

//NewEngine returns an Engine that runs command in workdir over the atoms
//of S. Only the atom symbols are kept; the coordinates come with each
//evaluation.
func NewEngine(S *qr.Structure, command, workdir string) *Engine {
	symbols := make([]string, S.Len())
	for i, at := range S.Atoms {
		symbols[i] = at.Symbol
	}
	return &Engine{command: command, options: "--grad", workdir: workdir, inputname: "goqr", unitFactor: 1.0, symbols: symbols}
}

//SetUnitFactor sets the conversion factor applied to the energy and
//gradients the program reports, so an engine working in Hartree can feed
//a target expressed in kcal/mol. The default is 1.
func (E *Engine) SetUnitFactor(f float64) {
	E.unitFactor = f
}

//SetOptions replaces the extra command-line options passed to the
//program. The default asks for a gradient calculation, xtb-style.
func (E *Engine) SetOptions(options string) {
	E.options = options
}

//SetInputName replaces the basename used for the input, output and
//gradient files.
func (E *Engine) SetInputName(name string) {
	E.inputname = name
}

func (E *Engine) writeInput(sites *v3.Matrix) error {
	out, err := os.Create(filepath.Join(E.workdir, E.inputname+".xyz"))
	if err != nil {
		return err
	}
	defer out.Close()
	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "%-4d\n\n", len(E.symbols))
	for i, s := range E.symbols {
		fmt.Fprintf(w, "%-2s  %8.3f%8.3f%8.3f \n", s, sites.At(i, 0), sites.At(i, 1), sites.At(i, 2))
	}
	return w.Flush()
}

//TargetAndGradients writes the geometry, runs the external program and
//returns the energy and gradient it reports.
func (E *Engine) TargetAndGradients(sites *v3.Matrix) (float64, *v3.Matrix, error) {
	if sites == nil {
		err := new(Error)
		err.message = NilCoordinates
		err.critical = true
		err.Decorate("Engine.TargetAndGradients")
		return 0, nil, err
	}
	if err := E.writeInput(sites); err != nil {
		return 0, nil, Error{ErrNotRunning, E.inputname, []string{"Engine.TargetAndGradients"}, true}
	}
	com := fmt.Sprintf("%s %s.xyz %s > %s.out 2>&1", E.command, E.inputname, E.options, E.inputname)
	command := exec.Command("sh", "-c", com)
	command.Dir = E.workdir
	if err := command.Run(); err != nil {
		return 0, nil, Error{ErrNotRunning + ": " + err.Error(), E.inputname, []string{"Engine.TargetAndGradients"}, true}
	}
	return E.readEngrad()
}

//readEngrad parses an ORCA-style .engrad file: after stripping the
//comment lines, the values are the atom count, the total energy and the
//3N gradient components, in that order.
func (E *Engine) readEngrad() (float64, *v3.Matrix, error) {
	f, err := os.Open(filepath.Join(E.workdir, E.inputname+".engrad"))
	if err != nil {
		return 0, nil, Error{ErrNoEnergy + ": " + err.Error(), E.inputname, []string{"Engine.readEngrad"}, true}
	}
	defer f.Close()
	values := make([]float64, 0, 2+3*len(E.symbols))
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, field := range strings.Fields(line) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return 0, nil, Error{ErrNoEnergy + ": " + err.Error(), E.inputname, []string{"Engine.readEngrad"}, true}
			}
			values = append(values, v)
		}
	}
	if len(values) < 2 {
		return 0, nil, Error{ErrNoEnergy, E.inputname, []string{"Engine.readEngrad"}, true}
	}
	natoms := int(values[0])
	energy := values[1]
	grad := values[2:]
	if natoms != len(E.symbols) || len(grad) < 3*natoms {
		return 0, nil, Error{ErrBadGradient, E.inputname, []string{"Engine.readEngrad"}, true}
	}
	g, err := v3.NewMatrix(grad[:3*natoms])
	if err != nil {
		return 0, nil, Error{ErrBadGradient, E.inputname, []string{"Engine.readEngrad"}, true}
	}
	if E.unitFactor != 1.0 {
		g.Scale(E.unitFactor, g)
		energy *= E.unitFactor
	}
	return energy, g, nil
}
