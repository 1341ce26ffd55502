/*
 * errors.go, part of goqr.
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

import "fmt"

//Error is the general structure for restraint evaluator errors. It
//fulfills qr.Error.
type Error struct {
	message   string
	inputname string //the input file involved, or empty.
	deco      []string
	critical  bool
}

func (err Error) Error() string {
	if err.inputname == "" {
		return fmt.Sprintf("restraint error: %s", err.message)
	}
	return fmt.Sprintf("restraint error with %s: %s", err.inputname, err.message)
}

//Decorate Adds new information to the error
func (E Error) Decorate(deco string) []string {
	//Even though this method does not use a pointer as a receiver, and tries to alter the receiver,
	//it should work, since E.deco is a slice, and hence a pointer itself.
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

//Critical returns true if the error is critical, false otherwise
func (err Error) Critical() bool { return err.critical }

const (
	NilCoordinates = "Given nil coordinates"
	BadBond        = "Bond refers to an atom outside the model"
	ErrNotRunning  = "Couldn't run the external program"
	ErrNoEnergy    = "Couldn't parse energy and gradients from the program output"
	ErrBadGradient = "Gradient size doesn't match the model"
)
