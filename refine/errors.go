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

package refine

import (
	"fmt"
	"strings"

	qr "github.com/rmera/goqr"
)

//errDecorate is a helper function that asserts that the error implements
//qr.Error and decorates the error with the caller's name before returning it.
//if used with a non-qr.Error error, it will cause a panic.
func errDecorate(err error, caller string) error {
	err2 := err.(qr.Error)
	err2.Decorate(caller)
	return err2
}

//Error is the general structure for refinement errors. It fulfills qr.Error.
type Error struct {
	message  string
	context  string //what the engine was doing when it failed, or empty.
	deco     []string
	critical bool
}

func (err Error) Error() string {
	if err.context == "" {
		return fmt.Sprintf("refine error: %s", err.message)
	}
	return fmt.Sprintf("refine error in %s: %s", err.context, err.message)
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

//Message returns the bare message of the error, without context or
//decorations, so callers can compare it against the message constants.
func (err Error) Message() string { return err.message }

func newError(message, context string, critical bool) Error {
	return Error{message: message, context: context, critical: critical}
}

//isEvaluatorFailure reports whether err came from a failing external
//evaluator, as opposed to a problem in the refinement machinery itself.
func isEvaluatorFailure(err error) bool {
	e, ok := err.(Error)
	return ok && strings.HasPrefix(e.Message(), ErrEvaluatorFailure)
}

const (
	ErrInvalidStructure = "Invalid or empty structure"
	ErrTooManyAtoms     = "Too many atoms"
	ErrNotSupported     = "Not implemented"
	ErrEvaluatorFailure = "Evaluator failed"
	ErrNilCoordinates   = "Given nil coordinates"
	ErrGradientsDumped  = "Gradients dumped, refinement stopped"
	ErrBadRestart       = "Unreadable or inconsistent restart file"
)
