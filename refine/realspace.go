/*
 * realspace.go, part of goqr.
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
	"errors"
	"math"

	qr "github.com/rmera/goqr"
	"gonum.org/v1/gonum/optimize"
)

//SitesRealSpace refines coordinates directly against a density map: the
//data term is the negative occupancy-weighted map value summed over the
//atoms, so moving atoms into density lowers the target. The map gradient
//is taken by central finite differences with step Delta, which is why
//this target gets a plain gradient descent rather than a quasi-Newton
//method. The data weight is fixed at one.
type SitesRealSpace struct {
	S             *qr.Structure
	Map           *qr.DensityMap
	Restraints    qr.RestraintEvaluator
	Weight        float64
	Delta         float64
	MaxIterations int
}

//NewSitesRealSpace returns a real-space calculator with the usual
//defaults: unit weight, a quarter-Angstrom differencing step and at most
//100 descent iterations.
func NewSitesRealSpace(S *qr.Structure, m *qr.DensityMap, restraints qr.RestraintEvaluator) *SitesRealSpace {
	return &SitesRealSpace{S: S, Map: m, Restraints: restraints, Weight: 1.0, Delta: 0.25, MaxIterations: 100}
}

//X returns the current coordinates as a flat vector.
func (C *SitesRealSpace) X() []float64 {
	return C.S.SitesVector()
}

//Apply writes the flat coordinate vector x into the structure.
func (C *SitesRealSpace) Apply(x []float64) error {
	return C.S.SetSitesVector(x)
}

func (C *SitesRealSpace) mapTarget(x []float64) float64 {
	t := 0.0
	for i, at := range C.S.Atoms {
		t -= at.Occupancy * C.Map.Interpolate(x[i*3], x[i*3+1], x[i*3+2])
	}
	return t
}

//TargetAndGradients evaluates the real-space composite target at the
//coordinates x.
func (C *SitesRealSpace) TargetAndGradients(x []float64) (float64, []float64, error) {
	err := C.S.SetSitesVector(x)
	if err != nil {
		return 0, nil, errDecorate(err, "SitesRealSpace.TargetAndGradients")
	}
	td := C.mapTarget(x)
	g := make([]float64, len(x))
	xp := make([]float64, len(x))
	copy(xp, x)
	for i := range x {
		xp[i] = x[i] + C.Delta
		fp := C.mapTarget(xp)
		xp[i] = x[i] - C.Delta
		fm := C.mapTarget(xp)
		xp[i] = x[i]
		g[i] = (fp - fm) / (2 * C.Delta)
	}
	tr, gr, err := C.Restraints.TargetAndGradients(C.S.Coords)
	if err != nil {
		return 0, nil, wrapEvaluator(err, "SitesRealSpace.TargetAndGradients")
	}
	grf := gr.Flatten()
	for i := range g {
		g[i] += C.Weight * grf[i]
	}
	return td + C.Weight*tr, g, nil
}

//Refine runs gradient descent on the real-space target and writes the
//result back into the structure. Line-search trouble is expected with a
//finite-difference gradient near the map maxima, so optimizer failures
//of that kind are absorbed and the best point found so far is kept.
func (C *SitesRealSpace) Refine() error {
	var evalErr error
	p := optimize.Problem{
		Func: func(x []float64) float64 {
			t, _, err := C.TargetAndGradients(x)
			if err != nil {
				evalErr = err
				return math.Inf(1)
			}
			return t
		},
		Grad: func(grad, x []float64) {
			_, g, err := C.TargetAndGradients(x)
			if err != nil {
				evalErr = err
				return
			}
			copy(grad, g)
		},
	}
	settings := &optimize.Settings{MajorIterations: C.MaxIterations}
	res, err := optimize.Minimize(p, C.X(), settings, &optimize.GradientDescent{})
	if evalErr != nil {
		return errDecorate(wrapEvaluator(evalErr, "SitesRealSpace.Refine"), "SitesRealSpace.Refine")
	}
	if err != nil && !tolerableOptimizeError(err) {
		return wrapEvaluator(err, "SitesRealSpace.Refine")
	}
	if res != nil {
		return C.Apply(res.X)
	}
	return nil
}

//tolerableOptimizeError reports whether an optimizer error only means the
//line search stalled, which near a finite-difference optimum is the normal
//way for the descent to end.
func tolerableOptimizeError(err error) bool {
	return errors.Is(err, optimize.ErrLinesearcherFailure) ||
		errors.Is(err, optimize.ErrNoProgress) ||
		errors.Is(err, optimize.ErrNonDescentDirection)
}
