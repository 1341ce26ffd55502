/*
 * interfaces.go, part of goqr.
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

package qr

import v3 "github.com/rmera/goqr/v3"

//RestraintEvaluator computes a restraints (or quantum-mechanical) energy
//and its gradient at the given Cartesian sites. Implementations may be
//long-running blocking calls that dispatch to external programs; the
//refinement engine treats every call as synchronous and manages no timeout
//of its own.
type RestraintEvaluator interface {

	//TargetAndGradients returns the restraints target (energy) and one
	//gradient vector per atom, evaluated at sites.
	TargetAndGradients(sites *v3.Matrix) (float64, *v3.Matrix, error)
}

//BondDeviator reports per-bond deviations from ideal geometry, without
//computing gradients. It is the gradient-free side of a geometry
//restraints manager, used to monitor bond RMSD along a refinement.
type BondDeviator interface {

	//BondDeviations returns the deviation from the ideal length for every
	//bond whose two atoms are both contained in selection, evaluated at
	//sites. Negative deviations mean a compressed bond.
	BondDeviations(sites *v3.Matrix, selection []int) ([]float64, error)
}

//DataFitEvaluator is the experimental-data side of a refinement: anything
//that can measure the agreement between a model and diffraction (or other
//experimental) data, and differentiate that agreement with respect to the
//atomic positions. A structure-factor engine implements this interface;
//goqr itself does not provide one.
type DataFitEvaluator interface {

	//TargetAndGradients returns the data-fit target at sites and, if
	//computeGradients is true, one gradient vector per atom. With
	//computeGradients false the returned matrix may be nil.
	TargetAndGradients(sites *v3.Matrix, computeGradients bool) (float64, *v3.Matrix, error)

	//UpdateStructure re-points the evaluator at S, recomputing whatever
	//position-dependent quantities it caches, without reconstructing the
	//evaluator.
	UpdateStructure(S *Structure) error

	//RFactors returns the current R-work and R-free agreement statistics.
	RFactors() (float64, float64, error)
}

//ADPDataEvaluator is the experimental-data side of an isotropic
//displacement-parameter refinement. The parameter vector holds one scalar
//per atom instead of three.
type ADPDataEvaluator interface {

	//UpdateStructure re-points the evaluator at S.
	UpdateStructure(S *Structure) error

	//TargetAndGradientsUIso returns the data-fit target and its gradient
	//with respect to the isotropic displacement parameters uiso.
	TargetAndGradientsUIso(uiso []float64) (float64, []float64, error)

	//RFactors returns the current R-work and R-free agreement statistics.
	RFactors() (float64, float64, error)
}

//Errors

//This error predates the "wrapping" error system of Go (i.e. the "%w" directive and the errors package). We should avoid
//using the Decorate method and/or make it use the "%w" directive internally.

// Error is the interface for errors that all packages in this library implement. The Decorate method allows to add and retrieve info from the
// error, without changing it's type or wrapping it around something else.
type Error interface {
	Error() string
	Decorate(string) []string //It allows you to add information when you pass the error up. Each call also returns the "decoration" slice of strings resulting from the current call. If passed an empty string, it should just return the current value, not add the empty string to the slice.
	//The decorate slice should contain a list of functions in the calling stack, plus, for each function any relevant information, or nothing. If information is to be added to an element of the slice, it should be in this format: "FunctionName: Extra info"
}
