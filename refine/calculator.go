/*
 * calculator.go, part of goqr.
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
	qr "github.com/rmera/goqr"
	v3 "github.com/rmera/goqr/v3"
)

//Calculator exposes a refinement target as a plain function of a flat
//parameter vector, which is what a numerical minimizer wants to see. The
//parameterization (coordinates, displacements) is the calculator's business.
type Calculator interface {
	//X returns a newly-allocated copy of the current parameter vector.
	X() []float64
	//TargetAndGradients evaluates the target and its gradient at x.
	//It may mutate the underlying structure; after it returns, the
	//structure reflects x.
	TargetAndGradients(x []float64) (float64, []float64, error)
	//Apply writes x back into the underlying structure.
	Apply(x []float64) error
}

//WeightCalculator is implemented by calculators that can estimate their
//own data weight. Calculators whose parameterization has no sensible
//automatic weight return an error with the ErrNotSupported message.
type WeightCalculator interface {
	CalculateWeight() error
}

//GradientSink receives the three gradients of a composite target (data
//term, restraints term and their weighted blend) for offline inspection.
//When one is attached to a Sites calculator, the first evaluation dumps
//the gradients and stops the refinement.
type GradientSink interface {
	DumpGradients(data, restraints, total *v3.Matrix) error
}

//Sites is the coordinate-refinement target: the weighted blend of a
//data-fit term and a restraints term, both functions of the Cartesian
//coordinates. It is the calculator used in reciprocal-space refinement.
type Sites struct {
	S          *qr.Structure
	Data       qr.DataFitEvaluator
	Restraints qr.RestraintEvaluator
	W          *Weights
	Sink       GradientSink
}

//NewSites returns a Sites calculator over the given structure and
//evaluators, weighted by w.
func NewSites(S *qr.Structure, data qr.DataFitEvaluator, restraints qr.RestraintEvaluator, w *Weights) *Sites {
	return &Sites{S: S, Data: data, Restraints: restraints, W: w}
}

//X returns the current coordinates as a flat vector.
func (C *Sites) X() []float64 {
	return C.S.SitesVector()
}

//Apply writes the flat coordinate vector x into the structure.
func (C *Sites) Apply(x []float64) error {
	return C.S.SetSitesVector(x)
}

//TargetAndGradients evaluates the composite target at the coordinates x.
//The total is DataWeight*dataTarget + RestraintsWeight*RestraintsWeightScale*restraintsTarget,
//and the gradient is blended with the same weights. If a GradientSink is
//attached, the three gradients are dumped instead and the evaluation
//fails with ErrGradientsDumped.
func (C *Sites) TargetAndGradients(x []float64) (float64, []float64, error) {
	err := C.S.SetSitesVector(x)
	if err != nil {
		return 0, nil, errDecorate(err, "Sites.TargetAndGradients")
	}
	err = C.Data.UpdateStructure(C.S)
	if err != nil {
		return 0, nil, wrapEvaluator(err, "Sites.TargetAndGradients")
	}
	td, gd, err := C.Data.TargetAndGradients(C.S.Coords, true)
	if err != nil {
		return 0, nil, wrapEvaluator(err, "Sites.TargetAndGradients")
	}
	tr, gr, err := C.Restraints.TargetAndGradients(C.S.Coords)
	if err != nil {
		return 0, nil, wrapEvaluator(err, "Sites.TargetAndGradients")
	}
	wd := C.W.DataWeight
	wr := C.W.RestraintsWeight * C.W.RestraintsWeightScale
	t := wd*td + wr*tr
	total := gd.Clone()
	total.Scale(wd, total)
	scaled := gr.Clone()
	scaled.Scale(wr, scaled)
	total.Add(total, scaled)
	if C.Sink != nil {
		err = C.Sink.DumpGradients(gd, gr, total)
		if err != nil {
			return 0, nil, wrapEvaluator(err, "Sites.TargetAndGradients")
		}
		return 0, nil, newError(ErrGradientsDumped, "Sites.TargetAndGradients", false)
	}
	return t, total.Flatten(), nil
}

//CalculateWeight estimates the data weight for this target. See
//Weights.ComputeWeight for the procedure.
func (C *Sites) CalculateWeight() error {
	err := C.W.ComputeWeight(C.S, C.Data, C.Restraints)
	if err != nil {
		return errDecorate(err, "Sites.CalculateWeight")
	}
	return nil
}

//SitesOpt is the pure-geometry target: restraints only, no data term.
//It is used in opt mode, where the model is regularized without any
//experimental data, and the weights play no role.
type SitesOpt struct {
	S          *qr.Structure
	Restraints qr.RestraintEvaluator
}

//NewSitesOpt returns a SitesOpt calculator over the given structure and
//restraints evaluator.
func NewSitesOpt(S *qr.Structure, restraints qr.RestraintEvaluator) *SitesOpt {
	return &SitesOpt{S: S, Restraints: restraints}
}

//X returns the current coordinates as a flat vector.
func (C *SitesOpt) X() []float64 {
	return C.S.SitesVector()
}

//Apply writes the flat coordinate vector x into the structure.
func (C *SitesOpt) Apply(x []float64) error {
	return C.S.SetSitesVector(x)
}

//TargetAndGradients evaluates the restraints target at the coordinates x.
func (C *SitesOpt) TargetAndGradients(x []float64) (float64, []float64, error) {
	err := C.S.SetSitesVector(x)
	if err != nil {
		return 0, nil, errDecorate(err, "SitesOpt.TargetAndGradients")
	}
	t, g, err := C.Restraints.TargetAndGradients(C.S.Coords)
	if err != nil {
		return 0, nil, wrapEvaluator(err, "SitesOpt.TargetAndGradients")
	}
	return t, g.Flatten(), nil
}

//ADP is the displacement-refinement target: the data term as a function
//of the per-atom isotropic displacements, with the coordinates fixed.
//Restraints don't depend on displacements, so there is no blend and the
//data weight is not estimable: CalculateWeight is not supported.
type ADP struct {
	S    *qr.Structure
	Data qr.ADPDataEvaluator
}

//NewADP returns an ADP calculator over the given structure and evaluator.
func NewADP(S *qr.Structure, data qr.ADPDataEvaluator) *ADP {
	return &ADP{S: S, Data: data}
}

//X returns the current displacement parameters as a flat vector.
func (C *ADP) X() []float64 {
	return C.S.UIsoVector()
}

//Apply writes the flat displacement vector x into the structure.
func (C *ADP) Apply(x []float64) error {
	return C.S.SetUIsoVector(x)
}

//TargetAndGradients evaluates the data target at the displacements x.
func (C *ADP) TargetAndGradients(x []float64) (float64, []float64, error) {
	err := C.S.SetUIsoVector(x)
	if err != nil {
		return 0, nil, err
	}
	err = C.Data.UpdateStructure(C.S)
	if err != nil {
		return 0, nil, wrapEvaluator(err, "ADP.TargetAndGradients")
	}
	t, g, err := C.Data.TargetAndGradientsUIso(x)
	if err != nil {
		return 0, nil, wrapEvaluator(err, "ADP.TargetAndGradients")
	}
	return t, g, nil
}

//CalculateWeight always fails: there is no automatic weight for the
//displacement parameterization.
func (C *ADP) CalculateWeight() error {
	return newError(ErrNotSupported, "ADP.CalculateWeight", true)
}
