/*
 * weights.go, part of goqr.
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
	"math"
	"math/rand"

	qr "github.com/rmera/goqr"
	v3 "github.com/rmera/goqr/v3"
)

//The perturbation applied before estimating the data weight, and the
//factor by which the restraints weight grows when a macro-cycle stalls.
const (
	shakeMean       = 0.2
	stallScale      = 4.0
	outlierCutRatio = 6.0
)

//ScaleRecord is one entry of the weight-scale history: the scale in
//effect after an adjustment, together with the R factors that caused it.
type ScaleRecord struct {
	Scale float64 `json:"scale"`
	RWork float64 `json:"r_work"`
	RFree float64 `json:"r_free"`
}

//Weights holds the relative weighting of the data and restraints terms
//of the composite refinement target, plus the adjustable scale applied
//to the restraints term and the history of its adjustments.
//The total target is DataWeight*dataTarget + RestraintsWeight*RestraintsWeightScale*restraintsTarget.
type Weights struct {
	ShakeSites            bool          `json:"shake_sites"`
	DataWeight            float64       `json:"data_weight"`
	RestraintsWeight      float64       `json:"restraints_weight"`
	RestraintsWeightScale float64       `json:"restraints_weight_scale"`
	WeightWasProvided     bool          `json:"weight_was_provided"`
	History               []ScaleRecord `json:"history"`
}

//NewWeights returns a Weights with the given restraints weight and scale.
//If a dataWeight is given, it is taken as externally provided: ComputeWeight,
//Adjust and ScaleRestraintsWeight all become no-ops, and the caller's value
//is used unchanged for the whole refinement.
func NewWeights(shakeSites bool, restraintsWeight, restraintsWeightScale float64, dataWeight ...float64) *Weights {
	W := new(Weights)
	W.ShakeSites = shakeSites
	W.RestraintsWeight = restraintsWeight
	W.RestraintsWeightScale = restraintsWeightScale
	W.DataWeight = 1.0
	W.History = make([]ScaleRecord, 0, 10)
	if len(dataWeight) > 0 {
		W.DataWeight = dataWeight[0]
		W.WeightWasProvided = true
	}
	return W
}

//ComputeWeight estimates the data weight as the ratio between the norms of
//the data and restraints gradients, both evaluated on a throwaway copy of
//the structure. The copy is perturbed first (if ShakeSites is set) so the
//gradients don't vanish on an already-converged model, and per-atom
//gradient outliers are excluded from both norms. The random stream is
//seeded with a constant, so repeated calls on equal inputs give the same
//weight. The evaluator is pointed back at S before returning, so the
//estimate leaves no trace on later statistics. Does nothing if the weight
//was provided by the caller.
func (W *Weights) ComputeWeight(S *qr.Structure, data qr.DataFitEvaluator, restraints qr.RestraintEvaluator) (rerr error) {
	if W.WeightWasProvided {
		return nil
	}
	r := rand.New(rand.NewSource(1))
	SC := S.Copy()
	if W.ShakeSites {
		SC.Shake(shakeMean, r)
	}
	err := data.UpdateStructure(SC)
	if err != nil {
		return errDecorate(wrapEvaluator(err, "ComputeWeight"), "ComputeWeight")
	}
	defer func() {
		if err := data.UpdateStructure(S); err != nil && rerr == nil {
			rerr = errDecorate(wrapEvaluator(err, "ComputeWeight"), "ComputeWeight")
		}
	}()
	_, gdata, err := data.TargetAndGradients(SC.Coords, true)
	if err != nil {
		return errDecorate(wrapEvaluator(err, "ComputeWeight"), "ComputeWeight")
	}
	_, grest, err := restraints.TargetAndGradients(SC.Coords)
	if err != nil {
		return errDecorate(wrapEvaluator(err, "ComputeWeight"), "ComputeWeight")
	}
	x := filteredNorm(gdata)
	y := filteredNorm(grest)
	if y != 0 {
		W.DataWeight = x / y
	} else {
		W.DataWeight = 1.0
	}
	return nil
}

//filteredNorm returns the Euclidean norm of the gradient matrix after
//removing atoms whose per-atom gradient norm exceeds six times the mean.
//A handful of clashing atoms would otherwise dominate the weight estimate.
func filteredNorm(g *v3.Matrix) float64 {
	n := g.NVecs()
	if n == 0 {
		return 0
	}
	norms := make([]float64, n)
	mean := 0.0
	for i := 0; i < n; i++ {
		norms[i] = g.VecNorm(i)
		mean += norms[i]
	}
	mean /= float64(n)
	sum := 0.0
	for i := 0; i < n; i++ {
		if norms[i] > outlierCutRatio*mean {
			continue
		}
		sum += norms[i] * norms[i]
	}
	return math.Sqrt(sum)
}

//Adjust updates the restraints weight scale from the current refinement
//statistics and records the outcome in the history. The checks are tried
//in a fixed order and only the first one that fires acts: geometry too
//distorted (scale up), data likely overfit in reverse (r_free below
//r_work, scale down), R gap too narrow with sound geometry (scale down),
//R gap too wide (scale up). It returns whether anything fired. Does
//nothing, and reports false, if the weight was provided by the caller.
func (W *Weights) Adjust(rWork, rFree, bondRMSD, maxBondRMSD, maxGap, factor float64) bool {
	if W.WeightWasProvided {
		return false
	}
	gap := (rFree - rWork) * 100
	adjusted := false
	if bondRMSD > maxBondRMSD {
		W.RestraintsWeightScale *= factor
		adjusted = true
	}
	if !adjusted && rFree < rWork {
		W.RestraintsWeightScale /= factor
		adjusted = true
	}
	if !adjusted && bondRMSD <= maxBondRMSD && rFree > rWork && gap < maxGap {
		W.RestraintsWeightScale /= factor
		adjusted = true
	}
	if !adjusted && gap >= maxGap {
		W.RestraintsWeightScale *= factor
		adjusted = true
	}
	W.History = append(W.History, ScaleRecord{Scale: W.RestraintsWeightScale, RWork: round4(rWork), RFree: round4(rFree)})
	return adjusted
}

//ScaleRestraintsWeight sharply increases the restraints weight scale. It
//is the escalation used when an optimization macro-cycle makes no progress
//at all, which usually means the data term has pulled the geometry
//somewhere the optimizer can't escape. The base RestraintsWeight is never
//touched: the scale is the only field that changes across cycles. Does
//nothing if the weight was provided.
func (W *Weights) ScaleRestraintsWeight() {
	if W.WeightWasProvided {
		return
	}
	W.RestraintsWeightScale *= stallScale
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

//BondsRMSD returns the root mean square deviation of the bonded distances
//of the non-hydrogen atoms of S from their ideal values. Hydrogens are
//excluded because their restrained positions are not informative about
//the model geometry. An empty non-hydrogen selection is an error.
func BondsRMSD(S *qr.Structure, dev qr.BondDeviator) (float64, error) {
	selection := S.NotHydrogen()
	if len(selection) == 0 {
		return 0, newError(ErrInvalidStructure, "BondsRMSD", true)
	}
	deviations, err := dev.BondDeviations(S.Coords, selection)
	if err != nil {
		return 0, errDecorate(wrapEvaluator(err, "BondsRMSD"), "BondsRMSD")
	}
	if len(deviations) == 0 {
		return 0, nil
	}
	sum := 0.0
	for _, d := range deviations {
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(deviations))), nil
}

//wrapEvaluator turns an arbitrary error from a collaborator into a
//refine Error, preserving the original message as context.
func wrapEvaluator(err error, context string) Error {
	if e, ok := err.(Error); ok {
		return e
	}
	return Error{message: ErrEvaluatorFailure + ": " + err.Error(), context: context, critical: true}
}
