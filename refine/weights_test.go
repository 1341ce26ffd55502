/*
 * weights_test.go, part of goqr.
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
	"math"
	"testing"

	qr "github.com/rmera/goqr"
	v3 "github.com/rmera/goqr/v3"
)

//scaledData is a data-fit evaluator whose gradient is the coordinates
//scaled by a constant, which makes the expected weight easy to predict.
type scaledData struct {
	factor       float64
	rWork, rFree float64
}

func (f *scaledData) UpdateStructure(S *qr.Structure) error { return nil }

func (f *scaledData) TargetAndGradients(sites *v3.Matrix, computeGradients bool) (float64, *v3.Matrix, error) {
	g := sites.Clone()
	g.Scale(f.factor, g)
	return 0, g, nil
}

func (f *scaledData) RFactors() (float64, float64, error) {
	return f.rWork, f.rFree, nil
}

//scaledRestraints is the restraints-side counterpart of scaledData.
type scaledRestraints struct {
	factor float64
}

func (f *scaledRestraints) TargetAndGradients(sites *v3.Matrix) (float64, *v3.Matrix, error) {
	g := sites.Clone()
	g.Scale(f.factor, g)
	return 0, g, nil
}

func weightTestStructure(Te *testing.T) *qr.Structure {
	atoms := []*qr.Atom{
		{Name: "C1", Symbol: "C", Occupancy: 1},
		{Name: "C2", Symbol: "C", Occupancy: 1},
		{Name: "O", Symbol: "O", Occupancy: 1},
		{Name: "H", Symbol: "H", Occupancy: 1},
	}
	coords, err := v3.NewMatrix([]float64{
		0, 0, 0,
		1.5, 0, 0,
		2.1, 1.1, 0,
		-0.5, 0.9, 0.3,
	})
	if err != nil {
		Te.Fatal(err)
	}
	S, err := qr.NewStructure(atoms, coords, nil)
	if err != nil {
		Te.Fatal(err)
	}
	return S
}

func TestComputeWeightRatio(Te *testing.T) {
	//with gradients proportional to each other the outlier masks agree
	//and the weight is exactly the ratio of the two factors.
	S := weightTestStructure(Te)
	W := NewWeights(true, 1.0, 1.0)
	err := W.ComputeWeight(S, &scaledData{factor: 6}, &scaledRestraints{factor: 2})
	if err != nil {
		Te.Fatal(err)
	}
	if math.Abs(W.DataWeight-3.0) > 1e-10 {
		Te.Errorf("Expected weight 3, got %f", W.DataWeight)
	}
	fmt.Println("estimated weight", W.DataWeight)
}

func TestComputeWeightZeroRestraints(Te *testing.T) {
	S := weightTestStructure(Te)
	W := NewWeights(true, 1.0, 1.0)
	err := W.ComputeWeight(S, &scaledData{factor: 6}, &scaledRestraints{factor: 0})
	if err != nil {
		Te.Fatal(err)
	}
	if W.DataWeight != 1.0 {
		Te.Errorf("A vanishing restraints gradient must give weight exactly 1.0, got %f", W.DataWeight)
	}
}

func TestComputeWeightDeterminism(Te *testing.T) {
	S := weightTestStructure(Te)
	W1 := NewWeights(true, 1.0, 1.0)
	W2 := NewWeights(true, 1.0, 1.0)
	if err := W1.ComputeWeight(S, &scaledData{factor: 1.7}, &scaledRestraints{factor: 0.3}); err != nil {
		Te.Fatal(err)
	}
	if err := W2.ComputeWeight(S, &scaledData{factor: 1.7}, &scaledRestraints{factor: 0.3}); err != nil {
		Te.Fatal(err)
	}
	if W1.DataWeight != W2.DataWeight {
		Te.Errorf("Repeated estimation gave %f and %f", W1.DataWeight, W2.DataWeight)
	}
}

func TestComputeWeightLeavesStructure(Te *testing.T) {
	//the shake must happen on a copy.
	S := weightTestStructure(Te)
	before := S.SitesVector()
	W := NewWeights(true, 1.0, 1.0)
	if err := W.ComputeWeight(S, &scaledData{factor: 1}, &scaledRestraints{factor: 1}); err != nil {
		Te.Fatal(err)
	}
	after := S.SitesVector()
	for i := range before {
		if before[i] != after[i] {
			Te.Fatal("ComputeWeight moved the structure")
		}
	}
}

//trackingData remembers the structure it was last pointed at.
type trackingData struct {
	scaledData
	last *qr.Structure
}

func (f *trackingData) UpdateStructure(S *qr.Structure) error {
	f.last = S
	return nil
}

func TestComputeWeightRestoresEvaluator(Te *testing.T) {
	//the estimate runs on a shaken copy, but the evaluator must end up
	//back on the caller's structure: statistics requested right after
	//must describe the real model, not the throwaway.
	S := weightTestStructure(Te)
	data := &trackingData{scaledData: scaledData{factor: 2}}
	W := NewWeights(true, 1.0, 1.0)
	if err := W.ComputeWeight(S, data, &scaledRestraints{factor: 1}); err != nil {
		Te.Fatal(err)
	}
	if data.last != S {
		Te.Error("The evaluator was left pointing at the shaken copy")
	}
}

func TestFilteredNormOutliers(Te *testing.T) {
	//ten atoms with unit gradient norm and one with a hundred times
	//that: the mean is 10, the outlier exceeds six times it and must be
	//dropped.
	data := make([]float64, 33)
	for i := 0; i < 10; i++ {
		data[i*3] = 1
	}
	data[30] = 100
	g, err := v3.NewMatrix(data)
	if err != nil {
		Te.Fatal(err)
	}
	got := filteredNorm(g)
	want := math.Sqrt(10)
	if math.Abs(got-want) > 1e-12 {
		Te.Errorf("Expected %f, got %f", want, got)
	}
	//scaling the gradient scales the norm but not the mask.
	g.Scale(7, g)
	if math.Abs(filteredNorm(g)-7*want) > 1e-9 {
		Te.Error("Filtered norm is not scale invariant in the mask")
	}
}

func TestProvidedWeightFreezesEverything(Te *testing.T) {
	S := weightTestStructure(Te)
	W := NewWeights(true, 1.0, 1.0, 0.33)
	if !W.WeightWasProvided {
		Te.Fatal("Expected the weight to be marked as provided")
	}
	if err := W.ComputeWeight(S, &scaledData{factor: 6}, &scaledRestraints{factor: 2}); err != nil {
		Te.Fatal(err)
	}
	if W.DataWeight != 0.33 {
		Te.Error("ComputeWeight overrode a provided weight")
	}
	if W.Adjust(0.3, 0.5, 0.5, 0.03, 5.0, 2.0) {
		Te.Error("Adjust acted on a provided weight")
	}
	if len(W.History) != 0 {
		Te.Error("Adjust recorded history for a provided weight")
	}
	W.ScaleRestraintsWeight()
	if W.RestraintsWeight != 1.0 || W.RestraintsWeightScale != 1.0 {
		Te.Error("Scaling acted on a provided weight")
	}
}

func TestAdjustBranches(Te *testing.T) {
	//one scenario per rule, each starting from a fresh scale of 1.
	type scenario struct {
		rWork, rFree, bondRMSD float64
		wantScale              float64
	}
	scenarios := []scenario{
		{0.20, 0.22, 0.10, 2.0},  //distorted geometry: scale up
		{0.25, 0.20, 0.01, 0.5},  //r_free below r_work: scale down
		{0.20, 0.22, 0.01, 0.5},  //sound geometry, narrow gap: scale down
		{0.20, 0.29, 0.01, 2.0},  //gap too wide: scale up
	}
	for i, sc := range scenarios {
		W := NewWeights(true, 1.0, 1.0)
		adjusted := W.Adjust(sc.rWork, sc.rFree, sc.bondRMSD, 0.03, 5.0, 2.0)
		if !adjusted {
			Te.Errorf("Scenario %d: expected an adjustment", i)
		}
		if math.Abs(W.RestraintsWeightScale-sc.wantScale) > 1e-12 {
			Te.Errorf("Scenario %d: expected scale %f, got %f", i, sc.wantScale, W.RestraintsWeightScale)
		}
		if len(W.History) != 1 {
			Te.Errorf("Scenario %d: expected one history record", i)
		}
		if W.History[0].RWork != round4(sc.rWork) || W.History[0].RFree != round4(sc.rFree) {
			Te.Errorf("Scenario %d: history holds wrong statistics", i)
		}
	}
}

func TestAdjustSingleRule(Te *testing.T) {
	//a distorted geometry with r_free below r_work triggers both the
	//first and second rules' conditions, but only the first may act.
	W := NewWeights(true, 1.0, 1.0)
	W.Adjust(0.25, 0.20, 0.10, 0.03, 5.0, 2.0)
	if W.RestraintsWeightScale != 2.0 {
		Te.Errorf("Expected only the geometry rule to act, scale is %f", W.RestraintsWeightScale)
	}
}

func TestAdjustHistoryRounding(Te *testing.T) {
	W := NewWeights(true, 1.0, 1.0)
	W.Adjust(0.123456789, 0.234567891, 0.01, 0.03, 5.0, 2.0)
	if W.History[0].RWork != 0.1235 || W.History[0].RFree != 0.2346 {
		Te.Errorf("History not rounded to four decimals: %v", W.History[0])
	}
}

func TestScaleRestraintsWeight(Te *testing.T) {
	W := NewWeights(true, 1.5, 1.0)
	W.ScaleRestraintsWeight()
	if W.RestraintsWeightScale != 4.0 {
		Te.Errorf("Expected scale 4, got %f", W.RestraintsWeightScale)
	}
	if W.RestraintsWeight != 1.5 {
		Te.Errorf("The base restraints weight must stay fixed, got %f", W.RestraintsWeight)
	}
	W.ScaleRestraintsWeight()
	if W.RestraintsWeightScale != 16.0 {
		Te.Errorf("Expected scale 16 after a second escalation, got %f", W.RestraintsWeightScale)
	}
	WP := NewWeights(true, 1.5, 1.0, 0.25)
	WP.ScaleRestraintsWeight()
	if WP.RestraintsWeightScale != 1.0 {
		Te.Error("A provided weight must freeze the scale")
	}
}

//fixedDeviator hands back canned bond deviations.
type fixedDeviator struct {
	devs []float64
}

func (f *fixedDeviator) BondDeviations(sites *v3.Matrix, selection []int) ([]float64, error) {
	return f.devs, nil
}

func TestBondsRMSD(Te *testing.T) {
	S := weightTestStructure(Te)
	rmsd, err := BondsRMSD(S, &fixedDeviator{devs: []float64{0.03, -0.04}})
	if err != nil {
		Te.Fatal(err)
	}
	want := math.Sqrt((0.03*0.03 + 0.04*0.04) / 2)
	if math.Abs(rmsd-want) > 1e-12 {
		Te.Errorf("Expected %f, got %f", want, rmsd)
	}
	//no non-hydrogen atoms is an error
	atoms := []*qr.Atom{{Name: "H", Symbol: "H", Occupancy: 1}}
	HS, err := qr.NewStructure(atoms, v3.Zeros(1), nil)
	if err != nil {
		Te.Fatal(err)
	}
	_, err = BondsRMSD(HS, &fixedDeviator{})
	if err == nil {
		Te.Error("Expected an error for an all-hydrogen model")
	}
}
