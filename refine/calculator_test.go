/*
 * calculator_test.go, part of goqr.
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
	"testing"

	qr "github.com/rmera/goqr"
	v3 "github.com/rmera/goqr/v3"
)

//quadraticData pulls every coordinate toward zero: target Σx², gradient 2x.
type quadraticData struct {
	rWork, rFree float64
	updates      int
}

func (q *quadraticData) UpdateStructure(S *qr.Structure) error {
	q.updates++
	return nil
}

func (q *quadraticData) TargetAndGradients(sites *v3.Matrix, computeGradients bool) (float64, *v3.Matrix, error) {
	t := 0.0
	f := sites.Flatten()
	for _, v := range f {
		t += v * v
	}
	g := sites.Clone()
	g.Scale(2, g)
	return t, g, nil
}

func (q *quadraticData) RFactors() (float64, float64, error) {
	return q.rWork, q.rFree, nil
}

//constRestraints returns a fixed target and gradient.
type constRestraints struct {
	target float64
	grad   float64
}

func (c *constRestraints) TargetAndGradients(sites *v3.Matrix) (float64, *v3.Matrix, error) {
	g := v3.Zeros(sites.NVecs())
	for i := 0; i < sites.NVecs(); i++ {
		for j := 0; j < 3; j++ {
			g.Set(i, j, c.grad)
		}
	}
	return c.target, g, nil
}

func TestSitesBlend(Te *testing.T) {
	S := weightTestStructure(Te)
	W := NewWeights(false, 2.0, 3.0, 0.5) //data weight 0.5, restraints 2*3
	calc := NewSites(S, &quadraticData{}, &constRestraints{target: 10, grad: 1}, W)
	x := calc.X()
	t, g, err := calc.TargetAndGradients(x)
	if err != nil {
		Te.Fatal(err)
	}
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	wantT := 0.5*sum + 6.0*10
	if math.Abs(t-wantT) > 1e-10 {
		Te.Errorf("Expected target %f, got %f", wantT, t)
	}
	for i, v := range x {
		wantG := 0.5*2*v + 6.0*1
		if math.Abs(g[i]-wantG) > 1e-10 {
			Te.Errorf("Gradient component %d: expected %f, got %f", i, wantG, g[i])
		}
	}
}

func TestSitesSameInputSameOutput(Te *testing.T) {
	S := weightTestStructure(Te)
	W := NewWeights(false, 1.0, 1.0, 1.0)
	calc := NewSites(S, &quadraticData{}, &constRestraints{target: 1, grad: 0.1}, W)
	x := calc.X()
	t1, g1, err := calc.TargetAndGradients(x)
	if err != nil {
		Te.Fatal(err)
	}
	t2, g2, err := calc.TargetAndGradients(x)
	if err != nil {
		Te.Fatal(err)
	}
	if t1 != t2 {
		Te.Errorf("Same parameters, different targets: %f vs %f", t1, t2)
	}
	for i := range g1 {
		if g1[i] != g2[i] {
			Te.Fatal("Same parameters, different gradients")
		}
	}
}

func TestSitesUpdatesEvaluator(Te *testing.T) {
	S := weightTestStructure(Te)
	data := &quadraticData{}
	W := NewWeights(false, 1.0, 1.0, 1.0)
	calc := NewSites(S, data, &constRestraints{}, W)
	if _, _, err := calc.TargetAndGradients(calc.X()); err != nil {
		Te.Fatal(err)
	}
	if data.updates != 1 {
		Te.Errorf("Expected one structure update, got %d", data.updates)
	}
}

//recordingSink keeps the gradients it is handed.
type recordingSink struct {
	data, restraints, total *v3.Matrix
}

func (r *recordingSink) DumpGradients(data, restraints, total *v3.Matrix) error {
	r.data = data
	r.restraints = restraints
	r.total = total
	return nil
}

func TestSitesGradientDump(Te *testing.T) {
	S := weightTestStructure(Te)
	W := NewWeights(false, 1.0, 1.0, 1.0)
	calc := NewSites(S, &quadraticData{}, &constRestraints{target: 1, grad: 0.5}, W)
	sink := new(recordingSink)
	calc.Sink = sink
	_, _, err := calc.TargetAndGradients(calc.X())
	if err == nil {
		Te.Fatal("Expected the dump to stop the evaluation")
	}
	e, ok := err.(Error)
	if !ok || e.Message() != ErrGradientsDumped {
		Te.Errorf("Expected a gradients-dumped error, got %v", err)
	}
	if sink.data == nil || sink.restraints == nil || sink.total == nil {
		Te.Error("Sink did not receive all three gradients")
	}
}

func TestSitesOpt(Te *testing.T) {
	S := weightTestStructure(Te)
	calc := NewSitesOpt(S, &constRestraints{target: 7, grad: 0.25})
	t, g, err := calc.TargetAndGradients(calc.X())
	if err != nil {
		Te.Fatal(err)
	}
	if t != 7 {
		Te.Errorf("Expected target 7, got %f", t)
	}
	for _, v := range g {
		if v != 0.25 {
			Te.Fatal("Restraints gradient not passed through")
		}
	}
}

//uisoData is a displacement-parameter evaluator with a quadratic well at
//a preset vector.
type uisoData struct {
	center []float64
}

func (u *uisoData) UpdateStructure(S *qr.Structure) error { return nil }

func (u *uisoData) TargetAndGradientsUIso(uiso []float64) (float64, []float64, error) {
	t := 0.0
	g := make([]float64, len(uiso))
	for i, v := range uiso {
		d := v - u.center[i]
		t += d * d
		g[i] = 2 * d
	}
	return t, g, nil
}

func (u *uisoData) RFactors() (float64, float64, error) { return 0.2, 0.25, nil }

func TestADPCalculator(Te *testing.T) {
	S := weightTestStructure(Te)
	calc := NewADP(S, &uisoData{center: []float64{1, 1, 1, 1}})
	x := calc.X()
	if len(x) != S.Len() {
		Te.Fatalf("Expected %d parameters, got %d", S.Len(), len(x))
	}
	t, g, err := calc.TargetAndGradients(x)
	if err != nil {
		Te.Fatal(err)
	}
	if math.Abs(t-4) > 1e-12 { //all displacements start at 0, center at 1
		Te.Errorf("Expected target 4, got %f", t)
	}
	if g[0] != -2 {
		Te.Errorf("Expected gradient -2, got %f", g[0])
	}
	err = calc.CalculateWeight()
	if err == nil {
		Te.Fatal("Expected weight estimation to be unsupported")
	}
	if e, ok := err.(Error); !ok || e.Message() != ErrNotSupported {
		Te.Errorf("Expected a not-supported error, got %v", err)
	}
}
