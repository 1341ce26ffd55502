/*
 * structure_test.go, part of goqr.
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

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	v3 "github.com/rmera/goqr/v3"
)

//a three-atom water-like model
func testStructure(Te *testing.T) *Structure {
	atoms := []*Atom{
		{Name: "O", Symbol: "O", Occupancy: 1},
		{Name: "H1", Symbol: "H", Occupancy: 1},
		{Name: "H2", Symbol: "H", Occupancy: 1},
	}
	coords, err := v3.NewMatrix([]float64{
		0, 0, 0,
		0.96, 0, 0,
		-0.24, 0.93, 0,
	})
	if err != nil {
		Te.Fatal(err)
	}
	S, err := NewStructure(atoms, coords, nil)
	if err != nil {
		Te.Fatal(err)
	}
	return S
}

func TestNewStructure(Te *testing.T) {
	S := testStructure(Te)
	if S.Len() != 3 {
		Te.Errorf("Expected 3 atoms, got %d", S.Len())
	}
	if err := S.Corrupted(); err != nil {
		Te.Error(err)
	}
	//mismatched sizes must be rejected
	coords := v3.Zeros(2)
	_, err := NewStructure(S.Atoms, coords, nil)
	if err == nil {
		Te.Error("Expected an error for mismatched atoms/coordinates")
	}
	_, err = NewStructure(S.Atoms, S.Coords, []float64{1})
	if err == nil {
		Te.Error("Expected an error for mismatched displacements")
	}
}

func TestCopyIndependence(Te *testing.T) {
	S := testStructure(Te)
	C := S.Copy()
	C.Coords.Set(0, 0, 42)
	C.Atoms[0].Name = "X"
	C.UIso[0] = 7
	if S.Coords.At(0, 0) == 42 || S.Atoms[0].Name == "X" || S.UIso[0] == 7 {
		Te.Error("Copy shares data with the original")
	}
}

func TestNotHydrogen(Te *testing.T) {
	S := testStructure(Te)
	sel := S.NotHydrogen()
	if len(sel) != 1 || sel[0] != 0 {
		Te.Errorf("Expected selection [0], got %v", sel)
	}
}

func TestShakeDeterminism(Te *testing.T) {
	S1 := testStructure(Te)
	S2 := testStructure(Te)
	S1.Shake(0.2, rand.New(rand.NewSource(1)))
	S2.Shake(0.2, rand.New(rand.NewSource(1)))
	for i := 0; i < S1.Len(); i++ {
		for j := 0; j < 3; j++ {
			if S1.Coords.At(i, j) != S2.Coords.At(i, j) {
				Te.Error("Shake with equal seeds gave different coordinates")
			}
		}
	}
}

func TestShakeMagnitude(Te *testing.T) {
	//the average displacement over many atoms should be close to the
	//requested mean.
	n := 2000
	atoms := make([]*Atom, n)
	for i := range atoms {
		atoms[i] = &Atom{Name: "C", Symbol: "C", Occupancy: 1}
	}
	coords := v3.Zeros(n)
	S, err := NewStructure(atoms, coords, nil)
	if err != nil {
		Te.Fatal(err)
	}
	S.Shake(0.2, rand.New(rand.NewSource(1)))
	total := 0.0
	for i := 0; i < n; i++ {
		total += S.Coords.VecNorm(i)
	}
	avg := total / float64(n)
	fmt.Println("average displacement", avg)
	if math.Abs(avg-0.2) > 0.02 {
		Te.Errorf("Average displacement %f too far from 0.2", avg)
	}
}

func TestSitesVectorRoundTrip(Te *testing.T) {
	S := testStructure(Te)
	x := S.SitesVector()
	x[0] = 3.14
	if err := S.SetSitesVector(x); err != nil {
		Te.Error(err)
	}
	if S.Coords.At(0, 0) != 3.14 {
		Te.Error("SetSitesVector did not write the coordinates")
	}
	if err := S.SetSitesVector(x[:3]); err == nil {
		Te.Error("Expected an error for a wrong-sized vector")
	}
	u := S.UIsoVector()
	u[1] = 0.5
	if err := S.SetUIsoVector(u); err != nil {
		Te.Error(err)
	}
	if S.UIso[1] != 0.5 {
		Te.Error("SetUIsoVector did not write the displacements")
	}
}
