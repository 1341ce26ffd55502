/*
 * harmonic.go, part of goqr.
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

//Package restraint provides geometry evaluators for refinement: a
//built-in harmonic bond model, and a wrapper that delegates the energy
//and gradients to an external quantum chemistry program.
package restraint

import (
	"fmt"
	"math"

	qr "github.com/rmera/goqr"
	v3 "github.com/rmera/goqr/v3"
)

//constants from DOI:10.1186/1758-2946-3-33
const (
	tooclose = 0.63
	bondtol  = 0.45
)

//defaultForceConstant is a generic bond stretching constant, in target
//units per square Angstrom. The refinement only cares about the relative
//stiffness of the terms, so one value for all bonds is serviceable.
const defaultForceConstant = 100.0

//A map for assigning covalent radii to elements
//Values from Cordero et al., 2008 (DOI:10.1039/B801115J)
//Note that just common "bio-elements" are present
var symbolCovrad = map[string]float64{
	"H":  0.4, //0.31, lengthened as H bonds are pruned by distance anyway.
	"C":  0.76,
	"O":  0.66,
	"N":  0.71,
	"P":  1.07,
	"S":  1.05,
	"Se": 1.2,
	"K":  2.03,
	"Ca": 1.76,
	"Mg": 1.41,
	"Cl": 1.02,
	"Na": 1.66,
	"Cu": 1.32,
	"Zn": 1.22,
	"Co": 1.5,
	"Fe": 1.52,
	"Mn": 1.61,
	"Cr": 1.39,
	"Si": 1.11,
	"Be": 0.96,
	"F":  0.57,
	"Br": 1.2,
	"I":  1.39,
}

//Bond is one harmonic distance restraint between the atoms with indexes
//I and J: K*(d-Ideal)^2.
type Bond struct {
	I     int
	J     int
	Ideal float64
	K     float64
}

//Harmonic is a restraints evaluator built from pairwise harmonic bond
//terms. It implements both the target-and-gradients side used by the
//optimizer and the bond-deviation side used by the geometry probe.
type Harmonic struct {
	Bonds []Bond
}

//NewHarmonic returns a Harmonic evaluator over the given bonds.
func NewHarmonic(bonds []Bond) *Harmonic {
	return &Harmonic{Bonds: bonds}
}

//GuessBonds builds a Harmonic evaluator for S with a simple distance
//criterium, similar to that described in DOI:10.1186/1758-2946-3-33: two
//atoms are bonded if their distance falls between a clash cutoff and the
//sum of their covalent radii plus a tolerance. The current distance is
//taken as the ideal one, so the restraints hold the input geometry.
//It can get slow for large systems, it's really not thought for
//macromolecules.
func GuessBonds(S *qr.Structure) (*Harmonic, error) {
	tot := S.Len()
	bonds := make([]Bond, 0, tot)
	for i := 0; i < tot; i++ {
		cov1 := symbolCovrad[S.Atoms[i].Symbol]
		if cov1 == 0 {
			err := new(Error)
			err.message = fmt.Sprintf("Couldn't find the covalent radii for %s %d", S.Atoms[i].Symbol, i)
			err.Decorate("GuessBonds")
			return nil, err
		}
		for j := i + 1; j < tot; j++ {
			cov2 := symbolCovrad[S.Atoms[j].Symbol]
			if cov2 == 0 {
				err := new(Error)
				err.message = fmt.Sprintf("Couldn't find the covalent radii for %s %d", S.Atoms[j].Symbol, j)
				err.Decorate("GuessBonds")
				return nil, err
			}
			d := distance(S.Coords, i, j)
			if d < cov1+cov2+bondtol && d > tooclose {
				bonds = append(bonds, Bond{I: i, J: j, Ideal: d, K: defaultForceConstant})
			}
		}
	}
	return NewHarmonic(bonds), nil
}

func distance(coords *v3.Matrix, i, j int) float64 {
	dx := coords.At(i, 0) - coords.At(j, 0)
	dy := coords.At(i, 1) - coords.At(j, 1)
	dz := coords.At(i, 2) - coords.At(j, 2)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

//TargetAndGradients returns the total harmonic energy of the restraints
//at the given coordinates and its analytic gradient.
func (H *Harmonic) TargetAndGradients(sites *v3.Matrix) (float64, *v3.Matrix, error) {
	if sites == nil {
		err := new(Error)
		err.message = NilCoordinates
		err.critical = true
		err.Decorate("TargetAndGradients")
		return 0, nil, err
	}
	n := sites.NVecs()
	g := v3.Zeros(n)
	t := 0.0
	for _, b := range H.Bonds {
		if b.I >= n || b.J >= n {
			err := new(Error)
			err.message = fmt.Sprintf("%s: bond %d-%d outside the %d-atom model", BadBond, b.I, b.J, n)
			err.critical = true
			err.Decorate("TargetAndGradients")
			return 0, nil, err
		}
		d := distance(sites, b.I, b.J)
		if d == 0 {
			continue //coincident atoms give no usable direction.
		}
		dev := d - b.Ideal
		t += b.K * dev * dev
		f := 2 * b.K * dev / d
		for k := 0; k < 3; k++ {
			diff := sites.At(b.I, k) - sites.At(b.J, k)
			g.Set(b.I, k, g.At(b.I, k)+f*diff)
			g.Set(b.J, k, g.At(b.J, k)-f*diff)
		}
	}
	return t, g, nil
}

//BondDeviations returns the deviations of the restrained distances from
//their ideal values, restricted to bonds whose two atoms are both in the
//selection.
func (H *Harmonic) BondDeviations(sites *v3.Matrix, selection []int) ([]float64, error) {
	if sites == nil {
		err := new(Error)
		err.message = NilCoordinates
		err.critical = true
		err.Decorate("BondDeviations")
		return nil, err
	}
	sel := make(map[int]bool, len(selection))
	for _, i := range selection {
		sel[i] = true
	}
	devs := make([]float64, 0, len(H.Bonds))
	for _, b := range H.Bonds {
		if !sel[b.I] || !sel[b.J] {
			continue
		}
		devs = append(devs, distance(sites, b.I, b.J)-b.Ideal)
	}
	return devs, nil
}
