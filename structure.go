/*
 * structure.go, part of goqr.
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

import (
	"fmt"
	"math"
	"math/rand"

	v3 "github.com/rmera/goqr/v3"
)

//Atom contains the per-atom data of a model, except for the coordinates,
//which live in a v3.Matrix, and the isotropic displacement parameters,
//which are in a separate slice. Both are kept in the Structure.
type Atom struct {
	Name      string  `json:"name"`
	Symbol    string  `json:"symbol"`
	Occupancy float64 `json:"occupancy"`
}

//Copy returns a copy of the Atom object.
func (A *Atom) Copy() *Atom {
	if A == nil {
		panic("Attempted to copy a nil atom")
	}
	Newat := new(Atom)
	Newat.Name = A.Name
	Newat.Symbol = A.Symbol
	Newat.Occupancy = A.Occupancy
	return Newat
}

//Hydrogen returns true if the atom is a hydrogen or deuterium.
func (A *Atom) Hydrogen() bool {
	return A.Symbol == "H" || A.Symbol == "D"
}

//Structure is a refinable model: an ordered set of atoms, their Cartesian
//coordinates and their isotropic displacement parameters. A Structure is
//owned by exactly one refinement session at a time, which mutates it in
//place; it must not be shared across concurrent optimizations.
type Structure struct {
	Atoms  []*Atom
	Coords *v3.Matrix
	UIso   []float64
}

//NewStructure makes a Structure from atoms, coords and the isotropic
//displacements uiso, and returns it. A nil uiso is replaced by zeroes. It
//returns an error if the slices are nil or their sizes don't match.
func NewStructure(atoms []*Atom, coords *v3.Matrix, uiso []float64) (*Structure, error) {
	if atoms == nil {
		return nil, fmt.Errorf("goqr: Supplied a nil atom slice")
	}
	if coords == nil {
		return nil, fmt.Errorf("goqr: Supplied nil coordinates")
	}
	if coords.NVecs() != len(atoms) {
		return nil, fmt.Errorf("goqr: Inconsistent atoms/coordinates: %d vs %d", len(atoms), coords.NVecs())
	}
	if uiso == nil {
		uiso = make([]float64, len(atoms))
	}
	if len(uiso) != len(atoms) {
		return nil, fmt.Errorf("goqr: Inconsistent atoms/displacements: %d vs %d", len(atoms), len(uiso))
	}
	S := new(Structure)
	S.Atoms = atoms
	S.Coords = coords
	S.UIso = uiso
	return S, nil
}

//Len returns the number of atoms in the structure.
func (S *Structure) Len() int {
	return len(S.Atoms)
}

//Corrupted checks the internal consistency of the structure and returns
//an error if the atoms, coordinates and displacements don't match.
func (S *Structure) Corrupted() error {
	if S.Atoms == nil || S.Coords == nil {
		return fmt.Errorf("goqr: Nil atoms or coordinates in structure")
	}
	if S.Coords.NVecs() != len(S.Atoms) || len(S.UIso) != len(S.Atoms) {
		return fmt.Errorf("goqr: Inconsistent structure: %d atoms, %d coordinates, %d displacements", len(S.Atoms), S.Coords.NVecs(), len(S.UIso))
	}
	return nil
}

//Copy returns a deep copy of the structure. The copy shares nothing with
//the original, so shaking or refining it leaves the original untouched.
func (S *Structure) Copy() *Structure {
	atoms := make([]*Atom, len(S.Atoms))
	for i, v := range S.Atoms {
		atoms[i] = v.Copy()
	}
	uiso := make([]float64, len(S.UIso))
	copy(uiso, S.UIso)
	ret, err := NewStructure(atoms, S.Coords.Clone(), uiso)
	if err != nil {
		panic(fmt.Sprintf("Structure copy error: %s", err.Error())) //copying a corrupted structure means the program is wrong.
	}
	return ret
}

//NotHydrogen returns the indexes of all non-hydrogen atoms, in order.
func (S *Structure) NotHydrogen() []int {
	ret := make([]int, 0, len(S.Atoms))
	for i, v := range S.Atoms {
		if !v.Hydrogen() {
			ret = append(ret, i)
		}
	}
	return ret
}

//Shake displaces every atom of the structure, in place, by a random vector
//of mean length mean. The direction is uniform on the sphere and the
//length uniform in [0, 2*mean]. Randomness comes only from r, so a fixed
//seed reproduces the same perturbation bit by bit.
func (S *Structure) Shake(mean float64, r *rand.Rand) {
	for i := 0; i < S.Coords.NVecs(); i++ {
		//Marsaglia-style direction from three normals.
		dx := r.NormFloat64()
		dy := r.NormFloat64()
		dz := r.NormFloat64()
		n := math.Sqrt(dx*dx + dy*dy + dz*dz)
		if n == 0 {
			continue //astronomically unlikely, just skip the atom.
		}
		d := 2 * mean * r.Float64()
		S.Coords.Set(i, 0, S.Coords.At(i, 0)+d*dx/n)
		S.Coords.Set(i, 1, S.Coords.At(i, 1)+d*dy/n)
		S.Coords.Set(i, 2, S.Coords.At(i, 2)+d*dz/n)
	}
}

//SitesVector returns a newly allocated flat parameter vector (3 values
//per atom) with the current coordinates.
func (S *Structure) SitesVector() []float64 {
	return S.Coords.Flatten()
}

//SetSitesVector writes the flat parameter vector x (3 values per atom)
//into the structure's coordinates.
func (S *Structure) SetSitesVector(x []float64) error {
	err := S.Coords.SetFlat(x)
	if err != nil {
		return errDecorate(err, "SetSitesVector")
	}
	return nil
}

//UIsoVector returns a newly allocated copy of the isotropic displacement
//parameters, one value per atom.
func (S *Structure) UIsoVector() []float64 {
	ret := make([]float64, len(S.UIso))
	copy(ret, S.UIso)
	return ret
}

//SetUIsoVector writes the flat parameter vector x (one value per atom)
//into the structure's displacement parameters.
func (S *Structure) SetUIsoVector(x []float64) error {
	if len(x) != len(S.UIso) {
		return fmt.Errorf("goqr: SetUIsoVector: %d values given for %d atoms", len(x), len(S.UIso))
	}
	copy(S.UIso, x)
	return nil
}

//errDecorate asserts that err implements the goqr Error interface and
//decorates it with the caller's name before returning it. Using it on any
//other error will panic, which is intended: it flags a programming error.
func errDecorate(err error, caller string) error {
	err2 := err.(Error)
	err2.Decorate(caller)
	return err2
}
