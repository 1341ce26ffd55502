/*
 * v3.go, part of goqr.
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

//Package v3 wraps the gonum dense matrix into a container for sets of
//vectors in 3D space, i.e. Cartesian coordinates or gradients, one row
//vector per atom. It carries only the facilities needed by the refinement
//engine.
package v3

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

//Matrix is a set of vectors in 3D space. Within the package it is
//understood that a "vector" is a row, i.e. the Cartesian coordinates of a
//point, or the gradient components for one atom.
type Matrix struct {
	*mat.Dense
}

//NewMatrix generates and returns a Matrix with 3 columns from data.
func NewMatrix(data []float64) (*Matrix, error) {
	const cols int = 3
	l := len(data)
	rows := l / cols
	if l == 0 {
		return nil, Error{"Empty or nil data given", []string{"NewMatrix"}, true}
	}
	if l%cols != 0 {
		return nil, Error{fmt.Sprintf("Input slice length %d not divisible by %d", l, cols), []string{"NewMatrix"}, true}
	}
	r := mat.NewDense(rows, cols, data)
	return &Matrix{r}, nil
}

//Zeros returns a Matrix of vecs vectors, all set to zero.
func Zeros(vecs int) *Matrix {
	return &Matrix{mat.NewDense(vecs, 3, nil)}
}

//Dense2Matrix wraps a gonum Dense (which must have 3 columns) into a Matrix.
func Dense2Matrix(A *mat.Dense) *Matrix {
	return &Matrix{A}
}

//Matrix2Dense returns the gonum Dense underlying A.
func Matrix2Dense(A *Matrix) *mat.Dense {
	return A.Dense
}

//NVecs returns the number of vectors in the matrix.
func (F *Matrix) NVecs() int {
	r, _ := F.Dims()
	return r
}

//VecView returns a view of the ith vector of the matrix. Changes in the
//view are reflected in F and vice-versa.
func (F *Matrix) VecView(i int) *Matrix {
	r := F.Dense.Slice(i, i+1, 0, 3).(*mat.Dense)
	return &Matrix{r}
}

//Clone returns a deep copy of the receiver.
func (F *Matrix) Clone() *Matrix {
	return &Matrix{mat.DenseCopyOf(F.Dense)}
}

//Flatten returns a newly allocated flat slice with the contents of the
//matrix, row after row. Useful to communicate with optimizers, which tend
//to want plain []float64 parameter vectors.
func (F *Matrix) Flatten() []float64 {
	r, c := F.Dims()
	ret := make([]float64, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			ret[i*c+j] = F.At(i, j)
		}
	}
	return ret
}

//SetFlat fills the matrix, row after row, from the flat slice data.
//It returns an error if the dimensions don't match.
func (F *Matrix) SetFlat(data []float64) error {
	r, c := F.Dims()
	if len(data) != r*c {
		return Error{fmt.Sprintf("Flat slice of length %d given for a %dx%d matrix", len(data), r, c), []string{"SetFlat"}, true}
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			F.Set(i, j, data[i*c+j])
		}
	}
	return nil
}

//Norm returns the Frobenius norm of the whole matrix, i.e. the aggregate
//norm over all vectors.
func (F *Matrix) Norm() float64 {
	return mat.Norm(F.Dense, 2)
}

//VecNorm returns the Euclidean norm of the ith vector.
func (F *Matrix) VecNorm(i int) float64 {
	x := F.At(i, 0)
	y := F.At(i, 1)
	z := F.At(i, 2)
	return math.Sqrt(x*x + y*y + z*z)
}

//Add puts the sum of A and B in the receiver. The three matrices must have
//the same number of vectors.
func (F *Matrix) Add(A, B *Matrix) {
	F.Dense.Add(A.Dense, B.Dense)
}

//Sub puts A minus B in the receiver.
func (F *Matrix) Sub(A, B *Matrix) {
	F.Dense.Sub(A.Dense, B.Dense)
}

//Scale puts A scaled by v in the receiver.
func (F *Matrix) Scale(v float64, A *Matrix) {
	F.Dense.Scale(v, A.Dense)
}

//Errors

//Error is the concrete error type for the package. It implements goqr's
//Error interface.
type Error struct {
	message  string
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("goqr/v3 error: %s", err.message)
}

//Decorate adds new information to the error, and returns the current
//decoration.
func (E Error) Decorate(deco string) []string {
	//The receiver is not a pointer but E.deco is a slice, hence a pointer
	//itself, so this still works.
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

//Critical returns true if the error is critical, false otherwise.
func (err Error) Critical() bool { return err.critical }
