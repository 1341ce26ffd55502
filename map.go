/*
 * map.go, part of goqr.
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
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

//DensityMap is a scalar field sampled on a regular orthogonal grid, used
//as the target of real-space refinement. Data is stored x-fastest, i.e.
//the value at grid point (i,j,k) is Data[i + Nx*(j + Ny*k)].
type DensityMap struct {
	Data    []float64
	Nx      int
	Ny      int
	Nz      int
	Origin  [3]float64
	Spacing float64
}

//NewDensityMap builds a DensityMap and checks that the data matches the
//given grid dimensions.
func NewDensityMap(data []float64, nx, ny, nz int, origin [3]float64, spacing float64) (*DensityMap, error) {
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("goqr: Non-positive map dimensions %dx%dx%d", nx, ny, nz)
	}
	if len(data) != nx*ny*nz {
		return nil, fmt.Errorf("goqr: Map data has %d values, grid needs %d", len(data), nx*ny*nz)
	}
	if spacing <= 0 {
		return nil, fmt.Errorf("goqr: Non-positive map spacing %f", spacing)
	}
	M := &DensityMap{Data: data, Nx: nx, Ny: ny, Nz: nz, Origin: origin, Spacing: spacing}
	return M, nil
}

//DensityMapRead reads a density map from a whitespace-separated text
//file: first the three grid dimensions, then the origin, the spacing, and
//finally the grid values in x-fastest order. Lines starting with # are
//comments.
func DensityMapRead(mapname string) (*DensityMap, error) {
	f, err := os.Open(mapname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	values := make([]float64, 0, 1000)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) > 0 && line[0] == '#' {
			continue
		}
		for _, word := range strings.Fields(line) {
			v, err := strconv.ParseFloat(word, 64)
			if err != nil {
				return nil, fmt.Errorf("goqr: File %s: %s", mapname, err.Error())
			}
			values = append(values, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(values) < 7 {
		return nil, fmt.Errorf("goqr: File %s: Truncated map header", mapname)
	}
	nx, ny, nz := int(values[0]), int(values[1]), int(values[2])
	origin := [3]float64{values[3], values[4], values[5]}
	spacing := values[6]
	return NewDensityMap(values[7:], nx, ny, nz, origin, spacing)
}

func (M *DensityMap) at(i, j, k int) float64 {
	return M.Data[i+M.Nx*(j+M.Ny*k)]
}

//Interpolate returns the trilinearly interpolated map value at the
//Cartesian point (x,y,z). Points outside the grid evaluate to 0, so a
//structure drifting off the map simply stops feeling it.
func (M *DensityMap) Interpolate(x, y, z float64) float64 {
	fx := (x - M.Origin[0]) / M.Spacing
	fy := (y - M.Origin[1]) / M.Spacing
	fz := (z - M.Origin[2]) / M.Spacing
	i := int(math.Floor(fx))
	j := int(math.Floor(fy))
	k := int(math.Floor(fz))
	if i < 0 || j < 0 || k < 0 || i >= M.Nx-1 || j >= M.Ny-1 || k >= M.Nz-1 {
		return 0
	}
	tx := fx - float64(i)
	ty := fy - float64(j)
	tz := fz - float64(k)
	c00 := M.at(i, j, k)*(1-tx) + M.at(i+1, j, k)*tx
	c10 := M.at(i, j+1, k)*(1-tx) + M.at(i+1, j+1, k)*tx
	c01 := M.at(i, j, k+1)*(1-tx) + M.at(i+1, j, k+1)*tx
	c11 := M.at(i, j+1, k+1)*(1-tx) + M.at(i+1, j+1, k+1)*tx
	c0 := c00*(1-ty) + c10*ty
	c1 := c01*(1-ty) + c11*ty
	return c0*(1-tz) + c1*tz
}
