/*
 * xyz.go, part of goqr.
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
	"io"
	"os"
	"strconv"
	"strings"

	v3 "github.com/rmera/goqr/v3"
)

//XYZRead reads an XYZ-formatted file and returns a Structure with the
//atoms and coordinates found. Displacement parameters are initialized to
//zero, occupancies to one.
func XYZRead(xyzname string) (*Structure, error) {
	xyzfile, err := os.Open(xyzname)
	if err != nil {
		return nil, err
	}
	defer xyzfile.Close()
	S, err := xyzReadFrom(bufio.NewReader(xyzfile))
	if err != nil {
		return nil, fmt.Errorf("goqr: File %s: %s", xyzname, err.Error())
	}
	return S, nil
}

func xyzReadFrom(xyz *bufio.Reader) (*Structure, error) {
	line, err := xyz.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("Ill formatted XYZ file")
	}
	natoms, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || natoms <= 0 {
		return nil, fmt.Errorf("Ill formatted XYZ file")
	}
	if _, err = xyz.ReadString('\n'); err != nil { //the title line, contents ignored.
		return nil, fmt.Errorf("Ill formatted XYZ file")
	}
	atoms := make([]*Atom, natoms)
	coords := make([]float64, natoms*3)
	for i := 0; i < natoms; i++ {
		line, err = xyz.ReadString('\n')
		if err != nil && !(err == io.EOF && line != "") {
			return nil, fmt.Errorf("Line %d missing or unreadable", i)
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, fmt.Errorf("Line %d ill formed", i)
		}
		atoms[i] = new(Atom)
		atoms[i].Symbol = fields[0]
		atoms[i].Name = fields[0]
		atoms[i].Occupancy = 1.0
		for j := 0; j < 3; j++ {
			coords[i*3+j], err = strconv.ParseFloat(fields[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("Line %d: %s", i, err.Error())
			}
		}
	}
	mcoords, err := v3.NewMatrix(coords)
	if err != nil {
		return nil, err
	}
	return NewStructure(atoms, mcoords, nil)
}

//XYZWrite writes the structure S in XYZ format to a file named xyzname,
//which is created, or overwritten if it exists. The title line carries
//the optional comment.
func XYZWrite(S *Structure, xyzname string, comment string) error {
	err := S.Corrupted()
	if err != nil {
		return err
	}
	out, err := os.Create(xyzname)
	if err != nil {
		return err
	}
	defer out.Close()
	return xyzWriteTo(out, S, comment)
}

func xyzWriteTo(out io.Writer, S *Structure, comment string) error {
	_, err := fmt.Fprintf(out, "%-4d\n%s\n", S.Len(), comment)
	if err != nil {
		return err
	}
	for i, at := range S.Atoms {
		_, err = fmt.Fprintf(out, "%-2s  %8.3f%8.3f%8.3f \n", at.Symbol, S.Coords.At(i, 0), S.Coords.At(i, 1), S.Coords.At(i, 2))
		if err != nil {
			return err
		}
	}
	return nil
}
