/*
 * restart.go, part of goqr.
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
	"encoding/json"
	"os"

	"github.com/klauspost/compress/zstd"
	qr "github.com/rmera/goqr"
	v3 "github.com/rmera/goqr/v3"
	"go.uber.org/zap"
)

//Restart is everything needed to resume a refinement session where it
//left off: the model, the weights with their adjustment history, the last
//statistics and the cycle counter. It is written as zstd-compressed JSON,
//so a stale or half-written file fails loudly on read instead of silently
//resuming from garbage.
type Restart struct {
	Atoms   []*qr.Atom    `json:"atoms"`
	Sites   []float64     `json:"sites"`
	UIso    []float64     `json:"uiso"`
	Weights *Weights      `json:"weights"`
	Stats   FitStatistics `json:"stats"`
	Cycle   int           `json:"cycle"`
}

//NewRestart captures the current session state into a Restart bundle.
//Coordinates and displacements are copied, so the session can keep
//mutating the structure while the bundle is written out.
func NewRestart(S *qr.Structure, w *Weights, stats FitStatistics, cycle int) *Restart {
	return &Restart{
		Atoms:   S.Atoms,
		Sites:   S.SitesVector(),
		UIso:    S.UIsoVector(),
		Weights: w,
		Stats:   stats,
		Cycle:   cycle,
	}
}

//Structure rebuilds the model stored in the bundle.
func (R *Restart) Structure() (*qr.Structure, error) {
	coords, err := v3.NewMatrix(R.Sites)
	if err != nil {
		return nil, errDecorate(err, "Restart.Structure")
	}
	S, err := qr.NewStructure(R.Atoms, coords, R.UIso)
	if err != nil {
		return nil, newError(ErrBadRestart+": "+err.Error(), "Restart.Structure", true)
	}
	return S, nil
}

//WriteRestart writes the bundle to a file, overwriting any previous one.
func WriteRestart(filename string, R *Restart) error {
	out, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer out.Close()
	zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return err
	}
	err = json.NewEncoder(zw).Encode(R)
	if err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

//ReadRestart reads a bundle written by WriteRestart and checks its
//consistency.
func ReadRestart(filename string) (*Restart, error) {
	in, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	zr, err := zstd.NewReader(in)
	if err != nil {
		return nil, newError(ErrBadRestart+": "+err.Error(), "ReadRestart", true)
	}
	defer zr.Close()
	R := new(Restart)
	err = json.NewDecoder(zr).Decode(R)
	if err != nil {
		return nil, newError(ErrBadRestart+": "+err.Error(), "ReadRestart", true)
	}
	if len(R.Sites) != 3*len(R.Atoms) || len(R.UIso) != len(R.Atoms) {
		return nil, newError(ErrBadRestart, "ReadRestart", true)
	}
	return R, nil
}

//Resume reconstructs a Driver from a restart bundle, reattaching the
//evaluators, which a bundle cannot carry. The returned driver keeps the
//stored model, weights, statistics and cycle counter: Refine continues
//the macro-cycle loop where the saved session left it.
func Resume(R *Restart, data qr.DataFitEvaluator, restraints qr.RestraintEvaluator, bonds qr.BondDeviator, params Params, logger *zap.Logger) (*Driver, error) {
	S, err := R.Structure()
	if err != nil {
		return nil, errDecorate(err, "Resume")
	}
	D := NewDriver(S, data, restraints, bonds, params, logger)
	D.weights = R.Weights
	D.stats = R.Stats
	D.cycle = R.Cycle
	return D, nil
}
