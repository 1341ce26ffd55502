/*
 * restart_test.go, part of goqr.
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
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRestartRoundTrip(Te *testing.T) {
	S := weightTestStructure(Te)
	W := NewWeights(true, 1.0, 1.0)
	W.DataWeight = 0.37
	W.Adjust(0.25, 0.28, 0.05, 0.03, 5.0, 2.0)
	stats := FitStatistics{RWork: 0.25, RFree: 0.28}
	name := filepath.Join(Te.TempDir(), "session.rst")
	if err := WriteRestart(name, NewRestart(S, W, stats, 3)); err != nil {
		Te.Fatal(err)
	}
	R, err := ReadRestart(name)
	if err != nil {
		Te.Fatal(err)
	}
	if R.Cycle != 3 || R.Stats != stats {
		Te.Error("Cycle or statistics lost in the round trip")
	}
	S2, err := R.Structure()
	if err != nil {
		Te.Fatal(err)
	}
	if S2.Len() != S.Len() {
		Te.Fatalf("Expected %d atoms, got %d", S.Len(), S2.Len())
	}
	for i := 0; i < S.Len(); i++ {
		if S2.Atoms[i].Symbol != S.Atoms[i].Symbol {
			Te.Error("Atom data lost in the round trip")
		}
		for j := 0; j < 3; j++ {
			if S2.Coords.At(i, j) != S.Coords.At(i, j) {
				Te.Error("Coordinates lost in the round trip")
			}
		}
	}
	//the reloaded weights must make the same next decision as the
	//originals.
	W2 := R.Weights
	if W2.DataWeight != W.DataWeight || W2.RestraintsWeightScale != W.RestraintsWeightScale {
		Te.Fatal("Weights lost in the round trip")
	}
	a1 := W.Adjust(0.25, 0.28, 0.05, 0.03, 5.0, 2.0)
	a2 := W2.Adjust(0.25, 0.28, 0.05, 0.03, 5.0, 2.0)
	if a1 != a2 || W.RestraintsWeightScale != W2.RestraintsWeightScale {
		Te.Error("Reloaded weights diverge from the originals")
	}
}

func TestRestartBadFile(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "garbage.rst")
	if err := os.WriteFile(name, []byte("not a restart bundle"), 0644); err != nil {
		Te.Fatal(err)
	}
	if _, err := ReadRestart(name); err == nil {
		Te.Error("Expected an error for a corrupt bundle")
	}
	if _, err := ReadRestart(filepath.Join(Te.TempDir(), "missing.rst")); err == nil {
		Te.Error("Expected an error for a missing bundle")
	}
}

func TestResume(Te *testing.T) {
	S := weightTestStructure(Te)
	W := NewWeights(true, 1.0, 1.0, 0.5)
	R := NewRestart(S, W, FitStatistics{RWork: 0.3, RFree: 0.33}, 2)
	h := ccRestraints()
	D, err := Resume(R, &quadraticData{rWork: 0.3, rFree: 0.33}, h, h, DefaultParams(), nil)
	if err != nil {
		Te.Fatal(err)
	}
	if D.Weights().DataWeight != 0.5 {
		Te.Error("Resumed driver lost the weights")
	}
	if D.Stats().RWork != 0.3 {
		Te.Error("Resumed driver lost the statistics")
	}
}

func TestResumeRefine(Te *testing.T) {
	//running Refine on a resumed driver must continue the stored
	//session: estimated weight, scale history and cycle counter all
	//carry over instead of being rebuilt from scratch.
	S := diatomic(Te, 1.8)
	W := NewWeights(true, 1.0, 1.0)
	W.DataWeight = 0.37
	W.RestraintsWeightScale = 8.0
	W.Adjust(0.25, 0.28, 0.01, 0.03, 5.0, 2.0)
	restored := W.History[0]
	R := NewRestart(S, W, FitStatistics{RWork: 0.25, RFree: 0.28}, 2)
	h := ccRestraints()
	D, err := Resume(R, &quadraticData{rWork: 0.20, rFree: 0.22}, h, h, DefaultParams(), nil)
	if err != nil {
		Te.Fatal(err)
	}
	if err := D.Refine(context.Background()); err != nil {
		Te.Fatal(err)
	}
	W2 := D.Weights()
	if W2.DataWeight != 0.37 {
		Te.Errorf("The restored data weight was discarded, got %f", W2.DataWeight)
	}
	if len(W2.History) < 2 || W2.History[0] != restored {
		Te.Errorf("The restored scale history was reset: %+v", W2.History)
	}
	if D.cycle < 3 {
		Te.Errorf("Expected the loop to continue past the stored cycle, got %d", D.cycle)
	}
}
