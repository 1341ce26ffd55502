/*
 * driver.go, part of goqr.
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
	"context"
	"math"

	qr "github.com/rmera/goqr"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

//State is the phase a refinement session is in. The driver moves through
//them in order, looping between Optimizing and Reweighting until the
//statistics settle.
type State int

const (
	AwaitingInitialWeight State = iota
	Optimizing
	Reweighting
	Converged
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingInitialWeight:
		return "awaiting-initial-weight"
	case Optimizing:
		return "optimizing"
	case Reweighting:
		return "reweighting"
	case Converged:
		return "converged"
	case Failed:
		return "failed"
	}
	return "unknown"
}

//Params collects the knobs of a refinement run. Zero values are not
//usable: start from DefaultParams and override what you need.
type Params struct {
	Mode                  string  `yaml:"mode"`
	MaxAtoms              int     `yaml:"max_atoms"`
	RefineCycles          int     `yaml:"number_of_refine_cycles"`
	WeightSearchCycles    int     `yaml:"number_of_weight_search_cycles"`
	MicroCycles           int     `yaml:"number_of_micro_cycles"`
	MaxIterations         int     `yaml:"max_iterations"`
	DataWeight            float64 `yaml:"data_weight"`
	RestraintsWeight      float64 `yaml:"restraints_weight"`
	RestraintsWeightScale float64 `yaml:"restraints_weight_scale"`
	ShakeSites            bool    `yaml:"shake_sites"`
	MaxBondRMSD           float64 `yaml:"max_bond_rmsd"`
	MaxRWorkRFreeGap      float64 `yaml:"max_r_work_r_free_gap"`
	RTolerance            float64 `yaml:"r_tolerance"`
	RMSDTolerance         float64 `yaml:"rmsd_tolerance"`
	WeightScaleFactor     float64 `yaml:"weight_scale_factor"`
	EvaluatorRetries      int     `yaml:"evaluator_retries"`
	RestartFile           string  `yaml:"restart_file"`
}

//DefaultParams returns the parameters of a standard refinement run. A
//DataWeight of zero means "estimate it"; anything positive is taken as
//externally provided and freezes the whole weighting machinery.
func DefaultParams() Params {
	return Params{
		Mode:                  "refine",
		MaxAtoms:              15000,
		RefineCycles:          5,
		WeightSearchCycles:    50,
		MicroCycles:           50,
		MaxIterations:         50,
		DataWeight:            0,
		RestraintsWeight:      1.0,
		RestraintsWeightScale: 1.0,
		ShakeSites:            true,
		MaxBondRMSD:           0.03,
		MaxRWorkRFreeGap:      5.0,
		RTolerance:            0.001,
		RMSDTolerance:         0.01,
		WeightScaleFactor:     2.0,
		EvaluatorRetries:      3,
	}
}

//FitStatistics is the pair of crystallographic R factors after a
//macro-cycle. RWork is measured on the reflections used in refinement,
//RFree on the held-out set.
type FitStatistics struct {
	RWork float64 `json:"r_work"`
	RFree float64 `json:"r_free"`
}

//Gap returns the R-factor gap in percentage points. A wide gap means the
//model memorizes the working set; a negative one usually means trouble
//with the free-set bookkeeping.
func (F FitStatistics) Gap() float64 {
	return (F.RFree - F.RWork) * 100
}

//Driver runs a full refinement or optimization session over one
//structure. It owns the structure for the duration of the run. A nil
//Logger is replaced by a no-op one.
type Driver struct {
	S          *qr.Structure
	Data       qr.DataFitEvaluator
	Restraints qr.RestraintEvaluator
	Bonds      qr.BondDeviator
	Params     Params
	Logger     *zap.Logger

	weights *Weights
	state   State
	stats   FitStatistics
	cycle   int
}

//NewDriver returns a Driver over the given structure and collaborators.
func NewDriver(S *qr.Structure, data qr.DataFitEvaluator, restraints qr.RestraintEvaluator, bonds qr.BondDeviator, params Params, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{S: S, Data: data, Restraints: restraints, Bonds: bonds, Params: params, Logger: logger}
}

//State returns the current phase of the session.
func (D *Driver) State() State { return D.state }

//Stats returns the R factors from the last completed macro-cycle.
func (D *Driver) Stats() FitStatistics { return D.stats }

//Weights returns the weights in effect, or nil before the first cycle.
func (D *Driver) Weights() *Weights { return D.weights }

func (D *Driver) checkStructure() error {
	if err := D.S.Corrupted(); err != nil {
		D.state = Failed
		return newError(ErrInvalidStructure, "Driver", true)
	}
	if D.S.Len() > D.Params.MaxAtoms {
		D.state = Failed
		return newError(ErrTooManyAtoms, "Driver", true)
	}
	return nil
}

//initWeights builds the session weights from the parameters, estimating
//the data weight through the calculator unless one was provided.
func (D *Driver) initWeights(calc *Sites) error {
	p := D.Params
	if p.DataWeight > 0 {
		D.weights = NewWeights(p.ShakeSites, p.RestraintsWeight, p.RestraintsWeightScale, p.DataWeight)
		calc.W = D.weights
		return nil
	}
	D.weights = NewWeights(p.ShakeSites, p.RestraintsWeight, p.RestraintsWeightScale)
	calc.W = D.weights
	return calc.CalculateWeight()
}

//rFactors queries the data evaluator with retries: evaluator processes
//backed by external programs fail transiently often enough that a single
//attempt would abort too many runs.
func (D *Driver) rFactors() (FitStatistics, error) {
	var err error
	var rw, rf float64
	for i := 0; i <= D.Params.EvaluatorRetries; i++ {
		rw, rf, err = D.Data.RFactors()
		if err == nil {
			return FitStatistics{RWork: rw, RFree: rf}, nil
		}
		D.Logger.Warn("R-factor evaluation failed, retrying", zap.Int("attempt", i+1), zap.Error(err))
	}
	return FitStatistics{}, errDecorate(wrapEvaluator(err, "rFactors"), "Driver.rFactors")
}

//minimize runs up to MicroCycles rounds of the given method on the
//calculator's target, each round capped at MaxIterations, stopping early
//once the parameters stop moving. It returns the RMS parameter shift of
//the whole call.
func (D *Driver) minimize(c Calculator, method optimize.Method) (float64, error) {
	x0 := c.X()
	var evalErr error
	p := optimize.Problem{
		Func: func(x []float64) float64 {
			t, _, err := c.TargetAndGradients(x)
			if err != nil {
				evalErr = err
				return math.Inf(1)
			}
			return t
		},
		Grad: func(grad, x []float64) {
			_, g, err := c.TargetAndGradients(x)
			if err != nil {
				evalErr = err
				return
			}
			copy(grad, g)
		},
	}
	settings := &optimize.Settings{MajorIterations: D.Params.MaxIterations}
	x := c.X()
	for micro := 0; micro < D.Params.MicroCycles; micro++ {
		prev := make([]float64, len(x))
		copy(prev, x)
		res, err := optimize.Minimize(p, x, settings, method)
		if evalErr != nil {
			return 0, evalErr
		}
		if err != nil && !tolerableOptimizeError(err) {
			return 0, wrapEvaluator(err, "Driver.minimize")
		}
		if res != nil {
			x = res.X
		}
		if rmsShift(prev, x) < D.Params.RMSDTolerance {
			break
		}
	}
	if err := c.Apply(x); err != nil {
		return 0, errDecorate(err, "Driver.minimize")
	}
	return rmsShift(x0, x), nil
}

func rmsShift(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	return floats.Distance(a, b, 2) / math.Sqrt(float64(len(a)))
}

//converged applies the stopping rule of the reweighting loop: sound
//geometry, an acceptable R gap and R-work that no longer moves.
func (D *Driver) converged(stats, prev FitStatistics, bondRMSD float64) bool {
	return bondRMSD <= D.Params.MaxBondRMSD &&
		stats.Gap() <= D.Params.MaxRWorkRFreeGap &&
		math.Abs(stats.RWork-prev.RWork) < D.Params.RTolerance
}

func (D *Driver) saveRestart() {
	if D.Params.RestartFile == "" {
		return
	}
	r := NewRestart(D.S, D.weights, D.stats, D.cycle)
	if err := WriteRestart(D.Params.RestartFile, r); err != nil {
		D.Logger.Warn("Could not write restart file", zap.String("file", D.Params.RestartFile), zap.Error(err))
	}
}

//Refine runs the full adaptive refinement: estimate the data weight,
//then alternate coordinate optimization with weight-scale adjustment
//until the statistics settle or the cycle budgets run out. The structure
//is updated in place. Cancelling the context stops the run between
//cycles; a cycle in flight always finishes.
func (D *Driver) Refine(ctx context.Context) error {
	if err := D.checkStructure(); err != nil {
		return err
	}
	calc := NewSites(D.S, D.Data, D.Restraints, nil)
	prev := FitStatistics{RWork: math.Inf(1), RFree: math.Inf(1)}
	start := 1
	if D.weights != nil {
		//a resumed session: the restored weights, statistics and cycle
		//counter stand, so the next cycle behaves as if the run had
		//never stopped.
		calc.W = D.weights
		if D.cycle > 0 {
			prev = D.stats
			start = D.cycle + 1
		}
		D.Logger.Info("resuming refinement",
			zap.Int("atoms", D.S.Len()),
			zap.Int("cycle", start),
			zap.Float64("data_weight", D.weights.DataWeight))
	} else {
		D.state = AwaitingInitialWeight
		if err := D.initWeights(calc); err != nil {
			D.state = Failed
			return errDecorate(err, "Driver.Refine")
		}
		D.Logger.Info("starting refinement",
			zap.Int("atoms", D.S.Len()),
			zap.Float64("data_weight", D.weights.DataWeight),
			zap.Bool("weight_was_provided", D.weights.WeightWasProvided))
	}
	D.saveRestart()
	retries := 0
	for D.cycle = start; D.cycle <= D.Params.RefineCycles; D.cycle++ {
		select {
		case <-ctx.Done():
			D.Logger.Info("refinement cancelled", zap.Int("cycle", D.cycle))
			return ctx.Err()
		default:
		}
		done, err := D.refineCycle(calc, &prev)
		if err != nil {
			if e, ok := err.(Error); ok && e.Message() == ErrGradientsDumped {
				//A gradient dump is a requested diagnostic stop, not a failure.
				D.Logger.Info("gradients dumped, stopping refinement", zap.Int("cycle", D.cycle))
				return err
			}
			if isEvaluatorFailure(err) && retries < D.Params.EvaluatorRetries {
				retries++
				D.Logger.Warn("evaluator failed, repeating the macro-cycle",
					zap.Int("cycle", D.cycle), zap.Int("retry", retries), zap.Error(err))
				D.cycle--
				continue
			}
			D.state = Failed
			return err
		}
		D.saveRestart()
		if done {
			D.state = Converged
			D.Logger.Info("refinement converged",
				zap.Int("cycle", D.cycle),
				zap.Float64("r_work", D.stats.RWork),
				zap.Float64("r_free", D.stats.RFree))
			return nil
		}
	}
	//running out of cycles is not convergence: leave the state where the
	//last cycle left it, so callers can tell the two outcomes apart.
	D.cycle = D.Params.RefineCycles
	D.Logger.Warn("refinement stopped, cycle budget exhausted",
		zap.Float64("r_work", D.stats.RWork),
		zap.Float64("r_free", D.stats.RFree))
	return nil
}

//refineCycle is one macro-cycle: optimize, measure, reweight. It reports
//whether the session has converged.
func (D *Driver) refineCycle(calc *Sites, prev *FitStatistics) (bool, error) {
	for ws := 0; ws < D.Params.WeightSearchCycles; ws++ {
		D.state = Optimizing
		shift, err := D.minimize(calc, &optimize.LBFGS{})
		if err != nil {
			return false, errDecorate(err, "Driver.refineCycle")
		}
		if shift < D.Params.RMSDTolerance {
			//The optimizer went nowhere: the data term has likely
			//overpowered the geometry, so push the restraints hard.
			D.weights.ScaleRestraintsWeight()
			D.Logger.Info("optimizer stalled, restraints weight scale escalated",
				zap.Float64("scale", D.weights.RestraintsWeightScale))
		}
		stats, err := D.rFactors()
		if err != nil {
			return false, err
		}
		D.stats = stats
		bondRMSD, err := BondsRMSD(D.S, D.Bonds)
		if err != nil {
			return false, errDecorate(err, "Driver.refineCycle")
		}
		D.state = Reweighting
		adjusted := D.weights.Adjust(stats.RWork, stats.RFree, bondRMSD,
			D.Params.MaxBondRMSD, D.Params.MaxRWorkRFreeGap, D.Params.WeightScaleFactor)
		D.Logger.Info("macro-cycle statistics",
			zap.Int("cycle", D.cycle),
			zap.Float64("r_work", stats.RWork),
			zap.Float64("r_free", stats.RFree),
			zap.Float64("bond_rmsd", bondRMSD),
			zap.Float64("scale", D.weights.RestraintsWeightScale),
			zap.Bool("adjusted", adjusted))
		conv := !adjusted || D.converged(stats, *prev, bondRMSD)
		*prev = stats
		if conv {
			return true, nil
		}
	}
	return false, nil
}

//Opt runs a pure geometry optimization, with no data term and no
//weighting. Cycles end early once the coordinates stop moving.
func (D *Driver) Opt(ctx context.Context) error {
	if err := D.checkStructure(); err != nil {
		return err
	}
	calc := NewSitesOpt(D.S, D.Restraints)
	D.Logger.Info("starting optimization", zap.Int("atoms", D.S.Len()))
	for D.cycle = 1; D.cycle <= D.Params.RefineCycles; D.cycle++ {
		select {
		case <-ctx.Done():
			D.Logger.Info("optimization cancelled", zap.Int("cycle", D.cycle))
			return ctx.Err()
		default:
		}
		D.state = Optimizing
		shift, err := D.minimize(calc, &optimize.LBFGS{})
		if err != nil {
			D.state = Failed
			return errDecorate(err, "Driver.Opt")
		}
		D.Logger.Info("optimization cycle", zap.Int("cycle", D.cycle), zap.Float64("rms_shift", shift))
		D.saveRestart()
		if shift < D.Params.RMSDTolerance {
			break
		}
	}
	D.state = Converged
	return nil
}

//RefineADP refines the isotropic displacement parameters with the
//coordinates fixed. There is no weighting in this parameterization.
func (D *Driver) RefineADP(ctx context.Context, data qr.ADPDataEvaluator) error {
	if err := D.checkStructure(); err != nil {
		return err
	}
	calc := NewADP(D.S, data)
	for D.cycle = 1; D.cycle <= D.Params.RefineCycles; D.cycle++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		D.state = Optimizing
		shift, err := D.minimize(calc, &optimize.LBFGS{})
		if err != nil {
			D.state = Failed
			return errDecorate(err, "Driver.RefineADP")
		}
		rw, rf, err := data.RFactors()
		if err == nil {
			D.stats = FitStatistics{RWork: rw, RFree: rf}
		}
		D.Logger.Info("displacement cycle", zap.Int("cycle", D.cycle),
			zap.Float64("rms_shift", shift), zap.Float64("r_work", D.stats.RWork))
		if shift < D.Params.RMSDTolerance {
			break
		}
	}
	D.state = Converged
	return nil
}
