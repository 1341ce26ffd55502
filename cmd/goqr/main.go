/*
 * main.go, part of goqr.
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

//goqr regularizes a molecular model against built-in or external
//restraints, optionally against a density map, writing the refined
//geometry, restart bundles and progress plots.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	qr "github.com/rmera/goqr"
	"github.com/rmera/goqr/qplot"
	"github.com/rmera/goqr/refine"
	"github.com/rmera/goqr/restraint"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "goqr.yaml", "Path to config file")
	cli := registerFlags()
	flag.Parse()

	logger := initLogger("info")
	defer logger.Sync()

	config, err := readConfig(*configPath, cli)
	if err != nil {
		logger.Fatal("Failed to read config", zap.Error(err))
	}
	logger = initLogger(config.LogLevel, config.LogFile)

	if config.Input == "" {
		logger.Fatal("No input file given")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var S *qr.Structure
	var driver *refine.Driver
	var bundle *refine.Restart
	if config.Resume {
		if config.Refine.RestartFile == "" {
			logger.Fatal("Resume requested without a restart file")
		}
		bundle, err = refine.ReadRestart(config.Refine.RestartFile)
		if err != nil {
			logger.Fatal("Failed to read restart bundle", zap.Error(err))
		}
		S, err = bundle.Structure()
		if err != nil {
			logger.Fatal("Failed to rebuild model from restart bundle", zap.Error(err))
		}
		logger.Info("Resuming from restart bundle",
			zap.String("file", config.Refine.RestartFile),
			zap.Int("cycle", bundle.Cycle))
	} else {
		S, err = qr.XYZRead(config.Input)
		if err != nil {
			logger.Fatal("Failed to read input", zap.String("file", config.Input), zap.Error(err))
		}
	}
	logger.Info("Model read", zap.Int("atoms", S.Len()))

	//The harmonic model always gets built: even with an external engine
	//computing the target, the bond deviations come from it.
	harmonic, err := restraint.GuessBonds(S)
	if err != nil {
		logger.Fatal("Failed to assign bonds", zap.Error(err))
	}
	logger.Info("Bonds assigned", zap.Int("bonds", len(harmonic.Bonds)))

	var evaluator qr.RestraintEvaluator = harmonic
	if config.Engine != "" {
		dir := config.EngineDir
		if dir == "" {
			dir = "."
		}
		evaluator = restraint.NewEngine(S, config.Engine, dir)
		logger.Info("Using external gradient program", zap.String("command", config.Engine))
	}

	switch config.Refine.Mode {
	case "opt":
		if config.Resume {
			driver, err = refine.Resume(bundle, nil, evaluator, harmonic, config.Refine, logger)
			if err != nil {
				logger.Fatal("Failed to resume", zap.Error(err))
			}
			S = driver.S
		} else {
			driver = refine.NewDriver(S, nil, evaluator, harmonic, config.Refine, logger)
		}
		if err = driver.Opt(ctx); err != nil {
			logger.Fatal("Optimization failed", zap.Error(err))
		}
	case "realspace":
		if config.Map == "" {
			logger.Fatal("Realspace mode needs a density map")
		}
		m, err := qr.DensityMapRead(config.Map)
		if err != nil {
			logger.Fatal("Failed to read density map", zap.String("file", config.Map), zap.Error(err))
		}
		rs := refine.NewSitesRealSpace(S, m, evaluator)
		if err = rs.Refine(); err != nil {
			logger.Fatal("Real-space refinement failed", zap.Error(err))
		}
	default:
		logger.Fatal("Unknown mode, want opt or realspace", zap.String("mode", config.Refine.Mode))
	}

	if err = qr.XYZWrite(S, config.Output, "refined with goqr"); err != nil {
		logger.Fatal("Failed to write output", zap.String("file", config.Output), zap.Error(err))
	}
	logger.Info("Refined model written", zap.String("file", config.Output))

	writeTraces(config, driver, bundle, logger)
}

//writeTraces plots the weight-scale history, when there is one: either
//from the session just run or from a resumed bundle.
func writeTraces(config *Config, driver *refine.Driver, bundle *refine.Restart, logger *zap.Logger) {
	if config.TracePrefix == "" {
		return
	}
	var history []refine.ScaleRecord
	if driver != nil && driver.Weights() != nil {
		history = driver.Weights().History
	} else if bundle != nil && bundle.Weights != nil {
		history = bundle.Weights.History
	}
	if len(history) == 0 {
		logger.Info("No weight history to plot")
		return
	}
	if err := qplot.RFactorTrace(history, "R factors", config.TracePrefix+"_rfactors.png"); err != nil {
		logger.Error("Failed to plot R factors", zap.Error(err))
	}
	if err := qplot.ScaleTrace(history, "Restraints weight scale", config.TracePrefix+"_scale.png"); err != nil {
		logger.Error("Failed to plot weight scale", zap.Error(err))
	}
}

//initLogger initializes the logger with the specified level and log file name.
func initLogger(level string, logfileName ...string) *zap.Logger {
	config := zap.NewProductionConfig()

	switch level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	outputPaths := []string{"stderr"}
	for _, item := range logfileName {
		if item != "" {
			outputPaths = append(outputPaths, item)
		}
	}
	config.OutputPaths = outputPaths
	config.ErrorOutputPaths = outputPaths
	config.EncoderConfig.TimeKey = "t"

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
