/*
 * config.go, part of goqr.
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

package main

import (
	"flag"
	"os"

	"github.com/rmera/goqr/refine"
	"gopkg.in/yaml.v3"
)

//Config is the full configuration of a goqr run: the refinement
//parameters plus the file and program wiring around them.
type Config struct {
	Refine      refine.Params `yaml:"refine"`
	Input       string        `yaml:"input"`
	Output      string        `yaml:"output"`
	Map         string        `yaml:"map"`
	Engine      string        `yaml:"engine"`
	EngineDir   string        `yaml:"engine_dir"`
	Resume      bool          `yaml:"resume"`
	TracePrefix string        `yaml:"trace_prefix"`
	LogLevel    string        `yaml:"log_level"`
	LogFile     string        `yaml:"log_file"`
}

//readConfig reads the YAML configuration file if it exists, then lets the
//command-line flags override it. A missing file just means defaults.
func readConfig(path string, cli *cliFlags) (*Config, error) {
	config := &Config{Refine: refine.DefaultParams(), Output: "goqr_out.xyz", LogLevel: "info"}
	data, err := os.ReadFile(path)
	if err == nil {
		defaults := config.Refine
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, err
		}
		fillParamDefaults(&config.Refine, defaults)
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	cli.apply(config)
	return config, nil
}

//fillParamDefaults restores defaults for the numeric knobs YAML left at
//zero, where zero would make the run degenerate.
func fillParamDefaults(p *refine.Params, d refine.Params) {
	if p.Mode == "" {
		p.Mode = d.Mode
	}
	if p.MaxAtoms == 0 {
		p.MaxAtoms = d.MaxAtoms
	}
	if p.RefineCycles == 0 {
		p.RefineCycles = d.RefineCycles
	}
	if p.WeightSearchCycles == 0 {
		p.WeightSearchCycles = d.WeightSearchCycles
	}
	if p.MicroCycles == 0 {
		p.MicroCycles = d.MicroCycles
	}
	if p.MaxIterations == 0 {
		p.MaxIterations = d.MaxIterations
	}
	if p.RestraintsWeight == 0 {
		p.RestraintsWeight = d.RestraintsWeight
	}
	if p.RestraintsWeightScale == 0 {
		p.RestraintsWeightScale = d.RestraintsWeightScale
	}
	if p.MaxBondRMSD == 0 {
		p.MaxBondRMSD = d.MaxBondRMSD
	}
	if p.MaxRWorkRFreeGap == 0 {
		p.MaxRWorkRFreeGap = d.MaxRWorkRFreeGap
	}
	if p.RTolerance == 0 {
		p.RTolerance = d.RTolerance
	}
	if p.RMSDTolerance == 0 {
		p.RMSDTolerance = d.RMSDTolerance
	}
	if p.WeightScaleFactor == 0 {
		p.WeightScaleFactor = d.WeightScaleFactor
	}
	if p.EvaluatorRetries == 0 {
		p.EvaluatorRetries = d.EvaluatorRetries
	}
}

//cliFlags holds the registered command-line flags. All of them are
//declared before the single flag.Parse in main, and only the ones the
//user actually passed override the configuration file.
type cliFlags struct {
	mode     *string
	input    *string
	output   *string
	mapfile  *string
	engine   *string
	cycles   *int
	restart  *string
	resume   *bool
	trace    *string
	logLevel *string
}

func registerFlags() *cliFlags {
	return &cliFlags{
		mode:     flag.String("mode", "", "Run mode: opt or realspace"),
		input:    flag.String("input", "", "Input XYZ file"),
		output:   flag.String("output", "", "Output XYZ file"),
		mapfile:  flag.String("map", "", "Density map file, for realspace mode"),
		engine:   flag.String("engine", "", "External gradient program; empty uses built-in restraints"),
		cycles:   flag.Int("cycles", 0, "Number of macro-cycles"),
		restart:  flag.String("restart", "", "Restart bundle to write, empty disables"),
		resume:   flag.Bool("resume", false, "Resume from the restart bundle instead of starting over"),
		trace:    flag.String("trace", "", "Prefix for progress plot files, empty disables"),
		logLevel: flag.String("log-level", "", "Log level"),
	}
}

func (c *cliFlags) apply(config *Config) {
	passed := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { passed[f.Name] = true })
	if passed["mode"] {
		config.Refine.Mode = *c.mode
	}
	if passed["input"] {
		config.Input = *c.input
	}
	if passed["output"] {
		config.Output = *c.output
	}
	if passed["map"] {
		config.Map = *c.mapfile
	}
	if passed["engine"] {
		config.Engine = *c.engine
	}
	if passed["cycles"] {
		config.Refine.RefineCycles = *c.cycles
	}
	if passed["restart"] {
		config.Refine.RestartFile = *c.restart
	}
	if passed["resume"] {
		config.Resume = *c.resume
	}
	if passed["trace"] {
		config.TracePrefix = *c.trace
	}
	if passed["log-level"] {
		config.LogLevel = *c.logLevel
	}
}
