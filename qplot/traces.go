/*
 * traces.go, part of goqr.
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

//Package qplot plots the progress of a refinement session from the
//weight-scale history the session collects.
package qplot

import (
	"fmt"

	"github.com/rmera/goqr/refine"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

func basicTracePlot(title, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Adjustment"
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	return p
}

//RFactorTrace plots the R-work and R-free recorded at each weight-scale
//adjustment of a session, and saves the plot to the PNG file plotname.
func RFactorTrace(history []refine.ScaleRecord, title, plotname string) error {
	if len(history) == 0 {
		return fmt.Errorf("goqr/qplot: Empty history, nothing to plot")
	}
	p := basicTracePlot(title, "R factor")
	rwork := make(plotter.XYs, len(history))
	rfree := make(plotter.XYs, len(history))
	for i, rec := range history {
		rwork[i].X = float64(i + 1)
		rwork[i].Y = rec.RWork
		rfree[i].X = float64(i + 1)
		rfree[i].Y = rec.RFree
	}
	lwork, err := plotter.NewLine(rwork)
	if err != nil {
		return err
	}
	lfree, err := plotter.NewLine(rfree)
	if err != nil {
		return err
	}
	lfree.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(lwork, lfree)
	p.Legend.Add("R-work", lwork)
	p.Legend.Add("R-free", lfree)
	p.Legend.Top = true
	return p.Save(5*vg.Inch, 5*vg.Inch, plotname)
}

//ScaleTrace plots the restraints weight scale after each adjustment, and
//saves the plot to the PNG file plotname.
func ScaleTrace(history []refine.ScaleRecord, title, plotname string) error {
	if len(history) == 0 {
		return fmt.Errorf("goqr/qplot: Empty history, nothing to plot")
	}
	p := basicTracePlot(title, "Restraints weight scale")
	pts := make(plotter.XYs, len(history))
	for i, rec := range history {
		pts[i].X = float64(i + 1)
		pts[i].Y = rec.Scale
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(l)
	return p.Save(5*vg.Inch, 5*vg.Inch, plotname)
}
