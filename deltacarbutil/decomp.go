/*
Copyright © 2024 the DeltaCarb authors.
This file is part of DeltaCarb.

DeltaCarb is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

DeltaCarb is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with DeltaCarb.  If not, see <http://www.gnu.org/licenses/>.
*/

package deltacarbutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/oceanmodel/deltacarb"
	"github.com/oceanmodel/deltacarb/internal/runlog"
)

// OutputFileName returns the name of the term file for the given
// target name, simulation label, and year range.
func OutputFileName(outputDir, target, label, yearRange string) string {
	parts := []string{"taylor", target}
	if label != "" {
		parts = append(parts, label)
	}
	if yearRange != "" {
		parts = append(parts, yearRange)
	}
	return filepath.Join(outputDir, strings.Join(parts, "_")+".nc")
}

// Decomp loads the climatology, runs the grid decomposition, and
// writes the selected per-target term files.
func Decomp(climFile, outputDir, label, yearRange, runLogFile string,
	targets []string, density float64, numProcessors int,
	steps deltacarb.StepSizes) error {

	wanted := make(map[string]bool, len(targets))
	for _, t := range targets {
		found := false
		for _, name := range deltacarb.TargetNames {
			if t == name {
				found = true
			}
		}
		if !found {
			return fmt.Errorf("deltacarb: unknown target variable %q", t)
		}
		wanted[t] = true
	}

	start := time.Now()
	logrus.WithFields(logrus.Fields{
		"climatology": climFile,
		"label":       label,
		"years":       yearRange,
	}).Info("deltacarb: starting decomposition")

	clim, err := deltacarb.NewClimatology(climFile, density)
	if err != nil {
		return err
	}
	ny, nx := clim.Shape()
	logrus.Infof("deltacarb: loaded %d × %d grid", ny, nx)

	cfg := deltacarb.RunConfig{
		Steps:         steps,
		NumProcessors: numProcessors,
		Label:         label,
		YearRange:     yearRange,
	}
	var rec *runlog.Recorder
	if runLogFile != "" {
		rec, err = runlog.Open(runLogFile, label, yearRange)
		if err != nil {
			return err
		}
		defer rec.Close()
		cfg.Failures = rec
		logrus.WithField("run_id", rec.RunID()).Info("deltacarb: run log opened")
	}

	results, err := deltacarb.Run(clim, cfg)
	if err != nil {
		return err
	}
	if rec != nil {
		if err := rec.Finish(results.CellsTotal, results.CellsOK,
			results.CellsFailed, results.CellsSkipped); err != nil {
			return err
		}
	}

	fits := results.ReconstructionStats()
	for jt, fit := range fits {
		logrus.WithFields(logrus.Fields{
			"target":    deltacarb.TargetNames[jt],
			"slope":     fit.Slope,
			"intercept": fit.Intercept,
			"r2":        fit.RSquared,
			"n":         fit.N,
		}).Info("deltacarb: reconstruction vs forward-model seasonal change")
	}

	for jt, d := range results.Data {
		name := deltacarb.TargetNames[jt]
		if !wanted[name] {
			continue
		}
		path := OutputFileName(outputDir, name, label, yearRange)
		if err := d.Write(path); err != nil {
			return err
		}
		logrus.WithField("file", path).Info("deltacarb: wrote term file")
	}

	logrus.Infof("deltacarb: decomposed %s cells in %s",
		humanize.Comma(int64(results.CellsOK)), time.Since(start).Round(time.Second))
	return nil
}
