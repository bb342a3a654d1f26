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

package deltacarb

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// FailureRecorder records per-cell forward-model failures for
// post-run inspection.
type FailureRecorder interface {
	Failure(j, i int, stage, reason string) error
}

// RunConfig configures a decomposition run over the grid.
type RunConfig struct {
	// Forward is the forward model to differentiate. If nil the
	// default carbonate solver is used.
	Forward ForwardFunc

	// Steps are the finite-difference steps. The zero value means
	// DefaultSteps.
	Steps StepSizes

	// NumProcessors is the number of worker goroutines. Values
	// below 1 mean runtime.GOMAXPROCS(0).
	NumProcessors int

	// Failures, if non-nil, records cells where the forward model
	// had no solution. Failed cells are always logged regardless.
	Failures FailureRecorder

	// Label and YearRange identify the simulation run in the
	// output containers.
	Label, YearRange string

	// ProgressInterval is the number of processed cells between
	// progress log lines. Values below 1 mean 10000.
	ProgressInterval int
}

// Results holds the outcome of a grid run: one output container per
// target variable plus cell accounting.
type Results struct {
	Data [NVars]*TermData

	CellsTotal, CellsSkipped, CellsOK, CellsFailed int
}

// Run iterates over every grid cell of the climatology and, for each
// sea cell, decomposes the seasonal change of the four target
// variables into Taylor terms. Cells are independent; they are
// processed by a pool of workers that write to disjoint indices of
// the shared output fields. A forward-model failure at any point a
// cell's differentiation touches fails that cell only: the cell keeps
// its fill values, the failure is recorded, and the run continues.
func Run(clim *Climatology, cfg RunConfig) (*Results, error) {
	f := cfg.Forward
	if f == nil {
		f = ForwardModel(nil)
	}
	steps := cfg.Steps
	if steps == (StepSizes{}) {
		steps = DefaultSteps
	}
	nprocs := cfg.NumProcessors
	if nprocs < 1 {
		nprocs = runtime.GOMAXPROCS(0)
	}
	progress := cfg.ProgressInterval
	if progress < 1 {
		progress = 10000
	}

	ny, nx := clim.Shape()
	r := &Results{CellsTotal: ny * nx}
	for jt := 0; jt < NVars; jt++ {
		r.Data[jt] = NewTermData(jt, clim, cfg.Label, cfg.YearRange)
	}

	// The observed seasonal changes come straight from the input
	// proxies; fill them before the workers start.
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			if !clim.IsSea(j, i) {
				continue
			}
			for jt := 0; jt < NVars; jt++ {
				if dObs, ok := clim.ObsDelta(jt, j, i); ok {
					r.Data[jt].SetDObs(j, i, dObs)
				}
			}
		}
	}

	var (
		mx                  sync.Mutex // guards the failure recorder, counters, and recErr
		skipped, ok, failed int
		recErr              error
		processed           int64
		wg                  sync.WaitGroup
	)
	jobChan := make(chan int, nprocs*2)
	for w := 0; w < nprocs; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				j, i := idx/nx, idx%nx
				if !clim.IsSea(j, i) {
					mx.Lock()
					skipped++
					mx.Unlock()
					continue
				}
				cellErr := runCell(clim, f, steps, r, j, i)
				mx.Lock()
				if cellErr != nil {
					failed++
					logrus.WithFields(logrus.Fields{
						"j": j, "i": i,
					}).Warnf("deltacarb: cell failed: %v", cellErr)
					if cfg.Failures != nil && recErr == nil {
						if err := cfg.Failures.Failure(j, i, "forward model", cellErr.Error()); err != nil {
							recErr = fmt.Errorf("deltacarb: recording failure for cell (%d,%d): %v", j, i, err)
						}
					}
				} else {
					ok++
				}
				mx.Unlock()
				if n := atomic.AddInt64(&processed, 1); n%int64(progress) == 0 {
					logrus.Infof("deltacarb: processed %s sea cells", humanize.Comma(n))
				}
			}
		}()
	}

	for idx := 0; idx < ny*nx; idx++ {
		jobChan <- idx
	}
	close(jobChan)
	wg.Wait()

	if recErr != nil {
		return nil, recErr
	}

	r.CellsSkipped, r.CellsOK, r.CellsFailed = skipped, ok, failed
	logrus.WithFields(logrus.Fields{
		"total":   r.CellsTotal,
		"skipped": r.CellsSkipped,
		"ok":      r.CellsOK,
		"failed":  r.CellsFailed,
	}).Info("deltacarb: grid run finished")
	return r, nil
}

// runCell computes and commits the term sets of all four target
// variables for the sea cell at row j, column i. Nothing is written
// unless every target's Jacobian row and Hessian were obtained, so a
// failed cell keeps its fill values for all targets.
func runCell(clim *Climatology, f ForwardFunc, steps StepSizes, r *Results, j, i int) error {
	x := clim.State(j, i)
	delta := clim.Amplitude(j, i)

	jac, err := Jacobian(f, x, steps)
	if err != nil {
		return err
	}
	fFeb, err := f(clim.FebState(j, i))
	if err != nil {
		return fmt.Errorf("deltacarb: forward model at February state: %v", err)
	}
	fAug, err := f(clim.AugState(j, i))
	if err != nil {
		return fmt.Errorf("deltacarb: forward model at August state: %v", err)
	}

	var terms [NVars]TermSet
	for jt := 0; jt < NVars; jt++ {
		hess, err := Hessian(Target(f, jt), x, steps)
		if err != nil {
			return fmt.Errorf("%s: %v", TargetNames[jt], err)
		}
		terms[jt] = Decompose(jac.RawRowView(jt), hess, delta)
	}
	for jt := 0; jt < NVars; jt++ {
		r.Data[jt].SetCell(j, i, terms[jt])
		r.Data[jt].SetDModel(j, i, fAug[jt]-fFeb[jt])
	}
	return nil
}

// FitStats summarizes the agreement between the reconstructed
// seasonal change (sum of the 14 terms) and the forward model's own
// seasonal change across the grid.
type FitStats struct {
	Slope, Intercept, RSquared float64
	N                          int
}

// ReconstructionStats regresses the reconstructed seasonal change
// against dModel over all successfully processed cells, per target.
// It is a run-level view of how far the grid sits from the linearity
// boundary of the second-order expansion.
func (r *Results) ReconstructionStats() [NVars]FitStats {
	var out [NVars]FitStats
	names := TermNames()
	for jt := 0; jt < NVars; jt++ {
		d := r.Data[jt]
		var x, y []float64
		for n, dm := range d.DModel.Elements {
			if dm == FillValue {
				continue
			}
			var sum float64
			complete := true
			for _, name := range names {
				v := d.Terms[name].Elements[n]
				if v == FillValue {
					complete = false
					break
				}
				sum += v
			}
			if !complete {
				continue
			}
			x = append(x, dm)
			y = append(y, sum)
		}
		if len(x) < 2 {
			out[jt] = FitStats{N: len(x)}
			continue
		}
		slope, intercept, rsquared, _, _, _ := stats.LinearRegression(x, y)
		out[jt] = FitStats{Slope: slope, Intercept: intercept, RSquared: rsquared, N: len(x)}
	}
	return out
}
