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
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/cdf"

	"github.com/oceanmodel/deltacarb"
)

func TestOutputFileName(t *testing.T) {
	cases := []struct {
		dir, target, label, years, want string
	}{
		{"out", "H", "piControl", "0200-0219", filepath.Join("out", "taylor_H_piControl_0200-0219.nc")},
		{".", "OmegaA", "", "", filepath.Join(".", "taylor_OmegaA.nc")},
		{"out", "pCO2", "historical", "", filepath.Join("out", "taylor_pCO2_historical.nc")},
	}
	for _, c := range cases {
		if got := OutputFileName(c.dir, c.target, c.label, c.years); got != c.want {
			t.Errorf("OutputFileName(%q, %q, %q, %q) = %q, want %q",
				c.dir, c.target, c.label, c.years, got, c.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	if v := Cfg.GetString("SimulationLabel"); v != "piControl" {
		t.Errorf("SimulationLabel default: got %q", v)
	}
	if v := Cfg.GetFloat64("Density"); v != deltacarb.DefaultDensity {
		t.Errorf("Density default: got %g", v)
	}
	if v := Cfg.GetFloat64("Steps.AT"); v != deltacarb.DefaultSteps[deltacarb.IAT] {
		t.Errorf("Steps.AT default: got %g", v)
	}
	if v := Cfg.GetStringSlice("Targets"); len(v) != 4 {
		t.Errorf("Targets default: got %v", v)
	}
}

func TestDecompUnknownTarget(t *testing.T) {
	err := Decomp("clim.nc", ".", "x", "", "", []string{"pH"}, 0, 1, deltacarb.DefaultSteps)
	if err == nil {
		t.Error("expected unknown-target error, got nil")
	}
}

// writeTestClimatology writes a 2×2 all-sea climatology of plausible
// subtropical surface water, with a small warm/fresh August anomaly.
func writeTestClimatology(t *testing.T, path string) {
	t.Helper()
	const ny, nx = 2, 2

	// mol/m³ for the tracers, as in the upstream model output.
	fields := map[string][]float32{
		"mask":        {1, 1, 1, 1},
		"talk_ann":    {2.40, 2.41, 2.42, 2.43},
		"talk_feb":    {2.40, 2.41, 2.42, 2.43},
		"talk_aug":    {2.41, 2.42, 2.43, 2.44},
		"dic_ann":     {2.05, 2.06, 2.07, 2.08},
		"dic_feb":     {2.06, 2.07, 2.08, 2.09},
		"dic_aug":     {2.04, 2.05, 2.06, 2.07},
		"sal_ann":     {35.5, 35.6, 35.7, 35.8},
		"sal_feb":     {35.6, 35.7, 35.8, 35.9},
		"sal_aug":     {35.4, 35.5, 35.6, 35.7},
		"temp_ann":    {18, 18.5, 19, 19.5},
		"temp_feb":    {14, 14.5, 15, 15.5},
		"temp_aug":    {24, 24.5, 25, 25.5},
		"po4_ann":     {0, 0, 0, 0},
		"sio4_ann":    {0, 0, 0, 0},
		"hplus_feb":   {8e-9, 8e-9, 8e-9, 8e-9},
		"hplus_aug":   {9e-9, 9e-9, 9e-9, 9e-9},
		"co3_feb":     {0.22, 0.22, 0.22, 0.22},
		"co3_aug":     {0.24, 0.24, 0.24, 0.24},
		"omega_a_feb": {3.1, 3.1, 3.1, 3.1},
		"omega_a_aug": {3.5, 3.5, 3.5, 3.5},
	}

	h := cdf.NewHeader([]string{"y", "x"}, []int{ny, nx})
	h.AddVariable("lon", []string{"x"}, []float64{0})
	h.AddVariable("lat", []string{"y"}, []float64{0})
	for name := range fields {
		h.AddVariable(name, []string{"y", "x"}, []float32{0})
	}
	h.Define()
	for _, err := range h.Check() {
		t.Fatal(err)
	}
	ff, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		t.Fatal(err)
	}
	for _, coord := range []struct {
		name string
		data []float64
	}{{"lon", []float64{-30, -29.75}}, {"lat", []float64{30, 30.25}}} {
		w := f.Writer(coord.name, []int{0}, f.Header.Lengths(coord.name))
		if _, err := w.Write(coord.data); err != nil {
			t.Fatal(err)
		}
	}
	for name, data := range fields {
		w := f.Writer(name, []int{0, 0}, f.Header.Lengths(name))
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := cdf.UpdateNumRecs(ff); err != nil {
		t.Fatal(err)
	}
}

// TestDecomp runs the whole pipeline over a small synthetic grid:
// load, differentiate the default carbonate solver, write the term
// files and the run log.
func TestDecomp(t *testing.T) {
	dir := t.TempDir()
	climFile := filepath.Join(dir, "clim.nc")
	writeTestClimatology(t, climFile)

	runLog := filepath.Join(dir, "runs.sqlite")
	err := Decomp(climFile, dir, "piControl", "0200-0219", runLog,
		[]string{"H", "OmegaA"}, 0, 2, deltacarb.DefaultSteps)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(runLog); err != nil {
		t.Errorf("run log not written: %v", err)
	}
	if _, err := os.Stat(OutputFileName(dir, "pCO2", "piControl", "0200-0219")); err == nil {
		t.Error("unselected pCO2 term file was written")
	}

	for _, target := range []string{"H", "OmegaA"} {
		d, err := deltacarb.ReadTermData(OutputFileName(dir, target, "piControl", "0200-0219"))
		if err != nil {
			t.Fatal(err)
		}
		if deltacarb.TargetNames[d.Target] != target {
			t.Errorf("term file target: got %s, want %s", deltacarb.TargetNames[d.Target], target)
		}
		for _, name := range deltacarb.TermNames() {
			for j := 0; j < 2; j++ {
				for i := 0; i < 2; i++ {
					if v := d.Terms[name].Get(j, i); v == deltacarb.FillValue {
						t.Errorf("%s %s[%d,%d]: sea cell left at fill value", target, name, j, i)
					}
				}
			}
		}
		// Summer warming dominates the seasonal cycle here, so the
		// temperature term must carry most of the pCO2-family signal.
		if target == "H" {
			tTerm := d.Terms["T"].Get(0, 0)
			if tTerm <= 0 {
				t.Errorf("H temperature term: got %g, want > 0 for summer warming", tTerm)
			}
		}
	}
}
