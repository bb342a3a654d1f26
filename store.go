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
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// DataVersion is checked when reopening an existing output container;
// containers written by an incompatible layout cannot be appended to.
const DataVersion = "1.1"

// FillValue marks grid cells that carry no result: land cells and
// cells where the forward model failed.
const FillValue = -1.0e30

// diagnostic field names in the output container.
const (
	dObsVar   = "dObs"
	dModelVar = "dModel"
)

// TermData holds the complete output contents for one target
// variable: the coordinate arrays, the mask, the 14 contribution-term
// fields keyed by canonical term name, and the two seasonal-change
// diagnostics. One TermData maps 1:1 to one output NetCDF file.
type TermData struct {
	// Target is the index of the target variable this data is for.
	Target int

	// Label and YearRange identify the simulation run.
	Label, YearRange string

	Lon, Lat, Mask *sparse.DenseArray

	// Terms holds one grid-shaped field per canonical term name.
	Terms map[string]*sparse.DenseArray

	// DModel is the forward model's own seasonal change of the
	// target, f(August state) − f(February state). DObs is the
	// observed seasonal change from the input proxies; it stays at
	// the fill value for targets without an observed proxy.
	DModel, DObs *sparse.DenseArray

	ny, nx int
}

// NewTermData returns an output container for target variable jt with
// every result field initialized to the fill value. The coordinate
// arrays and mask are shared with the climatology.
func NewTermData(jt int, clim *Climatology, label, yearRange string) *TermData {
	ny, nx := clim.Shape()
	d := &TermData{
		Target:    jt,
		Label:     label,
		YearRange: yearRange,
		Lon:       clim.Lon,
		Lat:       clim.Lat,
		Mask:      clim.Mask,
		Terms:     make(map[string]*sparse.DenseArray, NTerms),
		DModel:    filledDense(ny, nx),
		DObs:      filledDense(ny, nx),
		ny:        ny,
		nx:        nx,
	}
	for _, name := range TermNames() {
		d.Terms[name] = filledDense(ny, nx)
	}
	return d
}

func filledDense(ny, nx int) *sparse.DenseArray {
	a := sparse.ZerosDense(ny, nx)
	for i := range a.Elements {
		a.Elements[i] = FillValue
	}
	return a
}

// SetCell stores one cell's term set at row j, column i. The values
// are assigned to the element slices directly: sparse's Set discards
// exact zeros, which would leave a zero-valued term stuck at the fill
// value.
func (d *TermData) SetCell(j, i int, t TermSet) {
	for n, name := range TermNames() {
		d.Terms[name].Elements[j*d.nx+i] = t[n]
	}
}

// SetDModel and SetDObs store the seasonal-change diagnostics at row
// j, column i, bypassing sparse's zero-dropping Set like SetCell does.
func (d *TermData) SetDModel(j, i int, v float64) {
	d.DModel.Elements[j*d.nx+i] = v
}

// SetDObs stores the observed seasonal change at row j, column i.
func (d *TermData) SetDObs(j, i int, v float64) {
	d.DObs.Elements[j*d.nx+i] = v
}

// resultFields returns the names of the term and diagnostic fields in
// a fixed write order.
func (d *TermData) resultFields() []string {
	names := make([]string, 0, NTerms+2)
	names = append(names, TermNames()...)
	names = append(names, dModelVar, dObsVar)
	sort.Strings(names)
	return names
}

// Write writes d to the NetCDF file at path. If the file does not
// exist it is created with the full header; if it exists it is
// reopened and the result fields are overwritten in place, so
// re-running a decomposition is idempotent at the container level.
func (d *TermData) Write(path string) error {
	ff, f, created, err := d.createOrOpen(path)
	if err != nil {
		return err
	}
	defer ff.Close()

	if created {
		if err := writeNCF(f, lonVar, d.Lon); err != nil {
			return fmt.Errorf("deltacarb: writing coordinate %s to %s: %v", lonVar, path, err)
		}
		if err := writeNCF(f, latVar, d.Lat); err != nil {
			return fmt.Errorf("deltacarb: writing coordinate %s to %s: %v", latVar, path, err)
		}
		if err := writeNCF(f, maskVar, d.Mask); err != nil {
			return fmt.Errorf("deltacarb: writing mask to %s: %v", path, err)
		}
	}
	for _, name := range d.resultFields() {
		if err := writeNCF(f, name, d.field(name)); err != nil {
			return fmt.Errorf("deltacarb: writing variable %s to %s: %v", name, path, err)
		}
	}
	if err := cdf.UpdateNumRecs(ff); err != nil {
		return fmt.Errorf("deltacarb: finalizing output file %s: %v", path, err)
	}
	return nil
}

func (d *TermData) field(name string) *sparse.DenseArray {
	switch name {
	case dModelVar:
		return d.DModel
	case dObsVar:
		return d.DObs
	default:
		return d.Terms[name]
	}
}

// createOrOpen creates the output file with a freshly defined header,
// or reopens it read-write if it already exists.
func (d *TermData) createOrOpen(path string) (*os.File, *cdf.File, bool, error) {
	if _, statErr := os.Stat(path); statErr == nil {
		ff, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return nil, nil, false, fmt.Errorf("deltacarb: reopening output file %s: %v", path, err)
		}
		f, err := cdf.Open(ff)
		if err != nil {
			ff.Close()
			return nil, nil, false, fmt.Errorf("deltacarb: reopening output file %s: %v", path, err)
		}
		if v, ok := f.Header.GetAttribute("", "data_version").(string); !ok || v != DataVersion {
			ff.Close()
			return nil, nil, false, fmt.Errorf("deltacarb: output file %s has data version %v, need %s", path, v, DataVersion)
		}
		if lens := f.Header.Lengths(TermNames()[0]); len(lens) != 2 || lens[0] != d.ny || lens[1] != d.nx {
			ff.Close()
			return nil, nil, false, fmt.Errorf("deltacarb: output file %s grid %v does not match run grid [%d %d]", path, lens, d.ny, d.nx)
		}
		return ff, f, false, nil
	}

	h := cdf.NewHeader([]string{"y", "x"}, []int{d.ny, d.nx})
	h.AddAttribute("", "comment", "DeltaCarb seasonal Taylor-decomposition terms")
	h.AddAttribute("", "target", TargetNames[d.Target])
	h.AddAttribute("", "simulation_label", d.Label)
	h.AddAttribute("", "year_range", d.YearRange)
	h.AddAttribute("", "data_version", DataVersion)

	addCoord := func(name string, a *sparse.DenseArray, axis string) {
		if len(a.Shape) == 1 {
			h.AddVariable(name, []string{axis}, []float64{0})
		} else {
			h.AddVariable(name, []string{"y", "x"}, []float64{0})
		}
		h.AddAttribute(name, "units", map[string]string{lonVar: "degrees_east", latVar: "degrees_north"}[name])
	}
	addCoord(lonVar, d.Lon, "x")
	addCoord(latVar, d.Lat, "y")

	h.AddVariable(maskVar, []string{"y", "x"}, []float64{0})
	h.AddAttribute(maskVar, "description", "land/sea mask (1 = sea)")

	units := TargetUnits[d.Target]
	for n, name := range TermNames() {
		h.AddVariable(name, []string{"y", "x"}, []float64{0})
		if n < NFirstOrder {
			h.AddAttribute(name, "description", fmt.Sprintf(
				"first-order contribution of the %s seasonal change to the %s seasonal change",
				name, TargetNames[d.Target]))
		} else {
			h.AddAttribute(name, "description", fmt.Sprintf(
				"second-order (%s) contribution to the %s seasonal change",
				name, TargetNames[d.Target]))
		}
		h.AddAttribute(name, "units", units)
		h.AddAttribute(name, "_FillValue", []float64{FillValue})
	}
	for name, desc := range map[string]string{
		dModelVar: "forward-model seasonal change, f(August) - f(February)",
		dObsVar:   "observed seasonal change from the input proxies",
	} {
		h.AddVariable(name, []string{"y", "x"}, []float64{0})
		h.AddAttribute(name, "description", desc+" of "+TargetNames[d.Target])
		h.AddAttribute(name, "units", units)
		h.AddAttribute(name, "_FillValue", []float64{FillValue})
	}
	h.Define()
	for _, err := range h.Check() {
		return nil, nil, false, fmt.Errorf("deltacarb: defining output file %s: %v", path, err)
	}

	ff, err := os.Create(path)
	if err != nil {
		return nil, nil, false, fmt.Errorf("deltacarb: creating output file %s: %v", path, err)
	}
	f, err := cdf.Create(ff, h)
	if err != nil {
		ff.Close()
		return nil, nil, false, fmt.Errorf("deltacarb: creating output file %s: %v", path, err)
	}
	return ff, f, true, nil
}

// writeNCF writes a whole dense array to variable name in f.
func writeNCF(f *cdf.File, name string, data *sparse.DenseArray) error {
	n := 1
	for _, v := range data.Shape {
		n *= v
	}
	if len(data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data.Elements))
	}
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	buf := make([]float64, len(data.Elements))
	copy(buf, data.Elements)
	if _, err := w.Write(buf); err != nil {
		return err
	}
	return nil
}

// ReadTermData reads an output container back from the NetCDF file at
// path.
func ReadTermData(path string) (*TermData, error) {
	ff, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("deltacarb: opening term file %s: %v", path, err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("deltacarb: reading term file %s: %v", path, err)
	}

	d := new(TermData)
	target, ok := f.Header.GetAttribute("", "target").(string)
	if !ok {
		return nil, fmt.Errorf("deltacarb: term file %s has no target attribute", path)
	}
	d.Target = -1
	for j, name := range TargetNames {
		if name == target {
			d.Target = j
		}
	}
	if d.Target < 0 {
		return nil, fmt.Errorf("deltacarb: term file %s has unknown target %s", path, target)
	}
	d.Label, _ = f.Header.GetAttribute("", "simulation_label").(string)
	d.YearRange, _ = f.Header.GetAttribute("", "year_range").(string)

	if d.Lon, err = readNCF(f, lonVar, 1); err != nil {
		return nil, err
	}
	if d.Lat, err = readNCF(f, latVar, 1); err != nil {
		return nil, err
	}
	if d.Mask, err = readNCF(f, maskVar, 1); err != nil {
		return nil, err
	}
	d.ny, d.nx = d.Mask.Shape[0], d.Mask.Shape[1]

	d.Terms = make(map[string]*sparse.DenseArray, NTerms)
	for _, name := range TermNames() {
		if d.Terms[name], err = readNCF(f, name, 1); err != nil {
			return nil, err
		}
	}
	if d.DModel, err = readNCF(f, dModelVar, 1); err != nil {
		return nil, err
	}
	if d.DObs, err = readNCF(f, dObsVar, 1); err != nil {
		return nil, err
	}
	return d, nil
}
