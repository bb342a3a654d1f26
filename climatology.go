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

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// Input file variable names. Seasonal fields carry the suffixes
// "_ann", "_feb", and "_aug" for the annual, February, and August
// climatological means.
var (
	// stateVarNames maps state variable indices to input variable
	// base names.
	stateVarNames = [NVars]string{IAT: "talk", ICT: "dic", IS: "sal", IT: "temp"}

	// obsVarNames maps target variable indices to the input
	// variable base names of the observed (model-diagnosed)
	// proxies, where the input dataset provides them. No observed
	// pCO2 proxy is carried in the climatology.
	obsVarNames = [NVars]string{JPCO2: "", JH: "hplus", JCO3: "co3", JOmegaA: "omega_a"}
)

const (
	maskVar = "mask"
	lonVar  = "lon"
	latVar  = "lat"

	annSuffix = "_ann"
	febSuffix = "_feb"
	augSuffix = "_aug"
)

// DefaultDensity is the fixed seawater density [kg/m³] used to
// convert the model's volumetric tracer concentrations [mol/m³] to
// gravimetric units [μmol/kg] on load.
const DefaultDensity = 1026.0

// Climatology holds the gridded annual-mean, February, and August
// fields of the state variables, the land/sea mask, and the
// coordinate arrays, all converted to the working units (μmol/kg for
// AT and CT, nmol/kg for H+, μmol/kg for CO3). Fields are immutable
// once loaded.
type Climatology struct {
	// Mask is the binary land/sea mask (1 = sea).
	Mask *sparse.DenseArray
	// Lon and Lat are the coordinate arrays, either 2-d with the
	// grid shape or 1-d axes of lengths nx and ny.
	Lon, Lat *sparse.DenseArray

	// Phosphate and Silicate are annual-mean nutrient fields
	// [μmol/kg]. The surface solver holds them at zero; they are
	// carried for completeness of the input contract.
	Phosphate, Silicate *sparse.DenseArray

	mean, feb, aug [NVars]*sparse.DenseArray
	obsFeb, obsAug [NVars]*sparse.DenseArray

	ny, nx int
}

// NewClimatology reads the gridded climatology from the NetCDF file
// at filename. rho is the seawater density [kg/m³] for the
// mol/m³ → μmol/kg conversion of AT, CT, CO3, phosphate, and
// silicate; if rho is zero DefaultDensity is used. Any raster whose
// shape disagrees with the mask makes the load fail: the run cannot
// proceed with inconsistent dimensions.
func NewClimatology(filename string, rho float64) (*Climatology, error) {
	if rho == 0 {
		rho = DefaultDensity
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("deltacarb: opening climatology file: %v", err)
	}
	defer f.Close()
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("deltacarb: reading climatology file %s: %v", filename, err)
	}

	c := new(Climatology)
	c.Mask, err = readNCF(ff, maskVar, 1)
	if err != nil {
		return nil, err
	}
	if len(c.Mask.Shape) != 2 {
		return nil, fmt.Errorf("deltacarb: climatology mask must be 2-d, have %d-d", len(c.Mask.Shape))
	}
	c.ny, c.nx = c.Mask.Shape[0], c.Mask.Shape[1]

	if c.Lon, err = readNCF(ff, lonVar, 1); err != nil {
		return nil, err
	}
	if c.Lat, err = readNCF(ff, latVar, 1); err != nil {
		return nil, err
	}
	if err := c.checkCoord(lonVar, c.Lon, c.nx); err != nil {
		return nil, err
	}
	if err := c.checkCoord(latVar, c.Lat, c.ny); err != nil {
		return nil, err
	}

	molToUmolKg := 1e6 / rho // mol/m³ → μmol/kg
	stateFactors := [NVars]float64{IAT: molToUmolKg, ICT: molToUmolKg, IS: 1, IT: 1}
	obsFactors := [NVars]float64{JH: 1e9 / rho, JCO3: molToUmolKg, JOmegaA: 1} // H: mol/m³ → nmol/kg

	for k := 0; k < NVars; k++ {
		name := stateVarNames[k]
		if c.mean[k], err = c.readField(ff, name+annSuffix, stateFactors[k]); err != nil {
			return nil, err
		}
		if c.feb[k], err = c.readField(ff, name+febSuffix, stateFactors[k]); err != nil {
			return nil, err
		}
		if c.aug[k], err = c.readField(ff, name+augSuffix, stateFactors[k]); err != nil {
			return nil, err
		}
	}

	if c.Phosphate, err = c.readField(ff, "po4"+annSuffix, molToUmolKg); err != nil {
		return nil, err
	}
	if c.Silicate, err = c.readField(ff, "sio4"+annSuffix, molToUmolKg); err != nil {
		return nil, err
	}

	for j := 0; j < NVars; j++ {
		name := obsVarNames[j]
		if name == "" {
			continue
		}
		if c.obsFeb[j], err = c.readField(ff, name+febSuffix, obsFactors[j]); err != nil {
			return nil, err
		}
		if c.obsAug[j], err = c.readField(ff, name+augSuffix, obsFactors[j]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// readField reads one 2-d raster, scales it by factor, and checks its
// shape against the mask.
func (c *Climatology) readField(ff *cdf.File, name string, factor float64) (*sparse.DenseArray, error) {
	data, err := readNCF(ff, name, factor)
	if err != nil {
		return nil, err
	}
	if len(data.Shape) != 2 || data.Shape[0] != c.ny || data.Shape[1] != c.nx {
		return nil, fmt.Errorf("deltacarb: climatology variable %s: shape %v does not match mask shape [%d %d]",
			name, data.Shape, c.ny, c.nx)
	}
	return data, nil
}

// checkCoord validates a coordinate array: 2-d arrays must match the
// grid shape and 1-d axes must match the corresponding grid extent.
func (c *Climatology) checkCoord(name string, a *sparse.DenseArray, n1d int) error {
	switch len(a.Shape) {
	case 1:
		if a.Shape[0] != n1d {
			return fmt.Errorf("deltacarb: climatology coordinate %s: length %d does not match grid extent %d",
				name, a.Shape[0], n1d)
		}
	case 2:
		if a.Shape[0] != c.ny || a.Shape[1] != c.nx {
			return fmt.Errorf("deltacarb: climatology coordinate %s: shape %v does not match grid shape [%d %d]",
				name, a.Shape, c.ny, c.nx)
		}
	default:
		return fmt.Errorf("deltacarb: climatology coordinate %s must be 1-d or 2-d, have %d-d", name, len(a.Shape))
	}
	return nil
}

// Shape returns the grid extents (south-north, west-east).
func (c *Climatology) Shape() (ny, nx int) {
	return c.ny, c.nx
}

// IsSea reports whether the cell at row j, column i is inside the
// ocean domain.
func (c *Climatology) IsSea(j, i int) bool {
	return c.Mask.Get(j, i) > 0.5
}

// State returns the annual-mean state vector at row j, column i.
func (c *Climatology) State(j, i int) StateVector {
	var x StateVector
	for k := 0; k < NVars; k++ {
		x[k] = c.mean[k].Get(j, i)
	}
	return x
}

// FebState and AugState return the February and August mean states
// at row j, column i.
func (c *Climatology) FebState(j, i int) StateVector {
	var x StateVector
	for k := 0; k < NVars; k++ {
		x[k] = c.feb[k].Get(j, i)
	}
	return x
}

// AugState returns the August mean state at row j, column i.
func (c *Climatology) AugState(j, i int) StateVector {
	var x StateVector
	for k := 0; k < NVars; k++ {
		x[k] = c.aug[k].Get(j, i)
	}
	return x
}

// Amplitude returns the seasonal amplitude (August minus February) of
// each state variable at row j, column i.
func (c *Climatology) Amplitude(j, i int) AmplitudeVector {
	var d AmplitudeVector
	for k := 0; k < NVars; k++ {
		d[k] = c.aug[k].Get(j, i) - c.feb[k].Get(j, i)
	}
	return d
}

// ObsDelta returns the observed seasonal change (August minus
// February) of target variable jt at row j, column i, and whether the
// climatology carries an observed proxy for that target.
func (c *Climatology) ObsDelta(jt, j, i int) (float64, bool) {
	if c.obsFeb[jt] == nil {
		return 0, false
	}
	return c.obsAug[jt].Get(j, i) - c.obsFeb[jt].Get(j, i), true
}

// readNCF reads variable name from NetCDF file ff into a dense array,
// multiplying each element by factor.
func readNCF(ff *cdf.File, name string, factor float64) (*sparse.DenseArray, error) {
	dims := ff.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("deltacarb: read netcdf: variable %v not in file", name)
	}
	r := ff.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("deltacarb: read netcdf variable %s: %v", name, err)
	}
	data := sparse.ZerosDense(dims...)
	switch b := buf.(type) {
	case []float32:
		for i, v := range b {
			data.Elements[i] = float64(v) * factor
		}
	case []float64:
		for i, v := range b {
			data.Elements[i] = v * factor
		}
	case []int32:
		for i, v := range b {
			data.Elements[i] = float64(v) * factor
		}
	case []int8:
		for i, v := range b {
			data.Elements[i] = float64(v) * factor
		}
	default:
		return nil, fmt.Errorf("deltacarb: read netcdf variable %s: unsupported type %T", name, buf)
	}
	return data, nil
}
