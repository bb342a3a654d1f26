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

// Package deltacarb decomposes the February-to-August seasonal change
// of derived ocean carbonate-chemistry variables (pCO2, H+, CO3²⁻, and
// aragonite saturation state) into first- and second-order Taylor terms
// with respect to the four state variables that drive them: total
// alkalinity, dissolved inorganic carbon, salinity, and temperature.
package deltacarb

// Version gives the version number.
const Version = "1.1.0"

// NVars is the number of state variables the forward model takes,
// which also equals the number of target variables it returns.
const NVars = 4

// Indices of the state variables within a StateVector or
// AmplitudeVector.
const (
	IAT = iota // total alkalinity [μmol/kg]
	ICT        // dissolved inorganic carbon [μmol/kg]
	IS         // salinity [-]
	IT         // temperature [°C]
)

// Indices of the target variables within a TargetVector.
const (
	JPCO2   = iota // CO2 partial pressure [μatm]
	JH             // hydrogen ion concentration [nmol/kg]
	JCO3           // carbonate ion concentration [μmol/kg]
	JOmegaA        // aragonite saturation state [-]
)

// StateNames gives the canonical names of the state variables, in
// index order.
var StateNames = [NVars]string{"AT", "CT", "S", "T"}

// TargetNames gives the canonical names of the target variables, in
// index order.
var TargetNames = [NVars]string{"pCO2", "H", "CO3", "OmegaA"}

// TargetUnits gives the units of the target variables, in index order.
var TargetUnits = [NVars]string{"μatm", "nmol kg-1", "μmol kg-1", "1"}

// StateVector holds the local values of the four state variables,
// in the order given by the state variable index constants.
type StateVector [NVars]float64

// AmplitudeVector holds the seasonal swing (August minus February) of
// each state variable, in the same order as a StateVector.
type AmplitudeVector [NVars]float64

// TargetVector holds the four derived carbonate-system variables,
// in the order given by the target variable index constants.
type TargetVector [NVars]float64

// ForwardFunc maps a state vector to the four derived carbonate-system
// variables. Implementations must be pure and deterministic: the
// differentiation engine calls them repeatedly with slightly perturbed
// inputs and relies on reproducible output for identical input.
// An error return means the equilibrium system has no physical
// solution for the given state.
type ForwardFunc func(StateVector) (TargetVector, error)

// ScalarFunc is a single-output view of a forward model.
type ScalarFunc func(StateVector) (float64, error)

// Target returns the scalar function that evaluates f and selects
// target variable j.
func Target(f ForwardFunc, j int) ScalarFunc {
	return func(x StateVector) (float64, error) {
		y, err := f(x)
		if err != nil {
			return 0, err
		}
		return y[j], nil
	}
}
