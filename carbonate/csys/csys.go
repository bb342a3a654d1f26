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

// Package csys solves the seawater CO2 equilibrium system.
//
// Given total alkalinity, dissolved inorganic carbon, salinity, and
// temperature it returns CO2 partial pressure, hydrogen ion
// concentration, carbonate ion concentration, and the aragonite
// saturation state. Pressure is fixed at 0 dbar (surface) and
// phosphate and silicate are fixed at 0, so the alkalinity equation
// includes the carbonate, borate, and water contributions only.
// Equilibrium constants follow the standard surface-ocean
// formulations: Weiss (1974) for CO2 solubility, Lueker et al. (2000)
// for the carbonic acid constants, Dickson (1990) for boric acid,
// Millero (1995) for water, and Mucci (1983) for aragonite
// solubility, with total boron from Uppström (1974) and calcium from
// Riley and Tongudai (1967).
package csys

import (
	"errors"
	"fmt"
	"math"
)

// physical constants
const (
	zeroC = 273.15 // K, 0 °C in Kelvin

	boronToSalinity   = 0.0004157 / 35 // mol/kg per salinity unit, Uppström (1974)
	calciumToSalinity = 0.010285 / 35  // mol/kg per salinity unit, Riley and Tongudai (1967)

	// pH bracket for the alkalinity solve. Seawater equilibria
	// outside this range have no physical meaning here.
	phMin = 1.0
	phMax = 12.0

	// solverTolerance is the relative alkalinity residual at which
	// the pH bisection stops.
	solverTolerance = 1e-14

	// maxIterations bounds the bisection. 200 halvings of the pH
	// bracket reach float64 resolution with a wide margin.
	maxIterations = 200
)

// ErrNoSolution indicates that the equilibrium system has no physical
// solution for the given inputs.
var ErrNoSolution = errors.New("csys: carbonate system has no physical solution")

// Solver solves the surface seawater carbonate system. The zero value
// is ready to use. Solve is pure and deterministic: repeated calls
// with identical inputs return bit-identical results.
type Solver struct{}

// New returns a new carbonate-system solver.
func New() *Solver {
	return &Solver{}
}

// constants holds the equilibrium constants of the carbonate system
// at one temperature and salinity, on the total pH scale where scale
// matters, in mol/kg units.
type constants struct {
	k0   float64 // CO2 solubility [mol/kg/atm]
	k1   float64 // first carbonic acid dissociation
	k2   float64 // second carbonic acid dissociation
	kb   float64 // boric acid dissociation
	kw   float64 // water dissociation
	kspA float64 // aragonite solubility product [(mol/kg)²]
	bt   float64 // total boron [mol/kg]
	ca   float64 // calcium [mol/kg]
}

// newConstants evaluates the equilibrium constants at temperature
// t [°C] and salinity s.
func newConstants(t, s float64) constants {
	tk := t + zeroC
	lnTK := math.Log(tk)
	sqS := math.Sqrt(s)

	var c constants

	// Weiss (1974) [mol/kg/atm].
	c.k0 = math.Exp(-60.2409 + 93.4517*(100/tk) + 23.3585*math.Log(tk/100) +
		s*(0.023517-0.023656*(tk/100)+0.0047036*(tk/100)*(tk/100)))

	// Lueker et al. (2000), total scale.
	pk1 := 3633.86/tk - 61.2172 + 9.67770*lnTK - 0.011555*s + 0.0001152*s*s
	pk2 := 471.78/tk + 25.9290 - 3.16967*lnTK - 0.01781*s + 0.0001122*s*s
	c.k1 = math.Pow(10, -pk1)
	c.k2 = math.Pow(10, -pk2)

	// Dickson (1990), total scale.
	c.kb = math.Exp((-8966.90-2890.53*sqS-77.942*s+1.728*s*sqS-0.0996*s*s)/tk +
		148.0248 + 137.1942*sqS + 1.62142*s -
		(24.4344+25.085*sqS+0.2474*s)*lnTK +
		0.053105*sqS*tk)

	// Millero (1995).
	c.kw = math.Exp(148.9652 - 13847.26/tk - 23.6521*lnTK +
		(118.67/tk-5.977+1.0495*lnTK)*sqS - 0.01615*s)

	// Mucci (1983).
	log10KspA := -171.945 - 0.077993*tk + 2903.293/tk + 71.595*math.Log10(tk) +
		(-0.068393+0.0017276*tk+88.135/tk)*sqS - 0.10018*s + 0.0059415*s*sqS
	c.kspA = math.Pow(10, log10KspA)

	c.bt = boronToSalinity * s
	c.ca = calciumToSalinity * s
	return c
}

// alkalinity returns the total alkalinity [mol/kg] implied by
// hydrogen ion concentration h [mol/kg] with dissolved inorganic
// carbon ct [mol/kg]: carbonate alkalinity plus borate plus hydroxide
// minus free hydrogen. It decreases monotonically with h.
func (c constants) alkalinity(h, ct float64) float64 {
	den := h*h + c.k1*h + c.k1*c.k2
	carbAlk := ct * (c.k1*h + 2*c.k1*c.k2) / den
	return carbAlk + c.bt*c.kb/(c.kb+h) + c.kw/h - h
}

// Solve returns pCO2 [μatm], hydrogen ion concentration [nmol/kg],
// carbonate ion concentration [μmol/kg], and aragonite saturation
// state for total alkalinity at [μmol/kg], dissolved inorganic carbon
// ct [μmol/kg], salinity s, and temperature t [°C]. It returns an
// error wrapping ErrNoSolution if no hydrogen ion concentration
// within the seawater pH range balances the alkalinity equation.
func (sv *Solver) Solve(at, ct, s, t float64) (pco2, h, co3, omegaA float64, err error) {
	if at <= 0 || ct <= 0 || s <= 0 || t < -zeroC {
		return 0, 0, 0, 0, fmt.Errorf("%w: AT=%g CT=%g S=%g T=%g", ErrNoSolution, at, ct, s, t)
	}
	c := newConstants(t, s)
	atMol := at * 1e-6
	ctMol := ct * 1e-6

	hi, err := solvePH(c, atMol, ctMol)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("%w: AT=%g CT=%g S=%g T=%g", err, at, ct, s, t)
	}

	den := hi*hi + c.k1*hi + c.k1*c.k2
	co2Star := ctMol * hi * hi / den
	co3Mol := ctMol * c.k1 * c.k2 / den

	pco2 = co2Star / c.k0 * 1e6  // atm → μatm
	h = hi * 1e9                 // mol/kg → nmol/kg
	co3 = co3Mol * 1e6           // mol/kg → μmol/kg
	omegaA = c.ca * co3Mol / c.kspA
	return pco2, h, co3, omegaA, nil
}

// solvePH finds the hydrogen ion concentration [mol/kg] that balances
// the alkalinity equation by bisection on pH. The alkalinity residual
// is monotone in pH, so a sign change over the bracket guarantees a
// unique root.
func solvePH(c constants, at, ct float64) (float64, error) {
	residual := func(ph float64) float64 {
		return c.alkalinity(math.Pow(10, -ph), ct) - at
	}
	lo, hi := phMin, phMax
	rLo, rHi := residual(lo), residual(hi)
	if rLo*rHi > 0 {
		return 0, ErrNoSolution
	}
	var mid float64
	for i := 0; i < maxIterations; i++ {
		mid = (lo + hi) / 2
		rMid := residual(mid)
		if math.Abs(rMid) <= solverTolerance*at || hi-lo < 1e-15 {
			break
		}
		if rMid*rLo > 0 {
			lo, rLo = mid, rMid
		} else {
			hi = mid
		}
	}
	return math.Pow(10, -mid), nil
}
