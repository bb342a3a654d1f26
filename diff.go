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
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// StepSizes holds the finite-difference step for each state variable,
// in state-index order. The state variables span several orders of
// magnitude (AT and CT are O(2000) μmol/kg while S is O(35) and T is
// O(1-30) °C), so a single step size cannot serve all of them.
type StepSizes [NVars]float64

// DefaultSteps are finite-difference steps of roughly 1e-4 to 1e-5
// relative to each variable's typical ocean-surface scale. Second
// derivatives of the carbonate system are sensitive to the step
// choice near the linearity boundary; these values keep the
// truncation and rounding errors of the second-order stencils
// roughly balanced at float64 precision.
var DefaultSteps = StepSizes{
	IAT: 0.1,  // μmol/kg
	ICT: 0.1,  // μmol/kg
	IS:  1e-3, // salinity units
	IT:  1e-3, // °C
}

// HessianAsymTolerance is the relative disagreement between the two
// independent nested-difference estimates of a mixed partial above
// which a warning is logged. The symmetrized average is used either way.
const HessianAsymTolerance = 1e-6

// Jacobian estimates the 4×4 matrix of first partial derivatives of
// the forward model at x using central differences with the given
// per-variable steps. Rows are target variables and columns are state
// variables. If the forward model fails at any perturbed point the
// whole evaluation fails.
func Jacobian(f ForwardFunc, x StateVector, h StepSizes) (*mat.Dense, error) {
	jac := mat.NewDense(NVars, NVars, nil)
	for i := 0; i < NVars; i++ {
		xp, xm := x, x
		xp[i] += h[i]
		xm[i] -= h[i]
		fp, err := f(xp)
		if err != nil {
			return nil, fmt.Errorf("deltacarb: jacobian: forward model at %s+h: %v", StateNames[i], err)
		}
		fm, err := f(xm)
		if err != nil {
			return nil, fmt.Errorf("deltacarb: jacobian: forward model at %s-h: %v", StateNames[i], err)
		}
		for j := 0; j < NVars; j++ {
			jac.Set(j, i, (fp[j]-fm[j])/(2*h[i]))
		}
	}
	return jac, nil
}

// Hessian estimates the 4×4 symmetric matrix of second partial
// derivatives of the scalar function f at x. Diagonal entries use the
// second-order central stencil (f(x+h) - 2f(x) + f(x-h))/h². Each
// mixed partial is estimated twice by nested central first
// differences, once per differentiation order, and the two estimates
// are averaged; disagreement beyond HessianAsymTolerance is logged as
// a warning. If the function fails at any perturbed point the whole
// evaluation fails.
func Hessian(f ScalarFunc, x StateVector, h StepSizes) (*mat.SymDense, error) {
	f0, err := f(x)
	if err != nil {
		return nil, fmt.Errorf("deltacarb: hessian: forward model at base point: %v", err)
	}
	var raw [NVars][NVars]float64
	for i := 0; i < NVars; i++ {
		xp, xm := x, x
		xp[i] += h[i]
		xm[i] -= h[i]
		fp, err := f(xp)
		if err != nil {
			return nil, fmt.Errorf("deltacarb: hessian: forward model at %s+h: %v", StateNames[i], err)
		}
		fm, err := f(xm)
		if err != nil {
			return nil, fmt.Errorf("deltacarb: hessian: forward model at %s-h: %v", StateNames[i], err)
		}
		raw[i][i] = (fp - 2*f0 + fm) / (h[i] * h[i])
		for j := 0; j < NVars; j++ {
			if j == i {
				continue
			}
			raw[i][j], err = mixedPartial(f, x, i, j, h)
			if err != nil {
				return nil, err
			}
		}
	}

	hess := mat.NewSymDense(NVars, nil)
	for i := 0; i < NVars; i++ {
		hess.SetSym(i, i, raw[i][i])
		for j := i + 1; j < NVars; j++ {
			a, b := raw[i][j], raw[j][i]
			scale := math.Max(math.Abs(a), math.Abs(b))
			if d := math.Abs(a - b); scale > 0 && d > HessianAsymTolerance*math.Max(1, scale) {
				logrus.WithFields(logrus.Fields{
					"vars":     StateNames[i] + "," + StateNames[j],
					"estimate": a,
					"mirror":   b,
				}).Warn("deltacarb: Hessian asymmetry beyond tolerance; using symmetrized average")
			}
			hess.SetSym(i, j, (a+b)/2)
		}
	}
	return hess, nil
}

// mixedPartial estimates ∂²f/∂x_i∂x_j at x by a central first
// difference in x_i of central first differences in x_j.
func mixedPartial(f ScalarFunc, x StateVector, i, j int, h StepSizes) (float64, error) {
	xp, xm := x, x
	xp[i] += h[i]
	xm[i] -= h[i]
	dp, err := partial(f, xp, j, h[j])
	if err != nil {
		return 0, err
	}
	dm, err := partial(f, xm, j, h[j])
	if err != nil {
		return 0, err
	}
	return (dp - dm) / (2 * h[i]), nil
}

// partial estimates ∂f/∂x_j at x by a central first difference.
func partial(f ScalarFunc, x StateVector, j int, hj float64) (float64, error) {
	xp, xm := x, x
	xp[j] += hj
	xm[j] -= hj
	fp, err := f(xp)
	if err != nil {
		return 0, fmt.Errorf("deltacarb: hessian: forward model at %s+h: %v", StateNames[j], err)
	}
	fm, err := f(xm)
	if err != nil {
		return 0, fmt.Errorf("deltacarb: hessian: forward model at %s-h: %v", StateNames[j], err)
	}
	return (fp - fm) / (2 * hj), nil
}
