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
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// different reports whether a and b disagree beyond a tolerance that
// is relative for large values and absolute for values near zero.
func different(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestTermNames(t *testing.T) {
	want := []string{
		"AT", "CT", "S", "T",
		"AT_AT", "AT_CT", "AT_S", "AT_T",
		"CT_CT", "CT_S", "CT_T",
		"S_S", "S_T",
		"T_T",
	}
	got := TermNames()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("term names: got %v, want %v", got, want)
	}
	if len(got) != NTerms {
		t.Errorf("term count: got %d, want %d", len(got), NTerms)
	}
}

// TestDecomposeExample checks the decomposition of the stub model
// f(AT,CT,S,T) = AT·CT − S² + T at AT=2685, CT=2300, S=38.1, T=18.5
// with amplitudes ΔAT=15, ΔCT=−5, ΔS=0.1, ΔT=11, using the analytic
// Jacobian row and Hessian.
func TestDecomposeExample(t *testing.T) {
	const tolerance = 1e-12

	jRow := []float64{2300, 2685, -76.2, 1}
	hess := mat.NewSymDense(NVars, nil)
	hess.SetSym(IAT, ICT, 1)
	hess.SetSym(IS, IS, -2)
	delta := AmplitudeVector{IAT: 15, ICT: -5, IS: 0.1, IT: 11}

	got := Decompose(jRow, hess, delta)

	want := map[string]float64{
		"AT": 34500, "CT": -13425, "S": -7.62, "T": 11,
		"AT_CT": -150, "S_S": -0.02,
	}
	for n, name := range TermNames() {
		if different(got[n], want[name], tolerance) {
			t.Errorf("term %s: got %g, want %g", name, got[n], want[name])
		}
	}
}

// quadModel is a forward model that is exactly quadratic in its four
// inputs: target j is c_j + g_j·x + ½ x'A_j x for fixed coefficients.
// Central differences are exact for quadratics up to rounding, so the
// numerically decomposed terms must match the analytically decomposed
// ones to floating-point tolerance.
type quadModel struct {
	c [NVars]float64
	g [NVars][NVars]float64
	a [NVars][NVars][NVars]float64 // symmetric in the last two indices
}

func newQuadModel() *quadModel {
	m := new(quadModel)
	for j := 0; j < NVars; j++ {
		m.c[j] = float64(j + 1)
		for k := 0; k < NVars; k++ {
			m.g[j][k] = float64(j+1) * float64(k+2) * 1e-2
			for l := k; l < NVars; l++ {
				v := float64(j+1) * float64(k+l+1) * 1e-5
				m.a[j][k][l] = v
				m.a[j][l][k] = v
			}
		}
	}
	return m
}

func (m *quadModel) forward(x StateVector) (TargetVector, error) {
	var y TargetVector
	for j := 0; j < NVars; j++ {
		y[j] = m.c[j]
		for k := 0; k < NVars; k++ {
			y[j] += m.g[j][k] * x[k]
			for l := 0; l < NVars; l++ {
				y[j] += 0.5 * m.a[j][k][l] * x[k] * x[l]
			}
		}
	}
	return y, nil
}

// analytic returns the exact Jacobian row and Hessian of target j
// at x.
func (m *quadModel) analytic(j int, x StateVector) ([]float64, *mat.SymDense) {
	jRow := make([]float64, NVars)
	hess := mat.NewSymDense(NVars, nil)
	for k := 0; k < NVars; k++ {
		jRow[k] = m.g[j][k]
		for l := 0; l < NVars; l++ {
			jRow[k] += m.a[j][k][l] * x[l]
		}
		for l := k; l < NVars; l++ {
			hess.SetSym(k, l, m.a[j][k][l])
		}
	}
	return jRow, hess
}

func TestQuadraticReconstruction(t *testing.T) {
	// The second-difference stencils leave rounding noise of order
	// eps·f/h² in the Hessian entries; with unit steps and O(1e4)
	// function values that floor sits near 1e-11, two decades below
	// this tolerance.
	const tolerance = 1e-7

	m := newQuadModel()
	x := StateVector{IAT: 2685, ICT: 2300, IS: 38.1, IT: 18.5}
	delta := AmplitudeVector{IAT: 15, ICT: -5, IS: 0.1, IT: 11}

	// Central differences are exact on quadratics at any step size,
	// so wide steps cost no truncation accuracy.
	steps := StepSizes{IAT: 1, ICT: 1, IS: 1, IT: 1}
	jac, err := Jacobian(m.forward, x, steps)
	if err != nil {
		t.Fatal(err)
	}
	for j := 0; j < NVars; j++ {
		hess, err := Hessian(Target(m.forward, j), x, steps)
		if err != nil {
			t.Fatal(err)
		}
		numeric := Decompose(jac.RawRowView(j), hess, delta)

		jRow, aHess := m.analytic(j, x)
		exact := Decompose(jRow, aHess, delta)

		for n, name := range TermNames() {
			if different(numeric[n], exact[n], tolerance) {
				t.Errorf("target %d term %s: numeric %g, analytic %g",
					j, name, numeric[n], exact[n])
			}
		}
		if different(numeric.Sum(), exact.Sum(), tolerance) {
			t.Errorf("target %d reconstruction: numeric %g, analytic %g",
				j, numeric.Sum(), exact.Sum())
		}
	}
}

// TestDecomposeScaling checks that shrinking the amplitudes by 10
// shrinks first-order terms by 10 and second-order terms by 100.
func TestDecomposeScaling(t *testing.T) {
	const tolerance = 1e-12

	jRow := []float64{3, -2, 0.5, 7}
	hess := mat.NewSymDense(NVars, []float64{
		0.2, 1.0, -0.3, 0.7,
		1.0, -0.4, 0.9, 0.1,
		-0.3, 0.9, 2.0, -1.1,
		0.7, 0.1, -1.1, 0.6,
	})
	delta := AmplitudeVector{15, -5, 0.1, 11}
	var scaled AmplitudeVector
	for k := range delta {
		scaled[k] = delta[k] * 0.1
	}

	full := Decompose(jRow, hess, delta)
	small := Decompose(jRow, hess, scaled)

	for n := range TermNames() {
		factor := 0.1
		if n >= NFirstOrder {
			factor = 0.01
		}
		if different(small[n], full[n]*factor, tolerance) {
			t.Errorf("term %d: got %g, want %g", n, small[n], full[n]*factor)
		}
	}
}
