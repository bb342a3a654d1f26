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
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Term counts of the decomposition: 4 first-order terms, one per state
// variable, and 10 second-order terms, one per unordered pair of state
// variables.
const (
	NFirstOrder  = NVars
	NSecondOrder = NVars * (NVars + 1) / 2
	NTerms       = NFirstOrder + NSecondOrder
)

// secondOrderPairs enumerates the unordered state-variable pairs
// (i,j) with i ≤ j in the canonical order. The pairs are listed
// explicitly rather than recovered by filtering zeroed matrix entries,
// so the term layout does not depend on the values being decomposed.
var secondOrderPairs = [NSecondOrder][2]int{
	{IAT, IAT}, {IAT, ICT}, {IAT, IS}, {IAT, IT},
	{ICT, ICT}, {ICT, IS}, {ICT, IT},
	{IS, IS}, {IS, IT},
	{IT, IT},
}

// TermSet holds the 14 contribution terms for one target variable at
// one grid cell: first the 4 first-order terms in state-index order,
// then the 10 second-order terms in secondOrderPairs order.
type TermSet [NTerms]float64

// TermNames returns the canonical ordered names of the 14 terms:
// AT, CT, S, T, AT_AT, AT_CT, AT_S, AT_T, CT_CT, CT_S, CT_T,
// S_S, S_T, T_T. First-order terms are named by the differentiated
// state variable and second-order terms by the unordered pair.
func TermNames() []string {
	names := make([]string, 0, NTerms)
	for _, n := range StateNames {
		names = append(names, n)
	}
	for _, p := range secondOrderPairs {
		names = append(names, StateNames[p[0]]+"_"+StateNames[p[1]])
	}
	return names
}

// Decompose combines one target variable's Jacobian row, its Hessian,
// and the seasonal amplitude vector into the 14 contribution terms.
// First-order term k is J_k·Δ_k. Second-order diagonal terms are
// H[i,i]·Δ_i², recorded once per variable, and off-diagonal terms are
// 2·H[i,j]·Δ_i·Δ_j, the mixed partial doubled to stand in for both
// symmetric Hessian entries.
func Decompose(jRow []float64, hess *mat.SymDense, delta AmplitudeVector) TermSet {
	var t TermSet
	for k := 0; k < NVars; k++ {
		t[k] = jRow[k] * delta[k]
	}
	for n, p := range secondOrderPairs {
		i, j := p[0], p[1]
		if i == j {
			t[NFirstOrder+n] = hess.At(i, i) * delta[i] * delta[i]
		} else {
			t[NFirstOrder+n] = 2 * hess.At(i, j) * delta[i] * delta[j]
		}
	}
	return t
}

// Sum returns the sum of all 14 terms, the decomposition's
// reconstruction of the seasonal change of the target variable.
func (t TermSet) Sum() float64 {
	return floats.Sum(t[:])
}
