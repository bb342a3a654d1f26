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
	"testing"
)

// fakeSolver returns its inputs rearranged so the adapter's argument
// and result ordering is checkable.
type fakeSolver struct {
	fail bool
}

func (s *fakeSolver) Solve(at, ct, sal, t float64) (pco2, h, co3, omegaA float64, err error) {
	if s.fail {
		return 0, 0, 0, 0, fmt.Errorf("no solution")
	}
	return at + 1, ct + 2, sal + 3, t + 4, nil
}

func TestForwardModel(t *testing.T) {
	f := ForwardModel(&fakeSolver{})
	x := StateVector{IAT: 2685, ICT: 2300, IS: 38.1, IT: 18.5}
	y, err := f(x)
	if err != nil {
		t.Fatal(err)
	}
	want := TargetVector{JPCO2: 2686, JH: 2302, JCO3: 41.1, JOmegaA: 22.5}
	for j := range want {
		if different(y[j], want[j], 1e-12) {
			t.Errorf("target %s: got %g, want %g", TargetNames[j], y[j], want[j])
		}
	}

	if _, err := ForwardModel(&fakeSolver{fail: true})(x); err == nil {
		t.Error("expected solver error to propagate, got nil")
	}
}

func TestForwardModelDefault(t *testing.T) {
	f := ForwardModel(nil)
	y, err := f(StateVector{IAT: 2300, ICT: 1970, IS: 35.5, IT: 22})
	if err != nil {
		t.Fatal(err)
	}
	for j, v := range y {
		if v <= 0 {
			t.Errorf("target %s: got %g, want > 0", TargetNames[j], v)
		}
	}
}

func TestTarget(t *testing.T) {
	g := Target(stubForward, JCO3)
	x := StateVector{IAT: 10, ICT: 20, IS: 3, IT: 4}
	v, err := g(x)
	if err != nil {
		t.Fatal(err)
	}
	// stubForward offsets target j by j.
	if want := 10.0*20 - 3*3 + 4 + 2; v != want {
		t.Errorf("got %g, want %g", v, want)
	}
}
