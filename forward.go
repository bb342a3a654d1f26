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

import "github.com/oceanmodel/deltacarb/carbonate/csys"

// CarbonateSolver is the subset of the csys solver the decomposition
// needs. Anything that maps (AT, CT, S, T) to the four equilibrium
// quantities can stand in for the default solver.
type CarbonateSolver interface {
	Solve(at, ct, s, t float64) (pco2, h, co3, omegaA float64, err error)
}

// ForwardModel adapts a carbonate-system solver to the ForwardFunc
// contract used by the differentiation engine. If s is nil the
// default csys solver is used.
func ForwardModel(s CarbonateSolver) ForwardFunc {
	if s == nil {
		s = csys.New()
	}
	return func(x StateVector) (TargetVector, error) {
		pco2, h, co3, omegaA, err := s.Solve(x[IAT], x[ICT], x[IS], x[IT])
		if err != nil {
			return TargetVector{}, err
		}
		return TargetVector{JPCO2: pco2, JH: h, JCO3: co3, JOmegaA: omegaA}, nil
	}
}
