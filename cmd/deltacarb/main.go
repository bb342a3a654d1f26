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

// Command deltacarb is a command-line interface for the DeltaCarb
// seasonal carbonate-chemistry decomposition.
package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/oceanmodel/deltacarb/deltacarbutil"
)

func main() {
	if err := deltacarbutil.Root.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
