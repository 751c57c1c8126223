/*
Copyright © 2019 the dycore authors.
This file is part of dycore.

dycore is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

dycore is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with dycore.  If not, see <http://www.gnu.org/licenses/>.
*/

package dycore

// SweepOrder selects the order of the one-dimensional sweeps in a time step.
// Alternating the order from step to step keeps the splitting second-order
// accurate.
type SweepOrder int

// Sweep orders.
const (
	// Forward sweeps x, then y, then z.
	Forward SweepOrder = iota
	// Reverse sweeps z, then y, then x.
	Reverse
)

func (s SweepOrder) String() string {
	if s == Reverse {
		return "reverse"
	}
	return "forward"
}

// Next returns the order used by the following time step.
func (s SweepOrder) Next() SweepOrder {
	if s == Forward {
		return Reverse
	}
	return Forward
}

// Axes returns the sweep sequence over the given active axes, which must be
// in forward order.
func (s SweepOrder) Axes(active []Axis) []Axis {
	o := make([]Axis, len(active))
	for i, a := range active {
		if s == Forward {
			o[i] = a
		} else {
			o[len(active)-1-i] = a
		}
	}
	return o
}
