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

import "fmt"

// Kinds of numerical invariant violations.
const (
	NegativeTracer = "negative tracer"
	MassChange     = "mass change"
)

// InvariantError is returned when the state violates a numerical invariant
// that indicates a defect in the scheme or an unstable time step.
type InvariantError struct {
	// Kind is NegativeTracer or MassChange.
	Kind string

	// Field is the tracer or field name, or "density".
	Field string

	// Value is the most negative tracer density or the relative mass
	// change.
	Value float64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("dycore: %s in %s: %g", e.Kind, e.Field, e.Value)
}
