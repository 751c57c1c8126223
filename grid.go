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

// Axis is a grid direction.
type Axis int

// The three grid axes. Z is vertical.
const (
	X Axis = iota
	Y
	Z
)

func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Indices of the conserved state fields.
const (
	idR      = iota // density perturbation
	idU             // x momentum
	idV             // y momentum
	idW             // z momentum
	idT             // density times potential temperature, perturbation
	NumState        // number of state fields
)

// StateNames are the names of the conserved state fields in storage order.
var StateNames = []string{"dens_pert", "mom_x", "mom_y", "mom_z", "dens_theta_pert"}

// layout maps (field, k, j, i, ensemble) indices to positions in a
// halo-padded array shaped [nv][nz+2hs][ny+2hs][nx+2hs][nens].
type layout struct {
	nx, ny, nz, nens, hs int
	sx, sy, sz, sv       int
}

func newLayout(nx, ny, nz, nens, hs int) layout {
	l := layout{nx: nx, ny: ny, nz: nz, nens: nens, hs: hs}
	l.sx = nens
	l.sy = (nx + 2*hs) * l.sx
	l.sz = (ny + 2*hs) * l.sy
	l.sv = (nz + 2*hs) * l.sz
	return l
}

// shape returns the padded array shape for nv fields.
func (l layout) shape(nv int) []int {
	return []int{nv, l.nz + 2*l.hs, l.ny + 2*l.hs, l.nx + 2*l.hs, l.nens}
}

// index returns the position of field v at interior cell (k, j, i) and
// ensemble member e. Negative or too-large cell indices address the halo.
func (l layout) index(v, k, j, i, e int) int {
	return v*l.sv + (k+l.hs)*l.sz + (j+l.hs)*l.sy + (i+l.hs)*l.sx + e
}

// n returns the number of interior cells along a.
func (l layout) n(a Axis) int {
	switch a {
	case X:
		return l.nx
	case Y:
		return l.ny
	default:
		return l.nz
	}
}

// stride returns the distance between neighboring cells along a.
func (l layout) stride(a Axis) int {
	switch a {
	case X:
		return l.sx
	case Y:
		return l.sy
	default:
		return l.sz
	}
}

// cells returns the number of interior cells of one field.
func (l layout) cells() int { return l.nx * l.ny * l.nz * l.nens }

// cell converts a flat interior cell number into (k, j, i, e).
func (l layout) cell(n int) (k, j, i, e int) {
	e = n % l.nens
	n /= l.nens
	i = n % l.nx
	n /= l.nx
	j = n % l.ny
	k = n / l.ny
	return
}

// line is one row of cells along an axis.
type line struct {
	base       int // position of interior cell 0 of field 0
	k, j, i, e int // indices of interior cell 0
}

// numLines returns the number of lines along a.
func (l layout) numLines(a Axis) int {
	switch a {
	case X:
		return l.nz * l.ny * l.nens
	case Y:
		return l.nz * l.nx * l.nens
	default:
		return l.ny * l.nx * l.nens
	}
}

// line returns line number n along a.
func (l layout) line(a Axis, n int) line {
	var ln line
	ln.e = n % l.nens
	n /= l.nens
	switch a {
	case X:
		ln.j, ln.k = n%l.ny, n/l.ny
	case Y:
		ln.i, ln.k = n%l.nx, n/l.nx
	default:
		ln.i, ln.j = n%l.nx, n/l.nx
	}
	ln.base = l.index(0, ln.k, ln.j, ln.i, ln.e)
	return ln
}
