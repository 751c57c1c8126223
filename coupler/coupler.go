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

// Package coupler holds the primitive-variable state shared between the
// dynamical core and physics packages: dry density, winds, temperature and
// tracer densities on a structured grid, together with the vertical grid
// and a fitted hydrostatic pressure profile.
package coupler

import (
	"fmt"
	"sort"

	"github.com/ctessum/sparse"
)

// MaxTracers is the largest number of tracers that can be registered.
const MaxTracers = 50

// Names of the fields that are always present.
const (
	DensityDry = "density_dry"
	UVel       = "uvel"
	VVel       = "vvel"
	WVel       = "wvel"
	Temp       = "temp"
	WaterVapor = "water_vapor"
)

// Tracer describes a transported scalar.
type Tracer struct {
	Name string
	Desc string

	// Positive specifies that the tracer must remain non-negative.
	Positive bool

	// AddsMass specifies that the tracer counts toward total density.
	AddsMass bool
}

// Constants are the physical constants shared by all packages.
type Constants struct {
	Rd, Rv, Cpd, Cpv, Grav, P0 float64
}

// DefaultConstants returns the single-moment microphysics constants.
func DefaultConstants() Constants {
	return Constants{Rd: 287, Rv: 461, Cpd: 1004, Cpv: 1859, Grav: 9.81, P0: 1.e5}
}

// Coupler holds the shared state. Fields are shaped [nz][ny][nx][nens].
type Coupler struct {
	Nx, Ny, Nz, Nens int
	Xlen, Ylen       float64
	Constants

	fields  map[string]*sparse.DenseArray
	tracers []Tracer

	// Zint holds interface heights [nz+1][nens]; Dz and Zmid hold cell
	// thicknesses and midpoint heights [nz][nens].
	Zint, Dz, Zmid *sparse.DenseArray

	// HydrostasisParams holds the coefficients of the fitted log-pressure
	// polynomial of each level [nz][5][nens].
	HydrostasisParams *sparse.DenseArray
	hydrostasisSet    bool
}

// New allocates a coupler for a grid with the given dimensions and
// horizontal domain lengths [m].
func New(nx, ny, nz, nens int, xlen, ylen float64) (*Coupler, error) {
	for _, d := range []struct {
		name string
		n    int
	}{{"nx", nx}, {"ny", ny}, {"nz", nz}, {"nens", nens}} {
		if d.n <= 0 {
			return nil, fmt.Errorf("coupler: %s=%d but should be >0", d.name, d.n)
		}
	}
	if !(xlen > 0) || !(ylen > 0) {
		return nil, fmt.Errorf("coupler: domain lengths (%g, %g) should be >0", xlen, ylen)
	}
	c := &Coupler{
		Nx: nx, Ny: ny, Nz: nz, Nens: nens,
		Xlen: xlen, Ylen: ylen,
		Constants:         DefaultConstants(),
		fields:            make(map[string]*sparse.DenseArray),
		Zint:              sparse.ZerosDense(nz+1, nens),
		Dz:                sparse.ZerosDense(nz, nens),
		Zmid:              sparse.ZerosDense(nz, nens),
		HydrostasisParams: sparse.ZerosDense(nz, 5, nens),
	}
	for _, name := range []string{DensityDry, UVel, VVel, WVel, Temp} {
		c.fields[name] = sparse.ZerosDense(nz, ny, nx, nens)
	}
	return c, nil
}

// Dx returns the x grid spacing [m].
func (c *Coupler) Dx() float64 { return c.Xlen / float64(c.Nx) }

// Dy returns the y grid spacing [m].
func (c *Coupler) Dy() float64 { return c.Ylen / float64(c.Ny) }

// AddTracer registers a tracer and allocates its field.
func (c *Coupler) AddTracer(name, desc string, positive, addsMass bool) error {
	if name == "" {
		return fmt.Errorf("coupler: tracer name is empty")
	}
	if _, ok := c.fields[name]; ok {
		return fmt.Errorf("coupler: field '%s' already exists", name)
	}
	if len(c.tracers) >= MaxTracers {
		return fmt.Errorf("coupler: cannot add tracer '%s': already have the maximum of %d tracers", name, MaxTracers)
	}
	c.tracers = append(c.tracers, Tracer{Name: name, Desc: desc, Positive: positive, AddsMass: addsMass})
	c.fields[name] = sparse.ZerosDense(c.Nz, c.Ny, c.Nx, c.Nens)
	return nil
}

// Tracers returns the registered tracers in registration order.
func (c *Coupler) Tracers() []Tracer {
	o := make([]Tracer, len(c.tracers))
	copy(o, c.tracers)
	return o
}

// TracerIndex returns the registration index of the named tracer.
func (c *Coupler) TracerIndex(name string) (int, bool) {
	for i, t := range c.tracers {
		if t.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Field returns the named field.
func (c *Coupler) Field(name string) (*sparse.DenseArray, error) {
	f, ok := c.fields[name]
	if !ok {
		return nil, fmt.Errorf("coupler: no field named '%s'", name)
	}
	return f, nil
}

// MustField is like Field but panics if the field does not exist. It is
// meant for the fields that are always allocated.
func (c *Coupler) MustField(name string) *sparse.DenseArray {
	f, err := c.Field(name)
	if err != nil {
		panic(err)
	}
	return f
}

// FieldNames returns the names of all fields in sorted order.
func (c *Coupler) FieldNames() []string {
	o := make([]string, 0, len(c.fields))
	for n := range c.fields {
		o = append(o, n)
	}
	sort.Strings(o)
	return o
}

// SetVerticalGrid sets the vertical interface heights [m]. zint holds
// either one column of nz+1 heights shared by all ensemble members or one
// column per ensemble member. Heights must increase. A dynamical core
// already built on c switches to the new grid at its next time step.
func (c *Coupler) SetVerticalGrid(zint ...[]float64) error {
	if len(zint) != 1 && len(zint) != c.Nens {
		return fmt.Errorf("coupler: got %d vertical grids but need 1 or %d", len(zint), c.Nens)
	}
	for e := 0; e < c.Nens; e++ {
		col := zint[0]
		if len(zint) > 1 {
			col = zint[e]
		}
		if len(col) != c.Nz+1 {
			return fmt.Errorf("coupler: vertical grid has %d interfaces but needs %d", len(col), c.Nz+1)
		}
		for k := 0; k < c.Nz; k++ {
			if !(col[k+1] > col[k]) {
				return fmt.Errorf("coupler: vertical interfaces must increase, but z[%d]=%g and z[%d]=%g", k, col[k], k+1, col[k+1])
			}
		}
		for k := 0; k <= c.Nz; k++ {
			c.Zint.Elements[c.Zint.Index1d(k, e)] = col[k]
			if k < c.Nz {
				c.Zmid.Elements[c.Zmid.Index1d(k, e)] = (col[k] + col[k+1]) / 2
				c.Dz.Elements[c.Dz.Index1d(k, e)] = col[k+1] - col[k]
			}
		}
	}
	return nil
}

// UniformGrid returns nz+1 evenly spaced interface heights from 0 to zlen.
func UniformGrid(nz int, zlen float64) []float64 {
	z := make([]float64, nz+1)
	for k := range z {
		z[k] = zlen * float64(k) / float64(nz)
	}
	return z
}

// Column returns the interface heights of ensemble member e.
func (c *Coupler) Column(e int) []float64 {
	z := make([]float64, c.Nz+1)
	for k := range z {
		z[k] = c.Zint.Get(k, e)
	}
	return z
}
