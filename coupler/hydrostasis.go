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

package coupler

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/spf13/cast"
	"gonum.org/v1/gonum/mat"
)

// Pressure returns the moist pressure [Pa] of every cell,
// p = ρd Rd T + ρv Rv T.
func (c *Coupler) Pressure() (*sparse.DenseArray, error) {
	rv, err := c.Field(WaterVapor)
	if err != nil {
		return nil, err
	}
	rd := c.fields[DensityDry]
	t := c.fields[Temp]
	p := sparse.ZerosDense(c.Nz, c.Ny, c.Nx, c.Nens)
	for i := range p.Elements {
		p.Elements[i] = rd.Elements[i]*c.Rd*t.Elements[i] + rv.Elements[i]*c.Rv*t.Elements[i]
	}
	return p, nil
}

const hydrostasisPoints = 5

// UpdateHydrostasis fits, for every level and ensemble member, a quartic
// polynomial in normalized height to the logarithm of the horizontally
// averaged pressure at five neighboring levels. The stencil is shifted to
// stay inside the column. Water vapor must be registered and there must be
// at least five levels.
func (c *Coupler) UpdateHydrostasis() error {
	if c.Nz < hydrostasisPoints {
		return fmt.Errorf("coupler: hydrostasis fit needs at least %d levels but there are %d", hydrostasisPoints, c.Nz)
	}
	p, err := c.Pressure()
	if err != nil {
		return fmt.Errorf("coupler: updating hydrostasis: %v", err)
	}
	col := sparse.ZerosDense(c.Nz, c.Nens)
	r := 1 / float64(c.Nx*c.Ny)
	for k := 0; k < c.Nz; k++ {
		for j := 0; j < c.Ny; j++ {
			for i := 0; i < c.Nx; i++ {
				for e := 0; e < c.Nens; e++ {
					col.Elements[col.Index1d(k, e)] += p.Get(k, j, i, e) * r
				}
			}
		}
	}

	vand := mat.NewDense(hydrostasisPoints, hydrostasisPoints, nil)
	logp := mat.NewVecDense(hydrostasisPoints, nil)
	var params mat.VecDense
	for e := 0; e < c.Nens; e++ {
		for k := 0; k < c.Nz; k++ {
			kbot := k - hydrostasisPoints/2
			if kbot < 0 {
				kbot = 0
			}
			if kbot+hydrostasisPoints > c.Nz {
				kbot = c.Nz - hydrostasisPoints
			}
			z0 := c.Zmid.Get(k, e)
			dz := c.Dz.Get(k, e)
			for i := 0; i < hydrostasisPoints; i++ {
				z := (c.Zmid.Get(kbot+i, e) - z0) / dz
				for j := 0; j < hydrostasisPoints; j++ {
					vand.Set(i, j, math.Pow(z, float64(j)))
				}
				pc := col.Get(kbot+i, e)
				if !(pc > 0) {
					return fmt.Errorf("coupler: column pressure at level %d, ensemble %d is %g but should be >0", kbot+i, e, pc)
				}
				logp.SetVec(i, math.Log(pc))
			}
			if err := params.SolveVec(vand, logp); err != nil {
				return fmt.Errorf("coupler: fitting hydrostasis at level %d: %v", k, err)
			}
			for i := 0; i < hydrostasisPoints; i++ {
				c.HydrostasisParams.Elements[c.HydrostasisParams.Index1d(k, i, e)] = params.AtVec(i)
			}
		}
	}
	c.hydrostasisSet = true
	return nil
}

// HydrostasisSet reports whether UpdateHydrostasis has succeeded.
func (c *Coupler) HydrostasisSet() bool { return c.hydrostasisSet }

func (c *Coupler) hyCoefs(k, e int, z float64) (a [hydrostasisPoints]float64, zn, dz float64) {
	for i := range a {
		a[i] = c.HydrostasisParams.Get(k, i, e)
	}
	dz = c.Dz.Get(k, e)
	zn = (z - c.Zmid.Get(k, e)) / dz
	return
}

// HydrostaticPressure returns the fitted pressure [Pa] of level k and
// ensemble member e at height z [m].
func (c *Coupler) HydrostaticPressure(k, e int, z float64) float64 {
	a, zn, _ := c.hyCoefs(k, e, z)
	return math.Exp(a[0] + (a[1]+(a[2]+(a[3]+a[4]*zn)*zn)*zn)*zn)
}

// HydrostaticDensity returns the density [kg/m3] in hydrostatic balance
// with the fitted pressure, -dp/dz/g.
func (c *Coupler) HydrostaticDensity(k, e int, z float64) float64 {
	a, zn, dz := c.hyCoefs(k, e, z)
	p := math.Exp(a[0] + (a[1]+(a[2]+(a[3]+a[4]*zn)*zn)*zn)*zn)
	mult := a[1] + (2*a[2]+(3*a[3]+4*a[4]*zn)*zn)*zn
	return -mult * p / dz / c.Grav
}

// ReadVerticalGrid reads interface heights [m] from r, one or more per
// line separated by white space or commas. Lines starting with '#' are
// ignored.
func ReadVerticalGrid(r io.Reader) ([]float64, error) {
	var z []float64
	s := bufio.NewScanner(r)
	line := 0
	for s.Scan() {
		line++
		txt := strings.TrimSpace(s.Text())
		if txt == "" || strings.HasPrefix(txt, "#") {
			continue
		}
		for _, f := range strings.FieldsFunc(txt, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
			v, err := cast.ToFloat64E(f)
			if err != nil {
				return nil, fmt.Errorf("coupler: reading vertical grid line %d: %v", line, err)
			}
			z = append(z, v)
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("coupler: reading vertical grid: %v", err)
	}
	if len(z) < 2 {
		return nil, fmt.Errorf("coupler: vertical grid has %d interfaces but needs at least 2", len(z))
	}
	return z, nil
}
