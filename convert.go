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

import "github.com/spatialmodel/dycore/coupler"

// moistPressure returns the pressure of dry air with density rd and water
// vapor with density rv at temperature t.
func (d *Dycore) moistPressure(rd, rv, t float64) float64 {
	if g, ok := d.EOS.(*IdealGas); ok {
		return g.MoistPressure(rd, rv, t)
	}
	return (rd*d.Coupler.Rd + rv*d.Coupler.Rv) * t
}

// couplerFields returns the coupler's wind, temperature and tracer fields.
func (d *Dycore) couplerFields() (dry, u, v, w, temp []float64, tr [][]float64) {
	c := d.Coupler
	dry = c.MustField(coupler.DensityDry).Elements
	u = c.MustField(coupler.UVel).Elements
	v = c.MustField(coupler.VVel).Elements
	w = c.MustField(coupler.WVel).Elements
	temp = c.MustField(coupler.Temp).Elements
	tr = make([][]float64, len(d.tracers))
	for t, info := range d.tracers {
		tr[t] = c.MustField(info.Name).Elements
	}
	return
}

// PrimitiveToConserved sets the state from the coupler's dry density,
// winds, temperature and tracer densities. The total density includes the
// tracers that add mass.
func (d *Dycore) PrimitiveToConserved() {
	dry, u, v, w, temp, tr := d.couplerFields()
	st, trs := d.State.Elements, d.Tracers.Elements
	b := d.Background
	parallelFor(d.l.cells(), func(int) func(int) {
		return func(n int) {
			k, j, i, e := d.l.cell(n)
			dens := dry[n]
			for t, info := range d.tracers {
				if info.AddsMass {
					dens += tr[t][n]
				}
				trs[d.l.index(t, k, j, i, e)] = tr[t][n]
			}
			p := d.moistPressure(dry[n], tr[d.idWV][n], temp[n])
			st[d.l.index(idR, k, j, i, e)] = dens - b.Dens(k, e)
			st[d.l.index(idU, k, j, i, e)] = dens * u[n]
			st[d.l.index(idV, k, j, i, e)] = dens * v[n]
			st[d.l.index(idW, k, j, i, e)] = dens * w[n]
			st[d.l.index(idT, k, j, i, e)] = d.EOS.DensTheta(p) - b.DensTheta(k, e)
		}
	})
}

// ConservedToPrimitive writes the state to the coupler. It is the inverse
// of PrimitiveToConserved.
func (d *Dycore) ConservedToPrimitive() {
	dry, u, v, w, temp, tr := d.couplerFields()
	st, trs := d.State.Elements, d.Tracers.Elements
	b := d.Background
	parallelFor(d.l.cells(), func(int) func(int) {
		return func(n int) {
			k, j, i, e := d.l.cell(n)
			dens := st[d.l.index(idR, k, j, i, e)] + b.Dens(k, e)
			densDry := dens
			for t, info := range d.tracers {
				tr[t][n] = trs[d.l.index(t, k, j, i, e)]
				if info.AddsMass {
					densDry -= tr[t][n]
				}
			}
			p := d.EOS.Pressure(st[d.l.index(idT, k, j, i, e)] + b.DensTheta(k, e))
			dry[n] = densDry
			u[n] = st[d.l.index(idU, k, j, i, e)] / dens
			v[n] = st[d.l.index(idV, k, j, i, e)] / dens
			w[n] = st[d.l.index(idW, k, j, i, e)] / dens
			temp[n] = p / d.moistPressure(densDry, tr[d.idWV][n], 1)
		}
	})
}
