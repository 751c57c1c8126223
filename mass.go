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

import "gonum.org/v1/gonum/floats"

// Mass holds domain totals [kg].
type Mass struct {
	// Density is the total air mass, including tracers that add mass.
	Density float64

	// Tracers holds the total mass of each tracer.
	Tracers []float64
}

// Mass returns the total air and tracer masses in the domain.
func (d *Dycore) Mass() Mass {
	nz, nens := d.l.nz, d.l.nens
	ntr := len(d.tracers)
	// Sum each (level, member) over the horizontal, then weight by volume.
	dens := make([]float64, nz*nens)
	tr := make([][]float64, ntr)
	for t := range tr {
		tr[t] = make([]float64, nz*nens)
	}
	st, trs := d.State.Elements, d.Tracers.Elements
	for k := 0; k < nz; k++ {
		for e := 0; e < nens; e++ {
			ke := k*nens + e
			for j := 0; j < d.l.ny; j++ {
				for i := 0; i < d.l.nx; i++ {
					pos := d.l.index(0, k, j, i, e)
					dens[ke] += st[pos+idR*d.l.sv] + d.Background.Dens(k, e)
					for t := range tr {
						tr[t][ke] += trs[pos+t*d.l.sv]
					}
				}
			}
		}
	}
	vol := make([]float64, nz*nens)
	copy(vol, d.Coupler.Dz.Elements)
	floats.Scale(d.dx*d.dy, vol)
	m := Mass{Density: floats.Dot(dens, vol), Tracers: make([]float64, ntr)}
	for t := range tr {
		m.Tracers[t] = floats.Dot(tr[t], vol)
	}
	return m
}
