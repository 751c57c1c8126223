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

import (
	"math"

	"github.com/ctessum/atmos/advect"
)

// NormalFlux returns the flux normal to a of the full state q.
func NormalFlux(eos EquationOfState, a Axis, q *[NumState]float64) (f [NumState]float64) {
	in := idU + int(a)
	un := q[in] / q[idR]
	f[idR] = q[in]
	for j := 0; j < 3; j++ {
		f[idU+j] = un * q[idU+j]
	}
	f[in] += eos.Pressure(q[idT])
	f[idT] = un * q[idT]
	return f
}

// RiemannFlux returns the flux across a face normal to a, given the full
// (not perturbation) states qL and qR and the fluxes fL and fR estimated on
// either side of the face. The fluxes are decomposed into characteristic
// variables about the average of the two states: the advective variables
// are taken from the upwind side and the acoustic variables from the side
// each wave comes from. ρθ is carried by the resulting mass flux at the
// potential temperature of its upwind side.
func RiemannFlux(eos EquationOfState, a Axis, qL, qR, fL, fR *[NumState]float64) (f [NumState]float64) {
	in := idU + int(a)
	r := (qL[idR] + qR[idR]) / 2
	var vel [3]float64
	for j := range vel {
		vel[j] = (qL[idU+j]/qL[idR] + qR[idU+j]/qR[idR]) / 2
	}
	t := (qL[idT]/qL[idR] + qR[idT]/qR[idR]) / 2
	cs := eos.SoundSpeed(r, r*t)
	un := vel[a]

	up := fR
	if un > 0 {
		up = fL
	}
	w1 := up[idR] - up[idT]/t
	var wt [3]float64
	for j := range wt {
		if j != int(a) {
			wt[j] = up[idU+j] - vel[j]*up[idT]/t
		}
	}
	w5 := un*fR[idR]/(2*cs) - fR[in]/(2*cs) + fR[idT]/(2*t)
	w6 := -un*fL[idR]/(2*cs) + fL[in]/(2*cs) + fL[idT]/(2*t)

	f[idR] = w1 + w5 + w6
	for j := range wt {
		if j == int(a) {
			f[in] = un*w1 + (un-cs)*w5 + (un+cs)*w6
		} else {
			f[idU+j] = wt[j] + vel[j]*(w5+w6)
		}
	}
	f[idT] = f[idR] * upwindMixingRatio(f[idR], qL[idT]/qL[idR], qR[idT]/qR[idR])
	return f
}

// upwindMixingRatio returns the mixing ratio on the upwind side of a face
// with normal velocity u.
func upwindMixingRatio(u, mrL, mrR float64) float64 {
	dir := -1.
	if u > 0 {
		dir = 1
	}
	return dir * advect.UpwindFlux(dir, mrL, mrR, 1)
}

// courant returns the largest stable time step of one cell for Courant
// number cfl, given the cell widths of the active axes.
func courant(eos EquationOfState, cfl, r, rt float64, vel [3]float64, width [3]float64, active []Axis) float64 {
	cs := eos.SoundSpeed(r, rt)
	dt := math.Inf(1)
	for _, a := range active {
		dt = math.Min(dt, cfl*width[a]/(math.Abs(vel[a])+cs))
	}
	return dt
}
