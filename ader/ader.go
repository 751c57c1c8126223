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

// Package ader computes differential transforms (Taylor-in-time
// coefficients) of the compressible Euler equations at the GLL points of a
// single cell by the Cauchy-Kovalevskaya procedure, and averages them over a
// time step.
package ader

import (
	"fmt"
	"math"

	"github.com/spatialmodel/dycore/transform"
	"gonum.org/v1/gonum/mat"
)

// Series holds differential transforms indexed by [time order][GLL point].
type Series [transform.MaxOrder][transform.MaxOrder]float64

// Euler holds the differential transforms of the conserved state and of
// the flux terms normal to one cell face direction.
type Euler struct {
	// R is density.
	R Series
	// M holds the three momentum components (ρu, ρv, ρw).
	M [3]Series
	// RT is density times potential temperature.
	RT Series
	// MN holds the normal momentum flux of each momentum component,
	// ρ u_n u_j, where n is the normal direction.
	MN [3]Series
	// RTN is the normal flux of RT, ρ u_n θ.
	RTN Series
	// RTGamma is (ρθ)^γ, the pressure divided by C0.
	RTGamma Series
}

// Transform computes differential transforms for one direction.
type Transform struct {
	nAder, ngll int
	gamma, c0   float64
	deriv       []float64 // row-major [ngll x ngll]
}

// New returns a Transform computing nAder time orders (including order 0)
// at the points of the differentiation matrix deriv.
func New(nAder int, deriv *mat.Dense, gamma, c0 float64) (*Transform, error) {
	ngll, c := deriv.Dims()
	if ngll != c {
		return nil, fmt.Errorf("ader: differentiation matrix must be square; got %dx%d", ngll, c)
	}
	if nAder < 1 || nAder > ngll {
		return nil, fmt.Errorf("ader: nAder=%d but should be in [1, %d]", nAder, ngll)
	}
	t := &Transform{nAder: nAder, ngll: ngll, gamma: gamma, c0: c0, deriv: make([]float64, ngll*ngll)}
	for i := 0; i < ngll; i++ {
		for s := 0; s < ngll; s++ {
			t.deriv[i*ngll+s] = deriv.At(i, s)
		}
	}
	return t, nil
}

// NAder returns the number of time orders.
func (t *Transform) NAder() int { return t.nAder }

// InitFluxes fills the order-0 flux terms of e from its order-0 state for
// the normal direction n (0, 1 or 2).
func (t *Transform) InitFluxes(e *Euler, n int) {
	for s := 0; s < t.ngll; s++ {
		r := e.R[0][s]
		un := e.M[n][0][s] / r
		for j := 0; j < 3; j++ {
			e.MN[j][0][s] = un * e.M[j][0][s]
		}
		e.RTN[0][s] = un * e.RT[0][s]
		e.RTGamma[0][s] = math.Pow(e.RT[0][s], t.gamma)
	}
}

func (t *Transform) ddx(f *[transform.MaxOrder]float64, ii int) float64 {
	row := t.deriv[ii*t.ngll : (ii+1)*t.ngll]
	var v float64
	for s, d := range row {
		v += d * f[s]
	}
	return v
}

// Euler computes the time orders 1..nAder-1 of e, whose order-0 state and
// flux terms must be set (see InitFluxes). n is the normal direction and dx
// the cell width in that direction. pHy, if not nil, holds the hydrostatic
// background pressure at the GLL points, which is removed from the
// order-0 normal momentum flux. wallLo and wallHi force the normal
// momentum at the first and last GLL point to remain zero.
//
// The pressure recursion accumulates twice the transform of (ρθ)^γ. Orders
// above 0 are halved where they enter the momentum flux and once more after
// the last order is computed.
func (t *Transform) Euler(e *Euler, n int, dx float64, pHy []float64, wallLo, wallHi bool) {
	nAder, ngll := t.nAder, t.ngll
	for kt := 1; kt < nAder; kt++ {
		for ii := 0; ii < ngll; ii++ {
			for j := 0; j < 3; j++ {
				e.MN[j][kt][ii] = 0
			}
			e.RTN[kt][ii] = 0
			e.RTGamma[kt][ii] = 0
		}
	}

	var pflux [transform.MaxOrder]float64
	for kt := 0; kt < nAder-1; kt++ {
		fac := -1 / dx / float64(kt+1)
		for s := 0; s < ngll; s++ {
			p := t.c0 * e.RTGamma[kt][s]
			if kt == 0 {
				if pHy != nil {
					p -= pHy[s]
				}
			} else {
				p /= 2
			}
			pflux[s] = e.MN[n][kt][s] + p
		}
		for ii := 0; ii < ngll; ii++ {
			e.R[kt+1][ii] = fac * t.ddx(&e.M[n][kt], ii)
			for j := 0; j < 3; j++ {
				if j == n {
					e.M[j][kt+1][ii] = fac * t.ddx(&pflux, ii)
				} else {
					e.M[j][kt+1][ii] = fac * t.ddx(&e.MN[j][kt], ii)
				}
			}
			e.RT[kt+1][ii] = fac * t.ddx(&e.RTN[kt], ii)
		}
		if wallLo {
			e.M[n][kt+1][0] = 0
		}
		if wallHi {
			e.M[n][kt+1][ngll-1] = 0
		}

		ktp := kt + 1
		for ii := 0; ii < ngll; ii++ {
			var totMN [3]float64
			var totRTN float64
			for ir := 0; ir <= ktp; ir++ {
				for j := 0; j < 3; j++ {
					totMN[j] += e.M[n][ir][ii]*e.M[j][ktp-ir][ii] - e.R[ir][ii]*e.MN[j][ktp-ir][ii]
				}
				totRTN += e.M[n][ir][ii]*e.RT[ktp-ir][ii] - e.R[ir][ii]*e.RTN[ktp-ir][ii]
			}
			for j := 0; j < 3; j++ {
				e.MN[j][ktp][ii] = totMN[j] / e.R[0][ii]
			}
			e.RTN[ktp][ii] = totRTN / e.R[0][ii]
			e.RTGamma[ktp][ii] = powerStep(t.gamma, ktp, ii, &e.RT, &e.RTGamma)
		}
	}
	for kt := 1; kt < nAder; kt++ {
		for ii := 0; ii < ngll; ii++ {
			e.RTGamma[kt][ii] /= 2
		}
	}
}

// powerStep returns twice the order-ktp transform of f^γ at point ii, given
// the transforms of f up to order ktp, the order-0 value of f^γ and twice
// its transforms for orders 1..ktp-1.
func powerStep(gamma float64, ktp, ii int, f, g *Series) float64 {
	var tot float64
	for ir := 0; ir < ktp; ir++ {
		tot += float64(ktp-ir) * (gamma*g[ir][ii]*f[ktp-ir][ii] - f[ir][ii]*g[ktp-ir][ii])
	}
	return (gamma*g[0][ii]*f[ktp][ii] + tot/float64(ktp)) / f[0][ii]
}

// Tracer computes time orders 1..nAder-1 of a tracer density rt and its
// normal flux rtn, given the already-transformed density r and normal
// momentum rn. The order-0 values of rt and rtn must be set.
func (t *Transform) Tracer(r, rn, rt, rtn *Series, dx float64) {
	nAder, ngll := t.nAder, t.ngll
	for kt := 1; kt < nAder; kt++ {
		for ii := 0; ii < ngll; ii++ {
			rtn[kt][ii] = 0
		}
	}
	for kt := 0; kt < nAder-1; kt++ {
		fac := -1 / dx / float64(kt+1)
		for ii := 0; ii < ngll; ii++ {
			rt[kt+1][ii] = fac * t.ddx(&rtn[kt], ii)
		}
		ktp := kt + 1
		for ii := 0; ii < ngll; ii++ {
			var tot float64
			for ir := 0; ir <= ktp; ir++ {
				tot += rn[ir][ii]*rt[ktp-ir][ii] - r[ir][ii]*rtn[ktp-ir][ii]
			}
			rtn[ktp][ii] = tot / r[0][ii]
		}
	}
}

// TimeAverage sets out[ii] to the average over [0, dt] of the Taylor series
// held by s at GLL point ii: the sum over orders k of s[k] dt^k / (k+1).
// s is not modified. A dt of 0 gives the order-0 values.
func (t *Transform) TimeAverage(s *Series, dt float64, out []float64) {
	for ii := 0; ii < t.ngll; ii++ {
		out[ii] = t.average(s, ii, dt)
	}
}

func (t *Transform) average(s *Series, ii int, dt float64) float64 {
	v := s[0][ii]
	mult := 1.
	for kt := 1; kt < t.nAder; kt++ {
		mult *= dt
		v += s[kt][ii] * mult / float64(kt+1)
	}
	return v
}

// FluxAverage sets out to the averages over [0, dt] of the fluxes normal
// to n of density, the three momenta and ρθ, in that order, at each GLL
// point. The normal momentum flux includes the pressure C0·(ρθ)^γ, less
// pHy if it is not nil. e must hold the transforms computed by Euler, or
// only order-0 terms when there is a single time order.
func (t *Transform) FluxAverage(e *Euler, n int, dt float64, pHy []float64, out *[5][]float64) {
	for ii := 0; ii < t.ngll; ii++ {
		out[0][ii] = t.average(&e.M[n], ii, dt)
		for j := 0; j < 3; j++ {
			out[1+j][ii] = t.average(&e.MN[j], ii, dt)
		}
		p := t.c0 * t.average(&e.RTGamma, ii, dt)
		if pHy != nil {
			p -= pHy[ii]
		}
		out[1+n][ii] += p
		out[4][ii] = t.average(&e.RTN, ii, dt)
	}
}
