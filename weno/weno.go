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

// Package weno reconstructs point values at Gauss-Lobatto-Legendre points
// from a stencil of cell averages, either linearly or with a central WENO
// blend of one high-order polynomial and (ord+1)/2 lower-order candidates.
package weno

import (
	"fmt"
	"math"

	"github.com/spatialmodel/dycore/transform"
)

// Defaults for the WENO weights.
const (
	DefaultSigma     = 0.1
	DefaultIdealHigh = 1000.
	epsilon          = 1.e-20
)

// Reconstructor performs reconstructions for one set of transform matrices.
// It holds no mutable state and may be shared between goroutines.
type Reconstructor struct {
	tm    *transform.Matrices
	sigma float64
	// idl holds the normalized ideal weights: Hs+1 lower-order candidates
	// followed by the high-order polynomial.
	idl []float64
}

// New returns a Reconstructor. sigma is the handicap applied to the
// high-order polynomial's smoothness indicator and idealHigh is the ideal
// weight of the high-order polynomial relative to a weight of 1 for each
// lower-order candidate.
func New(tm *transform.Matrices, sigma, idealHigh float64) (*Reconstructor, error) {
	if !(sigma >= 0) {
		return nil, fmt.Errorf("weno: sigma=%g but should be >=0", sigma)
	}
	if !(idealHigh > 0) {
		return nil, fmt.Errorf("weno: high-order ideal weight=%g but should be >0", idealHigh)
	}
	r := &Reconstructor{tm: tm, sigma: sigma, idl: make([]float64, tm.Hs+2)}
	var sum float64
	for i := range r.idl {
		if i == tm.Hs+1 {
			r.idl[i] = idealHigh
		} else {
			r.idl[i] = 1
		}
		sum += r.idl[i]
	}
	for i := range r.idl {
		r.idl[i] /= sum
	}
	return r, nil
}

// Matrices returns the transform matrices used by r.
func (r *Reconstructor) Matrices() *transform.Matrices { return r.tm }

// Linear sets gll to the values at the GLL points of the polynomial of
// degree ord-1 matching the cell averages in stencil.
func (r *Reconstructor) Linear(stencil, gll []float64) {
	transform.Apply(r.tm.StenToGLL, stencil, gll)
}

// Reconstruct calls WENO if useWENO is true and Linear otherwise.
func (r *Reconstructor) Reconstruct(stencil, gll []float64, useWENO bool) {
	if useWENO {
		r.WENO(stencil, gll)
	} else {
		r.Linear(stencil, gll)
	}
}

// WENO sets gll to the values at the GLL points of the non-oscillatory
// blend of the high-order polynomial through stencil and the lower-order
// candidate polynomials.
func (r *Reconstructor) WENO(stencil, gll []float64) {
	var coefs [transform.MaxOrder]float64
	r.Coefs(stencil, coefs[:r.tm.Ord])
	transform.Apply(r.tm.CoefsToGLL, coefs[:r.tm.Ord], gll)
}

// Coefs sets coefs (length ord) to the blended polynomial coefficients.
func (r *Reconstructor) Coefs(stencil, coefs []float64) {
	ord, hs := r.tm.Ord, r.tm.Hs
	nc := hs + 1 // candidate polynomial coefficient count

	var cand [transform.MaxOrder/2 + 1][transform.MaxOrder/2 + 1]float64
	var high [transform.MaxOrder]float64
	var tv [transform.MaxOrder/2 + 2]float64

	transform.Apply(r.tm.StenToCoefs, stencil, high[:ord])
	var tvLow float64
	for i := 0; i < nc; i++ {
		transform.Apply(r.tm.Candidates[i], stencil[i:i+nc], cand[i][:nc])
		tv[i] = SmoothnessIndicator(cand[i][:nc])
		tvLow += tv[i]
	}
	tvLow /= float64(nc)
	tv[nc] = (SmoothnessIndicator(high[:ord]) + r.sigma*tvLow) / (1 + r.sigma)

	var w [transform.MaxOrder/2 + 2]float64
	var wsum float64
	for i := 0; i <= nc; i++ {
		w[i] = r.idl[i] / (tv[i]*tv[i] + epsilon)
		wsum += w[i]
	}
	for i := 0; i <= nc; i++ {
		w[i] /= wsum
	}

	// The high-order polynomial minus the ideal-weighted candidates is the
	// part of the blend not represented by any candidate.
	dHigh := r.idl[nc]
	for j := 0; j < ord; j++ {
		coefs[j] = high[j] * w[nc] / dHigh
	}
	for i := 0; i < nc; i++ {
		a := w[i] - w[nc]*r.idl[i]/dHigh
		for j := 0; j < nc; j++ {
			coefs[j] += a * cand[i][j]
		}
	}
}

// SmoothnessIndicator returns the Jiang-Shu smoothness indicator of the
// polynomial with the given coefficients: the sum over derivative orders
// l >= 1 of the integral over the cell of the squared l-th derivative.
func SmoothnessIndicator(coefs []float64) float64 {
	n := len(coefs)
	var d [transform.MaxOrder]float64
	copy(d[:n], coefs)
	var tv float64
	for l := 1; l < n; l++ {
		// Differentiate in place.
		for j := 0; j < n-l; j++ {
			d[j] = float64(j+1) * d[j+1]
		}
		d[n-l] = 0
		for j := 0; j < n-l; j++ {
			for k := 0; k < n-l; k++ {
				tv += d[j] * d[k] * monomialIntegrals[j+k]
			}
		}
	}
	return tv
}

// monomialIntegrals[m] is the integral of x^m over [-0.5, 0.5].
var monomialIntegrals [2 * transform.MaxOrder]float64

func init() {
	for m := range monomialIntegrals {
		if m%2 == 0 {
			monomialIntegrals[m] = 2 * math.Pow(0.5, float64(m+1)) / float64(m+1)
		}
	}
}
