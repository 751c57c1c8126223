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

// Package transform builds the small dense matrices used by the
// finite-volume reconstruction: stencil cell averages to polynomial
// coefficients, coefficients to Gauss-Lobatto-Legendre (GLL) point values,
// coefficients to derivative coefficients, and the coefficient matrices of the
// lower-order WENO candidate polynomials.
//
// All polynomials are monomial expansions in the coordinate of the cell being
// reconstructed, normalized so that the cell spans [-0.5, 0.5].
package transform

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MaxOrder is the largest supported reconstruction order. Kernels size
// their scratch arrays with it so that no allocation happens per cell.
const MaxOrder = 9

// Matrices holds the transform matrices for one reconstruction order and
// GLL point count. All matrices are immutable after construction.
type Matrices struct {
	// Ord is the reconstruction order (stencil width), which must be odd.
	Ord int
	// NGLL is the number of GLL points per cell.
	NGLL int
	// Hs is the stencil half width, (Ord-1)/2.
	Hs int

	// GLLPoints and GLLWeights are the NGLL GLL points on [-0.5, 0.5]
	// and their quadrature weights.
	GLLPoints, GLLWeights []float64

	// StenToCoefs [Ord x Ord] maps stencil cell averages to the coefficients
	// of the polynomial of degree Ord-1 matching all of them.
	StenToCoefs *mat.Dense

	// CoefsToGLL [NGLL x Ord] evaluates coefficients at the GLL points.
	CoefsToGLL *mat.Dense

	// StenToGLL [NGLL x Ord] is CoefsToGLL * StenToCoefs.
	StenToGLL *mat.Dense

	// Candidates holds Hs+1 matrices [Hs+1 x Hs+1]. Candidate i maps the
	// averages of stencil cells i..i+Hs to the coefficients of the polynomial
	// of degree Hs matching them.
	Candidates []*mat.Dense

	// Deriv [NGLL x NGLL] maps GLL values of a polynomial of degree NGLL-1 to
	// GLL values of its derivative with respect to the normalized coordinate.
	Deriv *mat.Dense
}

// New returns the transform matrices for a uniform grid.
func New(ord, ngll int) (*Matrices, error) {
	if err := checkOrder(ord, ngll); err != nil {
		return nil, err
	}
	hs := (ord - 1) / 2
	locs := make([]float64, ord+1)
	for i := range locs {
		locs[i] = float64(i-hs) - 0.5
	}
	return newMatrices(ord, ngll, locs)
}

// NewNonuniform returns transform matrices for a stencil whose ord+1 cell
// interface locations are given by locs, normalized so that the center cell
// spans [-0.5, 0.5].
func NewNonuniform(ord, ngll int, locs []float64) (*Matrices, error) {
	if err := checkOrder(ord, ngll); err != nil {
		return nil, err
	}
	if len(locs) != ord+1 {
		return nil, fmt.Errorf("transform: %d interface locations for order %d; want %d",
			len(locs), ord, ord+1)
	}
	for i := 1; i < len(locs); i++ {
		if !(locs[i] > locs[i-1]) {
			return nil, fmt.Errorf("transform: interface locations must be increasing: %v", locs)
		}
	}
	return newMatrices(ord, ngll, locs)
}

func checkOrder(ord, ngll int) error {
	if ord < 3 || ord%2 == 0 {
		return fmt.Errorf("transform: reconstruction order %d must be odd and >= 3", ord)
	}
	if ord > MaxOrder {
		return fmt.Errorf("transform: reconstruction order %d exceeds the maximum of %d", ord, MaxOrder)
	}
	if ngll < 2 || ngll > ord {
		return fmt.Errorf("transform: GLL point count %d must be in [2, %d]", ngll, ord)
	}
	return nil
}

func newMatrices(ord, ngll int, locs []float64) (*Matrices, error) {
	m := &Matrices{Ord: ord, NGLL: ngll, Hs: (ord - 1) / 2}
	var err error
	m.GLLPoints, m.GLLWeights, err = GLLPointsWeights(ngll)
	if err != nil {
		return nil, err
	}
	m.StenToCoefs, err = StencilToCoefs(locs)
	if err != nil {
		return nil, err
	}
	m.CoefsToGLL = CoefsToGLL(ord, m.GLLPoints)
	m.StenToGLL = mat.NewDense(ngll, ord, nil)
	m.StenToGLL.Mul(m.CoefsToGLL, m.StenToCoefs)

	m.Candidates = make([]*mat.Dense, m.Hs+1)
	for i := range m.Candidates {
		m.Candidates[i], err = StencilToCoefs(locs[i : i+m.Hs+2])
		if err != nil {
			return nil, err
		}
	}

	m.Deriv, err = DerivMatrix(m.GLLPoints)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// StencilToCoefs returns the matrix mapping the averages of the len(locs)-1
// cells bounded by the interface locations locs to the coefficients of the
// unique polynomial of degree len(locs)-2 having those averages.
func StencilToCoefs(locs []float64) (*mat.Dense, error) {
	n := len(locs) - 1
	a := mat.NewDense(n, n, nil)
	for s := 0; s < n; s++ {
		lo, hi := locs[s], locs[s+1]
		for j := 0; j < n; j++ {
			jp := float64(j + 1)
			a.Set(s, j, (math.Pow(hi, jp)-math.Pow(lo, jp))/(jp*(hi-lo)))
		}
	}
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return nil, fmt.Errorf("transform: inverting cell-average matrix for %v: %v", locs, err)
	}
	return &inv, nil
}

// CoefsToGLL returns the [len(points) x ncoefs] matrix evaluating a
// polynomial with ncoefs coefficients at points.
func CoefsToGLL(ncoefs int, points []float64) *mat.Dense {
	m := mat.NewDense(len(points), ncoefs, nil)
	for i, x := range points {
		for j := 0; j < ncoefs; j++ {
			m.Set(i, j, math.Pow(x, float64(j)))
		}
	}
	return m
}

// CoefsToDeriv returns the [n x n] matrix mapping polynomial coefficients to
// the coefficients of the polynomial's derivative.
func CoefsToDeriv(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for j := 0; j < n-1; j++ {
		m.Set(j, j+1, float64(j+1))
	}
	return m
}

// GLLToCoefs returns the matrix mapping values at points to the
// coefficients of the interpolating polynomial.
func GLLToCoefs(points []float64) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(CoefsToGLL(len(points), points)); err != nil {
		return nil, fmt.Errorf("transform: inverting GLL Vandermonde matrix: %v", err)
	}
	return &inv, nil
}

// DerivMatrix returns the differentiation matrix for values at points:
// CoefsToGLL * CoefsToDeriv * GLLToCoefs.
func DerivMatrix(points []float64) (*mat.Dense, error) {
	n := len(points)
	g2c, err := GLLToCoefs(points)
	if err != nil {
		return nil, err
	}
	var tmp, d mat.Dense
	tmp.Mul(CoefsToDeriv(n), g2c)
	d.Mul(CoefsToGLL(n, points), &tmp)
	return &d, nil
}

// Apply sets out = m * in without allocating. len(in) must equal the
// number of columns of m and len(out) the number of rows.
func Apply(m *mat.Dense, in, out []float64) {
	raw := m.RawMatrix()
	for i := 0; i < raw.Rows; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
		var v float64
		for j, c := range row {
			v += c * in[j]
		}
		out[i] = v
	}
}
