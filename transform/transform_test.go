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

package transform

import (
	"math"
	"testing"
)

func absDifferent(a, b, tolerance float64) bool {
	if math.Abs(a-b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func TestGLLPointsWeights(t *testing.T) {
	const tol = 1.e-13
	tests := []struct {
		n       int
		points  []float64
		weights []float64
	}{
		{n: 2, points: []float64{-0.5, 0.5}, weights: []float64{0.5, 0.5}},
		{n: 3, points: []float64{-0.5, 0, 0.5}, weights: []float64{1. / 6, 2. / 3, 1. / 6}},
		{
			n:       4,
			points:  []float64{-0.5, -math.Sqrt(5) / 10, math.Sqrt(5) / 10, 0.5},
			weights: []float64{1. / 12, 5. / 12, 5. / 12, 1. / 12},
		},
	}
	for _, test := range tests {
		p, w, err := GLLPointsWeights(test.n)
		if err != nil {
			t.Fatal(err)
		}
		for i := range p {
			if absDifferent(p[i], test.points[i], tol) {
				t.Errorf("n=%d point %d: have %g, want %g", test.n, i, p[i], test.points[i])
			}
			if absDifferent(w[i], test.weights[i], tol) {
				t.Errorf("n=%d weight %d: have %g, want %g", test.n, i, w[i], test.weights[i])
			}
		}
	}
	if _, _, err := GLLPointsWeights(1); err == nil {
		t.Error("expected an error for a single point")
	}
}

// The GLL rule with n points integrates polynomials of degree 2n-3 exactly.
func TestGLLQuadrature(t *testing.T) {
	for n := 2; n <= MaxOrder; n++ {
		p, w, err := GLLPointsWeights(n)
		if err != nil {
			t.Fatal(err)
		}
		for deg := 0; deg <= 2*n-3; deg++ {
			var sum float64
			for i := range p {
				sum += w[i] * math.Pow(p[i], float64(deg))
			}
			if absDifferent(sum, integralMonomial(deg), 1.e-13) {
				t.Errorf("n=%d deg=%d: have %g, want %g", n, deg, sum, integralMonomial(deg))
			}
		}
	}
}

// cellAverages returns the averages of f's antiderivative F over the cells
// bounded by locs.
func cellAverages(F func(float64) float64, locs []float64) []float64 {
	o := make([]float64, len(locs)-1)
	for i := range o {
		o[i] = (F(locs[i+1]) - F(locs[i])) / (locs[i+1] - locs[i])
	}
	return o
}

func TestStenToGLLPolynomial(t *testing.T) {
	for _, ord := range []int{3, 5, 7, 9} {
		tm, err := New(ord, ord)
		if err != nil {
			t.Fatal(err)
		}
		hs := tm.Hs
		locs := make([]float64, ord+1)
		for i := range locs {
			locs[i] = float64(i-hs) - 0.5
		}
		// f(x) = 1 + 2x - x^(ord-1)
		p := float64(ord - 1)
		f := func(x float64) float64 { return 1 + 2*x - math.Pow(x, p) }
		F := func(x float64) float64 { return x + x*x - math.Pow(x, p+1)/(p+1) }
		avg := cellAverages(F, locs)
		gll := make([]float64, tm.NGLL)
		Apply(tm.StenToGLL, avg, gll)
		for i, x := range tm.GLLPoints {
			if absDifferent(gll[i], f(x), 1.e-9) {
				t.Errorf("ord=%d point %d: have %g, want %g", ord, i, gll[i], f(x))
			}
		}
	}
}

func TestCandidatesPolynomial(t *testing.T) {
	const ord = 5
	tm, err := New(ord, 3)
	if err != nil {
		t.Fatal(err)
	}
	locs := []float64{-2.5, -1.5, -0.5, 0.5, 1.5, 2.5}
	// A quadratic is matched by every degree-2 candidate.
	F := func(x float64) float64 { return 3*x - x*x + x*x*x/3 }
	avg := cellAverages(F, locs)
	want := []float64{3, -2, 1}
	coefs := make([]float64, tm.Hs+1)
	for i, c := range tm.Candidates {
		Apply(c, avg[i:i+tm.Hs+1], coefs)
		for j := range coefs {
			if absDifferent(coefs[j], want[j], 1.e-11) {
				t.Errorf("candidate %d coef %d: have %g, want %g", i, j, coefs[j], want[j])
			}
		}
	}
}

func TestDerivMatrix(t *testing.T) {
	tm, err := New(5, 4)
	if err != nil {
		t.Fatal(err)
	}
	vals := make([]float64, tm.NGLL)
	for i, x := range tm.GLLPoints {
		vals[i] = x*x*x - x
	}
	d := make([]float64, tm.NGLL)
	Apply(tm.Deriv, vals, d)
	for i, x := range tm.GLLPoints {
		if want := 3*x*x - 1; absDifferent(d[i], want, 1.e-12) {
			t.Errorf("point %d: have %g, want %g", i, d[i], want)
		}
	}
}

func TestCheckOrder(t *testing.T) {
	for _, c := range []struct{ ord, ngll int }{{4, 2}, {1, 2}, {11, 3}, {5, 1}, {5, 6}} {
		if _, err := New(c.ord, c.ngll); err == nil {
			t.Errorf("ord=%d ngll=%d: expected an error", c.ord, c.ngll)
		}
	}
}

func TestGhostInterfaces(t *testing.T) {
	zint := []float64{0, 100, 300, 600}
	have := GhostInterfaces(zint, 2)
	want := []float64{-200, -100, 0, 100, 300, 600, 900, 1200}
	if len(have) != len(want) {
		t.Fatalf("length: have %d, want %d", len(have), len(want))
	}
	for i := range want {
		if absDifferent(have[i], want[i], 1.e-10) {
			t.Errorf("interface %d: have %g, want %g", i, have[i], want[i])
		}
	}
}

func TestVerticalCacheUniform(t *testing.T) {
	c, err := NewVerticalCache(5, 3, 16)
	if err != nil {
		t.Fatal(err)
	}
	zint := make([]float64, 11)
	for i := range zint {
		zint[i] = 250 * float64(i)
	}
	levels, err := c.Levels(zint)
	if err != nil {
		t.Fatal(err)
	}
	uniform, err := New(5, 3)
	if err != nil {
		t.Fatal(err)
	}
	for k, m := range levels {
		if m != levels[0] {
			t.Errorf("level %d does not share the uniform matrices", k)
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 5; j++ {
			if absDifferent(levels[0].StenToGLL.At(i, j), uniform.StenToGLL.At(i, j), 1.e-10) {
				t.Errorf("StenToGLL(%d,%d): have %g, want %g", i, j,
					levels[0].StenToGLL.At(i, j), uniform.StenToGLL.At(i, j))
			}
		}
	}
}

func TestVerticalCacheStretched(t *testing.T) {
	c, err := NewVerticalCache(3, 3, 16)
	if err != nil {
		t.Fatal(err)
	}
	zint := []float64{0, 50, 150, 350, 750}
	levels, err := c.Levels(zint)
	if err != nil {
		t.Fatal(err)
	}
	// A linear profile is reproduced exactly on a stretched grid.
	ghost := GhostInterfaces(zint, 1)
	for k, m := range levels {
		zmid := (zint[k] + zint[k+1]) / 2
		dz := zint[k+1] - zint[k]
		avg := make([]float64, 3)
		for s := range avg {
			avg[s] = 2 + 0.01*(ghost[k+s]+ghost[k+s+1])/2
		}
		gll := make([]float64, 3)
		Apply(m.StenToGLL, avg, gll)
		for i, x := range m.GLLPoints {
			if want := 2 + 0.01*(zmid+x*dz); absDifferent(gll[i], want, 1.e-10) {
				t.Errorf("level %d point %d: have %g, want %g", k, i, gll[i], want)
			}
		}
	}
}
