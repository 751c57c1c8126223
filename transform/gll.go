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
	"fmt"
	"math"
)

// GLLPointsWeights returns the n Gauss-Lobatto-Legendre points on the
// interval [-0.5, 0.5] in ascending order, along with their quadrature
// weights, which sum to 1. n must be at least 2.
func GLLPointsWeights(n int) (points, weights []float64, err error) {
	if n < 2 {
		return nil, nil, fmt.Errorf("transform: GLL point count %d must be >= 2", n)
	}
	N := n - 1
	x := make([]float64, n)
	xold := make([]float64, n)
	// Chebyshev-Gauss-Lobatto points as the initial guess.
	for i := range x {
		x[i] = math.Cos(math.Pi * float64(i) / float64(N))
	}
	// P holds the Legendre polynomials evaluated at x.
	P := make([][]float64, n)
	for i := range P {
		P[i] = make([]float64, n)
	}
	for iter := 0; iter < 100; iter++ {
		copy(xold, x)
		for i := range x {
			P[i][0] = 1
			P[i][1] = x[i]
			for k := 2; k <= N; k++ {
				P[i][k] = ((2*float64(k)-1)*x[i]*P[i][k-1] - (float64(k)-1)*P[i][k-2]) / float64(k)
			}
		}
		maxDiff := 0.
		for i := range x {
			x[i] = xold[i] - (x[i]*P[i][N]-P[i][N-1])/(float64(n)*P[i][N])
			maxDiff = math.Max(maxDiff, math.Abs(x[i]-xold[i]))
		}
		if maxDiff < 1.e-15 {
			break
		}
	}
	points = make([]float64, n)
	weights = make([]float64, n)
	for i := range x {
		// Reverse to ascending order and map from [-1,1] to [-0.5,0.5].
		j := N - i
		points[j] = x[i] / 2
		weights[j] = 1 / (float64(N) * float64(n) * P[i][N] * P[i][N])
	}
	return points, weights, nil
}

// integralMonomial returns the integral of x^m over [-0.5, 0.5].
func integralMonomial(m int) float64 {
	if m%2 == 1 {
		return 0
	}
	return 2 * math.Pow(0.5, float64(m+1)) / float64(m+1)
}
