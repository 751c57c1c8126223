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
	"testing"

	"github.com/spatialmodel/dycore/coupler"
	"gonum.org/v1/gonum/floats"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func absDifferent(a, b, tolerance float64) bool {
	if math.Abs(a-b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

// testCoupler returns a coupler with water vapor and a passive dye on a
// uniform vertical grid.
func testCoupler(t *testing.T, nx, ny, nz int, xlen, ylen, zlen float64) *coupler.Coupler {
	c, err := coupler.New(nx, ny, nz, 1, xlen, ylen)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddTracer(coupler.WaterVapor, "Water vapor", true, true); err != nil {
		t.Fatal(err)
	}
	if err := c.AddTracer("dye", "Passive dye", true, false); err != nil {
		t.Fatal(err)
	}
	if err := c.SetVerticalGrid(coupler.UniformGrid(nz, zlen)); err != nil {
		t.Fatal(err)
	}
	return c
}

func thermalDycore(t *testing.T) *Dycore {
	c := testCoupler(t, 10, 1, 10, 20000, 20000, 10000)
	cfg := DefaultConfig()
	cfg.InitData = Thermal
	cfg.CheckMass = true
	cfg.Strict = true
	d, err := New(cfg, c, nil)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestNewErrors(t *testing.T) {
	c, err := coupler.New(3, 1, 10, 1, 1000, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(DefaultConfig(), c, nil); err == nil {
		t.Error("expected an error for a missing water vapor tracer")
	}
	if err := c.AddTracer(coupler.WaterVapor, "", true, true); err != nil {
		t.Fatal(err)
	}
	if _, err := New(DefaultConfig(), c, nil); err == nil {
		t.Error("expected an error for an unset vertical grid")
	}
	if err := c.SetVerticalGrid(coupler.UniformGrid(10, 1000)); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Order = 4
	if _, err := New(cfg, c, nil); err == nil {
		t.Error("expected an error for an invalid order")
	}
	cfg = DefaultConfig()
	cfg.Order = 9
	cfg.NGLL = 5
	if _, err := New(cfg, c, nil); err == nil {
		t.Error("expected an error for too few x cells")
	}
	d, err := New(DefaultConfig(), c, nil)
	if err != nil {
		t.Fatal(err)
	}
	if have := d.ActiveAxes(); len(have) != 2 || have[0] != X || have[1] != Z {
		t.Errorf("active axes: have %v, want [x z]", have)
	}
}

func TestLayout(t *testing.T) {
	l := newLayout(4, 3, 5, 2, 2)
	seen := make(map[int]bool)
	for n := 0; n < l.cells(); n++ {
		k, j, i, e := l.cell(n)
		idx := l.index(1, k, j, i, e)
		if seen[idx] {
			t.Fatalf("cell %d maps to a used position", n)
		}
		seen[idx] = true
	}
	shape := l.shape(2)
	size := 1
	for _, s := range shape {
		size *= s
	}
	if l.index(1, l.nz+1, l.ny+1, l.nx+1, l.nens-1) != size-1 {
		t.Errorf("last halo position: have %d, want %d", l.index(1, l.nz+1, l.ny+1, l.nx+1, l.nens-1), size-1)
	}
	for _, a := range []Axis{X, Y, Z} {
		count := 0
		for n := 0; n < l.numLines(a); n++ {
			ln := l.line(a, n)
			if ln.base != l.index(0, ln.k, ln.j, ln.i, ln.e) {
				t.Errorf("%v line %d: base mismatch", a, n)
			}
			count += l.n(a)
		}
		if count != l.cells() {
			t.Errorf("%v lines cover %d cells, want %d", a, count, l.cells())
		}
	}
	if l.index(0, 1, 0, 0, 0)-l.index(0, 0, 0, 0, 0) != l.stride(Z) {
		t.Error("z stride")
	}
}

func TestParallelFor(t *testing.T) {
	const n = 1000
	counts := make([]int, n)
	parallelFor(n, func(int) func(int) {
		return func(ii int) { counts[ii]++ }
	})
	for i, c := range counts {
		if c != 1 {
			t.Errorf("index %d visited %d times", i, c)
		}
	}
	parallelFor(0, func(int) func(int) {
		return func(int) { t.Error("called with n=0") }
	})
}

func TestSweepOrder(t *testing.T) {
	active := []Axis{X, Y, Z}
	o := Forward
	if have := o.Axes(active); have[0] != X || have[2] != Z {
		t.Errorf("forward: %v", have)
	}
	o = o.Next()
	if have := o.Axes(active); have[0] != Z || have[2] != X {
		t.Errorf("reverse: %v", have)
	}
	if o.Next() != Forward {
		t.Error("order does not alternate")
	}
}

func TestInvariantError(t *testing.T) {
	var err error = &InvariantError{Kind: NegativeTracer, Field: "water_vapor", Value: -1e-6}
	if want := "dycore: negative tracer in water_vapor: -1e-06"; err.Error() != want {
		t.Errorf("have %q, want %q", err.Error(), want)
	}
}

func TestConversionRoundTrip(t *testing.T) {
	c := testCoupler(t, 4, 3, 5, 4000, 3000, 5000)
	dry := c.MustField(coupler.DensityDry).Elements
	u := c.MustField(coupler.UVel).Elements
	w := c.MustField(coupler.WVel).Elements
	temp := c.MustField(coupler.Temp).Elements
	wv := c.MustField(coupler.WaterVapor).Elements
	dye := c.MustField("dye").Elements
	for i := range dry {
		dry[i] = 1 - 0.01*float64(i%7)
		u[i] = 3 + float64(i%5)
		w[i] = -0.5 * float64(i%3)
		temp[i] = 280 + float64(i%11)
		wv[i] = 0.01 * float64(i%4)
		dye[i] = float64(i)
	}
	want := make(map[string][]float64)
	for _, name := range c.FieldNames() {
		want[name] = append([]float64(nil), c.MustField(name).Elements...)
	}
	d, err := New(DefaultConfig(), c, nil)
	if err != nil {
		t.Fatal(err)
	}
	d.PrimitiveToConserved()
	if have := d.Mass().Tracers[1]; different(have, floats.Sum(dye)*1000*1000*1000, 1e-12) {
		t.Errorf("dye mass: have %g", have)
	}
	for _, name := range c.FieldNames() {
		f := c.MustField(name).Elements
		for i := range f {
			f[i] = 0
		}
	}
	d.ConservedToPrimitive()
	for name, vals := range want {
		f := c.MustField(name).Elements
		for i, v := range vals {
			if absDifferent(f[i], v, 1e-9*math.Max(1, math.Abs(v))) {
				t.Errorf("%s[%d]: have %g, want %g", name, i, f[i], v)
			}
		}
	}
}

// Changing the coupler's vertical grid after the dynamical core is built
// rebuilds the vertical reconstructors once.
func TestVerticalGridChange(t *testing.T) {
	c := testCoupler(t, 4, 1, 8, 4000, 4000, 8000)
	d, err := New(DefaultConfig(), c, nil)
	if err != nil {
		t.Fatal(err)
	}
	uniform := d.vrecon[0][3]
	if err := d.syncVerticalGrid(); err != nil {
		t.Fatal(err)
	}
	if d.vrecon[0][3] != uniform {
		t.Fatal("reconstructors rebuilt for an unchanged grid")
	}
	stretched := []float64{0, 500, 1100, 1800, 2600, 3500, 4500, 6000, 8000}
	if err := c.SetVerticalGrid(stretched); err != nil {
		t.Fatal(err)
	}
	if err := d.syncVerticalGrid(); err != nil {
		t.Fatal(err)
	}
	rebuilt := d.vrecon[0][3]
	if rebuilt == uniform {
		t.Fatal("reconstructors not rebuilt after the grid changed")
	}
	if err := d.syncVerticalGrid(); err != nil {
		t.Fatal(err)
	}
	if d.vrecon[0][3] != rebuilt {
		t.Error("reconstructors rebuilt twice for the same grid")
	}

	fresh, err := New(DefaultConfig(), c, nil)
	if err != nil {
		t.Fatal(err)
	}
	stencil := []float64{1, 2, 4, 3, 5}
	have, want := make([]float64, d.NGLL), make([]float64, d.NGLL)
	for k := 0; k < 8; k++ {
		d.vrecon[0][k].Linear(stencil, have)
		fresh.vrecon[0][k].Linear(stencil, want)
		if !floats.EqualApprox(have, want, 1e-12) {
			t.Errorf("level %d: have %v, want %v", k, have, want)
		}
	}
}
