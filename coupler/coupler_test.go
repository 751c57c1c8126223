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
	"math"
	"strings"
	"testing"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func TestAddTracer(t *testing.T) {
	c, err := New(4, 1, 5, 1, 4000, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddTracer(WaterVapor, "Water Vapor", true, true); err != nil {
		t.Fatal(err)
	}
	if err := c.AddTracer(WaterVapor, "again", true, true); err == nil {
		t.Error("expected an error for a duplicate tracer")
	}
	if err := c.AddTracer(Temp, "clash", false, false); err == nil {
		t.Error("expected an error for a tracer named like a base field")
	}
	if err := c.AddTracer("", "empty", false, false); err == nil {
		t.Error("expected an error for an empty name")
	}
	for i := 1; i < MaxTracers; i++ {
		if err := c.AddTracer("tr"+strings.Repeat("x", i), "", false, false); err != nil {
			t.Fatalf("tracer %d: %v", i, err)
		}
	}
	if err := c.AddTracer("onetoomany", "", false, false); err == nil {
		t.Errorf("expected an error past %d tracers", MaxTracers)
	}
	if i, ok := c.TracerIndex(WaterVapor); !ok || i != 0 {
		t.Errorf("water vapor index: have %d, %v", i, ok)
	}
	if _, err := c.Field("missing"); err == nil {
		t.Error("expected an error for a missing field")
	}
	if n := len(c.FieldNames()); n != 5+MaxTracers {
		t.Errorf("have %d fields, want %d", n, 5+MaxTracers)
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(0, 1, 5, 1, 1, 1); err == nil {
		t.Error("expected an error for nx=0")
	}
	if _, err := New(1, 1, 5, 1, 1, 0); err == nil {
		t.Error("expected an error for ylen=0")
	}
}

func TestSetVerticalGrid(t *testing.T) {
	c, err := New(1, 1, 3, 2, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetVerticalGrid([]float64{0, 100, 300}); err == nil {
		t.Error("expected an error for a short column")
	}
	if err := c.SetVerticalGrid([]float64{0, 100, 100, 300}); err == nil {
		t.Error("expected an error for non-increasing heights")
	}
	if err := c.SetVerticalGrid([]float64{0, 100, 300, 600}, []float64{0, 200, 400, 600}); err != nil {
		t.Fatal(err)
	}
	if dz := c.Dz.Get(2, 0); dz != 300 {
		t.Errorf("dz: have %g, want 300", dz)
	}
	if zm := c.Zmid.Get(1, 1); zm != 300 {
		t.Errorf("zmid: have %g, want 300", zm)
	}
	col := c.Column(1)
	if col[3] != 600 {
		t.Errorf("column top: have %g, want 600", col[3])
	}
}

func TestReadVerticalGrid(t *testing.T) {
	z, err := ReadVerticalGrid(strings.NewReader("# heights\n0, 50\n150 350\n\n750\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 50, 150, 350, 750}
	if len(z) != len(want) {
		t.Fatalf("have %v, want %v", z, want)
	}
	for i := range want {
		if z[i] != want[i] {
			t.Errorf("%d: have %g, want %g", i, z[i], want[i])
		}
	}
	if _, err := ReadVerticalGrid(strings.NewReader("0\nabc\n")); err == nil {
		t.Error("expected a parse error")
	}
}

// An isothermal atmosphere has an exponential pressure profile, which the
// quartic log-pressure fit reproduces exactly.
func TestUpdateHydrostasis(t *testing.T) {
	const (
		nz   = 8
		temp = 250.
	)
	c, err := New(2, 2, nz, 1, 2000, 2000)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddTracer(WaterVapor, "Water Vapor", true, true); err != nil {
		t.Fatal(err)
	}
	if err := c.SetVerticalGrid([]float64{0, 100, 250, 450, 700, 1000, 1400, 1900, 2500}); err != nil {
		t.Fatal(err)
	}
	h := c.Rd * temp / c.Grav
	p := func(z float64) float64 { return c.P0 * math.Exp(-z/h) }
	rd := c.MustField(DensityDry)
	tf := c.MustField(Temp)
	for k := 0; k < nz; k++ {
		z := c.Zmid.Get(k, 0)
		for j := 0; j < 2; j++ {
			for i := 0; i < 2; i++ {
				idx := rd.Index1d(k, j, i, 0)
				rd.Elements[idx] = p(z) / (c.Rd * temp)
				tf.Elements[idx] = temp
			}
		}
	}
	if err := c.UpdateHydrostasis(); err != nil {
		t.Fatal(err)
	}
	if !c.HydrostasisSet() {
		t.Error("hydrostasis should be set")
	}
	for k := 0; k < nz; k++ {
		z := c.Zint.Get(k, 0) + 0.3*c.Dz.Get(k, 0)
		if have := c.HydrostaticPressure(k, 0, z); different(have, p(z), 1.e-9) {
			t.Errorf("level %d pressure: have %g, want %g", k, have, p(z))
		}
		want := p(z) / (c.Rd * temp)
		if have := c.HydrostaticDensity(k, 0, z); different(have, want, 1.e-8) {
			t.Errorf("level %d density: have %g, want %g", k, have, want)
		}
	}
}

func TestUpdateHydrostasisErrors(t *testing.T) {
	c, err := New(1, 1, 4, 1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddTracer(WaterVapor, "", true, true); err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateHydrostasis(); err == nil {
		t.Error("expected an error for fewer than five levels")
	}
	c, err = New(1, 1, 5, 1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateHydrostasis(); err == nil {
		t.Error("expected an error without water vapor")
	}
}
