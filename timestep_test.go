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
	"bytes"
	"math"
	"testing"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/spatialmodel/dycore/coupler"
)

// The thermal case conserves air and tracer mass, keeps tracers
// non-negative and produces rising motion inside the bubble.
func TestThermal(t *testing.T) {
	const numSteps = 40
	d := thermalDycore(t)
	var log bytes.Buffer
	d.RunFuncs = []DomainManipulator{
		CFLTimeStep(0.8),
		Step(),
		Log(&log),
		func(d *Dycore) error {
			if d.Iteration >= numSteps {
				d.Done = true
			}
			return nil
		},
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	m0 := d.Mass()
	if m0.Tracers[0] <= 0 {
		t.Fatalf("initial water vapor mass %g", m0.Tracers[0])
	}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	m1 := d.Mass()
	if different(m1.Density, m0.Density, 1e-10) {
		t.Errorf("air mass changed from %g to %g", m0.Density, m1.Density)
	}
	if different(m1.Tracers[0], m0.Tracers[0], 1e-10) {
		t.Errorf("water vapor mass changed from %g to %g", m0.Tracers[0], m1.Tracers[0])
	}
	if m1.Tracers[1] != 0 {
		t.Errorf("dye mass %g, want 0", m1.Tracers[1])
	}
	for n := 0; n < d.l.cells(); n++ {
		k, j, i, e := d.l.cell(n)
		if v := d.Tracers.Elements[d.l.index(0, k, j, i, e)]; v < 0 {
			t.Fatalf("negative water vapor %g at (%d, %d, %d)", v, k, j, i)
		}
	}

	w := d.Coupler.MustField(coupler.WVel)
	d.ConservedToPrimitive()
	for _, i := range []int{4, 5} {
		if v := w.Get(2, 0, i, 0); !(v > 0.1) {
			t.Errorf("vertical wind above the bubble center at x cell %d is %g", i, v)
		}
	}
	// The flow is symmetric about the center of the domain.
	for k := 0; k < d.l.nz; k++ {
		for i := 0; i < d.l.nx/2; i++ {
			if absDifferent(w.Get(k, 0, i, 0), w.Get(k, 0, d.l.nx-1-i, 0), 1e-5) {
				t.Errorf("asymmetric w at level %d: %g vs %g", k, w.Get(k, 0, i, 0), w.Get(k, 0, d.l.nx-1-i, 0))
			}
		}
	}
	if d.Iteration != numSteps || log.Len() == 0 {
		t.Errorf("iterations=%d, log length=%d", d.Iteration, log.Len())
	}
}

// checkFaceFluxes sweeps every line along a and checks that nothing but
// pressure crosses wall ends and that the two ends of periodic lines carry
// the same flux.
func checkFaceFluxes(t *testing.T, d *Dycore, a Axis) {
	d.fillHalos(a)
	sw := d.newSweeper(a, d.Dt)
	n := d.l.n(a)
	in := idU + int(a)
	for ii := 0; ii < d.l.numLines(a); ii++ {
		sw.run(d.l.line(a, ii))
		for v := 0; v < NumState; v++ {
			lo, hi := sw.flux[v][0], sw.flux[v][n]
			if d.bc(a) == Periodic {
				if lo != hi {
					t.Fatalf("%v line %d %s: end fluxes %g and %g differ", a, ii, StateNames[v], lo, hi)
				}
			} else if v != in && (lo != 0 || hi != 0) {
				t.Fatalf("%v line %d %s: wall fluxes %g and %g", a, ii, StateNames[v], lo, hi)
			}
		}
		for tr := range sw.tfl {
			lo, hi := sw.tfl[tr][0], sw.tfl[tr][n]
			if d.bc(a) == Periodic && lo != hi || d.bc(a) == Wall && (lo != 0 || hi != 0) {
				t.Fatalf("%v line %d tracer %d: end fluxes %g and %g", a, ii, tr, lo, hi)
			}
		}
	}
}

// A three-dimensional thermal, periodic in both horizontal directions and
// closed at the top and bottom, conserves mass to round-off.
func TestThermal3D(t *testing.T) {
	const numSteps = 8
	c := testCoupler(t, 6, 6, 8, 12000, 12000, 8000)
	cfg := DefaultConfig()
	cfg.InitData = Thermal
	cfg.CheckMass = true
	cfg.Strict = true
	d, err := New(cfg, c, nil)
	if err != nil {
		t.Fatal(err)
	}
	if have := d.ActiveAxes(); len(have) != 3 {
		t.Fatalf("active axes: %v", have)
	}
	d.RunFuncs = []DomainManipulator{
		CFLTimeStep(0.8),
		SimulationSteps(numSteps),
		Step(),
		func(d *Dycore) error {
			for _, a := range d.ActiveAxes() {
				checkFaceFluxes(t, d, a)
			}
			return nil
		},
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	m0 := d.Mass()
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	m1 := d.Mass()
	if d.Iteration != numSteps {
		t.Errorf("iterations: have %d, want %d", d.Iteration, numSteps)
	}
	if different(m1.Density, m0.Density, 1e-10) {
		t.Errorf("air mass changed from %g to %g", m0.Density, m1.Density)
	}
	if different(m1.Tracers[0], m0.Tracers[0], 1e-10) {
		t.Errorf("water vapor mass changed from %g to %g", m0.Tracers[0], m1.Tracers[0])
	}
}

// The supercell sounding has a sheared wind across periodic boundaries.
func TestSupercellMassConservation(t *testing.T) {
	c := testCoupler(t, 8, 1, 12, 80000, 80000, 20000)
	cfg := DefaultConfig()
	cfg.InitData = Supercell
	cfg.CheckMass = true
	cfg.Strict = true
	d, err := New(cfg, c, nil)
	if err != nil {
		t.Fatal(err)
	}
	d.RunFuncs = []DomainManipulator{
		CFLTimeStep(0.8),
		SimulationTime(60),
		Step(),
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	u := c.MustField(coupler.UVel)
	if v := u.Get(0, 0, 0, 0); !(v < -5) {
		t.Errorf("lowest level wind %g should be about -10", v)
	}
	if v := u.Get(11, 0, 0, 0); absDifferent(v, 15, 1e-6) {
		t.Errorf("upper wind %g should be 15", v)
	}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	if absDifferent(d.Time, 60, 1e-9) {
		t.Errorf("simulation ended at %g, want 60", d.Time)
	}

	// A horizontally uniform state stays uniform.
	d.ConservedToPrimitive()
	for k := 0; k < 12; k++ {
		row := make([]float64, 8)
		for i := range row {
			row[i] = u.Get(k, 0, i, 0)
		}
		if spread := stats.StatsMax(row) - stats.StatsMin(row); spread > 1e-8 {
			t.Errorf("level %d: u varies horizontally by %g", k, spread)
		}
	}
}

func TestSupercellSounding(t *testing.T) {
	cs := coupler.DefaultConstants()
	if have := supercellTemperature(0); have != 300 {
		t.Errorf("surface temperature %g", have)
	}
	if have := supercellTemperature(15000); have != 213 {
		t.Errorf("stratosphere temperature %g", have)
	}
	if have := supercellPressureDry(0, cs); have != 1e5 {
		t.Errorf("surface pressure %g", have)
	}
	// Pressure is continuous at the tropopause.
	below := supercellPressureDry(supercellZTrop-1e-6, cs)
	above := supercellPressureDry(supercellZTrop+1e-6, cs)
	if different(below, above, 1e-8) {
		t.Errorf("pressure jump at the tropopause: %g, %g", below, above)
	}
	for _, z := range []float64{0, 1000, 5000, 11000, 16000} {
		if qv := supercellVapor(z, cs); qv < 0 || qv > supercellQvMax {
			t.Errorf("z=%g: vapor %g", z, qv)
		}
	}
	if have := supercellWind(2500); have != 0 {
		t.Errorf("wind at 2500 m is %g, want 0", have)
	}
}

func TestConstThetaProfile(t *testing.T) {
	cs := coupler.DefaultConstants()
	eos := DefaultIdealGas()
	for _, z := range []float64{0, 500, 5000} {
		dens, press := constThetaProfile(300, z, cs)
		// The profile is hydrostatic.
		const h = 0.01
		_, pUp := constThetaProfile(300, z+h, cs)
		_, pDown := constThetaProfile(300, z-h, cs)
		if different(-(pUp-pDown)/(2*h)/cs.Grav, dens, 1e-6) {
			t.Errorf("z=%g: not hydrostatic", z)
		}
		// And has a constant potential temperature.
		if th := eos.DensTheta(press) / dens; different(th, 300, 1e-12) {
			t.Errorf("z=%g: potential temperature %g", z, th)
		}
	}
}

func TestEllipsoidLinear(t *testing.T) {
	if have := ellipsoidLinear(0, 0, 0, 0, 0, 0, 1, 1, 1, 2); have != 2 {
		t.Errorf("center: %g", have)
	}
	if have := ellipsoidLinear(0.5, 0, 0, 0, 0, 0, 1, 1, 1, 2); absDifferent(have, 1, 1e-15) {
		t.Errorf("halfway: %g", have)
	}
	if have := ellipsoidLinear(0, 3, 0, 0, 0, 0, 1, 1, 1, 2); have != 0 {
		t.Errorf("outside: %g", have)
	}
	if have := saturationVaporPressure(273.16); absDifferent(have, 610.78, 1e-10) {
		t.Errorf("saturation vapor pressure at the triple point: %g", have)
	}
}

func TestRunFuncs(t *testing.T) {
	d := thermalDycore(t)
	if err := FixedTimeStep(-1)(d); err == nil {
		t.Error("expected an error for a negative time step")
	}
	if err := d.TimeStep(0); err == nil {
		t.Error("expected an error for a zero time step")
	}
	d.Dt = 4
	d.Time = 8
	if err := SimulationTime(10)(d); err != nil {
		t.Fatal(err)
	}
	if d.Dt != 2 || !d.Done {
		t.Errorf("dt=%g done=%v; want 2, true", d.Dt, d.Done)
	}
	d.Time = 10
	if err := SimulationTime(10)(d); err != nil {
		t.Fatal(err)
	}
	if d.Dt != 0 {
		t.Errorf("dt=%g after the end of the simulation", d.Dt)
	}
	if err := Step()(d); err != nil {
		t.Fatal(err)
	}
	if d.Iteration != 0 {
		t.Error("a zero time step should not count as an iteration")
	}

	d.Done = false
	for _, test := range []struct {
		iteration int
		done      bool
	}{{0, false}, {1, true}, {2, true}} {
		d.Iteration, d.Done, d.Dt = test.iteration, false, 1
		if err := SimulationSteps(2)(d); err != nil {
			t.Fatal(err)
		}
		if d.Done != test.done {
			t.Errorf("iteration %d: done=%v, want %v", test.iteration, d.Done, test.done)
		}
	}
	if d.Dt != 0 {
		t.Errorf("dt=%g after the last step", d.Dt)
	}
}

func TestComputeTimeStep(t *testing.T) {
	d := thermalDycore(t)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	dt := d.ComputeTimeStep(1)
	// The atmosphere is at rest, so the fastest signal is the speed of
	// sound, which is largest near the surface.
	var csMax float64
	for k := 0; k < d.l.nz; k++ {
		csMax = math.Max(csMax, d.EOS.SoundSpeed(d.Background.Dens(k, 0), d.Background.DensTheta(k, 0)))
	}
	if want := 1000 / csMax; different(dt, want, 1e-2) {
		t.Errorf("have %g, want about %g", dt, want)
	}
	if d.Sweep != Forward {
		t.Error("computing the time step should not change the sweep order")
	}
	if err := d.TimeStep(dt / 2); err != nil {
		t.Fatal(err)
	}
	if d.Sweep != Reverse {
		t.Error("the sweep order should alternate")
	}
}

// With a single time order there is nothing to average, so the time
// averaging switch has no effect.
func TestSingleTimeOrder(t *testing.T) {
	var states [][]float64
	for _, avg := range []bool{true, false} {
		c := testCoupler(t, 10, 1, 10, 20000, 20000, 10000)
		cfg := DefaultConfig()
		cfg.InitData = Thermal
		cfg.NAder = 1
		cfg.TimeAvg = avg
		d, err := New(cfg, c, nil)
		if err != nil {
			t.Fatal(err)
		}
		if d.ader.NAder() != 1 {
			t.Fatalf("time orders: %d", d.ader.NAder())
		}
		d.RunFuncs = []DomainManipulator{FixedTimeStep(2), SimulationSteps(3), Step()}
		if err := d.Init(); err != nil {
			t.Fatal(err)
		}
		if err := d.Run(); err != nil {
			t.Fatal(err)
		}
		states = append(states, append([]float64(nil), d.State.Elements...))
	}
	for n, v := range states[0] {
		if v != states[1][n] {
			t.Fatalf("element %d: %g with time averaging, %g without", n, v, states[1][n])
		}
	}
}
