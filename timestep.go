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
	"fmt"
	"math"
)

// Thresholds for the invariant checks.
const (
	negativeTolerance = -1.e-12
	massTolerance     = 1.e-10
)

// TimeStep advances the state by dt [s] with one split sweep along each
// active axis. The sweep order alternates from one call to the next.
func (d *Dycore) TimeStep(dt float64) error {
	if !(dt > 0) {
		return fmt.Errorf("dycore: time step %g should be >0", dt)
	}
	if err := d.syncVerticalGrid(); err != nil {
		return err
	}
	var m0 Mass
	if d.CheckMass {
		m0 = d.Mass()
	}
	mins := make([]float64, len(d.tracers))
	for _, a := range d.Sweep.Axes(d.active) {
		d.sweep(a, dt)
		for t, m := range d.applyTendencies(dt) {
			mins[t] = math.Min(mins[t], m)
		}
	}
	d.Sweep = d.Sweep.Next()

	for t, info := range d.tracers {
		if !info.Positive || mins[t] >= negativeTolerance {
			continue
		}
		if d.Strict {
			return &InvariantError{Kind: NegativeTracer, Field: info.Name, Value: mins[t]}
		}
		d.Logger.WithField("tracer", info.Name).Warnf("dycore: negative tracer density %g set to zero", mins[t])
	}
	if d.CheckMass {
		return d.checkMass(m0, d.Mass())
	}
	return nil
}

// applyTendencies adds dt times the tendencies to the state and tracers.
// Negative values of positive tracers are set to zero. It returns the most
// negative value of each tracer before that correction.
func (d *Dycore) applyTendencies(dt float64) []float64 {
	nprocs := numWorkers(d.l.cells())
	ntr := len(d.tracers)
	mins := make([][]float64, nprocs)
	st, tend := d.State.Elements, d.tend.Elements
	trs, ttend := d.Tracers.Elements, d.tracerTend.Elements
	parallelFor(d.l.cells(), func(pp int) func(int) {
		m := make([]float64, ntr)
		mins[pp] = m
		return func(n int) {
			k, j, i, e := d.l.cell(n)
			pos := d.l.index(0, k, j, i, e)
			for v := 0; v < NumState; v++ {
				st[pos+v*d.l.sv] += dt * tend[pos+v*d.l.sv]
			}
			for t, info := range d.tracers {
				idx := pos + t*d.l.sv
				trs[idx] += dt * ttend[idx]
				if info.Positive && trs[idx] < 0 {
					m[t] = math.Min(m[t], trs[idx])
					trs[idx] = 0
				}
			}
		}
	})
	o := make([]float64, ntr)
	for _, m := range mins {
		for t, v := range m {
			o[t] = math.Min(o[t], v)
		}
	}
	return o
}

func (d *Dycore) checkMass(m0, m1 Mass) error {
	check := func(name string, a, b float64) error {
		if a == 0 {
			return nil
		}
		if rel := math.Abs(b-a) / math.Abs(a); rel > massTolerance {
			return &InvariantError{Kind: MassChange, Field: name, Value: rel}
		}
		return nil
	}
	if err := check("density", m0.Density, m1.Density); err != nil {
		return err
	}
	for t, info := range d.tracers {
		if err := check(info.Name, m0.Tracers[t], m1.Tracers[t]); err != nil {
			return err
		}
	}
	return nil
}

// ComputeTimeStep returns the largest stable time step [s] for Courant
// number cfl, based on the fastest acoustic wave in any cell and along any
// active axis.
func (d *Dycore) ComputeTimeStep(cfl float64) float64 {
	nprocs := numWorkers(d.l.cells())
	dts := make([]float64, nprocs)
	st := d.State.Elements
	b := d.Background
	parallelFor(d.l.cells(), func(pp int) func(int) {
		dts[pp] = math.Inf(1)
		return func(n int) {
			k, j, i, e := d.l.cell(n)
			pos := d.l.index(0, k, j, i, e)
			r := st[pos+idR*d.l.sv] + b.Dens(k, e)
			rt := st[pos+idT*d.l.sv] + b.DensTheta(k, e)
			var vel [3]float64
			for a := range vel {
				vel[a] = st[pos+(idU+a)*d.l.sv] / r
			}
			width := [3]float64{d.dx, d.dy, d.width(Z, k, e)}
			dts[pp] = math.Min(dts[pp], courant(d.EOS, cfl, r, rt, vel, width, d.active))
		}
	})
	dt := math.Inf(1)
	for _, v := range dts {
		dt = math.Min(dt, v)
	}
	return dt
}
