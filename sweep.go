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

	"github.com/spatialmodel/dycore/ader"
	"github.com/spatialmodel/dycore/weno"
)

// fillHalos sets the halo cells along a of the state and the tracers.
// Periodic halos wrap around; wall halos copy the nearest interior cell
// with zero normal momentum.
func (d *Dycore) fillHalos(a Axis) {
	n, hs, s := d.l.n(a), d.l.hs, d.l.stride(a)
	wall := d.bc(a) == Wall
	st, trs := d.State.Elements, d.Tracers.Elements
	ntr := len(d.tracers)
	fill := func(arr []float64, base int, zeroNormal bool) {
		for ii := 1; ii <= hs; ii++ {
			lo, hi := base-ii*s, base+(n-1+ii)*s
			if zeroNormal {
				arr[lo], arr[hi] = 0, 0
			} else if wall {
				arr[lo], arr[hi] = arr[base], arr[base+(n-1)*s]
			} else {
				arr[lo], arr[hi] = arr[base+(n-ii)*s], arr[base+(ii-1)*s]
			}
		}
	}
	parallelFor(d.l.numLines(a), func(int) func(int) {
		return func(ii int) {
			ln := d.l.line(a, ii)
			for v := 0; v < NumState; v++ {
				fill(st, ln.base+v*d.l.sv, wall && v == idU+int(a))
			}
			for t := 0; t < ntr; t++ {
				fill(trs, ln.base+t*d.l.sv, false)
			}
		}
	})
}

// sweeper holds the scratch space for sweeping one line at a time.
type sweeper struct {
	d    *Dycore
	a    Axis
	n    int
	dt   float64
	wall bool

	q    [NumState][]float64 // padded line values
	dens []float64           // padded full density
	mr   [][]float64         // padded tracer mixing ratios
	lim  [NumState][2][]float64 // state estimates at faces
	flim [NumState][2][]float64 // flux estimates at faces
	tlim [][2][]float64
	flux [NumState][]float64
	tfl  [][]float64
	src  []float64
	mult []float64

	e       ader.Euler
	rt, rtn ader.Series
	gll     []float64
	avg     []float64
	favg    [NumState][]float64
}

func (d *Dycore) newSweeper(a Axis, dt float64) *sweeper {
	n, hs := d.l.n(a), d.l.hs
	ntr := len(d.tracers)
	np := n + 2*hs
	sw := &sweeper{
		d: d, a: a, n: n, dt: dt,
		wall: d.bc(a) == Wall,
		dens: make([]float64, np),
		mr:   make([][]float64, ntr),
		tlim: make([][2][]float64, ntr),
		tfl:  make([][]float64, ntr),
		src:  make([]float64, n),
		mult: make([]float64, n),
		gll:  make([]float64, d.NGLL),
		avg:  make([]float64, d.NGLL),
	}
	for v := 0; v < NumState; v++ {
		sw.q[v] = make([]float64, np)
		sw.lim[v] = [2][]float64{make([]float64, n+1), make([]float64, n+1)}
		sw.flim[v] = [2][]float64{make([]float64, n+1), make([]float64, n+1)}
		sw.favg[v] = make([]float64, d.NGLL)
		sw.flux[v] = make([]float64, n+1)
	}
	for t := 0; t < ntr; t++ {
		sw.mr[t] = make([]float64, np)
		sw.tlim[t] = [2][]float64{make([]float64, n+1), make([]float64, n+1)}
		sw.tfl[t] = make([]float64, n+1)
	}
	return sw
}

// level returns the vertical level of padded cell p (interior cell p-hs)
// of line ln.
func (sw *sweeper) level(ln line, p int) int {
	if sw.a != Z {
		return ln.k
	}
	c := p - sw.d.l.hs
	if sw.wall {
		if c < 0 {
			return 0
		}
		if c >= sw.n {
			return sw.n - 1
		}
		return c
	}
	return ((c % sw.n) + sw.n) % sw.n
}

// reconstructor returns the reconstructor of interior cell c of line ln.
func (sw *sweeper) reconstructor(ln line, c int) *weno.Reconstructor {
	if sw.a == Z {
		return sw.d.vrecon[ln.e][c]
	}
	return sw.d.recon
}

// avgDt returns the interval that face values are averaged over: the time
// step, or 0 for order-0 values if time averaging is off.
func (sw *sweeper) avgDt() float64 {
	if sw.d.TimeAvg {
		return sw.dt
	}
	return 0
}

// series returns the transform series of state field v.
func (sw *sweeper) series(v int) *ader.Series {
	switch v {
	case idR:
		return &sw.e.R
	case idT:
		return &sw.e.RT
	default:
		return &sw.e.M[v-idU]
	}
}

// load copies line ln, including halos, into the scratch space.
func (sw *sweeper) load(ln line) {
	d := sw.d
	hs, s := d.l.hs, d.l.stride(sw.a)
	st, trs := d.State.Elements, d.Tracers.Elements
	start := ln.base - hs*s
	for p := range sw.dens {
		pos := start + p*s
		for v := 0; v < NumState; v++ {
			sw.q[v][p] = st[pos+v*d.l.sv]
		}
		sw.dens[p] = sw.q[idR][p] + d.Background.Dens(sw.level(ln, p), ln.e)
		for t := range sw.mr {
			sw.mr[t][p] = trs[pos+t*d.l.sv] / sw.dens[p]
		}
	}
}

// cell reconstructs interior cell c, expands it in time and stores the
// time-averaged values at its two faces.
func (sw *sweeper) cell(ln line, c int) {
	d := sw.d
	ngll, ord := d.NGLL, d.Order
	a := int(sw.a)
	k := sw.level(ln, c+d.l.hs)
	rec := sw.reconstructor(ln, c)
	for v := 0; v < NumState; v++ {
		useWENO := d.WENOWinds
		if v == idR || v == idT {
			useWENO = d.WENOScalars
		}
		rec.Reconstruct(sw.q[v][c:c+ord], sw.series(v)[0][:ngll], useWENO)
	}
	b := d.Background
	var pHy []float64
	if sw.a == Z {
		hr, hrt := b.DensAtGLL(k, ln.e), b.DensThetaAtGLL(k, ln.e)
		for ii := 0; ii < ngll; ii++ {
			sw.e.R[0][ii] += hr[ii]
			sw.e.RT[0][ii] += hrt[ii]
		}
		pHy = b.PressAtGLL(k, ln.e)
	} else {
		hr, hrt := b.Dens(k, ln.e), b.DensTheta(k, ln.e)
		for ii := 0; ii < ngll; ii++ {
			sw.e.R[0][ii] += hr
			sw.e.RT[0][ii] += hrt
		}
	}
	wallLo := sw.wall && c == 0
	wallHi := sw.wall && c == sw.n-1
	if wallLo {
		sw.e.M[a][0][0] = 0
	}
	if wallHi {
		sw.e.M[a][0][ngll-1] = 0
	}
	width := d.width(sw.a, k, ln.e)
	d.ader.InitFluxes(&sw.e, a)
	if d.ader.NAder() > 1 {
		d.ader.Euler(&sw.e, a, width, pHy, wallLo, wallHi)
	}

	dt := sw.avgDt()
	for v := 0; v < NumState; v++ {
		d.ader.TimeAverage(sw.series(v), dt, sw.avg)
		sw.lim[v][1][c] = sw.avg[0]
		sw.lim[v][0][c+1] = sw.avg[ngll-1]
		if sw.a == Z && v == idR {
			hr := b.DensAtGLL(k, ln.e)
			var src float64
			for ii, w := range d.tm.GLLWeights {
				src += (sw.avg[ii] - hr[ii]) * w
			}
			sw.src[c] = -d.Coupler.Grav * src
		}
	}
	d.ader.FluxAverage(&sw.e, a, dt, pHy, &sw.favg)
	for v := 0; v < NumState; v++ {
		sw.flim[v][1][c] = sw.favg[v][0]
		sw.flim[v][0][c+1] = sw.favg[v][ngll-1]
	}

	for t, info := range d.tracers {
		rec.Reconstruct(sw.mr[t][c:c+ord], sw.gll, d.WENOScalars)
		for ii := 0; ii < ngll; ii++ {
			sw.rt[0][ii] = sw.gll[ii] * sw.e.R[0][ii]
			sw.rtn[0][ii] = sw.rt[0][ii] * sw.e.M[a][0][ii] / sw.e.R[0][ii]
		}
		if d.ader.NAder() > 1 {
			d.ader.Tracer(&sw.e.R, &sw.e.M[a], &sw.rt, &sw.rtn, width)
		}
		d.ader.TimeAverage(&sw.rt, dt, sw.avg)
		if info.Positive {
			for ii := range sw.avg {
				sw.avg[ii] = math.Max(sw.avg[ii], 0)
			}
		}
		sw.tlim[t][1][c] = sw.avg[0]
		sw.tlim[t][0][c+1] = sw.avg[ngll-1]
	}
}

// boundaries sets the outer sides of the two end faces.
func (sw *sweeper) boundaries() {
	n := sw.n
	set := func(lim *[2][]float64) {
		if sw.wall {
			lim[0][0], lim[1][n] = lim[1][0], lim[0][n]
		} else {
			lim[0][0], lim[1][n] = lim[0][n], lim[1][0]
		}
	}
	for v := range sw.lim {
		set(&sw.lim[v])
		set(&sw.flim[v])
	}
	for t := range sw.tlim {
		set(&sw.tlim[t])
	}
}

// fluxes solves the Riemann problem at every face. At wall ends only the
// pressure part of the normal momentum flux remains.
func (sw *sweeper) fluxes() {
	var qL, qR, fL, fR [NumState]float64
	for f := 0; f <= sw.n; f++ {
		for v := 0; v < NumState; v++ {
			qL[v], qR[v] = sw.lim[v][0][f], sw.lim[v][1][f]
			fL[v], fR[v] = sw.flim[v][0][f], sw.flim[v][1][f]
		}
		fl := RiemannFlux(sw.d.EOS, sw.a, &qL, &qR, &fL, &fR)
		for v := 0; v < NumState; v++ {
			sw.flux[v][f] = fl[v]
		}
		for t := range sw.tfl {
			mr := upwindMixingRatio(fl[idR], sw.tlim[t][0][f]/qL[idR], sw.tlim[t][1][f]/qR[idR])
			sw.tfl[t][f] = fl[idR] * mr
		}
	}
	if !sw.wall {
		return
	}
	in := idU + int(sw.a)
	for _, f := range []int{0, sw.n} {
		for v := 0; v < NumState; v++ {
			if v != in {
				sw.flux[v][f] = 0
			}
		}
		for t := range sw.tfl {
			sw.tfl[t][f] = 0
		}
	}
}

// donor returns the cell that a flux across face f draws from.
func (sw *sweeper) donor(f int, flux float64) int {
	c := f
	if flux > 0 {
		c = f - 1
	}
	wrap := !sw.wall || (sw.d.FCTUpwindWrap && sw.a != Z)
	if wrap {
		return ((c % sw.n) + sw.n) % sw.n
	}
	if c < 0 {
		return 0
	}
	if c >= sw.n {
		return sw.n - 1
	}
	return c
}

// limit scales the fluxes of positive tracers so that no cell loses more
// tracer mass in the step than it holds.
func (sw *sweeper) limit(ln line) {
	d := sw.d
	hs := d.l.hs
	for t, info := range d.tracers {
		if !info.Positive {
			continue
		}
		F := sw.tfl[t]
		for c := 0; c < sw.n; c++ {
			width := d.width(sw.a, sw.level(ln, c+hs), ln.e)
			out := sw.dt * (math.Max(F[c+1], 0) - math.Min(F[c], 0)) / width
			sw.mult[c] = 1
			if out > 0 {
				mass := math.Max(sw.mr[t][c+hs]*sw.dens[c+hs], 0)
				sw.mult[c] = math.Min(1, mass/out)
			}
		}
		for f := 0; f <= sw.n; f++ {
			if F[f] != 0 {
				F[f] *= sw.mult[sw.donor(f, F[f])]
			}
		}
	}
}

// tendencies stores the flux divergence of line ln.
func (sw *sweeper) tendencies(ln line) {
	d := sw.d
	hs, s := d.l.hs, d.l.stride(sw.a)
	tend, ttend := d.tend.Elements, d.tracerTend.Elements
	for c := 0; c < sw.n; c++ {
		pos := ln.base + c*s
		width := d.width(sw.a, sw.level(ln, c+hs), ln.e)
		for v := 0; v < NumState; v++ {
			tv := -(sw.flux[v][c+1] - sw.flux[v][c]) / width
			if (v == idU && d.l.nx == 1) || (v == idV && d.l.ny == 1) {
				tv = 0
			}
			if v == idW && sw.a == Z {
				tv += sw.src[c]
			}
			tend[pos+v*d.l.sv] = tv
		}
		for t := range sw.tfl {
			ttend[pos+t*d.l.sv] = -(sw.tfl[t][c+1] - sw.tfl[t][c]) / width
		}
	}
}

func (sw *sweeper) run(ln line) {
	sw.load(ln)
	for c := 0; c < sw.n; c++ {
		sw.cell(ln, c)
	}
	sw.boundaries()
	sw.fluxes()
	sw.limit(ln)
	sw.tendencies(ln)
}

// sweep computes the tendencies of a one-dimensional update along a.
func (d *Dycore) sweep(a Axis, dt float64) {
	d.fillHalos(a)
	parallelFor(d.l.numLines(a), func(int) func(int) {
		sw := d.newSweeper(a, dt)
		return func(ii int) {
			sw.run(d.l.line(a, ii))
		}
	})
}
