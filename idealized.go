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

	"github.com/spatialmodel/dycore/coupler"
	"github.com/spatialmodel/dycore/transform"
)

// Parameters of the thermal bubble case.
const (
	thermalTheta      = 300.  // background potential temperature [K]
	thermalZ          = 2000. // bubble center height [m]
	thermalRadius     = 2000. // bubble radius [m]
	thermalAmplitude  = 2.    // potential temperature perturbation [K]
	thermalHumidity   = 0.8   // relative humidity at the bubble center
	supercellZTrop    = 12000.
	supercellT0       = 300.
	supercellTTrop    = 213.
	supercellP0       = 1.e5
	supercellQvMax    = 0.014
	supercellShearTop = 5000.
	supercellUMax     = 15.
)

// constThetaProfile returns the density and pressure at height z of a
// hydrostatic atmosphere with constant potential temperature th.
func constThetaProfile(th, z float64, c coupler.Constants) (dens, press float64) {
	exner := 1 - c.Grav*z/(c.Cpd*th)
	press = c.P0 * math.Pow(exner, c.Cpd/c.Rd)
	dens = press / (c.Rd * th * exner)
	return
}

// ellipsoidLinear returns amp at (x0, y0, z0), decreasing linearly with
// normalized distance to zero at the surface of the ellipsoid with radii
// (xr, yr, zr).
func ellipsoidLinear(x, y, z, x0, y0, z0, xr, yr, zr, amp float64) float64 {
	dx, dy, dz := (x-x0)/xr, (y-y0)/yr, (z-z0)/zr
	dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if dist > 1 {
		return 0
	}
	return amp * (1 - dist)
}

// saturationVaporPressure returns the saturation vapor pressure [Pa] at
// temperature t [K] from Tetens' formula.
func saturationVaporPressure(t float64) float64 {
	return 610.78 * math.Exp(17.27*(t-273.16)/(t-35.86))
}

// quadrature returns the horizontal quadrature points (relative to the cell
// center, in cell widths) and weights for an axis with n cells. Single-cell
// axes are sampled at the domain center only.
func quadrature(n int, pts, wts []float64) ([]float64, []float64) {
	if n == 1 {
		return []float64{0}, []float64{1}
	}
	return pts, wts
}

// initThermal sets up a warm, moist bubble in a constant-θ atmosphere.
func (d *Dycore) initThermal() error {
	c := d.Coupler
	cs := c.Constants
	b := d.Background
	err := d.setProfile(b, d.Order, func(k, e int, z float64) (float64, float64) {
		return constThetaProfile(thermalTheta, z, cs)
	})
	if err != nil {
		return err
	}
	qp, qw, err := transform.GLLPointsWeights(d.Order)
	if err != nil {
		return err
	}
	xp, xw := quadrature(d.l.nx, qp, qw)
	yp, yw := quadrature(d.l.ny, qp, qw)
	xc, yc := c.Xlen/2, c.Ylen/2
	st, trs := d.State.Elements, d.Tracers.Elements
	sv := d.l.sv

	parallelFor(d.l.cells(), func(int) func(int) {
		return func(n int) {
			k, j, i, e := d.l.cell(n)
			pos := d.l.index(0, k, j, i, e)
			zmid, dz := c.Zmid.Get(k, e), c.Dz.Get(k, e)
			var r, rt, wv float64
			for kk, pz := range qp {
				z := zmid + pz*dz
				rh, ph := constThetaProfile(thermalTheta, z, cs)
				for jj, py := range yp {
					y := yc
					if d.l.ny > 1 {
						y = (float64(j) + 0.5 + py) * d.dy
					}
					for ii, px := range xp {
						x := xc
						if d.l.nx > 1 {
							x = (float64(i) + 0.5 + px) * d.dx
						}
						wt := qw[kk] * yw[jj] * xw[ii]
						th := thermalTheta + ellipsoidLinear(x, y, z, xc, yc, thermalZ,
							thermalRadius, thermalRadius, thermalRadius, thermalAmplitude)
						rr := rh
						if d.BalanceInitialDensity {
							rr = rh * thermalTheta / th
						}
						r += (rr - rh) * wt
						rt += (rr*th - rh*thermalTheta) * wt

						temp := ph / cs.Rd / rh
						rel := ellipsoidLinear(x, y, z, xc, yc, thermalZ,
							thermalRadius, thermalRadius, thermalRadius, thermalHumidity)
						rv := rel * saturationVaporPressure(temp) / (cs.Rv * temp)
						wv += rv / (rh + rv) * rh * wt
					}
				}
			}
			st[pos+idR*sv] = r
			st[pos+idT*sv] = rt
			trs[pos+d.idWV*sv] = wv
			d.adjustMoisture(pos, k, e)
		}
	})
	return nil
}

// adjustMoisture adds the water vapor of the cell at pos to its density
// while keeping the temperature fixed, and then optionally rebalances the
// density against the background ρθ.
func (d *Dycore) adjustMoisture(pos, k, e int) {
	st, trs := d.State.Elements, d.Tracers.Elements
	sv := d.l.sv
	hr, hrt := d.Background.Dens(k, e), d.Background.DensTheta(k, e)
	wv := trs[pos+d.idWV*sv]

	rd := st[pos+idR*sv] + hr
	st[pos+idR*sv] += wv
	rm := st[pos+idR*sv] + hr
	for v := idU; v <= idW; v++ {
		st[pos+v*sv] *= rm / rd
	}
	temp := d.EOS.Pressure(st[pos+idT*sv]+hrt) / d.Coupler.Rd / rd
	p := d.moistPressure(rd, wv, temp)
	st[pos+idT*sv] = d.EOS.DensTheta(p) - hrt
	for t := range d.tracers {
		trs[pos+t*sv] *= rm / rd
	}

	if !d.BalanceInitialDensity {
		return
	}
	th := (st[pos+idT*sv] + hrt) / rm
	r := hrt / th
	st[pos+idR*sv] = r - hr
	for v := idU; v <= idW; v++ {
		st[pos+v*sv] *= r / rm
	}
	for t := range d.tracers {
		trs[pos+t*sv] *= r / rm
	}
	st[pos+idT*sv] = r*th - hrt
}

// supercellTemperature returns the sounding temperature [K] at height z.
func supercellTemperature(z float64) float64 {
	if z <= supercellZTrop {
		return supercellT0 - (supercellT0-supercellTTrop)*z/supercellZTrop
	}
	return supercellTTrop
}

// supercellPressureDry returns the dry hydrostatic pressure [Pa] of the
// sounding at height z.
func supercellPressureDry(z float64, c coupler.Constants) float64 {
	lapse := (supercellT0 - supercellTTrop) / supercellZTrop
	if z <= supercellZTrop {
		return supercellP0 * math.Pow(supercellTemperature(z)/supercellT0, c.Grav/(c.Rd*lapse))
	}
	pTrop := supercellPressureDry(supercellZTrop, c)
	return pTrop * math.Exp(-c.Grav*(z-supercellZTrop)/(c.Rd*supercellTTrop))
}

// supercellVapor returns the water vapor mixing ratio [kg/kg] of the
// sounding at height z.
func supercellVapor(z float64, c coupler.Constants) float64 {
	t := supercellTemperature(z)
	qvs := 380 / supercellPressureDry(z, c) * math.Exp(17.27*(t-273)/(t-36))
	relhum := 0.25
	if z < supercellZTrop {
		relhum = 1 - 0.75*math.Pow(z/supercellZTrop, 1.25)
	}
	if relhum*qvs > supercellQvMax {
		relhum = supercellQvMax / qvs
	}
	return math.Min(supercellQvMax, qvs*relhum)
}

// supercellWind returns the x wind [m/s] of the sounding at height z.
func supercellWind(z float64) float64 {
	if z < supercellShearTop {
		return 2*supercellUMax*z/supercellShearTop - supercellUMax
	}
	return supercellUMax
}

// initSupercell sets up a horizontally uniform, conditionally unstable
// sounding with low-level wind shear.
func (d *Dycore) initSupercell() error {
	c := d.Coupler
	cs := c.Constants
	b := d.Background
	ngll := d.NGLL
	ptsN, wtsN := d.tm.GLLPoints, d.tm.GLLWeights
	ptsO, wtsO, err := transform.GLLPointsWeights(d.Order)
	if err != nil {
		return err
	}
	integrand := func(z float64) float64 {
		qv := supercellVapor(z, cs)
		return -(1 + qv) * cs.Grav / (cs.Rd + qv*cs.Rv) / supercellTemperature(z)
	}
	// Moist hydrostatic pressure at the GLL points of each level.
	u := make([]float64, c.Nz*c.Nens)
	vap := make([]float64, c.Nz*c.Nens)
	for e := 0; e < c.Nens; e++ {
		p := supercellP0
		for k := 0; k < c.Nz; k++ {
			zmid, dz := c.Zmid.Get(k, e), c.Dz.Get(k, e)
			gr, grt, gp := b.DensAtGLL(k, e), b.DensThetaAtGLL(k, e), b.PressAtGLL(k, e)
			var r, rt, pc, uc, vc float64
			for kk := 0; kk < ngll; kk++ {
				if kk > 0 {
					lo, hi := zmid+ptsN[kk-1]*dz, zmid+ptsN[kk]*dz
					mid, width := (lo+hi)/2, hi-lo
					var tot float64
					for q, pt := range ptsO {
						tot += integrand(mid+width*pt) * wtsO[q] * width
					}
					p *= math.Exp(tot)
				}
				z := zmid + ptsN[kk]*dz
				qv := supercellVapor(z, cs)
				dry := p / (cs.Rd + qv*cs.Rv) / supercellTemperature(z)
				gr[kk] = dry * (1 + qv)
				grt[kk] = d.EOS.DensTheta(p)
				gp[kk] = p
				r += gr[kk] * wtsN[kk]
				rt += grt[kk] * wtsN[kk]
				pc += p * wtsN[kk]
				uc += gr[kk] * supercellWind(z) * wtsN[kk]
				vc += qv * dry * wtsN[kk]
			}
			ke := k*c.Nens + e
			b.DensCells.Elements[ke] = r
			b.DensThetaCells.Elements[ke] = rt
			b.PressCells.Elements[ke] = pc
			u[ke] = uc
			vap[ke] = vc
		}
	}
	st, trs := d.State.Elements, d.Tracers.Elements
	for n := 0; n < d.l.cells(); n++ {
		k, j, i, e := d.l.cell(n)
		pos := d.l.index(0, k, j, i, e)
		for v := 0; v < NumState; v++ {
			st[pos+v*d.l.sv] = 0
		}
		st[pos+idU*d.l.sv] = u[k*c.Nens+e]
		trs[pos+d.idWV*d.l.sv] = vap[k*c.Nens+e]
	}
	return nil
}
