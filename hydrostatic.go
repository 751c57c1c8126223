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
	"context"
	"fmt"
	"runtime"

	"github.com/ctessum/requestcache"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/dycore/internal/hash"
	"github.com/spatialmodel/dycore/transform"
)

// backgroundQuadraturePoints is the number of GLL points used to average
// the coupler's hydrostatic profile over each cell.
const backgroundQuadraturePoints = 9

// Background is a hydrostatic reference state. Cell values are averages
// over each level; GLL values are point values at the GLL points of each
// level.
type Background struct {
	nz, nens, ngll int

	// DensCells, DensThetaCells and PressCells are shaped [nz][nens].
	DensCells, DensThetaCells, PressCells *sparse.DenseArray

	// DensGLL, DensThetaGLL and PressGLL are shaped [nz][nens][ngll].
	DensGLL, DensThetaGLL, PressGLL *sparse.DenseArray
}

// NewBackground returns a background of zeros.
func NewBackground(nz, nens, ngll int) *Background {
	return &Background{
		nz: nz, nens: nens, ngll: ngll,
		DensCells:      sparse.ZerosDense(nz, nens),
		DensThetaCells: sparse.ZerosDense(nz, nens),
		PressCells:     sparse.ZerosDense(nz, nens),
		DensGLL:        sparse.ZerosDense(nz, nens, ngll),
		DensThetaGLL:   sparse.ZerosDense(nz, nens, ngll),
		PressGLL:       sparse.ZerosDense(nz, nens, ngll),
	}
}

// Dens returns the cell-average density of level k and member e.
func (b *Background) Dens(k, e int) float64 { return b.DensCells.Elements[k*b.nens+e] }

// DensTheta returns the cell-average ρθ of level k and member e.
func (b *Background) DensTheta(k, e int) float64 { return b.DensThetaCells.Elements[k*b.nens+e] }

// Press returns the cell-average pressure of level k and member e.
func (b *Background) Press(k, e int) float64 { return b.PressCells.Elements[k*b.nens+e] }

func (b *Background) gll(a *sparse.DenseArray, k, e int) []float64 {
	i := (k*b.nens + e) * b.ngll
	return a.Elements[i : i+b.ngll]
}

// DensAtGLL returns the density at the GLL points of level k and member e.
// The returned slice must not be modified.
func (b *Background) DensAtGLL(k, e int) []float64 { return b.gll(b.DensGLL, k, e) }

// DensThetaAtGLL returns ρθ at the GLL points of level k and member e.
func (b *Background) DensThetaAtGLL(k, e int) []float64 { return b.gll(b.DensThetaGLL, k, e) }

// PressAtGLL returns the pressure at the GLL points of level k and member e.
func (b *Background) PressAtGLL(k, e int) []float64 { return b.gll(b.PressGLL, k, e) }

// profile returns the hydrostatic density and pressure of level k and
// member e at height z.
type profile func(k, e int, z float64) (dens, press float64)

// setProfile fills b from prof, averaging over each level with an
// nq-point GLL quadrature. ρθ is derived from the pressure.
func (d *Dycore) setProfile(b *Background, nq int, prof profile) error {
	qp, qw, err := transform.GLLPointsWeights(nq)
	if err != nil {
		return err
	}
	c := d.Coupler
	for k := 0; k < b.nz; k++ {
		for e := 0; e < b.nens; e++ {
			zmid, dz := c.Zmid.Elements[k*b.nens+e], c.Dz.Elements[k*b.nens+e]
			var r, rt, p float64
			for q, pt := range qp {
				dens, press := prof(k, e, zmid+pt*dz)
				r += dens * qw[q]
				p += press * qw[q]
				rt += d.EOS.DensTheta(press) * qw[q]
			}
			b.DensCells.Elements[k*b.nens+e] = r
			b.DensThetaCells.Elements[k*b.nens+e] = rt
			b.PressCells.Elements[k*b.nens+e] = p
			gr, grt, gp := b.DensAtGLL(k, e), b.DensThetaAtGLL(k, e), b.PressAtGLL(k, e)
			for ii, pt := range d.tm.GLLPoints {
				gr[ii], gp[ii] = prof(k, e, zmid+pt*dz)
				grt[ii] = d.EOS.DensTheta(gp[ii])
			}
		}
	}
	return nil
}

// BackgroundKey returns a key identifying the coupler hydrostasis and
// vertical grid that the background is computed from.
func (d *Dycore) BackgroundKey() string {
	return hash.Hash([][]float64{d.Coupler.HydrostasisParams.Elements, d.Coupler.Zint.Elements})
}

// UpdateBackground recomputes the background from the coupler's fitted
// hydrostatic profile. Nothing is recomputed if neither the fit nor the
// vertical grid has changed since the last call.
func (d *Dycore) UpdateBackground() error {
	if !d.Coupler.HydrostasisSet() {
		return fmt.Errorf("dycore: the coupler hydrostasis has not been computed")
	}
	d.hyInit.Do(func() {
		d.hyCache = requestcache.NewCache(d.computeBackground, runtime.GOMAXPROCS(-1),
			requestcache.Deduplicate(), requestcache.Memory(4))
	})
	key := d.BackgroundKey()
	if key == d.hyKey {
		return nil
	}
	r := d.hyCache.NewRequest(context.TODO(), d.Coupler, key)
	result, err := r.Result()
	if err != nil {
		return err
	}
	d.Background = result.(*Background)
	d.hyKey = key
	return nil
}

func (d *Dycore) computeBackground(ctx context.Context, _ interface{}) (interface{}, error) {
	c := d.Coupler
	b := NewBackground(c.Nz, c.Nens, d.NGLL)
	err := d.setProfile(b, backgroundQuadraturePoints, func(k, e int, z float64) (float64, float64) {
		return c.HydrostaticDensity(k, e, z), c.HydrostaticPressure(k, e, z)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}
