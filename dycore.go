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

// Package dycore is a split-explicit dynamical core for the compressible
// Euler equations on a structured grid. Each time step is a sequence of
// one-dimensional sweeps (alternating x-y-z and z-y-x), each of which
// reconstructs the state at Gauss-Lobatto-Legendre points with WENO,
// expands it in time with ADER differential transforms, solves a
// characteristic Riemann problem at every cell face and applies a
// flux-corrected update to the tracers.
//
// State is exchanged with physics packages through a coupler.Coupler, which
// holds the primitive variables.
package dycore

import (
	"fmt"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/dycore/ader"
	"github.com/spatialmodel/dycore/coupler"
	"github.com/spatialmodel/dycore/internal/hash"
	"github.com/spatialmodel/dycore/transform"
	"github.com/spatialmodel/dycore/weno"
)

// Version gives the version number.
const Version = "0.1.0"

// verticalCacheSize is the number of distinct level geometries whose
// transform matrices are kept.
const verticalCacheSize = 256

// Dycore holds the state of the dynamical core.
type Dycore struct {
	Config

	// EOS is the equation of state. It is set by New and must not be
	// replaced afterwards because the time expansion is built from its
	// constants.
	EOS EquationOfState

	// Logger receives warnings about corrected tracers. It defaults to
	// the logrus standard logger.
	Logger logrus.FieldLogger

	// Coupler holds the primitive state shared with physics packages.
	Coupler *coupler.Coupler

	// State holds the conserved fields in StateNames order and Tracers
	// holds the tracer densities, both shaped
	// [field][nz+2hs][ny+2hs][nx+2hs][nens] where hs is the stencil half
	// width. Density and ρθ are stored as perturbations from Background.
	State, Tracers *sparse.DenseArray

	// Background is the hydrostatic reference state.
	Background *Background

	// Dt is the current time step [s] and Time is the simulated time [s].
	Dt, Time float64

	// Iteration is the number of completed time steps.
	Iteration int

	// Sweep is the sweep order of the next time step.
	Sweep SweepOrder

	// Done is set by a RunFunc to end Run.
	Done bool

	// InitFuncs run once at the end of Init, RunFuncs run in order until
	// Done is set, and CleanupFuncs run once in Cleanup.
	InitFuncs, RunFuncs, CleanupFuncs []DomainManipulator

	l          layout
	active     []Axis
	dx, dy     float64
	tracers    []coupler.Tracer
	idWV       int
	tend       *sparse.DenseArray
	tracerTend *sparse.DenseArray

	tm     *transform.Matrices
	recon  *weno.Reconstructor
	vrecon [][]*weno.Reconstructor // [nens][nz]
	vgrid  string                  // key of the grid vrecon was built for
	ader   *ader.Transform

	hyInit  sync.Once
	hyCache *requestcache.Cache
	hyKey   string
}

// DomainManipulator is a function that operates on the dynamical core.
type DomainManipulator func(d *Dycore) error

// New creates a dynamical core for the grid, tracers and vertical
// coordinates of c. A tracer named coupler.WaterVapor must already be
// registered. If eos is nil, an ideal gas with the coupler's constants is
// used.
func New(cfg Config, c *coupler.Coupler, eos EquationOfState) (*Dycore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	idWV, ok := c.TracerIndex(coupler.WaterVapor)
	if !ok {
		return nil, fmt.Errorf("dycore: the coupler must have a tracer named '%s'", coupler.WaterVapor)
	}
	for k := 0; k < c.Nz; k++ {
		for e := 0; e < c.Nens; e++ {
			if !(c.Dz.Get(k, e) > 0) {
				return nil, fmt.Errorf("dycore: the coupler vertical grid has not been set")
			}
		}
	}
	if eos == nil {
		eos = NewIdealGas(c.Rd, c.Rv, c.Cpd, c.P0, c.Grav)
	}
	hs := (cfg.Order - 1) / 2
	d := &Dycore{
		Config:  cfg,
		EOS:     eos,
		Logger:  logrus.StandardLogger(),
		Coupler: c,
		l:       newLayout(c.Nx, c.Ny, c.Nz, c.Nens, hs),
		dx:      c.Dx(),
		dy:      c.Dy(),
		tracers: c.Tracers(),
		idWV:    idWV,
	}
	for _, a := range []Axis{X, Y, Z} {
		n := d.l.n(a)
		if a != Z && n == 1 {
			continue
		}
		if n < hs {
			return nil, fmt.Errorf("dycore: %v axis has %d cells but needs at least %d for order %d", a, n, hs, cfg.Order)
		}
		d.active = append(d.active, a)
	}

	var err error
	if d.tm, err = transform.New(cfg.Order, cfg.NGLL); err != nil {
		return nil, err
	}
	if d.recon, err = weno.New(d.tm, cfg.WENOSigma, cfg.WENOIdealHigh); err != nil {
		return nil, err
	}
	if d.ader, err = ader.New(cfg.NAder, d.tm.Deriv, eos.Gamma(), eos.C0()); err != nil {
		return nil, err
	}
	if err = d.setVerticalReconstructors(); err != nil {
		return nil, err
	}

	ntr := len(d.tracers)
	d.State = sparse.ZerosDense(d.l.shape(NumState)...)
	d.tend = sparse.ZerosDense(d.l.shape(NumState)...)
	d.Tracers = sparse.ZerosDense(d.l.shape(ntr)...)
	d.tracerTend = sparse.ZerosDense(d.l.shape(ntr)...)
	d.Background = NewBackground(c.Nz, c.Nens, cfg.NGLL)
	return d, nil
}

// setVerticalReconstructors builds one reconstructor per level and
// ensemble member. Levels with the same geometry share one.
func (d *Dycore) setVerticalReconstructors() error {
	vc, err := transform.NewVerticalCache(d.Order, d.NGLL, verticalCacheSize)
	if err != nil {
		return err
	}
	d.vgrid = hash.Hash(d.Coupler.Zint.Elements)
	shared := make(map[*transform.Matrices]*weno.Reconstructor)
	d.vrecon = make([][]*weno.Reconstructor, d.l.nens)
	for e := range d.vrecon {
		levels, err := vc.Levels(d.Coupler.Column(e))
		if err != nil {
			return fmt.Errorf("dycore: building vertical transforms: %v", err)
		}
		d.vrecon[e] = make([]*weno.Reconstructor, len(levels))
		for k, m := range levels {
			r, ok := shared[m]
			if !ok {
				if r, err = weno.New(m, d.WENOSigma, d.WENOIdealHigh); err != nil {
					return err
				}
				shared[m] = r
			}
			d.vrecon[e][k] = r
		}
	}
	return nil
}

// syncVerticalGrid rebuilds the vertical reconstructors, and the
// background if the coupler has a hydrostasis fit, when the coupler's
// vertical grid has been changed with SetVerticalGrid since they were
// built.
func (d *Dycore) syncVerticalGrid() error {
	if hash.Hash(d.Coupler.Zint.Elements) == d.vgrid {
		return nil
	}
	if err := d.setVerticalReconstructors(); err != nil {
		return err
	}
	if d.Coupler.HydrostasisSet() {
		return d.UpdateBackground()
	}
	return nil
}

// ActiveAxes returns the axes that are swept, in forward order. Horizontal
// axes with a single cell are skipped.
func (d *Dycore) ActiveAxes() []Axis {
	o := make([]Axis, len(d.active))
	copy(o, d.active)
	return o
}

// NumSplit returns the number of sweeps in each time step.
func (d *Dycore) NumSplit() int { return len(d.active) }

// TracerInfo returns the registered tracers in storage order.
func (d *Dycore) TracerInfo() []coupler.Tracer {
	o := make([]coupler.Tracer, len(d.tracers))
	copy(o, d.tracers)
	return o
}

// width returns the cell width along a of level k and ensemble member e.
func (d *Dycore) width(a Axis, k, e int) float64 {
	switch a {
	case X:
		return d.dx
	case Y:
		return d.dy
	default:
		return d.Coupler.Dz.Elements[k*d.l.nens+e]
	}
}

// Init sets up the initial state according to InitData and then runs
// InitFuncs. For external data, the state is read from the coupler,
// after refreshing the background from the coupler's hydrostasis fit if
// one has been computed. Idealized cases write the state they create to
// the coupler.
func (d *Dycore) Init() error {
	switch d.InitData {
	case Thermal:
		if err := d.initThermal(); err != nil {
			return err
		}
	case Supercell:
		if err := d.initSupercell(); err != nil {
			return err
		}
	default:
		if d.Coupler.HydrostasisSet() {
			if err := d.UpdateBackground(); err != nil {
				return err
			}
		}
		d.PrimitiveToConserved()
	}
	if d.InitData != External {
		d.ConservedToPrimitive()
	}
	for _, f := range d.InitFuncs {
		if err := f(d); err != nil {
			return err
		}
	}
	return nil
}

// Run carries out the simulation by running RunFuncs until Done is set.
func (d *Dycore) Run() error {
	for !d.Done {
		for _, f := range d.RunFuncs {
			if err := f(d); err != nil {
				return err
			}
		}
	}
	return nil
}

// Cleanup runs CleanupFuncs.
func (d *Dycore) Cleanup() error {
	for _, f := range d.CleanupFuncs {
		if err := f(d); err != nil {
			return err
		}
	}
	return nil
}
