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
	"strings"

	"github.com/spatialmodel/dycore/transform"
	"github.com/spatialmodel/dycore/weno"
)

// BoundaryCondition specifies how an axis is closed at its two ends.
type BoundaryCondition int

// Boundary conditions.
const (
	Periodic BoundaryCondition = iota
	Wall
)

func (bc BoundaryCondition) String() string {
	switch bc {
	case Periodic:
		return "periodic"
	case Wall:
		return "wall"
	default:
		return fmt.Sprintf("BoundaryCondition(%d)", int(bc))
	}
}

// ParseBoundaryCondition converts "periodic" or "wall" to a
// BoundaryCondition.
func ParseBoundaryCondition(s string) (BoundaryCondition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "periodic":
		return Periodic, nil
	case "wall":
		return Wall, nil
	default:
		return Periodic, fmt.Errorf("dycore: invalid boundary condition '%s'; valid options are 'periodic' and 'wall'", s)
	}
}

// DataSpec selects how the initial state is created.
type DataSpec int

// Initial-condition cases.
const (
	// External means the initial state is supplied by the coupler.
	External DataSpec = iota
	// Thermal is a warm, moist bubble in a constant-θ atmosphere.
	Thermal
	// Supercell is a moist sounding with low-level wind shear.
	Supercell
)

func (ds DataSpec) String() string {
	switch ds {
	case External:
		return "external"
	case Thermal:
		return "thermal"
	case Supercell:
		return "supercell"
	default:
		return fmt.Sprintf("DataSpec(%d)", int(ds))
	}
}

// ParseDataSpec converts an initial-condition name to a DataSpec.
func ParseDataSpec(s string) (DataSpec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "external", "":
		return External, nil
	case "thermal":
		return Thermal, nil
	case "supercell":
		return Supercell, nil
	default:
		return External, fmt.Errorf("dycore: invalid initial data '%s'; valid options are 'external', 'thermal' and 'supercell'", s)
	}
}

// Config holds the numerical options of the dynamical core. Grid sizes and
// domain lengths are taken from the coupler.
type Config struct {
	// Order is the reconstruction order (odd, 3 to 9).
	Order int

	// NGLL is the number of GLL points per cell used for the time expansion
	// and the interface values.
	NGLL int

	// NAder is the number of time orders of the ADER expansion, including
	// order 0. It must be between 1 and NGLL; 1 turns the expansion off so
	// that interface values and fluxes come from the reconstruction alone.
	NAder int

	// TimeAvg specifies whether interface values are averaged over the time
	// step. If false, only the order-0 values are used.
	TimeAvg bool

	// BCx, BCy and BCz are the boundary conditions along each axis.
	BCx, BCy, BCz BoundaryCondition

	// WENOScalars and WENOWinds select WENO limiting for density, ρθ and
	// tracers, and for the momenta, respectively.
	WENOScalars, WENOWinds bool

	// WENOSigma is the handicap on the high-order polynomial's smoothness
	// and WENOIdealHigh is its ideal weight.
	WENOSigma, WENOIdealHigh float64

	// InitData selects the initial condition.
	InitData DataSpec

	// BalanceInitialDensity rescales the initial density so that the
	// perturbation has no initial acoustic adjustment.
	BalanceInitialDensity bool

	// Strict makes a negative tracer beyond round-off an error rather than
	// a warning.
	Strict bool

	// CheckMass compares the total mass before and after each time step.
	CheckMass bool

	// FCTUpwindWrap makes the flux limiter wrap around horizontal axes even
	// when they have wall boundaries.
	FCTUpwindWrap bool
}

// DefaultConfig returns the configuration used when no input file is given:
// fifth-order WENO with three GLL points, periodic horizontal boundaries and
// walls at the top and bottom.
func DefaultConfig() Config {
	return Config{
		Order:         5,
		NGLL:          3,
		NAder:         3,
		TimeAvg:       true,
		BCx:           Periodic,
		BCy:           Periodic,
		BCz:           Wall,
		WENOScalars:   true,
		WENOWinds:     true,
		WENOSigma:     weno.DefaultSigma,
		WENOIdealHigh: weno.DefaultIdealHigh,
		InitData:      External,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Order%2 != 1 || c.Order < 3 || c.Order > transform.MaxOrder {
		return fmt.Errorf("dycore: invalid configuration: Order=%d but should be odd and between 3 and %d", c.Order, transform.MaxOrder)
	}
	if c.NGLL < 2 || c.NGLL > c.Order {
		return fmt.Errorf("dycore: invalid configuration: NGLL=%d but should be between 2 and Order=%d", c.NGLL, c.Order)
	}
	if c.NAder < 1 || c.NAder > c.NGLL {
		return fmt.Errorf("dycore: invalid configuration: NAder=%d but should be between 1 and NGLL=%d", c.NAder, c.NGLL)
	}
	for _, bc := range []struct {
		name string
		bc   BoundaryCondition
	}{{"BCx", c.BCx}, {"BCy", c.BCy}, {"BCz", c.BCz}} {
		if bc.bc != Periodic && bc.bc != Wall {
			return fmt.Errorf("dycore: invalid configuration: %s=%v", bc.name, bc.bc)
		}
	}
	if !(c.WENOSigma >= 0) {
		return fmt.Errorf("dycore: invalid configuration: WENOSigma=%g but should be >=0", c.WENOSigma)
	}
	if !(c.WENOIdealHigh > 0) {
		return fmt.Errorf("dycore: invalid configuration: WENOIdealHigh=%g but should be >0", c.WENOIdealHigh)
	}
	if c.InitData < External || c.InitData > Supercell {
		return fmt.Errorf("dycore: invalid configuration: InitData=%v", c.InitData)
	}
	return nil
}

// bc returns the boundary condition along axis a.
func (c *Config) bc(a Axis) BoundaryCondition {
	switch a {
	case X:
		return c.BCx
	case Y:
		return c.BCy
	default:
		return c.BCz
	}
}
