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

import "math"

// EquationOfState relates pressure to the conserved thermodynamic variable
// ρθ (density times potential temperature).
type EquationOfState interface {
	// Pressure returns the pressure [Pa] for the given ρθ [kg K m-3].
	Pressure(rt float64) float64

	// DensTheta is the inverse of Pressure.
	DensTheta(p float64) float64

	// SoundSpeed returns the speed of sound [m/s] for density r and ρθ rt.
	SoundSpeed(r, rt float64) float64

	// Gamma returns the exponent of the pressure law.
	Gamma() float64

	// C0 returns the multiplier of the pressure law.
	C0() float64
}

// IdealGas is the dry ideal-gas equation of state p = C0 (ρθ)^γ, where
// γ = cp/(cp-Rd) and C0 = (Rd p0^(-Rd/cp))^γ. It should be created with
// NewIdealGas so that the derived constants are set.
type IdealGas struct {
	Rd   float64 // Dry air gas constant [J/kg/K]
	Rv   float64 // Water vapor gas constant [J/kg/K]
	Cp   float64 // Dry air specific heat at constant pressure [J/kg/K]
	P0   float64 // Reference pressure [Pa]
	Grav float64 // Gravitational acceleration [m/s2]

	gamma, c0 float64
}

// NewIdealGas returns an ideal gas with the given constants.
func NewIdealGas(rd, rv, cp, p0, grav float64) *IdealGas {
	g := &IdealGas{Rd: rd, Rv: rv, Cp: cp, P0: p0, Grav: grav}
	g.gamma = cp / (cp - rd)
	g.c0 = math.Pow(rd*math.Pow(p0, -rd/cp), g.gamma)
	return g
}

// DefaultIdealGas returns an ideal gas with the constants used by the
// single-moment microphysics.
func DefaultIdealGas() *IdealGas {
	return NewIdealGas(287, 461, 1004, 1.e5, 9.81)
}

// Pressure implements EquationOfState.
func (g *IdealGas) Pressure(rt float64) float64 { return g.c0 * math.Pow(rt, g.gamma) }

// DensTheta implements EquationOfState.
func (g *IdealGas) DensTheta(p float64) float64 { return math.Pow(p/g.c0, 1/g.gamma) }

// SoundSpeed implements EquationOfState.
func (g *IdealGas) SoundSpeed(r, rt float64) float64 {
	return math.Sqrt(g.gamma * g.Pressure(rt) / r)
}

// Gamma implements EquationOfState.
func (g *IdealGas) Gamma() float64 { return g.gamma }

// C0 implements EquationOfState.
func (g *IdealGas) C0() float64 { return g.c0 }

// MoistPressure returns the pressure of a mixture of dry air with density
// rd and water vapor with density rv at temperature t.
func (g *IdealGas) MoistPressure(rd, rv, t float64) float64 {
	return rd*g.Rd*t + rv*g.Rv*t
}
