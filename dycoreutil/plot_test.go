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

package dycoreutil

import (
	"bytes"
	"math"
	"testing"

	"github.com/spatialmodel/dycore"
)

// thermalDycore returns an initialized two-dimensional rising thermal
// simulation.
func thermalDycore(t *testing.T, nx int) *dycore.Dycore {
	sim := &Simulation{Nx: nx, Ny: 1, Nz: 10, Nens: 1, Xlen: 20000, Ylen: 20000, Zlen: 10000}
	c, err := NewCoupler(sim)
	if err != nil {
		t.Fatal(err)
	}
	cfg := dycore.DefaultConfig()
	cfg.InitData = dycore.Thermal
	d, err := dycore.New(cfg, c, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestCrossSection(t *testing.T) {
	d := thermalDycore(t, 10)
	cs, err := newCrossSection(d, "pot_temp_pert")
	if err != nil {
		t.Fatal(err)
	}
	if c, r := cs.Dims(); c != 10 || r != 10 {
		t.Fatalf("dims: have %dx%d, want 10x10", c, r)
	}
	if cs.X(0) != 1000 || cs.Y(0) != 500 {
		t.Errorf("first cell center: have (%g, %g), want (1000, 500)", cs.X(0), cs.Y(0))
	}
	var maxVal float64
	maxCol, maxRow := -1, -1
	for r := 0; r < 10; r++ {
		for c := 0; c < 10; c++ {
			if v := cs.Z(c, r); v > maxVal {
				maxVal, maxCol, maxRow = v, c, r
			}
		}
		if math.Abs(cs.Z(4, r)-cs.Z(5, r)) > 1e-6 {
			t.Errorf("row %d is not symmetric: %g != %g", r, cs.Z(4, r), cs.Z(5, r))
		}
	}
	if maxVal <= 0 {
		t.Errorf("the thermal should be warmer than the background, but the largest perturbation is %g", maxVal)
	}
	if (maxCol != 4 && maxCol != 5) || (maxRow != 1 && maxRow != 2) {
		t.Errorf("the warmest cell should be near (10 km, 2 km) but is at column %d, row %d", maxCol, maxRow)
	}

	buf := new(bytes.Buffer)
	if err := CrossSection(d, "pot_temp_pert", buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("output is not a PNG image")
	}
}

func TestCrossSectionErrors(t *testing.T) {
	d := thermalDycore(t, 10)
	if err := CrossSection(d, "vorticity", new(bytes.Buffer)); err == nil {
		t.Error("expected an error for an unknown variable")
	}
	d = thermalDycore(t, 1)
	if err := CrossSection(d, "w", new(bytes.Buffer)); err == nil {
		t.Error("expected an error for a grid with one column")
	}
}
