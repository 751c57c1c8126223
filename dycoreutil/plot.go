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
	"fmt"
	"io"
	"math"
	"os"

	"github.com/spatialmodel/dycore"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// crossSection is a vertical x-z slice of a model variable. It
// implements plotter.GridXYZ.
type crossSection struct {
	x, z []float64
	vals []float64 // [z][x]
}

func (c *crossSection) Dims() (int, int)      { return len(c.x), len(c.z) }
func (c *crossSection) Z(col, row int) float64 { return c.vals[row*len(c.x)+col] }
func (c *crossSection) X(col int) float64      { return c.x[col] }
func (c *crossSection) Y(row int) float64      { return c.z[row] }

// newCrossSection extracts variable along the x-z plane through the
// middle of the y axis for the first ensemble member.
func newCrossSection(d *dycore.Dycore, variable string) (*crossSection, error) {
	c := d.Coupler
	if c.Nx < 2 || c.Nz < 2 {
		return nil, fmt.Errorf("dycoreutil: a cross section needs at least 2 cells in x and z but the grid is %dx%d", c.Nx, c.Nz)
	}
	vals, err := d.Variable(variable)
	if err != nil {
		return nil, err
	}
	cs := &crossSection{
		x:    make([]float64, c.Nx),
		z:    make([]float64, c.Nz),
		vals: make([]float64, c.Nx*c.Nz),
	}
	dx := c.Dx()
	for i := range cs.x {
		cs.x[i] = (float64(i) + 0.5) * dx
	}
	j := c.Ny / 2
	for k := range cs.z {
		cs.z[k] = c.Zmid.Get(k, 0)
		for i := 0; i < c.Nx; i++ {
			cs.vals[k*c.Nx+i] = vals[((k*c.Ny+j)*c.Nx+i)*c.Nens]
		}
	}
	return cs, nil
}

// CrossSection writes a PNG heat map of variable on the x-z plane through
// the middle of the domain to w. The color scale is centered on zero.
func CrossSection(d *dycore.Dycore, variable string, w io.Writer) error {
	cs, err := newCrossSection(d, variable)
	if err != nil {
		return err
	}
	var m float64
	for _, v := range cs.vals {
		m = math.Max(m, math.Abs(v))
	}
	if m == 0 {
		m = 1
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s at t=%.4g s", variable, d.Time)
	p.X.Label.Text = "x [m]"
	p.Y.Label.Text = "z [m]"

	cm := moreland.SmoothBlueRed()
	cm.SetMin(-m)
	cm.SetMax(m)
	h := plotter.NewHeatMap(cs, cm.Palette(255))
	h.Min, h.Max = -m, m
	p.Add(h)

	img := vgimg.New(6*vg.Inch, 4*vg.Inch)
	dc := draw.New(img)
	p.Draw(dc)
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("dycoreutil: writing plot: %v", err)
	}
	return nil
}

// plotOutput returns a function that saves a cross section of variable to
// the file at path.
func plotOutput(path, variable string) dycore.DomainManipulator {
	return func(d *dycore.Dycore) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("dycoreutil: creating plot file: %v", err)
		}
		if err := CrossSection(d, variable, f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
}
