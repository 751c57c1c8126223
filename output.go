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
	"os"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/cdf"
)

// Outputter writes the state to a NetCDF file, one record per call to
// Write.
//
// outputVariables maps the names of derived output variables to expressions
// that define how they are calculated. Expressions can use the built-in
// cell variables (see ModelVariables), other derived variables and
// functions.
type Outputter struct {
	fileName        string
	outputVariables map[string]string
	outputFunctions map[string]govaluate.ExpressionFunction
	expressions     map[string]*govaluate.EvaluableExpression
	order           []string // evaluation order of derived variables
	checked         bool

	ff   *os.File
	f    *cdf.File
	nrec int
	nout int
}

func unaryFunc(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("dycore: got %d arguments for function '%s', but needs 1", len(arg), name)
		}
		x, ok := arg[0].(float64)
		if !ok {
			return nil, fmt.Errorf("dycore: argument to function '%s' is %T, not a number", name, arg[0])
		}
		return f(x), nil
	}
}

// NewOutputter initializes a new Outputter and adds a set of default
// output functions: 'exp(x)', 'log(x)', 'sqrt(x)' and 'abs(x)'. An
// error is returned if an expression cannot be parsed or if derived
// variables depend on each other in a cycle.
func NewOutputter(fileName string, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	funcs := map[string]govaluate.ExpressionFunction{
		"exp":  unaryFunc("exp", math.Exp),
		"log":  unaryFunc("log", math.Log),
		"sqrt": unaryFunc("sqrt", math.Sqrt),
		"abs":  unaryFunc("abs", math.Abs),
	}
	for key, val := range outputFunctions {
		funcs[key] = val
	}
	o := &Outputter{
		fileName:        fileName,
		outputVariables: make(map[string]string),
		outputFunctions: funcs,
		expressions:     make(map[string]*govaluate.EvaluableExpression),
	}
	for key, val := range outputVariables {
		val = strings.NewReplacer("{", "", "}", "").Replace(val)
		expr, err := govaluate.NewEvaluableExpressionWithFunctions(val, funcs)
		if err != nil {
			return nil, fmt.Errorf("dycore: output variable '%s': %v", key, err)
		}
		o.outputVariables[key] = val
		o.expressions[key] = expr
	}
	if err := o.sortVariables(); err != nil {
		return nil, err
	}
	return o, nil
}

// sortVariables orders the derived variables so that each comes after the
// derived variables it uses.
func (o *Outputter) sortVariables() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dycore: output variables form a cycle: %s", strings.Join(append(path, name), " -> "))
		}
		state[name] = visiting
		for _, v := range removeDuplicates(o.expressions[name].Vars()) {
			if _, ok := o.expressions[v]; ok && v != name {
				if err := visit(v, append(path, name)); err != nil {
					return err
				}
			} else if v == name {
				return fmt.Errorf("dycore: output variable '%s' refers to itself", name)
			}
		}
		state[name] = done
		o.order = append(o.order, name)
		return nil
	}
	names := make([]string, 0, len(o.expressions))
	for name := range o.expressions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

func removeDuplicates(s []string) []string {
	seen := make(map[string]bool)
	var o []string
	for _, v := range s {
		if !seen[v] {
			seen[v] = true
			o = append(o, v)
		}
	}
	return o
}

// cellVar calculates a built-in variable of the cell at position pos of the
// state arrays, on level k of ensemble member e.
type cellVar struct {
	name, desc, units string
	f                 func(d *Dycore, pos, k, e int) float64
}

// ModelVariables returns the names of the built-in cell variables that can
// be written or used in output expressions.
func (d *Dycore) ModelVariables() []string {
	vars := d.cellVars()
	o := make([]string, len(vars))
	for i, v := range vars {
		o[i] = v.name
	}
	return o
}

func (d *Dycore) cellVars() []cellVar {
	st := func(d *Dycore, v, pos int) float64 { return d.State.Elements[pos+v*d.l.sv] }
	dens := func(d *Dycore, pos, k, e int) float64 { return st(d, idR, pos) + d.Background.Dens(k, e) }
	densTheta := func(d *Dycore, pos, k, e int) float64 { return st(d, idT, pos) + d.Background.DensTheta(k, e) }
	wind := func(v int) func(d *Dycore, pos, k, e int) float64 {
		return func(d *Dycore, pos, k, e int) float64 { return st(d, v, pos) / dens(d, pos, k, e) }
	}
	vars := []cellVar{
		{"dens_pert", "Density perturbation from the hydrostatic background", "kg m-3",
			func(d *Dycore, pos, k, e int) float64 { return st(d, idR, pos) }},
		{"u", "Wind speed in the x direction", "m s-1", wind(idU)},
		{"v", "Wind speed in the y direction", "m s-1", wind(idV)},
		{"w", "Wind speed in the z direction", "m s-1", wind(idW)},
		{"pot_temp_pert", "Potential temperature perturbation from the hydrostatic background", "K",
			func(d *Dycore, pos, k, e int) float64 {
				var thHy float64
				if hr := d.Background.Dens(k, e); hr != 0 {
					thHy = d.Background.DensTheta(k, e) / hr
				}
				return densTheta(d, pos, k, e)/dens(d, pos, k, e) - thHy
			}},
		{"pressure_pert", "Pressure perturbation from the hydrostatic background", "Pa",
			func(d *Dycore, pos, k, e int) float64 {
				return d.EOS.Pressure(densTheta(d, pos, k, e)) - d.Background.Press(k, e)
			}},
		{"density", "Total density", "kg m-3", dens},
		{"pot_temp", "Potential temperature", "K",
			func(d *Dycore, pos, k, e int) float64 { return densTheta(d, pos, k, e) / dens(d, pos, k, e) }},
		{"pressure", "Pressure", "Pa",
			func(d *Dycore, pos, k, e int) float64 { return d.EOS.Pressure(densTheta(d, pos, k, e)) }},
	}
	for t, info := range d.tracers {
		t := t
		vars = append(vars, cellVar{"tracer_" + info.Name, info.Desc, "kg m-3",
			func(d *Dycore, pos, k, e int) float64 { return d.Tracers.Elements[pos+t*d.l.sv] }})
	}
	return vars
}

// Variable returns the values of the built-in variable name for every
// cell, ordered by level, then y, then x, then ensemble member.
func (d *Dycore) Variable(name string) ([]float64, error) {
	for _, v := range d.cellVars() {
		if v.name != name {
			continue
		}
		o := make([]float64, d.l.cells())
		for n := range o {
			k, j, i, e := d.l.cell(n)
			o[n] = v.f(d, d.l.index(0, k, j, i, e), k, e)
		}
		return o, nil
	}
	return nil, fmt.Errorf("dycore: unknown variable '%s'; valid options are %v", name, d.ModelVariables())
}

// checkVariables makes sure that every variable used in an expression is
// either built in or derived, and that no derived variable shadows a
// built-in one.
func (o *Outputter) checkVariables(d *Dycore) error {
	builtin := make(map[string]bool)
	for _, v := range d.ModelVariables() {
		builtin[v] = true
	}
	for _, name := range o.order {
		if builtin[name] {
			return fmt.Errorf("dycore: output variable '%s' has the same name as a model variable", name)
		}
		for _, v := range o.expressions[name].Vars() {
			if _, ok := o.expressions[v]; !ok && !builtin[v] {
				return fmt.Errorf("dycore: output variable '%s' uses unknown variable '%s'; valid options are %v",
					name, v, d.ModelVariables())
			}
		}
	}
	return nil
}

// CheckOutputVars returns a function that checks the output expressions
// against the variables available in the model.
func (o *Outputter) CheckOutputVars() DomainManipulator {
	return func(d *Dycore) error {
		if err := o.checkVariables(d); err != nil {
			return err
		}
		o.checked = true
		return nil
	}
}

// create creates the output file and writes the variables that do not
// change with time.
func (o *Outputter) create(d *Dycore) error {
	l := d.l
	h := cdf.NewHeader([]string{"t", "z", "y", "x", "ens"}, []int{0, l.nz, l.ny, l.nx, l.nens})
	h.AddAttribute("", "comment", "Dynamical core output")
	h.AddVariable("t", []string{"t"}, []float64{0})
	h.AddAttribute("t", "description", "Simulated time")
	h.AddAttribute("t", "units", "s")
	h.AddVariable("x", []string{"x"}, []float32{0})
	h.AddAttribute("x", "units", "m")
	h.AddVariable("y", []string{"y"}, []float32{0})
	h.AddAttribute("y", "units", "m")
	h.AddVariable("z", []string{"z", "ens"}, []float32{0})
	h.AddAttribute("z", "description", "Height of level midpoints")
	h.AddAttribute("z", "units", "m")
	for _, v := range []struct{ name, desc, units string }{
		{"hydrostatic_density", "Hydrostatic background density", "kg m-3"},
		{"hydrostatic_pot_temp", "Hydrostatic background potential temperature", "K"},
		{"hydrostatic_pressure", "Hydrostatic background pressure", "Pa"},
	} {
		h.AddVariable(v.name, []string{"z", "ens"}, []float32{0})
		h.AddAttribute(v.name, "description", v.desc)
		h.AddAttribute(v.name, "units", v.units)
	}
	dims := []string{"t", "z", "y", "x", "ens"}
	for _, v := range d.cellVars() {
		h.AddVariable(v.name, dims, []float32{0})
		h.AddAttribute(v.name, "description", v.desc)
		h.AddAttribute(v.name, "units", v.units)
	}
	for _, name := range o.order {
		h.AddVariable(name, dims, []float32{0})
		h.AddAttribute(name, "description", o.outputVariables[name])
	}
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return fmt.Errorf("dycore: creating output header: %v", errs)
	}

	ff, err := os.Create(o.fileName)
	if err != nil {
		return fmt.Errorf("dycore: creating output file: %v", err)
	}
	f, err := cdf.Create(ff, h)
	if err != nil {
		ff.Close()
		return fmt.Errorf("dycore: creating output file: %v", err)
	}
	o.ff, o.f = ff, f

	x := make([]float32, l.nx)
	for i := range x {
		x[i] = float32((float64(i) + 0.5) * d.dx)
	}
	y := make([]float32, l.ny)
	for j := range y {
		y[j] = float32((float64(j) + 0.5) * d.dy)
	}
	b := d.Background
	z := make([]float32, l.nz*l.nens)
	hr := make([]float32, l.nz*l.nens)
	hth := make([]float32, l.nz*l.nens)
	hp := make([]float32, l.nz*l.nens)
	for k := 0; k < l.nz; k++ {
		for e := 0; e < l.nens; e++ {
			ke := k*l.nens + e
			z[ke] = float32(d.Coupler.Zmid.Elements[ke])
			hr[ke] = float32(b.Dens(k, e))
			if b.Dens(k, e) != 0 {
				hth[ke] = float32(b.DensTheta(k, e) / b.Dens(k, e))
			}
			hp[ke] = float32(b.Press(k, e))
		}
	}
	for _, v := range []struct {
		name string
		data []float32
	}{{"x", x}, {"y", y}, {"z", z}, {"hydrostatic_density", hr},
		{"hydrostatic_pot_temp", hth}, {"hydrostatic_pressure", hp}} {
		if err := o.writeStatic(v.name, v.data); err != nil {
			return err
		}
	}
	return nil
}

func (o *Outputter) writeStatic(name string, data []float32) error {
	lengths := o.f.Header.Lengths(name)
	end := make([]int, len(lengths))
	for i, n := range lengths {
		end[i] = n - 1
	}
	if _, err := o.f.Writer(name, make([]int, len(lengths)), end).Write(data); err != nil {
		return fmt.Errorf("dycore: writing output variable '%s': %v", name, err)
	}
	return nil
}

func (o *Outputter) writeRecord(name string, data []float32) error {
	l := o.f.Header.Lengths(name)
	begin := []int{o.nrec, 0, 0, 0, 0}
	end := []int{o.nrec, l[1] - 1, l[2] - 1, l[3] - 1, l[4] - 1}
	if _, err := o.f.Writer(name, begin, end).Write(data); err != nil {
		return fmt.Errorf("dycore: writing output variable '%s': %v", name, err)
	}
	return nil
}

// Write appends the current state as a new record, creating the file on
// the first call.
func (o *Outputter) Write(d *Dycore) error {
	if !o.checked {
		if err := o.CheckOutputVars()(d); err != nil {
			return err
		}
	}
	if o.f == nil {
		if err := o.create(d); err != nil {
			return err
		}
	}
	vars := d.cellVars()
	ncells := d.l.cells()
	data := make(map[string][]float32, len(vars)+len(o.order))
	for _, v := range vars {
		data[v.name] = make([]float32, ncells)
	}
	for _, name := range o.order {
		data[name] = make([]float32, ncells)
	}
	params := make(map[string]interface{}, len(vars)+len(o.order))
	for n := 0; n < ncells; n++ {
		k, j, i, e := d.l.cell(n)
		pos := d.l.index(0, k, j, i, e)
		for _, v := range vars {
			val := v.f(d, pos, k, e)
			data[v.name][n] = float32(val)
			params[v.name] = val
		}
		for _, name := range o.order {
			result, err := o.expressions[name].Evaluate(params)
			if err != nil {
				return fmt.Errorf("dycore: evaluating output variable '%s': %v", name, err)
			}
			val, ok := result.(float64)
			if !ok {
				return fmt.Errorf("dycore: output variable '%s' evaluates to %T, not a number", name, result)
			}
			data[name][n] = float32(val)
			params[name] = val
		}
	}

	if _, err := o.f.Writer("t", []int{o.nrec}, []int{o.nrec}).Write([]float64{d.Time}); err != nil {
		return fmt.Errorf("dycore: writing output time: %v", err)
	}
	for name, vals := range data {
		if err := o.writeRecord(name, vals); err != nil {
			return err
		}
	}
	o.nrec++
	if err := cdf.UpdateNumRecs(o.ff); err != nil {
		return fmt.Errorf("dycore: updating output record count: %v", err)
	}
	return nil
}

// Output returns a function that writes the state every freq seconds of
// simulated time, starting with the initial state. If freq is zero, every
// time step is written; if it is negative, nothing is.
func (o *Outputter) Output(freq float64) DomainManipulator {
	return func(d *Dycore) error {
		if freq < 0 {
			return nil
		}
		if o.nrec == 0 && d.Iteration == 0 {
			return o.Write(d)
		}
		if freq == 0 || d.Time/freq >= float64(o.nout+1) {
			if freq > 0 {
				o.nout = int(d.Time / freq)
			}
			return o.Write(d)
		}
		return nil
	}
}

// NumRecords returns the number of records written so far.
func (o *Outputter) NumRecords() int { return o.nrec }

// Close closes the output file.
func (o *Outputter) Close() error {
	if o.ff == nil {
		return nil
	}
	err := o.ff.Close()
	o.ff, o.f = nil, nil
	return err
}

// Cleanup returns a function that closes the output file.
func (o *Outputter) Cleanup() DomainManipulator {
	return func(*Dycore) error { return o.Close() }
}
