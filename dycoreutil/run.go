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
	"sort"
	"time"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/Knetic/govaluate"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/dycore"
	"github.com/spatialmodel/dycore/coupler"
	"github.com/spf13/cobra"
)

// NewCoupler creates a coupler with the grid, vertical levels and tracers
// specified in sim. Water vapor is always included.
func NewCoupler(sim *Simulation) (*coupler.Coupler, error) {
	c, err := coupler.New(sim.Nx, sim.Ny, sim.Nz, sim.Nens, sim.Xlen, sim.Ylen)
	if err != nil {
		return nil, err
	}
	if err = c.AddTracer(coupler.WaterVapor, "Water vapor", true, true); err != nil {
		return nil, err
	}
	for _, name := range tracerNames(sim.Tracers) {
		if err = c.AddTracer(name, "Passive tracer", true, false); err != nil {
			return nil, err
		}
	}
	zint := coupler.UniformGrid(sim.Nz, sim.Zlen)
	if sim.VerticalCoords != "" {
		f, err := os.Open(sim.VerticalCoords)
		if err != nil {
			return nil, fmt.Errorf("dycoreutil: opening VerticalCoords: %v", err)
		}
		zint, err = coupler.ReadVerticalGrid(f)
		f.Close()
		if err != nil {
			return nil, err
		}
	}
	if err = c.SetVerticalGrid(zint); err != nil {
		return nil, err
	}
	return c, nil
}

func tracerNames(tracers map[string]string) []string {
	names := make([]string, 0, len(tracers))
	for name := range tracers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func unary(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("dycoreutil: got %d arguments for function '%s' but need 1", len(args), name)
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("dycoreutil: argument to function '%s' is %T, not a number", name, args[0])
		}
		return f(v), nil
	}
}

var tracerFunctions = map[string]govaluate.ExpressionFunction{
	"exp":  unary("exp", math.Exp),
	"log":  unary("log", math.Log),
	"sqrt": unary("sqrt", math.Sqrt),
	"abs":  unary("abs", math.Abs),
}

// tracerInit returns a function that sets the initial density of each
// tracer in tracers from its expression of the cell center coordinates x,
// y, and z. It returns nil if there are no tracers.
func tracerInit(tracers map[string]string) (dycore.DomainManipulator, error) {
	if len(tracers) == 0 {
		return nil, nil
	}
	names := tracerNames(tracers)
	exprs := make([]*govaluate.EvaluableExpression, len(names))
	for i, name := range names {
		var err error
		exprs[i], err = govaluate.NewEvaluableExpressionWithFunctions(tracers[name], tracerFunctions)
		if err != nil {
			return nil, fmt.Errorf("dycoreutil: parsing initial condition for tracer '%s': %v", name, err)
		}
		for _, v := range exprs[i].Vars() {
			if v != "x" && v != "y" && v != "z" {
				return nil, fmt.Errorf("dycoreutil: initial condition for tracer '%s' uses unknown variable '%s'; valid options are x, y, and z", name, v)
			}
		}
	}
	return func(d *dycore.Dycore) error {
		c := d.Coupler
		dx, dy := c.Dx(), c.Dy()
		params := make(map[string]interface{}, 3)
		for t, name := range names {
			f := c.MustField(name)
			for k := 0; k < c.Nz; k++ {
				for j := 0; j < c.Ny; j++ {
					for i := 0; i < c.Nx; i++ {
						for e := 0; e < c.Nens; e++ {
							params["x"] = (float64(i) + 0.5) * dx
							params["y"] = (float64(j) + 0.5) * dy
							params["z"] = c.Zmid.Get(k, e)
							result, err := exprs[t].Evaluate(params)
							if err != nil {
								return fmt.Errorf("dycoreutil: evaluating initial condition for tracer '%s': %v", name, err)
							}
							v, ok := result.(float64)
							if !ok {
								return fmt.Errorf("dycoreutil: initial condition for tracer '%s' evaluates to %T, not a number", name, result)
							}
							if v < 0 || math.IsNaN(v) {
								return fmt.Errorf("dycoreutil: initial condition for tracer '%s' is %g at x=%g, y=%g, z=%g but should be >=0",
									name, v, params["x"], params["y"], params["z"])
							}
							f.Elements[f.Index1d(k, j, i, e)] = v
						}
					}
				}
			}
		}
		d.PrimitiveToConserved()
		return nil
	}, nil
}

// logStep returns a function that logs the progress of the simulation.
func logStep(log logrus.FieldLogger) dycore.DomainManipulator {
	timeOfLastCheck := time.Now()
	return func(d *dycore.Dycore) error {
		log.WithFields(logrus.Fields{
			"iteration": d.Iteration,
			"etime":     d.Time,
			"dt":        d.Dt,
			"max_w":     d.MaxVerticalWind(),
			"walltime":  time.Since(timeOfLastCheck).Round(time.Millisecond),
		}).Info("time step")
		timeOfLastCheck = time.Now()
		return nil
	}
}

// summarize logs summary statistics of the model variables and the total
// mass.
func summarize(log logrus.FieldLogger, d *dycore.Dycore) error {
	for _, name := range d.ModelVariables() {
		vals, err := d.Variable(name)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"min":  stats.StatsMin(vals),
			"max":  stats.StatsMax(vals),
			"mean": stats.StatsMean(vals),
		}).Info(name)
	}
	m := d.Mass()
	fields := logrus.Fields{"density": m.Density}
	for i, t := range d.TracerInfo() {
		fields[t.Name] = m.Tracers[i]
	}
	log.WithFields(fields).Info("total mass [kg]")
	return nil
}

// Run runs a standalone simulation.
//
// CobraCommand is the cobra.Command instance where Run is called from. Log
// messages are written to its output and to sim.LogFile. It can be nil, in
// which case standard output is used.
//
// cfg configures the dynamical core and sim specifies the grid, the
// simulation length and the output.
func Run(CobraCommand *cobra.Command, cfg dycore.Config, sim *Simulation) error {
	startTime := time.Now()

	var upload uploader

	logfile, err := os.Create(upload.maybeUpload(sim.LogFile))
	if err != nil {
		return fmt.Errorf("dycoreutil: problem creating log file: %v", err)
	}
	defer logfile.Close()
	var out io.Writer = os.Stdout
	if CobraCommand != nil {
		out = CobraCommand.OutOrStdout()
	}
	log := logrus.New()
	log.Out = io.MultiWriter(out, logfile)
	log.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	}
	upload.log = log

	c, err := NewCoupler(sim)
	if err != nil {
		return err
	}
	setTracers, err := tracerInit(sim.Tracers)
	if err != nil {
		return err
	}
	log.Info("Parsing output variable expressions...")
	o, err := dycore.NewOutputter(upload.maybeUpload(sim.OutputFile), sim.OutputVariables, nil)
	if err != nil {
		return err
	}
	var plotFile string
	if sim.PlotFile != "" {
		plotFile = upload.maybeUpload(sim.PlotFile)
	}
	if upload.err != nil {
		return upload.err
	}

	d, err := dycore.New(cfg, c, nil)
	if err != nil {
		return err
	}
	d.Logger = log

	if setTracers != nil {
		d.InitFuncs = append(d.InitFuncs, setTracers)
	}
	if sim.UseCouplerHydrostasis {
		d.InitFuncs = append(d.InitFuncs, dycore.CouplerHydrostasis())
	}
	d.InitFuncs = append(d.InitFuncs, o.CheckOutputVars(), o.Output(sim.OutFreq))

	setDt := dycore.CFLTimeStep(sim.CFL)
	if sim.DtPhys > 0 {
		setDt = dycore.FixedTimeStep(sim.DtPhys)
	}
	end := dycore.SimulationTime(sim.SimTime)
	if sim.SimSteps > 0 {
		end = dycore.SimulationSteps(sim.SimSteps)
	}
	d.RunFuncs = []dycore.DomainManipulator{
		setDt,
		end,
		dycore.CoupledStep(sim.UseCouplerHydrostasis),
		logStep(log),
		o.Output(sim.OutFreq),
	}

	if plotFile != "" {
		d.CleanupFuncs = append(d.CleanupFuncs, plotOutput(plotFile, sim.PlotVariable))
	}
	d.CleanupFuncs = append(d.CleanupFuncs, o.Cleanup(), upload.uploadOutput)

	log.WithFields(logrus.Fields{
		"grid":    fmt.Sprintf("%dx%dx%dx%d", sim.Nx, sim.Ny, sim.Nz, sim.Nens),
		"order":   cfg.Order,
		"ngll":    cfg.NGLL,
		"nader":   cfg.NAder,
		"initial": cfg.InitData,
	}).Info("Initializing model...")
	if err = d.Init(); err != nil {
		return fmt.Errorf("dycoreutil: problem initializing model: %v", err)
	}
	if err = summarize(log, d); err != nil {
		return err
	}

	if err = d.Run(); err != nil {
		return fmt.Errorf("dycoreutil: problem running simulation: %v", err)
	}
	if err = summarize(log, d); err != nil {
		return err
	}

	if err = d.Cleanup(); err != nil {
		return fmt.Errorf("dycoreutil: problem shutting down model: %v", err)
	}

	log.WithFields(logrus.Fields{
		"iterations": d.Iteration,
		"etime":      d.Time,
		"records":    o.NumRecords(),
		"walltime":   time.Since(startTime).Round(time.Millisecond),
	}).Info("Simulation finished")
	return nil
}
