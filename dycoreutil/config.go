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
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/dycore"
	"github.com/spf13/cast"
)

// Simulation holds the settings of a standalone simulation that are not
// part of the dynamical core configuration.
type Simulation struct {
	// Nx, Ny and Nz are the numbers of grid cells in each direction and
	// Nens is the number of ensemble members.
	Nx, Ny, Nz, Nens int

	// Xlen, Ylen and Zlen are the domain lengths [m].
	Xlen, Ylen, Zlen float64

	// VerticalCoords is the path to a file of vertical interface heights.
	// If it is empty, uniform levels up to Zlen are used.
	VerticalCoords string

	// Tracers maps the names of extra passive tracers to expressions for
	// their initial densities.
	Tracers map[string]string

	// CFL is the Courant number used when DtPhys is 0.
	CFL float64

	// DtPhys is a fixed time step [s].
	DtPhys float64

	// SimTime is the simulation length [s], used when SimSteps < 1.
	SimTime float64

	// SimSteps is the number of time steps.
	SimSteps int

	// OutFreq is the output interval [s].
	OutFreq float64

	OutputFile, LogFile string

	// OutputVariables are derived output variables.
	OutputVariables map[string]string

	// PlotFile is where a cross section plot of PlotVariable is saved.
	PlotFile, PlotVariable string

	// UseCouplerHydrostasis specifies whether the background is
	// recalculated from the coupler's hydrostasis fit.
	UseCouplerHydrostasis bool
}

// DycoreConfig creates a dynamical core configuration from a viper
// configuration.
func DycoreConfig(cfg *viper.Viper) (dycore.Config, error) {
	c := dycore.DefaultConfig()
	c.Order = cfg.GetInt("Order")
	c.NGLL = cfg.GetInt("NGLL")
	if c.NAder = cfg.GetInt("NAder"); c.NAder == 0 {
		c.NAder = c.NGLL
	}
	c.TimeAvg = cfg.GetBool("TimeAvg")
	c.WENOScalars = cfg.GetBool("WENOScalars")
	c.WENOWinds = cfg.GetBool("WENOWinds")
	c.WENOSigma = cfg.GetFloat64("WENOSigma")
	c.BalanceInitialDensity = cfg.GetBool("BalanceInitialDensity")
	c.Strict = cfg.GetBool("Strict")
	c.CheckMass = cfg.GetBool("CheckMass")
	c.FCTUpwindWrap = cfg.GetBool("FCTUpwindWrap")

	var err error
	for _, bc := range []struct {
		name string
		v    *dycore.BoundaryCondition
	}{{"BCx", &c.BCx}, {"BCy", &c.BCy}, {"BCz", &c.BCz}} {
		if *bc.v, err = dycore.ParseBoundaryCondition(os.ExpandEnv(cfg.GetString(bc.name))); err != nil {
			return c, fmt.Errorf("dycoreutil: %s: %v", bc.name, err)
		}
	}
	if c.InitData, err = dycore.ParseDataSpec(os.ExpandEnv(cfg.GetString("InitData"))); err != nil {
		return c, fmt.Errorf("dycoreutil: InitData: %v", err)
	}
	if c.InitData == dycore.External {
		return c, fmt.Errorf("dycoreutil: InitData=%v needs a host model to supply the initial state; "+
			"standalone simulations must use thermal or supercell", c.InitData)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// SimulationConfig creates a simulation configuration from a viper
// configuration.
func SimulationConfig(cfg *viper.Viper) (*Simulation, error) {
	s := &Simulation{
		Nx:                    cfg.GetInt("Nx"),
		Ny:                    cfg.GetInt("Ny"),
		Nz:                    cfg.GetInt("Nz"),
		Nens:                  cfg.GetInt("Nens"),
		Xlen:                  cfg.GetFloat64("Xlen"),
		Ylen:                  cfg.GetFloat64("Ylen"),
		Zlen:                  cfg.GetFloat64("Zlen"),
		VerticalCoords:        os.ExpandEnv(cfg.GetString("VerticalCoords")),
		CFL:                   cfg.GetFloat64("CFL"),
		DtPhys:                cfg.GetFloat64("DtPhys"),
		SimTime:               cfg.GetFloat64("SimTime"),
		SimSteps:              cfg.GetInt("SimSteps"),
		OutFreq:               cfg.GetFloat64("OutFreq"),
		PlotFile:              os.ExpandEnv(cfg.GetString("PlotFile")),
		PlotVariable:          cfg.GetString("PlotVariable"),
		UseCouplerHydrostasis: cfg.GetBool("UseCouplerHydrostasis"),
	}
	var err error
	if s.Tracers, err = GetStringMapString("Tracers", cfg); err != nil {
		return nil, err
	}
	outputVars, err := GetStringMapString("OutputVariables", cfg)
	if err != nil {
		return nil, err
	}
	s.OutputVariables = checkOutputVars(outputVars)
	if s.OutputFile, err = checkOutputFile(cfg.GetString("OutputFile")); err != nil {
		return nil, err
	}
	s.LogFile = checkLogFile(os.ExpandEnv(cfg.GetString("LogFile")), s.OutputFile)
	if err := s.check(); err != nil {
		return nil, err
	}
	return s, nil
}

// check makes sure the simulation settings are usable.
func (s *Simulation) check() error {
	for _, n := range []struct {
		name string
		v    int
	}{{"Nx", s.Nx}, {"Ny", s.Ny}, {"Nz", s.Nz}, {"Nens", s.Nens}} {
		if n.v < 1 {
			return fmt.Errorf("dycoreutil: invalid configuration: %s=%d but should be >0", n.name, n.v)
		}
	}
	for _, l := range []struct {
		name string
		v    float64
	}{{"Xlen", s.Xlen}, {"Ylen", s.Ylen}, {"Zlen", s.Zlen}} {
		if !(l.v > 0) {
			return fmt.Errorf("dycoreutil: invalid configuration: %s=%g but should be >0", l.name, l.v)
		}
	}
	if s.DtPhys < 0 {
		return fmt.Errorf("dycoreutil: invalid configuration: DtPhys=%g but should be >=0", s.DtPhys)
	}
	if s.DtPhys == 0 && !(s.CFL > 0) {
		return fmt.Errorf("dycoreutil: invalid configuration: CFL=%g but should be >0", s.CFL)
	}
	if s.SimSteps < 1 && !(s.SimTime > 0) {
		return fmt.Errorf("dycoreutil: invalid configuration: one of SimTime or SimSteps should be >0")
	}
	return nil
}

// checkOutputVars removes end lines and expands environment
// variables in the output variables.
func checkOutputVars(vars map[string]string) map[string]string {
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return o
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expand any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`dycoreutil: you need to specify an output file configuration variable (for example: OutputFile="output.nc")`)
	}
	f = os.ExpandEnv(f)
	if IsBlob(f) {
		url, err := url.Parse(f)
		if err != nil {
			return f, err
		}
		if _, err = OpenBucket(context.TODO(), url.Scheme+"://"+url.Host); err != nil {
			return f, fmt.Errorf("dycoreutil: error when checking OutputFile location: %v", err)
		}
		return f, nil
	}
	if _, err := os.Stat(filepath.Dir(f)); err != nil {
		return f, fmt.Errorf("dycoreutil: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		o := make(map[string]string)
		if strings.TrimSpace(v) == "" {
			return o, nil
		}
		if err := json.NewDecoder(bytes.NewBufferString(v)).Decode(&o); err != nil {
			return nil, fmt.Errorf("dycoreutil: parsing %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("dycoreutil: invalid type for %s: %#v", varName, i)
	}
}
