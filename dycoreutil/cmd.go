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

// Package dycoreutil contains the command-line interface and standalone
// driver for the dynamical core.
package dycoreutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/dycore"
	"github.com/spatialmodel/dycore/weno"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to the model.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Order",
			usage: `
              Order is the order of accuracy of the spatial reconstruction.
              It must be odd and between 3 and 9.`,
			defaultVal: 5,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "NGLL",
			usage: `
              NGLL is the number of Gauss-Lobatto-Legendre points per cell.`,
			defaultVal: 3,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "NAder",
			usage: `
              NAder is the number of time orders in the ADER expansion,
              between 1 (no expansion) and NGLL. 0 means NGLL.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "TimeAvg",
			usage: `
              TimeAvg specifies whether cell face values should be averaged
              over the time step.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "Nx",
			usage: `
              Nx is the number of grid cells in the x direction.`,
			defaultVal: 100,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "Ny",
			usage: `
              Ny is the number of grid cells in the y direction. Set it to 1
              for a two-dimensional x-z simulation.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "Nz",
			usage: `
              Nz is the number of vertical levels.`,
			defaultVal: 50,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "Nens",
			usage: `
              Nens is the number of ensemble members, which are integrated
              together but do not interact.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "Xlen",
			usage: `
              Xlen is the domain length in the x direction [m].`,
			defaultVal: 20000.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "Ylen",
			usage: `
              Ylen is the domain length in the y direction [m].`,
			defaultVal: 20000.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "Zlen",
			usage: `
              Zlen is the height of the model top [m]. It is ignored if
              VerticalCoords is set.`,
			defaultVal: 10000.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "VerticalCoords",
			usage: `
              VerticalCoords is the path to a text file holding the Nz+1
              vertical cell interface heights [m]. If it is empty, the levels
              are spaced evenly between 0 and Zlen. The path can include
              environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "BCx",
			usage: `
              BCx is the boundary condition in the x direction. Valid options
              are "periodic" and "wall".`,
			defaultVal: "periodic",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "BCy",
			usage: `
              BCy is the boundary condition in the y direction.`,
			defaultVal: "periodic",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "BCz",
			usage: `
              BCz is the boundary condition in the z direction.`,
			defaultVal: "wall",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "WENOScalars",
			usage: `
              WENOScalars specifies whether density, potential temperature and
              tracers are reconstructed with WENO limiting.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "WENOWinds",
			usage: `
              WENOWinds specifies whether momenta are reconstructed with WENO
              limiting.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "WENOSigma",
			usage: `
              WENOSigma is the handicap applied to the smoothness of the
              high-order polynomial. Larger values make the scheme less
              oscillatory but more diffusive.`,
			defaultVal: weno.DefaultSigma,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "InitData",
			usage: `
              InitData is the initial condition. Valid options are "thermal"
              and "supercell".`,
			defaultVal: "thermal",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "BalanceInitialDensity",
			usage: `
              BalanceInitialDensity specifies whether the initial density
              should be adjusted to remove the initial acoustic adjustment.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "Tracers",
			usage: `
              Tracers gives the names of passive tracers to add (as keys) and
              expressions for their initial densities in kg/m³ (as values).
              Expressions can use the cell center coordinates x, y, and z [m]
              and the functions exp, log, sqrt, and abs.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "CFL",
			usage: `
              CFL is the Courant number used to calculate the time step when
              DtPhys is 0.`,
			defaultVal: 0.8,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "DtPhys",
			usage: `
              DtPhys is a fixed time step [s]. If it is 0, the time step is
              calculated from CFL.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "SimTime",
			usage: `
              SimTime is the length of the simulation [s]. It is ignored if
              SimSteps is greater than 0.`,
			defaultVal: 1000.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "SimSteps",
			usage: `
              SimSteps is the number of time steps to run. If it is less than 1,
              SimTime is used instead.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "OutFreq",
			usage: `
              OutFreq is the simulated time [s] between output records.
              If it is 0, every time step is written; if it is negative, no
              output is written.`,
			defaultVal: 10.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the desired NetCDF output file. It can
              include environment variables and can be a blob storage location
              (gs://, s3:// or file://).`,
			shorthand:  "o",
			defaultVal: "dycore_output.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can include
              environment variables. If LogFile is left blank, the logfile will be saved in
              the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies derived variables (as keys) to include
              in the output file in addition to the model variables, with
              expressions (as values) that calculate them from model variables.`,
			defaultVal: map[string]string{
				"speed": "sqrt(u*u + v*v + w*w)",
			},
			flagsets: []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "PlotFile",
			usage: `
              PlotFile is the path where a PNG image of an x-z cross section
              through the middle of the domain at the end of the simulation
              should be saved. If it is empty, no plot is created.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "PlotVariable",
			usage: `
              PlotVariable is the model variable shown in PlotFile.`,
			defaultVal: "pot_temp_pert",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "UseCouplerHydrostasis",
			usage: `
              UseCouplerHydrostasis specifies whether the hydrostatic
              background should be recalculated from a fit to the initial
              column-mean pressure rather than taken from the initial condition.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "Strict",
			usage: `
              Strict specifies whether negative tracer values should stop the
              simulation rather than be logged as warnings.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "CheckMass",
			usage: `
              CheckMass specifies whether total mass should be checked for
              conservation after every time step.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "FCTUpwindWrap",
			usage: `
              FCTUpwindWrap specifies whether the tracer flux limiter looks
              across horizontal wall boundaries for upwind cells.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("DYCORE")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(v)
				set.StringP(option.name, option.shorthand, b.String(), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
		Cfg.BindEnv(option.name)
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(configCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("dycoreutil: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "dycore",
	Short: "A split-explicit dynamical core for the compressible Euler equations.",
	Long: `dycore runs idealized simulations with a finite-volume dynamical core that
uses WENO reconstruction, ADER time expansion and dimensional splitting.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'DYCORE_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of the model.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("dycore v%s\n", dycore.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that runs a standalone simulation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the model.",
	Long: `run runs a standalone simulation starting from one of the idealized
initial conditions and writes the results to a NetCDF file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := DycoreConfig(Cfg)
		if err != nil {
			return err
		}
		sim, err := SimulationConfig(Cfg)
		if err != nil {
			return err
		}
		return Run(cmd, cfg, sim)
	},
	DisableAutoGenTag: true,
}

// configCmd prints the configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the configuration.",
	Long: `config prints the configuration that would be used for a simulation, in
TOML format. The output can be saved and used as a configuration file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeConfig(cmd.OutOrStdout(), Cfg)
	},
	DisableAutoGenTag: true,
}

// writeConfig writes the values of all options except "config" to w in
// TOML format.
func writeConfig(w io.Writer, cfg *viper.Viper) error {
	settings := make(map[string]interface{})
	for _, option := range options {
		if option.name == "config" {
			continue
		}
		switch option.defaultVal.(type) {
		case string:
			settings[option.name] = cfg.GetString(option.name)
		case bool:
			settings[option.name] = cfg.GetBool(option.name)
		case int:
			settings[option.name] = cfg.GetInt(option.name)
		case float64:
			settings[option.name] = cfg.GetFloat64(option.name)
		case map[string]string:
			m, err := GetStringMapString(option.name, cfg)
			if err != nil {
				return err
			}
			settings[option.name] = m
		}
	}
	if err := toml.NewEncoder(w).Encode(settings); err != nil {
		return fmt.Errorf("dycoreutil: writing configuration: %v", err)
	}
	return nil
}
