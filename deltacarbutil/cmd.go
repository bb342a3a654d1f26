/*
Copyright © 2024 the DeltaCarb authors.
This file is part of DeltaCarb.

DeltaCarb is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

DeltaCarb is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with DeltaCarb.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package deltacarbutil wires the DeltaCarb decomposition into a
// command-line interface with configuration handling.
package deltacarbutil

import (
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oceanmodel/deltacarb"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to DeltaCarb.
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
			name: "ClimatologyFile",
			usage: `
              ClimatologyFile is the path to the NetCDF file holding the mask,
              coordinate arrays, and the annual, February, and August mean
              fields of the state variables. The path can include environment
              variables.`,
			defaultVal: "climatology.nc",
			flagsets:   []*pflag.FlagSet{decompCmd.Flags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory where the per-target term files are
              written. The path can include environment variables.`,
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{decompCmd.Flags()},
		},
		{
			name: "SimulationLabel",
			usage: `
              SimulationLabel identifies the model run the climatology was
              derived from. It selects the output file names and is recorded
              in the output containers and the run log.`,
			defaultVal: "piControl",
			flagsets:   []*pflag.FlagSet{decompCmd.Flags()},
		},
		{
			name: "YearRange",
			usage: `
              YearRange identifies the averaging period of the climatology,
              e.g. "1990-2010". It selects the output file names and is
              recorded in the output containers and the run log.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{decompCmd.Flags()},
		},
		{
			name: "Density",
			usage: `
              Density is the fixed seawater density [kg/m³] used to convert
              volumetric tracer concentrations to gravimetric units on load.`,
			defaultVal: deltacarb.DefaultDensity,
			flagsets:   []*pflag.FlagSet{decompCmd.Flags()},
		},
		{
			name: "NumProcessors",
			usage: `
              NumProcessors is the number of worker goroutines the grid driver
              uses. Values below 1 mean one worker per available CPU.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{decompCmd.Flags()},
		},
		{
			name: "RunLogFile",
			usage: `
              RunLogFile is the path to the SQLite database recording runs and
              per-cell forward-model failures. An empty path disables the run
              log; failures are then only logged to standard error.`,
			defaultVal: "deltacarb_runs.sqlite",
			flagsets:   []*pflag.FlagSet{decompCmd.Flags()},
		},
		{
			name: "Targets",
			usage: `
              Targets lists the target variables whose term files should be
              written. All four are always computed; this only selects the
              output containers.`,
			defaultVal: []string{"pCO2", "H", "CO3", "OmegaA"},
			flagsets:   []*pflag.FlagSet{decompCmd.Flags()},
		},
		{
			name: "Steps.AT",
			usage: `
              Steps.AT is the finite-difference step for total alkalinity
              [μmol/kg].`,
			defaultVal: deltacarb.DefaultSteps[deltacarb.IAT],
			flagsets:   []*pflag.FlagSet{decompCmd.Flags()},
		},
		{
			name: "Steps.CT",
			usage: `
              Steps.CT is the finite-difference step for dissolved inorganic
              carbon [μmol/kg].`,
			defaultVal: deltacarb.DefaultSteps[deltacarb.ICT],
			flagsets:   []*pflag.FlagSet{decompCmd.Flags()},
		},
		{
			name: "Steps.S",
			usage: `
              Steps.S is the finite-difference step for salinity.`,
			defaultVal: deltacarb.DefaultSteps[deltacarb.IS],
			flagsets:   []*pflag.FlagSet{decompCmd.Flags()},
		},
		{
			name: "Steps.T",
			usage: `
              Steps.T is the finite-difference step for temperature [°C].`,
			defaultVal: deltacarb.DefaultSteps[deltacarb.IT],
			flagsets:   []*pflag.FlagSet{decompCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("DELTACARB")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(decompCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("deltacarb: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "deltacarb",
	Short: "A Taylor decomposition of the seasonal carbonate cycle.",
	Long: `DeltaCarb decomposes the February-to-August change of surface-ocean
pCO2, H+, CO3²⁻, and aragonite saturation state into first- and
second-order Taylor terms in total alkalinity, dissolved inorganic
carbon, salinity, and temperature.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'DELTACARB_var' where 'var'
is the name of the variable to be set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of DeltaCarb.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("DeltaCarb v%s\n", deltacarb.Version)
	},
	DisableAutoGenTag: true,
}

// decompCmd runs the decomposition over the full grid.
var decompCmd = &cobra.Command{
	Use:   "decomp",
	Short: "Run the seasonal Taylor decomposition.",
	Long: `decomp loads the climatology, decomposes the seasonal change of each
target variable at every sea cell, and writes one term file per target
variable to the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := deltacarb.StepSizes{
			deltacarb.IAT: Cfg.GetFloat64("Steps.AT"),
			deltacarb.ICT: Cfg.GetFloat64("Steps.CT"),
			deltacarb.IS:  Cfg.GetFloat64("Steps.S"),
			deltacarb.IT:  Cfg.GetFloat64("Steps.T"),
		}
		targets, err := cast.ToStringSliceE(Cfg.Get("Targets"))
		if err != nil {
			return fmt.Errorf("deltacarb: reading 'Targets': %v", err)
		}
		return Decomp(
			os.ExpandEnv(Cfg.GetString("ClimatologyFile")),
			os.ExpandEnv(Cfg.GetString("OutputDir")),
			Cfg.GetString("SimulationLabel"),
			Cfg.GetString("YearRange"),
			os.ExpandEnv(Cfg.GetString("RunLogFile")),
			targets,
			Cfg.GetFloat64("Density"),
			Cfg.GetInt("NumProcessors"),
			steps,
		)
	},
	DisableAutoGenTag: true,
}
