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
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/dycore"
)

func TestRun(t *testing.T) {
	dir, err := ioutil.TempDir("", "dycoreutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	outFile := filepath.Join(dir, "out.nc")
	plotFile := filepath.Join(dir, "out.png")

	Root.SetArgs([]string{"run",
		"--Nx=10", "--Nz=10", "--SimSteps=3", "--OutFreq=0",
		"--InitData=thermal", "--CheckMass=true",
		"--OutputFile=" + outFile,
		"--PlotFile=" + plotFile,
		"--PlotVariable=w",
		`--Tracers={"dye": "0.001 * exp(-(x - 10000) * (x - 10000) / 4000000)"}`,
		`--OutputVariables={"speed": "sqrt(u*u + w*w)"}`,
	})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	ff, err := os.Open(outFile)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		t.Fatal(err)
	}
	nrec := f.Header.Lengths("t")[0]
	if nrec != 4 {
		t.Fatalf("%d records, want 4", nrec)
	}
	times := make([]float64, nrec)
	if _, err := f.Reader("t", []int{0}, []int{nrec - 1}).Read(times); err != nil {
		t.Fatal(err)
	}
	if times[0] != 0 {
		t.Errorf("the first record should be the initial state but is at t=%g", times[0])
	}
	for i := 1; i < nrec; i++ {
		if !(times[i] > times[i-1]) {
			t.Errorf("times should increase: %v", times)
		}
	}
	for _, v := range []string{"tracer_dye", "tracer_water_vapor", "speed", "w"} {
		if lengths := f.Header.Lengths(v); len(lengths) != 5 {
			t.Errorf("variable %s: lengths %v", v, lengths)
		}
	}

	// The dye should start at its initial condition.
	dye := make([]float32, 10*10)
	if _, err := f.Reader("tracer_dye", []int{0, 0, 0, 0, 0}, []int{0, 9, 0, 9, 0}).Read(dye); err != nil {
		t.Fatal(err)
	}
	for k := 0; k < 10; k++ {
		for i := 0; i < 10; i++ {
			x := (float64(i) + 0.5) * 2000
			want := 0.001 * math.Exp(-(x-10000)*(x-10000)/4000000)
			if different(float64(dye[k*10+i]), want, 1e-5) {
				t.Errorf("dye at k=%d, i=%d: have %g, want %g", k, i, dye[k*10+i], want)
			}
		}
	}

	b, err := ioutil.ReadFile(plotFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(b), "\x89PNG") {
		t.Error("plot is not a PNG image")
	}
	logText, err := ioutil.ReadFile(filepath.Join(dir, "out.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(logText), "Simulation finished") {
		t.Errorf("log file is incomplete:\n%s", logText)
	}
}

func TestRunCouplerHydrostasis(t *testing.T) {
	dir, err := ioutil.TempDir("", "dycoreutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	cfg := dycore.DefaultConfig()
	cfg.InitData = dycore.Thermal
	sim := &Simulation{
		Nx: 10, Ny: 1, Nz: 10, Nens: 1,
		Xlen: 20000, Ylen: 20000, Zlen: 10000,
		DtPhys:                0.5,
		SimTime:               1.2,
		OutFreq:               -1,
		OutputFile:            filepath.Join(dir, "out.nc"),
		LogFile:               filepath.Join(dir, "run.log"),
		UseCouplerHydrostasis: true,
	}
	if err := Run(nil, cfg, sim); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(sim.OutputFile); !os.IsNotExist(err) {
		t.Error("no output file should be created when OutFreq < 0")
	}
	logText, err := ioutil.ReadFile(sim.LogFile)
	if err != nil {
		t.Fatal(err)
	}
	// Two full steps and one shortened one.
	if !strings.Contains(string(logText), "iterations=3") {
		t.Errorf("log file should report 3 iterations:\n%s", logText)
	}
}

func TestTracerInitErrors(t *testing.T) {
	for _, expr := range []string{"(x +", "q * 2"} {
		if _, err := tracerInit(map[string]string{"dye": expr}); err == nil {
			t.Errorf("%s: expected an error", expr)
		}
	}
	f, err := tracerInit(nil)
	if err != nil || f != nil {
		t.Errorf("no tracers: have %v, %v; want nil, nil", f, err)
	}

	sim := &Simulation{Nx: 10, Ny: 1, Nz: 10, Nens: 1, Xlen: 20000, Ylen: 20000, Zlen: 10000,
		Tracers: map[string]string{"dye": "x - 10000"}}
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
	set, err := tracerInit(sim.Tracers)
	if err != nil {
		t.Fatal(err)
	}
	d.InitFuncs = []dycore.DomainManipulator{set}
	if err := d.Init(); err == nil {
		t.Error("expected an error for a negative initial tracer density")
	}
}

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}
