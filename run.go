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
	"io"
	"math"
	"runtime"
	"sync"
	"time"
)

// numWorkers returns the number of goroutines to use for n independent
// pieces of work.
func numWorkers(n int) int {
	nprocs := runtime.GOMAXPROCS(0)
	if n < nprocs {
		nprocs = n
	}
	if nprocs < 1 {
		nprocs = 1
	}
	return nprocs
}

// parallelFor calls the function returned by newWorker(pp) for every index
// in [0, n), where worker pp handles indices pp, pp+nprocs, ... Each worker
// is created in its own goroutine so that it can hold private scratch
// space. parallelFor returns after all indices have been processed.
func parallelFor(n int, newWorker func(pp int) func(ii int)) {
	nprocs := numWorkers(n)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			f := newWorker(pp)
			for ii := pp; ii < n; ii += nprocs {
				f(ii)
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
}

// FixedTimeStep returns a function that sets the time step to dt [s].
func FixedTimeStep(dt float64) DomainManipulator {
	return func(d *Dycore) error {
		if !(dt > 0) {
			return fmt.Errorf("dycore: time step %g should be >0", dt)
		}
		d.Dt = dt
		return nil
	}
}

// CFLTimeStep returns a function that sets the time step to the largest
// stable value for the Courant number cfl.
func CFLTimeStep(cfl float64) DomainManipulator {
	return func(d *Dycore) error {
		dt := d.ComputeTimeStep(cfl)
		if !(dt > 0) || math.IsInf(dt, 0) {
			return fmt.Errorf("dycore: invalid CFL time step %g", dt)
		}
		d.Dt = dt
		return nil
	}
}

// SimulationTime returns a function that shortens the last time step so
// that the simulation ends exactly at end [s] and then sets Done.
func SimulationTime(end float64) DomainManipulator {
	return func(d *Dycore) error {
		remaining := end - d.Time
		if remaining <= 0 {
			d.Dt = 0
			d.Done = true
			return nil
		}
		if d.Dt >= remaining {
			d.Dt = remaining
			d.Done = true
		}
		return nil
	}
}

// SimulationSteps returns a function that sets Done so that the
// simulation ends after n time steps.
func SimulationSteps(n int) DomainManipulator {
	return func(d *Dycore) error {
		if d.Iteration >= n {
			d.Dt = 0
			d.Done = true
			return nil
		}
		if d.Iteration+1 >= n {
			d.Done = true
		}
		return nil
	}
}

// Step returns a function that advances the state by Dt. It does nothing
// if Dt is zero.
func Step() DomainManipulator {
	return func(d *Dycore) error {
		if d.Dt == 0 {
			return nil
		}
		if err := d.TimeStep(d.Dt); err != nil {
			return err
		}
		d.Time += d.Dt
		d.Iteration++
		return nil
	}
}

// CoupledStep returns a function that reads the state from the coupler,
// advances it by Dt and writes it back. If updateBackground is true, the
// background is refreshed from the coupler's hydrostasis fit first.
func CoupledStep(updateBackground bool) DomainManipulator {
	return func(d *Dycore) error {
		if d.Dt == 0 {
			return nil
		}
		if updateBackground && d.Coupler.HydrostasisSet() {
			if err := d.UpdateBackground(); err != nil {
				return err
			}
		}
		d.PrimitiveToConserved()
		if err := d.TimeStep(d.Dt); err != nil {
			return err
		}
		d.ConservedToPrimitive()
		d.Time += d.Dt
		d.Iteration++
		return nil
	}
}

// CouplerHydrostasis returns a function that fits the coupler's
// hydrostatic profile to its current state, refreshes the background and
// rereads the state.
func CouplerHydrostasis() DomainManipulator {
	return func(d *Dycore) error {
		if err := d.Coupler.UpdateHydrostasis(); err != nil {
			return err
		}
		if err := d.UpdateBackground(); err != nil {
			return err
		}
		d.PrimitiveToConserved()
		return nil
	}
}

// Log returns a function that writes simulation status messages to w.
func Log(w io.Writer) DomainManipulator {
	startTime := time.Now()
	timeOfLastCheck := time.Now()
	return func(d *Dycore) error {
		walltime := time.Since(startTime).Round(time.Second)
		stepTime := time.Since(timeOfLastCheck).Round(time.Millisecond)
		timeOfLastCheck = time.Now()
		_, err := fmt.Fprintf(w, "Iteration %-4d  walltime=%6s  Δwalltime=%6s  etime=%.4gs  Δt=%.3gs  max|w|=%.3g\n",
			d.Iteration, walltime, stepTime, d.Time, d.Dt, d.MaxVerticalWind())
		return err
	}
}

// MaxVerticalWind returns the largest magnitude of the vertical wind [m/s].
func (d *Dycore) MaxVerticalWind() float64 {
	var m float64
	for n := 0; n < d.l.cells(); n++ {
		k, j, i, e := d.l.cell(n)
		r := d.State.Elements[d.l.index(idR, k, j, i, e)] + d.Background.Dens(k, e)
		w := d.State.Elements[d.l.index(idW, k, j, i, e)] / r
		m = math.Max(m, math.Abs(w))
	}
	return m
}
