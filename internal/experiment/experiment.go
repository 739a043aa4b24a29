// Package experiment turns a run configuration into a ready-to-run driver:
// the physical system, its solver, the initial solution and the output hooks.
package experiment

import (
	"fmt"
	"maps"
	"slices"

	"github.com/san-kum/simrun/internal/config"
	"github.com/san-kum/simrun/internal/driver"
	"github.com/san-kum/simrun/internal/dynamo"
	"github.com/san-kum/simrun/internal/functional"
	"github.com/san-kum/simrun/internal/solution"
	"github.com/san-kum/simrun/internal/solver"
)

// Extent is implemented by systems with a physical length; others live on
// the unit interval.
type Extent interface {
	Extent() (lower, upper float64)
}

type Setup struct {
	System   dynamo.System
	Solver   *solver.ODE
	Solution *solution.Solution
	Config   driver.Config

	// Functionals names the columns of the functional log, in order.
	Functionals []string
	Derived     []string

	options []driver.Option
}

// Build resolves every name in cfg against the default registry.
func Build(cfg *config.Config) (*Setup, error) {
	return NewRegistry().Build(cfg)
}

func (r *Registry) Build(cfg *config.Config) (*Setup, error) {
	sys, err := r.GetModel(cfg.Model, cfg.Cells)
	if err != nil {
		return nil, err
	}
	if err := applyParams(sys, cfg.Params); err != nil {
		return nil, err
	}
	integ, err := r.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	dcfg, err := cfg.DriverConfig()
	if err != nil {
		return nil, err
	}

	sol, err := initialSolution(sys, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.RestartFrame != nil {
		spec := solution.WriteSpec{Handler: dcfg.OutputHandler, Format: dcfg.OutputFormat, Options: dcfg.OutputOptions}
		if err := sol.Read(*cfg.RestartFrame, dcfg.OutDir, dcfg.FilePrefix, spec); err != nil {
			return nil, fmt.Errorf("restart: %w", err)
		}
	}

	ode := solver.New(sys, integ)
	if cfg.Dt > 0 {
		ode.DtInitial, ode.Dt = cfg.Dt, cfg.Dt
	}
	ode.DtMin = cfg.DtMin
	if cfg.DtMax > 0 {
		ode.DtMax = cfg.DtMax
	}
	ode.Tolerance = cfg.Tolerance
	if cfg.MaxSteps > 0 {
		ode.MaxSteps = cfg.MaxSteps
	}

	s := &Setup{System: sys, Solver: ode, Solution: sol, Config: dcfg}

	if len(cfg.Functionals) > 0 {
		densities, err := r.densitiesFor(sys, cfg.Functionals)
		if err != nil {
			return nil, err
		}
		s.Functionals = functional.Names(densities...)
		s.options = append(s.options, driver.WithFunctional(functional.Combine(densities...)))
	}
	if len(cfg.Derived) > 0 {
		densities, err := r.densitiesFor(sys, cfg.Derived)
		if err != nil {
			return nil, err
		}
		s.Derived = functional.Names(densities...)
		s.options = append(s.options, driver.WithDerived(derivedPass(densities)))
	}
	return s, nil
}

// Driver wires the setup into a new driver. opts are applied after the
// setup's own hooks.
func (s *Setup) Driver(opts ...driver.Option) *driver.Driver {
	all := append(slices.Clone(s.options), opts...)
	return driver.New(s.Solver, s.Solution, s.Config, all...)
}

func (r *Registry) densitiesFor(sys dynamo.System, names []string) ([]functional.Density, error) {
	out := make([]functional.Density, len(names))
	for i, name := range names {
		d, err := r.GetDensity(name, sys)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

func applyParams(sys dynamo.System, params map[string]float64) error {
	if len(params) == 0 {
		return nil
	}
	c, ok := sys.(dynamo.Configurable)
	if !ok {
		return fmt.Errorf("%T takes no parameters", sys)
	}
	for _, name := range slices.Sorted(maps.Keys(params)) {
		if err := c.SetParam(name, params[name]); err != nil {
			return err
		}
	}
	return nil
}

func initialSolution(sys dynamo.System, cfg *config.Config) (*solution.Solution, error) {
	lower, upper := 0.0, 1.0
	if e, ok := sys.(Extent); ok {
		lower, upper = e.Extent()
	}
	grid := solution.NewGrid(solution.NewDimension("x", lower, upper, sys.NumCells()), cfg.Gauges...)
	st := solution.NewState(grid, sys.NumEqn(), 0)

	switch {
	case len(cfg.InitState) > 0:
		if len(cfg.InitState) != len(st.Q) {
			return nil, fmt.Errorf("%w: init_state has %d values, %s needs %d",
				dynamo.ErrDimensionMismatch, len(cfg.InitState), cfg.Model, len(st.Q))
		}
		copy(st.Q, cfg.InitState)
	default:
		if init, ok := sys.(dynamo.Initializer); ok {
			copy(st.Q, init.DefaultState())
		}
	}
	return solution.New(st), nil
}

// derivedPass evaluates densities into P, one component per density.
func derivedPass(densities []functional.Density) func(*solution.State) error {
	return func(st *solution.State) error {
		n := st.Grid.NumCells
		if st.NumP != len(densities) || len(st.P) != len(densities)*n {
			st.SetNumP(len(densities))
		}
		for k, d := range densities {
			if err := d.Fill(st, st.P[k*n:(k+1)*n]); err != nil {
				return fmt.Errorf("%s: %w", d.Name, err)
			}
		}
		return nil
	}
}
