package dynamo

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// AXPY returns s + a*other. Missing entries of other count as zero.
func (s State) AXPY(a float64, other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + a*other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	return s.AXPY(-1, other)
}

// System is a semi-discrete evolution equation dq/dt = f(q, t) laid out as
// NumEqn components over NumCells cells, component-major.
type System interface {
	Derive(q State, t float64) State
	NumEqn() int
	NumCells() int
}

// Hamiltonian systems expose a conserved energy.
type Hamiltonian interface {
	Energy(q State) float64
}

// Initializer provides a default initial condition.
type Initializer interface {
	DefaultState() State
}

type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

type Integrator interface {
	Step(sys System, q State, t, dt float64) State
}

type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(sys System, q State, t, dt, tol float64) (State, float64, error)
}

// Status summarizes one evolve call of a solver.
type Status struct {
	NumSteps int     `json:"num_steps" yaml:"num_steps"`
	DtMin    float64 `json:"dt_min" yaml:"dt_min"`
	DtMax    float64 `json:"dt_max" yaml:"dt_max"`
	DtLast   float64 `json:"dt_last" yaml:"dt_last"`
	Time     float64 `json:"t" yaml:"t"`
	Rejected int     `json:"rejected,omitempty" yaml:"rejected,omitempty"`
}

// Observe folds one accepted step of size dt into the status.
func (s *Status) Observe(dt, t float64) {
	if s.NumSteps == 0 || dt < s.DtMin {
		s.DtMin = dt
	}
	if dt > s.DtMax {
		s.DtMax = dt
	}
	s.NumSteps++
	s.DtLast = dt
	s.Time = t
}

func (s Status) String() string {
	return fmt.Sprintf("steps=%d dt=[%.3g, %.3g] t=%.6f", s.NumSteps, s.DtMin, s.DtMax, s.Time)
}
