// Package solver advances a solution in time by integrating the semi-discrete
// system of a physics model with an explicit integrator.
package solver

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/simrun/internal/dynamo"
	"github.com/san-kum/simrun/internal/solution"
)

const (
	DefaultDt       = 0.01
	DefaultMaxSteps = 100000
)

// ODE integrates dq/dt = f(q, t) for one patch.
type ODE struct {
	System     dynamo.System
	Integrator dynamo.Integrator

	DtInitial float64
	Dt        float64
	DtMin     float64
	DtMax     float64
	// Tolerance enables adaptive stepping when the integrator supports it.
	Tolerance float64
	// MaxSteps bounds the steps of a single EvolveToTime call.
	MaxSteps int

	Logger *logrus.Logger

	setUp  bool
	status dynamo.Status
}

func New(sys dynamo.System, integ dynamo.Integrator) *ODE {
	return &ODE{
		System:     sys,
		Integrator: integ,
		DtInitial:  DefaultDt,
		Dt:         DefaultDt,
		DtMax:      math.Inf(1),
		MaxSteps:   DefaultMaxSteps,
		Logger:     logrus.StandardLogger(),
	}
}

func (s *ODE) IsValid() (bool, string) {
	switch {
	case s.System == nil:
		return false, "no system"
	case s.Integrator == nil:
		return false, "no integrator"
	case !(s.DtInitial > 0):
		return false, fmt.Sprintf("dt_initial must be positive, got %g", s.DtInitial)
	case s.DtMin < 0 || s.DtMax < s.DtMin:
		return false, fmt.Sprintf("invalid dt bounds [%g, %g]", s.DtMin, s.DtMax)
	case s.MaxSteps < 1:
		return false, fmt.Sprintf("max_steps must be at least 1, got %d", s.MaxSteps)
	case s.Tolerance < 0:
		return false, fmt.Sprintf("tolerance must not be negative, got %g", s.Tolerance)
	}
	return true, ""
}

func (s *ODE) IsSetUp() bool { return s.setUp }

// Setup checks that the solution layout matches the system.
func (s *ODE) Setup(sol *solution.Solution) error {
	st := sol.State()
	if st == nil {
		return fmt.Errorf("setup: empty solution")
	}
	if st.NumEqn != s.System.NumEqn() || st.Grid.NumCells != s.System.NumCells() {
		return fmt.Errorf("setup: solution is %dx%d, system is %dx%d: %w",
			st.NumEqn, st.Grid.NumCells, s.System.NumEqn(), s.System.NumCells(), dynamo.ErrDimensionMismatch)
	}
	s.setUp = true
	return nil
}

func (s *ODE) ResetDt() { s.Dt = s.DtInitial }

// Status is the summary of the last EvolveToTime call.
func (s *ODE) Status() dynamo.Status { return s.status }

// EvolveToTime advances sol to *tend, shortening the final step to land on
// it exactly. A nil tend takes a single step of Dt.
func (s *ODE) EvolveToTime(sol *solution.Solution, tend *float64) (dynamo.Status, error) {
	st := sol.State()
	var status dynamo.Status
	t := sol.T()

	if tend == nil {
		if _, err := s.step(sol, st, t, s.Dt, &status); err != nil {
			return status, err
		}
		s.status = status
		return status, nil
	}

	target := *tend
	eps := 1e-12 * math.Max(1, math.Abs(target))
	for target-t > eps {
		if status.NumSteps >= s.MaxSteps {
			return status, &dynamo.SimulationError{Step: status.NumSteps, Time: t, Wrapped: dynamo.ErrMaxSteps}
		}
		dt := s.Dt
		last := false
		if t+dt >= target-eps {
			dt, last = target-t, true
		}
		taken, err := s.step(sol, st, t, dt, &status)
		if err != nil {
			return status, err
		}
		if last && taken == dt {
			sol.SetT(target)
			status.Time = target
		}
		t = sol.T()
	}

	s.Logger.WithFields(logrus.Fields{
		"steps":  status.NumSteps,
		"dt_min": status.DtMin,
		"dt_max": status.DtMax,
	}).Debugf("evolved to t=%f", t)
	s.status = status
	return status, nil
}

// maxRejects bounds the retries of one adaptive step.
const maxRejects = 50

// step advances by dt, or by less when an adaptive integrator rejects the
// attempt, and returns the step actually taken.
func (s *ODE) step(sol *solution.Solution, st *solution.State, t, dt float64, status *dynamo.Status) (float64, error) {
	var q dynamo.State
	adaptive, ok := s.Integrator.(dynamo.AdaptiveIntegrator)
	if ok && s.Tolerance > 0 {
		clipped := dt != s.Dt
		for rejects := 0; ; rejects++ {
			qNew, dtNext, err := adaptive.StepAdaptive(s.System, st.Q, t, dt, s.Tolerance)
			if err != nil && !errors.Is(err, dynamo.ErrStepRejected) {
				return 0, &dynamo.SimulationError{Step: status.NumSteps, Time: t, Wrapped: err}
			}
			if (s.DtMin > 0 && dtNext < s.DtMin) || !(dtNext > 0) || rejects >= maxRejects {
				return 0, &dynamo.SimulationError{Step: status.NumSteps, Time: t, Wrapped: dynamo.ErrStepTooSmall}
			}
			if err != nil {
				status.Rejected++
				dt, clipped = dtNext, false
				s.Dt = math.Min(dtNext, s.DtMax)
				continue
			}
			// a step clipped to hit an output time says nothing about the next one
			if !clipped || dtNext < dt {
				s.Dt = math.Min(dtNext, s.DtMax)
			}
			q = qNew
			break
		}
	} else {
		q = s.Integrator.Step(s.System, st.Q, t, dt)
	}

	if len(q) != len(st.Q) {
		return 0, &dynamo.SimulationError{Step: status.NumSteps, Time: t, Wrapped: dynamo.ErrDimensionMismatch}
	}
	if !q.IsValid() {
		return 0, &dynamo.SimulationError{Step: status.NumSteps, Time: t, Wrapped: dynamo.ErrInvalidState}
	}
	copy(st.Q, q)
	sol.SetT(t + dt)
	status.Observe(dt, t+dt)
	return dt, s.WriteGaugeValues(sol)
}

// WriteGaugeValues appends the current values at every gauge cell.
func (s *ODE) WriteGaugeValues(sol *solution.Solution) error {
	st := sol.State()
	for _, g := range sol.Grid().GaugeStreams().Streams() {
		if err := g.Record(sol.T(), st.QAt(g.Cell)); err != nil {
			return err
		}
	}
	return nil
}
