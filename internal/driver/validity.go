package driver

import (
	"reflect"

	"github.com/san-kum/simrun/internal/dynamo"
	"github.com/san-kum/simrun/internal/solution"
)

// Solver advances a solution in time. It is the only collaborator allowed to
// mutate the solution.
type Solver interface {
	IsValid() (bool, string)
	IsSetUp() bool
	Setup(sol *solution.Solution) error
	ResetDt()
	// EvolveToTime advances to *tend, or by one step when tend is nil.
	EvolveToTime(sol *solution.Solution, tend *float64) (dynamo.Status, error)
	WriteGaugeValues(sol *solution.Solution) error
}

// CheckValidity reports whether solver and sol are ready to run. It has no
// side effects.
func CheckValidity(solver any, sol *solution.Solution) error {
	if solver == nil {
		return ErrNoSolver
	}
	if v := reflect.ValueOf(solver); v.Kind() == reflect.Pointer && v.IsNil() {
		return ErrNoSolver
	}
	s, ok := solver.(Solver)
	if !ok {
		return ErrSolverType
	}
	if valid, reason := s.IsValid(); !valid {
		return &ValidationError{Subject: "solver", Reason: reason}
	}
	if sol == nil {
		return ErrNoSolution
	}
	if !sol.IsValid() {
		return &ValidationError{Subject: "solution", Reason: "initial solution is not valid"}
	}
	for _, st := range sol.States {
		if !st.IsValid() {
			return &ValidationError{Subject: "state", Reason: "initial states are not valid"}
		}
	}
	return nil
}
