package driver

import (
	"errors"
	"fmt"

	"github.com/san-kum/simrun/internal/schedule"
)

// Error kinds. Every error returned by Run or CheckValidity matches exactly
// one of these with errors.Is.
var (
	ErrConfiguration  = errors.New("driver: configuration error")
	ErrValidation     = errors.New("driver: validation error")
	ErrOutputConflict = errors.New("driver: refusing to overwrite existing output data; delete/move the directory or enable clobber")
	ErrEvolution      = errors.New("driver: evolution failed")
	ErrPersistence    = errors.New("driver: persistence failed")
	ErrFunctional     = errors.New("driver: functional computation failed")
	ErrDerived        = errors.New("driver: derived quantity computation failed")
	ErrCanceled       = errors.New("driver: run canceled")
	ErrRunning        = errors.New("driver: run already in progress")
)

var (
	ErrNoSolver   = fmt.Errorf("%w: no solver set", ErrConfiguration)
	ErrSolverType = fmt.Errorf("%w: solver is not of correct type", ErrConfiguration)
	ErrNoSolution = fmt.Errorf("%w: no solution set", ErrConfiguration)
)

// ValidationError carries the reason a collaborator reported itself invalid.
type ValidationError struct {
	Subject string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("driver: %s is not valid", e.Subject)
	}
	return fmt.Sprintf("driver: %s failed to initialize properly because %s", e.Subject, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// EvolutionError wraps a solver failure with the output point it was heading to.
type EvolutionError struct {
	Frame  int
	Target schedule.Target
	Err    error
}

func (e *EvolutionError) Error() string {
	if e.Target.IsStepMarker() {
		return fmt.Sprintf("driver: evolving frame %04d (%d steps): %v", e.Frame, e.Target.Steps, e.Err)
	}
	return fmt.Sprintf("driver: evolving frame %04d (target t=%g): %v", e.Frame, e.Target.Time, e.Err)
}

func (e *EvolutionError) Unwrap() error { return e.Err }

func (e *EvolutionError) Is(target error) bool { return target == ErrEvolution }
