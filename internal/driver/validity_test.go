package driver_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/simrun/internal/driver"
	"github.com/san-kum/simrun/internal/solution"
)

func TestCheckValidity(t *testing.T) {
	var nilSolver *fakeSolver
	invalid := newFakeSolver()
	invalid.valid, invalid.reason = false, "dt_initial must be positive"

	badState := newSolution()
	badState.State().Q[1] = math.NaN()

	tests := []struct {
		name    string
		solver  any
		sol     *solution.Solution
		kind    error
		subject string
	}{
		{"no solver", nil, newSolution(), driver.ErrNoSolver, ""},
		{"typed nil solver", nilSolver, newSolution(), driver.ErrNoSolver, ""},
		{"wrong type", "solver", newSolution(), driver.ErrSolverType, ""},
		{"invalid solver", invalid, newSolution(), driver.ErrValidation, "solver"},
		{"no solution", newFakeSolver(), nil, driver.ErrNoSolution, ""},
		{"empty solution", newFakeSolver(), solution.New(), driver.ErrValidation, "solution"},
		{"nil state", newFakeSolver(), solution.New(nil), driver.ErrValidation, "solution"},
		{"nil later patch", newFakeSolver(), solution.New(newSolution().State(), nil), driver.ErrValidation, "solution"},
		{"invalid state", newFakeSolver(), badState, driver.ErrValidation, "state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := driver.CheckValidity(tt.solver, tt.sol)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			if tt.subject == "" {
				assert.ErrorIs(t, err, driver.ErrConfiguration)
				return
			}
			var verr *driver.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.subject, verr.Subject)
			assert.NotErrorIs(t, err, driver.ErrConfiguration)
		})
	}
}

func TestCheckValidityReasonVerbatim(t *testing.T) {
	s := newFakeSolver()
	s.valid, s.reason = false, "num_waves must be set"
	err := driver.CheckValidity(s, newSolution())
	assert.Contains(t, err.Error(), "because num_waves must be set")
}

func TestCheckValidityIsIdempotent(t *testing.T) {
	s := newFakeSolver()
	sol := newSolution(0.25)
	before := sol.Clone()

	for i := 0; i < 3; i++ {
		require.NoError(t, driver.CheckValidity(s, sol))
	}
	assert.Equal(t, before.State().Q, sol.State().Q)
	assert.Equal(t, before.T(), sol.T())
	assert.False(t, s.setUp)
	assert.Nil(t, sol.Grid().GaugeStreams())
}

func TestParseAuxPolicy(t *testing.T) {
	for in, want := range map[string]driver.AuxPolicy{
		"":       driver.AuxNever,
		"never":  driver.AuxNever,
		"Init":   driver.AuxInit,
		"always": driver.AuxAlways,
	} {
		got, err := driver.ParseAuxPolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := driver.ParseAuxPolicy("sometimes")
	assert.ErrorIs(t, err, driver.ErrConfiguration)
}
