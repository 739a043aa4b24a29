package solver

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/simrun/internal/dynamo"
	"github.com/san-kum/simrun/internal/integrators"
	"github.com/san-kum/simrun/internal/physics"
	"github.com/san-kum/simrun/internal/solution"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.WarnLevel)
	os.Exit(m.Run())
}

// decay is dq/dt = -q on one cell.
type decay struct{}

func (decay) Derive(q dynamo.State, t float64) dynamo.State { return q.Scale(-1) }
func (decay) NumEqn() int                                   { return 1 }
func (decay) NumCells() int                                 { return 1 }

type explode struct{ decay }

func (explode) Derive(q dynamo.State, t float64) dynamo.State {
	return dynamo.State{math.NaN()}
}

func pointSolution(q ...float64) *solution.Solution {
	grid := solution.NewGrid(solution.NewDimension("x", 0, 1, 1))
	st := solution.NewState(grid, len(q), 0)
	copy(st.Q, q)
	return solution.New(st)
}

func TestIsValid(t *testing.T) {
	s := New(decay{}, integrators.NewRK4())
	ok, reason := s.IsValid()
	assert.True(t, ok, reason)

	s.DtInitial = 0
	ok, reason = s.IsValid()
	assert.False(t, ok)
	assert.Contains(t, reason, "dt_initial")

	ok, reason = New(nil, integrators.NewRK4()).IsValid()
	assert.False(t, ok)
	assert.Equal(t, "no system", reason)
}

func TestSetupChecksLayout(t *testing.T) {
	s := New(physics.NewPendulum(), integrators.NewRK4())
	err := s.Setup(pointSolution(1))
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
	assert.False(t, s.IsSetUp())

	require.NoError(t, s.Setup(pointSolution(1, 0)))
	assert.True(t, s.IsSetUp())
}

func TestEvolveToTimeLandsExactly(t *testing.T) {
	s := New(decay{}, integrators.NewRK4())
	s.DtInitial, s.Dt = 0.03, 0.03
	sol := pointSolution(1)
	require.NoError(t, s.Setup(sol))

	tend := 1.0
	status, err := s.EvolveToTime(sol, &tend)
	require.NoError(t, err)

	assert.Equal(t, 1.0, sol.T())
	assert.Equal(t, 34, status.NumSteps)
	assert.InDelta(t, 0.01, status.DtLast, 1e-9)
	assert.InDelta(t, math.Exp(-1), sol.State().Q[0], 1e-6)
	assert.Equal(t, status, s.Status())
}

func TestEvolveSingleStep(t *testing.T) {
	s := New(decay{}, integrators.NewEuler())
	s.Dt = 0.1
	sol := pointSolution(1)

	status, err := s.EvolveToTime(sol, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, status.NumSteps)
	assert.InDelta(t, 0.1, sol.T(), 1e-15)
	assert.InDelta(t, 0.9, sol.State().Q[0], 1e-15)
}

func TestEvolveToCurrentTimeIsNoop(t *testing.T) {
	s := New(decay{}, integrators.NewRK4())
	sol := pointSolution(1)
	tend := 0.0
	status, err := s.EvolveToTime(sol, &tend)
	require.NoError(t, err)
	assert.Zero(t, status.NumSteps)
	assert.Equal(t, 1.0, sol.State().Q[0])
}

func TestInvalidStateFails(t *testing.T) {
	s := New(explode{}, integrators.NewEuler())
	sol := pointSolution(1)
	tend := 1.0
	_, err := s.EvolveToTime(sol, &tend)

	var simErr *dynamo.SimulationError
	require.True(t, errors.As(err, &simErr))
	assert.ErrorIs(t, err, dynamo.ErrInvalidState)
	assert.Equal(t, 0, simErr.Step)
	assert.Equal(t, 1.0, sol.State().Q[0], "a failed step must not touch the state")
}

func TestMaxSteps(t *testing.T) {
	s := New(decay{}, integrators.NewEuler())
	s.Dt = 0.1
	s.MaxSteps = 3
	tend := 1.0
	_, err := s.EvolveToTime(pointSolution(1), &tend)
	assert.ErrorIs(t, err, dynamo.ErrMaxSteps)
}

func TestAdaptiveStepping(t *testing.T) {
	s := New(physics.NewPendulum(), integrators.NewRK45())
	s.Tolerance = 1e-8
	s.DtInitial, s.Dt = 0.5, 0.5
	s.DtMax = 0.5
	sol := pointSolution(math.Pi/4, 0)
	require.NoError(t, s.Setup(sol))

	tend := 2.0
	status, err := s.EvolveToTime(sol, &tend)
	require.NoError(t, err)
	assert.Equal(t, 2.0, sol.T())
	assert.Less(t, status.DtMin, 0.5)
	assert.LessOrEqual(t, s.Dt, 0.5)

	s.ResetDt()
	assert.Equal(t, 0.5, s.Dt)
}

func TestAdaptiveSteppingRetriesRejectedSteps(t *testing.T) {
	adaptive := New(physics.NewPendulum(), integrators.NewRK45())
	adaptive.Tolerance = 1e-9
	adaptive.DtInitial, adaptive.Dt = 0.5, 0.5
	adaptive.DtMax = 0.5
	sol := pointSolution(math.Pi/3, 0)
	require.NoError(t, adaptive.Setup(sol))

	tend := 3.0
	status, err := adaptive.EvolveToTime(sol, &tend)
	require.NoError(t, err)
	assert.Positive(t, status.Rejected)
	assert.Equal(t, 3.0, sol.T())

	fine := New(physics.NewPendulum(), integrators.NewRK4())
	fine.DtInitial, fine.Dt = 1e-3, 1e-3
	ref := pointSolution(math.Pi/3, 0)
	require.NoError(t, fine.Setup(ref))
	_, err = fine.EvolveToTime(ref, &tend)
	require.NoError(t, err)

	assert.InDelta(t, ref.State().Q[0], sol.State().Q[0], 1e-6)
	assert.InDelta(t, ref.State().Q[1], sol.State().Q[1], 1e-6)
}

func TestAdaptiveSteppingGivesUpBelowDtMin(t *testing.T) {
	s := New(physics.NewPendulum(), integrators.NewRK45())
	s.Tolerance = 1e-14
	s.DtInitial, s.Dt = 0.5, 0.5
	s.DtMin = 0.1
	sol := pointSolution(math.Pi/3, 0)
	require.NoError(t, s.Setup(sol))

	tend := 1.0
	_, err := s.EvolveToTime(sol, &tend)
	assert.ErrorIs(t, err, dynamo.ErrStepTooSmall)
	assert.Zero(t, sol.T())
}

func TestGaugeValuesRecordedEveryStep(t *testing.T) {
	dir := t.TempDir()
	grid := solution.NewGrid(solution.NewDimension("x", 0, 1, 4), 0.6)
	st := solution.NewState(grid, 2, 0)
	copy(st.Q, physics.NewWave(4).DefaultState())
	sol := solution.New(st)
	require.NoError(t, grid.SetupGaugeFiles(dir))

	s := New(physics.NewWave(4), integrators.NewRK4())
	s.Dt = 0.01
	require.NoError(t, s.WriteGaugeValues(sol))
	tend := 0.05
	_, err := s.EvolveToTime(sol, &tend)
	require.NoError(t, err)
	require.NoError(t, grid.GaugeStreams().Close())

	data, err := os.ReadFile(filepath.Join(dir, "gauge0001.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// header, initial values, five steps
	require.Len(t, lines, 7)
	assert.Equal(t, "# gauge 1 x=0.6 cell=2", lines[0])
	assert.Len(t, strings.Fields(lines[6]), 3)
}
