package experiment

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/simrun/internal/config"
	"github.com/san-kum/simrun/internal/driver"
	"github.com/san-kum/simrun/internal/dynamo"
	"github.com/san-kum/simrun/internal/functional"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.WarnLevel)
	os.Exit(m.Run())
}

func quiet() driver.Option {
	l, _ := logtest.NewNullLogger()
	return driver.WithLogger(l)
}

func testConfig(t *testing.T, model, preset string) *config.Config {
	t.Helper()
	cfg := config.GetPreset(model, preset)
	require.NotNil(t, cfg)
	cfg.Output.Dir = filepath.Join(t.TempDir(), "_output")
	cfg.LogLevel = "warn"
	return cfg
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"lorenz96", "pendulum", "spring_mass", "vanderpol", "wave"}, r.ListModels())
	assert.Equal(t, []string{"euler", "rk4", "rk45"}, r.ListIntegrators())

	_, err := r.GetModel("cartpole", 0)
	assert.EqualError(t, err, "unknown model: cartpole")
	_, err = r.GetIntegrator("verlet")
	assert.EqualError(t, err, "unknown integrator: verlet")

	chain, err := r.GetModel("spring_mass", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, chain.NumCells())
}

func TestGetDensity(t *testing.T) {
	r := NewRegistry()
	sys, err := r.GetModel("wave", 8)
	require.NoError(t, err)

	for name, want := range map[string]string{"energy": "energy", "l2": "l2", "mass": "mass0", "mass1": "mass1"} {
		d, err := r.GetDensity(name, sys)
		require.NoError(t, err, name)
		assert.Equal(t, want, d.Name)
	}
	_, err = r.GetDensity("massive", sys)
	assert.Error(t, err)
	_, err = r.GetDensity("entropy", sys)
	assert.Error(t, err)
}

func TestBuildAndRun(t *testing.T) {
	cfg := testConfig(t, "pendulum", "small")
	cfg.Output.Format = "json"
	cfg.Params = map[string]float64{"damping": 0}

	s, err := Build(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"energy"}, s.Functionals)
	assert.InDelta(t, 0.2, s.Solution.State().Q[0], 1e-12)

	d := s.Driver(quiet())
	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, driver.Completed, res.Outcome)
	assert.Equal(t, 41, res.NextFrame)
	assert.InDelta(t, 20.0, d.Time(), 1e-9)

	samples, err := functional.ReadLog(d.FunctionalPath())
	require.NoError(t, err)
	require.Len(t, samples, 41)
	energy := functional.Series(samples, 0)
	assert.InDelta(t, energy[0], energy[40], 1e-4*abs(energy[0]), "undamped pendulum energy drifted")

	_, err = os.Stat(filepath.Join(cfg.Output.Dir, "frame0040.json"))
	assert.NoError(t, err)
}

func TestBuildWaveWithGaugesAndDerived(t *testing.T) {
	cfg := testConfig(t, "wave", "pluck")
	cfg.Cells = 16
	cfg.Dt = 0.005
	cfg.Output.TFinal = 0.1
	cfg.Output.NumOutputTimes = 2

	s, err := Build(cfg)
	require.NoError(t, err)
	assert.Equal(t, 16, s.Solution.Grid().NumCells)
	assert.Equal(t, []string{"l2"}, s.Derived)

	d := s.Driver(quiet())
	_, err = d.Run(context.Background())
	require.NoError(t, err)

	for _, name := range []string{"gauge0001.txt", "gauge0002.txt", "fort.q0002", "_p/claw_p.q0002"} {
		_, err := os.Stat(filepath.Join(cfg.Output.Dir, name))
		assert.NoError(t, err, name)
	}
	samples, err := functional.ReadLog(d.FunctionalPath())
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Len(t, samples[0].Values, 2)
}

func TestRestartFromFrame(t *testing.T) {
	cfg := testConfig(t, "pendulum", "large")
	cfg.Output.TFinal = 1
	cfg.Output.NumOutputTimes = 4

	s, err := Build(cfg)
	require.NoError(t, err)
	_, err = s.Driver(quiet()).Run(context.Background())
	require.NoError(t, err)

	frame := 2
	cfg.RestartFrame = &frame
	resumed, err := Build(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, resumed.Solution.StartFrame())
	assert.InDelta(t, 0.5, resumed.Solution.T(), 1e-12)

	d := resumed.Driver(quiet())
	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.StartFrame)

	samples, err := functional.ReadLog(d.FunctionalPath())
	require.NoError(t, err)
	// fresh run wrote 5 lines; the resume appends frames 2..6
	assert.Len(t, samples, 10)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		is     error
	}{
		{"unknown model", func(c *config.Config) { c.Model = "cartpole" }, nil},
		{"unknown integrator", func(c *config.Config) { c.Integrator = "verlet" }, nil},
		{"unknown functional", func(c *config.Config) { c.Functionals = []string{"entropy"} }, nil},
		{"bad param", func(c *config.Config) { c.Params = map[string]float64{"zeta": 1} }, nil},
		{"bad init state", func(c *config.Config) { c.InitState = []float64{1, 2, 3} }, dynamo.ErrDimensionMismatch},
		{"bad style", func(c *config.Config) { c.Output.Style = "weekly" }, driver.ErrConfiguration},
		{"missing restart", func(c *config.Config) { f := 7; c.RestartFrame = &f }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, "pendulum", "small")
			tt.mutate(cfg)
			_, err := Build(cfg)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func TestEveryPresetBuilds(t *testing.T) {
	for _, model := range config.ListModels() {
		for _, name := range config.ListPresets(model) {
			cfg := testConfig(t, model, name)
			s, err := Build(cfg)
			if assert.NoError(t, err, "%s/%s", model, name) {
				assert.NoError(t, driver.CheckValidity(s.Solver, s.Solution), "%s/%s", model, name)
			}
		}
	}
}
