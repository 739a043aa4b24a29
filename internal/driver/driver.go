// Package driver runs a simulation to completion: it schedules output points,
// asks the solver to evolve between them, and at every point captures
// snapshots, persists frames, records functionals and flushes gauges.
package driver

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/simrun/internal/dynamo"
	"github.com/san-kum/simrun/internal/frame"
	"github.com/san-kum/simrun/internal/functional"
	"github.com/san-kum/simrun/internal/schedule"
	"github.com/san-kum/simrun/internal/solution"
)

// State is the lifecycle of a run.
type State int

const (
	Unconfigured State = iota
	Validated
	Running
	Completed
	Halted
	Failed
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Validated:
		return "validated"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Halted:
		return "halted"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Snapshot is a deep copy of the solution taken at an output point.
type Snapshot struct {
	Frame    int
	T        float64
	Solution *solution.Solution
}

// Result describes a run that did not fail.
type Result struct {
	Outcome State
	// Status is the solver status of the last evolve call.
	Status dynamo.Status
	// ReachedFinal is set for a halted run already sitting at the final time.
	ReachedFinal bool
	StartFrame   int
	NextFrame    int
}

// Progress is emitted after every output point.
type Progress struct {
	Frame int
	T     float64
	Index int
	Total int
}

type Option func(*Driver)

func WithLogger(l *logrus.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// WithReporter marks which instance of a multi-instance run writes the
// functional log.
func WithReporter(fn func() bool) Option {
	return func(d *Driver) { d.reporter = fn }
}

// WithDerived sets the derived-quantity pass. It fills State.P, sized with
// State.SetNumP.
func WithDerived(fn func(*solution.State) error) Option {
	return func(d *Driver) { d.derived = fn }
}

func WithFunctional(c functional.Computer) Option {
	return func(d *Driver) { d.compute = c }
}

func WithProgress(fn func(Progress)) Option {
	return func(d *Driver) { d.progress = fn }
}

type Driver struct {
	solver Solver
	sol    *solution.Solution
	cfg    Config

	log      *logrus.Logger
	reporter func() bool
	derived  func(*solution.State) error
	compute  functional.Computer
	progress func(Progress)

	recorder *functional.Recorder
	cfgErr   error

	state   State
	counter frame.Counter
	frames  []Snapshot
}

func New(s Solver, sol *solution.Solution, cfg Config, opts ...Option) *Driver {
	d := &Driver{
		solver:   s,
		sol:      sol,
		cfg:      cfg,
		reporter: func() bool { return true },
	}
	for _, opt := range opts {
		opt(d)
	}
	lvl, err := cfg.level()
	if err != nil {
		d.cfgErr = err
	}
	// a caller-supplied logger keeps its own level
	if d.log == nil {
		d.log = logrus.New()
		d.log.SetLevel(lvl)
	}
	d.recorder = functional.New(cfg.FunctionalPath(), d.compute,
		functional.WithReporter(d.reporter),
		functional.WithMode(cfg.FunctionalMode))
	return d
}

// Run drives the solution to the end of the schedule. A halted run returns a
// Result and a nil error.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	if d.state == Running {
		return nil, ErrRunning
	}
	d.state = Unconfigured
	if d.cfgErr != nil {
		return d.fail(d.cfgErr)
	}
	if err := CheckValidity(d.solver, d.sol); err != nil {
		return d.fail(err)
	}
	d.state = Validated

	startFrame := d.sol.StartFrame()
	targets, err := schedule.Compute(d.cfg.Schedule, d.sol.T(), startFrame)
	if err != nil {
		return d.fail(fmt.Errorf("%w: %w", ErrConfiguration, err))
	}
	if len(targets) == 0 {
		reached := d.sol.T() == d.cfg.Schedule.TFinal
		d.log.Warn("No valid output times; halting")
		if reached {
			d.log.Info("Simulation has already reached tfinal")
		}
		d.state = Halted
		return &Result{Outcome: Halted, ReachedFinal: reached, StartFrame: startFrame, NextFrame: startFrame}, nil
	}

	if d.cfg.OutputEnabled() && !d.cfg.Clobber {
		if _, err := os.Stat(d.cfg.OutDir); err == nil {
			return d.fail(fmt.Errorf("%w: %s", ErrOutputConflict, d.cfg.OutDir))
		}
	}

	d.state = Running
	d.counter.Set(startFrame)
	d.log.WithFields(logrus.Fields{
		"style":   d.cfg.Schedule.Style,
		"points":  len(targets),
		"start":   startFrame,
		"outdir":  d.cfg.OutDir,
		"handler": d.cfg.OutputHandler,
		"format":  d.cfg.OutputFormat,
	}).Debug("starting run")

	grid := d.sol.Grid()
	if len(grid.Gauges) > 0 {
		if err := grid.SetupGaugeFiles(d.cfg.OutDir); err != nil {
			return d.fail(fmt.Errorf("%w: %w", ErrPersistence, err))
		}
	}

	status, err := d.loop(ctx, targets)
	if cerr := grid.GaugeStreams().Close(); cerr != nil && err == nil {
		err = fmt.Errorf("%w: close gauges: %w", ErrPersistence, cerr)
	}
	if err != nil {
		return d.fail(err)
	}

	next := d.counter.Value() + 1
	d.sol.SetStartFrame(next)
	d.state = Completed
	return &Result{Outcome: Completed, Status: status, StartFrame: startFrame, NextFrame: next}, nil
}

func (d *Driver) fail(err error) (*Result, error) {
	d.state = Failed
	d.log.WithError(err).Error("run failed")
	return nil, err
}

func (d *Driver) loop(ctx context.Context, targets []schedule.Target) (dynamo.Status, error) {
	var status dynamo.Status
	if !d.solver.IsSetUp() {
		if err := d.solver.Setup(d.sol); err != nil {
			return status, fmt.Errorf("%w: solver setup: %w", ErrConfiguration, err)
		}
		d.solver.ResetDt()
	}
	if err := d.solver.WriteGaugeValues(d.sol); err != nil {
		return status, fmt.Errorf("%w: initial gauge values: %w", ErrPersistence, err)
	}

	if err := d.output(0, len(targets)); err != nil {
		return status, err
	}

	for i, target := range targets[1:] {
		if err := ctx.Err(); err != nil {
			return status, fmt.Errorf("%w: %w", ErrCanceled, err)
		}
		var err error
		if status, err = d.evolve(target); err != nil {
			return status, &EvolutionError{Frame: d.counter.Value() + 1, Target: target, Err: err}
		}
		d.counter.Increment()
		if err := d.output(i+1, len(targets)); err != nil {
			return status, err
		}
	}
	return status, nil
}

func (d *Driver) evolve(target schedule.Target) (dynamo.Status, error) {
	if !target.IsStepMarker() {
		t := target.Time
		return d.solver.EvolveToTime(d.sol, &t)
	}
	var status dynamo.Status
	for n := 0; n < target.Steps; n++ {
		var err error
		if status, err = d.solver.EvolveToTime(d.sol, nil); err != nil {
			return status, err
		}
	}
	return status, nil
}

// output captures output point index of total at the current frame.
func (d *Driver) output(index, total int) error {
	n := d.counter.Value()
	first := index == 0

	if d.cfg.KeepCopy {
		d.frames = append(d.frames, Snapshot{Frame: n, T: d.sol.T(), Solution: d.sol.Clone()})
	}

	if d.cfg.OutputEnabled() {
		if d.derived != nil {
			if err := d.derived(d.sol.State()); err != nil {
				return fmt.Errorf("%w: %w", ErrDerived, err)
			}
			spec := d.writeSpec(false)
			spec.WriteP = true
			if err := d.sol.Write(n, d.cfg.DerivedDir(), d.cfg.FilePrefixP, spec); err != nil {
				return fmt.Errorf("%w: %w", ErrPersistence, err)
			}
		}
		writeAux := d.cfg.WriteAux == AuxAlways || (first && d.cfg.WriteAux == AuxInit)
		if err := d.sol.Write(n, d.cfg.OutDir, d.cfg.FilePrefix, d.writeSpec(writeAux)); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}

	if err := d.recorder.Record(d.sol, first); err != nil {
		return fmt.Errorf("%w: %w", ErrFunctional, err)
	}

	d.log.WithFields(logrus.Fields{"frame": n, "t": d.sol.T()}).
		Infof("Solution %s computed for time t=%f", &d.counter, d.sol.T())

	if err := d.sol.Grid().GaugeStreams().Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if d.progress != nil {
		d.progress(Progress{Frame: n, T: d.sol.T(), Index: index, Total: total})
	}
	return nil
}

func (d *Driver) writeSpec(writeAux bool) solution.WriteSpec {
	return solution.WriteSpec{
		Handler:  d.cfg.OutputHandler,
		Format:   d.cfg.OutputFormat,
		Clobber:  d.cfg.Clobber,
		WriteAux: writeAux,
		Options:  d.cfg.OutputOptions,
	}
}

func (d *Driver) State() State { return d.state }

// Frame is the current value of the frame counter.
func (d *Driver) Frame() int { return d.counter.Value() }

// Time is the current simulation time.
func (d *Driver) Time() float64 { return d.sol.T() }

func (d *Driver) StartFrame() int { return d.sol.StartFrame() }

func (d *Driver) NumEqn() int { return d.sol.State().NumEqn }

func (d *Driver) Grid() *solution.Grid { return d.sol.Grid() }

// Frames returns the retained snapshots in capture order.
func (d *Driver) Frames() []Snapshot {
	return append([]Snapshot(nil), d.frames...)
}

// LoadFrame returns the i-th retained snapshot.
func (d *Driver) LoadFrame(i int) (Snapshot, error) {
	if i < 0 || i >= len(d.frames) {
		return Snapshot{}, fmt.Errorf("cannot load frame %d; only %d frames available", i, len(d.frames))
	}
	return d.frames[i], nil
}

func (d *Driver) OutDir() string         { return d.cfg.OutDir }
func (d *Driver) DerivedDir() string     { return d.cfg.DerivedDir() }
func (d *Driver) FunctionalPath() string { return d.cfg.FunctionalPath() }
func (d *Driver) Config() Config         { return d.cfg }

func (d *Driver) String() string {
	var b strings.Builder
	b.WriteString("Driver attributes:\n")
	fmt.Fprintf(&b, "  outdir = %s\n", d.cfg.OutDir)
	fmt.Fprintf(&b, "  clobber = %t\n", d.cfg.Clobber)
	fmt.Fprintf(&b, "  keep_copy = %t\n", d.cfg.KeepCopy)
	fmt.Fprintf(&b, "  write_aux = %s\n", d.cfg.WriteAux)
	fmt.Fprintf(&b, "  output_handler = %s\n", d.cfg.OutputHandler)
	fmt.Fprintf(&b, "  output_format = %s\n", d.cfg.OutputFormat)
	fmt.Fprintf(&b, "  output_file_prefix = %s\n", d.cfg.FilePrefix)
	fmt.Fprintf(&b, "  output_style = %s\n", d.cfg.Schedule.Style)
	fmt.Fprintf(&b, "  tfinal = %g\n", d.cfg.Schedule.TFinal)
	fmt.Fprintf(&b, "  num_output_times = %d\n", d.cfg.Schedule.NumOutputTimes)
	fmt.Fprintf(&b, "  state = %s\n", d.state)
	if len(d.frames) > 0 {
		b.WriteString("  frames\n")
		for _, f := range d.frames {
			fmt.Fprintf(&b, "    %04d t=%g\n", f.Frame, f.T)
		}
	}
	return b.String()
}
