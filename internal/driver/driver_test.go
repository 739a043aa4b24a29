package driver_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/san-kum/simrun/internal/driver"
	"github.com/san-kum/simrun/internal/functional"
	"github.com/san-kum/simrun/internal/schedule"
	"github.com/san-kum/simrun/internal/solution"
	"github.com/san-kum/simrun/internal/storage"
)

func constantFunctional(values ...float64) functional.Computer {
	return func(st *solution.State) error {
		st.SetNumF(len(values))
		for k, v := range values {
			st.F[k*st.Grid.NumCells] = v
		}
		return nil
	}
}

func lines(path string) []string {
	data, err := os.ReadFile(path)
	Expect(err).NotTo(HaveOccurred())
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

var _ = Describe("Driver", func() {
	var (
		outdir string
		solver *fakeSolver
		sol    *solution.Solution
		cfg    driver.Config
		logger *logrus.Logger
		hook   *logtest.Hook
	)

	BeforeEach(func() {
		outdir = filepath.Join(GinkgoT().TempDir(), "_output")
		solver = newFakeSolver()
		sol = newSolution()
		cfg = driver.DefaultConfig()
		cfg.OutDir = outdir
		cfg.Schedule = schedule.Policy{Style: schedule.FixedCount, TFinal: 2.0, NumOutputTimes: 2, NStepOut: 1}
		logger, hook = logtest.NewNullLogger()
	})

	run := func(opts ...driver.Option) (*driver.Driver, *driver.Result, error) {
		d := driver.New(solver, sol, cfg, append([]driver.Option{driver.WithLogger(logger)}, opts...)...)
		res, err := d.Run(context.Background())
		return d, res, err
	}

	Describe("end to end with retention and no persistence", func() {
		BeforeEach(func() {
			cfg.KeepCopy = true
			cfg.OutputHandler = storage.HandlerNone
		})

		It("retains one independent snapshot per output time", func() {
			d, res, err := run()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(driver.Completed))
			Expect(d.State()).To(Equal(driver.Completed))

			frames := d.Frames()
			Expect(frames).To(HaveLen(3))
			for i, want := range []float64{0, 1, 2} {
				Expect(frames[i].Frame).To(Equal(i))
				Expect(frames[i].T).To(Equal(want))
				Expect(frames[i].Solution.T()).To(Equal(want))
			}
			Expect(frames[0].Solution.State().Q[0]).To(Equal(0.0))
			Expect(frames[2].Solution.State().Q[0]).To(Equal(2.0))

			Expect(res.Status).To(Equal(solver.last))
			Expect(res.NextFrame).To(Equal(3))
			Expect(sol.StartFrame()).To(Equal(3))
			Expect(outdir).NotTo(BeADirectory())
		})

		It("evolves to every scheduled time exactly once", func() {
			_, _, err := run()
			Expect(err).NotTo(HaveOccurred())
			Expect(solver.targets).To(HaveLen(2))
			Expect(*solver.targets[0]).To(Equal(1.0))
			Expect(*solver.targets[1]).To(Equal(2.0))
			Expect(solver.setups).To(Equal(1))
			Expect(solver.resets).To(Equal(1))
		})

		It("logs a progress line per output point", func() {
			_, _, err := run()
			Expect(err).NotTo(HaveOccurred())
			var msgs []string
			for _, e := range hook.AllEntries() {
				if e.Level == logrus.InfoLevel {
					msgs = append(msgs, e.Message)
				}
			}
			Expect(msgs).To(Equal([]string{
				"Solution 0000 computed for time t=0.000000",
				"Solution 0001 computed for time t=1.000000",
				"Solution 0002 computed for time t=2.000000",
			}))
			Expect(hook.LastEntry().Data).To(HaveKeyWithValue("frame", 2))
		})

		It("reports progress", func() {
			var seen []driver.Progress
			_, _, err := run(driver.WithProgress(func(p driver.Progress) { seen = append(seen, p) }))
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(HaveLen(3))
			Expect(seen[2]).To(Equal(driver.Progress{Frame: 2, T: 2, Index: 2, Total: 3}))
		})

		It("sets the solver up only once across runs", func() {
			d := driver.New(solver, sol, cfg, driver.WithLogger(logger))
			_, err := d.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			res, err := d.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(solver.setups).To(Equal(1))
			Expect(solver.resets).To(Equal(1))
			Expect(res.StartFrame).To(Equal(3))
			Expect(res.NextFrame).To(Equal(6))
			Expect(d.Frames()).To(HaveLen(6))

			snap, err := d.LoadFrame(5)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Frame).To(Equal(5))
			_, err = d.LoadFrame(6)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("functional log", func() {
		It("writes one line per output point", func() {
			cfg.OutputHandler = storage.HandlerNone
			d, _, err := run(driver.WithFunctional(constantFunctional(1.0, 2.0)))
			Expect(err).NotTo(HaveOccurred())

			log := lines(d.FunctionalPath())
			Expect(log).To(HaveLen(3))
			for _, l := range log {
				Expect(l).To(HaveSuffix("1.0 2.0"))
			}
			Expect(strings.Fields(log[0])[0]).To(Equal("0.0"))
			Expect(d.FunctionalPath()).To(Equal(filepath.Join(outdir, "F.txt")))
		})

		It("is not written by a non-reporting instance", func() {
			d, _, err := run(
				driver.WithFunctional(constantFunctional(1.0)),
				driver.WithReporter(func() bool { return false }))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.FunctionalPath()).NotTo(BeAnExistingFile())
		})

		It("fails the run when the computation fails", func() {
			d, _, err := run(driver.WithFunctional(func(*solution.State) error { return errBoom }))
			Expect(err).To(MatchError(driver.ErrFunctional))
			Expect(errors.Is(err, errBoom)).To(BeTrue())
			Expect(d.State()).To(Equal(driver.Failed))
		})
	})

	Describe("resuming", func() {
		It("continues frame numbering and appends to the functional log", func() {
			cfg.Schedule.TFinal = 1.0
			first := driver.New(solver, sol, cfg, driver.WithLogger(logger),
				driver.WithFunctional(constantFunctional(7)))
			_, err := first.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.StartFrame()).To(Equal(3))

			restarted := newSolution()
			Expect(restarted.Read(2, outdir, "", solution.WriteSpec{Handler: "native", Format: "ascii"})).To(Succeed())
			Expect(restarted.T()).To(Equal(1.0))
			restarted.SetStartFrame(3)

			cfg.Schedule.TFinal = 2.0
			second := driver.New(newFakeSolver(), restarted, cfg, driver.WithLogger(logger),
				driver.WithFunctional(constantFunctional(7)))
			res, err := second.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.StartFrame).To(Equal(3))
			Expect(res.NextFrame).To(Equal(6))

			for _, n := range []string{"fort.q0000", "fort.q0002", "fort.q0003", "fort.q0005"} {
				Expect(filepath.Join(outdir, n)).To(BeAnExistingFile())
			}
			Expect(filepath.Join(outdir, "fort.q0006")).NotTo(BeAnExistingFile())

			log := lines(filepath.Join(outdir, "F.txt"))
			Expect(log).To(Equal([]string{
				"0.0 7.0", "0.5 7.0", "1.0 7.0",
				"1.0 7.0", "1.5 7.0", "2.0 7.0",
			}))
		})
	})

	Describe("output protection", func() {
		BeforeEach(func() {
			cfg.Clobber = false
			Expect(os.MkdirAll(outdir, 0755)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(outdir, "keep.txt"), []byte("x"), 0644)).To(Succeed())
		})

		It("refuses to overwrite an existing directory before any write", func() {
			sol = newSolution(0.5)
			d, res, err := run(driver.WithFunctional(constantFunctional(1)))
			Expect(res).To(BeNil())
			Expect(err).To(MatchError(driver.ErrOutputConflict))
			Expect(d.State()).To(Equal(driver.Failed))

			entries, err := os.ReadDir(outdir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Name()).To(Equal("keep.txt"))
			Expect(solver.setups).To(BeZero())
			Expect(solver.targets).To(BeEmpty())
		})

		It("is skipped when output is disabled", func() {
			cfg.OutputFormat = "none"
			_, res, err := run()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(driver.Completed))
		})
	})

	Describe("empty schedule", func() {
		It("halts without side effects", func() {
			cfg.Schedule = schedule.Policy{Style: schedule.ExplicitTimes, TFinal: 2.0}
			d, res, err := run(driver.WithFunctional(constantFunctional(1)))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(driver.Halted))
			Expect(res.ReachedFinal).To(BeFalse())
			Expect(d.State()).To(Equal(driver.Halted))
			Expect(outdir).NotTo(BeADirectory())
			Expect(solver.setups).To(BeZero())
			Expect(d.Frame()).To(BeZero())
		})

		It("reports an already reached final time", func() {
			sol.SetT(2.0)
			cfg.Schedule.NumOutputTimes = -1
			_, res, err := run()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(driver.Halted))
			Expect(res.ReachedFinal).To(BeTrue())
		})
	})

	Describe("fixed step output", func() {
		BeforeEach(func() {
			cfg.Schedule = schedule.Policy{Style: schedule.FixedSteps, NumOutputTimes: 3, NStepOut: 4}
		})

		It("takes nstepout unconstrained steps per output point", func() {
			_, res, err := run()
			Expect(err).NotTo(HaveOccurred())
			Expect(solver.targets).To(HaveLen(12))
			Expect(solver.unconstrainedCalls()).To(Equal(12))
			Expect(res.NextFrame).To(Equal(4))
			Expect(sol.T()).To(Equal(3.0))
			Expect(filepath.Join(outdir, "fort.q0003")).To(BeAnExistingFile())
		})

		It("shortens the schedule by the start frame", func() {
			sol.SetStartFrame(2)
			_, res, err := run()
			Expect(err).NotTo(HaveOccurred())
			Expect(solver.targets).To(HaveLen(4))
			Expect(res.StartFrame).To(Equal(2))
			Expect(res.NextFrame).To(Equal(4))
			Expect(filepath.Join(outdir, "fort.q0002")).To(BeAnExistingFile())
			Expect(filepath.Join(outdir, "fort.q0000")).NotTo(BeAnExistingFile())
		})
	})

	Describe("gauges", func() {
		BeforeEach(func() {
			sol = newSolution(0.6)
		})

		It("writes, flushes and closes one stream per gauge", func() {
			d, _, err := run()
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Grid().GaugeStreams().Len()).To(Equal(1))
			Expect(d.Grid().GaugeStreams().Open()).To(BeZero())

			g := lines(filepath.Join(outdir, "gauge0001.txt"))
			Expect(g).To(HaveLen(4))
			Expect(g[0]).To(Equal("# gauge 1 x=0.6 cell=2"))
		})

		It("closes streams when evolution fails", func() {
			solver.failAt = 2
			d, res, err := run()
			Expect(res).To(BeNil())
			Expect(err).To(MatchError(driver.ErrEvolution))
			Expect(errors.Is(err, errBoom)).To(BeTrue())

			var evo *driver.EvolutionError
			Expect(errors.As(err, &evo)).To(BeTrue())
			Expect(evo.Frame).To(Equal(2))
			Expect(evo.Target.Time).To(Equal(2.0))

			Expect(d.State()).To(Equal(driver.Failed))
			Expect(d.Grid().GaugeStreams().Open()).To(BeZero())
			Expect(sol.StartFrame()).To(BeZero())
		})

		It("closes streams when the context is cancelled", func() {
			cfg.KeepCopy = true
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			d := driver.New(solver, sol, cfg, driver.WithLogger(logger))
			_, err := d.Run(ctx)
			Expect(err).To(MatchError(context.Canceled))
			Expect(err).To(MatchError(driver.ErrCanceled))
			Expect(d.Frames()).To(HaveLen(1))
			Expect(solver.targets).To(BeEmpty())
			Expect(d.Grid().GaugeStreams().Open()).To(BeZero())
		})
	})

	Describe("persistence", func() {
		It("writes aux arrays only at the initial point for the init policy", func() {
			cfg.OutputFormat = "json"
			cfg.WriteAux = driver.AuxInit
			_, _, err := run()
			Expect(err).NotTo(HaveOccurred())

			b, err := storage.Lookup("native", "json")
			Expect(err).NotTo(HaveOccurred())
			f0, err := b.Read(outdir, "", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(f0.Aux).To(HaveLen(4))
			f1, err := b.Read(outdir, "", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(f1.Aux).To(BeEmpty())
		})

		It("writes derived quantities under _p", func() {
			cfg.OutputFormat = "json"
			d, _, err := run(driver.WithDerived(func(st *solution.State) error {
				st.SetNumP(1)
				for i := range st.P {
					st.P[i] = 2 * st.Q[i]
				}
				return nil
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.DerivedDir()).To(Equal(filepath.Join(outdir, "_p")))
			for _, n := range []string{"claw_p0000.json", "claw_p0001.json", "claw_p0002.json"} {
				Expect(filepath.Join(d.DerivedDir(), n)).To(BeAnExistingFile())
			}
			b, _ := storage.Lookup("native", "json")
			p, err := b.Read(d.DerivedDir(), "claw_p", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Q).To(Equal([]float64{4, 4, 4, 4}))
		})

		It("reports a failing derived pass as its own kind", func() {
			cfg.OutputFormat = "json"
			d, res, err := run(driver.WithDerived(func(*solution.State) error { return errBoom }))
			Expect(res).To(BeNil())
			Expect(err).To(MatchError(driver.ErrDerived))
			Expect(errors.Is(err, errBoom)).To(BeTrue())
			Expect(errors.Is(err, driver.ErrPersistence)).To(BeFalse())
			Expect(d.State()).To(Equal(driver.Failed))
		})

		It("fails with a persistence error for an unknown backend", func() {
			sol = newSolution(0.5)
			cfg.OutputHandler = "petsc"
			d, _, err := run()
			Expect(err).To(MatchError(driver.ErrPersistence))
			Expect(errors.Is(err, storage.ErrUnknownBackend)).To(BeTrue())
			Expect(d.Grid().GaugeStreams().Open()).To(BeZero())
			Expect(solver.targets).To(BeEmpty())
		})
	})

	Describe("configuration", func() {
		It("rejects an unknown output style", func() {
			cfg.Schedule.Style = schedule.Style(9)
			d, _, err := run()
			Expect(err).To(MatchError(driver.ErrConfiguration))
			Expect(errors.Is(err, schedule.ErrUnknownStyle)).To(BeTrue())
			Expect(d.State()).To(Equal(driver.Failed))
			Expect(outdir).NotTo(BeADirectory())
		})

		It("rejects an unknown log level", func() {
			cfg.LogLevel = "loud"
			_, _, err := run()
			Expect(err).To(MatchError(driver.ErrConfiguration))
		})

		It("leaves the level of a supplied logger alone", func() {
			logger.SetLevel(logrus.WarnLevel)
			cfg.LogLevel = "debug"
			cfg.OutputHandler = storage.HandlerNone
			_, _, err := run()
			Expect(err).NotTo(HaveOccurred())
			Expect(logger.GetLevel()).To(Equal(logrus.WarnLevel))
			for _, e := range hook.AllEntries() {
				Expect(e.Level).To(BeNumerically("<=", logrus.WarnLevel))
			}
		})

		It("rejects an invalid solver with its reason", func() {
			solver.valid, solver.reason = false, "cfl number too large"
			_, _, err := run()
			Expect(err).To(MatchError(driver.ErrValidation))
			Expect(err.Error()).To(ContainSubstring("cfl number too large"))
			Expect(outdir).NotTo(BeADirectory())
		})

		It("exposes the solution through a read-only facade", func() {
			d := driver.New(solver, sol, cfg, driver.WithLogger(logger))
			Expect(d.State()).To(Equal(driver.Unconfigured))
			Expect(d.NumEqn()).To(Equal(1))
			Expect(d.Time()).To(BeZero())
			Expect(d.StartFrame()).To(BeZero())
			Expect(d.OutDir()).To(Equal(outdir))
			Expect(d.Config().FilePrefixP).To(Equal("claw_p"))
			Expect(d.String()).To(ContainSubstring("output_style = fixed-count"))
		})
	})
})
