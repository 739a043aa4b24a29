package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/simrun/internal/analysis"
	"github.com/san-kum/simrun/internal/config"
	"github.com/san-kum/simrun/internal/driver"
	"github.com/san-kum/simrun/internal/ensemble"
	"github.com/san-kum/simrun/internal/experiment"
	"github.com/san-kum/simrun/internal/functional"
	"github.com/san-kum/simrun/internal/gauge"
	"github.com/san-kum/simrun/internal/storage"
	"github.com/san-kum/simrun/internal/tui"
)

var (
	dataDir  string
	logLevel string

	configFile  string
	preset      string
	integrator  string
	dt          float64
	tfinal      float64
	numOut      int
	style       string
	outDir      string
	format      string
	handler     string
	clobber     bool
	cells       int
	restart     int
	functionals []string
	gauges      []float64
	useTUI      bool
	members     int
	parallel    int
	sweeps      []string

	gaugeID   int
	component int
	phaseWith int
	svgPath   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "simrun",
		Short:        "time-stepping simulation runner",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".simrun", "run catalog directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "console log level (overrides config)")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run a simulation and write its output frames",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	runCmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator")
	runCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "initial timestep")
	runCmd.Flags().Float64Var(&tfinal, "tfinal", config.DefaultTFinal, "final time")
	runCmd.Flags().IntVar(&numOut, "nout", config.DefaultNumOutputTimes, "number of output times after the initial one")
	runCmd.Flags().StringVar(&style, "style", "fixed-count", "output style: fixed-count, explicit-times or fixed-steps")
	runCmd.Flags().StringVar(&outDir, "outdir", "_output", "output directory")
	runCmd.Flags().StringVar(&format, "format", "ascii", "output format: ascii, csv, json, yaml, sqlite or none")
	runCmd.Flags().StringVar(&handler, "handler", storage.HandlerNative, "output handler")
	runCmd.Flags().BoolVar(&clobber, "clobber", true, "overwrite an existing output directory")
	runCmd.Flags().IntVar(&cells, "cells", config.DefaultCells, "cells for spatially extended models")
	runCmd.Flags().IntVar(&restart, "restart", -1, "resume from this output frame")
	runCmd.Flags().StringSliceVar(&functionals, "functional", nil, "functionals to log (energy, l2, massN)")
	runCmd.Flags().Float64SliceVar(&gauges, "gauge", nil, "gauge locations")
	runCmd.Flags().BoolVar(&useTUI, "tui", false, "show a live progress panel")
	runCmd.Flags().IntVar(&members, "ensemble", 1, "number of ensemble members")
	runCmd.Flags().IntVar(&parallel, "parallel", 0, "members run at once (0 = all)")
	runCmd.Flags().StringArrayVar(&sweeps, "sweep", nil, "parameter sweep name=v1,v2,... (one member per grid point)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the functional log of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "spectrum and phase portrait of a gauge",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().IntVar(&gaugeID, "gauge", 1, "gauge number")
	analyzeCmd.Flags().IntVar(&component, "component", 0, "conserved component to analyze")
	analyzeCmd.Flags().IntVar(&phaseWith, "phase", -1, "plot component against this one")
	analyzeCmd.Flags().StringVar(&svgPath, "svg", "", "also write the phase portrait as svg")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			models := config.ListModels()
			if len(args) > 0 {
				models = args
			}
			for _, m := range models {
				presets := config.ListPresets(m)
				if len(presets) == 0 {
					fmt.Printf("no presets for model: %s\n", m)
					continue
				}
				fmt.Printf("%s: %s\n", m, strings.Join(presets, ", "))
			}
			return nil
		},
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list models and integrators",
		Run: func(cmd *cobra.Command, args []string) {
			r := experiment.NewRegistry()
			fmt.Printf("models: %s\n", strings.Join(r.ListModels(), ", "))
			fmt.Printf("integrators: %s\n", strings.Join(r.ListIntegrators(), ", "))
		},
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, analyzeCmd, presetsCmd, modelsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		cfg.Model = args[0]
	}

	if preset != "" {
		p := config.GetPreset(cfg.Model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(cfg.Model))
		}
		cfg = p
	}

	// config file overrides preset
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		if len(args) > 0 {
			cfg.Model = args[0]
		}
	}

	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	// explicit flags win over everything
	flags := cmd.Flags()
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("tfinal") {
		cfg.Output.TFinal = tfinal
	}
	if flags.Changed("nout") {
		cfg.Output.NumOutputTimes = numOut
	}
	if flags.Changed("style") {
		cfg.Output.Style = style
	}
	if flags.Changed("outdir") {
		cfg.Output.Dir = outDir
	}
	if flags.Changed("format") {
		cfg.Output.Format = format
	}
	if flags.Changed("handler") {
		cfg.Output.Handler = handler
	}
	if flags.Changed("clobber") {
		cfg.Output.Clobber = clobber
	}
	if flags.Changed("cells") {
		cfg.Cells = cells
	}
	if flags.Changed("restart") && restart >= 0 {
		cfg.RestartFrame = &restart
	}
	if flags.Changed("functional") {
		cfg.Functionals = functionals
	}
	if flags.Changed("gauge") {
		cfg.Gauges = gauges
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() { _ = storage.CloseDatabases() }()

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	if members > 1 || len(sweeps) > 0 {
		return runEnsemble(ctx, cfg, st)
	}

	setup, err := experiment.Build(cfg)
	if err != nil {
		return err
	}

	var opts []driver.Option
	var mon *tui.Monitor
	if useTUI {
		mon = tui.New(fmt.Sprintf("%s / %s", cfg.Model, cfg.Integrator), setup.Config.OutDir)
		opts = append(opts, driver.WithProgress(mon.Observe))
		// the panel owns the terminal; keep only warnings
		setup.Config.LogLevel = logrus.WarnLevel.String()
	}
	d := setup.Driver(opts...)

	start := time.Now()
	var res *driver.Result
	if mon != nil {
		res, err = mon.Run(ctx, d.Run)
	} else {
		res, err = d.Run(ctx)
	}
	elapsed := time.Since(start)

	meta := storage.RunMetadata{
		Model:       cfg.Model,
		Integrator:  cfg.Integrator,
		Style:       cfg.Output.Style,
		TFinal:      cfg.Output.TFinal,
		OutDir:      setup.Config.OutDir,
		Format:      setup.Config.OutputFormat,
		StartFrame:  setup.Solution.StartFrame(),
		FinalTime:   d.Time(),
		Functionals: setup.Functionals,
		Outcome:     d.State().String(),
	}
	if len(setup.Functionals) > 0 {
		meta.FunctionalLog = d.FunctionalPath()
	}
	if res != nil {
		meta.StartFrame = res.StartFrame
		meta.NextFrame = res.NextFrame
		meta.Status = res.Status
	}
	if err != nil {
		meta.Error = err.Error()
	}
	runID, serr := st.Save(meta)
	if serr != nil {
		return errors.Join(err, serr)
	}
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("outcome: %s\n", res.Outcome)
	fmt.Printf("frames: %d..%d\n", res.StartFrame, res.NextFrame-1)
	fmt.Printf("final time: %g\n", d.Time())
	fmt.Printf("solver: %s\n", res.Status)
	return nil
}

func runEnsemble(ctx context.Context, cfg *config.Config, st *storage.Store) error {
	size := members
	var points []map[string]float64
	if len(sweeps) > 0 {
		sw, err := ensemble.ParseSweep(sweeps)
		if err != nil {
			return err
		}
		points = sw.Points()
		size = len(points)
	}

	base := cfg.Output.Dir
	factory := func(rank int, reporter func() bool) (*driver.Driver, error) {
		member := cfg.Clone()
		member.Output.Dir = filepath.Join(base, fmt.Sprintf("rank%d", rank))
		if points != nil {
			if member.Params == nil {
				member.Params = make(map[string]float64)
			}
			maps.Copy(member.Params, points[rank])
		}
		setup, err := experiment.Build(member)
		if err != nil {
			return nil, err
		}
		return setup.Driver(driver.WithReporter(reporter)), nil
	}

	e := ensemble.New(size, factory)
	e.SetLimit(parallel)

	start := time.Now()
	results, err := e.Run(ctx)
	if err != nil {
		return err
	}

	for rank, res := range results {
		runID, err := st.Save(storage.RunMetadata{
			Model:       cfg.Model,
			Integrator:  cfg.Integrator,
			Style:       cfg.Output.Style,
			TFinal:      cfg.Output.TFinal,
			OutDir:      filepath.Join(base, fmt.Sprintf("rank%d", rank)),
			Format:      cfg.Output.Format,
			StartFrame:  res.StartFrame,
			NextFrame:   res.NextFrame,
			Outcome:     res.Outcome.String(),
			Functionals: cfg.Functionals,
			Status:      res.Status,
		})
		if err != nil {
			return err
		}
		if points != nil {
			fmt.Printf("rank %d %v: %s (%s)\n", rank, points[rank], res.Outcome, runID)
		} else {
			fmt.Printf("rank %d: %s (%s)\n", rank, res.Outcome, runID)
		}
	}
	fmt.Printf("ensemble of %d completed in %v\n", len(results), time.Since(start))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tTFINAL\tFRAMES\tINTEG\tOUTCOME\tOUTDIR")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d..%d\t%s\t%s\t%s\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.TFinal,
			run.StartFrame,
			max(run.NextFrame-1, run.StartFrame),
			run.Integrator,
			run.Outcome,
			run.OutDir,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	if meta.FunctionalLog == "" {
		return fmt.Errorf("run %s recorded no functionals", meta.ID)
	}

	samples, err := functional.ReadLog(meta.FunctionalLog)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("samples: %d (t=%g..%g)\n\n", len(samples), samples[0].T, samples[len(samples)-1].T)

	for k := range samples[0].Values {
		caption := fmt.Sprintf("F%d vs output", k)
		if k < len(meta.Functionals) {
			caption = meta.Functionals[k] + " vs output"
		}
		graph := asciigraph.Plot(functional.Series(samples, k),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	tr, err := analysis.ReadGauge(filepath.Join(meta.OutDir, gauge.FileName(gaugeID)))
	if err != nil {
		return err
	}
	series := tr.Component(component)

	spec, err := analysis.PowerSpectrum(tr.T, series)
	if err != nil {
		return err
	}

	fmt.Printf("gauge %d at x=%g (cell %d), %d samples\n", tr.ID, tr.Location, tr.Cell, tr.Len())
	fmt.Printf("dominant frequency: %.6g\n", spec.Peak())
	if f := spec.Peak(); f > 0 {
		fmt.Printf("dominant period: %.6g\n", 1/f)
	}
	fmt.Println()

	fmt.Println(asciigraph.Plot(series,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("q%d vs time", component)),
	))
	fmt.Println()
	fmt.Println(asciigraph.Plot(spec.Amplitude,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("amplitude spectrum"),
	))

	if phaseWith >= 0 {
		fmt.Println()
		fmt.Printf("phase portrait q%d vs q%d\n", phaseWith, component)
		portrait := analysis.NewPhasePortrait(series, tr.Component(phaseWith))
		fmt.Print(portrait.ASCII(70, 20))
		if svgPath != "" {
			if err := os.WriteFile(svgPath, []byte(portrait.SVG(600, 400, "#00ff88")), 0644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", svgPath)
		}
	}
	return nil
}
