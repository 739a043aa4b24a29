package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/simrun/internal/driver"
	"github.com/san-kum/simrun/internal/functional"
	"github.com/san-kum/simrun/internal/schedule"
)

const (
	DefaultDt             = 0.01
	DefaultTFinal         = 10.0
	DefaultNumOutputTimes = 10
	DefaultCells          = 32
	DefaultMaxSteps       = 100000

	// EnvPrefix is prepended to every environment override.
	EnvPrefix = "SIMRUN_"
)

type Config struct {
	Model      string  `yaml:"model" env:"MODEL"`
	Integrator string  `yaml:"integrator" env:"INTEGRATOR"`
	Dt         float64 `yaml:"dt" env:"DT"`
	DtMin      float64 `yaml:"dt_min,omitempty" env:"DT_MIN"`
	DtMax      float64 `yaml:"dt_max,omitempty" env:"DT_MAX"`
	Tolerance  float64 `yaml:"tolerance,omitempty" env:"TOLERANCE"`
	MaxSteps   int     `yaml:"max_steps" env:"MAX_STEPS"`

	// Cells is the grid size of spatially extended models.
	Cells     int                `yaml:"cells,omitempty" env:"CELLS"`
	Params    map[string]float64 `yaml:"params,omitempty"`
	InitState []float64          `yaml:"init_state,omitempty" env:"INIT_STATE" envSeparator:","`
	Gauges    []float64          `yaml:"gauges,omitempty" env:"GAUGES" envSeparator:","`

	Functionals []string `yaml:"functionals,omitempty" env:"FUNCTIONALS" envSeparator:","`
	Derived     []string `yaml:"derived,omitempty" env:"DERIVED" envSeparator:","`

	// RestartFrame resumes from a frame previously written to Output.Dir.
	RestartFrame *int `yaml:"restart_frame,omitempty" env:"RESTART_FRAME"`

	Output   OutputConfig `yaml:"output"`
	LogLevel string       `yaml:"log_level" env:"LOG_LEVEL"`
}

type OutputConfig struct {
	Style          string            `yaml:"style" env:"OUTPUT_STYLE"`
	TFinal         float64           `yaml:"tfinal" env:"TFINAL"`
	NumOutputTimes int               `yaml:"num_output_times" env:"NUM_OUTPUT_TIMES"`
	OutTimes       []float64         `yaml:"out_times,omitempty" env:"OUT_TIMES" envSeparator:","`
	NStepOut       int               `yaml:"nstepout" env:"NSTEPOUT"`
	Dir            string            `yaml:"dir" env:"OUTDIR"`
	Clobber        bool              `yaml:"clobber" env:"CLOBBER"`
	KeepCopy       bool              `yaml:"keep_copy" env:"KEEP_COPY"`
	WriteAux       string            `yaml:"write_aux" env:"WRITE_AUX"`
	Handler        string            `yaml:"handler" env:"OUTPUT_HANDLER"`
	Format         string            `yaml:"format" env:"OUTPUT_FORMAT"`
	Prefix         string            `yaml:"prefix,omitempty" env:"OUTPUT_PREFIX"`
	PrefixP        string            `yaml:"prefix_p" env:"OUTPUT_PREFIX_P"`
	Options        map[string]string `yaml:"options,omitempty"`
	FunctionalFile string            `yaml:"functional_file" env:"FUNCTIONAL_FILE"`
	FunctionalMode string            `yaml:"functional_mode" env:"FUNCTIONAL_MODE"`
}

func DefaultConfig() *Config {
	d := driver.DefaultConfig()
	return &Config{
		Model:      "pendulum",
		Integrator: "rk4",
		Dt:         DefaultDt,
		MaxSteps:   DefaultMaxSteps,
		Cells:      DefaultCells,
		Output: OutputConfig{
			Style:          d.Schedule.Style.String(),
			TFinal:         DefaultTFinal,
			NumOutputTimes: DefaultNumOutputTimes,
			NStepOut:       d.Schedule.NStepOut,
			Dir:            d.OutDir,
			Clobber:        d.Clobber,
			WriteAux:       d.WriteAux.String(),
			Handler:        d.OutputHandler,
			Format:         d.OutputFormat,
			PrefixP:        d.FilePrefixP,
			FunctionalFile: d.FunctionalFile,
			FunctionalMode: d.FunctionalMode.String(),
		},
		LogLevel: d.LogLevel,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides cfg with any SIMRUN_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Clone returns a copy that shares no slices or maps with c.
func (c *Config) Clone() *Config {
	out := *c
	out.InitState = append([]float64(nil), c.InitState...)
	out.Gauges = append([]float64(nil), c.Gauges...)
	out.Functionals = append([]string(nil), c.Functionals...)
	out.Derived = append([]string(nil), c.Derived...)
	out.Output.OutTimes = append([]float64(nil), c.Output.OutTimes...)
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	if c.RestartFrame != nil {
		f := *c.RestartFrame
		out.RestartFrame = &f
	}
	return &out
}

// DriverConfig translates the output section into the driver's policy.
func (c *Config) DriverConfig() (driver.Config, error) {
	style, err := schedule.ParseStyle(c.Output.Style)
	if err != nil {
		return driver.Config{}, fmt.Errorf("%w: %w", driver.ErrConfiguration, err)
	}
	aux, err := driver.ParseAuxPolicy(c.Output.WriteAux)
	if err != nil {
		return driver.Config{}, err
	}
	mode, err := functional.ParseMode(c.Output.FunctionalMode)
	if err != nil {
		return driver.Config{}, fmt.Errorf("%w: %w", driver.ErrConfiguration, err)
	}

	return driver.Config{
		OutDir:        c.Output.Dir,
		Clobber:       c.Output.Clobber,
		KeepCopy:      c.Output.KeepCopy,
		WriteAux:      aux,
		OutputHandler: c.Output.Handler,
		OutputFormat:  c.Output.Format,
		FilePrefix:    c.Output.Prefix,
		FilePrefixP:   c.Output.PrefixP,
		OutputOptions: c.Output.Options,
		Schedule: schedule.Policy{
			Style:          style,
			TFinal:         c.Output.TFinal,
			NumOutputTimes: c.Output.NumOutputTimes,
			OutTimes:       c.Output.OutTimes,
			NStepOut:       c.Output.NStepOut,
		},
		FunctionalFile: c.Output.FunctionalFile,
		FunctionalMode: mode,
		LogLevel:       c.LogLevel,
	}, nil
}
