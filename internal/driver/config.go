package driver

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/simrun/internal/functional"
	"github.com/san-kum/simrun/internal/schedule"
	"github.com/san-kum/simrun/internal/storage"
)

// AuxPolicy selects the output points that carry auxiliary arrays.
type AuxPolicy int

const (
	AuxNever AuxPolicy = iota
	AuxInit
	AuxAlways
)

func (p AuxPolicy) String() string {
	switch p {
	case AuxNever:
		return "never"
	case AuxInit:
		return "init"
	case AuxAlways:
		return "always"
	}
	return fmt.Sprintf("AuxPolicy(%d)", int(p))
}

func ParseAuxPolicy(s string) (AuxPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "never":
		return AuxNever, nil
	case "init":
		return AuxInit, nil
	case "always":
		return AuxAlways, nil
	}
	return AuxNever, fmt.Errorf("%w: unknown aux policy %q", ErrConfiguration, s)
}

// Config is the run-level output policy.
type Config struct {
	OutDir   string
	Clobber  bool
	KeepCopy bool
	WriteAux AuxPolicy

	OutputHandler string
	OutputFormat  string
	FilePrefix    string
	FilePrefixP   string
	OutputOptions map[string]string

	Schedule schedule.Policy

	FunctionalFile string
	FunctionalMode functional.Mode

	// LogLevel is the console level, parsed with logrus.ParseLevel.
	LogLevel string
}

func DefaultConfig() Config {
	return Config{
		OutDir:         "_output",
		Clobber:        true,
		OutputHandler:  storage.HandlerNative,
		OutputFormat:   "ascii",
		FilePrefixP:    "claw_p",
		Schedule:       schedule.Policy{Style: schedule.FixedCount, TFinal: 1.0, NumOutputTimes: 10, NStepOut: 1},
		FunctionalFile: "F",
		LogLevel:       "info",
	}
}

// OutputEnabled reports whether main output is written at all.
func (c Config) OutputEnabled() bool {
	return !storage.Disabled(c.OutputHandler, c.OutputFormat)
}

// DerivedDir is where derived quantities go.
func (c Config) DerivedDir() string { return filepath.Join(c.OutDir, "_p") }

func (c Config) FunctionalPath() string {
	return filepath.Join(c.OutDir, c.FunctionalFile+".txt")
}

func (c Config) level() (logrus.Level, error) {
	if c.LogLevel == "" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return lvl, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return lvl, nil
}
