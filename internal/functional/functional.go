// Package functional records reduced scalar quantities of the solution, one
// line per output point, to a plain text log.
package functional

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/san-kum/simrun/internal/solution"
)

// Computer fills the functional densities State.F of a state, sizing them
// with SetNumF as needed.
type Computer func(st *solution.State) error

// Mode controls how the first line of a run is written.
type Mode int

const (
	// ModeAuto truncates for a fresh run and appends for a resumed one.
	ModeAuto Mode = iota
	ModeTruncate
	ModeAppend
)

var ErrUnknownMode = errors.New("functional: unknown mode")

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeTruncate:
		return "truncate"
	case ModeAppend:
		return "append"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "truncate", "w":
		return ModeTruncate, nil
	case "append", "a":
		return ModeAppend, nil
	}
	return ModeAuto, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Recorder appends functional lines for one run.
type Recorder struct {
	path     string
	compute  Computer
	reporter func() bool
	mode     Mode
}

type Option func(*Recorder)

// WithReporter restricts file writes to instances for which fn returns true.
func WithReporter(fn func() bool) Option {
	return func(r *Recorder) { r.reporter = fn }
}

func WithMode(m Mode) Option {
	return func(r *Recorder) { r.mode = m }
}

// New returns a recorder writing to path. A nil compute makes every Record a
// no-op.
func New(path string, compute Computer, opts ...Option) *Recorder {
	r := &Recorder{
		path:     path,
		compute:  compute,
		reporter: func() bool { return true },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) Path() string { return r.path }

// Enabled reports whether a computer is configured.
func (r *Recorder) Enabled() bool { return r != nil && r.compute != nil }

// Record evaluates the functionals on sol and writes "t F0 ... Fk". first
// marks the initial output point of the run.
func (r *Recorder) Record(sol *solution.Solution, first bool) error {
	if !r.Enabled() {
		return nil
	}
	st := sol.State()
	if st == nil {
		return errors.New("functional: empty solution")
	}
	if err := r.compute(st); err != nil {
		return fmt.Errorf("functional: compute: %w", err)
	}
	if st.NumF < 0 || len(st.F) != st.NumF*st.Grid.NumCells {
		return fmt.Errorf("functional: %d densities over %d cells, got %d values",
			st.NumF, st.Grid.NumCells, len(st.F))
	}
	values := make([]float64, st.NumF)
	for i := range values {
		values[i] = st.SumF(i)
	}
	if !r.reporter() {
		return nil
	}
	return r.writeLine(sol.T(), values, r.truncate(sol, first))
}

func (r *Recorder) truncate(sol *solution.Solution, first bool) bool {
	if !first {
		return false
	}
	switch r.mode {
	case ModeTruncate:
		return true
	case ModeAppend:
		return false
	}
	return sol.StartFrame() == 0
}

func (r *Recorder) writeLine(t float64, values []float64, truncate bool) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("functional: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY
	if truncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(r.path, flags, 0644)
	if err != nil {
		return fmt.Errorf("functional: %w", err)
	}

	fields := make([]string, 0, len(values)+1)
	fields = append(fields, FormatFloat(t))
	for _, v := range values {
		fields = append(fields, FormatFloat(v))
	}
	_, werr := f.WriteString(strings.Join(fields, " ") + "\n")
	if err := errors.Join(werr, f.Close()); err != nil {
		return fmt.Errorf("functional: %s: %w", r.path, err)
	}
	return nil
}

// FormatFloat renders v in shortest round-trip form. Integral values keep a
// trailing ".0"; magnitudes below 1e-4 or from 1e16 up use an exponent.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case v == 0:
		if math.Signbit(v) {
			return "-0.0"
		}
		return "0.0"
	}
	e := strconv.FormatFloat(v, 'e', -1, 64)
	exp, _ := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return e
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
