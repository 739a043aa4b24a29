// Package schedule turns an output policy into the ordered list of points at
// which a run produces output.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnknownStyle = errors.New("schedule: unknown output style")
	ErrBadStepCount = errors.New("schedule: steps per output must be at least 1")
)

// Style selects how output points are derived. Exactly one is active per run.
type Style int

const (
	// FixedCount spaces NumOutputTimes+1 points evenly from t0 to TFinal.
	FixedCount Style = 1
	// ExplicitTimes uses OutTimes verbatim.
	ExplicitTimes Style = 2
	// FixedSteps advances the solver NStepOut steps per output.
	FixedSteps Style = 3
)

func (s Style) String() string {
	switch s {
	case FixedCount:
		return "fixed-count"
	case ExplicitTimes:
		return "explicit-times"
	case FixedSteps:
		return "fixed-steps"
	default:
		return fmt.Sprintf("style(%d)", int(s))
	}
}

// ParseStyle accepts either the numeric form ("1".."3") or the name.
func ParseStyle(v string) (Style, error) {
	v = strings.TrimSpace(strings.ToLower(v))
	if n, err := strconv.Atoi(v); err == nil {
		s := Style(n)
		if s < FixedCount || s > FixedSteps {
			return 0, fmt.Errorf("%w: %d", ErrUnknownStyle, n)
		}
		return s, nil
	}
	switch v {
	case "fixed-count", "count":
		return FixedCount, nil
	case "explicit-times", "times":
		return ExplicitTimes, nil
	case "fixed-steps", "steps":
		return FixedSteps, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStyle, v)
}

// Policy carries the parameters of every style; only those of Style are read.
type Policy struct {
	Style          Style
	TFinal         float64
	NumOutputTimes int
	OutTimes       []float64
	NStepOut       int
}

// Target is one scheduled output point. For FixedSteps the absolute time is
// unknown in advance and Steps holds the number of solver steps to take.
type Target struct {
	Time  float64
	Steps int
}

// IsStepMarker reports whether the target means "advance Steps steps".
func (t Target) IsStepMarker() bool { return t.Steps > 0 }

// Compute returns the output points for p starting from time t0. Index 0 is
// the current state. An empty result is not an error; callers halt on it.
func Compute(p Policy, t0 float64, startFrame int) ([]Target, error) {
	switch p.Style {
	case FixedCount:
		times := Linspace(t0, p.TFinal, p.NumOutputTimes+1)
		targets := make([]Target, len(times))
		for i, t := range times {
			targets[i] = Target{Time: t}
		}
		return targets, nil

	case ExplicitTimes:
		targets := make([]Target, len(p.OutTimes))
		for i, t := range p.OutTimes {
			targets[i] = Target{Time: t}
		}
		return targets, nil

	case FixedSteps:
		if p.NStepOut < 1 {
			return nil, fmt.Errorf("%w: got %d", ErrBadStepCount, p.NStepOut)
		}
		n := p.NumOutputTimes + 1 - startFrame
		if n <= 0 {
			return []Target{}, nil
		}
		targets := make([]Target, n)
		for i := range targets {
			targets[i] = Target{Steps: p.NStepOut}
		}
		return targets, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStyle, int(p.Style))
	}
}

// Linspace returns n evenly spaced points from start to stop inclusive. The
// last point is exactly stop; a single point is start.
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)
	out[0] = start
	if n == 1 {
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := 1; i < n-1; i++ {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}
