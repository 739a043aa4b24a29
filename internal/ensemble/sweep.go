package ensemble

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// Sweep is a cartesian grid of parameter values, one ensemble member per
// grid point.
type Sweep struct {
	names  []string
	ranges [][]float64
}

func NewSweep(names []string, ranges [][]float64) (*Sweep, error) {
	if len(names) != len(ranges) {
		return nil, fmt.Errorf("sweep: %d names for %d ranges", len(names), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("sweep: no values for %s", names[i])
		}
	}
	return &Sweep{names: names, ranges: ranges}, nil
}

// ParseSweep reads specs of the form "name=v1,v2,...".
func ParseSweep(specs []string) (*Sweep, error) {
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, spec := range specs {
		name, list, ok := strings.Cut(spec, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("sweep: expected name=v1,v2,... got %q", spec)
		}
		var vals []float64
		for _, field := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("sweep: %s: %w", name, err)
			}
			vals = append(vals, v)
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	return NewSweep(names, ranges)
}

// Size is the number of grid points.
func (s *Sweep) Size() int {
	n := 1
	for _, r := range s.ranges {
		n *= len(r)
	}
	return n
}

// Points enumerates the grid with the last parameter varying fastest.
func (s *Sweep) Points() []map[string]float64 {
	out := make([]map[string]float64, 0, s.Size())
	s.walk(0, map[string]float64{}, &out)
	return out
}

func (s *Sweep) walk(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(s.names) {
		*out = append(*out, current)
		return
	}
	for _, v := range s.ranges[depth] {
		next := maps.Clone(current)
		next[s.names[depth]] = v
		s.walk(depth+1, next, out)
	}
}
