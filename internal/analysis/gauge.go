package analysis

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var ErrEmptyTrace = errors.New("analysis: empty trace")

// Trace is the content of one gauge file.
type Trace struct {
	ID       int
	Location float64
	Cell     int

	T []float64
	// Q[i] holds the conserved components recorded at T[i].
	Q [][]float64
}

// ReadGauge parses a gauge file written during a run.
func ReadGauge(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tr := &Trace{}
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "#") {
			fmt.Sscanf(text, "# gauge %d x=%g cell=%d", &tr.ID, &tr.Location, &tr.Cell)
			continue
		}
		fields := strings.Fields(text)
		vals := make([]float64, len(fields))
		for i, field := range fields {
			if vals[i], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, line, err)
			}
		}
		tr.T = append(tr.T, vals[0])
		tr.Q = append(tr.Q, vals[1:])
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return tr, nil
}

func (tr *Trace) Len() int { return len(tr.T) }

// Component extracts conserved component m across the trace.
func (tr *Trace) Component(m int) []float64 {
	out := make([]float64, 0, len(tr.Q))
	for _, q := range tr.Q {
		if m < len(q) {
			out = append(out, q[m])
		}
	}
	return out
}
