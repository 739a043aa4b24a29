package functional

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Sample is one parsed functional line.
type Sample struct {
	T      float64
	Values []float64
}

// ReadLog parses a functional log written by a Recorder.
func ReadLog(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Sample
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		vals := make([]float64, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, line, err)
			}
			vals[i] = v
		}
		out = append(out, Sample{T: vals[0], Values: vals[1:]})
	}
	return out, sc.Err()
}

// Series extracts functional k across samples.
func Series(samples []Sample, k int) []float64 {
	out := make([]float64, 0, len(samples))
	for _, s := range samples {
		if k < len(s.Values) {
			out = append(out, s.Values[k])
		}
	}
	return out
}
