package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Spectrum is a one-sided amplitude spectrum.
type Spectrum struct {
	Frequency []float64
	Amplitude []float64
}

// PowerSpectrum resamples the series (t, y) onto a uniform grid and returns
// its one-sided amplitude spectrum. The mean is removed first.
func PowerSpectrum(t, y []float64) (*Spectrum, error) {
	n := min(len(t), len(y))
	if n < 2 {
		return nil, ErrEmptyTrace
	}
	span := t[n-1] - t[0]
	if !(span > 0) {
		return nil, fmt.Errorf("analysis: non-increasing time axis [%g, %g]", t[0], t[n-1])
	}

	u := resample(t[:n], y[:n], n)
	mean := 0.0
	for _, v := range u {
		mean += v
	}
	mean /= float64(n)
	for i := range u {
		u[i] -= mean
	}

	coeffs := fft.FFTReal(u)
	dt := span / float64(n-1)
	half := n / 2
	s := &Spectrum{Frequency: make([]float64, half), Amplitude: make([]float64, half)}
	for k := range half {
		s.Frequency[k] = float64(k) / (float64(n) * dt)
		s.Amplitude[k] = 2 * cmplx.Abs(coeffs[k]) / float64(n)
	}
	return s, nil
}

// Peak returns the frequency with the largest amplitude, skipping DC.
func (s *Spectrum) Peak() float64 {
	best, at := math.Inf(-1), 0.0
	for k := 1; k < len(s.Amplitude); k++ {
		if s.Amplitude[k] > best {
			best, at = s.Amplitude[k], s.Frequency[k]
		}
	}
	return at
}

// resample linearly interpolates y(t) at n evenly spaced times.
func resample(t, y []float64, n int) []float64 {
	out := make([]float64, n)
	step := (t[len(t)-1] - t[0]) / float64(n-1)
	j := 0
	for i := range out {
		ti := t[0] + float64(i)*step
		for j < len(t)-2 && t[j+1] < ti {
			j++
		}
		dt := t[j+1] - t[j]
		if dt <= 0 {
			out[i] = y[j]
			continue
		}
		w := (ti - t[j]) / dt
		out[i] = y[j] + w*(y[j+1]-y[j])
	}
	return out
}
