package physics

import "github.com/san-kum/simrun/internal/dynamo"

// Wave is the 1-D damped wave equation on [0, Length] with fixed ends,
// discretized on N cells. Component 0 is the displacement u and component 1
// its rate du/dt.
type Wave struct {
	N                          int
	Length, WaveSpeed, Damping float64
}

func NewWave(n int) *Wave {
	if n < 3 {
		n = 3
	}
	return &Wave{N: n, Length: 1.0, WaveSpeed: 1.0, Damping: 0.01}
}

func (w *Wave) NumEqn() int   { return 2 }
func (w *Wave) NumCells() int { return w.N }

func (w *Wave) dx() float64 { return w.Length / float64(w.N) }

// Extent is the physical interval the cells cover.
func (w *Wave) Extent() (float64, float64) { return 0, w.Length }

func (w *Wave) Derive(s dynamo.State, _ float64) dynamo.State {
	n := w.N
	dq := make(dynamo.State, 2*n)
	if len(s) < 2*n {
		return dq
	}
	c2, h := w.WaveSpeed*w.WaveSpeed, w.dx()
	h2 := h * h
	for i := 0; i < n; i++ {
		// ghost cells mirror the interior with opposite sign so u = 0 at the walls
		left, right := -s[0], -s[n-1]
		if i > 0 {
			left = s[i-1]
		}
		if i < n-1 {
			right = s[i+1]
		}
		dq[i] = s[n+i]
		dq[n+i] = c2*(left-2*s[i]+right)/h2 - w.Damping*s[n+i]
	}
	return dq
}

// DefaultState is a plucked string peaking at the middle cell.
func (w *Wave) DefaultState() dynamo.State {
	s, c, amp := make(dynamo.State, 2*w.N), w.N/2, 0.5
	for i := 0; i < w.N; i++ {
		if i <= c {
			s[i] = amp * float64(i+1) / float64(c+1)
		} else {
			s[i] = amp * float64(w.N-i) / float64(w.N-c)
		}
	}
	return s
}

func (w *Wave) Energy(s dynamo.State) float64 {
	n, ke, pe, c2, h := w.N, 0.0, 0.0, w.WaveSpeed*w.WaveSpeed, w.dx()
	if len(s) < 2*n {
		return 0
	}
	for i := 0; i < n; i++ {
		v := s[n+i]
		ke += 0.5 * v * v * h
		if i < n-1 {
			dudx := (s[i+1] - s[i]) / h
			pe += 0.5 * c2 * dudx * dudx * h
		}
	}
	return ke + pe
}

func (w *Wave) GetParams() map[string]float64 {
	return map[string]float64{"waveSpeed": w.WaveSpeed, "damping": w.Damping, "length": w.Length}
}

func (w *Wave) SetParam(n string, v float64) error {
	switch n {
	case "waveSpeed":
		w.WaveSpeed = v
	case "damping":
		w.Damping = v
	case "length":
		w.Length = v
	default:
		return unknownParam(n)
	}
	return nil
}
