package physics

import "github.com/san-kum/simrun/internal/dynamo"

// Lorenz96 is the periodic ring of N sites
//
//	dx_i/dt = (x_{i+1} - x_{i-2}) x_{i-1} - x_i + F
//
// with one site per cell. F = 8 is chaotic for N >= 5.
type Lorenz96 struct {
	N       int
	Forcing float64
}

func NewLorenz96(n int) *Lorenz96 {
	if n < 4 {
		n = 4
	}
	return &Lorenz96{N: n, Forcing: 8.0}
}

func (l *Lorenz96) NumEqn() int   { return 1 }
func (l *Lorenz96) NumCells() int { return l.N }

func (l *Lorenz96) Derive(s dynamo.State, _ float64) dynamo.State {
	n := l.N
	dq := make(dynamo.State, n)
	if len(s) < n {
		return dq
	}
	at := func(i int) float64 { return s[(i%n+n)%n] }
	for i := 0; i < n; i++ {
		dq[i] = (at(i+1)-at(i-2))*at(i-1) - s[i] + l.Forcing
	}
	return dq
}

// DefaultState rests at the fixed point x = F with site 0 nudged.
func (l *Lorenz96) DefaultState() dynamo.State {
	s := make(dynamo.State, l.N)
	for i := range s {
		s[i] = l.Forcing
	}
	s[0] += 0.01
	return s
}

func (l *Lorenz96) GetParams() map[string]float64 {
	return map[string]float64{"forcing": l.Forcing}
}

func (l *Lorenz96) SetParam(n string, v float64) error {
	if n != "forcing" {
		return unknownParam(n)
	}
	l.Forcing = v
	return nil
}
