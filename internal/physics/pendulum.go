package physics

import (
	"math"

	"github.com/san-kum/simrun/internal/dynamo"
)

type Pendulum struct {
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
	// Theta0 is the initial angle of DefaultState.
	Theta0 float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    1.0,
		Length:  1.0,
		Damping: 0.1,
		Gravity: 9.81,
		Theta0:  math.Pi / 4,
	}
}

func (p *Pendulum) NumEqn() int   { return 2 }
func (p *Pendulum) NumCells() int { return 1 }

func (p *Pendulum) Derive(q dynamo.State, t float64) dynamo.State {
	theta, omega := q[0], q[1]
	alpha := (-p.Damping*omega - p.Mass*p.Gravity*p.Length*math.Sin(theta)) / (p.Mass * p.Length * p.Length)
	return dynamo.State{omega, alpha}
}

func (p *Pendulum) DefaultState() dynamo.State {
	return dynamo.State{p.Theta0, 0}
}

func (p *Pendulum) Energy(q dynamo.State) float64 {
	// KE = 0.5 * m * (L*omega)^2
	// PE = m * g * L * (1 - cos(theta))
	v := p.Length * q[1]
	ke := 0.5 * p.Mass * v * v
	pe := p.Mass * p.Gravity * p.Length * (1.0 - math.Cos(q[0]))
	return ke + pe
}

func (p *Pendulum) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":    p.Mass,
		"length":  p.Length,
		"damping": p.Damping,
		"gravity": p.Gravity,
		"theta0":  p.Theta0,
	}
}

func (p *Pendulum) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		p.Mass = value
	case "length":
		p.Length = value
	case "damping":
		p.Damping = value
	case "gravity":
		p.Gravity = value
	case "theta0":
		p.Theta0 = value
	default:
		return unknownParam(name)
	}
	return nil
}
