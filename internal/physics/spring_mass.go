package physics

import "github.com/san-kum/simrun/internal/dynamo"

const (
	DefaultMass      = 1.0
	DefaultStiffness = 10.0
	DefaultDamping   = 0.5
)

// SpringMass is a chain of masses between two walls. Mass i lives in cell i;
// component 0 is its displacement and component 1 its velocity.
type SpringMass struct {
	NumMasses int
	Masses    []float64
	Stiffness []float64
	Damping   []float64
}

func NewSpringMass() *SpringMass {
	return &SpringMass{
		NumMasses: 1,
		Masses:    []float64{DefaultMass},
		Stiffness: []float64{DefaultStiffness},
		Damping:   []float64{DefaultDamping},
	}
}

func NewSpringMassChain(n int) *SpringMass {
	masses := make([]float64, n)
	stiffness := make([]float64, n+1)
	damping := make([]float64, n)

	for i := 0; i < n; i++ {
		masses[i] = DefaultMass
		stiffness[i] = DefaultStiffness
		damping[i] = 0.2
	}
	stiffness[n] = DefaultStiffness

	return &SpringMass{
		NumMasses: n,
		Masses:    masses,
		Stiffness: stiffness,
		Damping:   damping,
	}
}

func (s *SpringMass) NumEqn() int   { return 2 }
func (s *SpringMass) NumCells() int { return s.NumMasses }

func (s *SpringMass) Derive(q dynamo.State, t float64) dynamo.State {
	n := s.NumMasses
	dq := make(dynamo.State, n*2)

	for i := 0; i < n; i++ {
		dq[i] = q[n+i]
	}

	for i := 0; i < n; i++ {
		pos, vel := q[i], q[n+i]

		var forceLeft, forceRight float64
		if i == 0 {
			forceLeft = -s.Stiffness[0] * pos
		} else {
			forceLeft = -s.Stiffness[i] * (pos - q[i-1])
		}

		if i == n-1 {
			if len(s.Stiffness) > n {
				forceRight = -s.Stiffness[n] * pos
			}
		} else {
			forceRight = -s.Stiffness[i+1] * (pos - q[i+1])
		}

		dq[n+i] = (forceLeft + forceRight - s.Damping[i]*vel) / s.Masses[i]
	}

	return dq
}

// DefaultState displaces the first mass by one unit.
func (s *SpringMass) DefaultState() dynamo.State {
	q := make(dynamo.State, 2*s.NumMasses)
	if s.NumMasses > 0 {
		q[0] = 1.0
	}
	return q
}

func (s *SpringMass) Energy(q dynamo.State) float64 {
	n := s.NumMasses
	energy := 0.0

	for i := 0; i < n; i++ {
		v := q[n+i]
		energy += 0.5 * s.Masses[i] * v * v
	}

	for i := 0; i < n; i++ {
		pos := q[i]
		if i == 0 {
			energy += 0.5 * s.Stiffness[0] * pos * pos
		} else {
			stretch := pos - q[i-1]
			energy += 0.5 * s.Stiffness[i] * stretch * stretch
		}
	}

	if len(s.Stiffness) > n {
		energy += 0.5 * s.Stiffness[n] * q[n-1] * q[n-1]
	}

	return energy
}

// GetParams reports the parameters of the first mass; SetParam applies a
// value to every mass or spring.
func (s *SpringMass) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":      s.Masses[0],
		"stiffness": s.Stiffness[0],
		"damping":   s.Damping[0],
	}
}

func (s *SpringMass) SetParam(name string, value float64) error {
	var target []float64
	switch name {
	case "mass":
		target = s.Masses
	case "stiffness":
		target = s.Stiffness
	case "damping":
		target = s.Damping
	default:
		return unknownParam(name)
	}
	for i := range target {
		target[i] = value
	}
	return nil
}
