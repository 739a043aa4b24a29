package solution

import (
	"maps"
	"math"

	"github.com/san-kum/simrun/internal/dynamo"
)

// State holds the field arrays of one patch at time T. Every array is laid
// out component-major over Grid.NumCells cells.
type State struct {
	Grid   *Grid
	NumEqn int
	NumAux int
	NumP   int
	NumF   int

	Q   dynamo.State
	Aux []float64
	// P holds derived quantities filled by a derived-quantity pass.
	P []float64
	// F holds functional densities filled by a functional computer.
	F []float64

	T           float64
	ProblemData map[string]float64
}

// NewState allocates zeroed arrays for numEqn conserved and numAux auxiliary
// components on grid.
func NewState(grid *Grid, numEqn, numAux int) *State {
	n := grid.NumCells
	return &State{
		Grid:        grid,
		NumEqn:      numEqn,
		NumAux:      numAux,
		Q:           make(dynamo.State, numEqn*n),
		Aux:         make([]float64, numAux*n),
		ProblemData: make(map[string]float64),
	}
}

// SetNumP sizes the derived-quantity array.
func (s *State) SetNumP(n int) {
	s.NumP = n
	s.P = make([]float64, n*s.Grid.NumCells)
}

// SetNumF sizes the functional density array.
func (s *State) SetNumF(n int) {
	s.NumF = n
	s.F = make([]float64, n*s.Grid.NumCells)
}

// QAt returns the conserved components of cell i.
func (s *State) QAt(i int) []float64 {
	n := s.Grid.NumCells
	out := make([]float64, s.NumEqn)
	for m := range out {
		out[m] = s.Q[m*n+i]
	}
	return out
}

// SumF reduces functional density i over all cells.
func (s *State) SumF(i int) float64 {
	n := s.Grid.NumCells
	sum := 0.0
	for _, v := range s.F[i*n : (i+1)*n] {
		sum += v
	}
	return sum
}

func (s *State) IsValid() bool {
	if s.Grid == nil || !s.Grid.IsValid() || s.NumEqn < 1 {
		return false
	}
	n := s.Grid.NumCells
	if len(s.Q) != s.NumEqn*n || len(s.Aux) != s.NumAux*n {
		return false
	}
	if len(s.P) != s.NumP*n || len(s.F) != s.NumF*n {
		return false
	}
	if math.IsNaN(s.T) || math.IsInf(s.T, 0) {
		return false
	}
	return s.Q.IsValid()
}

// Clone deep-copies the state. The clone's grid shares no gauge streams.
func (s *State) Clone() *State {
	c := *s
	if s.Grid != nil {
		c.Grid = s.Grid.clone()
	}
	c.Q = s.Q.Clone()
	c.Aux = append([]float64(nil), s.Aux...)
	c.P = append([]float64(nil), s.P...)
	c.F = append([]float64(nil), s.F...)
	c.ProblemData = maps.Clone(s.ProblemData)
	return &c
}
