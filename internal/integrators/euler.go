package integrators

import "github.com/san-kum/simrun/internal/dynamo"

// Euler is the explicit first-order method.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(sys dynamo.System, q dynamo.State, t, dt float64) dynamo.State {
	return q.AXPY(dt, sys.Derive(q, t))
}
