// Package physics provides the models a run can evolve.
//
// Each model implements [dynamo.System] with its state laid out
// component-major over NumCells cells, so a point model is one cell and a
// spatially extended model puts one unknown per component into every cell:
//
//   - [Pendulum]: damped simple pendulum
//   - [SpringMass]: chain of masses joined by springs, one mass per cell
//   - [VanDerPol]: relaxation oscillator
//   - [Lorenz96]: chaotic ring of coupled sites, one site per cell
//   - [Wave]: 1-D damped wave equation by finite differences
//
// Models also implement [dynamo.Configurable] for parameter overrides and,
// where one exists, [dynamo.Hamiltonian] for the energy functional:
//
//	sys := physics.NewPendulum()
//	if h, ok := sys.(dynamo.Hamiltonian); ok {
//	    energy := h.Energy(state)
//	}
package physics

import "fmt"

func unknownParam(name string) error {
	return fmt.Errorf("unknown param: %s", name)
}
