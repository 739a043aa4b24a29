// Package dynamo provides the numerical primitives shared by solvers and the
// run driver.
//
//   - [State]: flat vector of conserved quantities
//   - [System]: semi-discrete right-hand side dq/dt = f(q, t)
//   - [Integrator], [AdaptiveIntegrator]: one-step time integrators
//   - [Status]: per-evolve summary returned by solvers
//
// # Layout
//
// A state for a system with m equations over n cells stores component k of
// cell i at index k*n+i. Point models (pendulum, Van der Pol) use n = 1.
package dynamo
