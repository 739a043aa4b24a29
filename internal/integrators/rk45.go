package integrators

import (
	"math"

	"github.com/san-kum/simrun/internal/dynamo"
)

// Dormand-Prince 5(4) tableau. Row i of dpA holds the coefficients of stage
// i+1; dpB is the fifth-order solution and dpE the difference to the
// embedded fourth-order one (the FSAL stage carries the last entry).
var (
	dpC = [6]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1}
	dpA = [6][5]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
	}
	dpB = [6]float64{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84}
	dpE = [7]float64{
		35.0/384 - 5179.0/57600,
		0,
		500.0/1113 - 7571.0/16695,
		125.0/192 - 393.0/640,
		-2187.0/6784 + 92097.0/339200,
		11.0/84 - 187.0/2100,
		-1.0 / 40,
	}
)

// RK45 is the Dormand-Prince 5(4) pair. StepAdaptive accepts a step only when
// the scaled error estimate is within tolerance; otherwise it returns
// dynamo.ErrStepRejected together with a smaller step to retry with.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64

	k   [7]dynamo.State
	tmp dynamo.State
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

// Step takes one fixed step and ignores the error estimate.
func (r *RK45) Step(sys dynamo.System, q dynamo.State, t, dt float64) dynamo.State {
	qNew, _ := r.attempt(sys, q, t, dt)
	return qNew
}

func (r *RK45) StepAdaptive(sys dynamo.System, q dynamo.State, t, dt, tol float64) (dynamo.State, float64, error) {
	qNew, errNorm := r.attempt(sys, q, t, dt)
	if !qNew.IsValid() {
		return qNew, dt * r.minScale, dynamo.ErrInvalidState
	}

	ratio := errNorm / tol
	switch {
	case ratio > 1:
		return nil, dt * math.Max(r.minScale, r.safety*math.Pow(ratio, -0.25)), dynamo.ErrStepRejected
	case ratio == 0:
		return qNew, dt * r.maxScale, nil
	}
	return qNew, dt * math.Min(r.maxScale, r.safety*math.Pow(ratio, -0.2)), nil
}

// attempt evaluates all seven stages and returns the fifth-order solution
// with the max-norm of the relative error estimate.
func (r *RK45) attempt(sys dynamo.System, q dynamo.State, t, dt float64) (dynamo.State, float64) {
	n := len(q)
	if len(r.tmp) != n {
		r.tmp = make(dynamo.State, n)
	}

	r.k[0] = sys.Derive(q, t)
	for s := 1; s < 6; s++ {
		for i := range n {
			acc := 0.0
			for j, a := range dpA[s][:s] {
				acc += a * r.k[j][i]
			}
			r.tmp[i] = q[i] + dt*acc
		}
		r.k[s] = sys.Derive(r.tmp, t+dpC[s]*dt)
	}

	qNew := make(dynamo.State, n)
	for i := range n {
		acc := 0.0
		for s, b := range dpB {
			acc += b * r.k[s][i]
		}
		qNew[i] = q[i] + dt*acc
	}
	r.k[6] = sys.Derive(qNew, t+dt)

	errNorm := 0.0
	for i := range n {
		est := 0.0
		for s, e := range dpE {
			est += e * r.k[s][i]
		}
		scale := math.Abs(q[i]) + math.Abs(dt*r.k[0][i]) + 1e-10
		errNorm = math.Max(errNorm, math.Abs(dt*est)/scale)
	}
	return qNew, errNorm
}
