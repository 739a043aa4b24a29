package functional

import (
	"fmt"

	"github.com/san-kum/simrun/internal/dynamo"
	"github.com/san-kum/simrun/internal/solution"
)

// Density fills one row of functional density, out[i] for cell i.
type Density struct {
	Name string
	Fill func(st *solution.State, out []float64) error
}

// Energy places the total Hamiltonian energy of sys in the first cell.
func Energy(sys dynamo.System) Density {
	return Density{
		Name: "energy",
		Fill: func(st *solution.State, out []float64) error {
			h, ok := sys.(dynamo.Hamiltonian)
			if !ok {
				return fmt.Errorf("energy: %T has no energy functional", sys)
			}
			clear(out)
			out[0] = h.Energy(st.Q)
			return nil
		},
	}
}

// Mass is the cell-integrated value of conserved component eqn.
func Mass(eqn int) Density {
	return Density{
		Name: fmt.Sprintf("mass%d", eqn),
		Fill: func(st *solution.State, out []float64) error {
			if eqn < 0 || eqn >= st.NumEqn {
				return fmt.Errorf("mass: component %d out of range [0, %d)", eqn, st.NumEqn)
			}
			n, dx := st.Grid.NumCells, st.Grid.Delta()
			for i := range out {
				out[i] = st.Q[eqn*n+i] * dx
			}
			return nil
		},
	}
}

// L2 is the squared discrete L2 norm of all conserved components.
func L2() Density {
	return Density{
		Name: "l2",
		Fill: func(st *solution.State, out []float64) error {
			n, dx := st.Grid.NumCells, st.Grid.Delta()
			for i := range out {
				sum := 0.0
				for m := 0; m < st.NumEqn; m++ {
					v := st.Q[m*n+i]
					sum += v * v
				}
				out[i] = sum * dx
			}
			return nil
		},
	}
}

// Combine builds a Computer whose functional k is densities[k].
func Combine(densities ...Density) Computer {
	if len(densities) == 0 {
		return nil
	}
	return func(st *solution.State) error {
		if st.NumF != len(densities) || len(st.F) != len(densities)*st.Grid.NumCells {
			st.SetNumF(len(densities))
		}
		n := st.Grid.NumCells
		for k, d := range densities {
			if err := d.Fill(st, st.F[k*n:(k+1)*n]); err != nil {
				return fmt.Errorf("%s: %w", d.Name, err)
			}
		}
		return nil
	}
}

// Names lists the density names in order, for log headers.
func Names(densities ...Density) []string {
	out := make([]string, len(densities))
	for i, d := range densities {
		out[i] = d.Name
	}
	return out
}
