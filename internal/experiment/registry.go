package experiment

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/simrun/internal/dynamo"
	"github.com/san-kum/simrun/internal/functional"
	"github.com/san-kum/simrun/internal/integrators"
	"github.com/san-kum/simrun/internal/physics"
)

// ModelFactory builds a system; cells is ignored by single-cell models.
type ModelFactory func(cells int) dynamo.System

type Registry struct {
	models      map[string]ModelFactory
	integrators map[string]func() dynamo.Integrator
	densities   map[string]func(dynamo.System) functional.Density
}

func NewRegistry() *Registry {
	r := &Registry{
		models:      make(map[string]ModelFactory),
		integrators: make(map[string]func() dynamo.Integrator),
		densities:   make(map[string]func(dynamo.System) functional.Density),
	}

	r.models["pendulum"] = func(int) dynamo.System { return physics.NewPendulum() }
	r.models["spring_mass"] = func(cells int) dynamo.System {
		if cells <= 1 {
			return physics.NewSpringMass()
		}
		return physics.NewSpringMassChain(cells)
	}
	r.models["vanderpol"] = func(int) dynamo.System { return physics.NewVanDerPol() }
	r.models["lorenz96"] = func(cells int) dynamo.System { return physics.NewLorenz96(cells) }
	r.models["wave"] = func(cells int) dynamo.System { return physics.NewWave(cells) }

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["rk45"] = func() dynamo.Integrator { return integrators.NewRK45() }

	r.densities["energy"] = functional.Energy
	r.densities["l2"] = func(dynamo.System) functional.Density { return functional.L2() }

	return r
}

func (r *Registry) GetModel(name string, cells int) (dynamo.System, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(cells), nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

// GetDensity resolves a functional name. "massN" selects component N.
func (r *Registry) GetDensity(name string, sys dynamo.System) (functional.Density, error) {
	if fn, ok := r.densities[name]; ok {
		return fn(sys), nil
	}
	if rest, ok := strings.CutPrefix(name, "mass"); ok {
		eqn := 0
		if rest != "" {
			n, err := strconv.Atoi(rest)
			if err != nil {
				return functional.Density{}, fmt.Errorf("unknown functional: %s", name)
			}
			eqn = n
		}
		return functional.Mass(eqn), nil
	}
	return functional.Density{}, fmt.Errorf("unknown functional: %s", name)
}

func (r *Registry) ListModels() []string      { return sortedKeys(r.models) }
func (r *Registry) ListIntegrators() []string { return sortedKeys(r.integrators) }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
