package config

import "sort"

var Presets = map[string]map[string]*Config{
	"pendulum": {
		"small": {
			Model: "pendulum", Integrator: "rk4", Dt: 0.01,
			InitState:   []float64{0.2, 0.0},
			Functionals: []string{"energy"},
			Output:      OutputConfig{Style: "fixed-count", TFinal: 20.0, NumOutputTimes: 40},
		},
		"large": {
			Model: "pendulum", Integrator: "rk4", Dt: 0.01,
			InitState:   []float64{2.5, 0.0},
			Functionals: []string{"energy"},
			Output:      OutputConfig{Style: "fixed-count", TFinal: 20.0, NumOutputTimes: 40},
		},
		"spinning": {
			Model: "pendulum", Integrator: "rk45", Dt: 0.01, Tolerance: 1e-8,
			InitState:   []float64{0.1, 8.0},
			Functionals: []string{"energy"},
			Output:      OutputConfig{Style: "fixed-count", TFinal: 30.0, NumOutputTimes: 60},
		},
	},
	"spring_mass": {
		"bounce": {
			Model: "spring_mass", Integrator: "rk4", Dt: 0.01, Cells: 1,
			InitState:   []float64{2.0, 0.0},
			Functionals: []string{"energy"},
			Output:      OutputConfig{Style: "fixed-count", TFinal: 20.0, NumOutputTimes: 40},
		},
		"chain": {
			Model: "spring_mass", Integrator: "rk4", Dt: 0.005, Cells: 8,
			Gauges:      []float64{0.5},
			Functionals: []string{"energy", "l2"},
			Output:      OutputConfig{Style: "fixed-count", TFinal: 10.0, NumOutputTimes: 20},
		},
	},
	"vanderpol": {
		"relaxation": {
			Model: "vanderpol", Integrator: "rk45", Dt: 0.01, Tolerance: 1e-6,
			Params: map[string]float64{"mu": 5.0},
			Output: OutputConfig{Style: "fixed-count", TFinal: 50.0, NumOutputTimes: 100},
		},
	},
	"lorenz96": {
		"chaos": {
			Model: "lorenz96", Integrator: "rk4", Dt: 0.005, Cells: 40,
			Gauges:      []float64{0.5},
			Functionals: []string{"l2"},
			Output:      OutputConfig{Style: "fixed-steps", NumOutputTimes: 200, NStepOut: 10},
		},
	},
	"wave": {
		"pluck": {
			Model: "wave", Integrator: "rk4", Dt: 0.001, Cells: 64,
			Gauges:      []float64{0.25, 0.5},
			Functionals: []string{"energy", "mass0"},
			Derived:     []string{"l2"},
			Output:      OutputConfig{Style: "fixed-count", TFinal: 2.0, NumOutputTimes: 20},
		},
		"probes": {
			Model: "wave", Integrator: "rk4", Dt: 0.001, Cells: 64,
			Gauges: []float64{0.1, 0.9},
			Output: OutputConfig{Style: "explicit-times", OutTimes: []float64{0, 0.1, 0.5, 1.0}},
		},
	},
}

// GetPreset returns the preset merged over the defaults, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	p, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return p.mergeOnto(DefaultConfig())
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListModels returns the models that have presets.
func ListModels() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// mergeOnto copies the fields p sets onto base.
func (p *Config) mergeOnto(base *Config) *Config {
	src := p.Clone()
	if src.Model != "" {
		base.Model = src.Model
	}
	if src.Integrator != "" {
		base.Integrator = src.Integrator
	}
	if src.Dt != 0 {
		base.Dt = src.Dt
	}
	if src.Tolerance != 0 {
		base.Tolerance = src.Tolerance
	}
	if src.Cells != 0 {
		base.Cells = src.Cells
	}
	if src.Params != nil {
		base.Params = src.Params
	}
	if len(src.InitState) > 0 {
		base.InitState = src.InitState
	}
	if len(src.Gauges) > 0 {
		base.Gauges = src.Gauges
	}
	if len(src.Functionals) > 0 {
		base.Functionals = src.Functionals
	}
	if len(src.Derived) > 0 {
		base.Derived = src.Derived
	}
	o := src.Output
	if o.Style != "" {
		base.Output.Style = o.Style
	}
	if o.TFinal != 0 {
		base.Output.TFinal = o.TFinal
	}
	if o.NumOutputTimes != 0 {
		base.Output.NumOutputTimes = o.NumOutputTimes
	}
	if len(o.OutTimes) > 0 {
		base.Output.OutTimes = o.OutTimes
	}
	if o.NStepOut != 0 {
		base.Output.NStepOut = o.NStepOut
	}
	return base
}
