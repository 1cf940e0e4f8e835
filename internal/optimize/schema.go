// Package optimize searches strategy parameter space against a
// backtest objective. Four methods are supported: genetic algorithm,
// exhaustive grid, uniform random and a simplified local-search
// "Bayesian" phase. All randomness flows through a seeded source so
// runs are reproducible.
package optimize

import (
	"math"
	"math/rand"

	"wavetrader/internal/backtest"
	"wavetrader/internal/errors"
)

// Kind is the value type of one tunable parameter.
type Kind string

const (
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindChoice Kind = "choice"
)

// ParamSpec declares one tunable parameter: its type, bounds and, for
// grid search, the discretization step. Choice parameters enumerate
// their values explicitly.
type ParamSpec struct {
	Name    string
	Kind    Kind
	Min     float64
	Max     float64
	Step    float64
	Choices []float64
}

// Schema is the full parameter declaration for one optimization run.
type Schema []ParamSpec

// Validate checks the schema once at optimizer entry.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return errors.NewValidationError("schema", nil, "at least one parameter required")
	}

	seen := make(map[string]bool, len(s))
	for _, spec := range s {
		if spec.Name == "" {
			return errors.NewValidationError("name", spec.Name, "must not be empty")
		}
		if seen[spec.Name] {
			return errors.NewValidationError("name", spec.Name, "declared twice")
		}
		seen[spec.Name] = true

		switch spec.Kind {
		case KindInt, KindFloat:
			if spec.Min > spec.Max {
				return errors.NewValidationError(spec.Name, spec.Min, "min exceeds max")
			}
			if spec.Step < 0 {
				return errors.NewValidationError(spec.Name, spec.Step, "step must not be negative")
			}
		case KindChoice:
			if len(spec.Choices) == 0 {
				return errors.NewValidationError(spec.Name, nil, "choice parameter needs choices")
			}
		default:
			return errors.NewValidationError(spec.Name, string(spec.Kind), "unknown parameter kind")
		}
	}
	return nil
}

// sample draws a uniform random value for the parameter.
func (p ParamSpec) sample(rng *rand.Rand) float64 {
	switch p.Kind {
	case KindInt:
		span := int64(p.Max-p.Min) + 1
		return p.Min + float64(rng.Int63n(span))
	case KindChoice:
		return p.Choices[rng.Intn(len(p.Choices))]
	}
	return p.Min + rng.Float64()*(p.Max-p.Min)
}

// mutate returns a mutated value: floats get Gaussian noise scaled to
// 10% of the range and clamped, ints and choices are resampled.
func (p ParamSpec) mutate(value float64, rng *rand.Rand) float64 {
	if p.Kind == KindFloat {
		strength := (p.Max - p.Min) * 0.1
		return p.clamp(value + rng.NormFloat64()*strength)
	}
	return p.sample(rng)
}

// perturb moves the value within a local neighborhood: floats inside
// 20% of the range, ints inside a tenth of the span.
func (p ParamSpec) perturb(value float64, rng *rand.Rand) float64 {
	switch p.Kind {
	case KindInt:
		reach := math.Max(1, math.Floor((p.Max-p.Min)/10))
		span := int64(reach)*2 + 1
		return p.clamp(value + float64(rng.Int63n(span))-reach)
	case KindFloat:
		reach := (p.Max - p.Min) * 0.2
		return p.clamp(value + (rng.Float64()*2-1)*reach)
	}
	return value
}

func (p ParamSpec) clamp(value float64) float64 {
	if p.Kind == KindInt {
		value = math.Round(value)
	}
	return math.Max(p.Min, math.Min(p.Max, value))
}

// gridValues discretizes the parameter for exhaustive search. Ints
// default to step 1, floats to 0.1.
func (p ParamSpec) gridValues() []float64 {
	if p.Kind == KindChoice {
		return p.Choices
	}

	step := p.Step
	if step == 0 {
		if p.Kind == KindInt {
			step = 1
		} else {
			step = 0.1
		}
	}

	var values []float64
	for v := p.Min; v <= p.Max+step*1e-9; v += step {
		values = append(values, p.clamp(v))
	}
	return values
}

// randomParams draws one full parameter set.
func (s Schema) randomParams(rng *rand.Rand) backtest.Params {
	params := make(backtest.Params, len(s))
	for _, spec := range s {
		params[spec.Name] = spec.sample(rng)
	}
	return params
}

// grid enumerates the Cartesian product of all discretized parameters
// in declaration order.
func (s Schema) grid() []backtest.Params {
	var result []backtest.Params

	var build func(index int, current backtest.Params)
	build = func(index int, current backtest.Params) {
		if index == len(s) {
			combo := make(backtest.Params, len(current))
			for k, v := range current {
				combo[k] = v
			}
			result = append(result, combo)
			return
		}
		for _, v := range s[index].gridValues() {
			current[s[index].Name] = v
			build(index+1, current)
		}
	}

	build(0, make(backtest.Params, len(s)))
	return result
}
