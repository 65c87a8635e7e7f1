package optimizer

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/raykavin/walkforward/pkg/core"
)

// Sampler draws parameter assignments from a parameter space. Implementations
// must be deterministic for a given rng state.
type Sampler interface {
	Sample(space []core.Parameter, n int, rng *rand.Rand) ([]core.ParameterSet, error)
}

// ParseSampler maps a configuration name to a sampler
func ParseSampler(name string) (Sampler, error) {
	switch name {
	case "", "random":
		return RandomSampler{}, nil
	case "halton":
		return HaltonSampler{}, nil
	case "grid":
		return GridSampler{}, nil
	}
	return nil, fmt.Errorf("%w: unknown sampler %q", core.ErrInvalidConfiguration, name)
}

// RandomSampler draws every parameter uniformly and independently
type RandomSampler struct{}

func (RandomSampler) Sample(space []core.Parameter, n int, rng *rand.Rand) ([]core.ParameterSet, error) {
	parameterSets := make([]core.ParameterSet, n)
	for i := range parameterSets {
		paramSet := make(core.ParameterSet, len(space))
		for _, param := range space {
			paramSet[param.Name] = valueAt(param, rng.Float64())
		}
		parameterSets[i] = paramSet
	}
	return parameterSets, nil
}

// HaltonSampler draws a randomly rotated Halton sequence, one prime base per
// parameter. It covers the space more evenly than independent draws.
type HaltonSampler struct{}

var haltonBases = []int{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53}

func (HaltonSampler) Sample(space []core.Parameter, n int, rng *rand.Rand) ([]core.ParameterSet, error) {
	if len(space) > len(haltonBases) {
		return nil, fmt.Errorf("%w: halton sampling supports at most %d parameters",
			core.ErrInvalidConfiguration, len(haltonBases))
	}

	shifts := make([]float64, len(space))
	for d := range shifts {
		shifts[d] = rng.Float64()
	}

	parameterSets := make([]core.ParameterSet, n)
	for i := range parameterSets {
		paramSet := make(core.ParameterSet, len(space))
		for d, param := range space {
			u := radicalInverse(i, haltonBases[d]) + shifts[d]
			paramSet[param.Name] = valueAt(param, u-math.Floor(u))
		}
		parameterSets[i] = paramSet
	}
	return parameterSets, nil
}

// radicalInverse mirrors the base-b digits of i around the radix point
func radicalInverse(i, base int) float64 {
	result, fraction := 0.0, 1.0/float64(base)
	for ; i > 0; i /= base {
		result += float64(i%base) * fraction
		fraction /= float64(base)
	}
	return result
}

// GridSampler enumerates every combination of the parameter grids in order,
// truncated to the budget
type GridSampler struct{}

func (GridSampler) Sample(space []core.Parameter, n int, _ *rand.Rand) ([]core.ParameterSet, error) {
	grids := make([][]any, len(space))
	for i, param := range space {
		values, err := gridValues(param)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return []core.ParameterSet{}, nil
		}
		grids[i] = values
	}

	// odometer over the grids, the last parameter turns fastest
	positions := make([]int, len(space))
	parameterSets := make([]core.ParameterSet, 0, min(n, 1024))
	for len(parameterSets) < n {
		set := make(core.ParameterSet, len(space))
		for i, param := range space {
			set[param.Name] = grids[i][positions[i]]
		}
		parameterSets = append(parameterSets, set)

		i := len(positions) - 1
		for ; i >= 0; i-- {
			positions[i]++
			if positions[i] < len(grids[i]) {
				break
			}
			positions[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return parameterSets, nil
}

// gridValues lists every value of a parameter on its step grid
func gridValues(param core.Parameter) ([]any, error) {
	switch param.Type {
	case core.TypeBool:
		return []any{true, false}, nil
	case core.TypeCategorical:
		return param.Options, nil
	case core.TypeFloat:
		if param.Step <= 0 && param.Min != param.Max {
			return nil, fmt.Errorf("%w: parameter %s needs a positive step for grid search",
				core.ErrInvalidConfiguration, param.Name)
		}
	}

	values := make([]any, 0, levels(param))
	for k := range levels(param) {
		values = append(values, level(param, k))
	}
	return values, nil
}

// levels returns the number of values on the step grid of a numeric
// parameter; integers default to a step of one
func levels(param core.Parameter) int {
	step := stepOf(param)
	if step <= 0 {
		return 1
	}
	return int(math.Floor((param.Max-param.Min)/step+1e-9)) + 1
}

func level(param core.Parameter, k int) any {
	value := param.Min + float64(k)*stepOf(param)
	if param.Type == core.TypeInt {
		return int(math.Round(value))
	}
	return value
}

func stepOf(param core.Parameter) float64 {
	if param.Type == core.TypeInt {
		return math.Max(math.Round(param.Step), 1)
	}
	return param.Step
}

// valueAt maps u in [0, 1) to a parameter value. Integers land on their step
// grid; floats are continuous.
func valueAt(param core.Parameter, u float64) any {
	switch param.Type {
	case core.TypeInt:
		k := min(int(u*float64(levels(param))), levels(param)-1)
		return level(param, k)
	case core.TypeFloat:
		return param.Min + u*(param.Max-param.Min)
	case core.TypeBool:
		return u >= 0.5
	case core.TypeCategorical:
		k := min(int(u*float64(len(param.Options))), len(param.Options)-1)
		return param.Options[k]
	}
	return param.Default
}
