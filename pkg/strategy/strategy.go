package strategy

import (
	"fmt"
	"iter"
	"sync"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/samber/lo"
)

// Parameters shared by every family
const (
	ParamPositionSize = "position_size"
	ParamAllowShort   = "allow_short"
)

// Signal is the target exposure a rule wants after observing bar i
type Signal struct {
	Target     float64
	Confidence float64
	Stop       float64
}

// Rule is the capability set every strategy family implements.
type Rule interface {
	// Family is the tag that selects this rule
	Family() core.Family
	// Parameters declares the tunable parameters and their valid ranges
	Parameters() []core.Parameter
	// Validate checks relations between parameters that ranges cannot express
	Validate(params core.ParameterSet) error
	// Lookback is the number of bars that must precede the first decision
	Lookback(params core.ParameterSet) int
	// Signals computes one signal per row; signal i may only read rows 0..i
	Signals(df *core.Dataframe, params core.ParameterSet) []Signal
}

// Registry maps family tags to rules. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rules map[core.Family]Rule
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{rules: make(map[core.Family]Rule)}
}

// Default returns a registry holding the four built-in families
func Default() *Registry {
	registry := NewRegistry()
	for _, rule := range []Rule{TrendFollowing{}, MeanReversion{}, Momentum{}, Hybrid{}} {
		_ = registry.Register(rule)
	}
	return registry
}

// Register adds a rule; a family can only be registered once
func (r *Registry) Register(rule Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[rule.Family()]; exists {
		return fmt.Errorf("%w: family %s already registered", core.ErrInvalidConfiguration, rule.Family())
	}
	r.rules[rule.Family()] = rule
	return nil
}

// Rule returns the rule registered for a family
func (r *Registry) Rule(family core.Family) (Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[family]
	if !ok {
		return nil, fmt.Errorf("%w: no rule for family %q", core.ErrInvalidConfiguration, family)
	}
	return rule, nil
}

// Resolve finds the rule of a spec and returns its validated parameters, defaults filled in
func (r *Registry) Resolve(spec core.StrategySpec) (Rule, core.ParameterSet, error) {
	rule, err := r.Rule(spec.Family)
	if err != nil {
		return nil, nil, err
	}

	params := core.WithDefaults(spec.Params, rule.Parameters())
	if err := core.ValidateParameterSet(params, rule.Parameters()); err != nil {
		return nil, nil, fmt.Errorf("strategy %s: %w", spec.ID, err)
	}
	if err := rule.Validate(params); err != nil {
		return nil, nil, fmt.Errorf("strategy %s: %w", spec.ID, err)
	}
	return rule, params, nil
}

// Lookback returns the warmup of a spec in bars
func (r *Registry) Lookback(spec core.StrategySpec) (int, error) {
	rule, params, err := r.Resolve(spec)
	if err != nil {
		return 0, err
	}
	return rule.Lookback(params), nil
}

// Evaluate returns the lazy decision sequence of a spec over a bar window.
//
// The decision stamped with bar j carries the signal computed on bars 0..j-1,
// so no decision ever reads its own bar or later ones. Decisions start at
// index max(1, Lookback). Each iteration re-derives indicator state from the
// window, so the sequence can be ranged over any number of times.
func (r *Registry) Evaluate(spec core.StrategySpec, symbol string, bars []core.Bar) (iter.Seq[core.Decision], error) {
	rule, params, err := r.Resolve(spec)
	if err != nil {
		return nil, err
	}

	size := params.Float(ParamPositionSize, 1)
	allowShort := params.Bool(ParamAllowShort, false)
	first := max(1, rule.Lookback(params))

	return func(yield func(core.Decision) bool) {
		if len(bars) <= first {
			return
		}

		df := core.NewDataframe(symbol, bars)
		signals := rule.Signals(df, params)

		for j := first; j < len(bars); j++ {
			signal := signals[j-1]

			target := signal.Target * size
			if !allowShort {
				target = max(target, 0)
			}

			decision := core.Decision{
				Time:       bars[j].Time,
				Index:      j,
				Target:     lo.Clamp(target, -1, 1),
				Confidence: signal.Confidence,
				Stop:       signal.Stop,
			}
			if !yield(decision) {
				return
			}
		}
	}, nil
}

func commonParameters() []core.Parameter {
	return []core.Parameter{
		{
			Name:        ParamPositionSize,
			Description: "Fraction of equity allocated to a position",
			Type:        core.TypeFloat,
			Default:     1.0,
			Min:         0.05,
			Max:         1.0,
			Step:        0.05,
		},
		{
			Name:        ParamAllowShort,
			Description: "Whether the rule may target short exposure",
			Type:        core.TypeBool,
			Default:     false,
		},
	}
}

// direction maps a bullish/bearish view to a target sign
func direction(bullish, bearish bool) float64 {
	switch {
	case bullish:
		return 1
	case bearish:
		return -1
	default:
		return 0
	}
}
