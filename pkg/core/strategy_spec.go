package core

// StrategySpec identifies a strategy run: a family tag plus a parameter assignment.
// A spec is a value; tuning produces a new spec instead of mutating one.
type StrategySpec struct {
	ID     string       `json:"id"`
	Family Family       `json:"family"`
	Params ParameterSet `json:"params"`
}

// NewStrategySpec creates a spec holding its own copy of params
func NewStrategySpec(id string, family Family, params ParameterSet) StrategySpec {
	return StrategySpec{
		ID:     id,
		Family: family,
		Params: params.Clone(),
	}
}

// WithParams derives a new spec of the same family
func (s StrategySpec) WithParams(id string, params ParameterSet) StrategySpec {
	return NewStrategySpec(id, s.Family, params)
}
