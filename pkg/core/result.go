package core

import "time"

// RunState is a backtest run lifecycle state
type RunState string

const (
	StateInitialized RunState = "initialized"
	StateSplitting   RunState = "splitting"
	StateEvaluating  RunState = "evaluating"
	StateSimulating  RunState = "simulating"
	StateScoring     RunState = "scoring"
	StateAggregating RunState = "aggregating"
	StateCompleted   RunState = "completed"
	StateFailed      RunState = "failed"
)

// BacktestResult is created once per run and never modified afterwards
type BacktestResult struct {
	Spec      StrategySpec  `json:"spec"`
	Symbol    string        `json:"symbol"`
	Folds     []FoldResult  `json:"folds"`
	Aggregate Aggregate     `json:"aggregate"`
	Equity    EquityCurve   `json:"equity"` // equity of the last completed fold
	State     RunState      `json:"state"`
	Duration  time.Duration `json:"duration"`
}

// Completed returns the folds that took part in the aggregation
func (r *BacktestResult) Completed() []FoldResult {
	completed := make([]FoldResult, 0, len(r.Folds))
	for _, fold := range r.Folds {
		if fold.Status == FoldCompleted {
			completed = append(completed, fold)
		}
	}
	return completed
}

// Trial is one evaluated parameter assignment of a study
type Trial struct {
	Index      int           `json:"index"`
	Params     ParameterSet  `json:"params"`
	Metrics    Metrics       `json:"metrics"`
	Feasible   bool          `json:"feasible"`
	Violations []string      `json:"violations,omitempty"`
	Err        string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Study is the ordered trial history of one optimization.
// Trials are only appended, never removed.
type Study struct {
	Family    Family     `json:"family"`
	Objective MetricName `json:"objective"`
	Maximize  bool       `json:"maximize"`
	Seed      int64      `json:"seed"`
	Budget    int        `json:"budget"`
	Trials    []Trial    `json:"trials"`
	Best      int        `json:"best"` // index into Trials, -1 when no trial is feasible
	Stopped   string     `json:"stopped,omitempty"`
}

// BestTrial returns the best feasible trial, or false when there is none
func (s *Study) BestTrial() (Trial, bool) {
	if s.Best < 0 || s.Best >= len(s.Trials) {
		return Trial{}, false
	}
	return s.Trials[s.Best], true
}

// Feasible returns the feasible trials in index order
func (s *Study) Feasible() []Trial {
	feasible := make([]Trial, 0, len(s.Trials))
	for _, trial := range s.Trials {
		if trial.Feasible {
			feasible = append(feasible, trial)
		}
	}
	return feasible
}
