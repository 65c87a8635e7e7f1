package core

import "errors"

var (
	// ErrInvalidConfiguration reports a caller error detected before any work starts.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrInsufficientCapital aborts the simulation of a single fold.
	ErrInsufficientCapital = errors.New("insufficient capital")
	// ErrNoValidFolds is returned when every fold of a run was skipped.
	ErrNoValidFolds = errors.New("no valid folds")
	// ErrNoFeasibleTrial is returned together with the study when no trial satisfied the constraints.
	ErrNoFeasibleTrial = errors.New("no feasible trial")
	// ErrInvalidData reports a bar series that breaks the series invariants.
	ErrInvalidData = errors.New("invalid data")
)
