package core

import (
	"fmt"
	"time"
)

// Window is a half-open range of bar indices [Start, End) with its timestamps.
// From is the time of bar Start, To is the time of bar End-1.
type Window struct {
	Start int       `json:"start"`
	End   int       `json:"end"`
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
}

// Len returns the number of bars in the window
func (w Window) Len() int {
	if w.End < w.Start {
		return 0
	}
	return w.End - w.Start
}

// Overlaps reports whether two windows share at least one bar
func (w Window) Overlaps(other Window) bool {
	return w.Start < other.End && other.Start < w.End
}

func (w Window) String() string {
	if w.From.IsZero() {
		return fmt.Sprintf("[%d,%d)", w.Start, w.End)
	}
	return fmt.Sprintf("[%d,%d) %s..%s", w.Start, w.End, w.From.Format(time.DateOnly), w.To.Format(time.DateOnly))
}

// Fold is one train/test partition. Train may hold up to two segments,
// before and after the test block, each separated from it by Embargo bars.
type Fold struct {
	Index   int      `json:"index"`
	Train   []Window `json:"train"`
	Test    Window   `json:"test"`
	Embargo int      `json:"embargo"`
}

// TrainLen returns the total number of training bars
func (f Fold) TrainLen() int {
	total := 0
	for _, w := range f.Train {
		total += w.Len()
	}
	return total
}

// Cutoff is the first bar index the test evaluation may look back to:
// the end of the training segment that precedes the test block, or 0.
func (f Fold) Cutoff() int {
	cutoff := 0
	for _, w := range f.Train {
		if w.End <= f.Test.Start && w.End > cutoff {
			cutoff = w.End
		}
	}
	return cutoff
}

// Disjoint reports whether the test blocks of two folds share no bar
func (f Fold) Disjoint(other Fold) bool {
	return !f.Test.Overlaps(other.Test)
}

// Purged reports whether every training segment keeps the embargo gap to the test block
func (f Fold) Purged() bool {
	for _, w := range f.Train {
		before := w.End+f.Embargo <= f.Test.Start
		after := f.Test.End+f.Embargo <= w.Start
		if !before && !after {
			return false
		}
	}
	return true
}

// FoldStatus is the outcome of one fold
type FoldStatus string

const (
	FoldCompleted FoldStatus = "completed"
	FoldSkipped   FoldStatus = "skipped"
)

// FoldResult holds the per-fold output of a backtest run
type FoldResult struct {
	Fold    Fold        `json:"fold"`
	Status  FoldStatus  `json:"status"`
	Reason  string      `json:"reason,omitempty"`
	Metrics Metrics     `json:"metrics"`
	Equity  EquityCurve `json:"equity,omitempty"`
	Fills   []Fill      `json:"fills,omitempty"`
}
