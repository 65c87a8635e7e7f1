// Package split partitions a bar range into train/test folds without leakage.
package split

import (
	"fmt"
	"math"

	"github.com/raykavin/walkforward/pkg/core"
)

// Mode selects how training data is placed around the test block
type Mode string

const (
	// ModePurged is purged k-fold: train on every block except the test block,
	// minus an embargo on both sides of it
	ModePurged Mode = "purged"
	// ModeWalkForward is an expanding window: train only on data before the test block
	ModeWalkForward Mode = "walk-forward"
)

// Config holds the splitter parameters
type Config struct {
	K               int     `json:"k" mapstructure:"k"`
	EmbargoFraction float64 `json:"embargo_fraction" mapstructure:"embargo_fraction"`
	Mode            Mode    `json:"mode" mapstructure:"mode"`
}

// Validate checks the parameters that do not depend on the range length
func (c Config) Validate() error {
	if c.K < 2 {
		return fmt.Errorf("%w: k must be at least 2, got %d", core.ErrInvalidConfiguration, c.K)
	}
	if math.IsNaN(c.EmbargoFraction) || c.EmbargoFraction < 0 || c.EmbargoFraction >= 0.5 {
		return fmt.Errorf("%w: embargo fraction must be in [0, 0.5), got %v",
			core.ErrInvalidConfiguration, c.EmbargoFraction)
	}
	switch c.Mode {
	case "", ModePurged, ModeWalkForward:
	default:
		return fmt.Errorf("%w: unknown split mode %q", core.ErrInvalidConfiguration, c.Mode)
	}
	return nil
}

// blocks returns the number of contiguous blocks the range is cut into
func (c Config) blocks() int {
	if c.Mode == ModeWalkForward {
		return c.K + 1
	}
	return c.K
}

// Embargo returns the number of bars dropped next to each test block
func (c Config) Embargo(blockLength int) int {
	// the epsilon keeps 0.07*100 from rounding up to 8
	return int(math.Ceil(c.EmbargoFraction*float64(blockLength) - 1e-9))
}

// Split cuts n bars into K folds. The result only depends on its
// arguments, so repeated calls yield identical folds.
func Split(n int, cfg Config) ([]core.Fold, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	blocks := cfg.blocks()
	if n < blocks {
		return nil, fmt.Errorf("%w: %d bars cannot fill %d blocks", core.ErrInvalidConfiguration, n, blocks)
	}

	blockLength := n / blocks
	embargo := cfg.Embargo(blockLength)

	block := func(i int) core.Window {
		end := (i + 1) * blockLength
		if i == blocks-1 {
			end = n
		}
		return core.Window{Start: i * blockLength, End: end}
	}

	folds := make([]core.Fold, 0, cfg.K)
	for i := range cfg.K {
		fold := core.Fold{Index: i, Embargo: embargo}

		if cfg.Mode == ModeWalkForward {
			fold.Test = block(i + 1)
		} else {
			fold.Test = block(i)
		}

		if end := fold.Test.Start - embargo; end > 0 {
			fold.Train = append(fold.Train, core.Window{Start: 0, End: end})
		}
		if cfg.Mode != ModeWalkForward {
			if start := fold.Test.End + embargo; start < n {
				fold.Train = append(fold.Train, core.Window{Start: start, End: n})
			}
		}

		if fold.TrainLen() == 0 {
			return nil, fmt.Errorf("%w: fold %d has an empty train set (n=%d, k=%d, embargo=%d)",
				core.ErrInvalidConfiguration, i, n, cfg.K, embargo)
		}
		folds = append(folds, fold)
	}

	return folds, nil
}

// Bind returns copies of folds with window timestamps taken from bars
func Bind(folds []core.Fold, bars []core.Bar) []core.Fold {
	bound := make([]core.Fold, len(folds))
	for i, fold := range folds {
		fold.Train = append([]core.Window(nil), fold.Train...)
		for j := range fold.Train {
			fold.Train[j] = bind(fold.Train[j], bars)
		}
		fold.Test = bind(fold.Test, bars)
		bound[i] = fold
	}
	return bound
}

func bind(w core.Window, bars []core.Bar) core.Window {
	if w.Len() == 0 || w.Start < 0 || w.End > len(bars) {
		return w
	}
	w.From = bars[w.Start].Time
	w.To = bars[w.End-1].Time
	return w
}
