package core

import (
	"fmt"
	"math"
	"time"
)

// Bar represents an OHLCV bar. Bars are immutable once ingested.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	// Additional feature columns from the data source
	Metadata map[string]float64
}

// Validate checks the price and volume invariants of a single bar
func (b Bar) Validate() error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value in bar %s", ErrInvalidData, b.Time)
		}
	}

	switch {
	case b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0:
		return fmt.Errorf("%w: non-positive price in bar %s", ErrInvalidData, b.Time)
	case b.High < math.Max(b.Open, b.Close):
		return fmt.Errorf("%w: high below open/close in bar %s", ErrInvalidData, b.Time)
	case b.Low > math.Min(b.Open, b.Close):
		return fmt.Errorf("%w: low above open/close in bar %s", ErrInvalidData, b.Time)
	case b.Volume < 0:
		return fmt.Errorf("%w: negative volume in bar %s", ErrInvalidData, b.Time)
	}

	return nil
}

// ValidateBars checks that a series is strictly time ordered and that every bar is well formed
func ValidateBars(bars []Bar) error {
	for i, bar := range bars {
		if err := bar.Validate(); err != nil {
			return err
		}

		if i > 0 && !bar.Time.After(bars[i-1].Time) {
			return fmt.Errorf("%w: timestamp %s is not after %s", ErrInvalidData, bar.Time, bars[i-1].Time)
		}
	}
	return nil
}
