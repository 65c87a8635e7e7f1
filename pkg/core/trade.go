package core

import "time"

// Decision is a target position for one bar, produced by a signal rule
type Decision struct {
	Time   time.Time `json:"time"`
	Index  int       `json:"index"`  // bar index inside the evaluated window
	Target float64   `json:"target"` // target weight of equity in [-1, 1]

	Confidence float64 `json:"confidence,omitempty"`
	Stop       float64 `json:"stop,omitempty"` // optional stop level, 0 when unset
}

// SideType is the direction of a fill
type SideType string

const (
	SideTypeBuy  SideType = "BUY"
	SideTypeSell SideType = "SELL"
)

// Fill is a simulated execution. Fills are never mutated after creation.
type Fill struct {
	Time     time.Time `json:"time"`
	Side     SideType  `json:"side"`
	Price    float64   `json:"price"`    // executed price after slippage
	Quantity float64   `json:"quantity"` // always positive, see Side
	Fee      float64   `json:"fee"`

	Notional float64 `json:"notional"` // Price * Quantity
	Equity   float64 `json:"equity"`   // equity at the execution price before the fill
}

// Signed returns the quantity with the sign of the side
func (f Fill) Signed() float64 {
	if f.Side == SideTypeSell {
		return -f.Quantity
	}
	return f.Quantity
}

// EquityPoint is the marked equity at a bar close
type EquityPoint struct {
	Time     time.Time `json:"time"`
	Equity   float64   `json:"equity"`
	Cash     float64   `json:"cash"`
	Position float64   `json:"position"`
}

// EquityCurve is a time ordered sequence of equity points, one per bar
type EquityCurve []EquityPoint

// Values returns the equity column
func (c EquityCurve) Values() []float64 {
	values := make([]float64, len(c))
	for i, point := range c {
		values[i] = point.Equity
	}
	return values
}

// Returns returns the simple per-period returns of the curve
func (c EquityCurve) Returns() []float64 {
	if len(c) < 2 {
		return nil
	}

	returns := make([]float64, len(c)-1)
	for i := 1; i < len(c); i++ {
		returns[i-1] = c[i].Equity/c[i-1].Equity - 1
	}
	return returns
}
