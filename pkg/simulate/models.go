package simulate

import "github.com/raykavin/walkforward/pkg/core"

// FeeModel prices the commission of a fill
type FeeModel interface {
	Fee(notional float64) float64
}

// SlippageModel returns the adverse price move caused by executing quantity
// at price during bar. The result is a non-negative distance: buys pay
// price+impact and sells receive price-impact.
type SlippageModel interface {
	PriceImpact(quantity, price float64, bar core.Bar) float64
}

// ZeroSlippage fills at the modeled price
type ZeroSlippage struct{}

func (ZeroSlippage) PriceImpact(float64, float64, core.Bar) float64 { return 0 }

// FixedBpsSlippage moves the price by a fixed number of basis points
type FixedBpsSlippage struct {
	Bps float64
}

func (s FixedBpsSlippage) PriceImpact(_, price float64, _ core.Bar) float64 {
	return price * s.Bps / 10_000
}

// FixedBpsFee charges a fixed number of basis points of the notional
type FixedBpsFee struct {
	Bps float64
}

// NewFixedBpsFee creates a fee model charging bps basis points
func NewFixedBpsFee(bps float64) FixedBpsFee {
	return FixedBpsFee{Bps: bps}
}

func (f FixedBpsFee) Fee(notional float64) float64 {
	return notional * f.Bps / 10_000
}

// PercentFee charges a fraction of the notional, 0.001 being 0.1%
type PercentFee struct {
	Rate float64
}

func (f PercentFee) Fee(notional float64) float64 {
	return notional * f.Rate
}
