// Package metric computes risk/return statistics of simulated equity curves.
package metric

import (
	"math"

	"github.com/raykavin/walkforward/pkg/core"
	"gonum.org/v1/gonum/stat"
)

// ZeroVariance is the standard deviation below which ratio metrics are undefined
const ZeroVariance = 1e-12

// Compute derives the metrics of an equity curve and its fills. It is a pure
// function; undefined statistics come back as NaN.
func Compute(curve core.EquityCurve, fills []core.Fill, riskFreeRate, periodsPerYear float64) core.Metrics {
	m := core.Metrics{
		TotalReturn:      math.NaN(),
		AnnualizedReturn: math.NaN(),
		SharpeRatio:      math.NaN(),
		SortinoRatio:     math.NaN(),
		MaxDrawdown:      math.NaN(),
		CalmarRatio:      math.NaN(),
		Turnover:         math.NaN(),
		Volatility:       math.NaN(),
		FinalEquity:      math.NaN(),
	}

	trades, wins := RoundTrips(curve, fills)
	m.TradeCount = float64(trades)
	if trades > 0 {
		m.WinRate = float64(wins) / float64(trades)
	}

	if len(curve) == 0 {
		return m
	}

	initial, final := curve[0].Equity, curve[len(curve)-1].Equity
	m.FinalEquity = final
	if initial > 0 {
		m.TotalReturn = final/initial - 1
	}
	m.MaxDrawdown = MaxDrawdown(curve)
	m.Turnover = Turnover(fills, len(curve), periodsPerYear)

	returns := curve.Returns()
	if len(returns) == 0 || periodsPerYear <= 0 {
		return m
	}

	m.AnnualizedReturn = Annualize(m.TotalReturn, len(returns), periodsPerYear)
	m.CalmarRatio = Calmar(m.AnnualizedReturn, m.MaxDrawdown)

	if len(returns) < 2 {
		return m
	}

	target := riskFreeRate / periodsPerYear
	mean, std := stat.MeanStdDev(returns, nil)
	m.Volatility = std * math.Sqrt(periodsPerYear)
	if std > ZeroVariance {
		m.SharpeRatio = (mean - target) / std * math.Sqrt(periodsPerYear)
	}
	if downside := DownsideDeviation(returns, target); downside > ZeroVariance {
		m.SortinoRatio = (mean - target) / downside * math.Sqrt(periodsPerYear)
	}

	return m
}

// Annualize compounds a total return earned over periods to a yearly rate
func Annualize(totalReturn float64, periods int, periodsPerYear float64) float64 {
	if periods <= 0 || math.IsNaN(totalReturn) {
		return math.NaN()
	}
	if totalReturn <= -1 {
		return -1
	}
	return math.Pow(1+totalReturn, periodsPerYear/float64(periods)) - 1
}

// MaxDrawdown returns the minimum of equity over its running peak minus one, 0 at best
func MaxDrawdown(curve core.EquityCurve) float64 {
	drawdown, peak := 0.0, math.Inf(-1)
	for _, point := range curve {
		peak = math.Max(peak, point.Equity)
		if peak > 0 {
			drawdown = math.Min(drawdown, point.Equity/peak-1)
		}
	}
	return drawdown
}

// Calmar divides the annualized return by the magnitude of the max drawdown.
// Without drawdown it is 0 for a zero return and undefined otherwise.
func Calmar(annualizedReturn, maxDrawdown float64) float64 {
	switch {
	case math.IsNaN(annualizedReturn) || math.IsNaN(maxDrawdown):
		return math.NaN()
	case maxDrawdown == 0 && annualizedReturn == 0:
		return 0
	case maxDrawdown == 0:
		return math.NaN()
	}
	return annualizedReturn / math.Abs(maxDrawdown)
}

// DownsideDeviation is the root mean square shortfall of returns below target
func DownsideDeviation(returns []float64, target float64) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, r := range returns {
		if shortfall := r - target; shortfall < 0 {
			sum += shortfall * shortfall
		}
	}
	return math.Sqrt(sum / float64(len(returns)))
}

// Turnover sums traded notional relative to the equity before each fill and
// annualizes it over the bars of the curve
func Turnover(fills []core.Fill, bars int, periodsPerYear float64) float64 {
	if bars == 0 {
		return math.NaN()
	}
	total := 0.0
	for _, fill := range fills {
		if fill.Equity > 0 {
			total += math.Abs(fill.Notional) / fill.Equity
		}
	}
	if periodsPerYear <= 0 {
		return total
	}
	return total * periodsPerYear / float64(bars)
}

func lastPoint(curve core.EquityCurve) core.EquityPoint {
	if len(curve) == 0 {
		return core.EquityPoint{}
	}
	return curve[len(curve)-1]
}
