package metric

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func curveOf(values ...float64) core.EquityCurve {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	curve := make(core.EquityCurve, len(values))
	for i, v := range values {
		curve[i] = core.EquityPoint{Time: start.AddDate(0, 0, i), Equity: v, Cash: v}
	}
	return curve
}

func growth(n int, rate float64) core.EquityCurve {
	values := make([]float64, n)
	equity := 100_000.0
	for i := range values {
		values[i] = equity
		equity *= 1 + rate
	}
	return curveOf(values...)
}

func TestComputeFlatCurve(t *testing.T) {
	curve := curveOf(100, 100, 100, 100, 100)
	m := Compute(curve, nil, 0, 252)

	assert.Equal(t, 0.0, m.TotalReturn)
	assert.Equal(t, 0.0, m.AnnualizedReturn)
	assert.Equal(t, 0.0, m.MaxDrawdown)
	assert.Equal(t, 0.0, m.CalmarRatio)
	assert.Equal(t, 0.0, m.Turnover)
	assert.Equal(t, 0.0, m.TradeCount)
	assert.Equal(t, 0.0, m.WinRate)
	assert.Equal(t, 0.0, m.Volatility)
	assert.Equal(t, 100.0, m.FinalEquity)
	assert.True(t, math.IsNaN(m.SharpeRatio))
	assert.True(t, math.IsNaN(m.SortinoRatio))
}

func TestComputeConstantGrowth(t *testing.T) {
	m := Compute(growth(252, 0.001), nil, 0, 252)

	assert.InDelta(t, math.Pow(1.001, 252)-1, m.AnnualizedReturn, 1e-9)
	assert.InDelta(t, math.Pow(1.001, 251)-1, m.TotalReturn, 1e-9)
	assert.Equal(t, 0.0, m.MaxDrawdown)
	assert.True(t, math.IsNaN(m.CalmarRatio), "positive return without drawdown")
	assert.True(t, math.IsNaN(m.SharpeRatio), "constant returns have no variance")
	assert.True(t, math.IsNaN(m.SortinoRatio))
}

func TestComputeDegenerate(t *testing.T) {
	m := Compute(nil, nil, 0, 252)
	assert.True(t, math.IsNaN(m.TotalReturn))
	assert.True(t, math.IsNaN(m.FinalEquity))
	assert.Equal(t, 0.0, m.TradeCount)

	m = Compute(curveOf(100), nil, 0, 252)
	assert.Equal(t, 0.0, m.TotalReturn)
	assert.Equal(t, 0.0, m.MaxDrawdown)
	assert.True(t, math.IsNaN(m.AnnualizedReturn))
	assert.True(t, math.IsNaN(m.SharpeRatio))
	assert.True(t, math.IsNaN(m.Volatility))
}

func TestComputeRatios(t *testing.T) {
	curve := curveOf(100, 110, 99, 108.9, 98.01, 117.612)
	returns := curve.Returns()
	m := Compute(curve, nil, 0.0252, 252)

	mean, std := 0.0, 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	for _, r := range returns {
		std += (r - mean) * (r - mean)
	}
	std = math.Sqrt(std / float64(len(returns)-1))

	target := 0.0252 / 252
	assert.InDelta(t, (mean-target)/std*math.Sqrt(252), m.SharpeRatio, 1e-9)
	assert.InDelta(t, std*math.Sqrt(252), m.Volatility, 1e-9)
	assert.InDelta(t, 98.01/110-1, m.MaxDrawdown, 1e-9, "110 down to 98.01")
	assert.InDelta(t, m.AnnualizedReturn/(1-98.01/110), m.CalmarRatio, 1e-9)
	assert.Greater(t, m.SortinoRatio, m.SharpeRatio)
}

func TestMaxDrawdown(t *testing.T) {
	assert.InDelta(t, -0.5, MaxDrawdown(curveOf(100, 200, 150, 100, 180, 250)), 1e-12)
	assert.Equal(t, 0.0, MaxDrawdown(curveOf(1, 2, 3)))
}

func TestCalmar(t *testing.T) {
	assert.Equal(t, 0.0, Calmar(0, 0))
	assert.True(t, math.IsNaN(Calmar(0.1, 0)))
	assert.True(t, math.IsNaN(Calmar(math.NaN(), -0.2)))
	assert.InDelta(t, 0.5, Calmar(0.1, -0.2), 1e-12)
}

func TestTurnover(t *testing.T) {
	fills := []core.Fill{
		{Notional: 1000, Equity: 1000},
		{Notional: 500, Equity: 1000},
	}
	assert.InDelta(t, 1.5*252/10, Turnover(fills, 10, 252), 1e-12)
	assert.True(t, math.IsNaN(Turnover(fills, 0, 252)))
}

func TestRoundTrips(t *testing.T) {
	fills := []core.Fill{
		{Side: core.SideTypeBuy, Price: 10, Quantity: 10},
		{Side: core.SideTypeBuy, Price: 12, Quantity: 10},  // cost 11
		{Side: core.SideTypeSell, Price: 13, Quantity: 20}, // +40
		{Side: core.SideTypeBuy, Price: 20, Quantity: 5},
		{Side: core.SideTypeSell, Price: 18, Quantity: 10}, // -10 then flips short 5 at 18
		{Side: core.SideTypeBuy, Price: 17, Quantity: 5},   // +5
	}

	trades, wins := RoundTrips(nil, fills)
	assert.Equal(t, 3, trades)
	assert.Equal(t, 2, wins)

	// fees can turn a winner into a loser
	trades, wins = RoundTrips(nil, []core.Fill{
		{Side: core.SideTypeBuy, Price: 10, Quantity: 1, Fee: 1},
		{Side: core.SideTypeSell, Price: 11, Quantity: 1, Fee: 1},
	})
	assert.Equal(t, 1, trades)
	assert.Equal(t, 0, wins)
}

func TestRoundTripsMarksOpenPosition(t *testing.T) {
	curve := core.EquityCurve{{Equity: 1200, Cash: 0, Position: 10}}
	trades, wins := RoundTrips(curve, []core.Fill{{Side: core.SideTypeBuy, Price: 100, Quantity: 10}})
	assert.Equal(t, 1, trades)
	assert.Equal(t, 1, wins)

	m := Compute(curve, []core.Fill{{Side: core.SideTypeBuy, Price: 100, Quantity: 10}}, 0, 252)
	assert.Equal(t, 1.0, m.TradeCount)
	assert.Equal(t, 1.0, m.WinRate)
}

func TestTradeSummary(t *testing.T) {
	fills := []core.Fill{
		{Side: core.SideTypeBuy, Price: 10, Quantity: 10},
		{Side: core.SideTypeBuy, Price: 12, Quantity: 10},
		{Side: core.SideTypeSell, Price: 13, Quantity: 20},
		{Side: core.SideTypeBuy, Price: 20, Quantity: 5},
		{Side: core.SideTypeSell, Price: 18, Quantity: 10},
		{Side: core.SideTypeBuy, Price: 17, Quantity: 5},
	}

	summary := NewTradeSummary(nil, fills)
	require.Len(t, summary.Profits, 3)
	assert.InDeltaSlice(t, []float64{40, -10, 5}, summary.Profits, 1e-9)

	assert.Len(t, summary.Win(), 2)
	assert.Len(t, summary.Lose(), 1)
	assert.InDelta(t, 35, summary.Profit(), 1e-9)
	assert.InDelta(t, 200.0/3, summary.WinPercentage(), 1e-9)
	assert.InDelta(t, 22.5/10, summary.Payoff(), 1e-9)
	assert.InDelta(t, 45.0/10, summary.ProfitFactor(), 1e-9)

	// mean 35/3, sample stddev of {40, -10, 5}
	std := math.Sqrt((math.Pow(40-35.0/3, 2) + math.Pow(-10-35.0/3, 2) + math.Pow(5-35.0/3, 2)) / 2)
	assert.InDelta(t, math.Sqrt(3)*(35.0/3)/std, summary.SQN(), 1e-9)

	merged := summary.Merge(TradeSummary{Profits: []float64{-5}})
	assert.Len(t, merged.Profits, 4)
	assert.Len(t, summary.Profits, 3)
	assert.InDelta(t, 30, merged.Profit(), 1e-9)
	assert.InDelta(t, 50, merged.WinPercentage(), 1e-9)
}

func TestTradeSummaryUndefined(t *testing.T) {
	empty := TradeSummary{}
	assert.Equal(t, 0.0, empty.WinPercentage())
	assert.Equal(t, 0.0, empty.Profit())
	assert.True(t, math.IsNaN(empty.Payoff()))
	assert.True(t, math.IsNaN(empty.ProfitFactor()))
	assert.True(t, math.IsNaN(empty.SQN()))

	winners := TradeSummary{Profits: []float64{3, 3}}
	assert.True(t, math.IsNaN(winners.Payoff()), "no losses")
	assert.True(t, math.IsNaN(winners.ProfitFactor()), "no losses")
	assert.True(t, math.IsNaN(winners.SQN()), "constant profits")
}

func TestAggregate(t *testing.T) {
	folds := []core.Metrics{
		{SharpeRatio: 1, TotalReturn: 0.1, CalmarRatio: math.NaN()},
		{SharpeRatio: 3, TotalReturn: 0.3, CalmarRatio: 2},
		{SharpeRatio: math.NaN(), TotalReturn: 0.2, CalmarRatio: math.NaN()},
		{SharpeRatio: 2, TotalReturn: 0.6, CalmarRatio: math.NaN()},
	}

	aggregate := Aggregate(folds)
	assert.InDelta(t, 2, aggregate.Mean.SharpeRatio, 1e-12)
	assert.InDelta(t, 2, aggregate.Median.SharpeRatio, 1e-12)
	assert.InDelta(t, 1, aggregate.StdDev.SharpeRatio, 1e-12)

	assert.InDelta(t, 0.3, aggregate.Mean.TotalReturn, 1e-12)
	assert.InDelta(t, 0.25, aggregate.Median.TotalReturn, 1e-12)

	assert.Equal(t, 2.0, aggregate.Mean.CalmarRatio)
	assert.True(t, math.IsNaN(aggregate.StdDev.CalmarRatio), "one defined value")

	empty := Aggregate(nil)
	assert.True(t, math.IsNaN(empty.Mean.SharpeRatio))
}

func TestBootstrapIsReproducible(t *testing.T) {
	values := []float64{0.01, -0.02, 0.015, 0.03, -0.01, 0.005, 0.02}

	first := Bootstrap(values, Mean, 500, 0.95, rand.New(rand.NewSource(42)))
	second := Bootstrap(values, Mean, 500, 0.95, rand.New(rand.NewSource(42)))
	require.Equal(t, first, second)

	assert.LessOrEqual(t, first.Lower, first.Mean)
	assert.GreaterOrEqual(t, first.Upper, first.Mean)
	assert.Greater(t, first.StdDev, 0.0)

	assert.Equal(t, BootstrapInterval{}, Bootstrap(nil, Mean, 10, 0.95, nil))
}
