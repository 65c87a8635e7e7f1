package simulate

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// growingBars opens every bar at the previous close and closes rate higher
func growingBars(n int, rate float64) []core.Bar {
	bars := make([]core.Bar, n)
	price := 100.0
	for i := range bars {
		open := price
		if i > 0 {
			price *= 1 + rate
		}
		bars[i] = core.Bar{
			Time:  start.AddDate(0, 0, i),
			Open:  open,
			High:  math.Max(open, price),
			Low:   math.Min(open, price),
			Close: price,
		}
	}
	return bars
}

func constant(target float64, from, to int, bars []core.Bar) []core.Decision {
	decisions := make([]core.Decision, 0, to-from)
	for i := from; i < to; i++ {
		decisions = append(decisions, core.Decision{Time: bars[i].Time, Index: i, Target: target})
	}
	return decisions
}

func zeroCost() Config {
	return Config{InitialCapital: 100_000}
}

func TestRunConstantGrowth(t *testing.T) {
	bars := growingBars(253, 0.001)

	curve, fills, err := Run(slices.Values(constant(1, 1, len(bars), bars)), bars, zeroCost())
	require.NoError(t, err)
	require.Len(t, curve, len(bars))

	// later rebalances fall below the trade threshold
	require.Len(t, fills, 1)
	assert.Equal(t, core.SideTypeBuy, fills[0].Side)
	assert.Equal(t, bars[1].Open, fills[0].Price)

	assert.Equal(t, 100_000.0, curve[0].Equity)
	assert.InDelta(t, 100_000*math.Pow(1.001, 252), curve[len(curve)-1].Equity, 1e-6)
	for i := 1; i < len(curve); i++ {
		assert.InDelta(t, 0.001, curve[i].Equity/curve[i-1].Equity-1, 1e-9, "bar %d", i)
	}
}

func TestRunZeroTarget(t *testing.T) {
	bars := growingBars(50, 0.01)

	curve, fills, err := Run(slices.Values(constant(0, 1, len(bars), bars)), bars, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, fills)
	for _, point := range curve {
		assert.Equal(t, 100_000.0, point.Equity)
		assert.Equal(t, 0.0, point.Position)
	}
}

func TestRunFeesKeepCashNonNegative(t *testing.T) {
	bars := growingBars(10, 0)
	cfg := Config{InitialCapital: 10_000, Fee: PercentFee{Rate: 0.001}}

	curve, fills, err := Run(slices.Values(constant(1, 1, 2, bars)), bars, cfg)
	require.NoError(t, err)
	require.Len(t, fills, 1)

	fill := fills[0]
	assert.InDelta(t, fill.Notional*0.001, fill.Fee, 1e-9)
	assert.LessOrEqual(t, fill.Notional+fill.Fee, 10_000.0)
	assert.InDelta(t, 10_000, fill.Notional+fill.Fee, 1e-6)
	assert.GreaterOrEqual(t, curve[1].Cash, 0.0)
	assert.InDelta(t, 10_000-fill.Fee, curve[len(curve)-1].Equity, 1e-6)
}

func TestRunShortNeedsMargin(t *testing.T) {
	bars := growingBars(10, 0.01)
	decisions := constant(-1, 2, 3, bars)

	_, _, err := Run(slices.Values(decisions), bars, zeroCost())
	assert.ErrorIs(t, err, core.ErrInsufficientCapital)

	cfg := zeroCost()
	cfg.AllowShort = true
	curve, fills, err := Run(slices.Values(decisions), bars, cfg)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, core.SideTypeSell, fills[0].Side)
	assert.Greater(t, curve[2].Cash, 100_000.0)
	assert.Less(t, curve[len(curve)-1].Equity, 100_000.0, "short loses on a rising market")
}

func TestRunExecutionModes(t *testing.T) {
	bars := []core.Bar{
		{Time: start, Open: 10, High: 11, Low: 9, Close: 10},
		{Time: start.AddDate(0, 0, 1), Open: 12, High: 15, Low: 11, Close: 14},
		{Time: start.AddDate(0, 0, 2), Open: 14, High: 16, Low: 13, Close: 15},
	}
	decisions := constant(1, 1, 2, bars)

	_, fills, err := Run(slices.Values(decisions), bars, zeroCost())
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, 12.0, fills[0].Price)

	cfg := zeroCost()
	cfg.Execution = ExecutionClose
	curve, fills, err := Run(slices.Values(decisions), bars, cfg)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, 14.0, fills[0].Price)
	assert.InDelta(t, 100_000, curve[1].Equity, 1e-6)
}

func TestRunSlippage(t *testing.T) {
	bars := growingBars(5, 0)
	cfg := Config{InitialCapital: 1_000, Slippage: FixedBpsSlippage{Bps: 50}, AllowShort: true}

	decisions := []core.Decision{
		{Time: bars[1].Time, Index: 1, Target: 1},
		{Time: bars[2].Time, Index: 2, Target: 0},
	}
	_, fills, err := Run(slices.Values(decisions), bars, cfg)
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.InDelta(t, 100.5, fills[0].Price, 1e-9)
	assert.InDelta(t, 99.5, fills[1].Price, 1e-9)
}

func TestRunStop(t *testing.T) {
	bars := []core.Bar{
		{Time: start, Open: 100, High: 100, Low: 100, Close: 100},
		{Time: start.AddDate(0, 0, 1), Open: 100, High: 101, Low: 99, Close: 100},
		{Time: start.AddDate(0, 0, 2), Open: 98, High: 99, Low: 90, Close: 92},
		{Time: start.AddDate(0, 0, 3), Open: 92, High: 93, Low: 91, Close: 92},
	}
	decisions := []core.Decision{{Time: bars[1].Time, Index: 1, Target: 1, Stop: 95}}

	curve, fills, err := Run(slices.Values(decisions), bars, zeroCost())
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, core.SideTypeSell, fills[1].Side)
	assert.Equal(t, 95.0, fills[1].Price)
	assert.Equal(t, 0.0, curve[3].Position)
	assert.InDelta(t, 95_000, curve[3].Equity, 1e-6)
}

func TestRunStaysOutAfterStop(t *testing.T) {
	opens := []float64{100, 100, 80, 79, 78, 78, 80}
	bars := make([]core.Bar, len(opens))
	for i, open := range opens {
		bars[i] = core.Bar{Time: start.AddDate(0, 0, i), Open: open, High: open + 1, Low: open - 1, Close: open}
	}

	var decisions []core.Decision
	for i := range 5 {
		decisions = append(decisions, core.Decision{Time: bars[i].Time, Index: i, Target: 1, Stop: 90})
	}
	decisions = append(decisions,
		core.Decision{Time: bars[5].Time, Index: 5, Target: 0},
		core.Decision{Time: bars[6].Time, Index: 6, Target: 1},
	)

	curve, fills, err := Run(slices.Values(decisions), bars, zeroCost())
	require.NoError(t, err)
	require.Len(t, fills, 3)

	assert.Equal(t, core.SideTypeBuy, fills[0].Side)
	assert.Equal(t, 100.0, fills[0].Price)
	assert.Equal(t, core.SideTypeSell, fills[1].Side)
	assert.Equal(t, 80.0, fills[1].Price, "gap through the stop fills at the open")
	assert.Equal(t, bars[2].Time, fills[1].Time)

	for i := 2; i <= 5; i++ {
		assert.Equal(t, 0.0, curve[i].Position, "bar %d", i)
		assert.InDelta(t, 80_000, curve[i].Equity, 1e-6, "bar %d", i)
	}

	// going flat clears the stop-out, the next long target enters again
	assert.Equal(t, core.SideTypeBuy, fills[2].Side)
	assert.Equal(t, bars[6].Time, fills[2].Time)
	assert.Equal(t, 80.0, fills[2].Price)
}

func TestRunRejectsInvalidInput(t *testing.T) {
	bars := growingBars(3, 0)

	_, _, err := Run(slices.Values(constant(1, 1, 2, bars)), bars, Config{})
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)

	_, _, err = Run(slices.Values([]core.Decision{{Index: 7, Target: 1}}), bars, zeroCost())
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)

	_, err = ParseExecution("vwap")
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}
