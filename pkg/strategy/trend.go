package strategy

import (
	"fmt"
	"math"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/raykavin/walkforward/pkg/indicator"
)

// TrendFollowing holds long while the fast moving average is above the slow one.
// The bar where the averages cross carries full confidence.
type TrendFollowing struct{}

func (TrendFollowing) Family() core.Family { return core.FamilyTrendFollowing }

func (TrendFollowing) Parameters() []core.Parameter {
	return append([]core.Parameter{
		{
			Name:        "fast_period",
			Description: "Period of the fast moving average",
			Type:        core.TypeInt,
			Default:     10,
			Min:         2,
			Max:         100,
			Step:        2,
		},
		{
			Name:        "slow_period",
			Description: "Period of the slow moving average",
			Type:        core.TypeInt,
			Default:     30,
			Min:         5,
			Max:         300,
			Step:        5,
		},
		{
			Name:        "ma_type",
			Description: "Moving average kind",
			Type:        core.TypeCategorical,
			Default:     "sma",
			Options:     []any{"sma", "ema", "wma"},
		},
	}, commonParameters()...)
}

func (TrendFollowing) Validate(params core.ParameterSet) error {
	fast, slow := params.Int("fast_period", 0), params.Int("slow_period", 0)
	if fast >= slow {
		return fmt.Errorf("%w: fast_period (%d) must be lower than slow_period (%d)",
			core.ErrInvalidConfiguration, fast, slow)
	}
	return nil
}

func (TrendFollowing) Lookback(params core.ParameterSet) int {
	return indicator.MALookback(params.Int("slow_period", 30)) + 1
}

func (t TrendFollowing) Signals(df *core.Dataframe, params core.ParameterSet) []Signal {
	maType := indicator.ParseMaType(params.String("ma_type", "sma"))
	slowPeriod := params.Int("slow_period", 30)

	fast := core.Series[float64](indicator.MA(df.Close, params.Int("fast_period", 10), maType))
	slow := core.Series[float64](indicator.MA(df.Close, slowPeriod, maType))
	df.Metadata["ma_fast"] = fast
	df.Metadata["ma_slow"] = slow

	first := indicator.MALookback(slowPeriod)
	signals := make([]Signal, df.Len())
	for i := first; i < df.Len(); i++ {
		if slow[i] == 0 {
			continue
		}

		confidence := math.Min(math.Abs(fast[i]-slow[i])/slow[i]*100, 1)
		if i > first && (fast.Crossover(slow, i) || fast.Crossunder(slow, i)) {
			confidence = 1
		}
		signals[i] = Signal{
			Target:     direction(fast.Above(slow, i), slow.Above(fast, i)),
			Confidence: confidence,
		}
	}
	return signals
}
