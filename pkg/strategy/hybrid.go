package strategy

import (
	"fmt"
	"math"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/raykavin/walkforward/pkg/indicator"
)

// Hybrid combines the MACD trend with an RSI filter: it only joins a trend
// that is not already stretched
type Hybrid struct{}

func (Hybrid) Family() core.Family { return core.FamilyHybrid }

func (Hybrid) Parameters() []core.Parameter {
	return append([]core.Parameter{
		{Name: "macd_fast", Description: "MACD fast EMA period", Type: core.TypeInt, Default: 12, Min: 2, Max: 50, Step: 2},
		{Name: "macd_slow", Description: "MACD slow EMA period", Type: core.TypeInt, Default: 26, Min: 5, Max: 100, Step: 2},
		{Name: "macd_signal", Description: "MACD signal period", Type: core.TypeInt, Default: 9, Min: 2, Max: 30, Step: 1},
		{Name: "rsi_period", Description: "RSI period", Type: core.TypeInt, Default: 14, Min: 2, Max: 50, Step: 2},
		{Name: "rsi_oversold", Description: "RSI level below which shorts are not opened", Type: core.TypeFloat, Default: 30.0, Min: 10, Max: 45, Step: 5},
		{Name: "rsi_overbought", Description: "RSI level above which longs are not opened", Type: core.TypeFloat, Default: 70.0, Min: 55, Max: 90, Step: 5},
	}, commonParameters()...)
}

func (Hybrid) Validate(params core.ParameterSet) error {
	fast, slow := params.Int("macd_fast", 0), params.Int("macd_slow", 0)
	if fast >= slow {
		return fmt.Errorf("%w: macd_fast (%d) must be lower than macd_slow (%d)",
			core.ErrInvalidConfiguration, fast, slow)
	}

	oversold, overbought := params.Float("rsi_oversold", 0), params.Float("rsi_overbought", 0)
	if oversold >= overbought {
		return fmt.Errorf("%w: rsi_oversold (%v) must be lower than rsi_overbought (%v)",
			core.ErrInvalidConfiguration, oversold, overbought)
	}
	return nil
}

func (Hybrid) Lookback(params core.ParameterSet) int {
	macd := indicator.MACDLookback(params.Int("macd_slow", 26), params.Int("macd_signal", 9))
	return max(macd, indicator.RSILookback(params.Int("rsi_period", 14))) + 1
}

func (h Hybrid) Signals(df *core.Dataframe, params core.ParameterSet) []Signal {
	oversold := params.Float("rsi_oversold", 30)
	overbought := params.Float("rsi_overbought", 70)

	macd, signal, hist := indicator.MACD(df.Close,
		params.Int("macd_fast", 12), params.Int("macd_slow", 26), params.Int("macd_signal", 9))
	rsi := indicator.RSI(df.Close, params.Int("rsi_period", 14))
	df.Metadata["macd"] = macd
	df.Metadata["macd_signal"] = signal
	df.Metadata["macd_hist"] = hist
	df.Metadata["rsi"] = rsi

	signals := make([]Signal, df.Len())
	for i := h.Lookback(params) - 1; i < df.Len(); i++ {
		bullish := macd[i] > signal[i] && rsi[i] < overbought
		bearish := macd[i] < signal[i] && rsi[i] > oversold
		signals[i] = Signal{
			Target:     direction(bullish, bearish),
			Confidence: math.Min(math.Abs(rsi[i]-50)/50, 1),
		}
	}
	return signals
}
