package strategy

import (
	"math"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/raykavin/walkforward/pkg/indicator"
)

// Momentum follows the rate of change once it clears a threshold
type Momentum struct{}

func (Momentum) Family() core.Family { return core.FamilyMomentum }

func (Momentum) Parameters() []core.Parameter {
	return append([]core.Parameter{
		{
			Name:        "period",
			Description: "Rate of change period",
			Type:        core.TypeInt,
			Default:     12,
			Min:         2,
			Max:         100,
			Step:        2,
		},
		{
			Name:        "threshold",
			Description: "Minimum rate of change, in percent, to hold a position",
			Type:        core.TypeFloat,
			Default:     2.0,
			Min:         0.0,
			Max:         20.0,
			Step:        0.5,
		},
		{
			Name:        "atr_multiplier",
			Description: "Protective stop distance in ATRs, 0 disables the stop",
			Type:        core.TypeFloat,
			Default:     0.0,
			Min:         0.0,
			Max:         5.0,
			Step:        0.5,
		},
	}, commonParameters()...)
}

func (Momentum) Validate(core.ParameterSet) error { return nil }

func (Momentum) Lookback(params core.ParameterSet) int {
	period := params.Int("period", 12)
	return max(indicator.ROCLookback(period), indicator.ATRLookback(period)) + 1
}

func (m Momentum) Signals(df *core.Dataframe, params core.ParameterSet) []Signal {
	period := params.Int("period", 12)
	threshold := params.Float("threshold", 2)
	multiplier := params.Float("atr_multiplier", 0)

	roc := indicator.ROC(df.Close, period)
	atr := indicator.ATR(df.High, df.Low, df.Close, period)
	df.Metadata["roc"] = roc
	df.Metadata["atr"] = atr

	signals := make([]Signal, df.Len())
	for i := m.Lookback(params) - 1; i < df.Len(); i++ {
		target := direction(roc[i] > threshold, roc[i] < -threshold)
		signal := Signal{
			Target:     target,
			Confidence: math.Min(math.Abs(roc[i])/math.Max(threshold, 1)/2, 1),
		}
		if multiplier > 0 && target != 0 {
			signal.Stop = df.Close[i] - target*multiplier*atr[i]
		}
		signals[i] = signal
	}
	return signals
}
