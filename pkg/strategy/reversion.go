package strategy

import (
	"math"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/raykavin/walkforward/pkg/indicator"
)

// MeanReversion fades moves outside the Bollinger bands and exits once price
// returns near the middle band
type MeanReversion struct{}

func (MeanReversion) Family() core.Family { return core.FamilyMeanReversion }

func (MeanReversion) Parameters() []core.Parameter {
	return append([]core.Parameter{
		{
			Name:        "period",
			Description: "Bollinger bands period",
			Type:        core.TypeInt,
			Default:     20,
			Min:         5,
			Max:         100,
			Step:        5,
		},
		{
			Name:        "std_dev",
			Description: "Band width in standard deviations",
			Type:        core.TypeFloat,
			Default:     2.0,
			Min:         1.0,
			Max:         3.5,
			Step:        0.25,
		},
		{
			Name:        "exit_threshold",
			Description: "Distance from the middle band, in band position units, that closes a position",
			Type:        core.TypeFloat,
			Default:     0.1,
			Min:         0.0,
			Max:         0.5,
			Step:        0.05,
		},
	}, commonParameters()...)
}

func (MeanReversion) Validate(core.ParameterSet) error { return nil }

func (MeanReversion) Lookback(params core.ParameterSet) int {
	return indicator.MALookback(params.Int("period", 20)) + 1
}

func (MeanReversion) Signals(df *core.Dataframe, params core.ParameterSet) []Signal {
	period := params.Int("period", 20)
	exit := params.Float("exit_threshold", 0.1)

	upper, middle, lower := indicator.BB(df.Close, period, params.Float("std_dev", 2), indicator.TypeSMA)
	df.Metadata["bb_upper"] = upper
	df.Metadata["bb_middle"] = middle
	df.Metadata["bb_lower"] = lower

	signals := make([]Signal, df.Len())
	position := 0.0
	for i := indicator.MALookback(period); i < df.Len(); i++ {
		width := upper[i] - lower[i]
		if width <= 0 {
			signals[i] = Signal{Target: position}
			continue
		}

		// 0 at the lower band, 1 at the upper band
		bandPosition := (df.Close[i] - lower[i]) / width

		switch {
		case bandPosition <= 0:
			position = 1
		case bandPosition >= 1:
			position = -1
		case math.Abs(bandPosition-0.5) <= exit:
			position = 0
		}

		signal := Signal{
			Target:     position,
			Confidence: math.Min(math.Abs(bandPosition-0.5)*2, 1),
		}
		if position > 0 {
			signal.Stop = lower[i] - width/2
		} else if position < 0 {
			signal.Stop = upper[i] + width/2
		}
		signals[i] = signal
	}
	return signals
}
