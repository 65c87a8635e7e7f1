package metric

import (
	"math"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// TradeProfits returns the profit of every round trip in account currency,
// after fees. A trade opens when the position leaves zero and closes when it
// returns to zero or flips side; a position still open at the end is marked
// at the last close of the curve.
func TradeProfits(curve core.EquityCurve, fills []core.Fill) []float64 {
	var (
		profits             []float64
		position, cost, pnl float64
	)

	closeTrade := func() {
		profits = append(profits, pnl)
		pnl = 0
	}

	for _, fill := range fills {
		qty := fill.Signed()
		pnl -= fill.Fee

		// part of the fill that reduces the open position
		if position != 0 && math.Signbit(qty) != math.Signbit(position) {
			closed := math.Min(math.Abs(qty), math.Abs(position))
			direction := math.Copysign(1, position)
			pnl += closed * (fill.Price - cost) * direction
			position += math.Copysign(closed, qty)
			qty -= math.Copysign(closed, qty)

			if math.Abs(position) < 1e-12 {
				position = 0
				closeTrade()
			}
		}

		if qty != 0 {
			cost = (cost*math.Abs(position) + fill.Price*math.Abs(qty)) / (math.Abs(position) + math.Abs(qty))
			position += qty
		}
	}

	if last := lastPoint(curve); position != 0 && last.Position != 0 {
		price := (last.Equity - last.Cash) / last.Position
		pnl += position * (price - cost)
		closeTrade()
	}

	return profits
}

// RoundTrips counts the trades of a fill sequence and how many of them made money
func RoundTrips(curve core.EquityCurve, fills []core.Fill) (trades, wins int) {
	profits := TradeProfits(curve, fills)
	return len(profits), lo.CountBy(profits, func(p float64) bool { return p > 0 })
}

// TradeSummary collects the round trips of one or more folds
type TradeSummary struct {
	Profits []float64
}

// NewTradeSummary summarizes the round trips of a fold
func NewTradeSummary(curve core.EquityCurve, fills []core.Fill) TradeSummary {
	return TradeSummary{Profits: TradeProfits(curve, fills)}
}

// Merge returns a summary holding the trades of both summaries
func (s TradeSummary) Merge(other TradeSummary) TradeSummary {
	profits := make([]float64, 0, len(s.Profits)+len(other.Profits))
	return TradeSummary{Profits: append(append(profits, s.Profits...), other.Profits...)}
}

// Win returns the profits of winning trades
func (s TradeSummary) Win() []float64 {
	return lo.Filter(s.Profits, func(p float64, _ int) bool { return p > 0 })
}

// Lose returns the profits of losing or flat trades, all <= 0
func (s TradeSummary) Lose() []float64 {
	return lo.Filter(s.Profits, func(p float64, _ int) bool { return p <= 0 })
}

// Profit is the net result of every trade
func (s TradeSummary) Profit() float64 {
	return lo.Sum(s.Profits)
}

// WinPercentage is the share of winning trades in percent, 0 without trades
func (s TradeSummary) WinPercentage() float64 {
	if len(s.Profits) == 0 {
		return 0
	}
	return float64(len(s.Win())) / float64(len(s.Profits)) * 100
}

// Payoff is the average win over the average loss. NaN without wins or losses.
func (s TradeSummary) Payoff() float64 {
	return Payoff(s.Profits)
}

// ProfitFactor is the gross profit over the gross loss. NaN without losses.
func (s TradeSummary) ProfitFactor() float64 {
	return ProfitFactor(s.Profits)
}

// SQN is the system quality number sqrt(n) * mean / stddev. NaN below two
// trades or when every trade made the same profit.
func (s TradeSummary) SQN() float64 {
	n := len(s.Profits)
	if n < 2 {
		return math.NaN()
	}

	mean, std := stat.MeanStdDev(s.Profits, nil)
	if std <= ZeroVariance {
		return math.NaN()
	}
	return math.Sqrt(float64(n)) * mean / std
}

// Payoff calculates the ratio of average wins to average losses of trade results
func Payoff(values []float64) float64 {
	wins, losses := partitionTradeResults(values)
	if len(wins) == 0 || len(losses) == 0 {
		return math.NaN()
	}

	avgLoss := stat.Mean(losses, nil)
	if avgLoss == 0 {
		return math.NaN()
	}
	return stat.Mean(wins, nil) / avgLoss
}

// ProfitFactor calculates the ratio of total profits to total losses of trade results
func ProfitFactor(values []float64) float64 {
	wins, losses := partitionTradeResults(values)

	grossLoss := lo.Sum(losses)
	if grossLoss == 0 {
		return math.NaN()
	}
	return lo.Sum(wins) / grossLoss
}

// partitionTradeResults separates trade results into wins and absolute losses
func partitionTradeResults(values []float64) (wins []float64, losses []float64) {
	for _, value := range values {
		if value > 0 {
			wins = append(wins, value)
		} else if value < 0 {
			losses = append(losses, math.Abs(value))
		}
	}
	return wins, losses
}
