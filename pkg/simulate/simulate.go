// Package simulate turns target decisions into fills and a marked equity curve.
package simulate

import (
	"fmt"
	"iter"
	"math"

	"github.com/raykavin/walkforward/pkg/core"
)

// Execution selects the bar price a decision fills at
type Execution string

const (
	// ExecutionNextOpen fills a decision stamped with bar i at bar i's open
	ExecutionNextOpen Execution = "next-open"
	// ExecutionClose fills a decision stamped with bar i at bar i's close
	ExecutionClose Execution = "close"
)

// ParseExecution converts a configuration string into an Execution
func ParseExecution(value string) (Execution, error) {
	switch Execution(value) {
	case "", ExecutionNextOpen:
		return ExecutionNextOpen, nil
	case ExecutionClose:
		return ExecutionClose, nil
	}
	return "", fmt.Errorf("%w: unknown execution mode %q", core.ErrInvalidConfiguration, value)
}

// Config holds the simulation parameters of one run
type Config struct {
	InitialCapital float64
	Fee            FeeModel
	Slippage       SlippageModel
	Execution      Execution
	// AllowShort enables short margin; without it a negative target is an error
	AllowShort bool
}

// DefaultConfig returns 100000 of capital, a 10 bps fee, no slippage and next-open execution
func DefaultConfig() Config {
	return Config{
		InitialCapital: 100_000,
		Fee:            NewFixedBpsFee(10),
		Slippage:       ZeroSlippage{},
		Execution:      ExecutionNextOpen,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if math.IsNaN(c.InitialCapital) || math.IsInf(c.InitialCapital, 0) || c.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial capital must be positive, got %v", core.ErrInvalidConfiguration, c.InitialCapital)
	}
	_, err := ParseExecution(string(c.Execution))
	return err
}

func (c Config) withDefaults() Config {
	if c.Fee == nil {
		c.Fee = NewFixedBpsFee(0)
	}
	if c.Slippage == nil {
		c.Slippage = ZeroSlippage{}
	}
	if c.Execution == "" {
		c.Execution = ExecutionNextOpen
	}
	return c
}

// account is the mutable state of one simulation
type account struct {
	cfg      Config
	cash     float64
	position float64
	stop     float64
	// sign of the position the last stop closed, 0 when not stopped out
	stopped float64
	fills   []core.Fill
}

func (a *account) equity(price float64) float64 {
	return a.cash + a.position*price
}

// Run simulates decisions over bars. Decision indices refer to positions in bars.
// Each decision rebalances the position to Target × equity / price, and the
// equity is marked to every bar's close.
func Run(decisions iter.Seq[core.Decision], bars []core.Bar, cfg Config) (core.EquityCurve, []core.Fill, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	cfg = cfg.withDefaults()

	targets := make([]*core.Decision, len(bars))
	for decision := range decisions {
		if decision.Index < 0 || decision.Index >= len(bars) {
			return nil, nil, fmt.Errorf("%w: decision index %d outside a window of %d bars",
				core.ErrInvalidConfiguration, decision.Index, len(bars))
		}
		targets[decision.Index] = &decision
	}

	acc := &account{cfg: cfg, cash: cfg.InitialCapital}
	curve := make(core.EquityCurve, 0, len(bars))

	for i, bar := range bars {
		decision := targets[i]

		if decision != nil && cfg.Execution == ExecutionNextOpen {
			if err := acc.rebalance(*decision, bar, bar.Open); err != nil {
				return nil, nil, err
			}
		}

		acc.checkStop(bar)

		if decision != nil && cfg.Execution == ExecutionClose {
			if err := acc.rebalance(*decision, bar, bar.Close); err != nil {
				return nil, nil, err
			}
		}

		curve = append(curve, core.EquityPoint{
			Time:     bar.Time,
			Equity:   acc.equity(bar.Close),
			Cash:     acc.cash,
			Position: acc.position,
		})
	}

	return curve, acc.fills, nil
}

func (a *account) rebalance(decision core.Decision, bar core.Bar, price float64) error {
	equity := a.equity(price)
	if equity <= 0 {
		return fmt.Errorf("%w: equity %.2f at %s", core.ErrInsufficientCapital, equity, bar.Time)
	}
	if decision.Target < 0 && !a.cfg.AllowShort {
		return fmt.Errorf("%w: target %.4f at %s needs short margin", core.ErrInsufficientCapital,
			decision.Target, bar.Time)
	}

	// stay out after a stop until the rule goes flat or flips side
	if a.stopped != 0 {
		if decision.Target != 0 && math.Signbit(decision.Target) == math.Signbit(a.stopped) {
			return nil
		}
		a.stopped = 0
	}

	if decision.Target != 0 {
		a.stop = decision.Stop
	} else {
		a.stop = 0
	}

	delta := decision.Target*equity/price - a.position
	if math.Abs(delta)*price <= 1e-9*equity {
		return nil
	}

	side := core.SideTypeBuy
	if delta < 0 {
		side = core.SideTypeSell
	}
	a.execute(side, math.Abs(delta), price, equity, bar)
	return nil
}

func (a *account) execute(side core.SideType, quantity, price, equity float64, bar core.Bar) {
	impact := math.Abs(a.cfg.Slippage.PriceImpact(quantity, price, bar))
	if side == core.SideTypeBuy {
		price += impact
	} else {
		price = math.Max(price-impact, 0)
	}

	notional := quantity * price
	fee := a.cfg.Fee.Fee(notional)

	// without margin a buy can spend at most the available cash
	if side == core.SideTypeBuy && !a.cfg.AllowShort && notional+fee > a.cash {
		if a.cash <= 0 {
			return
		}
		quantity *= a.cash / (notional + fee) * (1 - 1e-12)
		notional = quantity * price
		fee = a.cfg.Fee.Fee(notional)
	}

	if side == core.SideTypeBuy {
		a.cash -= notional + fee
		a.position += quantity
	} else {
		a.cash += notional - fee
		a.position -= quantity
	}

	a.fills = append(a.fills, core.Fill{
		Time:     bar.Time,
		Side:     side,
		Price:    price,
		Quantity: quantity,
		Fee:      fee,
		Notional: notional,
		Equity:   equity,
	})
}

// checkStop closes the position when the bar trades through the active stop.
// Gaps fill at the open. The side stays stopped out for the following decisions.
func (a *account) checkStop(bar core.Bar) {
	if a.stop <= 0 || a.position == 0 {
		return
	}

	side := math.Copysign(1, a.position)
	switch {
	case side > 0 && bar.Low <= a.stop:
		price := math.Min(a.stop, bar.Open)
		a.execute(core.SideTypeSell, a.position, price, a.equity(price), bar)
	case side < 0 && bar.High >= a.stop:
		price := math.Max(a.stop, bar.Open)
		a.execute(core.SideTypeBuy, -a.position, price, a.equity(price), bar)
	default:
		return
	}
	a.stop = 0
	a.stopped = side
}
