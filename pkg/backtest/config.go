package backtest

import (
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/raykavin/walkforward/pkg/simulate"
	"github.com/raykavin/walkforward/pkg/split"
	"github.com/xhit/go-str2duration/v2"
)

// TradingDaysPerYear is the annualization factor of daily bars
const TradingDaysPerYear = 252

// Config holds everything a run needs besides the strategy and the data provider
type Config struct {
	Symbol         string
	From, To       time.Time
	Split          split.Config
	Simulation     simulate.Config
	RiskFreeRate   float64
	PeriodsPerYear float64
	// Parallelism bounds the number of folds run at once, 0 uses every CPU
	Parallelism int
}

// Validate checks the configuration before any data is requested
func (c Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", core.ErrInvalidConfiguration)
	}
	if !c.To.IsZero() && !c.From.IsZero() && !c.From.Before(c.To) {
		return fmt.Errorf("%w: from (%s) must be before to (%s)", core.ErrInvalidConfiguration,
			c.From.Format(time.DateOnly), c.To.Format(time.DateOnly))
	}
	if math.IsNaN(c.RiskFreeRate) || math.IsInf(c.RiskFreeRate, 0) {
		return fmt.Errorf("%w: risk free rate must be finite", core.ErrInvalidConfiguration)
	}
	if math.IsNaN(c.PeriodsPerYear) || c.PeriodsPerYear <= 0 {
		return fmt.Errorf("%w: periods per year must be positive, got %v", core.ErrInvalidConfiguration, c.PeriodsPerYear)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism must not be negative", core.ErrInvalidConfiguration)
	}
	if err := c.Split.Validate(); err != nil {
		return err
	}
	return c.Simulation.Validate()
}

func (c Config) parallelism() int {
	if c.Parallelism == 0 {
		return runtime.NumCPU()
	}
	return c.Parallelism
}

// PeriodsPerYear derives the annualization factor from a bar timeframe such
// as "1d", "4h" or "15m". Daily bars count trading days only.
func PeriodsPerYear(timeframe string) (float64, error) {
	duration, err := str2duration.ParseDuration(timeframe)
	if err != nil || duration <= 0 {
		return 0, fmt.Errorf("%w: invalid timeframe %q", core.ErrInvalidConfiguration, timeframe)
	}

	day := 24 * time.Hour
	if duration == day {
		return TradingDaysPerYear, nil
	}
	return float64(365*day) / float64(duration), nil
}
