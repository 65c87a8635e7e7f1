// Package config loads the command line configuration using Viper
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/raykavin/walkforward/pkg/backtest"
	"github.com/raykavin/walkforward/pkg/core"
	"github.com/raykavin/walkforward/pkg/optimizer"
	"github.com/raykavin/walkforward/pkg/simulate"
	"github.com/raykavin/walkforward/pkg/split"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. WALKFORWARD_SPLIT_K
const EnvPrefix = "WALKFORWARD"

// Config is the root of the configuration file
type Config struct {
	Data       Data       `mapstructure:"data"`
	Backtest   Backtest   `mapstructure:"backtest"`
	Split      Split      `mapstructure:"split"`
	Simulation Simulation `mapstructure:"simulation"`
	Strategy   Strategy   `mapstructure:"strategy"`
	Optimizer  Optimizer  `mapstructure:"optimizer"`
	Storage    Storage    `mapstructure:"storage"`
}

// Data describes where bars come from
type Data struct {
	Source string `mapstructure:"source" validate:"oneof=csv parquet"`
	// CSV file, or the directory of <symbol>.parquet files
	Path      string `mapstructure:"path" validate:"required"`
	Timeframe string `mapstructure:"timeframe" validate:"required"`
	// Optional coarser timeframe CSV bars are resampled to
	Resample        string        `mapstructure:"resample"`
	CacheExpiration time.Duration `mapstructure:"cache_expiration" validate:"gte=0"`
	Retries         int           `mapstructure:"retries" validate:"gte=1"`
}

// Backtest holds the run range and scoring settings
type Backtest struct {
	Symbol string `mapstructure:"symbol" validate:"required"`
	From   string `mapstructure:"from"`
	To     string `mapstructure:"to"`
	// 0 derives the value from the data timeframe
	PeriodsPerYear float64 `mapstructure:"periods_per_year" validate:"gte=0"`
	RiskFreeRate   float64 `mapstructure:"risk_free_rate"`
	Parallelism    int     `mapstructure:"parallelism" validate:"gte=0"`
}

// Split mirrors split.Config
type Split struct {
	K               int     `mapstructure:"k" validate:"gte=2"`
	EmbargoFraction float64 `mapstructure:"embargo_fraction" validate:"gte=0,lt=0.5"`
	Mode            string  `mapstructure:"mode" validate:"oneof=purged walk-forward"`
}

// Simulation configures capital, costs and execution
type Simulation struct {
	InitialCapital float64 `mapstructure:"initial_capital" validate:"gt=0"`
	// FeeRate is a fraction of notional and takes precedence over FeeBps when set
	FeeRate     float64 `mapstructure:"fee_rate" validate:"gte=0,lt=1"`
	FeeBps      float64 `mapstructure:"fee_bps" validate:"gte=0"`
	SlippageBps float64 `mapstructure:"slippage_bps" validate:"gte=0"`
	Execution   string  `mapstructure:"execution" validate:"oneof=next-open close"`
	AllowShort  bool    `mapstructure:"allow_short"`
}

// Strategy selects the family and parameters of a backtest
type Strategy struct {
	ID     string         `mapstructure:"id"`
	Family string         `mapstructure:"family" validate:"required"`
	Params map[string]any `mapstructure:"params"`
}

// Optimizer configures a study over the strategy family
type Optimizer struct {
	Iterations  int           `mapstructure:"iterations" validate:"gte=1"`
	Parallelism int           `mapstructure:"parallelism" validate:"gte=1"`
	Metric      string        `mapstructure:"metric" validate:"required"`
	Maximize    bool          `mapstructure:"maximize"`
	Seed        int64         `mapstructure:"seed"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Sampler     string        `mapstructure:"sampler" validate:"oneof=random halton grid"`
	TopN        int           `mapstructure:"top_n" validate:"gte=0"`
	Constraints []string      `mapstructure:"constraints"`
	// Search restricts the searched parameters, empty searches every parameter not fixed
	Search []string `mapstructure:"search"`
	// Fixed values are merged into every trial
	Fixed  map[string]any `mapstructure:"fixed"`
	Output string         `mapstructure:"output"`
}

// Storage selects where results and studies are saved. An empty path disables it.
type Storage struct {
	Driver string `mapstructure:"driver" validate:"oneof=bunt sqlite"`
	Path   string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.source", "csv")
	v.SetDefault("data.path", "")
	v.SetDefault("data.timeframe", "1d")
	v.SetDefault("data.resample", "")
	v.SetDefault("data.cache_expiration", 10*time.Minute)
	v.SetDefault("data.retries", 3)

	v.SetDefault("backtest.symbol", "")
	v.SetDefault("backtest.from", "")
	v.SetDefault("backtest.to", "")
	v.SetDefault("backtest.periods_per_year", 0)
	v.SetDefault("backtest.risk_free_rate", 0)
	v.SetDefault("backtest.parallelism", 0)

	v.SetDefault("split.k", 5)
	v.SetDefault("split.embargo_fraction", 0.01)
	v.SetDefault("split.mode", string(split.ModePurged))

	v.SetDefault("simulation.initial_capital", 100_000)
	v.SetDefault("simulation.fee_rate", 0.001)
	v.SetDefault("simulation.fee_bps", 0)
	v.SetDefault("simulation.slippage_bps", 0)
	v.SetDefault("simulation.execution", string(simulate.ExecutionNextOpen))
	v.SetDefault("simulation.allow_short", false)

	v.SetDefault("strategy.id", "")
	v.SetDefault("strategy.family", string(core.FamilyTrendFollowing))

	v.SetDefault("optimizer.iterations", 100)
	v.SetDefault("optimizer.parallelism", 1)
	v.SetDefault("optimizer.metric", string(core.MetricSharpeRatio))
	v.SetDefault("optimizer.maximize", true)
	v.SetDefault("optimizer.seed", 1)
	v.SetDefault("optimizer.timeout", 0)
	v.SetDefault("optimizer.sampler", "random")
	v.SetDefault("optimizer.top_n", 5)
	v.SetDefault("optimizer.output", "")

	v.SetDefault("storage.driver", "bunt")
	v.SetDefault("storage.path", "")
}

// Load reads the YAML file at path, applies WALKFORWARD_* environment
// overrides and validates the result. An empty path uses defaults and the
// environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags and the values they cannot express
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			fields := make([]string, len(invalid))
			for i, field := range invalid {
				fields[i] = fmt.Sprintf("%s (%s)", field.Namespace(), field.Tag())
			}
			return fmt.Errorf("%w: invalid fields %s", core.ErrInvalidConfiguration, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %w", core.ErrInvalidConfiguration, err)
	}

	if _, err := core.ParseFamily(c.Strategy.Family); err != nil {
		return err
	}
	if _, err := core.ParseMetricName(c.Optimizer.Metric); err != nil {
		return err
	}
	if _, err := c.constraints(); err != nil {
		return err
	}
	_, err := c.BacktestConfig()
	return err
}

// BacktestConfig builds the run configuration
func (c *Config) BacktestConfig() (backtest.Config, error) {
	from, err := parseDate(c.Backtest.From)
	if err != nil {
		return backtest.Config{}, err
	}
	to, err := parseDate(c.Backtest.To)
	if err != nil {
		return backtest.Config{}, err
	}

	periods := c.Backtest.PeriodsPerYear
	if periods == 0 {
		timeframe := c.Data.Timeframe
		if c.Data.Resample != "" {
			timeframe = c.Data.Resample
		}
		if periods, err = backtest.PeriodsPerYear(timeframe); err != nil {
			return backtest.Config{}, err
		}
	}

	cfg := backtest.Config{
		Symbol: c.Backtest.Symbol,
		From:   from,
		To:     to,
		Split: split.Config{
			K:               c.Split.K,
			EmbargoFraction: c.Split.EmbargoFraction,
			Mode:            split.Mode(c.Split.Mode),
		},
		Simulation:     c.SimulationConfig(),
		RiskFreeRate:   c.Backtest.RiskFreeRate,
		PeriodsPerYear: periods,
		Parallelism:    c.Backtest.Parallelism,
	}
	return cfg, cfg.Validate()
}

// SimulationConfig builds the simulator configuration
func (c *Config) SimulationConfig() simulate.Config {
	var fee simulate.FeeModel = simulate.NewFixedBpsFee(c.Simulation.FeeBps)
	if c.Simulation.FeeRate > 0 {
		fee = simulate.PercentFee{Rate: c.Simulation.FeeRate}
	}

	var slippage simulate.SlippageModel = simulate.ZeroSlippage{}
	if c.Simulation.SlippageBps > 0 {
		slippage = simulate.FixedBpsSlippage{Bps: c.Simulation.SlippageBps}
	}

	return simulate.Config{
		InitialCapital: c.Simulation.InitialCapital,
		Fee:            fee,
		Slippage:       slippage,
		Execution:      simulate.Execution(c.Simulation.Execution),
		AllowShort:     c.Simulation.AllowShort,
	}
}

// Family returns the configured strategy family
func (c *Config) Family() (core.Family, error) {
	return core.ParseFamily(c.Strategy.Family)
}

// Spec builds the strategy spec of a single backtest
func (c *Config) Spec() (core.StrategySpec, error) {
	family, err := c.Family()
	if err != nil {
		return core.StrategySpec{}, err
	}

	id := c.Strategy.ID
	if id == "" {
		id = string(family)
	}
	return core.NewStrategySpec(id, family, core.ParameterSet(c.Strategy.Params)), nil
}

// OptimizerConfig builds the study configuration over space, the parameters
// of the configured family
func (c *Config) OptimizerConfig(space []core.Parameter) (*optimizer.Config, error) {
	sampler, err := optimizer.ParseSampler(c.Optimizer.Sampler)
	if err != nil {
		return nil, err
	}
	constraints, err := c.constraints()
	if err != nil {
		return nil, err
	}

	searched, err := c.searchSpace(space)
	if err != nil {
		return nil, err
	}

	return optimizer.NewConfig().
		WithParameters(searched...).
		WithFixed(core.ParameterSet(c.Optimizer.Fixed)).
		WithMaxIterations(c.Optimizer.Iterations).
		WithParallelism(c.Optimizer.Parallelism).
		WithTargetMetric(core.MetricName(c.Optimizer.Metric), c.Optimizer.Maximize).
		WithTopN(c.Optimizer.TopN).
		WithSeed(c.Optimizer.Seed).
		WithTimeout(c.Optimizer.Timeout).
		WithConstraints(constraints...).
		WithSampler(sampler), nil
}

func (c *Config) searchSpace(space []core.Parameter) ([]core.Parameter, error) {
	searched := make([]core.Parameter, 0, len(space))
	if len(c.Optimizer.Search) == 0 {
		for _, param := range space {
			if _, fixed := c.Optimizer.Fixed[param.Name]; !fixed {
				searched = append(searched, param)
			}
		}
		return searched, nil
	}

	byName := make(map[string]core.Parameter, len(space))
	for _, param := range space {
		byName[param.Name] = param
	}
	for _, name := range c.Optimizer.Search {
		param, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown search parameter %q", core.ErrInvalidConfiguration, name)
		}
		searched = append(searched, param)
	}
	return searched, nil
}

func (c *Config) constraints() ([]optimizer.Constraint, error) {
	constraints := make([]optimizer.Constraint, 0, len(c.Optimizer.Constraints))
	for _, expr := range c.Optimizer.Constraints {
		constraint, err := optimizer.ParseConstraint(expr)
		if err != nil {
			return nil, err
		}
		constraints = append(constraints, constraint)
	}
	return constraints, nil
}

// parseDate accepts "2006-01-02" or RFC3339, an empty value is an open bound
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid date %q", core.ErrInvalidConfiguration, value)
}
