package core

import (
	"encoding/json"
	"fmt"
	"math"
)

// MetricName defines standard metric names used by objectives and constraints
type MetricName string

const (
	MetricTotalReturn      MetricName = "total_return"
	MetricAnnualizedReturn MetricName = "annualized_return"
	MetricSharpeRatio      MetricName = "sharpe_ratio"
	MetricSortinoRatio     MetricName = "sortino_ratio"
	MetricMaxDrawdown      MetricName = "max_drawdown"
	MetricCalmarRatio      MetricName = "calmar_ratio"
	MetricTurnover         MetricName = "turnover"
	MetricWinRate          MetricName = "win_rate"
	MetricTradeCount       MetricName = "trade_count"
	MetricVolatility       MetricName = "volatility"
	MetricFinalEquity      MetricName = "final_equity"
)

// MetricNames lists every metric in report order
func MetricNames() []MetricName {
	return []MetricName{
		MetricTotalReturn, MetricAnnualizedReturn, MetricSharpeRatio, MetricSortinoRatio,
		MetricMaxDrawdown, MetricCalmarRatio, MetricTurnover, MetricWinRate,
		MetricTradeCount, MetricVolatility, MetricFinalEquity,
	}
}

// ParseMetricName validates a metric name
func ParseMetricName(name string) (MetricName, error) {
	for _, metric := range MetricNames() {
		if string(metric) == name {
			return metric, nil
		}
	}
	return "", fmt.Errorf("%w: unknown metric %q", ErrInvalidConfiguration, name)
}

// Metrics is the fixed set of risk/return statistics of an equity curve.
// Undefined statistics are NaN; callers must check with math.IsNaN.
type Metrics struct {
	TotalReturn      float64
	AnnualizedReturn float64
	SharpeRatio      float64
	SortinoRatio     float64
	MaxDrawdown      float64 // <= 0
	CalmarRatio      float64
	Turnover         float64 // annualized
	WinRate          float64
	TradeCount       float64
	Volatility       float64 // annualized
	FinalEquity      float64
}

// UndefinedMetrics returns metrics with every value NaN
func UndefinedMetrics() Metrics {
	var m Metrics
	for _, name := range MetricNames() {
		m = m.Set(name, math.NaN())
	}
	return m
}

// Get returns the metric by name, NaN for unknown names
func (m Metrics) Get(name MetricName) float64 {
	switch name {
	case MetricTotalReturn:
		return m.TotalReturn
	case MetricAnnualizedReturn:
		return m.AnnualizedReturn
	case MetricSharpeRatio:
		return m.SharpeRatio
	case MetricSortinoRatio:
		return m.SortinoRatio
	case MetricMaxDrawdown:
		return m.MaxDrawdown
	case MetricCalmarRatio:
		return m.CalmarRatio
	case MetricTurnover:
		return m.Turnover
	case MetricWinRate:
		return m.WinRate
	case MetricTradeCount:
		return m.TradeCount
	case MetricVolatility:
		return m.Volatility
	case MetricFinalEquity:
		return m.FinalEquity
	}
	return math.NaN()
}

// Set returns a copy of m with one metric replaced
func (m Metrics) Set(name MetricName, value float64) Metrics {
	switch name {
	case MetricTotalReturn:
		m.TotalReturn = value
	case MetricAnnualizedReturn:
		m.AnnualizedReturn = value
	case MetricSharpeRatio:
		m.SharpeRatio = value
	case MetricSortinoRatio:
		m.SortinoRatio = value
	case MetricMaxDrawdown:
		m.MaxDrawdown = value
	case MetricCalmarRatio:
		m.CalmarRatio = value
	case MetricTurnover:
		m.Turnover = value
	case MetricWinRate:
		m.WinRate = value
	case MetricTradeCount:
		m.TradeCount = value
	case MetricVolatility:
		m.Volatility = value
	case MetricFinalEquity:
		m.FinalEquity = value
	}
	return m
}

// Values returns every metric keyed by name
func (m Metrics) Values() map[MetricName]float64 {
	values := make(map[MetricName]float64, len(MetricNames()))
	for _, name := range MetricNames() {
		values[name] = m.Get(name)
	}
	return values
}

// MarshalJSON encodes NaN and infinite metrics as null
func (m Metrics) MarshalJSON() ([]byte, error) {
	out := make(map[MetricName]*float64, len(MetricNames()))
	for name, value := range m.Values() {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			out[name] = nil
			continue
		}
		v := value
		out[name] = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes null metrics back to NaN
func (m *Metrics) UnmarshalJSON(data []byte) error {
	var in map[MetricName]*float64
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	decoded := Metrics{}
	for _, name := range MetricNames() {
		value, ok := in[name]
		if !ok || value == nil {
			decoded = decoded.Set(name, math.NaN())
			continue
		}
		decoded = decoded.Set(name, *value)
	}
	*m = decoded
	return nil
}

// Aggregate summarizes per-fold metrics. StdDev is the fold stability indicator.
type Aggregate struct {
	Mean   Metrics `json:"mean"`
	Median Metrics `json:"median"`
	StdDev Metrics `json:"stddev"`
}
