package indicator

import "github.com/markcheno/go-talib"

// MaType represents moving average type
type MaType = talib.MaType

// Moving average type constants
const (
	TypeSMA = talib.SMA // Simple Moving Average
	TypeEMA = talib.EMA // Exponential Moving Average
	TypeWMA = talib.WMA // Weighted Moving Average
)

// ParseMaType maps a parameter value to a moving average type, defaulting to SMA
func ParseMaType(name string) MaType {
	switch name {
	case "ema":
		return TypeEMA
	case "wma":
		return TypeWMA
	default:
		return TypeSMA
	}
}

// Every function below is causal: output[i] depends only on input[0..i].
// Outputs have the input length; positions before the lookback hold zeros.

// SMA calculates Simple Moving Average
func SMA(input []float64, period int) []float64 {
	return talib.Sma(input, period)
}

// EMA calculates Exponential Moving Average
func EMA(input []float64, period int) []float64 {
	return talib.Ema(input, period)
}

// MA calculates Moving Average with specified type
func MA(input []float64, period int, maType MaType) []float64 {
	return talib.Ma(input, period, maType)
}

// RSI calculates Relative Strength Index
func RSI(input []float64, period int) []float64 {
	return talib.Rsi(input, period)
}

// ROC calculates Rate of Change, ((price/prevPrice)-1)*100
func ROC(input []float64, period int) []float64 {
	return talib.Roc(input, period)
}

// MACD calculates Moving Average Convergence/Divergence.
// Returns MACD line, signal line, and histogram.
func MACD(input []float64, fastPeriod, slowPeriod, signalPeriod int) ([]float64, []float64, []float64) {
	return talib.Macd(input, fastPeriod, slowPeriod, signalPeriod)
}

// BB calculates Bollinger Bands.
// Returns upper, middle, and lower bands.
func BB(input []float64, period int, deviation float64, maType MaType) ([]float64, []float64, []float64) {
	return talib.BBands(input, period, deviation, deviation, maType)
}

// ATR calculates Average True Range
func ATR(high, low, close []float64, period int) []float64 {
	return talib.Atr(high, low, close, period)
}

// Lookbacks: index of the first valid output value

// MALookback returns the lookback of SMA/EMA/WMA
func MALookback(period int) int { return period - 1 }

// RSILookback returns the lookback of RSI
func RSILookback(period int) int { return period }

// ROCLookback returns the lookback of ROC
func ROCLookback(period int) int { return period }

// MACDLookback returns the lookback of the MACD signal line
func MACDLookback(slowPeriod, signalPeriod int) int { return (slowPeriod - 1) + (signalPeriod - 1) }

// ATRLookback returns the lookback of ATR
func ATRLookback(period int) int { return period }
