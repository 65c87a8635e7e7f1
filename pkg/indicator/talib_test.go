package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i + 1)
	}
	return values
}

func TestSMA(t *testing.T) {
	sma := SMA(ramp(10), 3)
	require.Len(t, sma, 10)
	assert.InDelta(t, 2.0, sma[MALookback(3)], 1e-9)
	assert.InDelta(t, 9.0, sma[9], 1e-9)
}

func TestIndicatorsAreCausal(t *testing.T) {
	base := ramp(60)
	for i := range base {
		if i%3 == 0 {
			base[i] += 2
		}
	}

	mutated := append([]float64(nil), base...)
	for i := 40; i < len(mutated); i++ {
		mutated[i] *= 3
	}

	check := func(name string, a, b []float64) {
		for i := 0; i < 40; i++ {
			assert.InDelta(t, a[i], b[i], 1e-9, "%s changed at %d", name, i)
		}
	}

	check("ema", EMA(base, 10), EMA(mutated, 10))
	check("rsi", RSI(base, 14), RSI(mutated, 14))
	check("roc", ROC(base, 5), ROC(mutated, 5))

	m1, s1, _ := MACD(base, 5, 12, 4)
	m2, s2, _ := MACD(mutated, 5, 12, 4)
	check("macd", m1, m2)
	check("macd signal", s1, s2)

	u1, _, l1 := BB(base, 20, 2, TypeSMA)
	u2, _, l2 := BB(mutated, 20, 2, TypeSMA)
	check("bb upper", u1, u2)
	check("bb lower", l1, l2)
}

func TestParseMaType(t *testing.T) {
	assert.Equal(t, TypeEMA, ParseMaType("ema"))
	assert.Equal(t, TypeSMA, ParseMaType("unknown"))
}
