package feed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func dailyBars(n int) []core.Bar {
	bars := make([]core.Bar, n)
	for i := range bars {
		price := 100 + float64(i)
		bars[i] = core.Bar{
			Time:   start.AddDate(0, 0, i),
			Open:   price,
			High:   price + 1.5,
			Low:    price - 1,
			Close:  price + 0.5,
			Volume: 10,
		}
	}
	return bars
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type countingProvider struct {
	calls atomic.Int32
	fail  int32
	err   error
	bars  []core.Bar
}

func (p *countingProvider) Bars(_ context.Context, _ string, start, end time.Time) ([]core.Bar, error) {
	n := p.calls.Add(1)
	if n <= p.fail {
		return nil, p.err
	}
	return window(p.bars, start, end), nil
}

func TestReadCSV(t *testing.T) {
	t.Run("header with metadata", func(t *testing.T) {
		path := writeFile(t, "btc.csv", "Date,Open,High,Low,Close,Volume,sentiment\n"+
			"2023-01-02,100,102,99,101,5,0.5\n"+
			"2023-01-03T00:00:00Z,101,103,100,102,6,-0.25\n")

		bars, err := ReadCSV(path)
		require.NoError(t, err)
		require.Len(t, bars, 2)

		assert.Equal(t, start, bars[0].Time)
		assert.Equal(t, start.AddDate(0, 0, 1), bars[1].Time)
		assert.Equal(t, 102.0, bars[1].Close)
		assert.Equal(t, 6.0, bars[1].Volume)
		assert.Equal(t, map[string]float64{"sentiment": -0.25}, bars[1].Metadata)
	})

	t.Run("headerless unix seconds", func(t *testing.T) {
		path := writeFile(t, "eth.csv", "1672617600,100,102,99,101,5\n1672704000,101,103,100,102,6\n")

		bars, err := ReadCSV(path)
		require.NoError(t, err)
		require.Len(t, bars, 2)
		assert.Equal(t, start, bars[0].Time)
		assert.Equal(t, 99.0, bars[0].Low)
		assert.Nil(t, bars[0].Metadata)
	})

	t.Run("invalid bar", func(t *testing.T) {
		path := writeFile(t, "bad.csv", "time,open,high,low,close,volume\n2023-01-02,100,100,99,101,5\n")
		_, err := ReadCSV(path)
		assert.ErrorIs(t, err, core.ErrInvalidData)
	})

	t.Run("unordered", func(t *testing.T) {
		path := writeFile(t, "bad.csv", "2023-01-03,100,102,99,101,5\n2023-01-02,100,102,99,101,5\n")
		_, err := ReadCSV(path)
		assert.ErrorIs(t, err, core.ErrInvalidData)
	})

	t.Run("missing column", func(t *testing.T) {
		path := writeFile(t, "bad.csv", "time,open,high,low,close\n2023-01-02,100,102,99,101\n")
		_, err := ReadCSV(path)
		assert.ErrorIs(t, err, core.ErrInvalidData)
	})

	t.Run("unparsable number", func(t *testing.T) {
		path := writeFile(t, "bad.csv", "2023-01-02,abc,102,99,101,5\n")
		_, err := ReadCSV(path)
		assert.ErrorIs(t, err, core.ErrInvalidData)
	})
}

func TestResample(t *testing.T) {
	first := start.Add(time.Hour)
	bars := make([]core.Bar, 11)
	for i := range bars {
		price := 100 + float64(i)
		bars[i] = core.Bar{
			Time:   first.Add(time.Duration(i) * time.Hour),
			Open:   price,
			High:   price + 1.5,
			Low:    price - 1,
			Close:  price + 0.5,
			Volume: 1,
		}
	}

	resampled, err := Resample(bars, "1h", "4h")
	require.NoError(t, err)
	require.Len(t, resampled, 2)

	// 01:00 to 03:00 precede the first boundary
	assert.Equal(t, start.Add(4*time.Hour), resampled[0].Time)
	assert.Equal(t, 103.0, resampled[0].Open)
	assert.Equal(t, 107.5, resampled[0].High)
	assert.Equal(t, 102.0, resampled[0].Low)
	assert.Equal(t, 106.5, resampled[0].Close)
	assert.Equal(t, 4.0, resampled[0].Volume)

	assert.Equal(t, start.Add(8*time.Hour), resampled[1].Time)
	assert.Equal(t, 110.5, resampled[1].Close)

	same, err := Resample(bars, "1h", "1h")
	require.NoError(t, err)
	assert.Equal(t, bars, same)

	_, err = Resample(bars, "1h", "3h")
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestCSVProvider(t *testing.T) {
	path := writeFile(t, "btc.csv", "2023-01-02,100,102,99,101,5\n2023-01-03,101,103,100,102,6\n2023-01-04,102,104,101,103,7\n")

	feed, err := NewCSV("", SymbolFile{Symbol: "BTCUSDT", File: path, Timeframe: "1d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT"}, feed.Symbols())

	ctx := context.Background()
	all, err := feed.Bars(ctx, "BTCUSDT", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	bounded, err := feed.Bars(ctx, "BTCUSDT", start.AddDate(0, 0, 1), start.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Len(t, bounded, 2)
	assert.Equal(t, 101.0, bounded[0].Open)

	_, err = feed.Bars(ctx, "ETHUSDT", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	_, err = NewCSV("", SymbolFile{Symbol: "X", File: filepath.Join(t.TempDir(), "missing.csv")})
	assert.Error(t, err)
}

func TestParquetRoundTrip(t *testing.T) {
	provider := NewParquet(filepath.Join(t.TempDir(), "bars"))
	bars := dailyBars(30)
	require.NoError(t, provider.Write("BTCUSDT", bars))

	loaded, err := provider.Bars(context.Background(), "BTCUSDT", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, bars, loaded)

	bounded, err := provider.Bars(context.Background(), "BTCUSDT", start.AddDate(0, 0, 10), start.AddDate(0, 0, 19))
	require.NoError(t, err)
	assert.Equal(t, bars[10:20], bounded)

	_, err = provider.Bars(context.Background(), "ETHUSDT", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestMemory(t *testing.T) {
	memory := NewMemory()
	bars := dailyBars(5)
	require.NoError(t, memory.Add("BTCUSDT", bars))

	invalid := dailyBars(2)
	invalid[1].Time = invalid[0].Time
	assert.ErrorIs(t, memory.Add("ETHUSDT", invalid), core.ErrInvalidData)

	got, err := memory.Bars(context.Background(), "BTCUSDT", time.Time{}, time.Time{})
	require.NoError(t, err)
	got[0].Close = -1

	again, err := memory.Bars(context.Background(), "BTCUSDT", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, bars[0].Close, again[0].Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = memory.Bars(ctx, "BTCUSDT", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCached(t *testing.T) {
	source := &countingProvider{bars: dailyBars(10)}
	cached := NewCached(source, time.Minute, time.Minute)
	ctx := context.Background()

	first, err := cached.Bars(ctx, "BTCUSDT", time.Time{}, time.Time{})
	require.NoError(t, err)
	first[0].Close = -1

	second, err := cached.Bars(ctx, "BTCUSDT", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), source.calls.Load())
	assert.Equal(t, 100.5, second[0].Close)

	_, err = cached.Bars(ctx, "BTCUSDT", start, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), source.calls.Load())
	assert.Equal(t, 2, cached.Len())

	cached.Flush()
	assert.Equal(t, 0, cached.Len())
}

func TestMetadataIsNotShared(t *testing.T) {
	bars := dailyBars(3)
	for i := range bars {
		bars[i].Metadata = map[string]float64{"funding": 0.01}
	}
	ctx := context.Background()

	memory := NewMemory()
	require.NoError(t, memory.Add("BTCUSDT", bars))
	bars[0].Metadata["funding"] = 9

	got, err := memory.Bars(ctx, "BTCUSDT", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0.01, got[0].Metadata["funding"])
	got[0].Metadata["funding"] = 7
	delete(got[1].Metadata, "funding")

	cached := NewCached(memory, time.Minute, time.Minute)
	first, err := cached.Bars(ctx, "BTCUSDT", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0.01, first[0].Metadata["funding"])
	assert.Contains(t, first[1].Metadata, "funding")
	first[2].Metadata["funding"] = -1

	second, err := cached.Bars(ctx, "BTCUSDT", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0.01, second[2].Metadata["funding"])
}

func TestCachedDoesNotStoreErrors(t *testing.T) {
	source := &countingProvider{bars: dailyBars(3), fail: 1, err: errors.New("timeout")}
	cached := NewCached(source, time.Minute, time.Minute)

	_, err := cached.Bars(context.Background(), "BTCUSDT", time.Time{}, time.Time{})
	require.Error(t, err)

	bars, err := cached.Bars(context.Background(), "BTCUSDT", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, bars, 3)
	assert.Equal(t, int32(2), source.calls.Load())
}

func fastRetry(provider core.DataProvider, attempts int) *Retry {
	retry := NewRetry(provider, attempts, nil)
	retry.Min, retry.Max = time.Millisecond, 2*time.Millisecond
	return retry
}

func TestRetry(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		source := &countingProvider{bars: dailyBars(3), fail: 2, err: errors.New("connection reset")}
		bars, err := fastRetry(source, 3).Bars(context.Background(), "BTCUSDT", time.Time{}, time.Time{})
		require.NoError(t, err)
		assert.Len(t, bars, 3)
		assert.Equal(t, int32(3), source.calls.Load())
	})

	t.Run("gives up", func(t *testing.T) {
		source := &countingProvider{fail: 10, err: errors.New("connection reset")}
		_, err := fastRetry(source, 3).Bars(context.Background(), "BTCUSDT", time.Time{}, time.Time{})
		assert.EqualError(t, err, "connection reset")
		assert.Equal(t, int32(3), source.calls.Load())
	})

	t.Run("invalid data is final", func(t *testing.T) {
		source := &countingProvider{fail: 10, err: core.ErrInvalidData}
		_, err := fastRetry(source, 3).Bars(context.Background(), "BTCUSDT", time.Time{}, time.Time{})
		assert.ErrorIs(t, err, core.ErrInvalidData)
		assert.Equal(t, int32(1), source.calls.Load())
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		source := &countingProvider{fail: 10, err: errors.New("connection reset")}
		retry := NewRetry(source, 5, nil)
		retry.Min, retry.Max = time.Hour, time.Hour

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := retry.Bars(ctx, "BTCUSDT", time.Time{}, time.Time{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, int32(1), source.calls.Load())
	})

	assert.Equal(t, DefaultAttempts, NewRetry(&countingProvider{}, 0, nil).Attempts)
}
