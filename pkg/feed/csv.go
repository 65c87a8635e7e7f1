package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/xhit/go-str2duration/v2"
)

var defaultHeaderMap = map[string]int{
	"time": 0, "open": 1, "high": 2, "low": 3, "close": 4, "volume": 5,
}

var headerAliases = map[string]string{
	"date":      "time",
	"datetime":  "time",
	"timestamp": "time",
}

var timeLayouts = []string{
	time.RFC3339,
	time.DateTime,
	time.DateOnly,
}

// SymbolFile points a symbol at a CSV file sampled at Timeframe
type SymbolFile struct {
	Symbol    string
	File      string
	Timeframe string
}

// CSV serves bars loaded from CSV files, optionally resampled to a coarser timeframe
type CSV struct {
	Timeframe string

	files map[string]SymbolFile
	bars  map[string][]core.Bar
}

// NewCSV reads every file and resamples it to targetTimeframe.
// An empty targetTimeframe keeps each file at its own timeframe.
func NewCSV(targetTimeframe string, files ...SymbolFile) (*CSV, error) {
	feed := &CSV{
		Timeframe: targetTimeframe,
		files:     make(map[string]SymbolFile, len(files)),
		bars:      make(map[string][]core.Bar, len(files)),
	}

	for _, file := range files {
		bars, err := ReadCSV(file.File)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file.File, err)
		}

		if targetTimeframe != "" && targetTimeframe != file.Timeframe {
			bars, err = Resample(bars, file.Timeframe, targetTimeframe)
			if err != nil {
				return nil, fmt.Errorf("resampling %s: %w", file.Symbol, err)
			}
		}

		feed.files[file.Symbol] = file
		feed.bars[file.Symbol] = bars
	}

	return feed, nil
}

// Symbols lists the loaded symbols
func (c *CSV) Symbols() []string {
	symbols := make([]string, 0, len(c.files))
	for symbol := range c.files {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Bars implements core.DataProvider
func (c *CSV) Bars(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bars, ok := c.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return window(bars, start, end), nil
}

// ReadCSV parses a bar file. The header row is optional; without one the
// columns are time, open, high, low, close, volume. Extra named columns are
// loaded as bar metadata.
func ReadCSV(path string) ([]core.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	lines, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}

	headerMap, additional, hasHeader := parseHeaders(lines[0])
	if hasHeader {
		lines = lines[1:]
	}

	for _, column := range []string{"time", "open", "high", "low", "close", "volume"} {
		if _, ok := headerMap[column]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", core.ErrInvalidData, column)
		}
	}

	bars := make([]core.Bar, 0, len(lines))
	for i, line := range lines {
		bar, err := parseBarFromLine(line, headerMap, additional)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", core.ErrInvalidData, i+1, err)
		}
		bars = append(bars, bar)
	}

	if err := core.ValidateBars(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// parseHeaders treats the first row as data when its first cell is a timestamp
func parseHeaders(headers []string) (headerMap map[string]int, additional []string, hasHeader bool) {
	if _, err := parseTime(headers[0]); err == nil {
		return defaultHeaderMap, nil, false
	}

	headerMap = make(map[string]int, len(headers))
	for index, header := range headers {
		name := strings.ToLower(strings.TrimSpace(header))
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		headerMap[name] = index

		if _, exists := defaultHeaderMap[name]; !exists {
			additional = append(additional, name)
		}
	}

	return headerMap, additional, true
}

func parseBarFromLine(line []string, headerMap map[string]int, additional []string) (core.Bar, error) {
	field := func(name string) (float64, error) {
		index := headerMap[name]
		if index >= len(line) {
			return 0, fmt.Errorf("missing %s", name)
		}
		return strconv.ParseFloat(strings.TrimSpace(line[index]), 64)
	}

	if headerMap["time"] >= len(line) {
		return core.Bar{}, fmt.Errorf("missing time")
	}
	t, err := parseTime(line[headerMap["time"]])
	if err != nil {
		return core.Bar{}, err
	}

	bar := core.Bar{Time: t}
	if bar.Open, err = field("open"); err != nil {
		return core.Bar{}, err
	}
	if bar.High, err = field("high"); err != nil {
		return core.Bar{}, err
	}
	if bar.Low, err = field("low"); err != nil {
		return core.Bar{}, err
	}
	if bar.Close, err = field("close"); err != nil {
		return core.Bar{}, err
	}
	if bar.Volume, err = field("volume"); err != nil {
		return core.Bar{}, err
	}

	if len(additional) > 0 {
		bar.Metadata = make(map[string]float64, len(additional))
		for _, header := range additional {
			value, err := field(header)
			if err != nil {
				return core.Bar{}, err
			}
			bar.Metadata[header] = value
		}
	}

	return bar, nil
}

// parseTime accepts unix seconds, RFC3339, "2006-01-02 15:04:05" and "2006-01-02"
func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", value)
}

// Resample aggregates bars sampled at fromTimeframe into targetTimeframe periods.
// Leading bars before the first period boundary and a trailing incomplete period are dropped.
func Resample(bars []core.Bar, fromTimeframe, targetTimeframe string) ([]core.Bar, error) {
	if fromTimeframe == targetTimeframe || len(bars) == 0 {
		return bars, nil
	}

	start := -1
	for i := range bars {
		first, err := isFirstBarOfPeriod(bars[i].Time, fromTimeframe, targetTimeframe)
		if err != nil {
			return nil, err
		}
		if first {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, nil
	}

	var (
		resampled = make([]core.Bar, 0, len(bars)/2)
		current   core.Bar
		inPeriod  bool
	)

	for _, bar := range bars[start:] {
		last, err := isLastBarOfPeriod(bar.Time, fromTimeframe, targetTimeframe)
		if err != nil {
			return nil, err
		}

		if !inPeriod {
			current = bar
			inPeriod = true
		} else {
			current.High = math.Max(current.High, bar.High)
			current.Low = math.Min(current.Low, bar.Low)
			current.Close = bar.Close
			current.Volume += bar.Volume
			current.Metadata = bar.Metadata
		}

		if last {
			resampled = append(resampled, current)
			inPeriod = false
		}
	}

	return resampled, nil
}

func isFirstBarOfPeriod(t time.Time, fromTimeframe, targetTimeframe string) (bool, error) {
	fromDuration, err := str2duration.ParseDuration(fromTimeframe)
	if err != nil {
		return false, err
	}

	prev := t.Add(-fromDuration).UTC()
	return isLastBarOfPeriod(prev, fromTimeframe, targetTimeframe)
}

func isLastBarOfPeriod(t time.Time, fromTimeframe, targetTimeframe string) (bool, error) {
	if fromTimeframe == targetTimeframe {
		return true, nil
	}

	fromDuration, err := str2duration.ParseDuration(fromTimeframe)
	if err != nil {
		return false, err
	}

	next := t.Add(fromDuration).UTC()
	return isTimeOnPeriodBoundary(next, targetTimeframe)
}

func isTimeOnPeriodBoundary(t time.Time, targetTimeframe string) (bool, error) {
	onHour := t.Minute() == 0 && t.Second() == 0
	switch targetTimeframe {
	case "1m":
		return t.Second() == 0, nil
	case "5m", "10m", "15m", "30m":
		minutes, _ := strconv.Atoi(strings.TrimSuffix(targetTimeframe, "m"))
		return t.Minute()%minutes == 0 && t.Second() == 0, nil
	case "1h":
		return onHour, nil
	case "2h", "4h", "6h", "12h":
		hours, _ := strconv.Atoi(strings.TrimSuffix(targetTimeframe, "h"))
		return t.Hour()%hours == 0 && onHour, nil
	case "1d":
		return t.Hour() == 0 && onHour, nil
	case "1w":
		return t.Weekday() == time.Monday && t.Hour() == 0 && onHour, nil
	default:
		return false, fmt.Errorf("%w: invalid timeframe %s", core.ErrInvalidConfiguration, targetTimeframe)
	}
}
