package feed

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/raykavin/walkforward/pkg/core"
)

// BarRecord is the on-disk Parquet schema of a bar
type BarRecord struct {
	Time   int64   `parquet:"time,timestamp(millisecond)"` // Unix ms
	Open   float64 `parquet:"open"`
	High   float64 `parquet:"high"`
	Low    float64 `parquet:"low"`
	Close  float64 `parquet:"close"`
	Volume float64 `parquet:"volume"`
}

// Parquet serves bars from <Dir>/<SYMBOL>.parquet files
type Parquet struct {
	Dir string
}

// NewParquet creates a provider rooted at dir
func NewParquet(dir string) *Parquet {
	return &Parquet{Dir: dir}
}

// Path returns the file holding the bars of symbol
func (p *Parquet) Path(symbol string) string {
	return filepath.Join(p.Dir, symbol+".parquet")
}

// Bars implements core.DataProvider
func (p *Parquet) Bars(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := p.Path(symbol)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	bars, err := ReadParquet(path)
	if err != nil {
		return nil, err
	}
	return window(bars, start, end), nil
}

// Write stores bars for symbol, replacing any existing file
func (p *Parquet) Write(symbol string, bars []core.Bar) error {
	return WriteParquet(p.Path(symbol), bars)
}

// ReadParquet loads a bar file, ordered by time and validated
func ReadParquet(path string) ([]core.Bar, error) {
	records, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	slices.SortFunc(records, func(a, b BarRecord) int { return cmp.Compare(a.Time, b.Time) })

	bars := make([]core.Bar, len(records))
	for i, r := range records {
		bars[i] = core.Bar{
			Time:   time.UnixMilli(r.Time).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}

	if err := core.ValidateBars(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// WriteParquet writes bars to path, creating parent directories as needed.
// Metadata columns are not persisted.
func WriteParquet(path string, bars []core.Bar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	records := make([]BarRecord, len(bars))
	for i, bar := range bars {
		records[i] = BarRecord{
			Time:   bar.Time.UnixMilli(),
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		}
	}
	return parquet.WriteFile(path, records)
}
