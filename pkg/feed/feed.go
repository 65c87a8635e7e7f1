// Package feed provides core.DataProvider implementations backed by files,
// memory and decorators that add caching and retries.
package feed

import (
	"errors"
	"maps"
	"time"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/samber/lo"
)

// ErrUnknownSymbol is returned when a provider has no bars for the requested symbol
var ErrUnknownSymbol = errors.New("unknown symbol")

var (
	_ core.DataProvider = (*CSV)(nil)
	_ core.DataProvider = (*Parquet)(nil)
	_ core.DataProvider = (*Memory)(nil)
	_ core.DataProvider = (*Cached)(nil)
	_ core.DataProvider = (*Retry)(nil)
)

// window returns the bars between start and end, both inclusive.
// A zero bound leaves that side open. The result never aliases bars.
func window(bars []core.Bar, start, end time.Time) []core.Bar {
	return cloneBars(lo.Filter(bars, func(bar core.Bar, _ int) bool {
		if !start.IsZero() && bar.Time.Before(start) {
			return false
		}
		if !end.IsZero() && bar.Time.After(end) {
			return false
		}
		return true
	}))
}

// cloneBars copies bars together with their metadata maps
func cloneBars(bars []core.Bar) []core.Bar {
	if bars == nil {
		return nil
	}
	cloned := make([]core.Bar, len(bars))
	for i, bar := range bars {
		bar.Metadata = maps.Clone(bar.Metadata)
		cloned[i] = bar
	}
	return cloned
}
