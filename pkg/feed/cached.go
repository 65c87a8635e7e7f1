package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/raykavin/walkforward/pkg/core"
)

// Cached memoizes bar windows of another provider keyed by symbol and range.
// Errors are not cached.
type Cached struct {
	provider core.DataProvider
	internal *cache.Cache
}

// NewCached wraps provider with a cache whose entries live for expiration
func NewCached(provider core.DataProvider, expiration, cleanupInterval time.Duration) *Cached {
	return &Cached{
		provider: provider,
		internal: cache.New(expiration, cleanupInterval),
	}
}

// Bars implements core.DataProvider
func (c *Cached) Bars(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	key := cacheKey(symbol, start, end)
	if value, found := c.internal.Get(key); found {
		if bars, ok := value.([]core.Bar); ok {
			return cloneBars(bars), nil
		}
	}

	bars, err := c.provider.Bars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	c.internal.SetDefault(key, cloneBars(bars))
	return bars, nil
}

// Len reports the number of cached windows
func (c *Cached) Len() int {
	return c.internal.ItemCount()
}

// Flush drops every cached window
func (c *Cached) Flush() {
	c.internal.Flush()
}

func cacheKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf("%s|%s|%s", symbol, start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano))
}
