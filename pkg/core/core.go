package core

import (
	"context"
	"time"
)

// DataProvider supplies immutable, time ordered bars for a symbol.
// Bars must already be validated: strictly increasing timestamps, no duplicates.
type DataProvider interface {
	Bars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
}

// DataProviderFunc adapts a function to the DataProvider interface
type DataProviderFunc func(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)

// Bars implements DataProvider
func (f DataProviderFunc) Bars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	return f(ctx, symbol, start, end)
}
