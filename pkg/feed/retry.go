package feed

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"
	"github.com/raykavin/walkforward/pkg/core"
	"github.com/raykavin/walkforward/pkg/logger"
)

// DefaultAttempts is the number of calls Retry makes before giving up
const DefaultAttempts = 3

// Retry calls another provider again with exponential backoff when it fails.
// Invalid data, unknown symbols and context errors are returned immediately.
type Retry struct {
	Attempts int
	Min, Max time.Duration

	provider core.DataProvider
	log      logger.Logger
}

// NewRetry wraps provider. attempts below 1 means DefaultAttempts.
func NewRetry(provider core.DataProvider, attempts int, log logger.Logger) *Retry {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	return &Retry{
		Attempts: attempts,
		Min:      100 * time.Millisecond,
		Max:      1 * time.Second,
		provider: provider,
		log:      logger.OrNop(log),
	}
}

// Bars implements core.DataProvider
func (r *Retry) Bars(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	b := &backoff.Backoff{Min: r.Min, Max: r.Max}

	for attempt := 1; ; attempt++ {
		bars, err := r.provider.Bars(ctx, symbol, start, end)
		if err == nil {
			return bars, nil
		}
		if attempt >= r.Attempts || !retryable(err) {
			return nil, err
		}

		wait := b.Duration()
		r.log.WithError(err).WithFields(map[string]any{
			"symbol":  symbol,
			"attempt": attempt,
			"wait":    wait,
		}).Warn("bar request failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, core.ErrInvalidData), errors.Is(err, core.ErrInvalidConfiguration):
		return false
	case errors.Is(err, ErrUnknownSymbol):
		return false
	}
	return true
}
