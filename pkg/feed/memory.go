package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raykavin/walkforward/pkg/core"
)

// Memory serves bars held in memory. Safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	bars map[string][]core.Bar
}

// NewMemory creates an empty in-memory provider
func NewMemory() *Memory {
	return &Memory{bars: make(map[string][]core.Bar)}
}

// Add validates and stores a copy of bars for symbol, replacing previous bars
func (m *Memory) Add(symbol string, bars []core.Bar) error {
	if err := core.ValidateBars(bars); err != nil {
		return fmt.Errorf("%s: %w", symbol, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[symbol] = cloneBars(bars)
	return nil
}

// Bars implements core.DataProvider
func (m *Memory) Bars(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	bars, ok := m.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return window(bars, start, end), nil
}
