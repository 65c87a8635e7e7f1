// Package storage persists backtest results and optimization studies.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/raykavin/walkforward/pkg/core"
)

// ErrNotFound is returned when no record exists for an id
var ErrNotFound = errors.New("record not found")

// Kind tells backtest results and studies apart
type Kind string

const (
	KindResult Kind = "result"
	KindStudy  Kind = "study"
)

// Driver names accepted by Open
const (
	DriverBunt   = "bunt"
	DriverSQLite = "sqlite"
)

// Sink stores results and studies by id. Saving an existing id replaces it.
type Sink interface {
	SaveResult(ctx context.Context, id string, result *core.BacktestResult) error
	SaveStudy(ctx context.Context, id string, study *core.Study) error
	Result(ctx context.Context, id string) (*core.BacktestResult, error)
	Study(ctx context.Context, id string) (*core.Study, error)
	// List returns the ids of one kind, oldest first
	List(ctx context.Context, kind Kind) ([]string, error)
	Close() error
}

// Open creates a sink for driver at path. ":memory:" keeps everything in memory.
func Open(driver, path string) (Sink, error) {
	switch driver {
	case DriverBunt, "":
		return NewBunt(path)
	case DriverSQLite:
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", core.ErrInvalidConfiguration, driver)
	}
}

func encode(kind Kind, id string, value any) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty %s id", core.ErrInvalidConfiguration, kind)
	}

	content, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}
	return content, nil
}

func decode[T any](kind Kind, id string, content []byte) (*T, error) {
	value := new(T)
	if err := json.Unmarshal(content, value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}
	return value, nil
}
