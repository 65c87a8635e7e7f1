package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raykavin/walkforward/pkg/core"
	"github.com/tidwall/buntdb"
)

// Bunt implements Sink on a BuntDB file. Records are JSON envelopes under
// "<kind>:<id>" keys, indexed by creation time.
type Bunt struct {
	db *buntdb.DB
}

type envelope struct {
	ID        string          `json:"id"`
	CreatedAt int64           `json:"created_at"` // unix nanoseconds
	Payload   json.RawMessage `json:"payload"`
}

// NewBunt opens or creates a BuntDB store
func NewBunt(path string) (*Bunt, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	for _, kind := range []Kind{KindResult, KindStudy} {
		err = db.CreateIndex(indexName(kind), string(kind)+":*", buntdb.IndexJSON("created_at"))
		if err != nil && !errors.Is(err, buntdb.ErrIndexExists) {
			db.Close()
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
	}

	return &Bunt{db: db}, nil
}

// SaveResult implements Sink
func (b *Bunt) SaveResult(_ context.Context, id string, result *core.BacktestResult) error {
	return b.save(KindResult, id, result)
}

// SaveStudy implements Sink
func (b *Bunt) SaveStudy(_ context.Context, id string, study *core.Study) error {
	return b.save(KindStudy, id, study)
}

// Result implements Sink
func (b *Bunt) Result(_ context.Context, id string) (*core.BacktestResult, error) {
	payload, err := b.load(KindResult, id)
	if err != nil {
		return nil, err
	}
	return decode[core.BacktestResult](KindResult, id, payload)
}

// Study implements Sink
func (b *Bunt) Study(_ context.Context, id string) (*core.Study, error) {
	payload, err := b.load(KindStudy, id)
	if err != nil {
		return nil, err
	}
	return decode[core.Study](KindStudy, id, payload)
}

// List implements Sink
func (b *Bunt) List(_ context.Context, kind Kind) ([]string, error) {
	ids := make([]string, 0)
	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(indexName(kind), func(k, _ string) bool {
			ids = append(ids, strings.TrimPrefix(k, string(kind)+":"))
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate over %s records: %w", kind, err)
	}
	return ids, nil
}

// Close closes the database
func (b *Bunt) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *Bunt) save(kind Kind, id string, value any) error {
	payload, err := encode(kind, id, value)
	if err != nil {
		return err
	}

	content, err := json.Marshal(envelope{ID: id, CreatedAt: time.Now().UnixNano(), Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	return b.db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set(key(kind, id), string(content), nil); err != nil {
			return fmt.Errorf("failed to store %s %s: %w", kind, id, err)
		}
		return nil
	})
}

func (b *Bunt) load(kind Kind, id string) ([]byte, error) {
	var content string
	err := b.db.View(func(tx *buntdb.Tx) error {
		var err error
		content, err = tx.Get(key(kind, id))
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	if err != nil {
		return nil, err
	}

	var record envelope
	if err := json.Unmarshal([]byte(content), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}
	return record.Payload, nil
}

func key(kind Kind, id string) string { return string(kind) + ":" + id }

func indexName(kind Kind) string { return string(kind) + "_created" }
