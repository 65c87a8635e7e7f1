package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/raykavin/walkforward/pkg/core"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	kind       TEXT    NOT NULL,
	id         TEXT    NOT NULL,
	payload    TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (kind, id)
)`

// SQLite implements Sink on a SQLite database
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at path and applies the schema
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// one writer; also keeps a ":memory:" database on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// SaveResult implements Sink
func (s *SQLite) SaveResult(ctx context.Context, id string, result *core.BacktestResult) error {
	return s.save(ctx, KindResult, id, result)
}

// SaveStudy implements Sink
func (s *SQLite) SaveStudy(ctx context.Context, id string, study *core.Study) error {
	return s.save(ctx, KindStudy, id, study)
}

// Result implements Sink
func (s *SQLite) Result(ctx context.Context, id string) (*core.BacktestResult, error) {
	payload, err := s.load(ctx, KindResult, id)
	if err != nil {
		return nil, err
	}
	return decode[core.BacktestResult](KindResult, id, payload)
}

// Study implements Sink
func (s *SQLite) Study(ctx context.Context, id string) (*core.Study, error) {
	payload, err := s.load(ctx, KindStudy, id)
	if err != nil {
		return nil, err
	}
	return decode[core.Study](KindStudy, id, payload)
}

// List implements Sink
func (s *SQLite) List(ctx context.Context, kind Kind) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM runs WHERE kind = ? ORDER BY created_at, id`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", kind, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) save(ctx context.Context, kind Kind, id string, value any) error {
	payload, err := encode(kind, id, value)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (kind, id, payload, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		string(kind), id, string(payload), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store %s %s: %w", kind, id, err)
	}
	return nil
}

func (s *SQLite) load(ctx context.Context, kind Kind, id string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM runs WHERE kind = ? AND id = ?`, string(kind), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", kind, id, err)
	}
	return []byte(payload), nil
}
