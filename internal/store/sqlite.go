package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/i474232898/sunshine-wear/internal/weather"
)

const schema = `CREATE TABLE IF NOT EXISTS preferences (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLiteStore persists the snapshot keys in a SQLite file so they survive restarts.
type SQLiteStore struct {
	db       *sql.DB
	closed   atomic.Bool
	watchers watchers
}

var _ weather.Store = (*SQLiteStore)(nil)

// NewSQLite opens (creating if needed) the store at path.
func NewSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// One connection serializes writers; WAL lets readers see the last committed replace.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		logger.Warn("could not set WAL mode", zap.Error(err))
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads all keys in one query, so the result comes from a single committed replace.
func (s *SQLiteStore) Load(ctx context.Context) (weather.Snapshot, error) {
	if s.closed.Load() {
		return weather.Snapshot{}, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM preferences WHERE key IN (?, ?, ?, ?)`,
		KeyHighTemp, KeyLowTemp, KeyIcon, KeyUpdate)
	if err != nil {
		return weather.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, 4)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return weather.Snapshot{}, fmt.Errorf("scan preference: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return weather.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	return fromValues(values), nil
}

// Replace upserts all four keys in one transaction, then notifies watchers.
func (s *SQLiteStore) Replace(ctx context.Context, snapshot weather.Snapshot) (err error) {
	if s.closed.Load() {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for k, v := range toValues(snapshot) {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO preferences (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
			return fmt.Errorf("write %s: %w", k, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}

	s.watchers.notify(snapshot)
	return nil
}

// Watch registers fn for change notifications.
func (s *SQLiteStore) Watch(fn func(weather.Snapshot)) func() {
	return s.watchers.add(fn)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
