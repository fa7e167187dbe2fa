package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Add stores value under key unless the key already exists.
func (s *SQLite) Add(ctx context.Context, key string, value any) error {
	text, kind, err := encode(value)
	if err != nil {
		return err
	}

	const query = `INSERT OR IGNORE INTO cache_entries (key, value, kind) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, key, text, kind); err != nil {
		return fmt.Errorf("add cache entry: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, key string) (any, bool, error) {
	const query = `SELECT value, kind FROM cache_entries WHERE key = ?`

	var text, kind string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&text, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cache entry: %w", err)
	}

	v, err := decode(text, kind)
	if err != nil {
		return nil, false, fmt.Errorf("get cache entry %s: %w", key, err)
	}
	return v, true, nil
}

// Peek is Get with a default for missing keys.
func (s *SQLite) Peek(ctx context.Context, key string, def any) (any, bool, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, false, err
	}
	return v, true, nil
}

// Len returns the number of stored entries.
func (s *SQLite) Len(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return n, nil
}
