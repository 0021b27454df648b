package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"portalslayer/pkg/db"
)

// Store defines the repository interface.
type Store interface {
	StateStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetState returns the value for key. Read failures are logged and reported as a miss.
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		slog.Warn("Failed to read state", "key", key, "error", err)
		return "", false
	}
	return val.String, val.Valid
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT INTO persistent_state (key, value, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	now := time.Now()
	_, err := s.db.ExecContext(ctx, query, key, val, now, now)
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
