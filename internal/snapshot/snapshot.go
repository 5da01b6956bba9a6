// Package snapshot persists the index as an opaque blob in SQLite.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS snapshots (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	blob     BLOB NOT NULL,
	saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store persists and restores one opaque index blob.
type Store interface {
	Save(ctx context.Context, blob []byte) error
	Load(ctx context.Context) ([]byte, error)
	Close() error
}

// SQLite keeps the latest snapshot in a single-row table; every save
// replaces the previous blob.
type SQLite struct {
	conn *sql.DB
}

var _ Store = (*SQLite)(nil)

// Open opens (or creates) the snapshot database and applies the schema.
func Open(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("snapshot: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("snapshot: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("snapshot: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Save replaces the stored blob.
func (s *SQLite) Save(ctx context.Context, blob []byte) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO snapshots (id, blob, saved_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET blob = excluded.blob, saved_at = excluded.saved_at
	`, blob, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("snapshot: save: %w", err)
	}
	return nil
}

// Load returns the stored blob, or apperr.ErrNotFound when nothing was
// ever saved.
func (s *SQLite) Load(ctx context.Context) ([]byte, error) {
	var blob []byte
	err := s.conn.QueryRowContext(ctx, `SELECT blob FROM snapshots WHERE id = 1`).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: load: %w", err)
	}
	return blob, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}
