package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const kvSchema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteStore keeps the snapshot in a small key/value table on disk.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the store at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("session path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	db, err := sql.Open("sqlite", cleanPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, kvSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads both entries.
func (s *SQLiteStore) Load(ctx context.Context) (Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv WHERE key IN (?, ?)`, TokenKey, IdentityKey)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load session: %w", err)
	}
	defer rows.Close()

	var snap Snapshot
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Snapshot{}, fmt.Errorf("scan session: %w", err)
		}
		switch key {
		case TokenKey:
			snap.Token = value
		case IdentityKey:
			snap.Identity = value
		}
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("load session: %w", err)
	}
	return snap, nil
}

// Save writes both entries in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	const upsert = `INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.ExecContext(ctx, upsert, TokenKey, snap.Token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, IdentityKey, snap.Identity); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Clear removes both entries.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key IN (?, ?)`, TokenKey, IdentityKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
