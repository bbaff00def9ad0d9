package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const quotaSchema = `
CREATE TABLE IF NOT EXISTS quota_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	free_remaining INTEGER NOT NULL,
	apikey_remaining INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLiteStore persists ledger state as a single row. Safe across
// processes thanks to SQLite's own locking.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the quota database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(quotaSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create quota schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) (State, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT free_remaining, apikey_remaining FROM quota_state WHERE id = 1`)
	var st State
	err := row.Scan(&st.FreeRemaining, &st.APIKeyRemaining)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("load quota state: %w", err)
	}
	return st, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, st State) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quota_state (id, free_remaining, apikey_remaining, updated_at)
		 VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   free_remaining = excluded.free_remaining,
		   apikey_remaining = excluded.apikey_remaining,
		   updated_at = excluded.updated_at`,
		st.FreeRemaining, st.APIKeyRemaining, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("save quota state: %w", err)
	}
	return nil
}
