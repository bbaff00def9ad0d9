package canvas

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const canvasSchema = `
CREATE TABLE IF NOT EXISTS canvas_graph (
	graph_key TEXT PRIMARY KEY,
	graph_json TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// DefaultGraphKey addresses the single shared canvas record.
const DefaultGraphKey = "unity-notes"

// SQLiteStore persists the graph as one JSON blob per key.
type SQLiteStore struct {
	db  *sql.DB
	key string
}

// OpenSQLite opens (and if needed creates) the canvas database at path.
// An empty key selects DefaultGraphKey.
func OpenSQLite(path, key string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if strings.TrimSpace(key) == "" {
		key = DefaultGraphKey
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
	if _, err := db.Exec(canvasSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create canvas schema: %w", err)
	}
	return &SQLiteStore{db: db, key: key}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Read(ctx context.Context) (Graph, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT graph_json FROM canvas_graph WHERE graph_key = ?`, s.key)
	var raw string
	err := row.Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Graph{}, nil
	}
	if err != nil {
		return Graph{}, fmt.Errorf("load canvas graph: %w", err)
	}
	var g Graph
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return Graph{}, fmt.Errorf("parse canvas graph %q: %w", s.key, err)
	}
	return g, nil
}

func (s *SQLiteStore) Write(ctx context.Context, g Graph) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode canvas graph: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO canvas_graph (graph_key, graph_json, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(graph_key) DO UPDATE SET
		   graph_json = excluded.graph_json,
		   updated_at = excluded.updated_at`,
		s.key, string(raw), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("save canvas graph: %w", err)
	}
	return nil
}
