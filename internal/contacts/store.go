// Package contacts is the content-store adapter for prospect
// engagement records. The engine writes to it fire-and-forget: errors
// here are logged by the caller and never fail a run.
package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

const contactsSchema = `
CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL DEFAULT '',
	company TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	industry TEXT NOT NULL DEFAULT '',
	trigger_kind TEXT NOT NULL DEFAULT '',
	trigger_details TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	last_run_id TEXT NOT NULL DEFAULT '',
	last_sent_at INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Store is SQLite-backed persistence for contact records, keyed by
// email.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the contacts database at path.
func Open(path string) (*Store, error) {
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
	if _, err := db.Exec(contactsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create contacts schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create inserts a contact, or refreshes the prospect fields when the
// email already exists. Engagement state (status, run, sent time) is
// preserved on conflict.
func (s *Store) Create(ctx context.Context, c core.Contact) error {
	email := strings.ToLower(strings.TrimSpace(c.Email))
	if email == "" {
		return fmt.Errorf("contact email is required")
	}
	id := strings.TrimSpace(c.ID)
	if id == "" {
		id = uuid.NewString()
	}
	status := strings.TrimSpace(c.Status)
	if status == "" {
		status = "active"
	}
	now := time.Now().UTC().UnixMilli()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts
		   (id, email, first_name, last_name, company, title, industry,
		    trigger_kind, trigger_details, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
		   first_name = excluded.first_name,
		   last_name = excluded.last_name,
		   company = excluded.company,
		   title = excluded.title,
		   industry = excluded.industry,
		   trigger_kind = excluded.trigger_kind,
		   trigger_details = excluded.trigger_details,
		   updated_at = excluded.updated_at`,
		id, email, c.FirstName, c.LastName, c.Company, c.Title, c.Industry,
		string(c.Trigger), c.TriggerDetails, status, now, now)
	if err != nil {
		return fmt.Errorf("create contact: %w", err)
	}
	return nil
}

// Update applies a partial engagement update to the contact with the
// given email. Unknown emails are an error.
func (s *Store) Update(ctx context.Context, email string, patch core.ContactPatch) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("contact email is required")
	}

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().UnixMilli()}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.LastRunID != nil {
		sets = append(sets, "last_run_id = ?")
		args = append(args, *patch.LastRunID)
	}
	if patch.LastSentAt != nil {
		sets = append(sets, "last_sent_at = ?")
		args = append(args, patch.LastSentAt.UTC().UnixMilli())
	}
	args = append(args, email)

	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET `+strings.Join(sets, ", ")+` WHERE email = ?`, args...)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no contact with email %s", email)
	}
	return nil
}

// Get returns the contact with the given email.
func (s *Store) Get(ctx context.Context, email string) (core.Contact, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, first_name, last_name, company, title, industry,
		        trigger_kind, trigger_details, status, created_at, updated_at
		 FROM contacts WHERE email = ?`, email)

	var (
		c         core.Contact
		trigger   string
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.Company,
		&c.Title, &c.Industry, &trigger, &c.TriggerDetails, &c.Status,
		&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Contact{}, fmt.Errorf("no contact with email %s", email)
	}
	if err != nil {
		return core.Contact{}, fmt.Errorf("get contact: %w", err)
	}
	c.Trigger = core.Trigger(trigger)
	c.CreatedAt = time.UnixMilli(createdAt).UTC()
	c.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return c, nil
}
