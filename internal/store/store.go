// Package store provides a SQLite-backed log of question/answer
// interactions. Every answered question is recorded with the retrieved
// context snapshot so operators can review what the assistant said and what
// knowledge it was grounded on.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Interaction is one answered question.
type Interaction struct {
	// ID is the auto-incremented row ID.
	ID int64
	// UserID identifies the asker (Telegram chat ID, API client, or "cli").
	UserID string
	// Question is the user's question verbatim.
	Question string
	// Answer is the text returned to the user.
	Answer string
	// ContextsJSON is the JSON-encoded snapshot of the retrieved contexts.
	ContextsJSON string
	// CreatedAt is when the interaction was persisted.
	CreatedAt time.Time
}

// InteractionStore persists and retrieves answered questions.
// Implementations must be safe for concurrent use.
type InteractionStore interface {
	// Record persists a single interaction.
	Record(ctx context.Context, userID, question, answer, contextsJSON string) error
	// Recent returns the most recent n interactions, newest first.
	Recent(ctx context.Context, n int) ([]Interaction, error)
	// Count returns the total number of recorded interactions.
	Count(ctx context.Context) (int64, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is an InteractionStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the interactions database.
// It resolves to ~/.admissions/interactions.db, creating the directory if
// needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".admissions")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "interactions.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS interactions (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id       TEXT    NOT NULL,
    question      TEXT    NOT NULL,
    answer        TEXT    NOT NULL,
    contexts_json TEXT    NOT NULL DEFAULT '[]',
    created_at    INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_interactions_created
    ON interactions (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Record persists a single interaction.
func (s *SQLiteStore) Record(ctx context.Context, userID, question, answer, contextsJSON string) error {
	if contextsJSON == "" {
		contextsJSON = "[]"
	}
	const q = `INSERT INTO interactions (user_id, question, answer, contexts_json, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, userID, question, answer, contextsJSON, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: record: %w", err)
	}
	return nil
}

// Recent returns the most recent n interactions, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Interaction, error) {
	const q = `
SELECT id, user_id, question, answer, contexts_json, created_at
FROM   interactions
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var items []Interaction
	for rows.Next() {
		var it Interaction
		var ts int64
		if err := rows.Scan(&it.ID, &it.UserID, &it.Question, &it.Answer, &it.ContextsJSON, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		it.CreatedAt = time.Unix(ts, 0)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return items, nil
}

// Count returns the total number of recorded interactions.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
