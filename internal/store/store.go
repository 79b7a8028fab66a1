// Package store provides a SQLite-backed log of answered questions. Every
// answer served by the web front end is appended with its sources so staff
// can review what customers asked and what the assistant replied.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Entry is a single answered question.
type Entry struct {
	// ID is the row id assigned on insert.
	ID int64
	// Question is the trimmed customer question.
	Question string
	// Answer is the model reply as returned to the client.
	Answer string
	// Sources are the citations returned alongside the answer.
	Sources []string
	// CreatedAt is when the entry was persisted.
	CreatedAt time.Time
}

// AnswerLog persists and lists answered questions.
// Implementations must be safe for concurrent use.
type AnswerLog interface {
	// Record appends one answered question.
	Record(ctx context.Context, question, answer string, sources []string) error
	// Recent returns up to n entries, newest first.
	Recent(ctx context.Context, n int) ([]Entry, error)
	// Close releases any resources held by the log.
	Close() error
}

// SQLiteLog is an AnswerLog backed by a local SQLite database.
type SQLiteLog struct {
	db *sql.DB
}

// Open opens (or creates) a SQLiteLog at path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteLog, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("store: could not create %s: %w", dir, err)
			}
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Single connection: serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	l := &SQLiteLog{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// migrate creates the schema if it does not already exist.
func (l *SQLiteLog) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS answers (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    question     TEXT    NOT NULL,
    answer       TEXT    NOT NULL,
    sources      TEXT    NOT NULL DEFAULT '[]',  -- JSON array of citations
    created_at   INTEGER NOT NULL                -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_answers_created ON answers (created_at);
`
	if _, err := l.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Record appends one answered question.
func (l *SQLiteLog) Record(ctx context.Context, question, answer string, sources []string) error {
	if sources == nil {
		sources = []string{}
	}
	encoded, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("store: encode sources: %w", err)
	}

	const q = `INSERT INTO answers (question, answer, sources, created_at) VALUES (?, ?, ?, ?)`
	if _, err := l.db.ExecContext(ctx, q, question, answer, string(encoded), time.Now().Unix()); err != nil {
		return fmt.Errorf("store: record: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first. n <= 0 returns nothing.
func (l *SQLiteLog) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	const q = `
SELECT id, question, answer, sources, created_at
FROM   answers
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := l.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var sources string
		var ts int64
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &sources, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
			return nil, fmt.Errorf("store: decode sources of entry %d: %w", e.ID, err)
		}
		e.CreatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return entries, nil
}

// Name identifies the log in readiness reports.
func (l *SQLiteLog) Name() string { return "history" }

// Ping verifies the database is reachable.
func (l *SQLiteLog) Ping(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (l *SQLiteLog) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
