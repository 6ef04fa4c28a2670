// Package journal records backup and restore runs in a local SQLite file so
// operators can see what ran, when, and how it ended.
package journal

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	// SQLite driver for database/sql
	_ "github.com/mattn/go-sqlite3"
)

// Operation outcomes.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusAborted = "aborted"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS operations (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		detail TEXT,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME
	)`,

	`CREATE INDEX IF NOT EXISTS idx_operations_started_at ON operations(started_at)`,
}

// DB wraps the journal database connection.
type DB struct {
	*sql.DB
}

// Open creates the journal database, its parent directory, and the schema.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return nil, err
		}
	}
	return &DB{db}, nil
}

// Operation is one recorded backup or restore run.
type Operation struct {
	ID         string
	Action     string
	Status     string
	Detail     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Start records the beginning of an operation and returns its id.
func (db *DB) Start(action string) (string, error) {
	id := uuid.New().String()
	_, err := db.Exec(
		"INSERT INTO operations (id, action, status) VALUES (?, ?, ?)",
		id, action, StatusRunning,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Finish records an operation's outcome.
func (db *DB) Finish(id, status, detail string) error {
	_, err := db.Exec(
		"UPDATE operations SET status = ?, detail = ?, finished_at = ? WHERE id = ?",
		status, detail, time.Now(), id,
	)
	return err
}

// Recent returns the most recent operations, newest first.
func (db *DB) Recent(limit int) ([]Operation, error) {
	if limit == 0 {
		limit = 10
	}

	rows, err := db.Query(
		"SELECT id, action, status, detail, started_at, finished_at FROM operations ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ops []Operation
	for rows.Next() {
		var op Operation
		var detail sql.NullString
		var finishedAt sql.NullTime
		if err := rows.Scan(&op.ID, &op.Action, &op.Status, &detail, &op.StartedAt, &finishedAt); err != nil {
			return nil, err
		}
		if detail.Valid {
			op.Detail = detail.String
		}
		if finishedAt.Valid {
			op.FinishedAt = &finishedAt.Time
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
