// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package history keeps a bounded log of wallpaper changes in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultLimit is the number of entries kept when none is configured.
const DefaultLimit = 500

// Results stored with an entry.
const (
	ResultApplied = "applied"
	ResultFailed  = "failed"
)

// Entry is one apply attempt.
type Entry struct {
	ID         int64     `json:"id"`
	Time       time.Time `json:"time"`
	CycleID    string    `json:"cycle_id"`
	Output     string    `json:"output"`
	Trigger    string    `json:"trigger"`
	Image      string    `json:"image"`
	FillMode   string    `json:"fill_mode"`
	Result     string    `json:"result"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// Store is a SQLite-backed history.
type Store struct {
	db    *sql.DB
	limit int
}

// Open opens or creates the history database at path. The special path
// ":memory:" keeps it in memory. At most limit entries are retained.
func Open(ctx context.Context, path string, limit int) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; an in-memory database also needs a single shared connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, limit: limit}
	if err := s.migrate(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			time INTEGER NOT NULL,
			cycle_id TEXT NOT NULL,
			output TEXT NOT NULL,
			trigger_kind TEXT NOT NULL,
			image TEXT NOT NULL,
			fill_mode TEXT NOT NULL,
			result TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_output ON history(output, id)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// Record appends e and prunes entries beyond the retention limit.
// A zero Time is set to now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO history (time, cycle_id, output, trigger_kind, image, fill_mode, result, error, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Time.UnixNano(), e.CycleID, e.Output, e.Trigger, e.Image, e.FillMode, e.Result, e.Error, e.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM history WHERE id NOT IN (SELECT id FROM history ORDER BY id DESC LIMIT ?)`,
		s.limit,
	)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}

	return tx.Commit()
}

// Recent returns up to limit entries, newest first. A non-empty output
// restricts the result to that output.
func (s *Store) Recent(ctx context.Context, limit int, output string) ([]Entry, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	query := `SELECT id, time, cycle_id, output, trigger_kind, image, fill_mode, result, error, duration_ms FROM history`
	args := []any{}
	if output != "" {
		query += ` WHERE output = ?`
		args = append(args, output)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.CycleID, &e.Output, &e.Trigger, &e.Image, &e.FillMode, &e.Result, &e.Error, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Time = time.Unix(0, ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
