// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history records batch outcomes in a local SQLite database so
// past runs stay inspectable. Recording is best-effort: a history failure
// never changes a batch's exit code.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// BatchRecord is one completed batch.
type BatchRecord struct {
	ID        int64
	StartedAt time.Time
	Runtime   string
	Image     string
	OK        int
	Failed    int
	Skipped   int
	Elapsed   time.Duration
}

// FileRecord is one work item's outcome within a batch.
type FileRecord struct {
	Source  string
	Target  string
	Status  string
	Error   string
	Elapsed time.Duration
}

// Store manages the batch history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path, creating parent
// directories and the schema as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			runtime TEXT NOT NULL,
			image TEXT NOT NULL,
			ok INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS files (
			batch_id INTEGER NOT NULL REFERENCES batches(id),
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			elapsed_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_batch ON files(batch_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores one batch and its per-file outcomes, returning the new
// batch ID.
func (s *Store) Record(b BatchRecord, files []FileRecord) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO batches (started_at, runtime, image, ok, failed, skipped, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.StartedAt.UTC().Format(time.RFC3339), b.Runtime, b.Image,
		b.OK, b.Failed, b.Skipped, b.Elapsed.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting batch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading batch id: %w", err)
	}

	for _, f := range files {
		if _, err := tx.Exec(
			`INSERT INTO files (batch_id, source, target, status, error, elapsed_ms)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, f.Source, f.Target, f.Status, f.Error, f.Elapsed.Milliseconds(),
		); err != nil {
			return 0, fmt.Errorf("inserting file record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing batch record: %w", err)
	}
	return id, nil
}

// Recent returns the most recent n batches, newest first.
func (s *Store) Recent(n int) ([]BatchRecord, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.Query(
		`SELECT id, started_at, runtime, image, ok, failed, skipped, elapsed_ms
		 FROM batches ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying batches: %w", err)
	}
	defer rows.Close()

	var records []BatchRecord
	for rows.Next() {
		var (
			b         BatchRecord
			startedAt string
			elapsedMS int64
		)
		if err := rows.Scan(&b.ID, &startedAt, &b.Runtime, &b.Image, &b.OK, &b.Failed, &b.Skipped, &elapsedMS); err != nil {
			return nil, fmt.Errorf("scanning batch row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
			b.StartedAt = t
		}
		b.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		records = append(records, b)
	}
	return records, rows.Err()
}

// Files returns the per-file outcomes of one batch in insertion order.
func (s *Store) Files(batchID int64) ([]FileRecord, error) {
	rows, err := s.db.Query(
		`SELECT source, target, status, error, elapsed_ms
		 FROM files WHERE batch_id = ? ORDER BY rowid`, batchID)
	if err != nil {
		return nil, fmt.Errorf("querying file records: %w", err)
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		var (
			f         FileRecord
			errText   sql.NullString
			elapsedMS int64
		)
		if err := rows.Scan(&f.Source, &f.Target, &f.Status, &errText, &elapsedMS); err != nil {
			return nil, fmt.Errorf("scanning file row: %w", err)
		}
		f.Error = errText.String
		f.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		records = append(records, f)
	}
	return records, rows.Err()
}
