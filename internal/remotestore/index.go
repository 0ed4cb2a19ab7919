// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package remotestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// Entry is one stored upload.
type Entry struct {
	Name         string    `json:"name"`
	OriginalName string    `json:"original_name"`
	MediaType    string    `json:"media_type"`
	SizeBytes    int64     `json:"size_bytes"`
	SHA256       string    `json:"sha256"`
	StoredAt     time.Time `json:"stored_at"`
}

// Index keeps upload metadata in SQLite. Blobs live on disk next to it.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (or creates) the index and runs migrations.
func OpenIndex(dbPath string) (*Index, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return idx, nil
}

// Ping checks the database is reachable.
func (i *Index) Ping(ctx context.Context) error {
	return i.db.PingContext(ctx)
}

func (i *Index) Close() error {
	return i.db.Close()
}

func (i *Index) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS uploads (
		name TEXT PRIMARY KEY,
		original_name TEXT NOT NULL,
		media_type TEXT NOT NULL,
		size_bytes INTEGER NOT NULL CHECK(size_bytes >= 0),
		sha256 TEXT NOT NULL,
		stored_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_uploads_stored_at ON uploads(stored_at);
	`
	_, err := i.db.Exec(schema)
	return err
}

// Insert records a stored blob.
func (i *Index) Insert(ctx context.Context, e Entry) error {
	query := `
	INSERT INTO uploads (name, original_name, media_type, size_bytes, sha256, stored_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := i.db.ExecContext(ctx, query,
		e.Name, e.OriginalName, e.MediaType, e.SizeBytes, e.SHA256,
		e.StoredAt.UTC().Format(time.RFC3339Nano))
	return err
}

// Get returns the entry, or (nil, nil) when name is unknown.
func (i *Index) Get(ctx context.Context, name string) (*Entry, error) {
	query := `
	SELECT name, original_name, media_type, size_bytes, sha256, stored_at
	FROM uploads
	WHERE name = ?
	`
	e, err := scanEntry(i.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// List returns the newest entries first.
func (i *Index) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
	SELECT name, original_name, media_type, size_bytes, sha256, stored_at
	FROM uploads
	ORDER BY stored_at DESC, name
	LIMIT ?
	`
	rows, err := i.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var storedAt string
	if err := row.Scan(&e.Name, &e.OriginalName, &e.MediaType, &e.SizeBytes, &e.SHA256, &storedAt); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339Nano, storedAt); err == nil {
		e.StoredAt = t
	}
	return &e, nil
}
