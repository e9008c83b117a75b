// Package database keeps the local transfer registry. Completed and failed
// downloads survive restarts so the downloads screen can show past activity;
// chat history itself is never persisted.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Transfer is one row of the transfer registry
type Transfer struct {
	FileID    uuid.UUID
	Filename  string
	Size      int64
	Direction string // "download" or "upload"
	Status    string // "active", "ready", "failed"
	Reason    string // failure reason, empty otherwise
	Path      string // local path for completed downloads
	UpdatedAt time.Time
}

// New creates a new database connection and initializes schema
func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	wrapper := &DB{db}
	if err := wrapper.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return wrapper, nil
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transfers (
		file_id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		direction TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		path TEXT,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_updated ON transfers(updated_at DESC);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordTransfer inserts or replaces a transfer row
func (db *DB) RecordTransfer(t *Transfer) error {
	_, err := db.Exec(`
		INSERT INTO transfers (file_id, filename, size, direction, status, reason, path, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			filename = excluded.filename,
			size = excluded.size,
			direction = excluded.direction,
			status = excluded.status,
			reason = excluded.reason,
			path = excluded.path,
			updated_at = excluded.updated_at`,
		t.FileID.String(), t.Filename, t.Size, t.Direction, t.Status, t.Reason, t.Path,
		t.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record transfer: %w", err)
	}
	return nil
}

// UpdateStatus updates the status (and optional reason/path) of a transfer
func (db *DB) UpdateStatus(fileID uuid.UUID, status, reason, path string) error {
	_, err := db.Exec(`
		UPDATE transfers SET status = ?, reason = ?, path = ?, updated_at = ?
		WHERE file_id = ?`,
		status, reason, path, time.Now().UTC(), fileID.String())
	if err != nil {
		return fmt.Errorf("failed to update transfer: %w", err)
	}
	return nil
}

// ListTransfers returns transfers, most recent first
func (db *DB) ListTransfers(limit int) ([]*Transfer, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT file_id, filename, size, direction, status,
		       COALESCE(reason, ''), COALESCE(path, ''), updated_at
		FROM transfers
		ORDER BY updated_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*Transfer
	for rows.Next() {
		var t Transfer
		var id string
		if err := rows.Scan(&id, &t.Filename, &t.Size, &t.Direction, &t.Status,
			&t.Reason, &t.Path, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		t.FileID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid file id %q: %w", id, err)
		}
		transfers = append(transfers, &t)
	}
	return transfers, rows.Err()
}

// GetTransfer returns a single transfer row, or sql.ErrNoRows
func (db *DB) GetTransfer(fileID uuid.UUID) (*Transfer, error) {
	var t Transfer
	var id string
	err := db.QueryRow(`
		SELECT file_id, filename, size, direction, status,
		       COALESCE(reason, ''), COALESCE(path, ''), updated_at
		FROM transfers WHERE file_id = ?`, fileID.String()).
		Scan(&id, &t.Filename, &t.Size, &t.Direction, &t.Status, &t.Reason, &t.Path, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.FileID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid file id %q: %w", id, err)
	}
	return &t, nil
}
