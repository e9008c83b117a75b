package database

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "transfers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndGetTransfer(t *testing.T) {
	db := newTestDB(t)
	fileID := uuid.New()

	require.NoError(t, db.RecordTransfer(&Transfer{
		FileID:    fileID,
		Filename:  "cat.png",
		Size:      2048,
		Direction: "download",
		Status:    "active",
		UpdatedAt: time.Now(),
	}))

	got, err := db.GetTransfer(fileID)
	require.NoError(t, err)
	assert.Equal(t, "cat.png", got.Filename)
	assert.Equal(t, int64(2048), got.Size)
	assert.Equal(t, "active", got.Status)
}

func TestRecordTransferUpserts(t *testing.T) {
	db := newTestDB(t)
	fileID := uuid.New()

	base := &Transfer{
		FileID:    fileID,
		Filename:  "doc.pdf",
		Direction: "download",
		Status:    "active",
		UpdatedAt: time.Now(),
	}
	require.NoError(t, db.RecordTransfer(base))

	base.Status = "ready"
	base.Path = "/downloads/doc.pdf"
	require.NoError(t, db.RecordTransfer(base))

	got, err := db.GetTransfer(fileID)
	require.NoError(t, err)
	assert.Equal(t, "ready", got.Status)
	assert.Equal(t, "/downloads/doc.pdf", got.Path)

	rows, err := db.ListTransfers(10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestUpdateStatus(t *testing.T) {
	db := newTestDB(t)
	fileID := uuid.New()

	require.NoError(t, db.RecordTransfer(&Transfer{
		FileID:    fileID,
		Filename:  "huge.gif",
		Direction: "download",
		Status:    "active",
		UpdatedAt: time.Now(),
	}))
	require.NoError(t, db.UpdateStatus(fileID, "failed", "checksum", ""))

	got, err := db.GetTransfer(fileID)
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, "checksum", got.Reason)
}

func TestListTransfersMostRecentFirst(t *testing.T) {
	db := newTestDB(t)

	now := time.Now()
	for i, name := range []string{"oldest.txt", "middle.txt", "newest.txt"} {
		require.NoError(t, db.RecordTransfer(&Transfer{
			FileID:    uuid.New(),
			Filename:  name,
			Direction: "download",
			Status:    "ready",
			UpdatedAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}

	rows, err := db.ListTransfers(10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "newest.txt", rows[0].Filename)
	assert.Equal(t, "oldest.txt", rows[2].Filename)
}

func TestGetTransferMissing(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetTransfer(uuid.New())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
