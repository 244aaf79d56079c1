package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE audit_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			user_id INTEGER,
			organization_id INTEGER,
			target_user_id INTEGER,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func int64Ptr(v int64) *int64 { return &v }

func logTestRecord(t *testing.T, logger *DBLogger, action string, userID, orgID, targetID *int64, createdAt time.Time) *Record {
	record := &Record{
		Action:         action,
		UserID:         userID,
		OrganizationID: orgID,
		TargetUserID:   targetID,
		CreatedAt:      createdAt,
	}
	require.NoError(t, logger.Log(context.Background(), record))
	return record
}

func TestDBLoggerLog(t *testing.T) {
	db := setupTestDB(t)
	logger, err := NewDBLogger(db)
	require.NoError(t, err)
	ctx := context.Background()

	record, err := NewRecord(ActionUserBan, int64Ptr(1), nil, int64Ptr(7),
		map[string]interface{}{"reason": "abuse"})
	require.NoError(t, err)
	require.NoError(t, logger.Log(ctx, record))
	assert.NotZero(t, record.ID)
	assert.False(t, record.CreatedAt.IsZero())

	store := NewDBStore(db)
	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionUserBan, got.Action)
	require.NotNil(t, got.TargetUserID)
	assert.Equal(t, int64(7), *got.TargetUserID)

	var metadata map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(got.Metadata), &metadata))
	assert.Equal(t, "abuse", metadata["reason"])
}

func TestDBLoggerRejectsEmptyAction(t *testing.T) {
	db := setupTestDB(t)
	logger, err := NewDBLogger(db)
	require.NoError(t, err)

	err = logger.Log(context.Background(), &Record{})
	assert.Error(t, err)
}

func TestDBLoggerLogTxRollsBackWithAction(t *testing.T) {
	db := setupTestDB(t)
	logger, err := NewDBLogger(db)
	require.NoError(t, err)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	record := &Record{Action: ActionUserBan, UserID: int64Ptr(1)}
	require.NoError(t, logger.LogTx(ctx, tx, record))
	require.NoError(t, tx.Rollback())

	store := NewDBStore(db)
	records, err := store.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStoreSearch(t *testing.T) {
	db := setupTestDB(t)
	logger, err := NewDBLogger(db)
	require.NoError(t, err)
	store := NewDBStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	logTestRecord(t, logger, ActionImpersonationStart, int64Ptr(1), int64Ptr(10), int64Ptr(7), now.Add(-2*time.Hour))
	logTestRecord(t, logger, ActionImpersonationEnd, int64Ptr(1), int64Ptr(10), int64Ptr(7), now.Add(-time.Hour))
	logTestRecord(t, logger, ActionUserBan, int64Ptr(2), nil, int64Ptr(8), now)

	t.Run("all records newest first", func(t *testing.T) {
		records, err := store.Search(ctx, SearchFilter{})
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, ActionUserBan, records[0].Action)
		assert.Equal(t, ActionImpersonationStart, records[2].Action)
	})

	t.Run("filter by action", func(t *testing.T) {
		records, err := store.Search(ctx, SearchFilter{Action: ActionUserBan})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(2), *records[0].UserID)
	})

	t.Run("filter by target user", func(t *testing.T) {
		records, err := store.Search(ctx, SearchFilter{TargetUserID: int64Ptr(7)})
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("filter by time window", func(t *testing.T) {
		since := now.Add(-90 * time.Minute)
		records, err := store.Search(ctx, SearchFilter{Since: &since})
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("limit and offset", func(t *testing.T) {
		records, err := store.Search(ctx, SearchFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, ActionImpersonationEnd, records[0].Action)
	})
}

func TestStoreExport(t *testing.T) {
	db := setupTestDB(t)
	logger, err := NewDBLogger(db)
	require.NoError(t, err)
	store := NewDBStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	logTestRecord(t, logger, ActionUserBan, int64Ptr(1), nil, int64Ptr(7), now.Add(-time.Minute))
	logTestRecord(t, logger, ActionUserUnban, int64Ptr(1), nil, int64Ptr(7), now)

	t.Run("ndjson", func(t *testing.T) {
		data, err := store.Export(ctx, SearchFilter{}, FormatNDJSON)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 2)

		var first Record
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
		assert.Equal(t, ActionUserUnban, first.Action)
	})

	t.Run("csv", func(t *testing.T) {
		data, err := store.Export(ctx, SearchFilter{}, FormatCSV)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], "action")
		assert.Contains(t, lines[1], ActionUserUnban)
	})

	t.Run("json", func(t *testing.T) {
		data, err := store.Export(ctx, SearchFilter{}, FormatJSON)
		require.NoError(t, err)
		var records []*Record
		require.NoError(t, json.Unmarshal(data, &records))
		assert.Len(t, records, 2)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := store.Export(ctx, SearchFilter{}, ExportFormat("xml"))
		assert.Error(t, err)
	})
}

func TestStoreCleanup(t *testing.T) {
	db := setupTestDB(t)
	logger, err := NewDBLogger(db)
	require.NoError(t, err)
	store := NewDBStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	logTestRecord(t, logger, ActionUserBan, int64Ptr(1), nil, int64Ptr(7), now.Add(-100*24*time.Hour))
	recent := logTestRecord(t, logger, ActionUserUnban, int64Ptr(1), nil, int64Ptr(7), now)

	deleted, err := store.Cleanup(ctx, RetentionPolicy{MaxAge: 90 * 24 * time.Hour}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	records, err := store.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, recent.ID, records[0].ID)

	// Zero MaxAge keeps everything.
	deleted, err = store.Cleanup(ctx, RetentionPolicy{}, now)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
