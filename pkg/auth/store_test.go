package auth

import (
	"context"
	"database/sql"
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

	// Create minimal tables for testing
	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT,
			full_name TEXT,
			is_admin INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			is_banned INTEGER NOT NULL DEFAULT 0,
			ban_reason TEXT,
			ban_expires_at TIMESTAMP,
			banned_at TIMESTAMP,
			banned_by_id INTEGER,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE sessions (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			impersonation TEXT,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func insertTestUser(t *testing.T, db *sql.DB, username string, admin bool) int64 {
	result, err := db.Exec(
		`INSERT INTO users (username, is_admin) VALUES ($1, $2)`,
		username, admin)
	require.NoError(t, err)
	id, err := result.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestPostgresStoreSessionLifecycle(t *testing.T) {
	db := setupTestDB(t)
	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	userID := insertTestUser(t, db, "alice", false)
	session := NewSession(userID, time.Hour, now)
	require.NoError(t, store.CreateSession(ctx, session))

	got, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, Normal{}, got.State)

	require.NoError(t, store.DeleteSession(ctx, session.ID))
	_, err = store.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Deleting again is not an error.
	assert.NoError(t, store.DeleteSession(ctx, session.ID))
}

func TestPostgresStoreImpersonationState(t *testing.T) {
	db := setupTestDB(t)
	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	adminID := insertTestUser(t, db, "root-admin", true)
	targetID := insertTestUser(t, db, "alice", false)

	session := NewSession(targetID, time.Hour, now)
	session.State = Impersonating{
		AdminID:    adminID,
		AdminName:  "root-admin",
		TargetID:   targetID,
		TargetName: "alice",
		StartedAt:  now,
	}
	require.NoError(t, store.CreateSession(ctx, session))

	got, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	imp, ok := got.Impersonation()
	require.True(t, ok)
	assert.Equal(t, adminID, imp.AdminID)
	assert.Equal(t, targetID, imp.TargetID)
	assert.Equal(t, "alice", imp.TargetName)
}

func TestPostgresStoreExpiredSessionNotReturned(t *testing.T) {
	db := setupTestDB(t)
	store := NewPostgresStore(db)
	ctx := context.Background()

	userID := insertTestUser(t, db, "alice", false)
	session := NewSession(userID, time.Millisecond, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, store.CreateSession(ctx, session))

	_, err := store.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPostgresStoreDeleteUserSessions(t *testing.T) {
	db := setupTestDB(t)
	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	aliceID := insertTestUser(t, db, "alice", false)
	bobID := insertTestUser(t, db, "bob", false)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.CreateSession(ctx, NewSession(aliceID, time.Hour, now)))
	}
	bobSession := NewSession(bobID, time.Hour, now)
	require.NoError(t, store.CreateSession(ctx, bobSession))

	deleted, err := store.DeleteUserSessions(ctx, aliceID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	// Bob's session survives.
	_, err = store.GetSession(ctx, bobSession.ID)
	assert.NoError(t, err)
}

func TestPostgresStoreDeleteExpiredSessions(t *testing.T) {
	db := setupTestDB(t)
	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	userID := insertTestUser(t, db, "alice", false)
	expired := NewSession(userID, time.Minute, now.Add(-time.Hour))
	live := NewSession(userID, time.Hour, now)
	require.NoError(t, store.CreateSession(ctx, expired))
	require.NoError(t, store.CreateSession(ctx, live))

	deleted, err := store.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.GetSession(ctx, live.ID)
	assert.NoError(t, err)
}

func TestPostgresUserStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewPostgresUserStore(db)
	ctx := context.Background()

	banExpiry := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	adminID := insertTestUser(t, db, "root-admin", true)
	_, err := db.Exec(`
		INSERT INTO users (username, email, full_name, is_banned, ban_reason, ban_expires_at, banned_at, banned_by_id)
		VALUES ($1, $2, $3, 1, $4, $5, $6, $7)`,
		"alice", "alice@example.com", "Alice Liddell",
		"abuse", banExpiry, time.Now().UTC(), adminID)
	require.NoError(t, err)

	t.Run("by username", func(t *testing.T) {
		user, err := store.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.Equal(t, "Alice Liddell", user.FullName)
		assert.True(t, user.IsBanned)
		assert.Equal(t, "abuse", user.BanReason)
		require.NotNil(t, user.BanExpiresAt)
		assert.True(t, user.BanExpiresAt.Equal(banExpiry))
		require.NotNil(t, user.BannedByID)
		assert.Equal(t, adminID, *user.BannedByID)
	})

	t.Run("by id", func(t *testing.T) {
		user, err := store.GetUser(ctx, adminID)
		require.NoError(t, err)
		assert.Equal(t, "root-admin", user.Username)
		assert.True(t, user.IsAdmin)
		assert.False(t, user.IsBanned)
		assert.Nil(t, user.BannedAt)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := store.GetUser(ctx, 9999)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}
