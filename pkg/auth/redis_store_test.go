package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStoreSessionLifecycle(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	session := NewSession(42, time.Hour, now)
	require.NoError(t, store.CreateSession(ctx, session))

	got, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, Normal{}, got.State)

	require.NoError(t, store.DeleteSession(ctx, session.ID))
	_, err = store.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStoreRejectsExpiredSession(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	session := NewSession(42, time.Millisecond, time.Now().UTC().Add(-time.Minute))
	err := store.CreateSession(ctx, session)
	assert.Error(t, err)
}

func TestRedisStoreImpersonationState(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	session := NewSession(7, time.Hour, now)
	session.State = Impersonating{
		AdminID:    1,
		AdminName:  "root-admin",
		TargetID:   7,
		TargetName: "alice",
		StartedAt:  now,
	}
	require.NoError(t, store.CreateSession(ctx, session))

	got, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	imp, ok := got.Impersonation()
	require.True(t, ok)
	assert.Equal(t, int64(1), imp.AdminID)
	assert.Equal(t, int64(7), imp.TargetID)
}

func TestRedisStoreDeleteUserSessions(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	var sessions []*Session
	for i := 0; i < 3; i++ {
		s := NewSession(42, time.Hour, now)
		require.NoError(t, store.CreateSession(ctx, s))
		sessions = append(sessions, s)
	}
	other := NewSession(99, time.Hour, now)
	require.NoError(t, store.CreateSession(ctx, other))

	deleted, err := store.DeleteUserSessions(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	for _, s := range sessions {
		_, err := store.GetSession(ctx, s.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	}
	_, err = store.GetSession(ctx, other.ID)
	assert.NoError(t, err)
}

func TestRedisStoreExpiryViaTTL(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	session := NewSession(42, time.Minute, time.Now().UTC())
	require.NoError(t, store.CreateSession(ctx, session))

	mr.FastForward(2 * time.Minute)

	_, err := store.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
