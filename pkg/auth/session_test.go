package auth

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	session := NewSession(42, time.Hour, now)

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, int64(42), session.UserID)
	assert.Equal(t, Normal{}, session.State)
	assert.Equal(t, now.Add(time.Hour), session.ExpiresAt)
	assert.False(t, session.Expired(now))
	assert.True(t, session.Expired(now.Add(time.Hour)))

	_, impersonating := session.Impersonation()
	assert.False(t, impersonating)
}

func TestSessionJSONRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("normal", func(t *testing.T) {
		session := NewSession(7, time.Hour, now)

		data, err := json.Marshal(session)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "impersonation")

		decoded := &Session{}
		require.NoError(t, json.Unmarshal(data, decoded))
		assert.Equal(t, session.ID, decoded.ID)
		assert.Equal(t, session.UserID, decoded.UserID)
		assert.Equal(t, Normal{}, decoded.State)
	})

	t.Run("impersonating", func(t *testing.T) {
		session := NewSession(7, time.Hour, now)
		session.State = Impersonating{
			AdminID:    1,
			AdminName:  "root-admin",
			TargetID:   7,
			TargetName: "alice",
			StartedAt:  now,
		}

		data, err := json.Marshal(session)
		require.NoError(t, err)

		decoded := &Session{}
		require.NoError(t, json.Unmarshal(data, decoded))
		imp, ok := decoded.Impersonation()
		require.True(t, ok)
		assert.Equal(t, int64(1), imp.AdminID)
		assert.Equal(t, "root-admin", imp.AdminName)
		assert.Equal(t, int64(7), imp.TargetID)
		assert.Equal(t, "alice", imp.TargetName)
		assert.True(t, imp.StartedAt.Equal(now))
	})
}

func TestContextIdentity(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	admin := &User{ID: 1, Username: "root-admin", IsAdmin: true}
	target := &User{ID: 7, Username: "alice"}

	t.Run("normal session", func(t *testing.T) {
		session := NewSession(target.ID, time.Hour, now)
		authCtx := &Context{User: target, Session: session}

		assert.Equal(t, int64(7), authCtx.EffectiveUserID())
		assert.Equal(t, int64(7), authCtx.ActorUserID())
		assert.False(t, authCtx.IsImpersonating())
	})

	t.Run("impersonation session", func(t *testing.T) {
		session := NewSession(target.ID, time.Hour, now)
		session.State = Impersonating{
			AdminID:    admin.ID,
			AdminName:  admin.Username,
			TargetID:   target.ID,
			TargetName: target.Username,
			StartedAt:  now,
		}
		authCtx := &Context{User: target, Session: session}

		assert.Equal(t, int64(7), authCtx.EffectiveUserID())
		assert.Equal(t, int64(1), authCtx.ActorUserID())
		assert.True(t, authCtx.IsImpersonating())
	})
}

func TestUserBanActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Minute)

	tests := []struct {
		name string
		user User
		want bool
	}{
		{"not banned", User{IsBanned: false}, false},
		{"permanent ban", User{IsBanned: true}, true},
		{"ban with future expiry", User{IsBanned: true, BanExpiresAt: &future}, true},
		{"ban already expired", User{IsBanned: true, BanExpiresAt: &past}, false},
		{"expiry without ban flag", User{IsBanned: false, BanExpiresAt: &future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.BanActive(now))
		})
	}
}
