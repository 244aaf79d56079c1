package auth

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// banEntry caches the fields needed to evaluate a ban without a user row
// read. Bans with an expiry are re-evaluated against the clock on every
// hit, so a cached entry can flip to "not banned" without invalidation.
type banEntry struct {
	banned    bool
	expiresAt *time.Time
}

// BanCacheStats counts cache effectiveness for metrics export.
type BanCacheStats struct {
	Hits   int64
	Misses int64
}

// BanCache answers "is this user banned right now" through an expirable
// LRU in front of a UserStore. The TTL bounds how stale a ban decision
// can be; applying a ban also invalidates the entry explicitly.
type BanCache struct {
	users UserStore
	cache *lru.LRU[int64, banEntry]

	hits   func()
	misses func()
}

// NewBanCache creates a ban-status cache holding up to size entries for
// ttl. The hit/miss callbacks are optional metric hooks.
func NewBanCache(users UserStore, size int, ttl time.Duration, onHit, onMiss func()) *BanCache {
	if size < 16 {
		size = 16
	}
	if onHit == nil {
		onHit = func() {}
	}
	if onMiss == nil {
		onMiss = func() {}
	}
	return &BanCache{
		users:  users,
		cache:  lru.NewLRU[int64, banEntry](size, nil, ttl),
		hits:   onHit,
		misses: onMiss,
	}
}

// BanActive reports whether the user is banned with no unexpired grace.
// Unknown users read through to the store; ErrUserNotFound propagates.
func (c *BanCache) BanActive(ctx context.Context, userID int64, now time.Time) (bool, error) {
	if entry, ok := c.cache.Get(userID); ok {
		c.hits()
		return entryActive(entry, now), nil
	}
	c.misses()

	user, err := c.users.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}

	entry := banEntry{banned: user.IsBanned, expiresAt: user.BanExpiresAt}
	c.cache.Add(userID, entry)
	return entryActive(entry, now), nil
}

// Invalidate drops the cached entry for a user. Called on ban and unban
// so enforcement does not wait out the TTL.
func (c *BanCache) Invalidate(userID int64) {
	c.cache.Remove(userID)
}

func entryActive(e banEntry, now time.Time) bool {
	if !e.banned {
		return false
	}
	if e.expiresAt != nil && !e.expiresAt.After(now) {
		return false
	}
	return true
}
