package auth

import (
	"errors"
	"time"
)

// Sentinel errors returned by the stores in this package.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
)

// User is a global identity. IsAdmin carries the system-wide operator
// role; it is independent of any organization membership.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	IsAdmin  bool   `json:"is_admin"`
	IsActive bool   `json:"is_active"`

	// Ban state. A ban with an expiry in the past no longer suspends
	// authentication.
	IsBanned     bool       `json:"is_banned"`
	BanReason    string     `json:"ban_reason,omitempty"`
	BanExpiresAt *time.Time `json:"ban_expires_at,omitempty"`
	BannedAt     *time.Time `json:"banned_at,omitempty"`
	BannedByID   *int64     `json:"banned_by_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BanActive reports whether the user's ban suspends authentication at
// the given instant. A set expiry in the past lifts the ban implicitly.
func (u *User) BanActive(now time.Time) bool {
	if !u.IsBanned {
		return false
	}
	if u.BanExpiresAt != nil && !u.BanExpiresAt.After(now) {
		return false
	}
	return true
}

// Context is the authenticated request context produced by the session
// middleware. User is the effective identity: during impersonation it is
// the target user, not the admin.
type Context struct {
	User    *User
	Session *Session
}

// EffectiveUserID returns the identity all authorization decisions use.
func (c *Context) EffectiveUserID() int64 {
	return c.User.ID
}

// ActorUserID returns the human behind the session: the admin's id while
// impersonating, the user's own id otherwise. Audit events record this.
func (c *Context) ActorUserID() int64 {
	if imp, ok := c.Session.Impersonation(); ok {
		return imp.AdminID
	}
	return c.User.ID
}

// IsImpersonating reports whether the session is in the Impersonating
// state.
func (c *Context) IsImpersonating() bool {
	_, ok := c.Session.Impersonation()
	return ok
}
