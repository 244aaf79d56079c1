package auth

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionState is the tagged union of session states. The only
// implementations are Normal and Impersonating.
type SessionState interface {
	sessionState()
}

// Normal is the ordinary authenticated state.
type Normal struct{}

func (Normal) sessionState() {}

// Impersonating records an admin temporarily assuming another user's
// identity. AdminID/TargetID drive the state machine; the names are
// captured for audit readability.
type Impersonating struct {
	AdminID    int64     `json:"admin_id"`
	AdminName  string    `json:"admin_name"`
	TargetID   int64     `json:"target_id"`
	TargetName string    `json:"target_name"`
	StartedAt  time.Time `json:"started_at"`
}

func (Impersonating) sessionState() {}

// Session ties a user to an authenticated context. UserID is the
// effective identity: for an impersonation session it is the target
// user's id.
type Session struct {
	ID        string
	UserID    int64
	State     SessionState
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewSession creates a Normal session for the user with a fresh token.
func NewSession(userID int64, ttl time.Duration, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		State:     Normal{},
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// Impersonation returns the impersonation details when the session is in
// the Impersonating state.
func (s *Session) Impersonation() (Impersonating, bool) {
	imp, ok := s.State.(Impersonating)
	return imp, ok
}

// Expired reports whether the session has expired at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// sessionJSON is the wire/storage form. A null impersonation field means
// the Normal state.
type sessionJSON struct {
	ID            string         `json:"id"`
	UserID        int64          `json:"user_id"`
	Impersonation *Impersonating `json:"impersonation,omitempty"`
	ExpiresAt     time.Time      `json:"expires_at"`
	CreatedAt     time.Time      `json:"created_at"`
}

// MarshalJSON encodes the state union as an optional impersonation field.
func (s *Session) MarshalJSON() ([]byte, error) {
	out := sessionJSON{
		ID:        s.ID,
		UserID:    s.UserID,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
	}
	if imp, ok := s.Impersonation(); ok {
		out.Impersonation = &imp
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the optional impersonation field back into the
// state union.
func (s *Session) UnmarshalJSON(data []byte) error {
	var in sessionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	s.ID = in.ID
	s.UserID = in.UserID
	s.ExpiresAt = in.ExpiresAt
	s.CreatedAt = in.CreatedAt
	if in.Impersonation != nil {
		s.State = *in.Impersonation
	} else {
		s.State = Normal{}
	}
	return nil
}
