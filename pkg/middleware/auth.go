package middleware

import (
	"net/http"
	"time"

	"github.com/doorpasses/platform/pkg/auth"
	"github.com/doorpasses/platform/pkg/contextkeys"
	"github.com/doorpasses/platform/pkg/httputil"
	"github.com/doorpasses/platform/pkg/observability"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "doorpasses_session"

// SessionAuth authenticates requests from the session cookie. It loads
// the session and its effective user, enforces bans, and installs an
// *auth.Context for downstream guards and handlers.
type SessionAuth struct {
	sessions auth.Store
	users    auth.UserStore
	bans     *auth.BanCache
	logger   *observability.Logger
	optional bool
}

// NewSessionAuth creates the session middleware. bans may be nil, in
// which case ban state is read from the user row on every request.
func NewSessionAuth(sessions auth.Store, users auth.UserStore, bans *auth.BanCache,
	logger *observability.Logger, optional bool) *SessionAuth {
	return &SessionAuth{
		sessions: sessions,
		users:    users,
		bans:     bans,
		logger:   logger,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with session authentication.
func (m *SessionAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := r.Context()
		session, err := m.sessions.GetSession(ctx, cookie.Value)
		if err != nil {
			if err != auth.ErrSessionNotFound {
				m.logger.WithError(err).Error("Session lookup failed")
			}
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		user, err := m.users.GetUser(ctx, session.UserID)
		if err != nil {
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		if !user.IsActive {
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "account deactivated")
			return
		}

		now := time.Now().UTC()
		if err := m.enforceBan(r, session, user, now, w); err != nil {
			return
		}

		authCtx := &auth.Context{User: user, Session: session}
		next.ServeHTTP(w, r.WithContext(contextkeys.WithAuth(ctx, authCtx)))
	})
}

// enforceBan rejects banned effective users. During impersonation the
// effective user is the target, who passed the ban check at start time;
// a ban applied mid-impersonation still bites here because the cache is
// invalidated on ban.
func (m *SessionAuth) enforceBan(r *http.Request, session *auth.Session, user *auth.User,
	now time.Time, w http.ResponseWriter) error {
	var banned bool
	if m.bans != nil {
		var err error
		banned, err = m.bans.BanActive(r.Context(), user.ID, now)
		if err != nil {
			m.logger.WithError(err).Error("Ban check failed")
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "invalid or expired session")
			return err
		}
	} else {
		banned = user.BanActive(now)
	}
	if banned {
		// Best effort; the ban already invalidated stored sessions.
		_ = m.sessions.DeleteSession(r.Context(), session.ID)
		httputil.WriteErrorMessage(w, http.StatusForbidden, "account suspended")
		return errBanned
	}
	return nil
}

var errBanned = &bannedError{}

type bannedError struct{}

func (*bannedError) Error() string { return "account suspended" }

// GetAuthContext extracts the authenticated context from a request, or
// nil when the request is unauthenticated.
func GetAuthContext(r *http.Request) *auth.Context {
	value := r.Context().Value(contextkeys.AuthKey)
	if value == nil {
		return nil
	}
	authCtx, ok := value.(*auth.Context)
	if !ok {
		return nil
	}
	return authCtx
}
