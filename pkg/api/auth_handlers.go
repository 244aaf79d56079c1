package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/doorpasses/platform/pkg/auth"
	"github.com/doorpasses/platform/pkg/authz"
	"github.com/doorpasses/platform/pkg/httputil"
	"github.com/doorpasses/platform/pkg/middleware"
	"github.com/doorpasses/platform/pkg/observability"
	"github.com/doorpasses/platform/pkg/orgs"
)

// identityHeader carries the authenticated username set by the identity
// proxy in front of this service. Credential verification is the proxy's
// job; this service exchanges the asserted identity for a session.
const identityHeader = "X-Auth-Request-User"

// AuthHandlers serves session issuance and introspection.
type AuthHandlers struct {
	sessions   auth.Store
	users      auth.UserStore
	orgs       orgs.Service
	sessionTTL time.Duration
	logger     *observability.Logger
}

// NewAuthHandlers creates the auth handler group.
func NewAuthHandlers(sessions auth.Store, users auth.UserStore, orgService orgs.Service,
	sessionTTL time.Duration, logger *observability.Logger) *AuthHandlers {
	return &AuthHandlers{
		sessions:   sessions,
		users:      users,
		orgs:       orgService,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// RegisterRoutes attaches the auth routes.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router, sessionAuth *middleware.SessionAuth) {
	router.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	router.Handle("/auth/logout",
		sessionAuth.Handler(http.HandlerFunc(h.logout))).Methods(http.MethodPost)
	router.Handle("/auth/me",
		sessionAuth.Handler(http.HandlerFunc(h.me))).Methods(http.MethodGet)
}

// login exchanges the proxy-asserted identity for a session cookie.
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	username := r.Header.Get(identityHeader)
	if username == "" {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "no authenticated identity")
		return
	}

	ctx := r.Context()
	user, err := h.users.GetUserByUsername(ctx, username)
	if err == auth.ErrUserNotFound {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "unknown user")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	now := time.Now().UTC()
	if !user.IsActive {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "account deactivated")
		return
	}
	if user.BanActive(now) {
		httputil.WriteErrorMessage(w, http.StatusForbidden, "account suspended")
		return
	}

	session := auth.NewSession(user.ID, h.sessionTTL, now)
	if err := h.sessions.CreateSession(ctx, session); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.setSessionCookie(w, session)
	h.logger.WithField("username", user.Username).Info("Session created")
	httputil.WriteSuccess(w, map[string]interface{}{
		"user":       user,
		"expires_at": session.ExpiresAt,
	})
}

func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if err := h.sessions.DeleteSession(r.Context(), authCtx.Session.ID); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	httputil.WriteNoContent(w)
}

// meResponse hydrates the client-side guard: the user, their orgs, and a
// permission snapshot for the requested org. The snapshot drives UI
// visibility only; the server guards re-check everything.
type meResponse struct {
	User          *auth.User           `json:"user"`
	Impersonating *auth.Impersonating  `json:"impersonating,omitempty"`
	Organizations []*orgs.Organization `json:"organizations"`
	Membership    *orgs.Membership     `json:"membership,omitempty"`
	PermissionSet *authz.PermissionSet `json:"permission_set,omitempty"`
}

func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	ctx := r.Context()

	response := &meResponse{User: authCtx.User}
	if imp, ok := authCtx.Session.Impersonation(); ok {
		response.Impersonating = &imp
	}

	organizations, err := h.orgs.ListOrganizations(ctx, authCtx.EffectiveUserID())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	response.Organizations = organizations

	// ?org=<slug> selects which org's permissions to snapshot; default is
	// the user's default membership.
	var membership *orgs.Membership
	if slug := r.URL.Query().Get("org"); slug != "" {
		org, err := h.orgs.GetOrganizationBySlug(ctx, slug)
		if err == nil {
			membership, err = h.orgs.ResolveMembership(ctx, org.ID, authCtx.EffectiveUserID())
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}
		} else if err != orgs.ErrOrgNotFound {
			httputil.WriteInternalError(w, err)
			return
		}
	} else {
		membership, err = h.orgs.DefaultMembership(ctx, authCtx.EffectiveUserID())
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
	}

	if membership != nil {
		response.Membership = membership
		set := authz.SnapshotRole(authz.RoleByName(membership.Role))
		response.PermissionSet = &set
	}

	httputil.WriteSuccess(w, response)
}

func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, session *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
