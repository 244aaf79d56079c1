package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doorpasses/platform/pkg/auth"
	"github.com/doorpasses/platform/pkg/contextkeys"
	"github.com/doorpasses/platform/pkg/orgs"
)

type orgCapture struct {
	called     bool
	org        *orgs.Organization
	membership *orgs.Membership
}

func (h *orgCapture) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.org = GetOrg(r)
	h.membership = GetMembership(r)
	w.WriteHeader(http.StatusOK)
}

func orgRouter(mw *OrgContext, next http.Handler) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/orgs/{org}/things", mw.Handler(next)).Methods(http.MethodGet)
	return router
}

func authedRequest(t *testing.T, path string, userID int64) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	authCtx := &auth.Context{
		User:    &auth.User{ID: userID, Username: "alice", IsActive: true},
		Session: &auth.Session{ID: "s", UserID: userID, State: auth.Normal{}},
	}
	return req.WithContext(contextkeys.WithAuth(req.Context(), authCtx))
}

func TestOrgContext(t *testing.T) {
	db := setupTestDB(t)
	orgService := orgs.NewPostgresService(db)
	mw := NewOrgContext(orgService, testLogger(), nil)
	ctx := context.Background()

	userID := insertUser(t, db, "alice", false)
	org := &orgs.Organization{Name: "Acme Corp"}
	require.NoError(t, orgService.CreateOrganization(ctx, org))
	require.NoError(t, orgService.AddMember(ctx, org.ID, userID, "member", nil))

	t.Run("member admitted with context", func(t *testing.T) {
		next := &orgCapture{}
		rec := httptest.NewRecorder()
		orgRouter(mw, next).ServeHTTP(rec, authedRequest(t, "/orgs/acme-corp/things", userID))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.True(t, next.called)
		require.NotNil(t, next.org)
		assert.Equal(t, org.ID, next.org.ID)
		require.NotNil(t, next.membership)
		assert.Equal(t, "member", next.membership.Role)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		next := &orgCapture{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/orgs/acme-corp/things", nil)
		orgRouter(mw, next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, next.called)
	})

	t.Run("non-member denied", func(t *testing.T) {
		strangerID := insertUser(t, db, "stranger", false)
		next := &orgCapture{}
		rec := httptest.NewRecorder()
		orgRouter(mw, next).ServeHTTP(rec, authedRequest(t, "/orgs/acme-corp/things", strangerID))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, next.called)
	})

	t.Run("unknown org indistinguishable from no membership", func(t *testing.T) {
		missing := httptest.NewRecorder()
		orgRouter(mw, &orgCapture{}).ServeHTTP(missing,
			authedRequest(t, "/orgs/no-such-org/things", userID))

		strangerID := insertUser(t, db, "stranger2", false)
		denied := httptest.NewRecorder()
		orgRouter(mw, &orgCapture{}).ServeHTTP(denied,
			authedRequest(t, "/orgs/acme-corp/things", strangerID))

		assert.Equal(t, http.StatusForbidden, missing.Code)
		assert.Equal(t, denied.Code, missing.Code)
		assert.Equal(t, denied.Body.String(), missing.Body.String())
	})

	t.Run("deactivated member denied", func(t *testing.T) {
		require.NoError(t, orgService.DeactivateMember(ctx, org.ID, userID))
		next := &orgCapture{}
		rec := httptest.NewRecorder()
		orgRouter(mw, next).ServeHTTP(rec, authedRequest(t, "/orgs/acme-corp/things", userID))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, next.called)
		require.NoError(t, orgService.ReactivateMember(ctx, org.ID, userID))
	})

	t.Run("hidden org denied even for member", func(t *testing.T) {
		hidden := &orgs.Organization{Name: "Shadow", Hidden: true}
		require.NoError(t, orgService.CreateOrganization(ctx, hidden))
		require.NoError(t, orgService.AddMember(ctx, hidden.ID, userID, "admin", nil))

		next := &orgCapture{}
		rec := httptest.NewRecorder()
		orgRouter(mw, next).ServeHTTP(rec, authedRequest(t, "/orgs/shadow/things", userID))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, next.called)
	})
}
