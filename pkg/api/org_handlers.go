package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/doorpasses/platform/pkg/authz"
	"github.com/doorpasses/platform/pkg/httputil"
	"github.com/doorpasses/platform/pkg/middleware"
	"github.com/doorpasses/platform/pkg/observability"
	"github.com/doorpasses/platform/pkg/orgs"
)

// OrgHandlers serves organization and membership management.
type OrgHandlers struct {
	orgs   orgs.Service
	logger *observability.Logger
}

// NewOrgHandlers creates the org handler group.
func NewOrgHandlers(orgService orgs.Service, logger *observability.Logger) *OrgHandlers {
	return &OrgHandlers{orgs: orgService, logger: logger}
}

// RegisterRoutes attaches the org routes. Member mutation routes require
// the org admin role through the guard chain; reads require viewer level.
func (h *OrgHandlers) RegisterRoutes(router *mux.Router, sessionAuth *middleware.SessionAuth,
	orgContext *middleware.OrgContext, guards *middleware.Guards) {

	authed := func(handler http.HandlerFunc) http.Handler {
		return sessionAuth.Handler(handler)
	}
	router.Handle("/orgs", authed(h.listOrgs)).Methods(http.MethodGet)
	router.Handle("/orgs", authed(h.createOrg)).Methods(http.MethodPost)
	router.Handle("/invitations/{token}/accept", authed(h.acceptInvitation)).Methods(http.MethodPost)

	scoped := func(guard func(http.Handler) http.Handler, handler http.HandlerFunc) http.Handler {
		return sessionAuth.Handler(orgContext.Handler(guard(handler)))
	}
	memberRead := guards.RequireMinLevel(authz.LevelViewer)
	memberAdmin := guards.RequireRole(authz.RoleAdmin)

	router.Handle("/orgs/{org}", scoped(memberRead, h.getOrg)).Methods(http.MethodGet)
	router.Handle("/orgs/{org}", scoped(memberAdmin, h.deactivateOrg)).Methods(http.MethodDelete)
	router.Handle("/orgs/{org}/members", scoped(memberRead, h.listMembers)).Methods(http.MethodGet)
	router.Handle("/orgs/{org}/members", scoped(memberAdmin, h.addMember)).Methods(http.MethodPost)
	router.Handle("/orgs/{org}/members/{userID}", scoped(memberAdmin, h.updateMemberRole)).Methods(http.MethodPatch)
	router.Handle("/orgs/{org}/members/{userID}", scoped(memberAdmin, h.deactivateMember)).Methods(http.MethodDelete)
	router.Handle("/orgs/{org}/members/{userID}/reactivate", scoped(memberAdmin, h.reactivateMember)).Methods(http.MethodPost)
	router.Handle("/orgs/{org}/default", scoped(memberRead, h.setDefault)).Methods(http.MethodPost)
	router.Handle("/orgs/{org}/invitations", scoped(memberAdmin, h.createInvitation)).Methods(http.MethodPost)
	router.Handle("/orgs/{org}/invitations/{id}", scoped(memberAdmin, h.revokeInvitation)).Methods(http.MethodDelete)
}

func (h *OrgHandlers) listOrgs(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	organizations, err := h.orgs.ListOrganizations(r.Context(), authCtx.EffectiveUserID())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, organizations)
}

func (h *OrgHandlers) createOrg(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)

	var req orgs.CreateOrgRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if req.Name == "" {
		httputil.WriteValidationError(w, "name is required")
		return
	}

	ctx := r.Context()
	org := &orgs.Organization{Slug: req.Slug, Name: req.Name}
	if err := h.orgs.CreateOrganization(ctx, org); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	// The creator becomes the org's first admin.
	creatorID := authCtx.EffectiveUserID()
	if err := h.orgs.AddMember(ctx, org.ID, creatorID, authz.RoleAdmin, nil); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, org)
}

func (h *OrgHandlers) getOrg(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, middleware.GetOrg(r))
}

func (h *OrgHandlers) deactivateOrg(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	if err := h.orgs.DeactivateOrganization(r.Context(), org.ID); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *OrgHandlers) listMembers(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	members, err := h.orgs.ListMembers(r.Context(), org.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

type addMemberRequest struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

func (h *OrgHandlers) addMember(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	authCtx := middleware.GetAuthContext(r)

	var req addMemberRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if req.UserID == 0 {
		httputil.WriteValidationError(w, "user_id is required")
		return
	}
	if authz.RoleByName(req.Role) == nil {
		httputil.WriteValidationError(w, "unknown role")
		return
	}

	inviterID := authCtx.ActorUserID()
	err := h.orgs.AddMember(r.Context(), org.ID, req.UserID, req.Role, &inviterID)
	if err == orgs.ErrAlreadyMember {
		httputil.WriteErrorMessage(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, map[string]interface{}{"user_id": req.UserID, "role": req.Role})
}

func (h *OrgHandlers) updateMemberRole(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	userID, err := httputil.PathInt64(r, "userID")
	if err != nil {
		httputil.WriteValidationError(w, "invalid user id")
		return
	}

	var req orgs.UpdateMemberRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if authz.RoleByName(req.Role) == nil {
		httputil.WriteValidationError(w, "unknown role")
		return
	}

	err = h.orgs.UpdateMemberRole(r.Context(), org.ID, userID, req.Role)
	if err == orgs.ErrMemberNotFound {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"user_id": userID, "role": req.Role})
}

func (h *OrgHandlers) deactivateMember(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	authCtx := middleware.GetAuthContext(r)
	userID, err := httputil.PathInt64(r, "userID")
	if err != nil {
		httputil.WriteValidationError(w, "invalid user id")
		return
	}
	if userID == authCtx.EffectiveUserID() {
		httputil.WriteValidationError(w, "cannot deactivate your own membership")
		return
	}

	err = h.orgs.DeactivateMember(r.Context(), org.ID, userID)
	if err == orgs.ErrMemberNotFound {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *OrgHandlers) reactivateMember(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	userID, err := httputil.PathInt64(r, "userID")
	if err != nil {
		httputil.WriteValidationError(w, "invalid user id")
		return
	}

	err = h.orgs.ReactivateMember(r.Context(), org.ID, userID)
	if err == orgs.ErrMemberNotFound {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *OrgHandlers) setDefault(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	authCtx := middleware.GetAuthContext(r)

	err := h.orgs.SetDefaultMembership(r.Context(), org.ID, authCtx.EffectiveUserID())
	if err == orgs.ErrMemberNotFound {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *OrgHandlers) createInvitation(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	authCtx := middleware.GetAuthContext(r)

	var req orgs.InviteMemberRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if req.Email == "" {
		httputil.WriteValidationError(w, "email is required")
		return
	}
	if authz.RoleByName(req.Role) == nil {
		httputil.WriteValidationError(w, "unknown role")
		return
	}

	inv := &orgs.Invitation{
		OrgID:     org.ID,
		Email:     req.Email,
		Role:      req.Role,
		InvitedBy: authCtx.ActorUserID(),
	}
	if err := h.orgs.CreateInvitation(r.Context(), inv); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, inv)
}

func (h *OrgHandlers) revokeInvitation(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteValidationError(w, "invalid invitation id")
		return
	}

	err = h.orgs.RevokeInvitation(r.Context(), id)
	if err == orgs.ErrInvitationNotFound {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *OrgHandlers) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	token, err := httputil.PathString(r, "token")
	if err != nil {
		httputil.WriteValidationError(w, "invalid token")
		return
	}

	err = h.orgs.AcceptInvitation(r.Context(), token, authCtx.EffectiveUserID(), time.Now().UTC())
	switch err {
	case nil:
		httputil.WriteNoContent(w)
	case orgs.ErrInvitationNotFound:
		httputil.WriteNotFoundError(w, err.Error())
	case orgs.ErrInvitationExpired, orgs.ErrInvitationAccepted:
		httputil.WriteErrorMessage(w, http.StatusConflict, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}
