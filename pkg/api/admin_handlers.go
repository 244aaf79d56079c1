package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/doorpasses/platform/pkg/admin"
	"github.com/doorpasses/platform/pkg/audit"
	"github.com/doorpasses/platform/pkg/auth"
	"github.com/doorpasses/platform/pkg/httputil"
	"github.com/doorpasses/platform/pkg/middleware"
	"github.com/doorpasses/platform/pkg/observability"
)

// AdminHandlers serves the operator override surface. Every route sits
// behind the global-admin guard; the service re-checks the role anyway
// so a routing mistake cannot open the surface.
type AdminHandlers struct {
	admin    *admin.Service
	audit    audit.Store
	sessions auth.Store
	logger   *observability.Logger
}

// NewAdminHandlers creates the admin handler group.
func NewAdminHandlers(adminService *admin.Service, auditStore audit.Store,
	sessions auth.Store, logger *observability.Logger) *AdminHandlers {
	return &AdminHandlers{
		admin:    adminService,
		audit:    auditStore,
		sessions: sessions,
		logger:   logger,
	}
}

// RegisterRoutes attaches the admin routes.
func (h *AdminHandlers) RegisterRoutes(router *mux.Router, sessionAuth *middleware.SessionAuth,
	guards *middleware.Guards) {
	adminOnly := guards.RequireGlobalAdmin()
	guarded := func(handler http.HandlerFunc) http.Handler {
		return sessionAuth.Handler(adminOnly(handler))
	}

	router.Handle("/admin/users/{userID}/ban", guarded(h.banUser)).Methods(http.MethodPost)
	router.Handle("/admin/users/{userID}/ban", guarded(h.unbanUser)).Methods(http.MethodDelete)
	router.Handle("/admin/users/{userID}/impersonate", guarded(h.startImpersonation)).Methods(http.MethodPost)
	router.Handle("/admin/audit", guarded(h.searchAudit)).Methods(http.MethodGet)
	router.Handle("/admin/audit/export", guarded(h.exportAudit)).Methods(http.MethodGet)

	// Stopping requires an impersonation session, not the admin flag: the
	// effective user is the target, who is usually not an admin.
	router.Handle("/admin/stop-impersonation",
		sessionAuth.Handler(http.HandlerFunc(h.stopImpersonation))).Methods(http.MethodPost)
}

func (h *AdminHandlers) banUser(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	targetID, err := httputil.PathInt64(r, "userID")
	if err != nil {
		httputil.WriteValidationError(w, "invalid user id")
		return
	}

	var req admin.BanRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	err = h.admin.Ban(r.Context(), authCtx.ActorUserID(), targetID, req, time.Now().UTC())
	if err != nil {
		h.writeAdminError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *AdminHandlers) unbanUser(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	targetID, err := httputil.PathInt64(r, "userID")
	if err != nil {
		httputil.WriteValidationError(w, "invalid user id")
		return
	}

	err = h.admin.LiftBan(r.Context(), authCtx.ActorUserID(), targetID, time.Now().UTC())
	if err != nil {
		h.writeAdminError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *AdminHandlers) startImpersonation(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	targetID, err := httputil.PathInt64(r, "userID")
	if err != nil {
		httputil.WriteValidationError(w, "invalid user id")
		return
	}

	session, err := h.admin.StartImpersonation(r.Context(), authCtx.ActorUserID(), targetID, time.Now().UTC())
	if err != nil {
		h.writeAdminError(w, err)
		return
	}

	h.setSessionCookie(w, session)
	imp, _ := session.Impersonation()
	httputil.WriteSuccess(w, map[string]interface{}{
		"impersonating": imp,
		"expires_at":    session.ExpiresAt,
	})
}

func (h *AdminHandlers) stopImpersonation(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)

	adminSession, err := h.admin.StopImpersonation(r.Context(), authCtx.Session, time.Now().UTC())
	if err != nil {
		h.writeAdminError(w, err)
		return
	}

	h.setSessionCookie(w, adminSession)
	httputil.WriteSuccess(w, map[string]interface{}{
		"user_id":    adminSession.UserID,
		"expires_at": adminSession.ExpiresAt,
	})
}

func (h *AdminHandlers) searchAudit(w http.ResponseWriter, r *http.Request) {
	filter, err := auditFilterFromQuery(r)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	records, err := h.audit.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, records)
}

func (h *AdminHandlers) exportAudit(w http.ResponseWriter, r *http.Request) {
	filter, err := auditFilterFromQuery(r)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	format := audit.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = audit.FormatNDJSON
	}

	data, err := h.audit.Export(r.Context(), filter, format)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	switch format {
	case audit.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
	case audit.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	default:
		w.Header().Set("Content-Type", "application/x-ndjson")
	}
	w.Header().Set("Content-Disposition", "attachment; filename=audit-export."+string(format))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// writeAdminError maps service errors to responses. Validation failures
// carry their specific reason; authorization failures stay generic.
func (h *AdminHandlers) writeAdminError(w http.ResponseWriter, err error) {
	switch err {
	case admin.ErrNotGlobalAdmin:
		httputil.WriteForbidden(w)
	case auth.ErrUserNotFound:
		httputil.WriteNotFoundError(w, "user not found")
	case admin.ErrBanReasonRequired, admin.ErrBanExpiryInPast,
		admin.ErrAlreadyBanned, admin.ErrNotBanned,
		admin.ErrTargetBanned, admin.ErrTargetDeactivated,
		admin.ErrSelfImpersonation, admin.ErrNotImpersonating:
		httputil.WriteErrorMessage(w, http.StatusBadRequest, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}

func auditFilterFromQuery(r *http.Request) (audit.SearchFilter, error) {
	q := r.URL.Query()
	filter := audit.SearchFilter{
		Action: q.Get("action"),
		Limit:  httputil.QueryInt(r, "limit", 0),
		Offset: httputil.QueryInt(r, "offset", 0),
	}
	if v := q.Get("user_id"); v != "" {
		id := int64(httputil.QueryInt(r, "user_id", 0))
		filter.UserID = &id
	}
	if v := q.Get("target_user_id"); v != "" {
		id := int64(httputil.QueryInt(r, "target_user_id", 0))
		filter.TargetUserID = &id
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, err
		}
		filter.Since = &t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, err
		}
		filter.Until = &t
	}
	return filter, nil
}

func (h *AdminHandlers) setSessionCookie(w http.ResponseWriter, session *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
