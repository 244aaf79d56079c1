package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/doorpasses/platform/pkg/contextkeys"
	"github.com/doorpasses/platform/pkg/httputil"
	"github.com/doorpasses/platform/pkg/observability"
	"github.com/doorpasses/platform/pkg/orgs"
)

// OrgContext resolves the organization named in the route and the
// caller's membership in it, and installs both in the request context.
// Requests without an active membership are rejected with a generic 403
// before the handler runs.
type OrgContext struct {
	orgs    orgs.Service
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewOrgContext creates the org resolution middleware. metrics may be nil.
func NewOrgContext(orgService orgs.Service, logger *observability.Logger,
	metrics *observability.Metrics) *OrgContext {
	return &OrgContext{orgs: orgService, logger: logger, metrics: metrics}
}

// Handler resolves the {org} path variable (a slug) and requires an
// active membership for the effective user.
func (m *OrgContext) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := GetAuthContext(r)
		if authCtx == nil {
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}

		slug := mux.Vars(r)["org"]
		if slug == "" {
			httputil.WriteValidationError(w, "organization is required")
			return
		}

		ctx := r.Context()
		org, err := m.orgs.GetOrganizationBySlug(ctx, slug)
		if err == orgs.ErrOrgNotFound {
			// Same response as no membership: don't reveal which orgs exist.
			m.deny(w, "org_not_found")
			return
		}
		if err != nil {
			m.logger.WithError(err).Error("Organization lookup failed")
			httputil.WriteInternalError(w, err)
			return
		}
		if !org.Active || org.Hidden {
			m.deny(w, "org_unavailable")
			return
		}

		membership, err := m.orgs.ResolveMembership(ctx, org.ID, authCtx.EffectiveUserID())
		if err != nil {
			m.logger.WithError(err).Error("Membership resolution failed")
			httputil.WriteInternalError(w, err)
			return
		}
		if membership == nil {
			m.deny(w, "no_membership")
			return
		}

		ctx = contextkeys.WithOrg(ctx, org)
		ctx = contextkeys.WithMembership(ctx, membership)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *OrgContext) deny(w http.ResponseWriter, reason string) {
	if m.metrics != nil {
		m.metrics.GuardRejectionsTotal.WithLabelValues(reason).Inc()
	}
	httputil.WriteForbidden(w)
}

// GetOrg extracts the resolved organization from a request.
func GetOrg(r *http.Request) *orgs.Organization {
	org, _ := r.Context().Value(contextkeys.OrgKey).(*orgs.Organization)
	return org
}

// GetMembership extracts the resolved membership from a request.
func GetMembership(r *http.Request) *orgs.Membership {
	m, _ := r.Context().Value(contextkeys.MembershipKey).(*orgs.Membership)
	return m
}
