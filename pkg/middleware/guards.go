package middleware

import (
	"net/http"

	"github.com/doorpasses/platform/pkg/authz"
	"github.com/doorpasses/platform/pkg/httputil"
	"github.com/doorpasses/platform/pkg/observability"
)

// Guards builds role and permission middleware on top of the resolved
// membership. All of them assume OrgContext ran earlier in the chain and
// fail closed when it did not.
type Guards struct {
	metrics *observability.Metrics
}

// NewGuards creates the guard factory. metrics may be nil.
func NewGuards(metrics *observability.Metrics) *Guards {
	return &Guards{metrics: metrics}
}

// resolveRole maps the membership in the request to its leveled role.
// Nil when the request carries no membership or the role name is
// unknown; evaluation on nil denies everything.
func resolveRole(r *http.Request) *authz.Role {
	membership := GetMembership(r)
	if membership == nil {
		return nil
	}
	return authz.RoleByName(membership.Role)
}

// RequirePermission admits requests whose org role grants the permission.
func (g *Guards) RequirePermission(permission string) func(http.Handler) http.Handler {
	return g.require("permission", func(r *http.Request) bool {
		return authz.Has(resolveRole(r), permission)
	})
}

// RequireAllPermissions admits requests whose org role grants every
// listed permission.
func (g *Guards) RequireAllPermissions(permissions ...string) func(http.Handler) http.Handler {
	return g.require("permission", func(r *http.Request) bool {
		return authz.HasAll(resolveRole(r), permissions)
	})
}

// RequireAnyPermission admits requests whose org role grants at least
// one listed permission.
func (g *Guards) RequireAnyPermission(permissions ...string) func(http.Handler) http.Handler {
	return g.require("permission", func(r *http.Request) bool {
		return authz.HasAny(resolveRole(r), permissions)
	})
}

// RequireRole admits requests whose org role is one of the named roles,
// by name rather than permission contents.
func (g *Guards) RequireRole(names ...string) func(http.Handler) http.Handler {
	return g.require("role", func(r *http.Request) bool {
		return authz.HasRole(resolveRole(r), names...)
	})
}

// RequireMinLevel admits requests whose org role sits at or above the
// given level in the role ladder.
func (g *Guards) RequireMinLevel(level int) func(http.Handler) http.Handler {
	return g.require("level", func(r *http.Request) bool {
		return authz.HasMinLevel(resolveRole(r), level)
	})
}

// RequireGlobalAdmin admits only users holding the system-wide admin
// flag. It does not consult org membership.
func (g *Guards) RequireGlobalAdmin() func(http.Handler) http.Handler {
	return g.require("global_admin", func(r *http.Request) bool {
		authCtx := GetAuthContext(r)
		return authCtx != nil && authCtx.User.IsAdmin
	})
}

func (g *Guards) require(guard string, allow func(*http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := allow(r)
			if g.metrics != nil {
				g.metrics.RecordAuthzDecision(guard, allowed)
			}
			if !allowed {
				if g.metrics != nil {
					g.metrics.GuardRejectionsTotal.WithLabelValues(guard).Inc()
				}
				httputil.WriteForbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
