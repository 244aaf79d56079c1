// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application are defined here. This
// prevents typos, documents dependencies, and makes key usage
// discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.Context
	// Set by: middleware.SessionAuth (pkg/middleware/auth.go)
	// Required by: guards, org-scoped handlers, admin handlers
	AuthKey Key = "auth_context"

	// OrgKey contains *orgs.Organization
	// Set by: middleware.OrgContext (pkg/middleware/org.go)
	OrgKey Key = "organization"

	// MembershipKey contains *orgs.Membership
	// Set by: the org access guard after resolution, so handlers reuse
	// the resolved membership instead of resolving twice
	MembershipKey Key = "membership"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: observability middleware
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	LoggerKey Key = "logger"
)

// WithAuth adds the authenticated context to the context.
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// WithOrg adds the organization to the context.
func WithOrg(ctx context.Context, org interface{}) context.Context {
	return context.WithValue(ctx, OrgKey, org)
}

// WithMembership adds the resolved membership to the context.
func WithMembership(ctx context.Context, m interface{}) context.Context {
	return context.WithValue(ctx, MembershipKey, m)
}

// WithRequestID adds the request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
