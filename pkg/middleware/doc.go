// Package middleware provides the HTTP guard chain: session
// authentication, organization context resolution, and role and
// permission enforcement.
//
// Every guard fails closed. A missing session, a missing membership, an
// unknown role name, or a deactivated member all produce the same
// generic 403 so responses never leak which check failed.
package middleware
