// Package api assembles the HTTP server: the router, the middleware
// chain, and the handler groups for sessions, organizations, and admin
// overrides.
package api
