// Package admin implements the operator override surface: banning users
// and impersonating them.
//
// Both operations are reserved for global admins and both leave a
// synchronous audit trail. An impersonation that cannot be recorded does
// not start; a ban commits atomically with the invalidation of the
// target's sessions.
package admin
