// Package auth holds user identity, ban state, and session management
// for the DoorPasses platform.
//
// # Sessions and impersonation
//
// A session ties a user to an authenticated browser context. Its state is
// a tagged union: Normal, or Impersonating with the acting admin's and
// target's identities and a start timestamp. The union is explicit so the
// admin override state machine (pkg/admin) is checked exhaustively
// instead of riding on a loosely-typed optional field.
//
// Two session store backends share the Store interface: Postgres is
// authoritative; Redis is an optional drop-in selected by configuration.
//
// # Bans
//
// A banned user (with no unexpired grace) is rejected at authentication
// time regardless of impersonation state. Applying a ban deletes the
// user's sessions in the same transaction (see pkg/admin); the per-request
// ban check reads through an expirable LRU cache to keep the hot path to
// one cheap lookup.
package auth
