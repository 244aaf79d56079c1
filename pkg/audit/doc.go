// Package audit records administrative actions to an append-only log.
//
// Records are never updated or deleted through the API; the only write
// besides insertion is retention cleanup, which trims by age. Actions
// that must not silently go unrecorded (impersonation, bans) write their
// record synchronously and fail the operation when the write fails.
package audit
