// Package orgs manages organizations and their memberships.
//
// Membership is the bridge between a global user and an org-scoped role:
// authorization never looks at a membership row directly, it resolves one
// through ResolveMembership, which filters out deactivated rows so that a
// suspended member keeps their history but loses all access.
package orgs
