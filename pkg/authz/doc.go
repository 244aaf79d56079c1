// Package authz implements the permission grammar, role model, and
// permission evaluator for the DoorPasses platform.
//
// # Overview
//
// Access control is expressed as permission strings of the form
// "action:entity:access", where the third segment is an optional
// comma-separated set of access scopes:
//
//	"read:pass"            - read passes, any access scope
//	"update:pass:own"      - update passes the user owns
//	"delete:member:own,org" - delete own or org-scoped members
//
// Roles are named, leveled bundles of permissions scoped to an
// organization. The built-in role ladder is admin (3) > member (2) >
// viewer (1) > guest (0). Levels order roles for "at least" checks;
// a higher level being a capability superset is a convention the code
// does not enforce.
//
// # Evaluation
//
// The evaluator is pure and synchronous: given an already-resolved role,
// Has parses the requested permission string and checks action, entity,
// and access-scope overlap. When the requested string carries no access
// segment, any access value on a matching action/entity permission
// satisfies the check. HasAll and HasAny are the short-circuiting
// conjunction and disjunction; HasRole and HasMinLevel are first-class
// role/level checks that bypass the permission set entirely.
//
// # Parsing policy
//
// ParsePermission never fails. Malformed strings degrade to empty-string
// fields; an empty action cannot match any granted permission, so
// malformed input fails closed at evaluation time.
package authz
