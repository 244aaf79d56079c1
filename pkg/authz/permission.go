package authz

import "strings"

// Permission is a parsed "action:entity:access" triple. Access is a set of
// access scopes; an empty set means the permission was requested (or
// granted) without scope restriction.
type Permission struct {
	Action string   `json:"action"`
	Entity string   `json:"entity"`
	Access []string `json:"access,omitempty"`
}

// ParsePermission parses a permission string into its typed triple.
//
// The parse is deliberately permissive: missing segments yield empty
// fields rather than an error. Callers must tolerate this - an empty
// Action never matches a granted permission, so malformed strings deny.
func ParsePermission(s string) Permission {
	parts := strings.SplitN(s, ":", 3)

	var p Permission
	if len(parts) > 0 {
		p.Action = strings.TrimSpace(parts[0])
	}
	if len(parts) > 1 {
		p.Entity = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		for _, a := range strings.Split(parts[2], ",") {
			a = strings.TrimSpace(a)
			if a != "" {
				p.Access = append(p.Access, a)
			}
		}
	}
	return p
}

// String serializes the permission back to "action:entity[:access,...]"
// form. Whitespace trimmed during parsing is not restored.
func (p Permission) String() string {
	if len(p.Access) == 0 {
		if p.Entity == "" && p.Action == "" {
			return ""
		}
		return p.Action + ":" + p.Entity
	}
	return p.Action + ":" + p.Entity + ":" + strings.Join(p.Access, ",")
}

// HasAccess reports whether the permission grants the given access scope.
func (p Permission) HasAccess(scope string) bool {
	for _, a := range p.Access {
		if a == scope {
			return true
		}
	}
	return false
}

// matches reports whether a granted permission satisfies a requested one.
// Action and entity must match exactly; the requested access set, when
// non-empty, must overlap the granted set.
func (p Permission) matches(requested Permission) bool {
	if p.Action == "" || p.Action != requested.Action || p.Entity != requested.Entity {
		return false
	}
	if len(requested.Access) == 0 {
		// No access scope requested - any access value on a matching
		// action/entity permission satisfies the check.
		return true
	}
	for _, want := range requested.Access {
		if p.HasAccess(want) {
			return true
		}
	}
	return false
}
