package authz

// Has reports whether the role grants the requested permission string.
//
// The string is parsed with ParsePermission; the role must hold a
// permission with matching action and entity, and - only when the request
// names an access set - at least one overlapping access value. A nil role
// denies everything.
func Has(role *Role, permission string) bool {
	if role == nil {
		return false
	}
	requested := ParsePermission(permission)
	for _, granted := range role.Permissions {
		if granted.matches(requested) {
			return true
		}
	}
	return false
}

// HasAll reports whether the role grants every permission in the list.
// Short-circuits on the first failure. An empty list is vacuously true.
func HasAll(role *Role, permissions []string) bool {
	for _, p := range permissions {
		if !Has(role, p) {
			return false
		}
	}
	return true
}

// HasAny reports whether the role grants at least one permission in the
// list. Short-circuits on the first success. An empty list is false.
func HasAny(role *Role, permissions []string) bool {
	for _, p := range permissions {
		if Has(role, p) {
			return true
		}
	}
	return false
}

// HasRole reports whether the role's name matches one of the allowed
// names exactly. This is not derived from the permission set; several
// guards use role identity rather than fine-grained permissions.
func HasRole(role *Role, names ...string) bool {
	if role == nil {
		return false
	}
	for _, n := range names {
		if role.Name == n {
			return true
		}
	}
	return false
}

// HasMinLevel reports whether the role's level is at least n. Like
// HasRole it bypasses the permission set entirely.
func HasMinLevel(role *Role, n int) bool {
	return role != nil && role.Level >= n
}
