package authz

// PermissionSet is a point-in-time snapshot of a membership's granted
// permissions and role, hydrated once (at page load, in a loader payload)
// and consulted synchronously afterwards. It drives UI-visibility
// decisions with the same semantics as the server-side evaluator.
//
// A PermissionSet is never a security boundary: it reflects whatever was
// hydrated and is not re-checked when permissions change mid-session.
// The server guards stay authoritative.
type PermissionSet struct {
	RoleName    string       `json:"role_name"`
	RoleLevel   int          `json:"role_level"`
	Permissions []Permission `json:"permissions"`
}

// SnapshotRole builds a PermissionSet from a resolved role. A nil role
// yields an empty set that denies everything.
func SnapshotRole(role *Role) PermissionSet {
	if role == nil {
		return PermissionSet{}
	}
	perms := make([]Permission, len(role.Permissions))
	copy(perms, role.Permissions)
	return PermissionSet{
		RoleName:    role.Name,
		RoleLevel:   role.Level,
		Permissions: perms,
	}
}

func (s PermissionSet) role() *Role {
	return &Role{Name: s.RoleName, Level: s.RoleLevel, Permissions: s.Permissions}
}

// Has reports whether the snapshot grants the permission string.
func (s PermissionSet) Has(permission string) bool {
	return Has(s.role(), permission)
}

// HasAll reports whether the snapshot grants every listed permission.
func (s PermissionSet) HasAll(permissions []string) bool {
	return HasAll(s.role(), permissions)
}

// HasAny reports whether the snapshot grants any listed permission.
func (s PermissionSet) HasAny(permissions []string) bool {
	return HasAny(s.role(), permissions)
}

// HasRole reports whether the snapshot's role name is one of names.
func (s PermissionSet) HasRole(names ...string) bool {
	return HasRole(s.role(), names...)
}
