package authz

// Role scope values. Organization roles attach to memberships; the system
// scope is reserved for site operators; user scope carries per-user
// leveled configuration (feature-flag style).
type RoleScope string

const (
	ScopeSystem       RoleScope = "system"
	ScopeOrganization RoleScope = "organization"
	ScopeUser         RoleScope = "user"
)

// Built-in organization role names, highest privilege first.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
	RoleGuest  = "guest"
)

// GlobalRoleAdmin is the system-wide operator role. It is independent of
// any organization and gates the administrative override subsystem.
const GlobalRoleAdmin = "admin"

// Built-in role levels. Level ordering is monotonic with privilege by
// convention; nothing enforces that a higher level's permission set is a
// superset of a lower one's.
const (
	LevelGuest  = 0
	LevelViewer = 1
	LevelMember = 2
	LevelAdmin  = 3
)

// Role is a named, leveled bundle of permissions. A Role is immutable
// once loaded for the duration of a request; role editing is a CRUD
// concern outside this package.
type Role struct {
	Name        string       `json:"name"`
	Scope       RoleScope    `json:"scope"`
	Level       int          `json:"level"`
	Permissions []Permission `json:"permissions"`
}

// Access scope values used by the built-in roles.
const (
	AccessOwn = "own"
	AccessOrg = "org"
	AccessAny = "any"
)

// BuiltInRoles returns the built-in organization role definitions.
func BuiltInRoles() []Role {
	return []Role{
		{
			Name:  RoleAdmin,
			Scope: ScopeOrganization,
			Level: LevelAdmin,
			Permissions: []Permission{
				{Action: "create", Entity: "pass", Access: []string{AccessOrg}},
				{Action: "read", Entity: "pass", Access: []string{AccessOwn, AccessOrg}},
				{Action: "update", Entity: "pass", Access: []string{AccessOwn, AccessOrg}},
				{Action: "delete", Entity: "pass", Access: []string{AccessOwn, AccessOrg}},
				{Action: "create", Entity: "template", Access: []string{AccessOrg}},
				{Action: "read", Entity: "template", Access: []string{AccessOrg}},
				{Action: "update", Entity: "template", Access: []string{AccessOrg}},
				{Action: "delete", Entity: "template", Access: []string{AccessOrg}},
				{Action: "invite", Entity: "member", Access: []string{AccessOrg}},
				{Action: "read", Entity: "member", Access: []string{AccessOrg}},
				{Action: "update", Entity: "member", Access: []string{AccessAny}},
				{Action: "delete", Entity: "member", Access: []string{AccessAny}},
				{Action: "read", Entity: "settings", Access: []string{AccessOrg}},
				{Action: "update", Entity: "settings", Access: []string{AccessOrg}},
			},
		},
		{
			Name:  RoleMember,
			Scope: ScopeOrganization,
			Level: LevelMember,
			Permissions: []Permission{
				{Action: "create", Entity: "pass", Access: []string{AccessOwn}},
				{Action: "read", Entity: "pass", Access: []string{AccessOwn, AccessOrg}},
				{Action: "update", Entity: "pass", Access: []string{AccessOwn}},
				{Action: "delete", Entity: "pass", Access: []string{AccessOwn}},
				{Action: "read", Entity: "template", Access: []string{AccessOrg}},
				{Action: "read", Entity: "member", Access: []string{AccessOrg}},
				{Action: "read", Entity: "settings", Access: []string{AccessOrg}},
			},
		},
		{
			Name:  RoleViewer,
			Scope: ScopeOrganization,
			Level: LevelViewer,
			Permissions: []Permission{
				{Action: "read", Entity: "pass", Access: []string{AccessOrg}},
				{Action: "read", Entity: "template", Access: []string{AccessOrg}},
				{Action: "read", Entity: "member", Access: []string{AccessOrg}},
			},
		},
		{
			Name:        RoleGuest,
			Scope:       ScopeOrganization,
			Level:       LevelGuest,
			Permissions: []Permission{},
		},
	}
}

// RoleByName returns the built-in role with the given name, or nil.
func RoleByName(name string) *Role {
	for _, r := range BuiltInRoles() {
		if r.Name == name {
			role := r
			return &role
		}
	}
	return nil
}
