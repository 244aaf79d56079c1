package authz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRole(t *testing.T) {
	set := SnapshotRole(RoleByName(RoleViewer))

	assert.Equal(t, RoleViewer, set.RoleName)
	assert.Equal(t, LevelViewer, set.RoleLevel)
	assert.True(t, set.Has("read:pass:org"))
	assert.False(t, set.Has("update:pass:own"))
	assert.True(t, set.HasRole(RoleViewer))
	assert.True(t, set.HasAll(nil))
	assert.False(t, set.HasAny(nil))
}

func TestSnapshotRoleNil(t *testing.T) {
	set := SnapshotRole(nil)
	assert.False(t, set.Has("read:pass"))
	assert.False(t, set.HasRole(RoleGuest))
}

// The snapshot is hydrated into loader payloads as JSON; a decoded copy
// must evaluate identically to the original.
func TestSnapshotSurvivesJSON(t *testing.T) {
	set := SnapshotRole(RoleByName(RoleAdmin))

	data, err := json.Marshal(set)
	require.NoError(t, err)

	var decoded PermissionSet
	require.NoError(t, json.Unmarshal(data, &decoded))

	for _, p := range []string{"update:member:any", "read:pass", "delete:template:org"} {
		assert.Equal(t, set.Has(p), decoded.Has(p), p)
	}
	assert.Equal(t, set.RoleLevel, decoded.RoleLevel)
}

// Mutating a snapshot must not leak back into the built-in role tables.
func TestSnapshotCopiesPermissions(t *testing.T) {
	set := SnapshotRole(RoleByName(RoleViewer))
	require.NotEmpty(t, set.Permissions)
	set.Permissions[0].Action = "delete"

	fresh := RoleByName(RoleViewer)
	assert.Equal(t, "read", fresh.Permissions[0].Action)
}
