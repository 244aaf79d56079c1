package orgs

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupOrgWithMember(t *testing.T, db *sql.DB, service *PostgresService, role string) (int64, int64) {
	ctx := context.Background()
	org := &Organization{Name: "Acme Corp"}
	require.NoError(t, service.CreateOrganization(ctx, org))
	userID := insertTestUser(t, db, "alice")
	require.NoError(t, service.AddMember(ctx, org.ID, userID, role, nil))
	return org.ID, userID
}

func TestResolveMembership(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	ctx := context.Background()
	orgID, userID := setupOrgWithMember(t, db, service, "admin")

	t.Run("active member resolves", func(t *testing.T) {
		m, err := service.ResolveMembership(ctx, orgID, userID)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "admin", m.Role)
		assert.True(t, m.Active)
	})

	t.Run("non-member resolves to nil", func(t *testing.T) {
		strangerID := insertTestUser(t, db, "stranger")
		m, err := service.ResolveMembership(ctx, orgID, strangerID)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("deactivated member resolves to nil", func(t *testing.T) {
		require.NoError(t, service.DeactivateMember(ctx, orgID, userID))
		m, err := service.ResolveMembership(ctx, orgID, userID)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("reactivated member resolves with role intact", func(t *testing.T) {
		require.NoError(t, service.ReactivateMember(ctx, orgID, userID))
		m, err := service.ResolveMembership(ctx, orgID, userID)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "admin", m.Role)
	})
}

func TestAddMember(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	ctx := context.Background()
	orgID, userID := setupOrgWithMember(t, db, service, "member")

	err := service.AddMember(ctx, orgID, userID, "viewer", nil)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	// The original role is untouched.
	m, err := service.ResolveMembership(ctx, orgID, userID)
	require.NoError(t, err)
	assert.Equal(t, "member", m.Role)
}

func TestUpdateMemberRole(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	ctx := context.Background()
	orgID, userID := setupOrgWithMember(t, db, service, "viewer")

	require.NoError(t, service.UpdateMemberRole(ctx, orgID, userID, "admin"))
	m, err := service.ResolveMembership(ctx, orgID, userID)
	require.NoError(t, err)
	assert.Equal(t, "admin", m.Role)

	err = service.UpdateMemberRole(ctx, orgID, 9999, "admin")
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestSetDefaultMembership(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	ctx := context.Background()

	userID := insertTestUser(t, db, "alice")
	first := &Organization{Name: "First"}
	second := &Organization{Name: "Second"}
	require.NoError(t, service.CreateOrganization(ctx, first))
	require.NoError(t, service.CreateOrganization(ctx, second))
	require.NoError(t, service.AddMember(ctx, first.ID, userID, "member", nil))
	require.NoError(t, service.AddMember(ctx, second.ID, userID, "member", nil))

	require.NoError(t, service.SetDefaultMembership(ctx, first.ID, userID))
	m, err := service.DefaultMembership(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, first.ID, m.OrganizationID)

	// Moving the default clears the old one.
	require.NoError(t, service.SetDefaultMembership(ctx, second.ID, userID))
	m, err = service.DefaultMembership(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, second.ID, m.OrganizationID)

	var defaults int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM organization_members WHERE user_id = $1 AND is_default`,
		userID).Scan(&defaults))
	assert.Equal(t, 1, defaults)
}

func TestDeactivateMemberClearsDefault(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	ctx := context.Background()
	orgID, userID := setupOrgWithMember(t, db, service, "member")

	require.NoError(t, service.SetDefaultMembership(ctx, orgID, userID))
	require.NoError(t, service.DeactivateMember(ctx, orgID, userID))

	m, err := service.DefaultMembership(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestListMembers(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	ctx := context.Background()
	orgID, aliceID := setupOrgWithMember(t, db, service, "admin")

	bobID := insertTestUser(t, db, "bob")
	require.NoError(t, service.AddMember(ctx, orgID, bobID, "viewer", &aliceID))
	require.NoError(t, service.DeactivateMember(ctx, orgID, bobID))

	members, err := service.ListMembers(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	assert.Equal(t, "alice", members[0].Username)
	assert.True(t, members[0].Active)
	assert.Equal(t, "bob", members[1].Username)
	assert.False(t, members[1].Active)
	require.NotNil(t, members[1].InvitedBy)
	assert.Equal(t, aliceID, *members[1].InvitedBy)
}
