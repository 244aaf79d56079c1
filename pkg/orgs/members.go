package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const membershipColumns = `id, organization_id, user_id, role, active, is_default,
	invited_by, joined_at, created_at`

// ResolveMembership returns the user's active membership in the
// organization. Missing and deactivated memberships both resolve to nil
// so callers see one "no access" shape.
func (s *PostgresService) ResolveMembership(ctx context.Context, orgID, userID int64) (*Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM organization_members
		WHERE organization_id = $1 AND user_id = $2 AND active
	`
	m, err := scanMembership(s.db.QueryRowContext(ctx, query, orgID, userID))
	if err == ErrMemberNotFound {
		return nil, nil
	}
	return m, err
}

// DefaultMembership returns the user's default active membership, or nil
// when none is marked default.
func (s *PostgresService) DefaultMembership(ctx context.Context, userID int64) (*Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM organization_members
		WHERE user_id = $1 AND is_default AND active
	`
	m, err := scanMembership(s.db.QueryRowContext(ctx, query, userID))
	if err == ErrMemberNotFound {
		return nil, nil
	}
	return m, err
}

// ListMembers retrieves all members of an organization, active and
// deactivated, joined with user details.
func (s *PostgresService) ListMembers(ctx context.Context, orgID int64) ([]*Member, error) {
	query := `
		SELECT om.id, om.organization_id, om.user_id, om.role, om.active, om.is_default,
		       om.invited_by, om.joined_at, om.created_at,
		       u.username, u.email, u.full_name
		FROM organization_members om
		JOIN users u ON u.id = om.user_id
		WHERE om.organization_id = $1
		ORDER BY om.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		member := &Member{}
		var invitedBy sql.NullInt64
		var email, fullName sql.NullString
		if err := rows.Scan(
			&member.ID, &member.OrganizationID, &member.UserID, &member.Role,
			&member.Active, &member.IsDefault, &invitedBy,
			&member.JoinedAt, &member.CreatedAt,
			&member.Username, &email, &fullName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if invitedBy.Valid {
			id := invitedBy.Int64
			member.InvitedBy = &id
		}
		if email.Valid {
			member.Email = email.String
		}
		if fullName.Valid {
			member.FullName = fullName.String
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// AddMember adds a user to an organization with the given role.
func (s *PostgresService) AddMember(ctx context.Context, orgID, userID int64, role string, invitedBy *int64) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO organization_members (organization_id, user_id, role, active, is_default, invited_by, joined_at, created_at)
		VALUES ($1, $2, $3, TRUE, FALSE, $4, $5, $6)
		ON CONFLICT (organization_id, user_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query, orgID, userID, role, invitedBy, now, now)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrAlreadyMember
	}
	return nil
}

// UpdateMemberRole changes a member's role.
func (s *PostgresService) UpdateMemberRole(ctx context.Context, orgID, userID int64, role string) error {
	return s.updateMembership(ctx,
		`UPDATE organization_members SET role = $1 WHERE organization_id = $2 AND user_id = $3`,
		role, orgID, userID)
}

// DeactivateMember suspends a membership. The row survives so the member
// can be reactivated with their role intact, but resolution returns nil
// while suspended. A suspended member also stops being anyone's default.
func (s *PostgresService) DeactivateMember(ctx context.Context, orgID, userID int64) error {
	return s.updateMembership(ctx,
		`UPDATE organization_members SET active = FALSE, is_default = FALSE
		 WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID)
}

// ReactivateMember restores a suspended membership.
func (s *PostgresService) ReactivateMember(ctx context.Context, orgID, userID int64) error {
	return s.updateMembership(ctx,
		`UPDATE organization_members SET active = TRUE
		 WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID)
}

// SetDefaultMembership marks one membership as the user's default. The
// clear and set run in one transaction so the single-default invariant
// holds even against the partial unique index racing a second caller.
func (s *PostgresService) SetDefaultMembership(ctx context.Context, orgID, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE organization_members SET is_default = FALSE WHERE user_id = $1 AND is_default`,
		userID); err != nil {
		return fmt.Errorf("failed to clear default membership: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE organization_members SET is_default = TRUE
		 WHERE organization_id = $1 AND user_id = $2 AND active`,
		orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to set default membership: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrMemberNotFound
	}

	return tx.Commit()
}

func (s *PostgresService) updateMembership(ctx context.Context, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func scanMembership(row *sql.Row) (*Membership, error) {
	m := &Membership{}
	var invitedBy sql.NullInt64
	err := row.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role,
		&m.Active, &m.IsDefault, &invitedBy, &m.JoinedAt, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan membership: %w", err)
	}
	if invitedBy.Valid {
		id := invitedBy.Int64
		m.InvitedBy = &id
	}
	return m, nil
}
