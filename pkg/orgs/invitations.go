package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateInvitation creates an invitation, generating its token. Inviting
// an email that already has a pending invitation re-issues it with a
// fresh token and expiry.
func (s *PostgresService) CreateInvitation(ctx context.Context, inv *Invitation) error {
	token, err := generateToken()
	if err != nil {
		return err
	}
	inv.Token = token

	if inv.InvitedAt.IsZero() {
		inv.InvitedAt = time.Now().UTC()
	}
	if inv.ExpiresAt.IsZero() {
		inv.ExpiresAt = inv.InvitedAt.Add(7 * 24 * time.Hour)
	}

	query := `
		INSERT INTO org_invitations (org_id, email, role, token, invited_by, invited_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (org_id, email) DO UPDATE
		SET role = EXCLUDED.role, token = EXCLUDED.token,
		    invited_at = EXCLUDED.invited_at, expires_at = EXCLUDED.expires_at
		RETURNING id
	`
	err = s.db.QueryRowContext(ctx, query, inv.OrgID, inv.Email, inv.Role,
		inv.Token, inv.InvitedBy, inv.InvitedAt, inv.ExpiresAt).Scan(&inv.ID)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

// GetInvitation retrieves an invitation by token.
func (s *PostgresService) GetInvitation(ctx context.Context, token string) (*Invitation, error) {
	query := `
		SELECT id, org_id, email, role, token, invited_by, invited_at, expires_at, accepted_at, accepted_by
		FROM org_invitations
		WHERE token = $1
	`
	inv := &Invitation{}
	var acceptedAt sql.NullTime
	var acceptedBy sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&inv.ID, &inv.OrgID, &inv.Email, &inv.Role, &inv.Token,
		&inv.InvitedBy, &inv.InvitedAt, &inv.ExpiresAt, &acceptedAt, &acceptedBy)
	if err == sql.ErrNoRows {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	if acceptedAt.Valid {
		t := acceptedAt.Time
		inv.AcceptedAt = &t
	}
	if acceptedBy.Valid {
		id := acceptedBy.Int64
		inv.AcceptedBy = &id
	}
	return inv, nil
}

// AcceptInvitation marks the invitation accepted and adds the user as a
// member with the invited role, in one transaction.
func (s *PostgresService) AcceptInvitation(ctx context.Context, token string, userID int64, now time.Time) error {
	inv, err := s.GetInvitation(ctx, token)
	if err != nil {
		return err
	}
	if inv.AcceptedAt != nil {
		return ErrInvitationAccepted
	}
	if !inv.ExpiresAt.After(now) {
		return ErrInvitationExpired
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE org_invitations SET accepted_at = $1, accepted_by = $2
		 WHERE id = $3 AND accepted_at IS NULL`,
		now, userID, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to accept invitation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		// A concurrent acceptor got there first.
		return ErrInvitationAccepted
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO organization_members (organization_id, user_id, role, active, is_default, invited_by, joined_at, created_at)
		 VALUES ($1, $2, $3, TRUE, FALSE, $4, $5, $6)
		 ON CONFLICT (organization_id, user_id) DO NOTHING`,
		inv.OrgID, userID, inv.Role, inv.InvitedBy, now, now); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	return tx.Commit()
}

// RevokeInvitation removes a pending invitation.
func (s *PostgresService) RevokeInvitation(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM org_invitations WHERE id = $1 AND accepted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke invitation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrInvitationNotFound
	}
	return nil
}

// CleanupExpiredInvitations removes unaccepted invitations past expiry.
func (s *PostgresService) CleanupExpiredInvitations(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM org_invitations WHERE expires_at <= $1 AND accepted_at IS NULL`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup invitations: %w", err)
	}
	return result.RowsAffected()
}
