package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doorpasses/platform/pkg/audit"
	"github.com/doorpasses/platform/pkg/auth"
	"github.com/doorpasses/platform/pkg/observability"
	"github.com/doorpasses/platform/pkg/orgs"
)

// AdminOrgSlug names the hidden organization that anchors audit records
// for system-wide admin actions.
const AdminOrgSlug = "admin-system"

const adminOrgName = "Admin System"

// Sentinel errors for override operations.
var (
	ErrNotGlobalAdmin     = errors.New("global admin role required")
	ErrTargetBanned       = errors.New("cannot impersonate banned user")
	ErrSelfImpersonation  = errors.New("cannot impersonate yourself")
	ErrAlreadyBanned      = errors.New("user is already banned")
	ErrNotBanned          = errors.New("user is not banned")
	ErrNotImpersonating   = errors.New("session is not impersonating")
	ErrBanReasonRequired  = errors.New("ban reason is required")
	ErrBanExpiryInPast    = errors.New("ban expiry must be in the future")
	ErrTargetDeactivated  = errors.New("cannot impersonate deactivated user")
)

// Service carries out admin overrides against the primary database and
// the configured session store.
type Service struct {
	db       *sql.DB
	users    auth.UserStore
	sessions auth.Store
	orgs     orgs.Service
	auditor  *audit.DBLogger
	banCache *auth.BanCache
	logger   *observability.Logger
	metrics  *observability.Metrics

	sessionTTL time.Duration
}

// NewService wires the override service. banCache and metrics may be nil.
func NewService(db *sql.DB, users auth.UserStore, sessions auth.Store, orgService orgs.Service,
	auditor *audit.DBLogger, banCache *auth.BanCache, logger *observability.Logger,
	metrics *observability.Metrics, sessionTTL time.Duration) *Service {
	return &Service{
		db:         db,
		users:      users,
		sessions:   sessions,
		orgs:       orgService,
		auditor:    auditor,
		banCache:   banCache,
		logger:     logger,
		metrics:    metrics,
		sessionTTL: sessionTTL,
	}
}

// BanRequest is the payload for banning a user.
type BanRequest struct {
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Ban suspends a user. The ban flags, the audit record, and (when the
// session backend supports it) the deletion of the target's sessions
// commit in one transaction, so a banned user is never left with a
// half-applied ban and live sessions.
func (s *Service) Ban(ctx context.Context, adminID, targetID int64, req BanRequest, now time.Time) error {
	if req.Reason == "" {
		return ErrBanReasonRequired
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return ErrBanExpiryInPast
	}

	admin, err := s.requireGlobalAdmin(ctx, adminID)
	if err != nil {
		return err
	}

	target, err := s.users.GetUser(ctx, targetID)
	if err != nil {
		return err
	}
	if target.BanActive(now) {
		return ErrAlreadyBanned
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE users
		SET is_banned = TRUE, ban_reason = $1, ban_expires_at = $2,
		    banned_at = $3, banned_by_id = $4, updated_at = $3
		WHERE id = $5`,
		req.Reason, req.ExpiresAt, now, adminID, targetID); err != nil {
		return fmt.Errorf("failed to apply ban: %w", err)
	}

	var deletedSessions int64
	txDeleter, txCapable := s.sessions.(auth.TxDeleter)
	if txCapable {
		deletedSessions, err = txDeleter.DeleteUserSessionsTx(ctx, tx, targetID)
		if err != nil {
			return err
		}
	}

	metadata := map[string]interface{}{"reason": req.Reason}
	if req.ExpiresAt != nil {
		metadata["expires_at"] = req.ExpiresAt.Format(time.RFC3339)
	}
	record, err := audit.NewRecord(audit.ActionUserBan, &adminID, nil, &targetID, metadata)
	if err != nil {
		return err
	}
	record.CreatedAt = now
	if err := s.auditor.LogTx(ctx, tx, record); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ban: %w", err)
	}

	if !txCapable {
		// Redis sessions live outside the transaction; delete them after
		// the ban is durable.
		deletedSessions, err = s.sessions.DeleteUserSessions(ctx, targetID)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", targetID).
				Error("Ban committed but session invalidation failed")
			return fmt.Errorf("ban applied but failed to invalidate sessions: %w", err)
		}
	}

	if s.banCache != nil {
		s.banCache.Invalidate(targetID)
	}
	if s.metrics != nil {
		s.metrics.BansTotal.WithLabelValues("ban").Inc()
	}
	s.logger.WithFields(map[string]interface{}{
		"admin":            admin.Username,
		"target_user_id":   targetID,
		"deleted_sessions": deletedSessions,
	}).Info("User banned")
	return nil
}

// LiftBan clears a user's ban.
func (s *Service) LiftBan(ctx context.Context, adminID, targetID int64, now time.Time) error {
	admin, err := s.requireGlobalAdmin(ctx, adminID)
	if err != nil {
		return err
	}

	target, err := s.users.GetUser(ctx, targetID)
	if err != nil {
		return err
	}
	if !target.IsBanned {
		return ErrNotBanned
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE users
		SET is_banned = FALSE, ban_reason = NULL, ban_expires_at = NULL,
		    banned_at = NULL, banned_by_id = NULL, updated_at = $1
		WHERE id = $2`, now, targetID); err != nil {
		return fmt.Errorf("failed to lift ban: %w", err)
	}

	record, err := audit.NewRecord(audit.ActionUserUnban, &adminID, nil, &targetID,
		map[string]interface{}{"previous_reason": target.BanReason})
	if err != nil {
		return err
	}
	record.CreatedAt = now
	if err := s.auditor.LogTx(ctx, tx, record); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit unban: %w", err)
	}

	if s.banCache != nil {
		s.banCache.Invalidate(targetID)
	}
	if s.metrics != nil {
		s.metrics.BansTotal.WithLabelValues("unban").Inc()
	}
	s.logger.WithFields(map[string]interface{}{
		"admin":          admin.Username,
		"target_user_id": targetID,
	}).Info("Ban lifted")
	return nil
}

// StartImpersonation creates a session acting as the target user, with
// the admin recorded in the session state. The start is audited before
// the session exists; if the audit write fails the impersonation never
// happens.
func (s *Service) StartImpersonation(ctx context.Context, adminID, targetID int64, now time.Time) (*auth.Session, error) {
	admin, err := s.requireGlobalAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if adminID == targetID {
		return nil, ErrSelfImpersonation
	}

	target, err := s.users.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.BanActive(now) {
		return nil, ErrTargetBanned
	}
	if !target.IsActive {
		return nil, ErrTargetDeactivated
	}

	adminOrg, err := s.orgs.EnsureOrganization(ctx, AdminOrgSlug, adminOrgName, true)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve admin organization: %w", err)
	}

	record, err := audit.NewRecord(audit.ActionImpersonationStart,
		&adminID, &adminOrg.ID, &targetID,
		map[string]interface{}{
			"admin_username":  admin.Username,
			"target_username": target.Username,
		})
	if err != nil {
		return nil, err
	}
	record.CreatedAt = now
	if err := s.auditor.Log(ctx, record); err != nil {
		return nil, err
	}

	session := auth.NewSession(target.ID, s.sessionTTL, now)
	session.State = auth.Impersonating{
		AdminID:    admin.ID,
		AdminName:  admin.Username,
		TargetID:   target.ID,
		TargetName: target.Username,
		StartedAt:  now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ImpersonationsTotal.WithLabelValues("start").Inc()
	}
	s.logger.WithFields(map[string]interface{}{
		"admin":  admin.Username,
		"target": target.Username,
	}).Info("Impersonation started")
	return session, nil
}

// StopImpersonation ends an impersonation session and returns a fresh
// session for the admin behind it. The end is audited with the elapsed
// duration.
func (s *Service) StopImpersonation(ctx context.Context, session *auth.Session, now time.Time) (*auth.Session, error) {
	imp, ok := session.Impersonation()
	if !ok {
		return nil, ErrNotImpersonating
	}

	admin, err := s.users.GetUser(ctx, imp.AdminID)
	if err != nil {
		return nil, err
	}

	adminOrg, err := s.orgs.EnsureOrganization(ctx, AdminOrgSlug, adminOrgName, true)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve admin organization: %w", err)
	}

	record, err := audit.NewRecord(audit.ActionImpersonationEnd,
		&imp.AdminID, &adminOrg.ID, &imp.TargetID,
		map[string]interface{}{
			"admin_username":   imp.AdminName,
			"target_username":  imp.TargetName,
			"duration_seconds": int64(now.Sub(imp.StartedAt).Seconds()),
		})
	if err != nil {
		return nil, err
	}
	record.CreatedAt = now
	if err := s.auditor.Log(ctx, record); err != nil {
		return nil, err
	}

	if err := s.sessions.DeleteSession(ctx, session.ID); err != nil {
		return nil, err
	}

	adminSession := auth.NewSession(admin.ID, s.sessionTTL, now)
	if err := s.sessions.CreateSession(ctx, adminSession); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ImpersonationsTotal.WithLabelValues("end").Inc()
	}
	s.logger.WithFields(map[string]interface{}{
		"admin":  imp.AdminName,
		"target": imp.TargetName,
	}).Info("Impersonation ended")
	return adminSession, nil
}

func (s *Service) requireGlobalAdmin(ctx context.Context, userID int64) (*auth.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin {
		return nil, ErrNotGlobalAdmin
	}
	return user, nil
}
