package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Store is the session store. Postgres is the authoritative backend;
// RedisStore is an optional drop-in selected by configuration.
type Store interface {
	// CreateSession persists a new session.
	CreateSession(ctx context.Context, s *Session) error

	// GetSession returns the session, or ErrSessionNotFound when absent
	// or expired.
	GetSession(ctx context.Context, id string) (*Session, error)

	// DeleteSession removes a single session. Deleting a missing session
	// is not an error.
	DeleteSession(ctx context.Context, id string) error

	// DeleteUserSessions removes every session belonging to the user and
	// returns the number removed.
	DeleteUserSessions(ctx context.Context, userID int64) (int64, error)

	// DeleteExpiredSessions removes sessions past their expiry.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// TxDeleter is implemented by stores that can invalidate a user's
// sessions inside a database transaction. The Redis store cannot; its
// callers fall back to a post-commit delete.
type TxDeleter interface {
	DeleteUserSessionsTx(ctx context.Context, tx *sql.Tx, userID int64) (int64, error)
}

// PostgresStore implements Store on the sessions table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateSession persists a new session.
func (s *PostgresStore) CreateSession(ctx context.Context, session *Session) error {
	impJSON, err := impersonationJSON(session)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (id, user_id, impersonation, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.db.ExecContext(ctx, query,
		session.ID, session.UserID, impJSON, session.ExpiresAt, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession returns the session, or ErrSessionNotFound when absent or
// expired.
func (s *PostgresStore) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `
		SELECT id, user_id, impersonation, expires_at, created_at
		FROM sessions
		WHERE id = $1
	`
	session := &Session{}
	var impJSON sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID, &session.UserID, &impJSON, &session.ExpiresAt, &session.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.Expired(time.Now()) {
		return nil, ErrSessionNotFound
	}

	session.State = Normal{}
	if impJSON.Valid && impJSON.String != "" {
		var imp Impersonating
		if err := json.Unmarshal([]byte(impJSON.String), &imp); err != nil {
			return nil, fmt.Errorf("failed to decode impersonation state: %w", err)
		}
		session.State = imp
	}
	return session, nil
}

// DeleteSession removes a single session.
func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteUserSessions removes every session belonging to the user.
func (s *PostgresStore) DeleteUserSessions(ctx context.Context, userID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return result.RowsAffected()
}

// DeleteUserSessionsTx removes a user's sessions inside an existing
// transaction, so callers can make session invalidation atomic with the
// write that requires it.
func (s *PostgresStore) DeleteUserSessionsTx(ctx context.Context, tx *sql.Tx, userID int64) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return result.RowsAffected()
}

// DeleteExpiredSessions removes sessions past their expiry.
func (s *PostgresStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

func impersonationJSON(session *Session) (interface{}, error) {
	imp, ok := session.Impersonation()
	if !ok {
		return nil, nil
	}
	data, err := json.Marshal(imp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode impersonation state: %w", err)
	}
	return string(data), nil
}
