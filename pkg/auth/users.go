package auth

import (
	"context"
	"database/sql"
	"fmt"
)

// UserStore reads user identity and ban state.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// PostgresUserStore implements UserStore on the users table.
type PostgresUserStore struct {
	db *sql.DB
}

// NewPostgresUserStore creates a Postgres-backed user store.
func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

const userColumns = `id, username, email, full_name, is_admin, is_active,
	is_banned, ban_reason, ban_expires_at, banned_at, banned_by_id,
	created_at, updated_at`

// GetUser returns the user, or ErrUserNotFound.
func (s *PostgresUserStore) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByUsername returns the user, or ErrUserNotFound.
func (s *PostgresUserStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	u := &User{}
	var email, fullName, banReason sql.NullString
	var banExpiresAt, bannedAt sql.NullTime
	var bannedByID sql.NullInt64

	err := row.Scan(
		&u.ID, &u.Username, &email, &fullName, &u.IsAdmin, &u.IsActive,
		&u.IsBanned, &banReason, &banExpiresAt, &bannedAt, &bannedByID,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if email.Valid {
		u.Email = email.String
	}
	if fullName.Valid {
		u.FullName = fullName.String
	}
	if banReason.Valid {
		u.BanReason = banReason.String
	}
	if banExpiresAt.Valid {
		t := banExpiresAt.Time
		u.BanExpiresAt = &t
	}
	if bannedAt.Valid {
		t := bannedAt.Time
		u.BannedAt = &t
	}
	if bannedByID.Valid {
		id := bannedByID.Int64
		u.BannedByID = &id
	}
	return u, nil
}
