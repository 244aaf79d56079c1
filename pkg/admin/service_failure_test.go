package admin

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doorpasses/platform/pkg/audit"
	"github.com/doorpasses/platform/pkg/auth"
	"github.com/doorpasses/platform/pkg/observability"
)

// fixedUserStore serves canned users so sqlmock only has to model the
// transaction itself.
type fixedUserStore struct {
	users map[int64]*auth.User
}

func (s *fixedUserStore) GetUser(ctx context.Context, id int64) (*auth.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, auth.ErrUserNotFound
}

func (s *fixedUserStore) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func TestBanRollsBackWhenSessionDeleteFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	users := &fixedUserStore{users: map[int64]*auth.User{
		1: {ID: 1, Username: "root", IsAdmin: true, IsActive: true},
		2: {ID: 2, Username: "victim", IsActive: true},
	}}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM sessions`).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	auditor, err := audit.NewDBLogger(db)
	require.NoError(t, err)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	service := NewService(db, users, auth.NewPostgresStore(db), nil, auditor,
		nil, logger, nil, time.Hour)

	err = service.Ban(context.Background(), 1, 2, BanRequest{Reason: "spam"}, time.Now().UTC())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBanRollsBackWhenAuditWriteFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	users := &fixedUserStore{users: map[int64]*auth.User{
		1: {ID: 1, Username: "root", IsAdmin: true, IsActive: true},
		2: {ID: 2, Username: "victim", IsActive: true},
	}}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM sessions`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO audit_logs`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	auditor, err := audit.NewDBLogger(db)
	require.NoError(t, err)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	service := NewService(db, users, auth.NewPostgresStore(db), nil, auditor,
		nil, logger, nil, time.Hour)

	err = service.Ban(context.Background(), 1, 2, BanRequest{Reason: "spam"}, time.Now().UTC())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write audit record")
	assert.NoError(t, mock.ExpectationsWereMet())
}
