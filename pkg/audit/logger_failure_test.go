package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Failure paths are driven through sqlmock so we can make the database
// misbehave on demand.

func TestLogSurfacesInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO audit_logs`).
		WillReturnError(errors.New("connection reset"))

	logger, err := NewDBLogger(db)
	require.NoError(t, err)

	record, err := NewRecord(ActionUserBan, nil, nil, nil, nil)
	require.NoError(t, err)

	err = logger.Log(context.Background(), record)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write audit record")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogTxFailureLeavesTxUsable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO audit_logs`).
		WillReturnError(errors.New("serialization failure"))
	mock.ExpectRollback()

	logger, err := NewDBLogger(db)
	require.NoError(t, err)

	tx, err := db.Begin()
	require.NoError(t, err)

	record, err := NewRecord(ActionImpersonationStart, nil, nil, nil, nil)
	require.NoError(t, err)

	err = logger.LogTx(context.Background(), tx, record)
	require.Error(t, err)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchSurfacesQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM audit_logs`).
		WillReturnError(errors.New("relation does not exist"))

	store := NewDBStore(db)
	_, err = store.Search(context.Background(), SearchFilter{Action: ActionUserBan})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupSurfacesDeleteFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM audit_logs`).
		WillReturnError(errors.New("lock timeout"))

	store := NewDBStore(db)
	_, err = store.Cleanup(context.Background(),
		RetentionPolicy{MaxAge: 90 * 24 * time.Hour}, time.Now().UTC())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
