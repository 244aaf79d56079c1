package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Logger writes audit records. Implementations must treat the log as
// append-only.
type Logger interface {
	Log(ctx context.Context, record *Record) error
}

// DBLogger writes audit records to the audit_logs table.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// Log inserts the record and fills in its ID and CreatedAt. Callers that
// must not proceed unrecorded check this error before acting.
func (l *DBLogger) Log(ctx context.Context, record *Record) error {
	if record.Action == "" {
		return fmt.Errorf("audit record requires an action")
	}
	if record.Metadata == "" {
		record.Metadata = "{}"
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_logs (action, user_id, organization_id, target_user_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := l.db.QueryRowContext(ctx, query,
		record.Action, record.UserID, record.OrganizationID,
		record.TargetUserID, record.Metadata, record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// LogTx inserts the record inside an existing transaction so the audit
// write commits or rolls back with the action it describes.
func (l *DBLogger) LogTx(ctx context.Context, tx *sql.Tx, record *Record) error {
	if record.Action == "" {
		return fmt.Errorf("audit record requires an action")
	}
	if record.Metadata == "" {
		record.Metadata = "{}"
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_logs (action, user_id, organization_id, target_user_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := tx.QueryRowContext(ctx, query,
		record.Action, record.UserID, record.OrganizationID,
		record.TargetUserID, record.Metadata, record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}
