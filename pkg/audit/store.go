package audit

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const defaultSearchLimit = 100

// Store reads the audit log.
type Store interface {
	Search(ctx context.Context, filter SearchFilter) ([]*Record, error)
	Get(ctx context.Context, id int64) (*Record, error)
	Export(ctx context.Context, filter SearchFilter, format ExportFormat) ([]byte, error)
	Cleanup(ctx context.Context, policy RetentionPolicy, now time.Time) (int64, error)
}

// DBStore implements Store on the audit_logs table.
type DBStore struct {
	db *sql.DB
}

// NewDBStore creates a database-backed audit store.
func NewDBStore(db *sql.DB) *DBStore {
	return &DBStore{db: db}
}

// Search returns records matching the filter, newest first.
func (s *DBStore) Search(ctx context.Context, filter SearchFilter) ([]*Record, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	addCondition := func(clause string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(clause, argPos))
		args = append(args, value)
		argPos++
	}

	if filter.Action != "" {
		addCondition("action = $%d", filter.Action)
	}
	if filter.UserID != nil {
		addCondition("user_id = $%d", *filter.UserID)
	}
	if filter.OrganizationID != nil {
		addCondition("organization_id = $%d", *filter.OrganizationID)
	}
	if filter.TargetUserID != nil {
		addCondition("target_user_id = $%d", *filter.TargetUserID)
	}
	if filter.Since != nil {
		addCondition("created_at >= $%d", *filter.Since)
	}
	if filter.Until != nil {
		addCondition("created_at < $%d", *filter.Until)
	}

	query := `SELECT id, action, user_id, organization_id, target_user_id, metadata, created_at FROM audit_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	query += fmt.Sprintf(" LIMIT $%d", argPos)
	args = append(args, limit)
	argPos++
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit log: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Get returns a single record by ID.
func (s *DBStore) Get(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, action, user_id, organization_id, target_user_id, metadata, created_at
		FROM audit_logs WHERE id = $1`, id)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("audit record %d not found", id)
	}
	return record, err
}

// Export serializes records matching the filter in the given format.
func (s *DBStore) Export(ctx context.Context, filter SearchFilter, format ExportFormat) ([]byte, error) {
	records, err := s.Search(ctx, filter)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON:
		return json.MarshalIndent(records, "", "  ")
	case FormatNDJSON:
		return exportNDJSON(records)
	case FormatCSV:
		return exportCSV(records)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// Cleanup removes records older than the retention policy allows. A zero
// MaxAge keeps everything.
func (s *DBStore) Cleanup(ctx context.Context, policy RetentionPolicy, now time.Time) (int64, error) {
	if policy.MaxAge <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-policy.MaxAge)
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up audit log: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	record := &Record{}
	var userID, orgID, targetID sql.NullInt64
	err := row.Scan(&record.ID, &record.Action, &userID, &orgID, &targetID,
		&record.Metadata, &record.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit record: %w", err)
	}
	if userID.Valid {
		v := userID.Int64
		record.UserID = &v
	}
	if orgID.Valid {
		v := orgID.Int64
		record.OrganizationID = &v
	}
	if targetID.Valid {
		v := targetID.Int64
		record.TargetUserID = &v
	}
	return record, nil
}

func exportNDJSON(records []*Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return nil, fmt.Errorf("failed to encode audit record: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func exportCSV(records []*Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "action", "user_id", "organization_id", "target_user_id", "metadata", "created_at"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, record := range records {
		row := []string{
			strconv.FormatInt(record.ID, 10),
			record.Action,
			formatInt64Ptr(record.UserID),
			formatInt64Ptr(record.OrganizationID),
			formatInt64Ptr(record.TargetUserID),
			record.Metadata,
			record.CreatedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatInt64Ptr(val *int64) string {
	if val == nil {
		return ""
	}
	return strconv.FormatInt(*val, 10)
}
