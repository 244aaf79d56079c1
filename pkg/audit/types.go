package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// Audit action names. These are stable identifiers: renaming one orphans
// every historical record carrying it.
const (
	ActionImpersonationStart = "ADMIN_IMPERSONATION_START"
	ActionImpersonationEnd   = "ADMIN_IMPERSONATION_END"
	ActionUserBan            = "USER_BAN"
	ActionUserUnban          = "USER_UNBAN"

	ActionMemberAdded       = "MEMBER_ADDED"
	ActionMemberRoleChanged = "MEMBER_ROLE_CHANGED"
	ActionMemberDeactivated = "MEMBER_DEACTIVATED"
	ActionMemberReactivated = "MEMBER_REACTIVATED"
)

// Record is one audit log entry. UserID is the acting user (the admin
// behind an impersonation, not the target); TargetUserID is set when the
// action is aimed at another user. Metadata is a JSON object string.
type Record struct {
	ID             int64     `json:"id"`
	Action         string    `json:"action"`
	UserID         *int64    `json:"user_id,omitempty"`
	OrganizationID *int64    `json:"organization_id,omitempty"`
	TargetUserID   *int64    `json:"target_user_id,omitempty"`
	Metadata       string    `json:"metadata"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewRecord builds a record with the metadata map encoded to JSON.
func NewRecord(action string, userID, orgID, targetUserID *int64, metadata map[string]interface{}) (*Record, error) {
	encoded := "{}"
	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode audit metadata: %w", err)
		}
		encoded = string(data)
	}
	return &Record{
		Action:         action,
		UserID:         userID,
		OrganizationID: orgID,
		TargetUserID:   targetUserID,
		Metadata:       encoded,
	}, nil
}

// SearchFilter narrows a log query. Zero values match everything.
type SearchFilter struct {
	Action         string
	UserID         *int64
	OrganizationID *int64
	TargetUserID   *int64
	Since          *time.Time
	Until          *time.Time
	Limit          int
	Offset         int
}

// ExportFormat selects the serialization for exports.
type ExportFormat string

const (
	FormatJSON   ExportFormat = "json"
	FormatNDJSON ExportFormat = "ndjson"
	FormatCSV    ExportFormat = "csv"
)

// RetentionPolicy trims records older than MaxAge.
type RetentionPolicy struct {
	MaxAge time.Duration
}
