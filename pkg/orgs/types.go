package orgs

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by the service.
var (
	ErrOrgNotFound        = errors.New("organization not found")
	ErrMemberNotFound     = errors.New("member not found")
	ErrAlreadyMember      = errors.New("member already exists")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvitationExpired  = errors.New("invitation expired")
	ErrInvitationAccepted = errors.New("invitation already accepted")
)

// Organization is a tenant. Hidden organizations never appear in user
// listings; the admin override subsystem uses one as its audit context.
type Organization struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Hidden    bool      `json:"hidden"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership ties a user to an organization with a role name. Role names
// resolve to leveled roles through the authz package. Active is the kill
// switch: an inactive membership resolves to no access at all.
type Membership struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	UserID         int64     `json:"user_id"`
	Role           string    `json:"role"`
	Active         bool      `json:"active"`
	IsDefault      bool      `json:"is_default"`
	InvitedBy      *int64    `json:"invited_by,omitempty"`
	JoinedAt       time.Time `json:"joined_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// Member is a membership joined with user details for listings.
type Member struct {
	Membership
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// Invitation is a pending offer to join an organization.
type Invitation struct {
	ID         int64      `json:"id"`
	OrgID      int64      `json:"org_id"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	Token      string     `json:"token,omitempty"`
	InvitedBy  int64      `json:"invited_by"`
	InvitedAt  time.Time  `json:"invited_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy *int64     `json:"accepted_by,omitempty"`
}

// CreateOrgRequest is the payload for creating an organization.
type CreateOrgRequest struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// InviteMemberRequest is the payload for inviting a member.
type InviteMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UpdateMemberRequest is the payload for changing a member's role.
type UpdateMemberRequest struct {
	Role string `json:"role"`
}

// Service is the organization and membership API.
type Service interface {
	CreateOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id int64) (*Organization, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error)
	ListOrganizations(ctx context.Context, userID int64) ([]*Organization, error)
	DeactivateOrganization(ctx context.Context, id int64) error

	// EnsureOrganization returns the organization with the given slug,
	// creating it when missing. Safe under concurrent callers.
	EnsureOrganization(ctx context.Context, slug, name string, hidden bool) (*Organization, error)

	// ResolveMembership returns the user's active membership in the
	// organization, or nil when the user has none. An inactive membership
	// row resolves to nil.
	ResolveMembership(ctx context.Context, orgID, userID int64) (*Membership, error)

	// DefaultMembership returns the user's default active membership, or
	// nil when none is marked default.
	DefaultMembership(ctx context.Context, userID int64) (*Membership, error)

	ListMembers(ctx context.Context, orgID int64) ([]*Member, error)
	AddMember(ctx context.Context, orgID, userID int64, role string, invitedBy *int64) error
	UpdateMemberRole(ctx context.Context, orgID, userID int64, role string) error
	DeactivateMember(ctx context.Context, orgID, userID int64) error
	ReactivateMember(ctx context.Context, orgID, userID int64) error
	SetDefaultMembership(ctx context.Context, orgID, userID int64) error

	CreateInvitation(ctx context.Context, inv *Invitation) error
	GetInvitation(ctx context.Context, token string) (*Invitation, error)
	AcceptInvitation(ctx context.Context, token string, userID int64, now time.Time) error
	RevokeInvitation(ctx context.Context, id int64) error
	CleanupExpiredInvitations(ctx context.Context, now time.Time) (int64, error)
}
