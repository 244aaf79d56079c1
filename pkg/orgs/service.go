package orgs

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"
)

// PostgresService implements Service on PostgreSQL.
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService.
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

const orgColumns = `id, slug, name, hidden, active, created_at, updated_at`

// CreateOrganization creates a new organization.
func (s *PostgresService) CreateOrganization(ctx context.Context, org *Organization) error {
	if org.Slug == "" {
		org.Slug = GenerateSlug(org.Name)
	}
	org.Active = true

	now := time.Now().UTC()
	query := `
		INSERT INTO organizations (slug, name, hidden, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		org.Slug, org.Name, org.Hidden, org.Active, now, now).Scan(&org.ID)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	org.CreatedAt = now
	org.UpdatedAt = now
	return nil
}

// GetOrganization retrieves an organization by ID.
func (s *PostgresService) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id)
	return scanOrg(row)
}

// GetOrganizationBySlug retrieves an organization by slug.
func (s *PostgresService) GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE slug = $1`, slug)
	return scanOrg(row)
}

// ListOrganizations lists the active, non-hidden organizations the user
// belongs to through an active membership.
func (s *PostgresService) ListOrganizations(ctx context.Context, userID int64) ([]*Organization, error) {
	query := `
		SELECT o.id, o.slug, o.name, o.hidden, o.active, o.created_at, o.updated_at
		FROM organizations o
		JOIN organization_members om ON o.id = om.organization_id
		WHERE om.user_id = $1 AND om.active AND o.active AND NOT o.hidden
		ORDER BY o.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		org := &Organization{}
		if err := rows.Scan(&org.ID, &org.Slug, &org.Name, &org.Hidden,
			&org.Active, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// DeactivateOrganization soft-deletes an organization. Memberships stay
// in place but resolution against an inactive org is refused upstream.
func (s *PostgresService) DeactivateOrganization(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE organizations SET active = FALSE, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate organization: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrOrgNotFound
	}
	return nil
}

// EnsureOrganization returns the organization with the given slug,
// creating it when missing. A concurrent creator losing the unique-slug
// race falls back to re-reading the winner's row.
func (s *PostgresService) EnsureOrganization(ctx context.Context, slug, name string, hidden bool) (*Organization, error) {
	org, err := s.GetOrganizationBySlug(ctx, slug)
	if err == nil {
		return org, nil
	}
	if err != ErrOrgNotFound {
		return nil, err
	}

	org = &Organization{Slug: slug, Name: name, Hidden: hidden}
	if err := s.CreateOrganization(ctx, org); err != nil {
		if isUniqueViolation(err) {
			return s.GetOrganizationBySlug(ctx, slug)
		}
		return nil, err
	}
	return org, nil
}

func scanOrg(row *sql.Row) (*Organization, error) {
	org := &Organization{}
	err := row.Scan(&org.ID, &org.Slug, &org.Name, &org.Hidden,
		&org.Active, &org.CreatedAt, &org.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// isUniqueViolation recognizes unique-constraint failures from Postgres
// and from the sqlite driver the tests run on.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9-]+`)

// GenerateSlug derives a URL-safe slug from an organization name.
func GenerateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = slugInvalidChars.ReplaceAllString(slug, "")
	return strings.Trim(slug, "-")
}

// generateToken generates a random invitation token.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
