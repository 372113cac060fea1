package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/costscopehq/costscope/internal/organization/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organizations (id, name, slug, logo_url, default_currency, default_timezone, country_code, language_code, billing_status, is_deleted, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, false, ?, ?)`,
		org.ID,
		org.Name,
		org.Slug,
		org.LogoURL,
		org.DefaultCurrency,
		org.DefaultTimezone,
		org.CountryCode,
		org.LanguageCode,
		org.BillingStatus,
		org.CreatedAt,
		org.CreatedAt,
	).Error
}

func (r *repository) GetBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).
		Raw(`SELECT * FROM organizations WHERE slug = ? AND is_deleted = false`, slug).
		Scan(&org).Error
	if err != nil {
		return nil, err
	}
	if org.ID == 0 {
		return nil, nil
	}
	return &org, nil
}

func (r *repository) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListItem, error) {
	var items []domain.OrganizationListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.id, o.name, o.slug, m.role, o.created_at
		 FROM organizations o
		 JOIN organization_members m ON m.org_id = o.id
		 WHERE m.user_id = ? AND m.status = ? AND o.is_deleted = false
		 ORDER BY o.created_at ASC`,
		userID,
		domain.MemberStatusActive,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *repository) UpdateProfile(ctx context.Context, orgID snowflake.ID, name, countryCode, languageCode string) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organizations SET name = ?, country_code = ?, language_code = ?, updated_at = ? WHERE id = ? AND is_deleted = false`,
		name,
		countryCode,
		languageCode,
		time.Now().UTC(),
		orgID,
	).Error
}

func (r *repository) UpdateLogo(ctx context.Context, orgID snowflake.ID, logoURL string) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organizations SET logo_url = ?, updated_at = ? WHERE id = ? AND is_deleted = false`,
		logoURL,
		time.Now().UTC(),
		orgID,
	).Error
}

func (r *repository) UpdateLocale(ctx context.Context, orgID snowflake.ID, currency, timezone string) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organizations SET default_currency = ?, default_timezone = ?, updated_at = ? WHERE id = ? AND is_deleted = false`,
		currency,
		timezone,
		time.Now().UTC(),
		orgID,
	).Error
}

func (r *repository) SoftDelete(ctx context.Context, orgID snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organizations SET is_deleted = true, deleted_at = ?, updated_at = ? WHERE id = ? AND is_deleted = false`,
		at,
		at,
		orgID,
	).Error
}

func (r *repository) AddMember(ctx context.Context, member domain.OrganizationMember) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organization_members (id, org_id, user_id, role, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		member.ID,
		member.OrgID,
		member.UserID,
		member.Role,
		member.Status,
		member.CreatedAt,
		member.CreatedAt,
	).Error
}

// ActiveMembership resolves the caller's membership by org slug.
// Returns (nil, nil) when no active membership exists, which callers
// must treat as a denial rather than an infrastructure failure.
func (r *repository) ActiveMembership(ctx context.Context, userID snowflake.ID, slug string) (*domain.Membership, error) {
	var row domain.Membership
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.id AS org_id, m.role
		 FROM organization_members m
		 JOIN organizations o ON o.id = m.org_id
		 WHERE m.user_id = ? AND o.slug = ? AND m.status = ? AND o.is_deleted = false`,
		userID,
		slug,
		domain.MemberStatusActive,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.OrgID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repository) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.MemberListItem, error) {
	var items []domain.MemberListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT m.id, m.user_id, u.email, m.role, m.status, m.created_at
		 FROM organization_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.org_id = ?
		 ORDER BY m.created_at ASC`,
		orgID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *repository) GetMemberByID(ctx context.Context, orgID, memberID snowflake.ID) (*domain.OrganizationMember, error) {
	var member domain.OrganizationMember
	err := r.db.WithContext(ctx).
		Raw(`SELECT * FROM organization_members WHERE org_id = ? AND id = ?`, orgID, memberID).
		Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == 0 {
		return nil, nil
	}
	return &member, nil
}

func (r *repository) GetMemberByUser(ctx context.Context, orgID, userID snowflake.ID) (*domain.OrganizationMember, error) {
	var member domain.OrganizationMember
	err := r.db.WithContext(ctx).
		Raw(`SELECT * FROM organization_members WHERE org_id = ? AND user_id = ?`, orgID, userID).
		Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == 0 {
		return nil, nil
	}
	return &member, nil
}

func (r *repository) UpdateMemberRole(ctx context.Context, orgID, memberID snowflake.ID, role string) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organization_members SET role = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		role,
		time.Now().UTC(),
		orgID,
		memberID,
	).Error
}

func (r *repository) UpdateMemberStatus(ctx context.Context, orgID, memberID snowflake.ID, status string) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organization_members SET status = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		status,
		time.Now().UTC(),
		orgID,
		memberID,
	).Error
}

func (r *repository) DeactivateAllMembers(ctx context.Context, orgID snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organization_members SET status = ?, updated_at = ? WHERE org_id = ?`,
		domain.MemberStatusInactive,
		time.Now().UTC(),
		orgID,
	).Error
}

func (r *repository) CreateInvites(ctx context.Context, invites []domain.OrganizationInvite) error {
	for _, invite := range invites {
		err := r.db.WithContext(ctx).Exec(
			`INSERT INTO organization_invites (id, org_id, email, role, status, invited_by, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			invite.ID,
			invite.OrgID,
			invite.Email,
			invite.Role,
			invite.Status,
			invite.InvitedBy,
			invite.CreatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) GetInvite(ctx context.Context, inviteID snowflake.ID) (*domain.OrganizationInvite, error) {
	var invite domain.OrganizationInvite
	err := r.db.WithContext(ctx).
		Raw(`SELECT * FROM organization_invites WHERE id = ?`, inviteID).
		Scan(&invite).Error
	if err != nil {
		return nil, err
	}
	if invite.ID == 0 {
		return nil, nil
	}
	return &invite, nil
}

func (r *repository) UpdateInviteStatus(ctx context.Context, inviteID snowflake.ID, status string) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organization_invites SET status = ? WHERE id = ?`,
		status,
		inviteID,
	).Error
}

func (r *repository) InsertDeletionToken(ctx context.Context, token domain.DeletionToken) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO deletion_tokens (token, org_id, user_id, email, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		token.Token,
		token.OrgID,
		token.UserID,
		token.Email,
		token.ExpiresAt,
		token.CreatedAt,
	).Error
}

// ConsumeDeletionToken deletes and returns the token in one statement
// so concurrent confirmations cannot both succeed.
func (r *repository) ConsumeDeletionToken(ctx context.Context, token uuid.UUID, now time.Time) (*domain.DeletionToken, error) {
	var row domain.DeletionToken
	err := r.db.WithContext(ctx).Raw(
		`DELETE FROM deletion_tokens WHERE token = ? AND expires_at > ?
		 RETURNING token, org_id, user_id, email, expires_at, created_at`,
		token,
		now,
	).Scan(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if row.OrgID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repository) PurgeExpiredDeletionTokens(ctx context.Context, now time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`DELETE FROM deletion_tokens WHERE expires_at <= ?`,
		now,
	).Error
}
