package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrganizationListItem struct {
	ID        snowflake.ID
	Name      string
	Slug      string
	Role      string
	CreatedAt time.Time
}

// Membership is the join of a member row with its organization,
// restricted to active members of live organizations.
type Membership struct {
	OrgID snowflake.ID
	Role  string
}

type MemberListItem struct {
	ID        snowflake.ID
	UserID    snowflake.ID
	Email     string
	Role      string
	Status    string
	CreatedAt time.Time
}

type Locale struct {
	Currency string
	Timezone string
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrganization(ctx context.Context, org Organization) error
	GetBySlug(ctx context.Context, slug string) (*Organization, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListItem, error)
	UpdateProfile(ctx context.Context, orgID snowflake.ID, name, countryCode, languageCode string) error
	UpdateLogo(ctx context.Context, orgID snowflake.ID, logoURL string) error
	UpdateLocale(ctx context.Context, orgID snowflake.ID, currency, timezone string) error
	SoftDelete(ctx context.Context, orgID snowflake.ID, at time.Time) error

	AddMember(ctx context.Context, member OrganizationMember) error
	ActiveMembership(ctx context.Context, userID snowflake.ID, slug string) (*Membership, error)
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]MemberListItem, error)
	GetMemberByID(ctx context.Context, orgID, memberID snowflake.ID) (*OrganizationMember, error)
	GetMemberByUser(ctx context.Context, orgID, userID snowflake.ID) (*OrganizationMember, error)
	UpdateMemberRole(ctx context.Context, orgID, memberID snowflake.ID, role string) error
	UpdateMemberStatus(ctx context.Context, orgID, memberID snowflake.ID, status string) error
	DeactivateAllMembers(ctx context.Context, orgID snowflake.ID) error

	CreateInvites(ctx context.Context, invites []OrganizationInvite) error
	GetInvite(ctx context.Context, inviteID snowflake.ID) (*OrganizationInvite, error)
	UpdateInviteStatus(ctx context.Context, inviteID snowflake.ID, status string) error

	InsertDeletionToken(ctx context.Context, token DeletionToken) error
	ConsumeDeletionToken(ctx context.Context, token uuid.UUID, now time.Time) (*DeletionToken, error)
	PurgeExpiredDeletionTokens(ctx context.Context, now time.Time) error
}
