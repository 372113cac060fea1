// Package domain contains persistence models for the organization service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Organization represents a tenant.
type Organization struct {
	ID                   snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name                 string            `gorm:"type:text;not null" json:"name"`
	Slug                 string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	LogoURL              string            `gorm:"type:text;column:logo_url" json:"logo_url,omitempty"`
	DefaultCurrency      string            `gorm:"type:char(3);not null;column:default_currency" json:"default_currency"`
	DefaultTimezone      string            `gorm:"type:text;not null;column:default_timezone" json:"default_timezone"`
	CountryCode          string            `gorm:"type:char(2);column:country_code" json:"country_code,omitempty"`
	LanguageCode         string            `gorm:"type:text;column:language_code" json:"language_code,omitempty"`
	StripeCustomerID     string            `gorm:"type:text;column:stripe_customer_id" json:"-"`
	StripeSubscriptionID string            `gorm:"type:text;column:stripe_subscription_id" json:"-"`
	BillingStatus        string            `gorm:"type:text;column:billing_status" json:"billing_status,omitempty"`
	Metadata             datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	IsDeleted            bool              `gorm:"not null;default:false;column:is_deleted" json:"-"`
	DeletedAt            *time.Time        `gorm:"column:deleted_at" json:"-"`
	CreatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// OrganizationMember represents membership of a user in an organization.
type OrganizationMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_user,priority:1" json:"org_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_user,priority:2" json:"user_id"`
	Role      string       `gorm:"type:text;not null" json:"role"`
	Status    string       `gorm:"type:text;not null;default:'active'" json:"status"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (OrganizationMember) TableName() string { return "organization_members" }

// OrganizationInvite tracks a pending invite to an organization.
type OrganizationInvite struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	Email     string       `gorm:"type:text;not null" json:"email"`
	Role      string       `gorm:"type:text;not null" json:"role"`
	Status    string       `gorm:"type:text;not null" json:"status"`
	InvitedBy snowflake.ID `gorm:"column:invited_by;not null;index" json:"invited_by"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OrganizationInvite) TableName() string { return "organization_invites" }

// DeletionToken is a single-use confirmation token for account deletion.
// Consuming a token deletes the row; expired rows are purged lazily.
type DeletionToken struct {
	Token     uuid.UUID    `gorm:"type:uuid;primaryKey" json:"token"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	UserID    snowflake.ID `gorm:"not null;index" json:"user_id"`
	Email     string       `gorm:"type:text;not null" json:"email"`
	ExpiresAt time.Time    `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (DeletionToken) TableName() string { return "deletion_tokens" }
