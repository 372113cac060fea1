package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

const (
	RoleOwner    = "OWNER"
	RoleAdmin    = "ADMIN"
	RoleReadOnly = "READ_ONLY"
)

const (
	MemberStatusActive   = "active"
	MemberStatusInactive = "inactive"
)

const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusRevoked  = "revoked"
)

// DeletionTokenTTL bounds how long a deletion confirmation stays valid.
const DeletionTokenTTL = 30 * time.Minute

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateOrganizationRequest) (*OrganizationResponse, error)
	GetBySlug(ctx context.Context, slug string) (*OrganizationResponse, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListResponseItem, error)
	UpdateProfile(ctx context.Context, userID snowflake.ID, slug string, req UpdateProfileRequest) (*OrganizationResponse, error)
	UpdateLogo(ctx context.Context, userID snowflake.ID, slug string, logoURL string) error

	AuthorizeMember(ctx context.Context, userID snowflake.ID, slug string) (snowflake.ID, string, error)
	ListMembers(ctx context.Context, userID snowflake.ID, slug string) ([]MemberResponse, error)
	UpdateMemberRole(ctx context.Context, userID snowflake.ID, slug string, memberID snowflake.ID, role string) error
	DeactivateMember(ctx context.Context, userID snowflake.ID, slug string, memberID snowflake.ID) error
	TransferOwnership(ctx context.Context, userID snowflake.ID, slug string, newOwnerUserID snowflake.ID) error

	InviteMembers(ctx context.Context, userID snowflake.ID, slug string, invites []InviteRequest) ([]OrganizationInvite, error)
	AcceptInvite(ctx context.Context, userID snowflake.ID, inviteID snowflake.ID) error

	RequestDeletion(ctx context.Context, userID snowflake.ID, slug string) (*DeletionTokenResponse, error)
	ConfirmDeletion(ctx context.Context, userID snowflake.ID, slug string, token uuid.UUID) error
}

type CreateOrganizationRequest struct {
	Name            string
	Slug            string
	CountryCode     string
	DefaultCurrency string
	DefaultTimezone string
}

type UpdateProfileRequest struct {
	Name         *string
	CountryCode  *string
	LanguageCode *string
}

type InviteRequest struct {
	Email string
	Role  string
}

type OrganizationResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	LogoURL         string `json:"logo_url,omitempty"`
	DefaultCurrency string `json:"default_currency"`
	DefaultTimezone string `json:"default_timezone"`
	CountryCode     string `json:"country_code,omitempty"`
	LanguageCode    string `json:"language_code,omitempty"`
	BillingStatus   string `json:"billing_status,omitempty"`
}

type OrganizationListResponseItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type MemberResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type DeletionTokenResponse struct {
	Token     uuid.UUID `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidSlug         = errors.New("invalid_slug")
	ErrInvalidLogoURL      = errors.New("invalid_logo_url")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrInvalidTimezone     = errors.New("invalid_timezone")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrInvalidToken        = errors.New("invalid_token")
	ErrSlugTaken           = errors.New("slug_taken")
	ErrOrgNotFound         = errors.New("organization_not_found")
	ErrMemberNotFound      = errors.New("member_not_found")
	ErrInviteNotFound      = errors.New("invite_not_found")
	ErrForbidden           = errors.New("forbidden")
	ErrOrgDeleted          = errors.New("organization_deleted")
)

// ValidRole reports whether role is one of the supported member roles.
func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleReadOnly:
		return true
	default:
		return false
	}
}
