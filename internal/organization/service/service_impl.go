package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/costscopehq/costscope/internal/audit/domain"
	obsmetrics "github.com/costscopehq/costscope/internal/observability/metrics"
	"github.com/costscopehq/costscope/internal/organization/domain"
	"github.com/costscopehq/costscope/internal/organization/event"
	"github.com/costscopehq/costscope/internal/reference"
	pkgdb "github.com/costscopehq/costscope/pkg/db"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db        *gorm.DB
	repo      domain.Repository
	catalog   *reference.Catalog
	genID     *snowflake.Node
	publisher event.EventPublisher
	audit     auditdomain.Service
	metrics   *obsmetrics.Metrics
}

func NewService(
	db *gorm.DB,
	repo domain.Repository,
	catalog *reference.Catalog,
	genID *snowflake.Node,
	publisher event.EventPublisher,
	audit auditdomain.Service,
	metrics *obsmetrics.Metrics,
) domain.Service {
	return &service{
		db:        db,
		repo:      repo,
		catalog:   catalog,
		genID:     genID,
		publisher: publisher,
		audit:     audit,
		metrics:   metrics,
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	orgSlug := strings.TrimSpace(req.Slug)
	if orgSlug == "" {
		// slug.Make produces hyphenated output; the slug charset only
		// allows word characters, so fold hyphens to underscores.
		orgSlug = strings.ReplaceAll(slug.Make(name), "-", "_")
	}
	if !domain.IsValidSlug(orgSlug) {
		return nil, domain.ErrInvalidSlug
	}

	currency := strings.ToUpper(strings.TrimSpace(req.DefaultCurrency))
	if currency == "" {
		currency = "USD"
	}
	if !s.catalog.ValidCurrency(currency) {
		return nil, domain.ErrInvalidCurrency
	}

	timezone := strings.TrimSpace(req.DefaultTimezone)
	if timezone == "" {
		timezone = "UTC"
	}
	if !s.catalog.ValidTimezone(timezone) {
		return nil, domain.ErrInvalidTimezone
	}

	now := time.Now().UTC()
	orgID := s.genID.Generate()
	org := domain.Organization{
		ID:              orgID,
		Name:            name,
		Slug:            orgSlug,
		DefaultCurrency: currency,
		DefaultTimezone: timezone,
		CountryCode:     strings.TrimSpace(req.CountryCode),
		CreatedAt:       now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}

		member := domain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			UserID:    userID,
			Role:      domain.RoleOwner,
			Status:    domain.MemberStatusActive,
			CreatedAt: now,
		}

		return repo.AddMember(ctx, member)
	})
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}

	s.emitEvent(ctx, event.OrganizationCreatedTopic, org, userID)

	return toResponse(org), nil
}

func (s *service) GetBySlug(ctx context.Context, orgSlug string) (*domain.OrganizationResponse, error) {
	orgSlug = strings.TrimSpace(orgSlug)
	if !domain.IsValidSlug(orgSlug) {
		return nil, domain.ErrInvalidSlug
	}

	org, err := s.repo.GetBySlug(ctx, orgSlug)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrOrgNotFound
	}

	return toResponse(*org), nil
}

func (s *service) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListResponseItem, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.OrganizationListResponseItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.OrganizationListResponseItem{
			ID:        item.ID.String(),
			Name:      item.Name,
			Slug:      item.Slug,
			Role:      item.Role,
			CreatedAt: item.CreatedAt,
		})
	}

	return resp, nil
}

// AuthorizeMember resolves the caller's active membership for the org
// identified by slug. A missing row is a denial; a query failure is
// surfaced as-is so callers do not mistake outages for denials.
func (s *service) AuthorizeMember(ctx context.Context, userID snowflake.ID, orgSlug string) (snowflake.ID, string, error) {
	if userID == 0 {
		return 0, "", domain.ErrInvalidUser
	}
	orgSlug = strings.TrimSpace(orgSlug)
	if !domain.IsValidSlug(orgSlug) {
		return 0, "", domain.ErrInvalidSlug
	}

	membership, err := s.repo.ActiveMembership(ctx, userID, orgSlug)
	if err != nil {
		return 0, "", err
	}
	if membership == nil || membership.OrgID == 0 {
		return 0, "", domain.ErrForbidden
	}

	return membership.OrgID, membership.Role, nil
}

func (s *service) UpdateProfile(ctx context.Context, userID snowflake.ID, orgSlug string, req domain.UpdateProfileRequest) (*domain.OrganizationResponse, error) {
	orgID, role, err := s.AuthorizeMember(ctx, userID, orgSlug)
	if err != nil {
		return nil, err
	}
	if !canManage(role) {
		return nil, domain.ErrForbidden
	}

	org, err := s.repo.GetBySlug(ctx, orgSlug)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrOrgNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		org.Name = name
	}
	if req.CountryCode != nil {
		org.CountryCode = strings.TrimSpace(*req.CountryCode)
	}
	if req.LanguageCode != nil {
		org.LanguageCode = strings.TrimSpace(*req.LanguageCode)
	}

	if err := s.repo.UpdateProfile(ctx, orgID, org.Name, org.CountryCode, org.LanguageCode); err != nil {
		return nil, err
	}

	return toResponse(*org), nil
}

func (s *service) UpdateLogo(ctx context.Context, userID snowflake.ID, orgSlug string, logoURL string) error {
	orgID, role, err := s.AuthorizeMember(ctx, userID, orgSlug)
	if err != nil {
		return err
	}
	if !canManage(role) {
		return domain.ErrForbidden
	}

	logoURL = strings.TrimSpace(logoURL)
	if !domain.IsValidLogoURL(logoURL) {
		return domain.ErrInvalidLogoURL
	}

	return s.repo.UpdateLogo(ctx, orgID, logoURL)
}

func (s *service) ListMembers(ctx context.Context, userID snowflake.ID, orgSlug string) ([]domain.MemberResponse, error) {
	orgID, _, err := s.AuthorizeMember(ctx, userID, orgSlug)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListMembers(ctx, orgID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.MemberResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.MemberResponse{
			ID:        item.ID.String(),
			UserID:    item.UserID.String(),
			Email:     item.Email,
			Role:      item.Role,
			Status:    item.Status,
			CreatedAt: item.CreatedAt,
		})
	}

	return resp, nil
}

func (s *service) UpdateMemberRole(ctx context.Context, userID snowflake.ID, orgSlug string, memberID snowflake.ID, role string) error {
	orgID, callerRole, err := s.AuthorizeMember(ctx, userID, orgSlug)
	if err != nil {
		return err
	}
	if !canManage(callerRole) {
		return domain.ErrForbidden
	}
	// Ownership moves only through TransferOwnership.
	if !domain.ValidRole(role) || role == domain.RoleOwner {
		return domain.ErrInvalidRole
	}

	member, err := s.repo.GetMemberByID(ctx, orgID, memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return domain.ErrMemberNotFound
	}
	if member.Role == domain.RoleOwner {
		return domain.ErrForbidden
	}

	return s.repo.UpdateMemberRole(ctx, orgID, memberID, role)
}

func (s *service) DeactivateMember(ctx context.Context, userID snowflake.ID, orgSlug string, memberID snowflake.ID) error {
	orgID, callerRole, err := s.AuthorizeMember(ctx, userID, orgSlug)
	if err != nil {
		return err
	}
	if !canManage(callerRole) {
		return domain.ErrForbidden
	}

	member, err := s.repo.GetMemberByID(ctx, orgID, memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return domain.ErrMemberNotFound
	}
	if member.Role == domain.RoleOwner {
		return domain.ErrForbidden
	}

	return s.repo.UpdateMemberStatus(ctx, orgID, memberID, domain.MemberStatusInactive)
}

func (s *service) TransferOwnership(ctx context.Context, userID snowflake.ID, orgSlug string, newOwnerUserID snowflake.ID) error {
	orgID, callerRole, err := s.AuthorizeMember(ctx, userID, orgSlug)
	if err != nil {
		return err
	}
	if callerRole != domain.RoleOwner {
		return domain.ErrForbidden
	}
	if newOwnerUserID == 0 || newOwnerUserID == userID {
		return domain.ErrInvalidUser
	}

	current, err := s.repo.GetMemberByUser(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if current == nil {
		return domain.ErrMemberNotFound
	}

	target, err := s.repo.GetMemberByUser(ctx, orgID, newOwnerUserID)
	if err != nil {
		return err
	}
	if target == nil || target.Status != domain.MemberStatusActive {
		return domain.ErrMemberNotFound
	}

	// Demote before promote inside one transaction; the database
	// trigger rejects any state with two active owners.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateMemberRole(ctx, orgID, current.ID, domain.RoleAdmin); err != nil {
			return err
		}
		return repo.UpdateMemberRole(ctx, orgID, target.ID, domain.RoleOwner)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, orgID, userID, "organization.ownership_transferred", "member", target.ID.String(), map[string]any{
		"previous_owner_user_id": userID.String(),
		"new_owner_user_id":      newOwnerUserID.String(),
	})

	return nil
}

func (s *service) InviteMembers(ctx context.Context, userID snowflake.ID, orgSlug string, invites []domain.InviteRequest) ([]domain.OrganizationInvite, error) {
	orgID, callerRole, err := s.AuthorizeMember(ctx, userID, orgSlug)
	if err != nil {
		return nil, err
	}
	if !canManage(callerRole) {
		return nil, domain.ErrForbidden
	}

	now := time.Now().UTC()
	rows := make([]domain.OrganizationInvite, 0, len(invites))
	for _, invite := range invites {
		email := strings.ToLower(strings.TrimSpace(invite.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, domain.ErrInvalidEmail
		}
		if !domain.ValidRole(invite.Role) || invite.Role == domain.RoleOwner {
			return nil, domain.ErrInvalidRole
		}
		rows = append(rows, domain.OrganizationInvite{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			Email:     email,
			Role:      invite.Role,
			Status:    domain.InviteStatusPending,
			InvitedBy: userID,
			CreatedAt: now,
		})
	}
	if len(rows) == 0 {
		return nil, domain.ErrInvalidEmail
	}

	if err := s.repo.CreateInvites(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *service) AcceptInvite(ctx context.Context, userID snowflake.ID, inviteID snowflake.ID) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}

	invite, err := s.repo.GetInvite(ctx, inviteID)
	if err != nil {
		return err
	}
	if invite == nil {
		return domain.ErrInviteNotFound
	}
	if invite.Status != domain.InviteStatusPending {
		return domain.ErrInviteNotFound
	}

	existing, err := s.repo.GetMemberByUser(ctx, invite.OrgID, userID)
	if err != nil {
		return err
	}
	if existing != nil {
		return s.repo.UpdateInviteStatus(ctx, inviteID, domain.InviteStatusAccepted)
	}

	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		member := domain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     invite.OrgID,
			UserID:    userID,
			Role:      invite.Role,
			Status:    domain.MemberStatusActive,
			CreatedAt: now,
		}
		if err := repo.AddMember(ctx, member); err != nil {
			return err
		}
		return repo.UpdateInviteStatus(ctx, inviteID, domain.InviteStatusAccepted)
	})
}

func (s *service) RequestDeletion(ctx context.Context, userID snowflake.ID, orgSlug string) (*domain.DeletionTokenResponse, error) {
	orgID, callerRole, err := s.AuthorizeMember(ctx, userID, orgSlug)
	if err != nil {
		return nil, err
	}
	if callerRole != domain.RoleOwner {
		return nil, domain.ErrForbidden
	}

	now := time.Now().UTC()
	if err := s.repo.PurgeExpiredDeletionTokens(ctx, now); err != nil {
		zap.L().Warn("failed to purge expired deletion tokens", zap.Error(err))
	}

	token := domain.DeletionToken{
		Token:     uuid.New(),
		OrgID:     orgID,
		UserID:    userID,
		Email:     s.lookupEmail(ctx, userID),
		ExpiresAt: now.Add(domain.DeletionTokenTTL),
		CreatedAt: now,
	}
	if err := s.repo.InsertDeletionToken(ctx, token); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, orgID, userID, "organization.deletion_requested", "organization", orgID.String(), nil)

	return &domain.DeletionTokenResponse{
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

func (s *service) ConfirmDeletion(ctx context.Context, userID snowflake.ID, orgSlug string, token uuid.UUID) error {
	orgID, callerRole, err := s.AuthorizeMember(ctx, userID, orgSlug)
	if err != nil {
		return err
	}
	if callerRole != domain.RoleOwner {
		return domain.ErrForbidden
	}

	now := time.Now().UTC()
	if err := s.repo.PurgeExpiredDeletionTokens(ctx, now); err != nil {
		zap.L().Warn("failed to purge expired deletion tokens", zap.Error(err))
	}

	consumed, err := s.repo.ConsumeDeletionToken(ctx, token, now)
	if err != nil {
		return err
	}
	if consumed == nil || consumed.OrgID != orgID {
		return domain.ErrInvalidToken
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SoftDelete(ctx, orgID, now); err != nil {
			return err
		}
		return repo.DeactivateAllMembers(ctx, orgID)
	})
	if err != nil {
		return err
	}

	s.emitEvent(ctx, event.OrganizationDeletedTopic, domain.Organization{ID: orgID}, userID)
	s.recordAudit(ctx, orgID, userID, "organization.deleted", "organization", orgID.String(), nil)
	s.metrics.RecordOrgDeletion(ctx, orgID.String())

	return nil
}

func canManage(role string) bool {
	return role == domain.RoleOwner || role == domain.RoleAdmin
}

func toResponse(org domain.Organization) *domain.OrganizationResponse {
	return &domain.OrganizationResponse{
		ID:              org.ID.String(),
		Name:            org.Name,
		Slug:            org.Slug,
		LogoURL:         org.LogoURL,
		DefaultCurrency: org.DefaultCurrency,
		DefaultTimezone: org.DefaultTimezone,
		CountryCode:     org.CountryCode,
		LanguageCode:    org.LanguageCode,
		BillingStatus:   org.BillingStatus,
	}
}

func (s *service) lookupEmail(ctx context.Context, userID snowflake.ID) string {
	var email string
	err := s.db.WithContext(ctx).
		Raw(`SELECT email FROM users WHERE id = ?`, userID).
		Scan(&email).Error
	if err != nil {
		zap.L().Warn("failed to resolve user email", zap.Error(err))
		return ""
	}
	return email
}

func (s *service) emitEvent(ctx context.Context, topic string, org domain.Organization, actorUserID snowflake.ID) {
	if s.publisher == nil {
		return
	}

	payload := map[string]string{
		"organization_id": org.ID.String(),
		"actor_user_id":   actorUserID.String(),
		"occurred_at":     time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		zap.L().Warn("failed to marshal organization event payload", zap.Error(err))
		return
	}

	if err := s.publisher.Publish(ctx, topic, data); err != nil {
		zap.L().Warn("failed to publish organization event", zap.String("topic", topic), zap.Error(err))
	}
}

func (s *service) recordAudit(ctx context.Context, orgID snowflake.ID, userID snowflake.ID, action, targetType, targetID string, metadata map[string]any) {
	if s.audit == nil {
		return
	}

	actorID := userID.String()
	if err := s.audit.AuditLog(ctx, &orgID, "user", &actorID, action, targetType, &targetID, metadata); err != nil {
		zap.L().Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
