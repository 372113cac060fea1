package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/costscopehq/costscope/internal/auth/domain"
	"github.com/costscopehq/costscope/internal/organization/domain"
	"github.com/costscopehq/costscope/internal/organization/repository"
	"github.com/costscopehq/costscope/internal/reference"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testDBSeq int

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	testDBSeq++
	dsn := fmt.Sprintf("file:orgsvc%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&domain.Organization{},
		&domain.OrganizationMember{},
		&domain.OrganizationInvite{},
		&domain.DeletionToken{},
		&authdomain.User{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	catalog := reference.NewStaticCatalog(
		[]string{"USD", "EUR", "IDR"},
		[]string{"UTC", "Asia/Jakarta", "Europe/Berlin"},
	)

	svc := NewService(db, repository.NewRepository(db), catalog, node, nil, nil, nil)
	return svc, db
}

func createOrg(t *testing.T, svc domain.Service, userID snowflake.ID, name, slug string) *domain.OrganizationResponse {
	t.Helper()

	resp, err := svc.Create(context.Background(), userID, domain.CreateOrganizationRequest{
		Name: name,
		Slug: slug,
	})
	require.NoError(t, err)
	return resp
}

func TestCreateOrganizationDefaults(t *testing.T) {
	svc, db := newTestService(t)

	resp := createOrg(t, svc, 101, "Acme Corp", "acme_corp")
	assert.Equal(t, "acme_corp", resp.Slug)
	assert.Equal(t, "USD", resp.DefaultCurrency)
	assert.Equal(t, "UTC", resp.DefaultTimezone)

	var member domain.OrganizationMember
	require.NoError(t, db.Raw(`SELECT * FROM organization_members WHERE user_id = ?`, 101).Scan(&member).Error)
	assert.Equal(t, domain.RoleOwner, member.Role)
	assert.Equal(t, domain.MemberStatusActive, member.Status)
}

func TestCreateOrganizationSlugFromName(t *testing.T) {
	svc, _ := newTestService(t)

	resp := createOrg(t, svc, 101, "Acme Corp", "")
	assert.Equal(t, "acme_corp", resp.Slug)
}

func TestCreateOrganizationRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 101, domain.CreateOrganizationRequest{Name: "Acme", Slug: "ab"})
	assert.ErrorIs(t, err, domain.ErrInvalidSlug)

	_, err = svc.Create(ctx, 101, domain.CreateOrganizationRequest{Name: "Acme", Slug: "has-hyphen"})
	assert.ErrorIs(t, err, domain.ErrInvalidSlug)

	_, err = svc.Create(ctx, 101, domain.CreateOrganizationRequest{Name: "Acme", Slug: "acme", DefaultCurrency: "XXX"})
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)

	_, err = svc.Create(ctx, 101, domain.CreateOrganizationRequest{Name: "Acme", Slug: "acme", DefaultTimezone: "Mars/Olympus"})
	assert.ErrorIs(t, err, domain.ErrInvalidTimezone)

	_, err = svc.Create(ctx, 0, domain.CreateOrganizationRequest{Name: "Acme", Slug: "acme"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestCreateOrganizationDuplicateSlug(t *testing.T) {
	svc, _ := newTestService(t)

	createOrg(t, svc, 101, "Acme", "acme_corp")
	_, err := svc.Create(context.Background(), 102, domain.CreateOrganizationRequest{Name: "Other", Slug: "acme_corp"})
	assert.ErrorIs(t, err, domain.ErrSlugTaken)
}

func TestAuthorizeMember(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	createOrg(t, svc, 101, "Acme", "acme_corp")

	orgID, role, err := svc.AuthorizeMember(ctx, 101, "acme_corp")
	require.NoError(t, err)
	assert.NotZero(t, orgID)
	assert.Equal(t, domain.RoleOwner, role)

	// Non-member is denied.
	_, _, err = svc.AuthorizeMember(ctx, 999, "acme_corp")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// Unknown slug is denied, not an infrastructure error.
	_, _, err = svc.AuthorizeMember(ctx, 101, "no_such_org")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// Inactive membership is denied.
	require.NoError(t, db.Exec(`UPDATE organization_members SET status = ? WHERE user_id = ?`, domain.MemberStatusInactive, 101).Error)
	_, _, err = svc.AuthorizeMember(ctx, 101, "acme_corp")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAuthorizeMemberSoftDeletedOrg(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	createOrg(t, svc, 101, "Acme", "acme_corp")
	require.NoError(t, db.Exec(`UPDATE organizations SET is_deleted = true WHERE slug = ?`, "acme_corp").Error)

	_, _, err := svc.AuthorizeMember(ctx, 101, "acme_corp")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestTransferOwnership(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	resp := createOrg(t, svc, 101, "Acme", "acme_corp")
	orgID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, db.Exec(
		`INSERT INTO organization_members (id, org_id, user_id, role, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snowflake.ID(7001), orgID, snowflake.ID(102), domain.RoleAdmin, domain.MemberStatusActive, now, now,
	).Error)

	require.NoError(t, svc.TransferOwnership(ctx, 101, "acme_corp", 102))

	var roles []struct {
		UserID snowflake.ID
		Role   string
	}
	require.NoError(t, db.Raw(`SELECT user_id, role FROM organization_members WHERE org_id = ? ORDER BY user_id`, orgID).Scan(&roles).Error)
	require.Len(t, roles, 2)
	assert.Equal(t, domain.RoleAdmin, roles[0].Role)
	assert.Equal(t, domain.RoleOwner, roles[1].Role)
}

func TestTransferOwnershipRequiresOwner(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	resp := createOrg(t, svc, 101, "Acme", "acme_corp")
	orgID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, db.Exec(
		`INSERT INTO organization_members (id, org_id, user_id, role, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snowflake.ID(7001), orgID, snowflake.ID(102), domain.RoleAdmin, domain.MemberStatusActive, now, now,
	).Error)

	err = svc.TransferOwnership(ctx, 102, "acme_corp", 101)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUpdateMemberRoleCannotGrantOwner(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	resp := createOrg(t, svc, 101, "Acme", "acme_corp")
	orgID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, db.Exec(
		`INSERT INTO organization_members (id, org_id, user_id, role, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snowflake.ID(7001), orgID, snowflake.ID(102), domain.RoleReadOnly, domain.MemberStatusActive, now, now,
	).Error)

	err = svc.UpdateMemberRole(ctx, 101, "acme_corp", 7001, domain.RoleOwner)
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	require.NoError(t, svc.UpdateMemberRole(ctx, 101, "acme_corp", 7001, domain.RoleAdmin))
}

func TestDeletionTokenFlow(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	createOrg(t, svc, 101, "Acme", "acme_corp")

	issued, err := svc.RequestDeletion(ctx, 101, "acme_corp")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, issued.Token)
	assert.True(t, issued.ExpiresAt.After(time.Now()))

	require.NoError(t, svc.ConfirmDeletion(ctx, 101, "acme_corp", issued.Token))

	var org domain.Organization
	require.NoError(t, db.Raw(`SELECT * FROM organizations WHERE slug = ?`, "acme_corp").Scan(&org).Error)
	assert.True(t, org.IsDeleted)
	require.NotNil(t, org.DeletedAt)

	var status string
	require.NoError(t, db.Raw(`SELECT status FROM organization_members WHERE user_id = ?`, 101).Scan(&status).Error)
	assert.Equal(t, domain.MemberStatusInactive, status)
}

func TestDeletionTokenSingleUse(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	createOrg(t, svc, 101, "Acme", "acme_corp")

	issued, err := svc.RequestDeletion(ctx, 101, "acme_corp")
	require.NoError(t, err)

	// Consume the token directly so the org stays live for the retry.
	repo := repository.NewRepository(db)
	consumed, err := repo.ConsumeDeletionToken(ctx, issued.Token, time.Now().UTC())
	require.NoError(t, err)
	require.NotNil(t, consumed)

	err = svc.ConfirmDeletion(ctx, 101, "acme_corp", issued.Token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestDeletionTokenExpired(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	createOrg(t, svc, 101, "Acme", "acme_corp")

	issued, err := svc.RequestDeletion(ctx, 101, "acme_corp")
	require.NoError(t, err)

	require.NoError(t, db.Exec(
		`UPDATE deletion_tokens SET expires_at = ? WHERE token = ?`,
		time.Now().UTC().Add(-time.Minute), issued.Token,
	).Error)

	err = svc.ConfirmDeletion(ctx, 101, "acme_corp", issued.Token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	// Lazy purge removed the expired row.
	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM deletion_tokens`).Scan(&count).Error)
	assert.Zero(t, count)
}

func TestSoftDeletedOrgHiddenFromReads(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	createOrg(t, svc, 101, "Acme", "acme_corp")
	issued, err := svc.RequestDeletion(ctx, 101, "acme_corp")
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmDeletion(ctx, 101, "acme_corp", issued.Token))

	_, err = svc.GetBySlug(ctx, "acme_corp")
	assert.ErrorIs(t, err, domain.ErrOrgNotFound)

	orgs, err := svc.ListByUser(ctx, 101)
	require.NoError(t, err)
	assert.Empty(t, orgs)
}

func TestInviteFlow(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	createOrg(t, svc, 101, "Acme", "acme_corp")

	created, err := svc.InviteMembers(ctx, 101, "acme_corp", []domain.InviteRequest{
		{Email: "dev@example.com", Role: domain.RoleAdmin},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)

	var invite domain.OrganizationInvite
	require.NoError(t, db.Raw(`SELECT * FROM organization_invites WHERE email = ?`, "dev@example.com").Scan(&invite).Error)
	assert.Equal(t, domain.InviteStatusPending, invite.Status)

	require.NoError(t, svc.AcceptInvite(ctx, 202, invite.ID))

	orgID, role, err := svc.AuthorizeMember(ctx, 202, "acme_corp")
	require.NoError(t, err)
	assert.NotZero(t, orgID)
	assert.Equal(t, domain.RoleAdmin, role)

	// A second accept is a no-op, not an error.
	err = svc.AcceptInvite(ctx, 202, invite.ID)
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
}

func TestInviteValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	createOrg(t, svc, 101, "Acme", "acme_corp")

	_, err := svc.InviteMembers(ctx, 101, "acme_corp", []domain.InviteRequest{{Email: "nope", Role: domain.RoleAdmin}})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.InviteMembers(ctx, 101, "acme_corp", []domain.InviteRequest{{Email: "a@b.com", Role: domain.RoleOwner}})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestUpdateLogo(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	createOrg(t, svc, 101, "Acme", "acme_corp")

	err := svc.UpdateLogo(ctx, 101, "acme_corp", "http://cdn.example.com/logo.png")
	assert.ErrorIs(t, err, domain.ErrInvalidLogoURL)

	require.NoError(t, svc.UpdateLogo(ctx, 101, "acme_corp", "https://cdn.example.com/assets/12345"))

	var logoURL string
	require.NoError(t, db.Raw(`SELECT logo_url FROM organizations WHERE slug = ?`, "acme_corp").Scan(&logoURL).Error)
	assert.Equal(t, "https://cdn.example.com/assets/12345", logoURL)
}
