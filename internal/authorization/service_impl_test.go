package authorization

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testDBSeq int

func newTestAuthz(t *testing.T) (Service, *gorm.DB) {
	t.Helper()

	testDBSeq++
	dsn := fmt.Sprintf("file:authz%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(
		`CREATE TABLE organization_members (
			id integer primary key,
			org_id integer not null,
			user_id integer not null,
			role text not null,
			status text not null,
			created_at datetime,
			updated_at datetime
		)`,
	).Error)

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	svc := NewService(Params{DB: db, Log: zap.NewNop(), Enforcer: enforcer})
	return svc, db
}

func addMember(t *testing.T, db *gorm.DB, id, orgID, userID int64, role, status string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, db.Exec(
		`INSERT INTO organization_members (id, org_id, user_id, role, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, orgID, userID, role, status, now, now,
	).Error)
}

func TestAuthorizeRoles(t *testing.T) {
	svc, db := newTestAuthz(t)
	ctx := context.Background()

	addMember(t, db, 1, 500, 11, "OWNER", "active")
	addMember(t, db, 2, 500, 12, "ADMIN", "active")
	addMember(t, db, 3, 500, 13, "READ_ONLY", "active")

	// Read-only can view but not mutate.
	assert.NoError(t, svc.Authorize(ctx, "user:13", "500", ObjectLocale, ActionLocaleView))
	assert.ErrorIs(t, svc.Authorize(ctx, "user:13", "500", ObjectLocale, ActionLocaleUpdate), ErrForbidden)

	// Admin can update locale but cannot delete the organization.
	assert.NoError(t, svc.Authorize(ctx, "user:12", "500", ObjectLocale, ActionLocaleUpdate))
	assert.ErrorIs(t, svc.Authorize(ctx, "user:12", "500", ObjectOrganization, ActionOrganizationDelete), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:12", "500", ObjectAPIKey, ActionAPIKeyRotate), ErrForbidden)

	// Owner can do everything.
	assert.NoError(t, svc.Authorize(ctx, "user:11", "500", ObjectOrganization, ActionOrganizationDelete))
	assert.NoError(t, svc.Authorize(ctx, "user:11", "500", ObjectOrganization, ActionOrganizationTransfer))
	assert.NoError(t, svc.Authorize(ctx, "user:11", "500", ObjectSync, ActionSyncRepair))
}

func TestAuthorizeNonMemberDenied(t *testing.T) {
	svc, db := newTestAuthz(t)
	ctx := context.Background()

	addMember(t, db, 1, 500, 11, "OWNER", "active")

	err := svc.Authorize(ctx, "user:99", "500", ObjectLocale, ActionLocaleView)
	assert.ErrorIs(t, err, ErrForbidden)

	// Inactive members lose access.
	addMember(t, db, 2, 500, 12, "ADMIN", "inactive")
	err = svc.Authorize(ctx, "user:12", "500", ObjectLocale, ActionLocaleUpdate)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeRoleScopedToOrg(t *testing.T) {
	svc, db := newTestAuthz(t)
	ctx := context.Background()

	addMember(t, db, 1, 500, 11, "OWNER", "active")
	addMember(t, db, 2, 600, 11, "READ_ONLY", "active")

	assert.NoError(t, svc.Authorize(ctx, "user:11", "500", ObjectOrganization, ActionOrganizationDelete))
	assert.ErrorIs(t, svc.Authorize(ctx, "user:11", "600", ObjectOrganization, ActionOrganizationDelete), ErrForbidden)
}

func TestAuthorizeInputValidation(t *testing.T) {
	svc, _ := newTestAuthz(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, "", "500", ObjectLocale, ActionLocaleView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:11", "", ObjectLocale, ActionLocaleView), ErrInvalidOrganization)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:11", "500", "", ActionLocaleView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:11", "500", ObjectLocale, ""), ErrInvalidAction)
	assert.ErrorIs(t, svc.Authorize(ctx, "robot:1", "500", ObjectLocale, ActionLocaleView), ErrInvalidActor)
}

func TestAuthorizeAPIKeyActsAsSystem(t *testing.T) {
	svc, _ := newTestAuthz(t)
	ctx := context.Background()

	assert.NoError(t, svc.Authorize(ctx, "api_key:12345", "500", ObjectSync, ActionSyncRepair))
	assert.ErrorIs(t, svc.Authorize(ctx, "api_key:12345", "500", ObjectOrganization, ActionOrganizationDelete), ErrForbidden)
	assert.NoError(t, svc.Authorize(ctx, "system", "500", ObjectLocale, ActionLocaleUpdate))
}
