package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/costscopehq/costscope/internal/audit/domain"
	"github.com/costscopehq/costscope/internal/audit/repository"
	"github.com/costscopehq/costscope/internal/auditcontext"
	"github.com/costscopehq/costscope/internal/orgcontext"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testDBSeq int

func newTestAuditService(t *testing.T) auditdomain.Service {
	t.Helper()

	testDBSeq++
	dsn := fmt.Sprintf("file:auditsvc%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	return NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()})
}

func TestAuditLogAndList(t *testing.T) {
	svc := newTestAuditService(t)

	orgID := snowflake.ID(500)
	ctx := orgcontext.WithOrgID(context.Background(), orgID)
	ctx = auditcontext.WithRequestID(ctx, "req-1")
	ctx = auditcontext.WithIPAddress(ctx, "10.0.0.1")

	actorID := "11"
	targetID := "500"
	err := svc.AuditLog(ctx, &orgID, "user", &actorID, "locale.updated", "organization", &targetID, map[string]any{
		"currency": "EUR",
	})
	require.NoError(t, err)

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "locale.updated", entry.Action)
	assert.Equal(t, "user", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "11", *entry.ActorID)
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.1", *entry.IPAddress)
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
}

func TestAuditLogRequiresAction(t *testing.T) {
	svc := newTestAuditService(t)

	orgID := snowflake.ID(500)
	err := svc.AuditLog(context.Background(), &orgID, "user", nil, "  ", "organization", nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListRequiresOrgContext(t *testing.T) {
	svc := newTestAuditService(t)

	_, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidOrganization)
}

func TestListFiltersByAction(t *testing.T) {
	svc := newTestAuditService(t)

	orgID := snowflake.ID(500)
	ctx := orgcontext.WithOrgID(context.Background(), orgID)

	require.NoError(t, svc.AuditLog(ctx, &orgID, "user", nil, "locale.updated", "organization", nil, nil))
	require.NoError(t, svc.AuditLog(ctx, &orgID, "user", nil, "organization.deleted", "organization", nil, nil))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "locale.updated"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, "locale.updated", resp.AuditLogs[0].Action)
}

func TestAuditLogMasksSecretMetadata(t *testing.T) {
	svc := newTestAuditService(t)

	orgID := snowflake.ID(500)
	ctx := orgcontext.WithOrgID(context.Background(), orgID)

	actorID := "11"
	targetID := "ck_live_01"
	err := svc.AuditLog(ctx, &orgID, "user", &actorID, "api_key.rotated", "api_key", &targetID, map[string]any{
		"key_id":  "ck_live_01",
		"api_key": "ck_live_abcdef123456",
	})
	require.NoError(t, err)

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	metadata := resp.AuditLogs[0].Metadata
	assert.Equal(t, "ck_live_01", metadata["key_id"])
	assert.Equal(t, "ck_live_****3456", metadata["api_key"])
}
