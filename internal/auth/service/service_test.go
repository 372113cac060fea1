package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/costscopehq/costscope/internal/auth/domain"
	"github.com/costscopehq/costscope/internal/auth/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testDBSeq int

func newTestAuthService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	testDBSeq++
	dsn := fmt.Sprintf("file:authsvc%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Session{}))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	repo, sessionRepo := repository.New(db)
	return New(zap.NewNop(), repo, sessionRepo, node), db
}

func TestCreateUserAndLogin(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		Email:    "owner@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", user.Email)
	assert.Equal(t, "owner", user.DisplayName)
	require.NotNil(t, user.PasswordHash)
	assert.NotContains(t, *user.PasswordHash, "correct horse")

	result, err := svc.Login(ctx, domain.LoginRequest{
		Email:    "Owner@Example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RawToken)
	assert.Equal(t, user.ID, result.UserID)
	assert.True(t, result.ExpiresAt.After(time.Now()))
}

func TestLoginRejectsBadPassword(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.CreateUserRequest{Email: "a@b.com", Password: "correct horse"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, domain.LoginRequest{Email: "a@b.com", Password: "wrong horse"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, domain.LoginRequest{Email: "nobody@b.com", Password: "correct horse"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestCreateUserRejectsDuplicates(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.CreateUserRequest{Email: "a@b.com", Password: "correct horse"})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, domain.CreateUserRequest{Email: "a@b.com", Password: "another horse"})
	assert.ErrorIs(t, err, domain.ErrUserExists)

	_, err = svc.CreateUser(ctx, domain.CreateUserRequest{Email: "not-an-email", Password: "correct horse"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.CreateUser(ctx, domain.CreateUserRequest{Email: "c@d.com", Password: "short"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthenticateLifecycle(t *testing.T) {
	svc, db := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.CreateUserRequest{Email: "a@b.com", Password: "correct horse"})
	require.NoError(t, err)

	result, err := svc.Login(ctx, domain.LoginRequest{Email: "a@b.com", Password: "correct horse"})
	require.NoError(t, err)

	session, err := svc.Authenticate(ctx, result.RawToken)
	require.NoError(t, err)
	assert.Equal(t, result.SessionID, session.ID)

	// The raw token is never stored.
	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM sessions WHERE session_token_hash = ?`, result.RawToken).Scan(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, svc.Logout(ctx, result.RawToken))
	_, err = svc.Authenticate(ctx, result.RawToken)
	assert.ErrorIs(t, err, domain.ErrSessionRevoked)
}

func TestAuthenticateExpiredSession(t *testing.T) {
	svc, db := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.CreateUserRequest{Email: "a@b.com", Password: "correct horse"})
	require.NoError(t, err)

	result, err := svc.Login(ctx, domain.LoginRequest{Email: "a@b.com", Password: "correct horse"})
	require.NoError(t, err)

	require.NoError(t, db.Exec(
		`UPDATE sessions SET expires_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Hour), result.SessionID,
	).Error)

	_, err = svc.Authenticate(ctx, result.RawToken)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}
