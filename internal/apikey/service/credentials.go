package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/costscopehq/costscope/internal/apikey/domain"
	"gorm.io/gorm"
)

type credentialStore struct {
	db   *gorm.DB
	repo apikeydomain.Repository
}

func NewCredentialStore(db *gorm.DB, repo apikeydomain.Repository) apikeydomain.CredentialStore {
	return &credentialStore{db: db, repo: repo}
}

func (s *credentialStore) APIKey(ctx context.Context, orgID snowflake.ID) (string, error) {
	if orgID == 0 {
		return "", apikeydomain.ErrInvalidOrganization
	}

	key, err := s.repo.GetBackendKey(ctx, s.db, orgID)
	if err != nil {
		return "", err
	}
	if key == nil || strings.TrimSpace(key.APIKey) == "" {
		return "", apikeydomain.ErrNoBackendKey
	}
	return key.APIKey, nil
}

func (s *credentialStore) SetAPIKey(ctx context.Context, orgID snowflake.ID, apiKey string) error {
	if orgID == 0 {
		return apikeydomain.ErrInvalidOrganization
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return apikeydomain.ErrInvalidKey
	}

	return s.repo.UpsertBackendKey(ctx, s.db, apikeydomain.BackendAPIKey{
		OrgID:     orgID,
		APIKey:    apiKey,
		UpdatedAt: time.Now().UTC(),
	})
}
