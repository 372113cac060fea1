package billingsync

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/costscopehq/costscope/internal/apikey/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("billingsync",
	fx.Provide(NewCredentialSource),
	fx.Provide(NewClient),
	fx.Provide(NewOrchestrator),
)

type credentialSource struct {
	store apikeydomain.CredentialStore
}

// NewCredentialSource adapts the stored backend credentials to the client,
// translating the store's missing-key sentinel into this package's.
func NewCredentialSource(store apikeydomain.CredentialStore) CredentialSource {
	return credentialSource{store: store}
}

func (s credentialSource) APIKey(ctx context.Context, orgID snowflake.ID) (string, error) {
	key, err := s.store.APIKey(ctx, orgID)
	if errors.Is(err, apikeydomain.ErrNoBackendKey) {
		return "", ErrNoAPIKey
	}
	return key, err
}
