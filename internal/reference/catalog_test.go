package reference

import (
	"context"
	"errors"
	"testing"

	"github.com/costscopehq/costscope/internal/reference/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepository struct {
	currencies []domain.Currency
	timezones  []domain.Timezone
	err        error
}

func (s *stubRepository) ListCountries(ctx context.Context) ([]domain.Country, error) {
	return nil, nil
}

func (s *stubRepository) ListTimezones(ctx context.Context) ([]domain.Timezone, error) {
	return s.timezones, s.err
}

func (s *stubRepository) ListTimezonesByCountry(ctx context.Context, countryCode string) ([]domain.Timezone, error) {
	return nil, nil
}

func (s *stubRepository) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	return s.currencies, s.err
}

func newTestCatalog(t *testing.T, repo domain.Repository) *Catalog {
	t.Helper()

	catalog := &Catalog{repo: repo}
	empty := map[string]struct{}{}
	catalog.currencies.Store(&empty)
	catalog.timezones.Store(&empty)
	return catalog
}

func TestCatalogMembership(t *testing.T) {
	repo := &stubRepository{
		currencies: []domain.Currency{{Code: "USD"}, {Code: "idr"}},
		timezones:  []domain.Timezone{{Name: "Asia/Jakarta"}, {Name: "UTC"}},
	}
	catalog := newTestCatalog(t, repo)
	require.NoError(t, catalog.Reload(context.Background()))

	assert.True(t, catalog.ValidCurrency("USD"))
	assert.True(t, catalog.ValidCurrency("usd"))
	assert.True(t, catalog.ValidCurrency("IDR"))
	assert.False(t, catalog.ValidCurrency("EUR"))
	assert.False(t, catalog.ValidCurrency(""))

	assert.True(t, catalog.ValidTimezone("Asia/Jakarta"))
	assert.True(t, catalog.ValidTimezone("UTC"))
	assert.False(t, catalog.ValidTimezone("asia/jakarta"))
	assert.False(t, catalog.ValidTimezone("Mars/Olympus"))
	assert.False(t, catalog.ValidTimezone(""))
}

func TestCatalogEmptyBeforeLoad(t *testing.T) {
	catalog := newTestCatalog(t, &stubRepository{})

	assert.False(t, catalog.ValidCurrency("USD"))
	assert.False(t, catalog.ValidTimezone("UTC"))
}

func TestCatalogReloadPropagatesError(t *testing.T) {
	repo := &stubRepository{err: errors.New("db down")}
	catalog := newTestCatalog(t, repo)

	assert.Error(t, catalog.Reload(context.Background()))
}
