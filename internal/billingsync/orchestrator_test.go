package billingsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/costscopehq/costscope/internal/organization/domain"
	orgrepository "github.com/costscopehq/costscope/internal/organization/repository"
	"github.com/costscopehq/costscope/internal/reference"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type allowGate struct {
	orgID snowflake.ID
	err   error
}

func (g allowGate) AuthorizeMember(ctx context.Context, userID snowflake.ID, slug string) (snowflake.ID, string, error) {
	if g.err != nil {
		return 0, "", g.err
	}
	return g.orgID, orgdomain.RoleAdmin, nil
}

type allowAll struct{ err error }

func (a allowAll) Authorize(ctx context.Context, actor, orgID, object, action string) error {
	return a.err
}

type fakeBackend struct {
	syncErr   error
	syncCalls []Locale
	fetched   *Locale
	fetchErr  error
}

func (f *fakeBackend) SyncLocale(ctx context.Context, orgID snowflake.ID, orgSlug string, locale Locale) error {
	if f.syncErr != nil {
		return f.syncErr
	}
	f.syncCalls = append(f.syncCalls, locale)
	f.fetched = &locale
	return nil
}

func (f *fakeBackend) FetchLocale(ctx context.Context, orgID snowflake.ID, orgSlug string) (*Locale, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.fetched, nil
}

type failingLocaleRepo struct {
	orgdomain.Repository
}

func (failingLocaleRepo) UpdateLocale(ctx context.Context, orgID snowflake.ID, currency, timezone string) error {
	return errors.New("disk full")
}

var orchestratorDBSeq int

func newTestOrchestrator(t *testing.T, backend *fakeBackend) (*Orchestrator, orgdomain.Repository, snowflake.ID) {
	t.Helper()

	orchestratorDBSeq++
	dsn := fmt.Sprintf("file:syncorch%d?mode=memory&cache=shared", orchestratorDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&orgdomain.Organization{}))

	repo := orgrepository.NewRepository(db)
	orgID := snowflake.ID(7001)
	now := time.Now().UTC()
	require.NoError(t, repo.CreateOrganization(context.Background(), orgdomain.Organization{
		ID:              orgID,
		Name:            "Acme Corp",
		Slug:            "acme_corp",
		DefaultCurrency: "USD",
		DefaultTimezone: "UTC",
		CreatedAt:       now,
		UpdatedAt:       now,
	}))

	catalog := reference.NewStaticCatalog(
		[]string{"USD", "EUR", "JPY"},
		[]string{"UTC", "Europe/Berlin", "Asia/Tokyo"},
	)

	orch := &Orchestrator{
		repo:    repo,
		gate:    allowGate{orgID: orgID},
		authz:   allowAll{},
		catalog: catalog,
		backend: backend,
		log:     zap.NewNop(),
	}
	return orch, repo, orgID
}

func currentLocale(t *testing.T, repo orgdomain.Repository) Locale {
	t.Helper()

	org, err := repo.GetBySlug(context.Background(), "acme_corp")
	require.NoError(t, err)
	require.NotNil(t, org)
	return Locale{DefaultCurrency: org.DefaultCurrency, DefaultTimezone: org.DefaultTimezone}
}

func TestUpdateLocaleWritesBackendThenPrimary(t *testing.T) {
	backend := &fakeBackend{}
	orch, repo, _ := newTestOrchestrator(t, backend)

	resp, err := orch.UpdateLocale(context.Background(), 101, "acme_corp", UpdateLocaleRequest{
		DefaultCurrency: "eur",
		DefaultTimezone: "Europe/Berlin",
	})

	require.NoError(t, err)
	assert.Equal(t, "EUR", resp.DefaultCurrency)
	assert.Equal(t, "Europe/Berlin", resp.DefaultTimezone)

	require.Len(t, backend.syncCalls, 1)
	assert.Equal(t, Locale{DefaultCurrency: "EUR", DefaultTimezone: "Europe/Berlin"}, backend.syncCalls[0])
	assert.Equal(t, Locale{DefaultCurrency: "EUR", DefaultTimezone: "Europe/Berlin"}, currentLocale(t, repo))
}

func TestUpdateLocaleBackendFailureLeavesPrimaryUntouched(t *testing.T) {
	backend := &fakeBackend{syncErr: &BackendError{StatusCode: 502, Detail: "HTTP 502"}}
	orch, repo, _ := newTestOrchestrator(t, backend)

	_, err := orch.UpdateLocale(context.Background(), 101, "acme_corp", UpdateLocaleRequest{
		DefaultCurrency: "EUR",
		DefaultTimezone: "Europe/Berlin",
	})

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.NotErrorIs(t, err, ErrPrimaryAfterBackend)
	assert.Equal(t, Locale{DefaultCurrency: "USD", DefaultTimezone: "UTC"}, currentLocale(t, repo))
}

func TestUpdateLocalePrimaryFailureAfterBackendIsDistinct(t *testing.T) {
	backend := &fakeBackend{}
	orch, repo, _ := newTestOrchestrator(t, backend)
	orch.repo = failingLocaleRepo{Repository: repo}

	_, err := orch.UpdateLocale(context.Background(), 101, "acme_corp", UpdateLocaleRequest{
		DefaultCurrency: "EUR",
		DefaultTimezone: "Europe/Berlin",
	})

	require.ErrorIs(t, err, ErrPrimaryAfterBackend)
	// the backend write already happened when the local write failed
	require.Len(t, backend.syncCalls, 1)
}

func TestUpdateLocaleRejectsUnknownLocale(t *testing.T) {
	backend := &fakeBackend{}
	orch, _, _ := newTestOrchestrator(t, backend)

	_, err := orch.UpdateLocale(context.Background(), 101, "acme_corp", UpdateLocaleRequest{
		DefaultCurrency: "XAU",
		DefaultTimezone: "UTC",
	})
	assert.ErrorIs(t, err, orgdomain.ErrInvalidCurrency)

	_, err = orch.UpdateLocale(context.Background(), 101, "acme_corp", UpdateLocaleRequest{
		DefaultCurrency: "USD",
		DefaultTimezone: "Mars/Olympus",
	})
	assert.ErrorIs(t, err, orgdomain.ErrInvalidTimezone)

	assert.Empty(t, backend.syncCalls)
}

func TestUpdateLocaleRequiresMembershipAndPolicy(t *testing.T) {
	backend := &fakeBackend{}
	orch, _, _ := newTestOrchestrator(t, backend)
	orch.gate = allowGate{err: orgdomain.ErrForbidden}

	_, err := orch.UpdateLocale(context.Background(), 999, "acme_corp", UpdateLocaleRequest{
		DefaultCurrency: "EUR",
		DefaultTimezone: "Europe/Berlin",
	})
	assert.ErrorIs(t, err, orgdomain.ErrForbidden)
	assert.Empty(t, backend.syncCalls)

	orch, _, orgID := newTestOrchestrator(t, backend)
	orch.gate = allowGate{orgID: orgID}
	orch.authz = allowAll{err: errors.New("forbidden")}

	_, err = orch.UpdateLocale(context.Background(), 101, "acme_corp", UpdateLocaleRequest{
		DefaultCurrency: "EUR",
		DefaultTimezone: "Europe/Berlin",
	})
	require.Error(t, err)
	assert.Empty(t, backend.syncCalls)
}

func TestValidateSyncReportsDrift(t *testing.T) {
	backend := &fakeBackend{fetched: &Locale{DefaultCurrency: "USD", DefaultTimezone: "Asia/Tokyo"}}
	orch, _, _ := newTestOrchestrator(t, backend)

	result, err := orch.ValidateSync(context.Background(), "acme_corp")

	require.NoError(t, err)
	assert.False(t, result.InSync)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, Mismatch{Field: "default_timezone", Primary: "UTC", Backend: "Asia/Tokyo"}, result.Mismatches[0])
	assert.Equal(t, Locale{DefaultCurrency: "USD", DefaultTimezone: "UTC"}, result.Primary)
	require.NotNil(t, result.Backend)
	assert.Equal(t, "Asia/Tokyo", result.Backend.DefaultTimezone)
}

func TestValidateSyncInSync(t *testing.T) {
	backend := &fakeBackend{fetched: &Locale{DefaultCurrency: "USD", DefaultTimezone: "UTC"}}
	orch, _, _ := newTestOrchestrator(t, backend)

	result, err := orch.ValidateSync(context.Background(), "acme_corp")

	require.NoError(t, err)
	assert.True(t, result.InSync)
	assert.Empty(t, result.Mismatches)
	assert.Empty(t, result.SkipReason)
}

func TestValidateSyncTriviallyInSyncWithoutBackend(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, &fakeBackend{fetchErr: ErrNotConfigured})
	result, err := orch.ValidateSync(context.Background(), "acme_corp")
	require.NoError(t, err)
	assert.True(t, result.InSync)
	assert.Equal(t, SkipReasonNotConfigured, result.SkipReason)

	orch, _, _ = newTestOrchestrator(t, &fakeBackend{fetchErr: ErrNoAPIKey})
	result, err = orch.ValidateSync(context.Background(), "acme_corp")
	require.NoError(t, err)
	assert.True(t, result.InSync)
	assert.Equal(t, SkipReasonNoAPIKey, result.SkipReason)
}

func TestValidateSyncUnknownOrganization(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, &fakeBackend{})

	_, err := orch.ValidateSync(context.Background(), "ghost_org")
	assert.ErrorIs(t, err, orgdomain.ErrOrgNotFound)
}

func TestRepairSyncPushesPrimaryValues(t *testing.T) {
	backend := &fakeBackend{fetched: &Locale{DefaultCurrency: "JPY", DefaultTimezone: "Asia/Tokyo"}}
	orch, _, _ := newTestOrchestrator(t, backend)

	result, err := orch.RepairSync(context.Background(), "acme_corp")

	require.NoError(t, err)
	assert.True(t, result.Repaired)
	require.Len(t, backend.syncCalls, 1)
	assert.Equal(t, Locale{DefaultCurrency: "USD", DefaultTimezone: "UTC"}, backend.syncCalls[0])

	// the fake backend now holds the pushed value, so a second repair is
	// a no-op
	again, err := orch.RepairSync(context.Background(), "acme_corp")
	require.NoError(t, err)
	assert.False(t, again.Repaired)
	assert.Len(t, backend.syncCalls, 1)
}

func TestRepairSyncNoopWhenInSync(t *testing.T) {
	backend := &fakeBackend{fetched: &Locale{DefaultCurrency: "USD", DefaultTimezone: "UTC"}}
	orch, _, _ := newTestOrchestrator(t, backend)

	result, err := orch.RepairSync(context.Background(), "acme_corp")

	require.NoError(t, err)
	assert.False(t, result.Repaired)
	assert.Empty(t, backend.syncCalls)
}
