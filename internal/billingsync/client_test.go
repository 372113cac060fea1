package billingsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/costscopehq/costscope/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticCreds struct {
	key string
	err error
}

func (s staticCreds) APIKey(ctx context.Context, orgID snowflake.ID) (string, error) {
	return s.key, s.err
}

func newTestClient(baseURL string, creds CredentialSource, policy config.SyncPolicy) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		creds:   creds,
		policy:  func() config.SyncPolicy { return policy },
		log:     zap.NewNop(),
	}
}

func fastPolicy(maxAttempts int) config.SyncPolicy {
	return config.SyncPolicy{
		MaxAttempts:    maxAttempts,
		BackoffStep:    time.Millisecond,
		RequestTimeout: time.Second,
	}
}

func TestSyncLocaleSendsLocalePayload(t *testing.T) {
	var (
		calls  atomic.Int32
		method string
		path   string
		apiKey string
		body   Locale
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		method = r.Method
		path = r.URL.Path
		apiKey = r.Header.Get("X-API-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL, staticCreds{key: "backend-key"}, fastPolicy(3))
	err := client.SyncLocale(context.Background(), 42, "acme_corp", Locale{DefaultCurrency: "EUR", DefaultTimezone: "Europe/Berlin"})

	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/api/v1/organizations/acme_corp/locale", path)
	assert.Equal(t, "backend-key", apiKey)
	assert.Equal(t, Locale{DefaultCurrency: "EUR", DefaultTimezone: "Europe/Berlin"}, body)
}

func TestSyncLocaleRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL, staticCreds{key: "backend-key"}, fastPolicy(3))
	err := client.SyncLocale(context.Background(), 42, "acme_corp", Locale{DefaultCurrency: "USD", DefaultTimezone: "UTC"})

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSyncLocaleStopsAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL, staticCreds{key: "backend-key"}, fastPolicy(3))
	err := client.SyncLocale(context.Background(), 42, "acme_corp", Locale{DefaultCurrency: "USD", DefaultTimezone: "UTC"})

	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSyncLocaleReturnsBackendDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "currency not supported"})
	}))
	defer server.Close()

	client := newTestClient(server.URL, staticCreds{key: "backend-key"}, fastPolicy(1))
	err := client.SyncLocale(context.Background(), 42, "acme_corp", Locale{DefaultCurrency: "XXX", DefaultTimezone: "UTC"})

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusUnprocessableEntity, backendErr.StatusCode)
	assert.Equal(t, "currency not supported", backendErr.Detail)
}

func TestSyncLocaleFallsBackToStatusDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("<html>upstream down</html>"))
	}))
	defer server.Close()

	client := newTestClient(server.URL, staticCreds{key: "backend-key"}, fastPolicy(1))
	err := client.SyncLocale(context.Background(), 42, "acme_corp", Locale{DefaultCurrency: "USD", DefaultTimezone: "UTC"})

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, "HTTP 503", backendErr.Detail)
}

func TestSyncLocaleReportsTimeoutDistinctly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	policy := config.SyncPolicy{MaxAttempts: 1, BackoffStep: time.Millisecond, RequestTimeout: 20 * time.Millisecond}
	client := newTestClient(server.URL, staticCreds{key: "backend-key"}, policy)
	err := client.SyncLocale(context.Background(), 42, "acme_corp", Locale{DefaultCurrency: "USD", DefaultTimezone: "UTC"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendTimeout)
}

func TestSyncLocaleSkipsWhenBackendUnconfigured(t *testing.T) {
	client := newTestClient("", staticCreds{err: errors.New("must not be called")}, fastPolicy(3))

	err := client.SyncLocale(context.Background(), 42, "acme_corp", Locale{DefaultCurrency: "USD", DefaultTimezone: "UTC"})
	assert.NoError(t, err)
}

func TestSyncLocaleMissingKeyIsHardError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := newTestClient(server.URL, staticCreds{err: ErrNoAPIKey}, fastPolicy(3))
	err := client.SyncLocale(context.Background(), 42, "acme_corp", Locale{DefaultCurrency: "USD", DefaultTimezone: "UTC"})

	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.Equal(t, int32(0), calls.Load())
}

func TestFetchLocaleReadsBackendView(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/organizations/acme_corp/locale", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Locale{DefaultCurrency: "JPY", DefaultTimezone: "Asia/Tokyo"})
	}))
	defer server.Close()

	client := newTestClient(server.URL, staticCreds{key: "backend-key"}, fastPolicy(1))
	locale, err := client.FetchLocale(context.Background(), 42, "acme_corp")

	require.NoError(t, err)
	assert.Equal(t, &Locale{DefaultCurrency: "JPY", DefaultTimezone: "Asia/Tokyo"}, locale)
}

func TestFetchLocaleUnconfiguredBackend(t *testing.T) {
	client := newTestClient("", staticCreds{key: "backend-key"}, fastPolicy(1))

	_, err := client.FetchLocale(context.Background(), 42, "acme_corp")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
