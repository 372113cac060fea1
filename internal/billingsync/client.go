package billingsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/costscopehq/costscope/internal/config"
	obsmetrics "github.com/costscopehq/costscope/internal/observability/metrics"
	"github.com/costscopehq/costscope/pkg/retry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	headerAPIKey = "X-API-Key"

	maxErrorBodyBytes = 64 << 10
)

var (
	ErrNotConfigured  = errors.New("backend_not_configured")
	ErrNoAPIKey       = errors.New("backend_key_missing")
	ErrBackendTimeout = errors.New("backend_timeout")
)

// Locale is the wire shape shared with the cost-computation backend.
type Locale struct {
	DefaultCurrency string `json:"default_currency"`
	DefaultTimezone string `json:"default_timezone"`
}

// CredentialSource resolves the per-organization key presented to the
// backend. The client does not care where the key is stored.
type CredentialSource interface {
	APIKey(ctx context.Context, orgID snowflake.ID) (string, error)
}

// BackendError is a non-2xx response from the backend. Detail carries the
// backend's own message when the body could be parsed.
type BackendError struct {
	StatusCode int
	Detail     string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend_sync_failed: %s", e.Detail)
}

// Client pushes and reads organization locale settings on the remote
// backend. Every call is bounded by the sync policy in force at the time
// of the call, so config reloads apply to in-flight traffic.
type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialSource
	policy  func() config.SyncPolicy
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

type ClientParams struct {
	fx.In

	Config  config.Config
	Policy  *config.SyncPolicyHolder
	Creds   CredentialSource
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func NewClient(p ClientParams) *Client {
	return &Client{
		baseURL: p.Config.Backend.BaseURL,
		// Per-attempt deadlines come from the request context, not a
		// client-wide timeout.
		http:    &http.Client{},
		creds:   p.Creds,
		policy:  p.Policy.Get,
		log:     p.Log.Named("billingsync.client"),
		metrics: p.Metrics,
	}
}

// Configured reports whether a backend base URL is set for this deployment.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// SyncLocale writes the locale for one organization to the backend. A
// deployment without a backend URL treats the write as a no-op success;
// a missing per-organization key is an error because a configured backend
// without credentials is a misconfiguration, not an opt-out.
func (c *Client) SyncLocale(ctx context.Context, orgID snowflake.ID, orgSlug string, locale Locale) error {
	if !c.Configured() {
		return nil
	}

	key, err := c.creds.APIKey(ctx, orgID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(locale)
	if err != nil {
		return err
	}

	policy := c.policy()
	url := c.localeURL(orgSlug)

	return retry.Do(ctx, retry.Policy{MaxAttempts: policy.MaxAttempts, Backoff: retry.Linear(policy.BackoffStep)}, func(ctx context.Context, attempt int) error {
		c.metrics.RecordLocaleSyncAttempt(ctx, orgID.String())

		err := c.send(ctx, http.MethodPut, url, key, payload, policy, nil)
		if err != nil {
			c.log.Warn("backend locale sync attempt failed",
				zap.String("org_id", orgID.String()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	})
}

// FetchLocale reads the backend's view of an organization's locale.
// Unlike SyncLocale, an unconfigured backend is reported to the caller so
// drift checks can distinguish "nothing to compare" from "in sync".
func (c *Client) FetchLocale(ctx context.Context, orgID snowflake.ID, orgSlug string) (*Locale, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	key, err := c.creds.APIKey(ctx, orgID)
	if err != nil {
		return nil, err
	}

	var locale Locale
	if err := c.send(ctx, http.MethodGet, c.localeURL(orgSlug), key, nil, c.policy(), &locale); err != nil {
		return nil, err
	}
	return &locale, nil
}

func (c *Client) localeURL(orgSlug string) string {
	return fmt.Sprintf("%s/api/v1/organizations/%s/locale", c.baseURL, orgSlug)
}

func (c *Client) send(ctx context.Context, method, url, key string, payload []byte, policy config.SyncPolicy, out any) error {
	ctx, cancel := context.WithTimeout(ctx, policy.RequestTimeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set(headerAPIKey, key)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %v", ErrBackendTimeout, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &BackendError{StatusCode: resp.StatusCode, Detail: errorDetail(resp)}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func errorDetail(resp *http.Response) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err == nil && json.Unmarshal(raw, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}
