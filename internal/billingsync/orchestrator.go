package billingsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/costscopehq/costscope/internal/audit/domain"
	"github.com/costscopehq/costscope/internal/authorization"
	obsmetrics "github.com/costscopehq/costscope/internal/observability/metrics"
	orgdomain "github.com/costscopehq/costscope/internal/organization/domain"
	"github.com/costscopehq/costscope/internal/reference"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Locale writes go to the backend first. ErrPrimaryAfterBackend marks the
// window where the backend accepted the new value but the local write
// failed, so callers can retry just the local half.
var ErrPrimaryAfterBackend = errors.New("primary_update_failed_after_backend")

// Sync outcomes as recorded in metrics and audit metadata.
const (
	SyncOutcomeSuccess       = "success"
	SyncOutcomeFailedNoSync  = "failed_no_change"
	SyncOutcomeFailedPartial = "failed_partial"
)

// Drift skip reasons for deployments where there is nothing to compare.
const (
	SkipReasonNotConfigured = "backend_not_configured"
	SkipReasonNoAPIKey      = "backend_key_missing"
)

type UpdateLocaleRequest struct {
	DefaultCurrency string `json:"default_currency"`
	DefaultTimezone string `json:"default_timezone"`
}

type UpdateLocaleResponse struct {
	Slug            string `json:"slug"`
	DefaultCurrency string `json:"default_currency"`
	DefaultTimezone string `json:"default_timezone"`
}

// Mismatch is one field where the two stores disagree.
type Mismatch struct {
	Field   string `json:"field"`
	Primary string `json:"primary"`
	Backend string `json:"backend"`
}

type ValidateResult struct {
	InSync bool `json:"in_sync"`
	// SkipReason is set when no comparison happened and the check passed
	// trivially.
	SkipReason string     `json:"skip_reason,omitempty"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
	Primary    Locale     `json:"primary"`
	Backend    *Locale    `json:"backend,omitempty"`
}

type RepairResult struct {
	Repaired bool           `json:"repaired"`
	Check    ValidateResult `json:"check"`
}

type memberGate interface {
	AuthorizeMember(ctx context.Context, userID snowflake.ID, slug string) (snowflake.ID, string, error)
}

type policyChecker interface {
	Authorize(ctx context.Context, actor, orgID, object, action string) error
}

type backendClient interface {
	SyncLocale(ctx context.Context, orgID snowflake.ID, orgSlug string, locale Locale) error
	FetchLocale(ctx context.Context, orgID snowflake.ID, orgSlug string) (*Locale, error)
}

// Orchestrator owns the dual-write between the local store and the
// backend for locale settings, plus drift detection and repair.
type Orchestrator struct {
	repo    orgdomain.Repository
	gate    memberGate
	authz   policyChecker
	catalog *reference.Catalog
	backend backendClient
	audit   auditdomain.Service
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

type OrchestratorParams struct {
	fx.In

	Repo    orgdomain.Repository
	Orgs    orgdomain.Service
	Authz   authorization.Service
	Catalog *reference.Catalog
	Client  *Client
	Log     *zap.Logger
	Audit   auditdomain.Service `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func NewOrchestrator(p OrchestratorParams) *Orchestrator {
	return &Orchestrator{
		repo:    p.Repo,
		gate:    p.Orgs,
		authz:   p.Authz,
		catalog: p.Catalog,
		backend: p.Client,
		audit:   p.Audit,
		log:     p.Log.Named("billingsync.orchestrator"),
		metrics: p.Metrics,
	}
}

// UpdateLocale validates, authorizes and then writes the locale to the
// backend before the local store. The ordering is deliberate: a locale the
// backend never accepted must not become the local truth.
func (o *Orchestrator) UpdateLocale(ctx context.Context, userID snowflake.ID, slug string, req UpdateLocaleRequest) (*UpdateLocaleResponse, error) {
	currency := strings.ToUpper(strings.TrimSpace(req.DefaultCurrency))
	timezone := strings.TrimSpace(req.DefaultTimezone)

	if !o.catalog.ValidCurrency(currency) {
		return nil, orgdomain.ErrInvalidCurrency
	}
	if !o.catalog.ValidTimezone(timezone) {
		return nil, orgdomain.ErrInvalidTimezone
	}

	orgID, _, err := o.gate.AuthorizeMember(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	if err := o.authz.Authorize(ctx, "user:"+userID.String(), orgID.String(), authorization.ObjectLocale, authorization.ActionLocaleUpdate); err != nil {
		return nil, err
	}

	if err := o.backend.SyncLocale(ctx, orgID, slug, Locale{DefaultCurrency: currency, DefaultTimezone: timezone}); err != nil {
		o.metrics.RecordLocaleSyncOutcome(ctx, orgID.String(), SyncOutcomeFailedNoSync)
		return nil, err
	}

	if err := o.repo.UpdateLocale(ctx, orgID, currency, timezone); err != nil {
		o.metrics.RecordLocaleSyncOutcome(ctx, orgID.String(), SyncOutcomeFailedPartial)
		o.recordAudit(ctx, orgID, userID, "organization.locale.update_partial", map[string]any{
			"outcome":          SyncOutcomeFailedPartial,
			"default_currency": currency,
			"default_timezone": timezone,
		})
		return nil, fmt.Errorf("%w: %v", ErrPrimaryAfterBackend, err)
	}

	o.metrics.RecordLocaleSyncOutcome(ctx, orgID.String(), SyncOutcomeSuccess)
	o.recordAudit(ctx, orgID, userID, "organization.locale.updated", map[string]any{
		"outcome":          SyncOutcomeSuccess,
		"default_currency": currency,
		"default_timezone": timezone,
	})

	// Both stores hold the value we just wrote, so echo it back rather
	// than re-reading.
	return &UpdateLocaleResponse{
		Slug:            slug,
		DefaultCurrency: currency,
		DefaultTimezone: timezone,
	}, nil
}

// ValidateSync compares the locale in both stores for one organization.
func (o *Orchestrator) ValidateSync(ctx context.Context, slug string) (*ValidateResult, error) {
	org, err := o.org(ctx, slug)
	if err != nil {
		return nil, err
	}

	result, err := o.drift(ctx, org)
	if err != nil {
		return nil, err
	}

	o.metrics.RecordDriftCheck(ctx, org.ID.String(), result.InSync)
	return result, nil
}

// RepairSync pushes the local locale backend-ward when the stores drifted
// apart. The local store holds the operator-intended value, so repair only
// ever writes in that direction. Repairing an in-sync organization is a
// no-op, which makes the operation safe to re-run.
func (o *Orchestrator) RepairSync(ctx context.Context, slug string) (*RepairResult, error) {
	org, err := o.org(ctx, slug)
	if err != nil {
		return nil, err
	}

	check, err := o.drift(ctx, org)
	if err != nil {
		return nil, err
	}
	o.metrics.RecordDriftCheck(ctx, org.ID.String(), check.InSync)

	if check.InSync {
		return &RepairResult{Repaired: false, Check: *check}, nil
	}

	if err := o.backend.SyncLocale(ctx, org.ID, org.Slug, check.Primary); err != nil {
		return nil, err
	}

	o.metrics.RecordDriftRepair(ctx, org.ID.String())
	o.recordAudit(ctx, org.ID, 0, "organization.sync_repaired", map[string]any{
		"default_currency": check.Primary.DefaultCurrency,
		"default_timezone": check.Primary.DefaultTimezone,
	})

	return &RepairResult{Repaired: true, Check: *check}, nil
}

func (o *Orchestrator) org(ctx context.Context, slug string) (*orgdomain.Organization, error) {
	org, err := o.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, orgdomain.ErrOrgNotFound
	}
	return org, nil
}

func (o *Orchestrator) drift(ctx context.Context, org *orgdomain.Organization) (*ValidateResult, error) {
	primary := Locale{
		DefaultCurrency: org.DefaultCurrency,
		DefaultTimezone: org.DefaultTimezone,
	}

	backend, err := o.backend.FetchLocale(ctx, org.ID, org.Slug)
	switch {
	case errors.Is(err, ErrNotConfigured):
		return &ValidateResult{InSync: true, SkipReason: SkipReasonNotConfigured, Primary: primary}, nil
	case errors.Is(err, ErrNoAPIKey):
		return &ValidateResult{InSync: true, SkipReason: SkipReasonNoAPIKey, Primary: primary}, nil
	case err != nil:
		return nil, err
	}

	var mismatches []Mismatch
	if primary.DefaultCurrency != backend.DefaultCurrency {
		mismatches = append(mismatches, Mismatch{
			Field:   "default_currency",
			Primary: primary.DefaultCurrency,
			Backend: backend.DefaultCurrency,
		})
	}
	if primary.DefaultTimezone != backend.DefaultTimezone {
		mismatches = append(mismatches, Mismatch{
			Field:   "default_timezone",
			Primary: primary.DefaultTimezone,
			Backend: backend.DefaultTimezone,
		})
	}

	return &ValidateResult{
		InSync:     len(mismatches) == 0,
		Mismatches: mismatches,
		Primary:    primary,
		Backend:    backend,
	}, nil
}

func (o *Orchestrator) recordAudit(ctx context.Context, orgID, userID snowflake.ID, action string, metadata map[string]any) {
	if o.audit == nil {
		return
	}

	actorType := string(auditdomain.ActorTypeSystem)
	var actorID *string
	if userID != 0 {
		actorType = string(auditdomain.ActorTypeUser)
		id := userID.String()
		actorID = &id
	}

	targetID := orgID.String()
	if err := o.audit.AuditLog(ctx, &orgID, actorType, actorID, action, "organization", &targetID, metadata); err != nil {
		o.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
