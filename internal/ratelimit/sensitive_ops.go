package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/costscopehq/costscope/internal/config"
	obsmetrics "github.com/costscopehq/costscope/internal/observability/metrics"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const (
	keyDeletionRequest = "sensitive:deletion:org:%s"
	keySyncRepair      = "sensitive:repair:org:%s"
	keyRepairLock      = "sensitive:repair:lock:%s"

	EndpointDeletionRequest = "deletion_request"
	EndpointSyncRepair      = "sync_repair"
)

// SensitiveOpLimiter throttles deletion-token issuance and sync repair
// per organization. A nil limiter (rate limiting disabled) allows
// everything.
type SensitiveOpLimiter struct {
	bucket *TokenBucket
	locker *Locker

	deletionRate  float64
	deletionBurst int
	repairRate    float64
	repairBurst   int
	repairLockTTL time.Duration

	metrics *obsmetrics.Metrics
}

type Params struct {
	fx.In

	Config  config.Config
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func NewSensitiveOpLimiter(p Params) (*SensitiveOpLimiter, error) {
	cfg := p.Config.RateLimit
	if !cfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(p.Config.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if cfg.DeletionRate <= 0 || cfg.DeletionBurst <= 0 {
		return nil, errors.New("deletion rate limit must be positive")
	}
	if cfg.RepairRate <= 0 || cfg.RepairBurst <= 0 {
		return nil, errors.New("repair rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(p.Config.RedisPassword),
		DB:       cfg.RedisDB,
	})

	return &SensitiveOpLimiter{
		bucket:        NewTokenBucket(client),
		locker:        NewLocker(client),
		deletionRate:  cfg.DeletionRate,
		deletionBurst: cfg.DeletionBurst,
		repairRate:    cfg.RepairRate,
		repairBurst:   cfg.RepairBurst,
		repairLockTTL: time.Duration(cfg.RepairLockTTLSeconds) * time.Second,
		metrics:       p.Metrics,
	}, nil
}

func (l *SensitiveOpLimiter) Enabled() bool {
	return l != nil
}

// AllowDeletionRequest gates issuing a new deletion confirmation token.
func (l *SensitiveOpLimiter) AllowDeletionRequest(ctx context.Context, orgID string) (*Result, error) {
	return l.allow(ctx, fmt.Sprintf(keyDeletionRequest, strings.TrimSpace(orgID)), orgID, EndpointDeletionRequest, l.deletionRate, l.deletionBurst)
}

// AllowSyncRepair gates the drift repair endpoint.
func (l *SensitiveOpLimiter) AllowSyncRepair(ctx context.Context, orgID string) (*Result, error) {
	return l.allow(ctx, fmt.Sprintf(keySyncRepair, strings.TrimSpace(orgID)), orgID, EndpointSyncRepair, l.repairRate, l.repairBurst)
}

func (l *SensitiveOpLimiter) allow(ctx context.Context, key, orgID, endpoint string, rate float64, burst int) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}

	result, err := l.bucket.Allow(ctx, key, rate, burst)
	if err != nil {
		return nil, err
	}

	if result.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, orgID, endpoint)
	} else {
		l.metrics.RecordRateLimitDenied(ctx, orgID, endpoint, "token_bucket")
	}
	return result, nil
}

// TryLockRepair serializes repairs per organization so two operators
// cannot push conflicting backend writes at once.
func (l *SensitiveOpLimiter) TryLockRepair(ctx context.Context, orgID string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, fmt.Sprintf(keyRepairLock, strings.TrimSpace(orgID)), l.repairLockTTL)
}

func (l *SensitiveOpLimiter) ReleaseRepair(ctx context.Context, orgID, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, fmt.Sprintf(keyRepairLock, strings.TrimSpace(orgID)), token)
}
