package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// SyncPolicy tunes the backend locale-sync client. Values map directly to
// the retry loop: MaxAttempts HTTP attempts, BackoffStep*attempt pause
// between attempts, RequestTimeout per attempt.
type SyncPolicy struct {
	MaxAttempts    int           `mapstructure:"maxAttempts"`
	BackoffStep    time.Duration `mapstructure:"backoffStep"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`
}

func DefaultSyncPolicy() SyncPolicy {
	return SyncPolicy{
		MaxAttempts:    3,
		BackoffStep:    time.Second,
		RequestTimeout: 15 * time.Second,
	}
}

// SyncPolicyHolder serves the current policy and hot-reloads it when the
// config file changes.
type SyncPolicyHolder struct {
	current atomic.Value // holds SyncPolicy
}

func NewSyncPolicyHolder() (*SyncPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("sync")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/costscope/config")
	v.AddConfigPath("/etc/costscope")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COSTSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultSyncPolicy()
	v.SetDefault("sync.maxAttempts", defaults.MaxAttempts)
	v.SetDefault("sync.backoffStep", defaults.BackoffStep)
	v.SetDefault("sync.requestTimeout", defaults.RequestTimeout)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var policy SyncPolicy
	if err := v.UnmarshalKey("sync", &policy); err != nil {
		return nil, err
	}
	if err := validateSyncPolicy(policy); err != nil {
		return nil, err
	}

	holder := &SyncPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SyncPolicy
		if err := v.UnmarshalKey("sync", &updated); err != nil {
			log.Printf("[sync-config] reload failed: %v", err)
			return
		}
		if err := validateSyncPolicy(updated); err != nil {
			log.Printf("[sync-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[sync-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *SyncPolicyHolder) Get() SyncPolicy {
	return h.current.Load().(SyncPolicy)
}

func validateSyncPolicy(policy SyncPolicy) error {
	if policy.MaxAttempts < 1 {
		return errors.New("sync.maxAttempts must be at least 1")
	}
	if policy.BackoffStep < 0 {
		return errors.New("sync.backoffStep cannot be negative")
	}
	if policy.RequestTimeout <= 0 {
		return errors.New("sync.requestTimeout must be positive")
	}
	return nil
}
