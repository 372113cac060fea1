package reference

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/costscopehq/costscope/internal/reference/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Catalog holds the supported currency and timezone sets in memory.
// Membership checks are pure lookups; the sets are loaded once at startup.
type Catalog struct {
	repo domain.Repository

	currencies atomic.Pointer[map[string]struct{}]
	timezones  atomic.Pointer[map[string]struct{}]
}

func NewCatalog(lc fx.Lifecycle, repo domain.Repository, log *zap.Logger) *Catalog {
	catalog := &Catalog{repo: repo}

	empty := map[string]struct{}{}
	catalog.currencies.Store(&empty)
	catalog.timezones.Store(&empty)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := catalog.Reload(ctx); err != nil {
				return err
			}
			log.Info("reference catalog loaded",
				zap.Int("currencies", len(*catalog.currencies.Load())),
				zap.Int("timezones", len(*catalog.timezones.Load())),
			)
			return nil
		},
	})

	return catalog
}

// NewStaticCatalog builds a catalog from fixed sets, bypassing the
// repository. Used where reference data is known up front.
func NewStaticCatalog(currencies, timezones []string) *Catalog {
	currencySet := make(map[string]struct{}, len(currencies))
	for _, code := range currencies {
		currencySet[strings.ToUpper(code)] = struct{}{}
	}
	timezoneSet := make(map[string]struct{}, len(timezones))
	for _, name := range timezones {
		timezoneSet[name] = struct{}{}
	}

	catalog := &Catalog{}
	catalog.currencies.Store(&currencySet)
	catalog.timezones.Store(&timezoneSet)
	return catalog
}

// Reload replaces both sets from the repository.
func (c *Catalog) Reload(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}
	currencies, err := c.repo.ListCurrencies(ctx)
	if err != nil {
		return err
	}
	timezones, err := c.repo.ListTimezones(ctx)
	if err != nil {
		return err
	}

	currencySet := make(map[string]struct{}, len(currencies))
	for _, currency := range currencies {
		currencySet[strings.ToUpper(currency.Code)] = struct{}{}
	}
	timezoneSet := make(map[string]struct{}, len(timezones))
	for _, timezone := range timezones {
		timezoneSet[timezone.Name] = struct{}{}
	}

	c.currencies.Store(&currencySet)
	c.timezones.Store(&timezoneSet)
	return nil
}

// ValidCurrency reports whether code is a supported ISO 4217 code.
// Comparison is case-insensitive; an empty code is never valid.
func (c *Catalog) ValidCurrency(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return false
	}
	_, ok := (*c.currencies.Load())[code]
	return ok
}

// ValidTimezone reports whether name is a supported IANA timezone.
// Names are matched exactly; an empty name is never valid.
func (c *Catalog) ValidTimezone(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	_, ok := (*c.timezones.Load())[name]
	return ok
}
