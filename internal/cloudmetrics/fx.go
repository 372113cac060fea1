package cloudmetrics

import (
	"context"
	"time"

	"github.com/costscopehq/costscope/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("cloud.metrics",
	fx.Invoke(Register),
)

// Register starts the fleet metrics collector and exporter when metrics
// push is enabled. Misconfiguration logs a warning and leaves the
// deployment running without the push; it never blocks startup.
func Register(lc fx.Lifecycle, cfg config.Config, db *gorm.DB, logger *zap.Logger) {
	if !cfg.Metrics.Enabled {
		return
	}
	logger = logger.Named("cloudmetrics")

	exporterCfg, err := parseExporterConfig(cfg)
	if err != nil {
		logger.Warn("fleet metrics push disabled", zap.Error(err))
		return
	}

	registry := prometheus.NewRegistry()
	metrics := newFleetMetrics(registry)
	exp := newExporter(registry, exporterCfg, logger)

	collectCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(exportInterval)
				defer ticker.Stop()

				metrics.collectSystem()
				metrics.collectFleet(collectCtx, db)
				for {
					select {
					case <-ticker.C:
						metrics.collectSystem()
						metrics.collectFleet(collectCtx, db)
					case <-collectCtx.Done():
						return
					}
				}
			}()
			exp.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			<-done
			return exp.Stop(ctx)
		},
	})
}
