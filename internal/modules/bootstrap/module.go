package bootstrap

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	bootstrap "market_pulse/internal/modules/bootstrap/service"
	"market_pulse/internal/modules/config"
	health "market_pulse/internal/modules/health/service"
	"market_pulse/internal/notify"
	"market_pulse/pkg/db"
)

// NewHistorySource выбирает источник по bootstrap.source. tx == nil, если db_dsn не задан.
func NewHistorySource(cfg *config.Config, tx *db.PgTxManager) bootstrap.HistorySource {
	switch cfg.Bootstrap.Source {
	case config.BootstrapPostgres:
		if tx != nil {
			return bootstrap.NewPostgresSource(tx)
		}
		return bootstrap.NoneSource{}
	case config.BootstrapNone:
		return bootstrap.NoneSource{}
	default:
		return bootstrap.NewBinanceSource(cfg.Bootstrap.BinanceBaseURL, cfg.Bootstrap.RateInterval)
	}
}

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			NewHistorySource,
			func(
				cfg *config.Config,
				src bootstrap.HistorySource,
				target bootstrap.Target,
				n notify.Notifier,
				m *health.Metrics,
				log *zap.Logger,
			) *bootstrap.Warmuper {
				return bootstrap.NewWarmuper(src, target, cfg.Feeds.KlineInterval,
					cfg.Bootstrap.Limit, cfg.Bootstrap.Concurrency, n, m, log)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, wu *bootstrap.Warmuper, log *zap.Logger) {
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					// история грузится параллельно с живыми фидами
					go func() {
						res := wu.Warmup(ctx, cfg.Symbols)
						log.Info("bootstrap done", zap.Int("loaded", len(res.Loaded)), zap.Int("failed", len(res.Failed)))
					}()
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
