package postgres

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_pulse/internal/modules/config"
	"market_pulse/pkg/db"
)

// Module поднимает пул, только если задан db_dsn; иначе отдаёт nil.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*db.PgTxManager, error) {
				if cfg.DB == "" {
					return nil, nil
				}
				ctx := context.Background()
				pool, err := db.NewPool(ctx, db.PoolConfig{
					DSN:      cfg.DB,
					MaxConns: int32(cfg.Bootstrap.Concurrency),
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create pool: %w", err)
				}

				err = pool.Ping(ctx)
				if err != nil {
					pool.Close()
					return nil, fmt.Errorf("postgres ping: %w", err)
				}
				log.Info("postgres connected")

				tx := db.NewPgTxManager(pool)
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						tx.Close()
						return nil
					},
				})
				return tx, nil
			},
		),
	)
}
