package engine

import (
	"context"

	"go.uber.org/fx"

	"market_pulse/internal/models"
	bootstrap "market_pulse/internal/modules/bootstrap/service"
	broadcast "market_pulse/internal/modules/broadcast/service"
	"market_pulse/internal/modules/engine/service"
	telegram "market_pulse/internal/modules/telegram_bot/service"
)

func Module() fx.Option {
	return fx.Module("engine",
		fx.Provide(
			service.NewStore,
			func(r *broadcast.Registry) service.Publisher { return r },
			service.NewEngine,

			// Адаптеры: движок как источник снапшотов и цель начальной загрузки
			func(e *service.Engine) broadcast.SnapshotSource { return e },
			func(e *service.Engine) telegram.SnapshotSource { return e },
			func(e *service.Engine) bootstrap.Target { return e },
		),
		fx.Invoke(func(lc fx.Lifecycle, e *service.Engine, events chan models.Event) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						e.Run(ctx, events)
					}()
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					cancel()
					select {
					case <-done:
					case <-stopCtx.Done():
					}
					return nil
				},
			})
		}),
	)
}
