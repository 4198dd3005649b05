package telegram

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_pulse/internal/modules/config"
	"market_pulse/internal/modules/telegram_bot/service"
	"market_pulse/internal/notify"
)

func Module() fx.Option {
	return fx.Module("telegram",
		// 1. Бот: nil, если токен не задан
		fx.Provide(
			func(cfg *config.Config, log *zap.Logger) (*service.Telegram, error) {
				if cfg.Telegram.Token == "" {
					log.Info("telegram disabled: no token")
					return nil, nil
				}
				return service.NewTelegram(cfg, log)
			},
		),

		// 2. Адаптер: *service.Telegram -> notify.Notifier (лог, если бота нет)
		fx.Provide(
			func(t *service.Telegram, log *zap.Logger) notify.Notifier {
				if t == nil {
					return notify.NewLog(log)
				}
				return t
			},
		),

		// Запуск основного цикла через Lifecycle
		fx.Invoke(
			func(lc fx.Lifecycle, t *service.Telegram, src service.SnapshotSource) {
				if t == nil {
					return
				}
				t.SetSource(src)
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						// ctx OnStart живёт только до конца старта
						t.Start(context.Background())
						return nil
					},
					OnStop: func(ctx context.Context) error {
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
