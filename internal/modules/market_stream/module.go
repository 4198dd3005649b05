package market_stream

import (
	"context"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_pulse/internal/models"
	"market_pulse/internal/modules/config"
	health "market_pulse/internal/modules/health/service"
	"market_pulse/internal/modules/market_stream/service"
	"market_pulse/internal/notify"
)

const eventBuffer = 4096

// Module поднимает три WS-фида Binance и пишет события в общий канал.
func Module() fx.Option {
	return fx.Module("market_stream",
		fx.Provide(
			func() chan models.Event {
				// общий буфер событий для движка
				return make(chan models.Event, eventBuffer)
			},
			service.BuildFeeds,
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			cfg *config.Config,
			feeds []service.FeedSpec,
			out chan models.Event,
			state *health.State,
			metrics *health.Metrics,
			n notify.Notifier,
			log *zap.Logger,
		) {
			hooks := NewHooks(state, metrics, n)
			ctx, cancel := context.WithCancel(context.Background())
			var wg sync.WaitGroup

			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					for _, f := range feeds {
						s := service.NewStream(f, cfg.Feeds.ReconnectDelay, hooks, log)
						wg.Add(1)
						go func() {
							defer wg.Done()
							s.Run(ctx, out)
						}()
					}
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					wg.Wait()
					return nil
				},
			})
		}),
	)
}

// NewHooks связывает состояние фидов с health, метриками и уведомлениями.
func NewHooks(state *health.State, metrics *health.Metrics, n notify.Notifier) service.Hooks {
	bg := context.Background()
	var (
		mu   sync.Mutex
		seen = make(map[string]bool) // фид уже подключался: повтор = reconnect
	)
	return service.Hooks{
		OnConnect: func(feed string) {
			state.SetFeedConnected(feed, true)
			mu.Lock()
			again := seen[feed]
			seen[feed] = true
			mu.Unlock()
			if again {
				metrics.FeedReconnects.WithLabelValues(feed).Inc()
			}
			n.SendService(bg, "▶️ WS %s: подключен", feed)
		},
		OnDisconnect: func(feed string, err error) {
			state.SetFeedConnected(feed, false)
			n.SendService(bg, "❌ WS %s: обрыв (%v), переподключение", feed, err)
		},
		OnDecodeErr: func(feed string, _ error) {
			metrics.DecodeErrors.WithLabelValues(feed).Inc()
		},
	}
}
