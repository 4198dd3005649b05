package broadcast

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_pulse/internal/modules/broadcast/service"
	"market_pulse/internal/modules/config"
	health "market_pulse/internal/modules/health/service"
)

func Module() fx.Option {
	return fx.Module("broadcast",
		fx.Provide(
			service.NewRegistry,
		),
		fx.Invoke(
			// источник снапшотов подключается после сборки движка
			func(reg *service.Registry, src service.SnapshotSource) {
				reg.SetSource(src)
			},
			RunHTTP,
			RunRedis,
		),
	)
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, reg *service.Registry, state *health.State, log *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.Service.PublicPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           service.NewRouter(reg, cfg.Service.StaticDir, log.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			log.Info("public http listening", zap.String("addr", addr))
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					log.Error("public http stopped", zap.Error(err))
				}
			}()
			state.SetReady(true)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			state.SetReady(false)
			return srv.Shutdown(ctx)
		},
	})
}

// RunRedis подключает перепубликацию в Redis, если задан redis.addr.
func RunRedis(lc fx.Lifecycle, cfg *config.Config, reg *service.Registry, log *zap.Logger) {
	if cfg.Redis.Addr == "" {
		return
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	obs := service.NewRedisObserver(client, cfg.Redis.Channel, log)

	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				// Redis опционален: без него работаем дальше
				log.Warn("redis unavailable, publishing disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			}
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())
			go obs.Run(runCtx)
			if _, err := reg.Subscribe(obs); err != nil {
				log.Warn("redis initial snapshot", zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			reg.Unsubscribe(obs.ID())
			if cancel != nil {
				cancel()
			}
			obs.Wait()
			return client.Close()
		},
	})
}
