package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"market_pulse/internal/modules/bootstrap"
	"market_pulse/internal/modules/broadcast"
	"market_pulse/internal/modules/config"
	"market_pulse/internal/modules/engine"
	"market_pulse/internal/modules/health"
	"market_pulse/internal/modules/market_stream"
	"market_pulse/internal/modules/postgres"
	telegram "market_pulse/internal/modules/telegram_bot"
	"market_pulse/pkg/logger"
	"market_pulse/pkg/tracing"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run feeds, engine and the broadcast server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	app := fx.New(
		config.Module(),
		fx.Provide(newLogger),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Invoke(initTracing),
		health.Module(),
		postgres.Module(),
		telegram.Module(),
		broadcast.Module(),
		engine.Module(),
		market_stream.Module(),
		bootstrap.Module(),
	)
	app.Run()
	return app.Err()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger.SetServiceName(cfg.Service.Name)
	return logger.New(logger.Config{
		Level:       cfg.Log.Level,
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		Development: cfg.Log.Development,
	})
}

func initTracing(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) error {
	tracing.SetServiceName(cfg.Service.Name)
	_, closeFn, err := tracing.InitTracer(tracing.Config{
		Enabled: cfg.Tracing.Enabled,
		Host:    cfg.Tracing.Host,
		Port:    cfg.Tracing.Port,
	})
	if err != nil {
		return err
	}
	if cfg.Tracing.Enabled {
		log.Info("tracing enabled", zap.String("host", cfg.Tracing.Host), zap.Int("port", cfg.Tracing.Port))
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeFn()
			return nil
		},
	})
	return nil
}
