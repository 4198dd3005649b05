package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"market_pulse/internal/candles"
	"market_pulse/internal/fusion"
	"market_pulse/internal/models"
	bootstrap "market_pulse/internal/modules/bootstrap/service"
	"market_pulse/internal/modules/config"
)

func indicatorsCmd() *cobra.Command {
	var symbol string
	cmd := &cobra.Command{
		Use:   "indicators",
		Short: "fetch recent candles once and print indicators with their sub-signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			return printIndicators(ctx, cfg, strings.ToUpper(symbol))
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "BTCUSDT", "instrument symbol")
	return cmd
}

func printIndicators(ctx context.Context, cfg *config.Config, symbol string) error {
	src := bootstrap.NewBinanceSource(cfg.Bootstrap.BinanceBaseURL, 0)
	history, err := src.Candles(ctx, symbol, cfg.Feeds.KlineInterval, cfg.Bootstrap.Limit)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return errors.Errorf("no candles for %s", symbol)
	}

	series := candles.NewSeries()
	for _, c := range history {
		series.Ingest(c.Close, c.Volume, c.BucketStart, &models.OHLCV{
			Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume,
		})
	}

	ind := fusion.Compute(series.Closes(), series.Volumes(), nil)
	last, _ := series.Last()
	neutral := models.OrderBookSignal{State: models.StateNeutral, Direction: models.DirectionNeutral}
	res := fusion.Fuse(ind, neutral, nil, fusion.Bands(cfg.Engine.ATRBands).For(symbol, last.Close))

	out := map[string]any{
		"symbol":          symbol,
		"candles":         series.Len(),
		"close":           last.Close,
		"indicators":      ind,
		"signals":         res.Signals,
		"longPercentage":  res.Long,
		"shortPercentage": res.Short,
	}
	bs, err := sonic.ConfigStd.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode")
	}
	_, err = fmt.Fprintln(os.Stdout, string(bs))
	return err
}
