package service

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"market_pulse/internal/models"
	health "market_pulse/internal/modules/health/service"
	"market_pulse/internal/notify"
	"market_pulse/pkg/tracing"
)

// Target: куда заливается история одного символа.
type Target interface {
	LoadHistory(symbol string, candles []models.Candle) int
}

type Result struct {
	Loaded map[string]int
	Failed map[string]error
}

// Warmuper грузит историю по символам параллельно (не больше concurrency).
// Ошибка одного символа не останавливает остальные: символ стартует с пустой серией.
type Warmuper struct {
	src         HistorySource
	target      Target
	interval    string
	limit       int
	concurrency int

	n       notify.Notifier
	metrics *health.Metrics
	log     *zap.Logger
}

func NewWarmuper(
	src HistorySource,
	target Target,
	interval string,
	limit, concurrency int,
	n notify.Notifier,
	metrics *health.Metrics,
	log *zap.Logger,
) *Warmuper {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Warmuper{
		src:         src,
		target:      target,
		interval:    interval,
		limit:       limit,
		concurrency: concurrency,
		n:           n,
		metrics:     metrics,
		log:         log.Named("bootstrap"),
	}
}

func (w *Warmuper) Warmup(ctx context.Context, symbols []string) Result {
	res := Result{Loaded: make(map[string]int), Failed: make(map[string]error)}
	if len(symbols) == 0 {
		return res
	}

	type outcome struct {
		n   int
		err error
	}
	outcomes := make([]outcome, len(symbols))
	var total atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			span, sctx := tracing.StartSpan(gctx, "bootstrap.instrument", sym)
			defer span.Finish()

			candles, err := w.src.Candles(sctx, sym, w.interval, w.limit)
			if err != nil {
				span.SetTag("error", true)
				outcomes[i] = outcome{err: err}
				return nil // не роняем остальные символы
			}
			n := w.target.LoadHistory(sym, candles)
			outcomes[i] = outcome{n: n}
			total.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()

	for i, sym := range symbols {
		o := outcomes[i]
		if o.err != nil {
			res.Failed[sym] = o.err
			w.metrics.BootstrapFailed.Inc()
			w.log.Warn("history load failed, starting empty", zap.String("symbol", sym), zap.Error(o.err))
			continue
		}
		res.Loaded[sym] = o.n
		w.log.Info("history loaded", zap.String("symbol", sym), zap.Int("candles", o.n))
	}

	if len(res.Failed) > 0 {
		w.n.SendService(ctx, "⚠️ Bootstrap: %d/%d symbols failed, candles=%d", len(res.Failed), len(symbols), total.Load())
	} else {
		w.n.SendService(ctx, "✅ Bootstrap: %d symbols, candles=%d", len(symbols), total.Load())
	}
	return res
}
