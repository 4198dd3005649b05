package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"market_pulse/internal/fusion"
	"market_pulse/internal/models"
	"market_pulse/internal/modules/config"
	health "market_pulse/internal/modules/health/service"
	"market_pulse/internal/notify"
	"market_pulse/pkg/tracing"
)

const (
	TriggerEvent     = "event"
	TriggerHeartbeat = "heartbeat"
)

// Publisher: куда уходит карта снапшотов (реестр наблюдателей).
type Publisher interface {
	Publish(ctx context.Context, m models.SnapshotMap) (int, error)
}

// Engine применяет события фидов к Store и публикует снапшоты: по событию
// (схлопнуто в один pending-триггер) и по heartbeat.
type Engine struct {
	store     *Store
	bands     fusion.Bands
	timeframe string
	heartbeat time.Duration
	limiter   *rate.Limiter

	pub      Publisher
	notifier notify.Notifier
	state    *health.State
	metrics  *health.Metrics
	log      *zap.Logger

	trigger chan struct{}
	now     func() time.Time
}

func NewEngine(
	cfg *config.Config,
	store *Store,
	pub Publisher,
	notifier notify.Notifier,
	state *health.State,
	metrics *health.Metrics,
	log *zap.Logger,
) *Engine {
	limit := rate.Inf
	if cfg.Engine.MinPublishInterval > 0 {
		limit = rate.Every(cfg.Engine.MinPublishInterval)
	}
	return &Engine{
		store:     store,
		bands:     fusion.Bands(cfg.Engine.ATRBands),
		timeframe: cfg.Engine.Timeframe,
		heartbeat: cfg.Engine.Heartbeat,
		limiter:   rate.NewLimiter(limit, 1),
		pub:       pub,
		notifier:  notifier,
		state:     state,
		metrics:   metrics,
		log:       log.Named("engine"),
		trigger:   make(chan struct{}, 1),
		now:       time.Now,
	}
}

func (e *Engine) Store() *Store { return e.store }

// Instrument: get-or-create с учётом метрики.
func (e *Engine) Instrument(symbol string) *Instrument {
	in, created := e.store.GetOrCreate(symbol)
	if created {
		e.metrics.Instruments.Set(float64(e.store.Len()))
	}
	return in
}

// LoadHistory заливает свечи начальной загрузки в серию символа.
func (e *Engine) LoadHistory(symbol string, candles []models.Candle) int {
	in := e.Instrument(symbol)
	n := in.ApplyHistory(candles)
	e.metrics.Candles.WithLabelValues(in.Symbol()).Set(float64(in.CandleCount()))
	if n > 0 {
		e.requestPublish()
	}
	return n
}

// Handle применяет одно событие. Публикация только запрашивается.
func (e *Engine) Handle(ctx context.Context, ev models.Event) {
	now := e.now()
	e.state.TouchEvent(now)
	e.metrics.FeedEvents.WithLabelValues(ev.Feed, string(ev.Kind)).Inc()

	in := e.Instrument(ev.Symbol)
	changed := false

	switch ev.Kind {
	case models.EventTicker:
		if ev.Ticker != nil {
			changed = in.ApplyTicker(ev.Market, *ev.Ticker, now)
		}
	case models.EventKline:
		if ev.Kline != nil {
			changed = in.ApplyKline(*ev.Kline)
		}
	case models.EventDepth:
		if ev.Depth != nil {
			prev, cur, ok := in.ApplyDepth(*ev.Depth, now)
			changed = ok
			if ok && prev != cur {
				e.onStateChange(ctx, in, prev, cur)
			}
		}
	}

	if changed {
		e.requestPublish()
	}
}

func (e *Engine) onStateChange(ctx context.Context, in *Instrument, prev, cur models.SignalState) {
	e.log.Debug("order book state",
		zap.String("symbol", in.Symbol()),
		zap.String("from", string(prev)),
		zap.String("to", string(cur)),
	)
	if cur != models.StateConfirmedLong && cur != models.StateConfirmedShort {
		return
	}
	snap, ok := in.Snapshot(e.bands, e.timeframe, e.now())
	if !ok {
		e.notifier.SendService(ctx, "%s: %s", in.Symbol(), cur)
		return
	}
	e.notifier.SendService(ctx, "%s *%s* %s\nЦена: `%.2f`\nLong `%.0f` / Short `%.0f`",
		emoji(cur), snap.Symbol, cur, snap.Spot.Price, snap.LongPercentage, snap.ShortPercentage)
}

func emoji(s models.SignalState) string {
	if s == models.StateConfirmedLong {
		return "🟢"
	}
	return "🔴"
}

func (e *Engine) requestPublish() {
	select {
	case e.trigger <- struct{}{}:
	default: // уже запрошено
	}
}

// Current строит карту по всем инструментам, у которых есть обе цены.
func (e *Engine) Current() models.SnapshotMap {
	now := e.now()
	out := make(models.SnapshotMap)
	for _, in := range e.store.All() {
		if snap, ok := in.Snapshot(e.bands, e.timeframe, now); ok {
			out[snap.Symbol] = snap
		}
	}
	return out
}

// Publish строит и отправляет карту. Пустая карта не публикуется.
func (e *Engine) Publish(ctx context.Context, trigger string) {
	span, ctx := tracing.StartSpan(ctx, "engine.publish", "")
	defer span.Finish()
	span.SetTag("trigger", trigger)

	m := e.Current()
	for sym, snap := range m {
		e.metrics.Candles.WithLabelValues(sym).Set(float64(snap.Candles))
	}
	if len(m) == 0 {
		return
	}

	delivered, err := e.pub.Publish(ctx, m)
	if err != nil {
		span.SetTag("error", true)
		e.log.Error("publish failed", zap.Error(err))
		return
	}
	e.metrics.Publishes.WithLabelValues(trigger).Inc()
	e.state.TouchPublish(e.now())
	span.SetTag("delivered", delivered)
}

// Run: цикл событий и цикл публикации; блокируется до отмены ctx или закрытия events.
func (e *Engine) Run(ctx context.Context, events <-chan models.Event) {
	pubCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.publishLoop(pubCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.Handle(ctx, ev)
		}
	}
}

func (e *Engine) publishLoop(ctx context.Context) {
	hb := time.NewTicker(e.heartbeat)
	defer hb.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-hb.C:
			e.Publish(ctx, TriggerHeartbeat)
		case <-e.trigger:
			if err := e.limiter.Wait(ctx); err != nil {
				return
			}
			e.Publish(ctx, TriggerEvent)
		}
	}
}
