package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market_pulse/internal/models"
	"market_pulse/internal/modules/config"
	health "market_pulse/internal/modules/health/service"
	"market_pulse/internal/notify"
)

type fakePublisher struct {
	mu   sync.Mutex
	maps []models.SnapshotMap
	ch   chan models.SnapshotMap
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{ch: make(chan models.SnapshotMap, 64)}
}

func (p *fakePublisher) Publish(_ context.Context, m models.SnapshotMap) (int, error) {
	p.mu.Lock()
	p.maps = append(p.maps, m)
	p.mu.Unlock()
	select {
	case p.ch <- m:
	default:
	}
	return 1, nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.maps)
}

type fixture struct {
	engine  *Engine
	pub     *fakePublisher
	rec     *notify.Recorder
	state   *health.State
	metrics *health.Metrics
	clock   time.Time
}

func newFixture(t *testing.T, heartbeat time.Duration) *fixture {
	t.Helper()
	cfg := &config.Config{Engine: config.EngineConfig{
		Heartbeat:          heartbeat,
		MinPublishInterval: 0,
		Timeframe:          "15m",
	}}
	f := &fixture{
		pub:     newFakePublisher(),
		rec:     notify.NewRecorder(16),
		state:   health.NewState(),
		metrics: health.NewMetrics(),
		clock:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.engine = NewEngine(cfg, NewStore(), f.pub, f.rec, f.state, f.metrics, zap.NewNop())
	f.engine.now = func() time.Time { return f.clock }
	return f
}

func ticker(market models.Market, symbol string, price float64) models.Event {
	feed := "spot"
	if market == models.MarketFutures {
		feed = "futures"
	}
	return models.Event{
		Feed: feed, Market: market, Kind: models.EventTicker, Symbol: symbol,
		Ticker: &models.Ticker{Symbol: symbol, LastPrice: price, Volume: 10},
	}
}

// bids/asks внутри окна ±0.1%, ratio ≈ bidQty/askQty
func depth(symbol string, bidQty, askQty float64) models.Event {
	return models.Event{
		Feed: "depth", Market: models.MarketSpot, Kind: models.EventDepth, Symbol: symbol,
		Depth: &models.Depth{
			Bids: []models.Level{{Price: 100, Qty: bidQty}},
			Asks: []models.Level{{Price: 100.01, Qty: askQty}},
		},
	}
}

func TestSnapshotRequiresBothPrices(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	f.engine.Handle(ctx, ticker(models.MarketSpot, "BTCUSDT", 64000))
	assert.Empty(t, f.engine.Current())

	f.engine.Publish(ctx, TriggerEvent)
	assert.Equal(t, 0, f.pub.count(), "empty map is not published")

	f.engine.Handle(ctx, ticker(models.MarketFutures, "BTCUSDT", 64064))
	m := f.engine.Current()
	require.Contains(t, m, "BTCUSDT")

	snap := m["BTCUSDT"]
	assert.InDelta(t, 64.0, snap.Spread, 1e-9)
	assert.Equal(t, "0.100", snap.SpreadPercent)
	assert.Equal(t, "15m", snap.Timeframe)
	assert.Equal(t, 1, snap.Candles)
	assert.Equal(t, "2024-03-01T12:00:00.000Z", snap.UpdatedAt)
	assert.Nil(t, snap.OrderBook)

	f.engine.Publish(ctx, TriggerEvent)
	assert.Equal(t, 1, f.pub.count())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Publishes.WithLabelValues(TriggerEvent)))
	assert.Equal(t, f.clock.Unix(), f.state.LastPublish().Unix())
}

func TestDepthDrivesStateMachineAndNotifies(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	f.engine.Handle(ctx, ticker(models.MarketSpot, "BTCUSDT", 100))
	f.engine.Handle(ctx, ticker(models.MarketFutures, "BTCUSDT", 100.05))

	f.engine.Handle(ctx, depth("BTCUSDT", 3, 1))
	snap := f.engine.Current()["BTCUSDT"]
	assert.Equal(t, models.StateLongDwell, snap.OrderBookSignal.State)
	require.NotNil(t, snap.OrderBook)
	assert.True(t, snap.OrderBook.RatioValid)

	f.clock = f.clock.Add(20 * time.Second)
	f.engine.Handle(ctx, depth("BTCUSDT", 3, 1))
	snap = f.engine.Current()["BTCUSDT"]
	assert.Equal(t, models.StateConfirmedLong, snap.OrderBookSignal.State)
	assert.Equal(t, models.DirectionLong, snap.OrderBookSignal.Direction)
	assert.Equal(t, 20.0, snap.Signals["orderBook"].Weight)

	select {
	case msg := <-f.rec.Messages():
		assert.Contains(t, msg, "BTCUSDT")
		assert.Contains(t, msg, string(models.StateConfirmedLong))
	default:
		t.Fatal("no notification on confirmation")
	}

	// повторное подтверждение без смены состояния не уведомляет
	f.clock = f.clock.Add(time.Second)
	f.engine.Handle(ctx, depth("BTCUSDT", 3, 1))
	assert.Empty(t, f.rec.Messages())
}

// широкий спред: обе стороны вне окна ±0.1%, ratio не определён
func emptyWindow(symbol string) models.Event {
	return models.Event{
		Feed: "depth", Market: models.MarketSpot, Kind: models.EventDepth, Symbol: symbol,
		Depth: &models.Depth{
			Bids: []models.Level{{Price: 100, Qty: 1}},
			Asks: []models.Level{{Price: 101, Qty: 1}},
		},
	}
}

func TestEmptyWindowResetsDwell(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	f.engine.Handle(ctx, depth("ETHUSDT", 3, 1))
	in, ok := f.engine.Store().Get("ETHUSDT")
	require.True(t, ok)

	f.clock = f.clock.Add(5 * time.Second)
	prev, cur, ok := in.ApplyDepth(*emptyWindow("ETHUSDT").Depth, f.clock)
	assert.True(t, ok)
	assert.Equal(t, models.StateLongDwell, prev)
	assert.Equal(t, models.StateNeutral, cur)

	// dwell начинается заново: к t=21s подтверждения нет
	f.clock = f.clock.Add(16 * time.Second)
	f.engine.Handle(ctx, depth("ETHUSDT", 3, 1))
	_, cur, _ = in.ApplyDepth(*depth("ETHUSDT", 3, 1).Depth, f.clock)
	assert.Equal(t, models.StateLongDwell, cur)
	assert.Empty(t, f.rec.Messages(), "no confirmation is notified")

	_, _, ok = in.ApplyDepth(models.Depth{Bids: []models.Level{{Price: 100, Qty: 1}}}, f.clock)
	assert.False(t, ok, "one-sided book is ignored")
}

func TestLoadHistoryFillsSeries(t *testing.T) {
	f := newFixture(t, time.Hour)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var history []models.Candle
	for i := 0; i < 60; i++ {
		p := 100 + float64(i)
		history = append(history, models.Candle{
			BucketStart: start.Add(time.Duration(i) * 15 * time.Minute),
			Open:        p, High: p + 1, Low: p - 1, Close: p, Volume: 10,
		})
	}
	n := f.engine.LoadHistory("SOLUSDT", history)
	assert.Equal(t, 60, n)

	in, ok := f.engine.Store().Get("SOLUSDT")
	require.True(t, ok)
	assert.Equal(t, 60, in.CandleCount())
	assert.Equal(t, float64(60), testutil.ToFloat64(f.metrics.Candles.WithLabelValues("SOLUSDT")))
}

func TestRunCoalescesAndHeartbeats(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)

	events := make(chan models.Event, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		f.engine.Run(ctx, events)
		close(done)
	}()

	events <- ticker(models.MarketSpot, "BTCUSDT", 100)
	events <- ticker(models.MarketFutures, "BTCUSDT", 100.1)

	select {
	case m := <-f.pub.ch:
		assert.Contains(t, m, "BTCUSDT")
	case <-time.After(2 * time.Second):
		t.Fatal("nothing published")
	}

	// без событий карта продолжает уходить по heartbeat
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.Publishes.WithLabelValues(TriggerHeartbeat)) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	close(events)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after events closed")
	}
}

func TestStoreAllIsSorted(t *testing.T) {
	s := NewStore()
	for _, sym := range []string{"XRPUSDT", "BTCUSDT", "ETHUSDT"} {
		s.GetOrCreate(sym)
	}
	_, created := s.GetOrCreate("BTCUSDT")
	assert.False(t, created)

	var got []string
	for _, in := range s.All() {
		got = append(got, in.Symbol())
	}
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "XRPUSDT"}, got)
}
