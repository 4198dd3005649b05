package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market_pulse/internal/models"
	"market_pulse/internal/modules/config"
)

func TestBuildFeeds(t *testing.T) {
	cfg := &config.Config{
		Symbols: []string{"BTCUSDT", "ETHUSDT"},
		Feeds: config.FeedsConfig{
			SpotURL:       "wss://spot/stream",
			FuturesURL:    "wss://fut/stream",
			DepthLevels:   20,
			DepthSpeed:    100 * time.Millisecond,
			KlineInterval: "15m",
		},
	}
	feeds := BuildFeeds(cfg)
	require.Len(t, feeds, 3)

	assert.Equal(t, "wss://spot/stream?streams=btcusdt@ticker/btcusdt@kline_15m/ethusdt@ticker/ethusdt@kline_15m", feeds[0].URL())
	assert.Equal(t, models.MarketFutures, feeds[1].Market)
	assert.Equal(t, []string{"btcusdt@ticker", "ethusdt@ticker"}, feeds[1].Streams)
	assert.Equal(t, []string{"btcusdt@depth20@100ms", "ethusdt@depth20@100ms"}, feeds[2].Streams)
}

// Каждое подключение получает один кадр и закрывается сервером.
func TestStreamReconnectsAfterServerClose(t *testing.T) {
	var conns atomic.Int32
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "btcusdt@ticker", r.URL.Query().Get("streams"))
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		conns.Add(1)
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"result":null,"id":1}`))
		_ = c.WriteMessage(websocket.TextMessage,
			[]byte(`{"stream":"btcusdt@ticker","data":{"s":"BTCUSDT","c":"100.5","E":1}}`))
	}))
	defer srv.Close()

	var connected, disconnected, decodeErrs atomic.Int32
	hooks := Hooks{
		OnConnect:    func(string) { connected.Add(1) },
		OnDisconnect: func(string, error) { disconnected.Add(1) },
		OnDecodeErr:  func(string, error) { decodeErrs.Add(1) },
	}
	spec := FeedSpec{
		Name:    FeedSpot,
		Market:  models.MarketSpot,
		BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream",
		Streams: []string{"btcusdt@ticker"},
	}
	s := NewStream(spec, 10*time.Millisecond, hooks, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan models.Event, 16)
	done := make(chan struct{})
	go func() {
		s.Run(ctx, out)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case ev := <-out:
			assert.Equal(t, "BTCUSDT", ev.Symbol)
			assert.InDelta(t, 100.5, ev.Ticker.LastPrice, 1e-9)
		case <-time.After(3 * time.Second):
			t.Fatal("no event")
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not stop")
	}

	assert.GreaterOrEqual(t, conns.Load(), int32(2))
	assert.GreaterOrEqual(t, connected.Load(), int32(2))
	assert.Equal(t, connected.Load(), disconnected.Load())
	assert.GreaterOrEqual(t, decodeErrs.Load(), int32(2))
}

func TestStreamStopsWhileDialFails(t *testing.T) {
	spec := FeedSpec{Name: FeedFutures, BaseURL: "ws://127.0.0.1:1/stream", Streams: []string{"x@ticker"}}
	s := NewStream(spec, 5*time.Millisecond, Hooks{}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx, make(chan models.Event))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not stop")
	}
}
