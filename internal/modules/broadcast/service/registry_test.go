package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market_pulse/internal/models"
	health "market_pulse/internal/modules/health/service"
)

type fakeObserver struct {
	id      string
	err     error
	panics  bool
	mu      sync.Mutex
	got     [][]byte
	closedN int
}

func (f *fakeObserver) ID() string { return f.id }

func (f *fakeObserver) Send(p []byte) error {
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.got = append(f.got, p)
	f.mu.Unlock()
	return nil
}

func (f *fakeObserver) Close() { f.closedN++ }

func (f *fakeObserver) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.got...)
}

type staticSource models.SnapshotMap

func (s staticSource) Current() models.SnapshotMap { return models.SnapshotMap(s) }

func snapshot(symbols ...string) models.SnapshotMap {
	m := models.SnapshotMap{}
	for _, s := range symbols {
		m[s] = models.FusedSnapshot{Symbol: s, Timeframe: "15m"}
	}
	return m
}

func newRegistry() (*Registry, *health.Metrics) {
	m := health.NewMetrics()
	return NewRegistry(zap.NewNop(), m), m
}

func TestSubscribeDeliversFullCurrentMap(t *testing.T) {
	reg, _ := newRegistry()
	reg.SetSource(staticSource(snapshot("BTCUSDT", "ETHUSDT")))

	o := &fakeObserver{id: "a"}
	current, err := reg.Subscribe(o)
	require.NoError(t, err)
	assert.Len(t, current, 2)

	frames := o.frames()
	require.Len(t, frames, 1)
	var got models.SnapshotMap
	require.NoError(t, sonic.Unmarshal(frames[0], &got))
	assert.Contains(t, got, "BTCUSDT")
	assert.Contains(t, got, "ETHUSDT")
	assert.Equal(t, 1, reg.Len())
}

func TestSubscribeWithEmptyMapSendsNothing(t *testing.T) {
	reg, _ := newRegistry()

	o := &fakeObserver{id: "a"}
	current, err := reg.Subscribe(o)
	require.NoError(t, err)
	assert.Empty(t, current)
	assert.Empty(t, o.frames())
	assert.Equal(t, 1, reg.Len())
}

func TestPublishIsolatesFailingObservers(t *testing.T) {
	reg, metrics := newRegistry()

	good1 := &fakeObserver{id: "good1"}
	full := &fakeObserver{id: "full", err: ErrQueueFull}
	panicky := &fakeObserver{id: "panicky", panics: true}
	good2 := &fakeObserver{id: "good2"}
	for _, o := range []*fakeObserver{good1, full, panicky, good2} {
		_, err := reg.Subscribe(o)
		require.NoError(t, err)
	}

	n, err := reg.Publish(context.Background(), snapshot("BTCUSDT"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, good1.frames(), 1)
	assert.Len(t, good2.frames(), 1)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.DeliveryErrors))

	// переполненная очередь не отписывает
	assert.Equal(t, 4, reg.Len())
}

func TestPublishDropsClosedObservers(t *testing.T) {
	reg, metrics := newRegistry()

	gone := &fakeObserver{id: "gone", err: ErrObserverClosed}
	live := &fakeObserver{id: "live"}
	_, _ = reg.Subscribe(gone)
	_, _ = reg.Subscribe(live)

	n, err := reg.Publish(context.Background(), snapshot("BTCUSDT"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 1, gone.closedN)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Observers))
}

func TestUnsubscribeUnknownIsNoop(t *testing.T) {
	reg, _ := newRegistry()
	reg.Unsubscribe("nope")
	assert.Equal(t, 0, reg.Len())
}

func TestEncodeSortsKeys(t *testing.T) {
	b, err := Encode(snapshot("XRPUSDT", "BTCUSDT"))
	require.NoError(t, err)
	s := string(b)
	assert.Less(t, strings.Index(s, `"BTCUSDT"`), strings.Index(s, `"XRPUSDT"`))
}
