package health

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market_pulse/internal/modules/health/service"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestReadyzNeedsReadyAndFeed(t *testing.T) {
	state := service.NewState()
	mux := NewMux(state, service.NewMetrics())

	assert.Equal(t, http.StatusOK, get(t, mux, "/livez").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, mux, "/readyz").Code)

	state.SetReady(true)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, mux, "/readyz").Code)

	state.SetFeedConnected("spot", true)
	assert.Equal(t, http.StatusOK, get(t, mux, "/readyz").Code)
}

func TestHealthzReportsFeeds(t *testing.T) {
	state := service.NewState()
	state.SetFeedConnected("depth", false)
	state.SetFeedConnected("spot", true)
	state.TouchEvent(time.Unix(1700000000, 0))

	rec := get(t, NewMux(state, service.NewMetrics()), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Feeds         map[string]bool `json:"feeds"`
		LastEventUnix int64           `json:"lastEventUnix"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]bool{"depth": false, "spot": true}, body.Feeds)
	assert.Equal(t, int64(1700000000), body.LastEventUnix)
}

func TestMetricsEndpoint(t *testing.T) {
	m := service.NewMetrics()
	m.FeedEvents.WithLabelValues("spot", "ticker").Inc()
	m.Observers.Set(3)

	rec := get(t, NewMux(service.NewState(), m), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `market_pulse_feed_events_total{feed="spot",kind="ticker"} 1`)
	assert.Contains(t, string(body), "market_pulse_observers 3")
}
