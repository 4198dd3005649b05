package service

import (
	"fmt"
	"strings"
	"time"

	"market_pulse/internal/models"
	"market_pulse/internal/modules/config"
)

const (
	FeedSpot    = "spot"
	FeedFutures = "futures"
	FeedDepth   = "depth"
)

// FeedSpec: одно WS-соединение combined-стрима.
type FeedSpec struct {
	Name    string
	Market  models.Market
	BaseURL string
	Streams []string
}

func (f FeedSpec) URL() string {
	sep := "?"
	if strings.Contains(f.BaseURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%sstreams=%s", f.BaseURL, sep, strings.Join(f.Streams, "/"))
}

// BuildFeeds собирает три независимых соединения: спот (ticker + kline), фьючерсы (ticker)
// и стакан спота (partial depth).
func BuildFeeds(cfg *config.Config) []FeedSpec {
	spot := FeedSpec{Name: FeedSpot, Market: models.MarketSpot, BaseURL: cfg.Feeds.SpotURL}
	futures := FeedSpec{Name: FeedFutures, Market: models.MarketFutures, BaseURL: cfg.Feeds.FuturesURL}
	depth := FeedSpec{Name: FeedDepth, Market: models.MarketSpot, BaseURL: cfg.Feeds.SpotURL}

	depthStream := fmt.Sprintf("depth%d@%s", cfg.Feeds.DepthLevels, speed(cfg.Feeds.DepthSpeed))
	for _, s := range cfg.Symbols {
		sym := strings.ToLower(s)
		spot.Streams = append(spot.Streams, sym+"@ticker", sym+"@kline_"+cfg.Feeds.KlineInterval)
		futures.Streams = append(futures.Streams, sym+"@ticker")
		depth.Streams = append(depth.Streams, sym+"@"+depthStream)
	}
	return []FeedSpec{spot, futures, depth}
}

// Binance принимает только 100ms и 1000ms.
func speed(d time.Duration) string {
	if d >= time.Second {
		return "1000ms"
	}
	return "100ms"
}
