package service

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"market_pulse/internal/candles"
	"market_pulse/internal/fusion"
	"market_pulse/internal/indicator"
	"market_pulse/internal/models"
	"market_pulse/internal/orderbook"
	"market_pulse/internal/signal"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Instrument: всё состояние одного символа. Каждый метод берёт mu целиком,
// поэтому Snapshot никогда не видит частично применённое событие.
type Instrument struct {
	mu sync.Mutex

	symbol  string
	series  *candles.Series
	book    *orderbook.Analyzer
	machine *signal.Machine

	lastBook *models.OrderBookSnapshot
	spot     *models.Quote
	futures  *models.Quote
}

func NewInstrument(symbol string) *Instrument {
	return &Instrument{
		symbol:  symbol,
		series:  candles.NewSeries(),
		book:    orderbook.NewAnalyzer(),
		machine: signal.NewMachine(),
	}
}

func (i *Instrument) Symbol() string { return i.symbol }

// ApplyTicker обновляет котировку рынка; спотовый тикер ещё и достраивает свечу.
func (i *Instrument) ApplyTicker(market models.Market, t models.Ticker, now time.Time) bool {
	ts := t.EventTime
	if ts.IsZero() {
		ts = now
	}
	q := &models.Quote{
		Symbol:    i.symbol,
		Price:     t.LastPrice,
		Change24h: t.ChangePercent,
		High24h:   t.High,
		Low24h:    t.Low,
		Volume24h: t.Volume,
		Timestamp: ts.UTC().Format(timestampLayout),
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	switch market {
	case models.MarketFutures:
		i.futures = q
		return true
	default:
		i.spot = q
		i.series.Ingest(t.LastPrice, t.Volume, ts, nil)
		return true
	}
}

// ApplyKline: авторитетная свеча, перекрывает тикерное приближение.
func (i *Instrument) ApplyKline(k models.Kline) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.series.Ingest(k.Close, k.Volume, k.OpenTime, &models.OHLCV{
		Open: k.Open, High: k.High, Low: k.Low, Close: k.Close, Volume: k.Volume,
	})
}

// ApplyDepth пересчитывает стакан и двигает машину состояний. Стакан без
// ликвидности в окне сбрасывает таймеры dwell. Возвращает состояние до и после.
func (i *Instrument) ApplyDepth(d models.Depth, now time.Time) (prev, cur models.SignalState, ok bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	prev = i.machine.State()
	snap, ok := i.book.Update(d)
	if !ok {
		return prev, prev, false
	}
	i.lastBook = &snap
	if snap.RatioValid {
		i.machine.Update(snap.RawRatio, now)
	} else {
		i.machine.Disqualify(now)
	}
	return prev, i.machine.State(), true
}

// ApplyHistory заливает свечи начальной загрузки.
func (i *Instrument) ApplyHistory(history []models.Candle) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := 0
	for _, c := range history {
		if i.series.Ingest(c.Close, c.Volume, c.BucketStart, &models.OHLCV{
			Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume,
		}) {
			n++
		}
	}
	return n
}

func (i *Instrument) CandleCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.series.Len()
}

// Snapshot строит свежий FusedSnapshot. false: нет цены спота или фьючерса.
func (i *Instrument) Snapshot(bands fusion.Bands, timeframe string, now time.Time) (models.FusedSnapshot, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.spot == nil || i.futures == nil {
		return models.FusedSnapshot{}, false
	}

	ind := fusion.Compute(i.series.Closes(), i.series.Volumes(), i.book.Recent(indicator.LiquidityWindow))

	var (
		spreadPct *float64
		book      *models.OrderBookSnapshot
	)
	if i.lastBook != nil {
		cp := *i.lastBook
		book = &cp
		spreadPct = &cp.SpreadPercent
	}

	ob := i.machine.Signal()
	res := fusion.Fuse(ind, ob, spreadPct, bands.For(i.symbol, i.spot.Price))

	basis := i.futures.Price - i.spot.Price
	return models.FusedSnapshot{
		Symbol:          i.symbol,
		Spot:            *i.spot,
		Futures:         *i.futures,
		Spread:          basis,
		SpreadPercent:   basisPercent(basis, i.spot.Price),
		OrderBook:       book,
		Indicators:      ind,
		OrderBookSignal: ob,
		Signals:         res.Signals,
		LongPercentage:  res.Long,
		ShortPercentage: res.Short,
		Timeframe:       timeframe,
		Candles:         i.series.Len(),
		UpdatedAt:       now.UTC().Format(timestampLayout),
	}, true
}

// basisPercent: (futures − spot)/spot·100 с тремя знаками.
func basisPercent(basis, spot float64) string {
	if spot == 0 {
		return "0.000"
	}
	return decimal.NewFromFloat(basis).
		Div(decimal.NewFromFloat(spot)).
		Mul(decimal.NewFromInt(100)).
		StringFixed(3)
}
