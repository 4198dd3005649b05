package service

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"market_pulse/internal/models"
	"market_pulse/pkg/db"
	"market_pulse/pkg/tracing"
)

// HistorySource отдаёт до limit последних свечей интервала, старые первыми.
type HistorySource interface {
	Candles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
}

// NoneSource: начальная загрузка выключена.
type NoneSource struct{}

func (NoneSource) Candles(context.Context, string, string, int) ([]models.Candle, error) {
	return nil, nil
}

// KlinesDoer: часть REST-клиента Binance, нужная для истории.
type KlinesDoer interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]*binance.Kline, error)
}

type binanceClient struct {
	c *binance.Client
}

func (b binanceClient) Klines(ctx context.Context, symbol, interval string, limit int) ([]*binance.Kline, error) {
	return b.c.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
}

// BinanceSource: публичный REST /api/v3/klines с ограничением частоты запросов.
type BinanceSource struct {
	client  KlinesDoer
	limiter *rate.Limiter
}

func NewBinanceSource(baseURL string, every time.Duration) *BinanceSource {
	c := binance.NewClient("", "")
	if baseURL != "" {
		c.BaseURL = baseURL
	}
	return NewBinanceSourceWith(binanceClient{c: c}, every)
}

func NewBinanceSourceWith(client KlinesDoer, every time.Duration) *BinanceSource {
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	return &BinanceSource{client: client, limiter: rate.NewLimiter(limit, 1)}
}

func (s *BinanceSource) Candles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	span, ctx := tracing.StartSpan(ctx, "history.fetch", symbol)
	defer span.Finish()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limit wait")
	}
	resp, err := s.client.Klines(ctx, symbol, interval, limit)
	if err != nil {
		span.SetTag("error", true)
		return nil, errors.Wrapf(err, "klines %s %s", symbol, interval)
	}

	out := make([]models.Candle, 0, len(resp))
	for _, k := range resp {
		c, err := fromBinance(k)
		if err != nil {
			return nil, errors.Wrapf(err, "kline %s @%d", symbol, k.OpenTime)
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BucketStart.Before(out[j].BucketStart) })
	return out, nil
}

func fromBinance(k *binance.Kline) (models.Candle, error) {
	c := models.Candle{BucketStart: time.UnixMilli(k.OpenTime).UTC(), SampleCount: 1}
	fields := []struct {
		dst *float64
		raw string
	}{
		{&c.Open, k.Open}, {&c.High, k.High}, {&c.Low, k.Low}, {&c.Close, k.Close}, {&c.Volume, k.Volume},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return models.Candle{}, err
		}
		*f.dst = v
	}
	return c, nil
}

// PostgresSource читает свечи из таблицы candles (например, собранной коллектором).
type PostgresSource struct {
	tx db.TxManager
}

func NewPostgresSource(tx db.TxManager) *PostgresSource { return &PostgresSource{tx: tx} }

const candlesQuery = `
SELECT open_time, open, high, low, close, volume
FROM candles
WHERE symbol = $1 AND interval = $2
ORDER BY open_time DESC
LIMIT $3`

func (s *PostgresSource) Candles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	span, ctx := tracing.StartSpan(ctx, "history.fetch", symbol)
	defer span.Finish()

	var out []models.Candle
	err := s.tx.RunReadOnly(ctx, func(ctx context.Context, q db.Querier) error {
		rows, err := q.Query(ctx, candlesQuery, symbol, interval, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c models.Candle
			if err := rows.Scan(&c.BucketStart, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
				return err
			}
			c.BucketStart = c.BucketStart.UTC()
			c.SampleCount = 1
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		span.SetTag("error", true)
		return nil, errors.Wrapf(err, "candles %s %s", symbol, interval)
	}
	// запрос идёт от новых к старым
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
