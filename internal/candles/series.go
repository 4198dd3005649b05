// Package candles folds ticker and kline updates into a bounded series of 15-minute OHLCV buckets.
package candles

import (
	"math"
	"time"

	"market_pulse/internal/models"
	"market_pulse/pkg/ring"
)

const (
	Capacity   = 200 // ≈50h of 15m buckets
	BucketSize = 15 * time.Minute
	Interval   = "15m" // kline interval, совпадающий с BucketSize
)

// BucketStart floors ts to the 15-minute boundary (UTC).
func BucketStart(ts time.Time) time.Time {
	return ts.UTC().Truncate(BucketSize)
}

// Series is one instrument's candle history. Callers serialize access.
type Series struct {
	buf *ring.Buffer[models.Candle]
}

func NewSeries() *Series {
	return &Series{buf: ring.New[models.Candle](Capacity)}
}

// Ingest folds a price sample into its bucket. A non-nil ohlc is authoritative
// (kline / history) and overwrites the bucket wholesale; a nil ohlc widens
// high/low, moves close and keeps volume as a running mean of samples.
// Reports whether the series changed.
func (s *Series) Ingest(price, volume float64, ts time.Time, ohlc *models.OHLCV) bool {
	if ohlc == nil && !valid(price) {
		return false
	}
	if ohlc != nil && !valid(ohlc.Close) {
		return false
	}
	bucket := BucketStart(ts)

	idx, found := s.locate(bucket)
	if !found {
		c := models.Candle{
			BucketStart: bucket,
			Open:        price,
			High:        price,
			Low:         price,
			Close:       price,
			Volume:      volume,
			SampleCount: 1,
		}
		if ohlc != nil {
			c.Open, c.High, c.Low, c.Close, c.Volume = ohlc.Open, ohlc.High, ohlc.Low, ohlc.Close, ohlc.Volume
		}
		before := s.buf.Len()
		s.buf.Insert(idx, c)
		// bucket older than everything kept in a full series
		return !(before == Capacity && idx == 0)
	}

	c := s.buf.Ref(idx)
	if ohlc != nil {
		c.Open, c.High, c.Low, c.Close, c.Volume = ohlc.Open, ohlc.High, ohlc.Low, ohlc.Close, ohlc.Volume
		return true
	}

	c.High = math.Max(c.High, price)
	c.Low = math.Min(c.Low, price)
	c.Close = price
	n := float64(c.SampleCount)
	c.Volume = (c.Volume*n + volume) / (n + 1)
	c.SampleCount++
	return true
}

// locate returns the index of bucket, or the insertion index that keeps the
// series ordered. Scans from the newest end since live data lands there.
func (s *Series) locate(bucket time.Time) (int, bool) {
	for i := s.buf.Len() - 1; i >= 0; i-- {
		start := s.buf.At(i).BucketStart
		if start.Equal(bucket) {
			return i, true
		}
		if start.Before(bucket) {
			return i + 1, false
		}
	}
	return 0, false
}

func (s *Series) Len() int { return s.buf.Len() }

func (s *Series) Last() (models.Candle, bool) { return s.buf.Last() }

// Candles copies the series oldest first.
func (s *Series) Candles() []models.Candle { return s.buf.Slice() }

func (s *Series) Closes() []float64 {
	out := make([]float64, s.buf.Len())
	for i := range out {
		out[i] = s.buf.At(i).Close
	}
	return out
}

func (s *Series) Volumes() []float64 {
	out := make([]float64, s.buf.Len())
	for i := range out {
		out[i] = s.buf.At(i).Volume
	}
	return out
}

func valid(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
