// Package orderbook turns top-of-book depth snapshots into spread, windowed
// liquidity and a smoothed bid/ask imbalance ratio.
package orderbook

import (
	"math"

	"market_pulse/internal/models"
	"market_pulse/pkg/ring"
)

const (
	HistoryCapacity = 1800
	WindowFraction  = 0.001 // ±0.10% от mid
	SmoothingAlpha  = 0.3
	MinRatio        = 0.2
	MaxRatio        = 5.0
	TopLevels       = 5
)

// Analyzer keeps one instrument's smoothing state and liquidity history.
// Not safe for concurrent use.
type Analyzer struct {
	history     *ring.Buffer[float64]
	filtered    float64
	hasFiltered bool
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{history: ring.New[float64](HistoryCapacity)}
}

// Update recomputes the snapshot from a full depth snapshot. Returns false when
// either side of the book is empty; nothing is recorded in that case.
func (a *Analyzer) Update(d models.Depth) (models.OrderBookSnapshot, bool) {
	bestBid, okBid := best(d.Bids, true)
	bestAsk, okAsk := best(d.Asks, false)
	if !okBid || !okAsk {
		return models.OrderBookSnapshot{}, false
	}

	snap := models.OrderBookSnapshot{
		BestBid: bestBid,
		BestAsk: bestAsk,
		Spread:  bestAsk - bestBid,
	}
	snap.SpreadPercent = snap.Spread / bestBid * 100

	mid := (bestBid + bestAsk) / 2
	lo, hi := mid*(1-WindowFraction), mid*(1+WindowFraction)
	snap.WindowedBidUSD = windowed(d.Bids, lo, hi)
	snap.WindowedAskUSD = windowed(d.Asks, lo, hi)
	snap.TotalLiquidity = snap.WindowedBidUSD + snap.WindowedAskUSD
	snap.Top5Liquidity = top(d.Bids, TopLevels) + top(d.Asks, TopLevels)

	if snap.WindowedBidUSD > 0 && snap.WindowedAskUSD > 0 {
		snap.RawRatio = snap.WindowedBidUSD / snap.WindowedAskUSD
		snap.RatioValid = true
		if a.hasFiltered {
			a.filtered = SmoothingAlpha*snap.RawRatio + (1-SmoothingAlpha)*a.filtered
		} else {
			a.filtered = snap.RawRatio
			a.hasFiltered = true
		}
		a.filtered = Clamp(a.filtered)
	}
	snap.FilteredRatio = 1
	if a.hasFiltered {
		snap.FilteredRatio = a.filtered
	}

	a.history.Push(snap.TotalLiquidity)
	return snap, true
}

// Recent copies the newest n liquidity samples, oldest first.
func (a *Analyzer) Recent(n int) []float64 { return a.history.Tail(n) }

func (a *Analyzer) HistoryLen() int { return a.history.Len() }

// Clamp bounds a displayed ratio to [MinRatio, MaxRatio].
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return math.Max(MinRatio, math.Min(MaxRatio, v))
}

func best(levels []models.Level, bid bool) (float64, bool) {
	var px float64
	found := false
	for _, l := range levels {
		if l.Price <= 0 || l.Qty <= 0 {
			continue
		}
		if !found || (bid && l.Price > px) || (!bid && l.Price < px) {
			px = l.Price
			found = true
		}
	}
	return px, found
}

func windowed(levels []models.Level, lo, hi float64) float64 {
	var sum float64
	for _, l := range levels {
		if l.Price >= lo && l.Price <= hi {
			sum += l.Price * l.Qty
		}
	}
	return sum
}

func top(levels []models.Level, n int) float64 {
	if n > len(levels) {
		n = len(levels)
	}
	var sum float64
	for _, l := range levels[:n] {
		sum += l.Price * l.Qty
	}
	return sum
}
