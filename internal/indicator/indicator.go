// Package indicator holds stateless indicator math over price and volume sequences.
// Every function reports ok == false instead of a value when the input is too short.
package indicator

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"market_pulse/internal/models"
)

const (
	RSIPeriod = 14
	ATRPeriod = 14

	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9

	VolumeWindow       = 20
	VolumeAnomalyRatio = 3.0
	VolumeMinSamples   = 10
	VolumeRecentMax    = 5

	LiquidityMinSamples = 120
	LiquidityWindow     = 1800 // две половины по 900 (≈15 минут каждая)
)

// EMA seeds with series[0] and folds every later point with k = 2/(n+1).
func EMA(series []float64, n int) (float64, bool) {
	if n <= 0 || len(series) < n || len(series) == 0 {
		return 0, false
	}
	k := 2.0 / float64(n+1)
	ema := series[0]
	for _, p := range series[1:] {
		ema = p*k + ema*(1-k)
	}
	return ema, true
}

// emaPath returns the EMA after every prefix of series (same seed as EMA).
func emaPath(series []float64, n int) []float64 {
	out := make([]float64, len(series))
	if len(series) == 0 {
		return out
	}
	k := 2.0 / float64(n+1)
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = series[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSI uses Wilder smoothing seeded from the first period deltas.
// Result is rounded to 2 decimals and clamped to [0, 100].
func RSI(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period+1 {
		return 0, false
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		g, l := split(series[i] - series[i-1])
		avgGain += g
		avgLoss += l
	}
	p := float64(period)
	avgGain /= p
	avgLoss /= p

	for i := period + 1; i < len(series); i++ {
		g, l := split(series[i] - series[i-1])
		avgGain = (avgGain*(p-1) + g) / p
		avgLoss = (avgLoss*(p-1) + l) / p
	}

	if avgLoss == 0 {
		return 100, true
	}
	rsi := 100 - 100/(1+avgGain/avgLoss)
	rsi = decimal.NewFromFloat(rsi).Round(2).InexactFloat64()
	return clamp(rsi, 0, 100), true
}

func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

// MACD builds the full MACD line from EMA12/EMA26 over every growing prefix,
// then takes EMA9 of that line as the signal.
func MACD(series []float64) (models.MACDValue, bool) {
	if len(series) < MACDSlow {
		return models.MACDValue{}, false
	}
	fast := emaPath(series, MACDFast)
	slow := emaPath(series, MACDSlow)

	line := make([]float64, 0, len(series)-MACDSlow+1)
	for i := MACDSlow - 1; i < len(series); i++ {
		line = append(line, fast[i]-slow[i])
	}
	signal, ok := EMA(line, MACDSignal)
	if !ok {
		return models.MACDValue{}, false
	}
	last := line[len(line)-1]
	return models.MACDValue{MACD: last, Signal: signal, Histogram: last - signal}, true
}

// ATR here is the mean absolute close-to-close move over the last period steps.
func ATR(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}
	moves := make([]float64, 0, period)
	for i := len(closes) - period; i < len(closes); i++ {
		moves = append(moves, math.Abs(closes[i]-closes[i-1]))
	}
	return stat.Mean(moves, nil), true
}

// VolumeRatio compares the most recent volumes to the older ones in the last
// VolumeWindow samples after dropping spikes above 3×median.
func VolumeRatio(volumes []float64) (float64, bool) {
	if len(volumes) < VolumeWindow {
		return 0, false
	}
	window := volumes[len(volumes)-VolumeWindow:]
	limit := median(window) * VolumeAnomalyRatio

	kept := make([]float64, 0, len(window))
	for _, v := range window {
		if v <= limit {
			kept = append(kept, v)
		}
	}
	if len(kept) < VolumeMinSamples {
		return 0, false
	}

	recentN := len(kept) / 4
	if recentN > VolumeRecentMax {
		recentN = VolumeRecentMax
	}
	recent := kept[len(kept)-recentN:]
	older := kept[:len(kept)-recentN]

	base := stat.Mean(older, nil)
	if base <= 0 {
		return 0, false
	}
	return stat.Mean(recent, nil) / base, true
}

// LiquidityRatio compares the recent half of the liquidity history window to
// the half before it (900/900 samples once the history is full).
func LiquidityRatio(history []float64) (float64, bool) {
	if len(history) < LiquidityMinSamples {
		return 0, false
	}
	if len(history) > LiquidityWindow {
		history = history[len(history)-LiquidityWindow:]
	}
	half := len(history) / 2
	recent := history[len(history)-half:]
	prior := history[len(history)-2*half : len(history)-half]

	base := stat.Mean(prior, nil)
	if base <= 0 {
		return 0, false
	}
	return stat.Mean(recent, nil) / base, true
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
