// Package fusion computes the indicator set of one instrument and folds the
// sub-signals into additive long/short confidence percentages.
package fusion

import (
	"strings"

	"market_pulse/internal/indicator"
	"market_pulse/internal/models"
	"market_pulse/internal/signal"
)

// Ключи в FusedSnapshot.Signals.
const (
	KeyTrend     = "trend"
	KeyOrderBook = "orderBook"
	KeyRSI       = "rsi"
	KeyVolume    = "volume"
	KeyMACD      = "macd"
	KeyATR       = "atr"
	KeySpread    = "spread"
	KeyLiquidity = "liquidity"
)

// Relative ATR band for instruments without a configured one.
const (
	FallbackBandLow  = 0.0005
	FallbackBandHigh = 0.005
)

// Compute evaluates every indicator over the current series. Missing values stay nil.
func Compute(closes, volumes, liquidity []float64) models.Indicators {
	var ind models.Indicators
	ind.EMA9 = opt(indicator.EMA(closes, 9))
	ind.EMA21 = opt(indicator.EMA(closes, 21))
	ind.EMA50 = opt(indicator.EMA(closes, 50))
	ind.RSI = opt(indicator.RSI(closes, indicator.RSIPeriod))
	if m, ok := indicator.MACD(closes); ok {
		ind.MACD = &m
	}
	ind.ATR = opt(indicator.ATR(closes, indicator.ATRPeriod))
	ind.VolumeRatio = opt(indicator.VolumeRatio(volumes))
	ind.LiquidityRatio = opt(indicator.LiquidityRatio(liquidity))
	return ind
}

func opt(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

// Bands holds per-symbol ATR bands.
type Bands map[string]signal.Band

// For returns the configured band or one relative to price.
func (b Bands) For(symbol string, price float64) signal.Band {
	if band, ok := b[strings.ToUpper(symbol)]; ok {
		return band
	}
	return signal.Band{Low: price * FallbackBandLow, High: price * FallbackBandHigh}
}

type Result struct {
	Signals map[string]models.SubSignal
	Long    float64
	Short   float64
}

// Fuse adds every contribution to the accumulator of its own direction.
// Nothing is normalized or capped; long and short may both be large.
func Fuse(ind models.Indicators, ob models.OrderBookSignal, spreadPercent *float64, band signal.Band) Result {
	align := signal.Align(ind.EMA9, ind.EMA21, ind.EMA50)

	res := Result{Signals: make(map[string]models.SubSignal, 8)}
	add := func(key string, s models.SubSignal) {
		res.Signals[key] = s
		switch s.Direction {
		case models.DirectionLong:
			res.Long += s.Weight
		case models.DirectionShort:
			res.Short += s.Weight
		}
	}

	add(KeyTrend, signal.Trend(align))
	add(KeyOrderBook, models.SubSignal{Label: string(ob.State), Direction: ob.Direction, Weight: ob.Weight})
	add(KeyRSI, signal.RSI(ind.RSI))
	add(KeyVolume, signal.VolumeRatio(ind.VolumeRatio))
	add(KeyMACD, signal.MACD(ind.MACD))
	add(KeyATR, signal.ATR(ind.ATR, band, align))
	add(KeySpread, signal.Spread(spreadPercent))
	add(KeyLiquidity, signal.LiquidityRatio(ind.LiquidityRatio))
	return res
}
