package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"market_pulse/internal/models"
)

func f(v float64) *float64 { return &v }

func TestRSIBands(t *testing.T) {
	cases := []struct {
		rsi    float64
		label  string
		dir    models.Direction
		weight float64
	}{
		{10, LabelNeutral, models.DirectionNeutral, 0},
		{15, "long-extreme", models.DirectionLong, 30},
		{29.99, "long-extreme", models.DirectionLong, 30},
		{30, "long-strong", models.DirectionLong, 20},
		{45, "long-weak", models.DirectionLong, 10},
		{50, LabelNeutral, models.DirectionNeutral, 0},
		{60, "short-weak", models.DirectionShort, 10},
		{70, "short-strong", models.DirectionShort, 20},
		{80, "short-strong", models.DirectionShort, 20},
		{80.01, "short-extreme", models.DirectionShort, 30},
	}
	for _, c := range cases {
		got := RSI(f(c.rsi))
		assert.Equal(t, c.label, got.Label, "rsi=%v", c.rsi)
		assert.Equal(t, c.dir, got.Direction, "rsi=%v", c.rsi)
		assert.Equal(t, c.weight, got.Weight, "rsi=%v", c.rsi)
	}
	assert.Equal(t, LabelUnavailable, RSI(nil).Label)
}

func TestVolumeRatioBands(t *testing.T) {
	cases := []struct {
		ratio  float64
		label  string
		weight float64
	}{
		{25, "critical", 0},
		{20, "critical", 0},
		{19.995, "anomaly", 0},
		{3.0, "caution", 0},
		{2.999, "long-strong", 20},
		{2.0, "long-strong", 20},
		{1.5, "long-weak", 10},
		{1.0, LabelNeutral, 0},
		{0.7, "short-weak", 10},
		{0.5, "short-strong", 20},
		{0.1, "short-strong", 20},
	}
	for _, c := range cases {
		got := VolumeRatio(f(c.ratio))
		assert.Equal(t, c.label, got.Label, "ratio=%v", c.ratio)
		assert.Equal(t, c.weight, got.Weight, "ratio=%v", c.ratio)
	}
	assert.Equal(t, models.DirectionNeutral, VolumeRatio(f(3.0)).Direction)
	assert.Equal(t, models.DirectionLong, VolumeRatio(f(2.999)).Direction)
	assert.Equal(t, LabelUnavailable, VolumeRatio(nil).Label)
}

func TestMACDHistogramBonus(t *testing.T) {
	got := MACD(&models.MACDValue{MACD: 2, Signal: 1, Histogram: 1})
	assert.Equal(t, models.DirectionLong, got.Direction)
	assert.Equal(t, 20.0, got.Weight)

	got = MACD(&models.MACDValue{MACD: -2, Signal: -1, Histogram: -1})
	assert.Equal(t, models.DirectionShort, got.Direction)
	assert.Equal(t, 20.0, got.Weight)

	got = MACD(&models.MACDValue{MACD: 1, Signal: 1})
	assert.Equal(t, models.DirectionNeutral, got.Direction)
	assert.Equal(t, LabelUnavailable, MACD(nil).Label)
}

func TestTrendAndATRFollowAlignment(t *testing.T) {
	full := Align(f(3), f(2), f(1))
	assert.True(t, full.Full)
	assert.Equal(t, models.DirectionLong, full.Direction)
	assert.Equal(t, 20.0, Trend(full).Weight)

	partial := Align(f(1), f(2), f(1.5))
	assert.False(t, partial.Full)
	assert.Equal(t, models.DirectionShort, partial.Direction)
	assert.Equal(t, 10.0, Trend(partial).Weight)

	noLong := Align(f(3), f(2), nil)
	assert.Equal(t, models.DirectionLong, noLong.Direction)
	assert.False(t, noLong.Full)

	assert.Equal(t, LabelUnavailable, Trend(Align(nil, f(1), f(1))).Label)

	band := Band{Low: 50, High: 400}
	atr := ATR(f(120), band, full)
	assert.Equal(t, models.DirectionLong, atr.Direction)
	assert.Equal(t, 15.0, atr.Weight)
	assert.Equal(t, 10.0, ATR(f(120), band, partial).Weight)

	out := ATR(f(900), band, full)
	assert.Equal(t, "outside-band", out.Label)
	assert.Equal(t, 0.0, out.Weight)
	assert.Equal(t, LabelUnavailable, ATR(nil, band, full).Label)
}

func TestSpreadAndLiquidity(t *testing.T) {
	assert.Equal(t, "tight", Spread(f(0.0001)).Label)
	assert.Equal(t, LabelNeutral, Spread(f(0.002)).Label)
	wide := Spread(f(0.1))
	assert.Equal(t, models.DirectionShort, wide.Direction)
	assert.Equal(t, 5.0, wide.Weight)

	assert.Equal(t, "rising", LiquidityRatio(f(1.3)).Label)
	assert.Equal(t, LabelNeutral, LiquidityRatio(f(0.7)).Label)
	assert.Equal(t, "draining", LiquidityRatio(f(0.69)).Label)
	assert.Equal(t, LabelUnavailable, LiquidityRatio(nil).Label)
}
