package signal

import "market_pulse/internal/models"

const (
	LabelUnavailable = "unavailable"
	LabelNeutral     = "neutral"
)

// Band is an instrument's normal-volatility range for ATR.
type Band struct {
	Low  float64 `mapstructure:"low" yaml:"low" json:"low"`
	High float64 `mapstructure:"high" yaml:"high" json:"high"`
}

func (b Band) Contains(v float64) bool { return v >= b.Low && v <= b.High }

func sub(label string, dir models.Direction, w float64) models.SubSignal {
	return models.SubSignal{Label: label, Direction: dir, Weight: w}
}

func unavailable() models.SubSignal { return sub(LabelUnavailable, models.DirectionNeutral, 0) }
func neutral() models.SubSignal     { return sub(LabelNeutral, models.DirectionNeutral, 0) }

func RSI(v *float64) models.SubSignal {
	if v == nil {
		return unavailable()
	}
	r := *v
	switch {
	case r < 15:
		return neutral()
	case r < 30:
		return sub("long-extreme", models.DirectionLong, 30)
	case r < 40:
		return sub("long-strong", models.DirectionLong, 20)
	case r < 50:
		return sub("long-weak", models.DirectionLong, 10)
	case r < 60:
		return neutral()
	case r < 70:
		return sub("short-weak", models.DirectionShort, 10)
	case r <= 80:
		return sub("short-strong", models.DirectionShort, 20)
	default:
		return sub("short-extreme", models.DirectionShort, 30)
	}
}

func VolumeRatio(v *float64) models.SubSignal {
	if v == nil {
		return unavailable()
	}
	r := *v
	switch {
	case r >= 20:
		return sub("critical", models.DirectionNeutral, 0)
	case r > 19.99:
		return sub("anomaly", models.DirectionNeutral, 0)
	case r >= 3:
		return sub("caution", models.DirectionNeutral, 0)
	case r >= 2:
		return sub("long-strong", models.DirectionLong, 20)
	case r >= 1.5:
		return sub("long-weak", models.DirectionLong, 10)
	case r > 0.7:
		return neutral()
	case r > 0.5:
		return sub("short-weak", models.DirectionShort, 10)
	default:
		return sub("short-strong", models.DirectionShort, 20)
	}
}

func MACD(v *models.MACDValue) models.SubSignal {
	if v == nil {
		return unavailable()
	}
	switch {
	case v.MACD > v.Signal:
		w := 15.0
		if v.Histogram > 0 {
			w += 5
		}
		return sub("long", models.DirectionLong, w)
	case v.MACD < v.Signal:
		w := 15.0
		if v.Histogram < 0 {
			w += 5
		}
		return sub("short", models.DirectionShort, w)
	}
	return neutral()
}

// Alignment describes how the 9/21/50 EMAs stack up.
type Alignment struct {
	Direction models.Direction
	Full      bool // 9/21/50 fully ordered
	Known     bool // at least EMA9 and EMA21 exist
}

func Align(ema9, ema21, ema50 *float64) Alignment {
	if ema9 == nil || ema21 == nil {
		return Alignment{Direction: models.DirectionNeutral}
	}
	a := Alignment{Direction: models.DirectionNeutral, Known: true}
	if ema50 != nil {
		switch {
		case *ema9 > *ema21 && *ema21 > *ema50:
			a.Direction, a.Full = models.DirectionLong, true
			return a
		case *ema9 < *ema21 && *ema21 < *ema50:
			a.Direction, a.Full = models.DirectionShort, true
			return a
		}
	}
	switch {
	case *ema9 > *ema21:
		a.Direction = models.DirectionLong
	case *ema9 < *ema21:
		a.Direction = models.DirectionShort
	}
	return a
}

// Trend is the EMA base contribution: 20 for full alignment, 10 for EMA9 vs EMA21.
func Trend(a Alignment) models.SubSignal {
	return aligned(a, 20, 10)
}

// ATR scores only inside the band and then follows EMA alignment (15 / 10).
func ATR(v *float64, band Band, a Alignment) models.SubSignal {
	if v == nil {
		return unavailable()
	}
	if !band.Contains(*v) {
		return sub("outside-band", models.DirectionNeutral, 0)
	}
	return aligned(a, 15, 10)
}

func aligned(a Alignment, full, partial float64) models.SubSignal {
	if !a.Known {
		return unavailable()
	}
	if a.Direction == models.DirectionNeutral {
		return neutral()
	}
	w, strength := partial, "weak"
	if a.Full {
		w, strength = full, "strong"
	}
	return sub(string(a.Direction)+"-"+strength, a.Direction, w)
}

// Spread classifies the order-book spread percent.
func Spread(pct *float64) models.SubSignal {
	if pct == nil {
		return unavailable()
	}
	switch {
	case *pct <= 0.0005:
		return sub("tight", models.DirectionLong, 5)
	case *pct <= 0.005:
		return neutral()
	}
	return sub("wide", models.DirectionShort, 5)
}

func LiquidityRatio(v *float64) models.SubSignal {
	if v == nil {
		return unavailable()
	}
	switch {
	case *v >= 1.30:
		return sub("rising", models.DirectionLong, 5)
	case *v < 0.70:
		return sub("draining", models.DirectionShort, 5)
	}
	return neutral()
}
