// Package signal converts indicator values and the order-book imbalance into
// directional sub-signals. Machine carries the only state: the hysteresis over
// the raw bid/ask ratio.
package signal

import (
	"math"
	"time"

	"market_pulse/internal/models"
)

const (
	VolatileJump      = 1.0
	IndeterminateJump = 0.8
	Cooldown          = 10 * time.Second
	Dwell             = 20 * time.Second

	LongRatioMin  = 2.0
	LongRatioMax  = 5.0
	ShortRatioMin = 0.10
	ShortRatioMax = 0.90

	ConfirmedWeight = 20.0
)

// Machine is one instrument's order-book hysteresis. It consumes the raw,
// unfiltered ratio; the filtered ratio is presentation only.
// Not safe for concurrent use.
type Machine struct {
	prevRaw       float64
	hasPrev       bool
	cooldownUntil time.Time
	longSince     *time.Time
	shortSince    *time.Time
	state         models.SignalState
}

func NewMachine() *Machine {
	return &Machine{state: models.StateNeutral}
}

// Update advances the machine with a raw ratio observed at now.
// The first observation is compared against itself (zero change).
func (m *Machine) Update(raw float64, now time.Time) models.OrderBookSignal {
	change := 0.0
	if m.hasPrev {
		change = math.Abs(raw - m.prevRaw)
	}
	m.prevRaw, m.hasPrev = raw, true

	switch {
	case change > VolatileJump:
		m.cooldownUntil = now.Add(Cooldown)
		m.clearDwell()
		m.state = models.StateVolatile

	case now.Before(m.cooldownUntil):
		m.state = models.StateVolatile

	case change > IndeterminateJump:
		m.clearDwell()
		m.state = models.StateNeutral

	case raw >= LongRatioMin && raw <= LongRatioMax:
		m.shortSince = nil
		if m.longSince == nil {
			start := now
			m.longSince = &start
		}
		m.state = models.StateLongDwell
		if now.Sub(*m.longSince) >= Dwell {
			m.state = models.StateConfirmedLong
		}

	case raw >= ShortRatioMin && raw <= ShortRatioMax:
		m.longSince = nil
		if m.shortSince == nil {
			start := now
			m.shortSince = &start
		}
		m.state = models.StateShortDwell
		if now.Sub(*m.shortSince) >= Dwell {
			m.state = models.StateConfirmedShort
		}

	default:
		m.clearDwell()
		m.state = models.StateNeutral
	}

	return m.Signal()
}

// Disqualify advances the machine with an observation whose ratio is
// undefined (no liquidity inside the window on either side). Both dwell
// timers are cleared; prevRaw is kept so the next defined ratio is compared
// against the last defined one.
func (m *Machine) Disqualify(now time.Time) models.OrderBookSignal {
	m.clearDwell()
	if now.Before(m.cooldownUntil) {
		m.state = models.StateVolatile
	} else {
		m.state = models.StateNeutral
	}
	return m.Signal()
}

// Signal reports the current state without advancing it.
func (m *Machine) Signal() models.OrderBookSignal {
	switch m.state {
	case models.StateConfirmedLong:
		return models.OrderBookSignal{State: m.state, Direction: models.DirectionLong, Weight: ConfirmedWeight}
	case models.StateConfirmedShort:
		return models.OrderBookSignal{State: m.state, Direction: models.DirectionShort, Weight: ConfirmedWeight}
	}
	return models.OrderBookSignal{State: m.state, Direction: models.DirectionNeutral}
}

func (m *Machine) State() models.SignalState { return m.state }

func (m *Machine) LongDwellStart() (time.Time, bool)  { return since(m.longSince) }
func (m *Machine) ShortDwellStart() (time.Time, bool) { return since(m.shortSince) }

func (m *Machine) CooldownUntil() time.Time { return m.cooldownUntil }

func (m *Machine) clearDwell() {
	m.longSince = nil
	m.shortSince = nil
}

func since(p *time.Time) (time.Time, bool) {
	if p == nil {
		return time.Time{}, false
	}
	return *p, true
}
