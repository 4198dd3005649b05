package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market_pulse/internal/models"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(sec float64) time.Time { return t0.Add(time.Duration(sec * float64(time.Second))) }

func TestDwellConfirmsLongOnlyAfterTwentySeconds(t *testing.T) {
	m := NewMachine()
	ratios := []float64{2.1, 2.2, 2.3, 2.1, 2.4, 2.5}
	for i, r := range ratios {
		now := at(float64(i * 5))
		sig := m.Update(r, now)

		start, ok := m.LongDwellStart()
		require.True(t, ok)
		assert.Equal(t, t0, start, "dwell starts at t=0 and is never restarted")

		if now.Sub(t0) < Dwell {
			assert.Equal(t, models.StateLongDwell, sig.State, "t=%v", now.Sub(t0))
			assert.Equal(t, 0.0, sig.Weight)
		} else {
			assert.Equal(t, models.StateConfirmedLong, sig.State, "t=%v", now.Sub(t0))
			assert.Equal(t, models.DirectionLong, sig.Direction)
			assert.Equal(t, ConfirmedWeight, sig.Weight)
		}
	}
}

func TestConfirmsShortSymmetrically(t *testing.T) {
	m := NewMachine()
	for i := 0; i <= 4; i++ {
		m.Update(0.5, at(float64(i*5)))
	}
	sig := m.Signal()
	assert.Equal(t, models.StateConfirmedShort, sig.State)
	assert.Equal(t, models.DirectionShort, sig.Direction)
	_, long := m.LongDwellStart()
	assert.False(t, long)
}

func TestJumpForcesVolatileFromAnyState(t *testing.T) {
	for name, warmup := range map[string]float64{
		"from long dwell":  2.5,
		"from short dwell": 0.5,
		"from neutral":     1.2,
	} {
		t.Run(name, func(t *testing.T) {
			m := NewMachine()
			for i := 0; i < 6; i++ {
				m.Update(warmup, at(float64(i*5)))
			}
			sig := m.Update(warmup+1.01, at(30))
			assert.Equal(t, models.StateVolatile, sig.State)
			assert.Equal(t, 0.0, sig.Weight)
			_, long := m.LongDwellStart()
			_, short := m.ShortDwellStart()
			assert.False(t, long)
			assert.False(t, short)
			assert.Equal(t, at(30).Add(Cooldown), m.CooldownUntil())
		})
	}
}

func TestCooldownHoldsVolatile(t *testing.T) {
	m := NewMachine()
	m.Update(1.0, at(0))
	m.Update(2.5, at(1)) // jump 1.5

	sig := m.Update(2.5, at(5))
	assert.Equal(t, models.StateVolatile, sig.State)
	_, long := m.LongDwellStart()
	assert.False(t, long, "no dwell accrues during cooldown")

	sig = m.Update(2.5, at(11))
	assert.Equal(t, models.StateLongDwell, sig.State)
	start, ok := m.LongDwellStart()
	require.True(t, ok)
	assert.Equal(t, at(11), start)
}

func TestIndeterminateJumpResetsDwell(t *testing.T) {
	m := NewMachine()
	m.Update(2.1, at(0))
	m.Update(2.2, at(5))
	sig := m.Update(3.1, at(10)) // change 0.9
	assert.Equal(t, models.StateNeutral, sig.State)
	_, ok := m.LongDwellStart()
	assert.False(t, ok)

	// next qualifying update restarts from zero
	m.Update(3.0, at(15))
	start, ok := m.LongDwellStart()
	require.True(t, ok)
	assert.Equal(t, at(15), start)
	sig = m.Update(3.0, at(30))
	assert.Equal(t, models.StateLongDwell, sig.State)
	sig = m.Update(3.0, at(35))
	assert.Equal(t, models.StateConfirmedLong, sig.State)
}

func TestDisqualifyingRatioResetsDwell(t *testing.T) {
	m := NewMachine()
	m.Update(2.1, at(0))
	m.Update(2.1, at(15))
	sig := m.Update(1.5, at(17)) // outside both bands
	assert.Equal(t, models.StateNeutral, sig.State)

	m.Update(2.1, at(19))
	sig = m.Update(2.1, at(25))
	assert.Equal(t, models.StateLongDwell, sig.State, "dwell never resumes from a partial count")
}

func TestSwitchingSideClearsOppositeTimer(t *testing.T) {
	m := NewMachine()
	m.Update(0.85, at(0))
	_, short := m.ShortDwellStart()
	require.True(t, short)

	m.Update(1.6, at(1))  // neutral band
	m.Update(2.05, at(2)) // long band
	_, short = m.ShortDwellStart()
	_, long := m.LongDwellStart()
	assert.False(t, short)
	assert.True(t, long)
}

func TestRatioAboveLongBandIsNeutral(t *testing.T) {
	m := NewMachine()
	m.Update(5.0, at(0))
	assert.Equal(t, models.StateLongDwell, m.State())
	sig := m.Update(5.5, at(1))
	assert.Equal(t, models.StateNeutral, sig.State)
}

func TestDisqualifyClearsDwellTimers(t *testing.T) {
	m := NewMachine()
	m.Update(2.3, at(0))

	sig := m.Disqualify(at(5))
	assert.Equal(t, models.StateNeutral, sig.State)
	_, ok := m.LongDwellStart()
	assert.False(t, ok)

	// prevRaw не тронут: 2.3 снова без скачка, dwell стартует с нуля
	sig = m.Update(2.3, at(21))
	assert.Equal(t, models.StateLongDwell, sig.State)
	start, ok := m.LongDwellStart()
	require.True(t, ok)
	assert.Equal(t, at(21), start)
}

func TestDisqualifyKeepsCooldown(t *testing.T) {
	m := NewMachine()
	m.Update(0.5, at(0))
	m.Update(2.5, at(1)) // скачок 2.0: volatile до t=11

	assert.Equal(t, models.StateVolatile, m.Disqualify(at(5)).State)
	assert.Equal(t, models.StateNeutral, m.Disqualify(at(12)).State)
}
