package limeric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSeedsDutyCycleAtMidpoint(t *testing.T) {
	c := New(Default())
	want := 0.5 * (Default().DeltaMin + Default().DeltaMax)
	require.Equal(t, want, c.DutyCycle())
	require.Equal(t, MinInterval, c.TxInterval())
}

func TestHighChannelLoadDecreasesDutyCycleTowardFloor(t *testing.T) {
	c := New(Default())
	now := time.Now()

	for i := 0; i < 200; i++ {
		c.UpdateCBR(now, 1.0) // channel saturated, far above target
		c.Run(now)
		now = now.Add(250 * time.Millisecond)
	}

	require.InDelta(t, Default().DeltaMin, c.DutyCycle(), 1e-6)
}

func TestLowChannelLoadIncreasesDutyCycleTowardCeiling(t *testing.T) {
	c := New(Default())
	now := time.Now()

	for i := 0; i < 200; i++ {
		c.UpdateCBR(now, 0.0) // idle channel, far below target
		c.Run(now)
		now = now.Add(250 * time.Millisecond)
	}

	require.InDelta(t, Default().DeltaMax, c.DutyCycle(), 1e-6)
}

func TestDualAlphaConvergesFasterThanDefault(t *testing.T) {
	base := New(Default())
	dual := New(Default())
	dual.EnableDualAlpha(DefaultDualAlpha())
	require.True(t, dual.DualAlphaEnabled())
	require.False(t, base.DualAlphaEnabled())

	now := time.Now()
	for i := 0; i < 3; i++ {
		base.UpdateCBR(now, 1.0)
		base.Run(now)
		dual.UpdateCBR(now, 1.0)
		dual.Run(now)
		now = now.Add(250 * time.Millisecond)
	}

	require.True(t, dual.DutyCycle() <= base.DutyCycle(), "dual-alpha should fall at least as fast toward the floor")
}

func TestRunIsNoopBeforeScheduledDeadline(t *testing.T) {
	c := New(Default())
	now := time.Now()
	c.UpdateCBR(now, 0.5)
	c.Run(now)
	first := c.DutyCycle()

	// Run again immediately, before nextRunAt: duty cycle must not move.
	c.UpdateCBR(now, 1.0)
	c.Run(now)
	require.Equal(t, first, c.DutyCycle())
}

func TestNotifyTxSetsTxAllowedAtFromDuration(t *testing.T) {
	c := New(Default())
	now := time.Now()
	c.dutyCycle = 0.1

	c.NotifyTx(now, 100*time.Millisecond)
	wantInterval := clampDuration(time.Second, MinInterval, MaxInterval) // 100ms/0.1 = 1s
	require.Equal(t, wantInterval, c.TxInterval())
	require.Equal(t, now.Add(wantInterval), c.TxAllowedAt())
}

func TestNotifyTxClampsToMaxIntervalWhenDutyCycleZero(t *testing.T) {
	c := New(Default())
	c.dutyCycle = 0
	now := time.Now()
	c.NotifyTx(now, 100*time.Millisecond)
	require.Equal(t, MaxInterval, c.TxInterval())
}

func TestLocalCBRReturnsLatestRawReadingAndZeroInitially(t *testing.T) {
	c := New(Default())
	require.Equal(t, 0.0, c.LocalCBR())

	now := time.Now()
	c.UpdateCBR(now, 0.42)
	require.Equal(t, 0.42, c.LocalCBR())

	now = now.Add(200 * time.Millisecond)
	c.UpdateCBR(now, 0.77)
	require.Equal(t, 0.77, c.LocalCBR())
}

func TestUpdateCBRIgnoresSamplesBeforeReadDeadline(t *testing.T) {
	c := New(Default())
	now := time.Now()
	c.UpdateCBR(now, 0.1)
	c.UpdateCBR(now.Add(10*time.Millisecond), 0.9) // too soon, ignored
	require.Equal(t, 0.1, c.LocalCBR())
}
