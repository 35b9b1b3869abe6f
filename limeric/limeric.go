/*
 * VC5 load balancer. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */
// Package limeric implements the Limeric DCC duty-cycle rate controller
// (§4.7, ETSI TS 102 687 Annex B): it regulates the router's own
// transmission interval from a smoothed channel-busy-ratio reading,
// gating egress until tx_allowed_at has passed.
//
// DESIGN.md Open Question #1: the original re-derives its update_interval
// branch by subtracting two "total microsecond" Instant values and
// branching on sign to pick between Annex B equations B.1 and B.2. This
// port keeps time.Duration arithmetic throughout instead of manually
// tracking microsecond units, which removes an entire class of
// unit-conversion bugs without changing which branch fires when.
package limeric

import "time"

// MinInterval and MaxInterval bound the computed transmission interval.
const (
	MinInterval = 25 * time.Millisecond
	MaxInterval = time.Second
)

// cbrHistorySize is the number of 100ms CBR samples averaged together
// (Limeric needs at least two measurements spanning 200ms).
const cbrHistorySize = 2

// Parameters holds the tunables of ETSI TS 102 687 Annex B, Table 3.
type Parameters struct {
	Alpha      float64
	Beta       float64
	DeltaMin   float64
	DeltaMax   float64
	GMinusMax  float64
	GPlusMax   float64
	CBRTarget  float64
	CBRInterval time.Duration
}

// Default returns the standard Limeric parameter set (§4.7).
func Default() Parameters {
	return Parameters{
		Alpha:       0.016,
		Beta:        0.0012,
		DeltaMin:    6e-4,
		DeltaMax:    0.03,
		GMinusMax:   -2.5e-4,
		GPlusMax:    5e-4,
		CBRTarget:   0.68,
		CBRInterval: 100 * time.Millisecond,
	}
}

// DualAlphaParameters configures the faster-converging variant (§4.7,
// "Dual-alpha variant").
type DualAlphaParameters struct {
	AlphaHigh float64
	Threshold float64
}

// DefaultDualAlpha returns the standard dual-alpha tunables.
func DefaultDualAlpha() DualAlphaParameters {
	return DualAlphaParameters{AlphaHigh: 0.1, Threshold: 1e-5}
}

// Controller is a single Limeric rate-controller instance, one per access
// category or one globally, per the caller's egress model.
type Controller struct {
	params    Parameters
	dualAlpha *DualAlphaParameters

	lastTxAt       time.Time
	lastTxDuration time.Duration
	txInterval     time.Duration
	dutyCycle      float64
	channelLoad    float64

	cbrHist    [cbrHistorySize]float64
	cbrHistLen int

	nextRunAt      time.Time
	nextTxAllowed  time.Time
	nextCBRReadAt  time.Time
}

// New constructs a Controller with the given parameters. The duty cycle is
// seeded at the midpoint of [DeltaMin, DeltaMax], matching the original's
// Limeric::new.
func New(params Parameters) *Controller {
	return &Controller{
		params:     params,
		txInterval: MinInterval,
		dutyCycle:  0.5 * (params.DeltaMin + params.DeltaMax),
	}
}

// EnableDualAlpha turns on the dual-alpha convergence variant.
func (c *Controller) EnableDualAlpha(p DualAlphaParameters) { c.dualAlpha = &p }

// DualAlphaEnabled reports whether the dual-alpha variant is active.
func (c *Controller) DualAlphaEnabled() bool { return c.dualAlpha != nil }

// DutyCycle returns the controller's current duty cycle (delta).
func (c *Controller) DutyCycle() float64 { return c.dutyCycle }

// TxInterval returns the currently computed transmission interval.
func (c *Controller) TxInterval() time.Duration { return c.txInterval }

// TxAllowedAt returns the instant the egress poll may release the next
// queued packet.
func (c *Controller) TxAllowedAt() time.Time { return c.nextTxAllowed }

// UpdateCBR feeds a fresh 100ms-window channel-busy-ratio sample. Samples
// arriving before nextCBRReadAt are ignored (the controller only reads the
// channel every CBRInterval).
func (c *Controller) UpdateCBR(now time.Time, cbr float64) {
	if now.Before(c.nextCBRReadAt) {
		return
	}
	full := c.cbrHistLen == cbrHistorySize
	if full {
		copy(c.cbrHist[:], c.cbrHist[1:])
		c.cbrHist[cbrHistorySize-1] = cbr
	} else {
		c.cbrHist[c.cbrHistLen] = cbr
		c.cbrHistLen++
	}
	if !full {
		c.channelLoad = c.cbrHistAverage()
	}
	c.nextCBRReadAt = now.Add(c.params.CBRInterval)
}

func (c *Controller) cbrHistAverage() float64 {
	if c.cbrHistLen == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < c.cbrHistLen; i++ {
		sum += c.cbrHist[i]
	}
	return sum / float64(c.cbrHistLen)
}

// smoothedCBR implements the two-slot-history smoothing (§4.7): once two
// full 100ms samples are available, the smoothed value is half the
// two-sample historical average and half the current channelLoad, which
// Run last set to the previous smoothed value.
func (c *Controller) smoothedCBR() float64 {
	if c.cbrHistLen == cbrHistorySize {
		return 0.5*c.cbrHistAverage() + 0.5*c.channelLoad
	}
	return c.channelLoad
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

// calculateDutyCycle applies the Limeric recurrence, with the optional
// dual-alpha fast-convergence branch.
func (c *Controller) calculateDutyCycle() float64 {
	delta := c.params.CBRTarget - c.channelLoad

	var g float64
	if delta > 0 {
		g = minF(c.params.Beta*delta, c.params.GPlusMax)
	} else {
		g = maxF(c.params.Beta*delta, c.params.GMinusMax)
	}

	candidate := clamp((1-c.params.Alpha)*c.dutyCycle+g, c.params.DeltaMin, c.params.DeltaMax)

	if c.dualAlpha != nil && c.dutyCycle-candidate > c.dualAlpha.Threshold {
		candidate = clamp((1-c.dualAlpha.AlphaHigh)*c.dutyCycle+g, c.params.DeltaMin, c.params.DeltaMax)
	}

	return clamp(candidate, 0, 1)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// scheduleNextRun aligns the next Limeric run to a CBRInterval*2 boundary,
// mirroring the original's phase-locking of the algorithm to the CBR
// sampling cadence.
func (c *Controller) scheduleNextRun(now time.Time) time.Time {
	interval := c.params.CBRInterval * 2
	next := now.Add(interval)
	bias := next.Sub(next.Truncate(interval))
	if bias > c.params.CBRInterval {
		return next.Add(interval - bias)
	}
	return next.Add(-bias)
}

// updateInterval recomputes TxInterval from the current duty cycle,
// re-deriving ETSI TS 102 687 Annex B equations B.1/B.2 directly in
// time.Duration arithmetic (see the package doc and DESIGN.md Open
// Question #1).
func (c *Controller) updateInterval(now time.Time) {
	if c.dutyCycle <= 0 {
		c.txInterval = MaxInterval
		return
	}

	delay := c.nextTxAllowed.Sub(now)
	if delay > 0 {
		// Equation B.2: the gate is still closed; scale the raw
		// last-duration-over-duty-cycle interval by how much of the
		// previous tx_interval the remaining delay represents.
		base := float64(c.lastTxDuration) / c.dutyCycle
		ratio := float64(delay) / float64(c.txInterval)
		interval := now.Sub(c.lastTxAt) + time.Duration(base*ratio)
		c.txInterval = clampDuration(interval, MinInterval, MaxInterval)
		return
	}

	// Equation B.1: gate already open.
	interval := time.Duration(float64(c.lastTxDuration) / c.dutyCycle)
	c.txInterval = clampDuration(interval, MinInterval, MaxInterval)
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// Run executes one Limeric iteration if now has reached the scheduled run
// time; otherwise it is a no-op. Recomputes the smoothed channel load, the
// duty cycle, the next run deadline, and the transmission interval.
func (c *Controller) Run(now time.Time) {
	if now.Before(c.nextRunAt) {
		return
	}
	c.channelLoad = c.smoothedCBR()
	c.dutyCycle = c.calculateDutyCycle()
	c.nextRunAt = c.scheduleNextRun(now)
	c.updateInterval(now)
}

// RunAt returns the earliest of the next scheduled algorithm run and the
// next CBR read — the deadline the core engine's poll loop should wake up
// for.
func (c *Controller) RunAt() time.Time {
	if c.nextCBRReadAt.Before(c.nextRunAt) {
		return c.nextCBRReadAt
	}
	return c.nextRunAt
}

// NotifyTx records that a transmission of duration txDuration occurred at
// txAt, recomputing the interval and the next allowed transmission time.
func (c *Controller) NotifyTx(txAt time.Time, txDuration time.Duration) {
	if c.dutyCycle > 0 {
		interval := time.Duration(float64(txDuration) / c.dutyCycle)
		c.txInterval = clampDuration(interval, MinInterval, MaxInterval)
	} else {
		c.txInterval = MaxInterval
	}
	c.lastTxAt = txAt
	c.lastTxDuration = txDuration
	c.nextTxAllowed = c.lastTxAt.Add(c.txInterval)
}

// LocalCBR returns the most recently sampled raw CBR reading, or 0 if none
// has been recorded yet.
func (c *Controller) LocalCBR() float64 {
	if c.cbrHistLen == 0 {
		return 0
	}
	return c.cbrHist[c.cbrHistLen-1]
}

// TargetCBR returns the configured CBR target.
func (c *Controller) TargetCBR() float64 { return c.params.CBRTarget }
