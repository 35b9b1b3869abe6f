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
// Package gnss defines the narrow boundary the core engine consumes for
// position fixes (§1: "the core consumes periodic position fixes via
// set_position(fix, now)"). The GNSS source itself — hardware driver, NMEA
// parser, replay file — is an external collaborator out of the hard core's
// scope.
package gnss

import "time"

// Fix is one position/kinematics sample, shaped to map directly onto the
// fields of a Long Position Vector.
type Fix struct {
	LatitudeDeg  float64
	LongitudeDeg float64
	// SpeedMPS is ground speed in metres/second, signed (negative implies
	// reverse where the source can detect it).
	SpeedMPS float64
	// HeadingDeg is true heading in degrees, [0,360).
	HeadingDeg float64
	Accurate   bool
}

// Source is polled by the engine once per main-loop iteration (§4.8).
type Source interface {
	// Fix returns the most recent position fix, and whether one is
	// available since the last call.
	Fix(now time.Time) (fix Fix, ok bool)
	// PollAt returns the instant the source should next be polled at (for
	// a replay-mode source with scheduled samples); ok=false means "poll
	// again next iteration".
	PollAt() (time.Time, bool)
}

// Static is a Source that always reports the same fixed fix — useful for
// stationary roadside units and for tests.
type Static struct {
	fix Fix
}

// NewStatic constructs a Source reporting fix forever.
func NewStatic(fix Fix) *Static { return &Static{fix: fix} }

func (s *Static) Fix(time.Time) (Fix, bool)    { return s.fix, true }
func (s *Static) PollAt() (time.Time, bool)    { return time.Time{}, false }
