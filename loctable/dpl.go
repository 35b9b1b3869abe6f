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
package loctable

import (
	"time"

	"github.com/veloce/gnrouter/gnaddr"
)

// DPLLength is the duplicate-packet-list capacity per neighbour
// (GN_DPL_LENGTH in the MIB).
const DPLLength = 8

type dplEntry struct {
	used       bool
	seq        gnaddr.SeqNumber
	lastSeenAt time.Time
	counter    uint32
}

// duplicatePacketList is a bounded ring of recently seen sequence numbers
// per originator, used to detect and count retransmitted duplicates.
type duplicatePacketList struct {
	entries [DPLLength]dplEntry
}

// checkAndUpdate reports whether seq has been seen before. If it has, the
// matching slot's lastSeenAt and counter are updated and true is returned.
// If it has not, seq is written into the first free slot by ascending
// index, or — when the list is full — into the slot with the smallest
// lastSeenAt, and false is returned to mean "no duplicate, list updated".
func (d *duplicatePacketList) checkAndUpdate(seq gnaddr.SeqNumber, now time.Time) (duplicate bool) {
	for i := range d.entries {
		e := &d.entries[i]
		if e.used && e.seq == seq {
			e.lastSeenAt = now
			e.counter++
			return true
		}
	}

	for i := range d.entries {
		if !d.entries[i].used {
			d.entries[i] = dplEntry{used: true, seq: seq, lastSeenAt: now, counter: 1}
			return false
		}
	}

	oldest := 0
	for i := 1; i < len(d.entries); i++ {
		if d.entries[i].lastSeenAt.Before(d.entries[oldest].lastSeenAt) {
			oldest = i
		}
	}
	d.entries[oldest] = dplEntry{used: true, seq: seq, lastSeenAt: now, counter: 1}
	return false
}

// counterFor returns the duplicate-hit count last recorded for seq, or 0 if
// seq is not currently tracked.
func (d *duplicatePacketList) counterFor(seq gnaddr.SeqNumber) uint32 {
	for i := range d.entries {
		if d.entries[i].used && d.entries[i].seq == seq {
			return d.entries[i].counter
		}
	}
	return 0
}
