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
package forward

import (
	"bytes"
	"math/rand"
	"time"

	"github.com/veloce/gnrouter/gnaddr"
	"github.com/veloce/gnrouter/loctable"
)

// Outcome classifies what a forwarding algorithm did with a packet, fed
// into the metrics package's per-algorithm counters.
type Outcome int

const (
	OutcomeForwarded Outcome = iota
	OutcomeBuffered
	OutcomeDropped
	OutcomeDelivered
)

// Duplicate reports whether a packet from originator carrying seq has
// already been seen, per §4.6's "before forwarding, query
// DuplicatePacketDetection; if (true,true), drop". An unknown originator
// is never treated as a duplicate.
func Duplicate(table *loctable.Table, originator gnaddr.Address, seq gnaddr.SeqNumber, now time.Time) bool {
	found, dup := table.DuplicatePacketDetection(originator.LinkAddr, seq, now)
	return found && dup
}

// GreedyUnicast implements §4.6.1: choose the neighbour that makes the most
// progress towards dest. It returns the chosen next-hop link address and
// true, or (zero, false) if no neighbour improves on our own distance to
// dest — the caller must then enqueue the packet in the UC buffer for
// retry on neighbour-table change.
func GreedyUnicast(table *loctable.Table, self Point, dest Point) ([6]byte, bool) {
	ownDist := HaversineMeters(self, dest)
	best, bestDist := [6]byte{}, 0.0
	found := false

	for _, n := range table.NeighbourList() {
		np := Point{n.PositionVector.LatitudeDegrees(), n.PositionVector.LongitudeDegrees()}
		d := HaversineMeters(np, dest)
		if d >= ownDist {
			continue
		}
		addr := n.PositionVector.Address.LinkAddr
		switch {
		case !found:
			best, bestDist, found = addr, d, true
		case d < bestDist:
			best, bestDist = addr, d
		case d == bestDist && bytes.Compare(addr[:], best[:]) < 0:
			best = addr
		}
	}
	return best, found
}

// CBFDecision is the outcome of evaluating an inbound packet for
// Contention-Based Forwarding.
type CBFDecision int

const (
	// CBFEnqueue: not already contending for this packet; start a timer.
	CBFEnqueue CBFDecision = iota
	// CBFCancel: another node is already contending (or has already
	// forwarded); withdraw from the race.
	CBFCancel
)

// EvaluateCBF implements the first half of §4.6.2/4.6.3: decide whether an
// inbound packet identified by id is new to the contention buffer (start a
// timer) or already present (another forwarder raced us — cancel).
func EvaluateCBF(alreadyBuffered bool) CBFDecision {
	if alreadyBuffered {
		return CBFCancel
	}
	return CBFEnqueue
}

// SimpleAreaFlood implements §4.6.4: forward once to every neighbour inside
// area whose remaining hop limit (rhl) is greater than zero. Returns the
// link addresses to transmit to.
func SimpleAreaFlood(table *loctable.Table, area Area, rhl uint8) [][6]byte {
	if rhl == 0 {
		return nil
	}
	var out [][6]byte
	for _, n := range table.NeighbourList() {
		p := Point{n.PositionVector.LatitudeDegrees(), n.PositionVector.LongitudeDegrees()}
		if area.Contains(p) {
			out = append(out, n.PositionVector.Address.LinkAddr)
		}
	}
	return out
}

// TSBForward implements §4.6.5: decrement the remaining hop limit and
// report whether the packet should be rebroadcast (rhl > 0 after
// decrementing and it is not a duplicate).
func TSBForward(table *loctable.Table, originator gnaddr.Address, seq gnaddr.SeqNumber, rhl uint8, now time.Time) (newRHL uint8, rebroadcast bool) {
	if rhl == 0 {
		return 0, false
	}
	newRHL = rhl - 1
	if newRHL == 0 {
		return newRHL, false
	}
	if Duplicate(table, originator, seq, now) {
		return newRHL, false
	}
	return newRHL, true
}

// BeaconInterval and BeaconJitter define the own-beacon cadence (§4.6.7):
// every BeaconInterval, plus or minus a uniformly random offset within
// ±BeaconJitter.
const (
	BeaconInterval = 3 * time.Second
	BeaconJitter   = 750 * time.Millisecond
)

// NextBeaconAt returns the instant the next own beacon should be
// transmitted, jittered around BeaconInterval after from.
func NextBeaconAt(from time.Time, rnd *rand.Rand) time.Time {
	jitter := time.Duration(rnd.Int63n(int64(2*BeaconJitter+1))) - BeaconJitter
	return from.Add(BeaconInterval + jitter)
}
