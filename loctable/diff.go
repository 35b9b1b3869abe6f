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

// NeighbourDiff computes which link addresses were added to or dropped from
// the neighbour set between two NeighbourList snapshots. This is the same
// "compare previous and current address sets" technique the teacher's BGP
// RIB uses to compute NLRI/withdraw sets on each update — here applied to
// detecting neighbour churn so callers (e.g. the greedy forwarder's pending
// retry queue) can react only when the neighbour set actually changes.
func NeighbourDiff(prev, curr []*Entry) (added, removed [][6]byte) {
	prevSet := make(map[[6]byte]bool, len(prev))
	currSet := make(map[[6]byte]bool, len(curr))

	for _, e := range prev {
		prevSet[e.PositionVector.Address.LinkAddr] = true
	}
	for _, e := range curr {
		currSet[e.PositionVector.Address.LinkAddr] = true
	}

	for addr := range currSet {
		if !prevSet[addr] {
			added = append(added, addr)
		}
	}
	for addr := range prevSet {
		if !currSet[addr] {
			removed = append(removed, addr)
		}
	}
	return added, removed
}
