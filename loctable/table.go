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
// Package loctable implements the Geonetworking Location Table: per-neighbour
// state keyed by link-layer address, with freshness-gated position updates,
// duplicate-packet detection, a packet-data-rate estimator and the optional
// ITS-G5 DCC extension fields.
package loctable

import (
	"time"

	"github.com/veloce/gnrouter/gnaddr"
)

// Capacity is the maximum number of tracked neighbours
// (GN_LOC_TABLE_ENTRY_COUNT in the MIB). When full, the entry with the
// smallest ExpiresAt is evicted to make room.
const Capacity = 16

// DefaultLifetime is how long an entry survives without a refreshing
// position update before it becomes eligible for expiry.
const DefaultLifetime = 20 * time.Second

// G5ExtensionLifetime bounds how long the DCC extension fields remain
// valid once recorded.
const G5ExtensionLifetime = time.Second

// G5Extension carries ITS-G5-medium-specific channel load readings learned
// from a neighbour's SHB DCC-MCO field.
type G5Extension struct {
	UpdatedAt  time.Time
	LocalCBR   float64
	OneHopCBR  float64
	TxPowerDBm uint8
}

func (g *G5Extension) valid(now time.Time) bool {
	return g != nil && now.Sub(g.UpdatedAt) <= G5ExtensionLifetime
}

// Entry is the per-neighbour state tracked by the Location Table.
type Entry struct {
	PositionVector gnaddr.LongPV
	IsNeighbour    bool
	ExpiresAt      time.Time

	dpl        duplicatePacketList
	pdr        float64 // bytes/sec, EMA smoothed
	lastPacket time.Time
	extension  *G5Extension
}

// PacketDataRate returns the current EMA estimate of this neighbour's
// packet data rate in bytes/second.
func (e *Entry) PacketDataRate() float64 { return e.pdr }

// Extension returns the neighbour's DCC extension readings, or nil if none
// have been recorded or the last recording has expired.
func (e *Entry) Extension(now time.Time) *G5Extension {
	if e.extension.valid(now) {
		return e.extension
	}
	return nil
}

const pdrBeta = 0.9

func (e *Entry) updatePDR(now time.Time, sizeBytes int) {
	if e.lastPacket.IsZero() {
		e.lastPacket = now
		return
	}
	dt := now.Sub(e.lastPacket).Seconds()
	e.lastPacket = now
	if dt <= 0 {
		return
	}
	sample := float64(sizeBytes) / dt
	e.pdr = e.pdr*pdrBeta + sample*(1-pdrBeta)
}

// Table is the Location Table: a map of neighbour entries keyed by
// link-layer address, bounded to Capacity with oldest-expiry eviction.
type Table struct {
	entries map[[6]byte]*Entry
}

// New constructs an empty Location Table.
func New() *Table {
	return &Table{entries: make(map[[6]byte]*Entry)}
}

// Find returns the entry for linkAddr, or nil if unknown.
func (t *Table) Find(linkAddr [6]byte) *Entry {
	return t.entries[linkAddr]
}

// Remove deletes the entry for linkAddr, if present.
func (t *Table) Remove(linkAddr [6]byte) {
	delete(t.entries, linkAddr)
}

// Clear empties the table.
func (t *Table) Clear() {
	t.entries = make(map[[6]byte]*Entry)
}

// Update inserts or freshness-gates an update to the entry for lpv.Address.
// The position vector is replaced only if lpv is fresher than the entry's
// current one (invariant I2); isNeighbour marks the station as one-hop
// (learned from a Beacon/SHB) rather than multi-hop. sizeBytes is the size
// of the packet that carried this update, used to maintain the packet data
// rate estimate. Returns the (possibly newly created) entry.
func (t *Table) Update(now time.Time, lpv gnaddr.LongPV, isNeighbour bool, sizeBytes int) *Entry {
	key := lpv.Address.LinkAddr
	e, ok := t.entries[key]
	if !ok {
		t.evictIfFull(now)
		e = &Entry{PositionVector: lpv, ExpiresAt: now.Add(DefaultLifetime)}
		t.entries[key] = e
	} else if lpv.Timestamp.FresherThan(e.PositionVector.Timestamp) {
		e.PositionVector = lpv
		e.ExpiresAt = now.Add(DefaultLifetime)
	}
	if isNeighbour {
		e.IsNeighbour = true
	}
	e.updatePDR(now, sizeBytes)
	return e
}

// UpdateIf behaves like Update but only applies when predicate(existing)
// returns true for an already-present entry; existing is nil for a fresh
// insert, in which case the predicate is not consulted.
func (t *Table) UpdateIf(now time.Time, lpv gnaddr.LongPV, isNeighbour bool, sizeBytes int, predicate func(existing *Entry) bool) *Entry {
	key := lpv.Address.LinkAddr
	if e, ok := t.entries[key]; ok && predicate != nil && !predicate(e) {
		return e
	}
	return t.Update(now, lpv, isNeighbour, sizeBytes)
}

// RecordExtension stores the latest DCC extension reading for a known
// neighbour. No-op if the neighbour is unknown.
func (t *Table) RecordExtension(linkAddr [6]byte, now time.Time, ext G5Extension) {
	if e, ok := t.entries[linkAddr]; ok {
		ext.UpdatedAt = now
		e.extension = &ext
	}
}

func (t *Table) evictIfFull(now time.Time) {
	if len(t.entries) < Capacity {
		return
	}
	var victim [6]byte
	var victimAt time.Time
	first := true
	for k, e := range t.entries {
		if first || e.ExpiresAt.Before(victimAt) {
			victim, victimAt = k, e.ExpiresAt
			first = false
		}
	}
	delete(t.entries, victim)
}

// EvictExpired drops every entry whose ExpiresAt has passed.
func (t *Table) EvictExpired(now time.Time) {
	for k, e := range t.entries {
		if !e.ExpiresAt.After(now) {
			delete(t.entries, k)
		}
	}
}

// DuplicatePacketDetection reports (found, duplicate): found is false if
// the originator is unknown; duplicate is true if seq has already been
// recorded for that originator. A successful call updates the duplicate
// packet list regardless of outcome.
func (t *Table) DuplicatePacketDetection(linkAddr [6]byte, seq gnaddr.SeqNumber, now time.Time) (found, duplicate bool) {
	e, ok := t.entries[linkAddr]
	if !ok {
		return false, false
	}
	return true, e.dpl.checkAndUpdate(seq, now)
}

// DuplicateCounter returns how many times seq has been seen from linkAddr.
func (t *Table) DuplicateCounter(linkAddr [6]byte, seq gnaddr.SeqNumber) uint32 {
	e, ok := t.entries[linkAddr]
	if !ok {
		return 0
	}
	return e.dpl.counterFor(seq)
}

// NeighbourList returns every entry currently marked as a one-hop neighbour.
func (t *Table) NeighbourList() []*Entry {
	var out []*Entry
	for _, e := range t.entries {
		if e.IsNeighbour {
			out = append(out, e)
		}
	}
	return out
}

// HasNeighbour reports whether any one-hop neighbour is known.
func (t *Table) HasNeighbour() bool {
	for _, e := range t.entries {
		if e.IsNeighbour {
			return true
		}
	}
	return false
}

// Len returns the number of tracked entries.
func (t *Table) Len() int { return len(t.entries) }

// LocalOneHopCBRValues returns the (local, one-hop-max) CBR pair for every
// neighbour with a currently-valid G5 extension, feeding the Limeric rate
// controller's channel-load input.
func (t *Table) LocalOneHopCBRValues(now time.Time) [][2]float64 {
	var out [][2]float64
	for _, e := range t.entries {
		if ext := e.Extension(now); ext != nil {
			out = append(out, [2]float64{ext.LocalCBR, ext.OneHopCBR})
		}
	}
	return out
}
