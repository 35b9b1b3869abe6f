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
// Package buffer implements the Geonetworking packet buffers: the
// byte- and slot-bounded FIFO used for the UC, BC and LS deferred-egress
// queues (§4.4), and the CBF-specific contention buffer (§4.5).
package buffer

import (
	"errors"
	"time"
)

// ErrTooBig is returned by Enqueue when the entry alone exceeds the
// buffer's byte capacity — the one BufferFull case that is never resolved
// by eviction.
var ErrTooBig = errors.New("buffer: entry exceeds capacity")

// Meta is the minimal per-entry information a packet buffer needs from its
// caller: how many bytes it occupies and how long it should live once
// queued. Forwarders embed their own richer metadata alongside this.
type Meta struct {
	HeaderSize int
	Lifetime   time.Duration
}

// Entry is one buffered packet: a destination/originator key used to find
// entries for dequeue, the buffer metadata, and the raw payload bytes.
type Entry struct {
	Key       [6]byte
	Meta      Meta
	Payload   []byte
	Size      int
	ExpiresAt time.Time
}

// Buffer is a FIFO queue bounded by both total byte size and slot count,
// evicting from the front (oldest) when either bound would be exceeded by
// an incoming enqueue.
type Buffer struct {
	entries      []Entry
	byteCapacity int
	slotCapacity int
	bytes        int
}

// New constructs a Buffer with the given byte and slot capacities — e.g.
// NewUC() below wires the UC defaults, but forwarders needing a
// differently-sized buffer can call this directly.
func New(byteCapacity, slotCapacity int) *Buffer {
	return &Buffer{byteCapacity: byteCapacity, slotCapacity: slotCapacity}
}

// UCByteCapacity is the default Unicast buffer byte bound.
const UCByteCapacity = 256_000

// UCSlotCapacity is the default Unicast buffer slot bound.
const UCSlotCapacity = 128

// BCByteCapacity is the default Broadcast buffer byte bound.
const BCByteCapacity = 256_000

// BCSlotCapacity is the default Broadcast buffer slot bound.
const BCSlotCapacity = 128

// LSByteCapacity is the default Location-Service-pending buffer byte bound.
const LSByteCapacity = 64_000

// LSSlotCapacity is the default Location-Service-pending buffer slot bound.
const LSSlotCapacity = 32

// NewUC constructs the Unicast packet buffer with its MIB-default bounds.
func NewUC() *Buffer { return New(UCByteCapacity, UCSlotCapacity) }

// NewBC constructs the Broadcast packet buffer with its MIB-default bounds.
func NewBC() *Buffer { return New(BCByteCapacity, BCSlotCapacity) }

// NewLS constructs the Location-Service-pending packet buffer with its
// MIB-default bounds.
func NewLS() *Buffer { return New(LSByteCapacity, LSSlotCapacity) }

// ByteCapacity returns the buffer's total byte bound.
func (b *Buffer) ByteCapacity() int { return b.byteCapacity }

// RemainingBytes returns how many bytes remain free.
func (b *Buffer) RemainingBytes() int { return b.byteCapacity - b.bytes }

// Len returns the number of entries currently queued.
func (b *Buffer) Len() int { return len(b.entries) }

// Enqueue appends e, evicting from the front as many times as needed to
// make room by bytes, then once more if the slot count is still at
// capacity. An entry whose size alone exceeds the buffer's byte capacity is
// rejected outright with ErrTooBig.
func (b *Buffer) Enqueue(e Entry) error {
	if e.Size > b.byteCapacity {
		return ErrTooBig
	}
	for b.RemainingBytes() < e.Size && len(b.entries) > 0 {
		b.popFront()
	}
	if len(b.entries) >= b.slotCapacity {
		b.popFront()
	}
	b.entries = append(b.entries, e)
	b.bytes += e.Size
	return nil
}

func (b *Buffer) popFront() {
	if len(b.entries) == 0 {
		return
	}
	b.bytes -= b.entries[0].Size
	b.entries = b.entries[1:]
}

// DequeueKey removes and returns every entry whose Key matches key, in
// FIFO order — used when a Location Service reply resolves a destination
// or a neighbour newly appears, releasing every packet blocked on it.
func (b *Buffer) DequeueKey(key [6]byte) []Entry {
	var out []Entry
	kept := b.entries[:0]
	for _, e := range b.entries {
		if e.Key == key {
			out = append(out, e)
			b.bytes -= e.Size
		} else {
			kept = append(kept, e)
		}
	}
	b.entries = kept
	return out
}

// DequeueExpired removes and returns every entry whose ExpiresAt has
// passed, in FIFO order. Called from the egress poll; entries returned
// this way are dropped silently by the caller, never retransmitted.
func (b *Buffer) DequeueExpired(now time.Time) []Entry {
	var out []Entry
	kept := b.entries[:0]
	for _, e := range b.entries {
		if !e.ExpiresAt.After(now) {
			out = append(out, e)
			b.bytes -= e.Size
		} else {
			kept = append(kept, e)
		}
	}
	b.entries = kept
	return out
}

// Drain removes and returns every queued entry, in FIFO order — used by a
// forwarder retry sweep (e.g. greedy unicast re-evaluating all pending
// entries after the neighbour table changes).
func (b *Buffer) Drain() []Entry {
	out := b.entries
	b.entries = nil
	b.bytes = 0
	return out
}
