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
package buffer

import (
	"time"

	"github.com/veloce/gnrouter/gnaddr"
)

// CbfID identifies a contention-buffer entry by (originator, sequence
// number) — the same pair used for duplicate detection, since CBF and
// dedup race over the same packet identity.
type CbfID struct {
	Originator gnaddr.Address
	Seq        gnaddr.SeqNumber
}

// CBFMin and CBFMax bound the contention timer (§4.6.2/3).
const (
	CBFMin = time.Millisecond
	CBFMax = 100 * time.Millisecond
)

// VeloceCBFMaxRetransmit bounds how many times an area-broadcast CBF entry
// may be retransmitted (VELOCE_CBF_MAX_RETRANSMIT).
const VeloceCBFMaxRetransmit = 2

// CbfEntry is one contention-buffer node: a regular packet-buffer entry
// plus the CBF timer state and the link address the packet arrived from.
type CbfEntry struct {
	ID         CbfID
	Meta       Meta
	Payload    []byte
	Size       int
	ExpiresAt  time.Time
	CBFExpires time.Time
	CBFCounter uint8
	Sender     [6]byte
}

// ContentionBuffer is the CBF-specific sibling of Buffer: entries are
// indexed by CbfID rather than dequeued in FIFO order, since a CBF entry's
// identity (not its position in the queue) is what callers reference when
// cancelling a race.
type ContentionBuffer struct {
	byteCapacity int
	slotCapacity int
	bytes        int
	entries      []CbfEntry
}

// NewContention constructs a ContentionBuffer with the given byte and slot
// bounds.
func NewContention(byteCapacity, slotCapacity int) *ContentionBuffer {
	return &ContentionBuffer{byteCapacity: byteCapacity, slotCapacity: slotCapacity}
}

// DefaultContentionByteCapacity and DefaultContentionSlotCapacity mirror
// the UC buffer's defaults; the contention buffer holds packets awaiting
// forward/rebroadcast, the same scale of traffic as unicast egress.
const (
	DefaultContentionByteCapacity = UCByteCapacity
	DefaultContentionSlotCapacity = UCSlotCapacity
)

// NewDefaultContention constructs a ContentionBuffer with the MIB-default
// bounds.
func NewDefaultContention() *ContentionBuffer {
	return NewContention(DefaultContentionByteCapacity, DefaultContentionSlotCapacity)
}

// Len returns the number of entries currently queued.
func (c *ContentionBuffer) Len() int { return len(c.entries) }

func (c *ContentionBuffer) remainingBytes() int { return c.byteCapacity - c.bytes }

func (c *ContentionBuffer) popFront() {
	if len(c.entries) == 0 {
		return
	}
	c.bytes -= c.entries[0].Size
	c.entries = c.entries[1:]
}

// Enqueue inserts a new CBF entry, overwriting (evicting) the oldest entry
// on overflow exactly like Buffer.Enqueue. cbfTimer sets CBFExpires =
// now+cbfTimer; meta.Lifetime sets ExpiresAt = now+meta.Lifetime.
func (c *ContentionBuffer) Enqueue(meta Meta, payload []byte, id CbfID, cbfTimer time.Duration, now time.Time, sender [6]byte) error {
	size := meta.HeaderSize + len(payload)
	if size > c.byteCapacity {
		return ErrTooBig
	}
	for c.remainingBytes() < size && len(c.entries) > 0 {
		c.popFront()
	}
	if len(c.entries) >= c.slotCapacity {
		c.popFront()
	}
	c.entries = append(c.entries, CbfEntry{
		ID:         id,
		Meta:       meta,
		Payload:    payload,
		Size:       size,
		ExpiresAt:  now.Add(meta.Lifetime),
		CBFExpires: now.Add(cbfTimer),
		CBFCounter: 1,
		Sender:     sender,
	})
	c.bytes += size
	return nil
}

func (c *ContentionBuffer) indexOf(id CbfID) int {
	for i := range c.entries {
		if c.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *ContentionBuffer) removeAt(i int) CbfEntry {
	e := c.entries[i]
	c.bytes -= e.Size
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	return e
}

// Remove drops the entry identified by id, if present, reporting whether
// it was found — called when a duplicate of the same (originator, seq) is
// observed from a sender other than ourselves: the race has been lost.
func (c *ContentionBuffer) Remove(id CbfID) bool {
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.removeAt(i)
	return true
}

// PopIf test-and-drops the entry identified by id: if found, f is invoked
// with a pointer to it; if f returns true the entry is removed. The second
// return value reports whether id was found at all.
func (c *ContentionBuffer) PopIf(id CbfID, f func(*CbfEntry) bool) (popped bool, found bool) {
	i := c.indexOf(id)
	if i < 0 {
		return false, false
	}
	if f(&c.entries[i]) {
		c.removeAt(i)
		return true, true
	}
	return false, true
}

// DropWith removes every entry for which f returns true, in place —
// supplemented per §3C for bulk lifetime-expiry sweeps independent of the
// CBF-specific DequeueExpired path.
func (c *ContentionBuffer) DropWith(f func(*CbfEntry) bool) {
	kept := c.entries[:0]
	for i := range c.entries {
		e := &c.entries[i]
		if f(e) {
			c.bytes -= e.Size
			continue
		}
		kept = append(kept, *e)
	}
	c.entries = kept
}

// DequeueExpired removes and returns every entry whose CBFExpires has
// passed (cbf_expires_at <= now; DESIGN.md Open Question #4).
func (c *ContentionBuffer) DequeueExpired(now time.Time) []CbfEntry {
	var out []CbfEntry
	kept := c.entries[:0]
	for _, e := range c.entries {
		if !e.CBFExpires.After(now) {
			out = append(out, e)
			c.bytes -= e.Size
		} else {
			kept = append(kept, e)
		}
	}
	c.entries = kept
	return out
}

// PollAt returns the minimum CBFExpires across all queued entries.
func (c *ContentionBuffer) PollAt() (time.Time, bool) {
	var at time.Time
	found := false
	for _, e := range c.entries {
		if !found || e.CBFExpires.Before(at) {
			at = e.CBFExpires
			found = true
		}
	}
	return at, found
}

// Clear removes every entry from the buffer.
func (c *ContentionBuffer) Clear() {
	c.entries = nil
	c.bytes = 0
}

// CBFTimer computes the CBF contention delay for a packet received from a
// sender at distance dist (metres) from our own position, out of the
// theoretical maximum communication range maxRange (§4.6.2): packets from
// nearer senders sit longer, giving distant receivers priority to forward.
func CBFTimer(dist, maxRange float64) time.Duration {
	d := dist / maxRange
	if d > 1 {
		d = 1
	}
	if d < 0 {
		d = 0
	}
	span := CBFMax - CBFMin
	return CBFMax - time.Duration(float64(span)*d)
}
