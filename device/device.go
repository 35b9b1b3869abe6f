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
// Package device implements the link-layer Device trait (§6.1) and its
// concrete adapters: an Ethernet II framer built on
// github.com/mdlayher/ethernet, which serves both Ethernet and 802.11p
// links (no LLC/SNAP header is built or parsed on either medium), and a
// UDP-tunnel adapter for testing and non-ITS-G5 deployments, grounded on
// the teacher's connection.go reader-goroutine-plus-queue idiom.
package device

import "time"

// Medium identifies the physical transport a Device adapter carries GN
// frames over.
type Medium int

const (
	MediumEthernet Medium = iota
	MediumIEEE80211p
	MediumUDP
	MediumNxpLLC
	MediumNxpUSB
)

func (m Medium) String() string {
	switch m {
	case MediumEthernet:
		return "ethernet"
	case MediumIEEE80211p:
		return "ieee80211p"
	case MediumUDP:
		return "udp"
	case MediumNxpLLC:
		return "nxp-llc"
	case MediumNxpUSB:
		return "nxp-usb"
	default:
		return "unknown"
	}
}

// Capabilities describes a Device's fixed properties.
type Capabilities struct {
	MTU    int
	Medium Medium
}

// GNEtherType is the ethertype GN frames are carried under. It is written
// directly into the Ethernet II header on both Ethernet and 802.11p links;
// no LLC/SNAP encapsulation is used.
const GNEtherType = 0x8947

// RxToken yields a borrowed view of one received frame's GN payload plus
// the link-layer source address it arrived from.
type RxToken interface {
	// Consume invokes f with the received GN payload bytes, returning
	// whatever f returns. The slice is only valid for the duration of
	// the call.
	Consume(f func(payload []byte) error) error
	// Source is the link-layer address the frame arrived from.
	Source() [6]byte
}

// TxToken accepts a payload length and a closure that fills a frame buffer
// of that length with the GN payload; the token handles outer framing.
type TxToken interface {
	// Consume invokes f with a zeroed buffer of the given size for f to
	// fill with GN payload bytes, then transmits the framed result.
	Consume(size int, f func(buf []byte) error) error
}

// Device is the narrow link-layer interface the core engine drives: a
// level-triggered Receive, a Transmit slot, and static Capabilities.
type Device interface {
	Receive(now time.Time) (RxToken, TxToken, bool)
	Transmit(now time.Time) (TxToken, bool)
	Capabilities() Capabilities
}
