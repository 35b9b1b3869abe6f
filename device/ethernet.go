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
package device

import (
	"fmt"
	"net"
	"time"

	"github.com/mdlayher/ethernet"
)

// ioConn is the minimal duplex raw socket a EthernetAdapter needs: read one
// frame per call, write one frame per call. A net.PacketConn bound to an
// AF_PACKET socket (or a test fake) satisfies it.
type ioConn interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
	WriteTo(p []byte, addr net.Addr) (n int, err error)
}

// EthernetAdapter frames GN payloads as plain Ethernet II frames carrying
// ethertype GNEtherType, using github.com/mdlayher/ethernet for frame
// marshal/unmarshal. It also serves 802.11p links, which present to the
// host as an Ethernet-shaped device once the radio's own MAC layer has
// stripped the 802.11 PHY/MAC headers.
type EthernetAdapter struct {
	conn      ioConn
	localAddr net.HardwareAddr
	medium    Medium
	mtu       int
	broadcast net.Addr

	rxBuf []byte
}

// NewEthernetAdapter constructs an adapter bound to conn, announcing itself
// under localAddr on the given medium (MediumEthernet or
// MediumIEEE80211p).
func NewEthernetAdapter(conn ioConn, localAddr net.HardwareAddr, medium Medium, broadcast net.Addr, mtu int) *EthernetAdapter {
	if mtu <= 0 {
		mtu = 1500
	}
	return &EthernetAdapter{
		conn:      conn,
		localAddr: localAddr,
		medium:    medium,
		mtu:       mtu,
		broadcast: broadcast,
		rxBuf:     make([]byte, mtu+14),
	}
}

func (a *EthernetAdapter) Capabilities() Capabilities {
	return Capabilities{MTU: a.mtu, Medium: a.medium}
}

type ethernetRxToken struct {
	payload []byte
	source  [6]byte
}

func (t *ethernetRxToken) Consume(f func([]byte) error) error { return f(t.payload) }
func (t *ethernetRxToken) Source() [6]byte                    { return t.source }

// Receive reads one frame, unwraps its Ethernet II envelope, and yields
// the GN payload if the ethertype matches GNEtherType; otherwise it is
// silently skipped (ok=false), matching a level-triggered "nothing of
// interest right now" readiness result.
func (a *EthernetAdapter) Receive(_ time.Time) (RxToken, TxToken, bool) {
	n, _, err := a.conn.ReadFrom(a.rxBuf)
	if err != nil || n < 14 {
		return nil, nil, false
	}

	var f ethernet.Frame
	if err := (&f).UnmarshalBinary(a.rxBuf[:n]); err != nil {
		return nil, nil, false
	}
	if f.EtherType != GNEtherType {
		return nil, nil, false
	}

	var src [6]byte
	copy(src[:], f.Source)

	return &ethernetRxToken{payload: f.Payload, source: src}, &ethernetTxToken{a: a}, true
}

func (a *EthernetAdapter) Transmit(_ time.Time) (TxToken, bool) {
	return &ethernetTxToken{a: a}, true
}

type ethernetTxToken struct{ a *EthernetAdapter }

// Consume builds an Ethernet II frame addressed to broadcast (GN's
// transmissions are always link-layer-broadcast; forwarding happens at the
// GN layer, not by unicast Ethernet addressing) with ethertype
// GNEtherType, filling its payload via f.
func (t *ethernetTxToken) Consume(size int, f func([]byte) error) error {
	payload := make([]byte, size)
	if err := f(payload); err != nil {
		return err
	}

	frame := ethernet.Frame{
		Destination: ethernet.Broadcast,
		Source:      t.a.localAddr,
		EtherType:   GNEtherType,
		Payload:     payload,
	}
	raw, err := frame.MarshalBinary()
	if err != nil {
		return fmt.Errorf("device: marshal ethernet frame: %w", err)
	}

	_, err = t.a.conn.WriteTo(raw, t.a.broadcast)
	return err
}
