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
	"net"
	"sync"
	"time"
)

// udpFrame is one queued inbound or outbound datagram, carrying the GN
// payload plus the peer it arrived from or is destined to — the UDP
// tunnel's stand-in for a link-layer source/destination address, since UDP
// has none of its own.
type udpFrame struct {
	payload []byte
	peer    [6]byte
}

// UDPTunnelAdapter carries GN frames over UDP datagrams between a fixed
// set of peers. Received datagrams land on an inbound queue guarded the
// same way the teacher's connection.go guards its `out []pdu` queue: a
// mutex plus a reader goroutine, rather than unbuffered channel handoff
// (which would block the conn on a slow core loop). Transmission writes
// each datagram synchronously; there is no outbound queue.
type UDPTunnelAdapter struct {
	conn *net.UDPConn
	mtu  int

	mu      sync.Mutex
	inbound []udpFrame

	peersMu sync.RWMutex
	peers   map[[6]byte]*net.UDPAddr

	exit chan struct{}
}

// NewUDPTunnelAdapter binds a UDP socket to laddr and starts its reader
// goroutine. Peers are registered with AddPeer as they are learned (e.g.
// from an out-of-band peer list or a GN Beacon carrying an embedded
// source-address-to-UDP-endpoint mapping at the application layer).
func NewUDPTunnelAdapter(laddr *net.UDPAddr, mtu int) (*UDPTunnelAdapter, error) {
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	if mtu <= 0 {
		mtu = 1400
	}
	a := &UDPTunnelAdapter{
		conn:  conn,
		mtu:   mtu,
		peers: make(map[[6]byte]*net.UDPAddr),
		exit:  make(chan struct{}),
	}
	go a.reader()
	return a, nil
}

// AddPeer registers addr as the UDP endpoint reachable as linkAddr.
func (a *UDPTunnelAdapter) AddPeer(linkAddr [6]byte, addr *net.UDPAddr) {
	a.peersMu.Lock()
	a.peers[linkAddr] = addr
	a.peersMu.Unlock()
}

func (a *UDPTunnelAdapter) peerFor(raddr *net.UDPAddr) ([6]byte, bool) {
	a.peersMu.RLock()
	defer a.peersMu.RUnlock()
	for link, addr := range a.peers {
		if addr.IP.Equal(raddr.IP) && addr.Port == raddr.Port {
			return link, true
		}
	}
	return [6]byte{}, false
}

func (a *UDPTunnelAdapter) reader() {
	buf := make([]byte, a.mtu)
	for {
		n, raddr, err := a.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		link, ok := a.peerFor(raddr)
		if !ok {
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])

		a.mu.Lock()
		a.inbound = append(a.inbound, udpFrame{payload: payload, peer: link})
		a.mu.Unlock()
	}
}

// Close stops the reader goroutine and closes the underlying socket.
func (a *UDPTunnelAdapter) Close() error {
	close(a.exit)
	return a.conn.Close()
}

func (a *UDPTunnelAdapter) Capabilities() Capabilities {
	return Capabilities{MTU: a.mtu, Medium: MediumUDP}
}

type udpRxToken struct {
	payload []byte
	source  [6]byte
}

func (t *udpRxToken) Consume(f func([]byte) error) error { return f(t.payload) }
func (t *udpRxToken) Source() [6]byte                    { return t.source }

// Receive pops the oldest queued inbound datagram, if any.
func (a *UDPTunnelAdapter) Receive(_ time.Time) (RxToken, TxToken, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.inbound) == 0 {
		return nil, nil, false
	}
	f := a.inbound[0]
	a.inbound = a.inbound[1:]
	return &udpRxToken{payload: f.payload, source: f.peer}, &udpTxToken{a: a}, true
}

func (a *UDPTunnelAdapter) Transmit(_ time.Time) (TxToken, bool) {
	return &udpTxToken{a: a}, true
}

type udpTxToken struct{ a *UDPTunnelAdapter }

// Consume broadcasts the filled payload to every currently known peer —
// the UDP tunnel's analogue of a wireless broadcast medium.
func (t *udpTxToken) Consume(size int, f func([]byte) error) error {
	payload := make([]byte, size)
	if err := f(payload); err != nil {
		return err
	}

	t.a.peersMu.RLock()
	addrs := make([]*net.UDPAddr, 0, len(t.a.peers))
	for _, addr := range t.a.peers {
		addrs = append(addrs, addr)
	}
	t.a.peersMu.RUnlock()

	var firstErr error
	for _, addr := range addrs {
		if _, err := t.a.conn.WriteToUDP(payload, addr); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
