package device

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitForInbound(t *testing.T, a *UDPTunnelAdapter) (RxToken, TxToken) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rx, tx, ok := a.Receive(time.Now()); ok {
			return rx, tx
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for inbound datagram")
	return nil, nil
}

func TestUDPTunnelRoundTripsPayloadBetweenPeers(t *testing.T) {
	a, err := NewUDPTunnelAdapter(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}, 1400)
	require.NoError(t, err)
	defer a.Close()

	b, err := NewUDPTunnelAdapter(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}, 1400)
	require.NoError(t, err)
	defer b.Close()

	aAddr := a.conn.LocalAddr().(*net.UDPAddr)
	bAddr := b.conn.LocalAddr().(*net.UDPAddr)

	linkA := [6]byte{0, 0, 0, 0, 0, 1}
	linkB := [6]byte{0, 0, 0, 0, 0, 2}
	a.AddPeer(linkB, bAddr)
	b.AddPeer(linkA, aAddr)

	tx, ok := a.Transmit(time.Now())
	require.True(t, ok)
	require.NoError(t, tx.Consume(4, func(buf []byte) error {
		copy(buf, []byte("ping"))
		return nil
	}))

	rx, _ := waitForInbound(t, b)
	require.Equal(t, linkA, rx.Source())
	var got []byte
	require.NoError(t, rx.Consume(func(payload []byte) error {
		got = append([]byte{}, payload...)
		return nil
	}))
	require.Equal(t, []byte("ping"), got)
}

func TestUDPTunnelReceiveFalseWhenQueueEmpty(t *testing.T) {
	a, err := NewUDPTunnelAdapter(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}, 1400)
	require.NoError(t, err)
	defer a.Close()

	_, _, ok := a.Receive(time.Now())
	require.False(t, ok)
}

func TestUDPTunnelDropsDatagramsFromUnknownPeer(t *testing.T) {
	a, err := NewUDPTunnelAdapter(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}, 1400)
	require.NoError(t, err)
	defer a.Close()

	stranger, err := net.DialUDP("udp", nil, a.conn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer stranger.Close()

	_, err = stranger.Write([]byte("unsolicited"))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	_, _, ok := a.Receive(time.Now())
	require.False(t, ok, "datagrams from unregistered peers must be dropped")
}

func TestUDPTunnelCapabilitiesReportsConfiguredMTU(t *testing.T) {
	a, err := NewUDPTunnelAdapter(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}, 900)
	require.NoError(t, err)
	defer a.Close()

	caps := a.Capabilities()
	require.Equal(t, 900, caps.MTU)
	require.Equal(t, MediumUDP, caps.Medium)
}
