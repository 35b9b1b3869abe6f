package device

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/mdlayher/ethernet"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory ioConn: ReadFrom serves queued frames one at a
// time, WriteTo records what was sent.
type fakeConn struct {
	rx      [][]byte
	written [][]byte
	wrote   []net.Addr
}

func (f *fakeConn) ReadFrom(p []byte) (int, net.Addr, error) {
	if len(f.rx) == 0 {
		return 0, nil, errors.New("no data")
	}
	next := f.rx[0]
	f.rx = f.rx[1:]
	n := copy(p, next)
	return n, nil, nil
}

func (f *fakeConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	f.written = append(f.written, cp)
	f.wrote = append(f.wrote, addr)
	return len(p), nil
}

func marshalTestFrame(t *testing.T, src, dst net.HardwareAddr, etherType ethernet.EtherType, payload []byte) []byte {
	t.Helper()
	f := ethernet.Frame{
		Destination: dst,
		Source:      src,
		EtherType:   etherType,
		Payload:     payload,
	}
	raw, err := f.MarshalBinary()
	require.NoError(t, err)
	return raw
}

func TestEthernetReceiveYieldsGNPayloadForMatchingEtherType(t *testing.T) {
	src := net.HardwareAddr{0, 0, 0, 0, 0, 9}
	raw := marshalTestFrame(t, src, ethernet.Broadcast, GNEtherType, []byte("hello"))
	conn := &fakeConn{rx: [][]byte{raw}}

	a := NewEthernetAdapter(conn, net.HardwareAddr{0, 0, 0, 0, 0, 1}, MediumEthernet, ethernet.Broadcast, 1500)

	rx, tx, ok := a.Receive(time.Now())
	require.True(t, ok)
	require.NotNil(t, tx)

	var got []byte
	require.NoError(t, rx.Consume(func(payload []byte) error {
		got = append([]byte{}, payload...)
		return nil
	}))
	require.Equal(t, []byte("hello"), got)
	require.Equal(t, [6]byte{0, 0, 0, 0, 0, 9}, rx.Source())
}

func TestEthernetReceiveSkipsNonGNEtherType(t *testing.T) {
	src := net.HardwareAddr{0, 0, 0, 0, 0, 9}
	raw := marshalTestFrame(t, src, ethernet.Broadcast, ethernet.EtherType(0x0800), []byte("ip packet"))
	conn := &fakeConn{rx: [][]byte{raw}}

	a := NewEthernetAdapter(conn, net.HardwareAddr{0, 0, 0, 0, 0, 1}, MediumEthernet, ethernet.Broadcast, 1500)

	_, _, ok := a.Receive(time.Now())
	require.False(t, ok)
}

func TestEthernetReceiveReturnsFalseOnReadError(t *testing.T) {
	conn := &fakeConn{}
	a := NewEthernetAdapter(conn, net.HardwareAddr{0, 0, 0, 0, 0, 1}, MediumEthernet, ethernet.Broadcast, 1500)

	_, _, ok := a.Receive(time.Now())
	require.False(t, ok)
}

func TestEthernetTransmitFramesPayloadAsBroadcastEtherType(t *testing.T) {
	conn := &fakeConn{}
	local := net.HardwareAddr{0, 0, 0, 0, 0, 1}
	a := NewEthernetAdapter(conn, local, MediumEthernet, ethernet.Broadcast, 1500)

	tx, ok := a.Transmit(time.Now())
	require.True(t, ok)

	err := tx.Consume(5, func(buf []byte) error {
		copy(buf, []byte("world"))
		return nil
	})
	require.NoError(t, err)
	require.Len(t, conn.written, 1)

	var f ethernet.Frame
	require.NoError(t, (&f).UnmarshalBinary(conn.written[0]))
	require.Equal(t, ethernet.EtherType(GNEtherType), f.EtherType)
	require.Equal(t, ethernet.Broadcast, f.Destination)
	require.Equal(t, local, f.Source)
	require.Equal(t, []byte("world"), f.Payload)
}

func TestEthernetCapabilitiesReportsConfiguredMTUAndMedium(t *testing.T) {
	a := NewEthernetAdapter(&fakeConn{}, net.HardwareAddr{1}, MediumIEEE80211p, ethernet.Broadcast, 1200)
	caps := a.Capabilities()
	require.Equal(t, 1200, caps.MTU)
	require.Equal(t, MediumIEEE80211p, caps.Medium)
}

func TestEthernetCapabilitiesDefaultsMTUWhenNonPositive(t *testing.T) {
	a := NewEthernetAdapter(&fakeConn{}, net.HardwareAddr{1}, MediumEthernet, ethernet.Broadcast, 0)
	require.Equal(t, 1500, a.Capabilities().MTU)
}
