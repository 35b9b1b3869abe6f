package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veloce/gnrouter/config"
	"github.com/veloce/gnrouter/gnaddr"
	"github.com/veloce/gnrouter/socket"
	"github.com/veloce/gnrouter/wire"
)

func testAddr(b byte) gnaddr.Address {
	return gnaddr.FromMAC([6]byte{0, 0, 0, 0, 0, b}, gnaddr.StationPassengerCar)
}

func newTestEngine(dev *fakeDevice) *Engine {
	cfg := config.Default()
	deps := Deps{Device: dev, Sockets: socket.NewSet()}
	return New(cfg, deps, testAddr(1), 1)
}

func beaconFrame(t *testing.T, from gnaddr.Address) []byte {
	t.Helper()
	b := wire.BeaconRepr{SourcePV: gnaddr.LongPV{Address: from}}
	ext := make([]byte, wire.BeaconHeaderLen)
	require.NoError(t, b.Emit(ext))
	common := wire.CommonHeader{HeaderType: wire.HeaderTypeBeacon, MaxHopLimit: 1}
	basic := wire.BasicHeader{Version: 1, NextHeader: wire.NextHeaderCommon, Lifetime: time.Second, RemainingHopLimit: 1}
	frame, err := wire.BuildFrame(basic, common, ext, nil)
	require.NoError(t, err)
	return frame
}

func shbFrame(t *testing.T, from gnaddr.Address, upper wire.UpperProtocol, payload []byte) []byte {
	t.Helper()
	s := wire.SHBRepr{SourcePV: gnaddr.LongPV{Address: from}}
	ext := make([]byte, wire.SHBHeaderLen)
	require.NoError(t, s.Emit(ext))
	common := wire.CommonHeader{UpperProtocol: upper, HeaderType: wire.HeaderTypeSHB, MaxHopLimit: 1, PayloadLength: uint16(len(payload))}
	basic := wire.BasicHeader{Version: 1, NextHeader: wire.NextHeaderCommon, Lifetime: time.Second, RemainingHopLimit: 1}
	frame, err := wire.BuildFrame(basic, common, ext, payload)
	require.NoError(t, err)
	return frame
}

func TestRunOnceHandlesBeaconAndUpdatesLocationTable(t *testing.T) {
	dev := &fakeDevice{}
	e := newTestEngine(dev)
	sender := testAddr(9)
	dev.push(sender.LinkAddr, beaconFrame(t, sender))

	require.NoError(t, e.RunOnce(time.Now()))

	entry := e.Loctable().Find(sender.LinkAddr)
	require.NotNil(t, entry)
	require.True(t, entry.IsNeighbour)
}

func TestRunOnceDeliversSHBPayloadToRegisteredBTPASocket(t *testing.T) {
	dev := &fakeDevice{}
	e := newTestEngine(dev)

	var delivered []byte
	s := socket.New(socket.BTPA)
	s.RegisterRecvCallback(func(payload []byte) { delivered = payload })
	e.deps.Sockets.Register(s)

	sender := testAddr(9)
	dev.push(sender.LinkAddr, shbFrame(t, sender, wire.UpperProtocolBTPA, []byte("hi")))

	require.NoError(t, e.RunOnce(time.Now()))
	require.Equal(t, []byte("hi"), delivered)
}

func TestSendSHBTransmitsFrameThroughDevice(t *testing.T) {
	dev := &fakeDevice{}
	e := newTestEngine(dev)
	now := time.Now()

	require.NoError(t, e.SendSHB(now, wire.UpperProtocolBTPA, []byte("payload")))
	require.Len(t, dev.sent, 1)

	basic, common, rest, err := wire.SplitFrame(dev.sent[0])
	require.NoError(t, err)
	require.Equal(t, wire.HeaderTypeSHB, common.HeaderType)
	require.Equal(t, uint8(1), basic.RemainingHopLimit)

	ext, payload, ok := splitExt(rest, wire.SHBHeaderLen)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), payload)

	s, err := wire.ParseSHB(ext)
	require.NoError(t, err)
	require.Equal(t, e.ownAddr, s.SourcePV.Address)
}

func TestSendGUCBuffersAndStartsLocationServiceWhenDestinationUnknown(t *testing.T) {
	dev := &fakeDevice{}
	e := newTestEngine(dev)
	now := time.Now()

	dest := testAddr(42)
	require.NoError(t, e.SendGUC(now, dest, wire.UpperProtocolBTPA, []byte("x"), time.Second))

	_, pending := e.locserv.FindPending(dest)
	require.True(t, pending)

	// the LS-Request itself should have gone straight to the device.
	require.Len(t, dev.sent, 1)
	_, common, _, err := wire.SplitFrame(dev.sent[0])
	require.NoError(t, err)
	require.Equal(t, wire.HeaderTypeLSRequest, common.HeaderType)
}

func TestSendGUCGoesDirectWhenDestinationKnown(t *testing.T) {
	dev := &fakeDevice{}
	e := newTestEngine(dev)
	now := time.Now()

	dest := testAddr(42)
	e.Loctable().Update(now, gnaddr.LongPV{Address: dest}, false, 0)

	require.NoError(t, e.SendGUC(now, dest, wire.UpperProtocolBTPA, []byte("x"), time.Second))
	require.Len(t, dev.sent, 1)

	_, common, _, err := wire.SplitFrame(dev.sent[0])
	require.NoError(t, err)
	require.Equal(t, wire.HeaderTypeGUC, common.HeaderType)
}

func TestStatusReflectsLocationTableAndNeighbourCounts(t *testing.T) {
	dev := &fakeDevice{}
	e := newTestEngine(dev)
	sender := testAddr(9)
	dev.push(sender.LinkAddr, beaconFrame(t, sender))

	require.NoError(t, e.RunOnce(time.Now()))

	st := e.Status()
	require.Equal(t, 1, st.NeighbourCount)
	require.Equal(t, 1, st.LocationTableSize)
}

func TestRunOnceTransmitsPeriodicBeacon(t *testing.T) {
	dev := &fakeDevice{}
	e := newTestEngine(dev)

	require.NoError(t, e.RunOnce(time.Now()))
	require.Len(t, dev.sent, 1)

	_, common, _, err := wire.SplitFrame(dev.sent[0])
	require.NoError(t, err)
	require.Equal(t, wire.HeaderTypeBeacon, common.HeaderType)
}
