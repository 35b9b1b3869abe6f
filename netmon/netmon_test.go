package netmon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veloce/gnrouter/gnaddr"
	"github.com/veloce/gnrouter/loctable"
)

type recordingNotifier struct {
	ups   [][6]byte
	downs [][6]byte
}

func (n *recordingNotifier) NeighbourUp(linkAddr [6]byte)   { n.ups = append(n.ups, linkAddr) }
func (n *recordingNotifier) NeighbourDown(linkAddr [6]byte) { n.downs = append(n.downs, linkAddr) }

func addNeighbour(table *loctable.Table, b byte, now time.Time) [6]byte {
	addr := gnaddr.FromMAC([6]byte{0, 0, 0, 0, 0, b}, gnaddr.StationPassengerCar)
	table.Update(now, gnaddr.LongPV{Address: addr}, true, 0)
	return addr.LinkAddr
}

func TestMonitorReportsUpOnlyAfterFiveConsecutivePresentSamples(t *testing.T) {
	table := loctable.New()
	notifier := &recordingNotifier{}
	m := New(table, notifier, time.Second)
	now := time.Now()

	link := addNeighbour(table, 1, now)

	for i := 0; i < historyLen-1; i++ {
		m.sample()
		require.False(t, m.Up(link))
		require.Empty(t, notifier.ups)
	}
	m.sample()
	require.True(t, m.Up(link))
	require.Equal(t, [][6]byte{link}, notifier.ups)
}

func TestMonitorRequiresTwoConsecutiveMissesToReportDown(t *testing.T) {
	table := loctable.New()
	notifier := &recordingNotifier{}
	m := New(table, notifier, time.Second)
	now := time.Now()
	link := addNeighbour(table, 1, now)

	for i := 0; i < historyLen; i++ {
		m.sample()
	}
	require.True(t, m.Up(link))

	table.Remove(link)
	m.sample()
	require.True(t, m.Up(link), "a single missed sample must not flap the neighbour down")
	require.Empty(t, notifier.downs)

	m.sample()
	require.False(t, m.Up(link))
	require.Equal(t, [][6]byte{link}, notifier.downs)
}

func TestMonitorUpReportsFalseForUnknownAddress(t *testing.T) {
	table := loctable.New()
	m := New(table, &recordingNotifier{}, time.Second)
	require.False(t, m.Up([6]byte{9}))
}

func TestNewDefaultsIntervalWhenNonPositive(t *testing.T) {
	m := New(loctable.New(), nil, 0)
	require.Equal(t, 2*time.Second, m.Interval)
}

func TestStartStopDoesNotPanic(t *testing.T) {
	table := loctable.New()
	m := New(table, &recordingNotifier{}, 10*time.Millisecond)
	m.Start()
	time.Sleep(30 * time.Millisecond)
	require.NotPanics(t, m.Stop)
}
