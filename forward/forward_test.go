package forward

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veloce/gnrouter/gnaddr"
	"github.com/veloce/gnrouter/loctable"
)

func neighbour(b byte, lat, lon float64) gnaddr.LongPV {
	return gnaddr.LongPV{
		Address:   gnaddr.FromMAC([6]byte{0, 0, 0, 0, 0, b}, gnaddr.StationPassengerCar),
		Timestamp: gnaddr.PVTimestamp(b),
		Latitude:  int32(lat * 1e7),
		Longitude: int32(lon * 1e7),
	}
}

func TestGreedyUnicastPicksClosestProgress(t *testing.T) {
	table := loctable.New()
	now := time.Now()

	dest := Point{LatitudeDeg: 48.3, LongitudeDeg: 11.3}
	self := Point{LatitudeDeg: 48.0, LongitudeDeg: 11.0}

	table.Update(now, neighbour(1, 48.05, 11.05), true, 0) // some progress
	table.Update(now, neighbour(2, 48.25, 11.25), true, 0) // best progress
	table.Update(now, neighbour(3, 47.9, 10.9), true, 0)   // moves away, excluded

	next, ok := GreedyUnicast(table, self, dest)
	require.True(t, ok)
	require.Equal(t, [6]byte{0, 0, 0, 0, 0, 2}, next)
}

func TestGreedyUnicastNoProgressReturnsFalse(t *testing.T) {
	table := loctable.New()
	now := time.Now()
	dest := Point{LatitudeDeg: 48.3, LongitudeDeg: 11.3}
	self := Point{LatitudeDeg: 48.0, LongitudeDeg: 11.0}

	table.Update(now, neighbour(1, 47.0, 10.0), true, 0)

	_, ok := GreedyUnicast(table, self, dest)
	require.False(t, ok)
}

func TestGreedyUnicastTiesBrokenByLowestLinkAddress(t *testing.T) {
	table := loctable.New()
	now := time.Now()
	dest := Point{LatitudeDeg: 48.1, LongitudeDeg: 11.0}
	self := Point{LatitudeDeg: 48.0, LongitudeDeg: 11.0}

	// same lat/lon: identical progress, tie broken on link address.
	table.Update(now, neighbour(5, 48.05, 11.0), true, 0)
	table.Update(now, neighbour(2, 48.05, 11.0), true, 0)

	next, ok := GreedyUnicast(table, self, dest)
	require.True(t, ok)
	require.Equal(t, [6]byte{0, 0, 0, 0, 0, 2}, next)
}

func TestDuplicateUnknownOriginatorIsNotDuplicate(t *testing.T) {
	table := loctable.New()
	now := time.Now()
	originator := gnaddr.FromMAC([6]byte{9}, gnaddr.StationPassengerCar)
	require.False(t, Duplicate(table, originator, 1, now))
}

func TestDuplicateDetectsRepeatSequence(t *testing.T) {
	table := loctable.New()
	now := time.Now()
	originator := gnaddr.FromMAC([6]byte{9}, gnaddr.StationPassengerCar)
	table.Update(now, gnaddr.LongPV{Address: originator}, false, 0)

	require.False(t, Duplicate(table, originator, 1, now))
	require.True(t, Duplicate(table, originator, 1, now))
}

func TestSimpleAreaFloodFiltersByAreaAndHopLimit(t *testing.T) {
	table := loctable.New()
	now := time.Now()
	table.Update(now, neighbour(1, 48.0, 11.0), true, 0)  // inside
	table.Update(now, neighbour(2, 49.0, 12.0), true, 0)  // outside

	area := Area{Shape: ShapeCircle, Centre: Point{LatitudeDeg: 48.0, LongitudeDeg: 11.0}, DistanceA: 5000}

	targets := SimpleAreaFlood(table, area, 1)
	require.Equal(t, [][6]byte{{0, 0, 0, 0, 0, 1}}, targets)

	require.Empty(t, SimpleAreaFlood(table, area, 0))
}

func TestTSBForwardDecrementsAndSuppressesDuplicates(t *testing.T) {
	table := loctable.New()
	now := time.Now()
	originator := gnaddr.FromMAC([6]byte{9}, gnaddr.StationPassengerCar)
	table.Update(now, gnaddr.LongPV{Address: originator}, false, 0)

	rhl, rebroadcast := TSBForward(table, originator, 1, 3, now)
	require.Equal(t, uint8(2), rhl)
	require.True(t, rebroadcast)

	rhl, rebroadcast = TSBForward(table, originator, 1, 2, now)
	require.Equal(t, uint8(1), rhl)
	require.False(t, rebroadcast, "same sequence number is now a duplicate")

	rhl, rebroadcast = TSBForward(table, originator, 2, 1, now)
	require.Equal(t, uint8(0), rhl)
	require.False(t, rebroadcast, "hop limit exhausted after decrement")

	rhl, rebroadcast = TSBForward(table, originator, 3, 0, now)
	require.Equal(t, uint8(0), rhl)
	require.False(t, rebroadcast)
}

func TestNextBeaconAtStaysWithinJitterWindow(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	from := time.Now()
	for i := 0; i < 100; i++ {
		at := NextBeaconAt(from, rnd)
		delta := at.Sub(from) - BeaconInterval
		require.True(t, delta >= -BeaconJitter && delta <= BeaconJitter, "jitter %v out of range", delta)
	}
}
