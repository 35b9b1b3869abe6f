package locservice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veloce/gnrouter/gnaddr"
)

func addr(b byte) gnaddr.Address {
	return gnaddr.FromMAC([6]byte{0, 0, 0, 0, 0, b}, gnaddr.StationPassengerCar)
}

func TestRequestAllocatesFreeSlotAscending(t *testing.T) {
	s := New()
	now := time.Now()

	h0, err := s.Request(addr(1), now)
	require.NoError(t, err)
	h1, err := s.Request(addr(2), now)
	require.NoError(t, err)
	require.Equal(t, Handle{0}, h0)
	require.Equal(t, Handle{1}, h1)

	r, ok := s.Lookup(h0)
	require.True(t, ok)
	require.Equal(t, Pending, r.State)
	require.Equal(t, now, r.RetransmitAt)

	_, found := s.FindPending(addr(1))
	require.True(t, found)
}

func TestRequestFailsWhenFull(t *testing.T) {
	s := New()
	now := time.Now()
	for i := 0; i < MaxRequests; i++ {
		_, err := s.Request(addr(byte(i)), now)
		require.NoError(t, err)
	}
	_, err := s.Request(addr(99), now)
	require.ErrorIs(t, err, ErrNoFreeSlot)
}

func TestRetransmittedAdvancesScheduleThenFails(t *testing.T) {
	s := New()
	now := time.Now()
	h, err := s.Request(addr(1), now)
	require.NoError(t, err)

	for i := 0; i < MaxRetransmissions-1; i++ {
		s.Retransmitted(h, now)
		r, ok := s.Lookup(h)
		require.True(t, ok)
		require.Equal(t, Pending, r.State)
		now = now.Add(RetransmitInterval)
	}

	s.Retransmitted(h, now)
	r, ok := s.Lookup(h)
	require.True(t, ok)
	require.Equal(t, Failure, r.State)

	failed := s.Failed()
	require.Len(t, failed, 1)
	require.Equal(t, h, failed[0])
}

func TestResolveFreesMatchingSlot(t *testing.T) {
	s := New()
	now := time.Now()
	h, err := s.Request(addr(7), now)
	require.NoError(t, err)

	require.False(t, s.Resolve(addr(8)))
	_, ok := s.Lookup(h)
	require.True(t, ok)

	require.True(t, s.Resolve(addr(7)))
	_, ok = s.Lookup(h)
	require.False(t, ok)
	require.Equal(t, 0, s.PendingCount())
}

func TestDueForRetransmitOnlyReturnsExpiredPendingSlots(t *testing.T) {
	s := New()
	now := time.Now()
	h1, _ := s.Request(addr(1), now)
	h2, _ := s.Request(addr(2), now.Add(time.Minute))

	due := s.DueForRetransmit(now)
	require.ElementsMatch(t, []Handle{h1}, due)

	due = s.DueForRetransmit(now.Add(time.Minute))
	require.ElementsMatch(t, []Handle{h1, h2}, due)
}

func TestCancelFreesSlot(t *testing.T) {
	s := New()
	now := time.Now()
	h, _ := s.Request(addr(1), now)
	s.Cancel(h)
	_, ok := s.Lookup(h)
	require.False(t, ok)
	require.Equal(t, 0, s.PendingCount())
}

func TestPollAtReportsEarliestPendingRetransmit(t *testing.T) {
	s := New()
	now := time.Now()
	_, err := s.Request(addr(1), now.Add(2*time.Second))
	require.NoError(t, err)
	_, err = s.Request(addr(2), now)
	require.NoError(t, err)

	at, ok := s.PollAt()
	require.True(t, ok)
	require.Equal(t, now, at)
}

func TestPollAtEmptyService(t *testing.T) {
	s := New()
	_, ok := s.PollAt()
	require.False(t, ok)
}
