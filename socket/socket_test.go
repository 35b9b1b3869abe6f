package socket

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendInvokesCallbackAndReturnsPayload(t *testing.T) {
	s := New(CAM)
	var sent []byte
	s.RegisterSendCallback(func(payload []byte) { sent = payload })

	out, err := s.Send([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), out)
	require.Equal(t, []byte("hello"), sent)
}

func TestSendRejectsOversizePayload(t *testing.T) {
	s := New(BTPA)
	payload := make([]byte, BTPMaxPayloadSize+1)

	_, err := s.Send(payload)
	require.Error(t, err)
	var tooLarge *ErrPayloadTooLarge
	require.True(t, errors.As(err, &tooLarge))
	require.Equal(t, len(payload), tooLarge.Size)
}

func TestSendAcceptsExactlyMaxPayload(t *testing.T) {
	s := New(BTPB)
	payload := make([]byte, BTPMaxPayloadSize)
	_, err := s.Send(payload)
	require.NoError(t, err)
}

func TestDeliverInvokesRecvCallbackWhenRegistered(t *testing.T) {
	s := New(DENM)
	var got []byte
	s.RegisterRecvCallback(func(payload []byte) { got = payload })

	s.Deliver([]byte("world"))
	require.Equal(t, []byte("world"), got)
}

func TestDeliverNoopWithoutRecvCallback(t *testing.T) {
	s := New(CAM)
	require.NotPanics(t, func() { s.Deliver([]byte("x")) })
}

func TestPollReturnsOnlyDueRetransmissions(t *testing.T) {
	s := New(DENM)
	now := time.Now()
	s.ScheduleRetransmit(func(now time.Time) ([]byte, bool) { return []byte("due"), true })
	s.ScheduleRetransmit(func(now time.Time) ([]byte, bool) { return nil, false })

	due := s.Poll(now)
	require.Equal(t, [][]byte{[]byte("due")}, due)
}

func TestSetRegisterAndGet(t *testing.T) {
	set := NewSet()
	s := New(CAM)
	h := set.Register(s)

	require.Same(t, s, set.Get(h))
	require.Nil(t, set.Get(Handle(99)))
	require.Nil(t, set.Get(Handle(-1)))
}

func TestSetByKindFiltersAndPreservesOrder(t *testing.T) {
	set := NewSet()
	a := New(BTPA)
	b := New(CAM)
	c := New(BTPA)
	set.Register(a)
	set.Register(b)
	set.Register(c)

	got := set.ByKind(BTPA)
	require.Equal(t, []*Socket{a, c}, got)
}

func TestSetPollAllGroupsDueRetransmissionsByHandle(t *testing.T) {
	set := NewSet()
	quiet := New(CAM)
	noisy := New(DENM)
	noisy.ScheduleRetransmit(func(now time.Time) ([]byte, bool) { return []byte("retry"), true })

	hQuiet := set.Register(quiet)
	hNoisy := set.Register(noisy)

	due := set.PollAll(time.Now())
	require.NotContains(t, due, hQuiet)
	require.Equal(t, [][]byte{[]byte("retry")}, due[hNoisy])
}

func TestKindString(t *testing.T) {
	require.Equal(t, "cam", CAM.String())
	require.Equal(t, "denm", DENM.String())
	require.Equal(t, "btp-a", BTPA.String())
	require.Equal(t, "btp-b", BTPB.String())
	require.Equal(t, "unknown", Kind(99).String())
}
