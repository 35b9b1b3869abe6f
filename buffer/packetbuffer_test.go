package buffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func entry(key byte, size int, expiresAt time.Time) Entry {
	return Entry{
		Key:       [6]byte{0, 0, 0, 0, 0, key},
		Meta:      Meta{HeaderSize: 0},
		Payload:   make([]byte, size),
		Size:      size,
		ExpiresAt: expiresAt,
	}
}

func TestEnqueueRejectsOversizeEntry(t *testing.T) {
	b := New(100, 10)
	err := b.Enqueue(entry(1, 200, time.Time{}))
	require.ErrorIs(t, err, ErrTooBig)
	require.Equal(t, 0, b.Len())
}

func TestEnqueueEvictsOldestByBytes(t *testing.T) {
	b := New(100, 10)
	require.NoError(t, b.Enqueue(entry(1, 60, time.Time{})))
	require.NoError(t, b.Enqueue(entry(2, 60, time.Time{})))

	// second enqueue needed 60 bytes but only 40 remained: the first entry
	// (key 1) must have been evicted to make room.
	require.Equal(t, 1, b.Len())
	require.Equal(t, 60, b.byteCapacity-b.RemainingBytes())

	kept := b.Drain()
	require.Len(t, kept, 1)
	require.Equal(t, byte(2), kept[0].Key[5])
}

func TestEnqueueEvictsOldestBySlotCount(t *testing.T) {
	b := New(10_000, 2)
	require.NoError(t, b.Enqueue(entry(1, 10, time.Time{})))
	require.NoError(t, b.Enqueue(entry(2, 10, time.Time{})))
	require.NoError(t, b.Enqueue(entry(3, 10, time.Time{})))

	require.Equal(t, 2, b.Len())
	kept := b.Drain()
	require.Equal(t, byte(2), kept[0].Key[5])
	require.Equal(t, byte(3), kept[1].Key[5])
}

func TestDequeueKeyRemovesOnlyMatchingEntriesInOrder(t *testing.T) {
	b := New(10_000, 10)
	require.NoError(t, b.Enqueue(entry(1, 10, time.Time{})))
	require.NoError(t, b.Enqueue(entry(2, 10, time.Time{})))
	require.NoError(t, b.Enqueue(entry(1, 10, time.Time{})))

	out := b.DequeueKey([6]byte{0, 0, 0, 0, 0, 1})
	require.Len(t, out, 2)
	require.Equal(t, 1, b.Len())
	require.Equal(t, 10, b.byteCapacity-b.RemainingBytes())
}

func TestDequeueExpiredRemovesPastDeadlineOnly(t *testing.T) {
	b := New(10_000, 10)
	now := time.Now()
	require.NoError(t, b.Enqueue(entry(1, 10, now.Add(-time.Second))))
	require.NoError(t, b.Enqueue(entry(2, 10, now.Add(time.Minute))))

	out := b.DequeueExpired(now)
	require.Len(t, out, 1)
	require.Equal(t, byte(1), out[0].Key[5])
	require.Equal(t, 1, b.Len())
}

func TestDrainEmptiesBuffer(t *testing.T) {
	b := New(10_000, 10)
	require.NoError(t, b.Enqueue(entry(1, 10, time.Time{})))
	require.NoError(t, b.Enqueue(entry(2, 10, time.Time{})))

	out := b.Drain()
	require.Len(t, out, 2)
	require.Equal(t, 0, b.Len())
	require.Equal(t, b.byteCapacity, b.RemainingBytes())
}
