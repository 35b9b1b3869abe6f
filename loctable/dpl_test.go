package loctable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veloce/gnrouter/gnaddr"
)

func gnSeq(n int) gnaddr.SeqNumber { return gnaddr.SeqNumber(n) }

func TestDuplicatePacketListFillsSlotsBeforeEvicting(t *testing.T) {
	var d duplicatePacketList
	now := time.Now()

	for i := 0; i < DPLLength; i++ {
		dup := d.checkAndUpdate(gnSeq(i), now)
		require.False(t, dup)
	}
	for i := 0; i < DPLLength; i++ {
		require.Equal(t, uint32(1), d.counterFor(gnSeq(i)))
	}
}

func TestDuplicatePacketListEvictsOldestWhenFull(t *testing.T) {
	var d duplicatePacketList
	now := time.Now()

	for i := 0; i < DPLLength; i++ {
		d.checkAndUpdate(gnSeq(i), now.Add(time.Duration(i)*time.Second))
	}
	// seq 0 was seen earliest; a new seq must evict it.
	dup := d.checkAndUpdate(gnSeq(1000), now.Add(time.Duration(DPLLength)*time.Second))
	require.False(t, dup)
	require.Equal(t, uint32(0), d.counterFor(gnSeq(0)))
	require.Equal(t, uint32(1), d.counterFor(gnSeq(1000)))
}

func TestDuplicatePacketListCounterForUnknownSeqIsZero(t *testing.T) {
	var d duplicatePacketList
	require.Equal(t, uint32(0), d.counterFor(gnSeq(7)))
}
