package loctable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNeighbourDiffReportsAddedAndRemoved(t *testing.T) {
	now := time.Now()
	table := New()
	table.Update(now, lpv(1, 10), true, 0)
	table.Update(now, lpv(2, 10), true, 0)
	prev := table.NeighbourList()

	table.Remove([6]byte{0, 0, 0, 0, 0, 1})
	table.Update(now, lpv(3, 10), true, 0)
	curr := table.NeighbourList()

	added, removed := NeighbourDiff(prev, curr)
	require.Equal(t, [][6]byte{{0, 0, 0, 0, 0, 3}}, added)
	require.Equal(t, [][6]byte{{0, 0, 0, 0, 0, 1}}, removed)
}

func TestNeighbourDiffEmptyWhenUnchanged(t *testing.T) {
	now := time.Now()
	table := New()
	table.Update(now, lpv(1, 10), true, 0)
	prev := table.NeighbourList()
	curr := table.NeighbourList()

	added, removed := NeighbourDiff(prev, curr)
	require.Empty(t, added)
	require.Empty(t, removed)
}
