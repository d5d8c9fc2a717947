package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateReturnsDistinctRegions(t *testing.T) {
	a := New()
	x := a.Allocate(16)
	y := a.Allocate(16)
	require.Len(t, x, 16)
	require.Len(t, y, 16)

	x[0] = 0xAA
	require.NotEqual(t, byte(0xAA), y[0], "allocations must not alias")
}

func TestAllocateAcrossBlockBoundaryGrowsArena(t *testing.T) {
	a := New()
	first := a.Allocate(blockSize - 8)
	second := a.Allocate(64)
	require.Len(t, first, blockSize-8)
	require.Len(t, second, 64)

	for i := range first {
		first[i] = 1
	}
	for i := range second {
		require.Zero(t, second[i], "new block must not overlap the previous one")
	}
}

func TestAllocateOversizeGetsOwnBlock(t *testing.T) {
	a := New()
	big := a.Allocate(blockSize * 2)
	require.Len(t, big, blockSize*2)
}

func TestAllocateAlignedIsPointerAligned(t *testing.T) {
	a := New()
	a.Allocate(3) // misalign the cursor
	aligned := a.AllocateAligned(16)
	require.Len(t, aligned, 16)
	require.Zero(t, a.pos%align, "AllocateAligned must leave the cursor aligned")
}

func TestMemoryUsageAccumulates(t *testing.T) {
	a := New()
	require.Equal(t, 0, a.MemoryUsage())
	a.Allocate(10)
	a.Allocate(20)
	require.Equal(t, 30, a.MemoryUsage())
}

func TestAllocateZeroOrNegativeIsNoop(t *testing.T) {
	a := New()
	require.Nil(t, a.Allocate(0))
	require.Nil(t, a.Allocate(-1))
	require.Equal(t, 0, a.MemoryUsage())
}
