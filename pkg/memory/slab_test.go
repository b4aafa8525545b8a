package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlabAllocateAndGrow(t *testing.T) {
	sa := NewSlabAllocator(64, 256)
	require.Equal(t, 4, sa.Stats().ObjectsPerSlab)

	for i := 0; i < 4; i++ {
		_, ok := sa.Allocate()
		require.True(t, ok)
	}
	assert.Equal(t, 1, sa.Stats().TotalSlabs)

	// The fifth allocation forces a second slab.
	index, ok := sa.Allocate()
	require.True(t, ok)
	assert.Equal(t, 4, index)
	assert.Equal(t, 2, sa.Stats().TotalSlabs)
}

func TestSlabFreeBounds(t *testing.T) {
	sa := NewSlabAllocator(64, 256)

	index, ok := sa.Allocate()
	require.True(t, ok)

	assert.False(t, sa.Free(-1))
	assert.False(t, sa.Free(100))
	assert.True(t, sa.Free(index))
}

func TestSlabObjectAddress(t *testing.T) {
	sa := NewSlabAllocator(64, 256)

	assert.Equal(t, 0, sa.ObjectAddress(0))
	assert.Equal(t, 128, sa.ObjectAddress(2))

	// Index in a slab that does not exist yet.
	assert.Equal(t, 0, sa.ObjectAddress(40))

	// Grow into a second slab; its first object starts at the slab base.
	for i := 0; i < 5; i++ {
		sa.Allocate()
	}
	assert.Equal(t, 256, sa.ObjectAddress(4))
}

func TestSlabUtilization(t *testing.T) {
	sa := NewSlabAllocator(64, 256)
	for i := 0; i < 2; i++ {
		_, ok := sa.Allocate()
		require.True(t, ok)
	}

	s := sa.Stats()
	assert.Equal(t, 2, s.UsedObjects)
	assert.InDelta(t, 0.5, s.Utilization, 1e-9)
}
