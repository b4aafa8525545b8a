package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameAllocatorExhaustion(t *testing.T) {
	fa := NewFrameAllocator(4)

	seen := make(map[int]bool)
	for i := 0; i < 4; i++ {
		frame, ok := fa.Allocate()
		require.True(t, ok)
		assert.False(t, seen[frame], "frame %d handed out twice", frame)
		seen[frame] = true
	}

	_, ok := fa.Allocate()
	assert.False(t, ok, "allocation must fail when every frame is used")
	assert.Equal(t, 0, fa.FreeFrames())
}

func TestFrameAllocatorFree(t *testing.T) {
	fa := NewFrameAllocator(4)

	frame, ok := fa.Allocate()
	require.True(t, ok)

	assert.True(t, fa.IsAllocated(frame))
	assert.True(t, fa.Free(frame))
	assert.False(t, fa.IsAllocated(frame))

	assert.False(t, fa.Free(frame), "double free must be rejected")
	assert.False(t, fa.Free(-1))
	assert.False(t, fa.Free(99))
}

func TestFrameAllocatorCursorRotation(t *testing.T) {
	fa := NewFrameAllocator(4)

	first, _ := fa.Allocate()
	second, _ := fa.Allocate()
	require.True(t, fa.Free(first))

	// The cursor moved past the freed frame, so the next allocation picks a
	// fresh frame before wrapping around to the freed one.
	third, ok := fa.Allocate()
	require.True(t, ok)
	assert.NotEqual(t, second, third)
	assert.NotEqual(t, first, third)
}

func TestFrameAllocatorStats(t *testing.T) {
	fa := NewFrameAllocator(8)
	for i := 0; i < 3; i++ {
		_, ok := fa.Allocate()
		require.True(t, ok)
	}

	s := fa.Stats()
	assert.Equal(t, 8, s.TotalFrames)
	assert.Equal(t, 3, s.UsedFrames)
	assert.Equal(t, 5, s.FreeFrames)
}
