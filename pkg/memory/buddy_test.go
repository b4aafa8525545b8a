package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuddyAllocateRounding(t *testing.T) {
	ba := NewBuddyAllocator(1024, 16)

	// 3 bytes rounds up to the 16-byte minimum block.
	addr, ok := ba.Allocate(3, 1)
	require.True(t, ok)
	assert.Equal(t, 0, addr%16)

	s := ba.Stats()
	assert.Equal(t, 16, s.AllocatedSize)

	// 17 bytes rounds up to 32.
	_, ok = ba.Allocate(17, 1)
	require.True(t, ok)
	assert.Equal(t, 16+32, ba.Stats().AllocatedSize)
}

func TestBuddySplitAndCoalesce(t *testing.T) {
	ba := NewBuddyAllocator(256, 16)

	a, ok := ba.Allocate(64, 1)
	require.True(t, ok)
	b, ok := ba.Allocate(64, 1)
	require.True(t, ok)

	// Buddies of the same split differ in exactly the size bit.
	assert.Equal(t, a^64, b)

	require.True(t, ba.Free(a))
	require.True(t, ba.Free(b))

	// After both halves return the arena coalesces back to one block.
	s := ba.Stats()
	assert.Equal(t, 256, s.FreeSize)
	assert.Equal(t, 0.0, s.Fragmentation)

	full, ok := ba.Allocate(256, 1)
	require.True(t, ok)
	assert.Equal(t, 0, full)
}

func TestBuddyExhaustion(t *testing.T) {
	ba := NewBuddyAllocator(128, 16)

	_, ok := ba.Allocate(128, 1)
	require.True(t, ok)

	_, ok = ba.Allocate(16, 1)
	assert.False(t, ok)

	_, ok = ba.Allocate(512, 1)
	assert.False(t, ok, "request larger than the arena must fail")
}

func TestBuddyFreeUnknownAddress(t *testing.T) {
	ba := NewBuddyAllocator(128, 16)
	assert.False(t, ba.Free(64))

	addr, _ := ba.Allocate(32, 1)
	require.True(t, ba.Free(addr))
	assert.False(t, ba.Free(addr), "double free must be rejected")
}

func TestBuddyFragmentation(t *testing.T) {
	ba := NewBuddyAllocator(256, 16)

	// Carve the arena into 64-byte blocks, then free two non-buddy blocks.
	var addrs []int
	for i := 0; i < 4; i++ {
		addr, ok := ba.Allocate(64, 1)
		require.True(t, ok)
		addrs = append(addrs, addr)
	}
	require.True(t, ba.Free(addrs[0]))
	require.True(t, ba.Free(addrs[2]))

	s := ba.Stats()
	assert.Equal(t, 128, s.FreeSize)
	// Two separate 64-byte blocks: the largest is half of the free total.
	assert.InDelta(t, 0.5, s.Fragmentation, 1e-9)
}
