package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionContainsHalfOpen(t *testing.T) {
	r := &MemoryRegion{Start: 0x1000, End: 0x2000, Name: "heap"}

	assert.True(t, r.Contains(0x1000))
	assert.True(t, r.Contains(0x1FFF))
	assert.False(t, r.Contains(0x2000), "end address is exclusive")
	assert.False(t, r.Contains(0x0FFF))
	assert.Equal(t, 0x1000, r.Size())
}

func TestAddressSpaceRegionOverlap(t *testing.T) {
	as := NewAddressSpace(7, 4096)

	_, err := as.AddRegion(0x1000, 0x1000, "data", DefaultFlags)
	require.NoError(t, err)

	_, err = as.AddRegion(0x1800, 0x1000, "heap", DefaultFlags)
	assert.ErrorIs(t, err, ErrRegionOverlap)

	// Touching regions do not overlap: [0x1000,0x2000) and [0x2000,0x3000).
	_, err = as.AddRegion(0x2000, 0x1000, "heap", DefaultFlags)
	assert.NoError(t, err)
}

func TestAddressSpaceGrowHeap(t *testing.T) {
	as := NewAddressSpace(7, 4096)

	base, err := as.GrowHeap(8192)
	require.NoError(t, err)
	assert.Equal(t, HeapStart, base)
	assert.Equal(t, HeapStart+8192, as.HeapEnd())

	region, ok := as.FindRegion(base)
	require.True(t, ok)
	assert.Equal(t, 8192, region.Size())

	// A negative delta moves the end pointer without adding a region.
	before := len(as.Regions())
	_, err = as.GrowHeap(-4096)
	require.NoError(t, err)
	assert.Equal(t, HeapStart+4096, as.HeapEnd())
	assert.Len(t, as.Regions(), before)
}

func TestAddressSpaceGrowStack(t *testing.T) {
	as := NewAddressSpace(7, 4096)

	base, err := as.GrowStack(4096)
	require.NoError(t, err)
	assert.Equal(t, StackTop-4096, base)

	base2, err := as.GrowStack(4096)
	require.NoError(t, err)
	assert.Equal(t, StackTop-8192, base2)

	layout := as.Layout()
	assert.Equal(t, StackTop-8192, layout.StackBase)
}

func TestAddressSpaceClear(t *testing.T) {
	as := NewAddressSpace(7, 4096)
	_, err := as.GrowHeap(4096)
	require.NoError(t, err)
	as.PageTable.Map(1, 2, DefaultFlags)

	as.Clear()
	assert.Empty(t, as.Regions())
	assert.Equal(t, 0, as.PageTable.Len())
	assert.Equal(t, HeapStart, as.HeapEnd())
}
