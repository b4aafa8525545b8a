package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simos/pkg/config"
)

func newTestManager(t *testing.T, mutate func(*config.MemoryConfig)) *Manager {
	t.Helper()
	cfg := config.Default().Memory
	cfg.TotalMemory = 1 << 20 // 256 frames
	cfg.MaxMemoryPerProcess = 64 * 1024
	if mutate != nil {
		mutate(&cfg)
	}
	m := NewManager(cfg, nil)
	require.NoError(t, m.Initialize())
	require.NoError(t, m.Start())
	return m
}

func TestManagerAllocateAndTranslate(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.CreateAddressSpace(7)
	require.NoError(t, err)

	addr, err := m.Allocate(7, 10000, DefaultFlags)
	require.NoError(t, err)
	assert.Equal(t, HeapStart, addr)

	// 10000 bytes rounds up to three pages.
	assert.Equal(t, 3*4096, m.ProcessUsage(7))

	phys, err := m.Translate(7, addr+5000)
	require.NoError(t, err)
	assert.Equal(t, 5000%4096, phys%4096, "page offset survives translation")

	_, err = m.Translate(7, 0x60000000)
	assert.Error(t, err, "unmapped address must not translate")
}

func TestManagerLimitCheckedBeforeFrames(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.CreateAddressSpace(7)
	require.NoError(t, err)

	before := m.Stats().Frames.UsedFrames
	_, err = m.Allocate(7, 128*1024, DefaultFlags)
	var allocErr *AllocationError
	require.ErrorAs(t, err, &allocErr)
	assert.Equal(t, 7, allocErr.PID)

	// A refused allocation must not touch the frame pool.
	assert.Equal(t, before, m.Stats().Frames.UsedFrames)
}

func TestManagerKernelExemptFromLimit(t *testing.T) {
	m := newTestManager(t, nil)

	// pid 0 may exceed the per-process cap.
	_, err := m.Allocate(0, 128*1024, DefaultFlags)
	assert.NoError(t, err)
}

func TestManagerRollbackOnFrameExhaustion(t *testing.T) {
	m := newTestManager(t, func(cfg *config.MemoryConfig) {
		cfg.TotalMemory = 8 * 4096 // 8 frames
		cfg.MaxMemoryPerProcess = 1 << 20
	})
	_, err := m.CreateAddressSpace(7)
	require.NoError(t, err)

	_, err = m.Allocate(7, 5*4096, DefaultFlags)
	require.NoError(t, err)

	// Only three frames left; asking for five must fail cleanly.
	used := m.Stats().Frames.UsedFrames
	_, err = m.Allocate(7, 5*4096, DefaultFlags)
	require.True(t, IsOutOfMemory(err))
	assert.Equal(t, used, m.Stats().Frames.UsedFrames, "partial allocation must roll back")
	assert.Equal(t, 5*4096, m.ProcessUsage(7))
}

func TestManagerFree(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.CreateAddressSpace(7)
	require.NoError(t, err)

	addr, err := m.Allocate(7, 8192, DefaultFlags)
	require.NoError(t, err)
	used := m.Stats().Frames.UsedFrames

	require.NoError(t, m.Free(7, addr))
	assert.Equal(t, used-2, m.Stats().Frames.UsedFrames)
	assert.Equal(t, 0, m.ProcessUsage(7))

	var deallocErr *DeallocationError
	assert.ErrorAs(t, m.Free(7, addr), &deallocErr)
}

func TestManagerProtect(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.CreateAddressSpace(7)
	require.NoError(t, err)

	addr, err := m.Allocate(7, 4096, DefaultFlags)
	require.NoError(t, err)

	require.NoError(t, m.Protect(7, addr, FlagPresent|FlagUser))

	as, err := m.AddressSpace(7)
	require.NoError(t, err)
	entry, ok := as.PageTable.Entry(addr / 4096)
	require.True(t, ok)
	assert.False(t, entry.Flags.Has(FlagWritable))

	var protErr *ProtectionError
	assert.ErrorAs(t, m.Protect(7, 0x60000000, DefaultFlags), &protErr)
}

func TestManagerHandlePageFault(t *testing.T) {
	m := newTestManager(t, nil)
	as, err := m.CreateAddressSpace(7)
	require.NoError(t, err)

	// No address space, no region: the fault cannot be handled.
	assert.False(t, m.HandlePageFault(99, HeapStart, false))
	assert.False(t, m.HandlePageFault(7, 0x60000000, false))

	base, err := as.GrowStack(8192)
	require.NoError(t, err)
	_, err = m.Translate(7, base)
	require.Error(t, err, "stack pages are not mapped up front")

	// First touch of an untouched stack page demand-maps one frame.
	used := m.Stats().Frames.UsedFrames
	require.True(t, m.HandlePageFault(7, base, true))
	_, err = m.Translate(7, base)
	assert.NoError(t, err)
	assert.Equal(t, used+1, m.Stats().Frames.UsedFrames)
	assert.Equal(t, 4096, m.ProcessUsage(7))

	// Faulting a present page allocates nothing new.
	require.True(t, m.HandlePageFault(7, base, false))
	assert.Equal(t, used+1, m.Stats().Frames.UsedFrames)

	// Writes against a read-only region are refused even when the page
	// is present.
	roAddr, err := m.Allocate(7, 4096, FlagPresent|FlagUser)
	require.NoError(t, err)
	assert.False(t, m.HandlePageFault(7, roAddr, true))
	assert.True(t, m.HandlePageFault(7, roAddr, false))

	assert.Greater(t, m.Stats().PageFaults, 0)
}

func TestManagerDestroyReleasesFrames(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.CreateAddressSpace(7)
	require.NoError(t, err)
	_, err = m.Allocate(7, 16*1024, DefaultFlags)
	require.NoError(t, err)

	used := m.Stats().Frames.UsedFrames
	require.Greater(t, used, 0)

	require.NoError(t, m.DestroyAddressSpace(7))
	assert.Equal(t, 0, m.Stats().Frames.UsedFrames)
	assert.ErrorIs(t, m.DestroyAddressSpace(7), ErrAddressSpaceNotFound)
}

func TestManagerKernelArena(t *testing.T) {
	m := newTestManager(t, nil)

	addr, err := m.AllocateKernel(100)
	require.NoError(t, err)
	require.NoError(t, m.FreeKernel(addr))

	var deallocErr *DeallocationError
	assert.ErrorAs(t, m.FreeKernel(addr), &deallocErr)

	// The arena is a quarter of total memory.
	assert.Equal(t, (1<<20)/4, m.Stats().Kernel.TotalSize)
}

func TestManagerSlabPools(t *testing.T) {
	m := newTestManager(t, nil)

	index, err := m.AllocateObject(SlabPCB)
	require.NoError(t, err)
	require.NoError(t, m.FreeObject(SlabPCB, index))

	_, err = m.AllocateObject("socket")
	assert.Error(t, err)
	assert.Error(t, m.FreeObject(SlabInode, -1))

	s := m.Stats()
	assert.Contains(t, s.Slabs, SlabPCB)
	assert.Contains(t, s.Slabs, SlabInode)
	assert.Contains(t, s.Slabs, SlabFile)
	assert.Equal(t, 256, s.Slabs[SlabPCB].ObjectSize)
}
