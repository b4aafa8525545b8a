package memory

import "sync"

// SlabAllocator pools fixed-size objects carved out of fixed-size slabs.
// Object indices double as handles; an index maps deterministically to a
// byte offset. Slabs are appended on demand and never reclaimed.
type SlabAllocator struct {
	mu             sync.Mutex
	objectSize     int
	slabSize       int
	objectsPerSlab int
	slabs          [][]byte
	freeObjects    []int
	used           int
}

// SlabStats is a snapshot of one slab pool.
type SlabStats struct {
	ObjectSize     int
	TotalSlabs     int
	ObjectsPerSlab int
	TotalObjects   int
	UsedObjects    int
	FreeObjects    int
	// Utilization is usedObjects/totalObjects, in [0, 1].
	Utilization float64
}

// NewSlabAllocator creates a pool of objectSize-byte objects backed by
// slabSize-byte slabs. The first slab is allocated immediately.
func NewSlabAllocator(objectSize, slabSize int) *SlabAllocator {
	sa := &SlabAllocator{
		objectSize:     objectSize,
		slabSize:       slabSize,
		objectsPerSlab: slabSize / objectSize,
	}
	sa.grow()
	return sa
}

// grow appends one slab and pushes its object slots onto the free list.
func (sa *SlabAllocator) grow() {
	sa.slabs = append(sa.slabs, make([]byte, sa.slabSize))
	base := (len(sa.slabs) - 1) * sa.objectsPerSlab
	for i := 0; i < sa.objectsPerSlab; i++ {
		sa.freeObjects = append(sa.freeObjects, base+i)
	}
}

// Allocate reserves an object slot and returns its index, growing the pool
// by one slab when no slot is free.
func (sa *SlabAllocator) Allocate() (int, bool) {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	if len(sa.freeObjects) == 0 {
		sa.grow()
	}
	if len(sa.freeObjects) == 0 {
		return 0, false
	}

	index := sa.freeObjects[0]
	sa.freeObjects = sa.freeObjects[1:]
	sa.used++
	return index, true
}

// Free returns an object slot to the pool. Indices outside the pool return
// false.
func (sa *SlabAllocator) Free(index int) bool {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	if index < 0 || index >= len(sa.slabs)*sa.objectsPerSlab {
		return false
	}
	sa.freeObjects = append(sa.freeObjects, index)
	sa.used--
	return true
}

// ObjectAddress computes the byte address of an object from its index.
// Indices beyond the allocated slabs yield 0.
func (sa *SlabAllocator) ObjectAddress(index int) int {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	slabIndex := index / sa.objectsPerSlab
	if index < 0 || slabIndex >= len(sa.slabs) {
		return 0
	}
	inSlab := index % sa.objectsPerSlab
	return slabIndex*sa.slabSize + inSlab*sa.objectSize
}

// Stats returns a snapshot of the pool.
func (sa *SlabAllocator) Stats() SlabStats {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	total := len(sa.slabs) * sa.objectsPerSlab
	s := SlabStats{
		ObjectSize:     sa.objectSize,
		TotalSlabs:     len(sa.slabs),
		ObjectsPerSlab: sa.objectsPerSlab,
		TotalObjects:   total,
		UsedObjects:    sa.used,
		FreeObjects:    len(sa.freeObjects),
	}
	if total > 0 {
		s.Utilization = float64(sa.used) / float64(total)
	}
	return s
}
