package memory

import "sync"

// Block is one buddy-system block. Its address is always a multiple of its
// size, so the buddy of a block sits at address XOR size.
type Block struct {
	Address int
	Size    int
	Free    bool
	PID     int
}

// BuddyAllocator manages a byte-addressed arena as power-of-two blocks with
// per-order free lists. Freed blocks coalesce with their buddies back toward
// the maximum order.
type BuddyAllocator struct {
	mu           sync.Mutex
	totalSize    int
	minBlockSize int
	maxOrder     int
	freeLists    [][]*Block
	allocated    map[int]*Block
}

// BuddyStats is a snapshot of arena usage.
type BuddyStats struct {
	TotalSize       int
	AllocatedSize   int
	FreeSize        int
	AllocatedBlocks int
	// Fragmentation is 1 - largestFreeBlock/totalFree, in [0, 1].
	Fragmentation float64
}

// NewBuddyAllocator creates an allocator over an arena of totalSize bytes,
// expected to be a power of two. Allocations smaller than minBlockSize are
// rounded up to it.
func NewBuddyAllocator(totalSize, minBlockSize int) *BuddyAllocator {
	maxOrder := orderFor(totalSize)
	ba := &BuddyAllocator{
		totalSize:    totalSize,
		minBlockSize: minBlockSize,
		maxOrder:     maxOrder,
		freeLists:    make([][]*Block, maxOrder+1),
		allocated:    make(map[int]*Block),
	}
	ba.freeLists[maxOrder] = []*Block{{Address: 0, Size: totalSize, Free: true}}
	return ba
}

// orderFor returns the smallest order whose block size holds size bytes.
func orderFor(size int) int {
	order := 0
	for (1 << order) < size {
		order++
	}
	return order
}

// Allocate reserves a block of at least size bytes and returns its address.
// The request is rounded up to the minimum block size and then to the next
// power of two. Returns false when no block of sufficient order is free.
func (ba *BuddyAllocator) Allocate(size, pid int) (int, bool) {
	if size < ba.minBlockSize {
		size = ba.minBlockSize
	}
	order := orderFor(size)

	ba.mu.Lock()
	defer ba.mu.Unlock()

	block := ba.takeBlock(order)
	if block == nil {
		return 0, false
	}

	block.Free = false
	block.PID = pid
	ba.allocated[block.Address] = block
	return block.Address, true
}

// takeBlock pops a free block of exactly the given order, splitting a larger
// block down when necessary. The split's right halves land in the lower
// free lists.
func (ba *BuddyAllocator) takeBlock(order int) *Block {
	if order > ba.maxOrder {
		return nil
	}

	if len(ba.freeLists[order]) > 0 {
		block := ba.freeLists[order][0]
		ba.freeLists[order] = ba.freeLists[order][1:]
		return block
	}

	for higher := order + 1; higher <= ba.maxOrder; higher++ {
		if len(ba.freeLists[higher]) == 0 {
			continue
		}
		block := ba.freeLists[higher][0]
		ba.freeLists[higher] = ba.freeLists[higher][1:]

		for o := higher - 1; o >= order; o-- {
			half := block.Size / 2
			right := &Block{Address: block.Address + half, Size: half, Free: true}
			ba.freeLists[o] = append(ba.freeLists[o], right)
			block = &Block{Address: block.Address, Size: half, Free: true}
		}
		return block
	}

	return nil
}

// Free releases an allocated block and coalesces it with its buddy while the
// buddy is free and the merged block stays within the arena. Freeing an
// unknown address returns false.
func (ba *BuddyAllocator) Free(address int) bool {
	ba.mu.Lock()
	defer ba.mu.Unlock()

	block, ok := ba.allocated[address]
	if !ok {
		return false
	}
	delete(ba.allocated, address)

	block.Free = true
	block.PID = 0
	ba.coalesce(block)
	return true
}

// coalesce merges a free block with its buddy upward until the buddy is not
// free or the maximum order is reached.
func (ba *BuddyAllocator) coalesce(block *Block) {
	order := orderFor(block.Size)

	for order < ba.maxOrder {
		buddyAddr := block.Address ^ block.Size

		buddy := ba.removeFree(order, buddyAddr)
		if buddy == nil {
			ba.freeLists[order] = append(ba.freeLists[order], block)
			return
		}

		addr := block.Address
		if buddy.Address < addr {
			addr = buddy.Address
		}
		block = &Block{Address: addr, Size: block.Size * 2, Free: true}
		order++
	}

	ba.freeLists[order] = append(ba.freeLists[order], block)
}

// removeFree removes and returns the first free block at the given order
// with the given address, or nil when absent.
func (ba *BuddyAllocator) removeFree(order, address int) *Block {
	list := ba.freeLists[order]
	for i, b := range list {
		if b.Address == address {
			ba.freeLists[order] = append(list[:i], list[i+1:]...)
			return b
		}
	}
	return nil
}

// Stats returns a snapshot of the arena.
func (ba *BuddyAllocator) Stats() BuddyStats {
	ba.mu.Lock()
	defer ba.mu.Unlock()

	totalFree := 0
	largestFree := 0
	for _, list := range ba.freeLists {
		for _, b := range list {
			totalFree += b.Size
			if b.Size > largestFree {
				largestFree = b.Size
			}
		}
	}

	s := BuddyStats{
		TotalSize:       ba.totalSize,
		AllocatedSize:   ba.totalSize - totalFree,
		FreeSize:        totalFree,
		AllocatedBlocks: len(ba.allocated),
	}
	if totalFree > 0 {
		s.Fragmentation = 1 - float64(largestFree)/float64(totalFree)
	}
	return s
}
