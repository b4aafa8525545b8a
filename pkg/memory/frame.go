package memory

import "sync"

// FrameAllocator hands out physical frames from a boolean bitmap. A rotating
// cursor makes allocation amortized O(1); the worst case scans the whole
// bitmap once.
type FrameAllocator struct {
	mu     sync.Mutex
	bitmap []bool
	cursor int
	used   int
}

// FrameStats is a snapshot of frame usage.
type FrameStats struct {
	TotalFrames int
	UsedFrames  int
	FreeFrames  int
}

// NewFrameAllocator creates an allocator managing totalFrames frames, all
// initially free.
func NewFrameAllocator(totalFrames int) *FrameAllocator {
	return &FrameAllocator{
		bitmap: make([]bool, totalFrames),
	}
}

// Allocate returns the number of a free frame, or false when every frame is
// in use. The scan starts at the cursor left by the previous allocation.
func (fa *FrameAllocator) Allocate() (int, bool) {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	if fa.used >= len(fa.bitmap) {
		return 0, false
	}

	frame := fa.cursor
	for fa.bitmap[frame] {
		frame = (frame + 1) % len(fa.bitmap)
	}

	fa.bitmap[frame] = true
	fa.used++
	fa.cursor = (frame + 1) % len(fa.bitmap)
	return frame, true
}

// Free releases a frame. Freeing a frame that is already free, or a frame
// number outside the bitmap, returns false and changes nothing.
func (fa *FrameAllocator) Free(frame int) bool {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	if frame < 0 || frame >= len(fa.bitmap) || !fa.bitmap[frame] {
		return false
	}
	fa.bitmap[frame] = false
	fa.used--
	return true
}

// IsAllocated reports whether a frame is currently in use.
func (fa *FrameAllocator) IsAllocated(frame int) bool {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return frame >= 0 && frame < len(fa.bitmap) && fa.bitmap[frame]
}

// FreeFrames returns the number of frames available for allocation.
func (fa *FrameAllocator) FreeFrames() int {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return len(fa.bitmap) - fa.used
}

// UsedFrames returns the number of frames currently allocated.
func (fa *FrameAllocator) UsedFrames() int {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.used
}

// TotalFrames returns the size of the managed frame pool.
func (fa *FrameAllocator) TotalFrames() int {
	return len(fa.bitmap)
}

// Stats returns a usage snapshot.
func (fa *FrameAllocator) Stats() FrameStats {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return FrameStats{
		TotalFrames: len(fa.bitmap),
		UsedFrames:  fa.used,
		FreeFrames:  len(fa.bitmap) - fa.used,
	}
}
