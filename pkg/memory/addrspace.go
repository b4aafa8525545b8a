package memory

import (
	"fmt"
	"sort"
)

// Canonical layout of a simulated process address space.
const (
	// CodeStart is the base of the code segment.
	CodeStart = 0x00400000
	// DataStart is the base of the data segment.
	DataStart = 0x10000000
	// HeapStart is the base of the heap; the heap grows upward from here.
	HeapStart = 0x20000000
	// StackTop is the top of the stack; the stack grows downward from here.
	StackTop = 0x7FFF0000
)

// MemoryRegion is a half-open [Start, End) range of virtual addresses with a
// role and protection flags.
type MemoryRegion struct {
	Start int
	End   int
	Name  string
	Flags PageFlags
}

// Size returns the region length in bytes.
func (r *MemoryRegion) Size() int { return r.End - r.Start }

// Contains reports whether addr falls inside the region. The end address is
// exclusive.
func (r *MemoryRegion) Contains(addr int) bool {
	return addr >= r.Start && addr < r.End
}

// Overlaps reports whether two half-open regions intersect.
func (r *MemoryRegion) Overlaps(other *MemoryRegion) bool {
	return r.Start < other.End && other.Start < r.End
}

func (r *MemoryRegion) String() string {
	return fmt.Sprintf("%s [%#x, %#x)", r.Name, r.Start, r.End)
}

// AddressSpace is the virtual memory view of one process: a page table plus
// the named regions laid out in it. The heap end and stack bottom track
// growth beyond the initial layout.
type AddressSpace struct {
	PID       int
	PageTable *PageTable
	regions   []*MemoryRegion
	heapEnd   int
	stackBase int
}

// AddressSpaceLayout is a snapshot of segment boundaries.
type AddressSpaceLayout struct {
	CodeStart int
	DataStart int
	HeapStart int
	HeapEnd   int
	StackBase int
	StackTop  int
}

// NewAddressSpace creates an empty address space for a process with the
// canonical segment bases.
func NewAddressSpace(pid, pageSize int) *AddressSpace {
	return &AddressSpace{
		PID:       pid,
		PageTable: NewPageTable(pageSize),
		heapEnd:   HeapStart,
		stackBase: StackTop,
	}
}

// AddRegion registers a named region. Regions may not overlap.
func (as *AddressSpace) AddRegion(start, size int, name string, flags PageFlags) (*MemoryRegion, error) {
	region := &MemoryRegion{Start: start, End: start + size, Name: name, Flags: flags}
	for _, existing := range as.regions {
		if existing.Overlaps(region) {
			return nil, fmt.Errorf("adding %v: %w with %v", region, ErrRegionOverlap, existing)
		}
	}
	as.regions = append(as.regions, region)
	sort.Slice(as.regions, func(i, j int) bool {
		return as.regions[i].Start < as.regions[j].Start
	})
	return region, nil
}

// RemoveRegion drops the region starting at the given address, returning it.
func (as *AddressSpace) RemoveRegion(start int) (*MemoryRegion, bool) {
	for i, region := range as.regions {
		if region.Start == start {
			as.regions = append(as.regions[:i], as.regions[i+1:]...)
			return region, true
		}
	}
	return nil, false
}

// FindRegion returns the region containing addr.
func (as *AddressSpace) FindRegion(addr int) (*MemoryRegion, bool) {
	for _, region := range as.regions {
		if region.Contains(addr) {
			return region, true
		}
	}
	return nil, false
}

// Regions returns the registered regions.
func (as *AddressSpace) Regions() []*MemoryRegion {
	out := make([]*MemoryRegion, len(as.regions))
	copy(out, as.regions)
	return out
}

// GrowHeap moves the heap end up by delta bytes and returns the old end,
// which is the base of the newly valid range. A region covering the growth
// is added only when delta is positive; the end pointer moves regardless, so
// a negative delta shrinks the heap.
func (as *AddressSpace) GrowHeap(delta int) (int, error) {
	oldEnd := as.heapEnd
	if delta > 0 {
		if _, err := as.AddRegion(oldEnd, delta, "heap", DefaultFlags); err != nil {
			return 0, err
		}
	}
	as.heapEnd += delta
	return oldEnd, nil
}

// GrowStack extends the stack downward by size bytes and returns the new
// stack base.
func (as *AddressSpace) GrowStack(size int) (int, error) {
	newBase := as.stackBase - size
	if _, err := as.AddRegion(newBase, size, "stack", DefaultFlags); err != nil {
		return 0, err
	}
	as.stackBase = newBase
	return newBase, nil
}

// HeapEnd returns the current top of the heap.
func (as *AddressSpace) HeapEnd() int { return as.heapEnd }

// Layout returns the current segment boundaries.
func (as *AddressSpace) Layout() AddressSpaceLayout {
	return AddressSpaceLayout{
		CodeStart: CodeStart,
		DataStart: DataStart,
		HeapStart: HeapStart,
		HeapEnd:   as.heapEnd,
		StackBase: as.stackBase,
		StackTop:  StackTop,
	}
}

// Clear drops all regions and mappings and resets heap and stack to the
// initial layout.
func (as *AddressSpace) Clear() {
	as.regions = nil
	as.PageTable.Clear()
	as.heapEnd = HeapStart
	as.stackBase = StackTop
}
