package memory

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"simos/pkg/config"
)

// Slab pool names served by AllocateObject.
const (
	SlabPCB   = "pcb"
	SlabInode = "inode"
	SlabFile  = "file"
)

const (
	kernelMinBlock = 16
	slabSize       = 4096
)

// Manager is the physical and virtual memory subsystem. It owns the frame
// pool, one address space per process, the kernel buddy arena, and the
// kernel object slabs.
type Manager struct {
	mu  sync.Mutex
	cfg config.MemoryConfig
	log *zap.SugaredLogger

	frames *FrameAllocator
	spaces map[int]*AddressSpace
	usage  map[int]int

	kernelArena *BuddyAllocator
	slabs       map[string]*SlabAllocator

	pageFaults int
	running    bool
}

// ManagerStats is a snapshot across every allocator the manager owns.
type ManagerStats struct {
	Frames     FrameStats
	Kernel     BuddyStats
	Slabs      map[string]SlabStats
	Spaces     int
	PageFaults int
}

// NewManager creates a memory manager for the given configuration. The
// kernel arena takes a quarter of total memory; the rest backs the frame
// pool handed to processes.
func NewManager(cfg config.MemoryConfig, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{
		cfg: cfg,
		log: log,
	}
}

// Name implements subsystem.Subsystem.
func (m *Manager) Name() string { return "memory" }

// Initialize builds the allocators and the kernel address space (pid 0).
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	totalFrames := m.cfg.TotalMemory / m.cfg.PageSize
	m.frames = NewFrameAllocator(totalFrames)
	m.spaces = make(map[int]*AddressSpace)
	m.usage = make(map[int]int)

	m.kernelArena = NewBuddyAllocator(m.cfg.TotalMemory/4, kernelMinBlock)
	m.slabs = map[string]*SlabAllocator{
		SlabPCB:   NewSlabAllocator(256, slabSize),
		SlabInode: NewSlabAllocator(128, slabSize),
		SlabFile:  NewSlabAllocator(64, slabSize),
	}

	m.spaces[0] = NewAddressSpace(0, m.cfg.PageSize)

	m.log.Infow("memory manager initialized",
		"total_frames", totalFrames,
		"page_size", m.cfg.PageSize,
		"kernel_arena", m.cfg.TotalMemory/4)
	return nil
}

// Start implements subsystem.Subsystem.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	return nil
}

// Stop implements subsystem.Subsystem.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Cleanup tears down every address space.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pid := range m.spaces {
		m.destroySpaceLocked(pid)
	}
	return nil
}

// HealthCheck reports whether the subsystem is running with frames to spare.
func (m *Manager) HealthCheck() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running && m.frames != nil && m.frames.FreeFrames() > 0
}

// CreateAddressSpace builds the address space for a new process.
func (m *Manager) CreateAddressSpace(pid int) (*AddressSpace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.spaces[pid]; ok {
		return nil, fmt.Errorf("address space for pid %d already exists", pid)
	}
	as := NewAddressSpace(pid, m.cfg.PageSize)
	m.spaces[pid] = as
	m.usage[pid] = 0
	return as, nil
}

// DestroyAddressSpace frees every frame a process holds and drops its
// address space.
func (m *Manager) DestroyAddressSpace(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.spaces[pid]; !ok {
		return fmt.Errorf("destroy address space: pid %d: %w", pid, ErrAddressSpaceNotFound)
	}
	m.destroySpaceLocked(pid)
	return nil
}

func (m *Manager) destroySpaceLocked(pid int) {
	as := m.spaces[pid]
	for _, page := range as.PageTable.Pages() {
		if entry, ok := as.PageTable.Entry(page); ok {
			m.frames.Free(entry.PhysicalFrame)
		}
	}
	as.Clear()
	delete(m.spaces, pid)
	delete(m.usage, pid)
}

// AddressSpace returns the address space of a process.
func (m *Manager) AddressSpace(pid int) (*AddressSpace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	as, ok := m.spaces[pid]
	if !ok {
		return nil, fmt.Errorf("pid %d: %w", pid, ErrAddressSpaceNotFound)
	}
	return as, nil
}

// Allocate reserves size bytes of heap for a process and returns the virtual
// base address; the pages are mapped with the given protection flags. The
// per-process limit is checked before any frame is touched; the kernel
// (pid 0) is exempt. When the frame pool runs dry partway through, every
// frame of the partial allocation is released before the error returns.
func (m *Manager) Allocate(pid, size int, flags PageFlags) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	as, ok := m.spaces[pid]
	if !ok {
		return 0, fmt.Errorf("allocate: pid %d: %w", pid, ErrAddressSpaceNotFound)
	}

	if pid != 0 && m.usage[pid]+size > m.cfg.MaxMemoryPerProcess {
		return 0, &AllocationError{PID: pid, Size: size, Reason: "per-process memory limit exceeded"}
	}

	numPages := (size + m.cfg.PageSize - 1) / m.cfg.PageSize
	base, err := as.GrowHeap(numPages * m.cfg.PageSize)
	if err != nil {
		return 0, &AllocationError{PID: pid, Size: size, Reason: err.Error()}
	}
	if region, found := as.FindRegion(base); found {
		region.Flags = flags
	}

	basePage := base / m.cfg.PageSize
	for i := 0; i < numPages; i++ {
		frame, ok := m.frames.Allocate()
		if !ok {
			for j := 0; j < i; j++ {
				if entry, found := as.PageTable.Unmap(basePage + j); found {
					m.frames.Free(entry.PhysicalFrame)
				}
			}
			as.RemoveRegion(base)
			return 0, &OutOfMemoryError{
				Requested: size,
				Available: m.frames.FreeFrames() * m.cfg.PageSize,
			}
		}
		as.PageTable.Map(basePage+i, frame, flags)
	}

	m.usage[pid] += numPages * m.cfg.PageSize
	m.log.Debugw("allocated", "pid", pid, "size", size, "base", fmt.Sprintf("%#x", base), "pages", numPages)
	return base, nil
}

// Free releases the allocation that starts at address for a process.
func (m *Manager) Free(pid, address int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	as, ok := m.spaces[pid]
	if !ok {
		return &DeallocationError{PID: pid, Address: address, Err: ErrAddressSpaceNotFound}
	}

	region, ok := as.RemoveRegion(address)
	if !ok {
		return &DeallocationError{PID: pid, Address: address, Err: ErrRegionNotFound}
	}

	basePage := region.Start / m.cfg.PageSize
	numPages := region.Size() / m.cfg.PageSize
	for i := 0; i < numPages; i++ {
		if entry, found := as.PageTable.Unmap(basePage + i); found {
			m.frames.Free(entry.PhysicalFrame)
		}
	}

	m.usage[pid] -= region.Size()
	if m.usage[pid] < 0 {
		m.usage[pid] = 0
	}
	m.log.Debugw("freed", "pid", pid, "address", fmt.Sprintf("%#x", address), "size", region.Size())
	return nil
}

// Protect changes the protection flags of the region containing address and
// of every page mapped inside it.
func (m *Manager) Protect(pid, address int, flags PageFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	as, ok := m.spaces[pid]
	if !ok {
		return &ProtectionError{PID: pid, Address: address, Err: ErrAddressSpaceNotFound}
	}
	region, ok := as.FindRegion(address)
	if !ok {
		return &ProtectionError{PID: pid, Address: address, Err: ErrRegionNotFound}
	}

	region.Flags = flags
	firstPage := region.Start / m.cfg.PageSize
	lastPage := (region.End - 1) / m.cfg.PageSize
	for page := firstPage; page <= lastPage; page++ {
		as.PageTable.UpdateFlags(page, flags)
	}
	return nil
}

// Translate resolves a virtual address to its physical address.
func (m *Manager) Translate(pid, virtualAddr int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	as, ok := m.spaces[pid]
	if !ok {
		return 0, fmt.Errorf("translate: pid %d: %w", pid, ErrAddressSpaceNotFound)
	}

	page := virtualAddr / m.cfg.PageSize
	frame, ok := as.PageTable.Translate(page)
	if !ok {
		return 0, fmt.Errorf("translate %#x for pid %d: page %d not present", virtualAddr, pid, page)
	}
	return frame*m.cfg.PageSize + virtualAddr%m.cfg.PageSize, nil
}

// HandlePageFault resolves a fault by demand-mapping the faulting page with
// a fresh frame. It reports false, leaving the fault for the caller to
// escalate as a segmentation fault, when the process has no address space,
// no region covers the address, or a write faults against a non-writable
// region. A fault on an already-present page is trivially handled.
func (m *Manager) HandlePageFault(pid, virtualAddr int, write bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pageFaults++

	as, ok := m.spaces[pid]
	if !ok {
		return false
	}
	region, ok := as.FindRegion(virtualAddr)
	if !ok {
		m.log.Debugw("segfault: no region", "pid", pid, "address", fmt.Sprintf("%#x", virtualAddr))
		return false
	}
	if write && !region.Flags.Has(FlagWritable) {
		m.log.Debugw("segfault: write to read-only region", "pid", pid, "address", fmt.Sprintf("%#x", virtualAddr))
		return false
	}

	page := virtualAddr / m.cfg.PageSize
	if _, present := as.PageTable.Translate(page); present {
		return true
	}

	frame, ok := m.frames.Allocate()
	if !ok {
		return false
	}
	as.PageTable.Map(page, frame, region.Flags)
	m.usage[pid] += m.cfg.PageSize
	m.log.Debugw("page fault handled", "pid", pid, "address", fmt.Sprintf("%#x", virtualAddr), "frame", frame)
	return true
}

// AllocateKernel reserves size bytes from the kernel buddy arena.
func (m *Manager) AllocateKernel(size int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	addr, ok := m.kernelArena.Allocate(size, 0)
	if !ok {
		stats := m.kernelArena.Stats()
		return 0, &OutOfMemoryError{Requested: size, Available: stats.FreeSize}
	}
	return addr, nil
}

// FreeKernel releases a kernel arena block.
func (m *Manager) FreeKernel(address int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.kernelArena.Free(address) {
		return &DeallocationError{PID: 0, Address: address, Err: ErrRegionNotFound}
	}
	return nil
}

// AllocateObject reserves one object from a named slab pool and returns its
// index.
func (m *Manager) AllocateObject(pool string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slab, ok := m.slabs[pool]
	if !ok {
		return 0, fmt.Errorf("unknown slab pool %q", pool)
	}
	index, ok := slab.Allocate()
	if !ok {
		return 0, &OutOfMemoryError{Requested: slab.objectSize, Available: 0}
	}
	return index, nil
}

// FreeObject returns an object to a named slab pool.
func (m *Manager) FreeObject(pool string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	slab, ok := m.slabs[pool]
	if !ok {
		return fmt.Errorf("unknown slab pool %q", pool)
	}
	if !slab.Free(index) {
		return fmt.Errorf("slab pool %q: index %d not allocated", pool, index)
	}
	return nil
}

// ProcessUsage returns the bytes currently charged to a process.
func (m *Manager) ProcessUsage(pid int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage[pid]
}

// Stats returns a snapshot across frames, kernel arena, and slab pools.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := ManagerStats{
		Frames:     m.frames.Stats(),
		Kernel:     m.kernelArena.Stats(),
		Slabs:      make(map[string]SlabStats, len(m.slabs)),
		Spaces:     len(m.spaces),
		PageFaults: m.pageFaults,
	}
	for name, slab := range m.slabs {
		s.Slabs[name] = slab.Stats()
	}
	return s
}
