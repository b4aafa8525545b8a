package memory

// PageFlags are the protection and status bits of a page table entry.
type PageFlags uint8

const (
	// FlagPresent marks the page as backed by a physical frame.
	FlagPresent PageFlags = 1 << iota
	// FlagWritable allows writes to the page.
	FlagWritable
	// FlagUser allows user-mode access.
	FlagUser
	// FlagAccessed is set when the page has been accessed.
	FlagAccessed
	// FlagDirty is set when the page has been written to.
	FlagDirty
	// FlagExecutable allows instruction fetch from the page.
	FlagExecutable
	// FlagCopyOnWrite marks the page for copy-on-write.
	FlagCopyOnWrite
)

// DefaultFlags is the usual mapping for user data pages.
const DefaultFlags = FlagPresent | FlagWritable | FlagUser

// Has reports whether all bits of flag are set.
func (f PageFlags) Has(flag PageFlags) bool {
	return f&flag == flag
}

// PageTableEntry maps one virtual page to a physical frame.
type PageTableEntry struct {
	VirtualPage   int
	PhysicalFrame int
	Flags         PageFlags
}

// PageTable is a sparse map from virtual page numbers to physical frames for
// a single address space. The table never allocates frames itself; frame
// lifecycle belongs to the caller.
type PageTable struct {
	pageSize int
	entries  map[int]*PageTableEntry
}

// PageTableStats summarizes a page table.
type PageTableStats struct {
	TotalPages   int
	PresentPages int
	DirtyPages   int
	MemoryUsed   int
}

// NewPageTable creates an empty page table for the given page size.
func NewPageTable(pageSize int) *PageTable {
	return &PageTable{
		pageSize: pageSize,
		entries:  make(map[int]*PageTableEntry),
	}
}

// PageSize returns the page size in bytes.
func (pt *PageTable) PageSize() int { return pt.pageSize }

// Map installs a mapping from a virtual page to a physical frame.
func (pt *PageTable) Map(virtualPage, physicalFrame int, flags PageFlags) {
	pt.entries[virtualPage] = &PageTableEntry{
		VirtualPage:   virtualPage,
		PhysicalFrame: physicalFrame,
		Flags:         flags,
	}
}

// Unmap removes a mapping, returning the removed entry if one existed.
func (pt *PageTable) Unmap(virtualPage int) (*PageTableEntry, bool) {
	entry, ok := pt.entries[virtualPage]
	if ok {
		delete(pt.entries, virtualPage)
	}
	return entry, ok
}

// Entry returns the entry for a virtual page.
func (pt *PageTable) Entry(virtualPage int) (*PageTableEntry, bool) {
	entry, ok := pt.entries[virtualPage]
	return entry, ok
}

// Translate resolves a virtual page to its physical frame. Pages without the
// present bit do not translate.
func (pt *PageTable) Translate(virtualPage int) (int, bool) {
	entry, ok := pt.entries[virtualPage]
	if !ok || !entry.Flags.Has(FlagPresent) {
		return 0, false
	}
	return entry.PhysicalFrame, true
}

// UpdateFlags replaces the flags of a mapped page.
func (pt *PageTable) UpdateFlags(virtualPage int, flags PageFlags) bool {
	entry, ok := pt.entries[virtualPage]
	if !ok {
		return false
	}
	entry.Flags = flags
	return true
}

// Pages returns every mapped virtual page number.
func (pt *PageTable) Pages() []int {
	pages := make([]int, 0, len(pt.entries))
	for page := range pt.entries {
		pages = append(pages, page)
	}
	return pages
}

// Len returns the number of mappings.
func (pt *PageTable) Len() int { return len(pt.entries) }

// Clear removes every mapping.
func (pt *PageTable) Clear() {
	pt.entries = make(map[int]*PageTableEntry)
}

// Stats returns a snapshot of the table.
func (pt *PageTable) Stats() PageTableStats {
	s := PageTableStats{
		TotalPages: len(pt.entries),
		MemoryUsed: len(pt.entries) * pt.pageSize,
	}
	for _, entry := range pt.entries {
		if entry.Flags.Has(FlagPresent) {
			s.PresentPages++
		}
		if entry.Flags.Has(FlagDirty) {
			s.DirtyPages++
		}
	}
	return s
}
