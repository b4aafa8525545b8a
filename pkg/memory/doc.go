/*
Package memory implements the simulated physical and virtual memory
subsystem.

The package is composed leaf-to-root:

  - FrameAllocator: physical frame bitmap with a rotating scan cursor
  - PageTable: sparse virtual-page to physical-frame map with protection flags
  - BuddyAllocator: power-of-two allocator for the kernel heap arena
  - SlabAllocator: fixed-size object pools for kernel objects
  - AddressSpace: per-process page table plus ordered memory regions
  - Manager: one address space per PID, per-process limits, page faults

The Manager owns every address space and all allocators. Callers identify
processes by PID only; the process subsystem holds no reference into this
package and vice versa.
*/
package memory
