package memory

import (
	"errors"
	"fmt"
)

// Memory subsystem errors.
var (
	ErrAddressSpaceNotFound = errors.New("address space not found")
	ErrRegionNotFound       = errors.New("address not allocated")
	ErrRegionOverlap        = errors.New("region overlaps an existing region")
)

// AllocationError reports a failed allocation, typically a per-process
// memory limit violation.
type AllocationError struct {
	PID    int
	Size   int
	Reason string
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocation of %d bytes failed for pid %d: %s", e.Size, e.PID, e.Reason)
}

// DeallocationError reports a failed free, such as an unknown address.
type DeallocationError struct {
	PID     int
	Address int
	Err     error
}

func (e *DeallocationError) Error() string {
	return fmt.Sprintf("free of %#x failed for pid %d: %v", e.Address, e.PID, e.Err)
}

func (e *DeallocationError) Unwrap() error { return e.Err }

// OutOfMemoryError reports physical frame exhaustion.
type OutOfMemoryError struct {
	Requested int
	Available int
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("out of memory: requested %d bytes, %d available", e.Requested, e.Available)
}

// ProtectionError reports a failed protection change.
type ProtectionError struct {
	PID     int
	Address int
	Err     error
}

func (e *ProtectionError) Error() string {
	return fmt.Sprintf("protect of %#x failed for pid %d: %v", e.Address, e.PID, e.Err)
}

func (e *ProtectionError) Unwrap() error { return e.Err }

// IsOutOfMemory reports whether err is an OutOfMemoryError.
func IsOutOfMemory(err error) bool {
	var oom *OutOfMemoryError
	return errors.As(err, &oom)
}
