// Package api
// Author: momentics <momentics@gmail.com>
//
// Hardware-visible memory contract. Allocation and release are delegated to a
// provider; this library only computes sizes, offsets and flags.

package api

import "context"

// BufferInfo describes one hardware-visible allocation mapped into the process.
type BufferInfo struct {
	// Handle names the allocation to the kernel driver.
	Handle MemHandle
	// Data is the CPU mapping. Its length is the allocation size.
	Data []byte
	// Flags the allocation was made with.
	Flags MemFlags
	// DeviceAddr is the device-side base address, when the provider knows it.
	DeviceAddr uint64
}

// Size returns the mapped length in bytes.
func (b BufferInfo) Size() uint64 { return uint64(len(b.Data)) }

// MemoryProvider allocates and releases hardware-visible memory.
type MemoryProvider interface {
	// Alloc returns a zeroed mapping of at least size bytes aligned to align.
	Alloc(size uint64, align uint32, flags MemFlags, devices []int32) (BufferInfo, error)
	// Release unmaps and frees an allocation returned by Alloc.
	Release(info BufferInfo) error
}

// Submitter hands a committed packet to the kernel driver.
type Submitter interface {
	Submit(ctx context.Context, info BufferInfo, offset, length uint32) error
}
