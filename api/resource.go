// Package api
// Author: momentics <momentics@gmail.com>
//
// Resource is the capability shared by every pooled object.

package api

// Resource is a pooled region of a hardware-visible allocation.
type Resource interface {
	// MemHandle of the allocation backing the resource.
	MemHandle() MemHandle
	// Offset of the resource within the allocation, in bytes.
	Offset() uint32
	// MaxLength is the usable byte capacity.
	MaxLength() uint32
	// Length is the number of committed bytes.
	Length() uint32
	RequestID() RequestID
	SetRequestID(id RequestID)
	Usage() UsageFlags
	// Reset clears the resource for reuse. Contents become logically invalid.
	Reset()
}
