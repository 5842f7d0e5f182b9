// File: memory/heap.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package memory

import (
	"unsafe"

	"github.com/momentics/hioload-cmdbuf/api"
)

// HeapProvider serves allocations from the Go heap. Device addresses are the
// CPU addresses, which is enough for tools and tests that never reach a device.
type HeapProvider struct {
	registry[struct{}]
}

// NewHeapProvider returns an empty heap provider.
func NewHeapProvider() *HeapProvider {
	return &HeapProvider{}
}

// Alloc returns size zeroed bytes whose first byte is aligned to align.
func (hp *HeapProvider) Alloc(size uint64, align uint32, flags api.MemFlags, _ []int32) (api.BufferInfo, error) {
	if size == 0 || align == 0 || align&(align-1) != 0 {
		return api.BufferInfo{}, api.ErrInvalidArgument.WithContext("size", size).WithContext("align", align)
	}
	raw := make([]byte, size+uint64(align)-1)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(raw)))
	skip := (uintptr(align) - base%uintptr(align)) % uintptr(align)
	data := raw[skip : skip+uintptr(size) : skip+uintptr(size)]

	h := newHandle()
	hp.put(h, struct{}{})
	return api.BufferInfo{
		Handle:     h,
		Data:       data,
		Flags:      flags,
		DeviceAddr: uint64(base + skip),
	}, nil
}

// Release forgets the allocation; the garbage collector reclaims it.
func (hp *HeapProvider) Release(info api.BufferInfo) error {
	_, err := hp.take(info.Handle)
	return err
}

var _ api.MemoryProvider = (*HeapProvider)(nil)
