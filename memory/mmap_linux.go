//go:build linux
// +build linux

// File: memory/mmap_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Anonymous mappings stand in for driver allocations. Shared flags map
// MAP_SHARED so a forked helper sees the same pages; large requests try 2 MiB
// hugepages first and fall back to regular pages.

package memory

import (
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/log"
)

const hugePageSize = 2 << 20

// MmapProvider maps anonymous memory per allocation.
type MmapProvider struct {
	registry[[]byte]
	// HugePages enables the MAP_HUGETLB attempt for requests of at least
	// one hugepage.
	HugePages bool
}

// NewMmapProvider returns a provider that tries hugepages when huge is set.
func NewMmapProvider(huge bool) *MmapProvider {
	return &MmapProvider{HugePages: huge}
}

// Alloc maps at least size bytes. Mappings are page aligned, so any align up
// to the page size is honoured.
func (mp *MmapProvider) Alloc(size uint64, align uint32, flags api.MemFlags, _ []int32) (api.BufferInfo, error) {
	page := uint64(unix.Getpagesize())
	if size == 0 || align == 0 || align&(align-1) != 0 || uint64(align) > page {
		return api.BufferInfo{}, api.ErrInvalidArgument.WithContext("size", size).WithContext("align", align)
	}
	mapFlags := unix.MAP_ANONYMOUS | unix.MAP_PRIVATE
	if flags.Has(api.MemFlagSharedAccess) || flags.Has(api.MemFlagHWSharedAccess) {
		mapFlags = unix.MAP_ANONYMOUS | unix.MAP_SHARED
	}

	var mapping []byte
	var err error
	if mp.HugePages && size >= hugePageSize {
		length := (size + hugePageSize - 1) &^ (hugePageSize - 1)
		mapping, err = unix.Mmap(-1, 0, int(length), unix.PROT_READ|unix.PROT_WRITE, mapFlags|unix.MAP_HUGETLB)
		if err != nil {
			log.L().Debug("hugepage mapping unavailable", zap.Uint64("bytes", length), zap.Error(err))
			mapping = nil
		}
	}
	if mapping == nil {
		length := (size + page - 1) &^ (page - 1)
		mapping, err = unix.Mmap(-1, 0, int(length), unix.PROT_READ|unix.PROT_WRITE, mapFlags)
		if err != nil {
			return api.BufferInfo{}, api.Errorf(api.ErrCodeOutOfMemory, "mmap %d bytes: %v", length, err)
		}
	}

	h := newHandle()
	mp.put(h, mapping)
	return api.BufferInfo{
		Handle: h,
		Data:   mapping[:size:size],
		Flags:  flags,
	}, nil
}

// Release unmaps the allocation.
func (mp *MmapProvider) Release(info api.BufferInfo) error {
	mapping, err := mp.take(info.Handle)
	if err != nil {
		return err
	}
	if err := unix.Munmap(mapping); err != nil {
		return api.Errorf(api.ErrCodeFailed, "munmap handle %d: %v", info.Handle, err)
	}
	return nil
}

func platformDefault() api.MemoryProvider {
	return NewMmapProvider(false)
}

var _ api.MemoryProvider = (*MmapProvider)(nil)
