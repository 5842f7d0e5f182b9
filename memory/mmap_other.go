//go:build !linux
// +build !linux

// File: memory/mmap_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package memory

import "github.com/momentics/hioload-cmdbuf/api"

// MmapProvider is unavailable on this platform; every Alloc fails.
type MmapProvider struct {
	HugePages bool
}

// NewMmapProvider returns the unsupported provider.
func NewMmapProvider(huge bool) *MmapProvider {
	return &MmapProvider{HugePages: huge}
}

func (*MmapProvider) Alloc(uint64, uint32, api.MemFlags, []int32) (api.BufferInfo, error) {
	return api.BufferInfo{}, api.ErrUnsupported.WithContext("reason", "mmap provider requires linux")
}

func (*MmapProvider) Release(api.BufferInfo) error {
	return api.ErrUnsupported.WithContext("reason", "mmap provider requires linux")
}

func platformDefault() api.MemoryProvider {
	return NewHeapProvider()
}

var _ api.MemoryProvider = (*MmapProvider)(nil)
