// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake collaborators for testing: a memory provider with fault injection and
// a submitter that decodes and records packets.

package fake

import (
	"sync"

	"github.com/momentics/hioload-cmdbuf/api"
)

// Alloc records one Alloc call.
type Alloc struct {
	Size    uint64
	Align   uint32
	Flags   api.MemFlags
	Devices []int32
	Handle  api.MemHandle
}

// Provider is a heap-backed api.MemoryProvider with controllable failures.
type Provider struct {
	mu       sync.Mutex
	next     api.MemHandle
	live     map[api.MemHandle]bool
	allocs   []Alloc
	released []api.MemHandle

	allocErr   error
	releaseErr error
	shortBy    uint64
}

// NewProvider creates a new fake provider.
func NewProvider() *Provider {
	return &Provider{live: make(map[api.MemHandle]bool)}
}

// SetAllocError makes every following Alloc fail with err. Nil restores.
func (p *Provider) SetAllocError(err error) {
	p.mu.Lock()
	p.allocErr = err
	p.mu.Unlock()
}

// SetReleaseError makes every following Release fail with err after
// forgetting the allocation.
func (p *Provider) SetReleaseError(err error) {
	p.mu.Lock()
	p.releaseErr = err
	p.mu.Unlock()
}

// ShortBy makes allocations n bytes smaller than requested.
func (p *Provider) ShortBy(n uint64) {
	p.mu.Lock()
	p.shortBy = n
	p.mu.Unlock()
}

// Alloc implements api.MemoryProvider.Alloc.
func (p *Provider) Alloc(size uint64, align uint32, flags api.MemFlags, devices []int32) (api.BufferInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.allocErr != nil {
		return api.BufferInfo{}, p.allocErr
	}
	p.next++
	h := p.next
	p.live[h] = true
	p.allocs = append(p.allocs, Alloc{Size: size, Align: align, Flags: flags, Devices: append([]int32(nil), devices...), Handle: h})
	return api.BufferInfo{
		Handle: h,
		Data:   make([]byte, size-min(size, p.shortBy)),
		Flags:  flags,
	}, nil
}

// Release implements api.MemoryProvider.Release.
func (p *Provider) Release(info api.BufferInfo) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.live[info.Handle] {
		return api.ErrInvalidArgument.WithContext("handle", int32(info.Handle))
	}
	delete(p.live, info.Handle)
	p.released = append(p.released, info.Handle)
	return p.releaseErr
}

// Allocs returns every successful Alloc in order.
func (p *Provider) Allocs() []Alloc {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Alloc(nil), p.allocs...)
}

// Released returns released handles in order.
func (p *Provider) Released() []api.MemHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]api.MemHandle(nil), p.released...)
}

// Live returns the number of allocations not yet released.
func (p *Provider) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

var _ api.MemoryProvider = (*Provider)(nil)
