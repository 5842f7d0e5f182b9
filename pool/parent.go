// File: pool/parent.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Parent owns one physical allocation carved into regions for several
// managers. Every holder of the allocation owns one reference: the creator and
// each child manager. The allocation is released when the last one drops.

package pool

import (
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/momentics/hioload-cmdbuf/api"
)

// Parent is a shared, reference-counted physical allocation.
type Parent struct {
	name     string
	class    api.ResourceParams
	policy   CombinePolicy
	info     api.BufferInfo
	provider api.MemoryProvider
	metrics  *AllocatorMetrics
	logger   *zap.Logger

	refs atomic.Int32

	mu   sync.Mutex
	next uint64
}

// CreateParent allocates one region large enough for every configuration in
// params, laid out in order. The caller holds one reference and must Release it.
func CreateParent(name string, params []api.ResourceParams, opts ...Option) (*Parent, error) {
	o := buildOptions(opts)
	if err := o.policy.Check(params); err != nil {
		return nil, err
	}
	var total uint64
	maxAlign := uint32(api.DwordSize)
	for _, p := range params {
		s, err := ComputeSizing(p, o.policy)
		if err != nil {
			return nil, err
		}
		total = alignUp(total, uint64(s.Alignment)) + s.RegionSize
		maxAlign = max(maxAlign, s.Alignment)
	}
	flags, devices := o.policy.merged(params)
	info, err := o.provider.Alloc(total, maxAlign, flags, devices)
	if err != nil {
		o.logger.Error("parent allocation failed", zap.String("parent", name), zap.Uint64("bytes", total), zap.Error(err))
		return nil, err
	}
	o.metrics.recordAlloc(info.Size())

	pa := &Parent{
		name:     name,
		class:    params[0],
		policy:   o.policy,
		info:     info,
		provider: o.provider,
		metrics:  o.metrics,
		logger:   o.logger,
	}
	pa.refs.Store(1)
	o.logger.Debug("parent allocated",
		zap.String("parent", name),
		zap.Int32("handle", int32(info.Handle)),
		zap.Uint64("bytes", total),
		zap.Int("configs", len(params)))
	return pa, nil
}

// Name returns the parent name.
func (pa *Parent) Name() string { return pa.name }

// BufferInfo returns the shared allocation.
func (pa *Parent) BufferInfo() api.BufferInfo { return pa.info }

// Refs returns the current reference count.
func (pa *Parent) Refs() int32 { return pa.refs.Load() }

// carve reserves size bytes aligned to align for a child of class params. The
// child takes a reference.
func (pa *Parent) carve(params api.ResourceParams, size uint64, align uint32) (uint32, error) {
	if err := pa.policy.Compatible(pa.class, params); err != nil {
		return 0, err
	}
	pa.mu.Lock()
	defer pa.mu.Unlock()
	if pa.refs.Load() <= 0 {
		return 0, api.ErrInvalidState.WithContext("parent", pa.name)
	}
	off := alignUp(pa.next, uint64(align))
	if off+size > pa.info.Size() {
		return 0, api.ErrOutOfMemory.
			WithContext("parent", pa.name).
			WithContext("requested", size).
			WithContext("free", pa.info.Size()-min(off, pa.info.Size()))
	}
	pa.next = off + size
	pa.refs.Inc()
	return uint32(off), nil
}

// Release drops one reference and frees the allocation when it was the last.
func (pa *Parent) Release() error {
	switch n := pa.refs.Dec(); {
	case n > 0:
		return nil
	case n < 0:
		return api.ErrInvalidState.WithContext("parent", pa.name).WithContext("reason", "released twice")
	}
	pa.metrics.recordRelease(pa.info.Size())
	pa.logger.Debug("parent released", zap.String("parent", pa.name))
	return pa.provider.Release(pa.info)
}
