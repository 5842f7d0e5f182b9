// File: pool/manager.go
// Package pool implements the command buffer manager: a fixed arena of
// command buffers or packets carved from one hardware-visible allocation.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Every resource is built once at New and lives until Uninitialize. Between
// the two it moves between the free list and the busy list. Acquisition never
// blocks; an empty free list fails with OutOfMemory.

package pool

import (
	"sync"

	"github.com/eapache/queue"
	"go.uber.org/zap"
	"golang.org/x/sys/cpu"
	"gvisor.dev/gvisor/pkg/bitmap"
	"gvisor.dev/gvisor/pkg/cleanup"

	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/core/cmdbuffer"
	"github.com/momentics/hioload-cmdbuf/core/packet"
)

type slot struct {
	res api.Resource
	gen uint32
	// busyPos is the index in Manager.busy, or -1 while free.
	busyPos int32
}

// Manager hands out pooled command buffers or packets.
type Manager struct {
	name     string
	params   api.ResourceParams
	sizing   Sizing
	logger   *zap.Logger
	metrics  *AllocatorMetrics
	provider api.MemoryProvider
	parent   *Parent
	info     api.BufferInfo
	base     uint32

	_ cpu.CacheLinePad

	mu          sync.Mutex
	initialized bool
	slots       []slot
	free        *queue.Queue
	busy        []uint32
	// tagged holds the slots acquired through GetBufferForRequest.
	tagged bitmap.Bitmap
}

// Stats is a snapshot of a manager. Free, Busy and Held add up to Total.
type Stats struct {
	Name  string
	Total int
	Free  int
	// Busy counts resources tagged with a request id. RecycleAllRequests
	// empties it.
	Busy int
	// Held counts resources taken with GetBuffer. Only Recycle returns them.
	Held       int
	PaddedSize uint32
	Alignment  uint32
	// RegionBytes is the manager's share of the allocation.
	RegionBytes uint64
	Handle      api.MemHandle
	BaseOffset  uint32
	Shared      bool
}

// New builds a manager and all of its resources. On error nothing is left
// allocated.
func New(name string, params api.ResourceParams, opts ...Option) (*Manager, error) {
	o := buildOptions(opts)
	m := &Manager{
		name:     name,
		params:   params,
		logger:   o.logger.With(zap.String("manager", name)),
		metrics:  o.metrics,
		provider: o.provider,
		parent:   o.parent,
	}
	if err := m.initialize(o.policy); err != nil {
		return nil, err
	}
	if o.probes != nil {
		o.probes.RegisterProbe("pool/"+name, func() any { return m.Stats() })
	}
	return m, nil
}

func (m *Manager) initialize(policy CombinePolicy) error {
	s, err := ComputeSizing(m.params, policy)
	if err != nil {
		return err
	}
	m.sizing = s

	var cu cleanup.Cleanup
	defer cu.Clean()

	if m.parent != nil {
		off, err := m.parent.carve(m.params, s.RegionSize, s.Alignment)
		if err != nil {
			return err
		}
		m.info, m.base = m.parent.BufferInfo(), off
		cu.Add(func() { _ = m.parent.Release() })
	} else {
		info, err := m.provider.Alloc(s.RegionSize, s.Alignment, m.params.MemFlags, m.params.DeviceIndices)
		if err != nil {
			m.logger.Error("allocation failed", zap.Uint64("bytes", s.RegionSize), zap.Error(err))
			return err
		}
		if info.Size() < s.RegionSize {
			m.logger.Warn("allocation smaller than requested",
				zap.Uint64("bytes", info.Size()), zap.Uint64("requested", s.RegionSize))
		}
		m.info = info
		m.metrics.recordAlloc(info.Size())
		cu.Add(func() {
			m.metrics.recordRelease(info.Size())
			_ = m.provider.Release(info)
		})
	}

	m.slots = make([]slot, 0, s.Count)
	m.free = queue.New()
	m.tagged = bitmap.New(s.Count)
	cu.Add(func() {
		m.slots = nil
		m.free = nil
	})
	for i := uint32(0); i < s.Count; i++ {
		res, err := m.construct(m.base + i*s.PaddedSize)
		if err != nil {
			m.logger.Error("resource construction failed",
				zap.Uint32("index", i), zap.Uint32("count", s.Count), zap.Error(err))
			return err
		}
		m.slots = append(m.slots, slot{res: res, busyPos: -1})
		m.free.Add(i)
	}
	cu.Release()

	m.initialized = true
	m.metrics.managerUp(m.name, int(s.Count))
	m.logger.Debug("manager initialized",
		zap.Uint32("count", s.Count),
		zap.Uint32("padded", s.PaddedSize),
		zap.Int32("handle", int32(m.info.Handle)),
		zap.Uint32("base", m.base))
	return nil
}

func (m *Manager) construct(offset uint32) (api.Resource, error) {
	if m.params.Usage.IsPacket() {
		p, err := packet.Create(m.params.PacketParams, m.info, offset, m.params.ResourceSize)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	cb, err := cmdbuffer.Create(m.params.CmdParams, m.info, offset, m.params.ResourceSize)
	if err != nil {
		return nil, err
	}
	cb.OnOverrun(func(*cmdbuffer.CmdBuffer) { m.metrics.RecordOverrun() })
	return cb, nil
}

// Name returns the manager name.
func (m *Manager) Name() string { return m.name }

// Params returns the creation parameters.
func (m *Manager) Params() api.ResourceParams { return m.params }

// Sizing returns the slot geometry.
func (m *Manager) Sizing() Sizing { return m.sizing }

// GetBuffer acquires a reset resource with no request tag.
func (m *Manager) GetBuffer() (Ref, error) {
	return m.acquire(api.InvalidRequestID, false)
}

// GetBufferForRequest acquires a reset resource tagged with id.
func (m *Manager) GetBufferForRequest(id api.RequestID) (Ref, error) {
	if id == api.InvalidRequestID {
		return Ref{}, api.ErrInvalidArgument.WithContext("reason", "invalid request id")
	}
	return m.acquire(id, true)
}

func (m *Manager) acquire(id api.RequestID, tagged bool) (Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return Ref{}, api.ErrUninitialized.WithContext("manager", m.name)
	}
	if m.free.Length() == 0 {
		m.metrics.recordAcquire(m.name, false)
		m.logger.Warn("pool exhausted", zap.Int("busy", len(m.busy)), zap.Int("total", len(m.slots)))
		return Ref{}, api.ErrOutOfMemory.WithContext("manager", m.name)
	}
	idx := m.free.Remove().(uint32)
	s := &m.slots[idx]
	s.res.Reset()
	s.res.SetRequestID(id)
	if tagged {
		m.tagged.Add(idx)
	}
	s.busyPos = int32(len(m.busy))
	m.busy = append(m.busy, idx)
	m.metrics.recordAcquire(m.name, true)
	return Ref{m: m, index: idx, gen: s.gen}, nil
}

// Recycle returns a resource to the free list. The Ref and every copy of it
// become stale.
func (m *Manager) Recycle(ref Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return api.ErrUninitialized.WithContext("manager", m.name)
	}
	if _, err := m.lookupLocked(ref); err != nil {
		return err
	}
	m.releaseLocked(ref.index)
	m.metrics.recordRecycle(m.name, 1)
	return nil
}

// RecycleAll recycles every resource tagged with id and returns how many.
func (m *Manager) RecycleAll(id api.RequestID) int {
	return m.recycleTagged(func(rid api.RequestID) bool { return rid == id })
}

// RecycleAllRequests recycles every request-tagged resource.
func (m *Manager) RecycleAllRequests() int {
	return m.recycleTagged(func(api.RequestID) bool { return true })
}

func (m *Manager) recycleTagged(match func(api.RequestID) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return 0
	}
	n := 0
	for _, idx := range m.tagged.ToSlice() {
		if match(m.slots[idx].res.RequestID()) {
			m.releaseLocked(idx)
			n++
		}
	}
	if n > 0 {
		m.metrics.recordRecycle(m.name, n)
	}
	return n
}

// CheckBufferWithRequest finds the resource tagged with id without removing
// it. Callers keep at most one resource per request; with several the one in
// the lowest slot is returned.
func (m *Manager) CheckBufferWithRequest(id api.RequestID) (Ref, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized || id == api.InvalidRequestID {
		return Ref{}, false
	}
	for idx, err := m.tagged.FirstOne(0); err == nil; idx, err = m.tagged.FirstOne(idx + 1) {
		s := &m.slots[idx]
		if s.res.RequestID() == id {
			return Ref{m: m, index: idx, gen: s.gen}, true
		}
	}
	return Ref{}, false
}

func (m *Manager) releaseLocked(idx uint32) {
	s := &m.slots[idx]
	pos := s.busyPos
	last := len(m.busy) - 1
	moved := m.busy[last]
	m.busy[pos] = moved
	m.slots[moved].busyPos = pos
	m.busy = m.busy[:last]

	s.res.Reset()
	s.busyPos = -1
	m.tagged.Remove(idx)
	s.gen++
	m.free.Add(idx)
}

func (m *Manager) lookupLocked(ref Ref) (api.Resource, error) {
	if ref.m != m || int(ref.index) >= len(m.slots) {
		return nil, api.ErrInvalidArgument.WithContext("manager", m.name)
	}
	s := &m.slots[ref.index]
	if s.gen != ref.gen || s.busyPos < 0 {
		return nil, api.ErrStaleRef.WithContext("index", ref.index).WithContext("generation", ref.gen)
	}
	return s.res, nil
}

// Stats returns a snapshot of the pool.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Stats{
		Name:        m.name,
		Total:       len(m.slots),
		Busy:        int(m.tagged.GetNumOnes()),
		PaddedSize:  m.sizing.PaddedSize,
		Alignment:   m.sizing.Alignment,
		RegionBytes: m.sizing.RegionSize,
		Handle:      m.info.Handle,
		BaseOffset:  m.base,
		Shared:      m.parent != nil,
	}
	if m.free != nil {
		st.Free = m.free.Length()
	}
	st.Held = len(m.busy) - st.Busy
	return st
}

// Uninitialize drops every resource and releases the allocation, or this
// manager's reference to its parent. Outstanding Refs become stale.
func (m *Manager) Uninitialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return api.ErrUninitialized.WithContext("manager", m.name)
	}
	if len(m.busy) > 0 {
		m.logger.Warn("uninitializing with resources in use", zap.Int("busy", len(m.busy)))
	}
	for i := range m.slots {
		m.slots[i].res.Reset()
	}
	m.slots = nil
	m.busy = nil
	m.free = nil
	m.tagged = bitmap.Bitmap{}
	m.initialized = false
	m.metrics.managerDown(m.name)

	if m.parent != nil {
		return m.parent.Release()
	}
	m.metrics.recordRelease(m.info.Size())
	if err := m.provider.Release(m.info); err != nil {
		m.logger.Error("release failed", zap.Error(err))
		return err
	}
	return nil
}
