// Package memory provides api.MemoryProvider implementations: a Go heap
// provider for tests and tools, and an mmap provider on Linux.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package memory

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/momentics/hioload-cmdbuf/api"
)

// nextHandle numbers allocations across every provider in the process.
var nextHandle atomic.Int32

func newHandle() api.MemHandle {
	return api.MemHandle(nextHandle.Inc())
}

// registry tracks live allocations of one provider by handle.
type registry[T any] struct {
	mu   sync.Mutex
	live map[api.MemHandle]T
}

func (r *registry[T]) put(h api.MemHandle, v T) {
	r.mu.Lock()
	if r.live == nil {
		r.live = make(map[api.MemHandle]T)
	}
	r.live[h] = v
	r.mu.Unlock()
}

func (r *registry[T]) take(h api.MemHandle) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.live[h]
	if !ok {
		var zero T
		return zero, api.ErrInvalidArgument.WithContext("handle", int32(h)).WithContext("reason", "unknown or released allocation")
	}
	delete(r.live, h)
	return v, nil
}

// Live returns the number of allocations not yet released.
func (r *registry[T]) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}
