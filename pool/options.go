// File: pool/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"go.uber.org/zap"

	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/log"
	"github.com/momentics/hioload-cmdbuf/memory"
)

// ProbeRegistry receives named state probes, e.g. control.DebugProbes.
type ProbeRegistry interface {
	RegisterProbe(name string, fn func() any)
}

type options struct {
	logger   *zap.Logger
	metrics  *AllocatorMetrics
	provider api.MemoryProvider
	parent   *Parent
	policy   CombinePolicy
	probes   ProbeRegistry
}

// Option configures a Manager or Parent.
type Option func(*options)

// WithLogger sets the logger. The process logger is used otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics shares an allocator metrics context.
func WithMetrics(m *AllocatorMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithMemoryProvider sets the source of physical allocations.
func WithMemoryProvider(p api.MemoryProvider) Option {
	return func(o *options) { o.provider = p }
}

// WithParent places the manager in a region of a shared allocation.
func WithParent(p *Parent) Option {
	return func(o *options) { o.parent = p }
}

// WithCombinePolicy overrides DefaultCombinePolicy.
func WithCombinePolicy(cp CombinePolicy) Option {
	return func(o *options) { o.policy = cp }
}

// WithProbes registers a state probe for each manager.
func WithProbes(r ProbeRegistry) Option {
	return func(o *options) { o.probes = r }
}

func buildOptions(opts []Option) options {
	o := options{policy: DefaultCombinePolicy()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = log.L()
	}
	if o.metrics == nil {
		o.metrics = DefaultAllocatorMetrics()
	}
	if o.provider == nil {
		o.provider = memory.Default()
	}
	return o
}
