package main

import (
	"errors"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/control"
	"github.com/momentics/hioload-cmdbuf/memory"
	"github.com/momentics/hioload-cmdbuf/pool"
)

// SimulateCmd builds a layout, drains and refills every pool, and dumps state.
type SimulateCmd struct {
	Path    string `arg:"" type:"existingfile" help:"Layout YAML file"`
	Mmap    bool   `help:"Back pools with anonymous mappings instead of the Go heap"`
	Metrics bool   `help:"Print allocator metrics after the run"`
}

func (c *SimulateCmd) Run() (err error) {
	layout, err := control.LoadLayout(c.Path)
	if err != nil {
		return err
	}
	var provider api.MemoryProvider = memory.NewHeapProvider()
	if c.Mmap {
		provider = memory.NewMmapProvider(true)
	}
	am := pool.NewAllocatorMetrics()
	probes := control.NewDebugProbes()
	control.RegisterPlatformProbes(probes)

	pools, err := layout.Build(pool.WithMemoryProvider(provider), pool.WithMetrics(am), pool.WithProbes(probes))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, pools.Close()) }()

	for _, name := range pools.Names() {
		m, _ := pools.Get(name)
		n, err := drain(m)
		if err != nil {
			return err
		}
		ok("%-16s acquired %d of %d, recycled %d", name, n, m.Stats().Total, m.RecycleAllRequests())
	}

	dump, err := probes.DumpYAML()
	if err != nil {
		return err
	}
	ok(string(dump))

	if c.Metrics {
		mr := control.NewMetricsRegistry()
		if err := mr.RegisterAllocator(am); err != nil {
			return err
		}
		snap, err := mr.GetSnapshot()
		if err != nil {
			return err
		}
		text, err := yaml.Marshal(snap)
		if err != nil {
			return err
		}
		ok(string(text))
	}
	return nil
}

// drain acquires until the pool is exhausted, tagging each resource with its
// own request id.
func drain(m *pool.Manager) (int, error) {
	for n := 0; ; n++ {
		_, err := m.GetBufferForRequest(api.RequestID(n))
		if errors.Is(err, api.ErrOutOfMemory) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
	}
}
