// control/pools.go
// Author: momentics <momentics@gmail.com>
//
// Builds the managers a layout describes.

package control

import (
	"go.uber.org/multierr"
	"gvisor.dev/gvisor/pkg/cleanup"

	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/pool"
)

// Pools is the set of managers built from a layout.
type Pools struct {
	order    []string
	managers map[string]*pool.Manager
}

// Build creates every manager of the layout. Grouped managers share one
// allocation. On error every manager already built is torn down.
func (l *Layout) Build(opts ...pool.Option) (*Pools, error) {
	policy, err := l.Policy()
	if err != nil {
		return nil, err
	}
	opts = append(opts[:len(opts):len(opts)], pool.WithCombinePolicy(policy))

	ps := &Pools{managers: make(map[string]*pool.Manager, len(l.Managers))}
	cu := cleanup.Make(func() { _ = ps.Close() })
	defer cu.Clean()

	for _, group := range l.Groups() {
		names := make([]string, len(group))
		params := make([]api.ResourceParams, len(group))
		for i, mc := range group {
			names[i] = mc.Name
			if params[i], err = mc.Params(); err != nil {
				return nil, err
			}
		}
		var built []*pool.Manager
		if len(group) == 1 && group[0].Group == "" {
			m, err := pool.New(names[0], params[0], opts...)
			if err != nil {
				return nil, err
			}
			built = []*pool.Manager{m}
		} else if built, err = pool.CreateMultiManager(names, params, opts...); err != nil {
			return nil, err
		}
		for _, m := range built {
			ps.order = append(ps.order, m.Name())
			ps.managers[m.Name()] = m
		}
	}
	cu.Release()
	return ps, nil
}

// Get returns the named manager.
func (ps *Pools) Get(name string) (*pool.Manager, bool) {
	m, ok := ps.managers[name]
	return m, ok
}

// Names lists managers in build order.
func (ps *Pools) Names() []string {
	return append([]string(nil), ps.order...)
}

// Close uninitializes every manager in reverse build order.
func (ps *Pools) Close() error {
	var err error
	for i := len(ps.order) - 1; i >= 0; i-- {
		name := ps.order[i]
		err = multierr.Append(err, ps.managers[name].Uninitialize())
		delete(ps.managers, name)
	}
	ps.order = nil
	return err
}
