// File: pool/multi.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"strings"

	"go.uber.org/multierr"
	"gvisor.dev/gvisor/pkg/cleanup"

	"github.com/momentics/hioload-cmdbuf/api"
)

// CreateMultiManager builds one manager per (names[i], params[i]) inside a
// single shared allocation. Either every manager is built or none is, and the
// allocation is freed once the last returned manager is uninitialized.
func CreateMultiManager(names []string, params []api.ResourceParams, opts ...Option) ([]*Manager, error) {
	if len(names) != len(params) {
		return nil, api.ErrInvalidArgument.
			WithContext("names", len(names)).
			WithContext("params", len(params))
	}
	parent, err := CreateParent(strings.Join(names, "+"), params, opts...)
	if err != nil {
		return nil, err
	}
	cu := cleanup.Make(func() { _ = parent.Release() })
	defer cu.Clean()

	childOpts := append(opts[:len(opts):len(opts)], WithParent(parent))
	managers := make([]*Manager, 0, len(names))
	for i, name := range names {
		m, err := New(name, params[i], childOpts...)
		if err != nil {
			return nil, err
		}
		managers = append(managers, m)
		cu.Add(func() { _ = m.Uninitialize() })
	}
	cu.Release()

	// The children now own the allocation.
	if err := parent.Release(); err != nil {
		return nil, multierr.Append(err, UninitializeAll(managers))
	}
	return managers, nil
}

// UninitializeAll uninitializes every manager and combines the errors.
func UninitializeAll(managers []*Manager) error {
	var err error
	for _, m := range managers {
		if m == nil {
			continue
		}
		err = multierr.Append(err, m.Uninitialize())
	}
	return err
}
