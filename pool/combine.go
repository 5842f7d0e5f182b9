// File: pool/combine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"slices"

	"github.com/momentics/hioload-cmdbuf/api"
)

// CombinePolicy decides which resource configurations may share one physical
// allocation, and how regions inside it are aligned.
type CombinePolicy struct {
	// ClassMask selects the memory flags that must agree across combined
	// configurations.
	ClassMask api.MemFlags
	// FirmwareFlag marks configurations shared with firmware. Their slots are
	// aligned to at least FirmwareAlignment.
	FirmwareFlag      api.MemFlags
	FirmwareAlignment uint32
}

// DefaultCombinePolicy separates shared, firmware-shared and protected
// memory, and page-aligns firmware-shared slots.
func DefaultCombinePolicy() CombinePolicy {
	return CombinePolicy{
		ClassMask:         api.MemFlagSharedAccess | api.MemFlagHWSharedAccess | api.MemFlagProtected,
		FirmwareFlag:      api.MemFlagHWSharedAccess,
		FirmwareAlignment: 4096,
	}
}

// Alignment returns the slot alignment of params under the policy.
func (cp CombinePolicy) Alignment(params api.ResourceParams) uint32 {
	align := params.EffectiveAlignment()
	if cp.FirmwareFlag != 0 && params.MemFlags.Has(cp.FirmwareFlag) {
		align = max(align, cp.FirmwareAlignment)
	}
	return align
}

// Compatible reports whether a and b may share an allocation.
func (cp CombinePolicy) Compatible(a, b api.ResourceParams) error {
	if a.Usage.IsPacket() != b.Usage.IsPacket() {
		return api.ErrInvalidArgument.WithContext("reason", "packet and command buffer pools cannot share memory")
	}
	if a.MemFlags&cp.ClassMask != b.MemFlags&cp.ClassMask {
		return api.ErrInvalidArgument.
			WithContext("reason", "shared access class mismatch").
			WithContext("a", a.MemFlags.Names()).
			WithContext("b", b.MemFlags.Names())
	}
	return nil
}

// Check validates every configuration and their pairwise compatibility.
func (cp CombinePolicy) Check(params []api.ResourceParams) error {
	if len(params) == 0 {
		return api.ErrInvalidArgument.WithContext("reason", "nothing to combine")
	}
	for i, p := range params {
		if err := p.Validate(); err != nil {
			return err
		}
		if err := cp.Compatible(params[0], p); err != nil {
			return err.(*api.Error).WithContext("index", i)
		}
	}
	return nil
}

// merged returns the flags and devices of the shared allocation.
func (cp CombinePolicy) merged(params []api.ResourceParams) (api.MemFlags, []int32) {
	var flags api.MemFlags
	var devices []int32
	for _, p := range params {
		flags |= p.MemFlags
		for _, d := range p.DeviceIndices {
			if !slices.Contains(devices, d) {
				devices = append(devices, d)
			}
		}
	}
	return flags, devices
}
