// Package api
// Author: momentics <momentics@gmail.com>
//
// Immutable creation-time parameters of pooled resources.

package api

// CmdParams configure a command buffer at creation.
type CmdParams struct {
	Type CmdType
	// EnableAddrPatching allows nested address entries.
	EnableAddrPatching bool
	// MaxNumNestedAddrs bounds the nested address list.
	MaxNumNestedAddrs uint32
	// MustInlineIndirectBuffers forbids indirect references; exclusive with patching.
	MustInlineIndirectBuffers bool
}

// Validate checks flag combinations that a command buffer cannot honour.
func (p CmdParams) Validate() error {
	if p.EnableAddrPatching && p.MustInlineIndirectBuffers {
		return ErrInvalidArgument.WithContext("reason", "address patching with inline indirect buffers")
	}
	if p.EnableAddrPatching && p.MaxNumNestedAddrs == 0 {
		return ErrInvalidArgument.WithContext("reason", "address patching with zero nested addresses")
	}
	return nil
}

// PacketParams configure a packet at creation.
type PacketParams struct {
	MaxNumCmdBuffers   uint32
	MaxNumIOConfigs    uint32
	MaxNumPatches      uint32
	EnableAddrPatching bool
}

// Validate checks the maxima are usable.
func (p PacketParams) Validate() error {
	if p.MaxNumCmdBuffers == 0 {
		return ErrInvalidArgument.WithContext("reason", "packet without command buffers")
	}
	if p.EnableAddrPatching && p.MaxNumPatches == 0 {
		return ErrInvalidArgument.WithContext("reason", "address patching with zero patches")
	}
	return nil
}

// ResourceParams configure a resource pool.
type ResourceParams struct {
	// ResourceSize is the usable byte size of every resource.
	ResourceSize uint32
	// PoolSize is ResourceSize times the number of resources.
	PoolSize uint32
	// Alignment of every resource within the allocation, power of two.
	Alignment uint32
	Usage     UsageFlags
	MemFlags  MemFlags
	// DeviceIndices lists the devices the allocation is mapped to.
	DeviceIndices []int32
	CmdParams     CmdParams
	PacketParams  PacketParams
}

// Validate checks everything that does not depend on the resource kind's layout.
func (p ResourceParams) Validate() error {
	switch {
	case p.ResourceSize == 0:
		return ErrInvalidArgument.WithContext("reason", "zero resource size")
	case p.PoolSize < p.ResourceSize:
		return ErrInvalidArgument.WithContext("reason", "pool smaller than one resource")
	case p.Alignment != 0 && p.Alignment&(p.Alignment-1) != 0:
		return ErrInvalidArgument.WithContext("alignment", p.Alignment)
	case !p.Usage.IsCmdBuffer() && !p.Usage.IsPacket():
		return ErrInvalidArgument.WithContext("usage", uint32(p.Usage))
	}
	if p.Usage.IsCmdBuffer() {
		if p.ResourceSize%DwordSize != 0 {
			return ErrInvalidArgument.WithContext("reason", "command buffer size not dword aligned")
		}
		return p.CmdParams.Validate()
	}
	return p.PacketParams.Validate()
}

// EffectiveAlignment returns Alignment, defaulting to one dword.
func (p ResourceParams) EffectiveAlignment() uint32 {
	if p.Alignment < DwordSize {
		return DwordSize
	}
	return p.Alignment
}

// NumResources returns the number of resources the pool holds.
func (p ResourceParams) NumResources() uint32 {
	if p.ResourceSize == 0 {
		return 0
	}
	return p.PoolSize / p.ResourceSize
}
