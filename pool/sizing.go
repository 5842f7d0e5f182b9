// File: pool/sizing.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/core/cmdbuffer"
	"github.com/momentics/hioload-cmdbuf/core/packet"
)

// Sizing is the slot geometry of a pool.
type Sizing struct {
	// Alignment of every slot.
	Alignment uint32
	// PaddedSize is the slot stride: resource, sentinel word and padding.
	PaddedSize uint32
	// Count of resources.
	Count uint32
	// RegionSize is Count*PaddedSize.
	RegionSize uint64
}

// ComputeSizing validates params and derives the slot geometry.
func ComputeSizing(params api.ResourceParams, policy CombinePolicy) (Sizing, error) {
	if err := params.Validate(); err != nil {
		return Sizing{}, err
	}
	if params.Usage.IsPacket() {
		if need := packet.CalculatePacketSize(params.PacketParams); params.ResourceSize < need {
			return Sizing{}, api.ErrInvalidArgument.
				WithContext("resourceSize", params.ResourceSize).
				WithContext("packetSize", need)
		}
	}
	align := policy.Alignment(params)
	if align&(align-1) != 0 {
		return Sizing{}, api.ErrInvalidArgument.WithContext("alignment", align)
	}
	padded := alignUp(uint64(params.ResourceSize)+cmdbuffer.SentinelSize, uint64(align))
	if padded > uint64(^uint32(0)) {
		return Sizing{}, api.ErrOutOfBounds.WithContext("paddedSize", padded)
	}
	count := params.NumResources()
	return Sizing{
		Alignment:  align,
		PaddedSize: uint32(padded),
		Count:      count,
		RegionSize: uint64(count) * padded,
	}, nil
}

func alignUp(v, a uint64) uint64 {
	return (v + a - 1) &^ (a - 1)
}
