// File: core/packet/layout.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Packet layout: header, then command buffer descriptors, then IO configs,
// then patches. Every offset is a pure function of the packet maxima, so pools
// can size packet slots before any memory exists. Offsets other than the total
// size are relative to the payload that follows the header.

package packet

import "github.com/momentics/hioload-cmdbuf/api"

// CalculateCmdBufferOffset returns the payload offset of the descriptor array.
func CalculateCmdBufferOffset(api.PacketParams) uint32 {
	return 0
}

// CalculateIOConfigOffset returns the payload offset of the IO config array.
func CalculateIOConfigOffset(p api.PacketParams) uint32 {
	return CalculateCmdBufferOffset(p) + p.MaxNumCmdBuffers*api.CmdBufDescSize
}

// CalculatePatchOffset returns the payload offset of the patch array.
func CalculatePatchOffset(p api.PacketParams) uint32 {
	return CalculateIOConfigOffset(p) + p.MaxNumIOConfigs*api.IOConfigSize
}

// CalculatePacketSize returns the byte size of a packet, header included.
func CalculatePacketSize(p api.PacketParams) uint32 {
	return api.PacketHeaderSize + CalculatePatchOffset(p) + p.MaxNumPatches*api.PatchDescSize
}

// Layout caches the offsets of one packet shape. Offsets are absolute within
// the packet.
type Layout struct {
	CmdBufOffset   uint32
	IOConfigOffset uint32
	PatchOffset    uint32
	Size           uint32
}

// NewLayout computes the absolute offsets for p.
func NewLayout(p api.PacketParams) Layout {
	return Layout{
		CmdBufOffset:   api.PacketHeaderSize + CalculateCmdBufferOffset(p),
		IOConfigOffset: api.PacketHeaderSize + CalculateIOConfigOffset(p),
		PatchOffset:    api.PacketHeaderSize + CalculatePatchOffset(p),
		Size:           CalculatePacketSize(p),
	}
}
