package main

import (
	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/core/packet"
	"github.com/momentics/hioload-cmdbuf/pool"
)

// LayoutCmd prints packet offsets and the pool geometry for a packet shape.
type LayoutCmd struct {
	CmdBuffers uint32 `name:"cmd-buffers" default:"4" help:"Maximum command buffer descriptors"`
	IOConfigs  uint32 `name:"io-configs" default:"8" help:"Maximum IO configs"`
	Patches    uint32 `name:"patches" default:"16" help:"Maximum patches"`
	Count      uint32 `name:"count" default:"8" help:"Packets per pool"`
	Alignment  uint32 `name:"alignment" default:"64" help:"Slot alignment"`
}

func (c *LayoutCmd) Run() error {
	pp := api.PacketParams{
		MaxNumCmdBuffers:   c.CmdBuffers,
		MaxNumIOConfigs:    c.IOConfigs,
		MaxNumPatches:      c.Patches,
		EnableAddrPatching: c.Patches > 0,
	}
	if err := pp.Validate(); err != nil {
		return err
	}
	size := packet.CalculatePacketSize(pp)
	ok("header            %6d bytes", api.PacketHeaderSize)
	ok("cmd buffers  @%6d  %3d x %d", packet.CalculateCmdBufferOffset(pp), pp.MaxNumCmdBuffers, api.CmdBufDescSize)
	ok("io configs   @%6d  %3d x %d", packet.CalculateIOConfigOffset(pp), pp.MaxNumIOConfigs, api.IOConfigSize)
	ok("patches      @%6d  %3d x %d", packet.CalculatePatchOffset(pp), pp.MaxNumPatches, api.PatchDescSize)
	ok("packet size       %6d bytes", size)

	s, err := pool.ComputeSizing(api.ResourceParams{
		ResourceSize: size,
		PoolSize:     size * max(c.Count, 1),
		Alignment:    c.Alignment,
		Usage:        api.UsagePacket,
		PacketParams: pp,
	}, pool.DefaultCombinePolicy())
	if err != nil {
		return err
	}
	ok("pool: %d slots of %d bytes (align %d), %d bytes total", s.Count, s.PaddedSize, s.Alignment, s.RegionSize)
	return nil
}
