package main

import (
	"context"

	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/core/cmdbuffer"
	"github.com/momentics/hioload-cmdbuf/core/packet"
	"github.com/momentics/hioload-cmdbuf/memory"
	"github.com/momentics/hioload-cmdbuf/pool"
)

// ComposeCmd builds a packet referencing a chain of command buffers whose
// last link points back at the first, commits it and prints what a driver
// would decode.
type ComposeCmd struct {
	Depth uint32 `default:"3" help:"Command buffers in the nesting chain"`
}

func (c *ComposeCmd) Run() error {
	depth := max(c.Depth, 1)
	provider := memory.NewHeapProvider()
	cmds, err := pool.New("compose-cmd", api.ResourceParams{
		ResourceSize: 256,
		PoolSize:     256 * depth,
		Alignment:    64,
		Usage:        api.UsageCmdBuffer,
		MemFlags:     api.MemFlagCmdBuffer | api.MemFlagUMDAccess,
		CmdParams:    api.CmdParams{Type: api.CmdTypeCDMDirect, EnableAddrPatching: true, MaxNumNestedAddrs: 2},
	}, pool.WithMemoryProvider(provider))
	if err != nil {
		return err
	}
	defer cmds.Uninitialize()

	pp := api.PacketParams{MaxNumCmdBuffers: 1, MaxNumIOConfigs: 1, MaxNumPatches: depth + 1, EnableAddrPatching: true}
	size := packet.CalculatePacketSize(pp)
	packets, err := pool.New("compose-packet", api.ResourceParams{
		ResourceSize: size,
		PoolSize:     size,
		Usage:        api.UsagePacket,
		MemFlags:     api.MemFlagPacketBuffer | api.MemFlagKMDAccess,
		PacketParams: pp,
	}, pool.WithMemoryProvider(provider))
	if err != nil {
		return err
	}
	defer packets.Uninitialize()

	const request api.RequestID = 1
	chain := make([]*cmdbuffer.CmdBuffer, 0, depth)
	for range depth {
		ref, err := cmds.GetBufferForRequest(request)
		if err != nil {
			return err
		}
		cb, err := ref.CmdBuffer()
		if err != nil {
			return err
		}
		// Placeholder for the nested address, patched by the driver.
		if err := cb.WriteDwords(0x10000000|uint32(len(chain)), 0); err != nil {
			return err
		}
		chain = append(chain, cb)
	}
	for i, cb := range chain {
		next := chain[(i+1)%len(chain)]
		if err := cb.AddNestedCmdBufferInfo(api.DwordSize, next, 0); err != nil {
			return err
		}
	}

	ref, err := packets.GetBufferForRequest(request)
	if err != nil {
		return err
	}
	p, err := ref.Packet()
	if err != nil {
		return err
	}
	p.SetOpcode(1, 0x2)
	p.SetRequestID(request)
	if _, err := p.AddCmdBufferReference(chain[0]); err != nil {
		return err
	}
	if err := p.CommitPacket(); err != nil {
		return err
	}

	if err := p.Submit(context.Background(), decodePrinter{}); err != nil {
		return err
	}
	cmds.RecycleAll(request)
	packets.RecycleAll(request)
	return nil
}

// decodePrinter stands in for the kernel driver and prints what it receives.
type decodePrinter struct{}

func (decodePrinter) Submit(_ context.Context, info api.BufferInfo, offset, length uint32) error {
	d, err := packet.Decode(info.Data[offset : offset+length])
	if err != nil {
		return err
	}
	text, err := yaml.Marshal(d)
	if err != nil {
		return err
	}
	ok(string(text))
	return nil
}
