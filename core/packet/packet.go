// File: core/packet/packet.go
// Package packet composes the binary work packets submitted to the kernel.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Packet owns a pooled slot laid out as described in layout.go. Descriptors
// are encoded in place as they are added; the header is written at commit.
// A Packet is not safe for concurrent use.

package packet

import (
	"context"
	"encoding/binary"

	"github.com/eapache/queue"
	gbinary "gvisor.dev/gvisor/pkg/binary"

	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/core/cmdbuffer"
	"github.com/momentics/hioload-cmdbuf/internal/resource"
)

// ByteOrder of every wire structure.
var ByteOrder = binary.LittleEndian

// Packet is a header plus descriptor arrays referencing command buffers,
// image buffers and address patches.
type Packet struct {
	resource.Base

	params     api.PacketParams
	layout     Layout
	header     api.PacketHeader
	cmdBuffers []*cmdbuffer.CmdBuffer
	numRaw     uint32
	committed  bool

	// Scratch state of the patch resolver, reused across commits and emptied
	// after each walk.
	seen map[*cmdbuffer.CmdBuffer]struct{}
	work *queue.Queue
}

// Create binds a packet to size bytes at offset of info. size must hold the
// layout computed from params.
func Create(params api.PacketParams, info api.BufferInfo, offset, size uint32) (*Packet, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	layout := NewLayout(params)
	if size < layout.Size || offset%api.DwordSize != 0 {
		return nil, api.ErrInvalidArgument.
			WithContext("size", size).
			WithContext("required", layout.Size).
			WithContext("offset", offset)
	}
	p := &Packet{
		params:     params,
		layout:     layout,
		cmdBuffers: make([]*cmdbuffer.CmdBuffer, 0, params.MaxNumCmdBuffers),
		seen:       make(map[*cmdbuffer.CmdBuffer]struct{}),
		work:       queue.New(),
	}
	if err := p.Init(info, offset, size, size, api.UsagePacket); err != nil {
		return nil, err
	}
	p.Reset()
	return p, nil
}

// Params returns the creation parameters.
func (p *Packet) Params() api.PacketParams { return p.params }

// Layout returns the absolute offsets of the packet sections.
func (p *Packet) Layout() Layout { return p.layout }

// Header returns the header as it will be (or was) written at commit.
func (p *Packet) Header() api.PacketHeader { return p.header }

// Committed reports whether CommitPacket succeeded since the last Reset.
func (p *Packet) Committed() bool { return p.committed }

// NumCmdBuffers returns the number of referenced command buffers.
func (p *Packet) NumCmdBuffers() uint32 { return p.header.NumCmdBufs }

// NumIOConfigs returns the number of IO configs.
func (p *Packet) NumIOConfigs() uint32 { return p.header.NumIOConfigs }

// NumPatches returns the number of patches, resolved ones included.
func (p *Packet) NumPatches() uint32 { return p.header.NumPatches }

// Reset clears the committed flag and all element counts.
func (p *Packet) Reset() {
	p.ResetBase()
	p.committed = false
	p.numRaw = 0
	clear(p.cmdBuffers)
	p.cmdBuffers = p.cmdBuffers[:0]
	p.header = api.PacketHeader{
		CmdBufOffset:    CalculateCmdBufferOffset(p.params),
		IOConfigsOffset: CalculateIOConfigOffset(p.params),
		PatchOffset:     CalculatePatchOffset(p.params),
	}
}

// SetOpcode sets the device type and operation the packet requests.
func (p *Packet) SetOpcode(device, opcode uint32) {
	p.header.OpCode = api.MakeOpCode(device, opcode)
}

// SetFlags sets the header flag word.
func (p *Packet) SetFlags(flags uint32) {
	p.header.Flags = flags
}

// SetKMDCmdBufferIndex names the referenced command buffer the kernel driver
// may append to, and the byte offset it may start at.
func (p *Packet) SetKMDCmdBufferIndex(index, offset uint32) error {
	if index >= p.header.NumCmdBufs {
		return api.ErrInvalidArgument.WithContext("index", index)
	}
	p.header.KMDCmdBufIndex = index
	p.header.KMDCmdBufOffset = offset
	return nil
}

// CmdBuffers returns the directly referenced command buffers.
func (p *Packet) CmdBuffers() []*cmdbuffer.CmdBuffer { return p.cmdBuffers }

// AddCmdBufferReference appends the descriptor of cb and returns its index.
func (p *Packet) AddCmdBufferReference(cb *cmdbuffer.CmdBuffer) (uint32, error) {
	if err := p.checkOpen(); err != nil {
		return 0, err
	}
	if cb == nil {
		return 0, api.ErrInvalidArgument.WithContext("reason", "nil command buffer")
	}
	index := p.header.NumCmdBufs
	if index >= p.params.MaxNumCmdBuffers {
		return 0, api.ErrOutOfBounds.WithContext("max", p.params.MaxNumCmdBuffers)
	}
	desc := cb.GetCmdBufferDesc()
	p.put(p.layout.CmdBufOffset+index*api.CmdBufDescSize, api.CmdBufDescSize, &desc)
	p.cmdBuffers = append(p.cmdBuffers, cb)
	p.header.NumCmdBufs++
	return index, nil
}

// AddAddrPatch appends a patch between two raw allocations.
func (p *Packet) AddAddrPatch(dstHandle api.MemHandle, dstOffset uint32, srcHandle api.MemHandle, srcOffset uint32) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if !p.params.EnableAddrPatching {
		return api.ErrUnsupported.WithContext("reason", "address patching disabled")
	}
	if !dstHandle.Valid() || !srcHandle.Valid() {
		return api.ErrInvalidArgument.
			WithContext("dst", int32(dstHandle)).
			WithContext("src", int32(srcHandle))
	}
	if p.numRaw >= p.params.MaxNumPatches {
		return api.ErrOutOfBounds.WithContext("max", p.params.MaxNumPatches)
	}
	p.putPatch(p.numRaw, api.PatchDesc{
		DstBufHandle: int32(dstHandle),
		SrcBufHandle: int32(srcHandle),
		DstOffset:    dstOffset,
		SrcOffset:    srcOffset,
	})
	p.numRaw++
	p.header.NumPatches = p.numRaw
	return nil
}

// CommitPacket resolves nested addresses of every reachable command buffer
// into patches and writes the header. Committing again re-resolves from the
// raw patches.
func (p *Packet) CommitPacket() error {
	// Buffers may have grown since they were referenced.
	for i, cb := range p.cmdBuffers {
		desc := cb.GetCmdBufferDesc()
		p.put(p.layout.CmdBufOffset+uint32(i)*api.CmdBufDescSize, api.CmdBufDescSize, &desc)
	}
	p.header.NumPatches = p.numRaw
	if p.params.EnableAddrPatching {
		n, err := p.resolvePatches(p.numRaw)
		p.resetWalk()
		if err != nil {
			p.header.NumPatches = p.numRaw
			return err
		}
		p.header.NumPatches = n
	}
	p.header.Size = p.layout.Size
	if id := p.RequestID(); id != api.InvalidRequestID {
		p.header.RequestID = uint64(id)
	} else {
		p.header.RequestID = 0
	}
	p.put(0, api.PacketHeaderSize, &p.header)
	p.SetLength(p.layout.Size)
	p.committed = true
	return nil
}

// Submit hands the committed packet to s.
func (p *Packet) Submit(ctx context.Context, s api.Submitter) error {
	if !p.committed {
		return api.ErrInvalidState.WithContext("reason", "packet not committed")
	}
	return s.Submit(ctx, p.BufferInfo(), p.Offset(), p.Length())
}

// Patches decodes the patch array as currently written.
func (p *Packet) Patches() []api.PatchDesc {
	out := make([]api.PatchDesc, p.header.NumPatches)
	for i := range out {
		p.get(p.layout.PatchOffset+uint32(i)*api.PatchDescSize, api.PatchDescSize, &out[i])
	}
	return out
}

func (p *Packet) checkOpen() error {
	if p.committed {
		return api.ErrInvalidState.WithContext("reason", "packet already committed")
	}
	return nil
}

func (p *Packet) putPatch(index uint32, pd api.PatchDesc) {
	p.put(p.layout.PatchOffset+index*api.PatchDescSize, api.PatchDescSize, &pd)
}

// put encodes v in place at off. size must equal the encoded size of v.
func (p *Packet) put(off, size uint32, v any) {
	slot := p.Slot()
	gbinary.Marshal(slot[off:off:off+size], ByteOrder, v)
}

func (p *Packet) get(off, size uint32, v any) {
	gbinary.Unmarshal(p.Slot()[off:off+size], ByteOrder, v)
}

var _ api.Resource = (*Packet)(nil)
