// File: core/cmdbuffer/cmdbuffer.go
// Package cmdbuffer implements the word-addressed, transactional command writer.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A CmdBuffer lives in a fixed slot of a hardware-visible allocation. Writers
// reserve words with BeginCommands, fill them in place and publish them with
// CommitCommands. A sentinel word written past every reservation detects
// overruns at commit. A CmdBuffer is not safe for concurrent use; the pool
// hands it to one owner at a time.

package cmdbuffer

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"

	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/internal/resource"
	"github.com/momentics/hioload-cmdbuf/log"
)

// SentinelWord is written immediately past every reserved region.
const SentinelWord uint32 = 0xDEADFACE

// SentinelSize is the slot space a command buffer needs past its capacity.
const SentinelSize = api.DwordSize

// CmdBuffer is a fixed-capacity command stream.
type CmdBuffer struct {
	resource.Base

	params    api.CmdParams
	words     []uint32
	maxDwords uint32
	used      uint32
	pending   uint32
	metadata  uint32
	nested    []NestedAddr
	onOverrun func(*CmdBuffer)
}

// Create binds a command buffer to size bytes at offset of info. The slot must
// also hold one sentinel word past size.
func Create(params api.CmdParams, info api.BufferInfo, offset, size uint32) (*CmdBuffer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if size == 0 || size%api.DwordSize != 0 || offset%api.DwordSize != 0 {
		return nil, api.ErrInvalidArgument.WithContext("size", size).WithContext("offset", offset)
	}
	cb := &CmdBuffer{
		params:    params,
		maxDwords: size / api.DwordSize,
	}
	if err := cb.Init(info, offset, size, size+SentinelSize, api.UsageCmdBuffer); err != nil {
		return nil, err
	}
	slot := cb.Slot()
	cb.words = unsafe.Slice((*uint32)(unsafe.Pointer(unsafe.SliceData(slot))), len(slot)/api.DwordSize)
	if params.EnableAddrPatching {
		cb.nested = make([]NestedAddr, 0, params.MaxNumNestedAddrs)
	}
	return cb, nil
}

// Params returns the creation parameters.
func (cb *CmdBuffer) Params() api.CmdParams { return cb.params }

// Type returns the command type.
func (cb *CmdBuffer) Type() api.CmdType { return cb.params.Type }

// OnOverrun installs a callback run whenever CommitCommands reports an
// overrun. It survives Reset.
func (cb *CmdBuffer) OnOverrun(fn func(*CmdBuffer)) { cb.onOverrun = fn }

// Reset clears counters and nested entries. Contents remain but are invalid.
func (cb *CmdBuffer) Reset() {
	cb.ResetBase()
	cb.used = 0
	cb.pending = 0
	cb.metadata = 0
	cb.nested = cb.nested[:0]
}

// UsedDwords returns the committed word count.
func (cb *CmdBuffer) UsedDwords() uint32 { return cb.used }

// PendingDwords returns the size of the outstanding reservation.
func (cb *CmdBuffer) PendingDwords() uint32 { return cb.pending }

// NumDwordsAvailable returns how many words may still be reserved.
func (cb *CmdBuffer) NumDwordsAvailable() uint32 { return cb.maxDwords - cb.used }

// MaxDwords returns the capacity in words.
func (cb *CmdBuffer) MaxDwords() uint32 { return cb.maxDwords }

// Words returns the committed words.
func (cb *CmdBuffer) Words() []uint32 { return cb.words[:cb.used] }

// BeginCommands reserves n words and returns them for writing. It returns nil
// without touching any state when n is zero or exceeds the free capacity. An
// outstanding reservation is replaced.
func (cb *CmdBuffer) BeginCommands(n uint32) []uint32 {
	if n == 0 || n > cb.NumDwordsAvailable() {
		return nil
	}
	if cb.pending != 0 {
		log.L().Debug("replacing uncommitted reservation",
			zap.Uint32("offset", cb.Offset()), zap.Uint32("pending", cb.pending))
	}
	start := cb.used
	cb.words[start+n] = SentinelWord
	cb.pending = n
	return cb.words[start : start+n : start+n]
}

// CommitCommands publishes the outstanding reservation.
func (cb *CmdBuffer) CommitCommands() error {
	if cb.pending == 0 {
		return api.ErrInvalidState.WithContext("reason", "commit without begin")
	}
	if got := cb.words[cb.used+cb.pending]; got != SentinelWord {
		if debugAssertions {
			panic(fmt.Sprintf("cmdbuffer %d@%d: overrun past %d dwords (sentinel %#x)",
				cb.MemHandle(), cb.Offset(), cb.used+cb.pending, got))
		}
		log.L().Error("command buffer overrun",
			zap.Int32("handle", int32(cb.MemHandle())),
			zap.Uint32("offset", cb.Offset()),
			zap.Uint32("used", cb.used),
			zap.Uint32("pending", cb.pending),
			zap.Uint32("sentinel", got))
		cb.pending = 0
		if cb.onOverrun != nil {
			cb.onOverrun(cb)
		}
		return api.ErrOverrun.WithContext("offset", cb.Offset())
	}
	cb.used += cb.pending
	cb.pending = 0
	cb.SetLength(cb.used * api.DwordSize)
	return nil
}

// CancelCommands drops the outstanding reservation.
func (cb *CmdBuffer) CancelCommands() {
	cb.pending = 0
}

// WriteDwords appends vals in a single Begin/Commit transaction.
func (cb *CmdBuffer) WriteDwords(vals ...uint32) error {
	dst := cb.BeginCommands(uint32(len(vals)))
	if dst == nil {
		return api.ErrOutOfMemory.
			WithContext("requested", len(vals)).
			WithContext("available", cb.NumDwordsAvailable())
	}
	copy(dst, vals)
	return cb.CommitCommands()
}

// Metadata returns the metadata word reported in the descriptor.
func (cb *CmdBuffer) Metadata() uint32 { return cb.metadata }

// SetMetadata sets the metadata word reported in the descriptor.
func (cb *CmdBuffer) SetMetadata(md uint32) { cb.metadata = md }

// NestedAddrs returns the declared nested addresses.
func (cb *CmdBuffer) NestedAddrs() []NestedAddr { return cb.nested }

// AddNestedCmdBufferInfo records that the address of src+srcOffset belongs at
// dstOffset bytes into this buffer.
func (cb *CmdBuffer) AddNestedCmdBufferInfo(dstOffset uint32, src *CmdBuffer, srcOffset uint32) error {
	if src == nil {
		return api.ErrInvalidArgument.WithContext("reason", "nil source buffer")
	}
	if srcOffset >= src.MaxLength() {
		return api.ErrInvalidArgument.WithContext("srcOffset", srcOffset)
	}
	return cb.addNested(NestedAddr{DstOffset: dstOffset, Source: EmbeddedBuffer{Buffer: src, SrcOffset: srcOffset}})
}

// AddNestedBufferInfo records that the address of handle+srcOffset belongs at
// dstOffset bytes into this buffer.
func (cb *CmdBuffer) AddNestedBufferInfo(dstOffset uint32, handle api.MemHandle, srcOffset uint32) error {
	if !handle.Valid() {
		return api.ErrInvalidArgument.WithContext("handle", int32(handle))
	}
	return cb.addNested(NestedAddr{DstOffset: dstOffset, Source: RawHandle{Handle: handle, SrcOffset: srcOffset}})
}

func (cb *CmdBuffer) addNested(na NestedAddr) error {
	if !cb.params.EnableAddrPatching {
		return api.ErrUnsupported.WithContext("reason", "address patching disabled")
	}
	if uint32(len(cb.nested)) >= cb.params.MaxNumNestedAddrs {
		return api.ErrOutOfBounds.WithContext("max", cb.params.MaxNumNestedAddrs)
	}
	if na.DstOffset%api.DwordSize != 0 || uint64(na.DstOffset)+api.DwordSize > uint64(cb.MaxLength()) {
		return api.ErrInvalidArgument.WithContext("dstOffset", na.DstOffset)
	}
	cb.nested = append(cb.nested, na)
	return nil
}

// GetCmdBufferDesc describes the committed contents for a packet.
func (cb *CmdBuffer) GetCmdBufferDesc() api.CmdBufDesc {
	return api.CmdBufDesc{
		MemHandle: int32(cb.MemHandle()),
		Offset:    cb.Offset(),
		Size:      cb.MaxLength(),
		Length:    cb.used * api.DwordSize,
		Type:      uint32(cb.params.Type),
		MetaData:  cb.metadata,
	}
}

var _ api.Resource = (*CmdBuffer)(nil)
