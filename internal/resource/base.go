// Package resource
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Base carries the bookkeeping shared by command buffers and packets: where the
// resource lives in its allocation and how much of it is in use.

package resource

import "github.com/momentics/hioload-cmdbuf/api"

// Base implements the bookkeeping half of api.Resource. Embedders provide Reset.
type Base struct {
	info      api.BufferInfo
	offset    uint32
	maxLength uint32
	length    uint32
	requestID api.RequestID
	usage     api.UsageFlags
	// data is the resource's window into info.Data, sentinel space included.
	data []byte
}

// Init binds the resource to [offset, offset+slotSize) of info. maxLength is
// the usable part of the slot.
func (b *Base) Init(info api.BufferInfo, offset, maxLength, slotSize uint32, usage api.UsageFlags) error {
	end := uint64(offset) + uint64(slotSize)
	if maxLength == 0 || maxLength > slotSize || end > info.Size() {
		return api.ErrInvalidArgument.
			WithContext("offset", offset).
			WithContext("slot", slotSize).
			WithContext("allocation", info.Size())
	}
	b.info = info
	b.offset = offset
	b.maxLength = maxLength
	b.usage = usage
	b.requestID = api.InvalidRequestID
	b.data = info.Data[offset:end:end]
	return nil
}

func (b *Base) MemHandle() api.MemHandle      { return b.info.Handle }
func (b *Base) Offset() uint32                { return b.offset }
func (b *Base) MaxLength() uint32             { return b.maxLength }
func (b *Base) Length() uint32                { return b.length }
func (b *Base) RequestID() api.RequestID      { return b.requestID }
func (b *Base) SetRequestID(id api.RequestID) { b.requestID = id }
func (b *Base) Usage() api.UsageFlags         { return b.usage }

// BufferInfo returns the allocation backing the resource.
func (b *Base) BufferInfo() api.BufferInfo { return b.info }

// SetLength records the committed byte count.
func (b *Base) SetLength(n uint32) { b.length = n }

// Slot returns the whole slot, including the space past MaxLength.
func (b *Base) Slot() []byte { return b.data }

// Bytes returns the committed bytes.
func (b *Base) Bytes() []byte { return b.data[:b.length] }

// ResetBase clears the length and request tag.
func (b *Base) ResetBase() {
	b.length = 0
	b.requestID = api.InvalidRequestID
}
