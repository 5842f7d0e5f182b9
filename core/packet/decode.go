// File: core/packet/decode.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package packet

import (
	gbinary "gvisor.dev/gvisor/pkg/binary"

	"github.com/momentics/hioload-cmdbuf/api"
)

// Decoded is the driver's view of a committed packet.
type Decoded struct {
	Header     api.PacketHeader
	CmdBuffers []api.CmdBufDesc
	IOConfigs  []api.IOConfig
	Patches    []api.PatchDesc
}

// Decode parses a committed packet from data, as a submitter or a test double
// of the kernel driver would.
func Decode(data []byte) (*Decoded, error) {
	if len(data) < api.PacketHeaderSize {
		return nil, api.ErrInvalidArgument.WithContext("length", len(data))
	}
	d := &Decoded{}
	gbinary.Unmarshal(data[:api.PacketHeaderSize], ByteOrder, &d.Header)
	h := d.Header
	if h.Size < api.PacketHeaderSize || uint64(h.Size) > uint64(len(data)) {
		return nil, api.ErrOutOfBounds.WithContext("size", h.Size).WithContext("length", len(data))
	}
	payload := data[api.PacketHeaderSize:h.Size]

	section := func(off, count, elem uint32) ([]byte, error) {
		end := uint64(off) + uint64(count)*uint64(elem)
		if end > uint64(len(payload)) {
			return nil, api.ErrOutOfBounds.WithContext("offset", off).WithContext("count", count)
		}
		return payload[off:end], nil
	}

	b, err := section(h.CmdBufOffset, h.NumCmdBufs, api.CmdBufDescSize)
	if err != nil {
		return nil, err
	}
	d.CmdBuffers = make([]api.CmdBufDesc, h.NumCmdBufs)
	for i := range d.CmdBuffers {
		gbinary.Unmarshal(b[i*api.CmdBufDescSize:(i+1)*api.CmdBufDescSize], ByteOrder, &d.CmdBuffers[i])
	}

	if b, err = section(h.IOConfigsOffset, h.NumIOConfigs, api.IOConfigSize); err != nil {
		return nil, err
	}
	d.IOConfigs = make([]api.IOConfig, h.NumIOConfigs)
	for i := range d.IOConfigs {
		gbinary.Unmarshal(b[i*api.IOConfigSize:(i+1)*api.IOConfigSize], ByteOrder, &d.IOConfigs[i])
	}

	if b, err = section(h.PatchOffset, h.NumPatches, api.PatchDescSize); err != nil {
		return nil, err
	}
	d.Patches = make([]api.PatchDesc, h.NumPatches)
	for i := range d.Patches {
		gbinary.Unmarshal(b[i*api.PatchDescSize:(i+1)*api.PatchDescSize], ByteOrder, &d.Patches[i])
	}
	return d, nil
}
