// Package api
// Author: momentics <momentics@gmail.com>
//
// Bit-exact structures consumed by the kernel driver. Field order and widths
// define the layout; every struct is encoded little-endian without padding.

package api

// Sizes of the wire structures in bytes.
const (
	PacketHeaderSize = 56
	CmdBufDescSize   = 24
	PlaneConfigSize  = 48
	IOConfigSize     = 3*4 + 3*4 + 3*PlaneConfigSize + 8*4 + CmdBufDescSize + 8*4
	PatchDescSize    = 16
	MaxNumPlanes     = 3
)

// PacketHeader is the fixed prefix of a packet. Offsets are relative to the
// payload, which starts right after the header.
type PacketHeader struct {
	OpCode          uint32
	Size            uint32
	RequestID       uint64
	Flags           uint32
	Padding         uint32
	CmdBufOffset    uint32
	NumCmdBufs      uint32
	IOConfigsOffset uint32
	NumIOConfigs    uint32
	PatchOffset     uint32
	NumPatches      uint32
	KMDCmdBufIndex  uint32
	KMDCmdBufOffset uint32
}

// CmdBufDesc describes one command buffer referenced by a packet.
type CmdBufDesc struct {
	MemHandle int32
	Offset    uint32
	Size      uint32
	Length    uint32
	Type      uint32
	MetaData  uint32
}

// PlaneConfig describes one image plane.
type PlaneConfig struct {
	Width        uint32
	Height       uint32
	PlaneStride  uint32
	SliceHeight  uint32
	MetaStride   uint32
	MetaSize     uint32
	MetaOffset   uint32
	PackerConfig uint32
	ModeConfig   uint32
	TileConfig   uint32
	HInit        uint32
	VInit        uint32
}

// IOConfig describes one image buffer consumed or produced by a packet.
type IOConfig struct {
	MemHandle        [MaxNumPlanes]int32
	Offsets          [MaxNumPlanes]uint32
	Planes           [MaxNumPlanes]PlaneConfig
	Format           uint32
	ColorSpace       uint32
	ColorPattern     uint32
	BPP              uint32
	Rotation         uint32
	ResourceType     uint32
	Fence            int32
	EarlyFence       int32
	AuxCmdBuf        CmdBufDesc
	Direction        uint32
	BatchSize        uint32
	SubsamplePeriod  uint32
	SubsamplePattern uint32
	FramedropPeriod  uint32
	FramedropPattern uint32
	Offset           uint32
	Flag             uint32
}

// PatchDesc asks the driver to write the device address of
// (SrcBufHandle + SrcOffset) at (DstBufHandle + DstOffset).
type PatchDesc struct {
	DstBufHandle int32
	SrcBufHandle int32
	DstOffset    uint32
	SrcOffset    uint32
}

// MakeOpCode packs a device type and an operation code into a header word.
func MakeOpCode(device, opcode uint32) uint32 {
	return device<<24 | opcode&0x00FFFFFF
}
