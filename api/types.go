// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and capability enums.

package api

import "math"

// DwordSize is the byte size of the command buffer addressing unit.
const DwordSize = 4

// MemHandle identifies a hardware-visible allocation to the kernel driver.
type MemHandle int32

// InvalidMemHandle is never returned by a MemoryProvider.
const InvalidMemHandle MemHandle = 0

// Valid reports whether h may name an allocation.
func (h MemHandle) Valid() bool { return h > InvalidMemHandle }

// RequestID tags pooled resources with the capture request that uses them.
type RequestID uint64

// InvalidRequestID marks a resource acquired without a request.
const InvalidRequestID RequestID = math.MaxUint64

// CmdType enumerates the command stream formats understood by the device.
type CmdType uint32

const (
	CmdTypeInvalid CmdType = iota
	CmdTypeCDMDMI
	CmdTypeCDMDMI16
	CmdTypeCDMDMI32
	CmdTypeCDMDMI64
	CmdTypeCDMDirect
	CmdTypeCDMIndirect
	CmdTypeI2C
	CmdTypeFW
	CmdTypeGeneric
	CmdTypeLegacy
)

func (t CmdType) String() string {
	switch t {
	case CmdTypeCDMDMI:
		return "cdm-dmi"
	case CmdTypeCDMDMI16:
		return "cdm-dmi16"
	case CmdTypeCDMDMI32:
		return "cdm-dmi32"
	case CmdTypeCDMDMI64:
		return "cdm-dmi64"
	case CmdTypeCDMDirect:
		return "cdm-direct"
	case CmdTypeCDMIndirect:
		return "cdm-indirect"
	case CmdTypeI2C:
		return "i2c"
	case CmdTypeFW:
		return "fw"
	case CmdTypeGeneric:
		return "generic"
	case CmdTypeLegacy:
		return "legacy"
	default:
		return "invalid"
	}
}

// ParseCmdType maps the String form back to a CmdType.
func ParseCmdType(s string) (CmdType, bool) {
	for t := CmdTypeCDMDMI; t <= CmdTypeLegacy; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return CmdTypeInvalid, false
}

// UsageFlags selects which resource kind a pool constructs.
type UsageFlags uint32

const (
	UsageCmdBuffer UsageFlags = 1 << iota
	UsagePacket
)

// IsPacket reports whether the usage describes packet resources only.
func (u UsageFlags) IsPacket() bool { return u == UsagePacket }

// IsCmdBuffer reports whether the usage describes command buffers only.
func (u UsageFlags) IsCmdBuffer() bool { return u == UsageCmdBuffer }

// MemFlags describe how an allocation is mapped and who may access it.
type MemFlags uint32

const (
	MemFlagHWReadWrite MemFlags = 1 << iota
	MemFlagProtected
	MemFlagCmdBuffer
	MemFlagUMDAccess
	MemFlagCache
	MemFlagPacketBuffer
	MemFlagKMDAccess
	MemFlagSharedAccess
	MemFlagHWSharedAccess
)

var memFlagNames = [...]struct {
	flag MemFlags
	name string
}{
	{MemFlagHWReadWrite, "hw-rw"},
	{MemFlagProtected, "protected"},
	{MemFlagCmdBuffer, "cmd-buffer"},
	{MemFlagUMDAccess, "umd"},
	{MemFlagCache, "cache"},
	{MemFlagPacketBuffer, "packet-buffer"},
	{MemFlagKMDAccess, "kmd"},
	{MemFlagSharedAccess, "shared"},
	{MemFlagHWSharedAccess, "hw-shared"},
}

// Has reports whether all bits of f are set.
func (m MemFlags) Has(f MemFlags) bool { return m&f == f }

// Names lists the symbolic names of the set bits.
func (m MemFlags) Names() []string {
	var out []string
	for _, e := range memFlagNames {
		if m.Has(e.flag) {
			out = append(out, e.name)
		}
	}
	return out
}

// ParseMemFlag maps a symbolic name to its flag.
func ParseMemFlag(name string) (MemFlags, bool) {
	for _, e := range memFlagNames {
		if e.name == name {
			return e.flag, true
		}
	}
	return 0, false
}

// IODirection of an image buffer referenced by a packet.
type IODirection uint32

const (
	IODirectionInput IODirection = iota + 1
	IODirectionOutput
)
