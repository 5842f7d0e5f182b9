// File: core/cmdbuffer/nested.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package cmdbuffer

import "github.com/momentics/hioload-cmdbuf/api"

// NestedSource is the target of a nested address: either another command
// buffer or a raw allocation. Only this package implements it.
type NestedSource interface {
	nestedSource()
}

// EmbeddedBuffer points a nested address at another command buffer.
type EmbeddedBuffer struct {
	Buffer    *CmdBuffer
	SrcOffset uint32
}

// RawHandle points a nested address at an arbitrary allocation.
type RawHandle struct {
	Handle    api.MemHandle
	SrcOffset uint32
}

func (EmbeddedBuffer) nestedSource() {}
func (RawHandle) nestedSource()      {}

// NestedAddr asks for the device address of Source to be written at DstOffset
// bytes into the owning command buffer.
type NestedAddr struct {
	DstOffset uint32
	Source    NestedSource
}
