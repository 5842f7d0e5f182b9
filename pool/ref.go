// File: pool/ref.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/core/cmdbuffer"
	"github.com/momentics/hioload-cmdbuf/core/packet"
)

// Ref names an acquired resource by slot and generation. Recycling the slot
// bumps its generation, so a Ref kept past Recycle resolves to ErrStaleRef
// instead of aliasing the next owner's resource.
type Ref struct {
	m     *Manager
	index uint32
	gen   uint32
}

// Index returns the slot index.
func (r Ref) Index() uint32 { return r.index }

// Generation returns the slot generation the Ref was issued for.
func (r Ref) Generation() uint32 { return r.gen }

// Manager returns the issuing manager, nil for the zero Ref.
func (r Ref) Manager() *Manager { return r.m }

// Valid reports whether the Ref still names an acquired resource.
func (r Ref) Valid() bool {
	_, err := r.Resource()
	return err == nil
}

// Resource resolves the Ref.
func (r Ref) Resource() (api.Resource, error) {
	if r.m == nil {
		return nil, api.ErrInvalidArgument.WithContext("reason", "zero ref")
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if !r.m.initialized {
		return nil, api.ErrStaleRef.WithContext("manager", r.m.name)
	}
	return r.m.lookupLocked(r)
}

// CmdBuffer resolves the Ref to a command buffer.
func (r Ref) CmdBuffer() (*cmdbuffer.CmdBuffer, error) {
	res, err := r.Resource()
	if err != nil {
		return nil, err
	}
	cb, ok := res.(*cmdbuffer.CmdBuffer)
	if !ok {
		return nil, api.ErrInvalidState.WithContext("reason", "not a command buffer pool")
	}
	return cb, nil
}

// Packet resolves the Ref to a packet.
func (r Ref) Packet() (*packet.Packet, error) {
	res, err := r.Resource()
	if err != nil {
		return nil, err
	}
	p, ok := res.(*packet.Packet)
	if !ok {
		return nil, api.ErrInvalidState.WithContext("reason", "not a packet pool")
	}
	return p, nil
}
