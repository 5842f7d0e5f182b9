// File: core/packet/patch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package packet

import (
	"go.uber.org/zap"

	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/core/cmdbuffer"
	"github.com/momentics/hioload-cmdbuf/log"
)

// resolvePatches walks every command buffer reachable from the referenced
// ones and appends one patch per nested address, starting at index base.
// Each buffer is expanded at most once, so cyclic references terminate.
// It returns the total patch count. The caller empties the scratch state with
// resetWalk.
func (p *Packet) resolvePatches(base uint32) (uint32, error) {
	n := base
	for _, cb := range p.cmdBuffers {
		p.push(cb)
	}
	for p.work.Length() > 0 {
		node := p.work.Remove().(*cmdbuffer.CmdBuffer)
		for _, na := range node.NestedAddrs() {
			if n >= p.params.MaxNumPatches {
				log.L().Warn("patch array exhausted",
					zap.Uint32("max", p.params.MaxNumPatches),
					zap.Uint32("raw", base))
				return base, api.ErrOutOfBounds.WithContext("max", p.params.MaxNumPatches)
			}
			pd := api.PatchDesc{
				DstBufHandle: int32(node.MemHandle()),
				DstOffset:    node.Offset() + na.DstOffset,
			}
			switch src := na.Source.(type) {
			case cmdbuffer.EmbeddedBuffer:
				pd.SrcBufHandle = int32(src.Buffer.MemHandle())
				pd.SrcOffset = src.Buffer.Offset() + src.SrcOffset
				p.push(src.Buffer)
			case cmdbuffer.RawHandle:
				pd.SrcBufHandle = int32(src.Handle)
				pd.SrcOffset = src.SrcOffset
			}
			p.putPatch(n, pd)
			n++
		}
	}
	return n, nil
}

// push queues cb unless it was already seen during this walk.
func (p *Packet) push(cb *cmdbuffer.CmdBuffer) {
	if _, ok := p.seen[cb]; ok {
		return
	}
	p.seen[cb] = struct{}{}
	p.work.Add(cb)
}

func (p *Packet) resetWalk() {
	for p.work.Length() > 0 {
		p.work.Remove()
	}
	clear(p.seen)
}
