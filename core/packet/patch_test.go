package packet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/core/cmdbuffer"
)

func ringBuffer(t *testing.T, info api.BufferInfo, offset uint32) *cmdbuffer.CmdBuffer {
	t.Helper()
	cb, err := cmdbuffer.Create(api.CmdParams{
		Type:               api.CmdTypeCDMDirect,
		EnableAddrPatching: true,
		MaxNumNestedAddrs:  2,
	}, info, offset, 64)
	require.NoError(t, err)
	return cb
}

func TestWalkScratchTracksVisitedBuffers(t *testing.T) {
	info := api.BufferInfo{Handle: 9, Data: make([]byte, 4096)}
	// Buffers the packet never sees must not size its scratch state.
	for range 10000 {
		_, err := cmdbuffer.Create(api.CmdParams{Type: api.CmdTypeGeneric}, info, 0, 64)
		require.NoError(t, err)
	}

	a := ringBuffer(t, info, 0)
	b := ringBuffer(t, info, 128)
	require.NoError(t, a.AddNestedCmdBufferInfo(0, b, 0))
	require.NoError(t, b.AddNestedCmdBufferInfo(4, a, 0))

	params := api.PacketParams{MaxNumCmdBuffers: 1, MaxNumPatches: 4, EnableAddrPatching: true}
	size := CalculatePacketSize(params)
	p, err := Create(params, api.BufferInfo{Handle: 1, Data: make([]byte, size)}, 0, size)
	require.NoError(t, err)
	_, err = p.AddCmdBufferReference(a)
	require.NoError(t, err)

	n, err := p.resolvePatches(0)
	require.NoError(t, err)
	require.Equal(t, uint32(2), n)
	require.Len(t, p.seen, 2)

	p.resetWalk()
	require.Empty(t, p.seen)
	require.Zero(t, p.work.Length())

	require.NoError(t, p.CommitPacket())
	require.Empty(t, p.seen)
}

func TestWalkScratchEmptiedOnOverflow(t *testing.T) {
	info := api.BufferInfo{Handle: 9, Data: make([]byte, 512)}
	a := ringBuffer(t, info, 0)
	b := ringBuffer(t, info, 128)
	c := ringBuffer(t, info, 256)
	require.NoError(t, a.AddNestedCmdBufferInfo(0, b, 0))
	require.NoError(t, a.AddNestedCmdBufferInfo(4, c, 0))

	params := api.PacketParams{MaxNumCmdBuffers: 1, MaxNumPatches: 1, EnableAddrPatching: true}
	size := CalculatePacketSize(params)
	p, err := Create(params, api.BufferInfo{Handle: 1, Data: make([]byte, size)}, 0, size)
	require.NoError(t, err)
	_, err = p.AddCmdBufferReference(a)
	require.NoError(t, err)

	require.ErrorIs(t, p.CommitPacket(), api.ErrOutOfBounds)
	require.Empty(t, p.seen)
	require.Zero(t, p.work.Length())
}
