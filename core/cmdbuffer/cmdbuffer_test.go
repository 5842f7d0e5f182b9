package cmdbuffer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/core/cmdbuffer"
)

func newInfo(size int) api.BufferInfo {
	return api.BufferInfo{Handle: 7, Data: make([]byte, size), Flags: api.MemFlagCmdBuffer}
}

func patchingParams(maxNested uint32) api.CmdParams {
	return api.CmdParams{Type: api.CmdTypeCDMDirect, EnableAddrPatching: true, MaxNumNestedAddrs: maxNested}
}

func newCmdBuffer(t *testing.T, params api.CmdParams, dwords uint32) *cmdbuffer.CmdBuffer {
	t.Helper()
	size := dwords * api.DwordSize
	cb, err := cmdbuffer.Create(params, newInfo(int(size+cmdbuffer.SentinelSize)), 0, size)
	require.NoError(t, err)
	return cb
}

func TestCreateRejectsConflictingFlags(t *testing.T) {
	params := patchingParams(2)
	params.MustInlineIndirectBuffers = true
	_, err := cmdbuffer.Create(params, newInfo(68), 0, 64)
	require.ErrorIs(t, err, api.ErrInvalidArgument)

	_, err = cmdbuffer.Create(patchingParams(0), newInfo(68), 0, 64)
	require.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestCreateRejectsSlotOutsideAllocation(t *testing.T) {
	// No room for the sentinel word.
	_, err := cmdbuffer.Create(api.CmdParams{Type: api.CmdTypeGeneric}, newInfo(64), 0, 64)
	require.Equal(t, api.ErrCodeInvalidArgument, api.CodeOf(err))

	_, err = cmdbuffer.Create(api.CmdParams{Type: api.CmdTypeGeneric}, newInfo(128), 0, 62)
	require.Equal(t, api.ErrCodeInvalidArgument, api.CodeOf(err))
}

func TestBeginCommitGrowsUsed(t *testing.T) {
	cb := newCmdBuffer(t, api.CmdParams{Type: api.CmdTypeGeneric}, 16)
	for _, n := range []uint32{1, 5, 11} {
		before := cb.UsedDwords()
		words := cb.BeginCommands(n)
		if n > 16-before {
			require.Nil(t, words)
			continue
		}
		require.Len(t, words, int(n))
		for i := range words {
			words[i] = uint32(i) + 1
		}
		require.NoError(t, cb.CommitCommands())
		require.Equal(t, before+n, cb.UsedDwords())
	}
	require.Equal(t, uint32(6*api.DwordSize), cb.Length())
	require.Equal(t, []uint32{1, 1, 2, 3, 4, 5}, cb.Words())
}

func TestBeginCancelLeavesUsed(t *testing.T) {
	cb := newCmdBuffer(t, api.CmdParams{Type: api.CmdTypeGeneric}, 8)
	require.NoError(t, cb.WriteDwords(0xA, 0xB))

	require.NotNil(t, cb.BeginCommands(3))
	cb.CancelCommands()
	require.Equal(t, uint32(2), cb.UsedDwords())
	require.Zero(t, cb.PendingDwords())

	err := cb.CommitCommands()
	require.Equal(t, api.ErrCodeInvalidState, api.CodeOf(err))
	require.Equal(t, uint32(2), cb.UsedDwords())
}

func TestBeginRejectsZeroAndOversize(t *testing.T) {
	cb := newCmdBuffer(t, api.CmdParams{Type: api.CmdTypeGeneric}, 8)
	require.Nil(t, cb.BeginCommands(0))

	// Only 8 dwords fit.
	require.Nil(t, cb.BeginCommands(10))
	require.Zero(t, cb.UsedDwords())
	require.Zero(t, cb.PendingDwords())

	require.NotNil(t, cb.BeginCommands(8))
	require.NoError(t, cb.CommitCommands())
	require.Nil(t, cb.BeginCommands(1))
}

func TestCommitWithoutBegin(t *testing.T) {
	cb := newCmdBuffer(t, api.CmdParams{Type: api.CmdTypeGeneric}, 4)
	require.ErrorIs(t, cb.CommitCommands(), api.ErrInvalidState)
	require.Zero(t, cb.UsedDwords())
}

func TestSecondBeginReplacesReservation(t *testing.T) {
	cb := newCmdBuffer(t, api.CmdParams{Type: api.CmdTypeGeneric}, 8)
	require.NotNil(t, cb.BeginCommands(6))
	words := cb.BeginCommands(2)
	require.Len(t, words, 2)
	require.Equal(t, uint32(2), cb.PendingDwords())
	require.NoError(t, cb.CommitCommands())
	require.Equal(t, uint32(2), cb.UsedDwords())
}

func TestCommitDetectsOverrun(t *testing.T) {
	info := newInfo(8*api.DwordSize + cmdbuffer.SentinelSize)
	cb, err := cmdbuffer.Create(api.CmdParams{Type: api.CmdTypeGeneric}, info, 0, 8*api.DwordSize)
	require.NoError(t, err)
	require.NotNil(t, cb.BeginCommands(2))
	// Clobber the sentinel right past the two reserved words.
	copy(info.Data[8:12], []byte{0, 0, 0, 0})
	err = cb.CommitCommands()
	require.ErrorIs(t, err, api.ErrOverrun)
	require.Zero(t, cb.UsedDwords())
	require.Zero(t, cb.PendingDwords())
}

func TestNestedAddrLimit(t *testing.T) {
	cb := newCmdBuffer(t, patchingParams(1), 8)
	other := newCmdBuffer(t, patchingParams(1), 8)

	require.NoError(t, cb.AddNestedCmdBufferInfo(0, other, 0))
	err := cb.AddNestedCmdBufferInfo(4, other, 0)
	require.ErrorIs(t, err, api.ErrOutOfBounds)
	require.Len(t, cb.NestedAddrs(), 1)

	err = cb.AddNestedBufferInfo(4, 3, 0)
	require.ErrorIs(t, err, api.ErrOutOfBounds)
	require.Len(t, cb.NestedAddrs(), 1)
}

func TestNestedAddrValidation(t *testing.T) {
	plain := newCmdBuffer(t, api.CmdParams{Type: api.CmdTypeGeneric}, 8)
	cb := newCmdBuffer(t, patchingParams(4), 8)

	require.ErrorIs(t, plain.AddNestedBufferInfo(0, 3, 0), api.ErrUnsupported)
	require.ErrorIs(t, cb.AddNestedCmdBufferInfo(0, nil, 0), api.ErrInvalidArgument)
	require.ErrorIs(t, cb.AddNestedBufferInfo(0, api.InvalidMemHandle, 0), api.ErrInvalidArgument)
	require.ErrorIs(t, cb.AddNestedCmdBufferInfo(0, plain, 32), api.ErrInvalidArgument)
	require.ErrorIs(t, cb.AddNestedBufferInfo(32, 3, 0), api.ErrInvalidArgument)
	require.ErrorIs(t, cb.AddNestedBufferInfo(0xFFFFFFFC, 3, 0), api.ErrInvalidArgument)
	require.ErrorIs(t, cb.AddNestedCmdBufferInfo(0xFFFFFFFC, plain, 0), api.ErrInvalidArgument)
	require.Empty(t, cb.NestedAddrs())

	require.NoError(t, cb.AddNestedBufferInfo(4, 3, 16))
	na := cb.NestedAddrs()[0]
	require.Equal(t, uint32(4), na.DstOffset)
	require.Equal(t, cmdbuffer.RawHandle{Handle: 3, SrcOffset: 16}, na.Source)

	// The last word of the buffer is still a valid destination.
	require.NoError(t, cb.AddNestedBufferInfo(28, 3, 0))
}

func TestResetClearsState(t *testing.T) {
	cb := newCmdBuffer(t, patchingParams(2), 8)
	require.NoError(t, cb.WriteDwords(1, 2, 3))
	require.NoError(t, cb.AddNestedBufferInfo(0, 3, 0))
	cb.SetMetadata(9)
	cb.SetRequestID(42)
	require.NotNil(t, cb.BeginCommands(1))

	cb.Reset()
	require.Zero(t, cb.UsedDwords())
	require.Zero(t, cb.PendingDwords())
	require.Zero(t, cb.Length())
	require.Empty(t, cb.NestedAddrs())
	require.Zero(t, cb.Metadata())
	require.Equal(t, api.InvalidRequestID, cb.RequestID())
}

func TestGetCmdBufferDesc(t *testing.T) {
	info := newInfo(256)
	cb, err := cmdbuffer.Create(api.CmdParams{Type: api.CmdTypeCDMDMI32}, info, 64, 32)
	require.NoError(t, err)
	require.NoError(t, cb.WriteDwords(1, 2, 3))
	cb.SetMetadata(0x55)

	require.Equal(t, api.CmdBufDesc{
		MemHandle: 7,
		Offset:    64,
		Size:      32,
		Length:    12,
		Type:      uint32(api.CmdTypeCDMDMI32),
		MetaData:  0x55,
	}, cb.GetCmdBufferDesc())
}

func TestOverrunCallback(t *testing.T) {
	info := newInfo(4*api.DwordSize + cmdbuffer.SentinelSize)
	cb, err := cmdbuffer.Create(api.CmdParams{Type: api.CmdTypeGeneric}, info, 0, 4*api.DwordSize)
	require.NoError(t, err)
	var got []*cmdbuffer.CmdBuffer
	cb.OnOverrun(func(c *cmdbuffer.CmdBuffer) { got = append(got, c) })
	cb.Reset()

	require.NotNil(t, cb.BeginCommands(1))
	copy(info.Data[4:8], []byte{1, 2, 3, 4})
	require.Error(t, cb.CommitCommands())
	require.Equal(t, []*cmdbuffer.CmdBuffer{cb}, got)
	require.Zero(t, cb.UsedDwords())
}
